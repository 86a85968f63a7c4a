// Package store opens the configured history.Store backend.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"

	"github.com/Sumatoshi-tech/issuetrend/pkg/history"
	"github.com/Sumatoshi-tech/issuetrend/pkg/store/filestore"
	"github.com/Sumatoshi-tech/issuetrend/pkg/store/pgstore"
	"github.com/Sumatoshi-tech/issuetrend/pkg/store/redisstore"
	"github.com/Sumatoshi-tech/issuetrend/pkg/store/s3store"
)

// Backend names.
const (
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendS3       = "s3"
)

// DefaultDir is the file backend directory when none is configured.
const DefaultDir = ".issuetrend/builds"

// Configuration errors.
var (
	ErrUnknownBackend = errors.New("unknown store backend")
	ErrMissingSetting = errors.New("missing store setting")
)

// Config selects and configures a backend.
type Config struct {
	Backend  string         `mapstructure:"backend"`
	File     FileConfig     `mapstructure:"file"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	S3       S3Config       `mapstructure:"s3"`
}

// FileConfig configures the file backend.
type FileConfig struct {
	Dir      string `mapstructure:"dir"`
	Compress bool   `mapstructure:"compress"`
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// PostgresConfig configures the postgres backend.
type PostgresConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// S3Config configures the s3 backend.
type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

// Store is a history.Store that holds connections to release.
type Store interface {
	history.Store
	io.Closer
}

// Validate checks that the selected backend has its required settings.
func (c Config) Validate() error {
	switch c.backend() {
	case BackendFile, BackendMemory:
		return nil
	case BackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("%w: store.redis.addr", ErrMissingSetting)
		}
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("%w: store.postgres.dsn", ErrMissingSetting)
		}
	case BackendS3:
		if c.S3.Bucket == "" {
			return s3store.ErrNoBucket
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Backend)
	}

	return nil
}

func (c Config) backend() string {
	b := strings.ToLower(strings.TrimSpace(c.Backend))
	if b == "" {
		return BackendFile
	}

	return b
}

// Open connects to the configured backend. The postgres backend creates its
// table on open.
func Open(ctx context.Context, cfg Config) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.backend() {
	case BackendMemory:
		return memory{history.NewMemory()}, nil
	case BackendRedis:
		s, err := redisstore.Dial(ctx, redisstore.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			return nil, err
		}

		return s, nil
	case BackendPostgres:
		s, err := pgstore.Open(ctx, cfg.Postgres.DSN, cfg.Postgres.Table)
		if err != nil {
			return nil, err
		}

		if err := s.EnsureSchema(ctx); err != nil {
			s.Close()

			return nil, err
		}

		return s, nil
	case BackendS3:
		s, err := s3store.Dial(ctx, s3store.Options{
			Bucket:          cfg.S3.Bucket,
			Prefix:          cfg.S3.Prefix,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			UsePathStyle:    cfg.S3.UsePathStyle,
		})
		if err != nil {
			return nil, err
		}

		return s, nil
	default:
		dir := cfg.File.Dir
		if dir == "" {
			dir = DefaultDir
		}

		return filestore.New(afero.NewOsFs(), dir, cfg.File.Compress), nil
	}
}

type memory struct {
	*history.Memory
}

func (memory) Close() error { return nil }
