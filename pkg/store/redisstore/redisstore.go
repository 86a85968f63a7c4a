// Package redisstore keeps build results in Redis: one string key per build
// plus a sorted set indexing the stored ids.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Sumatoshi-tech/issuetrend/pkg/build"
	"github.com/Sumatoshi-tech/issuetrend/pkg/history"
	"github.com/Sumatoshi-tech/issuetrend/pkg/persist"
)

// DefaultPrefix namespaces all keys.
const DefaultPrefix = "issuetrend"

const pingTimeout = 5 * time.Second

// Client is the subset of the go-redis API the store uses. *redis.Client
// satisfies it.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	ZRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
}

// Options configures the connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Store is a history.Store backed by Redis.
type Store struct {
	client Client
	closer func() error
	prefix string
	codec  persist.Codec
}

// Dial connects to Redis and checks the connection.
func Dial(ctx context.Context, opts Options) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:       opts.Addr,
		Password:   opts.Password,
		DB:         opts.DB,
		MaxRetries: 3,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()

		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	s := New(client, opts.Prefix)
	s.closer = client.Close

	return s, nil
}

// New wraps an existing client. An empty prefix uses DefaultPrefix.
func New(client Client, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}

	return &Store{client: client, prefix: prefix, codec: &persist.JSONCodec{}}
}

func (s *Store) recordKey(id build.ID) string {
	return fmt.Sprintf("%s:build:%d", s.prefix, id)
}

func (s *Store) indexKey() string {
	return s.prefix + ":builds"
}

// Save implements history.Store. The record is written before the index so
// that an indexed id always has a record.
func (s *Store) Save(ctx context.Context, result *build.Result) error {
	data, err := persist.Marshal(s.codec, result)
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, s.recordKey(result.BuildID), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}

	member := redis.Z{Score: float64(result.BuildID), Member: strconv.FormatInt(result.BuildID, 10)}
	if err := s.client.ZAdd(ctx, s.indexKey(), member).Err(); err != nil {
		return fmt.Errorf("redis zadd: %w", err)
	}

	return nil
}

// Load implements history.Loader.
func (s *Store) Load(ctx context.Context, id build.ID) (*build.Result, error) {
	data, err := s.client.Get(ctx, s.recordKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %d", history.ErrNotFound, id)
	}

	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var r build.Result

	if err := persist.Unmarshal(s.codec, data, &r); err != nil {
		return nil, fmt.Errorf("%w: build %d: %w", history.ErrCorrupt, id, err)
	}

	if err := history.Verify(id, &r); err != nil {
		return nil, err
	}

	return &r, nil
}

// IDs implements history.Store.
func (s *Store) IDs(ctx context.Context) ([]build.ID, error) {
	members, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrange: %w", err)
	}

	ids := make([]build.ID, 0, len(members))

	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: index member %q", history.ErrCorrupt, m)
		}

		ids = append(ids, id)
	}

	return ids, nil
}

// Close closes the connection when the store owns it.
func (s *Store) Close() error {
	if s.closer == nil {
		return nil
	}

	return s.closer()
}
