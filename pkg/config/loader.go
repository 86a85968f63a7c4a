package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/issuetrend/pkg/store/pgstore"
	"github.com/Sumatoshi-tech/issuetrend/pkg/store/redisstore"
)

// configName is the config file name without extension.
const configName = ".issuetrend"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for issuetrend settings.
const envPrefix = "ISSUETREND"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// LoadConfig loads configuration from file, env vars, and defaults.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise, the config file is searched in CWD and $HOME.
// Missing config file is not an error; defaults are used.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

// LoadEnvFile exports the variables of a dotenv file that are not already
// set. An empty path or a missing file is ignored.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}

	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load env file %s: %w", path, err)
	}

	return nil
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("health.enabled", DefaultHealthEnabled)
	viperCfg.SetDefault("health.healthy", DefaultHealthHealthy)
	viperCfg.SetDefault("health.unhealthy", DefaultHealthUnhealthy)
	viperCfg.SetDefault("health.minimum_severity", "")

	viperCfg.SetDefault("fingerprint.context_lines", DefaultFingerprintContextLines)
	viperCfg.SetDefault("fingerprint.source_root", DefaultFingerprintSourceRoot)
	viperCfg.SetDefault("fingerprint.max_file_size", DefaultFingerprintMaxFileSize)

	viperCfg.SetDefault("history.policy", DefaultHistoryPolicy)
	viperCfg.SetDefault("history.max_depth", DefaultHistoryMaxDepth)
	viperCfg.SetDefault("history.cache_entries", DefaultHistoryCacheEntries)
	viperCfg.SetDefault("history.trend_length", DefaultHistoryTrendLength)

	viperCfg.SetDefault("blame.enabled", DefaultBlameEnabled)
	viperCfg.SetDefault("blame.repository", DefaultBlameRepository)
	viperCfg.SetDefault("blame.prefix", "")
	viperCfg.SetDefault("blame.workers", DefaultBlameWorkers)

	viperCfg.SetDefault("filter.vendored", DefaultFilterVendored)
	viperCfg.SetDefault("filter.exclude", []string{})

	viperCfg.SetDefault("store.backend", DefaultStoreBackend)
	viperCfg.SetDefault("store.file.dir", DefaultStoreDir)
	viperCfg.SetDefault("store.file.compress", false)
	viperCfg.SetDefault("store.redis.addr", "")
	viperCfg.SetDefault("store.redis.password", "")
	viperCfg.SetDefault("store.redis.db", 0)
	viperCfg.SetDefault("store.redis.prefix", redisstore.DefaultPrefix)
	viperCfg.SetDefault("store.postgres.dsn", "")
	viperCfg.SetDefault("store.postgres.table", pgstore.DefaultTable)
	viperCfg.SetDefault("store.s3.bucket", "")
	viperCfg.SetDefault("store.s3.prefix", "")
	viperCfg.SetDefault("store.s3.region", "")
	viperCfg.SetDefault("store.s3.endpoint", "")
	viperCfg.SetDefault("store.s3.access_key_id", "")
	viperCfg.SetDefault("store.s3.secret_access_key", "")
	viperCfg.SetDefault("store.s3.use_path_style", false)

	viperCfg.SetDefault("notify.nats_url", "")
	viperCfg.SetDefault("notify.subject", DefaultNotifySubject)

	viperCfg.SetDefault("observability.environment", "")
	viperCfg.SetDefault("observability.otlp_endpoint", "")
	viperCfg.SetDefault("observability.otlp_headers", "")
	viperCfg.SetDefault("observability.otlp_insecure", false)
	viperCfg.SetDefault("observability.sample_ratio", DefaultSampleRatio)
	viperCfg.SetDefault("observability.log_level", DefaultLogLevel)
	viperCfg.SetDefault("observability.log_json", false)
	viperCfg.SetDefault("observability.metrics_textfile", "")
}
