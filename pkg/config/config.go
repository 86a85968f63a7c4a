package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/Sumatoshi-tech/issuetrend/pkg/health"
	"github.com/Sumatoshi-tech/issuetrend/pkg/history"
	"github.com/Sumatoshi-tech/issuetrend/pkg/issue"
	"github.com/Sumatoshi-tech/issuetrend/pkg/observability"
	"github.com/Sumatoshi-tech/issuetrend/pkg/recorder"
	"github.com/Sumatoshi-tech/issuetrend/pkg/store"
)

// Sentinel validation errors.
var (
	ErrInvalidContextLines = errors.New("fingerprint context lines must not be negative")
	ErrInvalidMaxDepth     = errors.New("history max depth must be positive")
	ErrInvalidTrendLength  = errors.New("history trend length must be positive")
	ErrInvalidWorkers      = errors.New("blame workers must be positive")
	ErrInvalidSampleRatio  = errors.New("sample ratio must be within [0, 1]")
	ErrInvalidLogLevel     = errors.New("unknown log level")
)

// allSeverities names a gate that counts every severity.
const allSeverities = "all"

// Config is the top-level configuration. Field tags use mapstructure for
// viper unmarshalling.
type Config struct {
	Health        HealthConfig        `mapstructure:"health"`
	QualityGates  []GateConfig        `mapstructure:"quality_gates"`
	Fingerprint   FingerprintConfig   `mapstructure:"fingerprint"`
	History       HistoryConfig       `mapstructure:"history"`
	Blame         BlameConfig         `mapstructure:"blame"`
	Filter        FilterConfig        `mapstructure:"filter"`
	Store         store.Config        `mapstructure:"store"`
	Notify        NotifyConfig        `mapstructure:"notify"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// HealthConfig holds the health percentage settings.
type HealthConfig struct {
	Enabled         bool           `mapstructure:"enabled"`
	Healthy         int            `mapstructure:"healthy"`
	Unhealthy       int            `mapstructure:"unhealthy"`
	MinimumSeverity string         `mapstructure:"minimum_severity"`
	Weights         map[string]int `mapstructure:"weights"`
}

// GateConfig holds one quality gate.
type GateConfig struct {
	// Scope is "total" or "new".
	Scope string `mapstructure:"scope"`
	// Severity is a severity name or "all".
	Severity  string `mapstructure:"severity"`
	Threshold int    `mapstructure:"threshold"`
	// Result is "unstable" or "failure".
	Result string `mapstructure:"result"`
}

// FingerprintConfig holds fingerprinting settings.
type FingerprintConfig struct {
	ContextLines int    `mapstructure:"context_lines"`
	SourceRoot   string `mapstructure:"source_root"`
	// MaxFileSize is a human readable size such as "1MiB".
	MaxFileSize string `mapstructure:"max_file_size"`
}

// HistoryConfig holds reference selection and trend settings.
type HistoryConfig struct {
	Policy       string `mapstructure:"policy"`
	MaxDepth     int    `mapstructure:"max_depth"`
	CacheEntries int    `mapstructure:"cache_entries"`
	TrendLength  int    `mapstructure:"trend_length"`
}

// BlameConfig holds git blame settings.
type BlameConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Repository string `mapstructure:"repository"`
	Prefix     string `mapstructure:"prefix"`
	Workers    int    `mapstructure:"workers"`
}

// FilterConfig holds path exclusion settings.
type FilterConfig struct {
	Vendored bool     `mapstructure:"vendored"`
	Exclude  []string `mapstructure:"exclude"`
}

// NotifyConfig holds event publishing settings. An empty URL disables events.
type NotifyConfig struct {
	NATSURL string `mapstructure:"nats_url"`
	Subject string `mapstructure:"subject"`
}

// ObservabilityConfig holds telemetry and logging settings.
type ObservabilityConfig struct {
	Environment     string  `mapstructure:"environment"`
	OTLPEndpoint    string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders     string  `mapstructure:"otlp_headers"`
	OTLPInsecure    bool    `mapstructure:"otlp_insecure"`
	SampleRatio     float64 `mapstructure:"sample_ratio"`
	LogLevel        string  `mapstructure:"log_level"`
	LogJSON         bool    `mapstructure:"log_json"`
	MetricsTextfile string  `mapstructure:"metrics_textfile"`
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error

	if _, err := c.Thresholds(); err != nil {
		errs = append(errs, err)
	}

	if c.Fingerprint.ContextLines < 0 {
		errs = append(errs, fmt.Errorf("%w: %d", ErrInvalidContextLines, c.Fingerprint.ContextLines))
	}

	if _, err := c.MaxFileSize(); err != nil {
		errs = append(errs, err)
	}

	if _, err := history.ParsePolicy(c.History.Policy); err != nil {
		errs = append(errs, err)
	}

	if c.History.MaxDepth <= 0 {
		errs = append(errs, fmt.Errorf("%w: %d", ErrInvalidMaxDepth, c.History.MaxDepth))
	}

	if c.History.TrendLength <= 0 {
		errs = append(errs, fmt.Errorf("%w: %d", ErrInvalidTrendLength, c.History.TrendLength))
	}

	if c.Blame.Enabled && c.Blame.Workers <= 0 {
		errs = append(errs, fmt.Errorf("%w: %d", ErrInvalidWorkers, c.Blame.Workers))
	}

	if err := c.Filter.recorderFilter().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("filter: %w", err))
	}

	if err := c.Store.Validate(); err != nil {
		errs = append(errs, err)
	}

	if c.Observability.SampleRatio < 0 || c.Observability.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("%w: %v", ErrInvalidSampleRatio, c.Observability.SampleRatio))
	}

	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Thresholds converts the health and quality gate sections.
func (c *Config) Thresholds() (health.Thresholds, error) {
	var t health.Thresholds

	if c.Health.Enabled {
		t.Health = &health.Range{Healthy: c.Health.Healthy, Unhealthy: c.Health.Unhealthy}
	}

	if c.Health.MinimumSeverity != "" {
		sev, err := issue.ParseSeverity(c.Health.MinimumSeverity)
		if err != nil {
			return t, fmt.Errorf("health.minimum_severity: %w", err)
		}

		t.MinimumSeverity = sev
	}

	if len(c.Health.Weights) > 0 {
		t.Weights = make(map[issue.Severity]int, len(c.Health.Weights))

		for name, w := range c.Health.Weights {
			sev, err := issue.ParseSeverity(name)
			if err != nil {
				return t, fmt.Errorf("health.weights: %w", err)
			}

			t.Weights[sev] = w
		}
	}

	for idx, gc := range c.QualityGates {
		g, err := gc.gate()
		if err != nil {
			return t, fmt.Errorf("quality_gates[%d]: %w", idx, err)
		}

		t.Gates = append(t.Gates, g)
	}

	if err := t.Validate(); err != nil {
		return t, err
	}

	return t, nil
}

func (gc GateConfig) gate() (health.Gate, error) {
	g := health.Gate{
		Scope:     health.Scope(strings.ToLower(strings.TrimSpace(gc.Scope))),
		Threshold: gc.Threshold,
	}

	if g.Scope == "" {
		g.Scope = health.ScopeTotal
	}

	if sev := strings.TrimSpace(gc.Severity); sev != "" && !strings.EqualFold(sev, allSeverities) {
		parsed, err := issue.ParseSeverity(sev)
		if err != nil {
			return g, err
		}

		g.Severity = parsed
	}

	result, err := health.ParseStatus(gc.Result)
	if err != nil {
		return g, err
	}

	g.Result = result

	return g, nil
}

// MaxFileSize parses the fingerprint file size limit.
func (c *Config) MaxFileSize() (int64, error) {
	size, err := humanize.ParseBytes(c.Fingerprint.MaxFileSize)
	if err != nil {
		return 0, fmt.Errorf("fingerprint.max_file_size: %w", err)
	}

	return int64(size), nil
}

// Policy returns the parsed reference policy.
func (c *Config) Policy() history.Policy {
	p, err := history.ParsePolicy(c.History.Policy)
	if err != nil {
		return history.PolicyPrevious
	}

	return p
}

// PathFilter returns the recorder path filter.
func (c *Config) PathFilter() recorder.Filter {
	return c.Filter.recorderFilter()
}

func (f FilterConfig) recorderFilter() recorder.Filter {
	return recorder.Filter{Vendored: f.Vendored, Exclude: f.Exclude}
}

// LogLevel parses the configured log level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level

	if err := level.UnmarshalText([]byte(c.Observability.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Observability.LogLevel)
	}

	return level, nil
}

// Telemetry returns the observability settings for mode.
func (c *Config) Telemetry(mode observability.AppMode, version string) observability.Config {
	cfg := observability.DefaultConfig()
	cfg.ServiceVersion = version
	cfg.Environment = c.Observability.Environment
	cfg.Mode = mode
	cfg.OTLPEndpoint = c.Observability.OTLPEndpoint
	cfg.OTLPHeaders = observability.ParseOTLPHeaders(c.Observability.OTLPHeaders)
	cfg.OTLPInsecure = c.Observability.OTLPInsecure
	cfg.SampleRatio = c.Observability.SampleRatio
	cfg.Prometheus = c.Observability.MetricsTextfile != ""
	cfg.LogJSON = c.Observability.LogJSON

	if level, err := c.LogLevel(); err == nil {
		cfg.LogLevel = level
	}

	return cfg
}
