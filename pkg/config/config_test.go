package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/issuetrend/pkg/config"
	"github.com/Sumatoshi-tech/issuetrend/pkg/health"
	"github.com/Sumatoshi-tech/issuetrend/pkg/history"
	"github.com/Sumatoshi-tech/issuetrend/pkg/issue"
	"github.com/Sumatoshi-tech/issuetrend/pkg/observability"
	"github.com/Sumatoshi-tech/issuetrend/pkg/store"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "issuetrend.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.False(t, cfg.Health.Enabled)
	assert.Equal(t, config.DefaultFingerprintContextLines, cfg.Fingerprint.ContextLines)
	assert.Equal(t, history.PolicyPrevious, cfg.Policy())
	assert.Equal(t, history.DefaultMaxDepth, cfg.History.MaxDepth)
	assert.Equal(t, config.DefaultHistoryTrendLength, cfg.History.TrendLength)
	assert.True(t, cfg.Filter.Vendored)
	assert.Equal(t, store.BackendFile, cfg.Store.Backend)
	assert.Equal(t, store.DefaultDir, cfg.Store.File.Dir)

	size, err := cfg.MaxFileSize()
	require.NoError(t, err)
	assert.Equal(t, int64(1<<20), size)

	th, err := cfg.Thresholds()
	require.NoError(t, err)
	assert.Nil(t, th.Health)
	assert.Empty(t, th.Gates)
}

func TestLoadConfig_File(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
health:
  enabled: true
  healthy: 0
  unhealthy: 10
  minimum_severity: normal
  weights:
    error: 3
quality_gates:
  - scope: new
    severity: error
    threshold: 1
    result: failure
  - scope: total
    severity: all
    threshold: 50
    result: unstable
fingerprint:
  context_lines: 5
  max_file_size: 256KiB
history:
  policy: completed
  trend_length: 5
filter:
  vendored: false
  exclude: ["*_gen.go"]
store:
  backend: redis
  redis:
    addr: localhost:6379
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Fingerprint.ContextLines)
	assert.Equal(t, history.PolicyCompleted, cfg.Policy())
	assert.Equal(t, 5, cfg.History.TrendLength)
	assert.Equal(t, "localhost:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, "issuetrend", cfg.Store.Redis.Prefix)

	f := cfg.PathFilter()
	assert.False(t, f.Vendored)
	assert.Equal(t, []string{"*_gen.go"}, f.Exclude)

	size, err := cfg.MaxFileSize()
	require.NoError(t, err)
	assert.Equal(t, int64(256<<10), size)

	th, err := cfg.Thresholds()
	require.NoError(t, err)
	require.NotNil(t, th.Health)
	assert.Equal(t, health.Range{Healthy: 0, Unhealthy: 10}, *th.Health)
	assert.Equal(t, issue.SeverityNormal, th.MinimumSeverity)
	assert.Equal(t, map[issue.Severity]int{issue.SeverityError: 3}, th.Weights)
	assert.Equal(t, []health.Gate{
		{Scope: health.ScopeNew, Severity: issue.SeverityError, Threshold: 1, Result: health.StatusFailure},
		{Scope: health.ScopeTotal, Threshold: 50, Result: health.StatusUnstable},
	}, th.Gates)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("ISSUETREND_HISTORY_POLICY", "successful")
	t.Setenv("ISSUETREND_STORE_FILE_DIR", "/tmp/builds")
	t.Setenv("ISSUETREND_OBSERVABILITY_LOG_LEVEL", "debug")

	cfg, err := config.LoadConfig(writeConfig(t, "history:\n  policy: completed\n"))
	require.NoError(t, err)

	assert.Equal(t, history.PolicySuccessful, cfg.Policy())
	assert.Equal(t, "/tmp/builds", cfg.Store.File.Dir)

	obs := cfg.Telemetry(observability.ModeCLI, "v1.2.3")
	assert.Equal(t, "v1.2.3", obs.ServiceVersion)
	assert.Equal(t, observability.ModeCLI, obs.Mode)
	assert.Equal(t, "DEBUG", obs.LogLevel.String())
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		wantErr error
	}{
		{"context lines", "fingerprint:\n  context_lines: -1\n", config.ErrInvalidContextLines},
		{"policy", "history:\n  policy: newest\n", history.ErrUnknownPolicy},
		{"trend length", "history:\n  trend_length: 0\n", config.ErrInvalidTrendLength},
		{"inverted range", "health:\n  enabled: true\n  healthy: 9\n  unhealthy: 1\n", health.ErrInvertedRange},
		{"gate result", "quality_gates:\n  - threshold: 1\n    result: success\n", health.ErrGateResult},
		{"gate severity", "quality_gates:\n  - severity: fatal\n    threshold: 1\n    result: failure\n", issue.ErrUnknownSeverity},
		{"backend", "store:\n  backend: floppy\n", store.ErrUnknownBackend},
		{"sample ratio", "observability:\n  sample_ratio: 2\n", config.ErrInvalidSampleRatio},
		{"log level", "observability:\n  log_level: loud\n", config.ErrInvalidLogLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := config.LoadConfig(writeConfig(t, tt.body))
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("ISSUETREND_HISTORY_TREND_LENGTH=7\n"), 0o600))

	t.Setenv("ISSUETREND_HISTORY_TREND_LENGTH", "")
	require.NoError(t, os.Unsetenv("ISSUETREND_HISTORY_TREND_LENGTH"))

	require.NoError(t, config.LoadEnvFile(path))
	require.NoError(t, config.LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))

	cfg, err := config.LoadConfig(writeConfig(t, "{}\n"))
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.History.TrendLength)
}
