package commands_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/issuetrend/cmd/issuetrend/commands"
	"github.com/Sumatoshi-tech/issuetrend/pkg/report"
)

// workspace is a source tree, a build store and a config pointing at both.
type workspace struct {
	dir  string
	opts *commands.Options
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()

	dir := t.TempDir()
	src := filepath.Join(dir, "src")

	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.go"),
		[]byte("package a\n\nvar x = 1\n\nfunc A() {}\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(src, "b.go"),
		[]byte("package a\n\nfunc B() { panic(nil) }\n"), 0o600))

	cfg := fmt.Sprintf(`fingerprint:
  source_root: %q
store:
  backend: file
  file:
    dir: %q
quality_gates:
  - scope: new
    severity: error
    threshold: 1
    result: failure
observability:
  log_level: error
`, src, filepath.Join(dir, "builds"))

	cfgPath := filepath.Join(dir, "issuetrend.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))

	return &workspace{dir: dir, opts: &commands.Options{ConfigPath: cfgPath}}
}

// report writes an issue report and returns its path.
func (w *workspace) report(t *testing.T, name, body string) string {
	t.Helper()

	path := filepath.Join(w.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

func run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())

	return out.String(), err
}

const (
	firstReport = `{"tool": "vet", "issues": [
  {"file": "a.go", "line_start": 3, "severity": "high", "type": "unused", "message": "x is unused"}
]}`

	secondReport = `{"tool": "vet", "issues": [
  {"file": "a.go", "line_start": 3, "severity": "high", "type": "unused", "message": "x is unused"},
  {"file": "b.go", "line_start": 3, "severity": "error", "type": "panic", "message": "panic with nil"}
]}`
)

func decodeDocument(t *testing.T, out string) report.Document {
	t.Helper()

	var doc report.Document
	require.NoError(t, json.Unmarshal([]byte(out), &doc), out)

	return doc
}

func TestRecord_ClassifiesAcrossBuilds(t *testing.T) {
	t.Parallel()

	w := newWorkspace(t)

	out, err := run(t, commands.NewRecordCommand(w.opts),
		"--build", "1", "--report", w.report(t, "r1.json", firstReport), "--format", "json")
	require.NoError(t, err)

	first := decodeDocument(t, out)
	assert.Equal(t, report.Counts{Total: 1, New: 1}, first.Counts)
	assert.Equal(t, "SUCCESS", first.Status)

	out, err = run(t, commands.NewRecordCommand(w.opts),
		"--build", "2", "--report", w.report(t, "r2.json", secondReport), "--format", "json")
	require.NoError(t, err)

	second := decodeDocument(t, out)
	assert.Equal(t, report.Counts{Total: 2, New: 1, Outstanding: 1}, second.Counts)
	assert.Equal(t, "FAILURE", second.Status)
	require.NotNil(t, second.Reference)
	assert.Equal(t, int64(1), *second.Reference)
	require.Len(t, second.New, 1)
	assert.Equal(t, "ERROR", second.New[0].Severity)

	out, err = run(t, commands.NewRecordCommand(w.opts),
		"--build", "3", "--report", w.report(t, "r3.json", `{"issues": []}`), "--format", "json")
	require.NoError(t, err)

	third := decodeDocument(t, out)
	assert.Equal(t, 2, third.Counts.Fixed)
	assert.Equal(t, "SUCCESS", third.Status)
}

func TestRecord_FailOnStatus(t *testing.T) {
	t.Parallel()

	w := newWorkspace(t)

	_, err := run(t, commands.NewRecordCommand(w.opts),
		"--build", "1", "--report", w.report(t, "r.json", secondReport), "--fail-on-status", "--no-color")
	require.Error(t, err)

	var exitErr *commands.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, commands.ExitFailure, exitErr.Code)
	assert.Contains(t, err.Error(), "FAILURE")
}

func TestRecord_TextSummary(t *testing.T) {
	t.Parallel()

	w := newWorkspace(t)

	out, err := run(t, commands.NewRecordCommand(w.opts),
		"--build", "1", "--report", w.report(t, "r.json", firstReport), "--no-color")
	require.NoError(t, err)
	assert.Contains(t, out, "SUCCESS")
	assert.Contains(t, out, "x is unused")
	assert.NotContains(t, out, "\x1b[")
}

func TestRecord_MetricsTextfile(t *testing.T) {
	t.Parallel()

	w := newWorkspace(t)
	textfile := filepath.Join(w.dir, "issuetrend.prom")

	_, err := run(t, commands.NewRecordCommand(w.opts),
		"--build", "1", "--report", w.report(t, "r.json", firstReport),
		"--metrics-textfile", textfile, "--format", "json")
	require.NoError(t, err)

	data, err := os.ReadFile(textfile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "issuetrend_builds")
}

func TestRecord_InvalidInput(t *testing.T) {
	t.Parallel()

	w := newWorkspace(t)

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"missing build", []string{"--report", w.report(t, "ok.json", firstReport)}, "build"},
		{"bad outcome", []string{"--build", "1", "--outcome", "exploded"}, "unknown build outcome"},
		{"bad format", []string{"--build", "1", "--format", "xml"}, "unknown output format"},
		{"bad report", []string{"--build", "1", "--report", w.report(t, "bad.json", `{"issues": [{"file": "a.go"}]}`)}, "severity"},
		{"zero build", []string{"--build", "0", "--report", w.report(t, "zero.json", firstReport)}, "build id must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := run(t, commands.NewRecordCommand(w.opts), tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestShow(t *testing.T) {
	t.Parallel()

	w := newWorkspace(t)

	_, err := run(t, commands.NewShowCommand(w.opts), "--format", "json")
	require.ErrorIs(t, err, commands.ErrNoBuilds)

	for id, body := range []string{firstReport, secondReport} {
		_, err = run(t, commands.NewRecordCommand(w.opts), "--build", fmt.Sprint(id+1),
			"--report", w.report(t, fmt.Sprintf("r%d.json", id), body), "--format", "json")
		require.NoError(t, err)
	}

	out, err := run(t, commands.NewShowCommand(w.opts), "--format", "json")
	require.NoError(t, err)
	assert.Equal(t, int64(2), decodeDocument(t, out).BuildID)

	out, err = run(t, commands.NewShowCommand(w.opts), "1", "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "build_id: 1")

	_, err = run(t, commands.NewShowCommand(w.opts), "abc")
	require.Error(t, err)

	_, err = run(t, commands.NewShowCommand(w.opts), "9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "build 9")
}

func TestTrend(t *testing.T) {
	t.Parallel()

	w := newWorkspace(t)

	for id, body := range []string{firstReport, secondReport, `{"issues": []}`} {
		_, err := run(t, commands.NewRecordCommand(w.opts), "--build", fmt.Sprint(id+1),
			"--report", w.report(t, fmt.Sprintf("r%d.json", id), body), "--format", "json")
		require.NoError(t, err)
	}

	out, err := run(t, commands.NewTrendCommand(w.opts), "--format", "json")
	require.NoError(t, err)

	var trend report.Trend
	require.NoError(t, json.Unmarshal([]byte(out), &trend))
	require.Len(t, trend.Points, 3)
	assert.Equal(t, []int{1, 2, 0}, []int{trend.Points[0].Issues, trend.Points[1].Issues, trend.Points[2].Issues})
	assert.Equal(t, 2, trend.Summary.TotalFixed)

	out, err = run(t, commands.NewTrendCommand(w.opts), "--length", "2", "--head", "2", "--no-color")
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, "#1") && strings.Contains(out, "#2"), out)
}

func TestMCPCommand_Flags(t *testing.T) {
	t.Parallel()

	cmd := commands.NewMCPCommand(&commands.Options{})
	assert.Equal(t, "mcp", cmd.Use)
	assert.NotEmpty(t, cmd.Long)

	flag := cmd.Flags().Lookup("debug")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}

func TestOptions_Bind(t *testing.T) {
	t.Parallel()

	opts := &commands.Options{}
	root := &cobra.Command{Use: "root"}
	opts.Bind(root.PersistentFlags())

	require.NoError(t, root.PersistentFlags().Parse([]string{"--config", "x.yaml", "--env-file", "ci.env"}))
	assert.Equal(t, "x.yaml", opts.ConfigPath)
	assert.Equal(t, "ci.env", opts.EnvFile)
}
