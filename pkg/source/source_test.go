package source_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/issuetrend/pkg/issue"
	"github.com/Sumatoshi-tech/issuetrend/pkg/source"
)

const validReport = `{
  "tool": "vet",
  "issues": [
    {"file": "a.go", "line_start": 3, "severity": "HIGH", "type": "shadow", "message": "x shadows"},
    {"file": "b.go", "severity": "low"}
  ]
}`

func TestReadReport(t *testing.T) {
	t.Parallel()

	report, err := source.ReadReport(strings.NewReader(validReport))
	require.NoError(t, err)

	assert.Equal(t, "vet", report.Tool)
	require.Len(t, report.Issues, 2)
	assert.Equal(t, issue.Issue{File: "a.go", LineStart: 3, Severity: issue.SeverityHigh, Type: "shadow", Message: "x shadows"}, report.Issues[0])
	assert.Equal(t, issue.SeverityLow, report.Issues[1].Severity)
}

func TestReadReport_SchemaViolations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"missing issues", `{}`, "issues"},
		{"wrong line type", `{"issues":[{"file":"a.go","severity":"HIGH","line_start":"7"}]}`, "line_start"},
		{"unknown severity", `{"issues":[{"file":"a.go","severity":"fatal"}]}`, "severity"},
		{"missing file", `{"issues":[{"severity":"LOW"}]}`, "file"},
		{"not json", `issues:`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := source.ReadReport(strings.NewReader(tt.input))
			require.ErrorIs(t, err, source.ErrInvalidReport)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestReadReport_KeepsSemanticallyBadIssues(t *testing.T) {
	t.Parallel()

	report, err := source.ReadReport(strings.NewReader(`{"issues":[{"file":"a.go","severity":"LOW","line_start":9,"line_end":2}]}`))
	require.NoError(t, err)
	require.Len(t, report.Issues, 1)
	require.Error(t, report.Issues[0].Validate())
}

func TestJSONReport_AndMulti(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	first := filepath.Join(dir, "first.json")
	second := filepath.Join(dir, "second.json")

	require.NoError(t, os.WriteFile(first, []byte(validReport), 0o600))
	require.NoError(t, os.WriteFile(second, []byte(`{"issues":[{"file":"c.go","severity":"ERROR"}]}`), 0o600))

	issues, err := source.Multi{source.JSONReport{Path: first}, source.JSONReport{Path: second}}.Issues(context.Background())
	require.NoError(t, err)
	require.Len(t, issues, 3)
	assert.Equal(t, "c.go", issues[2].File)

	_, err = source.JSONReport{Path: filepath.Join(dir, "missing.json")}.Issues(context.Background())
	require.ErrorIs(t, err, os.ErrNotExist)
}
