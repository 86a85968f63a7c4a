// Package source reads raw findings produced by analysis tools.
package source

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/Sumatoshi-tech/issuetrend/pkg/issue"
)

// StdinName selects standard input as a report path.
const StdinName = "-"

// ErrInvalidReport is returned when a report does not match the report schema.
var ErrInvalidReport = errors.New("invalid report")

//go:embed report-schema.json
var reportSchema []byte

var schemaLoader = gojsonschema.NewBytesLoader(reportSchema)

// Source yields the raw findings of one build.
type Source interface {
	Issues(ctx context.Context) ([]issue.Issue, error)
}

// Report is the normalized report document.
type Report struct {
	Tool   string        `json:"tool,omitempty"`
	Issues []issue.Issue `json:"issues"`
}

// ReadReport decodes a report after checking it against the embedded schema.
// The schema only checks shape; per-issue semantics are left to the recorder
// so that one bad finding does not discard the rest.
func ReadReport(r io.Reader) (*Report, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidReport, err)
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, verr := range result.Errors() {
			msgs = append(msgs, fmt.Sprintf("%s: %s", verr.Field(), verr.Description()))
		}

		return nil, fmt.Errorf("%w: %s", ErrInvalidReport, strings.Join(msgs, "; "))
	}

	var report Report

	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidReport, err)
	}

	return &report, nil
}

// JSONReport reads a report file, or standard input for StdinName.
type JSONReport struct {
	Path string
}

// Issues implements Source.
func (s JSONReport) Issues(ctx context.Context) ([]issue.Issue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var in io.Reader = os.Stdin

	if s.Path != StdinName {
		f, err := os.Open(s.Path)
		if err != nil {
			return nil, fmt.Errorf("open report: %w", err)
		}
		defer f.Close()

		in = f
	}

	report, err := ReadReport(in)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Path, err)
	}

	return report.Issues, nil
}

// Multi concatenates the findings of several sources in order.
type Multi []Source

// Issues implements Source.
func (m Multi) Issues(ctx context.Context) ([]issue.Issue, error) {
	var all []issue.Issue

	for _, src := range m {
		issues, err := src.Issues(ctx)
		if err != nil {
			return nil, err
		}

		all = append(all, issues...)
	}

	return all, nil
}
