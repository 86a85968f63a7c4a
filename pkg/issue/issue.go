// Package issue defines the normalized static-analysis finding shared by every
// stage of build correlation.
package issue

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// Fingerprint is the stable cross-build identity of an issue.
type Fingerprint string

// Sentinel validation errors.
var (
	ErrEmptyFile       = errors.New("issue file must not be empty")
	ErrNegativeLine    = errors.New("issue line and column numbers must not be negative")
	ErrInvertedRange   = errors.New("issue line start must not exceed line end")
	ErrMissingSeverity = errors.New("issue severity must be set")
)

// Issue is one normalized finding. LineStart == 0 denotes a file-level issue.
type Issue struct {
	File        string      `json:"file"                   yaml:"file"`
	LineStart   int         `json:"line_start,omitempty"   yaml:"line_start,omitempty"`
	LineEnd     int         `json:"line_end,omitempty"     yaml:"line_end,omitempty"`
	ColumnStart int         `json:"column_start,omitempty" yaml:"column_start,omitempty"`
	ColumnEnd   int         `json:"column_end,omitempty"   yaml:"column_end,omitempty"`
	Severity    Severity    `json:"severity"               yaml:"severity"`
	Category    string      `json:"category,omitempty"     yaml:"category,omitempty"`
	Type        string      `json:"type,omitempty"         yaml:"type,omitempty"`
	Message     string      `json:"message,omitempty"      yaml:"message,omitempty"`
	ModuleName  string      `json:"module_name,omitempty"  yaml:"module_name,omitempty"`
	PackageName string      `json:"package_name,omitempty" yaml:"package_name,omitempty"`
	Fingerprint Fingerprint `json:"fingerprint,omitempty"  yaml:"fingerprint,omitempty"`

	// Occurrences counts the raw findings merged into this issue.
	Occurrences int `json:"occurrences,omitempty" yaml:"occurrences,omitempty"`
}

// Normalize returns a copy with a clean, forward-slash relative path and
// LineEnd defaulted to LineStart.
func (i Issue) Normalize() Issue {
	out := i
	out.File = NormalizePath(i.File)

	if out.LineEnd == 0 && out.LineStart > 0 {
		out.LineEnd = out.LineStart
	}

	return out
}

// NormalizePath converts separators to '/', cleans the path and strips a leading "./".
func NormalizePath(file string) string {
	if file == "" {
		return ""
	}

	cleaned := path.Clean(strings.ReplaceAll(file, `\`, "/"))

	return strings.TrimPrefix(cleaned, "./")
}

// Validate checks the structural invariants of the issue.
func (i Issue) Validate() error {
	if strings.TrimSpace(i.File) == "" {
		return ErrEmptyFile
	}

	if i.LineStart < 0 || i.LineEnd < 0 || i.ColumnStart < 0 || i.ColumnEnd < 0 {
		return ErrNegativeLine
	}

	if i.LineStart > 0 && i.LineEnd > 0 && i.LineStart > i.LineEnd {
		return fmt.Errorf("%w: %d > %d", ErrInvertedRange, i.LineStart, i.LineEnd)
	}

	if i.Severity == 0 {
		return ErrMissingSeverity
	}

	if !i.Severity.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownSeverity, int(i.Severity))
	}

	return nil
}

// FileLevel reports whether the issue has no line information.
func (i Issue) FileLevel() bool {
	return i.LineStart == 0
}

// Location renders "file:line" or just "file" for file-level issues.
func (i Issue) Location() string {
	if i.FileLevel() {
		return i.File
	}

	return fmt.Sprintf("%s:%d", i.File, i.LineStart)
}
