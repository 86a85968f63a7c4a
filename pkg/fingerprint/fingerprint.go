// Package fingerprint derives stable cross-build identities for issues from
// their location and the source text around it.
package fingerprint

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"

	"github.com/Sumatoshi-tech/issuetrend/pkg/issue"
)

// DefaultContextLines is the number of lines hashed on each side of the issue line.
const DefaultContextLines = 3

// binarySniffLength is how many leading bytes are checked for NUL when
// deciding whether content is binary.
const binarySniffLength = 8000

// Hash domains keep context-based and fallback fingerprints from colliding.
const (
	domainContext  = "ctx"
	domainFallback = "msg"
)

// fieldSeparator delimits hashed fields.
var fieldSeparator = []byte{0}

// Stats summarizes one Assign call.
type Stats struct {
	Files           int `json:"files"`
	ContextHits     int `json:"context_hits"`
	Fallbacks       int `json:"fallbacks"`
	UnreadableFiles int `json:"unreadable_files"`
}

// Fingerprinter computes fingerprints. It holds no state between calls and is
// safe for concurrent use.
type Fingerprinter struct {
	source       ContextSource
	logger       *slog.Logger
	contextLines int
}

// Option configures a Fingerprinter.
type Option func(*Fingerprinter)

// WithContextLines sets the window half-width. Negative values are ignored.
func WithContextLines(n int) Option {
	return func(f *Fingerprinter) {
		if n >= 0 {
			f.contextLines = n
		}
	}
}

// WithLogger sets the logger used for degraded-context events.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fingerprinter) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// New creates a Fingerprinter. A nil source forces the fallback scheme for every issue.
func New(source ContextSource, opts ...Option) *Fingerprinter {
	fp := &Fingerprinter{
		source:       source,
		logger:       slog.Default(),
		contextLines: DefaultContextLines,
	}

	for _, opt := range opts {
		opt(fp)
	}

	return fp
}

// Fingerprint computes the identity of i given the lines of its file. A nil
// lines slice, a file-level issue, or a line past EOF selects the fallback.
// The context fingerprint ignores message and columns, so findings of one
// type on the same line share an identity.
func (f *Fingerprinter) Fingerprint(i issue.Issue, lines []string) issue.Fingerprint {
	fp, _ := f.fingerprint(i, lines)

	return fp
}

func (f *Fingerprinter) fingerprint(i issue.Issue, lines []string) (issue.Fingerprint, bool) {
	if i.LineStart <= 0 || lines == nil || i.LineStart > len(lines) {
		return fallback(i), false
	}

	digest := xxhash.New()
	writeFields(digest, domainContext, i.File, i.Type, i.Category)

	// The issue line is hashed first so that windows clamped at the file
	// edges still differ per line.
	first := max(i.LineStart-f.contextLines, 1)
	last := min(i.LineStart+f.contextLines, len(lines))

	writeLines(digest, lines[i.LineStart-1:i.LineStart])
	writeLines(digest, lines[first-1:i.LineStart-1])
	writeLines(digest, lines[i.LineStart:last])

	return format(digest.Sum64()), true
}

func writeLines(digest *xxhash.Digest, lines []string) {
	for _, line := range lines {
		_, _ = digest.WriteString(squashSpace(line))
		_, _ = digest.Write([]byte{'\n'})
	}

	_, _ = digest.Write(fieldSeparator)
}

// Assign returns copies of issues with fingerprints set. Each distinct file is
// read at most once. Unreadable files degrade to the fallback silently.
func (f *Fingerprinter) Assign(ctx context.Context, issues []issue.Issue) ([]issue.Issue, Stats) {
	var stats Stats

	files := make(map[string][]string)
	out := make([]issue.Issue, len(issues))

	for idx, i := range issues {
		lines, seen := files[i.File]
		if !seen && !i.FileLevel() {
			lines = f.load(ctx, i.File, &stats)
			files[i.File] = lines
		}

		fp, fromContext := f.fingerprint(i, lines)
		if fromContext {
			stats.ContextHits++
		} else {
			stats.Fallbacks++
		}

		i.Fingerprint = fp
		out[idx] = i
	}

	return out, stats
}

func (f *Fingerprinter) load(ctx context.Context, file string, stats *Stats) []string {
	if f.source == nil {
		return nil
	}

	stats.Files++

	data, err := f.source.ReadFile(file)
	if err != nil {
		stats.UnreadableFiles++
		f.logger.DebugContext(ctx, "fingerprint context unavailable", "file", file, "error", err)

		return nil
	}

	if isBinary(data) {
		stats.UnreadableFiles++
		f.logger.DebugContext(ctx, "fingerprint context is binary", "file", file)

		return nil
	}

	return SplitLines(data)
}

// SplitLines splits content on '\n', trimming a trailing '\r' from each line.
// A trailing newline does not produce an extra empty line.
func SplitLines(data []byte) []string {
	if len(data) == 0 {
		return []string{}
	}

	text := strings.TrimSuffix(string(data), "\n")
	lines := strings.Split(text, "\n")

	for idx, line := range lines {
		lines[idx] = strings.TrimSuffix(line, "\r")
	}

	return lines
}

func fallback(i issue.Issue) issue.Fingerprint {
	digest := xxhash.New()
	writeFields(digest, domainFallback, i.File, i.Type, i.Category, i.Message)

	return format(digest.Sum64())
}

func writeFields(digest *xxhash.Digest, fields ...string) {
	for _, field := range fields {
		_, _ = digest.WriteString(field)
		_, _ = digest.Write(fieldSeparator)
	}
}

func format(sum uint64) issue.Fingerprint {
	return issue.Fingerprint(fmt.Sprintf("%016x", sum))
}

func squashSpace(line string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}

		return r
	}, line)
}

func isBinary(data []byte) bool {
	sniff := data
	if len(sniff) > binarySniffLength {
		sniff = sniff[:binarySniffLength]
	}

	return bytes.IndexByte(sniff, 0) >= 0
}
