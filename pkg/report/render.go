package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/issuetrend/pkg/build"
	"github.com/Sumatoshi-tech/issuetrend/pkg/health"
	"github.com/Sumatoshi-tech/issuetrend/pkg/history"
)

// Format is an output encoding.
type Format string

// Supported formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ErrUnknownFormat is returned for an unsupported output format.
var ErrUnknownFormat = errors.New("unknown output format")

// ParseFormat parses a format name. Empty means text.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// Options tunes text rendering.
type Options struct {
	// MaxRows caps the rows of each issue table. Zero shows all rows.
	MaxRows int
	// Color enables ANSI colors in text output.
	Color bool
}

// WriteBuild renders doc in format.
func WriteBuild(w io.Writer, format Format, doc *Document, opts Options) error {
	switch format {
	case FormatJSON:
		return encodeJSON(w, doc)
	case FormatYAML:
		return encodeYAML(w, doc)
	case FormatText, "":
		return writeBuildText(w, doc, opts)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// Trend is the rendered view of a trend series.
type Trend struct {
	Points  []build.Point   `json:"points"  yaml:"points"`
	Summary history.Summary `json:"summary" yaml:"summary"`
}

// WriteTrend renders trend in format.
func WriteTrend(w io.Writer, format Format, trend Trend, opts Options) error {
	switch format {
	case FormatJSON:
		return encodeJSON(w, trend)
	case FormatYAML:
		return encodeYAML(w, trend)
	case FormatText, "":
		return writeTrendText(w, trend, opts)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("json encode: %w", err)
	}

	return nil
}

func encodeYAML(w io.Writer, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("yaml encode: %w", err)
	}

	_, err = w.Write(data)

	return err
}

func paint(opts Options, attr color.Attribute, text string) string {
	if !opts.Color {
		return text
	}

	c := color.New(attr)
	c.EnableColor()

	return c.Sprint(text)
}

func statusColor(status string) color.Attribute {
	switch status {
	case health.StatusFailure.String():
		return color.FgRed
	case health.StatusUnstable.String():
		return color.FgYellow
	default:
		return color.FgGreen
	}
}

func newTable() table.Writer {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateColumns = false

	return tbl
}

func writeBuildText(w io.Writer, doc *Document, opts Options) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Build #%d", doc.BuildID)

	if doc.Reference != nil {
		fmt.Fprintf(&sb, " (reference #%d)", *doc.Reference)
	}

	fmt.Fprintf(&sb, ": %s\n", paint(opts, statusColor(doc.Status), doc.Status))

	if doc.Health != nil {
		fmt.Fprintf(&sb, "Health: %d%%\n", *doc.Health)
	}

	if doc.Gate != "" {
		fmt.Fprintf(&sb, "Quality gate: %s\n", doc.Gate)
	}

	fmt.Fprintf(&sb, "Issues: %s total, %s new, %s fixed, %s outstanding\n",
		humanize.Comma(int64(doc.Counts.Total)),
		paint(opts, color.FgRed, humanize.Comma(int64(doc.Counts.New))),
		paint(opts, color.FgGreen, humanize.Comma(int64(doc.Counts.Fixed))),
		humanize.Comma(int64(doc.Counts.Outstanding)))

	if len(doc.Languages) > 0 {
		parts := make([]string, 0, len(doc.Languages))
		for _, lang := range sortedKeys(doc.Languages) {
			parts = append(parts, fmt.Sprintf("%s %d", lang, doc.Languages[lang]))
		}

		fmt.Fprintf(&sb, "Languages: %s\n", strings.Join(parts, ", "))
	}

	if len(doc.New) > 0 {
		sb.WriteString("\nNew issues:\n")
		sb.WriteString(entryTable(doc.New, opts.MaxRows, true))
		sb.WriteString("\n")
	}

	if len(doc.Fixed) > 0 {
		sb.WriteString("\nFixed issues:\n")
		sb.WriteString(entryTable(doc.Fixed, opts.MaxRows, false))
		sb.WriteString("\n")
	}

	if len(doc.Changed) > 0 {
		sb.WriteString("\nChanged issues:\n")

		tbl := newTable()
		tbl.AppendHeader(table.Row{"Location", "Severity", "Message"})

		for _, ch := range doc.Changed {
			sev := ch.Severity
			if ch.Previous != ch.Severity {
				sev = ch.Previous + " -> " + ch.Severity
			}

			tbl.AppendRow(table.Row{ch.Location, sev, ch.Diff})
		}

		sb.WriteString(tbl.Render())
		sb.WriteString("\n")
	}

	for _, msg := range doc.Errors {
		fmt.Fprintf(&sb, "%s %s\n", paint(opts, color.FgRed, "error:"), msg)
	}

	_, err := io.WriteString(w, sb.String())

	return err
}

func entryTable(entries []Entry, maxRows int, withAuthor bool) string {
	tbl := newTable()

	header := table.Row{"Severity", "Location", "Type", "Message"}
	if withAuthor {
		header = append(header, "Author")
	}

	tbl.AppendHeader(header)

	shown := entries
	if maxRows > 0 && len(shown) > maxRows {
		shown = shown[:maxRows]
	}

	for _, e := range shown {
		row := table.Row{e.Severity, e.Location, e.Type, e.Message}
		if withAuthor {
			row = append(row, e.Author)
		}

		tbl.AppendRow(row)
	}

	if len(shown) < len(entries) {
		tbl.AppendFooter(table.Row{fmt.Sprintf("... %d more", len(entries)-len(shown))})
	}

	return tbl.Render()
}

func writeTrendText(w io.Writer, trend Trend, opts Options) error {
	var sb strings.Builder

	points := trend.Points
	if opts.MaxRows > 0 && len(points) > opts.MaxRows {
		points = points[len(points)-opts.MaxRows:]
	}

	tbl := newTable()
	tbl.AppendHeader(table.Row{"Build", "Issues", "New", "Fixed", "Health"})

	for _, p := range points {
		healthCell := "-"
		if p.Health != nil {
			healthCell = fmt.Sprintf("%d%%", *p.Health)
		}

		tbl.AppendRow(table.Row{fmt.Sprintf("#%d", p.BuildID), p.Issues, p.New, p.Fixed, healthCell})
	}

	sb.WriteString(tbl.Render())
	sb.WriteString("\n\n")

	s := trend.Summary
	fmt.Fprintf(&sb, "Builds: %d (#%d .. #%d)\n", s.Builds, s.First, s.Last)
	fmt.Fprintf(&sb, "Issues: latest %d, mean %.1f, median %.1f, smoothed %.1f\n",
		s.LatestIssues, s.MeanIssues, s.MedianIssues, s.SmoothedIssues)

	direction := "stable"

	switch {
	case s.Slope > 0:
		direction = paint(opts, color.FgRed, "worsening")
	case s.Slope < 0:
		direction = paint(opts, color.FgGreen, "improving")
	}

	fmt.Fprintf(&sb, "Slope: %+.2f issues per build (%s)\n", s.Slope, direction)
	fmt.Fprintf(&sb, "Introduced %d, fixed %d\n", s.TotalNew, s.TotalFixed)

	_, err := io.WriteString(w, sb.String())

	return err
}
