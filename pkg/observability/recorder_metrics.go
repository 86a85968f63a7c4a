package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricBuildsTotal    = "issuetrend.builds.total"
	metricIssuesTotal    = "issuetrend.issues.total"
	metricSkippedTotal   = "issuetrend.skipped.total"
	metricBuildHealth    = "issuetrend.build.health"
	metricStageDuration  = "issuetrend.stage.duration.seconds"
	metricBlameFailures  = "issuetrend.blame.failures.total"
	metricContextMissing = "issuetrend.fingerprint.fallbacks.total"

	attrClass  = "class"
	attrReason = "reason"
	attrStage  = "stage"
)

// BuildStats is the per-build summary recorded by RecorderMetrics, kept free
// of domain types so this package has no upward dependencies.
type BuildStats struct {
	Status       string
	New          int
	Fixed        int
	Outstanding  int
	Duplicates   int
	Rejected     int
	Filtered     int
	Unattributed int
	Fallbacks    int
	BlameErrors  int
	Health       *int
}

// RecorderMetrics holds the instruments of the build recorder. All methods
// are no-ops on a nil receiver.
type RecorderMetrics struct {
	builds        metric.Int64Counter
	issues        metric.Int64Counter
	skipped       metric.Int64Counter
	health        metric.Int64Gauge
	stageDuration metric.Float64Histogram
	blameFailures metric.Int64Counter
	fallbacks     metric.Int64Counter
}

// NewRecorderMetrics creates recorder instruments from the given meter.
func NewRecorderMetrics(mt metric.Meter) (*RecorderMetrics, error) {
	b := newMetricBuilder(mt)

	rm := &RecorderMetrics{
		builds:        b.counter(metricBuildsTotal, "Recorded builds by status", "{build}"),
		issues:        b.counter(metricIssuesTotal, "Issues by classification", "{issue}"),
		skipped:       b.counter(metricSkippedTotal, "Raw findings skipped by reason", "{issue}"),
		health:        b.gauge(metricBuildHealth, "Health percentage of the last recorded build", "%"),
		stageDuration: b.histogram(metricStageDuration, "Recorder stage duration in seconds", "s", durationBucketBoundaries...),
		blameFailures: b.counter(metricBlameFailures, "Files whose blame query failed", "{file}"),
		fallbacks:     b.counter(metricContextMissing, "Issues fingerprinted without source context", "{issue}"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return rm, nil
}

// RecordBuild records the outcome of one recorded build.
func (rm *RecorderMetrics) RecordBuild(ctx context.Context, stats BuildStats) {
	if rm == nil {
		return
	}

	rm.builds.Add(ctx, 1, metric.WithAttributes(attribute.String(attrStatus, stats.Status)))

	for class, n := range map[string]int{"new": stats.New, "fixed": stats.Fixed, "outstanding": stats.Outstanding} {
		rm.issues.Add(ctx, int64(n), metric.WithAttributes(attribute.String(attrClass, class)))
	}

	for reason, n := range map[string]int{
		"duplicate":    stats.Duplicates,
		"rejected":     stats.Rejected,
		"filtered":     stats.Filtered,
		"unattributed": stats.Unattributed,
	} {
		rm.skipped.Add(ctx, int64(n), metric.WithAttributes(attribute.String(attrReason, reason)))
	}

	rm.blameFailures.Add(ctx, int64(stats.BlameErrors))
	rm.fallbacks.Add(ctx, int64(stats.Fallbacks))

	if stats.Health != nil {
		rm.health.Record(ctx, int64(*stats.Health))
	}
}

// RecordStage records the duration of one recorder stage.
func (rm *RecorderMetrics) RecordStage(ctx context.Context, stage string, d time.Duration) {
	if rm == nil {
		return
	}

	rm.stageDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String(attrStage, stage)))
}
