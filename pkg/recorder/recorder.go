// Package recorder turns one build's raw findings into a stored build result:
// validate, filter, fingerprint, merge duplicates, pick a reference, classify,
// evaluate, attribute blame, persist and announce.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/issuetrend/pkg/blame"
	"github.com/Sumatoshi-tech/issuetrend/pkg/build"
	"github.com/Sumatoshi-tech/issuetrend/pkg/differ"
	"github.com/Sumatoshi-tech/issuetrend/pkg/fingerprint"
	"github.com/Sumatoshi-tech/issuetrend/pkg/health"
	"github.com/Sumatoshi-tech/issuetrend/pkg/history"
	"github.com/Sumatoshi-tech/issuetrend/pkg/issue"
	"github.com/Sumatoshi-tech/issuetrend/pkg/notify"
	"github.com/Sumatoshi-tech/issuetrend/pkg/observability"
)

// Sentinel errors.
var (
	ErrInvalidBuildID = errors.New("build id must be positive")
	ErrNoStore        = errors.New("recorder requires a store")
	ErrNoEvaluator    = errors.New("recorder requires an evaluator")
)

// Stage names used for spans and stage metrics.
const (
	stageValidate    = "validate"
	stageFingerprint = "fingerprint"
	stageReference   = "reference"
	stageClassify    = "classify"
	stageEvaluate    = "evaluate"
	stageBlame       = "blame"
	stagePersist     = "persist"

	spanPrefix = "recorder."
)

// Input is one build's raw analysis output.
type Input struct {
	BuildID build.ID
	// Previous is the preceding build. Nil looks up the latest stored build
	// with a lower id.
	Previous  *build.ID
	Outcome   build.Outcome
	Timestamp time.Time
	Issues    []issue.Issue
	// Blame is a precomputed blame table. Nil queries Deps.Oracle, if any.
	Blame blame.Table
}

// Deps holds injectable collaborators. Zero-value fields use defaults:
// no source context, previous-build policy, no blame, no events, no
// metrics, no-op tracing and slog.Default().
type Deps struct {
	Fingerprinter *fingerprint.Fingerprinter
	Aggregator    *history.Aggregator
	Oracle        blame.Oracle
	BlameWorkers  int
	Filter        Filter
	Publisher     notify.Publisher
	Metrics       *observability.RecorderMetrics
	Tracer        trace.Tracer
	Logger        *slog.Logger
	Now           func() time.Time
}

// Recorder records builds. It keeps no per-build state and may be shared.
type Recorder struct {
	store     history.Store
	evaluator *health.Evaluator
	deps      Deps
}

// New creates a Recorder persisting to store and evaluating with evaluator.
func New(store history.Store, evaluator *health.Evaluator, deps Deps) (*Recorder, error) {
	if store == nil {
		return nil, ErrNoStore
	}

	if evaluator == nil {
		return nil, ErrNoEvaluator
	}

	if err := deps.Filter.Validate(); err != nil {
		return nil, fmt.Errorf("invalid exclude pattern: %w", err)
	}

	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	if deps.Fingerprinter == nil {
		deps.Fingerprinter = fingerprint.New(nil, fingerprint.WithLogger(deps.Logger))
	}

	if deps.Aggregator == nil {
		deps.Aggregator = history.NewAggregator(store, history.WithLogger(deps.Logger))
	}

	if deps.Publisher == nil {
		deps.Publisher = notify.Nop{}
	}

	if deps.Tracer == nil {
		deps.Tracer = nooptrace.NewTracerProvider().Tracer("")
	}

	if deps.Now == nil {
		deps.Now = time.Now
	}

	return &Recorder{store: store, evaluator: evaluator, deps: deps}, nil
}

// Record processes in and stores the result. Malformed findings, missing
// source context and blame failures degrade the result but never fail it;
// only store failures and an invalid build id return errors.
func (r *Recorder) Record(ctx context.Context, in Input) (*build.Result, error) {
	if in.BuildID <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBuildID, in.BuildID)
	}

	ctx, span := r.deps.Tracer.Start(ctx, spanPrefix+"record",
		trace.WithAttributes(attribute.Int64("build.id", in.BuildID)))
	defer span.End()

	res, stats, err := r.record(ctx, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return nil, err
	}

	span.SetAttributes(
		attribute.String("build.status", res.Status.String()),
		attribute.Int("build.issues", len(res.Issues)),
	)

	r.deps.Metrics.RecordBuild(ctx, stats)

	return res, nil
}

func (r *Recorder) record(ctx context.Context, in Input) (*build.Result, observability.BuildStats, error) {
	outcome := in.Outcome
	if outcome == "" {
		outcome = build.OutcomeSuccess
	}

	timestamp := in.Timestamp
	if timestamp.IsZero() {
		timestamp = r.deps.Now().UTC()
	}

	res := &build.Result{BuildID: in.BuildID, Outcome: outcome, Timestamp: timestamp}

	var stats observability.BuildStats

	// Validate and filter.
	stageCtx, end := r.stage(ctx, stageValidate)
	accepted := r.validate(stageCtx, in.Issues, res)
	end()

	// Fingerprint and merge duplicates.
	stageCtx, end = r.stage(ctx, stageFingerprint)
	assigned, fpStats := r.deps.Fingerprinter.Assign(stageCtx, accepted)
	set := issue.NewSet(len(assigned))

	for _, i := range assigned {
		if !set.Add(i) {
			res.Skipped.Duplicates++
		}
	}

	res.Issues = set.Issues()
	res.InfoMessages = append(res.InfoMessages,
		fmt.Sprintf("-> found %d issues (skipped %d duplicates)", set.Len(), res.Skipped.Duplicates))
	stats.Fallbacks = fpStats.Fallbacks
	end()

	// Locate the reference build.
	stageCtx, end = r.stage(ctx, stageReference)
	reference, err := r.reference(stageCtx, in, res)
	end()

	if err != nil {
		return nil, stats, err
	}

	var previousIssues []issue.Issue
	if reference != nil {
		refID := reference.BuildID
		res.Reference = &refID
		previousIssues = reference.Issues
		res.InfoMessages = append(res.InfoMessages,
			fmt.Sprintf("-> using build #%d as reference (%s policy)", reference.BuildID, r.deps.Aggregator.Policy()))
	} else {
		res.InfoMessages = append(res.InfoMessages, "-> no reference build found, all issues are new")
	}

	// Classify.
	_, end = r.stage(ctx, stageClassify)
	cls := differ.Classify(res.Issues, previousIssues)
	res.New = fingerprints(cls.New)
	res.Outstanding = fingerprints(cls.Outstanding)
	res.Fixed = cls.Fixed
	end()

	// Evaluate.
	_, end = r.stage(ctx, stageEvaluate)
	eval := r.evaluator.Evaluate(res.Issues, cls.New)
	res.Health = eval.Health
	res.Status = eval.Status
	res.Gate = eval.Gate

	if eval.Gate != nil {
		res.InfoMessages = append(res.InfoMessages,
			fmt.Sprintf("-> quality gate %s reached, status %s", eval.Gate, eval.Status))
	}

	end()

	// Attribute blame.
	stageCtx, end = r.stage(ctx, stageBlame)
	stats.BlameErrors = r.attachBlame(stageCtx, in, res)
	end()

	if err := res.CheckInvariants(); err != nil {
		return nil, stats, fmt.Errorf("build %d: %w", res.BuildID, err)
	}

	// Persist, then announce.
	stageCtx, end = r.stage(ctx, stagePersist)
	err = r.store.Save(stageCtx, res)
	end()

	if err != nil {
		return nil, stats, fmt.Errorf("save build %d: %w", res.BuildID, err)
	}

	if err := r.deps.Publisher.Publish(ctx, notify.NewEvent(res)); err != nil {
		r.deps.Logger.WarnContext(ctx, "build event not published", "build", res.BuildID, "error", err)
	}

	r.deps.Logger.InfoContext(ctx, "build recorded",
		"build", res.BuildID,
		"issues", len(res.Issues),
		"new", len(res.New),
		"fixed", len(res.Fixed),
		"status", res.Status.String(),
	)

	stats.Status = res.Status.String()
	stats.New, stats.Fixed, stats.Outstanding = len(res.New), len(res.Fixed), len(res.Outstanding)
	stats.Duplicates = res.Skipped.Duplicates
	stats.Rejected = res.Skipped.Rejected
	stats.Filtered = res.Skipped.Filtered
	stats.Unattributed = res.Skipped.Unattributed
	stats.Health = res.Health

	return res, stats, nil
}

// validate normalizes raw findings, rejecting malformed ones and dropping filtered ones.
func (r *Recorder) validate(ctx context.Context, raw []issue.Issue, res *build.Result) []issue.Issue {
	accepted := make([]issue.Issue, 0, len(raw))

	for idx, i := range raw {
		normalized := i.Normalize()

		if err := normalized.Validate(); err != nil {
			res.Rejected = append(res.Rejected, build.Rejection{Index: idx, Issue: i, Reason: err.Error()})
			res.Skipped.Rejected++

			r.deps.Logger.InfoContext(ctx, "issue rejected", "index", idx, "file", i.File, "reason", err)

			continue
		}

		if r.deps.Filter.Skip(normalized) {
			res.Skipped.Filtered++

			continue
		}

		// Raw findings never carry identity; fingerprints are derived here.
		normalized.Fingerprint = ""
		normalized.Occurrences = 0
		accepted = append(accepted, normalized)
	}

	if res.Skipped.Rejected > 0 {
		res.ErrorMessages = append(res.ErrorMessages,
			fmt.Sprintf("rejected %d malformed issues", res.Skipped.Rejected))
	}

	if res.Skipped.Filtered > 0 {
		res.InfoMessages = append(res.InfoMessages,
			fmt.Sprintf("-> filtered %d issues in excluded paths", res.Skipped.Filtered))
	}

	return accepted
}

func (r *Recorder) reference(ctx context.Context, in Input, res *build.Result) (*build.Result, error) {
	previous := in.Previous

	if previous == nil {
		id, ok, err := history.Latest(ctx, r.store, in.BuildID)
		if err != nil {
			return nil, err
		}

		if ok {
			previous = &id
		}
	}

	if previous == nil {
		return nil, nil
	}

	if *previous >= in.BuildID {
		res.ErrorMessages = append(res.ErrorMessages,
			fmt.Sprintf("ignored previous build #%d: not older than #%d", *previous, in.BuildID))

		return nil, nil
	}

	res.Previous = previous

	walk, err := r.deps.Aggregator.Walk(ctx, *previous)
	if err != nil {
		return nil, err
	}

	if walk.Broken != nil {
		res.ErrorMessages = append(res.ErrorMessages,
			fmt.Sprintf("ignored build #%d and older: %v", *walk.Broken, walk.Cause))
	}

	return walk.Reference, nil
}

// attachBlame fills res.Blame and returns the number of files whose blame failed.
func (r *Recorder) attachBlame(ctx context.Context, in Input, res *build.Result) int {
	table := in.Blame

	var failed []blame.FileError

	if table == nil && r.deps.Oracle != nil {
		table, failed = blame.Collect(ctx, r.deps.Oracle, blame.Requests(res.Issues), r.deps.BlameWorkers)
	}

	if table == nil {
		return 0
	}

	for _, fe := range failed {
		res.ErrorMessages = append(res.ErrorMessages, fe.Error())
		r.deps.Logger.InfoContext(ctx, "blame unavailable", "file", fe.File, "error", fe.Err)
	}

	attribution := blame.Attach(res.Issues, table)
	if len(attribution.ByFingerprint) > 0 {
		res.Blame = attribution.ByFingerprint
	}

	res.Skipped.Unattributed = attribution.Missing
	res.InfoMessages = append(res.InfoMessages,
		fmt.Sprintf("-> blamed authors of issues in %d files", attribution.Files))

	return len(failed)
}

func (r *Recorder) stage(ctx context.Context, name string) (context.Context, func()) {
	start := time.Now()
	ctx, span := r.deps.Tracer.Start(ctx, spanPrefix+name)

	return ctx, func() {
		span.End()
		r.deps.Metrics.RecordStage(ctx, name, time.Since(start))
	}
}

func fingerprints(issues []issue.Issue) []issue.Fingerprint {
	out := make([]issue.Fingerprint, len(issues))
	for idx, i := range issues {
		out[idx] = i.Fingerprint
	}

	return out
}
