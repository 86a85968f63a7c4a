package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/Sumatoshi-tech/issuetrend/pkg/build"
)

// DefaultMaxDepth bounds every walk along the predecessor chain.
const DefaultMaxDepth = 50

// Aggregator walks stored results along their Previous links. Walks are
// read-only and bounded, so concurrent builds can share a loader freely.
type Aggregator struct {
	loader   Loader
	policy   Policy
	maxDepth int
	logger   *slog.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithPolicy sets the reference policy.
func WithPolicy(p Policy) Option {
	return func(a *Aggregator) {
		if p != "" {
			a.policy = p
		}
	}
}

// WithMaxDepth sets the walk bound. Non-positive values are ignored.
func WithMaxDepth(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.maxDepth = n
		}
	}
}

// WithLogger sets the logger for chain anomalies.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAggregator creates an Aggregator over loader.
func NewAggregator(loader Loader, opts ...Option) *Aggregator {
	a := &Aggregator{
		loader:   loader,
		policy:   PolicyPrevious,
		maxDepth: DefaultMaxDepth,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Policy returns the configured reference policy.
func (a *Aggregator) Policy() Policy {
	return a.policy
}

// Walk is the outcome of a reference search. Broken names the build whose
// record failed verification when the walk stopped there.
type Walk struct {
	Reference *build.Result
	Broken    *build.ID
	Cause     error
}

// Reference returns the nearest result at or before start that the policy
// accepts. It returns nil without error when the chain ends, a record is
// missing or corrupt, ids stop decreasing or the depth bound is reached first.
func (a *Aggregator) Reference(ctx context.Context, start build.ID) (*build.Result, error) {
	w, err := a.Walk(ctx, start)
	if err != nil {
		return nil, err
	}

	return w.Reference, nil
}

// Walk searches for the reference like Reference and also reports a corrupt
// record that cut the search short. Backend failures are returned as errors.
func (a *Aggregator) Walk(ctx context.Context, start build.ID) (Walk, error) {
	id := start

	for depth := range a.maxDepth {
		r, err := a.loader.Load(ctx, id)
		if errors.Is(err, ErrNotFound) {
			a.logger.DebugContext(ctx, "reference chain ends at missing build", "build", id, "depth", depth)

			return Walk{}, nil
		}

		if errors.Is(err, ErrCorrupt) {
			a.logger.WarnContext(ctx, "reference chain ends at corrupt build",
				"build", id, "depth", depth, "error", err)

			return Walk{Broken: &id, Cause: err}, nil
		}

		if err != nil {
			return Walk{}, fmt.Errorf("load build %d: %w", id, err)
		}

		if a.policy.Eligible(r) {
			return Walk{Reference: r}, nil
		}

		if r.Previous == nil {
			return Walk{}, nil
		}

		if *r.Previous >= r.BuildID {
			a.logger.WarnContext(ctx, "predecessor chain does not decrease",
				"build", r.BuildID, "previous", *r.Previous)

			return Walk{}, nil
		}

		id = *r.Previous
	}

	a.logger.InfoContext(ctx, "no eligible reference within depth",
		"start", start, "policy", string(a.policy), "max_depth", a.maxDepth)

	return Walk{}, nil
}

// Trend returns up to length trend points ending at head, oldest first.
// A non-positive length, or one above the depth bound, uses the depth bound.
func (a *Aggregator) Trend(ctx context.Context, head build.ID, length int) ([]build.Point, error) {
	results, err := a.Chain(ctx, head, length)
	if err != nil {
		return nil, err
	}

	points := make([]build.Point, len(results))
	for idx, r := range results {
		points[idx] = r.Point()
	}

	return points, nil
}

// Chain returns up to length results ending at head, oldest first. Only a
// missing or corrupt head is an error; the walk otherwise stops quietly.
func (a *Aggregator) Chain(ctx context.Context, head build.ID, length int) ([]*build.Result, error) {
	if length <= 0 || length > a.maxDepth {
		length = a.maxDepth
	}

	results := make([]*build.Result, 0, length)
	id := head

	for len(results) < length {
		r, err := a.loader.Load(ctx, id)
		if err != nil {
			if len(results) > 0 && errors.Is(err, ErrNotFound) {
				break
			}

			if len(results) > 0 && errors.Is(err, ErrCorrupt) {
				a.logger.WarnContext(ctx, "trend chain ends at corrupt build", "build", id, "error", err)

				break
			}

			return nil, fmt.Errorf("load build %d: %w", id, err)
		}

		results = append(results, r)

		if r.Previous == nil || *r.Previous >= r.BuildID {
			break
		}

		id = *r.Previous
	}

	slices.Reverse(results)

	return results, nil
}
