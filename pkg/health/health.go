// Package health maps issue counts to a health percentage and evaluates
// quality gates into a build status.
package health

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/Sumatoshi-tech/issuetrend/pkg/alg/stats"
	"github.com/Sumatoshi-tech/issuetrend/pkg/issue"
)

// Percentage bounds.
const (
	MaxHealth = 100
	MinHealth = 0
)

// Threshold validation errors.
var (
	ErrNegativeThreshold = errors.New("threshold must not be negative")
	ErrInvertedRange     = errors.New("healthy threshold exceeds unhealthy threshold")
	ErrGateThreshold     = errors.New("gate threshold must be positive")
	ErrGateResult        = errors.New("gate result must be UNSTABLE or FAILURE")
	ErrGateScope         = errors.New("unknown gate scope")
	ErrNegativeWeight    = errors.New("severity weight must not be negative")
)

// Range defines the linear health mapping: counts at or below Healthy score
// 100, counts at or above Unhealthy score 0.
type Range struct {
	Healthy   int `json:"healthy"   yaml:"healthy"`
	Unhealthy int `json:"unhealthy" yaml:"unhealthy"`
}

// Validate checks that the range is non-negative and ordered.
func (r Range) Validate() error {
	if r.Healthy < 0 || r.Unhealthy < 0 {
		return fmt.Errorf("%w: healthy=%d unhealthy=%d", ErrNegativeThreshold, r.Healthy, r.Unhealthy)
	}

	if r.Healthy > r.Unhealthy {
		return fmt.Errorf("%w: healthy=%d unhealthy=%d", ErrInvertedRange, r.Healthy, r.Unhealthy)
	}

	return nil
}

// Percentage interpolates count into 0..100, rounding half up.
func (r Range) Percentage(count int) int {
	if count <= r.Healthy {
		return MaxHealth
	}

	if count >= r.Unhealthy {
		return MinHealth
	}

	span := r.Unhealthy - r.Healthy
	remaining := r.Unhealthy - count
	// round(100*remaining/span) in integer arithmetic.
	pct := (2*MaxHealth*remaining + span) / (2 * span)

	return stats.Clamp(pct, MinHealth, MaxHealth)
}

// Scope selects which issues a gate counts.
type Scope string

// Gate scopes.
const (
	ScopeTotal Scope = "total"
	ScopeNew   Scope = "new"
)

// Gate forces a status once the number of matching issues reaches Threshold.
type Gate struct {
	Scope Scope `json:"scope" yaml:"scope"`
	// Severity restricts the gate to one severity. Zero counts all severities.
	Severity  issue.Severity `json:"severity,omitempty" yaml:"severity,omitempty"`
	Threshold int            `json:"threshold"          yaml:"threshold"`
	Result    Status         `json:"result"             yaml:"result"`
}

// Validate checks the gate definition.
func (g Gate) Validate() error {
	if g.Scope != ScopeTotal && g.Scope != ScopeNew {
		return fmt.Errorf("%w: %q", ErrGateScope, g.Scope)
	}

	if g.Threshold <= 0 {
		return fmt.Errorf("%w: %d", ErrGateThreshold, g.Threshold)
	}

	if g.Result != StatusUnstable && g.Result != StatusFailure {
		return fmt.Errorf("%w: %s", ErrGateResult, g.Result)
	}

	if g.Severity != 0 && !g.Severity.Valid() {
		return fmt.Errorf("%w: %d", issue.ErrUnknownSeverity, int(g.Severity))
	}

	return nil
}

// String renders the gate as "scope[severity]>=threshold -> result".
func (g Gate) String() string {
	sev := "ALL"
	if g.Severity != 0 {
		sev = g.Severity.String()
	}

	return fmt.Sprintf("%s[%s]>=%d -> %s", g.Scope, sev, g.Threshold, g.Result)
}

// Thresholds configures an Evaluator.
type Thresholds struct {
	// Health enables the health percentage. Nil disables it.
	Health *Range `json:"health,omitempty" yaml:"health,omitempty"`
	// MinimumSeverity excludes less severe issues from the health count.
	MinimumSeverity issue.Severity `json:"minimum_severity,omitempty" yaml:"minimum_severity,omitempty"`
	// Weights scales each issue's contribution to the health count. Missing severities weigh 1.
	Weights map[issue.Severity]int `json:"weights,omitempty" yaml:"weights,omitempty"`
	Gates   []Gate                 `json:"gates,omitempty"   yaml:"gates,omitempty"`
}

// Validate checks every part of the configuration.
func (t Thresholds) Validate() error {
	var errs []error

	if t.Health != nil {
		if err := t.Health.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("health: %w", err))
		}
	}

	if t.MinimumSeverity != 0 && !t.MinimumSeverity.Valid() {
		errs = append(errs, fmt.Errorf("minimum severity: %w: %d", issue.ErrUnknownSeverity, int(t.MinimumSeverity)))
	}

	for sev, w := range t.Weights {
		if !sev.Valid() {
			errs = append(errs, fmt.Errorf("weights: %w: %d", issue.ErrUnknownSeverity, int(sev)))
		}

		if w < 0 {
			errs = append(errs, fmt.Errorf("weights[%s]: %w: %d", sev, ErrNegativeWeight, w))
		}
	}

	for idx, g := range t.Gates {
		if err := g.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("gate %d: %w", idx, err))
		}
	}

	return errors.Join(errs...)
}

// Result is the outcome of one evaluation.
type Result struct {
	// Health is nil when no health range is configured.
	Health *int   `json:"health,omitempty"`
	Status Status `json:"status"`
	// Count is the weighted issue count the health was computed from.
	Count int `json:"count"`
	// Gate is the gate that determined Status, nil on SUCCESS.
	Gate *Gate `json:"gate,omitempty"`
}

// Evaluator computes health and status from validated thresholds. It is
// immutable and safe for concurrent use.
type Evaluator struct {
	thresholds Thresholds
	gates      []Gate
}

// NewEvaluator validates thresholds and returns an Evaluator.
func NewEvaluator(thresholds Thresholds) (*Evaluator, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, fmt.Errorf("invalid thresholds: %w", err)
	}

	gates := slices.Clone(thresholds.Gates)
	slices.SortStableFunc(gates, compareGates)

	return &Evaluator{thresholds: thresholds, gates: gates}, nil
}

// Thresholds returns the configuration the evaluator was built from.
func (e *Evaluator) Thresholds() Thresholds {
	return e.thresholds
}

// Evaluate computes health over total and runs the gate cascade over total and added.
func (e *Evaluator) Evaluate(total, added []issue.Issue) Result {
	res := Result{Status: StatusSuccess, Count: e.WeightedCount(total)}

	if e.thresholds.Health != nil {
		pct := e.thresholds.Health.Percentage(res.Count)
		res.Health = &pct
	}

	totalBySeverity := countBySeverity(total)
	addedBySeverity := countBySeverity(added)

	for idx := range e.gates {
		g := e.gates[idx]

		counts := totalBySeverity
		if g.Scope == ScopeNew {
			counts = addedBySeverity
		}

		if gateCount(counts, g.Severity) >= g.Threshold {
			res.Status = g.Result
			res.Gate = &g

			break
		}
	}

	return res
}

// WeightedCount counts issues at or above the minimum severity, applying weights.
func (e *Evaluator) WeightedCount(issues []issue.Issue) int {
	count := 0

	for _, i := range issues {
		if e.thresholds.MinimumSeverity != 0 && !i.Severity.AtLeast(e.thresholds.MinimumSeverity) {
			continue
		}

		w, ok := e.thresholds.Weights[i.Severity]
		if !ok {
			w = 1
		}

		count += w
	}

	return count
}

// compareGates orders FAILURE gates before UNSTABLE ones, then all-severity
// gates before per-severity ones, then most severe first.
func compareGates(a, b Gate) int {
	if c := cmp.Compare(b.Result, a.Result); c != 0 {
		return c
	}

	if (a.Severity == 0) != (b.Severity == 0) {
		if a.Severity == 0 {
			return -1
		}

		return 1
	}

	return cmp.Compare(b.Severity, a.Severity)
}

func countBySeverity(issues []issue.Issue) map[issue.Severity]int {
	counts := make(map[issue.Severity]int, len(issue.Severities()))
	for _, i := range issues {
		counts[i.Severity]++
	}

	return counts
}

func gateCount(counts map[issue.Severity]int, sev issue.Severity) int {
	if sev != 0 {
		return counts[sev]
	}

	total := 0
	for _, n := range counts {
		total += n
	}

	return total
}
