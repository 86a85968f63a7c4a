// Package build defines the per-build aggregate persisted after analysis.
package build

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Sumatoshi-tech/issuetrend/pkg/blame"
	"github.com/Sumatoshi-tech/issuetrend/pkg/health"
	"github.com/Sumatoshi-tech/issuetrend/pkg/issue"
)

// ID identifies a build. IDs are totally ordered; later builds have larger IDs.
type ID = int64

// Invariant violations reported by CheckInvariants.
var (
	ErrDuplicateFingerprint = errors.New("duplicate fingerprint in issues")
	ErrPartitionMismatch    = errors.New("new and outstanding do not partition issues")
	ErrFixedOverlap         = errors.New("fixed issue present in current issues")
	ErrSelfReference        = errors.New("build references itself or a later build")
	ErrUnknownOutcome       = errors.New("unknown build outcome")
)

// Outcome is the result of the hosting job, independent of the evaluated status.
type Outcome string

// Job outcomes.
const (
	OutcomeSuccess  Outcome = "SUCCESS"
	OutcomeUnstable Outcome = "UNSTABLE"
	OutcomeFailure  Outcome = "FAILURE"
	OutcomeAborted  Outcome = "ABORTED"
)

// ParseOutcome parses an outcome name case-insensitively. Empty means SUCCESS.
func ParseOutcome(name string) (Outcome, error) {
	switch o := Outcome(strings.ToUpper(strings.TrimSpace(name))); o {
	case "":
		return OutcomeSuccess, nil
	case OutcomeSuccess, OutcomeUnstable, OutcomeFailure, OutcomeAborted:
		return o, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownOutcome, name)
	}
}

// Completed reports whether the job ran to the end, successfully or not.
func (o Outcome) Completed() bool {
	return o == OutcomeSuccess || o == OutcomeUnstable
}

// Rejection is a raw issue excluded from the build because it is malformed.
type Rejection struct {
	Index  int         `json:"index"`
	Issue  issue.Issue `json:"issue"`
	Reason string      `json:"reason"`
}

// Skipped counts items that did not fully make it into the result.
type Skipped struct {
	Duplicates   int `json:"duplicates"`
	Rejected     int `json:"rejected"`
	Filtered     int `json:"filtered"`
	Unattributed int `json:"unattributed"`
}

// Total sums the skipped counts.
func (s Skipped) Total() int {
	return s.Duplicates + s.Rejected + s.Filtered + s.Unattributed
}

// Result is the analysis outcome of one build. It is built once by the
// recorder and never mutated afterwards; later builds only read it.
type Result struct {
	BuildID ID `json:"build_id"`
	// Previous is the id of the immediately preceding build, if any.
	Previous *ID `json:"previous,omitempty"`
	// Reference is the id of the build the classification was computed against.
	Reference *ID       `json:"reference,omitempty"`
	Outcome   Outcome   `json:"outcome"`
	Timestamp time.Time `json:"timestamp"`

	Issues      []issue.Issue       `json:"issues"`
	New         []issue.Fingerprint `json:"new"`
	Outstanding []issue.Fingerprint `json:"outstanding"`
	// Fixed keeps full values since they are absent from Issues.
	Fixed []issue.Issue `json:"fixed"`

	Health *int                             `json:"health,omitempty"`
	Status health.Status                    `json:"status"`
	Gate   *health.Gate                     `json:"gate,omitempty"`
	Blame  map[issue.Fingerprint]blame.Info `json:"blame,omitempty"`

	Rejected      []Rejection `json:"rejected,omitempty"`
	Skipped       Skipped     `json:"skipped"`
	InfoMessages  []string    `json:"info_messages,omitempty"`
	ErrorMessages []string    `json:"error_messages,omitempty"`
}

// Size returns the number of distinct issues in the build.
func (r *Result) Size() int {
	return len(r.Issues)
}

// NewIssues returns the issues first seen in this build, in issue order.
func (r *Result) NewIssues() []issue.Issue {
	return r.pick(r.New)
}

// OutstandingIssues returns the issues carried over from the reference build.
func (r *Result) OutstandingIssues() []issue.Issue {
	return r.pick(r.Outstanding)
}

func (r *Result) pick(fps []issue.Fingerprint) []issue.Issue {
	want := make(map[issue.Fingerprint]struct{}, len(fps))
	for _, fp := range fps {
		want[fp] = struct{}{}
	}

	out := make([]issue.Issue, 0, len(fps))

	for _, i := range r.Issues {
		if _, ok := want[i.Fingerprint]; ok {
			out = append(out, i)
		}
	}

	return out
}

// Point is one trend sample.
type Point struct {
	BuildID ID   `json:"build_id" yaml:"build_id"`
	Issues  int  `json:"issues" yaml:"issues"`
	New     int  `json:"new" yaml:"new"`
	Fixed   int  `json:"fixed" yaml:"fixed"`
	Health  *int `json:"health,omitempty" yaml:"health,omitempty"`
}

// Point summarizes the result as a trend sample.
func (r *Result) Point() Point {
	return Point{
		BuildID: r.BuildID,
		Issues:  len(r.Issues),
		New:     len(r.New),
		Fixed:   len(r.Fixed),
		Health:  r.Health,
	}
}

// CheckInvariants verifies the partition and linkage invariants. Stores call
// it on load to detect corrupted records.
func (r *Result) CheckInvariants() error {
	current := make(map[issue.Fingerprint]struct{}, len(r.Issues))

	for _, i := range r.Issues {
		if _, dup := current[i.Fingerprint]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateFingerprint, i.Fingerprint)
		}

		current[i.Fingerprint] = struct{}{}
	}

	if len(r.New)+len(r.Outstanding) != len(current) {
		return fmt.Errorf("%w: %d new + %d outstanding != %d issues",
			ErrPartitionMismatch, len(r.New), len(r.Outstanding), len(current))
	}

	seen := make(map[issue.Fingerprint]struct{}, len(current))

	for _, fp := range append(append([]issue.Fingerprint(nil), r.New...), r.Outstanding...) {
		if _, ok := current[fp]; !ok {
			return fmt.Errorf("%w: %s not in issues", ErrPartitionMismatch, fp)
		}

		if _, dup := seen[fp]; dup {
			return fmt.Errorf("%w: %s classified twice", ErrPartitionMismatch, fp)
		}

		seen[fp] = struct{}{}
	}

	for _, i := range r.Fixed {
		if _, ok := current[i.Fingerprint]; ok {
			return fmt.Errorf("%w: %s", ErrFixedOverlap, i.Fingerprint)
		}
	}

	for _, link := range []*ID{r.Previous, r.Reference} {
		if link != nil && *link >= r.BuildID {
			return fmt.Errorf("%w: %d -> %d", ErrSelfReference, r.BuildID, *link)
		}
	}

	return nil
}
