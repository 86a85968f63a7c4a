package history

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Sumatoshi-tech/issuetrend/pkg/build"
	"github.com/Sumatoshi-tech/issuetrend/pkg/health"
)

// ErrUnknownPolicy is returned for an unrecognized reference policy name.
var ErrUnknownPolicy = errors.New("unknown reference policy")

// Policy decides which prior builds may serve as a diff baseline.
type Policy string

// Reference policies.
const (
	// PolicyPrevious accepts the immediately preceding build whatever its outcome.
	PolicyPrevious Policy = "previous"
	// PolicyCompleted skips builds whose job failed or was aborted.
	PolicyCompleted Policy = "completed"
	// PolicySuccessful additionally requires a passing quality gate.
	PolicySuccessful Policy = "successful"
)

// ParsePolicy parses a policy name. Empty selects PolicyPrevious.
func ParsePolicy(name string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(name))); p {
	case "":
		return PolicyPrevious, nil
	case PolicyPrevious, PolicyCompleted, PolicySuccessful:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
	}
}

// Eligible reports whether r may be used as a reference under p.
func (p Policy) Eligible(r *build.Result) bool {
	switch p {
	case PolicyCompleted:
		return r.Outcome.Completed()
	case PolicySuccessful:
		return r.Outcome == build.OutcomeSuccess && r.Status == health.StatusSuccess
	default:
		return true
	}
}
