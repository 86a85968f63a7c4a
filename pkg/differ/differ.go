// Package differ classifies the issues of two builds into new, fixed and
// outstanding partitions by fingerprint.
package differ

import (
	"github.com/Sumatoshi-tech/issuetrend/pkg/issue"
)

// Classification is the three-way split of a current build against a reference.
type Classification struct {
	// New are current issues whose fingerprint is absent from the reference.
	New []issue.Issue `json:"new"`
	// Fixed are reference issues whose fingerprint is absent from the current build.
	Fixed []issue.Issue `json:"fixed"`
	// Outstanding are current issues also present in the reference, with current values.
	Outstanding []issue.Issue `json:"outstanding"`
}

// Change pairs an outstanding issue with its reference value when the message
// or severity differs between the two builds.
type Change struct {
	Previous issue.Issue `json:"previous"`
	Current  issue.Issue `json:"current"`
}

// Classify partitions current and previous by fingerprint membership. Output
// slices keep the input order and are never nil. Runs in O(|current|+|previous|).
func Classify(current, previous []issue.Issue) Classification {
	prevIndex := make(map[issue.Fingerprint]struct{}, len(previous))
	for _, i := range previous {
		prevIndex[i.Fingerprint] = struct{}{}
	}

	curIndex := make(map[issue.Fingerprint]struct{}, len(current))

	result := Classification{
		New:         make([]issue.Issue, 0),
		Fixed:       make([]issue.Issue, 0),
		Outstanding: make([]issue.Issue, 0),
	}

	for _, i := range current {
		curIndex[i.Fingerprint] = struct{}{}

		if _, ok := prevIndex[i.Fingerprint]; ok {
			result.Outstanding = append(result.Outstanding, i)
		} else {
			result.New = append(result.New, i)
		}
	}

	fixedSeen := make(map[issue.Fingerprint]struct{})

	for _, i := range previous {
		if _, ok := curIndex[i.Fingerprint]; ok {
			continue
		}

		if _, dup := fixedSeen[i.Fingerprint]; dup {
			continue
		}

		fixedSeen[i.Fingerprint] = struct{}{}
		result.Fixed = append(result.Fixed, i)
	}

	return result
}

// Changed lists outstanding issues whose message or severity differs from
// their value in previous.
func (c Classification) Changed(previous []issue.Issue) []Change {
	prevIndex := issue.Index(previous)

	var changes []Change

	for _, cur := range c.Outstanding {
		prev, ok := prevIndex[cur.Fingerprint]
		if !ok {
			continue
		}

		if prev.Message != cur.Message || prev.Severity != cur.Severity {
			changes = append(changes, Change{Previous: prev, Current: cur})
		}
	}

	return changes
}

// Counts returns the sizes of the three partitions.
func (c Classification) Counts() (added, fixed, outstanding int) {
	return len(c.New), len(c.Fixed), len(c.Outstanding)
}
