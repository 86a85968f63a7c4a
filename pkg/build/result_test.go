package build_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/issuetrend/pkg/blame"
	"github.com/Sumatoshi-tech/issuetrend/pkg/build"
	"github.com/Sumatoshi-tech/issuetrend/pkg/health"
	"github.com/Sumatoshi-tech/issuetrend/pkg/issue"
)

func ptr[T any](v T) *T { return &v }

func sampleResult() *build.Result {
	return &build.Result{
		BuildID:   7,
		Previous:  ptr[build.ID](6),
		Reference: ptr[build.ID](5),
		Outcome:   build.OutcomeUnstable,
		Timestamp: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Issues: []issue.Issue{
			{File: "a.go", LineStart: 12, LineEnd: 12, Severity: issue.SeverityHigh, Type: "T", Message: "m", Fingerprint: "A", Occurrences: 1},
			{File: "a.go", LineStart: 30, LineEnd: 30, Severity: issue.SeverityError, Type: "T", Message: "c", Fingerprint: "C", Occurrences: 2},
		},
		New:         []issue.Fingerprint{"C"},
		Outstanding: []issue.Fingerprint{"A"},
		Fixed: []issue.Issue{
			{File: "a.go", LineStart: 20, LineEnd: 20, Severity: issue.SeverityLow, Message: "b", Fingerprint: "B", Occurrences: 1},
		},
		Health: ptr(80),
		Status: health.StatusUnstable,
		Gate:   &health.Gate{Scope: health.ScopeNew, Severity: issue.SeverityError, Threshold: 1, Result: health.StatusUnstable},
		Blame:  map[issue.Fingerprint]blame.Info{"A": {Author: "Alice", Email: "a@example.com", CommitID: "abc"}},
		Rejected: []build.Rejection{
			{Index: 3, Issue: issue.Issue{File: "x.go", LineStart: 9, LineEnd: 2, Severity: issue.SeverityLow}, Reason: "inverted"},
		},
		Skipped:       build.Skipped{Duplicates: 1, Rejected: 1},
		InfoMessages:  []string{"-> found 2 issues (skipped 1 duplicates)"},
		ErrorMessages: []string{"blame x.go: boom"},
	}
}

func TestResult_JSONRoundTrip(t *testing.T) {
	t.Parallel()

	orig := sampleResult()
	require.NoError(t, orig.CheckInvariants())

	data, err := json.Marshal(orig)
	require.NoError(t, err)

	var back build.Result
	require.NoError(t, json.Unmarshal(data, &back))

	assert.Equal(t, *orig, back)
	require.NoError(t, back.CheckInvariants())
}

func TestResult_Accessors(t *testing.T) {
	t.Parallel()

	r := sampleResult()

	assert.Equal(t, 2, r.Size())
	require.Len(t, r.NewIssues(), 1)
	assert.Equal(t, issue.Fingerprint("C"), r.NewIssues()[0].Fingerprint)
	require.Len(t, r.OutstandingIssues(), 1)
	assert.Equal(t, issue.Fingerprint("A"), r.OutstandingIssues()[0].Fingerprint)

	p := r.Point()
	assert.Equal(t, build.ID(7), p.BuildID)
	assert.Equal(t, 2, p.Issues)
	assert.Equal(t, 1, p.New)
	assert.Equal(t, 1, p.Fixed)
	require.NotNil(t, p.Health)
	assert.Equal(t, 80, *p.Health)

	assert.Equal(t, 2, r.Skipped.Total())
}

func TestResult_IssueSelectionKeepsIssueOrder(t *testing.T) {
	t.Parallel()

	r := &build.Result{
		BuildID: 3,
		Issues: []issue.Issue{
			{File: "a.go", LineStart: 1, Fingerprint: "X"},
			{File: "a.go", LineStart: 2, Fingerprint: "Y"},
			{File: "b.go", LineStart: 1, Fingerprint: "Z"},
		},
		New:         []issue.Fingerprint{"Z", "X"},
		Outstanding: []issue.Fingerprint{"Y", "gone"},
	}

	var newFPs []issue.Fingerprint
	for _, i := range r.NewIssues() {
		newFPs = append(newFPs, i.Fingerprint)
	}

	assert.Equal(t, []issue.Fingerprint{"X", "Z"}, newFPs)
	require.Len(t, r.OutstandingIssues(), 1)
	assert.Equal(t, issue.Fingerprint("Y"), r.OutstandingIssues()[0].Fingerprint)
	assert.Empty(t, (&build.Result{}).NewIssues())
}

func TestResult_CheckInvariants(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(r *build.Result)
		wantErr error
	}{
		{"missing partition", func(r *build.Result) { r.New = nil }, build.ErrPartitionMismatch},
		{"double classified", func(r *build.Result) { r.New = []issue.Fingerprint{"A"} }, build.ErrPartitionMismatch},
		{"fixed overlap", func(r *build.Result) { r.Fixed[0].Fingerprint = "A" }, build.ErrFixedOverlap},
		{"duplicate", func(r *build.Result) { r.Issues[1].Fingerprint = "A" }, build.ErrDuplicateFingerprint},
		{"self reference", func(r *build.Result) { r.Previous = ptr[build.ID](7) }, build.ErrSelfReference},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := sampleResult()
			tt.mutate(r)
			require.ErrorIs(t, r.CheckInvariants(), tt.wantErr)
		})
	}
}

func TestParseOutcome(t *testing.T) {
	t.Parallel()

	o, err := build.ParseOutcome("aborted")
	require.NoError(t, err)
	assert.Equal(t, build.OutcomeAborted, o)
	assert.False(t, o.Completed())

	o, err = build.ParseOutcome("")
	require.NoError(t, err)
	assert.True(t, o.Completed())

	_, err = build.ParseOutcome("exploded")
	require.ErrorIs(t, err, build.ErrUnknownOutcome)
}
