package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/issuetrend/pkg/build"
	"github.com/Sumatoshi-tech/issuetrend/pkg/health"
	"github.com/Sumatoshi-tech/issuetrend/pkg/issue"
)

type published struct {
	subject string
	data    []byte
	opts    int
}

type fakeJetStream struct {
	sent     []published
	err      error
	complete chan struct{}
}

func (f *fakeJetStream) PublishAsync(subject string, data []byte, opts ...nats.PubOpt) (nats.PubAckFuture, error) {
	if f.err != nil {
		return nil, f.err
	}

	f.sent = append(f.sent, published{subject: subject, data: data, opts: len(opts)})

	return nil, nil
}

func (f *fakeJetStream) PublishAsyncComplete() <-chan struct{} {
	return f.complete
}

func sampleResult() *build.Result {
	ref := build.ID(4)
	pct := 60

	return &build.Result{
		BuildID:     5,
		Reference:   &ref,
		Outcome:     build.OutcomeSuccess,
		Issues:      []issue.Issue{{Fingerprint: "a"}, {Fingerprint: "b"}},
		New:         []issue.Fingerprint{"b"},
		Outstanding: []issue.Fingerprint{"a"},
		Health:      &pct,
		Status:      health.StatusUnstable,
		Gate:        &health.Gate{Scope: health.ScopeNew, Threshold: 1, Result: health.StatusUnstable},
	}
}

func TestNewEvent(t *testing.T) {
	t.Parallel()

	e := NewEvent(sampleResult())

	_, err := uuid.Parse(e.ID)
	require.NoError(t, err)
	assert.Equal(t, EventBuildRecorded, e.Type)
	assert.Equal(t, build.ID(5), e.BuildID)
	assert.Equal(t, "UNSTABLE", e.Status)
	assert.Equal(t, "new[ALL]>=1 -> UNSTABLE", e.Gate)
	assert.Equal(t, 2, e.Issues)
	assert.Equal(t, 1, e.New)
	assert.Equal(t, 1, e.Outstanding)
	assert.NotEqual(t, e.ID, NewEvent(sampleResult()).ID)
}

func TestNATSPublisher_Publish(t *testing.T) {
	t.Parallel()

	js := &fakeJetStream{complete: make(chan struct{})}
	close(js.complete)

	p := newNATSPublisher(js, "", slog.Default())
	event := NewEvent(sampleResult())

	require.NoError(t, p.Publish(context.Background(), event))
	require.Len(t, js.sent, 1)
	assert.Equal(t, DefaultSubject, js.sent[0].subject)
	assert.Equal(t, 1, js.sent[0].opts)

	var back Event
	require.NoError(t, json.Unmarshal(js.sent[0].data, &back))
	assert.Equal(t, event.ID, back.ID)

	require.NoError(t, p.Close())
}

func TestNATSPublisher_Errors(t *testing.T) {
	t.Parallel()

	errNoStream := errors.New("no stream matches subject")
	js := &fakeJetStream{err: errNoStream, complete: make(chan struct{})}

	p := newNATSPublisher(js, "ci.builds", slog.Default())
	p.drainTimeout = 10 * time.Millisecond

	require.ErrorIs(t, p.Publish(context.Background(), Event{ID: "x"}), errNoStream)
	require.ErrorIs(t, p.Close(), ErrDrainTimeout)
}

func TestNop(t *testing.T) {
	t.Parallel()

	var p Publisher = Nop{}
	require.NoError(t, p.Publish(context.Background(), Event{}))
	require.NoError(t, p.Close())
}
