// Package notify publishes build-recorded events to downstream consumers.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Sumatoshi-tech/issuetrend/pkg/build"
)

// EventBuildRecorded is the type of events emitted after a build is stored.
const EventBuildRecorded = "build.recorded"

// Event is the message published for a recorded build.
type Event struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	BuildID     build.ID  `json:"build_id"`
	Reference   *build.ID `json:"reference,omitempty"`
	Outcome     string    `json:"outcome"`
	Status      string    `json:"status"`
	Gate        string    `json:"gate,omitempty"`
	Health      *int      `json:"health,omitempty"`
	Issues      int       `json:"issues"`
	New         int       `json:"new"`
	Fixed       int       `json:"fixed"`
	Outstanding int       `json:"outstanding"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewEvent summarizes r as an event with a fresh id.
func NewEvent(r *build.Result) Event {
	e := Event{
		ID:          uuid.NewString(),
		Type:        EventBuildRecorded,
		BuildID:     r.BuildID,
		Reference:   r.Reference,
		Outcome:     string(r.Outcome),
		Status:      r.Status.String(),
		Health:      r.Health,
		Issues:      len(r.Issues),
		New:         len(r.New),
		Fixed:       len(r.Fixed),
		Outstanding: len(r.Outstanding),
		Timestamp:   r.Timestamp,
	}

	if r.Gate != nil {
		e.Gate = r.Gate.String()
	}

	return e
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }

// Close implements Publisher.
func (Nop) Close() error { return nil }
