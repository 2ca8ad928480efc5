package challenge

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType names a domain event.
type EventType string

const (
	EventActivated          EventType = "challenge.activated"
	EventClosed             EventType = "challenge.closed"
	EventSubmissionAccepted EventType = "submission.accepted"
	EventLeaderChanged      EventType = "leader.changed"
)

// Event is emitted after a state change has been persisted. Points-award and
// notification consumers subscribe to these.
type Event struct {
	Type         EventType  `json:"type"`
	Variant      Variant    `json:"variant"`
	EntityID     uuid.UUID  `json:"entity_id"`
	Day          string     `json:"day"`
	SubmissionID *uuid.UUID `json:"submission_id,omitempty"`
	SubmitterID  string     `json:"submitter_id,omitempty"`
	GroupID      string     `json:"group_id,omitempty"`
	FinalScore   float64    `json:"final_score,omitempty"`
	OccurredAt   time.Time  `json:"occurred_at"`
}

// Publisher delivers events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

func submissionEvent(t EventType, e *Entity, sub Submission) Event {
	id := sub.ID
	return Event{
		Type:         t,
		EntityID:     e.ID,
		Day:          e.Day,
		SubmissionID: &id,
		SubmitterID:  sub.SubmitterID,
		GroupID:      sub.GroupID,
		FinalScore:   sub.FinalScore,
	}
}
