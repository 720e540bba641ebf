// Package store defines the persistence collaborators of the check-in core.
// The engine is storage-agnostic beyond these operations.
package store

import (
	"context"

	"eventease/models"
)

// EventFilter narrows an event listing.
type EventFilter struct {
	Category string
	Search   string
	Limit    int
	Offset   int
}

// Counts aggregates participant attendance for one event.
type Counts struct {
	Registered int `json:"registered"`
	Attended   int `json:"attended"`
	LoggedOut  int `json:"logged_out"`
	Cancelled  int `json:"cancelled"`
}

func (c Counts) Total() int {
	return c.Registered + c.Attended + c.Cancelled
}

// Events is the read/write surface for event records. SetEventCancelled is
// the only explicit lifecycle write the platform ever performs.
type Events interface {
	FetchEvent(ctx context.Context, id string) (*models.Event, error)
	ListEvents(ctx context.Context, f EventFilter) ([]*models.Event, error)
	SetEventCancelled(ctx context.Context, id string) error
}

// Participants is the read/write surface for registration records.
// UpsertParticipant is idempotent on identity: a record with an id updates
// in place, a record without one is keyed by (event, email). The email
// keying skips cancelled rows, and an id-less registered write against an
// attended row returns the attended state untouched.
type Participants interface {
	FetchParticipants(ctx context.Context, eventID string) ([]*models.Participant, error)
	FetchParticipant(ctx context.Context, id string) (*models.Participant, error)
	UpsertParticipant(ctx context.Context, p *models.Participant) (*models.Participant, error)
	AttendanceCounts(ctx context.Context, eventID string) (Counts, error)
}
