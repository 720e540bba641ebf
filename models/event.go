package models

// Status is the lifecycle state of an event. Only StatusCancelled is
// authoritative when read from storage; everything else is recomputed
// from the event's date and time fields.
type Status string

const (
	StatusUpcoming  Status = "upcoming"
	StatusOngoing   Status = "ongoing"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

type Event struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Category    string `json:"category"`

	// Date is the calendar date in "2006-01-02" form. Time and EndTime are
	// local clock strings ("15:04" or "3:04 PM") and may be empty.
	Date    string `json:"date"`
	Time    string `json:"time"`
	EndTime string `json:"end_time"`

	// Status is the persisted lifecycle flag. It may be stale for every
	// value except cancelled.
	Status Status `json:"status"`

	MaxParticipants int    `json:"max_participants"`
	OrganizerID     string `json:"organizer_id"`
	ContactEmail    string `json:"contact_email"`
}

// Cancelled reports whether the persisted flag carries the terminal state.
func (e *Event) Cancelled() bool {
	return e.Status == StatusCancelled
}
