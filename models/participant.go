package models

import (
	"errors"
	"strings"
	"time"
)

// AttendanceStatus is the persisted registration state of a participant.
// A logged-out participant keeps status "attended"; logout is carried by
// the LogoutAt timestamp.
type AttendanceStatus string

const (
	AttendanceRegistered AttendanceStatus = "registered"
	AttendanceAttended   AttendanceStatus = "attended"
	AttendanceCancelled  AttendanceStatus = "cancelled"
)

type Participant struct {
	ID      string `json:"id"`
	EventID string `json:"event_id"`
	// UserID is the stable identity reference from the scanning collaborator.
	// Empty for walk-ins created through the manual fallback path.
	UserID string `json:"user_id"`

	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`

	Status        AttendanceStatus `json:"status"`
	ReferenceCode string           `json:"reference_code"`

	CheckInAt *time.Time `json:"check_in_at,omitempty"`
	LogoutAt  *time.Time `json:"logout_at,omitempty"`
}

func (p *Participant) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// CheckedIn reports whether the attendance transition has happened.
func (p *Participant) CheckedIn() bool {
	return p.Status == AttendanceAttended && p.CheckInAt != nil
}

// LoggedOut reports whether the participant reached the terminal state for
// this event.
func (p *Participant) LoggedOut() bool {
	return p.LogoutAt != nil
}

// ScanPayload is the identity produced by the external scanning collaborator.
type ScanPayload struct {
	UserRef string `json:"user_id"`
	Email   string `json:"email"`
}

// Validate rejects malformed or foreign-schema payloads before any matching
// is attempted.
func (s ScanPayload) Validate() error {
	if strings.TrimSpace(s.UserRef) == "" && strings.TrimSpace(s.Email) == "" {
		return errors.New("scan payload carries neither identity ref nor email")
	}
	if s.Email != "" && !strings.Contains(s.Email, "@") {
		return errors.New("scan payload email is not an address")
	}
	return nil
}

// ManualCheckIn is the operator-typed fallback input.
type ManualCheckIn struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

func (m ManualCheckIn) Validate() error {
	if !strings.Contains(m.Email, "@") {
		return errors.New("manual check-in requires an email address")
	}
	if strings.TrimSpace(m.FirstName) == "" {
		return errors.New("manual check-in requires a first name")
	}
	return nil
}

// Registration is the payload for creating a participant in registered state.
type Registration struct {
	UserRef   string `json:"user_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

func (r Registration) Validate() error {
	if !strings.Contains(r.Email, "@") {
		return errors.New("registration requires an email address")
	}
	return nil
}
