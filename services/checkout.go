package services

import (
	"context"
	"log/slog"

	"eventease/internal/status"
	"eventease/models"
	"eventease/monitoring"
)

// AttemptLogout enforces the check-out gate: the participant must be
// attended without a logout yet, and the lockout window since the event's
// start must have elapsed. The remaining wait is recomputed from wall-clock
// time on every attempt, so the countdown is identical wherever the event
// is viewed.
func (s *CheckinService) AttemptLogout(ctx context.Context, sess *CheckInSession, participantID string) (*models.Participant, error) {
	if sess.Closed() {
		return nil, status.ErrSessionClosed
	}

	p, ok := sess.Get(participantID)
	if !ok {
		monitoring.RecordCheckOut("not_registered")
		return nil, status.ErrNotRegistered
	}
	if p.LoggedOut() {
		monitoring.RecordCheckOut("already_logged_out")
		return p, status.ErrAlreadyLoggedOut
	}
	if !p.CheckedIn() {
		monitoring.RecordCheckOut("not_checked_in")
		return p, status.ErrNotCheckedIn
	}

	now := s.now()
	eligible, remaining, err := LogoutEligibility(sess.Event, now)
	if err != nil {
		// Without a parsable start the gate cannot be computed at all.
		monitoring.RecordCheckOut("missing_start")
		return p, err
	}
	if !eligible {
		monitoring.RecordCheckOut("locked")
		return p, &status.LockoutError{Remaining: remaining}
	}

	upd := *p
	logout := now
	if p.CheckInAt != nil && logout.Before(*p.CheckInAt) {
		// Clock skew between writer and store; the logout may never precede
		// the check-in.
		logout = *p.CheckInAt
	}
	upd.LogoutAt = &logout

	saved, err := s.participants.UpsertParticipant(ctx, &upd)
	if err != nil {
		monitoring.RecordCheckOut("persistence_failure")
		return nil, &status.PersistenceError{Op: "persist logout", Err: err}
	}
	sess.Upsert(saved)

	s.notifier.CheckOutRecorded(sess.EventID, saved)
	monitoring.RecordCheckOut("success")
	slog.Info("participant logged out", "session", sess.ID, "participant", saved.ID)
	return saved, nil
}
