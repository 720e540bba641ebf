package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventease/internal/status"
	"eventease/models"
)

// setupCheckout opens a session over a 09:00 event with one checked-in
// participant whose check-in happened at 09:05.
func setupCheckout(t *testing.T) (*CheckinService, *fakeParticipants, *CheckInSession) {
	t.Helper()

	events := newFakeEvents(&models.Event{
		ID:     "evt1",
		Title:  "Morning Session",
		Date:   "2026-06-15",
		Time:   "09:00",
		Status: models.StatusUpcoming,
	})
	checkInAt := time.Date(2026, 6, 15, 9, 5, 0, 0, time.UTC)
	participants := newFakeParticipants(
		&models.Participant{ID: "p1", EventID: "evt1", UserID: "u1",
			FirstName: "Ann", Email: "ann@example.com",
			Status: models.AttendanceAttended, CheckInAt: &checkInAt},
		&models.Participant{ID: "p2", EventID: "evt1",
			FirstName: "Bob", Email: "bob@example.com",
			Status: models.AttendanceRegistered},
	)

	svc := NewCheckinService(events, participants, nil, &recordingNotifier{}, testConfig())
	svc.now = func() time.Time { return time.Date(2026, 6, 15, 9, 30, 0, 0, time.UTC) }

	sess, err := svc.OpenSession(context.Background(), "evt1")
	require.NoError(t, err)
	return svc, participants, sess
}

func TestAttemptLogout_LockedBeforeWindowElapses(t *testing.T) {
	svc, participants, sess := setupCheckout(t)
	svc.now = func() time.Time { return time.Date(2026, 6, 15, 9, 45, 0, 0, time.UTC) }
	before := participants.upsertCount()

	_, err := svc.AttemptLogout(context.Background(), sess, "p1")

	var lockout *status.LockoutError
	require.ErrorAs(t, err, &lockout)
	assert.Equal(t, 15*time.Minute, lockout.Remaining)
	assert.Equal(t, 15, lockout.MinutesRemaining())
	assert.Equal(t, before, participants.upsertCount())

	// No logout timestamp was recorded anywhere.
	cached, _ := sess.Get("p1")
	assert.Nil(t, cached.LogoutAt)
}

func TestAttemptLogout_CountdownRecomputedPerAttempt(t *testing.T) {
	svc, _, sess := setupCheckout(t)

	svc.now = func() time.Time { return time.Date(2026, 6, 15, 9, 40, 0, 0, time.UTC) }
	_, err := svc.AttemptLogout(context.Background(), sess, "p1")
	var lockout *status.LockoutError
	require.ErrorAs(t, err, &lockout)
	assert.Equal(t, 20*time.Minute, lockout.Remaining)

	svc.now = func() time.Time { return time.Date(2026, 6, 15, 9, 55, 0, 0, time.UTC) }
	_, err = svc.AttemptLogout(context.Background(), sess, "p1")
	require.ErrorAs(t, err, &lockout)
	assert.Equal(t, 5*time.Minute, lockout.Remaining)
}

func TestAttemptLogout_SucceedsAfterLockout(t *testing.T) {
	svc, participants, sess := setupCheckout(t)
	logoutAt := time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return logoutAt }

	p, err := svc.AttemptLogout(context.Background(), sess, "p1")
	require.NoError(t, err)
	require.NotNil(t, p.LogoutAt)
	assert.True(t, p.LogoutAt.Equal(logoutAt))
	assert.Equal(t, models.AttendanceAttended, p.Status)

	stored, err := participants.FetchParticipant(context.Background(), "p1")
	require.NoError(t, err)
	require.NotNil(t, stored.LogoutAt)

	cached, _ := sess.Get("p1")
	assert.NotNil(t, cached.LogoutAt)
}

func TestAttemptLogout_AlreadyLoggedOut(t *testing.T) {
	svc, _, sess := setupCheckout(t)
	svc.now = func() time.Time { return time.Date(2026, 6, 15, 10, 30, 0, 0, time.UTC) }

	_, err := svc.AttemptLogout(context.Background(), sess, "p1")
	require.NoError(t, err)

	_, err = svc.AttemptLogout(context.Background(), sess, "p1")
	assert.ErrorIs(t, err, status.ErrAlreadyLoggedOut)
}

func TestAttemptLogout_NotCheckedIn(t *testing.T) {
	svc, _, sess := setupCheckout(t)
	svc.now = func() time.Time { return time.Date(2026, 6, 15, 10, 30, 0, 0, time.UTC) }

	_, err := svc.AttemptLogout(context.Background(), sess, "p2")
	assert.ErrorIs(t, err, status.ErrNotCheckedIn)
}

func TestAttemptLogout_UnknownParticipant(t *testing.T) {
	svc, _, sess := setupCheckout(t)

	_, err := svc.AttemptLogout(context.Background(), sess, "ghost")
	assert.ErrorIs(t, err, status.ErrNotRegistered)
}

func TestAttemptLogout_MissingStartTime(t *testing.T) {
	svc, _, sess := setupCheckout(t)
	sess.Event.Time = ""
	svc.now = func() time.Time { return time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC) }

	_, err := svc.AttemptLogout(context.Background(), sess, "p1")
	assert.ErrorIs(t, err, status.ErrMissingStartTime)
}

func TestAttemptLogout_ClosedSession(t *testing.T) {
	svc, _, sess := setupCheckout(t)
	sess.Close()

	_, err := svc.AttemptLogout(context.Background(), sess, "p1")
	assert.ErrorIs(t, err, status.ErrSessionClosed)
}

func TestAttemptLogout_ClampsSkewedClock(t *testing.T) {
	svc, _, sess := setupCheckout(t)

	// Check-in recorded at 11:00 by a fast writer; our clock still says 10:30.
	lateCheckIn := time.Date(2026, 6, 15, 11, 0, 0, 0, time.UTC)
	sess.Upsert(&models.Participant{ID: "p1", EventID: "evt1", UserID: "u1",
		FirstName: "Ann", Email: "ann@example.com",
		Status: models.AttendanceAttended, CheckInAt: &lateCheckIn})
	svc.now = func() time.Time { return time.Date(2026, 6, 15, 10, 30, 0, 0, time.UTC) }

	p, err := svc.AttemptLogout(context.Background(), sess, "p1")
	require.NoError(t, err)
	require.NotNil(t, p.LogoutAt)
	assert.True(t, p.LogoutAt.Equal(lateCheckIn))
	assert.False(t, p.LogoutAt.Before(*p.CheckInAt))
}
