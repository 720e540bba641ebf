package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventease/internal/status"
	"eventease/models"
)

func timedEvent() *models.Event {
	return &models.Event{
		ID:     "evt1",
		Title:  "Launch",
		Date:   "2026-06-15",
		Time:   "14:00",
		Status: models.StatusUpcoming,
	}
}

func at(hour, min int) time.Time {
	return time.Date(2026, 6, 15, hour, min, 0, 0, time.UTC)
}

func TestComputeStatus_TimedEvent(t *testing.T) {
	e := timedEvent()

	tests := []struct {
		name string
		now  time.Time
		want models.Status
	}{
		{"before start", at(13, 59), models.StatusUpcoming},
		{"at start", at(14, 0), models.StatusOngoing},
		{"mid window", at(15, 30), models.StatusOngoing},
		{"at window end", at(16, 0), models.StatusOngoing},
		{"after window", at(16, 1), models.StatusCompleted},
		{"next day", at(14, 0).Add(24 * time.Hour), models.StatusCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeStatus(e, tt.now))
		})
	}
}

func TestComputeStatus_CancelledIsAuthoritative(t *testing.T) {
	e := timedEvent()
	e.Status = models.StatusCancelled

	// The flag wins regardless of where the clock sits.
	assert.Equal(t, models.StatusCancelled, ComputeStatus(e, at(13, 0)))
	assert.Equal(t, models.StatusCancelled, ComputeStatus(e, at(15, 0)))
	assert.Equal(t, models.StatusCancelled, ComputeStatus(e, at(20, 0)))
}

func TestComputeStatus_StalePersistedFlagIgnored(t *testing.T) {
	e := timedEvent()
	e.Status = models.StatusCompleted

	// Stored "completed" does not stick; time decides.
	assert.Equal(t, models.StatusUpcoming, ComputeStatus(e, at(9, 0)))
	assert.Equal(t, models.StatusOngoing, ComputeStatus(e, at(14, 30)))
}

func TestComputeStatus_TimelessEventSpansDay(t *testing.T) {
	e := &models.Event{ID: "evt2", Date: "2026-06-15", Status: models.StatusUpcoming}

	assert.Equal(t, models.StatusUpcoming,
		ComputeStatus(e, time.Date(2026, 6, 14, 23, 0, 0, 0, time.UTC)))
	assert.Equal(t, models.StatusOngoing, ComputeStatus(e, at(0, 0)))
	assert.Equal(t, models.StatusOngoing, ComputeStatus(e, at(23, 59)))
	assert.Equal(t, models.StatusCompleted,
		ComputeStatus(e, time.Date(2026, 6, 16, 0, 0, 0, 0, time.UTC)))
}

func TestComputeStatus_UnparsableDateFallsBackToFlag(t *testing.T) {
	e := &models.Event{ID: "evt3", Date: "someday", Status: models.StatusOngoing}
	assert.Equal(t, models.StatusOngoing, ComputeStatus(e, at(12, 0)))
}

func TestComputeStatus_Pure(t *testing.T) {
	e := timedEvent()
	now := at(15, 0)
	first := ComputeStatus(e, now)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ComputeStatus(e, now))
	}
}

func TestIsInFuture_MatchesComputedStatus(t *testing.T) {
	events := []*models.Event{
		timedEvent(),
		{ID: "timeless", Date: "2026-06-15", Status: models.StatusUpcoming},
		{ID: "evening", Date: "2026-06-15", Time: "9:00 PM", Status: models.StatusUpcoming},
	}
	instants := []time.Time{
		at(0, 0), at(13, 59), at(14, 0), at(16, 0), at(16, 1), at(21, 30), at(23, 59),
		time.Date(2026, 6, 16, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 6, 17, 12, 0, 0, 0, time.UTC),
	}

	for _, e := range events {
		for _, now := range instants {
			wantInFuture := ComputeStatus(e, now) != models.StatusCompleted
			assert.Equal(t, wantInFuture, IsInFuture(e, now),
				"event %s at %s", e.ID, now)
		}
	}

	// The one carve-out: an unparsable date makes ComputeStatus fall back
	// to the persisted flag while the schedule never lists the event.
	undated := &models.Event{ID: "undated", Date: "someday", Status: models.StatusUpcoming}
	assert.Equal(t, models.StatusUpcoming, ComputeStatus(undated, at(12, 0)))
	assert.False(t, IsInFuture(undated, at(12, 0)))
}

func TestIsInFuture_UnparsableDate(t *testing.T) {
	e := &models.Event{ID: "evt4", Date: "someday"}
	assert.False(t, IsInFuture(e, at(12, 0)))
}

func TestLogoutEligibility(t *testing.T) {
	e := &models.Event{ID: "evt5", Date: "2026-06-15", Time: "09:00"}

	t.Run("locked mid window", func(t *testing.T) {
		eligible, remaining, err := LogoutEligibility(e, at(9, 45))
		require.NoError(t, err)
		assert.False(t, eligible)
		assert.Equal(t, 15*time.Minute, remaining)
	})

	t.Run("eligible exactly at lockout boundary", func(t *testing.T) {
		eligible, remaining, err := LogoutEligibility(e, at(10, 0))
		require.NoError(t, err)
		assert.True(t, eligible)
		assert.Zero(t, remaining)
	})

	t.Run("eligible well after", func(t *testing.T) {
		eligible, _, err := LogoutEligibility(e, at(12, 0))
		require.NoError(t, err)
		assert.True(t, eligible)
	})

	t.Run("missing start time", func(t *testing.T) {
		timeless := &models.Event{ID: "evt6", Date: "2026-06-15"}
		_, _, err := LogoutEligibility(timeless, at(12, 0))
		assert.ErrorIs(t, err, status.ErrMissingStartTime)
	})
}

func TestLockoutError_MinutesRemaining(t *testing.T) {
	assert.Equal(t, 15, (&status.LockoutError{Remaining: 15 * time.Minute}).MinutesRemaining())
	assert.Equal(t, 15, (&status.LockoutError{Remaining: 14*time.Minute + 10*time.Second}).MinutesRemaining())
	assert.Equal(t, 1, (&status.LockoutError{Remaining: time.Second}).MinutesRemaining())
}
