package services

import (
	"time"

	"eventease/internal/status"
	"eventease/models"
	"eventease/utils"
)

// Platform-wide attendance policy. The original behavior treats both values
// as fixed constants; they stay constants here so every call site agrees by
// construction.
const (
	// DefaultEventDuration is the status window applied after an event's
	// start, whether or not an explicit end time is stored.
	DefaultEventDuration = 2 * time.Hour
	// CheckoutLockout is the minimum dwell time after an event's start
	// before check-out is permitted.
	CheckoutLockout = 1 * time.Hour
)

// ComputeStatus derives the effective lifecycle state of an event at the
// given instant. The persisted flag is authoritative only for cancelled;
// every other value is recomputed from time alone. The function is pure:
// identical inputs always agree, and no call site may cache "now" across
// logical operations.
func ComputeStatus(e *models.Event, now time.Time) models.Status {
	if e.Cancelled() {
		return models.StatusCancelled
	}

	start, end, err := eventWindow(e, now.Location())
	if err != nil {
		// Without a parsable date there is nothing to derive from; the
		// persisted flag is the only information available.
		return e.Status
	}

	switch {
	case now.Before(start):
		return models.StatusUpcoming
	case now.After(end):
		return models.StatusCompleted
	default:
		return models.StatusOngoing
	}
}

// IsInFuture reports whether the event belongs in a forward-looking schedule
// view: it has not ended yet at the given instant. The window matches
// ComputeStatus exactly, so an event is in the future precisely when its
// computed status is not completed.
func IsInFuture(e *models.Event, now time.Time) bool {
	_, end, err := eventWindow(e, now.Location())
	if err != nil {
		return false
	}
	return !now.After(end)
}

// eventWindow resolves the [start, end] interval the status derivation uses.
// With a start clock the window is the fixed default duration; without one
// the event occupies its whole calendar day, which keeps ComputeStatus and
// IsInFuture consistent for timeless events.
func eventWindow(e *models.Event, loc *time.Location) (start, end time.Time, err error) {
	start, hasClock, err := utils.EventStart(e.Date, e.Time, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !hasClock {
		return start, utils.EndOfDay(start), nil
	}
	return start, start.Add(DefaultEventDuration), nil
}

// LogoutEligibility reports whether the check-out time lock has elapsed for
// the event at the given instant, and the wait remaining when it has not.
// The result is recomputed from the event's start, never stored.
func LogoutEligibility(e *models.Event, now time.Time) (eligible bool, remaining time.Duration, err error) {
	start, hasClock, err := utils.EventStart(e.Date, e.Time, now.Location())
	if err != nil || !hasClock {
		return false, 0, status.ErrMissingStartTime
	}
	elapsed := now.Sub(start)
	if elapsed >= CheckoutLockout {
		return true, 0, nil
	}
	return false, CheckoutLockout - elapsed, nil
}
