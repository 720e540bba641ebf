// Package status carries the typed outcomes of the check-in and check-out
// paths. Guard violations are plain sentinel values so callers can branch on
// them with errors.Is instead of parsing messages.
package status

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrNotRegistered     = errors.New("checkin: identity not registered for this event")
	ErrAlreadyAttended   = errors.New("checkin: participant already checked in")
	ErrAlreadyLoggedOut  = errors.New("checkin: participant already logged out")
	ErrEventNotCheckable = errors.New("checkin: event is not open for check-in")
	ErrScanRejected      = errors.New("checkin: malformed scan payload")
	ErrScanInFlight      = errors.New("checkin: another scan for this identity is in flight")
	ErrNotCheckedIn      = errors.New("checkout: participant has not checked in")
	ErrMissingStartTime  = errors.New("checkout: event has no parsable start time")
	ErrSessionClosed     = errors.New("session: check-in session is closed")
	ErrCapacityReached   = errors.New("register: event capacity reached")
)

// PersistenceError wraps a failed store operation after the retry budget is
// exhausted.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// LockoutError reports a check-out attempted before the lockout window has
// elapsed. Remaining is recomputed per attempt, never stored.
type LockoutError struct {
	Remaining time.Duration
}

func (e *LockoutError) Error() string {
	return fmt.Sprintf("checkout: locked for another %d minute(s)", e.MinutesRemaining())
}

// MinutesRemaining rounds the remaining lockout up to whole minutes so the
// caller can surface a countdown.
func (e *LockoutError) MinutesRemaining() int {
	return int(math.Ceil(e.Remaining.Minutes()))
}

// ConfirmResult is the outcome of the confirm-read that follows an
// attendance write.
type ConfirmResult int

const (
	// Confirmed means the re-read observed the write; the confirmed record
	// replaced the optimistic cache entry.
	Confirmed ConfirmResult = iota
	// ConfirmTimedOut means the write could not be verified within the retry
	// budget; the optimistic entry stands and a later refresh reconciles it.
	ConfirmTimedOut
)

func (r ConfirmResult) String() string {
	switch r {
	case Confirmed:
		return "confirmed"
	case ConfirmTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}
