package status

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPersistenceError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := &PersistenceError{Op: "persist attendance", Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "persist attendance")
}

func TestLockoutError_Message(t *testing.T) {
	err := &LockoutError{Remaining: 90 * time.Second}
	assert.Equal(t, 2, err.MinutesRemaining())
	assert.Contains(t, err.Error(), "2 minute")
}

func TestConfirmResult_String(t *testing.T) {
	assert.Equal(t, "confirmed", Confirmed.String())
	assert.Equal(t, "timed_out", ConfirmTimedOut.String())
	assert.Equal(t, "unknown", ConfirmResult(42).String())
}
