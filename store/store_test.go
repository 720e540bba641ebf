package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCounts_Total(t *testing.T) {
	c := Counts{Registered: 5, Attended: 3, LoggedOut: 2, Cancelled: 1}

	// Logged-out participants are a subset of attended, not a fourth bucket.
	assert.Equal(t, 9, c.Total())
	assert.Zero(t, Counts{}.Total())
}
