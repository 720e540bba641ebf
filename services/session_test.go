package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventease/models"
)

func testSession() *CheckInSession {
	return newCheckInSession(&models.Event{ID: "evt1", Title: "Launch"})
}

func TestSession_ReplaceAndLookup(t *testing.T) {
	sess := testSession()
	sess.Replace([]*models.Participant{
		{ID: "p1", UserID: "u1", Email: "Ann@Example.com", Status: models.AttendanceRegistered},
		{ID: "p2", Email: "bob@example.com", Status: models.AttendanceRegistered},
	})

	assert.Equal(t, 2, sess.Size())

	p, ok := sess.Get("p1")
	require.True(t, ok)
	assert.Equal(t, "u1", p.UserID)

	// Contact lookup is case-insensitive in both directions.
	p, ok = sess.LookupEmail("ann@example.com")
	require.True(t, ok)
	assert.Equal(t, "p1", p.ID)

	p, ok = sess.LookupEmail("BOB@EXAMPLE.COM")
	require.True(t, ok)
	assert.Equal(t, "p2", p.ID)

	_, ok = sess.LookupEmail("nobody@example.com")
	assert.False(t, ok)
}

func TestSession_UpsertIsIdempotentOnIdentity(t *testing.T) {
	sess := testSession()
	sess.Upsert(&models.Participant{ID: "p1", Email: "ann@example.com", Status: models.AttendanceRegistered})
	sess.Upsert(&models.Participant{ID: "p1", Email: "ann@example.com", Status: models.AttendanceAttended})

	assert.Equal(t, 1, sess.Size())
	p, ok := sess.Get("p1")
	require.True(t, ok)
	assert.Equal(t, models.AttendanceAttended, p.Status)
}

func TestSession_SnapshotPreservesInsertionOrder(t *testing.T) {
	sess := testSession()
	sess.Upsert(&models.Participant{ID: "p3"})
	sess.Upsert(&models.Participant{ID: "p1"})
	sess.Upsert(&models.Participant{ID: "p2"})
	// Re-upserting must not move the entry.
	sess.Upsert(&models.Participant{ID: "p3", FirstName: "Ann"})

	snap := sess.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "p3", snap[0].ID)
	assert.Equal(t, "p1", snap[1].ID)
	assert.Equal(t, "p2", snap[2].ID)
	assert.Equal(t, "Ann", snap[0].FirstName)
}

func TestSession_GetReturnsCopy(t *testing.T) {
	sess := testSession()
	sess.Upsert(&models.Participant{ID: "p1", FirstName: "Ann"})

	p, ok := sess.Get("p1")
	require.True(t, ok)
	p.FirstName = "changed"

	again, _ := sess.Get("p1")
	assert.Equal(t, "Ann", again.FirstName)
}

func TestSession_Match(t *testing.T) {
	sess := testSession()
	sess.Replace([]*models.Participant{
		{ID: "p1", UserID: "u1", Email: "ann@example.com"},
		{ID: "p2", Email: "bob@example.com"},
	})

	// Stable reference wins over email.
	p, ok := sess.Match(models.ScanPayload{UserRef: "u1", Email: "bob@example.com"})
	require.True(t, ok)
	assert.Equal(t, "p1", p.ID)

	p, ok = sess.Match(models.ScanPayload{Email: "BOB@example.com"})
	require.True(t, ok)
	assert.Equal(t, "p2", p.ID)

	_, ok = sess.Match(models.ScanPayload{UserRef: "unknown"})
	assert.False(t, ok)
}

func TestSession_CloseDiscardsLateWrites(t *testing.T) {
	sess := testSession()
	sess.Upsert(&models.Participant{ID: "p1"})

	sess.Close()
	assert.True(t, sess.Closed())
	assert.Error(t, sess.Context().Err())

	// A confirm-read resolving after the close must not repopulate the cache.
	sess.Upsert(&models.Participant{ID: "p2"})
	sess.Replace([]*models.Participant{{ID: "p3"}})
	assert.Zero(t, sess.Size())

	// Idempotent.
	sess.Close()
	assert.True(t, sess.Closed())
}
