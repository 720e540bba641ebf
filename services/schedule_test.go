package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventease/models"
	"eventease/store"
)

func setupSchedule() (*ScheduleService, *fakeEvents) {
	events := newFakeEvents(
		&models.Event{ID: "past", Title: "Kickoff", Date: "2026-06-14", Time: "10:00",
			Status: models.StatusUpcoming, Category: "meetup"},
		&models.Event{ID: "today", Title: "Launch", Date: "2026-06-15", Time: "14:00",
			Status: models.StatusUpcoming, Category: "meetup"},
		&models.Event{ID: "later", Title: "Retro", Date: "2026-06-20",
			Status: models.StatusUpcoming, Category: "workshop"},
		&models.Event{ID: "gone", Title: "Dropped", Date: "2026-06-25", Time: "10:00",
			Status: models.StatusCancelled, Category: "meetup"},
	)
	svc := &ScheduleService{
		events: events,
		now:    func() time.Time { return time.Date(2026, 6, 15, 14, 30, 0, 0, time.UTC) },
	}
	return svc, events
}

func TestScheduleService_ListEventsDerivesStatus(t *testing.T) {
	svc, _ := setupSchedule()

	views, err := svc.ListEvents(context.Background(), store.EventFilter{}, "")
	require.NoError(t, err)
	require.Len(t, views, 4)

	byID := make(map[string]models.Status, len(views))
	for _, v := range views {
		byID[v.ID] = v.EffectiveStatus
	}
	assert.Equal(t, models.StatusCompleted, byID["past"])
	assert.Equal(t, models.StatusOngoing, byID["today"])
	assert.Equal(t, models.StatusUpcoming, byID["later"])
	assert.Equal(t, models.StatusCancelled, byID["gone"])
}

func TestScheduleService_ListEventsFiltersOnEffectiveStatus(t *testing.T) {
	svc, _ := setupSchedule()

	views, err := svc.ListEvents(context.Background(), store.EventFilter{}, models.StatusOngoing)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "today", views[0].ID)
}

func TestScheduleService_UpcomingDropsEndedAndCancelled(t *testing.T) {
	svc, _ := setupSchedule()

	views, err := svc.Upcoming(context.Background(), store.EventFilter{})
	require.NoError(t, err)

	ids := make([]string, 0, len(views))
	for _, v := range views {
		ids = append(ids, v.ID)
	}
	assert.ElementsMatch(t, []string{"today", "later"}, ids)
}

func TestScheduleService_BuildICS(t *testing.T) {
	svc, _ := setupSchedule()

	views, err := svc.Upcoming(context.Background(), store.EventFilter{})
	require.NoError(t, err)
	feed, err := svc.BuildICS(views)
	require.NoError(t, err)

	assert.Contains(t, feed, "BEGIN:VCALENDAR")
	assert.Contains(t, feed, "BEGIN:VEVENT")
	assert.Contains(t, feed, "SUMMARY:Launch")
	assert.Contains(t, feed, "SUMMARY:Retro")
	assert.Contains(t, feed, "UID:today@eventease")
	assert.Equal(t, 2, strings.Count(feed, "BEGIN:VEVENT"))
}
