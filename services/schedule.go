package services

import (
	"context"
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"

	"eventease/models"
	"eventease/store"
	"eventease/utils"
)

// EventView is an event decorated with its effective, time-derived status.
// The persisted flag never reaches API consumers directly.
type EventView struct {
	*models.Event
	EffectiveStatus models.Status `json:"effective_status"`
}

// ScheduleService produces the forward-looking schedule views and the
// iCalendar feed built on top of them.
type ScheduleService struct {
	events store.Events
	now    func() time.Time
}

func NewScheduleService(events store.Events) *ScheduleService {
	return &ScheduleService{events: events, now: time.Now}
}

// ListEvents returns events decorated with effective status, optionally
// narrowed to one effective status value.
func (s *ScheduleService) ListEvents(ctx context.Context, f store.EventFilter, effective models.Status) ([]EventView, error) {
	events, err := s.events.ListEvents(ctx, f)
	if err != nil {
		return nil, err
	}
	now := s.now()
	views := make([]EventView, 0, len(events))
	for _, e := range events {
		st := ComputeStatus(e, now)
		if effective != "" && st != effective {
			continue
		}
		views = append(views, EventView{Event: e, EffectiveStatus: st})
	}
	return views, nil
}

// Upcoming returns the events that still belong in a forward-looking
// schedule: not yet ended and not cancelled.
func (s *ScheduleService) Upcoming(ctx context.Context, f store.EventFilter) ([]EventView, error) {
	events, err := s.events.ListEvents(ctx, f)
	if err != nil {
		return nil, err
	}
	now := s.now()
	views := make([]EventView, 0, len(events))
	for _, e := range events {
		if e.Cancelled() || !IsInFuture(e, now) {
			continue
		}
		views = append(views, EventView{Event: e, EffectiveStatus: ComputeStatus(e, now)})
	}
	return views, nil
}

// BuildICS renders the schedule as an iCalendar feed for subscription by
// external calendar clients.
func (s *ScheduleService) BuildICS(views []EventView) (string, error) {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//eventease//schedule//EN")

	loc := s.now().Location()
	for _, v := range views {
		start, hasClock, err := utils.EventStart(v.Date, v.Time, loc)
		if err != nil {
			continue
		}
		ev := cal.AddEvent(fmt.Sprintf("%s@eventease", v.ID))
		ev.SetSummary(v.Title)
		if v.Location != "" {
			ev.SetLocation(v.Location)
		}
		if v.Description != "" {
			ev.SetDescription(v.Description)
		}
		if hasClock {
			ev.SetStartAt(start)
			ev.SetEndAt(start.Add(DefaultEventDuration))
		} else {
			ev.SetAllDayStartAt(start)
			ev.SetAllDayEndAt(start.Add(24 * time.Hour))
		}
	}
	return cal.Serialize(), nil
}
