package handlers

import (
	"net/http"
	"time"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"eventease/services"
	"eventease/store"
)

type AdminHandler struct {
	app          *pocketbase.PocketBase
	events       store.Events
	participants store.Participants
	redis        *redis.Client
}

func NewAdminHandler(app *pocketbase.PocketBase, events store.Events, participants store.Participants, redisClient *redis.Client) *AdminHandler {
	return &AdminHandler{
		app:          app,
		events:       events,
		participants: participants,
		redis:        redisClient,
	}
}

// Dashboard summarizes one event's attendance for the organizer console.
func (h *AdminHandler) Dashboard(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	ctx := e.Request.Context()
	eventID := e.Request.PathValue("eventId")

	event, err := h.events.FetchEvent(ctx, eventID)
	if err != nil {
		return apis.NewNotFoundError("Event not found", nil)
	}

	counts, err := h.participants.AttendanceCounts(ctx, eventID)
	if err != nil {
		return apis.NewApiError(http.StatusInternalServerError, "Failed to load counts", err)
	}

	rate := "0"
	if total := counts.Registered + counts.Attended; total > 0 {
		rate = decimal.NewFromInt(int64(counts.Attended)).
			Div(decimal.NewFromInt(int64(total))).
			Mul(decimal.NewFromInt(100)).
			Round(1).
			String()
	}

	return e.JSON(http.StatusOK, map[string]any{
		"event":              event,
		"effective_status":   services.ComputeStatus(event, time.Now()),
		"counts":             counts,
		"participants_total": counts.Total(),
		"attendance_rate":    rate,
	})
}

// ActiveEvents lists the events currently tracked in the Redis registry.
func (h *AdminHandler) ActiveEvents(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	ids, err := h.redis.SMembers(e.Request.Context(), "active_events").Result()
	if err != nil {
		return apis.NewApiError(http.StatusInternalServerError, "Failed to read active events", err)
	}
	return e.JSON(http.StatusOK, map[string]any{"event_ids": ids})
}
