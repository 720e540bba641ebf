package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"

	"eventease/internal/status"
	"eventease/models"
	"eventease/services"
	"eventease/store"
	"eventease/utils"
)

type EventHandler struct {
	app          *pocketbase.PocketBase
	events       store.Events
	participants store.Participants
	schedule     *services.ScheduleService
	notifier     services.Notifier
	redis        *redis.Client
}

func NewEventHandler(
	app *pocketbase.PocketBase,
	events store.Events,
	participants store.Participants,
	schedule *services.ScheduleService,
	notifier services.Notifier,
	redisClient *redis.Client,
) *EventHandler {
	return &EventHandler{
		app:          app,
		events:       events,
		participants: participants,
		schedule:     schedule,
		notifier:     notifier,
		redis:        redisClient,
	}
}

// List returns events with their effective status. The status query param
// filters on the computed value, not the persisted flag.
func (h *EventHandler) List(e *core.RequestEvent) error {
	q := e.Request.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	filter := store.EventFilter{
		Category: q.Get("category"),
		Search:   q.Get("search"),
		Limit:    limit,
		Offset:   (page - 1) * limit,
	}

	views, err := h.schedule.ListEvents(e.Request.Context(), filter, models.Status(q.Get("status")))
	if err != nil {
		return apis.NewApiError(http.StatusInternalServerError, "Failed to list events", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"events": views,
		"page":   page,
		"limit":  limit,
	})
}

func (h *EventHandler) Get(e *core.RequestEvent) error {
	event, err := h.events.FetchEvent(e.Request.Context(), e.Request.PathValue("eventId"))
	if err != nil {
		return apis.NewNotFoundError("Event not found", nil)
	}

	return e.JSON(http.StatusOK, services.EventView{
		Event:           event,
		EffectiveStatus: services.ComputeStatus(event, time.Now()),
	})
}

// Cancel marks the event cancelled. This is the only explicit lifecycle
// write; every other status transition is derived from time.
func (h *EventHandler) Cancel(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	ctx := e.Request.Context()
	eventID := e.Request.PathValue("eventId")

	if err := h.events.SetEventCancelled(ctx, eventID); err != nil {
		return apis.NewBadRequestError("Failed to cancel event", err)
	}

	h.notifier.EventCancelled(eventID)
	h.redis.SRem(ctx, "active_events", eventID)

	return e.JSON(http.StatusOK, map[string]string{
		"message": "Event cancelled",
	})
}

// Register creates a participant in registered state, subject to the
// capacity limit. Re-registering the same email is an upsert, not a
// duplicate.
func (h *EventHandler) Register(e *core.RequestEvent) error {
	ctx := e.Request.Context()
	eventID := e.Request.PathValue("eventId")

	var req models.Registration
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if err := req.Validate(); err != nil {
		return apis.NewBadRequestError("Invalid registration", err)
	}

	event, err := h.events.FetchEvent(ctx, eventID)
	if err != nil {
		return apis.NewNotFoundError("Event not found", nil)
	}
	switch services.ComputeStatus(event, time.Now()) {
	case models.StatusCompleted, models.StatusCancelled:
		return e.JSON(http.StatusUnprocessableEntity, map[string]string{
			"error": "Registration is closed for this event",
		})
	}

	if event.MaxParticipants > 0 {
		counts, cerr := h.participants.AttendanceCounts(ctx, eventID)
		if cerr != nil {
			return apis.NewApiError(http.StatusInternalServerError, "Failed to check capacity", cerr)
		}
		if counts.Registered+counts.Attended >= event.MaxParticipants {
			return e.JSON(http.StatusConflict, map[string]string{
				"code":  "capacity_reached",
				"error": status.ErrCapacityReached.Error(),
			})
		}
	}

	code, _ := utils.GenerateCode(4)
	saved, err := h.participants.UpsertParticipant(ctx, &models.Participant{
		EventID:       eventID,
		UserID:        req.UserRef,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Email:         req.Email,
		Phone:         req.Phone,
		Status:        models.AttendanceRegistered,
		ReferenceCode: code,
	})
	if err != nil {
		return apis.NewApiError(http.StatusInternalServerError, "Failed to register", err)
	}

	return e.JSON(http.StatusOK, map[string]any{"participant": saved})
}

// Schedule returns the forward-looking event list: everything that has not
// ended yet and is not cancelled.
func (h *EventHandler) Schedule(e *core.RequestEvent) error {
	q := e.Request.URL.Query()
	views, err := h.schedule.Upcoming(e.Request.Context(), store.EventFilter{
		Category: q.Get("category"),
	})
	if err != nil {
		return apis.NewApiError(http.StatusInternalServerError, "Failed to build schedule", err)
	}
	return e.JSON(http.StatusOK, map[string]any{"events": views})
}

// ScheduleICS serves the same view as an iCalendar subscription feed.
func (h *EventHandler) ScheduleICS(e *core.RequestEvent) error {
	views, err := h.schedule.Upcoming(e.Request.Context(), store.EventFilter{})
	if err != nil {
		return apis.NewApiError(http.StatusInternalServerError, "Failed to build schedule", err)
	}
	feed, err := h.schedule.BuildICS(views)
	if err != nil {
		return apis.NewApiError(http.StatusInternalServerError, "Failed to build feed", err)
	}

	e.Response.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	return e.String(http.StatusOK, feed)
}
