package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"golang.org/x/crypto/bcrypt"

	"eventease/config"
	"eventease/internal/status"
	"eventease/models"
	"eventease/security"
	"eventease/services"
)

type CheckinHandler struct {
	app      *pocketbase.PocketBase
	checkins *services.CheckinService
	limiter  *security.RateLimiter
	cfg      *config.Config
}

func NewCheckinHandler(app *pocketbase.PocketBase, checkins *services.CheckinService, limiter *security.RateLimiter, cfg *config.Config) *CheckinHandler {
	return &CheckinHandler{
		app:      app,
		checkins: checkins,
		limiter:  limiter,
		cfg:      cfg,
	}
}

// OpenSession starts a scanning session for one event and returns the
// initial cache snapshot.
func (h *CheckinHandler) OpenSession(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		EventID string `json:"event_id"`
	}
	if err := e.BindBody(&req); err != nil || req.EventID == "" {
		return apis.NewBadRequestError("Invalid request", err)
	}

	sess, err := h.checkins.OpenSession(e.Request.Context(), req.EventID)
	if err != nil {
		return apis.NewBadRequestError("Failed to open check-in session", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"session_id":   sess.ID,
		"event":        sess.Event,
		"participants": sess.Snapshot(),
	})
}

// CloseSession invalidates the session; a late confirm-read for it is
// discarded rather than applied.
func (h *CheckinHandler) CloseSession(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}
	h.checkins.CloseSession(e.Request.PathValue("sessionId"))
	return e.NoContent(http.StatusNoContent)
}

// Scan applies a scanned-identity check-in.
func (h *CheckinHandler) Scan(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	ctx := e.Request.Context()
	limiterKey := fmt.Sprintf("scan:%s", e.Auth.Id)
	if err := h.limiter.Allow(ctx, limiterKey, h.cfg.ScanRateLimit, h.cfg.ScanRateWindow); err != nil {
		return e.JSON(http.StatusTooManyRequests, map[string]string{
			"error": "Too many scans, slow down",
		})
	}

	var req struct {
		SessionID string `json:"session_id"`
		UserRef   string `json:"user_id"`
		Email     string `json:"email"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	sess, ok := h.checkins.Session(req.SessionID)
	if !ok {
		return apis.NewNotFoundError("Check-in session not found", nil)
	}

	payload := models.ScanPayload{UserRef: req.UserRef, Email: req.Email}
	p, confirm, err := h.checkins.CheckInScan(ctx, sess, payload)
	if err != nil {
		return h.writeCheckinError(e, sess, p, err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"participant": p,
		"confirm":     confirm.String(),
	})
}

// Manual is the typed fallback path. It can create a new attended
// participant on the fly, so it additionally requires the station key.
func (h *CheckinHandler) Manual(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}
	if h.cfg.StationKeyHash != "" {
		key := e.Request.Header.Get("X-Station-Key")
		if bcrypt.CompareHashAndPassword([]byte(h.cfg.StationKeyHash), []byte(key)) != nil {
			return apis.NewForbiddenError("Invalid station key", nil)
		}
	}

	var req struct {
		SessionID string `json:"session_id"`
		models.ManualCheckIn
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	sess, ok := h.checkins.Session(req.SessionID)
	if !ok {
		return apis.NewNotFoundError("Check-in session not found", nil)
	}

	p, confirm, err := h.checkins.CheckInManual(e.Request.Context(), sess, req.ManualCheckIn)
	if err != nil {
		return h.writeCheckinError(e, sess, p, err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"participant": p,
		"confirm":     confirm.String(),
	})
}

// Logout runs the check-out gate.
func (h *CheckinHandler) Logout(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		SessionID     string `json:"session_id"`
		ParticipantID string `json:"participant_id"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	sess, ok := h.checkins.Session(req.SessionID)
	if !ok {
		return apis.NewNotFoundError("Check-in session not found", nil)
	}

	p, err := h.checkins.AttemptLogout(e.Request.Context(), sess, req.ParticipantID)
	if err != nil {
		var lockout *status.LockoutError
		switch {
		case errors.As(err, &lockout):
			return e.JSON(http.StatusLocked, map[string]any{
				"code":              "lockout_not_elapsed",
				"minutes_remaining": lockout.MinutesRemaining(),
			})
		case errors.Is(err, status.ErrAlreadyLoggedOut):
			return e.JSON(http.StatusConflict, map[string]any{
				"code":        "already_logged_out",
				"participant": p,
			})
		case errors.Is(err, status.ErrNotCheckedIn):
			return e.JSON(http.StatusConflict, map[string]any{
				"code":        "not_checked_in",
				"participant": p,
			})
		case errors.Is(err, status.ErrMissingStartTime):
			return e.JSON(http.StatusUnprocessableEntity, map[string]any{
				"code":  "missing_start_time",
				"error": "Event has no parsable start time; logout cannot be time-gated",
			})
		case errors.Is(err, status.ErrNotRegistered):
			return apis.NewNotFoundError("Participant not in this session", nil)
		case errors.Is(err, status.ErrSessionClosed):
			return apis.NewNotFoundError("Check-in session not found", nil)
		default:
			return apis.NewApiError(http.StatusInternalServerError, "Failed to record logout", err)
		}
	}

	return e.JSON(http.StatusOK, map[string]any{"participant": p})
}

// Participants returns the current cache snapshot for rendering.
func (h *CheckinHandler) Participants(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	sess, ok := h.checkins.Session(e.Request.PathValue("sessionId"))
	if !ok {
		return apis.NewNotFoundError("Check-in session not found", nil)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"event":        sess.Event,
		"participants": sess.Snapshot(),
	})
}

// Export streams the attendance CSV for the session's event.
func (h *CheckinHandler) Export(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	sess, ok := h.checkins.Session(e.Request.PathValue("sessionId"))
	if !ok {
		return apis.NewNotFoundError("Check-in session not found", nil)
	}

	out, err := services.ExportAttendance(sess.Snapshot())
	if err != nil {
		return apis.NewApiError(http.StatusInternalServerError, "Failed to build export", err)
	}

	e.Response.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=attendance_%s.csv", sess.EventID))
	e.Response.Header().Set("Content-Type", "text/csv")
	return e.String(http.StatusOK, out)
}

// writeCheckinError maps the typed check-in outcomes to responses. Guard
// violations include the current participant state so the operator can pick
// the right follow-up, e.g. check-out instead of a second check-in.
func (h *CheckinHandler) writeCheckinError(e *core.RequestEvent, sess *services.CheckInSession, p *models.Participant, err error) error {
	switch {
	case errors.Is(err, status.ErrScanRejected):
		return apis.NewBadRequestError("Malformed scan payload", err)
	case errors.Is(err, status.ErrNotRegistered):
		return e.JSON(http.StatusNotFound, map[string]any{
			"code":  "not_registered",
			"error": "Identity is not registered for this event",
		})
	case errors.Is(err, status.ErrAlreadyAttended):
		resp := map[string]any{
			"code":        "already_attended",
			"participant": p,
		}
		if eligible, remaining, gerr := services.LogoutEligibility(sess.Event, time.Now()); gerr == nil {
			resp["can_logout"] = eligible
			if !eligible {
				lockout := status.LockoutError{Remaining: remaining}
				resp["logout_in_minutes"] = lockout.MinutesRemaining()
			}
		}
		return e.JSON(http.StatusConflict, resp)
	case errors.Is(err, status.ErrAlreadyLoggedOut):
		return e.JSON(http.StatusConflict, map[string]any{
			"code":        "already_logged_out",
			"participant": p,
		})
	case errors.Is(err, status.ErrScanInFlight):
		return e.JSON(http.StatusConflict, map[string]any{
			"code":  "scan_in_flight",
			"error": "A scan for this identity is already being processed",
		})
	case errors.Is(err, status.ErrEventNotCheckable):
		return e.JSON(http.StatusUnprocessableEntity, map[string]any{
			"code":  "event_not_checkable",
			"error": "Event is completed or cancelled",
		})
	case errors.Is(err, status.ErrSessionClosed):
		return apis.NewNotFoundError("Check-in session not found", nil)
	default:
		return apis.NewApiError(http.StatusInternalServerError, "Failed to record check-in", err)
	}
}
