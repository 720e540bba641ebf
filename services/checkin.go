package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"eventease/config"
	"eventease/internal/status"
	"eventease/models"
	"eventease/monitoring"
	"eventease/store"
	"eventease/utils"
)

// CheckinService is the reconciliation engine: it turns scanned or typed
// identities into durable, non-duplicated attendance transitions and keeps
// each session cache reconcilable with the store. Correctness relies on
// idempotent upserts and confirm-after-write, not on distributed locking;
// the short Redis scan locks only shed duplicate scans arriving while a
// write is still in flight.
type CheckinService struct {
	events       store.Events
	participants store.Participants
	redis        *redis.Client
	notifier     Notifier
	cfg          *config.Config

	// now is swappable for tests; all guards read the clock through it.
	now func() time.Time

	mu       sync.RWMutex
	sessions map[string]*CheckInSession
}

func NewCheckinService(
	events store.Events,
	participants store.Participants,
	redisClient *redis.Client,
	notifier Notifier,
	cfg *config.Config,
) *CheckinService {
	return &CheckinService{
		events:       events,
		participants: participants,
		redis:        redisClient,
		notifier:     notifier,
		cfg:          cfg,
		now:          time.Now,
		sessions:     make(map[string]*CheckInSession),
	}
}

// OpenSession loads the event and its participant list into a fresh cache.
// Opening is allowed for any event; the scan guards decide checkability per
// attempt so a session opened just before the window closes behaves the
// same as any other.
func (s *CheckinService) OpenSession(ctx context.Context, eventID string) (*CheckInSession, error) {
	event, err := s.events.FetchEvent(ctx, eventID)
	if err != nil {
		return nil, &status.PersistenceError{Op: "fetch event", Err: err}
	}
	list, err := s.participants.FetchParticipants(ctx, eventID)
	if err != nil {
		return nil, &status.PersistenceError{Op: "fetch participants", Err: err}
	}

	sess := newCheckInSession(event)
	sess.Replace(list)

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	open := len(s.sessions)
	s.mu.Unlock()

	monitoring.SetOpenSessions(open)
	slog.Info("check-in session opened",
		"session", sess.ID, "event", eventID, "participants", sess.Size())
	return sess, nil
}

// Session resolves an open session by id.
func (s *CheckinService) Session(id string) (*CheckInSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok || sess.Closed() {
		return nil, false
	}
	return sess, true
}

// CloseSession invalidates the session cache and aborts its pending
// confirm-reads.
func (s *CheckinService) CloseSession(id string) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	open := len(s.sessions)
	s.mu.Unlock()

	if ok {
		sess.Close()
		monitoring.SetOpenSessions(open)
		slog.Info("check-in session closed", "session", id)
	}
}

// CheckInScan matches a scanned identity against the session cache and
// applies the registered -> attended transition. A no-match is refused with
// ErrNotRegistered and never auto-creates; that path is reserved for the
// explicit manual fallback.
func (s *CheckinService) CheckInScan(ctx context.Context, sess *CheckInSession, payload models.ScanPayload) (*models.Participant, status.ConfirmResult, error) {
	if sess.Closed() {
		return nil, status.ConfirmTimedOut, status.ErrSessionClosed
	}
	if err := payload.Validate(); err != nil {
		return nil, status.ConfirmTimedOut, fmt.Errorf("%w: %v", status.ErrScanRejected, err)
	}
	if err := s.ensureCheckable(sess); err != nil {
		return nil, status.ConfirmTimedOut, err
	}

	p, ok := sess.Match(payload)
	if !ok || p.Status == models.AttendanceCancelled {
		monitoring.RecordCheckIn("not_registered")
		return nil, status.ConfirmTimedOut, status.ErrNotRegistered
	}
	if err := s.ensureNotAttended(p); err != nil {
		monitoring.RecordCheckIn("duplicate")
		return p, status.ConfirmTimedOut, err
	}

	release, err := s.acquireScanLock(ctx, sess.EventID, p.ID)
	if err != nil {
		monitoring.RecordCheckIn("duplicate")
		return p, status.ConfirmTimedOut, err
	}
	defer release()

	return s.applyAttend(ctx, sess, p)
}

// CheckInManual is the operator-typed fallback. A known contact address goes
// through the same transition as a scan; an unknown one creates a new
// participant directly in attended state, cache and store in one operation.
func (s *CheckinService) CheckInManual(ctx context.Context, sess *CheckInSession, req models.ManualCheckIn) (*models.Participant, status.ConfirmResult, error) {
	if sess.Closed() {
		return nil, status.ConfirmTimedOut, status.ErrSessionClosed
	}
	if err := req.Validate(); err != nil {
		return nil, status.ConfirmTimedOut, fmt.Errorf("%w: %v", status.ErrScanRejected, err)
	}
	if err := s.ensureCheckable(sess); err != nil {
		return nil, status.ConfirmTimedOut, err
	}

	if p, ok := sess.LookupEmail(req.Email); ok && p.Status != models.AttendanceCancelled {
		if err := s.ensureNotAttended(p); err != nil {
			monitoring.RecordCheckIn("duplicate")
			return p, status.ConfirmTimedOut, err
		}
		release, err := s.acquireScanLock(ctx, sess.EventID, p.ID)
		if err != nil {
			monitoring.RecordCheckIn("duplicate")
			return p, status.ConfirmTimedOut, err
		}
		defer release()
		return s.applyAttend(ctx, sess, p)
	}

	release, err := s.acquireScanLock(ctx, sess.EventID, strings.ToLower(req.Email))
	if err != nil {
		monitoring.RecordCheckIn("duplicate")
		return nil, status.ConfirmTimedOut, err
	}
	defer release()

	now := s.now()
	code, _ := utils.GenerateCode(4)
	walkIn := &models.Participant{
		EventID:       sess.EventID,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Email:         req.Email,
		Phone:         req.Phone,
		Status:        models.AttendanceAttended,
		ReferenceCode: code,
		CheckInAt:     &now,
	}

	saved, err := s.participants.UpsertParticipant(ctx, walkIn)
	if err != nil {
		monitoring.RecordCheckIn("persistence_failure")
		return nil, status.ConfirmTimedOut, &status.PersistenceError{Op: "create walk-in", Err: err}
	}
	sess.Upsert(saved)

	res := s.confirmWrite(sess, saved.ID)
	s.notifier.CheckInRecorded(sess.EventID, saved)
	monitoring.RecordCheckIn("success")
	slog.Info("manual walk-in checked in",
		"session", sess.ID, "participant", saved.ID, "confirm", res.String())

	current, _ := sess.Get(saved.ID)
	return current, res, nil
}

// applyAttend persists the attendance transition, updates the cache
// optimistically and reconciles through the confirm-read.
func (s *CheckinService) applyAttend(ctx context.Context, sess *CheckInSession, p *models.Participant) (*models.Participant, status.ConfirmResult, error) {
	now := s.now()
	upd := *p
	upd.Status = models.AttendanceAttended
	upd.CheckInAt = &now

	saved, err := s.participants.UpsertParticipant(ctx, &upd)
	if err != nil {
		monitoring.RecordCheckIn("persistence_failure")
		return nil, status.ConfirmTimedOut, &status.PersistenceError{Op: "persist attendance", Err: err}
	}
	sess.Upsert(saved)

	res := s.confirmWrite(sess, saved.ID)
	s.notifier.CheckInRecorded(sess.EventID, saved)
	monitoring.RecordCheckIn("success")
	slog.Info("participant checked in",
		"session", sess.ID, "participant", saved.ID, "confirm", res.String())

	current, _ := sess.Get(saved.ID)
	return current, res, nil
}

// confirmWrite re-reads the record a bounded number of times with linearly
// increasing backoff. Confirmation always wins over the optimistic entry;
// when it never arrives the optimistic value stands and the periodic session
// refresh reconciles it later.
func (s *CheckinService) confirmWrite(sess *CheckInSession, id string) status.ConfirmResult {
	started := time.Now()
	for attempt := 1; attempt <= s.cfg.ConfirmMaxAttempts; attempt++ {
		confirmed, err := s.participants.FetchParticipant(sess.Context(), id)
		if err == nil && confirmed.CheckedIn() {
			sess.Upsert(confirmed)
			monitoring.ObserveConfirm("confirmed", time.Since(started))
			return status.Confirmed
		}
		if attempt == s.cfg.ConfirmMaxAttempts {
			break
		}
		select {
		case <-sess.Context().Done():
			// Session was invalidated mid-confirm; the result must be
			// discarded, not applied to whatever comes next.
			monitoring.ObserveConfirm("aborted", time.Since(started))
			return status.ConfirmTimedOut
		case <-time.After(time.Duration(attempt) * s.cfg.ConfirmBackoff):
		}
	}
	slog.Warn("attendance write not confirmed within retry budget",
		"session", sess.ID, "participant", id)
	monitoring.ObserveConfirm("timed_out", time.Since(started))
	return status.ConfirmTimedOut
}

// RefreshSessions re-fetches the participant list of every open session so
// unconfirmed optimistic entries converge with the store.
func (s *CheckinService) RefreshSessions(ctx context.Context) {
	s.mu.RLock()
	open := make([]*CheckInSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		open = append(open, sess)
	}
	s.mu.RUnlock()

	for _, sess := range open {
		if sess.Closed() {
			continue
		}
		list, err := s.participants.FetchParticipants(ctx, sess.EventID)
		if err != nil {
			slog.Warn("session refresh failed", "session", sess.ID, "error", err)
			continue
		}
		sess.Replace(list)
	}
}

func (s *CheckinService) ensureCheckable(sess *CheckInSession) error {
	switch ComputeStatus(sess.Event, s.now()) {
	case models.StatusCompleted, models.StatusCancelled:
		return status.ErrEventNotCheckable
	default:
		return nil
	}
}

func (s *CheckinService) ensureNotAttended(p *models.Participant) error {
	if p.LoggedOut() {
		return status.ErrAlreadyLoggedOut
	}
	if p.Status == models.AttendanceAttended {
		return status.ErrAlreadyAttended
	}
	return nil
}

// acquireScanLock takes a short TTL lock so a duplicate scan racing the
// in-flight write is refused instead of written twice. Redis being down
// degrades to the cache guards alone.
func (s *CheckinService) acquireScanLock(ctx context.Context, eventID, identity string) (func(), error) {
	if s.redis == nil {
		return func() {}, nil
	}
	key := fmt.Sprintf("checkin:lock:%s:%s", eventID, identity)
	ok, err := s.redis.SetNX(ctx, key, "1", s.cfg.ScanLockTTL).Result()
	if err != nil {
		slog.Warn("scan lock unavailable", "key", key, "error", err)
		return func() {}, nil
	}
	if !ok {
		return nil, status.ErrScanInFlight
	}
	return func() { s.redis.Del(ctx, key) }, nil
}
