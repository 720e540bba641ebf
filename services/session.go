package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"eventease/models"
)

// CheckInSession owns the in-memory participant snapshot for one event while
// an operator is scanning. It is the single source of truth for rendering
// between store round-trips but never the system of record: every entry must
// be reconcilable back to the persisted participant. Closing the session
// (or switching events, which closes it) discards the cache and causes any
// late confirm-read to be dropped instead of applied.
type CheckInSession struct {
	ID       string
	EventID  string
	Event    *models.Event
	OpenedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	closed  bool
	byID    map[string]*models.Participant
	byEmail map[string]string // lowered email -> participant id
	order   []string          // insertion order, kept stable for snapshots
}

func newCheckInSession(event *models.Event) *CheckInSession {
	ctx, cancel := context.WithCancel(context.Background())
	return &CheckInSession{
		ID:       uuid.NewString(),
		EventID:  event.ID,
		Event:    event,
		OpenedAt: time.Now(),
		ctx:      ctx,
		cancel:   cancel,
		byID:     make(map[string]*models.Participant),
		byEmail:  make(map[string]string),
	}
}

// Context is cancelled when the session closes; pending confirm-reads hang
// off it so an event switch aborts them.
func (s *CheckInSession) Context() context.Context { return s.ctx }

func (s *CheckInSession) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Close invalidates the cache. Idempotent.
func (s *CheckInSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.cancel()
	s.byID = make(map[string]*models.Participant)
	s.byEmail = make(map[string]string)
	s.order = nil
}

// Upsert inserts or replaces the entry for p's identity. Writes against a
// closed session are discarded; that is how a confirm-read that resolves
// after an event switch is prevented from leaking into the next session.
func (s *CheckInSession) Upsert(p *models.Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	cp := *p
	if _, exists := s.byID[cp.ID]; !exists {
		s.order = append(s.order, cp.ID)
	}
	s.byID[cp.ID] = &cp
	if cp.Email != "" {
		s.byEmail[strings.ToLower(cp.Email)] = cp.ID
	}
}

// Replace swaps the whole snapshot for a fresh authoritative list.
func (s *CheckInSession) Replace(list []*models.Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.byID = make(map[string]*models.Participant, len(list))
	s.byEmail = make(map[string]string, len(list))
	s.order = make([]string, 0, len(list))
	for _, p := range list {
		cp := *p
		s.byID[cp.ID] = &cp
		s.order = append(s.order, cp.ID)
		if cp.Email != "" {
			s.byEmail[strings.ToLower(cp.Email)] = cp.ID
		}
	}
}

// Get returns a copy of the cached participant.
func (s *CheckInSession) Get(id string) (*models.Participant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	cp := *p
	return &cp, true
}

// LookupEmail resolves a participant by contact address, case-insensitively.
func (s *CheckInSession) LookupEmail(email string) (*models.Participant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, false
	}
	cp := *s.byID[id]
	return &cp, true
}

// Match resolves a scan payload to exactly one cached participant, by stable
// identity reference first and contact address second.
func (s *CheckInSession) Match(payload models.ScanPayload) (*models.Participant, bool) {
	s.mu.RLock()
	if ref := strings.TrimSpace(payload.UserRef); ref != "" {
		for _, id := range s.order {
			if p := s.byID[id]; p.UserID == ref {
				cp := *p
				s.mu.RUnlock()
				return &cp, true
			}
		}
	}
	s.mu.RUnlock()
	if payload.Email != "" {
		return s.LookupEmail(payload.Email)
	}
	return nil, false
}

// Snapshot returns copies of all entries in insertion order.
func (s *CheckInSession) Snapshot() []*models.Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Participant, 0, len(s.order))
	for _, id := range s.order {
		cp := *s.byID[id]
		out = append(out, &cp)
	}
	return out
}

// Size reports the number of cached entries.
func (s *CheckInSession) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
