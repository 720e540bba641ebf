package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"

	"eventease/models"
	"eventease/utils"
)

const (
	eventsCollection       = "events"
	participantsCollection = "participants"
)

// PocketBaseStore implements Events and Participants on top of the embedded
// PocketBase app. Writes go through a small circuit breaker so a wedged
// database fails fast instead of stacking scans behind it.
type PocketBaseStore struct {
	app     core.App
	breaker *utils.Breaker
}

func NewPocketBaseStore(app core.App) *PocketBaseStore {
	return &PocketBaseStore{
		app:     app,
		breaker: utils.NewBreaker("pocketbase", 5, 30*time.Second),
	}
}

func (s *PocketBaseStore) FetchEvent(ctx context.Context, id string) (*models.Event, error) {
	record, err := s.app.FindRecordById(eventsCollection, id)
	if err != nil {
		return nil, fmt.Errorf("fetch event %s: %w", id, err)
	}
	return EventFromRecord(record), nil
}

func (s *PocketBaseStore) ListEvents(ctx context.Context, f EventFilter) ([]*models.Event, error) {
	parts := []string{"id != ''"}
	params := dbx.Params{}
	if f.Category != "" {
		parts = append(parts, "category = {:category}")
		params["category"] = f.Category
	}
	if f.Search != "" {
		parts = append(parts, "(title ~ {:search} || description ~ {:search})")
		params["search"] = f.Search
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	records, err := s.app.FindRecordsByFilter(
		eventsCollection,
		strings.Join(parts, " && "),
		"-date",
		limit,
		f.Offset,
		params,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	events := make([]*models.Event, 0, len(records))
	for _, r := range records {
		events = append(events, EventFromRecord(r))
	}
	return events, nil
}

func (s *PocketBaseStore) SetEventCancelled(ctx context.Context, id string) error {
	record, err := s.app.FindRecordById(eventsCollection, id)
	if err != nil {
		return fmt.Errorf("fetch event %s: %w", id, err)
	}
	record.Set("status", string(models.StatusCancelled))
	if err := s.breaker.Do(func() error { return s.app.Save(record) }); err != nil {
		return fmt.Errorf("cancel event %s: %w", id, err)
	}
	return nil
}

func (s *PocketBaseStore) FetchParticipants(ctx context.Context, eventID string) ([]*models.Participant, error) {
	records, err := s.app.FindRecordsByFilter(
		participantsCollection,
		"event = {:event}",
		"created",
		0,
		0,
		dbx.Params{"event": eventID},
	)
	if err != nil {
		return nil, fmt.Errorf("fetch participants for %s: %w", eventID, err)
	}

	participants := make([]*models.Participant, 0, len(records))
	for _, r := range records {
		participants = append(participants, participantFromRecord(r))
	}
	return participants, nil
}

func (s *PocketBaseStore) FetchParticipant(ctx context.Context, id string) (*models.Participant, error) {
	record, err := s.app.FindRecordById(participantsCollection, id)
	if err != nil {
		return nil, fmt.Errorf("fetch participant %s: %w", id, err)
	}
	return participantFromRecord(record), nil
}

func (s *PocketBaseStore) UpsertParticipant(ctx context.Context, p *models.Participant) (*models.Participant, error) {
	record, err := s.findParticipantRecord(p)
	if err != nil {
		return nil, err
	}
	if record == nil {
		collection, cerr := s.app.FindCollectionByNameOrId(participantsCollection)
		if cerr != nil {
			return nil, fmt.Errorf("find participants collection: %w", cerr)
		}
		record = core.NewRecord(collection)
	} else if p.ID == "" {
		// An id-less write resolved by (event, email) must never rewind an
		// attended row back to registered; a duplicate registration submit
		// is answered with the existing state instead.
		existing := participantFromRecord(record)
		if existing.Status == models.AttendanceAttended && p.Status == models.AttendanceRegistered {
			return existing, nil
		}
	}

	applyParticipant(record, p)
	if err := s.breaker.Do(func() error { return s.app.Save(record) }); err != nil {
		return nil, fmt.Errorf("upsert participant: %w", err)
	}
	return participantFromRecord(record), nil
}

// findParticipantRecord resolves the existing record for an upsert: by id
// when present, otherwise by the (event, email) identity so retried creates
// cannot produce duplicates. Cancelled rows are excluded from the email
// keying; they keep their audit value and a walk-in for the same address
// gets a fresh record.
func (s *PocketBaseStore) findParticipantRecord(p *models.Participant) (*core.Record, error) {
	if p.ID != "" {
		record, err := s.app.FindRecordById(participantsCollection, p.ID)
		if err != nil {
			return nil, fmt.Errorf("fetch participant %s: %w", p.ID, err)
		}
		return record, nil
	}
	if p.Email == "" {
		return nil, nil
	}
	record, err := s.app.FindFirstRecordByFilter(
		participantsCollection,
		"event = {:event} && email = {:email} && status != 'cancelled'",
		dbx.Params{"event": p.EventID, "email": strings.ToLower(p.Email)},
	)
	if err != nil {
		// No existing record for this identity.
		return nil, nil
	}
	return record, nil
}

func (s *PocketBaseStore) AttendanceCounts(ctx context.Context, eventID string) (Counts, error) {
	var rows []dbx.NullStringMap
	err := s.app.DB().NewQuery(
		`SELECT status,
		        COUNT(*) AS total,
		        SUM(CASE WHEN logout_at != '' THEN 1 ELSE 0 END) AS logged_out
		 FROM participants
		 WHERE event = {:event}
		 GROUP BY status`,
	).Bind(dbx.Params{"event": eventID}).All(&rows)
	if err != nil {
		return Counts{}, fmt.Errorf("attendance counts for %s: %w", eventID, err)
	}

	var counts Counts
	for _, row := range rows {
		total, _ := strconv.Atoi(row["total"].String)
		switch models.AttendanceStatus(row["status"].String) {
		case models.AttendanceRegistered:
			counts.Registered = total
		case models.AttendanceAttended:
			counts.Attended = total
			counts.LoggedOut, _ = strconv.Atoi(row["logged_out"].String)
		case models.AttendanceCancelled:
			counts.Cancelled = total
		}
	}
	return counts, nil
}

// EventFromRecord maps a raw events record to the domain model.
func EventFromRecord(r *core.Record) *models.Event {
	return &models.Event{
		ID:              r.Id,
		Title:           r.GetString("title"),
		Description:     r.GetString("description"),
		Location:        r.GetString("location"),
		Category:        r.GetString("category"),
		Date:            r.GetString("date"),
		Time:            r.GetString("time"),
		EndTime:         r.GetString("end_time"),
		Status:          models.Status(r.GetString("status")),
		MaxParticipants: r.GetInt("max_participants"),
		OrganizerID:     r.GetString("organizer"),
		ContactEmail:    r.GetString("contact_email"),
	}
}

func participantFromRecord(r *core.Record) *models.Participant {
	p := &models.Participant{
		ID:            r.Id,
		EventID:       r.GetString("event"),
		UserID:        r.GetString("user"),
		FirstName:     r.GetString("first_name"),
		LastName:      r.GetString("last_name"),
		Email:         r.GetString("email"),
		Phone:         r.GetString("phone"),
		Status:        models.AttendanceStatus(r.GetString("status")),
		ReferenceCode: r.GetString("reference_code"),
	}
	if dt := r.GetDateTime("check_in_at"); !dt.IsZero() {
		t := dt.Time()
		p.CheckInAt = &t
	}
	if dt := r.GetDateTime("logout_at"); !dt.IsZero() {
		t := dt.Time()
		p.LogoutAt = &t
	}
	return p
}

func applyParticipant(r *core.Record, p *models.Participant) {
	r.Set("event", p.EventID)
	r.Set("user", p.UserID)
	r.Set("first_name", p.FirstName)
	r.Set("last_name", p.LastName)
	r.Set("email", strings.ToLower(p.Email))
	r.Set("phone", p.Phone)
	r.Set("status", string(p.Status))
	r.Set("reference_code", p.ReferenceCode)
	if p.CheckInAt != nil {
		r.Set("check_in_at", p.CheckInAt.UTC())
	}
	if p.LogoutAt != nil {
		r.Set("logout_at", p.LogoutAt.UTC())
	}
}
