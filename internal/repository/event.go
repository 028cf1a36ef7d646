package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Shivanand-hulikatti/slot-booking/internal/model"
	"github.com/jackc/pgx/v5"
)

// EventRepository handles persistence for events and their slots.
type EventRepository struct {
	db querier
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(db querier) *EventRepository {
	return &EventRepository{db: db}
}

// CreateEvent inserts the event row only; slots are added with AddSlot.
func (r *EventRepository) CreateEvent(ctx context.Context, e *model.Event) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO events (id, name, event_date, description, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		e.ID, e.Name, e.Date, e.Description, e.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// AddSlot inserts a slot owned by an existing event.
func (r *EventRepository) AddSlot(ctx context.Context, s *model.TimeSlot) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO time_slots (id, event_id, start_time, end_time, max_capacity, current_bookings)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID, s.EventID, s.StartTime, s.EndTime, s.MaxCapacity, s.CurrentBookings,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert time slot: %w", err)
	}
	return nil
}

// ListEvents returns all events, newest first, each with its slots.
func (r *EventRepository) ListEvents(ctx context.Context) ([]model.Event, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, event_date, description, created_at
		 FROM events
		 ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var e model.Event
		if err := rows.Scan(&e.ID, &e.Name, &e.Date, &e.Description, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	for i := range events {
		slots, err := r.ListSlots(ctx, events[i].ID)
		if err != nil {
			return nil, err
		}
		events[i].Slots = slots
	}
	return events, nil
}

// GetEvent returns a single event with its slots or ErrNotFound.
func (r *EventRepository) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	var e model.Event
	err := r.db.QueryRow(ctx,
		`SELECT id, name, event_date, description, created_at
		 FROM events WHERE id = $1`,
		id,
	).Scan(&e.ID, &e.Name, &e.Date, &e.Description, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}

	if e.Slots, err = r.ListSlots(ctx, e.ID); err != nil {
		return nil, err
	}
	return &e, nil
}

// ListSlots returns the slots of an event ordered by start time.
func (r *EventRepository) ListSlots(ctx context.Context, eventID string) ([]model.TimeSlot, error) {
	if !validID(eventID) {
		return []model.TimeSlot{}, nil
	}
	rows, err := r.db.Query(ctx,
		`SELECT id, event_id, start_time, end_time, max_capacity, current_bookings
		 FROM time_slots
		 WHERE event_id = $1
		 ORDER BY start_time ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list time slots: %w", err)
	}
	defer rows.Close()

	slots := []model.TimeSlot{}
	for rows.Next() {
		var s model.TimeSlot
		if err := rows.Scan(&s.ID, &s.EventID, &s.StartTime, &s.EndTime, &s.MaxCapacity, &s.CurrentBookings); err != nil {
			return nil, fmt.Errorf("scan time slot: %w", err)
		}
		s.StartTime, s.EndTime = s.StartTime.UTC(), s.EndTime.UTC()
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

// GetSlot returns a single slot or ErrNotFound.
func (r *EventRepository) GetSlot(ctx context.Context, id string) (*model.TimeSlot, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	var s model.TimeSlot
	err := r.db.QueryRow(ctx,
		`SELECT id, event_id, start_time, end_time, max_capacity, current_bookings
		 FROM time_slots WHERE id = $1`,
		id,
	).Scan(&s.ID, &s.EventID, &s.StartTime, &s.EndTime, &s.MaxCapacity, &s.CurrentBookings)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get time slot: %w", err)
	}
	s.StartTime, s.EndTime = s.StartTime.UTC(), s.EndTime.UTC()
	return &s, nil
}
