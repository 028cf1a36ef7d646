// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the repository layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/slot-booking/internal/clock"
	"github.com/Shivanand-hulikatti/slot-booking/internal/model"
	"github.com/Shivanand-hulikatti/slot-booking/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	dateLayout     = "2006-01-02"
	maxSlotsPerDay = 48
	maxCapacity    = 100_000
)

var clockLayouts = []string{"15:04", "15:04:05"}

// EventService owns the catalog: events and their 30 minute slots.
type EventService struct {
	store  repository.Storage
	clock  clock.Clock
	logger zerolog.Logger
}

// NewEventService constructs an EventService over store.
func NewEventService(store repository.Storage, opts ...Option) *EventService {
	o := buildOptions(opts)
	return &EventService{
		store:  store,
		clock:  o.clock,
		logger: o.logger.With().Str("component", "catalog").Logger(),
	}
}

// CreateEvent validates the request and stores the event with all of its
// slots, or nothing.
func (s *EventService) CreateEvent(ctx context.Context, req model.CreateEventRequest) (*model.Event, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, invalid("event name is required")
	}
	if len(name) > maxNameLength {
		return nil, invalid("event name cannot exceed %d characters", maxNameLength)
	}
	date, err := time.ParseInLocation(dateLayout, strings.TrimSpace(req.Date), time.UTC)
	if err != nil {
		return nil, invalid("event_date must be formatted as YYYY-MM-DD")
	}
	if len(req.Slots) == 0 {
		return nil, invalid("at least one time slot is required")
	}
	if len(req.Slots) > maxSlotsPerDay {
		return nil, invalid("an event cannot have more than %d time slots", maxSlotsPerDay)
	}

	event := &model.Event{
		ID:          uuid.NewString(),
		Name:        name,
		Date:        date,
		Description: trimmedOrNil(req.Description),
		CreatedAt:   s.clock.Now(),
		Slots:       make([]model.TimeSlot, 0, len(req.Slots)),
	}
	for i, sr := range req.Slots {
		slot, err := buildSlot(event.ID, date, sr)
		if err != nil {
			return nil, fmt.Errorf("time_slots[%d]: %w", i, err)
		}
		event.Slots = append(event.Slots, slot)
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := tx.Catalog().CreateEvent(ctx, event); err != nil {
			return fmt.Errorf("create event: %w", err)
		}
		for i := range event.Slots {
			if err := tx.Catalog().AddSlot(ctx, &event.Slots[i]); err != nil {
				return fmt.Errorf("add slot: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, conflictErr(err)
	}

	s.logger.Info().
		Str("event_id", event.ID).
		Int("slots", len(event.Slots)).
		Msg("event created")
	return event, nil
}

// ListEvents returns all events with their slots.
func (s *EventService) ListEvents(ctx context.Context) ([]model.Event, error) {
	return s.store.Catalog().ListEvents(ctx)
}

// GetEvent returns a single event by ID.
func (s *EventService) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	if id == "" {
		return nil, ErrEventNotFound
	}
	event, err := s.store.Catalog().GetEvent(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

// ListSlots returns an event's slots ordered by start time. An unknown event
// has no slots.
func (s *EventService) ListSlots(ctx context.Context, eventID string) ([]model.TimeSlot, error) {
	slots, err := s.store.Catalog().ListSlots(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	return slots, nil
}

// GetSlot returns a single slot.
func (s *EventService) GetSlot(ctx context.Context, id string) (*model.TimeSlot, error) {
	slot, err := s.store.Catalog().GetSlot(ctx, id)
	if err != nil {
		return nil, slotErr(err)
	}
	return slot, nil
}

func buildSlot(eventID string, date time.Time, req model.CreateSlotRequest) (model.TimeSlot, error) {
	start, err := onDate(date, req.StartTime)
	if err != nil {
		return model.TimeSlot{}, invalid("start_time must be formatted as HH:MM")
	}
	end, err := onDate(date, req.EndTime)
	if err != nil {
		return model.TimeSlot{}, invalid("end_time must be formatted as HH:MM")
	}
	if end.Sub(start) != model.SlotDuration {
		return model.TimeSlot{}, ErrInvalidSlotDuration
	}
	if req.MaxCapacity <= 0 {
		return model.TimeSlot{}, invalid("max_capacity must be a positive integer")
	}
	if req.MaxCapacity > maxCapacity {
		return model.TimeSlot{}, invalid("max_capacity cannot exceed 100,000")
	}
	return model.TimeSlot{
		ID:          uuid.NewString(),
		EventID:     eventID,
		StartTime:   start,
		EndTime:     end,
		MaxCapacity: req.MaxCapacity,
	}, nil
}

// onDate places a wall-clock time on date.
func onDate(date time.Time, clockTime string) (time.Time, error) {
	clockTime = strings.TrimSpace(clockTime)
	var lastErr error
	for _, layout := range clockLayouts {
		t, err := time.Parse(layout, clockTime)
		if err == nil {
			return date.Add(time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// isValidEmail does a basic structural check.
func isValidEmail(email string) bool {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return false
	}
	return len(parts[0]) > 0 && strings.Contains(parts[1], ".")
}
