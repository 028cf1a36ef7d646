package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/slot-booking/internal/clock"
	"github.com/Shivanand-hulikatti/slot-booking/internal/metrics"
	"github.com/Shivanand-hulikatti/slot-booking/internal/model"
	"github.com/Shivanand-hulikatti/slot-booking/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	opCreate = "create"
	opRebook = "rebook"
	opCancel = "cancel"

	maxNameLength = 255
)

// errBookingVanished aborts a cancel whose locked row was gone at delete time.
var errBookingVanished = errors.New("booking vanished during cancel")

// ReservationService runs the booking lifecycle (create, rebook, cancel)
// against the capacity ledger and the booking store. Every operation that
// touches both runs in one unit of work.
type ReservationService struct {
	store   repository.Storage
	clock   clock.Clock
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// Option configures a ReservationService or an EventService.
type Option func(*options)

type options struct {
	clock   clock.Clock
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// WithClock overrides the system clock.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithLogger sets the logger; the default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func buildOptions(opts []Option) options {
	o := options{clock: clock.UTC, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewReservationService constructs a ReservationService over store.
func NewReservationService(store repository.Storage, opts ...Option) *ReservationService {
	o := buildOptions(opts)
	return &ReservationService{
		store:   store,
		clock:   o.clock,
		logger:  o.logger.With().Str("component", "reservations").Logger(),
		metrics: o.metrics,
	}
}

// CreateBookingInput carries the attendee's request.
type CreateBookingInput struct {
	AttendeeName string
	Email        *string
	TimeSlotID   string
	Seats        int
}

// Create reserves Seats on the slot and records the booking, or does neither.
func (s *ReservationService) Create(ctx context.Context, in CreateBookingInput) (_ *model.Booking, err error) {
	defer s.observe(opCreate, time.Now(), &err)

	name := strings.TrimSpace(in.AttendeeName)
	if name == "" {
		return nil, invalid("attendee_name is required")
	}
	if len(name) > maxNameLength {
		return nil, invalid("attendee_name cannot exceed %d characters", maxNameLength)
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if in.Seats <= 0 {
		return nil, ErrInvalidSeatCount
	}

	token, err := NewBookingToken()
	if err != nil {
		return nil, err
	}
	booking := &model.Booking{
		ID:            uuid.NewString(),
		AttendeeName:  name,
		Email:         email,
		TimeSlotID:    in.TimeSlotID,
		NumberOfSeats: in.Seats,
		Token:         token,
		CreatedAt:     s.clock.Now(),
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := tx.Catalog().GetSlot(ctx, in.TimeSlotID); err != nil {
			return slotErr(err)
		}
		granted, err := tx.Ledger().Reserve(ctx, in.TimeSlotID, in.Seats)
		if err != nil {
			return slotErr(err)
		}
		if !granted {
			return ErrSlotFull
		}
		// A failure from here on rolls the reservation back with the tx.
		if err := tx.Bookings().Create(ctx, booking); err != nil {
			return fmt.Errorf("persist booking: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, conflictErr(err)
	}

	s.logger.Debug().
		Str("booking_id", booking.ID).
		Str("slot_id", booking.TimeSlotID).
		Int("seats", booking.NumberOfSeats).
		Msg("booking created")
	return booking, nil
}

// Rebook moves a booking's seats to newSlotID. Seats are reserved on the new
// slot before the old slot is released; if the reservation is refused,
// nothing changes.
func (s *ReservationService) Rebook(ctx context.Context, token, newSlotID string) (_ *model.Booking, err error) {
	defer s.observe(opRebook, time.Now(), &err)

	if token == "" {
		return nil, ErrBookingNotFound
	}

	var result *model.Booking
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		booking, err := tx.Bookings().GetByTokenForUpdate(ctx, token)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrBookingNotFound
			}
			return fmt.Errorf("resolve booking: %w", err)
		}
		if booking.TimeSlotID == newSlotID {
			result = booking
			return nil
		}

		if _, err := tx.Catalog().GetSlot(ctx, newSlotID); err != nil {
			return slotErr(err)
		}
		from := booking.TimeSlotID
		if err := tx.Ledger().LockSlots(ctx, from, newSlotID); err != nil {
			return err
		}
		granted, err := tx.Ledger().Reserve(ctx, newSlotID, booking.NumberOfSeats)
		if err != nil {
			return slotErr(err)
		}
		if !granted {
			return ErrSlotFull
		}

		if err := tx.Ledger().Release(ctx, from, booking.NumberOfSeats); err != nil {
			return moveFault(booking, newSlotID, fmt.Errorf("release old slot: %w", err))
		}
		moved := *booking
		moved.TimeSlotID = newSlotID
		if err := tx.Bookings().Update(ctx, &moved); err != nil {
			return moveFault(booking, newSlotID, fmt.Errorf("update booking: %w", err))
		}
		result = &moved
		return nil
	})
	if err != nil {
		s.reportFault(err)
		return nil, conflictErr(err)
	}

	s.logger.Debug().
		Str("booking_id", result.ID).
		Str("slot_id", result.TimeSlotID).
		Msg("booking moved")
	return result, nil
}

// Cancel releases a booking's seats and deletes it. A token that matches
// nothing returns false with no error, so repeating a cancel is safe.
func (s *ReservationService) Cancel(ctx context.Context, token string) (_ bool, err error) {
	defer s.observe(opCancel, time.Now(), &err)

	if token == "" {
		return false, nil
	}

	cancelled, cancelledID := false, ""
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		booking, err := tx.Bookings().GetByTokenForUpdate(ctx, token)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil
			}
			return fmt.Errorf("resolve booking: %w", err)
		}

		err = tx.Ledger().Release(ctx, booking.TimeSlotID, booking.NumberOfSeats)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("release seats: %w", err)
		}
		existed, err := tx.Bookings().Delete(ctx, booking.ID)
		if err != nil {
			return fmt.Errorf("delete booking: %w", err)
		}
		if !existed {
			return errBookingVanished
		}
		cancelled, cancelledID = true, booking.ID
		return nil
	})
	if errors.Is(err, errBookingVanished) {
		return false, nil
	}
	if err != nil {
		return false, conflictErr(err)
	}

	if cancelled {
		s.logger.Debug().Str("booking_id", cancelledID).Msg("booking cancelled")
	}
	return cancelled, nil
}

// Available returns the free seats of a slot.
func (s *ReservationService) Available(ctx context.Context, slotID string) (int, error) {
	n, err := s.store.Ledger().Available(ctx, slotID)
	if err != nil {
		return 0, slotErr(err)
	}
	return n, nil
}

// GetBooking looks a booking up by its exact token.
func (s *ReservationService) GetBooking(ctx context.Context, token string) (*model.Booking, error) {
	if token == "" {
		return nil, ErrBookingNotFound
	}
	b, err := s.store.Bookings().GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

// SlotAudit compares a slot's counter with the seats its bookings hold.
type SlotAudit struct {
	TimeSlotID      string `json:"time_slot_id"`
	MaxCapacity     int    `json:"max_capacity"`
	CurrentBookings int    `json:"current_bookings"`
	BookedSeats     int    `json:"booked_seats"`
	Bookings        int    `json:"bookings"`
	Consistent      bool   `json:"consistent"`
}

// Audit reads a slot and its bookings in one unit of work and reports
// whether the counter matches. It is the reconciliation check for
// consistency faults.
func (s *ReservationService) Audit(ctx context.Context, slotID string) (*SlotAudit, error) {
	var audit SlotAudit
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		slot, err := tx.Catalog().GetSlot(ctx, slotID)
		if err != nil {
			return slotErr(err)
		}
		bookings, err := tx.Bookings().ListBySlot(ctx, slotID)
		if err != nil {
			return fmt.Errorf("list bookings: %w", err)
		}
		audit = SlotAudit{
			TimeSlotID:      slot.ID,
			MaxCapacity:     slot.MaxCapacity,
			CurrentBookings: slot.CurrentBookings,
			Bookings:        len(bookings),
		}
		for _, b := range bookings {
			audit.BookedSeats += b.NumberOfSeats
		}
		audit.Consistent = audit.BookedSeats == audit.CurrentBookings
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !audit.Consistent {
		s.logger.Warn().
			Str("slot_id", audit.TimeSlotID).
			Int("current_bookings", audit.CurrentBookings).
			Int("booked_seats", audit.BookedSeats).
			Msg("slot counter does not match its bookings")
	}
	return &audit, nil
}

// reportFault sends a consistency fault to the operator channels: an error
// log line and the fault counter.
func (s *ReservationService) reportFault(err error) {
	var fault *ConsistencyFault
	if !errors.As(err, &fault) {
		return
	}
	s.metrics.RecordConsistencyFault()
	s.logger.Error().
		Err(err).
		Str("booking_id", fault.BookingID).
		Str("from_slot_id", fault.FromSlotID).
		Str("to_slot_id", fault.ToSlotID).
		Int("seats", fault.Seats).
		Msg("capacity accounting fault, reconciliation required")
}

func (s *ReservationService) observe(op string, start time.Time, err *error) {
	s.metrics.ObserveOperation(op, outcome(*err), time.Since(start))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrSlotFull):
		return "slot_full"
	case errors.Is(err, ErrSlotNotFound):
		return "slot_not_found"
	case errors.Is(err, ErrBookingNotFound):
		return "booking_not_found"
	case errors.Is(err, ErrInvalidSeatCount), errors.Is(err, ErrValidation):
		return "invalid"
	case errors.Is(err, ErrConsistencyFault):
		return "consistency_fault"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}

// moveFault classifies a failed write after the new slot's seats were taken.
// An error that aborted the whole transaction left nothing behind and is
// returned as is; anything else may have left the ledger over-counting.
func moveFault(b *model.Booking, toSlotID string, err error) error {
	if repository.IsRetryable(err) {
		return err
	}
	return &ConsistencyFault{
		BookingID: b.ID, FromSlotID: b.TimeSlotID, ToSlotID: toSlotID,
		Seats: b.NumberOfSeats, Err: err,
	}
}

func conflictErr(err error) error {
	if errors.Is(err, repository.ErrConflict) {
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}
	return err
}

func slotErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrSlotNotFound
	}
	return fmt.Errorf("time slot: %w", err)
}

func normalizeEmail(email *string) (*string, error) {
	if email == nil {
		return nil, nil
	}
	e := strings.TrimSpace(strings.ToLower(*email))
	if e == "" {
		return nil, nil
	}
	if !isValidEmail(e) {
		return nil, invalid("email is not a valid email address")
	}
	return &e, nil
}
