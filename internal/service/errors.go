package service

import (
	"errors"
	"fmt"
)

// Expected outcomes. Callers map these to rejected requests; they are not
// system failures and are never logged as errors.
var (
	ErrSlotNotFound        = errors.New("time slot not found")
	ErrSlotFull            = errors.New("time slot is full")
	ErrBookingNotFound     = errors.New("booking not found")
	ErrInvalidSeatCount    = errors.New("number of seats must be a positive integer")
	ErrEventNotFound       = errors.New("event not found")
	ErrInvalidSlotDuration = errors.New("time slots must be exactly 30 minutes long")
	ErrValidation          = errors.New("invalid request")
	ErrConflict            = errors.New("booking is being changed concurrently, retry")
)

// ErrConsistencyFault matches any *ConsistencyFault via errors.Is.
var ErrConsistencyFault = errors.New("capacity accounting fault")

// ConsistencyFault reports a rebook that reserved seats on the new slot but
// could not vacate the old one or repoint the booking. The ledger may now
// over-count; the fault needs out-of-band reconciliation.
type ConsistencyFault struct {
	BookingID  string
	FromSlotID string
	ToSlotID   string
	Seats      int
	Err        error
}

func (f *ConsistencyFault) Error() string {
	return fmt.Sprintf("%v: booking %s moving %d seats from slot %s to %s: %v",
		ErrConsistencyFault, f.BookingID, f.Seats, f.FromSlotID, f.ToSlotID, f.Err)
}

func (f *ConsistencyFault) Unwrap() error { return f.Err }

func (f *ConsistencyFault) Is(target error) bool { return target == ErrConsistencyFault }

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
