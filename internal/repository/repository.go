// Package repository implements all persistence for the slot booking system.
// It uses pgx directly (no ORM) for transparency and performance. The
// interfaces declared here are the storage contract the service layer relies
// on; the memory subpackage provides an in-process implementation of them.
package repository

import (
	"context"
	"errors"

	"github.com/Shivanand-hulikatti/slot-booking/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a unique key (id or booking token) already exists.
var ErrDuplicate = errors.New("duplicate key")

// ErrConflict is returned when a unit of work kept losing to concurrent
// transactions and was rolled back every time.
var ErrConflict = errors.New("transaction conflict")

// Ledger tracks remaining capacity per time slot.
//
// Reserve is a single indivisible check-and-increment: it succeeds iff
// current_bookings + n <= max_capacity, and otherwise changes nothing.
// Release decrements, floored at zero. Neither has any effect when n <= 0.
// LockSlots holds the given slots against other writers until the enclosing
// unit of work ends, taking them in id order; outside one it does nothing.
type Ledger interface {
	LockSlots(ctx context.Context, slotIDs ...string) error
	Reserve(ctx context.Context, slotID string, n int) (bool, error)
	Release(ctx context.Context, slotID string, n int) error
	Available(ctx context.Context, slotID string) (int, error)
}

// BookingStore persists booking records. It carries no business rules.
type BookingStore interface {
	Create(ctx context.Context, b *model.Booking) error
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	GetByToken(ctx context.Context, token string) (*model.Booking, error)
	// GetByTokenForUpdate also locks the record until the enclosing unit of
	// work ends. Outside a unit of work it behaves like GetByToken.
	GetByTokenForUpdate(ctx context.Context, token string) (*model.Booking, error)
	ListBySlot(ctx context.Context, slotID string) ([]model.Booking, error)
	Update(ctx context.Context, b *model.Booking) error
	Delete(ctx context.Context, id string) (bool, error)
}

// Catalog owns event and slot definitions.
type Catalog interface {
	CreateEvent(ctx context.Context, e *model.Event) error
	AddSlot(ctx context.Context, s *model.TimeSlot) error
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	ListEvents(ctx context.Context) ([]model.Event, error)
	ListSlots(ctx context.Context, eventID string) ([]model.TimeSlot, error)
	GetSlot(ctx context.Context, id string) (*model.TimeSlot, error)
}

// Tx is a unit of work: every store it hands out shares one transaction.
type Tx interface {
	Catalog() Catalog
	Ledger() Ledger
	Bookings() BookingStore
}

// Transactor runs fn inside a unit of work. The work is committed when fn
// returns nil and rolled back when it returns an error or panics.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Storage is a complete backend. Its Tx methods operate outside any unit of
// work, one statement at a time.
type Storage interface {
	Tx
	Transactor
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
