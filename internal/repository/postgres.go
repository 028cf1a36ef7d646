package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is the pgx-backed Storage.
type Postgres struct {
	pool     *pgxpool.Pool
	events   *EventRepository
	ledger   *SlotLedger
	bookings *BookingRepository
}

// NewPostgres constructs a Postgres storage over pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{
		pool:     pool,
		events:   NewEventRepository(pool),
		ledger:   NewSlotLedger(pool),
		bookings: NewBookingRepository(pool),
	}
}

func (p *Postgres) Catalog() Catalog       { return p.events }
func (p *Postgres) Ledger() Ledger         { return p.ledger }
func (p *Postgres) Bookings() BookingStore { return p.bookings }

// maxTxAttempts bounds how often WithinTx reruns fn after a deadlock or
// serialization failure.
const maxTxAttempts = 3

// WithinTx begins a READ COMMITTED transaction and hands fn a Tx bound to it.
//
// Capacity stays correct at this isolation level because Reserve is a single
// conditional UPDATE: concurrent reservations on one slot queue on the row
// lock and each re-evaluates the WHERE clause against the committed count.
// When Postgres aborts the transaction to break a deadlock or a serialization
// conflict, fn is run again from scratch; after maxTxAttempts the error is
// returned wrapped in ErrConflict.
func (p *Postgres) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = p.runTx(ctx, fn)
		if err == nil || !IsRetryable(err) {
			return err
		}
		if ctx.Err() != nil {
			break
		}
	}
	return fmt.Errorf("%w: %w", ErrConflict, err)
}

func (p *Postgres) runTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) (err error) {
	pgTx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	// Ensure the transaction is always resolved.
	defer func() {
		if r := recover(); r != nil {
			_ = pgTx.Rollback(context.WithoutCancel(ctx))
			panic(r)
		}
		if err != nil {
			_ = pgTx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	if err = fn(ctx, &postgresTx{
		events:   NewEventRepository(pgTx),
		ledger:   &SlotLedger{db: pgTx, inTx: true},
		bookings: &BookingRepository{db: pgTx, inTx: true},
	}); err != nil {
		return err
	}

	if err = pgTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type postgresTx struct {
	events   *EventRepository
	ledger   *SlotLedger
	bookings *BookingRepository
}

func (t *postgresTx) Catalog() Catalog       { return t.events }
func (t *postgresTx) Ledger() Ledger         { return t.ledger }
func (t *postgresTx) Bookings() BookingStore { return t.bookings }

// IsRetryable reports whether err aborted its transaction only because of
// concurrent transactions (deadlock_detected or serialization_failure).
// Nothing the aborted transaction wrote survives.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40P01" || pgErr.Code == "40001"
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// isInvalidUUID reports malformed uuid input; such ids can never match a row.
func isInvalidUUID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}

// validID screens ids before they reach Postgres: a malformed uuid would
// abort the surrounding transaction instead of simply matching nothing.
func validID(id string) bool {
	return uuid.Validate(id) == nil
}
