package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// SlotLedger is the Postgres capacity ledger over time_slots.current_bookings.
//
// ─────────────────────────────────────────────────────────────────────────────
// WHY A CONDITIONAL UPDATE
// ─────────────────────────────────────────────────────────────────────────────
//
// Naive read-then-write approach (BROKEN):
//
//	goroutine A: SELECT current_bookings FROM time_slots WHERE id = X  → 9
//	goroutine B: SELECT current_bookings FROM time_slots WHERE id = X  → 9
//	goroutine A: max_capacity=10, 9+1 <= 10, OK → UPDATE current_bookings=10
//	goroutine B: max_capacity=10, 9+1 <= 10, OK → UPDATE current_bookings=10
//	Result: two bookings hold seats but the counter says one. OVERBOOKED.
//
// The fix folds the check into the write:
//
//	UPDATE time_slots SET current_bookings = current_bookings + n
//	WHERE id = X AND current_bookings + n <= max_capacity
//
// The row lock taken by UPDATE serialises writers on one slot only; a writer
// that waited re-evaluates the WHERE clause against the committed value, so
// exactly the reservations that fit are granted. Other slots are untouched.
// ─────────────────────────────────────────────────────────────────────────────
type SlotLedger struct {
	db   querier
	inTx bool
}

// NewSlotLedger constructs a SlotLedger.
func NewSlotLedger(db querier) *SlotLedger {
	return &SlotLedger{db: db}
}

// LockSlots takes row locks on the given slots in id order, so two units of
// work touching the same pair of slots queue instead of deadlocking. NO KEY
// UPDATE is the lock the ledger UPDATEs take anyway and leaves foreign key
// checks from bookings unblocked.
func (l *SlotLedger) LockSlots(ctx context.Context, slotIDs ...string) error {
	if !l.inTx {
		return nil
	}
	ids := make([]string, 0, len(slotIDs))
	for _, id := range slotIDs {
		if validID(id) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	rows, err := l.db.Query(ctx,
		`SELECT id FROM time_slots
		 WHERE id = ANY($1::uuid[])
		 ORDER BY id
		 FOR NO KEY UPDATE`,
		ids,
	)
	if err != nil {
		return fmt.Errorf("lock slots: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("lock slots: %w", err)
	}
	return nil
}

// Reserve increments current_bookings by n iff the result stays within max_capacity.
func (l *SlotLedger) Reserve(ctx context.Context, slotID string, n int) (bool, error) {
	if n <= 0 {
		return false, nil
	}
	if !validID(slotID) {
		return false, ErrNotFound
	}
	tag, err := l.db.Exec(ctx,
		`UPDATE time_slots
		 SET current_bookings = current_bookings + $2
		 WHERE id = $1 AND current_bookings + $2 <= max_capacity`,
		slotID, n,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("reserve seats: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Release decrements current_bookings by n, never below zero.
func (l *SlotLedger) Release(ctx context.Context, slotID string, n int) error {
	if n <= 0 {
		return nil
	}
	if !validID(slotID) {
		return ErrNotFound
	}
	_, err := l.db.Exec(ctx,
		`UPDATE time_slots
		 SET current_bookings = GREATEST(current_bookings - $2, 0)
		 WHERE id = $1`,
		slotID, n,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return ErrNotFound
		}
		return fmt.Errorf("release seats: %w", err)
	}
	return nil
}

// Available returns max_capacity - current_bookings or ErrNotFound.
func (l *SlotLedger) Available(ctx context.Context, slotID string) (int, error) {
	if !validID(slotID) {
		return 0, ErrNotFound
	}
	var available int
	err := l.db.QueryRow(ctx,
		`SELECT max_capacity - current_bookings FROM time_slots WHERE id = $1`,
		slotID,
	).Scan(&available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("slot availability: %w", err)
	}
	return available, nil
}
