package service_test

import (
	"context"

	"github.com/Shivanand-hulikatti/slot-booking/internal/model"
	"github.com/Shivanand-hulikatti/slot-booking/internal/repository"
	"github.com/Shivanand-hulikatti/slot-booking/internal/repository/memory"
)

// faults are injected into the views a unit of work hands out.
type faults struct {
	tx      error
	release error
	update  error
	create  error
	delete  error
}

// faultyStore wraps the memory store and fails chosen writes inside WithinTx.
type faultyStore struct {
	*memory.Store
	f faults
}

func (s *faultyStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	if s.f.tx != nil {
		return s.f.tx
	}
	return s.Store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return fn(ctx, faultyTx{Tx: tx, f: s.f})
	})
}

type faultyTx struct {
	repository.Tx
	f faults
}

func (t faultyTx) Ledger() repository.Ledger {
	return faultyLedger{Ledger: t.Tx.Ledger(), f: t.f}
}

func (t faultyTx) Bookings() repository.BookingStore {
	return faultyBookings{BookingStore: t.Tx.Bookings(), f: t.f}
}

type faultyLedger struct {
	repository.Ledger
	f faults
}

func (l faultyLedger) Release(ctx context.Context, slotID string, n int) error {
	if l.f.release != nil {
		return l.f.release
	}
	return l.Ledger.Release(ctx, slotID, n)
}

type faultyBookings struct {
	repository.BookingStore
	f faults
}

func (b faultyBookings) Create(ctx context.Context, booking *model.Booking) error {
	if b.f.create != nil {
		return b.f.create
	}
	return b.BookingStore.Create(ctx, booking)
}

func (b faultyBookings) Update(ctx context.Context, booking *model.Booking) error {
	if b.f.update != nil {
		return b.f.update
	}
	return b.BookingStore.Update(ctx, booking)
}

func (b faultyBookings) Delete(ctx context.Context, id string) (bool, error) {
	if b.f.delete != nil {
		return false, b.f.delete
	}
	return b.BookingStore.Delete(ctx, id)
}
