package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/Shivanand-hulikatti/slot-booking/internal/model"
	"github.com/Shivanand-hulikatti/slot-booking/internal/repository"
)

// tx records how to undo every write made through it.
type tx struct {
	s    *Store
	undo []func() error
	held map[string]bool
	keys []string
}

func (t *tx) Catalog() repository.Catalog       { return catalog{s: t.s, tx: t} }
func (t *tx) Ledger() repository.Ledger         { return ledger{s: t.s, tx: t} }
func (t *tx) Bookings() repository.BookingStore { return bookings{s: t.s, tx: t} }

func (t *tx) onRollback(fn func() error) {
	if t != nil {
		t.undo = append(t.undo, fn)
	}
}

func (t *tx) rollback() error {
	var errs []error
	for i := len(t.undo) - 1; i >= 0; i-- {
		if err := t.undo[i](); err != nil {
			errs = append(errs, err)
		}
	}
	t.undo = nil
	return errors.Join(errs...)
}

func (t *tx) lock(key string) {
	if t.held[key] {
		return
	}
	t.s.locks.Lock(key)
	t.held[key] = true
	t.keys = append(t.keys, key)
}

func (t *tx) unlockAll() {
	for i := len(t.keys) - 1; i >= 0; i-- {
		t.s.locks.Unlock(t.keys[i])
	}
	t.keys = nil
}

type ledger struct {
	s  *Store
	tx *tx
}

func (l ledger) LockSlots(_ context.Context, slotIDs ...string) error {
	if l.tx == nil {
		return nil
	}
	ids := slices.Clone(slotIDs)
	slices.Sort(ids)
	for _, id := range slices.Compact(ids) {
		l.tx.lock("slot:" + id)
	}
	return nil
}

func (l ledger) Reserve(_ context.Context, slotID string, n int) (bool, error) {
	ok, err := l.s.reserve(slotID, n)
	if ok {
		l.tx.onRollback(func() error {
			_, err := l.s.release(slotID, n)
			return err
		})
	}
	return ok, err
}

func (l ledger) Release(_ context.Context, slotID string, n int) error {
	released, err := l.s.release(slotID, n)
	if err != nil {
		return err
	}
	if released > 0 {
		l.tx.onRollback(func() error {
			ok, err := l.s.reserve(slotID, released)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("slot %s, %d seats: %w", slotID, released, ErrUndoCapacity)
			}
			return nil
		})
	}
	return nil
}

func (l ledger) Available(_ context.Context, slotID string) (int, error) {
	return l.s.available(slotID)
}

type catalog struct {
	s  *Store
	tx *tx
}

func (c catalog) CreateEvent(_ context.Context, e *model.Event) error {
	if err := c.s.createEvent(e); err != nil {
		return err
	}
	c.tx.onRollback(func() error {
		c.s.deleteEvent(e.ID)
		return nil
	})
	return nil
}

func (c catalog) AddSlot(_ context.Context, slot *model.TimeSlot) error {
	if err := c.s.addSlot(slot); err != nil {
		return err
	}
	c.tx.onRollback(func() error {
		c.s.deleteSlot(slot.ID)
		return nil
	})
	return nil
}

func (c catalog) GetEvent(_ context.Context, id string) (*model.Event, error) {
	return c.s.getEvent(id)
}

func (c catalog) ListEvents(_ context.Context) ([]model.Event, error) {
	return c.s.listEvents(), nil
}

func (c catalog) ListSlots(_ context.Context, eventID string) ([]model.TimeSlot, error) {
	return c.s.listSlots(eventID), nil
}

func (c catalog) GetSlot(_ context.Context, id string) (*model.TimeSlot, error) {
	return c.s.getSlot(id)
}

type bookings struct {
	s  *Store
	tx *tx
}

func (b bookings) Create(_ context.Context, booking *model.Booking) error {
	if err := b.s.createBooking(booking); err != nil {
		return err
	}
	id := booking.ID
	b.tx.onRollback(func() error {
		b.s.deleteBooking(id)
		return nil
	})
	return nil
}

func (b bookings) GetByID(_ context.Context, id string) (*model.Booking, error) {
	return b.s.getBooking(id)
}

func (b bookings) GetByToken(_ context.Context, token string) (*model.Booking, error) {
	return b.s.getBookingByToken(token)
}

func (b bookings) GetByTokenForUpdate(_ context.Context, token string) (*model.Booking, error) {
	if b.tx != nil {
		b.tx.lock("booking:" + token)
	}
	return b.s.getBookingByToken(token)
}

func (b bookings) ListBySlot(_ context.Context, slotID string) ([]model.Booking, error) {
	return b.s.listBookings(slotID), nil
}

func (b bookings) Update(_ context.Context, booking *model.Booking) error {
	prev, err := b.s.updateBooking(booking)
	if err != nil {
		return err
	}
	b.tx.onRollback(func() error {
		b.s.putBooking(prev)
		return nil
	})
	return nil
}

func (b bookings) Delete(_ context.Context, id string) (bool, error) {
	prev, ok := b.s.deleteBooking(id)
	if ok {
		b.tx.onRollback(func() error {
			b.s.putBooking(prev)
			return nil
		})
	}
	return ok, nil
}

// keyedMutex hands out one mutex per key and forgets keys nobody holds.
type keyedMutex struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) Lock(key string) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &lockEntry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
}

func (k *keyedMutex) Unlock(key string) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		k.mu.Unlock()
		return
	}
	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
	k.mu.Unlock()

	e.mu.Unlock()
}
