// Package memory is an in-process implementation of the repository
// contracts. Capacity checks are serialised per slot; a unit of work is
// atomic through an undo log but not isolated from concurrent readers.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Shivanand-hulikatti/slot-booking/internal/model"
	"github.com/Shivanand-hulikatti/slot-booking/internal/repository"
)

// ErrUndoCapacity is returned when rolling back a release finds the seats
// already taken by someone else.
var ErrUndoCapacity = errors.New("memory: cannot restore released seats")

// Store holds every record in maps. The zero value is not usable; call New.
type Store struct {
	mu       sync.RWMutex
	events   map[string]model.Event
	slots    map[string]*slotRow
	bookings map[string]model.Booking
	tokens   map[string]string

	locks keyedMutex
}

type slotRow struct {
	mu   sync.Mutex
	slot model.TimeSlot
}

var _ repository.Storage = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{
		events:   make(map[string]model.Event),
		slots:    make(map[string]*slotRow),
		bookings: make(map[string]model.Booking),
		tokens:   make(map[string]string),
		locks:    keyedMutex{entries: make(map[string]*lockEntry)},
	}
}

func (s *Store) Catalog() repository.Catalog       { return catalog{s: s} }
func (s *Store) Ledger() repository.Ledger         { return ledger{s: s} }
func (s *Store) Bookings() repository.BookingStore { return bookings{s: s} }

// WithinTx runs fn and undoes its writes, newest first, if it fails or panics.
// Booking locks taken through GetByTokenForUpdate and slot locks taken through
// LockSlots are held until it returns.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := &tx{s: s, held: make(map[string]bool)}
	defer t.unlockAll()
	defer func() {
		if r := recover(); r != nil {
			_ = t.rollback()
			panic(r)
		}
	}()

	if err = fn(ctx, t); err != nil {
		if rbErr := t.rollback(); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return nil
}

func (s *Store) slotRow(id string) (*slotRow, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.slots[id]
	return row, ok
}

// reserve is the indivisible check-and-increment for one slot.
func (s *Store) reserve(slotID string, n int) (bool, error) {
	if n <= 0 {
		return false, nil
	}
	row, ok := s.slotRow(slotID)
	if !ok {
		return false, repository.ErrNotFound
	}
	row.mu.Lock()
	defer row.mu.Unlock()
	if row.slot.CurrentBookings+n > row.slot.MaxCapacity {
		return false, nil
	}
	row.slot.CurrentBookings += n
	return true, nil
}

// release decrements with a floor of zero and returns how much was released.
func (s *Store) release(slotID string, n int) (int, error) {
	if n <= 0 {
		return 0, nil
	}
	row, ok := s.slotRow(slotID)
	if !ok {
		return 0, repository.ErrNotFound
	}
	row.mu.Lock()
	defer row.mu.Unlock()
	released := min(n, row.slot.CurrentBookings)
	row.slot.CurrentBookings -= released
	return released, nil
}

func (s *Store) available(slotID string) (int, error) {
	row, ok := s.slotRow(slotID)
	if !ok {
		return 0, repository.ErrNotFound
	}
	row.mu.Lock()
	defer row.mu.Unlock()
	return row.slot.Available(), nil
}

func (s *Store) getSlot(id string) (*model.TimeSlot, error) {
	row, ok := s.slotRow(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	row.mu.Lock()
	defer row.mu.Unlock()
	slot := row.slot
	return &slot, nil
}

func (s *Store) createEvent(e *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[e.ID]; ok {
		return repository.ErrDuplicate
	}
	stored := *e
	stored.Slots = nil
	s.events[e.ID] = stored
	return nil
}

func (s *Store) deleteEvent(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.events, id)
}

func (s *Store) addSlot(slot *model.TimeSlot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[slot.EventID]; !ok {
		return fmt.Errorf("add slot to event %s: %w", slot.EventID, repository.ErrNotFound)
	}
	if _, ok := s.slots[slot.ID]; ok {
		return repository.ErrDuplicate
	}
	s.slots[slot.ID] = &slotRow{slot: *slot}
	return nil
}

func (s *Store) deleteSlot(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.slots, id)
}

func (s *Store) listSlots(eventID string) []model.TimeSlot {
	s.mu.RLock()
	rows := make([]*slotRow, 0)
	for _, row := range s.slots {
		if row.slot.EventID == eventID {
			rows = append(rows, row)
		}
	}
	s.mu.RUnlock()

	slots := make([]model.TimeSlot, 0, len(rows))
	for _, row := range rows {
		row.mu.Lock()
		slots = append(slots, row.slot)
		row.mu.Unlock()
	}
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].StartTime.Equal(slots[j].StartTime) {
			return slots[i].ID < slots[j].ID
		}
		return slots[i].StartTime.Before(slots[j].StartTime)
	})
	return slots
}

func (s *Store) getEvent(id string) (*model.Event, error) {
	s.mu.RLock()
	e, ok := s.events[id]
	s.mu.RUnlock()
	if !ok {
		return nil, repository.ErrNotFound
	}
	e.Slots = s.listSlots(id)
	return &e, nil
}

func (s *Store) listEvents() []model.Event {
	s.mu.RLock()
	events := make([]model.Event, 0, len(s.events))
	for _, e := range s.events {
		events = append(events, e)
	}
	s.mu.RUnlock()

	sort.Slice(events, func(i, j int) bool {
		return events[i].CreatedAt.After(events[j].CreatedAt)
	})
	for i := range events {
		events[i].Slots = s.listSlots(events[i].ID)
	}
	return events
}

func (s *Store) createBooking(b *model.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bookings[b.ID]; ok {
		return repository.ErrDuplicate
	}
	if _, ok := s.tokens[b.Token]; ok {
		return repository.ErrDuplicate
	}
	s.bookings[b.ID] = *b
	s.tokens[b.Token] = b.ID
	return nil
}

func (s *Store) getBooking(id string) (*model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &b, nil
}

func (s *Store) getBookingByToken(token string) (*model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.tokens[token]
	if !ok {
		return nil, repository.ErrNotFound
	}
	b := s.bookings[id]
	return &b, nil
}

func (s *Store) listBookings(slotID string) []model.Booking {
	s.mu.RLock()
	out := make([]model.Booking, 0)
	for _, b := range s.bookings {
		if b.TimeSlotID == slotID {
			out = append(out, b)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// updateBooking stores b and returns the record it replaced.
func (s *Store) updateBooking(b *model.Booking) (model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.bookings[b.ID]
	if !ok {
		return model.Booking{}, repository.ErrNotFound
	}
	next := *b
	next.Token = prev.Token
	s.bookings[b.ID] = next
	return prev, nil
}

func (s *Store) putBooking(b model.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookings[b.ID] = b
	s.tokens[b.Token] = b.ID
}

// deleteBooking removes a booking and returns it, if it existed.
func (s *Store) deleteBooking(id string) (model.Booking, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return model.Booking{}, false
	}
	delete(s.bookings, id)
	delete(s.tokens, b.Token)
	return b, true
}
