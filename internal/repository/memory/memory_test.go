package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/slot-booking/internal/model"
	"github.com/Shivanand-hulikatti/slot-booking/internal/repository"
	"github.com/Shivanand-hulikatti/slot-booking/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func seedSlot(t *testing.T, s *memory.Store, capacity int) string {
	t.Helper()
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	event := &model.Event{ID: "event-" + t.Name(), Name: "Workshop", Date: start.Truncate(24 * time.Hour), CreatedAt: start}
	require.NoError(t, s.Catalog().CreateEvent(ctx, event))
	slot := &model.TimeSlot{
		ID:          "slot-" + t.Name(),
		EventID:     event.ID,
		StartTime:   start,
		EndTime:     start.Add(model.SlotDuration),
		MaxCapacity: capacity,
	}
	require.NoError(t, s.Catalog().AddSlot(ctx, slot))
	return slot.ID
}

func TestLedger_Reserve(t *testing.T) {
	ctx := context.Background()

	t.Run("grants up to capacity", func(t *testing.T) {
		s := memory.New()
		slot := seedSlot(t, s, 5)

		ok, err := s.Ledger().Reserve(ctx, slot, 3)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.Ledger().Reserve(ctx, slot, 2)
		require.NoError(t, err)
		assert.True(t, ok)

		n, err := s.Ledger().Available(ctx, slot)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("refusal changes nothing", func(t *testing.T) {
		s := memory.New()
		slot := seedSlot(t, s, 5)

		ok, err := s.Ledger().Reserve(ctx, slot, 4)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = s.Ledger().Reserve(ctx, slot, 2)
		require.NoError(t, err)
		assert.False(t, ok)

		n, err := s.Ledger().Available(ctx, slot)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("non-positive count has no effect", func(t *testing.T) {
		s := memory.New()
		slot := seedSlot(t, s, 5)

		for _, n := range []int{0, -3} {
			ok, err := s.Ledger().Reserve(ctx, slot, n)
			require.NoError(t, err)
			assert.False(t, ok)
		}
		n, err := s.Ledger().Available(ctx, slot)
		require.NoError(t, err)
		assert.Equal(t, 5, n)
	})

	t.Run("unknown slot", func(t *testing.T) {
		s := memory.New()
		_, err := s.Ledger().Reserve(ctx, "missing", 1)
		assert.ErrorIs(t, err, repository.ErrNotFound)
		_, err = s.Ledger().Available(ctx, "missing")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestLedger_ReleaseFloorsAtZero(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	slot := seedSlot(t, s, 5)

	ok, err := s.Ledger().Reserve(ctx, slot, 2)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, s.Ledger().Release(ctx, slot, 10))
	n, err := s.Ledger().Available(ctx, slot)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	require.NoError(t, s.Ledger().Release(ctx, slot, 0))
	assert.ErrorIs(t, s.Ledger().Release(ctx, "missing", 1), repository.ErrNotFound)
}

func TestLedger_ConcurrentReserveNeverOverbooks(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	const capacity, attempts = 10, 64
	slot := seedSlot(t, s, capacity)

	granted := make(chan bool, attempts)
	var g errgroup.Group
	for i := 0; i < attempts; i++ {
		g.Go(func() error {
			ok, err := s.Ledger().Reserve(ctx, slot, 1)
			granted <- ok
			return err
		})
	}
	require.NoError(t, g.Wait())
	close(granted)

	wins := 0
	for ok := range granted {
		if ok {
			wins++
		}
	}
	assert.Equal(t, capacity, wins)

	got, err := s.Catalog().GetSlot(ctx, slot)
	require.NoError(t, err)
	assert.Equal(t, capacity, got.CurrentBookings)
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	slot := seedSlot(t, s, 3)
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		ok, err := tx.Ledger().Reserve(ctx, slot, 2)
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, tx.Bookings().Create(ctx, &model.Booking{
			ID: "b1", AttendeeName: "Ada", TimeSlotID: slot, NumberOfSeats: 2, Token: "tok-1",
		}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	n, err := s.Ledger().Available(ctx, slot)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	_, err = s.Bookings().GetByToken(ctx, "tok-1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestWithinTx_RollsBackOnPanic(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	slot := seedSlot(t, s, 3)

	assert.Panics(t, func() {
		_ = s.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			_, _ = tx.Ledger().Reserve(ctx, slot, 3)
			panic("handler bug")
		})
	})

	n, err := s.Ledger().Available(ctx, slot)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestWithinTx_UndoesUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	slot := seedSlot(t, s, 3)
	original := &model.Booking{ID: "b1", AttendeeName: "Ada", TimeSlotID: slot, NumberOfSeats: 1, Token: "tok-1"}
	require.NoError(t, s.Bookings().Create(ctx, original))

	err := s.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		moved := *original
		moved.TimeSlotID = "elsewhere"
		require.NoError(t, tx.Bookings().Update(ctx, &moved))
		existed, err := tx.Bookings().Delete(ctx, original.ID)
		require.NoError(t, err)
		require.True(t, existed)
		return errors.New("abort")
	})
	require.Error(t, err)

	got, err := s.Bookings().GetByToken(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, slot, got.TimeSlotID)
}

func TestWithinTx_UndoReleaseFailsWhenSeatsWereTaken(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	slot := seedSlot(t, s, 2)
	ok, err := s.Ledger().Reserve(ctx, slot, 2)
	require.NoError(t, err)
	require.True(t, ok)

	err = s.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		require.NoError(t, tx.Ledger().Release(ctx, slot, 2))
		// Someone outside the unit of work takes the freed seats.
		ok, err := s.Ledger().Reserve(ctx, slot, 2)
		require.NoError(t, err)
		require.True(t, ok)
		return errors.New("abort")
	})
	assert.ErrorIs(t, err, memory.ErrUndoCapacity)
}

func TestBookings_TokenIsUniqueAndPreservedOnUpdate(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	slot := seedSlot(t, s, 3)

	require.NoError(t, s.Bookings().Create(ctx, &model.Booking{ID: "b1", TimeSlotID: slot, NumberOfSeats: 1, Token: "tok"}))
	err := s.Bookings().Create(ctx, &model.Booking{ID: "b2", TimeSlotID: slot, NumberOfSeats: 1, Token: "tok"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	require.NoError(t, s.Bookings().Update(ctx, &model.Booking{ID: "b1", TimeSlotID: slot, NumberOfSeats: 2, Token: "other"}))
	got, err := s.Bookings().GetByID(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "tok", got.Token)
	assert.Equal(t, 2, got.NumberOfSeats)

	_, err = s.Bookings().GetByToken(ctx, "to")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	assert.ErrorIs(t, s.Bookings().Update(ctx, &model.Booking{ID: "nope"}), repository.ErrNotFound)

	existed, err := s.Bookings().Delete(ctx, "b1")
	require.NoError(t, err)
	assert.True(t, existed)
	existed, err = s.Bookings().Delete(ctx, "b1")
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestCatalog_ListsSlotsByStartTime(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Catalog().CreateEvent(ctx, &model.Event{ID: "e", Name: "E", Date: day}))
	for i, hour := range []int{14, 9, 11} {
		start := day.Add(time.Duration(hour) * time.Hour)
		require.NoError(t, s.Catalog().AddSlot(ctx, &model.TimeSlot{
			ID: string(rune('a' + i)), EventID: "e", StartTime: start, EndTime: start.Add(model.SlotDuration), MaxCapacity: 1,
		}))
	}

	slots, err := s.Catalog().ListSlots(ctx, "e")
	require.NoError(t, err)
	require.Len(t, slots, 3)
	assert.Equal(t, 9, slots[0].StartTime.Hour())
	assert.Equal(t, 11, slots[1].StartTime.Hour())
	assert.Equal(t, 14, slots[2].StartTime.Hour())

	err = s.Catalog().AddSlot(ctx, &model.TimeSlot{ID: "x", EventID: "missing"})
	assert.ErrorIs(t, err, repository.ErrNotFound)

	event, err := s.Catalog().GetEvent(ctx, "e")
	require.NoError(t, err)
	assert.Len(t, event.Slots, 3)
}

func TestLedger_LockSlotsHoldsUntilTxEnds(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	slot := seedSlot(t, s, 2)

	require.NoError(t, s.Ledger().LockSlots(ctx, slot))

	locked := make(chan struct{})
	release := make(chan struct{})
	var g errgroup.Group
	g.Go(func() error {
		return s.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			if err := tx.Ledger().LockSlots(ctx, slot, "other", slot); err != nil {
				return err
			}
			close(locked)
			<-release
			return nil
		})
	})

	<-locked
	second := make(chan error, 1)
	go func() {
		second <- s.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			return tx.Ledger().LockSlots(ctx, "other", slot)
		})
	}()
	select {
	case <-second:
		t.Fatal("second tx did not wait for the slot lock")
	case <-time.After(100 * time.Millisecond):
	}
	close(release)
	require.NoError(t, g.Wait())
	require.NoError(t, <-second)
}
