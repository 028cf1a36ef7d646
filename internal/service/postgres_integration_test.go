package service_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/Shivanand-hulikatti/slot-booking/internal/metrics"
	"github.com/Shivanand-hulikatti/slot-booking/internal/model"
	"github.com/Shivanand-hulikatti/slot-booking/internal/repository"
	"github.com/Shivanand-hulikatti/slot-booking/internal/service"
	"github.com/Shivanand-hulikatti/slot-booking/internal/testutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestPostgres_ReservationLifecycle(t *testing.T) {
	pool := testutil.NewTestPool(t)
	store := repository.NewPostgres(pool)
	ctx := context.Background()

	events := service.NewEventService(store)
	event, err := events.CreateEvent(ctx, model.CreateEventRequest{
		Name: "Integration",
		Date: "2026-08-15",
		Slots: []model.CreateSlotRequest{
			{StartTime: "09:00", EndTime: "09:30", MaxCapacity: 4},
			{StartTime: "09:30", EndTime: "10:00", MaxCapacity: 2},
		},
	})
	require.NoError(t, err)
	slotA, slotB := event.Slots[0].ID, event.Slots[1].ID
	svc := newReservations(store)

	t.Run("concurrent creates never overbook", func(t *testing.T) {
		var ok, full atomic.Int32
		var g errgroup.Group
		for i := 0; i < 12; i++ {
			g.Go(func() error {
				_, err := svc.Create(ctx, service.CreateBookingInput{AttendeeName: "A", TimeSlotID: slotA, Seats: 1})
				switch {
				case err == nil:
					ok.Add(1)
				case errors.Is(err, service.ErrSlotFull):
					full.Add(1)
				default:
					return err
				}
				return nil
			})
		}
		require.NoError(t, g.Wait())
		assert.Equal(t, int32(4), ok.Load())
		assert.Equal(t, int32(8), full.Load())

		audit, err := svc.Audit(ctx, slotA)
		require.NoError(t, err)
		assert.True(t, audit.Consistent)
	})

	t.Run("rebook and cancel", func(t *testing.T) {
		b := book(t, svc, slotB, 2)

		_, err := svc.Rebook(ctx, b.Token, slotA)
		assert.ErrorIs(t, err, service.ErrSlotFull)
		assert.Equal(t, 0, available(t, svc, slotB))

		ok, err := svc.Cancel(ctx, b.Token)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = svc.Cancel(ctx, b.Token)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, 2, available(t, svc, slotB))
	})

	t.Run("opposite rebooks do not fault", func(t *testing.T) {
		event, err := events.CreateEvent(ctx, model.CreateEventRequest{
			Name: "Swap",
			Date: "2026-08-16",
			Slots: []model.CreateSlotRequest{
				{StartTime: "09:00", EndTime: "09:30", MaxCapacity: 100},
				{StartTime: "09:30", EndTime: "10:00", MaxCapacity: 100},
			},
		})
		require.NoError(t, err)
		a, b := event.Slots[0].ID, event.Slots[1].ID

		reg := prometheus.NewRegistry()
		swaps := newReservations(store, service.WithMetrics(metrics.New(reg)))

		const pairs = 40
		var g errgroup.Group
		for i := 0; i < pairs; i++ {
			x := book(t, swaps, a, 1)
			y := book(t, swaps, b, 1)
			g.Go(func() error {
				_, err := swaps.Rebook(ctx, x.Token, b)
				return err
			})
			g.Go(func() error {
				_, err := swaps.Rebook(ctx, y.Token, a)
				return err
			})
		}
		require.NoError(t, g.Wait())
		assert.Equal(t, 0.0, counterValue(t, reg, "slotbook_consistency_faults_total"))

		for _, id := range []string{a, b} {
			audit, err := swaps.Audit(ctx, id)
			require.NoError(t, err)
			assert.True(t, audit.Consistent)
			assert.Equal(t, pairs, audit.CurrentBookings)
		}
	})

	t.Run("unknown slot id shapes", func(t *testing.T) {
		for _, id := range []string{"not-a-uuid", "00000000-0000-0000-0000-000000000000"} {
			_, err := svc.Create(ctx, service.CreateBookingInput{AttendeeName: "A", TimeSlotID: id, Seats: 1})
			assert.ErrorIs(t, err, service.ErrSlotNotFound)
		}
	})
}
