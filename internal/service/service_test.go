package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/slot-booking/internal/clock"
	"github.com/Shivanand-hulikatti/slot-booking/internal/model"
	"github.com/Shivanand-hulikatti/slot-booking/internal/repository/memory"
	"github.com/Shivanand-hulikatti/slot-booking/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEvent() model.CreateEventRequest {
	desc := "  Hands-on session  "
	return model.CreateEventRequest{
		Name:        "  Go Workshop ",
		Date:        "2026-06-01",
		Description: &desc,
		Slots: []model.CreateSlotRequest{
			{StartTime: "10:00", EndTime: "10:30", MaxCapacity: 20},
			{StartTime: "09:30", EndTime: "10:00:00", MaxCapacity: 5},
		},
	}
}

func TestCreateEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("stores event and slots", func(t *testing.T) {
		store := memory.New()
		svc := service.NewEventService(store, service.WithClock(clock.At(testNow)))

		event, err := svc.CreateEvent(ctx, validEvent())
		require.NoError(t, err)
		assert.Equal(t, "Go Workshop", event.Name)
		require.NotNil(t, event.Description)
		assert.Equal(t, "Hands-on session", *event.Description)
		assert.Equal(t, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), event.Date)
		require.Len(t, event.Slots, 2)
		assert.Equal(t, time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC), event.Slots[0].StartTime)

		slots, err := svc.ListSlots(ctx, event.ID)
		require.NoError(t, err)
		require.Len(t, slots, 2)
		assert.Equal(t, 9, slots[0].StartTime.Hour())
		assert.Equal(t, 30, slots[0].StartTime.Minute())
		for _, s := range slots {
			assert.Equal(t, model.SlotDuration, s.EndTime.Sub(s.StartTime))
			assert.Zero(t, s.CurrentBookings)
		}

		got, err := svc.GetEvent(ctx, event.ID)
		require.NoError(t, err)
		assert.Len(t, got.Slots, 2)

		all, err := svc.ListEvents(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("rejects slots that are not 30 minutes", func(t *testing.T) {
		for _, slot := range []model.CreateSlotRequest{
			{StartTime: "10:00", EndTime: "10:45", MaxCapacity: 1},
			{StartTime: "10:00", EndTime: "10:29", MaxCapacity: 1},
			{StartTime: "10:30", EndTime: "10:00", MaxCapacity: 1},
			{StartTime: "23:45", EndTime: "00:15", MaxCapacity: 1},
		} {
			store := memory.New()
			svc := service.NewEventService(store)
			req := validEvent()
			req.Slots = append(req.Slots, slot)

			_, err := svc.CreateEvent(ctx, req)
			assert.ErrorIs(t, err, service.ErrInvalidSlotDuration, "%s-%s", slot.StartTime, slot.EndTime)

			// Nothing from the rejected request is stored.
			all, err := svc.ListEvents(ctx)
			require.NoError(t, err)
			assert.Empty(t, all)
		}
	})

	t.Run("validation", func(t *testing.T) {
		cases := map[string]func(r *model.CreateEventRequest){
			"blank name":        func(r *model.CreateEventRequest) { r.Name = "  " },
			"bad date":          func(r *model.CreateEventRequest) { r.Date = "01/06/2026" },
			"no slots":          func(r *model.CreateEventRequest) { r.Slots = nil },
			"bad start":         func(r *model.CreateEventRequest) { r.Slots[0].StartTime = "ten" },
			"bad end":           func(r *model.CreateEventRequest) { r.Slots[0].EndTime = "25:00" },
			"zero capacity":     func(r *model.CreateEventRequest) { r.Slots[0].MaxCapacity = 0 },
			"capacity too high": func(r *model.CreateEventRequest) { r.Slots[0].MaxCapacity = 100_001 },
		}
		for name, mutate := range cases {
			t.Run(name, func(t *testing.T) {
				svc := service.NewEventService(memory.New())
				req := validEvent()
				mutate(&req)
				_, err := svc.CreateEvent(ctx, req)
				assert.ErrorIs(t, err, service.ErrValidation)
			})
		}
	})
}

func TestGetEvent_NotFound(t *testing.T) {
	svc := service.NewEventService(memory.New())

	_, err := svc.GetEvent(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, service.ErrEventNotFound)
	_, err = svc.GetEvent(context.Background(), "")
	assert.ErrorIs(t, err, service.ErrEventNotFound)
	slots, err := svc.ListSlots(context.Background(), uuid.NewString())
	require.NoError(t, err)
	assert.Empty(t, slots)
	_, err = svc.GetSlot(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, service.ErrSlotNotFound)
}

func TestNewBookingToken(t *testing.T) {
	a, err := service.NewBookingToken()
	require.NoError(t, err)
	b, err := service.NewBookingToken()
	require.NoError(t, err)

	assert.Len(t, a, 43)
	assert.Equal(t, service.TokenLength, len(a))
	assert.NotEqual(t, a, b)
	assert.NotContains(t, a, "=")
	assert.NotContains(t, a, "+")
	assert.NotContains(t, a, "/")
}
