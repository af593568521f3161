package events

import (
	"errors"
	"io"
	"testing"

	"giftwrap/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestEventBus_PublishToSubscribers(t *testing.T) {
	logger := zerolog.New(io.Discard)
	bus := NewEventBus(&logger)

	var got []Event
	bus.Subscribe(BookingCreated, func(e Event) error {
		got = append(got, e)
		return nil
	})
	bus.Subscribe(BookingCreated, func(Event) error {
		return errors.New("sink down")
	})

	bus.Publish(Event{Type: BookingCreated, Booking: &model.Booking{ID: 5}})
	bus.Publish(Event{Type: BookingStatusChanged})

	if assert.Len(t, got, 1) {
		assert.NotEmpty(t, got[0].ID)
		assert.False(t, got[0].CreatedAt.IsZero())
		assert.Equal(t, int64(5), got[0].Booking.ID)
	}
}

func TestEventBus_SubscribeAll(t *testing.T) {
	bus := NewEventBus(nil)

	count := 0
	bus.SubscribeAll(func(Event) error {
		count++
		return nil
	}, BookingCreated, BookingStatusChanged, WorkItemUpdated)

	bus.Publish(Event{Type: BookingCreated})
	bus.Publish(Event{Type: BookingStatusChanged})
	bus.Publish(Event{Type: WorkItemUpdated})
	bus.Publish(Event{Type: ScheduleUpdated})

	assert.Equal(t, 3, count)
}
