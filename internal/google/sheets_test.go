package google

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"giftwrap/internal/events"
	"giftwrap/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeValues struct {
	mu        sync.Mutex
	rows      [][]interface{}
	updates   map[string][]interface{}
	updateErr error
}

func newFakeValues() *fakeValues {
	return &fakeValues{updates: make(map[string][]interface{})}
}

func (f *fakeValues) Append(_ context.Context, rng string, row []interface{}) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, row)
	n := len(f.rows) + 1 // header row
	return fmt.Sprintf("Bookings!A%d:M%d", n, n), nil
}

func (f *fakeValues) Update(_ context.Context, rng string, row []interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates[rng] = row
	return nil
}

func (f *fakeValues) appended() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

func TestBookingRowValues(t *testing.T) {
	b := &model.Booking{
		ID:            123,
		WorkerID:      "anna",
		Date:          "2024-12-24",
		Time:          "10:00",
		ServiceID:     "classic",
		Category:      model.CategoryDropoff,
		NumberOfGifts: 3,
		Status:        model.StatusConfirmed,
		CustomerName:  "Test User",
		CustomerPhone: "79991234567",
		CreatedAt:     time.Date(2024, 12, 20, 10, 0, 0, 0, time.UTC),
		UpdatedAt:     time.Date(2024, 12, 21, 11, 0, 0, 0, time.UTC),
	}

	expected := []interface{}{
		int64(123), "GW-2024-12-24-123", "anna", "2024-12-24", "10:00", "classic",
		"dropoff", 3, "confirmed", "Test User", "79991234567",
		"2024-12-20 10:00:00", "2024-12-21 11:00:00",
	}
	assert.Equal(t, expected, bookingRowValues(b))
}

func TestParseRow(t *testing.T) {
	row, ok := parseRow("Bookings!A7:M7")
	assert.True(t, ok)
	assert.Equal(t, 7, row)

	_, ok = parseRow("")
	assert.False(t, ok)
}

func TestSyncBooking_AppendThenUpdate(t *testing.T) {
	api := newFakeValues()
	s := NewSheetsService(api, "Bookings", 4, nil)
	ctx := context.Background()

	b := &model.Booking{ID: 1, Date: "2024-01-02", Status: model.StatusPending}
	require.NoError(t, s.SyncBooking(ctx, b))
	row, ok := s.getCachedRow(1)
	require.True(t, ok)
	assert.Equal(t, 2, row)

	b.Status = model.StatusConfirmed
	require.NoError(t, s.SyncBooking(ctx, b))
	assert.Equal(t, 1, api.appended())
	assert.Equal(t, "confirmed", api.updates["Bookings!A2"][8])
}

func TestSyncBooking_UpdateFailureForgetsRow(t *testing.T) {
	api := newFakeValues()
	s := NewSheetsService(api, "Bookings", 4, nil)
	ctx := context.Background()

	b := &model.Booking{ID: 1}
	require.NoError(t, s.SyncBooking(ctx, b))

	api.updateErr = errors.New("quota")
	assert.Error(t, s.SyncBooking(ctx, b))
	_, ok := s.getCachedRow(1)
	assert.False(t, ok)
}

func TestCacheOperations(t *testing.T) {
	s := NewSheetsService(newFakeValues(), "Bookings", 1, nil)

	s.setCachedRow(100, 5)
	row, ok := s.getCachedRow(100)
	assert.True(t, ok)
	assert.Equal(t, 5, row)

	s.deleteCacheRow(100)
	_, ok = s.getCachedRow(100)
	assert.False(t, ok)

	s.setCachedRow(200, 10)
	s.ClearCache()
	_, ok = s.getCachedRow(200)
	assert.False(t, ok)
}

func TestRun_SyncsBusEvents(t *testing.T) {
	api := newFakeValues()
	s := NewSheetsService(api, "Bookings", 4, nil)
	bus := events.NewEventBus(nil)
	s.Subscribe(bus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	bus.Publish(events.Event{Type: events.BookingCreated, Booking: &model.Booking{ID: 1}})
	bus.Publish(events.Event{Type: events.BookingCreated, Booking: &model.Booking{ID: 2}})
	bus.Publish(events.Event{Type: events.ScheduleUpdated})

	assert.Eventually(t, func() bool { return api.appended() == 2 }, time.Second, 5*time.Millisecond)
}
