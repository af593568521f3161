package booking

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"giftwrap/internal/events"
	"giftwrap/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// 2024-01-02 is a Tuesday.
const testDate = "2024-01-02"

var fixedNow = func() time.Time { return time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC) }

type memStore struct {
	mu        sync.Mutex
	schedules map[string]*model.Schedule
	bookings  map[int64]*model.Booking
	items     map[int64]*model.WorkItem
	tiers     map[string]*model.PricingTier
	nextID    int64
	nextItem  int64
}

func newMemStore() *memStore {
	return &memStore{
		schedules: map[string]*model.Schedule{},
		bookings:  map[int64]*model.Booking{},
		items:     map[int64]*model.WorkItem{},
		tiers:     map[string]*model.PricingTier{},
	}
}

func (m *memStore) GetSchedule(_ context.Context, workerID string) (*model.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.schedules[workerID], nil
}

func (m *memStore) PutSchedule(_ context.Context, s *model.Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedules[s.WorkerID] = s
	return nil
}

func (m *memStore) GetBookingsForDate(_ context.Context, date string) ([]model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Booking
	for _, b := range m.bookings {
		if b.Date == date {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) GetBooking(_ context.Context, id int64) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *memStore) InsertBooking(_ context.Context, b *model.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.bookings {
		if other.IsActive() && other.Date == b.Date && other.Time == b.Time {
			return model.ErrSlotTaken
		}
	}
	m.nextID++
	b.ID = m.nextID
	cp := *b
	m.bookings[b.ID] = &cp
	return nil
}

func (m *memStore) UpdateBookingStatus(_ context.Context, id int64, status model.BookingStatus, readyNotified bool) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	b.Status = status
	b.ReadyNotified = readyNotified
	cp := *b
	return &cp, nil
}

func (m *memStore) ListBookingsBetween(_ context.Context, from, to string) ([]model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Booking
	for _, b := range m.bookings {
		if b.Date >= from && b.Date <= to {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *memStore) AddWorkItems(_ context.Context, bookingID int64, labels []string) ([]model.WorkItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.WorkItem, 0, len(labels))
	for _, l := range labels {
		m.nextItem++
		it := &model.WorkItem{ID: m.nextItem, BookingID: bookingID, Label: l, Status: model.ItemPendingCheckin}
		m.items[it.ID] = it
		out = append(out, *it)
	}
	return out, nil
}

func (m *memStore) ListWorkItems(_ context.Context, bookingID int64) ([]model.WorkItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.WorkItem
	for _, it := range m.items {
		if it.BookingID == bookingID {
			out = append(out, *it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) GetWorkItem(_ context.Context, id int64) (*model.WorkItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *it
	return &cp, nil
}

func (m *memStore) UpdateWorkItemStatus(_ context.Context, id int64, status model.ItemStatus) (*model.WorkItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	it.Status = status
	cp := *it
	return &cp, nil
}

func (m *memStore) GetPricingTier(_ context.Context, serviceID string) (*model.PricingTier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tiers[serviceID], nil
}

func (m *memStore) seed(b model.Booking) int64 {
	if b.Status == "" {
		b.Status = model.StatusPending
	}
	if b.Date == "" {
		b.Date = testDate
	}
	if b.ServiceID == "" {
		b.ServiceID = "standard"
	}
	if b.Category == "" {
		b.Category = model.CategoryDropoff
	}
	if err := m.InsertBooking(context.Background(), &b); err != nil {
		panic(err)
	}
	return b.ID
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(kind model.NotificationKind, b model.Booking) {
	m.Called(kind, b.ID)
}

type mutexLocker struct {
	mu sync.Mutex
}

func (l *mutexLocker) Lock(context.Context, string) (func(), error) {
	l.mu.Lock()
	return l.mu.Unlock, nil
}

func hourly(from, to int) []string {
	out := make([]string, 0, to-from+1)
	for h := from; h <= to; h++ {
		out = append(out, fmt.Sprintf("%02d:00", h))
	}
	return out
}

func newTestService(t *testing.T) (*Service, *memStore, *mockNotifier, *events.EventBus) {
	t.Helper()
	store := newMemStore()
	store.schedules[""] = &model.Schedule{
		Weekly: map[int]model.DaySchedule{2: {Slots: hourly(9, 17)}},
	}
	notifier := &mockNotifier{}
	logger := zerolog.New(io.Discard)
	bus := events.NewEventBus(&logger)

	svc := NewService(Deps{
		Schedules: store,
		Bookings:  store,
		Items:     store,
		Pricing:   store,
		Locker:    &mutexLocker{},
		Notifier:  notifier,
		Events:    bus,
		Logger:    &logger,
		Now:       fixedNow,
	}, Config{ClosingBufferMinutes: 60, Location: time.UTC})
	return svc, store, notifier, bus
}

func request(at string, gifts int) CreateRequest {
	return CreateRequest{
		Date:          testDate,
		Time:          at,
		ServiceID:     "standard",
		NumberOfGifts: gifts,
		CustomerName:  "Bob",
	}
}

func TestTryCreateBooking_Success(t *testing.T) {
	svc, _, notifier, bus := newTestService(t)
	notifier.On("Notify", model.NotifyPending, int64(1)).Once()

	var created []events.Event
	bus.Subscribe(events.BookingCreated, func(e events.Event) error {
		created = append(created, e)
		return nil
	})

	b, rej, err := svc.TryCreateBooking(context.Background(), request("10:00", 8))
	require.NoError(t, err)
	require.Nil(t, rej)
	require.NotNil(t, b)

	assert.Equal(t, model.StatusPending, b.Status)
	assert.Equal(t, model.CategoryDropoff, b.Category)
	assert.Equal(t, fixedNow(), b.CreatedAt)
	assert.Len(t, created, 1)
	notifier.AssertExpectations(t)

	free, err := svc.AvailableSlots(context.Background(), testDate, "")
	require.NoError(t, err)
	assert.NotContains(t, free, "10:00")
	assert.NotContains(t, free, "11:00")
	assert.Contains(t, free, "12:00")
}

func TestTryCreateBooking_CategoryFromTier(t *testing.T) {
	svc, store, notifier, _ := newTestService(t)
	store.tiers["courier"] = &model.PricingTier{ID: "courier", MinutesPerItem: 20, Category: model.CategoryDelivery, IsActive: true}
	notifier.On("Notify", model.NotifyPending, mock.Anything).Once()

	req := request("09:00", 3)
	req.ServiceID = "courier"
	b, rej, err := svc.TryCreateBooking(context.Background(), req)
	require.NoError(t, err)
	require.Nil(t, rej)
	assert.Equal(t, model.CategoryDelivery, b.Category)
}

func TestTryCreateBooking_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(*memStore)
		req        func() CreateRequest
		code       RejectionCode
		suggestion string
	}{
		{
			name: "past date",
			req: func() CreateRequest {
				r := request("10:00", 1)
				r.Date = "2023-12-31"
				return r
			},
			code: RejectPastDate,
		},
		{
			name: "closed by override",
			setup: func(m *memStore) {
				m.schedules[""].Overrides = []model.DateOverride{{Date: testDate, IsAvailable: false, Reason: "holiday"}}
			},
			req:  func() CreateRequest { return request("10:00", 1) },
			code: RejectDateUnavailable,
		},
		{
			name: "open override without slots",
			setup: func(m *memStore) {
				m.schedules[""].Overrides = []model.DateOverride{{Date: testDate, IsAvailable: true}}
			},
			req:  func() CreateRequest { return request("10:00", 1) },
			code: RejectNoSlots,
		},
		{
			name:       "off grid",
			req:        func() CreateRequest { return request("09:30", 1) },
			code:       RejectSlotUnavailable,
			suggestion: "09:00",
		},
		{
			name: "start inside another booking",
			setup: func(m *memStore) {
				m.seed(model.Booking{Time: "10:00", NumberOfGifts: 8, CustomerName: "Alice"})
			},
			req:        func() CreateRequest { return request("11:00", 4) },
			code:       RejectSlotTaken,
			suggestion: "09:00",
		},
		{
			name:       "past closing on its own",
			req:        func() CreateRequest { return request("17:00", 12) },
			code:       RejectExceedsClosing,
			suggestion: "09:00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, notifier, _ := newTestService(t)
			if tt.setup != nil {
				tt.setup(store)
			}

			b, rej, err := svc.TryCreateBooking(context.Background(), tt.req())
			require.NoError(t, err)
			assert.Nil(t, b)
			require.NotNil(t, rej)
			assert.Equal(t, tt.code, rej.Code)
			assert.NotEmpty(t, rej.Message)
			assert.Equal(t, tt.suggestion, rej.Suggestion)
			notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
		})
	}
}

func TestTryCreateBooking_Validation(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	req := request("9am", 0)
	req.Date = "02.01.2024"
	req.CustomerName = " "
	_, _, err := svc.TryCreateBooking(context.Background(), req)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "date")
	assert.Contains(t, verr.Fields, "time")
	assert.Contains(t, verr.Fields, "number_of_gifts")
	assert.Contains(t, verr.Fields, "customer_name")
}

func TestTryCreateBooking_InterleavedWithinBuffer(t *testing.T) {
	svc, store, notifier, _ := newTestService(t)
	store.schedules[""].Overrides = []model.DateOverride{{Date: testDate, IsAvailable: true, Slots: hourly(9, 19)}}
	store.seed(model.Booking{Time: "16:00", NumberOfGifts: 4, CustomerName: "Alice"})
	notifier.On("Notify", model.NotifyPending, mock.Anything).Once()

	b, rej, err := svc.TryCreateBooking(context.Background(), request("15:00", 12))
	require.NoError(t, err)
	assert.Nil(t, rej)
	require.NotNil(t, b)
	assert.Equal(t, "15:00", b.Time)
}

func TestTryCreateBooking_DropoffOverrun(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	alice := store.seed(model.Booking{Time: "17:00", NumberOfGifts: 4, CustomerName: "Alice"})

	b, rej, err := svc.TryCreateBooking(context.Background(), request("16:00", 12))
	require.NoError(t, err)
	assert.Nil(t, b)
	require.NotNil(t, rej)

	assert.Equal(t, RejectDropoffOverrun, rej.Code)
	assert.Equal(t, []int64{alice}, rej.Conflicts)
	assert.Contains(t, rej.Message, "20:00")
	assert.Contains(t, rej.Message, "(Alice) at 17:00")
	assert.Equal(t, "09:00", rej.Suggestion)
}

func TestTryCreateBooking_DeliveryMayOverrun(t *testing.T) {
	svc, store, notifier, _ := newTestService(t)
	store.seed(model.Booking{Time: "17:00", NumberOfGifts: 4, CustomerName: "Alice", Category: model.CategoryDelivery})
	notifier.On("Notify", model.NotifyPending, mock.Anything).Once()

	req := request("16:00", 12)
	req.Category = model.CategoryDelivery
	b, rej, err := svc.TryCreateBooking(context.Background(), req)
	require.NoError(t, err)
	assert.Nil(t, rej)
	assert.NotNil(t, b)
}

func TestTryCreateBooking_DropoffNeighbourBlocksDelivery(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	store.seed(model.Booking{Time: "17:00", NumberOfGifts: 4, CustomerName: "Alice"})

	req := request("16:00", 12)
	req.Category = model.CategoryDelivery
	_, rej, err := svc.TryCreateBooking(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, rej)
	assert.Equal(t, RejectDropoffOverrun, rej.Code)
}

func TestTryCreateBooking_CancelledFreesCapacity(t *testing.T) {
	svc, store, notifier, _ := newTestService(t)
	store.seed(model.Booking{Time: "10:00", NumberOfGifts: 4, CustomerName: "Alice", Status: model.StatusCancelled})
	notifier.On("Notify", model.NotifyPending, mock.Anything).Once()

	b, rej, err := svc.TryCreateBooking(context.Background(), request("10:00", 4))
	require.NoError(t, err)
	assert.Nil(t, rej)
	assert.NotNil(t, b)
}

func TestTryCreateBooking_ConcurrentSameSlot(t *testing.T) {
	svc, _, notifier, _ := newTestService(t)
	notifier.On("Notify", model.NotifyPending, mock.Anything).Once()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		created  int
		rejected int
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, rej, err := svc.TryCreateBooking(context.Background(), request("10:00", 2))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				return
			}
			if b != nil {
				created++
			}
			if rej != nil && rej.Code == RejectSlotTaken {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, 1, rejected)
	notifier.AssertExpectations(t)
}

func TestResolveBaseSlots_WorkerFallback(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	store.schedules["w2"] = &model.Schedule{
		WorkerID: "w2",
		Weekly:   map[int]model.DaySchedule{2: {Slots: []string{"13:00", "14:00"}}},
	}

	got, err := svc.ResolveBaseSlots(context.Background(), testDate, "w2")
	require.NoError(t, err)
	assert.Equal(t, []string{"13:00", "14:00"}, got)

	got, err = svc.ResolveBaseSlots(context.Background(), testDate, "w9")
	require.NoError(t, err)
	assert.Equal(t, hourly(9, 17), got)

	// Wednesday has no template entry.
	got, err = svc.ResolveBaseSlots(context.Background(), "2024-01-03", "")
	require.NoError(t, err)
	assert.Equal(t, hourly(6, 18), got)
}

func TestIsDateBookable(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	store.schedules[""].Overrides = []model.DateOverride{{Date: "2024-01-09", IsAvailable: false}}
	ctx := context.Background()

	ok, err := svc.IsDateBookable(ctx, testDate, "")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.IsDateBookable(ctx, "2023-12-31", "")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.IsDateBookable(ctx, "2024-01-09", "")
	require.NoError(t, err)
	assert.False(t, ok)

	// Fully booked: one job covering every slot.
	store.seed(model.Booking{Date: "2024-01-16", Time: "09:00", NumberOfGifts: 36, CustomerName: "Corp"})
	ok, err = svc.IsDateBookable(ctx, "2024-01-16", "")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.IsDateBookable(ctx, "tomorrow", "")
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestAvailableSlots(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	// Mondays are blocked; the listed slots must not leak through.
	store.schedules[""].Weekly[1] = model.DaySchedule{Slots: hourly(9, 12), IsBlocked: true}
	store.seed(model.Booking{Time: "10:00", NumberOfGifts: 4, CustomerName: "Alice"})
	ctx := context.Background()

	first, err := svc.AvailableSlots(ctx, testDate, "")
	require.NoError(t, err)
	second, err := svc.AvailableSlots(ctx, testDate, "")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.NotContains(t, first, "10:00")
	assert.Len(t, first, 8)

	free, err := svc.AvailableSlots(ctx, "2024-01-08", "")
	require.NoError(t, err)
	assert.Empty(t, free)

	ok, err := svc.IsDateBookable(ctx, "2024-01-08", "")
	require.NoError(t, err)
	assert.False(t, ok)

	// The next Monday with an available override opens again.
	store.schedules[""].Overrides = []model.DateOverride{{Date: "2024-01-15", IsAvailable: true, Slots: []string{"11:00"}}}
	free, err = svc.AvailableSlots(ctx, "2024-01-15", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"11:00"}, free)
}

func TestMaxItemsForSlot(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	store.seed(model.Booking{Time: "12:00", NumberOfGifts: 2, CustomerName: "Alice"})
	store.tiers["premium"] = &model.PricingTier{ID: "premium", MinutesPerItem: 30}
	ctx := context.Background()

	tests := []struct {
		at      string
		service string
		want    int
	}{
		{"10:00", "standard", 8},
		{"10:00", "premium", 4},
		{"14:00", "standard", 20},
		{"12:00", "standard", 0},
		{"09:30", "standard", 0},
	}
	for _, tt := range tests {
		got, err := svc.MaxItemsForSlot(ctx, MaxItemsQuery{Date: testDate, Time: tt.at, ServiceID: tt.service})
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s %s", tt.at, tt.service)
	}

	got, err := svc.MaxItemsForSlot(ctx, MaxItemsQuery{Date: "2023-12-01", Time: "10:00", ServiceID: "standard"})
	require.NoError(t, err)
	assert.Equal(t, 0, got)
}

func TestTransitionBookingStatus_FullLifecycle(t *testing.T) {
	svc, store, notifier, _ := newTestService(t)
	ctx := context.Background()
	id := store.seed(model.Booking{Time: "10:00", NumberOfGifts: 2, CustomerName: "Alice"})

	notifier.On("Notify", model.NotifyConfirmed, id).Twice()
	notifier.On("Notify", model.NotifyReady, id).Once()
	notifier.On("Notify", model.NotifyThankYou, id).Once()

	b, err := svc.TransitionBookingStatus(ctx, id, model.StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, b.Status)

	_, err = svc.TransitionBookingStatus(ctx, id, model.StatusInProgress)
	var guard *GuardViolation
	require.True(t, errors.As(err, &guard))
	assert.Equal(t, 0, guard.CheckedIn)
	assert.Equal(t, 2, guard.Expected)

	items, err := svc.AddWorkItems(ctx, id, []string{"Red box", ""})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Gift #2", items[1].Label)

	for _, it := range items {
		_, b, err = svc.SetWorkItemStatus(ctx, it.ID, model.ItemCheckedIn)
		require.NoError(t, err)
		assert.Equal(t, model.StatusConfirmed, b.Status)
	}

	b, err = svc.TransitionBookingStatus(ctx, id, model.StatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, b.Status)

	_, b, err = svc.SetWorkItemStatus(ctx, items[0].ID, model.ItemReady)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, b.Status)

	_, b, err = svc.SetWorkItemStatus(ctx, items[1].ID, model.ItemReady)
	require.NoError(t, err)
	assert.Equal(t, model.StatusReady, b.Status)
	assert.True(t, b.ReadyNotified)

	_, b, err = svc.SetWorkItemStatus(ctx, items[1].ID, model.ItemWrapping)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, b.Status)

	_, b, err = svc.SetWorkItemStatus(ctx, items[1].ID, model.ItemReady)
	require.NoError(t, err)
	assert.Equal(t, model.StatusReady, b.Status)

	b, err = svc.TransitionBookingStatus(ctx, id, model.StatusPickedUp)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPickedUp, b.Status)

	_, err = svc.TransitionBookingStatus(ctx, id, model.StatusCancelled)
	require.True(t, errors.As(err, &guard))
	assert.Equal(t, model.StatusPickedUp, guard.From)

	notifier.AssertExpectations(t)
}

func TestTransitionBookingStatus_PendingStartsWithoutCheckin(t *testing.T) {
	svc, store, notifier, _ := newTestService(t)
	id := store.seed(model.Booking{Time: "10:00", NumberOfGifts: 3, CustomerName: "Alice"})
	notifier.On("Notify", model.NotifyConfirmed, id).Once()

	b, err := svc.TransitionBookingStatus(context.Background(), id, model.StatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, b.Status)
	notifier.AssertExpectations(t)
}

func TestTransitionBookingStatus_ReadyNeedsFinishedGifts(t *testing.T) {
	svc, store, notifier, _ := newTestService(t)
	ctx := context.Background()
	id := store.seed(model.Booking{Time: "10:00", NumberOfGifts: 2, CustomerName: "Alice"})
	notifier.On("Notify", model.NotifyConfirmed, id).Once()

	_, err := svc.TransitionBookingStatus(ctx, id, model.StatusInProgress)
	require.NoError(t, err)

	items, err := svc.AddWorkItems(ctx, id, []string{"", ""})
	require.NoError(t, err)
	for _, it := range items {
		_, _, err = svc.SetWorkItemStatus(ctx, it.ID, model.ItemCheckedIn)
		require.NoError(t, err)
	}
	_, _, err = svc.SetWorkItemStatus(ctx, items[0].ID, model.ItemReady)
	require.NoError(t, err)
	_, _, err = svc.SetWorkItemStatus(ctx, items[1].ID, model.ItemWrapping)
	require.NoError(t, err)

	_, err = svc.TransitionBookingStatus(ctx, id, model.StatusReady)
	var guard *GuardViolation
	require.True(t, errors.As(err, &guard))
	assert.Equal(t, 2, guard.CheckedIn)
	assert.Equal(t, 1, guard.Done)
	assert.Contains(t, guard.Error(), "1 of 2 checked-in gifts done")

	b, err := svc.GetBooking(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, b.Status)
	assert.False(t, b.ReadyNotified)

	notifier.On("Notify", model.NotifyReady, id).Once()
	_, b, err = svc.SetWorkItemStatus(ctx, items[1].ID, model.ItemReady)
	require.NoError(t, err)
	assert.Equal(t, model.StatusReady, b.Status)
	assert.True(t, b.ReadyNotified)
	notifier.AssertExpectations(t)
}

func TestTransitionBookingStatus_ManualReadyWhenGiftsDone(t *testing.T) {
	svc, store, notifier, _ := newTestService(t)
	ctx := context.Background()
	id := store.seed(model.Booking{Time: "10:00", NumberOfGifts: 1, CustomerName: "Alice"})

	items, err := svc.AddWorkItems(ctx, id, []string{"Blue box"})
	require.NoError(t, err)
	_, _, err = svc.SetWorkItemStatus(ctx, items[0].ID, model.ItemReady)
	require.NoError(t, err)

	notifier.On("Notify", model.NotifyConfirmed, id).Once()
	notifier.On("Notify", model.NotifyReady, id).Once()

	_, err = svc.TransitionBookingStatus(ctx, id, model.StatusInProgress)
	require.NoError(t, err)
	b, err := svc.TransitionBookingStatus(ctx, id, model.StatusReady)
	require.NoError(t, err)
	assert.Equal(t, model.StatusReady, b.Status)
	notifier.AssertExpectations(t)
}

func TestTransitionBookingStatus_Errors(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	ctx := context.Background()
	id := store.seed(model.Booking{Time: "10:00", NumberOfGifts: 1, CustomerName: "Alice"})

	_, err := svc.TransitionBookingStatus(ctx, 999, model.StatusConfirmed)
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = svc.TransitionBookingStatus(ctx, id, "lost")
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))

	_, err = svc.TransitionBookingStatus(ctx, id, model.StatusReady)
	var guard *GuardViolation
	require.True(t, errors.As(err, &guard))
	assert.Contains(t, guard.Error(), "not allowed")
}

func TestAddWorkItems_Limits(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	ctx := context.Background()
	id := store.seed(model.Booking{Time: "10:00", NumberOfGifts: 1, CustomerName: "Alice"})

	_, err := svc.AddWorkItems(ctx, id, nil)
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))

	_, err = svc.AddWorkItems(ctx, id, []string{"a", "b"})
	assert.True(t, errors.As(err, &verr))

	items, err := svc.AddWorkItems(ctx, id, []string{"a"})
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestWorkPlan(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	alice := store.seed(model.Booking{Time: "17:00", NumberOfGifts: 4, CustomerName: "Alice"})
	bob := store.seed(model.Booking{Time: "16:00", NumberOfGifts: 12, CustomerName: "Bob"})

	plan, err := svc.WorkPlan(context.Background(), testDate, "")
	require.NoError(t, err)

	assert.Equal(t, "19:00", plan.Ceiling)
	assert.Equal(t, "20:00", plan.Finish)
	assert.True(t, plan.Overrun)
	require.Len(t, plan.Bookings, 2)
	assert.Equal(t, bob, plan.Bookings[0].BookingID)
	assert.Equal(t, alice, plan.Bookings[1].BookingID)
	assert.NotEmpty(t, plan.Segments)

	empty, err := svc.WorkPlan(context.Background(), "2024-01-03", "")
	require.NoError(t, err)
	assert.Empty(t, empty.Bookings)
	assert.False(t, empty.Overrun)
}

func TestPutSchedule(t *testing.T) {
	svc, store, _, bus := newTestService(t)
	ctx := context.Background()

	updates := 0
	bus.Subscribe(events.ScheduleUpdated, func(events.Event) error {
		updates++
		return nil
	})

	sched, err := svc.PutSchedule(ctx, &model.Schedule{
		WorkerID: "w1",
		Weekly: map[int]model.DaySchedule{
			1: {Slots: []string{"11:00", "09:00", "11:00"}},
			0: {IsBlocked: true},
		},
		Overrides: []model.DateOverride{
			{Date: "2024-02-01", IsAvailable: true, Slots: []string{"10:00"}},
			{Date: "2024-01-20", IsAvailable: false},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "11:00"}, sched.Weekly[1].Slots)
	assert.Equal(t, "2024-01-20", sched.Overrides[0].Date)
	assert.Equal(t, fixedNow(), sched.UpdatedAt)
	assert.Equal(t, sched, store.schedules["w1"])
	assert.Equal(t, 1, updates)

	_, err = svc.PutSchedule(ctx, &model.Schedule{
		Weekly:    map[int]model.DaySchedule{9: {}},
		Overrides: []model.DateOverride{{Date: "2024-02-01"}, {Date: "2024-02-01"}},
	})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "weekly[9]")
	assert.Contains(t, verr.Fields, "overrides[1]")

	empty, err := svc.GetSchedule(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, "nobody", empty.WorkerID)
	assert.Empty(t, empty.Weekly)
}

func TestBookingsBetween(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	store.seed(model.Booking{Date: "2024-01-02", Time: "10:00", NumberOfGifts: 1, CustomerName: "A"})
	store.seed(model.Booking{Date: "2024-02-02", Time: "10:00", NumberOfGifts: 1, CustomerName: "B"})

	list, err := svc.BookingsBetween(context.Background(), "2024-01-01", "2024-01-31")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = svc.BookingsBetween(context.Background(), "jan", "2024-01-31")
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
}
