package booking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"giftwrap/internal/events"
	"giftwrap/internal/metrics"
	"giftwrap/internal/model"
	"giftwrap/internal/slots"
	"github.com/rs/zerolog"
)

// ScheduleStore persists weekly templates and date overrides.
type ScheduleStore interface {
	// GetSchedule returns nil without error when no schedule exists.
	GetSchedule(ctx context.Context, workerID string) (*model.Schedule, error)
	PutSchedule(ctx context.Context, s *model.Schedule) error
}

// BookingStore persists bookings.
type BookingStore interface {
	GetBookingsForDate(ctx context.Context, date string) ([]model.Booking, error)
	GetBooking(ctx context.Context, id int64) (*model.Booking, error)
	InsertBooking(ctx context.Context, b *model.Booking) error
	UpdateBookingStatus(ctx context.Context, id int64, status model.BookingStatus, readyNotified bool) (*model.Booking, error)
	ListBookingsBetween(ctx context.Context, from, to string) ([]model.Booking, error)
}

// WorkItemStore persists per-gift work items.
type WorkItemStore interface {
	AddWorkItems(ctx context.Context, bookingID int64, labels []string) ([]model.WorkItem, error)
	ListWorkItems(ctx context.Context, bookingID int64) ([]model.WorkItem, error)
	GetWorkItem(ctx context.Context, id int64) (*model.WorkItem, error)
	UpdateWorkItemStatus(ctx context.Context, id int64, status model.ItemStatus) (*model.WorkItem, error)
}

// PricingStore resolves service tiers. A missing tier is nil without error.
type PricingStore interface {
	GetPricingTier(ctx context.Context, serviceID string) (*model.PricingTier, error)
}

// Locker serializes work on a key across requests.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Notifier delivers customer notifications. Notify must not block.
type Notifier interface {
	Notify(kind model.NotificationKind, b model.Booking)
}

// EventPublisher publishes domain events.
type EventPublisher interface {
	Publish(event events.Event)
}

// Config holds scheduling parameters.
type Config struct {
	Window               slots.Window
	ClosingBufferMinutes int
	MinutesPerItem       int
	Location             *time.Location
}

// Deps bundles the collaborators of Service.
type Deps struct {
	Schedules ScheduleStore
	Bookings  BookingStore
	Items     WorkItemStore
	Pricing   PricingStore
	Locker    Locker
	Notifier  Notifier
	Events    EventPublisher
	Logger    *zerolog.Logger
	Now       func() time.Time
}

// Service is the booking core.
type Service struct {
	schedules ScheduleStore
	bookings  BookingStore
	items     WorkItemStore
	pricing   PricingStore
	locker    Locker
	notifier  Notifier
	events    EventPublisher
	lifecycle *Lifecycle
	cfg       Config
	now       func() time.Time
	logger    zerolog.Logger
}

// NewService wires the booking core.
func NewService(deps Deps, cfg Config) *Service {
	if cfg.Window.Step <= 0 {
		cfg.Window = slots.DefaultWindow()
	}
	if cfg.ClosingBufferMinutes < 0 {
		cfg.ClosingBufferMinutes = slots.DefaultClosingBufferMinutes
	}
	if cfg.MinutesPerItem <= 0 {
		cfg.MinutesPerItem = slots.DefaultMinutesPerItem
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Locker == nil {
		deps.Locker = noopLocker{}
	}
	if deps.Notifier == nil {
		deps.Notifier = noopNotifier{}
	}
	if deps.Events == nil {
		deps.Events = noopPublisher{}
	}

	logger := zerolog.Nop()
	if deps.Logger != nil {
		logger = deps.Logger.With().Str("component", "booking").Logger()
	}

	return &Service{
		schedules: deps.Schedules,
		bookings:  deps.Bookings,
		items:     deps.Items,
		pricing:   deps.Pricing,
		locker:    deps.Locker,
		notifier:  deps.Notifier,
		events:    deps.Events,
		lifecycle: NewLifecycle(),
		cfg:       cfg,
		now:       deps.Now,
		logger:    logger,
	}
}

// CreateRequest is the input of TryCreateBooking.
type CreateRequest struct {
	WorkerID      string         `json:"worker_id,omitempty"`
	Date          string         `json:"date"`
	Time          string         `json:"time"`
	ServiceID     string         `json:"service_id"`
	Category      model.Category `json:"category,omitempty"`
	NumberOfGifts int            `json:"number_of_gifts"`
	CustomerName  string         `json:"customer_name"`
	CustomerEmail string         `json:"customer_email,omitempty"`
	CustomerPhone string         `json:"customer_phone,omitempty"`
	Notes         string         `json:"notes,omitempty"`
}

// Validate checks the request shape.
func (r *CreateRequest) Validate() error {
	verr := &ValidationError{}
	if _, err := slots.ParseDate(r.Date); err != nil {
		verr.add("date", "expected YYYY-MM-DD")
	}
	if _, err := slots.ParseClock(r.Time); err != nil {
		verr.add("time", "expected HH:MM")
	}
	if r.NumberOfGifts <= 0 {
		verr.add("number_of_gifts", "must be positive")
	}
	if strings.TrimSpace(r.ServiceID) == "" {
		verr.add("service_id", "is required")
	}
	if r.Category != "" && !r.Category.Valid() {
		verr.add("category", "must be dropoff, delivery or onsite")
	}
	if strings.TrimSpace(r.CustomerName) == "" {
		verr.add("customer_name", "is required")
	}
	return verr.orNil()
}

// day is the consistent read of one date that every decision works from.
type day struct {
	date      string
	schedule  *model.Schedule
	base      []string
	bookings  []model.Booking
	durations map[int64]int
	occupied  map[string]struct{}
	tiers     map[string]*model.PricingTier
}

func validateDate(date string) error {
	if _, err := slots.ParseDate(date); err != nil {
		return &ValidationError{Fields: map[string]string{"date": "expected YYYY-MM-DD"}}
	}
	return nil
}

func (s *Service) loadSchedule(ctx context.Context, workerID string) (*model.Schedule, error) {
	if workerID != "" {
		sched, err := s.schedules.GetSchedule(ctx, workerID)
		if err != nil {
			return nil, fmt.Errorf("get schedule for worker %s: %w", workerID, err)
		}
		if sched != nil {
			return sched, nil
		}
	}
	sched, err := s.schedules.GetSchedule(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("get global schedule: %w", err)
	}
	return sched, nil
}

func (s *Service) tier(ctx context.Context, cache map[string]*model.PricingTier, serviceID string) (*model.PricingTier, error) {
	if t, ok := cache[serviceID]; ok {
		return t, nil
	}
	t, err := s.pricing.GetPricingTier(ctx, serviceID)
	if err != nil {
		return nil, fmt.Errorf("get pricing tier %s: %w", serviceID, err)
	}
	cache[serviceID] = t
	return t, nil
}

func (s *Service) loadDay(ctx context.Context, date, workerID string) (*day, error) {
	sched, err := s.loadSchedule(ctx, workerID)
	if err != nil {
		return nil, err
	}
	base, err := slots.ResolveBaseSlots(date, sched, s.cfg.Window)
	if err != nil {
		return nil, err
	}

	d := &day{
		date:      date,
		schedule:  sched,
		base:      base,
		durations: make(map[int64]int),
		occupied:  make(map[string]struct{}),
		tiers:     make(map[string]*model.PricingTier),
	}
	if len(base) == 0 {
		return d, nil
	}

	all, err := s.bookings.GetBookingsForDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("get bookings for %s: %w", date, err)
	}
	for _, b := range all {
		if !b.IsActive() {
			continue
		}
		t, err := s.tier(ctx, d.tiers, b.ServiceID)
		if err != nil {
			return nil, err
		}
		dur := slots.EstimateDurationWithRate(t, b.NumberOfGifts, s.cfg.MinutesPerItem)
		occ, err := slots.OccupiedSlots(b.Time, dur, base)
		if err != nil {
			return nil, fmt.Errorf("booking %d: %w", b.ID, err)
		}
		for _, slot := range occ {
			d.occupied[slot] = struct{}{}
		}
		d.durations[b.ID] = dur
		d.bookings = append(d.bookings, b)
	}
	return d, nil
}

func (d *day) free() []string {
	return slots.FreeSlots(d.base, d.occupied)
}

func (d *day) jobs() []slots.Job {
	out := make([]slots.Job, 0, len(d.bookings))
	for _, b := range d.bookings {
		start, err := slots.ParseClock(b.Time)
		if err != nil {
			continue
		}
		out = append(out, slots.Job{
			BookingID: b.ID,
			Label:     b.CustomerName,
			Start:     start,
			Duration:  d.durations[b.ID],
			Category:  b.Category,
		})
	}
	return out
}

// ResolveBaseSlots returns the slot starts of date before bookings are applied.
func (s *Service) ResolveBaseSlots(ctx context.Context, date, workerID string) ([]string, error) {
	if err := validateDate(date); err != nil {
		return nil, err
	}
	sched, err := s.loadSchedule(ctx, workerID)
	if err != nil {
		return nil, err
	}
	return slots.ResolveBaseSlots(date, sched, s.cfg.Window)
}

// AvailableSlots returns the free slot starts of date.
func (s *Service) AvailableSlots(ctx context.Context, date, workerID string) ([]string, error) {
	if err := validateDate(date); err != nil {
		return nil, err
	}
	d, err := s.loadDay(ctx, date, workerID)
	if err != nil {
		return nil, err
	}
	return d.free(), nil
}

// IsDateBookable reports whether date can still take a booking.
func (s *Service) IsDateBookable(ctx context.Context, date, workerID string) (bool, error) {
	if err := validateDate(date); err != nil {
		return false, err
	}
	past, err := slots.IsPastDate(date, s.now(), s.cfg.Location)
	if err != nil {
		return false, err
	}
	if past {
		return false, nil
	}

	sched, err := s.loadSchedule(ctx, workerID)
	if err != nil {
		return false, err
	}
	closed, err := slots.IsDayClosed(date, sched)
	if err != nil {
		return false, err
	}
	if closed {
		return false, nil
	}

	free, err := s.AvailableSlots(ctx, date, workerID)
	if err != nil {
		return false, err
	}
	return len(free) > 0, nil
}

// MaxItemsQuery identifies a prospective booking start.
type MaxItemsQuery struct {
	Date      string
	Time      string
	ServiceID string
	WorkerID  string
}

// MaxItemsForSlot returns how many gifts fit when starting at the given slot
// without running into the next booked slot or past the closing limit.
func (s *Service) MaxItemsForSlot(ctx context.Context, q MaxItemsQuery) (int, error) {
	verr := &ValidationError{}
	if _, err := slots.ParseDate(q.Date); err != nil {
		verr.add("date", "expected YYYY-MM-DD")
	}
	start, err := slots.ParseClock(q.Time)
	if err != nil {
		verr.add("time", "expected HH:MM")
	}
	if err := verr.orNil(); err != nil {
		return 0, err
	}

	past, err := slots.IsPastDate(q.Date, s.now(), s.cfg.Location)
	if err != nil {
		return 0, err
	}
	if past {
		return 0, nil
	}

	d, err := s.loadDay(ctx, q.Date, q.WorkerID)
	if err != nil {
		return 0, err
	}
	if !slots.Contains(d.free(), q.Time) {
		return 0, nil
	}

	limit, err := slots.Ceiling(d.base, s.cfg.ClosingBufferMinutes)
	if err != nil {
		return 0, err
	}
	for slot := range d.occupied {
		t, err := slots.ParseClock(slot)
		if err != nil {
			continue
		}
		if t > start && t < limit {
			limit = t
		}
	}

	t, err := s.tier(ctx, d.tiers, q.ServiceID)
	if err != nil {
		return 0, err
	}
	rate := slots.Rate(t, s.cfg.MinutesPerItem)
	return (limit - start) / rate, nil
}

func dateLockKey(date string) string {
	return "giftwrap:lock:date:" + date
}

func bookingLockKey(id int64) string {
	return fmt.Sprintf("giftwrap:lock:booking:%d", id)
}

// TryCreateBooking stores a new pending booking or explains why it does not fit.
// Exactly one of the booking and the rejection is non-nil when err is nil.
func (s *Service) TryCreateBooking(ctx context.Context, req CreateRequest) (*model.Booking, *Rejection, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}

	unlock, err := s.locker.Lock(ctx, dateLockKey(req.Date))
	if err != nil {
		return nil, nil, fmt.Errorf("lock date %s: %w", req.Date, err)
	}
	defer unlock()

	rej, tier, err := s.checkCapacity(ctx, &req)
	if err != nil {
		return nil, nil, err
	}
	if rej != nil {
		metrics.IncBookingRejected(string(rej.Code))
		s.logger.Info().
			Str("date", req.Date).
			Str("time", req.Time).
			Str("code", string(rej.Code)).
			Str("reason", rej.Message).
			Msg("booking rejected")
		return nil, rej, nil
	}

	category := req.Category
	if category == "" && tier != nil && tier.Category.Valid() {
		category = tier.Category
	}
	if category == "" {
		category = model.CategoryDropoff
	}

	now := s.now()
	b := &model.Booking{
		WorkerID:      req.WorkerID,
		Date:          req.Date,
		Time:          req.Time,
		ServiceID:     req.ServiceID,
		Category:      category,
		NumberOfGifts: req.NumberOfGifts,
		Status:        model.StatusPending,
		CustomerName:  strings.TrimSpace(req.CustomerName),
		CustomerEmail: strings.TrimSpace(req.CustomerEmail),
		CustomerPhone: strings.TrimSpace(req.CustomerPhone),
		Notes:         req.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.bookings.InsertBooking(ctx, b); err != nil {
		if errors.Is(err, model.ErrSlotTaken) {
			rej := &Rejection{Code: RejectSlotTaken, Message: fmt.Sprintf("%s on %s was just booked", req.Time, req.Date)}
			metrics.IncBookingRejected(string(rej.Code))
			return nil, rej, nil
		}
		return nil, nil, fmt.Errorf("insert booking: %w", err)
	}

	metrics.IncBookingCreated(string(b.Category))
	s.logger.Info().
		Int64("booking_id", b.ID).
		Str("date", b.Date).
		Str("time", b.Time).
		Int("gifts", b.NumberOfGifts).
		Str("category", string(b.Category)).
		Msg("booking created")

	s.events.Publish(events.Event{Type: events.BookingCreated, Booking: b, To: b.Status, WorkerID: b.WorkerID})
	s.notifier.Notify(model.NotifyPending, *b)
	return b, nil, nil
}

// checkCapacity runs every capacity rule against a fresh read of the day.
func (s *Service) checkCapacity(ctx context.Context, req *CreateRequest) (*Rejection, *model.PricingTier, error) {
	past, err := slots.IsPastDate(req.Date, s.now(), s.cfg.Location)
	if err != nil {
		return nil, nil, err
	}
	if past {
		return &Rejection{Code: RejectPastDate, Message: req.Date + " is in the past"}, nil, nil
	}

	d, err := s.loadDay(ctx, req.Date, req.WorkerID)
	if err != nil {
		return nil, nil, err
	}
	closed, err := slots.IsDayClosed(req.Date, d.schedule)
	if err != nil {
		return nil, nil, err
	}
	if closed {
		return &Rejection{Code: RejectDateUnavailable, Message: req.Date + " is closed for bookings"}, nil, nil
	}
	if len(d.base) == 0 {
		return &Rejection{Code: RejectNoSlots, Message: "no slots are offered on " + req.Date}, nil, nil
	}

	tier, err := s.tier(ctx, d.tiers, req.ServiceID)
	if err != nil {
		return nil, nil, err
	}
	duration := slots.EstimateDurationWithRate(tier, req.NumberOfGifts, s.cfg.MinutesPerItem)
	ceiling, err := slots.Ceiling(d.base, s.cfg.ClosingBufferMinutes)
	if err != nil {
		return nil, nil, err
	}

	if !slots.Contains(d.base, req.Time) {
		return &Rejection{
			Code:       RejectSlotUnavailable,
			Message:    req.Time + " is not a bookable slot on " + req.Date,
			Suggestion: d.suggestSlot(duration, ceiling),
		}, tier, nil
	}
	if _, taken := d.occupied[req.Time]; taken {
		return &Rejection{
			Code:       RejectSlotTaken,
			Message:    req.Time + " on " + req.Date + " is already booked",
			Suggestion: d.suggestSlot(duration, ceiling),
		}, tier, nil
	}

	start, _ := slots.ParseClock(req.Time)
	if start+duration > ceiling {
		return &Rejection{
			Code: RejectExceedsClosing,
			Message: fmt.Sprintf("%d gifts take %s and would finish at %s, after the %s closing limit",
				req.NumberOfGifts, slots.FormatDuration(duration), slots.FormatClock(start+duration), slots.FormatClock(ceiling)),
			Suggestion: d.suggestSlot(duration, ceiling),
		}, tier, nil
	}

	own, err := slots.OccupiedSlots(req.Time, duration, d.base)
	if err != nil {
		return nil, nil, err
	}
	if !overlaps(own, d.occupied) {
		return nil, tier, nil
	}

	category := req.Category
	if category == "" && tier != nil {
		category = tier.Category
	}
	if !category.Valid() {
		category = model.CategoryDropoff
	}
	candidate := slots.Job{Label: req.CustomerName, Start: start, Duration: duration, Category: category}
	decision, err := slots.CanScheduleBooking(candidate, d.jobs(), d.base, s.cfg.ClosingBufferMinutes)
	if err != nil {
		return nil, nil, err
	}
	if decision.Accepted {
		return nil, tier, nil
	}

	conflicts := make([]int64, 0, len(decision.Conflicts))
	for _, c := range decision.Conflicts {
		conflicts = append(conflicts, c.BookingID)
	}
	return &Rejection{
		Code:       RejectDropoffOverrun,
		Message:    decision.Reason,
		Suggestion: d.suggestSlot(duration, ceiling),
		Conflicts:  conflicts,
	}, tier, nil
}

func overlaps(own []string, occupied map[string]struct{}) bool {
	for _, slot := range own {
		if _, ok := occupied[slot]; ok {
			return true
		}
	}
	return false
}

// suggestSlot finds the earliest free slot where the work fits on its own.
func (d *day) suggestSlot(duration, ceiling int) string {
	for _, slot := range d.free() {
		t, err := slots.ParseClock(slot)
		if err != nil || t+duration > ceiling {
			continue
		}
		own, err := slots.OccupiedSlots(slot, duration, d.base)
		if err != nil {
			continue
		}
		if !overlaps(own, d.occupied) {
			return slot
		}
	}
	return ""
}

// GetBooking returns a booking by id.
func (s *Service) GetBooking(ctx context.Context, id int64) (*model.Booking, error) {
	b, err := s.bookings.GetBooking(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get booking %d: %w", id, err)
	}
	return b, nil
}

// TransitionBookingStatus moves a booking to status to, enforcing the lifecycle.
func (s *Service) TransitionBookingStatus(ctx context.Context, id int64, to model.BookingStatus) (*model.Booking, error) {
	if !to.Valid() {
		return nil, &ValidationError{Fields: map[string]string{"status": "unknown status " + string(to)}}
	}

	unlock, err := s.locker.Lock(ctx, bookingLockKey(id))
	if err != nil {
		return nil, fmt.Errorf("lock booking %d: %w", id, err)
	}
	defer unlock()

	b, err := s.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.lifecycle.CanTransition(b.Status, to) {
		return nil, &GuardViolation{BookingID: id, From: b.Status, To: to}
	}

	if requiresCheckinCount(b.Status, to) {
		items, err := s.items.ListWorkItems(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("list work items of booking %d: %w", id, err)
		}
		checked := countCheckedIn(items)
		if checked != b.NumberOfGifts {
			return nil, &GuardViolation{BookingID: id, From: b.Status, To: to, CheckedIn: checked, Expected: b.NumberOfGifts}
		}
	}

	if to == model.StatusReady {
		items, err := s.items.ListWorkItems(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("list work items of booking %d: %w", id, err)
		}
		if !allCheckedInDone(items) {
			return nil, &GuardViolation{
				BookingID: id, From: b.Status, To: to,
				CheckedIn: countCheckedIn(items), Expected: b.NumberOfGifts, Done: countDone(items),
			}
		}
	}

	return s.apply(ctx, b, to)
}

// apply persists a transition and fires its side effects.
func (s *Service) apply(ctx context.Context, b *model.Booking, to model.BookingStatus) (*model.Booking, error) {
	from := b.Status
	kind, notify := notificationFor(from, to)

	readyNotified := b.ReadyNotified
	if to == model.StatusReady {
		if readyNotified {
			notify = false
		}
		readyNotified = true
	}

	updated, err := s.bookings.UpdateBookingStatus(ctx, b.ID, to, readyNotified)
	if err != nil {
		return nil, fmt.Errorf("update booking %d status: %w", b.ID, err)
	}

	metrics.IncTransition(string(from), string(to))
	s.logger.Info().
		Int64("booking_id", b.ID).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("booking status changed")

	s.events.Publish(events.Event{Type: events.BookingStatusChanged, Booking: updated, From: from, To: to, WorkerID: updated.WorkerID})
	if notify {
		s.notifier.Notify(kind, *updated)
	}
	return updated, nil
}

func countCheckedIn(items []model.WorkItem) int {
	n := 0
	for i := range items {
		if items[i].CheckedIn() {
			n++
		}
	}
	return n
}

func countDone(items []model.WorkItem) int {
	n := 0
	for i := range items {
		if items[i].CheckedIn() && items[i].Done() {
			n++
		}
	}
	return n
}

// AddWorkItems registers gifts of a booking awaiting check-in.
func (s *Service) AddWorkItems(ctx context.Context, bookingID int64, labels []string) ([]model.WorkItem, error) {
	if len(labels) == 0 {
		return nil, &ValidationError{Fields: map[string]string{"labels": "at least one item is required"}}
	}

	unlock, err := s.locker.Lock(ctx, bookingLockKey(bookingID))
	if err != nil {
		return nil, fmt.Errorf("lock booking %d: %w", bookingID, err)
	}
	defer unlock()

	b, err := s.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status.IsTerminal() {
		return nil, &ValidationError{Fields: map[string]string{"booking": "booking is " + string(b.Status)}}
	}

	existing, err := s.items.ListWorkItems(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("list work items of booking %d: %w", bookingID, err)
	}
	if len(existing)+len(labels) > b.NumberOfGifts {
		return nil, &ValidationError{Fields: map[string]string{
			"labels": fmt.Sprintf("booking declares %d gifts, %d already registered", b.NumberOfGifts, len(existing)),
		}}
	}

	named := make([]string, len(labels))
	for i, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" {
			l = fmt.Sprintf("Gift #%d", len(existing)+i+1)
		}
		named[i] = l
	}

	items, err := s.items.AddWorkItems(ctx, bookingID, named)
	if err != nil {
		return nil, fmt.Errorf("add work items to booking %d: %w", bookingID, err)
	}
	return items, nil
}

// ListWorkItems returns the gifts of a booking.
func (s *Service) ListWorkItems(ctx context.Context, bookingID int64) ([]model.WorkItem, error) {
	if _, err := s.GetBooking(ctx, bookingID); err != nil {
		return nil, err
	}
	items, err := s.items.ListWorkItems(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("list work items of booking %d: %w", bookingID, err)
	}
	return items, nil
}

// SetWorkItemStatus updates one gift and moves the booking to ready once all
// checked-in gifts are done, or back to in_progress when one regresses.
func (s *Service) SetWorkItemStatus(ctx context.Context, itemID int64, status model.ItemStatus) (*model.WorkItem, *model.Booking, error) {
	if !status.Valid() {
		return nil, nil, &ValidationError{Fields: map[string]string{"status": "unknown item status " + string(status)}}
	}

	item, err := s.items.GetWorkItem(ctx, itemID)
	if err != nil {
		return nil, nil, fmt.Errorf("get work item %d: %w", itemID, err)
	}

	unlock, err := s.locker.Lock(ctx, bookingLockKey(item.BookingID))
	if err != nil {
		return nil, nil, fmt.Errorf("lock booking %d: %w", item.BookingID, err)
	}
	defer unlock()

	b, err := s.GetBooking(ctx, item.BookingID)
	if err != nil {
		return nil, nil, err
	}
	if b.Status.IsTerminal() {
		return nil, nil, &ValidationError{Fields: map[string]string{"booking": "booking is " + string(b.Status)}}
	}

	updated, err := s.items.UpdateWorkItemStatus(ctx, itemID, status)
	if err != nil {
		return nil, nil, fmt.Errorf("update work item %d: %w", itemID, err)
	}
	s.events.Publish(events.Event{Type: events.WorkItemUpdated, Booking: b, Item: updated, WorkerID: b.WorkerID})

	items, err := s.items.ListWorkItems(ctx, b.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("list work items of booking %d: %w", b.ID, err)
	}
	allDone := allCheckedInDone(items)

	switch {
	case b.Status == model.StatusInProgress && allDone:
		b, err = s.apply(ctx, b, model.StatusReady)
	case b.Status == model.StatusReady && !allDone:
		b, err = s.apply(ctx, b, model.StatusInProgress)
	}
	if err != nil {
		return nil, nil, err
	}
	return updated, b, nil
}

func allCheckedInDone(items []model.WorkItem) bool {
	checked := 0
	for i := range items {
		if !items[i].CheckedIn() {
			continue
		}
		checked++
		if !items[i].Done() {
			return false
		}
	}
	return checked > 0
}

// GetSchedule returns the stored schedule of a worker, or an empty one.
func (s *Service) GetSchedule(ctx context.Context, workerID string) (*model.Schedule, error) {
	sched, err := s.schedules.GetSchedule(ctx, workerID)
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	if sched == nil {
		sched = &model.Schedule{WorkerID: workerID, Weekly: map[int]model.DaySchedule{}}
	}
	return sched, nil
}

// PutSchedule validates, normalizes and upserts a schedule.
func (s *Service) PutSchedule(ctx context.Context, sched *model.Schedule) (*model.Schedule, error) {
	if sched == nil {
		return nil, &ValidationError{Fields: map[string]string{"schedule": "is required"}}
	}
	if err := normalizeSchedule(sched); err != nil {
		return nil, err
	}
	sched.UpdatedAt = s.now()
	if err := s.schedules.PutSchedule(ctx, sched); err != nil {
		return nil, fmt.Errorf("put schedule: %w", err)
	}
	s.logger.Info().
		Str("worker_id", sched.WorkerID).
		Int("weekdays", len(sched.Weekly)).
		Int("overrides", len(sched.Overrides)).
		Msg("schedule updated")
	s.events.Publish(events.Event{Type: events.ScheduleUpdated, WorkerID: sched.WorkerID})
	return sched, nil
}

func normalizeSchedule(sched *model.Schedule) error {
	verr := &ValidationError{}
	if sched.Weekly == nil {
		sched.Weekly = map[int]model.DaySchedule{}
	}
	for wd, day := range sched.Weekly {
		key := fmt.Sprintf("weekly[%d]", wd)
		if wd < 0 || wd > 6 {
			verr.add(key, "weekday must be 0 (Sunday) to 6 (Saturday)")
			continue
		}
		norm, err := normalizeSlots(day.Slots)
		if err != nil {
			verr.add(key, err.Error())
			continue
		}
		day.Slots = norm
		sched.Weekly[wd] = day
	}

	seen := make(map[string]bool)
	for i := range sched.Overrides {
		o := &sched.Overrides[i]
		key := fmt.Sprintf("overrides[%d]", i)
		if _, err := slots.ParseDate(o.Date); err != nil {
			verr.add(key, "date must be YYYY-MM-DD")
			continue
		}
		if seen[o.Date] {
			verr.add(key, "duplicate date "+o.Date)
			continue
		}
		seen[o.Date] = true
		norm, err := normalizeSlots(o.Slots)
		if err != nil {
			verr.add(key, err.Error())
			continue
		}
		o.Slots = norm
	}
	sort.Slice(sched.Overrides, func(i, j int) bool { return sched.Overrides[i].Date < sched.Overrides[j].Date })
	return verr.orNil()
}

// normalizeSlots validates, sorts and de-duplicates slot starts.
func normalizeSlots(in []string) ([]string, error) {
	mins := make([]int, 0, len(in))
	seen := make(map[int]bool)
	for _, slot := range in {
		m, err := slots.ParseClock(slot)
		if err != nil {
			return nil, err
		}
		if seen[m] {
			continue
		}
		seen[m] = true
		mins = append(mins, m)
	}
	sort.Ints(mins)
	out := make([]string, len(mins))
	for i, m := range mins {
		out[i] = slots.FormatClock(m)
	}
	return out, nil
}

// BookingsBetween lists bookings with from <= date <= to.
func (s *Service) BookingsBetween(ctx context.Context, from, to string) ([]model.Booking, error) {
	verr := &ValidationError{}
	if _, err := slots.ParseDate(from); err != nil {
		verr.add("from", "expected YYYY-MM-DD")
	}
	if _, err := slots.ParseDate(to); err != nil {
		verr.add("to", "expected YYYY-MM-DD")
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}
	list, err := s.bookings.ListBookingsBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list bookings %s..%s: %w", from, to, err)
	}
	return list, nil
}

type noopLocker struct{}

func (noopLocker) Lock(context.Context, string) (func(), error) { return func() {}, nil }

type noopNotifier struct{}

func (noopNotifier) Notify(model.NotificationKind, model.Booking) {}

type noopPublisher struct{}

func (noopPublisher) Publish(events.Event) {}
