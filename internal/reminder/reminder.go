// Package reminder sends a reminder the day before each open booking.
package reminder

import (
	"context"
	"sync"
	"time"

	"giftwrap/internal/model"
	"github.com/rs/zerolog"
)

// BookingSource lists bookings whose date falls in [from, to].
type BookingSource interface {
	BookingsBetween(ctx context.Context, from, to string) ([]model.Booking, error)
}

// Notifier queues a customer notification.
type Notifier interface {
	Notify(kind model.NotificationKind, b model.Booking)
}

// Scheduler runs once a day at Hour in Location.
type Scheduler struct {
	Hour          int
	Location      *time.Location
	CheckInterval time.Duration

	src      BookingSource
	notifier Notifier
	logger   *zerolog.Logger
	now      func() time.Time

	mu      sync.Mutex
	lastRun string
}

func NewScheduler(src BookingSource, notifier Notifier, hour int, loc *time.Location, logger *zerolog.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	if hour < 0 || hour > 23 {
		hour = 9
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "reminder").Logger()
	return &Scheduler{
		Hour:          hour,
		Location:      loc,
		CheckInterval: time.Minute,
		src:           src,
		notifier:      notifier,
		logger:        &l,
		now:           time.Now,
	}
}

// Start checks every CheckInterval until ctx ends.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info().Int("hour", s.Hour).Str("timezone", s.Location.String()).Msg("reminder scheduler started")

	ticker := time.NewTicker(s.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkAndRun(ctx)
		}
	}
}

// checkAndRun sends reminders when the daily hour has come and today has not
// been handled yet. It reports how many reminders were queued.
func (s *Scheduler) checkAndRun(ctx context.Context) int {
	now := s.now().In(s.Location)
	today := now.Format("2006-01-02")

	s.mu.Lock()
	if s.lastRun == today || now.Hour() < s.Hour {
		s.mu.Unlock()
		return 0
	}
	s.lastRun = today
	s.mu.Unlock()

	n, err := s.SendForDate(ctx, now.AddDate(0, 0, 1).Format("2006-01-02"))
	if err != nil {
		s.logger.Error().Err(err).Msg("reminder run failed")
	}
	return n
}

// SendForDate queues a reminder for every pending or confirmed booking on date.
func (s *Scheduler) SendForDate(ctx context.Context, date string) (int, error) {
	bookings, err := s.src.BookingsBetween(ctx, date, date)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, b := range bookings {
		if !shouldRemind(b.Status) {
			continue
		}
		s.notifier.Notify(model.NotifyReminder, b)
		sent++
	}
	s.logger.Info().Str("date", date).Int("reminders", sent).Msg("reminders queued")
	return sent, nil
}

func shouldRemind(status model.BookingStatus) bool {
	return status == model.StatusPending || status == model.StatusConfirmed
}
