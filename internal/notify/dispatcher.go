package notify

import (
	"context"
	"net/http"
	"sync"
	"time"

	"giftwrap/internal/metrics"
	"giftwrap/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// RetryConfig holds configuration for retry logic.
type RetryConfig struct {
	MaxRetries  int
	RetryDelays []time.Duration
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		RetryDelays: []time.Duration{
			1 * time.Second,
			5 * time.Second,
			30 * time.Second,
		},
	}
}

// Config holds dispatcher settings.
type Config struct {
	Workers   int
	QueueSize int
	Rate      float64 // messages per second across all sinks
	Burst     int
	Retry     RetryConfig
}

// DefaultConfig returns the default dispatcher configuration.
func DefaultConfig() Config {
	return Config{
		Workers:   2,
		QueueSize: 256,
		Rate:      20,
		Burst:     30,
		Retry:     DefaultRetryConfig(),
	}
}

// FailureRecorder stores notifications that could not be delivered.
type FailureRecorder interface {
	RecordNotificationFailure(ctx context.Context, bookingID int64, kind model.NotificationKind, sink string, attempts int, sendErr error) error
}

const (
	queueSink         = "queue"
	dropRecordTimeout = 500 * time.Millisecond
)

// Dispatcher queues notifications and delivers them to every sink.
type Dispatcher struct {
	cfg      Config
	sinks    []Sink
	failures FailureRecorder
	limiter  *rate.Limiter
	logger   *zerolog.Logger

	queue  chan Message
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher. failures may be nil.
func NewDispatcher(cfg Config, failures FailureRecorder, logger *zerolog.Logger, sinks ...Sink) *Dispatcher {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.Rate <= 0 {
		cfg.Rate = def.Rate
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if len(cfg.Retry.RetryDelays) == 0 {
		cfg.Retry = def.Retry
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "notify").Logger()

	return &Dispatcher{
		cfg:      cfg,
		sinks:    sinks,
		failures: failures,
		limiter:  rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst),
		logger:   &l,
		queue:    make(chan Message, cfg.QueueSize),
	}
}

// Start launches the workers. They stop after Stop drains the queue.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}
	d.logger.Info().Int("workers", d.cfg.Workers).Int("sinks", len(d.sinks)).Msg("Notification dispatcher started")
}

// Stop refuses new notifications and waits for queued ones to be handled.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

// Notify enqueues a notification without blocking. When the queue is full or
// the dispatcher is stopped the notification is dropped, counted and recorded
// in the failure log.
func (d *Dispatcher) Notify(kind model.NotificationKind, b model.Booking) {
	msg := Message{ID: uuid.NewString(), Kind: kind, Booking: b}

	d.mu.RLock()
	var dropErr error
	if d.closed {
		dropErr = ErrDispatcherStopped
	} else {
		select {
		case d.queue <- msg:
			metrics.SetNotificationQueue(len(d.queue))
		default:
			dropErr = ErrQueueFull
		}
	}
	d.mu.RUnlock()

	if dropErr != nil {
		d.drop(msg, dropErr)
	}
}

// drop records a notification that never reached the queue.
func (d *Dispatcher) drop(msg Message, reason error) {
	d.logger.Warn().Err(reason).
		Int64("booking_id", msg.Booking.ID).
		Str("kind", string(msg.Kind)).
		Msg("notification dropped")
	metrics.IncNotification(queueSink, string(msg.Kind), "dropped")

	if d.failures == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), dropRecordTimeout)
	defer cancel()
	if err := d.failures.RecordNotificationFailure(ctx, msg.Booking.ID, msg.Kind, queueSink, 0, reason); err != nil {
		d.logger.Error().Err(err).Int64("booking_id", msg.Booking.ID).Msg("failed to record dropped notification")
	}
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for msg := range d.queue {
		metrics.SetNotificationQueue(len(d.queue))
		for _, sink := range d.sinks {
			d.deliver(ctx, sink, msg)
		}
	}
}

// deliver sends msg to sink with rate limiting and retries, recording a
// failure once retries are exhausted or the error is permanent.
func (d *Dispatcher) deliver(ctx context.Context, sink Sink, msg Message) {
	log := d.logger.With().
		Str("sink", sink.Name()).
		Str("kind", string(msg.Kind)).
		Int64("booking_id", msg.Booking.ID).
		Logger()

	delays := d.cfg.Retry.RetryDelays
	var lastErr error
	attempts := 0

retry:
	for attempt := 0; attempt <= d.cfg.Retry.MaxRetries; attempt++ {
		if err := d.limiter.Wait(ctx); err != nil {
			lastErr = err
			break
		}

		attempts++
		started := time.Now()
		err := sink.Send(ctx, msg)
		metrics.ObserveNotificationDuration(time.Since(started).Seconds())
		if err == nil {
			metrics.IncNotification(sink.Name(), string(msg.Kind), "sent")
			log.Debug().Int("attempts", attempts).Msg("notification sent")
			return
		}
		lastErr = err

		wait := delays[min(attempt, len(delays)-1)]
		if sErr, ok := AsSinkError(err); ok {
			if sErr.Permanent() {
				log.Error().Err(err).Msg("notification rejected permanently")
				break
			}
			if sErr.Code == http.StatusTooManyRequests && sErr.RetryAfter > 0 {
				wait = sErr.RetryAfter
			}
		}

		if attempt == d.cfg.Retry.MaxRetries {
			break
		}

		metrics.IncNotificationRetry()
		log.Info().Err(err).Int("attempt", attempt+1).Dur("delay", wait).Msg("retrying notification")

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			lastErr = ctx.Err()
			break retry
		}
	}

	metrics.IncNotification(sink.Name(), string(msg.Kind), "failed")
	log.Error().Err(lastErr).Int("attempts", attempts).Msg("notification failed")

	if d.failures != nil {
		recCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.failures.RecordNotificationFailure(recCtx, msg.Booking.ID, msg.Kind, sink.Name(), attempts, lastErr); err != nil {
			log.Error().Err(err).Msg("failed to record notification failure")
		}
	}
}
