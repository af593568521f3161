package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "giftwrap"

var (
	once sync.Once

	bookingCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_created_total",
			Help:      "Count of bookings created by category.",
		},
		[]string{"category"},
	)

	bookingRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_rejected_total",
			Help:      "Count of booking requests rejected for capacity, by reason code.",
		},
		[]string{"code"},
	)

	bookingTransition = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_transition_total",
			Help:      "Count of booking status transitions.",
		},
		[]string{"from", "to"},
	)

	notificationSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_sent_total",
			Help:      "Count of notification deliveries by sink, kind and outcome.",
		},
		[]string{"sink", "kind", "status"},
	)

	notificationRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_retries_total",
			Help:      "Count of notification retry attempts.",
		},
	)

	notificationQueue = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "notification_queue_size",
			Help:      "Notifications waiting for delivery.",
		},
	)

	notificationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "notification_send_duration_seconds",
			Help:      "Time to deliver a notification to one sink.",
			Buckets:   []float64{.01, .05, .1, .5, 1, 2, 5},
		},
	)

	lockFailover = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lock_failover_total",
			Help:      "Count of booking locks taken on the local fallback.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Count of API requests by route.",
		},
		[]string{"route"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			bookingCreated,
			bookingRejected,
			bookingTransition,
			notificationSent,
			notificationRetries,
			notificationQueue,
			notificationDuration,
			lockFailover,
			httpRequests,
		)
	})
}

func IncBookingCreated(category string) {
	bookingCreated.WithLabelValues(category).Inc()
}

func IncBookingRejected(code string) {
	bookingRejected.WithLabelValues(code).Inc()
}

func IncTransition(from, to string) {
	bookingTransition.WithLabelValues(from, to).Inc()
}

func IncNotification(sink, kind, status string) {
	notificationSent.WithLabelValues(sink, kind, status).Inc()
}

func IncNotificationRetry() {
	notificationRetries.Inc()
}

func SetNotificationQueue(n int) {
	notificationQueue.Set(float64(n))
}

func ObserveNotificationDuration(seconds float64) {
	notificationDuration.Observe(seconds)
}

func IncLockFailover() {
	lockFailover.Inc()
}

func IncHTTP(route string) {
	httpRequests.WithLabelValues(route).Inc()
}
