// Package api exposes the booking core over HTTP.
package api

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"

	"giftwrap/internal/booking"
	"giftwrap/internal/model"
	"giftwrap/internal/ticket"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// BookingService is the part of the booking core served over HTTP.
type BookingService interface {
	AvailableSlots(ctx context.Context, date, workerID string) ([]string, error)
	IsDateBookable(ctx context.Context, date, workerID string) (bool, error)
	MaxItemsForSlot(ctx context.Context, q booking.MaxItemsQuery) (int, error)
	WorkPlan(ctx context.Context, date, workerID string) (*booking.DayPlan, error)
	TryCreateBooking(ctx context.Context, req booking.CreateRequest) (*model.Booking, *booking.Rejection, error)
	GetBooking(ctx context.Context, id int64) (*model.Booking, error)
	TransitionBookingStatus(ctx context.Context, id int64, to model.BookingStatus) (*model.Booking, error)
	AddWorkItems(ctx context.Context, bookingID int64, labels []string) ([]model.WorkItem, error)
	ListWorkItems(ctx context.Context, bookingID int64) ([]model.WorkItem, error)
	SetWorkItemStatus(ctx context.Context, itemID int64, status model.ItemStatus) (*model.WorkItem, *model.Booking, error)
	GetSchedule(ctx context.Context, workerID string) (*model.Schedule, error)
	PutSchedule(ctx context.Context, sched *model.Schedule) (*model.Schedule, error)
	BookingsBetween(ctx context.Context, from, to string) ([]model.Booking, error)
}

// Config controls the HTTP server.
type Config struct {
	Port           int
	APIKey         string
	AllowedOrigins []string
	Shop           ticket.Shop
}

// HTTPServer serves the REST API.
type HTTPServer struct {
	cfg     Config
	svc     BookingService
	logger  *zerolog.Logger
	handler http.Handler
	server  *http.Server
}

func NewHTTPServer(cfg Config, svc BookingService, logger *zerolog.Logger) *HTTPServer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "api").Logger()

	s := &HTTPServer{cfg: cfg, svc: svc, logger: &l}
	s.handler = s.buildHandler()
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Handler returns the full middleware chain, for tests and embedding.
func (s *HTTPServer) Handler() http.Handler {
	return s.handler
}

func (s *HTTPServer) routes() *httprouter.Router {
	r := httprouter.New()
	r.GET("/api/v1/slots", s.handleSlots)
	r.GET("/api/v1/dates/:date/bookable", s.handleBookable)
	r.GET("/api/v1/dates/:date/plan", s.handlePlan)
	r.GET("/api/v1/max-items", s.handleMaxItems)
	r.POST("/api/v1/bookings", s.handleCreateBooking)
	r.GET("/api/v1/bookings/:id", s.handleGetBooking)
	r.POST("/api/v1/bookings/:id/status", s.handleTransition)
	r.GET("/api/v1/bookings/:id/items", s.handleListItems)
	r.POST("/api/v1/bookings/:id/items", s.handleAddItems)
	r.GET("/api/v1/bookings/:id/ticket.pdf", s.handleTicket)
	r.PUT("/api/v1/items/:id", s.handleUpdateItem)
	r.GET("/api/v1/schedules", s.handleGetSchedule)
	r.PUT("/api/v1/schedules", s.handlePutSchedule)
	r.GET("/api/v1/reports/bookings.xlsx", s.handleReport)

	r.NotFound = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.PanicHandler = func(w http.ResponseWriter, req *http.Request, v interface{}) {
		s.logger.Error().Interface("panic", v).Str("path", req.URL.Path).Msg("handler panic")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
	return r
}

func (s *HTTPServer) buildHandler() http.Handler {
	var h http.Handler = s.routes()
	h = s.requireAPIKey(h)
	h = s.accessLog(h)
	h = withRequestID(h)
	h = otelhttp.NewHandler(h, "giftwrap-api")

	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		return h
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Api-Key", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         600,
	}).Handler(h)
}

// requireAPIKey rejects requests without the configured X-Api-Key. An empty
// key disables the check.
func (s *HTTPServer) requireAPIKey(next http.Handler) http.Handler {
	key := []byte(strings.TrimSpace(s.cfg.APIKey))
	if len(key) == 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := []byte(r.Header.Get("X-Api-Key"))
		if subtle.ConstantTimeCompare(got, key) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid api key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Start serves until Shutdown is called.
func (s *HTTPServer) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("http api listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
