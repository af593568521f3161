// Package google mirrors bookings into a Google Sheets spreadsheet.
package google

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"sync"

	"giftwrap/internal/events"
	"giftwrap/internal/model"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// ValuesAPI is the part of the Sheets values API the service needs.
type ValuesAPI interface {
	Append(ctx context.Context, rng string, row []interface{}) (updatedRange string, err error)
	Update(ctx context.Context, rng string, row []interface{}) error
}

type sheetsValues struct {
	spreadsheetID string
	svc           *sheets.Service
}

func (v *sheetsValues) Append(ctx context.Context, rng string, row []interface{}) (string, error) {
	resp, err := v.svc.Spreadsheets.Values.Append(v.spreadsheetID, rng, &sheets.ValueRange{
		Values: [][]interface{}{row},
	}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return "", err
	}
	if resp.Updates == nil {
		return "", nil
	}
	return resp.Updates.UpdatedRange, nil
}

func (v *sheetsValues) Update(ctx context.Context, rng string, row []interface{}) error {
	_, err := v.svc.Spreadsheets.Values.Update(v.spreadsheetID, rng, &sheets.ValueRange{
		Values: [][]interface{}{row},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

// NewValuesAPI authenticates with a service account key file.
func NewValuesAPI(ctx context.Context, credentialsFile, spreadsheetID string) (ValuesAPI, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	svc, err := sheets.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &sheetsValues{spreadsheetID: spreadsheetID, svc: svc}, nil
}

// SheetsService keeps one row per booking up to date.
type SheetsService struct {
	api    ValuesAPI
	sheet  string
	queue  chan model.Booking
	logger *zerolog.Logger

	mu       sync.RWMutex
	rowCache map[int64]int
}

func NewSheetsService(api ValuesAPI, sheet string, queueSize int, logger *zerolog.Logger) *SheetsService {
	if queueSize <= 0 {
		queueSize = 256
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "sheets").Logger()
	return &SheetsService{
		api:      api,
		sheet:    sheet,
		queue:    make(chan model.Booking, queueSize),
		logger:   &l,
		rowCache: make(map[int64]int),
	}
}

// Subscribe queues a sync for every booking event on bus.
func (s *SheetsService) Subscribe(bus *events.EventBus) {
	bus.SubscribeAll(s.handle, events.BookingCreated, events.BookingStatusChanged)
}

func (s *SheetsService) handle(e events.Event) error {
	if e.Booking == nil {
		return nil
	}
	select {
	case s.queue <- *e.Booking:
		return nil
	default:
		return fmt.Errorf("sheets queue full, skipped booking %d", e.Booking.ID)
	}
}

// Run syncs queued bookings until ctx ends.
func (s *SheetsService) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case b := <-s.queue:
			if err := s.SyncBooking(ctx, &b); err != nil {
				s.logger.Error().Err(err).Int64("booking_id", b.ID).Msg("sheets sync failed")
			}
		}
	}
}

// SyncBooking rewrites the booking's row, appending one the first time.
func (s *SheetsService) SyncBooking(ctx context.Context, b *model.Booking) error {
	values := bookingRowValues(b)

	if row, ok := s.getCachedRow(b.ID); ok {
		rng := fmt.Sprintf("%s!A%d", s.sheet, row)
		if err := s.api.Update(ctx, rng, values); err != nil {
			s.deleteCacheRow(b.ID)
			return fmt.Errorf("update row %d: %w", row, err)
		}
		return nil
	}

	updated, err := s.api.Append(ctx, s.sheet+"!A1", values)
	if err != nil {
		return fmt.Errorf("append row: %w", err)
	}
	if row, ok := parseRow(updated); ok {
		s.setCachedRow(b.ID, row)
	}
	return nil
}

var rangeRow = regexp.MustCompile(`![A-Z]+(\d+)`)

// parseRow extracts the first row number from a range like "Bookings!A7:M7".
func parseRow(updatedRange string) (int, bool) {
	m := rangeRow.FindStringSubmatch(updatedRange)
	if m == nil {
		return 0, false
	}
	row, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return row, true
}

func bookingRowValues(b *model.Booking) []interface{} {
	return []interface{}{
		b.ID,
		b.Reference(),
		b.WorkerID,
		b.Date,
		b.Time,
		b.ServiceID,
		string(b.Category),
		b.NumberOfGifts,
		string(b.Status),
		b.CustomerName,
		b.CustomerPhone,
		b.CreatedAt.Format("2006-01-02 15:04:05"),
		b.UpdatedAt.Format("2006-01-02 15:04:05"),
	}
}

func (s *SheetsService) getCachedRow(id int64) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rowCache[id]
	return row, ok
}

func (s *SheetsService) setCachedRow(id int64, row int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rowCache[id] = row
}

func (s *SheetsService) deleteCacheRow(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rowCache, id)
}

// ClearCache forgets every known row; the next sync of a booking appends.
func (s *SheetsService) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rowCache = make(map[int64]int)
}
