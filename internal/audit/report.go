// Package audit builds monthly booking workbooks and ships them to staff.
package audit

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"giftwrap/internal/model"
)

// BookingSource lists bookings whose date falls in [from, to].
type BookingSource interface {
	BookingsBetween(ctx context.Context, from, to string) ([]model.Booking, error)
}

var bookingColumns = []string{
	"ID", "Reference", "Worker", "Date", "Time", "Service", "Category",
	"Gifts", "Status", "Customer", "Phone", "Email", "Created",
}

// Filename is the workbook name for month, e.g. bookings_2024-01.xlsx.
func Filename(month time.Time) string {
	return fmt.Sprintf("bookings_%s.xlsx", month.Format("2006-01"))
}

// MonthRange returns the first and last calendar date of month.
func MonthRange(month time.Time) (string, string) {
	first := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return first.Format("2006-01-02"), last.Format("2006-01-02")
}

// MonthlyReport renders every booking of month into a workbook with a
// Bookings sheet and a Summary sheet.
func MonthlyReport(ctx context.Context, src BookingSource, month time.Time) ([]byte, error) {
	from, to := MonthRange(month)
	bookings, err := src.BookingsBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("load bookings %s..%s: %w", from, to, err)
	}

	w := newSheetWriter()
	defer w.close()

	if err := w.addSheet("Bookings"); err != nil {
		return nil, err
	}
	if err := w.header(bookingColumns...); err != nil {
		return nil, err
	}
	for i := range bookings {
		if err := w.write(bookingRow(&bookings[i])); err != nil {
			return nil, err
		}
	}

	if err := writeSummary(w, bookings); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := w.save(&buf); err != nil {
		return nil, fmt.Errorf("save workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func bookingRow(b *model.Booking) []interface{} {
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
		b.CustomerEmail,
		b.CreatedAt.Format("2006-01-02 15:04"),
	}
}

type summaryLine struct {
	bookings int
	gifts    int
}

func writeSummary(w *sheetWriter, bookings []model.Booking) error {
	byStatus := make(map[string]*summaryLine)
	byCategory := make(map[string]*summaryLine)
	for _, b := range bookings {
		tally(byStatus, string(b.Status), b.NumberOfGifts)
		if b.IsActive() {
			tally(byCategory, string(b.Category), b.NumberOfGifts)
		}
	}

	if err := w.addSheet("Summary"); err != nil {
		return err
	}
	if err := w.header("Status", "Bookings", "Gifts"); err != nil {
		return err
	}
	if err := writeTally(w, byStatus); err != nil {
		return err
	}
	w.skip()
	if err := w.header("Category (active)", "Bookings", "Gifts"); err != nil {
		return err
	}
	return writeTally(w, byCategory)
}

func tally(m map[string]*summaryLine, key string, gifts int) {
	line, ok := m[key]
	if !ok {
		line = &summaryLine{}
		m[key] = line
	}
	line.bookings++
	line.gifts += gifts
}

func writeTally(w *sheetWriter, m map[string]*summaryLine) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := w.write([]interface{}{k, m[k].bookings, m[k].gifts}); err != nil {
			return err
		}
	}
	return nil
}
