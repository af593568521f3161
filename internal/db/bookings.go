package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"giftwrap/internal/model"
)

const bookingColumns = `id, worker_id, date, time, service_id, category, number_of_gifts, status,
	ready_notified, customer_name, customer_email, customer_phone, notes, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*model.Booking, error) {
	var (
		b                   model.Booking
		email, phone, notes sql.NullString
	)
	err := row.Scan(
		&b.ID, &b.WorkerID, &b.Date, &b.Time, &b.ServiceID, &b.Category, &b.NumberOfGifts, &b.Status,
		&b.ReadyNotified, &b.CustomerName, &email, &phone, &notes, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.CustomerEmail = email.String
	b.CustomerPhone = phone.String
	b.Notes = notes.String
	return &b, nil
}

func (db *DB) queryBookings(ctx context.Context, query string, args ...any) ([]model.Booking, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// GetBookingsForDate returns the non-cancelled bookings of date.
func (db *DB) GetBookingsForDate(ctx context.Context, date string) ([]model.Booking, error) {
	return db.queryBookings(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE date = ? AND status != ?
		ORDER BY time, id`,
		date, model.StatusCancelled,
	)
}

// ListBookingsBetween returns every booking with from <= date <= to.
func (db *DB) ListBookingsBetween(ctx context.Context, from, to string) ([]model.Booking, error) {
	return db.queryBookings(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE date BETWEEN ? AND ?
		ORDER BY date, time, id`,
		from, to,
	)
}

// GetBooking returns a booking by id or model.ErrNotFound.
func (db *DB) GetBooking(ctx context.Context, id int64) (*model.Booking, error) {
	b, err := scanBooking(db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	return b, err
}

// InsertBooking stores b and sets its ID. A second active booking on the same
// date and time fails with model.ErrSlotTaken.
func (db *DB) InsertBooking(ctx context.Context, b *model.Booking) error {
	now := time.Now()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = b.CreatedAt
	}

	res, err := db.ExecContext(ctx, `
		INSERT INTO bookings (
			worker_id, date, time, service_id, category, number_of_gifts, status,
			ready_notified, customer_name, customer_email, customer_phone, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.WorkerID, b.Date, b.Time, b.ServiceID, b.Category, b.NumberOfGifts, b.Status,
		b.ReadyNotified, b.CustomerName, b.CustomerEmail, b.CustomerPhone, b.Notes, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrSlotTaken
		}
		return fmt.Errorf("insert booking: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = id
	return nil
}

// UpdateBookingStatus sets status and the ready notification flag and returns
// the stored booking.
func (db *DB) UpdateBookingStatus(ctx context.Context, id int64, status model.BookingStatus, readyNotified bool) (*model.Booking, error) {
	res, err := db.ExecContext(ctx, `
		UPDATE bookings SET status = ?, ready_notified = ?, updated_at = ?
		WHERE id = ?`,
		status, readyNotified, time.Now(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update booking status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, model.ErrNotFound
	}
	return db.GetBooking(ctx, id)
}
