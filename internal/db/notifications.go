package db

import (
	"context"
	"fmt"
	"time"

	"giftwrap/internal/model"
)

// NotificationFailure is a notification that exhausted its retries.
type NotificationFailure struct {
	ID        int64
	BookingID int64
	Kind      model.NotificationKind
	Sink      string
	Error     string
	Attempts  int
	CreatedAt time.Time
}

// RecordNotificationFailure stores a notification that could not be delivered.
func (db *DB) RecordNotificationFailure(ctx context.Context, bookingID int64, kind model.NotificationKind, sink string, attempts int, sendErr error) error {
	msg := ""
	if sendErr != nil {
		msg = sendErr.Error()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO notification_failures (booking_id, kind, sink, error, attempts, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		bookingID, kind, sink, msg, attempts, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("record notification failure: %w", err)
	}
	return nil
}

// ListNotificationFailures returns the failures recorded for a booking.
func (db *DB) ListNotificationFailures(ctx context.Context, bookingID int64) ([]NotificationFailure, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, booking_id, kind, sink, error, attempts, created_at
		FROM notification_failures WHERE booking_id = ? ORDER BY id`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []NotificationFailure
	for rows.Next() {
		var f NotificationFailure
		if err := rows.Scan(&f.ID, &f.BookingID, &f.Kind, &f.Sink, &f.Error, &f.Attempts, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
