package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"giftwrap/internal/model"
)

// GetSchedule returns the schedule of workerID ("" is the shared schedule),
// or nil when none has been stored.
func (db *DB) GetSchedule(ctx context.Context, workerID string) (*model.Schedule, error) {
	s := &model.Schedule{WorkerID: workerID, Weekly: map[int]model.DaySchedule{}}
	err := db.QueryRowContext(ctx,
		`SELECT updated_at FROM schedules WHERE worker_id = ?`, workerID,
	).Scan(&s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule %q: %w", workerID, err)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT weekday, slots, is_blocked FROM schedule_days WHERE worker_id = ? ORDER BY weekday`, workerID)
	if err != nil {
		return nil, fmt.Errorf("get schedule days: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			weekday int
			slots   string
			day     model.DaySchedule
		)
		if err := rows.Scan(&weekday, &slots, &day.IsBlocked); err != nil {
			return nil, err
		}
		day.Slots = splitSlots(slots)
		s.Weekly[weekday] = day
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	orows, err := db.QueryContext(ctx,
		`SELECT date, slots, is_available, reason FROM schedule_overrides WHERE worker_id = ? ORDER BY date`, workerID)
	if err != nil {
		return nil, fmt.Errorf("get schedule overrides: %w", err)
	}
	defer orows.Close()
	for orows.Next() {
		var (
			o      model.DateOverride
			slots  string
			reason sql.NullString
		)
		if err := orows.Scan(&o.Date, &slots, &o.IsAvailable, &reason); err != nil {
			return nil, err
		}
		o.Slots = splitSlots(slots)
		if reason.Valid {
			o.Reason = reason.String
		}
		s.Overrides = append(s.Overrides, o)
	}
	return s, orows.Err()
}

// PutSchedule replaces the weekly template and overrides of s.WorkerID.
func (db *DB) PutSchedule(ctx context.Context, s *model.Schedule) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	updated := s.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO schedules (worker_id, updated_at) VALUES (?, ?)
		ON CONFLICT(worker_id) DO UPDATE SET updated_at = excluded.updated_at`,
		s.WorkerID, updated,
	); err != nil {
		return fmt.Errorf("upsert schedule: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM schedule_days WHERE worker_id = ?`, s.WorkerID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM schedule_overrides WHERE worker_id = ?`, s.WorkerID); err != nil {
		return err
	}

	for weekday, day := range s.Weekly {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schedule_days (worker_id, weekday, slots, is_blocked) VALUES (?, ?, ?, ?)`,
			s.WorkerID, weekday, joinSlots(day.Slots), day.IsBlocked,
		); err != nil {
			return fmt.Errorf("insert weekday %d: %w", weekday, err)
		}
	}
	for _, o := range s.Overrides {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schedule_overrides (worker_id, date, slots, is_available, reason) VALUES (?, ?, ?, ?, ?)`,
			s.WorkerID, o.Date, joinSlots(o.Slots), o.IsAvailable, o.Reason,
		); err != nil {
			return fmt.Errorf("insert override %s: %w", o.Date, err)
		}
	}

	return tx.Commit()
}

// SetDayOff marks date unavailable on the schedule of workerID, creating the
// schedule row when needed. An existing override for the date is replaced.
func (db *DB) SetDayOff(ctx context.Context, workerID, date, reason string) error {
	now := time.Now()
	if _, err := db.ExecContext(ctx, `
		INSERT INTO schedules (worker_id, updated_at) VALUES (?, ?)
		ON CONFLICT(worker_id) DO NOTHING`,
		workerID, now,
	); err != nil {
		return fmt.Errorf("ensure schedule: %w", err)
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO schedule_overrides (worker_id, date, slots, is_available, reason)
		VALUES (?, ?, '', 0, ?)
		ON CONFLICT(worker_id, date) DO UPDATE SET
			slots = '',
			is_available = 0,
			reason = excluded.reason`,
		workerID, date, reason,
	)
	if err != nil {
		return fmt.Errorf("set day off %s: %w", date, err)
	}
	return nil
}
