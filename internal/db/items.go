package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"giftwrap/internal/model"
)

// AddWorkItems inserts one pending_checkin item per label.
func (db *DB) AddWorkItems(ctx context.Context, bookingID int64, labels []string) ([]model.WorkItem, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	items := make([]model.WorkItem, 0, len(labels))
	for _, label := range labels {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO work_items (booking_id, label, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)`,
			bookingID, label, model.ItemPendingCheckin, now, now,
		)
		if err != nil {
			return nil, fmt.Errorf("insert work item: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		items = append(items, model.WorkItem{
			ID:        id,
			BookingID: bookingID,
			Label:     label,
			Status:    model.ItemPendingCheckin,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return items, nil
}

// ListWorkItems returns the items of a booking in creation order.
func (db *DB) ListWorkItems(ctx context.Context, bookingID int64) ([]model.WorkItem, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, booking_id, label, status, created_at, updated_at
		FROM work_items WHERE booking_id = ? ORDER BY id`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.WorkItem
	for rows.Next() {
		var it model.WorkItem
		if err := rows.Scan(&it.ID, &it.BookingID, &it.Label, &it.Status, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// GetWorkItem returns an item by id or model.ErrNotFound.
func (db *DB) GetWorkItem(ctx context.Context, id int64) (*model.WorkItem, error) {
	var it model.WorkItem
	err := db.QueryRowContext(ctx, `
		SELECT id, booking_id, label, status, created_at, updated_at
		FROM work_items WHERE id = ?`, id,
	).Scan(&it.ID, &it.BookingID, &it.Label, &it.Status, &it.CreatedAt, &it.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// UpdateWorkItemStatus sets the status of an item and returns it.
func (db *DB) UpdateWorkItemStatus(ctx context.Context, id int64, status model.ItemStatus) (*model.WorkItem, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE work_items SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update work item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, model.ErrNotFound
	}
	return db.GetWorkItem(ctx, id)
}
