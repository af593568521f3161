package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"giftwrap/internal/config"
	"giftwrap/internal/model"
)

// GetPricingTier returns the tier with id, or nil when it does not exist.
// Inactive tiers are returned so existing bookings keep their rate.
func (db *DB) GetPricingTier(ctx context.Context, id string) (*model.PricingTier, error) {
	var t model.PricingTier
	err := db.QueryRowContext(ctx, `
		SELECT id, name, minutes_per_item, category, price_cents, is_active, created_at, updated_at
		FROM pricing_tiers WHERE id = ?`, id,
	).Scan(&t.ID, &t.Name, &t.MinutesPerItem, &t.Category, &t.PriceCents, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pricing tier %s: %w", id, err)
	}
	return &t, nil
}

// ListPricingTiers returns active tiers ordered by id.
func (db *DB) ListPricingTiers(ctx context.Context) ([]model.PricingTier, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, minutes_per_item, category, price_cents, is_active, created_at, updated_at
		FROM pricing_tiers WHERE is_active = 1 ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PricingTier
	for rows.Next() {
		var t model.PricingTier
		if err := rows.Scan(&t.ID, &t.Name, &t.MinutesPerItem, &t.Category, &t.PriceCents, &t.IsActive, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SyncCatalog applies catalog.yaml to the database. It upserts pricing tiers,
// deactivates tiers missing from the catalog and closes holidays on the
// shared schedule.
func (db *DB) SyncCatalog(ctx context.Context, cat *config.CatalogConfig) error {
	if cat == nil {
		return fmt.Errorf("catalog is nil")
	}

	now := time.Now()
	seen := make(map[string]struct{})

	for _, t := range cat.Tiers() {
		// Preserve created_at if the tier already exists.
		_, err := db.ExecContext(ctx, `
			INSERT INTO pricing_tiers (id, name, minutes_per_item, category, price_cents, is_active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, COALESCE((SELECT created_at FROM pricing_tiers WHERE id = ?), ?), ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				minutes_per_item = excluded.minutes_per_item,
				category = excluded.category,
				price_cents = excluded.price_cents,
				is_active = excluded.is_active,
				updated_at = excluded.updated_at`,
			t.ID, t.Name, t.MinutesPerItem, t.Category, t.PriceCents, t.IsActive, t.ID, now, now,
		)
		if err != nil {
			return fmt.Errorf("sync tier %s: %w", t.ID, err)
		}
		seen[t.ID] = struct{}{}
	}

	rows, err := db.QueryContext(ctx, `SELECT id FROM pricing_tiers WHERE is_active = 1`)
	if err != nil {
		return err
	}
	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		if _, ok := seen[id]; !ok {
			stale = append(stale, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range stale {
		if _, err := db.ExecContext(ctx, `UPDATE pricing_tiers SET is_active = 0, updated_at = ? WHERE id = ?`, now, id); err != nil {
			return fmt.Errorf("deactivate tier %s: %w", id, err)
		}
	}

	for _, h := range cat.Holidays {
		if err := db.SetDayOff(ctx, "", h.Date, h.Name); err != nil {
			return err
		}
	}

	db.logger.Info().
		Int("tiers", len(seen)).
		Int("deactivated", len(stale)).
		Int("holidays", len(cat.Holidays)).
		Msg("Catalog synced")
	return nil
}
