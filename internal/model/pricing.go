package model

import "time"

// PricingTier describes a wrapping service. MinutesPerItem <= 0 means the
// tier carries no scope-of-work duration.
type PricingTier struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	MinutesPerItem int       `json:"minutes_per_item,omitempty"`
	Category       Category  `json:"category"`
	PriceCents     int64     `json:"price_cents"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
