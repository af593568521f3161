package config

import (
	"fmt"
	"os"
	"time"

	"giftwrap/internal/model"
	"gopkg.in/yaml.v3"
)

// ServiceConfig is one wrapping service offered to customers.
type ServiceConfig struct {
	ID             string `yaml:"id"`
	Name           string `yaml:"name"`
	MinutesPerItem int    `yaml:"minutes_per_item"`
	Category       string `yaml:"category"` // dropoff, delivery, onsite
	PriceCents     int64  `yaml:"price_cents"`
	IsActive       bool   `yaml:"is_active"`
}

// HolidayConfig closes a date on the shared schedule.
type HolidayConfig struct {
	Date string `yaml:"date"` // "2026-12-25"
	Name string `yaml:"name"`
}

// CatalogConfig is the root of catalog.yaml.
type CatalogConfig struct {
	Services []ServiceConfig `yaml:"services"`
	Holidays []HolidayConfig `yaml:"holidays"`
}

// LoadCatalog loads and validates the service catalog from YAML.
func LoadCatalog(path string) (*CatalogConfig, error) {
	if path == "" {
		path = "configs/catalog.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var cfg CatalogConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate catalog: %w", err)
	}

	return &cfg, nil
}

// Validate checks the catalog for errors.
func (c *CatalogConfig) Validate() error {
	if len(c.Services) == 0 {
		return fmt.Errorf("no services defined")
	}

	ids := make(map[string]bool)
	for i, s := range c.Services {
		if s.ID == "" {
			return fmt.Errorf("services[%d]: id is required", i)
		}
		if ids[s.ID] {
			return fmt.Errorf("services[%d]: duplicate id '%s'", i, s.ID)
		}
		ids[s.ID] = true

		if s.Name == "" {
			return fmt.Errorf("services[%d]: name is required", i)
		}
		if s.MinutesPerItem < 0 {
			return fmt.Errorf("services[%d]: minutes_per_item cannot be negative", i)
		}
		if !model.Category(s.Category).Valid() {
			return fmt.Errorf("services[%d]: invalid category '%s', expected dropoff, delivery or onsite", i, s.Category)
		}
		if s.PriceCents < 0 {
			return fmt.Errorf("services[%d]: price_cents cannot be negative", i)
		}
	}

	seen := make(map[string]bool)
	for i, h := range c.Holidays {
		if h.Date == "" {
			return fmt.Errorf("holiday[%d]: date is required", i)
		}
		if _, err := time.Parse("2006-01-02", h.Date); err != nil {
			return fmt.Errorf("holiday[%d]: invalid date format '%s', expected YYYY-MM-DD", i, h.Date)
		}
		if seen[h.Date] {
			return fmt.Errorf("holiday[%d]: duplicate date %s", i, h.Date)
		}
		seen[h.Date] = true
	}

	return nil
}

func (c *CatalogConfig) applyDefaults() {
	for i := range c.Services {
		if c.Services[i].Category == "" {
			c.Services[i].Category = string(model.CategoryDropoff)
		}
	}
}

// ServiceByID returns the service with id, or nil.
func (c *CatalogConfig) ServiceByID(id string) *ServiceConfig {
	for i := range c.Services {
		if c.Services[i].ID == id {
			return &c.Services[i]
		}
	}
	return nil
}

// IsHoliday checks if a date is a holiday.
func (c *CatalogConfig) IsHoliday(date string) (bool, string) {
	for _, h := range c.Holidays {
		if h.Date == date {
			return true, h.Name
		}
	}
	return false, ""
}

// Tiers converts the services to pricing tiers.
func (c *CatalogConfig) Tiers() []model.PricingTier {
	out := make([]model.PricingTier, 0, len(c.Services))
	for _, s := range c.Services {
		out = append(out, model.PricingTier{
			ID:             s.ID,
			Name:           s.Name,
			MinutesPerItem: s.MinutesPerItem,
			Category:       model.Category(s.Category),
			PriceCents:     s.PriceCents,
			IsActive:       s.IsActive,
		})
	}
	return out
}

// String returns a summary of the catalog.
func (c *CatalogConfig) String() string {
	active := 0
	for _, s := range c.Services {
		if s.IsActive {
			active++
		}
	}
	return fmt.Sprintf("CatalogConfig: %d services (%d active), %d holidays",
		len(c.Services), active, len(c.Holidays))
}
