package slots

import (
	"fmt"

	"giftwrap/internal/model"
)

// DefaultMinutesPerItem applies when a tier has no usable scope-of-work duration.
const DefaultMinutesPerItem = 15

// Rate returns the per-item wrapping rate of tier, falling back to fallback
// and then to DefaultMinutesPerItem.
func Rate(tier *model.PricingTier, fallback int) int {
	if tier != nil && tier.MinutesPerItem > 0 {
		return tier.MinutesPerItem
	}
	if fallback > 0 {
		return fallback
	}
	return DefaultMinutesPerItem
}

// EstimateDuration returns the wrapping time in minutes for itemCount gifts.
func EstimateDuration(tier *model.PricingTier, itemCount int) int {
	return EstimateDurationWithRate(tier, itemCount, DefaultMinutesPerItem)
}

// EstimateDurationWithRate is EstimateDuration with a configurable fallback rate.
func EstimateDurationWithRate(tier *model.PricingTier, itemCount, fallback int) int {
	if itemCount <= 0 {
		return 0
	}
	return itemCount * Rate(tier, fallback)
}

// EndBoundary rounds the end of work up to the next full hour.
func EndBoundary(startMinutes, durationMinutes int) int {
	end := startMinutes + durationMinutes
	return (end + 59) / 60 * 60
}

// OccupiedSlots returns the base slots blocked by work starting at start for
// durationMinutes. A slot T is occupied when start <= T < EndBoundary.
func OccupiedSlots(start string, durationMinutes int, base []string) ([]string, error) {
	s, err := ParseClock(start)
	if err != nil {
		return nil, err
	}
	if durationMinutes <= 0 {
		return []string{}, nil
	}

	boundary := EndBoundary(s, durationMinutes)
	out := make([]string, 0, 4)
	for _, slot := range base {
		t, err := ParseClock(slot)
		if err != nil {
			return nil, fmt.Errorf("base slot: %w", err)
		}
		if s <= t && t < boundary {
			out = append(out, slot)
		}
	}
	return out, nil
}

// FreeSlots returns base minus occupied, keeping base order.
func FreeSlots(base []string, occupied map[string]struct{}) []string {
	out := make([]string, 0, len(base))
	for _, slot := range base {
		if _, taken := occupied[slot]; taken {
			continue
		}
		out = append(out, slot)
	}
	return out
}

// Contains reports whether slot is present in list.
func Contains(list []string, slot string) bool {
	for _, s := range list {
		if s == slot {
			return true
		}
	}
	return false
}
