package model

import "time"

// DaySchedule is the weekly template entry for one weekday.
type DaySchedule struct {
	Slots     []string `json:"slots"`
	IsBlocked bool     `json:"is_blocked"`
}

// DateOverride replaces the weekly template for a single calendar date.
type DateOverride struct {
	Date        string   `json:"date"` // YYYY-MM-DD
	Slots       []string `json:"slots"`
	IsAvailable bool     `json:"is_available"`
	Reason      string   `json:"reason,omitempty"`
}

// Schedule is a weekly template plus per-date overrides. An empty WorkerID is the global schedule.
type Schedule struct {
	WorkerID  string              `json:"worker_id,omitempty"`
	Weekly    map[int]DaySchedule `json:"weekly"` // 0=Sunday .. 6=Saturday
	Overrides []DateOverride      `json:"overrides"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// Override returns the override for date, if any.
func (s *Schedule) Override(date string) *DateOverride {
	if s == nil {
		return nil
	}
	for i := range s.Overrides {
		if s.Overrides[i].Date == date {
			return &s.Overrides[i]
		}
	}
	return nil
}

// Day returns the weekly entry for weekday and whether one is defined.
func (s *Schedule) Day(weekday time.Weekday) (DaySchedule, bool) {
	if s == nil || s.Weekly == nil {
		return DaySchedule{}, false
	}
	d, ok := s.Weekly[int(weekday)]
	return d, ok
}
