package slots

import (
	"fmt"

	"giftwrap/internal/model"
)

// Window generates evenly spaced slots between Start and End inclusive.
type Window struct {
	Start int // minutes since midnight
	End   int
	Step  int
}

// DefaultWindow is used for weekdays that have no template entry: hourly 06:00..18:00.
func DefaultWindow() Window {
	return Window{Start: 6 * 60, End: 18 * 60, Step: 60}
}

// NewWindow builds a window from "HH:MM" bounds.
func NewWindow(start, end string, stepMinutes int) (Window, error) {
	s, err := ParseClock(start)
	if err != nil {
		return Window{}, fmt.Errorf("window start: %w", err)
	}
	e, err := ParseClock(end)
	if err != nil {
		return Window{}, fmt.Errorf("window end: %w", err)
	}
	if e < s {
		return Window{}, fmt.Errorf("window end %s is before start %s", end, start)
	}
	if stepMinutes <= 0 {
		return Window{}, fmt.Errorf("window step must be positive, got %d", stepMinutes)
	}
	return Window{Start: s, End: e, Step: stepMinutes}, nil
}

// Slots lists every slot start of the window.
func (w Window) Slots() []string {
	if w.Step <= 0 || w.End < w.Start {
		return nil
	}
	out := make([]string, 0, (w.End-w.Start)/w.Step+1)
	for m := w.Start; m <= w.End; m += w.Step {
		out = append(out, FormatClock(m))
	}
	return out
}

// ResolveBaseSlots returns the bookable slot starts for date before any
// booking is considered. Precedence: date override, weekly template, window.
func ResolveBaseSlots(date string, sched *model.Schedule, window Window) ([]string, error) {
	weekday, err := Weekday(date)
	if err != nil {
		return nil, err
	}

	if o := sched.Override(date); o != nil {
		if !o.IsAvailable {
			return []string{}, nil
		}
		return append([]string{}, o.Slots...), nil
	}

	if day, ok := sched.Day(weekday); ok {
		if day.IsBlocked {
			return []string{}, nil
		}
		if len(day.Slots) > 0 {
			return append([]string{}, day.Slots...), nil
		}
	}

	return window.Slots(), nil
}

// IsDayClosed reports whether date is closed regardless of bookings: an
// unavailable override or a blocked weekday without an override.
func IsDayClosed(date string, sched *model.Schedule) (bool, error) {
	weekday, err := Weekday(date)
	if err != nil {
		return false, err
	}
	if o := sched.Override(date); o != nil {
		return !o.IsAvailable, nil
	}
	if day, ok := sched.Day(weekday); ok && day.IsBlocked {
		return true, nil
	}
	return false, nil
}
