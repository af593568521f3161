package slots

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// ParseClock converts "HH:MM" (24h) to minutes since midnight.
func ParseClock(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid time format %q, expected HH:MM", s)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}

	return hour*60 + minute, nil
}

// FormatClock renders minutes since midnight as "HH:MM". Values past midnight
// keep counting hours (24:30) so overruns stay readable.
func FormatClock(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// ParseDate parses "YYYY-MM-DD" into a civil date at UTC midnight. The result
// is only used for calendar arithmetic, never as an instant.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date format %q, expected YYYY-MM-DD", s)
	}
	return d, nil
}

// Weekday returns the day of week of a "YYYY-MM-DD" date.
func Weekday(date string) (time.Weekday, error) {
	d, err := ParseDate(date)
	if err != nil {
		return 0, err
	}
	return d.Weekday(), nil
}

// Today returns the current local calendar date in loc as "YYYY-MM-DD".
func Today(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return now.In(loc).Format(DateLayout)
}

// IsPastDate reports whether date lies strictly before today's local date.
func IsPastDate(date string, now time.Time, loc *time.Location) (bool, error) {
	if _, err := ParseDate(date); err != nil {
		return false, err
	}
	// Fixed-width layout compares lexically in calendar order.
	return date < Today(now, loc), nil
}

// FormatDuration formats minutes as "1h 30m".
func FormatDuration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	hours := minutes / 60
	mins := minutes % 60
	if mins == 0 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dh %dm", hours, mins)
}
