// Package notify delivers customer notifications to the configured sinks
// through a bounded queue with rate limiting and retries.
package notify

import (
	"fmt"

	"giftwrap/internal/model"
)

// Message is one notification about one booking.
type Message struct {
	ID      string
	Kind    model.NotificationKind
	Booking model.Booking
}

// Text renders the human-readable body of m.
func (m Message) Text() string {
	b := m.Booking
	ref := b.Reference()
	switch m.Kind {
	case model.NotifyPending:
		return fmt.Sprintf("Booking %s received: %d gift(s) on %s at %s for %s. We will confirm shortly.",
			ref, b.NumberOfGifts, b.Date, b.Time, b.CustomerName)
	case model.NotifyConfirmed:
		return fmt.Sprintf("Booking %s confirmed: %d gift(s) on %s at %s.",
			ref, b.NumberOfGifts, b.Date, b.Time)
	case model.NotifyReady:
		if b.Category == model.CategoryDropoff {
			return fmt.Sprintf("Booking %s: your %d gift(s) are wrapped and ready for pickup.", ref, b.NumberOfGifts)
		}
		return fmt.Sprintf("Booking %s: your %d gift(s) are wrapped.", ref, b.NumberOfGifts)
	case model.NotifyReminder:
		return fmt.Sprintf("Reminder: booking %s tomorrow (%s) at %s for %d gift(s).",
			ref, b.Date, b.Time, b.NumberOfGifts)
	case model.NotifyThankYou:
		return fmt.Sprintf("Booking %s is complete. Thank you, %s!", ref, b.CustomerName)
	default:
		return fmt.Sprintf("Booking %s: %s", ref, m.Kind)
	}
}
