package model

import "time"

// ItemStatus tracks a single gift through the wrapping pipeline.
type ItemStatus string

const (
	ItemPendingCheckin ItemStatus = "pending_checkin"
	ItemCheckedIn      ItemStatus = "checked_in"
	ItemWrapping       ItemStatus = "wrapping"
	ItemReady          ItemStatus = "ready"
	ItemPickedUp       ItemStatus = "picked_up"
)

func (s ItemStatus) Valid() bool {
	switch s {
	case ItemPendingCheckin, ItemCheckedIn, ItemWrapping, ItemReady, ItemPickedUp:
		return true
	default:
		return false
	}
}

// WorkItem is one physical gift belonging to a booking.
type WorkItem struct {
	ID        int64      `json:"id"`
	BookingID int64      `json:"booking_id"`
	Label     string     `json:"label"`
	Status    ItemStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CheckedIn reports whether the item has been physically received.
func (w *WorkItem) CheckedIn() bool {
	return w.Status != ItemPendingCheckin
}

// Done reports whether wrapping of the item is finished.
func (w *WorkItem) Done() bool {
	return w.Status == ItemReady || w.Status == ItemPickedUp
}
