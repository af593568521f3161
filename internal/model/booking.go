package model

import (
	"strconv"
	"time"
)

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	StatusPending    BookingStatus = "pending"
	StatusConfirmed  BookingStatus = "confirmed"
	StatusInProgress BookingStatus = "in_progress"
	StatusReady      BookingStatus = "ready"
	StatusPickedUp   BookingStatus = "picked_up"
	StatusDelivered  BookingStatus = "delivered"
	StatusCancelled  BookingStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are allowed.
func (s BookingStatus) IsTerminal() bool {
	switch s {
	case StatusPickedUp, StatusDelivered, StatusCancelled:
		return true
	default:
		return false
	}
}

// Valid reports whether s is a known status.
func (s BookingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusInProgress, StatusReady,
		StatusPickedUp, StatusDelivered, StatusCancelled:
		return true
	default:
		return false
	}
}

// Category decides whether wrapped gifts must be handed over on site before closing.
type Category string

const (
	CategoryDropoff  Category = "dropoff"
	CategoryDelivery Category = "delivery"
	CategoryOnsite   Category = "onsite"
)

func (c Category) Valid() bool {
	return c == CategoryDropoff || c == CategoryDelivery || c == CategoryOnsite
}

// RequiresPickup reports whether the customer collects the gifts in person.
func (c Category) RequiresPickup() bool {
	return c == CategoryDropoff
}

// Booking is a reservation of a start slot for wrapping NumberOfGifts items.
type Booking struct {
	ID            int64         `json:"id"`
	WorkerID      string        `json:"worker_id,omitempty"`
	Date          string        `json:"date"` // YYYY-MM-DD
	Time          string        `json:"time"` // HH:MM
	ServiceID     string        `json:"service_id"`
	Category      Category      `json:"category"`
	NumberOfGifts int           `json:"number_of_gifts"`
	Status        BookingStatus `json:"status"`
	ReadyNotified bool          `json:"ready_notified"`
	CustomerName  string        `json:"customer_name"`
	CustomerEmail string        `json:"customer_email,omitempty"`
	CustomerPhone string        `json:"customer_phone,omitempty"`
	Notes         string        `json:"notes,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// IsActive reports whether the booking still holds capacity.
func (b *Booking) IsActive() bool {
	return b.Status != StatusCancelled
}

// Reference is the short customer-facing code printed on tickets.
func (b *Booking) Reference() string {
	return "GW-" + b.Date + "-" + strconv.FormatInt(b.ID, 10)
}
