// Package booking implements booking creation, availability queries and the
// booking lifecycle on top of the pure slot calculations.
package booking

import "giftwrap/internal/model"

// Lifecycle holds the allowed booking status transitions.
type Lifecycle struct {
	transitions map[model.BookingStatus][]model.BookingStatus
}

// NewLifecycle creates the lifecycle with the standard transition table.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{
		transitions: map[model.BookingStatus][]model.BookingStatus{
			model.StatusPending:    {model.StatusConfirmed, model.StatusInProgress, model.StatusCancelled},
			model.StatusConfirmed:  {model.StatusInProgress, model.StatusCancelled},
			model.StatusInProgress: {model.StatusReady, model.StatusCancelled},
			model.StatusReady:      {model.StatusPickedUp, model.StatusDelivered, model.StatusInProgress, model.StatusCancelled},
		},
	}
}

// CanTransition checks if transition is allowed.
func (l *Lifecycle) CanTransition(from, to model.BookingStatus) bool {
	allowed, ok := l.transitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Allowed returns the statuses reachable from from.
func (l *Lifecycle) Allowed(from model.BookingStatus) []model.BookingStatus {
	return append([]model.BookingStatus(nil), l.transitions[from]...)
}

// requiresCheckinCount reports whether entering to from from must verify that
// every declared gift has been checked in. Starting straight from pending skips
// the check because check-in happens as a separate step after confirmation.
func requiresCheckinCount(from, to model.BookingStatus) bool {
	return to == model.StatusInProgress && from != model.StatusPending
}

// notificationFor maps a transition to the customer notification it triggers.
func notificationFor(from, to model.BookingStatus) (model.NotificationKind, bool) {
	switch to {
	case model.StatusConfirmed:
		return model.NotifyConfirmed, from == model.StatusPending
	case model.StatusInProgress:
		return model.NotifyConfirmed, from == model.StatusPending || from == model.StatusConfirmed
	case model.StatusReady:
		return model.NotifyReady, true
	case model.StatusPickedUp, model.StatusDelivered:
		return model.NotifyThankYou, true
	default:
		return "", false
	}
}
