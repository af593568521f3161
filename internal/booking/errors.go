package booking

import (
	"fmt"
	"sort"
	"strings"

	"giftwrap/internal/model"
)

// ValidationError reports malformed caller input, keyed by field name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = msg
	}
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// GuardViolation is a refused lifecycle transition.
type GuardViolation struct {
	BookingID int64
	From      model.BookingStatus
	To        model.BookingStatus
	CheckedIn int
	Expected  int
	Done      int
}

func (e *GuardViolation) Error() string {
	if e.To == model.StatusReady && e.Expected > 0 {
		return fmt.Sprintf("booking %d: cannot move %s -> %s: %d of %d checked-in gifts done",
			e.BookingID, e.From, e.To, e.Done, e.CheckedIn)
	}
	if e.Expected > 0 || e.CheckedIn > 0 {
		return fmt.Sprintf("booking %d: cannot move %s -> %s: %d of %d gifts checked in",
			e.BookingID, e.From, e.To, e.CheckedIn, e.Expected)
	}
	return fmt.Sprintf("booking %d: transition %s -> %s is not allowed", e.BookingID, e.From, e.To)
}

// RejectionCode classifies a capacity rejection.
type RejectionCode string

const (
	RejectPastDate        RejectionCode = "past_date"
	RejectDateUnavailable RejectionCode = "date_unavailable"
	RejectNoSlots         RejectionCode = "no_slots"
	RejectSlotUnavailable RejectionCode = "slot_unavailable"
	RejectSlotTaken       RejectionCode = "slot_taken"
	RejectExceedsClosing  RejectionCode = "exceeds_closing"
	RejectDropoffOverrun  RejectionCode = "dropoff_overrun"
)

// Rejection is the expected business outcome of a booking that does not fit.
type Rejection struct {
	Code       RejectionCode `json:"code"`
	Message    string        `json:"message"`
	Suggestion string        `json:"suggestion,omitempty"`
	Conflicts  []int64       `json:"conflicts,omitempty"`
}

func (r *Rejection) String() string {
	if r.Suggestion == "" {
		return string(r.Code) + ": " + r.Message
	}
	return fmt.Sprintf("%s: %s (try %s)", r.Code, r.Message, r.Suggestion)
}
