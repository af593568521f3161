package notify

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrQueueFull marks a notification dropped because the queue had no room.
	ErrQueueFull = errors.New("notification queue full")
	// ErrDispatcherStopped marks a notification that arrived after Stop.
	ErrDispatcherStopped = errors.New("notification dispatcher stopped")
)

// SinkError is a delivery error carrying the remote status.
type SinkError struct {
	Code       int
	Message    string
	RetryAfter time.Duration // for 429 responses
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink error %d: %s", e.Code, e.Message)
}

// Permanent reports whether retrying cannot succeed.
func (e *SinkError) Permanent() bool {
	return e.Code == http.StatusBadRequest || e.Code == http.StatusForbidden
}

// AsSinkError checks if the error is a SinkError.
func AsSinkError(err error) (*SinkError, bool) {
	var sErr *SinkError
	if errors.As(err, &sErr) {
		return sErr, true
	}
	return nil, false
}
