package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"giftwrap/internal/booking"
	"giftwrap/internal/lock"
	"giftwrap/internal/model"
)

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps booking core errors onto HTTP statuses.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *booking.ValidationError
	var guard *booking.GuardViolation

	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Fields: verr.Fields})
	case errors.As(err, &guard):
		status := http.StatusConflict
		if guard.Expected > 0 || guard.CheckedIn > 0 {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, guard.Error())
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, lock.ErrLockTimeout):
		writeError(w, http.StatusServiceUnavailable, "busy, retry shortly")
	default:
		s.logger.Error().Err(err).
			Str("request_id", requestIDFromContext(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
