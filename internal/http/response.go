package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mielski/chores/internal/core"
)

// envelope is the wire shape of every API response.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

// writeError maps the domain error taxonomy onto HTTP statuses:
// validation 422, version conflict 409, not found 404, transient
// storage failure 503 with Retry-After, anything else 500. Clients get
// a stable message per class; the full error chain goes to the log.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal error"
	switch {
	case core.IsValidation(err):
		status = http.StatusUnprocessableEntity
		message = core.ValidationSentinel(err).Error()
	case errors.Is(err, core.ErrConflict):
		status = http.StatusConflict
		message = "version conflict, retry with the latest state"
	case errors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
		message = "not found"
	case core.IsTransient(err):
		status = http.StatusServiceUnavailable
		message = "storage temporarily unavailable"
		w.Header().Set("Retry-After", "5")
	}

	if status >= 500 {
		slog.ErrorContext(ctx, "Request failed", "status", status, "error", err)
	} else {
		slog.WarnContext(ctx, "Request rejected", "status", status, "error", err)
	}
	writeJSON(w, status, envelope{Success: false, Error: message})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, envelope{Success: false, Error: message})
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// decodeBody decodes a JSON request body, rejecting unknown fields.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
