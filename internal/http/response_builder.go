package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"qcdash/internal/api"
	"qcdash/internal/services"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// statusForError maps service and upstream errors to a response status.
func statusForError(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidInspection):
		return http.StatusUnprocessableEntity
	case errors.Is(err, api.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// writeServiceError writes err with the status statusForError picks.
// Validation failures list each violated rule in details.
func writeServiceError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	body := errorBody{Error: err.Error()}
	switch status {
	case http.StatusUnprocessableEntity:
		body.Error = services.ErrInvalidInspection.Error()
		body.Details = validationDetails(err)
	case http.StatusNotFound:
		body.Error = api.ErrNotFound.Error()
	case http.StatusBadGateway:
		body.Error = "upstream request failed: " + err.Error()
	}
	writeJSON(w, status, body)
}

// validationDetails flattens joined validation errors into one message
// per rule.
func validationDetails(err error) []string {
	var details []string
	var walk func(error)
	walk = func(e error) {
		if e == services.ErrInvalidInspection {
			return
		}
		if multi, ok := e.(interface{ Unwrap() []error }); ok {
			for _, inner := range multi.Unwrap() {
				walk(inner)
			}
			return
		}
		details = append(details, e.Error())
	}
	walk(err)
	return details
}
