package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/songify/reporter/internal/logging"
	"github.com/songify/reporter/internal/models"
	"github.com/songify/reporter/internal/scrub"
	"github.com/songify/reporter/internal/services"
)

// writeJSON serializes data as JSON and writes it to the response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response. If no context/error provided, just writes the response.
// For simple client errors (400-level), use: writeError(w, status, msg)
// For server errors with cause, use: writeErrorWithCause(ctx, w, status, msg, err)
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.ErrorResponse{Error: message})
}

// writeErrorWithCause writes an error response and logs the error with stack trace.
// Use this for server errors (500-level) where you have an underlying error to log.
func writeErrorWithCause(ctx context.Context, w http.ResponseWriter, status int, message string, err error) {
	writeError(w, status, message)

	// Don't log 401/403 - handled by security event logging
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return
	}

	if status >= 400 && err != nil {
		wrappedErr := logging.WrapError(err, message)
		logging.LogErrorWithStatus(ctx, status, "error response", wrappedErr)
	}
}

// writeServiceError maps report service errors to HTTP statuses and returns
// the status written.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) int {
	switch {
	case errors.Is(err, services.ErrReportNotFound):
		writeError(w, http.StatusNotFound, "report not found")
		return http.StatusNotFound
	case errors.Is(err, services.ErrInvalidReport):
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "invalid report", Message: err.Error()})
		return http.StatusBadRequest
	default:
		writeErrorWithCause(ctx, w, http.StatusInternalServerError, "internal error", err)
		return http.StatusInternalServerError
	}
}

// decodeJSON decodes a request body capped at limit bytes. On failure it has
// already written the error response and returns its status with ok false.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, dst any) (status int, ok bool) {
	if limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return http.StatusRequestEntityTooLarge, false
		case errors.Is(err, scrub.ErrInvalidInputKind):
			writeError(w, http.StatusBadRequest, "params must be a JSON object")
		default:
			writeError(w, http.StatusBadRequest, "invalid request body")
		}
		return http.StatusBadRequest, false
	}
	return http.StatusOK, true
}
