// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/vaultq/vaultq/internal/handler/dto"
	"github.com/vaultq/vaultq/internal/repository"
	"github.com/vaultq/vaultq/internal/service"
)

// Handler provides the fallback responses for unmatched routes.
type Handler struct{}

// New creates a new Handler instance.
func New() *Handler {
	return &Handler{}
}

// NotFound handles 404 responses.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
}

// MethodNotAllowed handles 405 responses.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already out; nothing useful left to do
		_ = err
	}
}

// writeError writes the standard error envelope.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error: dto.ErrorBody{Code: code, Message: message},
	})
}

// writeErrorDetails writes the error envelope with a details payload.
func writeErrorDetails(w http.ResponseWriter, status int, code, message string, details any) {
	writeJSON(w, status, dto.ErrorResponse{
		Error: dto.ErrorBody{Code: code, Message: message, Details: details},
	})
}

// handleQueueError maps queue service errors to HTTP responses.
// Shared by the account and email handlers; their error surfaces are
// identical.
func handleQueueError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		writeErrorDetails(w, http.StatusBadRequest, "VALIDATION_ERROR",
			"Some records have missing fields", verr.Records)
	case errors.Is(err, service.ErrEmptyBatch):
		writeError(w, http.StatusBadRequest, "EMPTY_BATCH", "At least one record is required")
	case errors.Is(err, service.ErrDuplicateInBatch):
		writeError(w, http.StatusBadRequest, "DUPLICATE_IN_BATCH",
			"Duplicate emails within one request are not allowed")
	case errors.Is(err, service.ErrInvalidCount):
		writeError(w, http.StatusBadRequest, "INVALID_COUNT",
			"The count parameter must be a positive integer")
	case errors.Is(err, service.ErrCountTooLarge):
		writeError(w, http.StatusBadRequest, "COUNT_TOO_LARGE",
			"Requested count exceeds the per-claim limit")
	case errors.Is(err, repository.ErrDuplicateAccount), errors.Is(err, repository.ErrDuplicateEmail):
		// Lost a race with a concurrent save of the same key; the batch
		// rolled back in full and is safe to retry.
		logger.Warn("save_conflict", "error", err)
		writeError(w, http.StatusInternalServerError, "STORAGE_ERROR",
			"A concurrent save conflicted; retry the request")
	default:
		logger.Error("internal_error", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}

// parsePage reads limit/offset query parameters for admin listings.
func parsePage(r *http.Request, defaultLimit, maxLimit int) (limit, offset int) {
	limit = defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
