package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vaultq/vaultq/internal/handler/dto"
	"github.com/vaultq/vaultq/internal/model"
	"github.com/vaultq/vaultq/internal/service"
)

// EmailHandler serves the email queue endpoints.
type EmailHandler struct {
	svc          *service.EmailService
	logger       *slog.Logger
	listMaxLimit int
}

// NewEmailHandler creates a new EmailHandler.
func NewEmailHandler(svc *service.EmailService, logger *slog.Logger, listMaxLimit int) *EmailHandler {
	return &EmailHandler{
		svc:          svc,
		logger:       logger,
		listMaxLimit: listMaxLimit,
	}
}

// Save handles POST /api/emails/save/{userID}.
// Accepts a single address or a batch. Addresses that fail the format
// check are reported but saved anyway.
func (h *EmailHandler) Save(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req dto.SaveEmailsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	addresses := req.Addresses()
	if len(addresses) == 0 {
		writeError(w, http.StatusBadRequest, "EMPTY_BATCH", "Email(s) required")
		return
	}

	outcome, err := h.svc.SaveEmails(r.Context(), userID, addresses)
	if err != nil {
		handleQueueError(w, h.logger, err)
		return
	}

	h.logger.Info("emails_saved",
		"user_id", userID,
		"saved", outcome.Saved,
		"duplicate", outcome.Duplicate,
		"invalid_format", len(outcome.InvalidFormat),
		"total", outcome.Total,
	)

	status := http.StatusCreated
	if outcome.Saved == 0 {
		status = http.StatusOK
	}

	writeJSON(w, status, dto.SaveEmailsResponse{
		Message:             saveEmailsMessage(&outcome.SaveOutcome),
		SavedCount:          outcome.Saved,
		DuplicateCount:      outcome.Duplicate,
		InvalidFormatCount:  len(outcome.InvalidFormat),
		TotalProcessed:      outcome.Total,
		DuplicateEmails:     outcome.DuplicateKeys,
		InvalidFormatEmails: outcome.InvalidFormat,
		Status:              string(outcome.Status),
	})
}

// Next handles POST /api/emails/next/{userID}.
func (h *EmailHandler) Next(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req dto.ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	claim, err := h.svc.NextEmails(r.Context(), userID, req.RequestedCount())
	if err != nil {
		handleQueueError(w, h.logger, err)
		return
	}

	h.logger.Info("emails_claimed",
		"user_id", userID,
		"count", claim.Count,
		"requested_count", claim.RequestedCount,
	)

	emails := claim.Emails
	if emails == nil {
		emails = []*model.Email{}
	}

	writeJSON(w, http.StatusOK, dto.NextEmailsResponse{
		Message:        nextEmailsMessage(claim.Count),
		Emails:         emails,
		Count:          claim.Count,
		RequestedCount: claim.RequestedCount,
		Note:           claim.Note,
	})
}

// Count handles POST /api/emails/count/{userID}.
func (h *EmailHandler) Count(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	count, err := h.svc.CountEmails(r.Context(), userID)
	if err != nil {
		handleQueueError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EmailCountResponse{
		Message:    "Email count retrieved successfully",
		UserID:     userID,
		EmailCount: count,
	})
}

// ListByUser handles POST /api/emails/user/{userID}.
func (h *EmailHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	emails, err := h.svc.ListEmails(r.Context(), userID)
	if err != nil {
		handleQueueError(w, h.logger, err)
		return
	}
	if emails == nil {
		emails = []*model.Email{}
	}

	writeJSON(w, http.StatusOK, dto.UserEmailsResponse{
		Message: "User emails retrieved successfully",
		UserID:  userID,
		Emails:  emails,
		Count:   len(emails),
	})
}

// ListAll handles GET /api/emails/ (admin).
func (h *EmailHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePage(r, 100, h.listMaxLimit)

	emails, err := h.svc.ListAllEmails(r.Context(), limit, offset)
	if err != nil {
		handleQueueError(w, h.logger, err)
		return
	}
	if emails == nil {
		emails = []*model.Email{}
	}

	writeJSON(w, http.StatusOK, dto.AllEmailsResponse{
		Message: "Emails retrieved successfully",
		Emails:  emails,
		Count:   len(emails),
	})
}

func saveEmailsMessage(outcome *model.SaveOutcome) string {
	switch outcome.Status {
	case model.SaveAllDuplicate:
		return fmt.Sprintf("All emails already exist (%d duplicates)", outcome.Duplicate)
	case model.SaveMixed:
		return fmt.Sprintf("Processing complete: %d email(s) saved, %d already existed",
			outcome.Saved, outcome.Duplicate)
	default:
		if outcome.Saved == 1 {
			return "Email saved successfully"
		}
		return fmt.Sprintf("%d email(s) saved successfully", outcome.Saved)
	}
}

func nextEmailsMessage(count int) string {
	switch count {
	case 0:
		return "No emails available"
	case 1:
		return "Email claimed and removed successfully"
	default:
		return fmt.Sprintf("%d emails claimed and removed successfully", count)
	}
}
