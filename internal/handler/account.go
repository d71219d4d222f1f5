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

// AccountHandler serves the account queue endpoints.
type AccountHandler struct {
	svc          *service.AccountService
	logger       *slog.Logger
	listMaxLimit int
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(svc *service.AccountService, logger *slog.Logger, listMaxLimit int) *AccountHandler {
	return &AccountHandler{
		svc:          svc,
		logger:       logger,
		listMaxLimit: listMaxLimit,
	}
}

// Save handles POST /api/accounts/save/{userID}.
// Accepts a single account or a batch; persists the genuinely new ones
// and reports duplicates. 201 when anything was saved, 200 when
// everything was a duplicate.
func (h *AccountHandler) Save(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req dto.SaveAccountsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	candidates := req.Candidates()
	if len(candidates) == 0 {
		writeError(w, http.StatusBadRequest, "EMPTY_BATCH", "Account(s) required")
		return
	}

	outcome, err := h.svc.SaveAccounts(r.Context(), userID, candidates)
	if err != nil {
		handleQueueError(w, h.logger, err)
		return
	}

	h.logger.Info("accounts_saved",
		"user_id", userID,
		"saved", outcome.Saved,
		"duplicate", outcome.Duplicate,
		"total", outcome.Total,
	)

	status := http.StatusCreated
	if outcome.Saved == 0 {
		status = http.StatusOK
	}

	writeJSON(w, status, dto.SaveAccountsResponse{
		Message:         saveAccountsMessage(outcome),
		SavedCount:      outcome.Saved,
		DuplicateCount:  outcome.Duplicate,
		TotalProcessed:  outcome.Total,
		DuplicateEmails: outcome.DuplicateKeys,
		Status:          string(outcome.Status),
	})
}

// Next handles POST /api/accounts/next/{userID}.
// Atomically claims and removes up to count oldest accounts. Fewer
// available than requested is still a 200 with a note.
func (h *AccountHandler) Next(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req dto.ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	claim, err := h.svc.NextAccounts(r.Context(), userID, req.RequestedCount())
	if err != nil {
		handleQueueError(w, h.logger, err)
		return
	}

	h.logger.Info("accounts_claimed",
		"user_id", userID,
		"count", claim.Count,
		"requested_count", claim.RequestedCount,
	)

	accounts := claim.Accounts
	if accounts == nil {
		accounts = []*model.Account{}
	}

	writeJSON(w, http.StatusOK, dto.NextAccountsResponse{
		Message:        nextAccountsMessage(claim.Count),
		Accounts:       accounts,
		Count:          claim.Count,
		RequestedCount: claim.RequestedCount,
		Note:           claim.Note,
	})
}

// Count handles POST /api/accounts/count/{userID}.
func (h *AccountHandler) Count(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	count, err := h.svc.CountAccounts(r.Context(), userID)
	if err != nil {
		handleQueueError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountCountResponse{
		Message:      "Account count retrieved successfully",
		UserID:       userID,
		AccountCount: count,
	})
}

// ListByUser handles POST /api/accounts/user/{userID}.
// Non-destructive FIFO listing of the owner's queue.
func (h *AccountHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	accounts, err := h.svc.ListAccounts(r.Context(), userID)
	if err != nil {
		handleQueueError(w, h.logger, err)
		return
	}
	if accounts == nil {
		accounts = []*model.Account{}
	}

	writeJSON(w, http.StatusOK, dto.UserAccountsResponse{
		Message:  "User accounts retrieved successfully",
		UserID:   userID,
		Accounts: accounts,
		Count:    len(accounts),
	})
}

// ListAll handles GET /api/accounts/ (admin).
func (h *AccountHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePage(r, 100, h.listMaxLimit)

	accounts, err := h.svc.ListAllAccounts(r.Context(), limit, offset)
	if err != nil {
		handleQueueError(w, h.logger, err)
		return
	}
	if accounts == nil {
		accounts = []*model.Account{}
	}

	writeJSON(w, http.StatusOK, dto.AllAccountsResponse{
		Message:  "Accounts retrieved successfully",
		Accounts: accounts,
		Count:    len(accounts),
	})
}

func saveAccountsMessage(outcome *model.SaveOutcome) string {
	switch outcome.Status {
	case model.SaveAllDuplicate:
		return fmt.Sprintf("All accounts already exist (%d duplicates)", outcome.Duplicate)
	case model.SaveMixed:
		return fmt.Sprintf("Processing complete: %d account(s) saved, %d already existed",
			outcome.Saved, outcome.Duplicate)
	default:
		if outcome.Saved == 1 {
			return "Account saved successfully"
		}
		return fmt.Sprintf("%d account(s) saved successfully", outcome.Saved)
	}
}

func nextAccountsMessage(count int) string {
	switch count {
	case 0:
		return "No accounts available"
	case 1:
		return "Account claimed and removed successfully"
	default:
		return fmt.Sprintf("%d accounts claimed and removed successfully", count)
	}
}
