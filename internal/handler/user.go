package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vaultq/vaultq/internal/handler/dto"
	"github.com/vaultq/vaultq/internal/model"
	"github.com/vaultq/vaultq/internal/service"
)

// UserHandler serves registration, login and user administration.
type UserHandler struct {
	svc          *service.UserService
	logger       *slog.Logger
	listMaxLimit int
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(svc *service.UserService, logger *slog.Logger, listMaxLimit int) *UserHandler {
	return &UserHandler{
		svc:          svc,
		logger:       logger,
		listMaxLimit: listMaxLimit,
	}
}

// Register handles POST /api/auth/register (admin).
// Creates the user and returns the initial access token.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	user, session, err := h.svc.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("user_registered", "user_id", user.ID, "username", user.Username)

	writeJSON(w, http.StatusCreated, dto.SessionResponse{
		Message:   "User registered successfully",
		User:      user,
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
	})
}

// Login handles POST /api/auth/login.
// Returns the stored token while it is valid; otherwise a fresh one
// replaces it and any previously issued token stops working.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	user, session, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("user_logged_in", "user_id", user.ID, "username", user.Username)

	writeJSON(w, http.StatusOK, dto.SessionResponse{
		Message:   "Login successful",
		User:      user,
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
	})
}

// Logout handles POST /api/auth/logout.
// Drops the cached auth context for the presented token.
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := ""
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		token = strings.TrimPrefix(header, "Bearer ")
	}

	if err := h.svc.Logout(r.Context(), token); err != nil {
		h.logger.Error("logout_failed", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// VerifyToken handles POST /api/auth/verify-token.
func (h *UserHandler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	var req dto.VerifyTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if req.Token == "" {
		writeError(w, http.StatusBadRequest, "MISSING_TOKEN", "Token is required")
		return
	}

	verification, err := h.svc.VerifyToken(r.Context(), req.Token)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	resp := dto.VerifyTokenResponse{
		Valid:    verification.Valid,
		Expired:  verification.Expired,
		Username: verification.Username,
	}
	if verification.Valid {
		resp.ExpiresAt = &verification.ExpiresAt
	}
	writeJSON(w, http.StatusOK, resp)
}

// List handles GET /api/auth/users (admin).
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePage(r, 100, h.listMaxLimit)

	users, err := h.svc.ListUsers(r.Context(), limit, offset)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	if users == nil {
		users = []*model.User{}
	}

	writeJSON(w, http.StatusOK, dto.UsersResponse{
		Message: "Users retrieved successfully",
		Users:   users,
		Count:   len(users),
	})
}

// Get handles GET /api/auth/user/{userID} (admin).
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	user, err := h.svc.GetUser(r.Context(), userID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.UserResponse{
		Message: "User retrieved successfully",
		User:    user,
	})
}

// Update handles PUT /api/auth/user/{userID} (admin).
// Only username and password may change; unknown fields are rejected.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	var req dto.UpdateUserRequest
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON",
			"Invalid request body; only username and password may be updated")
		return
	}

	user, err := h.svc.UpdateUser(r.Context(), userID, req.Username, req.Password)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("user_updated", "user_id", user.ID)

	writeJSON(w, http.StatusOK, dto.UserResponse{
		Message: "User updated successfully",
		User:    user,
	})
}

// Delete handles DELETE /api/auth/user/{userID} (admin).
// Queue rows for the user cascade away with the row.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	if err := h.svc.DeleteUser(r.Context(), userID); err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("user_deleted", "user_id", userID)

	w.WriteHeader(http.StatusNoContent)
}

// handleServiceError maps user service errors to HTTP responses.
func (h *UserHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrMissingCredentials):
		writeError(w, http.StatusBadRequest, "MISSING_CREDENTIALS", "Username and password are required")
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password")
	case errors.Is(err, service.ErrUsernameTaken):
		writeError(w, http.StatusConflict, "USERNAME_TAKEN", "Username already taken")
	case errors.Is(err, service.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
	default:
		h.logger.Error("internal_error", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}
