package dto

import (
	"time"

	"github.com/vaultq/vaultq/internal/model"
)

// CredentialsRequest is the register and login request body.
type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SessionResponse returns the active token after register or login.
// The stored hash and token never appear; the model hides them.
type SessionResponse struct {
	Message   string      `json:"message"`
	User      *model.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// VerifyTokenRequest carries the token to check.
type VerifyTokenRequest struct {
	Token string `json:"token"`
}

// VerifyTokenResponse reports token state without leaking why an
// invalid token failed.
type VerifyTokenResponse struct {
	Valid     bool       `json:"valid"`
	Expired   bool       `json:"expired"`
	Username  string     `json:"username,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// UpdateUserRequest changes credentials; unknown fields are rejected at
// decode time.
type UpdateUserRequest struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
}

// UserResponse wraps a single user.
type UserResponse struct {
	Message string      `json:"message"`
	User    *model.User `json:"user"`
}

// UsersResponse is the admin user listing.
type UsersResponse struct {
	Message string        `json:"message"`
	Users   []*model.User `json:"users"`
	Count   int           `json:"count"`
}
