package model

import "time"

// User owns queue partitions and holds the single active access token.
// PasswordHash and the stored token are never serialized to API clients.
type User struct {
	ID              string     `json:"id"`
	Username        string     `json:"username"`
	PasswordHash    string     `json:"-"`
	AccessToken     *string    `json:"-"`
	TokenExpiration *time.Time `json:"token_expiration,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// HasValidToken reports whether the stored token exists and is unexpired.
func (u *User) HasValidToken(now time.Time) bool {
	return u.AccessToken != nil && u.TokenExpiration != nil && u.TokenExpiration.After(now)
}

// AuthContext holds authenticated request context.
// This is injected into the request context by auth middleware.
type AuthContext struct {
	UserID   string
	Username string
}
