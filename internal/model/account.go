// Package model defines domain entities for the application.
package model

import "time"

// Account is a queued credential set owned by a user.
// Rows are immutable once inserted and are destroyed on claim.
type Account struct {
	ID        int64     `json:"id"`
	UserAgent string    `json:"user_agent"`
	Email     string    `json:"email"`
	Password  string    `json:"password"`
	Cookie    string    `json:"cookie"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	UserID    string    `json:"user_id"`
}
