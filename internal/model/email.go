package model

import "time"

// Email is a queued email address owned by a user.
// The address doubles as the dedup key within the owner's partition.
type Email struct {
	ID        int64     `json:"id"`
	Address   string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UserID    string    `json:"user_id"`
}
