// Package service provides business logic for the application.
package service

import (
	"errors"
	"fmt"
	"strings"
)

// Service errors.
var (
	ErrEmptyBatch         = errors.New("at least one record is required")
	ErrDuplicateInBatch   = errors.New("duplicate emails within one request are not allowed")
	ErrInvalidCount       = errors.New("count must be a positive integer")
	ErrCountTooLarge      = errors.New("count exceeds the claim limit")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrMissingCredentials = errors.New("username and password are required")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrUserNotFound       = errors.New("user not found")
)

// InvalidRecord identifies a batch record that failed field validation.
type InvalidRecord struct {
	Index         int      `json:"index"`
	MissingFields []string `json:"missing_fields"`
}

// ValidationError reports which records in a save batch are incomplete.
// The whole batch is rejected; nothing is persisted.
type ValidationError struct {
	Records []InvalidRecord
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Records))
	for i, rec := range e.Records {
		parts[i] = fmt.Sprintf("record %d missing %s", rec.Index, strings.Join(rec.MissingFields, ", "))
	}
	return "invalid records: " + strings.Join(parts, "; ")
}
