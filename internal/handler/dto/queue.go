// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"github.com/vaultq/vaultq/internal/model"
	"github.com/vaultq/vaultq/internal/service"
)

// SaveAccountsRequest accepts a single account or a batch.
// Exactly one of the two fields should be set.
type SaveAccountsRequest struct {
	Account  *service.AccountInput  `json:"account,omitempty"`
	Accounts []service.AccountInput `json:"accounts,omitempty"`
}

// Candidates flattens the polymorphic body into one batch.
func (r *SaveAccountsRequest) Candidates() []service.AccountInput {
	if len(r.Accounts) > 0 {
		return r.Accounts
	}
	if r.Account != nil {
		return []service.AccountInput{*r.Account}
	}
	return nil
}

// SaveAccountsResponse reports the dedup insert outcome.
type SaveAccountsResponse struct {
	Message         string   `json:"message"`
	SavedCount      int      `json:"saved_count"`
	DuplicateCount  int      `json:"duplicate_count"`
	TotalProcessed  int      `json:"total_processed"`
	DuplicateEmails []string `json:"duplicate_emails,omitempty"`
	Status          string   `json:"status"`
}

// SaveEmailsRequest accepts a single address or a batch.
type SaveEmailsRequest struct {
	Email  string   `json:"email,omitempty"`
	Emails []string `json:"emails,omitempty"`
}

// Addresses flattens the polymorphic body into one batch.
func (r *SaveEmailsRequest) Addresses() []string {
	if len(r.Emails) > 0 {
		return r.Emails
	}
	if r.Email != "" {
		return []string{r.Email}
	}
	return nil
}

// SaveEmailsResponse reports the dedup insert outcome plus the advisory
// format report; badly shaped addresses are saved anyway.
type SaveEmailsResponse struct {
	Message             string   `json:"message"`
	SavedCount          int      `json:"saved_count"`
	DuplicateCount      int      `json:"duplicate_count"`
	InvalidFormatCount  int      `json:"invalid_format_count"`
	TotalProcessed      int      `json:"total_processed"`
	DuplicateEmails     []string `json:"duplicate_emails,omitempty"`
	InvalidFormatEmails []string `json:"invalid_format_emails,omitempty"`
	Status              string   `json:"status"`
}

// ClaimRequest asks for up to Count items; nil defaults to 1.
type ClaimRequest struct {
	Count *int `json:"count,omitempty"`
}

// RequestedCount resolves the default.
func (r *ClaimRequest) RequestedCount() int {
	if r.Count == nil {
		return 1
	}
	return *r.Count
}

// NextAccountsResponse carries claimed accounts. The claimed rows are
// already deleted when this response is built.
type NextAccountsResponse struct {
	Message        string           `json:"message"`
	Accounts       []*model.Account `json:"accounts"`
	Count          int              `json:"count"`
	RequestedCount int              `json:"requested_count"`
	Note           string           `json:"note,omitempty"`
}

// NextEmailsResponse carries claimed emails.
type NextEmailsResponse struct {
	Message        string         `json:"message"`
	Emails         []*model.Email `json:"emails"`
	Count          int            `json:"count"`
	RequestedCount int            `json:"requested_count"`
	Note           string         `json:"note,omitempty"`
}

// AccountCountResponse is the account queue depth for one owner.
type AccountCountResponse struct {
	Message      string `json:"message"`
	UserID       string `json:"user_id"`
	AccountCount int64  `json:"account_count"`
}

// EmailCountResponse is the email queue depth for one owner.
type EmailCountResponse struct {
	Message    string `json:"message"`
	UserID     string `json:"user_id"`
	EmailCount int64  `json:"email_count"`
}

// UserAccountsResponse lists one owner's queued accounts.
type UserAccountsResponse struct {
	Message  string           `json:"message"`
	UserID   string           `json:"user_id"`
	Accounts []*model.Account `json:"accounts"`
	Count    int              `json:"count"`
}

// UserEmailsResponse lists one owner's queued emails.
type UserEmailsResponse struct {
	Message string         `json:"message"`
	UserID  string         `json:"user_id"`
	Emails  []*model.Email `json:"emails"`
	Count   int            `json:"count"`
}

// AllAccountsResponse is the admin listing across owners.
type AllAccountsResponse struct {
	Message  string           `json:"message"`
	Accounts []*model.Account `json:"accounts"`
	Count    int              `json:"count"`
}

// AllEmailsResponse is the admin listing across owners.
type AllEmailsResponse struct {
	Message string         `json:"message"`
	Emails  []*model.Email `json:"emails"`
	Count   int            `json:"count"`
}

// ErrorBody is the inner error payload.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorResponse is the error envelope used by every endpoint.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}
