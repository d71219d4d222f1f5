package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/vaultq/vaultq/internal/model"
)

// CreateEmails inserts a batch of emails for one owner in a single
// transaction; any failure rolls the whole batch back.
func (r *Repository) CreateEmails(ctx context.Context, emails []*model.Email) error {
	if len(emails) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query := `
		INSERT INTO emails (user_id, email, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	for _, email := range emails {
		err := tx.QueryRow(ctx, query, email.UserID, email.Address, email.CreatedAt).Scan(&email.ID)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %s", ErrDuplicateEmail, email.Address)
			}
			return fmt.Errorf("insert email: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit emails: %w", err)
	}
	return nil
}

// FindExistingEmailAddresses returns which of the given addresses are
// already queued for the owner.
func (r *Repository) FindExistingEmailAddresses(ctx context.Context, userID string, addresses []string) ([]string, error) {
	query := `SELECT email FROM emails WHERE user_id = $1 AND email = ANY($2)`

	rows, err := r.pool.Query(ctx, query, userID, addresses)
	if err != nil {
		return nil, fmt.Errorf("query existing email addresses: %w", err)
	}
	defer rows.Close()

	var existing []string
	for rows.Next() {
		var address string
		if err := rows.Scan(&address); err != nil {
			return nil, fmt.Errorf("scan existing address: %w", err)
		}
		existing = append(existing, address)
	}
	return existing, rows.Err()
}

// ClaimEmails atomically takes up to limit oldest emails for the owner
// and removes them, skipping rows locked by concurrent claims. See
// ClaimAccounts for the delivery guarantees; the mechanism is identical.
func (r *Repository) ClaimEmails(ctx context.Context, userID string, limit int) ([]*model.Email, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query := `
		SELECT id, email, created_at, user_id
		FROM emails
		WHERE user_id = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`

	rows, err := tx.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("select emails for claim: %w", err)
	}

	emails, err := scanEmails(rows)
	if err != nil {
		return nil, err
	}

	if len(emails) == 0 {
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("commit empty claim: %w", err)
		}
		return nil, nil
	}

	ids := make([]int64, len(emails))
	for i, email := range emails {
		ids[i] = email.ID
	}

	if _, err := tx.Exec(ctx, `DELETE FROM emails WHERE id = ANY($1)`, ids); err != nil {
		return nil, fmt.Errorf("delete claimed emails: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}
	return emails, nil
}

// CountEmailsByUser returns the owner's queue depth.
func (r *Repository) CountEmailsByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM emails WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count emails: %w", err)
	}
	return count, nil
}

// ListEmailsByUser retrieves all queued emails for an owner in FIFO order.
func (r *Repository) ListEmailsByUser(ctx context.Context, userID string) ([]*model.Email, error) {
	query := `
		SELECT id, email, created_at, user_id
		FROM emails
		WHERE user_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query emails by user: %w", err)
	}
	return scanEmails(rows)
}

// ListAllEmails retrieves a page of emails across all owners. Admin listing only.
func (r *Repository) ListAllEmails(ctx context.Context, limit, offset int) ([]*model.Email, error) {
	query := `
		SELECT id, email, created_at, user_id
		FROM emails
		ORDER BY created_at ASC, id ASC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query all emails: %w", err)
	}
	return scanEmails(rows)
}

// scanEmails drains rows into email models. Closes rows.
func scanEmails(rows pgx.Rows) ([]*model.Email, error) {
	defer rows.Close()

	var emails []*model.Email
	for rows.Next() {
		var email model.Email
		if err := rows.Scan(&email.ID, &email.Address, &email.CreatedAt, &email.UserID); err != nil {
			return nil, fmt.Errorf("scan email: %w", err)
		}
		emails = append(emails, &email)
	}
	return emails, rows.Err()
}
