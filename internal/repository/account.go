package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/vaultq/vaultq/internal/model"
)

// CreateAccounts inserts a batch of accounts for one owner in a single
// transaction. Either every row is persisted or none are: any failure,
// including a unique-violation race with a concurrent save of the same
// email, rolls the whole batch back.
func (r *Repository) CreateAccounts(ctx context.Context, accounts []*model.Account) error {
	if len(accounts) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query := `
		INSERT INTO accounts (user_id, user_agent, email, password, cookie, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	for _, account := range accounts {
		err := tx.QueryRow(ctx, query,
			account.UserID,
			account.UserAgent,
			account.Email,
			account.Password,
			account.Cookie,
			account.CreatedAt,
			account.UpdatedAt,
		).Scan(&account.ID)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %s", ErrDuplicateAccount, account.Email)
			}
			return fmt.Errorf("insert account: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit accounts: %w", err)
	}
	return nil
}

// FindExistingAccountEmails returns which of the given emails are
// already queued for the owner. Read-committed; the unique index is the
// final arbiter for races that slip past this check.
func (r *Repository) FindExistingAccountEmails(ctx context.Context, userID string, emails []string) ([]string, error) {
	query := `SELECT email FROM accounts WHERE user_id = $1 AND email = ANY($2)`

	rows, err := r.pool.Query(ctx, query, userID, emails)
	if err != nil {
		return nil, fmt.Errorf("query existing account emails: %w", err)
	}
	defer rows.Close()

	var existing []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("scan existing email: %w", err)
		}
		existing = append(existing, email)
	}
	return existing, rows.Err()
}

// ClaimAccounts atomically takes up to limit oldest accounts for the
// owner and removes them. The locking read skips rows held by a
// concurrent in-flight claim, so two callers never receive overlapping
// sets; the delete commits in the same transaction, so a returned row
// is guaranteed gone before any caller sees it.
func (r *Repository) ClaimAccounts(ctx context.Context, userID string, limit int) ([]*model.Account, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query := `
		SELECT id, user_agent, email, password, cookie, created_at, updated_at, user_id
		FROM accounts
		WHERE user_id = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`

	rows, err := tx.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("select accounts for claim: %w", err)
	}

	accounts, err := scanAccounts(rows)
	if err != nil {
		return nil, err
	}

	if len(accounts) == 0 {
		// Nothing to delete; still commit to release the transaction.
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("commit empty claim: %w", err)
		}
		return nil, nil
	}

	ids := make([]int64, len(accounts))
	for i, account := range accounts {
		ids[i] = account.ID
	}

	if _, err := tx.Exec(ctx, `DELETE FROM accounts WHERE id = ANY($1)`, ids); err != nil {
		return nil, fmt.Errorf("delete claimed accounts: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}
	return accounts, nil
}

// CountAccountsByUser returns the owner's queue depth. Unlocked,
// read-committed; may trail concurrent claims and inserts.
func (r *Repository) CountAccountsByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM accounts WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	return count, nil
}

// ListAccountsByUser retrieves all queued accounts for an owner in FIFO order.
func (r *Repository) ListAccountsByUser(ctx context.Context, userID string) ([]*model.Account, error) {
	query := `
		SELECT id, user_agent, email, password, cookie, created_at, updated_at, user_id
		FROM accounts
		WHERE user_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query accounts by user: %w", err)
	}
	return scanAccounts(rows)
}

// ListAllAccounts retrieves a page of accounts across all owners.
// Admin listing only.
func (r *Repository) ListAllAccounts(ctx context.Context, limit, offset int) ([]*model.Account, error) {
	query := `
		SELECT id, user_agent, email, password, cookie, created_at, updated_at, user_id
		FROM accounts
		ORDER BY created_at ASC, id ASC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query all accounts: %w", err)
	}
	return scanAccounts(rows)
}

// scanAccounts drains rows into account models. Closes rows.
func scanAccounts(rows pgx.Rows) ([]*model.Account, error) {
	defer rows.Close()

	var accounts []*model.Account
	for rows.Next() {
		var account model.Account
		if err := rows.Scan(
			&account.ID,
			&account.UserAgent,
			&account.Email,
			&account.Password,
			&account.Cookie,
			&account.CreatedAt,
			&account.UpdatedAt,
			&account.UserID,
		); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, &account)
	}
	return accounts, rows.Err()
}
