package service

import (
	"context"
	"fmt"
	"time"

	"github.com/vaultq/vaultq/internal/metrics"
	"github.com/vaultq/vaultq/internal/model"
	"github.com/vaultq/vaultq/internal/repository"
)

// AccountInput is one candidate account in a save batch.
// Cookie carries the polymorphic input already normalized by model.Cookie.
type AccountInput struct {
	UserAgent string       `json:"user_agent"`
	Email     string       `json:"email"`
	Password  string       `json:"password"`
	Cookie    model.Cookie `json:"cookie"`
}

// AccountClaim is the result of draining the account queue.
type AccountClaim struct {
	Accounts       []*model.Account
	Count          int
	RequestedCount int
	Note           string
}

// AccountService handles the account queue business logic.
type AccountService struct {
	repo          *repository.Repository
	metrics       metrics.Recorder
	claimMaxCount int
}

// NewAccountService creates a new AccountService.
func NewAccountService(repo *repository.Repository, recorder metrics.Recorder, claimMaxCount int) *AccountService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &AccountService{
		repo:          repo,
		metrics:       recorder,
		claimMaxCount: claimMaxCount,
	}
}

// SaveAccounts validates a batch of candidate accounts and persists the
// genuinely new ones. The batch is all-or-nothing: a single incomplete
// record or an in-batch duplicate email rejects everything. Records whose
// email is already queued for the owner are skipped and reported, not
// treated as failure.
func (s *AccountService) SaveAccounts(ctx context.Context, userID string, candidates []AccountInput) (*model.SaveOutcome, error) {
	if len(candidates) == 0 {
		return nil, ErrEmptyBatch
	}

	if err := validateAccountBatch(candidates); err != nil {
		s.metrics.IncSaveRejected(metrics.QueueAccounts)
		return nil, err
	}

	emails := make([]string, len(candidates))
	for i, candidate := range candidates {
		emails[i] = candidate.Email
	}

	existing, err := s.repo.FindExistingAccountEmails(ctx, userID, emails)
	if err != nil {
		return nil, fmt.Errorf("check existing accounts: %w", err)
	}

	existingSet := make(map[string]struct{}, len(existing))
	for _, email := range existing {
		existingSet[email] = struct{}{}
	}

	now := time.Now().UTC()
	newAccounts := make([]*model.Account, 0, len(candidates))
	for _, candidate := range candidates {
		if _, dup := existingSet[candidate.Email]; dup {
			continue
		}
		newAccounts = append(newAccounts, &model.Account{
			UserAgent: candidate.UserAgent,
			Email:     candidate.Email,
			Password:  candidate.Password,
			Cookie:    candidate.Cookie.String(),
			CreatedAt: now,
			UpdatedAt: now,
			UserID:    userID,
		})
	}

	// The pre-check is read committed; a concurrent save racing the same
	// new email surfaces here as a unique violation and rolls back the
	// whole batch. The unique index is the final arbiter.
	if err := s.repo.CreateAccounts(ctx, newAccounts); err != nil {
		s.metrics.IncSaveRejected(metrics.QueueAccounts)
		return nil, fmt.Errorf("save accounts: %w", err)
	}

	saved := len(newAccounts)
	duplicate := len(existing)
	s.metrics.IncRecordsSaved(metrics.QueueAccounts, saved)
	s.metrics.IncRecordsDuplicate(metrics.QueueAccounts, duplicate)

	return &model.SaveOutcome{
		Saved:         saved,
		Duplicate:     duplicate,
		Total:         len(candidates),
		DuplicateKeys: existing,
		Status:        model.StatusFor(saved, duplicate),
	}, nil
}

// NextAccounts atomically claims up to count oldest accounts for the
// owner and removes them. Fewer available than requested is a normal
// response carrying a note, never an error.
func (s *AccountService) NextAccounts(ctx context.Context, userID string, count int) (*AccountClaim, error) {
	if count <= 0 {
		return nil, ErrInvalidCount
	}
	if count > s.claimMaxCount {
		return nil, fmt.Errorf("%w: at most %d per request", ErrCountTooLarge, s.claimMaxCount)
	}

	start := time.Now()
	accounts, err := s.repo.ClaimAccounts(ctx, userID, count)
	if err != nil {
		return nil, fmt.Errorf("claim accounts: %w", err)
	}
	s.metrics.IncClaims(metrics.QueueAccounts)
	s.metrics.ObserveClaimDuration(metrics.QueueAccounts, time.Since(start))
	s.metrics.ObserveClaimBatchSize(metrics.QueueAccounts, len(accounts))

	claim := &AccountClaim{
		Accounts:       accounts,
		Count:          len(accounts),
		RequestedCount: count,
	}
	if len(accounts) < count {
		s.metrics.IncClaimShortfall(metrics.QueueAccounts)
		claim.Note = fmt.Sprintf("only %d of %d requested accounts were available", len(accounts), count)
	}
	return claim, nil
}

// CountAccounts returns the owner's current account queue depth.
func (s *AccountService) CountAccounts(ctx context.Context, userID string) (int64, error) {
	count, err := s.repo.CountAccountsByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	s.metrics.SetQueueDepth(metrics.QueueAccounts, userID, count)
	return count, nil
}

// ListAccounts returns all queued accounts for the owner in FIFO order.
func (s *AccountService) ListAccounts(ctx context.Context, userID string) ([]*model.Account, error) {
	accounts, err := s.repo.ListAccountsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}

// ListAllAccounts returns a page of accounts across all owners.
// Admin listing only.
func (s *AccountService) ListAllAccounts(ctx context.Context, limit, offset int) ([]*model.Account, error) {
	accounts, err := s.repo.ListAllAccounts(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list all accounts: %w", err)
	}
	return accounts, nil
}

// validateAccountBatch checks required fields and in-batch uniqueness.
func validateAccountBatch(candidates []AccountInput) error {
	var invalid []InvalidRecord
	for i, candidate := range candidates {
		var missing []string
		if candidate.UserAgent == "" {
			missing = append(missing, "user_agent")
		}
		if candidate.Email == "" {
			missing = append(missing, "email")
		}
		if candidate.Password == "" {
			missing = append(missing, "password")
		}
		if candidate.Cookie.IsEmpty() {
			missing = append(missing, "cookie")
		}
		if len(missing) > 0 {
			invalid = append(invalid, InvalidRecord{Index: i, MissingFields: missing})
		}
	}
	if len(invalid) > 0 {
		return &ValidationError{Records: invalid}
	}

	seen := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		if _, dup := seen[candidate.Email]; dup {
			return ErrDuplicateInBatch
		}
		seen[candidate.Email] = struct{}{}
	}
	return nil
}
