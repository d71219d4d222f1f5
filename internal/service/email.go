package service

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/vaultq/vaultq/internal/metrics"
	"github.com/vaultq/vaultq/internal/model"
	"github.com/vaultq/vaultq/internal/repository"
)

// emailFormatRegex is advisory only: badly shaped addresses are reported
// but still saved, matching the informational contract of the save response.
var emailFormatRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// EmailSaveOutcome extends the dedup result with the advisory
// format report.
type EmailSaveOutcome struct {
	model.SaveOutcome
	InvalidFormat []string
}

// EmailClaim is the result of draining the email queue.
type EmailClaim struct {
	Emails         []*model.Email
	Count          int
	RequestedCount int
	Note           string
}

// EmailService handles the email queue business logic.
type EmailService struct {
	repo          *repository.Repository
	metrics       metrics.Recorder
	claimMaxCount int
}

// NewEmailService creates a new EmailService.
func NewEmailService(repo *repository.Repository, recorder metrics.Recorder, claimMaxCount int) *EmailService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &EmailService{
		repo:          repo,
		metrics:       recorder,
		claimMaxCount: claimMaxCount,
	}
}

// SaveEmails validates a batch of addresses and persists the genuinely
// new ones. Empty addresses or in-batch duplicates reject the whole
// batch; addresses that fail the format check are reported but saved.
func (s *EmailService) SaveEmails(ctx context.Context, userID string, addresses []string) (*EmailSaveOutcome, error) {
	if len(addresses) == 0 {
		return nil, ErrEmptyBatch
	}

	if err := validateEmailBatch(addresses); err != nil {
		s.metrics.IncSaveRejected(metrics.QueueEmails)
		return nil, err
	}

	var invalidFormat []string
	for _, address := range addresses {
		if !emailFormatRegex.MatchString(address) {
			invalidFormat = append(invalidFormat, address)
		}
	}

	existing, err := s.repo.FindExistingEmailAddresses(ctx, userID, addresses)
	if err != nil {
		return nil, fmt.Errorf("check existing emails: %w", err)
	}

	existingSet := make(map[string]struct{}, len(existing))
	for _, address := range existing {
		existingSet[address] = struct{}{}
	}

	now := time.Now().UTC()
	newEmails := make([]*model.Email, 0, len(addresses))
	for _, address := range addresses {
		if _, dup := existingSet[address]; dup {
			continue
		}
		newEmails = append(newEmails, &model.Email{
			Address:   address,
			CreatedAt: now,
			UserID:    userID,
		})
	}

	if err := s.repo.CreateEmails(ctx, newEmails); err != nil {
		s.metrics.IncSaveRejected(metrics.QueueEmails)
		return nil, fmt.Errorf("save emails: %w", err)
	}

	saved := len(newEmails)
	duplicate := len(existing)
	s.metrics.IncRecordsSaved(metrics.QueueEmails, saved)
	s.metrics.IncRecordsDuplicate(metrics.QueueEmails, duplicate)

	return &EmailSaveOutcome{
		SaveOutcome: model.SaveOutcome{
			Saved:         saved,
			Duplicate:     duplicate,
			Total:         len(addresses),
			DuplicateKeys: existing,
			Status:        model.StatusFor(saved, duplicate),
		},
		InvalidFormat: invalidFormat,
	}, nil
}

// NextEmails atomically claims up to count oldest emails for the owner
// and removes them.
func (s *EmailService) NextEmails(ctx context.Context, userID string, count int) (*EmailClaim, error) {
	if count <= 0 {
		return nil, ErrInvalidCount
	}
	if count > s.claimMaxCount {
		return nil, fmt.Errorf("%w: at most %d per request", ErrCountTooLarge, s.claimMaxCount)
	}

	start := time.Now()
	emails, err := s.repo.ClaimEmails(ctx, userID, count)
	if err != nil {
		return nil, fmt.Errorf("claim emails: %w", err)
	}
	s.metrics.IncClaims(metrics.QueueEmails)
	s.metrics.ObserveClaimDuration(metrics.QueueEmails, time.Since(start))
	s.metrics.ObserveClaimBatchSize(metrics.QueueEmails, len(emails))

	claim := &EmailClaim{
		Emails:         emails,
		Count:          len(emails),
		RequestedCount: count,
	}
	if len(emails) < count {
		s.metrics.IncClaimShortfall(metrics.QueueEmails)
		claim.Note = fmt.Sprintf("only %d of %d requested emails were available", len(emails), count)
	}
	return claim, nil
}

// CountEmails returns the owner's current email queue depth.
func (s *EmailService) CountEmails(ctx context.Context, userID string) (int64, error) {
	count, err := s.repo.CountEmailsByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("count emails: %w", err)
	}
	s.metrics.SetQueueDepth(metrics.QueueEmails, userID, count)
	return count, nil
}

// ListEmails returns all queued emails for the owner in FIFO order.
func (s *EmailService) ListEmails(ctx context.Context, userID string) ([]*model.Email, error) {
	emails, err := s.repo.ListEmailsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list emails: %w", err)
	}
	return emails, nil
}

// ListAllEmails returns a page of emails across all owners.
// Admin listing only.
func (s *EmailService) ListAllEmails(ctx context.Context, limit, offset int) ([]*model.Email, error) {
	emails, err := s.repo.ListAllEmails(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list all emails: %w", err)
	}
	return emails, nil
}

// validateEmailBatch checks for empty addresses and in-batch duplicates.
func validateEmailBatch(addresses []string) error {
	var invalid []InvalidRecord
	for i, address := range addresses {
		if address == "" {
			invalid = append(invalid, InvalidRecord{Index: i, MissingFields: []string{"email"}})
		}
	}
	if len(invalid) > 0 {
		return &ValidationError{Records: invalid}
	}

	seen := make(map[string]struct{}, len(addresses))
	for _, address := range addresses {
		if _, dup := seen[address]; dup {
			return ErrDuplicateInBatch
		}
		seen[address] = struct{}{}
	}
	return nil
}
