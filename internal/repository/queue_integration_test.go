//go:build integration

package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vaultq/vaultq/internal/model"
	"github.com/vaultq/vaultq/internal/testutil"
)

// ============================================================================
// Account Queue Integration Tests
// ============================================================================

func TestIntegrationAccounts_CreateAndList(t *testing.T) {
	ctx, repo := newQueueTestEnv(t)
	userID := createTestUser(t, ctx, repo, "owner-create")

	accounts := []*model.Account{
		testutil.NewTestAccount(t, userID, testutil.UniqueEmail("create-a")),
		testutil.NewTestAccount(t, userID, testutil.UniqueEmail("create-b")),
	}

	if err := repo.CreateAccounts(ctx, accounts); err != nil {
		t.Fatalf("CreateAccounts failed: %v", err)
	}

	for _, account := range accounts {
		if account.ID == 0 {
			t.Error("account ID should be assigned on insert")
		}
	}

	listed, err := repo.ListAccountsByUser(ctx, userID)
	if err != nil {
		t.Fatalf("ListAccountsByUser failed: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(listed))
	}
	if listed[0].Email != accounts[0].Email {
		t.Errorf("first listed email = %q, want %q", listed[0].Email, accounts[0].Email)
	}
}

func TestIntegrationAccounts_DuplicateEmailRejected(t *testing.T) {
	ctx, repo := newQueueTestEnv(t)
	userID := createTestUser(t, ctx, repo, "owner-dup")

	email := testutil.UniqueEmail("dup")
	first := testutil.NewTestAccount(t, userID, email)
	if err := repo.CreateAccounts(ctx, []*model.Account{first}); err != nil {
		t.Fatalf("CreateAccounts (first) failed: %v", err)
	}

	second := testutil.NewTestAccount(t, userID, email)
	err := repo.CreateAccounts(ctx, []*model.Account{second})
	if !errors.Is(err, ErrDuplicateAccount) {
		t.Errorf("expected ErrDuplicateAccount, got: %v", err)
	}
}

func TestIntegrationAccounts_BatchRollbackOnDuplicate(t *testing.T) {
	ctx, repo := newQueueTestEnv(t)
	userID := createTestUser(t, ctx, repo, "owner-rollback")

	taken := testutil.UniqueEmail("taken")
	if err := repo.CreateAccounts(ctx, []*model.Account{
		testutil.NewTestAccount(t, userID, taken),
	}); err != nil {
		t.Fatalf("CreateAccounts (seed) failed: %v", err)
	}

	// Fresh email first, duplicate second. The whole batch must roll back.
	fresh := testutil.UniqueEmail("fresh")
	err := repo.CreateAccounts(ctx, []*model.Account{
		testutil.NewTestAccount(t, userID, fresh),
		testutil.NewTestAccount(t, userID, taken),
	})
	if !errors.Is(err, ErrDuplicateAccount) {
		t.Fatalf("expected ErrDuplicateAccount, got: %v", err)
	}

	existing, err := repo.FindExistingAccountEmails(ctx, userID, []string{fresh})
	if err != nil {
		t.Fatalf("FindExistingAccountEmails failed: %v", err)
	}
	if len(existing) != 0 {
		t.Errorf("fresh email was persisted despite batch failure: %v", existing)
	}
}

func TestIntegrationAccounts_SameEmailDifferentOwners(t *testing.T) {
	ctx, repo := newQueueTestEnv(t)
	owner1 := createTestUser(t, ctx, repo, "owner-one")
	owner2 := createTestUser(t, ctx, repo, "owner-two")

	email := testutil.UniqueEmail("shared")
	if err := repo.CreateAccounts(ctx, []*model.Account{
		testutil.NewTestAccount(t, owner1, email),
	}); err != nil {
		t.Fatalf("CreateAccounts (owner1) failed: %v", err)
	}

	// Uniqueness is per owner, not global.
	if err := repo.CreateAccounts(ctx, []*model.Account{
		testutil.NewTestAccount(t, owner2, email),
	}); err != nil {
		t.Errorf("CreateAccounts (owner2) failed: %v", err)
	}
}

func TestIntegrationAccounts_FindExistingEmails(t *testing.T) {
	ctx, repo := newQueueTestEnv(t)
	userID := createTestUser(t, ctx, repo, "owner-existing")

	known := testutil.UniqueEmail("known")
	unknown := testutil.UniqueEmail("unknown")
	if err := repo.CreateAccounts(ctx, []*model.Account{
		testutil.NewTestAccount(t, userID, known),
	}); err != nil {
		t.Fatalf("CreateAccounts failed: %v", err)
	}

	existing, err := repo.FindExistingAccountEmails(ctx, userID, []string{known, unknown})
	if err != nil {
		t.Fatalf("FindExistingAccountEmails failed: %v", err)
	}
	if len(existing) != 1 || existing[0] != known {
		t.Errorf("existing = %v, want [%s]", existing, known)
	}
}

func TestIntegrationAccounts_ClaimIsFIFO(t *testing.T) {
	ctx, repo := newQueueTestEnv(t)
	userID := createTestUser(t, ctx, repo, "owner-fifo")

	emails := make([]string, 4)
	for i := range emails {
		emails[i] = testutil.UniqueEmail("fifo")
		account := testutil.NewTestAccount(t, userID, emails[i])
		if err := repo.CreateAccounts(ctx, []*model.Account{account}); err != nil {
			t.Fatalf("CreateAccounts failed: %v", err)
		}
		time.Sleep(1 * time.Millisecond) // Ensure different created_at
	}

	claimed, err := repo.ClaimAccounts(ctx, userID, 2)
	if err != nil {
		t.Fatalf("ClaimAccounts failed: %v", err)
	}
	if len(claimed) != 2 {
		t.Fatalf("expected 2 claimed, got %d", len(claimed))
	}
	if claimed[0].Email != emails[0] || claimed[1].Email != emails[1] {
		t.Errorf("claim order = [%s %s], want [%s %s]",
			claimed[0].Email, claimed[1].Email, emails[0], emails[1])
	}
}

func TestIntegrationAccounts_ClaimIsDestructive(t *testing.T) {
	ctx, repo := newQueueTestEnv(t)
	userID := createTestUser(t, ctx, repo, "owner-destroy")

	email := testutil.UniqueEmail("destroy")
	if err := repo.CreateAccounts(ctx, []*model.Account{
		testutil.NewTestAccount(t, userID, email),
	}); err != nil {
		t.Fatalf("CreateAccounts failed: %v", err)
	}

	claimed, err := repo.ClaimAccounts(ctx, userID, 1)
	if err != nil {
		t.Fatalf("ClaimAccounts failed: %v", err)
	}
	if len(claimed) != 1 || claimed[0].Email != email {
		t.Fatalf("claimed = %+v, want the single queued account", claimed)
	}

	count, err := repo.CountAccountsByUser(ctx, userID)
	if err != nil {
		t.Fatalf("CountAccountsByUser failed: %v", err)
	}
	if count != 0 {
		t.Errorf("queue depth after claim = %d, want 0", count)
	}

	// A second claim finds nothing.
	again, err := repo.ClaimAccounts(ctx, userID, 1)
	if err != nil {
		t.Fatalf("ClaimAccounts (second) failed: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second claim returned %d accounts, want 0", len(again))
	}
}

func TestIntegrationAccounts_ClaimShortfall(t *testing.T) {
	ctx, repo := newQueueTestEnv(t)
	userID := createTestUser(t, ctx, repo, "owner-shortfall")

	if err := repo.CreateAccounts(ctx, []*model.Account{
		testutil.NewTestAccount(t, userID, testutil.UniqueEmail("short")),
	}); err != nil {
		t.Fatalf("CreateAccounts failed: %v", err)
	}

	// Asking for more than available is not an error.
	claimed, err := repo.ClaimAccounts(ctx, userID, 5)
	if err != nil {
		t.Fatalf("ClaimAccounts failed: %v", err)
	}
	if len(claimed) != 1 {
		t.Errorf("claimed %d accounts, want 1", len(claimed))
	}
}

func TestIntegrationAccounts_ConcurrentClaimsNoOverlap(t *testing.T) {
	ctx, repo := newQueueTestEnv(t)
	userID := createTestUser(t, ctx, repo, "owner-concurrent")

	const total = 20
	accounts := make([]*model.Account, total)
	for i := range accounts {
		accounts[i] = testutil.NewTestAccount(t, userID, testutil.UniqueEmail("conc"))
	}
	if err := repo.CreateAccounts(ctx, accounts); err != nil {
		t.Fatalf("CreateAccounts failed: %v", err)
	}

	const claimers = 8
	const perClaim = 5

	var wg sync.WaitGroup
	results := make(chan []*model.Account, claimers)
	errs := make(chan error, claimers)

	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := repo.ClaimAccounts(ctx, userID, perClaim)
			if err != nil {
				errs <- err
				return
			}
			results <- claimed
		}()
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		t.Fatalf("concurrent ClaimAccounts failed: %v", err)
	}

	seen := make(map[int64]bool)
	delivered := 0
	for claimed := range results {
		for _, account := range claimed {
			if seen[account.ID] {
				t.Errorf("account %d delivered to more than one claimer", account.ID)
			}
			seen[account.ID] = true
			delivered++
		}
	}

	if delivered != total {
		t.Errorf("delivered %d accounts across claimers, want %d", delivered, total)
	}

	count, err := repo.CountAccountsByUser(ctx, userID)
	if err != nil {
		t.Fatalf("CountAccountsByUser failed: %v", err)
	}
	if count != 0 {
		t.Errorf("queue depth after draining = %d, want 0", count)
	}
}

func TestIntegrationAccounts_ClaimScopedToOwner(t *testing.T) {
	ctx, repo := newQueueTestEnv(t)
	owner1 := createTestUser(t, ctx, repo, "owner-scope-a")
	owner2 := createTestUser(t, ctx, repo, "owner-scope-b")

	if err := repo.CreateAccounts(ctx, []*model.Account{
		testutil.NewTestAccount(t, owner1, testutil.UniqueEmail("scope")),
	}); err != nil {
		t.Fatalf("CreateAccounts failed: %v", err)
	}

	claimed, err := repo.ClaimAccounts(ctx, owner2, 5)
	if err != nil {
		t.Fatalf("ClaimAccounts failed: %v", err)
	}
	if len(claimed) != 0 {
		t.Errorf("owner2 claimed %d of owner1's accounts", len(claimed))
	}

	count, err := repo.CountAccountsByUser(ctx, owner1)
	if err != nil {
		t.Fatalf("CountAccountsByUser failed: %v", err)
	}
	if count != 1 {
		t.Errorf("owner1 queue depth = %d, want 1", count)
	}
}

// ============================================================================
// Email Queue Integration Tests
// ============================================================================

func TestIntegrationEmails_CreateClaimCount(t *testing.T) {
	ctx, repo := newQueueTestEnv(t)
	userID := createTestUser(t, ctx, repo, "owner-emails")

	addresses := []string{
		testutil.UniqueEmail("em-a"),
		testutil.UniqueEmail("em-b"),
		testutil.UniqueEmail("em-c"),
	}
	emails := make([]*model.Email, len(addresses))
	for i, address := range addresses {
		emails[i] = testutil.NewTestEmail(t, userID, address)
	}

	if err := repo.CreateEmails(ctx, emails); err != nil {
		t.Fatalf("CreateEmails failed: %v", err)
	}

	count, err := repo.CountEmailsByUser(ctx, userID)
	if err != nil {
		t.Fatalf("CountEmailsByUser failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("queue depth = %d, want 3", count)
	}

	claimed, err := repo.ClaimEmails(ctx, userID, 2)
	if err != nil {
		t.Fatalf("ClaimEmails failed: %v", err)
	}
	if len(claimed) != 2 {
		t.Fatalf("claimed %d emails, want 2", len(claimed))
	}
	if claimed[0].Address != addresses[0] {
		t.Errorf("first claimed = %q, want %q (FIFO)", claimed[0].Address, addresses[0])
	}

	count, err = repo.CountEmailsByUser(ctx, userID)
	if err != nil {
		t.Fatalf("CountEmailsByUser failed: %v", err)
	}
	if count != 1 {
		t.Errorf("queue depth after claim = %d, want 1", count)
	}
}

func TestIntegrationEmails_DuplicateRejected(t *testing.T) {
	ctx, repo := newQueueTestEnv(t)
	userID := createTestUser(t, ctx, repo, "owner-email-dup")

	address := testutil.UniqueEmail("emdup")
	if err := repo.CreateEmails(ctx, []*model.Email{
		testutil.NewTestEmail(t, userID, address),
	}); err != nil {
		t.Fatalf("CreateEmails failed: %v", err)
	}

	err := repo.CreateEmails(ctx, []*model.Email{
		testutil.NewTestEmail(t, userID, address),
	})
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("expected ErrDuplicateEmail, got: %v", err)
	}
}

func TestIntegrationEmails_ReclaimAfterSaveIsFresh(t *testing.T) {
	ctx, repo := newQueueTestEnv(t)
	userID := createTestUser(t, ctx, repo, "owner-requeue")

	// Claiming removes the row, so the same address may be saved again.
	address := testutil.UniqueEmail("requeue")
	if err := repo.CreateEmails(ctx, []*model.Email{
		testutil.NewTestEmail(t, userID, address),
	}); err != nil {
		t.Fatalf("CreateEmails failed: %v", err)
	}

	if _, err := repo.ClaimEmails(ctx, userID, 1); err != nil {
		t.Fatalf("ClaimEmails failed: %v", err)
	}

	if err := repo.CreateEmails(ctx, []*model.Email{
		testutil.NewTestEmail(t, userID, address),
	}); err != nil {
		t.Errorf("re-saving a claimed address failed: %v", err)
	}
}

// ============================================================================
// User Integration Tests
// ============================================================================

func TestIntegrationUsers_DeleteCascadesToQueues(t *testing.T) {
	ctx, repo := newQueueTestEnv(t)
	userID := createTestUser(t, ctx, repo, "owner-cascade")

	if err := repo.CreateAccounts(ctx, []*model.Account{
		testutil.NewTestAccount(t, userID, testutil.UniqueEmail("cascade")),
	}); err != nil {
		t.Fatalf("CreateAccounts failed: %v", err)
	}
	if err := repo.CreateEmails(ctx, []*model.Email{
		testutil.NewTestEmail(t, userID, testutil.UniqueEmail("cascade")),
	}); err != nil {
		t.Fatalf("CreateEmails failed: %v", err)
	}

	if err := repo.DeleteUser(ctx, userID); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}

	accountCount, err := repo.CountAccountsByUser(ctx, userID)
	if err != nil {
		t.Fatalf("CountAccountsByUser failed: %v", err)
	}
	emailCount, err := repo.CountEmailsByUser(ctx, userID)
	if err != nil {
		t.Fatalf("CountEmailsByUser failed: %v", err)
	}
	if accountCount != 0 || emailCount != 0 {
		t.Errorf("queue rows survived user delete: accounts=%d emails=%d", accountCount, emailCount)
	}
}

func TestIntegrationUsers_UsernameTaken(t *testing.T) {
	ctx, repo := newQueueTestEnv(t)

	username := testutil.UniqueID("taken-user")
	first := testutil.NewTestUser(t, testutil.UniqueID("user"), username)
	if err := repo.CreateUser(ctx, first); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	second := testutil.NewTestUser(t, testutil.UniqueID("user"), username)
	if err := repo.CreateUser(ctx, second); !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("expected ErrUsernameTaken, got: %v", err)
	}
}

func TestIntegrationUsers_StoreTokenRoundTrip(t *testing.T) {
	ctx, repo := newQueueTestEnv(t)
	userID := createTestUser(t, ctx, repo, "owner-token")

	token := "test-token-" + testutil.UniqueID("tok")
	expiresAt := time.Now().UTC().Add(time.Hour).Truncate(time.Microsecond)

	if err := repo.StoreToken(ctx, userID, token, expiresAt); err != nil {
		t.Fatalf("StoreToken failed: %v", err)
	}

	user, err := repo.GetUserByID(ctx, userID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if user.AccessToken == nil || *user.AccessToken != token {
		t.Errorf("stored token mismatch: got %v", user.AccessToken)
	}
	if user.TokenExpiration == nil || !user.TokenExpiration.Equal(expiresAt) {
		t.Errorf("stored expiry mismatch: got %v, want %v", user.TokenExpiration, expiresAt)
	}
}

// ============================================================================
// Test Environment Setup
// ============================================================================

func newQueueTestEnv(t *testing.T) (context.Context, *Repository) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	dbURL := testutil.RequireEnv(t, "DATABASE_URL")

	repo, err := New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(repo.Close)

	unlock, err := testutil.AcquireDBLock(ctx, repo.Pool())
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_ = unlock()
	})

	if err := testutil.ResetVaultSchema(ctx, repo.Pool()); err != nil {
		t.Fatalf("reset schema: %v", err)
	}

	return ctx, repo
}

func createTestUser(t *testing.T, ctx context.Context, repo *Repository, prefix string) string {
	t.Helper()

	user := testutil.NewTestUser(t, testutil.UniqueID(prefix), testutil.UniqueID(prefix))
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("create test user: %v", err)
	}
	return user.ID
}
