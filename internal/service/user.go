package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/vaultq/vaultq/internal/auth"
	"github.com/vaultq/vaultq/internal/cache"
	"github.com/vaultq/vaultq/internal/model"
	"github.com/vaultq/vaultq/internal/repository"
)

// Session is an issued access token together with its expiry.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

// TokenVerification reports the state of a presented token.
type TokenVerification struct {
	Valid     bool
	Expired   bool
	Username  string
	ExpiresAt time.Time
}

// UserService handles registration, login and user administration.
type UserService struct {
	repo   *repository.Repository
	cache  *cache.Cache
	tokens *auth.TokenIssuer
}

// NewUserService creates a new UserService.
func NewUserService(repo *repository.Repository, c *cache.Cache, tokens *auth.TokenIssuer) *UserService {
	return &UserService{
		repo:   repo,
		cache:  c,
		tokens: tokens,
	}
}

// Register creates a user with an argon2id password hash and issues the
// initial access token, stored on the row as the single active session.
func (s *UserService) Register(ctx context.Context, username, password string) (*model.User, *Session, error) {
	if username == "" || password == "" {
		return nil, nil, ErrMissingCredentials
	}

	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	token, expiresAt, err := s.tokens.Issue(username, now)
	if err != nil {
		return nil, nil, fmt.Errorf("issue token: %w", err)
	}

	user := &model.User{
		ID:              ulid.Make().String(),
		Username:        username,
		PasswordHash:    passwordHash,
		AccessToken:     &token,
		TokenExpiration: &expiresAt,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUsernameTaken) {
			return nil, nil, ErrUsernameTaken
		}
		return nil, nil, fmt.Errorf("create user: %w", err)
	}

	return user, &Session{Token: token, ExpiresAt: expiresAt}, nil
}

// Login verifies the password and returns the active session. A still
// valid stored token is reused; an expired or absent one is replaced,
// which revokes whatever was issued before (single active session).
func (s *UserService) Login(ctx context.Context, username, password string) (*model.User, *Session, error) {
	if username == "" || password == "" {
		return nil, nil, ErrMissingCredentials
	}

	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("lookup user: %w", err)
	}

	match, err := auth.VerifyPassword(password, user.PasswordHash)
	if err != nil || !match {
		return nil, nil, ErrInvalidCredentials
	}

	now := time.Now().UTC()
	if user.HasValidToken(now) {
		return user, &Session{Token: *user.AccessToken, ExpiresAt: *user.TokenExpiration}, nil
	}

	token, expiresAt, err := s.tokens.Issue(username, now)
	if err != nil {
		return nil, nil, fmt.Errorf("issue token: %w", err)
	}
	if err := s.repo.StoreToken(ctx, user.ID, token, expiresAt); err != nil {
		return nil, nil, fmt.Errorf("store token: %w", err)
	}

	// Drop the cached context of the replaced token, if any
	if user.AccessToken != nil {
		_ = s.cache.DeleteAuthContext(ctx, auth.QuickHash(*user.AccessToken))
	}

	user.AccessToken = &token
	user.TokenExpiration = &expiresAt
	return user, &Session{Token: token, ExpiresAt: expiresAt}, nil
}

// Logout drops the cached auth context for the presented token so the
// next request re-checks the user row.
func (s *UserService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.cache.DeleteAuthContext(ctx, auth.QuickHash(token))
}

// VerifyToken reports whether a presented token is the valid, current
// session for its user.
func (s *UserService) VerifyToken(ctx context.Context, token string) (*TokenVerification, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return &TokenVerification{Expired: true}, nil
		}
		return &TokenVerification{}, nil
	}

	user, err := s.repo.GetUserByUsername(ctx, claims.Username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return &TokenVerification{}, nil
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	now := time.Now()
	if !user.HasValidToken(now) || *user.AccessToken != token {
		return &TokenVerification{Username: claims.Username}, nil
	}

	return &TokenVerification{
		Valid:     true,
		Username:  user.Username,
		ExpiresAt: *user.TokenExpiration,
	}, nil
}

// GetUser retrieves a user by ID.
func (s *UserService) GetUser(ctx context.Context, id string) (*model.User, error) {
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// ListUsers retrieves a page of users.
func (s *UserService) ListUsers(ctx context.Context, limit, offset int) ([]*model.User, error) {
	users, err := s.repo.ListUsers(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// UpdateUser changes the username and/or password. Nil arguments leave
// the field unchanged; empty strings are rejected.
func (s *UserService) UpdateUser(ctx context.Context, id string, username, password *string) (*model.User, error) {
	if username == nil && password == nil {
		return nil, ErrMissingCredentials
	}
	if username != nil && *username == "" {
		return nil, ErrMissingCredentials
	}
	if password != nil && *password == "" {
		return nil, ErrMissingCredentials
	}

	var passwordHash *string
	if password != nil {
		hashed, err := auth.HashPassword(*password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		passwordHash = &hashed
	}

	if err := s.repo.UpdateUserCredentials(ctx, id, username, passwordHash); err != nil {
		switch {
		case errors.Is(err, repository.ErrUserNotFound):
			return nil, ErrUserNotFound
		case errors.Is(err, repository.ErrUsernameTaken):
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("update user: %w", err)
	}

	return s.GetUser(ctx, id)
}

// DeleteUser removes a user; their queue rows cascade at the schema level.
func (s *UserService) DeleteUser(ctx context.Context, id string) error {
	// Fetch first so the cached session, if any, can be dropped too
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("get user: %w", err)
	}

	if err := s.repo.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("delete user: %w", err)
	}

	if user.AccessToken != nil {
		_ = s.cache.DeleteAuthContext(ctx, auth.QuickHash(*user.AccessToken))
	}
	return nil
}
