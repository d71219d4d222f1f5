package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vaultq/vaultq/internal/model"
)

const (
	// authCachePrefix is the Redis key prefix for auth context cache.
	authCachePrefix = "auth:token:"
	// authCacheTTL caps how long a verified token skips the stored-token check.
	// Kept short so logout and token rotation take effect quickly.
	authCacheTTL = 5 * time.Minute
)

// cachedAuthContext represents auth context stored in Redis.
type cachedAuthContext struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// GetAuthContext retrieves a cached auth context by token hash.
// Returns nil if not found (cache miss).
func (c *Cache) GetAuthContext(ctx context.Context, tokenHash string) (*model.AuthContext, error) {
	key := authCachePrefix + tokenHash

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		// Cache miss is not an error
		return nil, nil //nolint:nilerr
	}

	var cached cachedAuthContext
	if err := json.Unmarshal(data, &cached); err != nil {
		// Corrupted cache entry - treat as miss
		return nil, nil //nolint:nilerr
	}

	return &model.AuthContext{
		UserID:   cached.UserID,
		Username: cached.Username,
	}, nil
}

// SetAuthContext caches a verified auth context under the token hash.
// The entry never outlives the token itself.
func (c *Cache) SetAuthContext(ctx context.Context, tokenHash string, auth *model.AuthContext, tokenExpiresAt time.Time) error {
	key := authCachePrefix + tokenHash

	ttl := authCacheTTL
	if remaining := time.Until(tokenExpiresAt); remaining < ttl {
		if remaining <= 0 {
			return nil
		}
		ttl = remaining
	}

	data, err := json.Marshal(cachedAuthContext{
		UserID:   auth.UserID,
		Username: auth.Username,
	})
	if err != nil {
		return fmt.Errorf("marshal auth context: %w", err)
	}

	return c.client.Set(ctx, key, data, ttl).Err()
}

// DeleteAuthContext removes a cached auth context.
// Used on logout and when a user's token is replaced.
func (c *Cache) DeleteAuthContext(ctx context.Context, tokenHash string) error {
	key := authCachePrefix + tokenHash
	return c.client.Del(ctx, key).Err()
}
