package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wodnrP/accounts-service/internal/domain"
)

const keyPrefix = "accounts:profile:"

// ProfileCache caches public profiles in Redis so repeated profile lookups
// skip the database. All methods degrade gracefully: a nil client or a Redis
// failure is logged and treated as a cache miss, never surfaced to callers.
type ProfileCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewProfileCache creates a Redis-backed public profile cache. A nil client
// disables caching entirely.
func NewProfileCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *ProfileCache {
	return &ProfileCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// Get returns the cached public profile for the user, or (nil, false) on a
// miss.
func (c *ProfileCache) Get(ctx context.Context, userID string) (*domain.PublicProfile, bool) {
	if c.client == nil {
		return nil, false
	}

	data, err := c.client.Get(ctx, keyPrefix+userID).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("profile cache get failed",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
		return nil, false
	}

	var profile domain.PublicProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		c.logger.Warn("profile cache unmarshal failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, false
	}

	return &profile, true
}

// Set stores the public profile with the configured TTL.
func (c *ProfileCache) Set(ctx context.Context, profile *domain.PublicProfile) {
	if c.client == nil {
		return
	}

	data, err := json.Marshal(profile)
	if err != nil {
		c.logger.Warn("profile cache marshal failed",
			slog.String("user_id", profile.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := c.client.Set(ctx, keyPrefix+profile.ID, data, c.ttl).Err(); err != nil {
		c.logger.Warn("profile cache set failed",
			slog.String("user_id", profile.ID),
			slog.String("error", err.Error()),
		)
	}
}

// Invalidate drops the cached profile for the user. Called after profile
// updates so stale data does not outlive the TTL.
func (c *ProfileCache) Invalidate(ctx context.Context, userID string) error {
	if c.client == nil {
		return nil
	}

	if err := c.client.Del(ctx, keyPrefix+userID).Err(); err != nil {
		c.logger.Warn("profile cache invalidate failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("redis del profile: %w", err)
	}

	return nil
}
