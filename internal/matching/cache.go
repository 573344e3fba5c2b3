package matching

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"
)

// CompatibilityCache is a hot cache in front of the compatibility collection.
// The store remains the source of truth.
type CompatibilityCache interface {
	Get(ctx context.Context, userID, candidateID string) (*CompatibilityScore, error)
	Set(ctx context.Context, cs *CompatibilityScore) error
}

// NoopCache always misses
type NoopCache struct{}

func (NoopCache) Get(ctx context.Context, userID, candidateID string) (*CompatibilityScore, error) {
	return nil, ErrCacheMiss
}

func (NoopCache) Set(ctx context.Context, cs *CompatibilityScore) error { return nil }

const compatKeyPrefix = "matchcore:compat:"

type RedisCompatibilityCache struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisCompatibilityCache(client *redis.Client) *RedisCompatibilityCache {
	return &RedisCompatibilityCache{client: client, now: time.Now}
}

func compatKey(userID, candidateID string) string {
	return compatKeyPrefix + userID + ":" + candidateID
}

func (c *RedisCompatibilityCache) Get(ctx context.Context, userID, candidateID string) (*CompatibilityScore, error) {
	raw, err := c.client.Get(ctx, compatKey(userID, candidateID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var cs CompatibilityScore
	if err := json.Unmarshal(raw, &cs); err != nil {
		return nil, fmt.Errorf("decode cached compatibility: %w", err)
	}
	if !cs.ExpiresAt.After(c.now()) {
		return nil, ErrCacheMiss
	}
	return &cs, nil
}

// Set stores the score until its own expiry
func (c *RedisCompatibilityCache) Set(ctx context.Context, cs *CompatibilityScore) error {
	ttl := cs.ExpiresAt.Sub(c.now())
	if ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(cs)
	if err != nil {
		return fmt.Errorf("encode compatibility: %w", err)
	}
	if err := c.client.Set(ctx, compatKey(cs.UserID, cs.CandidateUserID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
