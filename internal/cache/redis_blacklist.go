package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const blacklistKeyPrefix = "revoked_token:"

type redisBlacklist struct {
	client *redis.Client
}

// NewRedisBlacklist wraps a Redis client as a BlacklistStore. Expiry is
// delegated to Redis key TTLs.
func NewRedisBlacklist(client *redis.Client) BlacklistStore {
	return &redisBlacklist{client: client}
}

func (b *redisBlacklist) Add(ctx context.Context, tokenHash string, ttl time.Duration) error {
	key := fmt.Sprintf("%s%s", blacklistKeyPrefix, tokenHash)
	return b.client.Set(ctx, key, 1, ClampTTL(ttl)).Err()
}

func (b *redisBlacklist) Contains(ctx context.Context, tokenHash string) (bool, error) {
	key := fmt.Sprintf("%s%s", blacklistKeyPrefix, tokenHash)
	exists, err := b.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}
