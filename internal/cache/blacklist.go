package cache

import (
	"context"
	"time"
)

// BlacklistStore is the TTL key-value revocation list for access tokens.
// Logout writes the token hash; the inbound gate reads it on every protected
// request. Entries expire on their own at the token's original expiry, after
// which blacklisting is moot. Any store satisfying set/get-with-TTL works;
// Redis in production, an in-process map for single-node deployments and
// tests.
type BlacklistStore interface {
	Add(ctx context.Context, tokenHash string, ttl time.Duration) error
	Contains(ctx context.Context, tokenHash string) (bool, error)
}

// MinBlacklistTTL floors the entry lifetime so that a token revoked at the
// edge of its expiry window still lands in the store instead of a
// zero/negative-TTL no-op.
const MinBlacklistTTL = 5 * time.Second

// ClampTTL returns remaining clamped to at least MinBlacklistTTL.
func ClampTTL(remaining time.Duration) time.Duration {
	if remaining < MinBlacklistTTL {
		return MinBlacklistTTL
	}
	return remaining
}
