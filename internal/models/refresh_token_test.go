package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestRefreshTokenExpiryBoundary(t *testing.T) {
	expiresAt := time.Unix(1700000000, 0)
	rt := &RefreshToken{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		ExpiresAt: expiresAt,
	}

	require.False(t, rt.IsExpired(expiresAt.Add(-time.Nanosecond)))
	// Expired at exactly the expiry instant.
	require.True(t, rt.IsExpired(expiresAt))
	require.True(t, rt.IsExpired(expiresAt.Add(time.Nanosecond)))
}

func TestRefreshTokenActive(t *testing.T) {
	now := time.Unix(1700000000, 0)
	rt := &RefreshToken{ExpiresAt: now.Add(time.Hour)}

	require.True(t, rt.IsActive(now))

	revokedAt := now
	rt.RevokedAt = &revokedAt
	require.True(t, rt.IsRevoked())
	require.False(t, rt.IsActive(now))

	rt.RevokedAt = nil
	require.False(t, rt.IsActive(now.Add(time.Hour)))
}
