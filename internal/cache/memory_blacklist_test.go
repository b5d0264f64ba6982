package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryBlacklistAddContains(t *testing.T) {
	b := NewMemoryBlacklist(time.Minute)
	t.Cleanup(b.Close)
	ctx := context.Background()

	found, err := b.Contains(ctx, "absent")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, b.Add(ctx, "hash-1", time.Minute))
	found, err = b.Contains(ctx, "hash-1")
	require.NoError(t, err)
	require.True(t, found)
}

func TestMemoryBlacklistLazyExpiry(t *testing.T) {
	// Long reap interval so only the lazy check in Contains can hide the
	// entry.
	b := NewMemoryBlacklist(time.Hour)
	t.Cleanup(b.Close)
	ctx := context.Background()

	b.mu.Lock()
	b.entries["stale"] = time.Now().Add(-time.Second)
	b.mu.Unlock()

	found, err := b.Contains(ctx, "stale")
	require.NoError(t, err)
	require.False(t, found)
}

func TestClampTTL(t *testing.T) {
	require.Equal(t, MinBlacklistTTL, ClampTTL(-time.Minute))
	require.Equal(t, MinBlacklistTTL, ClampTTL(0))
	require.Equal(t, MinBlacklistTTL, ClampTTL(time.Second))
	require.Equal(t, time.Hour, ClampTTL(time.Hour))
}
