package cache

import (
	"context"
	"sync"
	"time"
)

type memoryBlacklist struct {
	mu      sync.RWMutex
	entries map[string]time.Time
	done    chan struct{}
}

// NewMemoryBlacklist returns an in-process BlacklistStore with a background
// reaper. Suitable when the service runs as a single node and in tests.
func NewMemoryBlacklist(reapInterval time.Duration) *memoryBlacklist {
	b := &memoryBlacklist{
		entries: make(map[string]time.Time),
		done:    make(chan struct{}),
	}
	go b.reapLoop(reapInterval)
	return b
}

func (b *memoryBlacklist) Add(_ context.Context, tokenHash string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[tokenHash] = time.Now().Add(ClampTTL(ttl))
	return nil
}

func (b *memoryBlacklist) Contains(_ context.Context, tokenHash string) (bool, error) {
	b.mu.RLock()
	expiry, ok := b.entries[tokenHash]
	b.mu.RUnlock()
	if !ok {
		return false, nil
	}
	// Lazily treat an entry past its expiry as absent; the reaper removes it.
	if !time.Now().Before(expiry) {
		return false, nil
	}
	return true, nil
}

func (b *memoryBlacklist) Close() {
	close(b.done)
}

func (b *memoryBlacklist) reapLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-b.done:
			return
		case now := <-ticker.C:
			b.mu.Lock()
			for hash, expiry := range b.entries {
				if !now.Before(expiry) {
					delete(b.entries, hash)
				}
			}
			b.mu.Unlock()
		}
	}
}
