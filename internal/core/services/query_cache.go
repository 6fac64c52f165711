package services

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultStaleAfter matches the freshness window the feed is comfortable
// serving without revalidation.
const DefaultStaleAfter = 5 * time.Minute

type cacheEntry[T any] struct {
	data      T
	fetchedAt time.Time
}

// FetchFunc loads the authoritative value for a cache key from the backend.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// QueryCache is a keyed in-memory cache with stale-while-revalidate reads.
// Keys are stable strings so every call site converges on the same entry.
// Overlapping refetches for a key are deduplicated; whichever response lands
// last wins, which is safe because entries are keyed by identity, not by
// request.
type QueryCache[T any] struct {
	staleAfter time.Duration
	now        func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry[T]
	group   singleflight.Group
}

func NewQueryCache[T any](staleAfter time.Duration) *QueryCache[T] {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &QueryCache[T]{
		staleAfter: staleAfter,
		now:        time.Now,
		entries:    make(map[string]cacheEntry[T]),
	}
}

// Get returns the entry for key. A missing entry blocks on fetch; a fresh one
// is returned as-is; a stale one is returned immediately while a background
// refetch revalidates it.
func (c *QueryCache[T]) Get(ctx context.Context, key string, fetch FetchFunc[T]) (T, error) {
	c.mu.Lock()
	entry, ok := c.entries[key]
	c.mu.Unlock()

	if !ok {
		return c.Refetch(ctx, key, fetch)
	}

	if c.now().Sub(entry.fetchedAt) > c.staleAfter {
		go func() {
			// The triggering caller already has data; the revalidation
			// should not die with that caller's request.
			_, _ = c.Refetch(context.WithoutCancel(ctx), key, fetch)
		}()
	}
	return entry.data, nil
}

// Refetch loads key from the backend regardless of freshness. Concurrent
// refetches for the same key share one call.
func (c *QueryCache[T]) Refetch(ctx context.Context, key string, fetch FetchFunc[T]) (T, error) {
	data, err, _ := c.group.Do(key, func() (any, error) {
		fetched, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(key, fetched)
		return fetched, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return data.(T), nil
}

// Set stores data under key, marking it freshly fetched.
func (c *QueryCache[T]) Set(key string, data T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry[T]{data: data, fetchedAt: c.now()}
}

// Peek returns the entry for key without fetching or touching freshness.
func (c *QueryCache[T]) Peek(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	return entry.data, ok
}

// Update patches the entry for key in place, keeping its fetch time. Missing
// entries are left absent: patching applies to loaded data only.
func (c *QueryCache[T]) Update(key string, patch func(T) T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return
	}
	entry.data = patch(entry.data)
	c.entries[key] = entry
}

// Evict drops the entry for key. Idempotent.
func (c *QueryCache[T]) Evict(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}
