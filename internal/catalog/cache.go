package catalog

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/wheelhouse-game/backend/internal/engine"
)

// DefaultTTL matches the upstream service's cache lifetime.
const DefaultTTL = 24 * time.Hour

// cache is get-or-fetch with a TTL and a single writer (the fetcher that
// wins the singleflight). Concurrent misses for the same key coalesce into
// one upstream call.
type cache[V any] struct {
	ttl     time.Duration
	now     func() time.Time
	mu      sync.RWMutex
	entries map[string]cacheEntry[V]
	group   singleflight.Group
}

type cacheEntry[V any] struct {
	value     V
	fetchedAt time.Time
}

func newCache[V any](ttl time.Duration) *cache[V] {
	return &cache[V]{ttl: ttl, now: time.Now, entries: make(map[string]cacheEntry[V])}
}

func (c *cache[V]) getOrFetch(key string, fetch func() (V, error)) (V, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && c.now().Sub(e.fetchedAt) < c.ttl {
		return e.value, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// Another flight may have refreshed while we queued.
		c.mu.RLock()
		e, ok := c.entries[key]
		c.mu.RUnlock()
		if ok && c.now().Sub(e.fetchedAt) < c.ttl {
			return e.value, nil
		}

		value, err := fetch()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = cacheEntry[V]{value: value, fetchedAt: c.now()}
		c.mu.Unlock()
		return value, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

// CachedProvider wraps a Provider with per-key TTL caching. Playlist and
// track responses are stable enough that a stale read within the TTL is
// harmless; errors are never cached.
type CachedProvider struct {
	upstream  Provider
	playlists *cache[[]engine.Playlist]
	tracks    *cache[[]engine.Track]
	single    *cache[engine.Track]
}

func NewCachedProvider(upstream Provider, ttl time.Duration) *CachedProvider {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &CachedProvider{
		upstream:  upstream,
		playlists: newCache[[]engine.Playlist](ttl),
		tracks:    newCache[[]engine.Track](ttl),
		single:    newCache[engine.Track](ttl),
	}
}

func (p *CachedProvider) Playlists(ctx context.Context, token string) ([]engine.Playlist, error) {
	// Keyed by token: different users see different libraries.
	return p.playlists.getOrFetch(token, func() ([]engine.Playlist, error) {
		return p.upstream.Playlists(ctx, token)
	})
}

func (p *CachedProvider) PlaylistTracks(ctx context.Context, token, playlistID string) ([]engine.Track, error) {
	return p.tracks.getOrFetch(playlistID, func() ([]engine.Track, error) {
		return p.upstream.PlaylistTracks(ctx, token, playlistID)
	})
}

func (p *CachedProvider) Track(ctx context.Context, token, trackID string) (engine.Track, error) {
	return p.single.getOrFetch(trackID, func() (engine.Track, error) {
		return p.upstream.Track(ctx, token, trackID)
	})
}
