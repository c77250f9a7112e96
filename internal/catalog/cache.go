// Package catalog caches the list of models the local Ollama server offers.
//
// A Cache fetches the raw tag list through a Fetcher, normalizes it with
// Normalize and serves it until the TTL expires. Concurrent refreshes are
// coalesced into one request.
package catalog

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL is how long a fetched catalog is served without refetching.
const DefaultTTL = 60 * time.Second

const (
	defaultFetchTimeout = 10 * time.Second
	maxLoggedPayload    = 4096
	flightKey           = "tags"
)

// Fetcher returns the raw discovery payload (GET /api/tags).
type Fetcher interface {
	FetchTags(ctx context.Context) ([]byte, error)
}

// Snapshot is the result of a Lookup.
type Snapshot struct {
	Models    []string
	FetchedAt time.Time
	// Cached is true when no network request was made.
	Cached bool
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL overrides DefaultTTL. Non-positive values are ignored.
func WithTTL(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithFetchTimeout bounds a single refresh.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

// WithLogger sets the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Cache) { c.log = l }
}

// Cache is safe for concurrent use.
type Cache struct {
	fetcher      Fetcher
	ttl          time.Duration
	fetchTimeout time.Duration
	now          func() time.Time
	log          zerolog.Logger
	group        singleflight.Group

	mu        sync.RWMutex
	models    []string
	fetchedAt time.Time
	// gen increments on Invalidate; a refresh started under an older
	// generation does not store its result.
	gen uint64
}

// New returns an empty Cache backed by f.
func New(f Fetcher, opts ...Option) *Cache {
	c := &Cache{
		fetcher:      f,
		ttl:          DefaultTTL,
		fetchTimeout: defaultFetchTimeout,
		now:          time.Now,
		log:          zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the configured time-to-live.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Lookup returns the cached catalog when it is younger than the TTL and
// bypass is false. Otherwise it fetches, normalizes and stores a fresh copy.
// Failed fetches return a *FetchError and leave the cache untouched.
func (c *Cache) Lookup(ctx context.Context, bypass bool) (Snapshot, error) {
	if !bypass {
		if snap, ok := c.fresh(); ok {
			return snap, nil
		}
	}
	ch := c.group.DoChan(flightKey, func() (any, error) {
		return c.refresh(ctx, bypass)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return Snapshot{}, res.Err
		}
		snap := res.Val.(Snapshot)
		snap.Models = slices.Clone(snap.Models)
		return snap, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// Models is Lookup without the metadata.
func (c *Cache) Models(ctx context.Context, bypass bool) ([]string, error) {
	snap, err := c.Lookup(ctx, bypass)
	if err != nil {
		return nil, err
	}
	return snap.Models, nil
}

// Invalidate drops the cached catalog. A refresh already in flight will
// still answer its callers but will not repopulate the cache.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.gen++
	c.models = nil
	c.fetchedAt = time.Time{}
	c.mu.Unlock()
	c.log.Debug().Msg("model catalog invalidated")
}

func (c *Cache) fresh() (Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.fetchedAt.IsZero() || c.now().Sub(c.fetchedAt) >= c.ttl {
		return Snapshot{}, false
	}
	return Snapshot{Models: slices.Clone(c.models), FetchedAt: c.fetchedAt, Cached: true}, true
}

// refresh runs detached from the caller's cancellation so one impatient
// caller does not fail everyone sharing the flight.
func (c *Cache) refresh(ctx context.Context, debug bool) (Snapshot, error) {
	c.mu.RLock()
	gen := c.gen
	c.mu.RUnlock()

	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
	defer cancel()

	start := time.Now()
	payload, err := c.fetcher.FetchTags(fctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("model catalog fetch failed")
		return Snapshot{}, &FetchError{Err: err}
	}
	if debug {
		c.log.Info().Bytes("payload", clip(payload, maxLoggedPayload)).Msg("raw model catalog")
	}
	models, err := Normalize(payload)
	if err != nil {
		c.log.Warn().Err(err).Msg("model catalog rejected")
		return Snapshot{}, &FetchError{Err: err}
	}

	now := c.now()
	c.mu.Lock()
	stored := c.gen == gen
	if stored {
		c.models = models
		c.fetchedAt = now
	}
	c.mu.Unlock()

	c.log.Debug().
		Int("models", len(models)).
		Bool("stored", stored).
		Dur("took", time.Since(start)).
		Msg("model catalog refreshed")
	return Snapshot{Models: models, FetchedAt: now}, nil
}

func clip(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
