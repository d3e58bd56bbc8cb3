package boundary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/couchcryptid/heat-insight-engine/internal/observability"
)

// DefaultFetchTimeout bounds one source fetch, including a shared-store lookup.
const DefaultFetchTimeout = 20 * time.Second

// Source fetches the boundary of a locality from an external provider.
// Implementations return ErrNotFound when the provider has no polygon.
type Source interface {
	Fetch(ctx context.Context, name string) (Geometry, error)
}

// Store is a shared geometry tier consulted before the source, typically
// shared between replicas. found is false on a miss.
type Store interface {
	Get(ctx context.Context, name string) (g Geometry, found bool, err error)
	Put(ctx context.Context, name string, g Geometry) error
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithStore adds a shared tier between the memo and the source.
func WithStore(s Store) CacheOption {
	return func(c *Cache) { c.store = s }
}

// WithFetchTimeout overrides DefaultFetchTimeout.
func WithFetchTimeout(d time.Duration) CacheOption {
	return func(c *Cache) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// Cache memoizes geometries by locality name, exactly as given. Entries are
// never evicted. Only found geometries are memoized, so a locality that was
// not found, or whose fetch failed, is retried on the next request.
type Cache struct {
	source  Source
	store   Store
	timeout time.Duration
	logger  *slog.Logger
	metrics *observability.Metrics

	group singleflight.Group
	mu    sync.RWMutex
	memo  map[string]Geometry
}

// NewCache wraps source with a memo.
func NewCache(source Source, logger *slog.Logger, metrics *observability.Metrics, opts ...CacheOption) *Cache {
	c := &Cache{
		source:  source,
		timeout: DefaultFetchTimeout,
		logger:  logger,
		metrics: metrics,
		memo:    make(map[string]Geometry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Peek returns the memoized geometry for name without fetching.
func (c *Cache) Peek(name string) (Geometry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	g, ok := c.memo[name]
	return g, ok
}

// Len returns the number of memoized geometries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.memo)
}

// Get returns the geometry for name. A memo hit returns immediately.
// Concurrent misses for the same name share one fetch. The fetch itself runs
// detached from ctx: cancelling ctx returns early with ctx's error, while the
// fetch completes in the background and still populates the memo.
func (c *Cache) Get(ctx context.Context, name string) (Geometry, error) {
	if g, ok := c.Peek(name); ok {
		c.metrics.BoundaryCache.WithLabelValues("hit").Inc()
		return g, nil
	}
	c.metrics.BoundaryCache.WithLabelValues("miss").Inc()

	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(name, func() (any, error) {
		return c.fetch(fetchCtx, name)
	})

	select {
	case <-ctx.Done():
		return Geometry{}, context.Cause(ctx)
	case res := <-ch:
		if res.Err != nil {
			return Geometry{}, res.Err
		}
		return res.Val.(Geometry), nil
	}
}

func (c *Cache) fetch(ctx context.Context, name string) (Geometry, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.store != nil {
		g, found, err := c.store.Get(ctx, name)
		switch {
		case err != nil:
			c.logger.Warn("boundary store lookup failed", "locality", name, "error", err)
		case found && !g.Empty():
			c.metrics.BoundaryCache.WithLabelValues("store_hit").Inc()
			c.remember(name, g)
			return g, nil
		}
	}

	start := time.Now()
	g, err := c.source.Fetch(ctx, name)
	c.metrics.BoundaryFetchDuration.Observe(time.Since(start).Seconds())
	if err == nil && g.Empty() {
		err = ErrNotFound
	}
	switch {
	case errors.Is(err, ErrNotFound):
		c.metrics.BoundaryFetches.WithLabelValues("not_found").Inc()
		return Geometry{}, fmt.Errorf("%s: %w", name, ErrNotFound)
	case err != nil:
		c.metrics.BoundaryFetches.WithLabelValues("error").Inc()
		c.logger.Warn("boundary fetch failed", "locality", name, "error", err)
		return Geometry{}, fmt.Errorf("fetch boundary %s: %w", name, err)
	}
	c.metrics.BoundaryFetches.WithLabelValues("success").Inc()
	c.remember(name, g)

	if c.store != nil {
		if err := c.store.Put(ctx, name, g); err != nil {
			c.logger.Warn("boundary store write failed", "locality", name, "error", err)
		}
	}
	return g, nil
}

func (c *Cache) remember(name string, g Geometry) {
	c.mu.Lock()
	c.memo[name] = g
	c.mu.Unlock()
}
