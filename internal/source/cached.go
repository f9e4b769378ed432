package source

import (
	"context"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"tracker/internal/cache"
	"tracker/internal/core"
)

// Cached memoizes successful loads per location for the cache TTL.
// Concurrent misses for the same location share one underlying load.
// Failures are never stored.
type Cached struct {
	next   Loader
	cache  *cache.LRUCache[core.Workbook]
	group  singleflight.Group
	logger *slog.Logger
}

// NewCached wraps next with c.
func NewCached(next Loader, c *cache.LRUCache[core.Workbook], logger *slog.Logger) *Cached {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cached{next: next, cache: c, logger: logger}
}

func (c *Cached) Load(ctx context.Context, location string) (core.Workbook, error) {
	if wb, ok := c.cache.Get(location); ok {
		c.logger.DebugContext(ctx, "Workbook cache hit", "location", location)
		return wb, nil
	}

	v, err, shared := c.group.Do(location, func() (any, error) {
		if wb, ok := c.cache.Get(location); ok {
			return wb, nil
		}
		wb, err := c.next.Load(ctx, location)
		if err != nil {
			return nil, err
		}
		c.cache.Set(location, wb)
		return wb, nil
	})
	if err != nil {
		return nil, err
	}
	c.logger.DebugContext(ctx, "Workbook cache miss", "location", location, "shared", shared)
	return v.(core.Workbook), nil
}

// Entry exposes the cached entry for location, if fresh.
func (c *Cached) Entry(location string) (cache.Entry[core.Workbook], bool) {
	return c.cache.Lookup(location)
}

// Invalidate drops the cached workbook for location.
func (c *Cached) Invalidate(location string) {
	c.cache.Delete(location)
	c.group.Forget(location)
}

func (c *Cached) Describe() string {
	return c.next.Describe() + " (cached)"
}
