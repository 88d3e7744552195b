package extractor

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/memohai/stowbot/internal/formats"
)

type cachedCatalog struct {
	catalog   formats.Catalog
	expiresAt time.Time
}

// CatalogCache memoizes successful probes per URL and collapses concurrent
// probes of the same URL into one extractor call. Failures are not cached.
// The shared probe runs detached from any single caller, bounded by
// probeTimeout, so one caller giving up does not fail the others.
type CatalogCache struct {
	inner        Extractor
	ttl          time.Duration
	probeTimeout time.Duration
	now          func() time.Time

	group singleflight.Group

	mu      sync.Mutex
	entries map[string]cachedCatalog
}

var _ Extractor = (*CatalogCache)(nil)

func NewCatalogCache(inner Extractor, ttl, probeTimeout time.Duration) *CatalogCache {
	return &CatalogCache{
		inner:        inner,
		ttl:          ttl,
		probeTimeout: probeTimeout,
		now:          time.Now,
		entries:      map[string]cachedCatalog{},
	}
}

func (c *CatalogCache) Probe(ctx context.Context, url string) (formats.Catalog, error) {
	if catalog, ok := c.lookup(url); ok {
		return catalog, nil
	}
	ch := c.group.DoChan(url, func() (any, error) {
		if catalog, ok := c.lookup(url); ok {
			return catalog, nil
		}
		pctx, cancel := c.probeContext(ctx)
		defer cancel()
		catalog, err := c.inner.Probe(pctx, url)
		if err != nil {
			return formats.Catalog{}, err
		}
		if c.ttl > 0 {
			c.mu.Lock()
			c.entries[url] = cachedCatalog{catalog: catalog, expiresAt: c.now().Add(c.ttl)}
			c.mu.Unlock()
		}
		return catalog, nil
	})
	select {
	case <-ctx.Done():
		return formats.Catalog{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return formats.Catalog{}, res.Err
		}
		return res.Val.(formats.Catalog), nil
	}
}

func (c *CatalogCache) probeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if c.probeTimeout > 0 {
		return context.WithTimeout(detached, c.probeTimeout)
	}
	return context.WithCancel(detached)
}

func (c *CatalogCache) Fetch(ctx context.Context, url string, step formats.Step, destBase string) error {
	return c.inner.Fetch(ctx, url, step, destBase)
}

func (c *CatalogCache) lookup(url string) (formats.Catalog, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[url]
	if !ok {
		return formats.Catalog{}, false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, url)
		return formats.Catalog{}, false
	}
	return e.catalog, true
}

// Sweep drops expired entries and returns how many were removed.
func (c *CatalogCache) Sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for url, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, url)
			n++
		}
	}
	return n
}

// Len returns the number of cached catalogs, expired or not.
func (c *CatalogCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
