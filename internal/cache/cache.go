// Package cache memoises guideline edits so an identical edit request does
// not reach the model twice.
package cache

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/tjfontaine/uxcritique/internal/domain"
)

// Key identifies an edit by its exact inputs.
type Key struct {
	Update     string
	Guidelines string
}

// flightKey joins the key fields for singleflight. The length prefix keeps
// distinct pairs distinct whatever they contain.
func (k Key) flightKey() string {
	return strconv.Itoa(len(k.Update)) + ":" + k.Update + k.Guidelines
}

// Stats reports cache activity.
type Stats struct {
	Hits   int64
	Misses int64
	Len    int
}

// GuidelineCache is a bounded, optionally expiring cache of guideline edits.
// Concurrent misses for the same key share one computation.
type GuidelineCache struct {
	lru    *expirable.LRU[Key, domain.GuidelineEdit]
	flight singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a cache holding at most size entries. A ttl of zero keeps
// entries until they are evicted by size.
func New(size int, ttl time.Duration) *GuidelineCache {
	return &GuidelineCache{
		lru: expirable.NewLRU[Key, domain.GuidelineEdit](size, nil, ttl),
	}
}

// Get returns the cached edit for key.
func (c *GuidelineCache) Get(key Key) (domain.GuidelineEdit, bool) {
	return c.lru.Get(key)
}

// GetOrCompute returns the cached edit for key, or runs compute and caches a
// successful result. hit reports whether the value came from the cache.
// Errors are not cached. The shared computation is detached from the
// cancellation of whichever caller started it; each caller stops waiting
// when its own ctx ends.
func (c *GuidelineCache) GetOrCompute(ctx context.Context, key Key, compute func(context.Context) (domain.GuidelineEdit, error)) (edit domain.GuidelineEdit, hit bool, err error) {
	if v, ok := c.lru.Get(key); ok {
		c.hits.Add(1)
		return v, true, nil
	}

	computeCtx := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(key.flightKey(), func() (any, error) {
		if v, ok := c.lru.Get(key); ok {
			return v, nil
		}
		c.misses.Add(1)
		v, err := compute(computeCtx)
		if err != nil {
			return nil, err
		}
		c.lru.Add(key, v)
		return v, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return domain.GuidelineEdit{}, false, res.Err
		}
		return res.Val.(domain.GuidelineEdit), false, nil
	case <-ctx.Done():
		return domain.GuidelineEdit{}, false, ctx.Err()
	}
}

// Stats returns hit and miss counters and the current size.
func (c *GuidelineCache) Stats() Stats {
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Len:    c.lru.Len(),
	}
}
