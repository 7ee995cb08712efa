// Package userinfo holds the shared, read-mostly account summary that many
// parts of the dashboard consult (whether credentials are present, whether
// form filling is active).
//
// There is one [Cache] per application, passed by reference. Writers that
// change the underlying account call [Cache.Invalidate]; the next
// [Cache.Get] refetches.
package userinfo

import (
	"context"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/nffu/fenetre/internal/lockbox"
)

// Fetcher loads a fresh account summary.
type Fetcher func(ctx context.Context) (lockbox.UserInfo, error)

// Cache memoizes the result of a [Fetcher] until invalidated.
//
// Concurrent Get calls on an empty cache share one fetch. A fetch that was
// started before an Invalidate is returned to its callers but not cached.
type Cache struct {
	fetch Fetcher
	group singleflight.Group

	mu         sync.RWMutex
	info       lockbox.UserInfo
	valid      bool
	generation uint64
}

// New creates an empty [Cache].
func New(fetch Fetcher) *Cache {
	return &Cache{fetch: fetch}
}

// Get returns the cached summary, fetching it first if needed.
// Errors are not cached.
func (c *Cache) Get(ctx context.Context) (lockbox.UserInfo, error) {
	c.mu.RLock()
	if c.valid {
		info := c.info
		c.mu.RUnlock()
		return info, nil
	}
	gen := c.generation
	c.mu.RUnlock()

	// keyed by generation so a caller after Invalidate never joins an older fetch
	v, err, _ := c.group.Do(strconv.FormatUint(gen, 10), func() (any, error) {
		info, err := c.fetch(ctx)
		if err != nil {
			return lockbox.UserInfo{}, err
		}

		c.mu.Lock()
		if c.generation == gen {
			c.info = info
			c.valid = true
		}
		c.mu.Unlock()
		return info, nil
	})
	if err != nil {
		return lockbox.UserInfo{}, err
	}
	return v.(lockbox.UserInfo), nil
}

// Invalidate drops the cached summary.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.valid = false
	c.generation++
}
