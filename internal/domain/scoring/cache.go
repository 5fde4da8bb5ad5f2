package scoring

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// defaultLoadCooldown is how long a failed bundle load is remembered before
// another load attempt is allowed.
const defaultLoadCooldown = 30 * time.Second

// BundleCache maps model versions to loaded bundles for the life of the
// process. It is built once at startup and passed by reference to the
// scoring engine; at most one disk load runs per version, with concurrent
// first-callers waiting on that load. Load failures are remembered for a
// cooldown so a broken bundle path is not hammered on every solve.
type BundleCache struct {
	dir      string
	cooldown time.Duration

	mu       sync.RWMutex
	loaded   map[string]*Bundle
	failures map[string]failedLoad

	group singleflight.Group

	// now is swappable for tests.
	now func() time.Time
}

type failedLoad struct {
	err error
	at  time.Time
}

// CacheOption configures a BundleCache.
type CacheOption func(*BundleCache)

// WithLoadCooldown sets how long load failures are cached.
func WithLoadCooldown(d time.Duration) CacheOption {
	return func(c *BundleCache) {
		if d > 0 {
			c.cooldown = d
		}
	}
}

// NewBundleCache creates a cache over the bundle directory.
func NewBundleCache(dir string, opts ...CacheOption) *BundleCache {
	c := &BundleCache{
		dir:      dir,
		cooldown: defaultLoadCooldown,
		loaded:   make(map[string]*Bundle),
		failures: make(map[string]failedLoad),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the bundle for version, loading it from disk at most once.
// A recent load failure is returned directly until the cooldown expires.
func (c *BundleCache) Get(version string) (*Bundle, error) {
	c.mu.RLock()
	if b, ok := c.loaded[version]; ok {
		c.mu.RUnlock()
		return b, nil
	}
	if f, ok := c.failures[version]; ok && c.now().Sub(f.at) < c.cooldown {
		c.mu.RUnlock()
		return nil, f.err
	}
	c.mu.RUnlock()

	v, err, _ := c.group.Do(version, func() (any, error) {
		// Re-check under the flight; a racing caller may have finished.
		c.mu.RLock()
		if b, ok := c.loaded[version]; ok {
			c.mu.RUnlock()
			return b, nil
		}
		c.mu.RUnlock()

		b, err := LoadBundle(c.dir, version)
		c.mu.Lock()
		defer c.mu.Unlock()
		if err != nil {
			c.failures[version] = failedLoad{err: err, at: c.now()}
			return nil, err
		}
		c.loaded[version] = b
		delete(c.failures, version)
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Bundle), nil
}

// Loaded reports whether version is already resident.
func (c *BundleCache) Loaded(version string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.loaded[version]
	return ok
}
