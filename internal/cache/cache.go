package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/raphi011/gitgrip/internal/git"
)

// DefaultTTL is how long a status stays valid.
const DefaultTTL = 5 * time.Second

type entry struct {
	status     git.StatusInfo
	insertedAt time.Time
}

// StatusCache maps absolute repo paths to their last computed status.
type StatusCache struct {
	mu      sync.Mutex
	clock   clockwork.Clock
	ttl     time.Duration
	entries map[string]entry
}

// New creates an empty cache. A nil clock uses the real clock and a
// non-positive ttl uses DefaultTTL.
func New(ttl time.Duration, clock clockwork.Clock) *StatusCache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &StatusCache{clock: clock, ttl: ttl, entries: make(map[string]entry)}
}

var (
	sharedOnce sync.Once
	shared     *StatusCache
)

// Shared returns the process-wide cache, creating it on first use.
func Shared() *StatusCache {
	sharedOnce.Do(func() { shared = New(DefaultTTL, nil) })
	return shared
}

// SetTTL changes the validity window of future lookups.
func (c *StatusCache) SetTTL(ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ttl = ttl
}

// Get returns the cached status of path when it is younger than the TTL.
func (c *StatusCache) Get(path string) (git.StatusInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[path]
	if !ok {
		return git.StatusInfo{}, false
	}
	if c.clock.Since(e.insertedAt) >= c.ttl {
		delete(c.entries, path)
		return git.StatusInfo{}, false
	}
	return e.status, true
}

// Put records status for path.
func (c *StatusCache) Put(path string, status git.StatusInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[path] = entry{status: status, insertedAt: c.clock.Now()}
}

// Invalidate drops the entry of path.
func (c *StatusCache) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, path)
}

// Clear drops every entry.
func (c *StatusCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

// Len returns the number of entries, expired ones included.
func (c *StatusCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Status returns the cached status of path or computes and caches it.
func (c *StatusCache) Status(ctx context.Context, path, defaultBranch string) (git.StatusInfo, error) {
	if st, ok := c.Get(path); ok {
		return st, nil
	}
	st, err := git.Status(ctx, path, defaultBranch)
	if err != nil {
		return git.StatusInfo{}, err
	}
	c.Put(path, st)
	return st, nil
}
