package platform

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/raphi011/gitgrip/internal/log"
)

// maxRateLimitWait bounds how long a request waits for an exhausted
// budget to reset. Longer resets let the request through to fail with a
// rate-limit error instead of stalling the command.
const maxRateLimitWait = time.Minute

// RateLimitInfo is the last known rate-limit state of an adapter.
type RateLimitInfo struct {
	Limit     *int       `json:"limit,omitempty"`
	Remaining *int       `json:"remaining,omitempty"`
	Reset     *time.Time `json:"reset,omitempty"`
}

// rateHeaders names the vendor headers carrying rate-limit state.
// Reset values are Unix timestamps.
type rateHeaders struct {
	limit, remaining, reset string
}

var (
	githubRateHeaders = rateHeaders{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"}
	gitlabRateHeaders = rateHeaders{"RateLimit-Limit", "RateLimit-Remaining", "RateLimit-Reset"}
)

// rateLimitTracker tracks rate limit state from response headers and
// blocks before a request while the budget is exhausted.
type rateLimitTracker struct {
	mu      sync.Mutex
	headers rateHeaders
	info    RateLimitInfo
	clock   clockwork.Clock
}

func newRateLimitTracker(clock clockwork.Clock, headers rateHeaders) *rateLimitTracker {
	return &rateLimitTracker{clock: clock, headers: headers}
}

// update records rate limit state from HTTP response headers. Called
// after every API response. Headers that are absent keep their old value.
func (t *rateLimitTracker) update(header http.Header) {
	if header == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if v, ok := headerInt(header, t.headers.limit); ok {
		t.info.Limit = &v
	}
	if v, ok := headerInt(header, t.headers.remaining); ok {
		t.info.Remaining = &v
	}
	if v, ok := headerInt(header, t.headers.reset); ok {
		reset := time.Unix(int64(v), 0)
		t.info.Reset = &reset
	}
}

// snapshot returns a copy of the current state.
func (t *rateLimitTracker) snapshot() RateLimitInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.info
}

// wait blocks until the rate limit window resets if the tracker knows
// the limit is exhausted. Returns immediately if the limit is not
// exhausted, not yet known, the reset time has passed, or the reset is
// further away than maxRateLimitWait.
//
// Returns an error only if the context is cancelled while waiting.
func (t *rateLimitTracker) wait(ctx context.Context) error {
	t.mu.Lock()
	if t.info.Remaining == nil || *t.info.Remaining > 0 || t.info.Reset == nil {
		t.mu.Unlock()
		return nil
	}
	sleep := t.info.Reset.Sub(t.clock.Now())
	t.mu.Unlock()

	if sleep <= 0 {
		return nil
	}
	if sleep > maxRateLimitWait {
		log.FromContext(ctx).Debug("rate limit exhausted, not waiting", "reset_in", sleep.Round(time.Second))
		return nil
	}

	log.FromContext(ctx).Debug("rate limit exhausted, waiting", "wait", sleep.Round(time.Second))
	select {
	case <-t.clock.After(sleep):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// retryAfter computes the backoff from a rate-limited response: the
// Retry-After header first, then the reset timestamp. Zero if unknown.
func (t *rateLimitTracker) retryAfter(header http.Header) time.Duration {
	if seconds, ok := headerInt(header, "Retry-After"); ok && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if reset, ok := headerInt(header, t.headers.reset); ok {
		if d := time.Unix(int64(reset), 0).Sub(t.clock.Now()); d > 0 {
			return d
		}
	}
	return 0
}

func headerInt(header http.Header, name string) (int, bool) {
	s := header.Get(name)
	if s == "" {
		return 0, false
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return v, true
}
