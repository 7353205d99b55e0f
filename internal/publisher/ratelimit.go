package publisher

import (
	"sync"
	"time"
)

// DefaultInterval 兩次一般發佈之間的最小間隔
const DefaultInterval = 500 * time.Millisecond

// RateLimiter admits one publish per Interval.
//
// The first call to Allow always succeeds; the interval starts from the
// last admitted call.
type RateLimiter struct {
	Interval time.Duration
	Now      func() time.Time // nil 時使用 time.Now

	mu      sync.Mutex
	last    time.Time
	started bool
}

// NewRateLimiter returns a limiter; a non-positive interval uses DefaultInterval.
func NewRateLimiter(interval time.Duration) *RateLimiter {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &RateLimiter{Interval: interval}
}

func (r *RateLimiter) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Allow reports whether a publish may happen now and, if so, starts a new
// interval.
func (r *RateLimiter) Allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if r.started && now.Sub(r.last) < r.Interval {
		return false
	}
	r.last = now
	r.started = true
	return true
}

// Reset forgets the last admitted publish.
func (r *RateLimiter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = false
	r.last = time.Time{}
}
