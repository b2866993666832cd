package gate

import (
	"time"
)

type RateLimitConfig struct {
	Ceiling int
	Window  time.Duration
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Ceiling: 10,
		Window:  time.Minute,
	}
}

// RateLimiter admits at most Ceiling requests within any trailing Window,
// independent of frame content. Owned by a single session loop.
type RateLimiter struct {
	cfg    RateLimitConfig
	stamps []time.Time
	now    func() time.Time
}

func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.Ceiling <= 0 {
		cfg.Ceiling = DefaultRateLimitConfig().Ceiling
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultRateLimitConfig().Window
	}
	return &RateLimiter{
		cfg: cfg,
		now: time.Now,
	}
}

// TryAcquire expires aged entries from the front of the window, then admits
// the call if the remaining count is below the ceiling.
func (r *RateLimiter) TryAcquire() bool {
	now := r.now()
	r.expire(now)

	if len(r.stamps) >= r.cfg.Ceiling {
		return false
	}
	r.stamps = append(r.stamps, now)
	return true
}

// TimeUntilNextSlot is zero when a call would be admitted right now,
// otherwise the time until the oldest admitted entry ages out.
func (r *RateLimiter) TimeUntilNextSlot() time.Duration {
	now := r.now()
	r.expire(now)

	if len(r.stamps) < r.cfg.Ceiling {
		return 0
	}
	return r.stamps[0].Add(r.cfg.Window).Sub(now)
}

func (r *RateLimiter) Reset() {
	r.stamps = nil
}

func (r *RateLimiter) expire(now time.Time) {
	cutoff := now.Add(-r.cfg.Window)
	i := 0
	for i < len(r.stamps) && !r.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		r.stamps = append(r.stamps[:0], r.stamps[i:]...)
	}
}
