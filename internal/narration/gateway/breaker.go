package gateway

import (
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

var (
	errCoolingDown     = errors.New("provider cooling down after repeated failures")
	errBudgetExhausted = errors.New("provider request budget exhausted")
)

// breaker keeps a failing or over-budget provider out of the fallback chain
// for a while so the next provider is tried without waiting.
type breaker struct {
	threshold int
	cooldown  time.Duration
	limiter   *rate.Limiter
	now       func() time.Time

	mu        sync.Mutex
	failures  int
	openUntil time.Time
}

func newBreaker(opts Options, now func() time.Time) *breaker {
	b := &breaker{
		threshold: opts.FailureThreshold,
		cooldown:  opts.Cooldown,
		now:       now,
	}
	if opts.RequestsPerMinute > 0 {
		b.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), opts.RequestsPerMinute)
	}
	return b
}

// allow reports whether the provider may be called now. It never blocks.
func (b *breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if now.Before(b.openUntil) {
		return errCoolingDown
	}
	if b.limiter != nil && !b.limiter.AllowN(now, 1) {
		return errBudgetExhausted
	}
	return nil
}

func (b *breaker) success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
}

// failure records a failed call and reports whether it opened the breaker.
func (b *breaker) failure() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	if b.threshold <= 0 || b.failures < b.threshold {
		return false
	}
	b.failures = 0
	b.openUntil = b.now().Add(b.cooldown)
	return true
}
