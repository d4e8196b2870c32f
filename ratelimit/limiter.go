package ratelimit

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// window is the sliding window length requests are counted over.
const window = time.Minute

// LimiterConfig represents the configuration for the rate limiter.
type LimiterConfig struct {
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Limiter enforces per-provider requests-per-minute ceilings using sliding
// windows of request timestamps. All state is owned behind a single mutex
// and shared by every concurrent caller of a provider.
type Limiter struct {
	cfg     *LimiterConfig
	mtx     sync.Mutex
	budgets map[string]int
	windows map[string][]time.Time

	now   func() time.Time
	sleep func(time.Duration)
}

// NewLimiter initializes a new rate limiter.
func NewLimiter(cfg *LimiterConfig) *Limiter {
	return &Limiter{
		cfg:     cfg,
		budgets: make(map[string]int),
		windows: make(map[string][]time.Time),
		now:     time.Now,
		sleep:   time.Sleep,
	}
}

// SetBudget registers the requests-per-minute ceiling for the provided
// provider. Providers without a registered budget are not limited.
func (l *Limiter) SetBudget(provider string, requestsPerMinute int) {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	l.budgets[provider] = requestsPerMinute
}

// prune drops window entries older than the sliding window. Callers must
// hold the limiter mutex.
func (l *Limiter) prune(provider string, now time.Time) {
	entries := l.windows[provider]
	idx := 0
	for idx < len(entries) && now.Sub(entries[idx]) >= window {
		idx++
	}

	if idx > 0 {
		l.windows[provider] = append(entries[:0:0], entries[idx:]...)
	}
}

// Wait blocks until the provided provider has budget for one more request,
// then consumes one unit of it.
func (l *Limiter) Wait(provider string) {
	for {
		l.mtx.Lock()

		now := l.now()
		l.prune(provider, now)

		budget, limited := l.budgets[provider]
		if !limited || len(l.windows[provider]) < budget {
			l.windows[provider] = append(l.windows[provider], now)
			l.mtx.Unlock()
			return
		}

		// The window is full, sleep until the oldest entry falls out of it.
		oldest := l.windows[provider][0]
		delay := window - now.Sub(oldest)
		l.mtx.Unlock()

		if l.cfg.Logger != nil {
			l.cfg.Logger.Debug().Msgf("rate limit reached for %s (%d/min), backing off %s",
				provider, budget, delay)
		}

		l.sleep(delay)
	}
}
