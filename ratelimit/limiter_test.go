package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/rs/zerolog"
)

// fakeClock provides a controllable clock for limiter tests.
type fakeClock struct {
	mtx sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(clock *fakeClock) *Limiter {
	logger := zerolog.Nop()
	limiter := NewLimiter(&LimiterConfig{Logger: &logger})
	limiter.now = clock.Now
	limiter.sleep = func(d time.Duration) { clock.Advance(d) }
	return limiter
}

func TestLimiterWithinBudget(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	limiter := newTestLimiter(clock)
	limiter.SetBudget("binance", 3)

	// Requests within budget proceed without any backoff.
	for idx := 0; idx < 3; idx++ {
		limiter.Wait("binance")
	}
	assert.Equal(t, clock.Now(), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
}

func TestLimiterBlocksAtBudget(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: start}
	limiter := newTestLimiter(clock)
	limiter.SetBudget("alphavantage", 2)

	limiter.Wait("alphavantage")
	clock.Advance(time.Second * 10)
	limiter.Wait("alphavantage")

	// The third request must wait until the first entry leaves the window.
	limiter.Wait("alphavantage")
	if clock.Now().Before(start.Add(time.Minute)) {
		t.Errorf("expected backoff past %v, got %v", start.Add(time.Minute), clock.Now())
	}
}

func TestLimiterPrunesExpiredEntries(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	limiter := newTestLimiter(clock)
	limiter.SetBudget("coingecko", 1)

	limiter.Wait("coingecko")
	clock.Advance(time.Minute + time.Second)

	// The window emptied, so the next request proceeds immediately.
	before := clock.Now()
	limiter.Wait("coingecko")
	assert.Equal(t, clock.Now(), before)
}

func TestLimiterUnregisteredProvider(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	limiter := newTestLimiter(clock)

	// Providers without a budget are unlimited.
	before := clock.Now()
	for idx := 0; idx < 100; idx++ {
		limiter.Wait("unbudgeted")
	}
	assert.Equal(t, clock.Now(), before)
}
