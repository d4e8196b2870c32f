package fetch

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dnldd/marketdata/ratelimit"
	"github.com/peterldowns/testy/assert"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

func testLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

func testLimiter() *ratelimit.Limiter {
	return ratelimit.NewLimiter(&ratelimit.LimiterConfig{Logger: testLogger()})
}

func newTestClient(provider string) *client {
	c := newClient(provider, time.Second*5, testLimiter(), 2, testLogger())
	c.sleep = func(time.Duration) {}
	return c
}

func TestFormURL(t *testing.T) {
	c := newTestClient("test")
	assert.Equal(t, c.formURL("http://base", "/path", "a=bbb&b=ccc"), "http://base/path?a=bbb&b=ccc")
	assert.Equal(t, c.formURL("http://base", "/path", ""), "http://base/path")
}

func TestGetJSONRetriesTransientFailures(t *testing.T) {
	var calls int
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Write([]byte(`{"ok":true}`))
	}))
	defer svr.Close()

	c := newTestClient("test")
	body, err := c.getJSON(context.Background(), svr.URL)
	assert.NoError(t, err)
	assert.Equal(t, calls, 3)
	assert.True(t, gjson.GetBytes(body, "ok").Bool())
}

func TestGetJSONFailsFastOnClientErrors(t *testing.T) {
	var calls int
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer svr.Close()

	c := newTestClient("test")
	_, err := c.getJSON(context.Background(), svr.URL)
	assert.Error(t, err)
	assert.Equal(t, calls, 1)
}

func TestGetJSONExhaustsRetries(t *testing.T) {
	var calls int
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer svr.Close()

	c := newTestClient("test")
	_, err := c.getJSON(context.Background(), svr.URL)
	assert.Error(t, err)
	// The initial attempt plus the configured retries.
	assert.Equal(t, calls, 3)
}

func TestNumFieldMissingResolvesToNaN(t *testing.T) {
	payload := gjson.Parse(`{"open":10,"close":null}`)

	assert.Equal(t, numField(payload, "open"), float64(10))
	assert.True(t, math.IsNaN(numField(payload, "close")))
	assert.True(t, math.IsNaN(numField(payload, "high")))
}

func TestNumAtMissingResolvesToNaN(t *testing.T) {
	row := gjson.Parse(`[1,null]`).Array()

	assert.Equal(t, numAt(row, 0), float64(1))
	assert.True(t, math.IsNaN(numAt(row, 1)))
	assert.True(t, math.IsNaN(numAt(row, 2)))
}
