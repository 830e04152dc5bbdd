package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outreach-mate/outreach-cli/internal/resilience"
)

func newTestClient(rps float64, retries int) *RateLimitedClient {
	return NewRateLimitedClient(Options{
		RequestsPerSecond: rps,
		Burst:             int(rps) + 1,
		MaxRetries:        retries,
		Timeout:           5 * time.Second,
	})
}

func TestGetSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "OutreachMate")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><body>hello</body></html>"))
	}))
	defer srv.Close()

	client := newTestClient(100, 3)
	page, err := client.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Contains(t, page.Body, "hello")
	assert.True(t, page.IsHTML())
}

func TestGetRetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := newTestClient(1000, 5)
	page, err := client.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, "ok", page.Body)
}

func TestGetRetriesAfterRateLimitAndTunesDown(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := newTestClient(1000, 3)
	page, err := client.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "ok", page.Body)

	// The 429 halved the host budget, then the success raised it 20%.
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	assert.InDelta(t, 600.0, float64(client.limiterFor(u.Host).Limit()), 0.001)
}

func TestGetPermanentStatusNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := newTestClient(1000, 5)
	_, err := client.Get(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, resilience.IsPermanent(err))
	assert.False(t, resilience.IsTransient(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := newTestClient(1000, 2)
	_, err := client.Get(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetInvalidURL(t *testing.T) {
	client := newTestClient(1000, 1)
	_, err := client.Get(context.Background(), "not a url")
	require.Error(t, err)
	assert.True(t, resilience.IsPermanent(err))
}

func TestGetBodyCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for i := 0; i < 1000; i++ {
			w.Write([]byte("0123456789"))
		}
	}))
	defer srv.Close()

	client := NewRateLimitedClient(Options{
		RequestsPerSecond: 1000,
		MaxRetries:        1,
		MaxBodyBytes:      100,
	})
	page, err := client.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, page.Body, 100)
}

func TestGetContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	// Drained bucket with a slow refill forces Wait to block until the
	// context expires.
	client := newTestClient(0.01, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Get(ctx, srv.URL)
	require.NoError(t, err) // first request rides the initial burst token

	_, err = client.Get(ctx, srv.URL)
	require.Error(t, err)
}

func TestPerHostLimitersAreIndependent(t *testing.T) {
	client := newTestClient(1, 3)
	a := client.limiterFor("a.example.com")
	b := client.limiterFor("b.example.com")
	assert.NotSame(t, a, b)
	assert.Same(t, a, client.limiterFor("a.example.com"))
}

func TestAdaptiveLimiterTunes(t *testing.T) {
	lim := NewAdaptiveLimiter(10, 10)

	lim.OnRateLimit()
	assert.InDelta(t, 5.0, float64(lim.Limit()), 0.001)

	// Repeated 429s bottom out at a quarter of the initial rate.
	for i := 0; i < 10; i++ {
		lim.OnRateLimit()
	}
	assert.InDelta(t, 2.5, float64(lim.Limit()), 0.001)

	// Successes climb back, capped at double the initial rate.
	for i := 0; i < 30; i++ {
		lim.OnSuccess()
	}
	assert.InDelta(t, 20.0, float64(lim.Limit()), 0.001)
}

func TestRateLimitSpacesRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := NewRateLimitedClient(Options{
		RequestsPerSecond: 20,
		Burst:             1,
		MaxRetries:        1,
	})

	start := time.Now()
	for i := 0; i < 4; i++ {
		_, err := client.Get(context.Background(), srv.URL)
		require.NoError(t, err)
	}
	// Burst of 1 at 20 rps means three waits of about 50ms each.
	assert.GreaterOrEqual(t, time.Since(start), 120*time.Millisecond)
}
