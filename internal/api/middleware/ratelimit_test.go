package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lingolab/vocab-srs/internal/api/shared"
	"github.com/stretchr/testify/assert"
)

func rateLimitedHandler(l *RateLimiter) http.Handler {
	return l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func requestAs(h http.Handler, userID int64) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/reviews/due", nil)
	if userID != 0 {
		req = req.WithContext(shared.WithUserID(req.Context(), userID))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiter_LimitsPerUser(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(1, 2, time.Minute)
	limiter.now = func() time.Time { return now }
	h := rateLimitedHandler(limiter)

	assert.Equal(t, http.StatusOK, requestAs(h, 1).Code)
	assert.Equal(t, http.StatusOK, requestAs(h, 1).Code)

	rec := requestAs(h, 1)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), `"retryable":true`)

	// Another user has an independent bucket.
	assert.Equal(t, http.StatusOK, requestAs(h, 2).Code)

	// Tokens refill with time.
	now = now.Add(time.Second)
	assert.Equal(t, http.StatusOK, requestAs(h, 1).Code)
}

func TestRateLimiter_PassesUnauthenticatedRequests(t *testing.T) {
	t.Parallel()

	limiter := NewRateLimiter(0.001, 1, time.Minute)
	h := rateLimitedHandler(limiter)
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, requestAs(h, 0).Code)
	}
}

func TestRateLimiter_EvictsIdleUsers(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(1, 1, time.Minute)
	limiter.now = func() time.Time { return now }

	limiter.limiterFor(1)
	limiter.limiterFor(2)
	assert.Len(t, limiter.visitors, 2)

	now = now.Add(2 * time.Minute)
	limiter.limiterFor(3)
	assert.Len(t, limiter.visitors, 1)
}

func TestRateLimiter_RetryAfterForSlowRates(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 4, NewRateLimiter(0.25, 1, 0).retryAfterSeconds())
	assert.Equal(t, 1, NewRateLimiter(50, 1, 0).retryAfterSeconds())
}
