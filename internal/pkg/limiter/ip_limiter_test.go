package limiter

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestMiddlewareLimitsPerIP(t *testing.T) {
	rl := NewIPRateLimiter(rate.Limit(0.1), 2)

	handled := 0
	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handled++
		w.WriteHeader(http.StatusOK)
	}))

	do := func(remoteAddr string) int {
		r := httptest.NewRequest("POST", "/api/presence/heartbeat", nil)
		r.RemoteAddr = remoteAddr
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		return w.Code
	}

	// the burst is consumed, then the same IP is rejected
	assert.Equal(t, http.StatusOK, do("10.0.0.1:1234"))
	assert.Equal(t, http.StatusOK, do("10.0.0.1:1234"))
	assert.Equal(t, http.StatusTooManyRequests, do("10.0.0.1:1234"))

	// a different IP has its own bucket
	assert.Equal(t, http.StatusOK, do("10.0.0.2:1234"))

	assert.Equal(t, 3, handled)
}

func TestGetLimiterReusesPerIPInstance(t *testing.T) {
	rl := NewIPRateLimiter(rate.Limit(1), 1)

	assert.Same(t, rl.GetLimiter("10.0.0.1"), rl.GetLimiter("10.0.0.1"))
	assert.NotSame(t, rl.GetLimiter("10.0.0.1"), rl.GetLimiter("10.0.0.2"))
}
