package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Ycseeasy/explore-with-me/internal/auth"
	"github.com/Ycseeasy/explore-with-me/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func withClaims(req *http.Request, subject string, role auth.Role) *http.Request {
	claims := &auth.Claims{Role: string(role), RegisteredClaims: jwt.RegisteredClaims{Subject: subject}}
	return req.WithContext(ContextWithClaims(req.Context(), claims))
}

func TestRateLimitPublicTierBlocksAfterBurst(t *testing.T) {
	limiter := NewRateLimiter(config.RateLimitConfig{PublicPerMinute: 3}, "test")
	t.Cleanup(limiter.Stop)
	handler := limiter.Middleware(okHandler())

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/events/1", nil)
		req.RemoteAddr = "192.168.1.100:12345"
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		require.Equal(t, http.StatusOK, res.Code, "request %d", i+1)
	}

	req := httptest.NewRequest(http.MethodGet, "/events/1", nil)
	req.RemoteAddr = "192.168.1.100:54321"
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	require.Equal(t, http.StatusTooManyRequests, res.Code)
	require.Equal(t, "20", res.Header().Get("Retry-After"))
	require.Equal(t, "application/problem+json", res.Header().Get("Content-Type"))
}

func TestRateLimitIgnoresForwardedFor(t *testing.T) {
	limiter := NewRateLimiter(config.RateLimitConfig{PublicPerMinute: 1}, "test")
	t.Cleanup(limiter.Stop)
	handler := limiter.Middleware(okHandler())

	first := httptest.NewRequest(http.MethodGet, "/categories", nil)
	first.RemoteAddr = "10.0.0.1:1000"
	first.Header.Set("X-Forwarded-For", "1.1.1.1")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, first)
	require.Equal(t, http.StatusOK, res.Code)

	spoofed := httptest.NewRequest(http.MethodGet, "/categories", nil)
	spoofed.RemoteAddr = "10.0.0.1:1001"
	spoofed.Header.Set("X-Forwarded-For", "2.2.2.2")
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, spoofed)
	require.Equal(t, http.StatusTooManyRequests, res.Code)
}

func TestRateLimitKeysAuthenticatedBySubject(t *testing.T) {
	limiter := NewRateLimiter(config.RateLimitConfig{PublicPerMinute: 1, UserPerMinute: 1}, "test")
	t.Cleanup(limiter.Stop)
	handler := limiter.Middleware(okHandler())

	send := func(subject string) int {
		req := httptest.NewRequest(http.MethodGet, "/users/x/requests", nil)
		req.RemoteAddr = "10.0.0.9:5000"
		req = withClaims(req, subject, auth.RoleUser)
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		return res.Code
	}

	require.Equal(t, http.StatusOK, send("alice"))
	require.Equal(t, http.StatusOK, send("bob"))
	require.Equal(t, http.StatusTooManyRequests, send("alice"))
}

func TestRateLimitDisabledTierPasses(t *testing.T) {
	limiter := NewRateLimiter(config.RateLimitConfig{PublicPerMinute: 1}, "test")
	t.Cleanup(limiter.Stop)
	handler := limiter.Middleware(okHandler())

	for i := 0; i < 5; i++ {
		req := withClaims(httptest.NewRequest(http.MethodPatch, "/admin/events/1", nil), "root", auth.RoleAdmin)
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		require.Equal(t, http.StatusOK, res.Code)
	}
}

func TestLimiterStoreCleanupDropsIdleEntries(t *testing.T) {
	store := newLimiterStore(config.RateLimitConfig{PublicPerMinute: 10})
	t.Cleanup(store.Stop)

	require.NotNil(t, store.limiter(TierPublic, "a"))
	require.NotNil(t, store.limiter(TierPublic, "b"))
	require.Equal(t, 2, store.size())

	store.cleanup(time.Now().Add(limiterTTL + time.Minute))
	require.Equal(t, 0, store.size())

	store.Stop()
	store.Stop()
}
