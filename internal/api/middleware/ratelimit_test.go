package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Fairlead-Analytics/riskserver/internal/config"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestPublicRateLimit_BlocksAfterLimit(t *testing.T) {
	cfg := config.RateLimitConfig{
		PublicPerMinute: 2,
	}

	handler := RateLimit(cfg)(okHandler())

	clientIP := "192.168.1.102:12345"

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/companies", nil)
		req.RemoteAddr = clientIP
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)

		if res.Code != http.StatusOK {
			t.Fatalf("request %d: expected status 200, got %d", i+1, res.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/companies", nil)
	req.RemoteAddr = clientIP
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", res.Code)
	}

	retryAfter := res.Header().Get("Retry-After")
	if retryAfter != "60" {
		t.Errorf("expected Retry-After header to be 60, got %s", retryAfter)
	}
}

func TestUploadTier_LimitedIndependently(t *testing.T) {
	cfg := config.RateLimitConfig{
		PublicPerMinute: 100,
		UploadPerMinute: 1,
	}

	handler := RateLimit(cfg)(okHandler())

	clientIP := "192.168.1.103:12345"

	req := httptest.NewRequest(http.MethodPost, "/api/v1/predictions/batches", nil)
	req.RemoteAddr = clientIP
	req = req.WithContext(WithRateLimitTier(req.Context(), TierUpload))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("first upload: expected status 200, got %d", res.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/predictions/batches", nil)
	req.RemoteAddr = clientIP
	req = req.WithContext(WithRateLimitTier(req.Context(), TierUpload))
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusTooManyRequests {
		t.Fatalf("second upload: expected status 429, got %d", res.Code)
	}

	// Public requests from the same client keep their own bucket.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/companies", nil)
	req.RemoteAddr = clientIP
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("public request should not share the upload bucket, got %d", res.Code)
	}
}

func TestRateLimit_PerIPIsolation(t *testing.T) {
	cfg := config.RateLimitConfig{
		PublicPerMinute: 1,
	}

	handler := RateLimit(cfg)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/companies", nil)
	req.RemoteAddr = "192.168.1.100:12345"
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/companies", nil)
	req.RemoteAddr = "192.168.1.200:54321"
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("different IP should not be rate limited, got status %d", res.Code)
	}
}

func TestRateLimit_DisabledWhenZero(t *testing.T) {
	cfg := config.RateLimitConfig{
		PublicPerMinute: 0,
	}

	handler := RateLimit(cfg)(okHandler())

	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/companies", nil)
		req.RemoteAddr = "192.168.1.100:12345"
		res := httptest.NewRecorder()

		handler.ServeHTTP(res, req)

		if res.Code != http.StatusOK {
			t.Fatalf("request %d: disabled rate limit should allow all, got status %d", i+1, res.Code)
		}
	}
}

func TestRateLimit_HealthCheckExempt(t *testing.T) {
	cfg := config.RateLimitConfig{
		PublicPerMinute: 1,
	}

	handler := RateLimit(cfg)(okHandler())

	for i := 0; i < 100; i++ {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = "192.168.1.100:12345"
		res := httptest.NewRecorder()

		handler.ServeHTTP(res, req)

		if res.Code != http.StatusOK {
			t.Fatalf("healthz should never be rate limited, got status %d", res.Code)
		}
	}
}

func TestClientKey_IgnoresForwardingFromUntrustedPeer(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:12345"
	req.Header.Set("X-Forwarded-For", "203.0.113.45, 198.51.100.1")

	key := clientKey(req, nil)
	if key != "10.0.0.1" {
		t.Errorf("expected direct peer IP when no proxies are trusted, got %s", key)
	}
}

func TestClientKey_TrustsForwardingFromTrustedProxy(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:12345"
	req.Header.Set("X-Forwarded-For", "203.0.113.45, 198.51.100.1")

	key := clientKey(req, []string{"10.0.0.0/8"})
	if key != "203.0.113.45" {
		t.Errorf("expected first X-Forwarded-For IP, got %s", key)
	}
}

func TestClientKey_XRealIPFromTrustedProxy(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:12345"
	req.Header.Set("X-Real-IP", "203.0.113.45")

	key := clientKey(req, []string{"10.0.0.0/8"})
	if key != "203.0.113.45" {
		t.Errorf("expected X-Real-IP, got %s", key)
	}
}

func TestClientKey_FallsBackToRemoteAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.100:12345"

	key := clientKey(req, nil)
	if key != "192.168.1.100" {
		t.Errorf("expected RemoteAddr host, got %s", key)
	}
}

func TestWithRateLimitTierHandler_SetsContextValue(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	res := httptest.NewRecorder()

	handler := WithRateLimitTierHandler(TierUpload)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tier, ok := r.Context().Value(rateLimitTierKey).(RateLimitTier)
		if !ok {
			t.Fatal("tier not set in context")
		}
		if tier != TierUpload {
			t.Errorf("expected TierUpload, got %s", tier)
		}
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("handler failed with status %d", res.Code)
	}
}

func BenchmarkRateLimit_Allow(b *testing.B) {
	cfg := config.RateLimitConfig{
		PublicPerMinute: 1000,
	}

	handler := RateLimit(cfg)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/companies", nil)
	req.RemoteAddr = "192.168.1.100:12345"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
	}
}
