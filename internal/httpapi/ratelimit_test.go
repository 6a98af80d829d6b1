package httpapi

import (
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/oceanic-wellbeing/sync-core/internal/config"
)

func TestRateLimitMiddleware_TripsAfterBurstExhausted(t *testing.T) {
	s := newTestServer()
	s.RateLimit = config.RateLimitConfig{RequestsPerMinute: 60, Burst: 2}
	r := s.Routes()

	tenantID, userID := uuid.New(), uuid.New()
	deviceID := uuid.New().String()

	var lastCode int
	for i := 0; i < 3; i++ {
		req := authedRequest(t, "GET", "/api/sync/status?deviceId="+deviceID, nil, tenantID, userID, "crew")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		lastCode = w.Code
	}

	if lastCode != 429 {
		t.Errorf("status after exhausting burst = %d, want 429", lastCode)
	}
}

func TestRateLimitMiddleware_IsolatesBucketsPerPrincipal(t *testing.T) {
	s := newTestServer()
	s.RateLimit = config.RateLimitConfig{RequestsPerMinute: 60, Burst: 1}
	r := s.Routes()

	tenantA, tenantB := uuid.New(), uuid.New()
	deviceID := uuid.New().String()

	reqA := authedRequest(t, "GET", "/api/sync/status?deviceId="+deviceID, nil, tenantA, uuid.New(), "crew")
	wA := httptest.NewRecorder()
	r.ServeHTTP(wA, reqA)
	if wA.Code != 200 {
		t.Fatalf("first request for tenant A status = %d, want 200", wA.Code)
	}

	reqB := authedRequest(t, "GET", "/api/sync/status?deviceId="+deviceID, nil, tenantB, uuid.New(), "crew")
	wB := httptest.NewRecorder()
	r.ServeHTTP(wB, reqB)
	if wB.Code != 200 {
		t.Errorf("first request for tenant B status = %d, want 200 (independent bucket)", wB.Code)
	}
}
