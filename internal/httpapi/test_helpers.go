package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/oceanic-wellbeing/sync-core/internal/auth"
	"github.com/oceanic-wellbeing/sync-core/internal/config"
	"github.com/oceanic-wellbeing/sync-core/internal/metrics"
	"github.com/oceanic-wellbeing/sync-core/internal/store"
	"github.com/oceanic-wellbeing/sync-core/internal/syncengine"
	"github.com/rs/zerolog"
)

// newTestServer builds a Server wired to an in-memory Store, for tests that
// exercise the HTTP layer without a database.
func newTestServer() *Server {
	fake := store.NewFake()
	return &Server{
		Store:        fake,
		Orchestrator: syncengine.New(fake, syncengine.Config{}, zerolog.Nop()),
		Metrics:      metrics.New(),
		JWTCfg:       auth.JWTCfg{DevMode: true},
		RateLimit:    config.RateLimitConfig{RequestsPerMinute: 6000, Burst: 1000},
		MaxBodyBytes: 5 << 20,
	}
}

// authedRequest builds an httptest.Request carrying X-Debug-* headers, the
// dev-mode credential bypass Middleware accepts (see internal/auth).
func authedRequest(t *testing.T, method, path string, body any, tenantID, userID uuid.UUID, role string) *http.Request {
	t.Helper()

	var bodyReader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		bodyReader = bytes.NewReader(b)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, bodyReader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Debug-Sub", userID.String())
	req.Header.Set("X-Debug-Tenant", tenantID.String())
	req.Header.Set("X-Debug-Role", role)
	return req
}
