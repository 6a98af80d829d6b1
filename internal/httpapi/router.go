// Package httpapi is the HTTP transport for the sync core: request
// framing, auth/rate-limit middleware, and the handlers that adapt
// internal/syncengine to JSON over HTTP. It owns none of the sync
// semantics itself (spec §1's "out of scope" list).
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oceanic-wellbeing/sync-core/internal/auth"
	"github.com/oceanic-wellbeing/sync-core/internal/config"
	"github.com/oceanic-wellbeing/sync-core/internal/metrics"
	"github.com/oceanic-wellbeing/sync-core/internal/store"
	"github.com/oceanic-wellbeing/sync-core/internal/syncengine"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Server holds the dependencies every handler needs.
type Server struct {
	Store        store.Store
	Orchestrator *syncengine.Orchestrator
	Metrics      *metrics.Metrics
	JWTCfg       auth.JWTCfg
	RateLimit    config.RateLimitConfig
	MaxBodyBytes int64
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode json response")
	}
}

// errorResponse is the standardized error body, carrying the correlation
// ID so a client can reference it when reporting trouble.
type errorResponse struct {
	Success       bool   `json:"success"`
	Error         string `json:"error"`
	CorrelationID string `json:"correlationId,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, code int, message string) {
	writeJSON(w, code, errorResponse{
		Success:       false,
		Error:         message,
		CorrelationID: GetCorrelationID(r.Context()),
	})
}

// Routes builds the full route tree.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(CorrelationMiddleware)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/api/sync/info", s.Info)

	if s.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.Metrics.Registry(), promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(s.JWTCfg))
		r.Use(RateLimitMiddleware(s.RateLimit))

		r.Post("/api/sync", s.Sync)
		r.Get("/api/sync/status", s.Status)
	})

	log.Info().Msg("HTTP routes registered")
	return r
}
