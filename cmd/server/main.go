package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oceanic-wellbeing/sync-core/internal/auth"
	"github.com/oceanic-wellbeing/sync-core/internal/config"
	"github.com/oceanic-wellbeing/sync-core/internal/db"
	"github.com/oceanic-wellbeing/sync-core/internal/httpapi"
	"github.com/oceanic-wellbeing/sync-core/internal/metrics"
	"github.com/oceanic-wellbeing/sync-core/internal/store"
	"github.com/oceanic-wellbeing/sync-core/internal/syncengine"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = log.With().Str("service", "sync-core").Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if cfg.Env == "dev" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	ctx := context.Background()

	if err := db.Migrate(cfg.Database.URL); err != nil {
		log.Fatal().Err(err).Msg("failed to apply database migrations")
	}

	pool, err := db.Open(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()

	jwtCfg := auth.JWTCfg{
		HS256Secret: cfg.JWT.HS256Secret,
		DevMode:     cfg.JWT.DevMode,
		Issuer:      cfg.JWT.Issuer,
		JWKSURL:     cfg.JWT.JWKSURL,
		Audience:    cfg.JWT.Audience,
	}
	if jwtCfg.Issuer != "" && jwtCfg.JWKSURL != "" {
		if err := auth.InitJWKSCache(jwtCfg); err != nil {
			log.Warn().Err(err).Msg("failed to pre-fetch JWKS (will retry on first request)")
		}
		log.Info().Str("issuer", jwtCfg.Issuer).Str("jwks_url", jwtCfg.JWKSURL).Msg("upstream OIDC RS256 authentication enabled")
	} else {
		log.Info().Bool("dev_mode", jwtCfg.DevMode).Msg("HS256-only authentication enabled (no upstream OIDC configured)")
	}

	pgStore := store.New(pool)
	metricsReg := metrics.New()
	orchestrator := syncengine.New(pgStore, syncengine.Config{
		MaxChangesPerEntity: cfg.Sync.MaxChangesPerEntity,
		PullPageLimit:       cfg.Sync.PullPageLimit,
		CallTimeout:         cfg.Sync.CallTimeout,
	}, log.Logger)

	srv := &httpapi.Server{
		Store:        pgStore,
		Orchestrator: orchestrator,
		Metrics:      metricsReg,
		JWTCfg:       jwtCfg,
		RateLimit:    cfg.RateLimit,
		MaxBodyBytes: cfg.Sync.MaxBodyBytes,
	}

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("server stopped")
}
