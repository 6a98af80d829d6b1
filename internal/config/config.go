// Package config loads the sync core's runtime configuration from
// environment variables (prefix SYNC_) via viper, the way MaxIOFS loads its
// MAXIOFS_-prefixed settings. There is no config file or flag layer here:
// this service only ever runs as a container with env vars injected, so
// viper's AutomaticEnv binding is the whole story.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every setting the sync core needs to start.
type Config struct {
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`

	HTTPAddr string `mapstructure:"http_addr"`

	Database DatabaseConfig `mapstructure:"database"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Sync     SyncConfig     `mapstructure:"sync"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// DatabaseConfig configures the Postgres connection pool.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// JWTConfig configures bearer token validation.
type JWTConfig struct {
	HS256Secret string `mapstructure:"hs256_secret"`
	DevMode     bool   `mapstructure:"dev_mode"`
	Issuer      string `mapstructure:"issuer"`
	JWKSURL     string `mapstructure:"jwks_url"`
	Audience    string `mapstructure:"audience"`
}

// SyncConfig bounds a single sync call (spec §4.7/§5).
type SyncConfig struct {
	MaxChangesPerEntity int           `mapstructure:"max_changes_per_entity"`
	PullPageLimit       int           `mapstructure:"pull_page_limit"`
	CallTimeout         time.Duration `mapstructure:"call_timeout"`
	MaxBodyBytes        int64         `mapstructure:"max_body_bytes"`
}

// RateLimitConfig bounds sync calls per principal per window.
type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	Burst             int `mapstructure:"burst"`
}

// Load reads configuration from SYNC_-prefixed environment variables,
// applying defaults for anything unset, then validates the result.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "production")
	v.SetDefault("log_level", "info")
	v.SetDefault("http_addr", ":8080")

	v.SetDefault("database.max_conns", int32(20))
	v.SetDefault("database.min_conns", int32(2))
	v.SetDefault("database.max_conn_lifetime", time.Hour)
	v.SetDefault("database.max_conn_idle_time", 30*time.Minute)

	v.SetDefault("jwt.dev_mode", false)
	v.SetDefault("jwt.hs256_secret", "dev-secret-change-in-production")

	v.SetDefault("sync.max_changes_per_entity", 500)
	v.SetDefault("sync.pull_page_limit", 500)
	v.SetDefault("sync.call_timeout", 30*time.Second)
	v.SetDefault("sync.max_body_bytes", int64(10<<20))

	v.SetDefault("rate_limit.requests_per_minute", 60)
	v.SetDefault("rate_limit.burst", 10)
}

// bindEnv forces viper to recognize nested keys under AutomaticEnv: without
// an explicit BindEnv per key, viper only resolves top-level env vars
// automatically (a long-standing viper quirk with nested struct keys).
func bindEnv(v *viper.Viper) {
	keys := []string{
		"env", "log_level", "http_addr",
		"database.url", "database.max_conns", "database.min_conns",
		"database.max_conn_lifetime", "database.max_conn_idle_time",
		"jwt.hs256_secret", "jwt.dev_mode", "jwt.issuer", "jwt.jwks_url", "jwt.audience",
		"sync.max_changes_per_entity", "sync.pull_page_limit", "sync.call_timeout", "sync.max_body_bytes",
		"rate_limit.requests_per_minute", "rate_limit.burst",
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Database.URL == "" {
		return fmt.Errorf("database.url is required (SYNC_DATABASE_URL)")
	}

	isDevMode := cfg.JWT.DevMode
	if (cfg.JWT.JWKSURL != "") != (cfg.JWT.Issuer != "") {
		return fmt.Errorf("jwt.issuer and jwt.jwks_url must both be set or both be empty")
	}
	if !isDevMode && (cfg.JWT.HS256Secret == "" || cfg.JWT.HS256Secret == "dev-secret-change-in-production") {
		return fmt.Errorf("jwt.hs256_secret must be set to a strong value outside dev mode")
	}

	if cfg.Sync.MaxChangesPerEntity <= 0 {
		return fmt.Errorf("sync.max_changes_per_entity must be positive")
	}
	if cfg.Sync.PullPageLimit <= 0 {
		return fmt.Errorf("sync.pull_page_limit must be positive")
	}
	return nil
}
