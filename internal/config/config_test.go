package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestSetDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	if got := v.GetString("http_addr"); got != ":8080" {
		t.Errorf("http_addr default = %q, want :8080", got)
	}
	if got := v.GetInt32("database.max_conns"); got != 20 {
		t.Errorf("database.max_conns default = %d, want 20", got)
	}
	if got := v.GetDuration("sync.call_timeout"); got != 30*time.Second {
		t.Errorf("sync.call_timeout default = %v, want 30s", got)
	}
	if got := v.GetInt("rate_limit.requests_per_minute"); got != 60 {
		t.Errorf("rate_limit.requests_per_minute default = %d, want 60", got)
	}
}

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	clearSyncEnv(t)
	t.Setenv("SYNC_JWT_DEV_MODE", "true")

	if _, err := Load(); err == nil {
		t.Fatal("Load() should fail without SYNC_DATABASE_URL")
	}
}

func TestLoad_RejectsDefaultSecretOutsideDevMode(t *testing.T) {
	clearSyncEnv(t)
	t.Setenv("SYNC_DATABASE_URL", "postgres://localhost/sync")

	if _, err := Load(); err == nil {
		t.Fatal("Load() should reject the default HS256 secret outside dev mode")
	}
}

func TestLoad_AllowsDefaultSecretInDevMode(t *testing.T) {
	clearSyncEnv(t)
	t.Setenv("SYNC_DATABASE_URL", "postgres://localhost/sync")
	t.Setenv("SYNC_JWT_DEV_MODE", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.JWT.DevMode {
		t.Error("cfg.JWT.DevMode = false, want true")
	}
}

func TestLoad_RejectsMismatchedIssuerAndJWKS(t *testing.T) {
	clearSyncEnv(t)
	t.Setenv("SYNC_DATABASE_URL", "postgres://localhost/sync")
	t.Setenv("SYNC_JWT_DEV_MODE", "true")
	t.Setenv("SYNC_JWT_ISSUER", "https://idp.example.com")

	if _, err := Load(); err == nil {
		t.Fatal("Load() should reject an issuer set without a matching JWKS URL")
	}
}

func TestLoad_ReadsOverridesFromEnv(t *testing.T) {
	clearSyncEnv(t)
	t.Setenv("SYNC_DATABASE_URL", "postgres://localhost/sync")
	t.Setenv("SYNC_JWT_DEV_MODE", "true")
	t.Setenv("SYNC_HTTP_ADDR", ":9090")
	t.Setenv("SYNC_SYNC_MAX_CHANGES_PER_ENTITY", "42")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want :9090", cfg.HTTPAddr)
	}
	if cfg.Sync.MaxChangesPerEntity != 42 {
		t.Errorf("Sync.MaxChangesPerEntity = %d, want 42", cfg.Sync.MaxChangesPerEntity)
	}
}

// clearSyncEnv strips any SYNC_-prefixed variable already in the test
// process's environment so one test's t.Setenv calls can't leak into the
// next via AutomaticEnv.
func clearSyncEnv(t *testing.T) {
	t.Helper()
	for _, e := range os.Environ() {
		for i := 0; i < len(e); i++ {
			if e[i] != '=' {
				continue
			}
			key := e[:i]
			if len(key) >= 5 && key[:5] == "SYNC_" {
				os.Unsetenv(key)
			}
			break
		}
	}
}
