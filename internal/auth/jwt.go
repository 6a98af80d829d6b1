// Package auth is the authentication collaborator the sync core treats as
// external (spec §1): it turns a bearer token into the trusted
// {tenant, user, role} tuple every other component consumes as
// domain.Principal. It never resolves tenancy through an external
// membership API — tenant_id and role are read straight out of the token's
// claims, which is sufficient for this platform's flat org-per-vessel-
// operator model (see DESIGN.md for why the reference server's WorkOS
// lookup was dropped).
package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/oceanic-wellbeing/sync-core/internal/domain"
	"github.com/rs/zerolog/log"
)

type ctxKey string

const ctxPrincipal ctxKey = "principal"

// JWTCfg holds JWT authentication configuration.
type JWTCfg struct {
	HS256Secret string // HMAC secret for HS256 tokens (dev/testing)
	DevMode     bool   // Allow X-Debug-* headers to bypass JWT validation (local dev only)
	Issuer      string // Upstream IdP issuer
	JWKSURL     string // JWKS endpoint URL
	Audience    string // Expected audience claim, optional
}

// jwksCache caches the upstream IdP's RSA public keys by kid, refreshing on
// TTL expiry or on an unrecognized kid (covers key rotation).
type jwksCache struct {
	mu         sync.RWMutex
	keys       map[string]*rsa.PublicKey
	lastFetch  time.Time
	cacheTTL   time.Duration
	jwksURL    string
	httpClient *http.Client
}

var globalJWKSCache *jwksCache

type jwksResponse struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (c *jwksCache) fetchJWKS(forceRefresh bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !forceRefresh && time.Since(c.lastFetch) < c.cacheTTL && len(c.keys) > 0 {
		return nil
	}

	resp, err := c.httpClient.Get(c.jwksURL)
	if err != nil {
		return fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read JWKS response: %w", err)
	}

	var jwks jwksResponse
	if err := json.Unmarshal(body, &jwks); err != nil {
		return fmt.Errorf("failed to parse JWKS: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey)
	for _, key := range jwks.Keys {
		if key.Kty != "RSA" || key.Use != "sig" {
			continue
		}

		nBytes, err := base64.RawURLEncoding.DecodeString(key.N)
		if err != nil {
			log.Warn().Err(err).Str("kid", key.Kid).Msg("failed to decode modulus")
			continue
		}
		eBytes, err := base64.RawURLEncoding.DecodeString(key.E)
		if err != nil {
			log.Warn().Err(err).Str("kid", key.Kid).Msg("failed to decode exponent")
			continue
		}

		var eInt int
		for _, b := range eBytes {
			eInt = eInt<<8 | int(b)
		}

		keys[key.Kid] = &rsa.PublicKey{N: new(big.Int).SetBytes(nBytes), E: eInt}
	}

	if len(keys) == 0 {
		return errors.New("no valid RSA signing keys found in JWKS")
	}

	c.keys = keys
	c.lastFetch = time.Now()
	log.Info().Int("key_count", len(keys)).Msg("refreshed JWKS cache")
	return nil
}

func (c *jwksCache) getPublicKey(kid string) (*rsa.PublicKey, error) {
	c.mu.RLock()
	cacheExpired := time.Since(c.lastFetch) >= c.cacheTTL
	c.mu.RUnlock()

	if cacheExpired {
		if err := c.fetchJWKS(false); err != nil {
			log.Warn().Err(err).Msg("failed to refresh expired JWKS cache, using stale keys")
		}
	}

	c.mu.RLock()
	key, ok := c.keys[kid]
	c.mu.RUnlock()
	if ok {
		return key, nil
	}

	if err := c.fetchJWKS(true); err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS for missing key %s: %w", kid, err)
	}
	c.mu.RLock()
	key, ok = c.keys[kid]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("key ID %s not found in JWKS even after refresh", kid)
	}
	return key, nil
}

// InitJWKSCache initializes the global JWKS cache for upstream IdP RS256
// validation. Safe to call with an empty JWKSURL (no-op).
func InitJWKSCache(cfg JWTCfg) error {
	if cfg.JWKSURL == "" {
		return nil
	}
	if globalJWKSCache != nil {
		return nil
	}
	globalJWKSCache = &jwksCache{
		keys:       make(map[string]*rsa.PublicKey),
		cacheTTL:   time.Hour,
		jwksURL:    cfg.JWKSURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	if err := globalJWKSCache.fetchJWKS(false); err != nil {
		log.Warn().Err(err).Msg("failed to pre-fetch JWKS (will retry on first request)")
		return err
	}
	log.Info().Str("jwks_url", cfg.JWKSURL).Msg("upstream IdP RS256 validation enabled")
	return nil
}

// ValidateToken verifies tokenString's signature (RS256 via JWKS, or HS256
// via a shared secret) and extracts the trusted {tenant, user, role} tuple
// from its claims: sub (user id), tenant_id, role.
func ValidateToken(tokenString string, cfg JWTCfg) (domain.Principal, error) {
	if tokenString == "" {
		return domain.Principal{}, errors.New("token is empty")
	}
	if cfg.JWKSURL != "" && globalJWKSCache == nil {
		return domain.Principal{}, errors.New("JWKS cache not initialized")
	}

	claims := jwt.MapClaims{}
	t, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		switch t.Method.(type) {
		case *jwt.SigningMethodRSA:
			if globalJWKSCache == nil {
				return nil, errors.New("JWKS cache not initialized")
			}
			kid, ok := t.Header["kid"].(string)
			if !ok || kid == "" {
				return nil, errors.New("missing kid in token header")
			}
			return globalJWKSCache.getPublicKey(kid)
		case *jwt.SigningMethodHMAC:
			if cfg.HS256Secret == "" {
				return nil, errors.New("HS256 secret not configured")
			}
			return []byte(cfg.HS256Secret), nil
		default:
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
	})
	if err != nil || !t.Valid {
		return domain.Principal{}, fmt.Errorf("jwt validation failed: %w", err)
	}

	if cfg.Issuer != "" {
		if iss, ok := claims["iss"].(string); !ok || iss != cfg.Issuer {
			return domain.Principal{}, fmt.Errorf("invalid issuer: expected %s, got %v", cfg.Issuer, claims["iss"])
		}
	}
	if cfg.Audience != "" {
		if !audienceMatches(claims["aud"], cfg.Audience) {
			return domain.Principal{}, fmt.Errorf("invalid audience: expected %s, got %v", cfg.Audience, claims["aud"])
		}
	}

	return principalFromClaims(claims)
}

func audienceMatches(aud any, want string) bool {
	switch v := aud.(type) {
	case string:
		return v == want
	case []any:
		for _, a := range v {
			if s, ok := a.(string); ok && s == want {
				return true
			}
		}
	}
	return false
}

func principalFromClaims(claims jwt.MapClaims) (domain.Principal, error) {
	sub, _ := claims["sub"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("missing or invalid sub claim: %w", err)
	}

	tenantStr, _ := claims["tenant_id"].(string)
	tenantID, err := uuid.Parse(tenantStr)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("missing or invalid tenant_id claim: %w", err)
	}

	role, _ := claims["role"].(string)
	switch domain.Role(role) {
	case domain.RoleCrew, domain.RoleAdmin, domain.RolePsychologist:
	default:
		return domain.Principal{}, fmt.Errorf("missing or unrecognized role claim: %q", role)
	}

	return domain.Principal{TenantID: tenantID, UserID: userID, Role: domain.Role(role)}, nil
}

// Middleware authenticates each request and attaches the resulting
// domain.Principal to the request context. In DevMode, a token-free
// request may instead supply X-Debug-Sub/X-Debug-Tenant/X-Debug-Role
// headers, for exercising the API without standing up an IdP.
func Middleware(cfg JWTCfg) func(http.Handler) http.Handler {
	_ = InitJWKSCache(cfg)

	if cfg.DevMode {
		log.Warn().Msg("SECURITY WARNING: DevMode enabled - X-Debug-* headers will bypass JWT authentication")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := ""
			if h := r.Header.Get("Authorization"); len(h) > 7 && h[:7] == "Bearer " {
				tok = h[7:]
			}

			var principal domain.Principal
			var err error

			switch {
			case tok != "":
				principal, err = ValidateToken(tok, cfg)
			case cfg.DevMode:
				principal, err = principalFromDebugHeaders(r)
			default:
				err = errors.New("missing bearer token")
			}

			if err != nil {
				log.Warn().Err(err).Msg("authentication failed")
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ctxPrincipal, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func principalFromDebugHeaders(r *http.Request) (domain.Principal, error) {
	sub := r.Header.Get("X-Debug-Sub")
	tenant := r.Header.Get("X-Debug-Tenant")
	role := r.Header.Get("X-Debug-Role")
	if sub == "" || tenant == "" || role == "" {
		return domain.Principal{}, errors.New("dev mode requires X-Debug-Sub, X-Debug-Tenant, and X-Debug-Role")
	}
	claims := jwt.MapClaims{"sub": sub, "tenant_id": tenant, "role": role}
	return principalFromClaims(claims)
}

// PrincipalFromContext extracts the authenticated Principal attached by
// Middleware. The second return is false if no principal is present
// (should never happen downstream of Middleware).
func PrincipalFromContext(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(ctxPrincipal).(domain.Principal)
	return p, ok
}
