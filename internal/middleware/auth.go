package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/smartlink/smartlink/internal/auth"
	"github.com/smartlink/smartlink/internal/cache"
)

// minAuthDuration is the floor every admin auth attempt takes, hit or miss.
const minAuthDuration = 200 * time.Millisecond

// VerifiedTokenCache remembers tokens that already passed argon2.
// *cache.Cache satisfies it.
type VerifiedTokenCache interface {
	IsAdminTokenVerified(ctx context.Context, fingerprint string) (bool, error)
	MarkAdminTokenVerified(ctx context.Context, fingerprint string) error
}

// AdminAuthConfig holds configuration for the admin auth middleware.
type AdminAuthConfig struct {
	Logger *slog.Logger
	// TokenHash is the argon2id PHC hash of the admin bearer token.
	TokenHash string
	// Cache is optional; without it every request pays for argon2.
	Cache VerifiedTokenCache
	// MinDuration overrides minAuthDuration. Zero means the default.
	MinDuration time.Duration
}

// AdminAuth returns a middleware that guards the management API with a
// single bearer token.
func AdminAuth(cfg AdminAuthConfig) func(http.Handler) http.Handler {
	floor := cfg.MinDuration
	if floor == 0 {
		floor = minAuthDuration
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			startTime := time.Now()

			ok, reason, cacheHit := cfg.verify(r)

			// Ensure consistent timing regardless of outcome
			if elapsed := time.Since(startTime); elapsed < floor {
				time.Sleep(floor - elapsed)
			}

			if !ok {
				cfg.Logger.Warn("authentication failed",
					slog.String("reason", reason),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeAuthError(w)
				return
			}

			cfg.Logger.Debug("authentication successful",
				slog.String("endpoint", r.Method+" "+r.URL.Path),
				slog.Bool("cache_hit", cacheHit),
				slog.String("request_id", GetRequestID(r.Context())),
			)
			next.ServeHTTP(w, r)
		})
	}
}

func (cfg AdminAuthConfig) verify(r *http.Request) (ok bool, reason string, cacheHit bool) {
	token := extractBearerToken(r)
	if token == "" {
		return false, "missing_token", false
	}
	if !auth.ValidateTokenFormat(token) {
		return false, "invalid_format", false
	}

	fingerprint := cache.TokenFingerprint(token)
	if cfg.Cache != nil {
		if hit, err := cfg.Cache.IsAdminTokenVerified(r.Context(), fingerprint); err == nil && hit {
			return true, "", true
		}
	}

	match, err := auth.VerifyToken(token, cfg.TokenHash)
	if err != nil {
		cfg.Logger.Error("admin token hash unusable", slog.String("error", err.Error()))
		return false, "hash_error", false
	}
	if !match {
		return false, "invalid_token", false
	}

	if cfg.Cache != nil {
		if err := cfg.Cache.MarkAdminTokenVerified(r.Context(), fingerprint); err != nil {
			cfg.Logger.Warn("failed to cache admin token", slog.String("error", err.Error()))
		}
	}
	return true, "", false
}

// extractBearerToken reads "Authorization: Bearer <token>".
func extractBearerToken(r *http.Request) string {
	token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !found {
		return ""
	}
	return strings.TrimSpace(token)
}

// writeAuthError writes a 401 Unauthorized response.
// Uses the same message for all auth failures to prevent enumeration.
func writeAuthError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="smartlink"`)
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"Invalid or missing admin token","code":"UNAUTHORIZED"}`))
}
