package middleware

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vaultq/vaultq/internal/auth"
	"github.com/vaultq/vaultq/internal/cache"
	"github.com/vaultq/vaultq/internal/model"
	"github.com/vaultq/vaultq/internal/repository"
)

// minAuthFailureDuration is the minimum time a failed auth spends before
// responding, to blunt timing probes against token verification.
const minAuthFailureDuration = 200 * time.Millisecond

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger     *slog.Logger
	Repository *repository.Repository
	Cache      *cache.Cache
	Tokens     *auth.TokenIssuer
}

// Auth returns a middleware that authenticates API requests.
// It extracts the bearer token from the Authorization header, verifies
// the signature and expiry, and then checks the token against the single
// token stored on the user row. A Redis cache fronts the stored-token
// lookup; entries never outlive the token.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			startTime := time.Now()

			token := extractBearerToken(r)
			if token == "" {
				logAuthFailure(cfg.Logger, r, "missing_token")
				failAuth(w, startTime)
				return
			}

			claims, err := cfg.Tokens.Parse(token)
			if err != nil {
				reason := "invalid_token"
				if errors.Is(err, auth.ErrTokenExpired) {
					reason = "expired_token"
				}
				logAuthFailure(cfg.Logger, r, reason)
				failAuth(w, startTime)
				return
			}

			// Check cache first
			cacheKey := auth.QuickHash(token)
			authCtx, _ := cfg.Cache.GetAuthContext(r.Context(), cacheKey)

			if authCtx != nil {
				ctx := auth.ContextWithAuth(r.Context(), authCtx)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			// Cache miss - check the token against the user row.
			// The stored token is the single active session; a token that
			// verifies but no longer matches has been replaced by a newer login.
			user, err := cfg.Repository.GetUserByUsername(r.Context(), claims.Username)
			if err != nil {
				if errors.Is(err, repository.ErrUserNotFound) {
					logAuthFailure(cfg.Logger, r, "unknown_user")
				} else {
					cfg.Logger.Error("database error during auth",
						slog.String("error", err.Error()),
						slog.String("request_id", GetRequestID(r.Context())),
					)
				}
				failAuth(w, startTime)
				return
			}

			if !user.HasValidToken(time.Now()) ||
				subtle.ConstantTimeCompare([]byte(*user.AccessToken), []byte(token)) != 1 {
				logAuthFailure(cfg.Logger, r, "token_not_current")
				failAuth(w, startTime)
				return
			}

			authCtx = &model.AuthContext{
				UserID:   user.ID,
				Username: user.Username,
			}

			_ = cfg.Cache.SetAuthContext(r.Context(), cacheKey, authCtx, *user.TokenExpiration)

			ctx := auth.ContextWithAuth(r.Context(), authCtx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireOwner returns a middleware that rejects requests whose {userID}
// path parameter does not match the authenticated user.
// Must be applied after Auth.
func RequireOwner(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := auth.AuthFromContext(r.Context())
			if authCtx == nil {
				writeAuthError(w)
				return
			}

			pathUserID := chi.URLParam(r, "userID")
			if pathUserID != authCtx.UserID {
				logger.Warn("ownership check failed",
					slog.String("user_id", authCtx.UserID),
					slog.String("path_user_id", pathUserID),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeForbiddenError(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractBearerToken extracts the bearer token from the Authorization header.
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

func logAuthFailure(logger *slog.Logger, r *http.Request, reason string) {
	logger.Warn("authentication failed",
		slog.String("reason", reason),
		slog.String("ip", r.RemoteAddr),
		slog.String("endpoint", r.Method+" "+r.URL.Path),
		slog.String("request_id", GetRequestID(r.Context())),
	)
}

// failAuth pads failed auth attempts to a minimum duration, then writes 401.
func failAuth(w http.ResponseWriter, startTime time.Time) {
	if elapsed := time.Since(startTime); elapsed < minAuthFailureDuration {
		time.Sleep(minAuthFailureDuration - elapsed)
	}
	writeAuthError(w)
}

// writeAuthError writes a 401 Unauthorized response.
// Uses the same message for all auth failures to prevent enumeration.
func writeAuthError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":{"code":"UNAUTHORIZED","message":"Invalid or missing access token"}}`))
}

// writeForbiddenError writes a 403 Forbidden response.
func writeForbiddenError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte(`{"error":{"code":"FORBIDDEN","message":"Access denied"}}`))
}
