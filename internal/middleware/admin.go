package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
)

// AdminKeyHeader carries the operator key for admin endpoints.
const AdminKeyHeader = "Admin-Key"

// AdminOnly returns a middleware that guards operator endpoints.
// The presented key is compared in constant time against the configured
// admin key. All failures get the same 401 response.
func AdminOnly(logger *slog.Logger, adminKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := r.Header.Get(AdminKeyHeader)
			if presented == "" ||
				subtle.ConstantTimeCompare([]byte(presented), []byte(adminKey)) != 1 {
				logger.Warn("admin authentication failed",
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeAdminError(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writeAdminError writes a 401 Unauthorized response for admin endpoints.
func writeAdminError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":{"code":"UNAUTHORIZED","message":"Invalid or missing admin key"}}`))
}
