package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"parley/internal/auth"
	"parley/internal/domain/services"
	"parley/internal/httputil"
)

// Auth verifies the bearer token and stores the caller's identity in the
// request context. Requests without a valid token get 401.
func Auth(verifier auth.JWTVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				logger.Info("auth rejected: missing Authorization header", "method", r.Method, "path", r.URL.Path)
				httputil.RespondError(w, http.StatusUnauthorized, "missing Authorization header")
				return
			}

			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				logger.Info("auth rejected: expected Bearer token", "method", r.Method, "path", r.URL.Path)
				httputil.RespondError(w, http.StatusUnauthorized, "invalid Authorization header; expected Bearer token")
				return
			}

			claims, err := verifier.VerifyToken(token)
			if err != nil {
				httputil.RespondError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			identity := services.Identity{UserID: claims.GetUserID(), Role: claims.AppRole()}
			next.ServeHTTP(w, httputil.WithIdentity(r, identity))
		})
	}
}

// DevAuth injects a fixed identity. Only wired when AUTH_DISABLED is set
// outside production.
func DevAuth(identity services.Identity) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, httputil.WithIdentity(r, identity))
		})
	}
}
