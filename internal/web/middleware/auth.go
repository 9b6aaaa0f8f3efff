package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/znz-systems/leadbridge/internal/auth"
)

// RequireToken rejects requests without a valid bearer token. When the
// verifier has no token configured every request passes.
func RequireToken(verifier *auth.TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !verifier.Enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !verifier.Verify(auth.BearerToken(r.Header.Get("Authorization"))) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("WWW-Authenticate", `Bearer realm="leadbridge"`)
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]any{
					"success": false,
					"error":   "unauthorized",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
