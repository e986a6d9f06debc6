package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// AgentKey returns middleware that requires "Authorization: Bearer <key>" with the
// key shared between the agent and its local UI. An empty key rejects every request.
func AgentKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeJSONError(w, http.StatusUnauthorized, "missing or invalid authorization header")
				return
			}
			presented := strings.TrimPrefix(authHeader, "Bearer ")
			if key == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(key)) != 1 {
				writeJSONError(w, http.StatusUnauthorized, "invalid agent key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
