package devserver

import (
	"crypto/hmac"
	"net/http"
	"strings"

	"taskchat/pkg/logger"
)

// requireBearer guards the API with a shared bearer token. Health, metrics
// and docs stay open so probes and dashboards keep working.
func requireBearer(token string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/v1/") {
			next.ServeHTTP(w, r)
			return
		}
		got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if got == "" || !hmac.Equal([]byte(got), []byte(token)) {
			logger.Warn("unauthorized_request", "path", r.URL.Path, "remote", r.RemoteAddr)
			w.Header().Set("Content-Type", "application/json")
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
