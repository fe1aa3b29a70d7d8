package api

import (
	"crypto/subtle"
	"net/http"
)

const authRealm = "jplens"

// withBasicAuth gates every route except /health and /metrics when an
// operator password is configured. With no password set the gate is inert.
func (s *Server) withBasicAuth(next http.Handler) http.Handler {
	if !s.auth.Enabled {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isAuthExempt(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		username, password, ok := r.BasicAuth()
		if !ok || !credentialsMatch(username, password, s.auth.Username, s.auth.Password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="`+authRealm+`"`)
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Authentication required",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Exact paths only; anything else, including near-misses like /healthz,
// goes through the credential check.
func isAuthExempt(path string) bool {
	return path == "/health" || path == "/metrics"
}

func credentialsMatch(gotUser, gotPass, wantUser, wantPass string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(gotUser), []byte(wantUser)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(gotPass), []byte(wantPass)) == 1
	return userOK && passOK
}
