package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// Auth requires the configured API token as a bearer token. With no token
// configured every request passes.
func (m *Middleware) Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := m.cfg.Security.APIToken
		if want == "" {
			next.ServeHTTP(w, r)
			return
		}

		var token string
		if authHeader := r.Header.Get("Authorization"); authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
				token = strings.TrimSpace(parts[1])
			}
		}
		// Browsers cannot set headers on a websocket handshake
		if token == "" && strings.HasPrefix(r.URL.Path, "/ws/") {
			token = r.URL.Query().Get("token")
		}

		if token == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(want)) != 1 {
			m.log.Debug().Str("path", r.URL.Path).Msg("invalid api token")
			writeError(w, http.StatusUnauthorized, "unauthorized", "The API token is invalid")
			return
		}

		next.ServeHTTP(w, r)
	})
}
