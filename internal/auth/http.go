// ABOUTME: HTTP middleware that reads the session cookie once per request
// ABOUTME: Attaches the result to the request context for handlers and the server resolver

package auth

import (
	"log/slog"
	"net/http"

	"github.com/2389/courier-gateway/internal/session"
)

// SessionMiddleware looks up the request's session and attaches it as an
// AuthContext. Anonymous requests and lookup faults continue to the handler;
// handlers decide what a fault means for them.
func SessionMiddleware(src session.Source, cookieName string, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "auth")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, err := session.ReadRequest(r.Context(), r, src, cookieName)
			if err != nil {
				logger.Warn("session lookup failed", "path", r.URL.Path, "error", err)
			}
			authCtx := &AuthContext{Session: s, Err: err}
			next.ServeHTTP(w, r.WithContext(WithAuth(r.Context(), authCtx)))
		})
	}
}

// RequireSession creates an HTTP middleware that rejects anonymous callers.
// Must be used after SessionMiddleware.
func RequireSession() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := FromContext(r.Context())
			if authCtx != nil && authCtx.Err != nil {
				writeError(w, http.StatusInternalServerError, "session lookup failed")
				return
			}
			if !authCtx.Authenticated() {
				writeError(w, http.StatusUnauthorized, "not authenticated")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}
