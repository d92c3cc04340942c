package middleware

import (
	"net/http"

	"github.com/ddjsphere/craftsmen-marketplace/pkg/logger"
)

const (
	// SessionCookie carries the anonymous cart session across page loads.
	SessionCookie = "session_id"
	// SessionHeader is the header form for non-browser clients.
	SessionHeader = "X-Session-ID"
)

// SessionFromRequest returns the candidate session ID presented by the
// client: the X-Session-ID header wins over the cookie.
func SessionFromRequest(r *http.Request) string {
	if id := r.Header.Get(SessionHeader); id != "" {
		return id
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// Session copies the presented session ID into the request context so it
// shows up on every log line for the request. It does not validate it.
func Session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := SessionFromRequest(r); id != "" {
			r = r.WithContext(logger.WithSessionID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}
