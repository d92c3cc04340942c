package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/ddjsphere/craftsmen-marketplace/internal/service"
	"github.com/ddjsphere/craftsmen-marketplace/pkg/httputil"
	"github.com/ddjsphere/craftsmen-marketplace/pkg/middleware"
)

// SessionHandler issues anonymous cart sessions.
type SessionHandler struct {
	service      *service.SessionService
	logger       *slog.Logger
	ttl          time.Duration
	secureCookie bool
}

// NewSessionHandler creates a new session HTTP handler.
func NewSessionHandler(svc *service.SessionService, logger *slog.Logger, ttl time.Duration, secureCookie bool) *SessionHandler {
	return &SessionHandler{service: svc, logger: logger, ttl: ttl, secureCookie: secureCookie}
}

// GetOrCreate handles POST /sessions and GET /sessions/current.
// The ID presented by the client is reused when it is still known.
func (h *SessionHandler) GetOrCreate(w http.ResponseWriter, r *http.Request) {
	id, created, err := h.service.GetOrCreate(r.Context(), middleware.SessionFromRequest(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(h.ttl.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	w.Header().Set(middleware.SessionHeader, id)

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httputil.WriteSuccess(w, status, httputil.Payload{
		"sessionId": id,
		"created":   created,
	})
}
