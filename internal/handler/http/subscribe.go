package http

import (
	"log/slog"
	"net/http"

	"github.com/ddjsphere/craftsmen-marketplace/internal/service"
	"github.com/ddjsphere/craftsmen-marketplace/pkg/httputil"
	"github.com/ddjsphere/craftsmen-marketplace/pkg/validator"
)

// SubscribeHandler handles newsletter sign-ups.
type SubscribeHandler struct {
	service *service.SubscriptionService
	logger  *slog.Logger
}

// NewSubscribeHandler creates a new newsletter HTTP handler.
func NewSubscribeHandler(svc *service.SubscriptionService, logger *slog.Logger) *SubscribeHandler {
	return &SubscribeHandler{service: svc, logger: logger}
}

// Subscribe handles POST /subscribe
func (h *SubscribeHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req service.SubscribeRequest
	if err := validator.Decode(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if _, err := h.service.Subscribe(r.Context(), req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Subscribed")
}
