package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ddjsphere/craftsmen-marketplace/internal/domain"
	"github.com/ddjsphere/craftsmen-marketplace/internal/service"
	"github.com/ddjsphere/craftsmen-marketplace/pkg/httputil"
	"github.com/ddjsphere/craftsmen-marketplace/pkg/middleware"
	"github.com/ddjsphere/craftsmen-marketplace/pkg/validator"
)

// CheckoutHandler handles HTTP requests for checkout endpoints.
type CheckoutHandler struct {
	service *service.CheckoutService
	logger  *slog.Logger
}

// NewCheckoutHandler creates a new checkout HTTP handler.
func NewCheckoutHandler(svc *service.CheckoutService, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{service: svc, logger: logger}
}

// StartCheckoutRequest is the JSON request body for POST /checkout.
// The session falls back to the X-Session-ID header or cookie.
type StartCheckoutRequest struct {
	SessionID string `json:"sessionId"`
}

// StartCheckout handles POST /checkout
func (h *CheckoutHandler) StartCheckout(w http.ResponseWriter, r *http.Request) {
	var req StartCheckoutRequest
	if err := validator.Decode(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if req.SessionID == "" {
		req.SessionID = middleware.SessionFromRequest(r)
	}

	session, err := h.service.Start(r.Context(), middleware.BuyerIDFromContext(r), req.SessionID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, http.StatusCreated, httputil.Payload{"checkout": session})
}

// GetCheckout handles GET /checkout/{checkoutId}
func (h *CheckoutHandler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.Get(r.Context(), chi.URLParam(r, "checkoutId"), middleware.BuyerIDFromContext(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, httputil.Payload{"checkout": session})
}

// SubmitShipping handles POST /checkout/{checkoutId}/shipping
func (h *CheckoutHandler) SubmitShipping(w http.ResponseWriter, r *http.Request) {
	var info domain.ShippingInfo
	if err := validator.Decode(r, &info); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	session, err := h.service.SubmitShipping(r.Context(), chi.URLParam(r, "checkoutId"), middleware.BuyerIDFromContext(r), info)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, httputil.Payload{"checkout": session})
}

// SubmitPayment handles POST /checkout/{checkoutId}/payment
func (h *CheckoutHandler) SubmitPayment(w http.ResponseWriter, r *http.Request) {
	var details domain.PaymentDetails
	if err := validator.Decode(r, &details); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	session, err := h.service.SubmitPayment(r.Context(), chi.URLParam(r, "checkoutId"), middleware.BuyerIDFromContext(r), details)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, httputil.Payload{"checkout": session})
}

// AbandonCheckout handles POST /checkout/{checkoutId}/abandon
func (h *CheckoutHandler) AbandonCheckout(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.Abandon(r.Context(), chi.URLParam(r, "checkoutId"), middleware.BuyerIDFromContext(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, httputil.Payload{"checkout": session})
}
