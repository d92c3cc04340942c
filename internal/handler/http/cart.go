package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/ddjsphere/craftsmen-marketplace/internal/domain"
	"github.com/ddjsphere/craftsmen-marketplace/internal/service"
	"github.com/ddjsphere/craftsmen-marketplace/pkg/httputil"
	"github.com/ddjsphere/craftsmen-marketplace/pkg/validator"
)

// CartHandler handles HTTP requests for cart endpoints.
type CartHandler struct {
	service *service.CartService
	logger  *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(svc *service.CartService, logger *slog.Logger) *CartHandler {
	return &CartHandler{service: svc, logger: logger}
}

// --- Request / response DTOs ---

// AddItemRequest is the JSON request body for adding an item to the cart.
// Quantity defaults to 1 when omitted.
type AddItemRequest struct {
	ItemID   string `json:"itemId" validate:"required"`
	Quantity int    `json:"quantity"`
}

// CartResponse is a cart with its derived totals.
type CartResponse struct {
	SessionID string                `json:"sessionId"`
	Items     []domain.CartLineItem `json:"items"`
	ItemCount int                   `json:"itemCount"`
	Total     decimal.Decimal       `json:"total"`
	UpdatedAt time.Time             `json:"updatedAt"`
}

func newCartResponse(c *domain.Cart) CartResponse {
	items := c.Items
	if items == nil {
		items = []domain.CartLineItem{}
	}
	return CartResponse{
		SessionID: c.SessionID,
		Items:     items,
		ItemCount: c.ItemCount(),
		Total:     c.Total(),
		UpdatedAt: c.UpdatedAt,
	}
}

// --- Handlers ---

// GetCart handles GET and POST /cart/{sessionId}
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.service.GetCart(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, httputil.Payload{"cart": newCartResponse(cart)})
}

// AddItem handles POST /cart/{sessionId}/add
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	req := AddItemRequest{Quantity: 1}
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	cart, err := h.service.AddItem(r.Context(), chi.URLParam(r, "sessionId"), req.ItemID, req.Quantity)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, httputil.Payload{"cart": newCartResponse(cart)})
}

// RemoveItem handles DELETE /cart/{sessionId}/remove/{itemId}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	cart, err := h.service.RemoveItem(r.Context(), chi.URLParam(r, "sessionId"), chi.URLParam(r, "itemId"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, httputil.Payload{"cart": newCartResponse(cart)})
}

// ClearCart handles DELETE /cart/{sessionId}
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Clear(r.Context(), chi.URLParam(r, "sessionId")); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Cart cleared")
}
