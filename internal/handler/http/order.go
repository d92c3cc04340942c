package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ddjsphere/craftsmen-marketplace/internal/domain"
	"github.com/ddjsphere/craftsmen-marketplace/internal/service"
	"github.com/ddjsphere/craftsmen-marketplace/pkg/httputil"
	"github.com/ddjsphere/craftsmen-marketplace/pkg/middleware"
	"github.com/ddjsphere/craftsmen-marketplace/pkg/pagination"
	"github.com/ddjsphere/craftsmen-marketplace/pkg/validator"
)

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	orders *service.OrderService
	carts  *service.CartService
	logger *slog.Logger
}

// NewOrderHandler creates a new order HTTP handler.
func NewOrderHandler(orders *service.OrderService, carts *service.CartService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, carts: carts, logger: logger}
}

// CreateOrderRequest is the JSON request body for POST /orders. The session
// falls back to the X-Session-ID header or cookie; shipping fields are
// validated by the order service.
type CreateOrderRequest struct {
	SessionID    string              `json:"sessionId"`
	ShippingInfo domain.ShippingInfo `json:"shippingInfo"`
}

// CreateOrder handles POST /orders. The order is assembled from a snapshot
// of the session's cart; the cart itself is left as it is.
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := validator.Decode(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if req.SessionID == "" {
		req.SessionID = middleware.SessionFromRequest(r)
	}

	cart, err := h.carts.GetCart(r.Context(), req.SessionID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	order, err := h.orders.CreateOrder(r.Context(), middleware.BuyerIDFromContext(r), cart.Snapshot(), req.ShippingInfo)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, http.StatusCreated, httputil.Payload{"order": order})
}

// GetOrder handles GET /orders/{orderId}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetOrder(r.Context(), chi.URLParam(r, "orderId"), middleware.BuyerIDFromContext(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, httputil.Payload{"order": order})
}

// ListOrders handles GET /orders
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	page := pagination.FromRequest(r)
	orders, total, err := h.orders.ListBuyerOrders(r.Context(), middleware.BuyerIDFromContext(r), page)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteList(w, "orders", orders, total, page.Page, page.PerPage)
}

// ListSellerOrders handles GET /artisan/orders
func (h *OrderHandler) ListSellerOrders(w http.ResponseWriter, r *http.Request) {
	page := pagination.FromRequest(r)
	orders, total, err := h.orders.ListSellerOrders(r.Context(), middleware.BuyerIDFromContext(r), page)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteList(w, "orders", orders, total, page.Page, page.PerPage)
}
