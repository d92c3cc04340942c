package http

import (
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/ddjsphere/craftsmen-marketplace/internal/service"
	"github.com/ddjsphere/craftsmen-marketplace/pkg/httputil"
	"github.com/ddjsphere/craftsmen-marketplace/pkg/middleware"
	"github.com/ddjsphere/craftsmen-marketplace/pkg/validator"
)

// PaymentHandler handles direct settlement of an existing order.
type PaymentHandler struct {
	service *service.SettlementService
	logger  *slog.Logger
}

// NewPaymentHandler creates a new payment HTTP handler.
func NewPaymentHandler(svc *service.SettlementService, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{service: svc, logger: logger}
}

// ProcessPaymentRequest is the JSON request body for POST /payment/process.
// Amount accepts a JSON number or a decimal string.
type ProcessPaymentRequest struct {
	OrderID       string          `json:"orderId" validate:"required"`
	PaymentMethod string          `json:"paymentMethod" validate:"omitempty,oneof=card"`
	Amount        decimal.Decimal `json:"amount"`
	CardNumber    string          `json:"cardNumber" validate:"omitempty,card_number"`
}

// ProcessPayment handles POST /payment/process
func (h *PaymentHandler) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	var req ProcessPaymentRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	payment, err := h.service.Settle(r.Context(), service.SettleInput{
		BuyerID:    middleware.BuyerIDFromContext(r),
		OrderID:    req.OrderID,
		Amount:     req.Amount,
		Method:     req.PaymentMethod,
		CardNumber: req.CardNumber,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, httputil.Payload{"payment": payment})
}
