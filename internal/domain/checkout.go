package domain

import (
	"slices"
	"time"
)

// Checkout session status constants.
const (
	CheckoutStatusShipping  = "shipping"
	CheckoutStatusPayment   = "payment"
	CheckoutStatusComplete  = "complete"
	CheckoutStatusFailed    = "failed"
	CheckoutStatusAbandoned = "abandoned"
)

// CheckoutSession tracks one buyer's progress from cart to paid order.
type CheckoutSession struct {
	ID            string        `json:"id"`
	BuyerID       string        `json:"buyerId"`
	SessionID     string        `json:"sessionId"`
	Status        string        `json:"status"`
	ShippingInfo  *ShippingInfo `json:"shippingInfo,omitempty"`
	OrderID       string        `json:"orderId,omitempty"`
	PaymentID     string        `json:"paymentId,omitempty"`
	FailureReason string        `json:"failureReason,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
	CompletedAt   *time.Time    `json:"completedAt,omitempty"`
}

var checkoutTransitions = map[string][]string{
	CheckoutStatusShipping:  {CheckoutStatusPayment, CheckoutStatusAbandoned},
	CheckoutStatusPayment:   {CheckoutStatusPayment, CheckoutStatusComplete, CheckoutStatusFailed, CheckoutStatusAbandoned},
	CheckoutStatusFailed:    {CheckoutStatusPayment, CheckoutStatusComplete, CheckoutStatusAbandoned},
	CheckoutStatusComplete:  {},
	CheckoutStatusAbandoned: {},
}

// CanTransitionTo reports whether the session may move to target.
// payment -> payment covers re-submitting shipping details.
func (s *CheckoutSession) CanTransitionTo(target string) bool {
	return slices.Contains(checkoutTransitions[s.Status], target)
}

// IsTerminal reports whether the session can no longer change.
func (s *CheckoutSession) IsTerminal() bool {
	return s.Status == CheckoutStatusComplete || s.Status == CheckoutStatusAbandoned
}

// HasOrder reports whether an order has been assembled for this session.
func (s *CheckoutSession) HasOrder() bool {
	return s.OrderID != ""
}

// SourceStatuses returns the statuses from which target is reachable.
func SourceStatuses(target string) []string {
	var from []string
	for _, status := range []string{
		CheckoutStatusShipping, CheckoutStatusPayment, CheckoutStatusFailed,
		CheckoutStatusComplete, CheckoutStatusAbandoned,
	} {
		if slices.Contains(checkoutTransitions[status], target) {
			from = append(from, status)
		}
	}
	return from
}
