package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Payment status constants.
const (
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
)

// PaymentMethodCard is the only method the storefront offers.
const PaymentMethodCard = "card"

// Payment is an immutable record of one settlement attempt.
type Payment struct {
	ID            string          `json:"id"`
	OrderID       string          `json:"orderId"`
	BuyerID       string          `json:"buyerId"`
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method"`
	Status        string          `json:"status"`
	ProviderRef   string          `json:"providerRef,omitempty"`
	FailureReason string          `json:"failureReason,omitempty"`
	ProcessedAt   time.Time       `json:"processedAt"`
}

// IsCompleted reports whether the payment captured funds.
func (p *Payment) IsCompleted() bool {
	return p.Status == PaymentStatusCompleted
}

// PaymentDetails is the card data entered at checkout. It is checked for
// format only and never persisted.
type PaymentDetails struct {
	Method     string `json:"method" validate:"omitempty,oneof=card"`
	CardNumber string `json:"cardNumber" validate:"required,card_number"`
	CardName   string `json:"cardName" validate:"required,notblank,max=200"`
	ExpiryDate string `json:"expiryDate" validate:"required,card_expiry"`
	CVV        string `json:"cvv" validate:"required,numeric,min=3,max=4"`
}

// NormalizedMethod returns Method, defaulting to card.
func (d PaymentDetails) NormalizedMethod() string {
	if d.Method == "" {
		return PaymentMethodCard
	}
	return d.Method
}

// Digits returns the card number without spaces or dashes.
func (d PaymentDetails) Digits() string {
	return strings.NewReplacer(" ", "", "-", "").Replace(d.CardNumber)
}

// Last4 returns the last four digits of the card number.
func (d PaymentDetails) Last4() string {
	digits := d.Digits()
	if len(digits) <= 4 {
		return digits
	}
	return digits[len(digits)-4:]
}
