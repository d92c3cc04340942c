package provider

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// Charge result statuses.
const (
	StatusSucceeded = "succeeded"
	StatusDeclined  = "declined"
)

// ErrProviderUnavailable is returned when the provider cannot process a charge at all.
var ErrProviderUnavailable = errors.New("payment provider unavailable")

// ChargeInput holds the parameters for charging a payment.
type ChargeInput struct {
	OrderID     string
	Amount      decimal.Decimal
	Method      string
	CardNumber  string
	Description string
}

// ChargeResult holds the result of a charge operation from the payment provider.
type ChargeResult struct {
	ProviderPaymentID string
	Status            string // "succeeded" or "declined"
	FailureReason     string
}

// Succeeded reports whether funds were captured.
func (r *ChargeResult) Succeeded() bool {
	return r.Status == StatusSucceeded
}

// Provider defines the interface for payment provider integrations.
type Provider interface {
	// Name returns the provider name (e.g., "mock").
	Name() string

	// Charge processes a payment charge through the provider. A decline is a
	// result, not an error; errors mean the outcome is unknown.
	Charge(ctx context.Context, input *ChargeInput) (*ChargeResult, error)
}
