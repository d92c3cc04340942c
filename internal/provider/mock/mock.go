package mock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ddjsphere/craftsmen-marketplace/internal/provider"
)

// Test card numbers with fixed outcomes. Every other number succeeds.
const (
	CardDeclined          = "4000000000000002"
	CardInsufficientFunds = "4000000000009995"
	CardProviderError     = "4000000000000119"
)

// Provider is a mock payment provider for development and testing.
// It waits latency before answering and honors context cancellation.
type Provider struct {
	latency time.Duration
}

// NewProvider creates a new mock payment provider.
func NewProvider(latency time.Duration) *Provider {
	return &Provider{latency: latency}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "mock"
}

// Charge simulates a payment charge.
func (p *Provider) Charge(ctx context.Context, in *provider.ChargeInput) (*provider.ChargeResult, error) {
	if p.latency > 0 {
		t := time.NewTimer(p.latency)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !in.Amount.IsPositive() {
		return declined("amount must be positive"), nil
	}

	switch strings.NewReplacer(" ", "", "-", "").Replace(in.CardNumber) {
	case CardDeclined:
		return declined("card declined"), nil
	case CardInsufficientFunds:
		return declined("insufficient funds"), nil
	case CardProviderError:
		return nil, fmt.Errorf("charge order %s: %w", in.OrderID, provider.ErrProviderUnavailable)
	}

	return &provider.ChargeResult{
		ProviderPaymentID: "mock_pay_" + uuid.New().String(),
		Status:            provider.StatusSucceeded,
	}, nil
}

func declined(reason string) *provider.ChargeResult {
	return &provider.ChargeResult{
		ProviderPaymentID: "mock_pay_" + uuid.New().String(),
		Status:            provider.StatusDeclined,
		FailureReason:     reason,
	}
}
