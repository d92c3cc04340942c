package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ddjsphere/craftsmen-marketplace/internal/domain"
	"github.com/ddjsphere/craftsmen-marketplace/internal/event"
	"github.com/ddjsphere/craftsmen-marketplace/internal/metrics"
	"github.com/ddjsphere/craftsmen-marketplace/internal/provider"
	"github.com/ddjsphere/craftsmen-marketplace/internal/repository"
	apperrors "github.com/ddjsphere/craftsmen-marketplace/pkg/errors"
)

// Reconciliation triggers, used as metric labels.
const (
	triggerSettlement = "settlement"
	triggerEvent      = "event"
	triggerSweep      = "sweep"
)

// SettleInput holds the parameters for settling an order.
type SettleInput struct {
	BuyerID    string
	OrderID    string
	Amount     decimal.Decimal
	Method     string
	CardNumber string
}

// SettlementService charges orders and keeps payments and order status consistent.
type SettlementService struct {
	orders   repository.OrderRepository
	payments repository.PaymentRepository
	provider provider.Provider
	producer *event.Producer
	logger   *slog.Logger
	timeout  time.Duration
}

// NewSettlementService creates a new settlement service. timeout bounds each
// provider call; zero means no extra bound.
func NewSettlementService(
	orders repository.OrderRepository,
	payments repository.PaymentRepository,
	prov provider.Provider,
	producer *event.Producer,
	logger *slog.Logger,
	timeout time.Duration,
) *SettlementService {
	return &SettlementService{
		orders:   orders,
		payments: payments,
		provider: prov,
		producer: producer,
		logger:   logger,
		timeout:  timeout,
	}
}

// Settle charges the order's buyer for exactly the order total. A completed
// payment left behind by an earlier attempt is reused instead of charging again.
func (s *SettlementService) Settle(ctx context.Context, in SettleInput) (*domain.Payment, error) {
	start := time.Now()
	defer func() { metrics.SettlementDuration.Observe(time.Since(start).Seconds()) }()

	order, err := s.orders.GetByID(ctx, in.OrderID)
	if err != nil {
		return nil, apperrors.AsUpstream(fmt.Errorf("load order: %w", err))
	}
	if order.BuyerID != in.BuyerID {
		return nil, apperrors.Unauthorized("order belongs to another buyer")
	}
	switch order.Status {
	case domain.OrderStatusPending:
	case domain.OrderStatusPaid:
		return nil, apperrors.Conflict(fmt.Sprintf("order %s is already settled", order.ID))
	default:
		return nil, apperrors.Conflict(fmt.Sprintf("order %s cannot be settled in status %q", order.ID, order.Status))
	}
	if !in.Amount.Equal(order.Total) {
		return nil, apperrors.AmountMismatch(order.Total.StringFixed(2), in.Amount.StringFixed(2))
	}

	existing, err := s.payments.GetCompletedByOrder(ctx, order.ID)
	switch {
	case err == nil:
		if err := s.reconcile(ctx, order, existing, triggerSettlement); err != nil {
			return nil, err
		}
		return existing, nil
	case !errors.Is(err, apperrors.ErrNotFound):
		return nil, apperrors.AsUpstream(fmt.Errorf("check existing payment: %w", err))
	}

	method := in.Method
	if method == "" {
		method = domain.PaymentMethodCard
	}
	payment := &domain.Payment{
		ID:      uuid.NewString(),
		OrderID: order.ID,
		BuyerID: order.BuyerID,
		Amount:  order.Total,
		Method:  method,
	}

	result, chargeErr := s.charge(ctx, order, method, in.CardNumber)
	if chargeErr != nil || !result.Succeeded() {
		return nil, s.recordFailure(ctx, payment, result, chargeErr)
	}

	payment.Status = domain.PaymentStatusCompleted
	payment.ProviderRef = result.ProviderPaymentID
	payment.ProcessedAt = time.Now().UTC()

	if err := s.payments.Create(ctx, payment); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			// A concurrent settlement recorded its payment first; ours was charged
			// but not recorded.
			s.logger.ErrorContext(ctx, "concurrent settlement won, charge not recorded",
				slog.String("order_id", order.ID),
				slog.String("provider_ref", payment.ProviderRef),
			)
			return nil, err
		}
		s.logger.ErrorContext(ctx, "charge captured but payment not recorded",
			slog.String("order_id", order.ID),
			slog.String("provider_ref", payment.ProviderRef),
			slog.String("error", err.Error()),
		)
		return nil, apperrors.Upstream(fmt.Errorf("record payment: %w", err))
	}

	marked, err := s.orders.MarkPaid(ctx, order.ID, payment.ID)
	logPublishError(ctx, s.logger, "payment.completed", s.producer.PublishPaymentCompleted(ctx, payment))
	if err != nil {
		metrics.OrphanedPayments.Inc()
		s.logger.ErrorContext(ctx, "payment recorded but order not marked paid",
			slog.String("order_id", order.ID),
			slog.String("payment_id", payment.ID),
			slog.String("error", err.Error()),
		)
		return nil, apperrors.Upstream(fmt.Errorf("mark order paid: %w", err))
	}
	if marked {
		order.Status = domain.OrderStatusPaid
		order.PaymentID = payment.ID
		logPublishError(ctx, s.logger, "order.paid", s.producer.PublishOrderPaid(ctx, order))
	} else if err := s.confirmPaidWith(ctx, order.ID, payment.ID); err != nil {
		return nil, err
	}

	metrics.PaymentsSettled.WithLabelValues("completed").Inc()
	s.logger.InfoContext(ctx, "payment settled",
		slog.String("order_id", order.ID),
		slog.String("payment_id", payment.ID),
		slog.String("amount", payment.Amount.StringFixed(2)),
	)
	return payment, nil
}

// confirmPaidWith checks an order that left pending between the load and
// MarkPaid. A reconcile that already applied paymentID counts as success.
func (s *SettlementService) confirmPaidWith(ctx context.Context, orderID, paymentID string) error {
	current, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return apperrors.AsUpstream(fmt.Errorf("reload order: %w", err))
	}
	if current.Status == domain.OrderStatusPaid && current.PaymentID == paymentID {
		return nil
	}
	s.logger.ErrorContext(ctx, "payment recorded but order moved to another state",
		slog.String("order_id", orderID),
		slog.String("payment_id", paymentID),
		slog.String("status", current.Status),
	)
	return apperrors.Conflict(fmt.Sprintf("order %s changed to %q during settlement", orderID, current.Status))
}

// Reconcile marks orderID paid when it is still pending and a completed
// payment exists for it. It is safe to call any number of times.
func (s *SettlementService) Reconcile(ctx context.Context, orderID string) error {
	return s.reconcileOrder(ctx, orderID, triggerEvent)
}

func (s *SettlementService) reconcileOrder(ctx context.Context, orderID, trigger string) error {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.WarnContext(ctx, "reconcile skipped, order not found", slog.String("order_id", orderID))
			return nil
		}
		return apperrors.AsUpstream(fmt.Errorf("load order: %w", err))
	}
	if order.Status != domain.OrderStatusPending {
		return nil
	}

	payment, err := s.payments.GetCompletedByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		return apperrors.AsUpstream(fmt.Errorf("load completed payment: %w", err))
	}
	return s.reconcile(ctx, order, payment, trigger)
}

func (s *SettlementService) reconcile(ctx context.Context, order *domain.Order, payment *domain.Payment, trigger string) error {
	marked, err := s.orders.MarkPaid(ctx, order.ID, payment.ID)
	if err != nil {
		return apperrors.Upstream(fmt.Errorf("reconcile order %s: %w", order.ID, err))
	}
	if !marked {
		return nil
	}

	order.Status = domain.OrderStatusPaid
	order.PaymentID = payment.ID
	metrics.OrdersReconciled.WithLabelValues(trigger).Inc()
	metrics.PaymentsSettled.WithLabelValues("reconciled").Inc()
	logPublishError(ctx, s.logger, "order.paid", s.producer.PublishOrderPaid(ctx, order))

	s.logger.InfoContext(ctx, "order reconciled with existing payment",
		slog.String("order_id", order.ID),
		slog.String("payment_id", payment.ID),
		slog.String("trigger", trigger),
	)
	return nil
}

func (s *SettlementService) charge(ctx context.Context, order *domain.Order, method, cardNumber string) (*provider.ChargeResult, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.provider.Charge(ctx, &provider.ChargeInput{
		OrderID:     order.ID,
		Amount:      order.Total,
		Method:      method,
		CardNumber:  cardNumber,
		Description: fmt.Sprintf("Marketplace order %s", order.ID),
	})
}

// recordFailure stores a failed payment and returns the error for the caller.
// The order status is left unchanged.
func (s *SettlementService) recordFailure(ctx context.Context, payment *domain.Payment, result *provider.ChargeResult, chargeErr error) error {
	payment.Status = domain.PaymentStatusFailed
	payment.ProcessedAt = time.Now().UTC()

	var callerErr error
	switch {
	case errors.Is(chargeErr, context.DeadlineExceeded):
		payment.FailureReason = "payment provider timed out"
		callerErr = apperrors.Upstream(fmt.Errorf("charge order %s: %w", payment.OrderID, chargeErr))
		metrics.PaymentsSettled.WithLabelValues("error").Inc()
	case chargeErr != nil:
		payment.FailureReason = "payment provider error"
		callerErr = apperrors.Upstream(fmt.Errorf("charge order %s: %w", payment.OrderID, chargeErr))
		metrics.PaymentsSettled.WithLabelValues("error").Inc()
	default:
		payment.ProviderRef = result.ProviderPaymentID
		payment.FailureReason = result.FailureReason
		callerErr = apperrors.PaymentDeclined(result.FailureReason)
		metrics.PaymentsSettled.WithLabelValues("declined").Inc()
	}

	if err := s.payments.Create(ctx, payment); err != nil {
		s.logger.ErrorContext(ctx, "failed to record failed payment",
			slog.String("order_id", payment.OrderID),
			slog.String("error", err.Error()),
		)
	}
	logPublishError(ctx, s.logger, "payment.failed", s.producer.PublishPaymentFailed(ctx, payment))

	s.logger.WarnContext(ctx, "payment failed",
		slog.String("order_id", payment.OrderID),
		slog.String("reason", payment.FailureReason),
	)
	return callerErr
}
