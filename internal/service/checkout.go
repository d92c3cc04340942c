package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ddjsphere/craftsmen-marketplace/internal/domain"
	"github.com/ddjsphere/craftsmen-marketplace/internal/event"
	"github.com/ddjsphere/craftsmen-marketplace/internal/metrics"
	"github.com/ddjsphere/craftsmen-marketplace/internal/repository"
	apperrors "github.com/ddjsphere/craftsmen-marketplace/pkg/errors"
	"github.com/ddjsphere/craftsmen-marketplace/pkg/validator"
)

// CheckoutService drives a checkout session from shipping details to a paid order.
type CheckoutService struct {
	checkouts  repository.CheckoutRepository
	locks      repository.LockRepository
	carts      *CartService
	orders     *OrderService
	settlement *SettlementService
	producer   *event.Producer
	logger     *slog.Logger
	lockTTL    time.Duration
}

// NewCheckoutService creates a new checkout service. lockTTL bounds how long
// one payment submission may hold the session.
func NewCheckoutService(
	checkouts repository.CheckoutRepository,
	locks repository.LockRepository,
	carts *CartService,
	orders *OrderService,
	settlement *SettlementService,
	producer *event.Producer,
	logger *slog.Logger,
	lockTTL time.Duration,
) *CheckoutService {
	return &CheckoutService{
		checkouts:  checkouts,
		locks:      locks,
		carts:      carts,
		orders:     orders,
		settlement: settlement,
		producer:   producer,
		logger:     logger,
		lockTTL:    lockTTL,
	}
}

// Start opens a checkout for the buyer's cart session.
func (s *CheckoutService) Start(ctx context.Context, buyerID, sessionID string) (*domain.CheckoutSession, error) {
	if buyerID == "" {
		return nil, apperrors.Unauthenticated("buyer identity is required")
	}
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	session := &domain.CheckoutSession{
		ID:        uuid.NewString(),
		BuyerID:   buyerID,
		SessionID: sessionID,
		Status:    domain.CheckoutStatusShipping,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.checkouts.Create(ctx, session); err != nil {
		return nil, apperrors.AsUpstream(fmt.Errorf("create checkout: %w", err))
	}

	metrics.CheckoutTransitions.WithLabelValues(domain.CheckoutStatusShipping).Inc()
	s.logger.InfoContext(ctx, "checkout started",
		slog.String("checkout_id", session.ID),
		slog.String("session_id", sessionID),
	)
	return session, nil
}

// Get returns the buyer's checkout session.
func (s *CheckoutService) Get(ctx context.Context, checkoutID, buyerID string) (*domain.CheckoutSession, error) {
	session, err := s.checkouts.GetByID(ctx, checkoutID)
	if err != nil {
		return nil, apperrors.AsUpstream(fmt.Errorf("get checkout: %w", err))
	}
	if session.BuyerID != buyerID {
		return nil, apperrors.Unauthorized("checkout belongs to another buyer")
	}
	return session, nil
}

// SubmitShipping stores the delivery details and moves the session to payment.
// Details are frozen once an order has been assembled.
func (s *CheckoutService) SubmitShipping(ctx context.Context, checkoutID, buyerID string, info domain.ShippingInfo) (*domain.CheckoutSession, error) {
	session, err := s.Get(ctx, checkoutID, buyerID)
	if err != nil {
		return nil, err
	}
	if session.HasOrder() {
		return nil, apperrors.Conflict("shipping details cannot change after the order is created")
	}
	if !session.CanTransitionTo(domain.CheckoutStatusPayment) {
		return nil, invalidTransition(session.Status, domain.CheckoutStatusPayment)
	}
	info = info.Trimmed()
	if err := validator.ToAppError(validator.Validate(info), "invalid shipping info"); err != nil {
		return nil, err
	}

	from := session.Status
	session.ShippingInfo = &info
	session.Status = domain.CheckoutStatusPayment
	session.UpdatedAt = time.Now().UTC()

	if err := s.update(ctx, session, from); err != nil {
		return nil, err
	}

	metrics.CheckoutTransitions.WithLabelValues(domain.CheckoutStatusPayment).Inc()
	return session, nil
}

// SubmitPayment assembles the order (once) and settles it. Only one
// submission per checkout runs at a time; a concurrent one gets a conflict.
// Re-submitting a completed checkout returns it unchanged.
func (s *CheckoutService) SubmitPayment(ctx context.Context, checkoutID, buyerID string, details domain.PaymentDetails) (*domain.CheckoutSession, error) {
	if _, err := s.Get(ctx, checkoutID, buyerID); err != nil {
		return nil, err
	}

	release, err := s.lock(ctx, checkoutID)
	if err != nil {
		return nil, err
	}
	defer release()

	// Reload under the lock; a previous holder may have moved the session.
	session, err := s.Get(ctx, checkoutID, buyerID)
	if err != nil {
		return nil, err
	}
	switch session.Status {
	case domain.CheckoutStatusComplete:
		return session, nil
	case domain.CheckoutStatusPayment, domain.CheckoutStatusFailed:
	default:
		return nil, invalidTransition(session.Status, domain.CheckoutStatusComplete)
	}
	if session.ShippingInfo == nil {
		return nil, apperrors.Conflict("shipping details are required before payment")
	}
	if err := validator.ToAppError(validator.Validate(details), "invalid payment details"); err != nil {
		return nil, err
	}

	order, err := s.attachOrder(ctx, session)
	if err != nil {
		return nil, err
	}

	paymentID := order.PaymentID
	if order.Status != domain.OrderStatusPaid {
		payment, err := s.settlement.Settle(ctx, SettleInput{
			BuyerID:    buyerID,
			OrderID:    order.ID,
			Amount:     order.Total,
			Method:     details.NormalizedMethod(),
			CardNumber: details.Digits(),
		})
		if err != nil {
			s.markFailed(ctx, session, err)
			return nil, err
		}
		paymentID = payment.ID
	}

	return s.complete(ctx, session, paymentID)
}

// Abandon moves the session to abandoned. Orders and payments already
// created are kept. A checkout whose payment is being processed cannot be
// abandoned until that submission finishes.
func (s *CheckoutService) Abandon(ctx context.Context, checkoutID, buyerID string) (*domain.CheckoutSession, error) {
	session, err := s.Get(ctx, checkoutID, buyerID)
	if err != nil {
		return nil, err
	}
	if session.Status == domain.CheckoutStatusAbandoned {
		return session, nil
	}

	release, err := s.lock(ctx, checkoutID)
	if err != nil {
		return nil, err
	}
	defer release()

	if session, err = s.Get(ctx, checkoutID, buyerID); err != nil {
		return nil, err
	}
	if session.Status == domain.CheckoutStatusAbandoned {
		return session, nil
	}
	if !session.CanTransitionTo(domain.CheckoutStatusAbandoned) {
		return nil, invalidTransition(session.Status, domain.CheckoutStatusAbandoned)
	}

	from := session.Status
	session.Status = domain.CheckoutStatusAbandoned
	session.UpdatedAt = time.Now().UTC()
	if err := s.update(ctx, session, from); err != nil {
		return nil, err
	}

	metrics.CheckoutTransitions.WithLabelValues(domain.CheckoutStatusAbandoned).Inc()
	s.logger.InfoContext(ctx, "checkout abandoned",
		slog.String("checkout_id", session.ID),
		slog.String("order_id", session.OrderID),
	)
	return session, nil
}

// attachOrder returns the session's order, assembling it from a single cart
// snapshot on the first attempt. A failed assembly leaves the session and
// cart untouched.
func (s *CheckoutService) attachOrder(ctx context.Context, session *domain.CheckoutSession) (*domain.Order, error) {
	if session.HasOrder() {
		return s.orders.GetOrder(ctx, session.OrderID, session.BuyerID)
	}

	cart, err := s.carts.GetCart(ctx, session.SessionID)
	if err != nil {
		return nil, err
	}
	order, err := s.orders.CreateOrder(ctx, session.BuyerID, cart.Snapshot(), *session.ShippingInfo)
	if err != nil {
		return nil, err
	}

	from := session.Status
	session.OrderID = order.ID
	session.UpdatedAt = time.Now().UTC()
	if err := s.update(ctx, session, from); err != nil {
		s.logger.ErrorContext(ctx, "order created but not attached to checkout",
			slog.String("checkout_id", session.ID),
			slog.String("order_id", order.ID),
		)
		return nil, err
	}
	return order, nil
}

func (s *CheckoutService) markFailed(ctx context.Context, session *domain.CheckoutSession, cause error) {
	from := session.Status
	session.Status = domain.CheckoutStatusFailed
	session.FailureReason = failureReason(cause)
	session.UpdatedAt = time.Now().UTC()

	if err := s.update(ctx, session, from); err != nil {
		s.logger.WarnContext(ctx, "failed to record checkout failure",
			slog.String("checkout_id", session.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	metrics.CheckoutTransitions.WithLabelValues(domain.CheckoutStatusFailed).Inc()
}

// complete moves the session to complete. Only the caller whose conditional
// update wins clears the cart and announces the checkout.
func (s *CheckoutService) complete(ctx context.Context, session *domain.CheckoutSession, paymentID string) (*domain.CheckoutSession, error) {
	now := time.Now().UTC()
	session.Status = domain.CheckoutStatusComplete
	session.PaymentID = paymentID
	session.FailureReason = ""
	session.UpdatedAt = now
	session.CompletedAt = &now

	won, err := s.checkouts.UpdateIfStatus(ctx, session, domain.SourceStatuses(domain.CheckoutStatusComplete))
	if err != nil {
		return nil, apperrors.AsUpstream(fmt.Errorf("complete checkout: %w", err))
	}
	if !won {
		current, err := s.Get(ctx, session.ID, session.BuyerID)
		if err != nil {
			return nil, err
		}
		if current.Status == domain.CheckoutStatusComplete {
			return current, nil
		}
		// The order is paid but the session left payment|failed meanwhile.
		s.logger.ErrorContext(ctx, "order paid but checkout could not complete",
			slog.String("checkout_id", session.ID),
			slog.String("order_id", session.OrderID),
			slog.String("payment_id", paymentID),
			slog.String("status", current.Status),
		)
		return nil, apperrors.Conflict(fmt.Sprintf(
			"order %s was paid but checkout is %s", session.OrderID, current.Status,
		))
	}

	if err := s.carts.Clear(ctx, session.SessionID); err != nil {
		s.logger.ErrorContext(ctx, "checkout completed but cart not cleared",
			slog.String("checkout_id", session.ID),
			slog.String("session_id", session.SessionID),
			slog.String("error", err.Error()),
		)
	}
	metrics.CheckoutTransitions.WithLabelValues(domain.CheckoutStatusComplete).Inc()
	logPublishError(ctx, s.logger, "checkout.completed", s.producer.PublishCheckoutCompleted(ctx, session))

	s.logger.InfoContext(ctx, "checkout completed",
		slog.String("checkout_id", session.ID),
		slog.String("order_id", session.OrderID),
		slog.String("payment_id", paymentID),
	)
	return session, nil
}

// lock takes the per-checkout lock shared by payment submission and
// abandonment. The returned func releases it.
func (s *CheckoutService) lock(ctx context.Context, checkoutID string) (func(), error) {
	key := "checkout:" + checkoutID
	token, ok, err := s.locks.Acquire(ctx, key, s.lockTTL)
	if err != nil {
		return nil, apperrors.Upstream(fmt.Errorf("acquire checkout lock: %w", err))
	}
	if !ok {
		return nil, apperrors.Conflict("payment for this checkout is already being processed")
	}
	return func() {
		// Release even when the request context is gone.
		if err := s.locks.Release(context.WithoutCancel(ctx), key, token); err != nil {
			s.logger.WarnContext(ctx, "failed to release checkout lock",
				slog.String("checkout_id", checkoutID),
				slog.String("error", err.Error()),
			)
		}
	}, nil
}

func (s *CheckoutService) update(ctx context.Context, session *domain.CheckoutSession, from string) error {
	ok, err := s.checkouts.UpdateIfStatus(ctx, session, []string{from})
	if err != nil {
		return apperrors.AsUpstream(fmt.Errorf("update checkout: %w", err))
	}
	if !ok {
		return apperrors.Conflict("checkout was modified concurrently")
	}
	return nil
}

func invalidTransition(from, to string) error {
	return apperrors.Conflict(fmt.Sprintf("checkout cannot move from %s to %s", from, to))
}

func failureReason(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "payment could not be processed"
}
