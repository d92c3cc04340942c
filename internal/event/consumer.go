package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	pkgkafka "github.com/ddjsphere/craftsmen-marketplace/pkg/kafka"
)

// idempotencyTTL bounds how long processed event IDs are remembered.
const idempotencyTTL = 24 * time.Hour

// OrderReconciler marks a pending order paid when a completed payment exists.
type OrderReconciler interface {
	Reconcile(ctx context.Context, orderID string) error
}

// ReconcileHandler consumes payment.completed events and reconciles the
// referenced order, repairing orders left pending after a settlement.
type ReconcileHandler struct {
	reconciler OrderReconciler
	logger     *slog.Logger
}

// NewReconcileHandler creates a new payment.completed handler.
func NewReconcileHandler(reconciler OrderReconciler, logger *slog.Logger) *ReconcileHandler {
	return &ReconcileHandler{reconciler: reconciler, logger: logger}
}

// Handle reconciles the order named by a payment.completed event. Events of
// other types and payloads without an order are acknowledged and dropped.
func (h *ReconcileHandler) Handle(ctx context.Context, event *pkgkafka.Event) error {
	if event.EventType != TopicPaymentCompleted {
		h.logger.WarnContext(ctx, "unexpected event type received",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
		)
		return nil
	}

	var data PaymentData
	if err := event.UnmarshalData(&data); err != nil {
		h.logger.ErrorContext(ctx, "invalid payment.completed payload",
			slog.String("event_id", event.EventID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if data.OrderID == "" {
		h.logger.WarnContext(ctx, "payment.completed event without order id", slog.String("event_id", event.EventID))
		return nil
	}

	if err := h.reconciler.Reconcile(ctx, data.OrderID); err != nil {
		return fmt.Errorf("reconcile order %s: %w", data.OrderID, err)
	}
	return nil
}

// ConsumerConfig wires the reconciliation consumer.
type ConsumerConfig struct {
	Brokers []string
	GroupID string
}

// NewPaymentConsumer builds a consumer on the payment.completed topic with a
// Redis-backed idempotency guard and a dead-letter producer.
func NewPaymentConsumer(cfg ConsumerConfig, h *ReconcileHandler, rdb redis.UniversalClient, logger *slog.Logger) (*pkgkafka.Consumer, *pkgkafka.DLQProducer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil, errors.New("payment consumer: no brokers configured")
	}

	store := pkgkafka.NewRedisIdempotencyStore(rdb, "marketplace:events:"+cfg.GroupID+":", idempotencyTTL)
	dlq := pkgkafka.NewDLQProducer(cfg.Brokers, logger)

	consumer := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers: cfg.Brokers,
		GroupID: cfg.GroupID,
		Topic:   TopicPaymentCompleted,
	}, pkgkafka.IdempotentHandler(store, h.Handle, logger), dlq, logger)

	return consumer, dlq, nil
}
