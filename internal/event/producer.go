package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/ddjsphere/craftsmen-marketplace/internal/domain"
	pkgkafka "github.com/ddjsphere/craftsmen-marketplace/pkg/kafka"
	"github.com/ddjsphere/craftsmen-marketplace/pkg/logger"
)

// Kafka topics for marketplace domain events. The topic doubles as the event type.
var (
	TopicCartItemAdded     = pkgkafka.Topic("cart", "item_added")
	TopicCartItemRemoved   = pkgkafka.Topic("cart", "item_removed")
	TopicCartCleared       = pkgkafka.Topic("cart", "cleared")
	TopicOrderCreated      = pkgkafka.Topic("order", "created")
	TopicOrderPaid         = pkgkafka.Topic("order", "paid")
	TopicPaymentCompleted  = pkgkafka.Topic("payment", "completed")
	TopicPaymentFailed     = pkgkafka.Topic("payment", "failed")
	TopicCheckoutCompleted = pkgkafka.Topic("checkout", "completed")
)

// Aggregate type constants.
const (
	AggregateTypeCart     = "cart"
	AggregateTypeOrder    = "order"
	AggregateTypePayment  = "payment"
	AggregateTypeCheckout = "checkout"
)

// Source identifier for events originating from this service.
const Source = "marketplace"

// CartItemData is the payload for cart.item_added and cart.item_removed.
type CartItemData struct {
	SessionID string          `json:"session_id"`
	ItemID    string          `json:"item_id"`
	Quantity  int             `json:"quantity,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price,omitempty"`
	LineCount int             `json:"line_count"`
}

// CartClearedData is the payload for cart.cleared.
type CartClearedData struct {
	SessionID string `json:"session_id"`
}

// OrderData is the payload for order.created and order.paid.
type OrderData struct {
	ID        string          `json:"id"`
	BuyerID   string          `json:"buyer_id"`
	Total     decimal.Decimal `json:"total"`
	Status    string          `json:"status"`
	SellerIDs []string        `json:"seller_ids"`
	ItemCount int             `json:"item_count"`
	PaymentID string          `json:"payment_id,omitempty"`
}

// PaymentData is the payload for payment.completed and payment.failed.
type PaymentData struct {
	ID            string          `json:"id"`
	OrderID       string          `json:"order_id"`
	BuyerID       string          `json:"buyer_id"`
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method"`
	Status        string          `json:"status"`
	ProviderRef   string          `json:"provider_ref,omitempty"`
	FailureReason string          `json:"failure_reason,omitempty"`
}

// CheckoutData is the payload for checkout.completed.
type CheckoutData struct {
	ID        string `json:"id"`
	BuyerID   string `json:"buyer_id"`
	SessionID string `json:"session_id"`
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
}

// Producer publishes marketplace domain events. A nil publisher turns every
// method into a no-op so the service runs without Kafka.
type Producer struct {
	pub    pkgkafka.Publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(pub pkgkafka.Publisher, logger *slog.Logger) *Producer {
	return &Producer{pub: pub, logger: logger}
}

// PublishCartItemAdded publishes a cart.item_added event.
func (p *Producer) PublishCartItemAdded(ctx context.Context, cart *domain.Cart, line domain.CartLineItem, added int) error {
	return p.publish(ctx, TopicCartItemAdded, cart.SessionID, AggregateTypeCart, CartItemData{
		SessionID: cart.SessionID,
		ItemID:    line.ItemID,
		Quantity:  added,
		UnitPrice: line.UnitPrice,
		LineCount: len(cart.Items),
	})
}

// PublishCartItemRemoved publishes a cart.item_removed event.
func (p *Producer) PublishCartItemRemoved(ctx context.Context, cart *domain.Cart, itemID string) error {
	return p.publish(ctx, TopicCartItemRemoved, cart.SessionID, AggregateTypeCart, CartItemData{
		SessionID: cart.SessionID,
		ItemID:    itemID,
		LineCount: len(cart.Items),
	})
}

// PublishCartCleared publishes a cart.cleared event.
func (p *Producer) PublishCartCleared(ctx context.Context, sessionID string) error {
	return p.publish(ctx, TopicCartCleared, sessionID, AggregateTypeCart, CartClearedData{SessionID: sessionID})
}

// PublishOrderCreated publishes an order.created event.
func (p *Producer) PublishOrderCreated(ctx context.Context, o *domain.Order) error {
	return p.publish(ctx, TopicOrderCreated, o.ID, AggregateTypeOrder, orderData(o))
}

// PublishOrderPaid publishes an order.paid event.
func (p *Producer) PublishOrderPaid(ctx context.Context, o *domain.Order) error {
	return p.publish(ctx, TopicOrderPaid, o.ID, AggregateTypeOrder, orderData(o))
}

// PublishPaymentCompleted publishes a payment.completed event, keyed by order
// so it is ordered with the order's other events.
func (p *Producer) PublishPaymentCompleted(ctx context.Context, pay *domain.Payment) error {
	return p.publish(ctx, TopicPaymentCompleted, pay.OrderID, AggregateTypePayment, paymentData(pay))
}

// PublishPaymentFailed publishes a payment.failed event.
func (p *Producer) PublishPaymentFailed(ctx context.Context, pay *domain.Payment) error {
	return p.publish(ctx, TopicPaymentFailed, pay.OrderID, AggregateTypePayment, paymentData(pay))
}

// PublishCheckoutCompleted publishes a checkout.completed event.
func (p *Producer) PublishCheckoutCompleted(ctx context.Context, s *domain.CheckoutSession) error {
	return p.publish(ctx, TopicCheckoutCompleted, s.ID, AggregateTypeCheckout, CheckoutData{
		ID:        s.ID,
		BuyerID:   s.BuyerID,
		SessionID: s.SessionID,
		OrderID:   s.OrderID,
		PaymentID: s.PaymentID,
	})
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	if p == nil || p.pub == nil {
		return nil
	}

	event, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, Source, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := p.pub.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "event published",
		slog.String("topic", topic),
		slog.String("event_id", event.EventID),
		slog.String("aggregate_id", aggregateID),
	)
	return nil
}

func orderData(o *domain.Order) OrderData {
	return OrderData{
		ID:        o.ID,
		BuyerID:   o.BuyerID,
		Total:     o.Total,
		Status:    o.Status,
		SellerIDs: o.SellerIDs(),
		ItemCount: len(o.Items),
		PaymentID: o.PaymentID,
	}
}

func paymentData(pay *domain.Payment) PaymentData {
	return PaymentData{
		ID:            pay.ID,
		OrderID:       pay.OrderID,
		BuyerID:       pay.BuyerID,
		Amount:        pay.Amount,
		Method:        pay.Method,
		Status:        pay.Status,
		ProviderRef:   pay.ProviderRef,
		FailureReason: pay.FailureReason,
	}
}
