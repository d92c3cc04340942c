package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ddjsphere/craftsmen-marketplace/internal/domain"
	"github.com/ddjsphere/craftsmen-marketplace/internal/event"
	"github.com/ddjsphere/craftsmen-marketplace/internal/metrics"
	"github.com/ddjsphere/craftsmen-marketplace/internal/repository"
	apperrors "github.com/ddjsphere/craftsmen-marketplace/pkg/errors"
	"github.com/ddjsphere/craftsmen-marketplace/pkg/pagination"
	"github.com/ddjsphere/craftsmen-marketplace/pkg/validator"
)

// OrderService assembles orders from cart snapshots and serves order reads.
type OrderService struct {
	repo     repository.OrderRepository
	producer *event.Producer
	logger   *slog.Logger
}

// NewOrderService creates a new order service.
func NewOrderService(repo repository.OrderRepository, producer *event.Producer, logger *slog.Logger) *OrderService {
	return &OrderService{repo: repo, producer: producer, logger: logger}
}

// CreateOrder persists a pending order built only from the cart snapshot.
// The total is computed here and never recomputed. Nothing is written for an
// empty cart or invalid shipping details.
func (s *OrderService) CreateOrder(ctx context.Context, buyerID string, cart *domain.Cart, shipping domain.ShippingInfo) (*domain.Order, error) {
	if buyerID == "" {
		return nil, apperrors.Unauthenticated("buyer identity is required")
	}
	if cart == nil || cart.IsEmpty() {
		return nil, apperrors.EmptyCart()
	}
	shipping = shipping.Trimmed()
	if err := validator.ToAppError(validator.Validate(shipping), "invalid shipping info"); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	order := &domain.Order{
		ID:           uuid.NewString(),
		BuyerID:      buyerID,
		ShippingInfo: shipping,
		Total:        cart.Total(),
		Status:       domain.OrderStatusPending,
		Items:        make([]domain.OrderItem, 0, len(cart.Items)),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, line := range cart.Items {
		order.Items = append(order.Items, domain.OrderItem{
			ID:        uuid.NewString(),
			OrderID:   order.ID,
			ItemID:    line.ItemID,
			Title:     line.Title,
			SellerID:  line.SellerID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Subtotal:  line.Subtotal(),
		})
	}

	if err := s.repo.Create(ctx, order); err != nil {
		return nil, apperrors.AsUpstream(fmt.Errorf("create order: %w", err))
	}

	metrics.OrdersCreated.Inc()
	logPublishError(ctx, s.logger, "order.created", s.producer.PublishOrderCreated(ctx, order))

	s.logger.InfoContext(ctx, "order created",
		slog.String("order_id", order.ID),
		slog.String("total", order.Total.StringFixed(2)),
		slog.Int("lines", len(order.Items)),
	)
	return order, nil
}

// GetOrder returns the order to its buyer, or to a seller with only that
// seller's lines. Anyone else is Unauthorized.
func (s *OrderService) GetOrder(ctx context.Context, orderID, requester string) (*domain.Order, error) {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, apperrors.AsUpstream(fmt.Errorf("get order: %w", err))
	}
	if !order.VisibleTo(requester) {
		return nil, apperrors.Unauthorized("order belongs to another buyer")
	}
	if order.BuyerID != requester {
		order.Items = order.ItemsForSeller(requester)
	}
	return order, nil
}

// ListBuyerOrders returns a page of the buyer's orders, newest first.
func (s *OrderService) ListBuyerOrders(ctx context.Context, buyerID string, page pagination.Params) ([]domain.Order, int, error) {
	orders, total, err := s.repo.ListByBuyer(ctx, buyerID, page.Offset, page.PerPage)
	if err != nil {
		return nil, 0, apperrors.AsUpstream(fmt.Errorf("list buyer orders: %w", err))
	}
	return orders, total, nil
}

// ListSellerOrders returns a page of orders containing the seller's items.
// Each order carries only that seller's lines.
func (s *OrderService) ListSellerOrders(ctx context.Context, sellerID string, page pagination.Params) ([]domain.Order, int, error) {
	orders, total, err := s.repo.ListBySeller(ctx, sellerID, page.Offset, page.PerPage)
	if err != nil {
		return nil, 0, apperrors.AsUpstream(fmt.Errorf("list seller orders: %w", err))
	}
	for i := range orders {
		orders[i].Items = orders[i].ItemsForSeller(sellerID)
	}
	return orders, total, nil
}
