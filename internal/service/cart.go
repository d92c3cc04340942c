package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ddjsphere/craftsmen-marketplace/internal/domain"
	"github.com/ddjsphere/craftsmen-marketplace/internal/event"
	"github.com/ddjsphere/craftsmen-marketplace/internal/metrics"
	"github.com/ddjsphere/craftsmen-marketplace/internal/repository"
	apperrors "github.com/ddjsphere/craftsmen-marketplace/pkg/errors"
)

// Cart operation upper-bound limits to prevent abuse.
const (
	// MaxQuantityPerItem is the maximum quantity allowed for a single cart line.
	MaxQuantityPerItem = 100
	// MaxItemsPerCart is the maximum number of distinct items allowed in a cart.
	MaxItemsPerCart = 50
)

// CartService implements the business logic for cart operations.
// Concurrent writes to the same session are last-writer-wins.
type CartService struct {
	repo     repository.CartRepository
	catalog  *CatalogLookup
	producer *event.Producer
	logger   *slog.Logger
}

// NewCartService creates a new cart service.
func NewCartService(repo repository.CartRepository, catalog *CatalogLookup, producer *event.Producer, logger *slog.Logger) *CartService {
	return &CartService{
		repo:     repo,
		catalog:  catalog,
		producer: producer,
		logger:   logger,
	}
}

// GetCart retrieves the cart for a session. A session without a cart gets an empty one.
func (s *CartService) GetCart(ctx context.Context, sessionID string) (*domain.Cart, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}

	cart, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return domain.NewCart(sessionID), nil
		}
		return nil, apperrors.Upstream(fmt.Errorf("get cart: %w", err))
	}
	return cart, nil
}

// AddItem adds quantity units of itemID. An existing line accumulates
// quantity and keeps its original price snapshot; a new line snapshots the
// catalog price, title and seller now.
func (s *CartService) AddItem(ctx context.Context, sessionID, itemID string, quantity int) (*domain.Cart, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}
	if quantity < 1 || quantity > MaxQuantityPerItem {
		return nil, apperrors.Validation(
			fmt.Sprintf("quantity must be between 1 and %d", MaxQuantityPerItem),
			map[string]string{"quantity": fmt.Sprintf("must be between 1 and %d", MaxQuantityPerItem)},
		)
	}

	item, err := s.catalog.Resolve(ctx, itemID)
	if err != nil {
		return nil, err
	}

	cart, err := s.GetCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var line domain.CartLineItem
	if i := cart.FindLine(itemID); i >= 0 {
		newQty := cart.Items[i].Quantity + quantity
		if newQty > MaxQuantityPerItem {
			return nil, apperrors.Validation(
				fmt.Sprintf("combined quantity must not exceed %d", MaxQuantityPerItem),
				map[string]string{"quantity": fmt.Sprintf("combined quantity must not exceed %d", MaxQuantityPerItem)},
			)
		}
		cart.Items[i].Quantity = newQty
		line = cart.Items[i]
	} else {
		if len(cart.Items) >= MaxItemsPerCart {
			return nil, apperrors.Validation(fmt.Sprintf("cart cannot hold more than %d items", MaxItemsPerCart), nil)
		}
		line = domain.CartLineItem{
			ItemID:    item.ID,
			Title:     item.Title,
			SellerID:  item.OwnerID,
			Quantity:  quantity,
			UnitPrice: item.Price,
			AddedAt:   now,
		}
		cart.Items = append(cart.Items, line)
	}
	cart.UpdatedAt = now

	if err := s.repo.Save(ctx, cart); err != nil {
		return nil, apperrors.Upstream(fmt.Errorf("save cart: %w", err))
	}

	metrics.CartOperations.WithLabelValues("add").Inc()
	logPublishError(ctx, s.logger, "cart.item_added", s.producer.PublishCartItemAdded(ctx, cart, line, quantity))

	s.logger.InfoContext(ctx, "item added to cart",
		slog.String("session_id", sessionID),
		slog.String("item_id", itemID),
		slog.Int("quantity", line.Quantity),
	)
	return cart, nil
}

// RemoveItem deletes the line for itemID. Removing an absent item returns the cart unchanged.
func (s *CartService) RemoveItem(ctx context.Context, sessionID, itemID string) (*domain.Cart, error) {
	cart, err := s.GetCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	i := cart.FindLine(itemID)
	if i < 0 {
		return cart, nil
	}

	cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
	cart.UpdatedAt = time.Now().UTC()

	if err := s.repo.Save(ctx, cart); err != nil {
		return nil, apperrors.Upstream(fmt.Errorf("save cart: %w", err))
	}

	metrics.CartOperations.WithLabelValues("remove").Inc()
	logPublishError(ctx, s.logger, "cart.item_removed", s.producer.PublishCartItemRemoved(ctx, cart, itemID))
	return cart, nil
}

// Clear deletes the session's cart. Clearing an empty cart succeeds.
func (s *CartService) Clear(ctx context.Context, sessionID string) error {
	if err := validateSessionID(sessionID); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, sessionID); err != nil {
		return apperrors.Upstream(fmt.Errorf("clear cart: %w", err))
	}

	metrics.CartOperations.WithLabelValues("clear").Inc()
	logPublishError(ctx, s.logger, "cart.cleared", s.producer.PublishCartCleared(ctx, sessionID))
	return nil
}
