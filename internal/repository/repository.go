package repository

import (
	"context"
	"time"

	"github.com/ddjsphere/craftsmen-marketplace/internal/domain"
)

// CartRepository defines the interface for cart persistence operations.
type CartRepository interface {
	// Get retrieves the cart for a session. A missing cart is a NotFound error.
	Get(ctx context.Context, sessionID string) (*domain.Cart, error)

	// Save persists a cart, overwriting any existing cart for the session.
	Save(ctx context.Context, cart *domain.Cart) error

	// Delete removes the session's cart. Deleting a missing cart is not an error.
	Delete(ctx context.Context, sessionID string) error
}

// SessionRepository tracks anonymous session identifiers.
type SessionRepository interface {
	Create(ctx context.Context, sessionID string) error
	// Refresh extends a known session's TTL and reports whether it existed.
	Refresh(ctx context.Context, sessionID string) (bool, error)
}

// LockRepository provides short-lived mutual exclusion keyed by name.
type LockRepository interface {
	// Acquire takes the lock if it is free and returns an ownership token.
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)

	// Release frees the lock only if token still owns it.
	Release(ctx context.Context, key, token string) error
}

// CatalogRepository resolves catalog items.
type CatalogRepository interface {
	GetItem(ctx context.Context, itemID string) (*domain.CatalogItem, error)
}

// OrderRepository defines the interface for order persistence operations.
type OrderRepository interface {
	// Create inserts the order, its items and its seller index in one transaction.
	Create(ctx context.Context, order *domain.Order) error

	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// ListByBuyer returns a page of the buyer's orders, newest first, and the total count.
	ListByBuyer(ctx context.Context, buyerID string, offset, limit int) ([]domain.Order, int, error)

	// ListBySeller returns a page of orders containing at least one of the seller's items.
	ListBySeller(ctx context.Context, sellerID string, offset, limit int) ([]domain.Order, int, error)

	// MarkPaid moves a pending order to paid and records paymentID.
	// It reports false when the order was not pending.
	MarkPaid(ctx context.Context, orderID, paymentID string) (bool, error)
}

// PaymentRepository defines the interface for payment persistence operations.
type PaymentRepository interface {
	// Create inserts an immutable payment record. A second completed payment
	// for the same order is rejected with a Conflict error.
	Create(ctx context.Context, payment *domain.Payment) error

	// GetCompletedByOrder returns the order's completed payment or NotFound.
	GetCompletedByOrder(ctx context.Context, orderID string) (*domain.Payment, error)

	// ListOrphaned returns completed payments whose order is still pending.
	ListOrphaned(ctx context.Context, limit int) ([]domain.Payment, error)
}

// CheckoutRepository defines the interface for checkout session persistence.
type CheckoutRepository interface {
	Create(ctx context.Context, session *domain.CheckoutSession) error
	GetByID(ctx context.Context, id string) (*domain.CheckoutSession, error)

	// UpdateIfStatus writes session only while its stored status is one of from.
	// It reports false when another writer moved the session first.
	UpdateIfStatus(ctx context.Context, session *domain.CheckoutSession, from []string) (bool, error)
}

// FavoriteRepository stores buyers' saved items.
type FavoriteRepository interface {
	Add(ctx context.Context, fav *domain.Favorite) error
	Remove(ctx context.Context, buyerID, itemID string) error
	List(ctx context.Context, buyerID string) ([]domain.Favorite, error)
}

// SubscriberRepository stores newsletter sign-ups.
type SubscriberRepository interface {
	// Upsert records the subscriber; an existing email is left untouched.
	Upsert(ctx context.Context, sub *domain.Subscriber) error
}
