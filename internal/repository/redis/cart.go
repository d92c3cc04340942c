package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ddjsphere/craftsmen-marketplace/internal/domain"
	"github.com/ddjsphere/craftsmen-marketplace/pkg/database"
	apperrors "github.com/ddjsphere/craftsmen-marketplace/pkg/errors"
)

const cartKeyPrefix = "cart:"

// CartRepository implements repository.CartRepository using Redis.
// Each read or write slides the key's expiry forward by ttl.
type CartRepository struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewCartRepository creates a new Redis-backed cart repository.
func NewCartRepository(client redis.UniversalClient, ttl time.Duration) *CartRepository {
	return &CartRepository{
		client: client,
		ttl:    ttl,
	}
}

// Get retrieves the cart for a session from Redis.
func (r *CartRepository) Get(ctx context.Context, sessionID string) (_ *domain.Cart, err error) {
	key := cartKeyPrefix + sessionID
	ctx, end := database.Trace(ctx, database.SystemRedis, "GetCart", "GETEX "+key)
	defer func() { end(err) }()

	data, err := r.client.GetEx(ctx, key, r.ttl).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NotFound("cart", sessionID)
		}
		return nil, fmt.Errorf("redis get cart: %w", err)
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart: %w", err)
	}
	if cart.Items == nil {
		cart.Items = []domain.CartLineItem{}
	}

	return &cart, nil
}

// Save persists a cart to Redis with the configured TTL.
func (r *CartRepository) Save(ctx context.Context, cart *domain.Cart) (err error) {
	key := cartKeyPrefix + cart.SessionID
	ctx, end := database.Trace(ctx, database.SystemRedis, "SaveCart", "SET "+key)
	defer func() { end(err) }()

	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}

	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set cart: %w", err)
	}

	return nil
}

// Delete removes a session's cart from Redis.
func (r *CartRepository) Delete(ctx context.Context, sessionID string) (err error) {
	key := cartKeyPrefix + sessionID
	ctx, end := database.Trace(ctx, database.SystemRedis, "DeleteCart", "DEL "+key)
	defer func() { end(err) }()

	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del cart: %w", err)
	}

	return nil
}
