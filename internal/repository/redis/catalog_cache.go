package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ddjsphere/craftsmen-marketplace/internal/domain"
	"github.com/ddjsphere/craftsmen-marketplace/internal/repository"
	"github.com/ddjsphere/craftsmen-marketplace/pkg/database"
)

const catalogKeyPrefix = "catalog:item:"

// CachedCatalog is a read-through cache in front of another CatalogRepository.
// Only successful lookups are cached. Cache failures are logged and the
// lookup falls through to the wrapped repository.
type CachedCatalog struct {
	next   repository.CatalogRepository
	client redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedCatalog wraps next. A non-positive ttl disables caching and returns next as is.
func NewCachedCatalog(next repository.CatalogRepository, client redis.UniversalClient, ttl time.Duration, logger *slog.Logger) repository.CatalogRepository {
	if ttl <= 0 {
		return next
	}
	return &CachedCatalog{next: next, client: client, ttl: ttl, logger: logger}
}

// GetItem returns the cached item or loads and caches it.
func (c *CachedCatalog) GetItem(ctx context.Context, itemID string) (*domain.CatalogItem, error) {
	key := catalogKeyPrefix + itemID

	if item, ok := c.lookup(ctx, key); ok {
		return item, nil
	}

	item, err := c.next.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	c.store(ctx, key, item)
	return item, nil
}

func (c *CachedCatalog) lookup(ctx context.Context, key string) (*domain.CatalogItem, bool) {
	var err error
	ctx, end := database.Trace(ctx, database.SystemRedis, "GetCatalogItem", "GET "+key)
	defer func() { end(err) }()

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			err = nil
		} else {
			c.logger.WarnContext(ctx, "catalog cache read failed", slog.String("key", key), slog.String("error", err.Error()))
		}
		return nil, false
	}

	var item domain.CatalogItem
	if err = json.Unmarshal(data, &item); err != nil {
		c.logger.WarnContext(ctx, "catalog cache entry corrupt", slog.String("key", key), slog.String("error", err.Error()))
		return nil, false
	}
	return &item, true
}

func (c *CachedCatalog) store(ctx context.Context, key string, item *domain.CatalogItem) {
	data, err := json.Marshal(item)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "catalog cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}
