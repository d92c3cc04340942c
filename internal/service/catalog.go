package service

import (
	"context"
	"fmt"

	"github.com/ddjsphere/craftsmen-marketplace/internal/domain"
	"github.com/ddjsphere/craftsmen-marketplace/internal/repository"
	apperrors "github.com/ddjsphere/craftsmen-marketplace/pkg/errors"
)

// CatalogLookup resolves item IDs to their current price, title and owner.
type CatalogLookup struct {
	repo repository.CatalogRepository
}

// NewCatalogLookup creates a catalog lookup over repo.
func NewCatalogLookup(repo repository.CatalogRepository) *CatalogLookup {
	return &CatalogLookup{repo: repo}
}

// Resolve returns the active listing for itemID. Unknown and inactive items
// are NotFound; a price that is negative or finer than a cent is an
// upstream failure.
func (c *CatalogLookup) Resolve(ctx context.Context, itemID string) (*domain.CatalogItem, error) {
	if itemID == "" {
		return nil, apperrors.Validation("item id is required", map[string]string{"itemId": "is required"})
	}

	item, err := c.repo.GetItem(ctx, itemID)
	if err != nil {
		return nil, apperrors.AsUpstream(fmt.Errorf("resolve item %s: %w", itemID, err))
	}
	if !item.Active {
		return nil, apperrors.NotFound("item", itemID)
	}
	// Order totals are stored as NUMERIC(12,2); a finer price would be rounded away.
	if !item.Price.Equal(item.Price.Round(2)) || item.Price.IsNegative() {
		return nil, apperrors.Upstream(fmt.Errorf("item %s has unusable price %s", itemID, item.Price))
	}
	item.Price = item.Price.Round(2)
	return item, nil
}
