package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ddjsphere/craftsmen-marketplace/internal/domain"
	"github.com/ddjsphere/craftsmen-marketplace/pkg/database"
	apperrors "github.com/ddjsphere/craftsmen-marketplace/pkg/errors"
)

// CatalogRepository reads artisan listings from the catalog_items table.
type CatalogRepository struct {
	pool database.DBTX
}

// NewCatalogRepository creates a new PostgreSQL-backed catalog repository.
func NewCatalogRepository(pool database.DBTX) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// GetItem returns the listing for itemID, active or not.
func (r *CatalogRepository) GetItem(ctx context.Context, itemID string) (_ *domain.CatalogItem, err error) {
	query := `SELECT id, title, price, owner_id, active FROM catalog_items WHERE id = $1`
	ctx, end := database.TraceQuery(ctx, "GetCatalogItem", query)
	defer func() { end(err) }()

	var item domain.CatalogItem
	err = r.pool.QueryRow(ctx, query, itemID).Scan(&item.ID, &item.Title, &item.Price, &item.OwnerID, &item.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("item", itemID)
		}
		return nil, fmt.Errorf("get catalog item: %w", err)
	}
	return &item, nil
}
