package postgres

import (
	"context"
	"fmt"

	"github.com/ddjsphere/craftsmen-marketplace/internal/domain"
	"github.com/ddjsphere/craftsmen-marketplace/pkg/database"
)

// FavoriteRepository implements repository.FavoriteRepository using PostgreSQL.
type FavoriteRepository struct {
	pool database.DBTX
}

// NewFavoriteRepository creates a new PostgreSQL-backed favorites repository.
func NewFavoriteRepository(pool database.DBTX) *FavoriteRepository {
	return &FavoriteRepository{pool: pool}
}

// Add saves an item for a buyer. Saving it twice is a no-op.
func (r *FavoriteRepository) Add(ctx context.Context, f *domain.Favorite) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO favorites (buyer_id, item_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (buyer_id, item_id) DO NOTHING`,
		f.BuyerID, f.ItemID, f.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert favorite: %w", err)
	}
	return nil
}

// Remove deletes a saved item. Removing an unknown favorite is not an error.
func (r *FavoriteRepository) Remove(ctx context.Context, buyerID, itemID string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM favorites WHERE buyer_id = $1 AND item_id = $2`, buyerID, itemID); err != nil {
		return fmt.Errorf("delete favorite: %w", err)
	}
	return nil
}

// List returns the buyer's favorites, most recent first.
func (r *FavoriteRepository) List(ctx context.Context, buyerID string) ([]domain.Favorite, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT buyer_id, item_id, created_at
		FROM favorites
		WHERE buyer_id = $1
		ORDER BY created_at DESC`, buyerID)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	defer rows.Close()

	favs := []domain.Favorite{}
	for rows.Next() {
		var f domain.Favorite
		if err := rows.Scan(&f.BuyerID, &f.ItemID, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan favorite: %w", err)
		}
		favs = append(favs, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate favorites: %w", err)
	}
	return favs, nil
}
