package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ddjsphere/craftsmen-marketplace/internal/domain"
	"github.com/ddjsphere/craftsmen-marketplace/internal/repository"
	apperrors "github.com/ddjsphere/craftsmen-marketplace/pkg/errors"
)

// FavoriteService manages buyers' saved items.
type FavoriteService struct {
	repo    repository.FavoriteRepository
	catalog *CatalogLookup
	logger  *slog.Logger
}

// NewFavoriteService creates a new favorite service.
func NewFavoriteService(repo repository.FavoriteRepository, catalog *CatalogLookup, logger *slog.Logger) *FavoriteService {
	return &FavoriteService{repo: repo, catalog: catalog, logger: logger}
}

// List returns the buyer's favorites, newest first.
func (s *FavoriteService) List(ctx context.Context, buyerID string) ([]domain.Favorite, error) {
	if buyerID == "" {
		return nil, apperrors.Unauthenticated("buyer identity is required")
	}
	favs, err := s.repo.List(ctx, buyerID)
	if err != nil {
		return nil, apperrors.AsUpstream(fmt.Errorf("list favorites: %w", err))
	}
	return favs, nil
}

// Add saves itemID for the buyer. The item must resolve in the catalog;
// adding it twice is a no-op.
func (s *FavoriteService) Add(ctx context.Context, buyerID, itemID string) (*domain.Favorite, error) {
	if buyerID == "" {
		return nil, apperrors.Unauthenticated("buyer identity is required")
	}
	if _, err := s.catalog.Resolve(ctx, itemID); err != nil {
		return nil, err
	}

	fav := &domain.Favorite{BuyerID: buyerID, ItemID: itemID, CreatedAt: time.Now().UTC()}
	if err := s.repo.Add(ctx, fav); err != nil {
		return nil, apperrors.AsUpstream(fmt.Errorf("add favorite: %w", err))
	}

	s.logger.DebugContext(ctx, "favorite added", slog.String("item_id", itemID))
	return fav, nil
}

// Remove deletes the favorite. Removing an absent favorite succeeds.
func (s *FavoriteService) Remove(ctx context.Context, buyerID, itemID string) error {
	if buyerID == "" {
		return apperrors.Unauthenticated("buyer identity is required")
	}
	if err := s.repo.Remove(ctx, buyerID, itemID); err != nil {
		return apperrors.AsUpstream(fmt.Errorf("remove favorite: %w", err))
	}
	return nil
}
