package postgres

import (
	"context"
	"errors"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ddjsphere/craftsmen-marketplace/pkg/errors"
)

func TestCatalogRepository_GetItem(t *testing.T) {
	mock := newMock(t)
	repo := NewCatalogRepository(mock)

	mock.ExpectQuery("FROM catalog_items WHERE id").
		WithArgs("bowl").
		WillReturnRows(pgxmock.NewRows([]string{"id", "title", "price", "owner_id", "active"}).
			AddRow("bowl", "Walnut bowl", "45.50", "artisan-a", true))

	item, err := repo.GetItem(context.Background(), "bowl")
	require.NoError(t, err)
	assert.Equal(t, "Walnut bowl", item.Title)
	assert.Equal(t, "45.5", item.Price.String())
	assert.True(t, item.Active)
}

func TestCatalogRepository_GetItem_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewCatalogRepository(mock)

	mock.ExpectQuery("FROM catalog_items").
		WillReturnRows(pgxmock.NewRows([]string{"id", "title", "price", "owner_id", "active"}))

	_, err := repo.GetItem(context.Background(), "ghost")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCatalogRepository_GetItem_DriverError(t *testing.T) {
	mock := newMock(t)
	repo := NewCatalogRepository(mock)

	mock.ExpectQuery("FROM catalog_items").WillReturnError(errors.New("connection reset"))

	_, err := repo.GetItem(context.Background(), "bowl")
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrNotFound)
}
