package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddjsphere/craftsmen-marketplace/internal/domain"
	apperrors "github.com/ddjsphere/craftsmen-marketplace/pkg/errors"
)

const testSession = "8f14e45f-ceea-467f-a9f0-6b1f0c1a2e11"

func sampleCart() *domain.Cart {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &domain.Cart{
		SessionID: testSession,
		Items: []domain.CartLineItem{
			{
				ItemID:    "item-1",
				Title:     "Walnut bowl",
				SellerID:  "artisan-1",
				Quantity:  2,
				UnitPrice: decimal.RequireFromString("45.50"),
				AddedAt:   now,
			},
		},
		UpdatedAt: now,
	}
}

func TestCartRepository_SaveAndGet(t *testing.T) {
	client, mr := setupTestRedis(t)
	repo := NewCartRepository(client, time.Hour)

	cart := sampleCart()
	require.NoError(t, repo.Save(context.Background(), cart))
	assert.True(t, mr.Exists("cart:"+testSession))

	got, err := repo.Get(context.Background(), testSession)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Walnut bowl", got.Items[0].Title)
	assert.True(t, got.Items[0].UnitPrice.Equal(decimal.RequireFromString("45.50")))
	assert.Equal(t, 2, got.Items[0].Quantity)
}

func TestCartRepository_Get_NotFound(t *testing.T) {
	client, _ := setupTestRedis(t)
	repo := NewCartRepository(client, time.Hour)

	got, err := repo.Get(context.Background(), "missing")
	assert.Nil(t, got)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCartRepository_Get_InvalidJSON(t *testing.T) {
	client, mr := setupTestRedis(t)
	repo := NewCartRepository(client, time.Hour)

	require.NoError(t, mr.Set("cart:bad", "{{nope"))

	_, err := repo.Get(context.Background(), "bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal cart")
}

func TestCartRepository_Get_SlidesTTL(t *testing.T) {
	client, mr := setupTestRedis(t)
	repo := NewCartRepository(client, time.Hour)

	require.NoError(t, repo.Save(context.Background(), sampleCart()))
	mr.FastForward(50 * time.Minute)
	assert.Equal(t, 10*time.Minute, mr.TTL("cart:"+testSession))

	_, err := repo.Get(context.Background(), testSession)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, mr.TTL("cart:"+testSession))
}

func TestCartRepository_Get_NullItemsBecomesEmpty(t *testing.T) {
	client, mr := setupTestRedis(t)
	repo := NewCartRepository(client, time.Hour)

	raw, err := json.Marshal(map[string]any{"sessionId": testSession, "items": nil})
	require.NoError(t, err)
	require.NoError(t, mr.Set("cart:"+testSession, string(raw)))

	got, err := repo.Get(context.Background(), testSession)
	require.NoError(t, err)
	assert.NotNil(t, got.Items)
	assert.Empty(t, got.Items)
}

func TestCartRepository_Delete_Idempotent(t *testing.T) {
	client, mr := setupTestRedis(t)
	repo := NewCartRepository(client, time.Hour)

	require.NoError(t, repo.Save(context.Background(), sampleCart()))
	require.NoError(t, repo.Delete(context.Background(), testSession))
	assert.False(t, mr.Exists("cart:"+testSession))

	assert.NoError(t, repo.Delete(context.Background(), testSession))
}

func TestCartRepository_ConnectionError(t *testing.T) {
	client, mr := setupTestRedis(t)
	repo := NewCartRepository(client, time.Hour)
	mr.Close()

	_, err := repo.Get(context.Background(), testSession)
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrNotFound)
}
