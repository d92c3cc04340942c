package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddjsphere/craftsmen-marketplace/internal/domain"
	"github.com/ddjsphere/craftsmen-marketplace/internal/event"
	apperrors "github.com/ddjsphere/craftsmen-marketplace/pkg/errors"
)

func TestSessionService_GetOrCreate(t *testing.T) {
	ctx := context.Background()
	repo := newMemSessions()
	svc := NewSessionService(repo, newTestLogger())

	id, created, err := svc.GetOrCreate(ctx, "")
	require.NoError(t, err)
	assert.True(t, created)
	_, err = uuid.Parse(id)
	assert.NoError(t, err)

	again, created, err := svc.GetOrCreate(ctx, id)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, id, again)

	t.Run("unknown or malformed candidates get a fresh id", func(t *testing.T) {
		for _, candidate := range []string{"not-a-uuid", uuid.NewString()} {
			got, created, err := svc.GetOrCreate(ctx, candidate)
			require.NoError(t, err)
			assert.True(t, created)
			assert.NotEqual(t, candidate, got)
		}
	})

	t.Run("store failure", func(t *testing.T) {
		repo.err = errors.New("redis down")
		_, _, err := svc.GetOrCreate(ctx, "")
		assert.True(t, errors.Is(err, apperrors.ErrUpstream))
	})
}

func TestCartService_GetCart_EmptyForNewSession(t *testing.T) {
	f := newFixture()
	sid := uuid.NewString()

	cart, err := f.cartSvc.GetCart(context.Background(), sid)
	require.NoError(t, err)
	assert.Equal(t, sid, cart.SessionID)
	assert.Empty(t, cart.Items)
	assert.True(t, cart.Total().IsZero())
}

func TestCartService_GetCart_InvalidSession(t *testing.T) {
	f := newFixture()
	_, err := f.cartSvc.GetCart(context.Background(), "abc")
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

func TestCartService_GetCart_StoreFailure(t *testing.T) {
	f := newFixture()
	f.carts.getErr = errors.New("connection refused")

	_, err := f.cartSvc.GetCart(context.Background(), uuid.NewString())
	assert.True(t, errors.Is(err, apperrors.ErrUpstream))
}

func TestCartService_AddItem_AccumulatesAndKeepsSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	sid := uuid.NewString()

	_, err := f.cartSvc.AddItem(ctx, sid, itemMug.ID, 1)
	require.NoError(t, err)

	// The catalog price changes after the line was added.
	repriced := *itemMug
	repriced.Price = decimal.RequireFromString("99.00")
	f.catalog.items[itemMug.ID] = &repriced

	cart, err := f.cartSvc.AddItem(ctx, sid, itemMug.ID, 2)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.True(t, cart.Items[0].UnitPrice.Equal(decimal.RequireFromString("12.50")))
	assert.True(t, cart.Total().Equal(decimal.RequireFromString("37.50")))
	assert.Equal(t, 2, f.events.count(event.TopicCartItemAdded))
}

func TestCartService_AddItem_SnapshotsCatalogFields(t *testing.T) {
	f := newFixture()
	cart, err := f.cartSvc.AddItem(context.Background(), uuid.NewString(), itemBowl.ID, 1)
	require.NoError(t, err)

	line := cart.Items[0]
	assert.Equal(t, itemBowl.Title, line.Title)
	assert.Equal(t, sellerBob, line.SellerID)
	assert.False(t, line.AddedAt.IsZero())
}

func TestCartService_AddItem_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		itemID   string
		quantity int
		kind     error
	}{
		{"zero quantity", itemMug.ID, 0, apperrors.ErrValidation},
		{"negative quantity", itemMug.ID, -3, apperrors.ErrValidation},
		{"quantity over limit", itemMug.ID, MaxQuantityPerItem + 1, apperrors.ErrValidation},
		{"unknown item", "item-missing", 1, apperrors.ErrNotFound},
		{"inactive item", itemGone.ID, 1, apperrors.ErrNotFound},
		{"empty item id", "", 1, apperrors.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			sid := uuid.NewString()

			_, err := f.cartSvc.AddItem(context.Background(), sid, tt.itemID, tt.quantity)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.kind), "got %v", err)
			assert.Zero(t, f.carts.saves, "a rejected add must not write the cart")
		})
	}
}

func TestCartService_AddItem_CombinedQuantityLimit(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	sid := uuid.NewString()

	_, err := f.cartSvc.AddItem(ctx, sid, itemMug.ID, 60)
	require.NoError(t, err)

	_, err = f.cartSvc.AddItem(ctx, sid, itemMug.ID, 41)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	cart, err := f.cartSvc.GetCart(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, 60, cart.Items[0].Quantity)
}

func TestCartService_AddItem_CatalogUnavailable(t *testing.T) {
	f := newFixture()
	f.catalog.err = errors.New("dial tcp: timeout")

	_, err := f.cartSvc.AddItem(context.Background(), uuid.NewString(), itemMug.ID, 1)
	assert.True(t, errors.Is(err, apperrors.ErrUpstream))
}

func TestCartService_AddItem_SubCentCatalogPrice(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	sid := uuid.NewString()
	f.catalog.items["item-odd"] = &domain.CatalogItem{
		ID: "item-odd", Title: "Odd lot", Price: decimal.RequireFromString("3.333"), OwnerID: sellerBob, Active: true,
	}

	_, err := f.cartSvc.AddItem(ctx, sid, "item-odd", 1)
	assert.True(t, errors.Is(err, apperrors.ErrUpstream))
	assert.Zero(t, f.carts.saves)
}

func TestCartService_AddItem_TrailingZeroPriceAccepted(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	sid := uuid.NewString()
	f.catalog.items["item-jar"] = &domain.CatalogItem{
		ID: "item-jar", Title: "Honey jar", Price: decimal.RequireFromString("7.500"), OwnerID: sellerBob, Active: true,
	}

	_, err := f.cartSvc.AddItem(ctx, sid, "item-jar", 3)
	require.NoError(t, err)
	cart, err := f.cartSvc.GetCart(ctx, sid)
	require.NoError(t, err)

	order, err := f.orderSvc.CreateOrder(ctx, testBuyer, cart.Snapshot(), validShipping())
	require.NoError(t, err)
	assert.Equal(t, "22.50", order.Total.StringFixed(2))
	assert.GreaterOrEqual(t, order.Total.Exponent(), int32(-2))
}

func TestCartService_AddItem_DistinctItemLimit(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	sid := uuid.NewString()

	cart := domain.NewCart(sid)
	for i := 0; i < MaxItemsPerCart; i++ {
		cart.Items = append(cart.Items, domain.CartLineItem{ItemID: uuid.NewString(), Quantity: 1, UnitPrice: decimal.NewFromInt(1)})
	}
	require.NoError(t, f.carts.Save(ctx, cart))

	_, err := f.cartSvc.AddItem(ctx, sid, itemMug.ID, 1)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

func TestCartService_RemoveItem(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	sid := uuid.NewString()

	_, err := f.cartSvc.AddItem(ctx, sid, itemMug.ID, 1)
	require.NoError(t, err)
	_, err = f.cartSvc.AddItem(ctx, sid, itemBowl.ID, 1)
	require.NoError(t, err)

	cart, err := f.cartSvc.RemoveItem(ctx, sid, itemMug.ID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, itemBowl.ID, cart.Items[0].ItemID)
	assert.Equal(t, 1, f.events.count(event.TopicCartItemRemoved))
}

func TestCartService_RemoveItem_AbsentIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	sid := uuid.NewString()

	_, err := f.cartSvc.AddItem(ctx, sid, itemMug.ID, 2)
	require.NoError(t, err)
	savesBefore := f.carts.saves

	cart, err := f.cartSvc.RemoveItem(ctx, sid, "item-never-added")
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)
	assert.Equal(t, savesBefore, f.carts.saves)
	assert.Zero(t, f.events.count(event.TopicCartItemRemoved))
}

func TestCartService_Clear_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	sid := uuid.NewString()

	_, err := f.cartSvc.AddItem(ctx, sid, itemMug.ID, 1)
	require.NoError(t, err)

	require.NoError(t, f.cartSvc.Clear(ctx, sid))
	require.NoError(t, f.cartSvc.Clear(ctx, sid))

	cart, err := f.cartSvc.GetCart(ctx, sid)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}

func TestCartService_SessionsAreIndependent(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	a, b := uuid.NewString(), uuid.NewString()

	_, err := f.cartSvc.AddItem(ctx, a, itemMug.ID, 1)
	require.NoError(t, err)
	require.NoError(t, f.cartSvc.Clear(ctx, b))

	cart, err := f.cartSvc.GetCart(ctx, a)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)
}
