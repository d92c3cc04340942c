package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ddjsphere/craftsmen-marketplace/internal/domain"
	"github.com/ddjsphere/craftsmen-marketplace/internal/event"
	"github.com/ddjsphere/craftsmen-marketplace/internal/provider/mock"
	redisrepo "github.com/ddjsphere/craftsmen-marketplace/internal/repository/redis"
	"github.com/ddjsphere/craftsmen-marketplace/internal/service"
	apperrors "github.com/ddjsphere/craftsmen-marketplace/pkg/errors"
	"github.com/ddjsphere/craftsmen-marketplace/pkg/health"
	"github.com/ddjsphere/craftsmen-marketplace/pkg/middleware"
)

const (
	testSecret = "handler-test-secret"
	buyerAda   = "buyer-ada"
	buyerBen   = "buyer-ben"
	sellerCora = "seller-cora"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- In-memory Postgres-side repositories ---

type memCatalog map[string]*domain.CatalogItem

func (m memCatalog) GetItem(_ context.Context, id string) (*domain.CatalogItem, error) {
	it, ok := m[id]
	if !ok {
		return nil, apperrors.NotFound("item", id)
	}
	cp := *it
	return &cp, nil
}

type memOrders struct {
	mu     sync.Mutex
	orders []domain.Order
}

func (m *memOrders) Create(_ context.Context, o *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	cp.Items = slices.Clone(o.Items)
	m.orders = append(m.orders, cp)
	return nil
}

func (m *memOrders) GetByID(_ context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.ID == id {
			cp := o
			cp.Items = slices.Clone(o.Items)
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("order", id)
}

func (m *memOrders) filter(match func(domain.Order) bool) ([]domain.Order, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Order
	for _, o := range m.orders {
		if match(o) {
			cp := o
			cp.Items = slices.Clone(o.Items)
			out = append(out, cp)
		}
	}
	return out, len(out), nil
}

func (m *memOrders) ListByBuyer(_ context.Context, buyerID string, _, _ int) ([]domain.Order, int, error) {
	return m.filter(func(o domain.Order) bool { return o.BuyerID == buyerID })
}

func (m *memOrders) ListBySeller(_ context.Context, sellerID string, _, _ int) ([]domain.Order, int, error) {
	return m.filter(func(o domain.Order) bool { return o.HasSeller(sellerID) })
}

func (m *memOrders) MarkPaid(_ context.Context, orderID, paymentID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.orders {
		if m.orders[i].ID == orderID && m.orders[i].Status == domain.OrderStatusPending {
			m.orders[i].Status = domain.OrderStatusPaid
			m.orders[i].PaymentID = paymentID
			return true, nil
		}
	}
	return false, nil
}

type memPayments struct {
	mu       sync.Mutex
	payments []domain.Payment
}

func (m *memPayments) Create(_ context.Context, p *domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.payments {
		if p.IsCompleted() && existing.IsCompleted() && existing.OrderID == p.OrderID {
			return apperrors.Conflict("order already has a completed payment")
		}
	}
	m.payments = append(m.payments, *p)
	return nil
}

func (m *memPayments) GetCompletedByOrder(_ context.Context, orderID string) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.OrderID == orderID && p.IsCompleted() {
			cp := p
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("payment", orderID)
}

func (m *memPayments) ListOrphaned(context.Context, int) ([]domain.Payment, error) {
	return nil, nil
}

type memCheckouts struct {
	mu       sync.Mutex
	sessions map[string]domain.CheckoutSession
}

func (m *memCheckouts) Create(_ context.Context, s *domain.CheckoutSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = *s
	return nil
}

func (m *memCheckouts) GetByID(_ context.Context, id string) (*domain.CheckoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, apperrors.NotFound("checkout", id)
	}
	return &s, nil
}

func (m *memCheckouts) UpdateIfStatus(_ context.Context, s *domain.CheckoutSession, from []string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.sessions[s.ID]
	if !ok || !slices.Contains(from, stored.Status) {
		return false, nil
	}
	m.sessions[s.ID] = *s
	return true, nil
}

type memFavorites struct {
	mu   sync.Mutex
	favs []domain.Favorite
}

func (m *memFavorites) Add(_ context.Context, f *domain.Favorite) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.favs = append(m.favs, *f)
	return nil
}

func (m *memFavorites) Remove(_ context.Context, buyerID, itemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.favs = slices.DeleteFunc(m.favs, func(f domain.Favorite) bool { return f.BuyerID == buyerID && f.ItemID == itemID })
	return nil
}

func (m *memFavorites) List(_ context.Context, buyerID string) ([]domain.Favorite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Favorite{}
	for _, f := range m.favs {
		if f.BuyerID == buyerID {
			out = append(out, f)
		}
	}
	return out, nil
}

type memSubscribers struct {
	mu     sync.Mutex
	emails []string
}

func (m *memSubscribers) Upsert(_ context.Context, s *domain.Subscriber) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !slices.Contains(m.emails, s.Email) {
		m.emails = append(m.emails, s.Email)
	}
	return nil
}

// --- Test server ---

type testServer struct {
	handler     http.Handler
	redis       *miniredis.Miniredis
	orders      *memOrders
	payments    *memPayments
	subscribers *memSubscribers
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	logger := testLogger()
	catalog := memCatalog{
		"item-lamp": {ID: "item-lamp", Title: "Brass lamp", Price: decimal.RequireFromString("30.00"), OwnerID: sellerCora, Active: true},
	}
	ts := &testServer{
		redis:       mr,
		orders:      &memOrders{},
		payments:    &memPayments{},
		subscribers: &memSubscribers{},
	}

	producer := event.NewProducer(nil, logger)
	lookup := service.NewCatalogLookup(redisrepo.NewCachedCatalog(catalog, rdb, time.Minute, logger))
	carts := service.NewCartService(redisrepo.NewCartRepository(rdb, time.Hour), lookup, producer, logger)
	orders := service.NewOrderService(ts.orders, producer, logger)
	settlement := service.NewSettlementService(ts.orders, ts.payments, mock.NewProvider(0), producer, logger, time.Second)

	svc := Services{
		Sessions:   service.NewSessionService(redisrepo.NewSessionRepository(rdb, time.Hour), logger),
		Carts:      carts,
		Orders:     orders,
		Settlement: settlement,
		Checkout: service.NewCheckoutService(
			&memCheckouts{sessions: make(map[string]domain.CheckoutSession)},
			redisrepo.NewLockRepository(rdb),
			carts, orders, settlement, producer, logger, 5*time.Second,
		),
		Favorites:     service.NewFavoriteService(&memFavorites{}, lookup, logger),
		Subscriptions: service.NewSubscriptionService(ts.subscribers, logger),
	}

	ts.handler = NewRouter(svc, health.NewHandler(), RouterConfig{
		ServiceName:    "marketplace-test",
		TokenValidator: middleware.JWTValidator(testSecret, ""),
		CORS:           middleware.DefaultCORSConfig(),
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
		SessionTTL:     time.Hour,
	}, logger)
	return ts
}

// do sends a request; buyer "" means unauthenticated.
func (ts *testServer) do(t *testing.T, method, path, buyer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if buyer != "" {
		token, err := middleware.SignToken(testSecret, "", buyer, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func shippingBody() map[string]string {
	return map[string]string{
		"fullName": "Ada Lovelace",
		"email":    "ada@example.com",
		"phone":    "+44 20 7946 0000",
		"address":  "12 St James's Square",
		"city":     "London",
		"state":    "London",
		"zip":      "SW1Y 4JH",
		"country":  "GB",
	}
}
