package service

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/ddjsphere/craftsmen-marketplace/internal/domain"
	"github.com/ddjsphere/craftsmen-marketplace/internal/event"
	"github.com/ddjsphere/craftsmen-marketplace/internal/provider"
	apperrors "github.com/ddjsphere/craftsmen-marketplace/pkg/errors"
	pkgkafka "github.com/ddjsphere/craftsmen-marketplace/pkg/kafka"
)

// In-memory repositories. Every Get returns a copy so services cannot mutate
// stored state without going through Save/Update.

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Carts ---

type memCarts struct {
	mu      sync.Mutex
	carts   map[string]*domain.Cart
	saves   int
	deletes int
	getErr  error
	saveErr error
}

func newMemCarts() *memCarts {
	return &memCarts{carts: make(map[string]*domain.Cart)}
}

func (m *memCarts) Get(_ context.Context, sessionID string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	c, ok := m.carts[sessionID]
	if !ok {
		return nil, apperrors.NotFound("cart", sessionID)
	}
	return c.Snapshot(), nil
}

func (m *memCarts) Save(_ context.Context, cart *domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.carts[cart.SessionID] = cart.Snapshot()
	return nil
}

func (m *memCarts) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	delete(m.carts, sessionID)
	return nil
}

// --- Sessions ---

type memSessions struct {
	mu  sync.Mutex
	ids map[string]bool
	err error
}

func newMemSessions() *memSessions {
	return &memSessions{ids: make(map[string]bool)}
}

func (m *memSessions) Create(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.ids[id] = true
	return nil
}

func (m *memSessions) Refresh(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	return m.ids[id], nil
}

// --- Locks ---

type memLocks struct {
	mu    sync.Mutex
	held  map[string]string
	err   error
	calls int
}

func newMemLocks() *memLocks {
	return &memLocks{held: make(map[string]string)}
}

func (m *memLocks) Acquire(_ context.Context, key string, _ time.Duration) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return "", false, m.err
	}
	if _, ok := m.held[key]; ok {
		return "", false, nil
	}
	token := uuid.NewString()
	m.held[key] = token
	return token, true, nil
}

func (m *memLocks) Release(_ context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] == token {
		delete(m.held, key)
	}
	return nil
}

// --- Catalog ---

type memCatalog struct {
	items map[string]*domain.CatalogItem
	err   error
}

func newMemCatalog(items ...*domain.CatalogItem) *memCatalog {
	c := &memCatalog{items: make(map[string]*domain.CatalogItem)}
	for _, it := range items {
		c.items[it.ID] = it
	}
	return c
}

func (m *memCatalog) GetItem(_ context.Context, itemID string) (*domain.CatalogItem, error) {
	if m.err != nil {
		return nil, m.err
	}
	it, ok := m.items[itemID]
	if !ok {
		return nil, apperrors.NotFound("item", itemID)
	}
	cp := *it
	return &cp, nil
}

// --- Orders ---

type memOrders struct {
	mu        sync.Mutex
	orders    map[string]*domain.Order
	creates   int
	createErr error
	markErr   error
}

func newMemOrders() *memOrders {
	return &memOrders{orders: make(map[string]*domain.Order)}
}

func copyOrder(o *domain.Order) *domain.Order {
	cp := *o
	cp.Items = slices.Clone(o.Items)
	return &cp
}

func (m *memOrders) Create(_ context.Context, o *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.creates++
	m.orders[o.ID] = copyOrder(o)
	return nil
}

func (m *memOrders) GetByID(_ context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, apperrors.NotFound("order", id)
	}
	return copyOrder(o), nil
}

func (m *memOrders) list(match func(*domain.Order) bool, offset, limit int) ([]domain.Order, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []domain.Order
	for _, o := range m.orders {
		if match(o) {
			all = append(all, *copyOrder(o))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := len(all)
	if offset >= total {
		return []domain.Order{}, total, nil
	}
	end := min(offset+limit, total)
	return all[offset:end], total, nil
}

func (m *memOrders) ListByBuyer(_ context.Context, buyerID string, offset, limit int) ([]domain.Order, int, error) {
	return m.list(func(o *domain.Order) bool { return o.BuyerID == buyerID }, offset, limit)
}

func (m *memOrders) ListBySeller(_ context.Context, sellerID string, offset, limit int) ([]domain.Order, int, error) {
	return m.list(func(o *domain.Order) bool { return o.HasSeller(sellerID) }, offset, limit)
}

func (m *memOrders) MarkPaid(_ context.Context, orderID, paymentID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markErr != nil {
		return false, m.markErr
	}
	o, ok := m.orders[orderID]
	if !ok || o.Status != domain.OrderStatusPending {
		return false, nil
	}
	o.Status = domain.OrderStatusPaid
	o.PaymentID = paymentID
	o.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (m *memOrders) status(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[id].Status
}

// --- Payments ---

type memPayments struct {
	mu        sync.Mutex
	payments  []domain.Payment
	orders    *memOrders
	createErr error
	// afterCreate runs once a payment is stored, outside the lock.
	afterCreate func(*domain.Payment)
}

func newMemPayments(orders *memOrders) *memPayments {
	return &memPayments{orders: orders}
}

func (m *memPayments) Create(_ context.Context, p *domain.Payment) error {
	if err := m.store(p); err != nil {
		return err
	}
	if m.afterCreate != nil {
		m.afterCreate(p)
	}
	return nil
}

func (m *memPayments) store(p *domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if p.IsCompleted() {
		for _, existing := range m.payments {
			if existing.OrderID == p.OrderID && existing.IsCompleted() {
				return apperrors.Conflict("order already has a completed payment")
			}
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

func (m *memPayments) ListOrphaned(ctx context.Context, limit int) ([]domain.Payment, error) {
	m.mu.Lock()
	completed := slices.Clone(m.payments)
	m.mu.Unlock()

	var out []domain.Payment
	for _, p := range completed {
		if !p.IsCompleted() {
			continue
		}
		o, err := m.orders.GetByID(ctx, p.OrderID)
		if err == nil && o.Status == domain.OrderStatusPending {
			out = append(out, p)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memPayments) byStatus(status string) []domain.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Payment
	for _, p := range m.payments {
		if p.Status == status {
			out = append(out, p)
		}
	}
	return out
}

// --- Checkouts ---

type memCheckouts struct {
	mu       sync.Mutex
	sessions map[string]*domain.CheckoutSession
}

func newMemCheckouts() *memCheckouts {
	return &memCheckouts{sessions: make(map[string]*domain.CheckoutSession)}
}

func copyCheckout(s *domain.CheckoutSession) *domain.CheckoutSession {
	cp := *s
	if s.ShippingInfo != nil {
		info := *s.ShippingInfo
		cp.ShippingInfo = &info
	}
	return &cp
}

func (m *memCheckouts) Create(_ context.Context, s *domain.CheckoutSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = copyCheckout(s)
	return nil
}

func (m *memCheckouts) GetByID(_ context.Context, id string) (*domain.CheckoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, apperrors.NotFound("checkout", id)
	}
	return copyCheckout(s), nil
}

func (m *memCheckouts) UpdateIfStatus(_ context.Context, s *domain.CheckoutSession, from []string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.sessions[s.ID]
	if !ok || !slices.Contains(from, stored.Status) {
		return false, nil
	}
	m.sessions[s.ID] = copyCheckout(s)
	return true, nil
}

// --- Favorites / subscribers ---

type memFavorites struct {
	mu   sync.Mutex
	favs []domain.Favorite
}

func (m *memFavorites) Add(_ context.Context, f *domain.Favorite) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.favs {
		if existing.BuyerID == f.BuyerID && existing.ItemID == f.ItemID {
			return nil
		}
	}
	m.favs = append(m.favs, *f)
	return nil
}

func (m *memFavorites) Remove(_ context.Context, buyerID, itemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.favs = slices.DeleteFunc(m.favs, func(f domain.Favorite) bool {
		return f.BuyerID == buyerID && f.ItemID == itemID
	})
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
	emails map[string]domain.Subscriber
}

func (m *memSubscribers) Upsert(_ context.Context, s *domain.Subscriber) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.emails == nil {
		m.emails = make(map[string]domain.Subscriber)
	}
	if _, ok := m.emails[s.Email]; !ok {
		m.emails[s.Email] = *s
	}
	return nil
}

// --- Provider ---

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Name() string { return "test" }

func (m *mockProvider) Charge(ctx context.Context, input *provider.ChargeInput) (*provider.ChargeResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.ChargeResult), args.Error(1)
}

func succeeded() *provider.ChargeResult {
	return &provider.ChargeResult{ProviderPaymentID: "prov_" + uuid.NewString(), Status: provider.StatusSucceeded}
}

func declined(reason string) *provider.ChargeResult {
	return &provider.ChargeResult{ProviderPaymentID: "prov_" + uuid.NewString(), Status: provider.StatusDeclined, FailureReason: reason}
}

// --- Events ---

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (r *recordingPublisher) Publish(_ context.Context, topic string, _ *pkgkafka.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics = append(r.topics, topic)
	return nil
}

func (r *recordingPublisher) count(topic string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.topics {
		if t == topic {
			n++
		}
	}
	return n
}

// --- Fixture ---

const (
	testBuyer   = "buyer-1"
	otherBuyer  = "buyer-2"
	sellerAlice = "seller-alice"
	sellerBob   = "seller-bob"
)

var (
	itemMug  = &domain.CatalogItem{ID: "item-mug", Title: "Stoneware mug", Price: decimal.RequireFromString("12.50"), OwnerID: sellerAlice, Active: true}
	itemBowl = &domain.CatalogItem{ID: "item-bowl", Title: "Walnut bowl", Price: decimal.RequireFromString("40.00"), OwnerID: sellerBob, Active: true}
	itemGone = &domain.CatalogItem{ID: "item-gone", Title: "Retired vase", Price: decimal.RequireFromString("9.99"), OwnerID: sellerAlice, Active: false}
)

type fixture struct {
	carts      *memCarts
	sessions   *memSessions
	locks      *memLocks
	catalog    *memCatalog
	orders     *memOrders
	payments   *memPayments
	checkouts  *memCheckouts
	provider   *mockProvider
	events     *recordingPublisher
	cartSvc    *CartService
	orderSvc   *OrderService
	settleSvc  *SettlementService
	checkout   *CheckoutService
	reconciler *Reconciler
}

func newFixture() *fixture {
	f := &fixture{
		carts:     newMemCarts(),
		sessions:  newMemSessions(),
		locks:     newMemLocks(),
		catalog:   newMemCatalog(itemMug, itemBowl, itemGone),
		orders:    newMemOrders(),
		checkouts: newMemCheckouts(),
		provider:  &mockProvider{},
		events:    &recordingPublisher{},
	}
	f.payments = newMemPayments(f.orders)

	logger := newTestLogger()
	producer := event.NewProducer(f.events, logger)
	f.cartSvc = NewCartService(f.carts, NewCatalogLookup(f.catalog), producer, logger)
	f.orderSvc = NewOrderService(f.orders, producer, logger)
	f.settleSvc = NewSettlementService(f.orders, f.payments, f.provider, producer, logger, time.Second)
	f.checkout = NewCheckoutService(f.checkouts, f.locks, f.cartSvc, f.orderSvc, f.settleSvc, producer, logger, 5*time.Second)
	f.reconciler = NewReconciler(f.payments, f.settleSvc, time.Minute, logger)
	return f
}

func validShipping() domain.ShippingInfo {
	return domain.ShippingInfo{
		FullName: "Ada Lovelace",
		Email:    "ada@example.com",
		Phone:    "+44 20 7946 0000",
		Address:  "12 St James's Square",
		City:     "London",
		State:    "London",
		Zip:      "SW1Y 4JH",
		Country:  "GB",
	}
}

func validCard() domain.PaymentDetails {
	return domain.PaymentDetails{
		CardNumber: "4242 4242 4242 4242",
		CardName:   "Ada Lovelace",
		ExpiryDate: "12/30",
		CVV:        "123",
	}
}

// pendingOrder stores a pending order for testBuyer worth 25.00.
func (f *fixture) pendingOrder() *domain.Order {
	now := time.Now().UTC()
	o := &domain.Order{
		ID:      uuid.NewString(),
		BuyerID: testBuyer,
		Items: []domain.OrderItem{{
			ID: uuid.NewString(), ItemID: itemMug.ID, Title: itemMug.Title, SellerID: sellerAlice,
			Quantity: 2, UnitPrice: itemMug.Price, Subtotal: decimal.RequireFromString("25.00"),
		}},
		ShippingInfo: validShipping(),
		Total:        decimal.RequireFromString("25.00"),
		Status:       domain.OrderStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	o.Items[0].OrderID = o.ID
	_ = f.orders.Create(context.Background(), o)
	return o
}
