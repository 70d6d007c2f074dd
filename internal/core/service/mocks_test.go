package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/storefront-checkout/internal/core/checkout"
	"github.com/rl1809/storefront-checkout/internal/core/domain"
	"github.com/rl1809/storefront-checkout/internal/port"
)

const dummyCartID = "__empty__"

func money(amount string) domain.Money {
	return domain.Money{Amount: decimal.RequireFromString(amount), Currency: domain.Currency{Code: "BGN"}}
}

func testCart() *domain.Cart {
	courier := &domain.FulfillmentOption{FulfillmentMethod: &domain.FulfillmentMethod{ID: "method-courier"}}
	return &domain.Cart{
		ID:   "cart-1",
		Shop: domain.Shop{ID: "shop-1"},
		Items: &domain.CartItemConnection{Edges: []*domain.CartItemEdge{
			{Node: &domain.CartItem{ID: "item-1", Title: "Mug", Quantity: 2, Price: money("10.00"), AddedAt: time.Now(),
				ProductConfiguration: domain.ProductConfiguration{ProductID: "p1", ProductVariantID: "v1"}}},
		}},
		Checkout: &domain.Checkout{
			FulfillmentGroups: []*domain.FulfillmentGroup{{
				ID:                          "group-1",
				Type:                        "shipping",
				Shop:                        domain.Shop{ID: "shop-1"},
				AvailableFulfillmentOptions: []*domain.FulfillmentOption{courier},
				SelectedFulfillmentOption:   courier,
			}},
			Summary: domain.CheckoutSummary{ItemTotal: money("20.00"), Total: money("20.00")},
		},
	}
}

var testMethods = domain.PaymentMethods{
	{Name: "iou_example", DisplayName: "Cash on delivery", IsEnabled: true},
	{Name: "paysera_card", DisplayName: "Card", IsEnabled: false},
}

var testCheckoutConfig = checkout.Config{Country: "България", PaymentMethods: testMethods}

// Mock CommerceAPI
type mockCommerce struct {
	mu       sync.Mutex
	cart     *domain.Cart
	getErr   error
	placeErr error
	calls    []string
	getCalls atomic.Int32
	added    []domain.NewCartItem
	removed  []string
}

func newMockCommerce() *mockCommerce {
	return &mockCommerce{cart: testCart()}
}

func (m *mockCommerce) record(call string) {
	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.mu.Unlock()
}

func (m *mockCommerce) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *mockCommerce) GetCart(ctx context.Context, ref domain.CartRef) (*domain.Cart, error) {
	m.getCalls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.cart, nil
}

func (m *mockCommerce) CreateCart(ctx context.Context, ref domain.CartRef, items []domain.NewCartItem) (*domain.CreatedCart, error) {
	m.record("create_cart")
	m.mu.Lock()
	m.added = append(m.added, items...)
	m.mu.Unlock()
	return &domain.CreatedCart{Cart: &domain.Cart{ID: "cart-new"}, Token: "anon-new"}, nil
}

func (m *mockCommerce) AddCartItems(ctx context.Context, ref domain.CartRef, items []domain.NewCartItem) (*domain.Cart, error) {
	m.record("add_cart_items")
	m.mu.Lock()
	m.added = append(m.added, items...)
	m.mu.Unlock()
	return m.cart, nil
}

func (m *mockCommerce) RemoveCartItems(ctx context.Context, ref domain.CartRef, itemIDs []string) (*domain.Cart, error) {
	m.record("remove_cart_items")
	m.mu.Lock()
	m.removed = append(m.removed, itemIDs...)
	m.mu.Unlock()
	return m.cart, nil
}

func (m *mockCommerce) SetShippingAddress(ctx context.Context, ref domain.CartRef, address domain.AddressInput) (*domain.Cart, error) {
	m.record("set_shipping_address")
	return m.cart, nil
}

func (m *mockCommerce) SetFulfillmentOption(ctx context.Context, ref domain.CartRef, groupID, methodID string) (*domain.Cart, error) {
	m.record("set_fulfillment_option")
	return m.cart, nil
}

func (m *mockCommerce) PlaceOrder(ctx context.Context, ref domain.CartRef, input domain.PlaceOrderInput) (*domain.OrderResult, error) {
	m.record("place_order")
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.placeErr != nil {
		return nil, m.placeErr
	}
	return &domain.OrderResult{OrderIDs: []string{"backend-order-1"}}, nil
}

func (m *mockCommerce) setPlaceErr(err error) {
	m.mu.Lock()
	m.placeErr = err
	m.mu.Unlock()
}

// cancellingCommerce accepts the order and then cancels the caller's context, as a
// client that disconnects right after the backend answered.
type cancellingCommerce struct {
	*mockCommerce
	cancel context.CancelFunc
}

func (c *cancellingCommerce) PlaceOrder(ctx context.Context, ref domain.CartRef, input domain.PlaceOrderInput) (*domain.OrderResult, error) {
	result, err := c.mockCommerce.PlaceOrder(ctx, ref, input)
	c.cancel()
	return result, err
}

// Mock CartCache
type mockCartCache struct {
	mu      sync.Mutex
	carts   map[string]*domain.Cart
	getErr  error
	deletes int
}

func newMockCartCache() *mockCartCache {
	return &mockCartCache{carts: make(map[string]*domain.Cart)}
}

func (m *mockCartCache) GetCart(ctx context.Context, cartID string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	cart, ok := m.carts[cartID]
	if !ok {
		return nil, port.ErrCacheMiss
	}
	return cart, nil
}

func (m *mockCartCache) SetCart(ctx context.Context, cart *domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[cart.ID] = cart
	return nil
}

func (m *mockCartCache) DeleteCart(ctx context.Context, cartID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, cartID)
	m.deletes++
	return nil
}

// Mock CacheRepository
type mockCacheRepo struct {
	mu             sync.Mutex
	idempotencySet map[string]bool
	released       []string
}

func newMockCacheRepo() *mockCacheRepo {
	return &mockCacheRepo{idempotencySet: make(map[string]bool)}
}

func (m *mockCacheRepo) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.idempotencySet[key] {
		return false, nil
	}
	m.idempotencySet[key] = true
	return true, nil
}

func (m *mockCacheRepo) ReleaseIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.idempotencySet, key)
	m.released = append(m.released, key)
	return nil
}

// Mock SessionRepository
type mockSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]domain.WizardSnapshot
}

func newMockSessionRepo() *mockSessionRepo {
	return &mockSessionRepo{sessions: make(map[string]domain.WizardSnapshot)}
}

func (m *mockSessionRepo) SaveSession(ctx context.Context, snapshot domain.WizardSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[snapshot.SessionID] = snapshot
	return nil
}

func (m *mockSessionRepo) LoadSession(ctx context.Context, sessionID string) (*domain.WizardSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *mockSessionRepo) DeleteSession(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

func (m *mockSessionRepo) has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[id]
	return ok
}

// Mock OrderRepository
type mockOrderRepo struct {
	mu        sync.Mutex
	orders    map[string]domain.PlacedOrder
	createErr error
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{orders: make(map[string]domain.PlacedOrder)}
}

func (m *mockOrderRepo) CreateOrder(ctx context.Context, order domain.PlacedOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.orders[order.ID] = order
	return nil
}

func (m *mockOrderRepo) GetOrder(ctx context.Context, orderID string) (*domain.PlacedOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (m *mockOrderRepo) UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return errors.New("order not found")
	}
	o.Status = status
	m.orders[orderID] = o
	return nil
}

func (m *mockOrderRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

// Mock OrderPublisher
type mockPublisher struct {
	mu        sync.Mutex
	published []domain.PlacedOrder
	err       error
}

func (m *mockPublisher) PublishOrderPlaced(ctx context.Context, order domain.PlacedOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, order)
	return nil
}
