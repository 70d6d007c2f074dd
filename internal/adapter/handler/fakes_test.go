package handler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/rl1809/storefront-checkout/internal/adapter/storage"
	"github.com/rl1809/storefront-checkout/internal/core/checkout"
	"github.com/rl1809/storefront-checkout/internal/core/domain"
	"github.com/rl1809/storefront-checkout/internal/core/service"
	"github.com/rl1809/storefront-checkout/internal/metrics"
)

var testMethods = domain.PaymentMethods{
	{Name: "iou_example", DisplayName: "Cash on delivery", IsEnabled: true},
	{Name: "paysera_card", DisplayName: "Card", IsEnabled: false},
}

func money(amount string) domain.Money {
	return domain.Money{Amount: decimal.RequireFromString(amount), Currency: domain.Currency{Code: "BGN"}}
}

func sampleCart() *domain.Cart {
	courier := &domain.FulfillmentOption{FulfillmentMethod: &domain.FulfillmentMethod{ID: "method-courier"}}
	return &domain.Cart{
		ID:   "cart-1",
		Shop: domain.Shop{ID: "shop-1"},
		Items: &domain.CartItemConnection{Edges: []*domain.CartItemEdge{
			{Node: &domain.CartItem{ID: "item-1", Title: "Mug", Quantity: 2, Price: money("10.00"),
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

type fakeCommerce struct {
	mu         sync.Mutex
	cart       *domain.Cart
	placeErr   error
	placeDelay time.Duration
	placed     int
	lastRef    domain.CartRef
}

func (f *fakeCommerce) GetCart(ctx context.Context, ref domain.CartRef) (*domain.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastRef = ref
	if f.cart == nil || ref.CartID != f.cart.ID {
		return nil, nil
	}
	return f.cart, nil
}

func (f *fakeCommerce) CreateCart(ctx context.Context, ref domain.CartRef, items []domain.NewCartItem) (*domain.CreatedCart, error) {
	return &domain.CreatedCart{Cart: sampleCart(), Token: "anon-token"}, nil
}

func (f *fakeCommerce) AddCartItems(ctx context.Context, ref domain.CartRef, items []domain.NewCartItem) (*domain.Cart, error) {
	return sampleCart(), nil
}

func (f *fakeCommerce) RemoveCartItems(ctx context.Context, ref domain.CartRef, itemIDs []string) (*domain.Cart, error) {
	cart := sampleCart()
	cart.Items.Edges = nil
	return cart, nil
}

func (f *fakeCommerce) SetShippingAddress(ctx context.Context, ref domain.CartRef, address domain.AddressInput) (*domain.Cart, error) {
	return sampleCart(), nil
}

func (f *fakeCommerce) SetFulfillmentOption(ctx context.Context, ref domain.CartRef, groupID, methodID string) (*domain.Cart, error) {
	return sampleCart(), nil
}

func (f *fakeCommerce) PlaceOrder(ctx context.Context, ref domain.CartRef, input domain.PlaceOrderInput) (*domain.OrderResult, error) {
	f.mu.Lock()
	delay, err := f.placeDelay, f.placeErr
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.placed++
	return &domain.OrderResult{OrderIDs: []string{"backend-order-1"}}, nil
}

func (f *fakeCommerce) placedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.placed
}

type testEnv struct {
	api      *fakeCommerce
	carts    *service.CartService
	checkout *service.CheckoutService
	handler  *HTTPHandler
}

// newTestEnv wires the services over a Redis adapter backed by miniredis.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	store := storage.NewRedisAdapter(client, time.Hour, time.Minute)

	api := &fakeCommerce{cart: sampleCart()}
	carts := service.NewCartService(api, store, "__empty__", "BGN", nil)
	cfg := checkout.Config{Country: "България", PaymentMethods: testMethods}
	svc := service.NewCheckoutService(api, carts, store, store, cfg, 10,
		metrics.NewCheckoutMetrics(prometheus.NewRegistry()), nil)
	t.Cleanup(svc.Close)

	return &testEnv{
		api:      api,
		carts:    carts,
		checkout: svc,
		handler:  NewHTTPHandler(carts, svc, testMethods, 5*time.Second, nil),
	}
}
