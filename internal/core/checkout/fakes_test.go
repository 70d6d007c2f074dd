package checkout

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/storefront-checkout/internal/core/domain"
)

func bgn(amount string) domain.Money {
	return domain.Money{Amount: decimal.RequireFromString(amount), Currency: domain.Currency{Code: "BGN"}}
}

// scenarioCart has one fulfillment group and two lines: 1 x 10.00 and 2 x 5.00.
func scenarioCart() *domain.Cart {
	added := time.Date(2026, 10, 1, 9, 30, 0, 0, time.UTC)
	courier := &domain.FulfillmentOption{
		FulfillmentMethod: &domain.FulfillmentMethod{ID: "method-courier", Name: "courier"},
		Price:             bgn("0.00"),
	}
	return &domain.Cart{
		ID:   "cart-1",
		Shop: domain.Shop{ID: "shop-1"},
		Items: &domain.CartItemConnection{
			Edges: []*domain.CartItemEdge{
				{Node: &domain.CartItem{ID: "item-1", Quantity: 1, Price: bgn("10.00"), AddedAt: added,
					ProductConfiguration: domain.ProductConfiguration{ProductID: "p1", ProductVariantID: "v1"}}},
				{Node: &domain.CartItem{ID: "item-2", Quantity: 2, Price: bgn("5.00"), AddedAt: added,
					ProductConfiguration: domain.ProductConfiguration{ProductID: "p2", ProductVariantID: "v2"}}},
			},
		},
		Checkout: &domain.Checkout{
			FulfillmentGroups: []*domain.FulfillmentGroup{{
				ID:                          "group-1",
				Type:                        "shipping",
				Shop:                        domain.Shop{ID: "shop-1"},
				Data:                        json.RawMessage(`{"shippingAddress":null}`),
				AvailableFulfillmentOptions: []*domain.FulfillmentOption{courier},
				SelectedFulfillmentOption:   courier,
			}},
			Summary: domain.CheckoutSummary{ItemTotal: bgn("20.00"), Total: bgn("20.00")},
		},
	}
}

func validUser() domain.UserDataFields {
	return domain.UserDataFields{FirstName: "Ivan", LastName: "Petrov", Phone: "+359 888 123 456", Email: "ivan@example.com"}
}

func validShipping() domain.ShippingAddressFields {
	return domain.ShippingAddressFields{Address: "1 Vitosha Blvd", Locality: "Sofia", PostalCode: "1000"}
}

var testPaymentMethods = domain.PaymentMethods{
	{Name: "iou_example", DisplayName: "Cash on delivery", IsEnabled: true, CanRefund: true},
	{Name: "paysera_card", DisplayName: "Card", IsEnabled: false, CanRefund: true},
}

type fakeAPI struct {
	mu    sync.Mutex
	calls []string

	shippingErr    error
	fulfillmentErr error
	placeErr       error

	// when set, every call signals started and waits for release
	started chan struct{}
	release chan struct{}

	address        domain.AddressInput
	groupID        string
	methodID       string
	placed         *domain.PlaceOrderInput
	placeOrderResp *domain.OrderResult
}

func (f *fakeAPI) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()

	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.release != nil {
		<-f.release
	}
}

func (f *fakeAPI) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAPI) SetShippingAddress(ctx context.Context, ref domain.CartRef, address domain.AddressInput) (*domain.Cart, error) {
	f.record("set_shipping_address")
	if f.shippingErr != nil {
		return nil, f.shippingErr
	}
	f.mu.Lock()
	f.address = address
	f.mu.Unlock()
	return scenarioCart(), nil
}

func (f *fakeAPI) SetFulfillmentOption(ctx context.Context, ref domain.CartRef, groupID, methodID string) (*domain.Cart, error) {
	f.record("set_fulfillment_option")
	if f.fulfillmentErr != nil {
		return nil, f.fulfillmentErr
	}
	f.mu.Lock()
	f.groupID, f.methodID = groupID, methodID
	f.mu.Unlock()
	return scenarioCart(), nil
}

func (f *fakeAPI) PlaceOrder(ctx context.Context, ref domain.CartRef, input domain.PlaceOrderInput) (*domain.OrderResult, error) {
	f.record("place_order")
	if f.placeErr != nil {
		return nil, f.placeErr
	}
	f.mu.Lock()
	f.placed = &input
	f.mu.Unlock()
	if f.placeOrderResp != nil {
		return f.placeOrderResp, nil
	}
	return &domain.OrderResult{OrderIDs: []string{"order-1"}, Token: "tok"}, nil
}

type fakeCarts struct {
	mu            sync.Mutex
	cart          *domain.Cart
	err           error
	invalidations int
}

func (f *fakeCarts) GetCart(ctx context.Context, ref domain.CartRef) (*domain.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cart, f.err
}

func (f *fakeCarts) Invalidate(ctx context.Context, ref domain.CartRef) {
	f.mu.Lock()
	f.invalidations++
	f.mu.Unlock()
}

func newTestController(api *fakeAPI, carts *fakeCarts) *Controller {
	return NewController(
		domain.CartRef{CartID: "cart-1", CartToken: "anon"},
		api,
		carts,
		Config{Country: "България", PaymentMethods: testPaymentMethods},
		nil,
	)
}
