package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/storefront-checkout/internal/core/checkout"
	"github.com/rl1809/storefront-checkout/internal/core/domain"
	"github.com/rl1809/storefront-checkout/internal/metrics"
)

type checkoutFixture struct {
	api      *mockCommerce
	cache    *mockCacheRepo
	sessions *mockSessionRepo
	metrics  *metrics.CheckoutMetrics
	svc      *CheckoutService
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	f := &checkoutFixture{
		api:      newMockCommerce(),
		cache:    newMockCacheRepo(),
		sessions: newMockSessionRepo(),
		metrics:  metrics.NewCheckoutMetrics(prometheus.NewRegistry()),
	}
	f.svc = f.newService()
	t.Cleanup(f.svc.Close)
	return f
}

// newService builds a service sharing the fixture's backends, as a restarted process would.
func (f *checkoutFixture) newService() *CheckoutService {
	carts := NewCartService(f.api, newMockCartCache(), dummyCartID, "BGN", nil)
	return NewCheckoutService(f.api, carts, f.sessions, f.cache, testCheckoutConfig, 10, f.metrics, nil)
}

func validUserData() domain.UserDataFields {
	return domain.UserDataFields{FirstName: "Maria", LastName: "Ivanova", Phone: "0888123456", Email: "maria@example.com"}
}

func validAddress() domain.ShippingAddressFields {
	return domain.ShippingAddressFields{Address: "5 Rakovski St", Locality: "Plovdiv", PostalCode: "4000"}
}

// walkToPayment starts a session and completes the first two steps.
func walkToPayment(t *testing.T, svc *CheckoutService) string {
	t.Helper()
	ctx := context.Background()

	view, err := svc.StartSession(ctx, domain.CartRef{CartID: "cart-1", CartToken: "anon"})
	require.NoError(t, err)
	id := view.ID

	_, err = svc.UpdateUserData(ctx, id, validUserData())
	require.NoError(t, err)
	_, err = svc.Next(ctx, id)
	require.NoError(t, err)
	_, err = svc.UpdateShippingAddress(ctx, id, validAddress())
	require.NoError(t, err)
	view, err = svc.Next(ctx, id)
	require.NoError(t, err)
	require.Equal(t, domain.StepPayment, view.Step)
	return id
}

func TestCheckoutService_StartSession(t *testing.T) {
	f := newCheckoutFixture(t)

	view, err := f.svc.StartSession(context.Background(), domain.CartRef{CartID: "cart-1"})

	require.NoError(t, err)
	assert.NotEmpty(t, view.ID)
	assert.Equal(t, domain.StepPersonalInfo, view.Step)
	assert.Equal(t, "personal_info", view.StepName)
	assert.False(t, view.CanAdvance)
	assert.Len(t, view.PaymentMethods, 1)
	require.NotNil(t, view.Cart)
	assert.Equal(t, "20", view.Cart.Total.String())
	assert.True(t, f.sessions.has(view.ID))
}

func TestCheckoutService_StartSessionWithoutCart(t *testing.T) {
	f := newCheckoutFixture(t)

	for _, id := range []string{"", dummyCartID} {
		_, err := f.svc.StartSession(context.Background(), domain.CartRef{CartID: id})
		assert.ErrorIs(t, err, checkout.ErrMissingCart)
	}
}

func TestCheckoutService_UnknownSession(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	_, err := f.svc.Session(ctx, "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = f.svc.Next(ctx, "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, f.svc.Abandon(ctx, "nope"), ErrSessionNotFound)
}

func TestCheckoutService_CompleteCheckout(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	id := walkToPayment(t, f.svc)

	view, err := f.svc.SelectPayment(ctx, id, "iou_example")
	require.NoError(t, err)
	assert.True(t, view.ReadyToFinalize)
	assert.True(t, view.CanAdvance)

	view, err = f.svc.Next(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StepFinalize, view.Step)
	require.NotNil(t, view.Order)
	assert.Equal(t, []string{"backend-order-1"}, view.Order.OrderIDs)

	assert.Equal(t, []string{"set_shipping_address", "set_fulfillment_option", "place_order"}, f.api.Calls())

	select {
	case order := <-f.svc.GetOrderQueue():
		assert.Equal(t, id, order.SessionID)
		assert.Equal(t, "cart-1", order.CartID)
		assert.Equal(t, "shop-1", order.ShopID)
		assert.Equal(t, "maria@example.com", order.Email)
		assert.Equal(t, "iou_example", order.PaymentMethod)
		assert.Equal(t, "BGN", order.Currency)
		assert.Equal(t, "20", order.Total.String())
		assert.Equal(t, []string{"backend-order-1"}, order.BackendIDs)
		assert.Equal(t, domain.OrderStatusPending, order.Status)
	case <-time.After(time.Second):
		t.Fatal("placed order was not queued")
	}

	_, err = f.svc.Session(ctx, id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.False(t, f.sessions.has(id))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.OrdersPlaced))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Transitions.WithLabelValues("payment", "advanced")))
}

func TestCheckoutService_NextReportsValidation(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	view, err := f.svc.StartSession(ctx, domain.CartRef{CartID: "cart-1"})
	require.NoError(t, err)

	bad := validUserData()
	bad.Email = "not-an-email"
	view, err = f.svc.UpdateUserData(ctx, view.ID, bad)
	require.NoError(t, err)
	assert.False(t, view.UserData.Valid)
	assert.Contains(t, view.UserData.Errors, "email")

	_, err = f.svc.Next(ctx, view.ID)
	var verr *checkout.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Transitions.WithLabelValues("personal_info", "invalid")))
}

func TestCheckoutService_DuplicateOrderRefused(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	id := walkToPayment(t, f.svc)
	_, err := f.svc.SelectPayment(ctx, id, "iou_example")
	require.NoError(t, err)

	f.cache.idempotencySet[placeOrderKeyPrefix+"cart-1"] = true

	_, err = f.svc.Next(ctx, id)

	assert.ErrorIs(t, err, ErrDuplicateOrder)
	var cerr *checkout.CommerceError
	assert.False(t, errors.As(err, &cerr), "a refused duplicate is not a backend failure")
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Transitions.WithLabelValues("payment", "duplicate")))
	assert.NotContains(t, f.api.Calls(), "place_order")
	view, err := f.svc.Session(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StepPayment, view.Step)
}

func TestCheckoutService_FailedPlacementReleasesKey(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	id := walkToPayment(t, f.svc)
	_, err := f.svc.SelectPayment(ctx, id, "iou_example")
	require.NoError(t, err)

	boom := errors.New("gateway timeout")
	f.api.setPlaceErr(boom)
	_, err = f.svc.Next(ctx, id)

	var cerr *checkout.CommerceError
	require.ErrorAs(t, err, &cerr)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{placeOrderKeyPrefix + "cart-1"}, f.cache.released)

	f.api.setPlaceErr(nil)
	view, err := f.svc.Next(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StepFinalize, view.Step)
	<-f.svc.GetOrderQueue()
}

func TestCheckoutService_ResumesAfterRestart(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	id := walkToPayment(t, f.svc)
	_, err := f.svc.SelectPayment(ctx, id, "iou_example")
	require.NoError(t, err)

	restarted := f.newService()
	defer restarted.Close()

	view, err := restarted.Session(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StepPayment, view.Step)
	assert.True(t, view.UserData.Valid)
	assert.Equal(t, validAddress(), view.Shipping.Values)
	require.NotNil(t, view.Payment)
	assert.Equal(t, "iou_example", view.Payment.Name)
}

func TestCheckoutService_BackAndAbandon(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	id := walkToPayment(t, f.svc)

	view, err := f.svc.Back(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StepShippingAddress, view.Step)
	snap, err := f.sessions.LoadSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StepShippingAddress, snap.Step)

	require.NoError(t, f.svc.Abandon(ctx, id))
	assert.False(t, f.sessions.has(id))
	_, err = f.svc.Session(ctx, id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestCheckoutService_DisabledPaymentRefused(t *testing.T) {
	f := newCheckoutFixture(t)
	id := walkToPayment(t, f.svc)

	_, err := f.svc.SelectPayment(context.Background(), id, "paysera_card")

	assert.ErrorIs(t, err, checkout.ErrPaymentMethodUnavailable)
}

func TestCheckoutService_PlacedOrderQueuedAfterCallerCancels(t *testing.T) {
	for i := 0; i < 50; i++ {
		f := newCheckoutFixture(t)
		id := walkToPayment(t, f.svc)
		_, err := f.svc.SelectPayment(context.Background(), id, "iou_example")
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		api := &cancellingCommerce{mockCommerce: f.api, cancel: cancel}
		carts := NewCartService(api, newMockCartCache(), dummyCartID, "BGN", nil)
		svc := NewCheckoutService(api, carts, f.sessions, f.cache, testCheckoutConfig, 10, f.metrics, nil)

		view, err := svc.Next(ctx, id)
		require.NoError(t, err)
		require.Equal(t, domain.StepFinalize, view.Step)
		require.Error(t, ctx.Err())

		select {
		case order := <-svc.GetOrderQueue():
			assert.Equal(t, []string{"backend-order-1"}, order.BackendIDs)
		default:
			t.Fatalf("iteration %d: placed order never reached the queue", i)
		}
		assert.False(t, f.sessions.has(id), "session snapshot left behind after placement")
		svc.Close()
	}
}

func TestCheckoutService_FieldChanges(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	view, err := f.svc.StartSession(ctx, domain.CartRef{CartID: "cart-1"})
	require.NoError(t, err)
	id := view.ID

	user := validUserData()
	for field, value := range map[string]string{
		"first_name": user.FirstName,
		"last_name":  user.LastName,
		"phone":      user.Phone,
	} {
		view, err = f.svc.SetUserField(ctx, id, field, value)
		require.NoError(t, err)
	}
	assert.False(t, view.CanAdvance)
	assert.Contains(t, view.UserData.Errors, "email")

	view, err = f.svc.SetUserField(ctx, id, "email", user.Email)
	require.NoError(t, err)
	assert.True(t, view.CanAdvance)
	assert.Equal(t, [domain.StepCount]bool{true, false, false}, view.StepValid)

	_, err = f.svc.SetUserField(ctx, id, "nickname", "x")
	assert.ErrorIs(t, err, checkout.ErrUnknownField)

	_, err = f.svc.Next(ctx, id)
	require.NoError(t, err)
	view, err = f.svc.SetShippingField(ctx, id, "postal_code", "4000")
	require.NoError(t, err)
	assert.False(t, view.StepValid[domain.StepShippingAddress])

	// the change survives in the stored snapshot
	resumed := f.newService()
	defer resumed.Close()
	view, err = resumed.Session(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StepShippingAddress, view.Step)
	assert.True(t, view.StepValid[domain.StepPersonalInfo])
}
