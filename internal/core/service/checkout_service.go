package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rl1809/storefront-checkout/internal/core/checkout"
	"github.com/rl1809/storefront-checkout/internal/core/domain"
	"github.com/rl1809/storefront-checkout/internal/metrics"
	"github.com/rl1809/storefront-checkout/internal/port"
)

var (
	ErrSessionNotFound = errors.New("checkout session not found")
	ErrDuplicateOrder  = checkout.ErrDuplicateOrder
)

const (
	placeOrderKeyPrefix = "checkout:place:"
	enqueueTimeout      = 5 * time.Second
)

type FormView struct {
	Values any               `json:"values"`
	Errors map[string]string `json:"errors"`
	Valid  bool              `json:"valid"`
}

type SessionView struct {
	ID              string                 `json:"id"`
	Step            domain.Step            `json:"step"`
	StepName        string                 `json:"step_name"`
	CanAdvance      bool                   `json:"can_advance"`
	StepValid       [domain.StepCount]bool `json:"step_valid"`
	ReadyToFinalize bool                   `json:"ready_to_finalize"`
	UserData        FormView               `json:"user_data"`
	Shipping        FormView               `json:"shipping_address"`
	Payment         *domain.PaymentMethod  `json:"payment,omitempty"`
	PaymentMethods  domain.PaymentMethods  `json:"payment_methods"`
	Order           *domain.OrderResult    `json:"order,omitempty"`
	Cart            *domain.CartView       `json:"cart,omitempty"`
}

type CheckoutService struct {
	api      port.CheckoutAPI
	carts    *CartService
	sessions port.SessionRepository
	cfg      checkout.Config
	metrics  *metrics.CheckoutMetrics
	logger   *zap.Logger

	mu     sync.Mutex
	active map[string]*checkout.Controller

	orderQueue chan domain.PlacedOrder
}

func NewCheckoutService(
	api port.CheckoutAPI,
	carts *CartService,
	sessions port.SessionRepository,
	cache port.CacheRepository,
	cfg checkout.Config,
	queueSize int,
	m *metrics.CheckoutMetrics,
	logger *zap.Logger,
) *CheckoutService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckoutService{
		api:        &idempotentCheckout{CheckoutAPI: api, cache: cache, logger: logger},
		carts:      carts,
		sessions:   sessions,
		cfg:        cfg,
		metrics:    m,
		logger:     logger,
		active:     make(map[string]*checkout.Controller),
		orderQueue: make(chan domain.PlacedOrder, queueSize),
	}
}

func (s *CheckoutService) StartSession(ctx context.Context, ref domain.CartRef) (*SessionView, error) {
	if !s.carts.hasCart(ref) {
		return nil, checkout.ErrMissingCart
	}

	id := uuid.NewString()
	ctrl := checkout.NewController(ref, s.api, s.carts, s.cfg, s.logger.With(zap.String("session_id", id)))

	s.mu.Lock()
	s.active[id] = ctrl
	s.mu.Unlock()

	s.persist(ctx, id, ctrl)
	s.logger.Info("checkout session started", zap.String("session_id", id), zap.String("cart_id", ref.CartID))
	return s.view(ctx, id, ctrl, true), nil
}

func (s *CheckoutService) Session(ctx context.Context, id string) (*SessionView, error) {
	ctrl, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, id, ctrl, true), nil
}

func (s *CheckoutService) UpdateUserData(ctx context.Context, id string, values domain.UserDataFields) (*SessionView, error) {
	return s.update(ctx, id, func(c *checkout.Controller) error {
		return c.FillUserData(values)
	})
}

func (s *CheckoutService) UpdateShippingAddress(ctx context.Context, id string, values domain.ShippingAddressFields) (*SessionView, error) {
	return s.update(ctx, id, func(c *checkout.Controller) error {
		return c.FillShippingAddress(values)
	})
}

// SetUserField applies a single field change on the personal-info form.
func (s *CheckoutService) SetUserField(ctx context.Context, id, field, value string) (*SessionView, error) {
	return s.update(ctx, id, func(c *checkout.Controller) error {
		return c.SetUserField(field, value)
	})
}

func (s *CheckoutService) SetShippingField(ctx context.Context, id, field, value string) (*SessionView, error) {
	return s.update(ctx, id, func(c *checkout.Controller) error {
		return c.SetShippingField(field, value)
	})
}

func (s *CheckoutService) SelectPayment(ctx context.Context, id, method string) (*SessionView, error) {
	return s.update(ctx, id, func(c *checkout.Controller) error {
		return c.SelectPayment(method)
	})
}

func (s *CheckoutService) Back(ctx context.Context, id string) (*SessionView, error) {
	return s.update(ctx, id, func(c *checkout.Controller) error {
		return c.Back()
	})
}

// Next advances the session. When the payment step completes, the order is queued
// for the ledger and the session is discarded; the returned view still carries the
// order result.
func (s *CheckoutService) Next(ctx context.Context, id string) (*SessionView, error) {
	ctrl, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	from := ctrl.Step()
	var summary domain.CartView
	if from == domain.LastStep {
		if cart, err := s.carts.GetCart(ctx, ctrl.CartRef()); err == nil {
			summary = s.carts.Normalize(cart)
		}
	}

	if err := ctrl.Next(ctx); err != nil {
		s.metrics.ObserveTransition(from.String(), transitionOutcome(err))
		return nil, err
	}
	s.metrics.ObserveTransition(from.String(), "advanced")

	if !ctrl.Step().IsTerminal() {
		s.persist(ctx, id, ctrl)
		return s.view(ctx, id, ctrl, false), nil
	}

	// The backend holds the order now; the ledger write and cleanup must not follow
	// the caller's cancellation.
	ctx = context.WithoutCancel(ctx)
	view := s.view(ctx, id, ctrl, false)
	s.metrics.ObserveOrderPlaced()
	s.enqueue(ctx, s.placedOrder(id, ctrl, summary))
	s.discard(ctx, id)
	return view, nil
}

func (s *CheckoutService) Abandon(ctx context.Context, id string) error {
	if _, err := s.lookup(ctx, id); err != nil {
		return err
	}
	s.discard(ctx, id)
	s.logger.Info("checkout session abandoned", zap.String("session_id", id))
	return nil
}

func (s *CheckoutService) GetOrderQueue() <-chan domain.PlacedOrder {
	return s.orderQueue
}

func (s *CheckoutService) Close() {
	close(s.orderQueue)
}

func (s *CheckoutService) update(ctx context.Context, id string, fn func(c *checkout.Controller) error) (*SessionView, error) {
	ctrl, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(ctrl); err != nil {
		return nil, err
	}
	s.persist(ctx, id, ctrl)
	return s.view(ctx, id, ctrl, false), nil
}

func (s *CheckoutService) lookup(ctx context.Context, id string) (*checkout.Controller, error) {
	s.mu.Lock()
	ctrl, ok := s.active[id]
	s.mu.Unlock()
	if ok {
		return ctrl, nil
	}

	snap, err := s.sessions.LoadSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if snap == nil {
		return nil, ErrSessionNotFound
	}

	restored := checkout.RestoreController(*snap, s.api, s.carts, s.cfg, s.logger.With(zap.String("session_id", id)))

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.active[id]; ok {
		return existing, nil
	}
	s.active[id] = restored
	s.logger.Info("checkout session restored", zap.String("session_id", id), zap.Stringer("step", snap.Step))
	return restored, nil
}

func (s *CheckoutService) persist(ctx context.Context, id string, ctrl *checkout.Controller) {
	snap := ctrl.Snapshot()
	snap.SessionID = id
	if err := s.sessions.SaveSession(ctx, snap); err != nil {
		s.logger.Warn("session snapshot not saved", zap.String("session_id", id), zap.Error(err))
	}
}

func (s *CheckoutService) discard(ctx context.Context, id string) {
	s.mu.Lock()
	delete(s.active, id)
	s.mu.Unlock()

	if err := s.sessions.DeleteSession(ctx, id); err != nil {
		s.logger.Warn("session snapshot not deleted", zap.String("session_id", id), zap.Error(err))
	}
}

func (s *CheckoutService) placedOrder(id string, ctrl *checkout.Controller, summary domain.CartView) domain.PlacedOrder {
	state := ctrl.State()
	ref := ctrl.CartRef()
	now := time.Now()

	order := domain.PlacedOrder{
		ID:        uuid.NewString(),
		SessionID: id,
		CartID:    ref.CartID,
		ShopID:    summary.ShopID,
		Email:     state.UserData.Values.Email,
		Currency:  summary.Currency,
		Total:     summary.Total,
		Status:    domain.OrderStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if state.Payment != nil {
		order.PaymentMethod = state.Payment.Name
	}
	if state.Order != nil {
		order.BackendIDs = state.Order.OrderIDs
	}
	return order
}

func (s *CheckoutService) enqueue(ctx context.Context, order domain.PlacedOrder) {
	ctx, cancel := context.WithTimeout(ctx, enqueueTimeout)
	defer cancel()

	select {
	case s.orderQueue <- order:
	case <-ctx.Done():
		s.logger.Error("placed order dropped before queueing",
			zap.String("order_id", order.ID), zap.Strings("backend_ids", order.BackendIDs), zap.Error(ctx.Err()))
	}
}

func (s *CheckoutService) view(ctx context.Context, id string, ctrl *checkout.Controller, withCart bool) *SessionView {
	state := ctrl.State()
	v := &SessionView{
		ID:              id,
		Step:            state.Step,
		StepName:        state.Step.String(),
		CanAdvance:      !state.Step.IsTerminal() && checkout.CanAdvance(state.Step, state),
		StepValid:       state.StepValid(),
		ReadyToFinalize: state.ReadyToFinalize(),
		UserData:        FormView{Values: state.UserData.Values, Errors: state.UserData.Errors, Valid: state.UserData.Valid},
		Shipping:        FormView{Values: state.Shipping.Values, Errors: state.Shipping.Errors, Valid: state.Shipping.Valid},
		Payment:         state.Payment,
		PaymentMethods:  ctrl.PaymentMethods().Enabled(),
		Order:           state.Order,
	}
	if withCart {
		cart, err := s.carts.View(ctx, ctrl.CartRef())
		if err != nil {
			s.logger.Warn("cart unavailable for session view", zap.String("session_id", id), zap.Error(err))
		} else {
			v.Cart = &cart
		}
	}
	return v
}

func transitionOutcome(err error) string {
	var verr *checkout.ValidationError
	switch {
	case errors.As(err, &verr):
		return "invalid"
	case errors.Is(err, checkout.ErrInFlight):
		return "in_flight"
	case errors.Is(err, ErrDuplicateOrder):
		return "duplicate"
	default:
		return "failed"
	}
}

// idempotentCheckout refuses a second order placement for the same cart.
type idempotentCheckout struct {
	port.CheckoutAPI
	cache  port.CacheRepository
	logger *zap.Logger
}

func (c *idempotentCheckout) PlaceOrder(ctx context.Context, ref domain.CartRef, input domain.PlaceOrderInput) (*domain.OrderResult, error) {
	key := placeOrderKeyPrefix + ref.CartID

	ok, err := c.cache.SetIdempotency(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("idempotency check failed: %w", err)
	}
	if !ok {
		return nil, ErrDuplicateOrder
	}

	result, err := c.CheckoutAPI.PlaceOrder(ctx, ref, input)
	if err != nil {
		if releaseErr := c.cache.ReleaseIdempotency(context.WithoutCancel(ctx), key); releaseErr != nil {
			c.logger.Error("idempotency key not released", zap.String("key", key), zap.Error(releaseErr))
		}
		return nil, err
	}
	return result, nil
}
