package checkout

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/rl1809/storefront-checkout/internal/core/domain"
	"github.com/rl1809/storefront-checkout/internal/port"
)

// Config is the per-deployment input of a controller.
type Config struct {
	Country        string
	PaymentMethods domain.PaymentMethods
}

// Controller drives one checkout wizard. Next is guarded against re-entry: while a
// transition is waiting on the commerce backend every other mutation returns
// ErrInFlight instead of queueing.
type Controller struct {
	ref    domain.CartRef
	api    port.CheckoutAPI
	carts  port.CartSource
	cfg    Config
	logger *zap.Logger

	inFlight atomic.Bool

	mu    sync.Mutex
	state WizardState
}

func NewController(ref domain.CartRef, api port.CheckoutAPI, carts port.CartSource, cfg Config, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		ref:    ref,
		api:    api,
		carts:  carts,
		cfg:    cfg,
		logger: logger.With(zap.String("cart_id", ref.CartID)),
		state:  NewWizardState(),
	}
}

func (c *Controller) CartRef() domain.CartRef {
	return c.ref
}

func (c *Controller) PaymentMethods() domain.PaymentMethods {
	return c.cfg.PaymentMethods
}

// State returns a copy of the wizard state.
func (c *Controller) State() WizardState {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.state
	s.UserData.Errors = copyErrors(s.UserData.Errors)
	s.Shipping.Errors = copyErrors(s.Shipping.Errors)
	if s.Payment != nil {
		p := *s.Payment
		s.Payment = &p
	}
	return s
}

func (c *Controller) Step() domain.Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Step
}

func (c *Controller) InFlight() bool {
	return c.inFlight.Load()
}

func (c *Controller) CanAdvance() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CanAdvance(c.state.Step, c.state)
}

func (c *Controller) ReadyToFinalize() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.ReadyToFinalize()
}

func (c *Controller) SetUserField(field, value string) error {
	return c.mutate(func(s *WizardState) error {
		return s.UserData.Set(field, value)
	})
}

func (c *Controller) FillUserData(values domain.UserDataFields) error {
	return c.mutate(func(s *WizardState) error {
		s.UserData.Fill(values)
		return nil
	})
}

func (c *Controller) SetShippingField(field, value string) error {
	return c.mutate(func(s *WizardState) error {
		return s.Shipping.Set(field, value)
	})
}

func (c *Controller) FillShippingAddress(values domain.ShippingAddressFields) error {
	return c.mutate(func(s *WizardState) error {
		s.Shipping.Fill(values)
		return nil
	})
}

// SelectPayment picks a configured, enabled payment method by name.
func (c *Controller) SelectPayment(name string) error {
	method, ok := c.cfg.PaymentMethods.Find(name)
	if !ok || !method.IsEnabled {
		return ErrPaymentMethodUnavailable
	}
	return c.mutate(func(s *WizardState) error {
		s.Payment = &method
		return nil
	})
}

func (c *Controller) mutate(fn func(s *WizardState) error) error {
	if c.inFlight.Load() {
		return ErrInFlight
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Next may have started between the check above and taking the lock.
	if c.inFlight.Load() {
		return ErrInFlight
	}
	if c.state.Step.IsTerminal() {
		return ErrCheckoutComplete
	}
	return fn(&c.state)
}

// Back moves one step back. It is a no-op at the first step.
func (c *Controller) Back() error {
	if c.inFlight.Load() {
		return ErrInFlight
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inFlight.Load() {
		return ErrInFlight
	}
	if c.state.Step.IsTerminal() {
		return ErrCheckoutComplete
	}
	if c.state.Step > domain.StepPersonalInfo {
		c.state.Step--
	}
	return nil
}

// Next validates the current step, runs the backend calls the step needs and
// advances. On any error the step is left unchanged so the call can be retried.
func (c *Controller) Next(ctx context.Context) error {
	if !c.inFlight.CompareAndSwap(false, true) {
		return ErrInFlight
	}
	defer c.inFlight.Store(false)

	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	if state.Step.IsTerminal() {
		return ErrCheckoutComplete
	}
	if !CanAdvance(state.Step, state) {
		return &ValidationError{Step: state.Step, Fields: stepErrors(state.Step, state)}
	}

	var order *domain.OrderResult
	switch state.Step {
	case domain.StepShippingAddress:
		if err := c.applyShipping(ctx, state); err != nil {
			return err
		}
	case domain.StepPayment:
		result, err := c.placeOrder(ctx, state)
		if err != nil {
			return err
		}
		order = result
	}

	// The step committed is the one that was validated, whatever the state holds now.
	to := state.Step + 1
	c.mu.Lock()
	c.state.Step = to
	if order != nil {
		c.state.Order = order
	}
	c.mu.Unlock()

	c.logger.Info("checkout step advanced", zap.Stringer("from", state.Step), zap.Stringer("to", to))
	return nil
}

func (c *Controller) applyShipping(ctx context.Context, state WizardState) error {
	cart, err := c.carts.GetCart(ctx, c.ref)
	if err != nil {
		return c.commerceError("get cart", state.Step, err)
	}
	groupID, methodID, err := PrimaryFulfillment(cart)
	if err != nil {
		return err
	}

	address := BuildShippingAddress(state.UserData.Values, state.Shipping.Values, c.cfg.Country)
	if _, err := c.api.SetShippingAddress(ctx, c.ref, address); err != nil {
		return c.commerceError("set shipping address", state.Step, err)
	}
	c.carts.Invalidate(ctx, c.ref)

	if _, err := c.api.SetFulfillmentOption(ctx, c.ref, groupID, methodID); err != nil {
		return c.commerceError("set fulfillment option", state.Step, err)
	}
	c.carts.Invalidate(ctx, c.ref)
	return nil
}

func (c *Controller) placeOrder(ctx context.Context, state WizardState) (*domain.OrderResult, error) {
	cart, err := c.carts.GetCart(ctx, c.ref)
	if err != nil {
		return nil, c.commerceError("get cart", state.Step, err)
	}

	order, err := BuildOrder(cart, state.UserData.Values, state.Shipping.Values, state.Payment)
	if err != nil {
		c.logger.Warn("order not assembled", zap.Error(err))
		return nil, err
	}
	payments, err := BuildPayments(cart, state.Payment)
	if err != nil {
		return nil, err
	}

	result, err := c.api.PlaceOrder(ctx, c.ref, domain.PlaceOrderInput{Order: *order, Payments: payments})
	if errors.Is(err, ErrDuplicateOrder) {
		c.logger.Warn("order already placed for cart")
		return nil, err
	}
	if err != nil {
		return nil, c.commerceError("place order", state.Step, err)
	}
	c.carts.Invalidate(ctx, c.ref)
	return result, nil
}

func (c *Controller) commerceError(op string, step domain.Step, err error) error {
	c.logger.Error("commerce call failed", zap.String("op", op), zap.Stringer("step", step), zap.Error(err))
	return &CommerceError{Op: op, Step: step, Err: err}
}
