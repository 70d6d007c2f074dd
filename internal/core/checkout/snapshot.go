package checkout

import (
	"go.uber.org/zap"

	"github.com/rl1809/storefront-checkout/internal/core/domain"
	"github.com/rl1809/storefront-checkout/internal/port"
)

// Snapshot captures the wizard for the session store.
func (c *Controller) Snapshot() domain.WizardSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := domain.WizardSnapshot{
		CartID:        c.ref.CartID,
		CartToken:     c.ref.CartToken,
		CustomerToken: c.ref.CustomerToken,
		Step:          c.state.Step,
		UserData:      c.state.UserData.Values,
		Shipping:      c.state.Shipping.Values,
		Order:         c.state.Order,
	}
	if c.state.Payment != nil {
		s.Payment = c.state.Payment.Name
	}
	return s
}

// RestoreController rebuilds a controller from a snapshot. A payment method that is
// no longer configured or enabled is dropped.
func RestoreController(s domain.WizardSnapshot, api port.CheckoutAPI, carts port.CartSource, cfg Config, logger *zap.Logger) *Controller {
	ref := domain.CartRef{CartID: s.CartID, CartToken: s.CartToken, CustomerToken: s.CustomerToken}
	c := NewController(ref, api, carts, cfg, logger)

	c.state.UserData.Fill(s.UserData)
	c.state.Shipping.Fill(s.Shipping)
	if method, ok := cfg.PaymentMethods.Find(s.Payment); ok && method.IsEnabled {
		c.state.Payment = &method
	}
	c.state.Order = s.Order

	step := s.Step
	if step < domain.StepPersonalInfo || step > domain.StepFinalize {
		step = domain.StepPersonalInfo
	}
	c.state.Step = step
	return c
}
