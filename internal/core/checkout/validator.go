package checkout

import "github.com/rl1809/storefront-checkout/internal/core/domain"

// WizardState is the per-session checkout state. It is created fresh for every
// checkout and never persisted on its own; the cart and order live on the backend.
type WizardState struct {
	Step     domain.Step           `json:"step"`
	UserData UserDataForm          `json:"user_data"`
	Shipping ShippingAddressForm   `json:"shipping"`
	Payment  *domain.PaymentMethod `json:"payment,omitempty"`
	Order    *domain.OrderResult   `json:"order,omitempty"`
}

func NewWizardState() WizardState {
	return WizardState{
		Step:     domain.StepPersonalInfo,
		UserData: NewUserDataForm(),
		Shipping: NewShippingAddressForm(),
	}
}

// ReadyToFinalize reports whether the continue action places the order.
func (s WizardState) ReadyToFinalize() bool {
	return s.Step == domain.LastStep
}

// StepValid returns the validity flag of every interactive step.
func (s WizardState) StepValid() [domain.StepCount]bool {
	var valid [domain.StepCount]bool
	for i := range valid {
		valid[i] = CanAdvance(domain.Step(i), s)
	}
	return valid
}

// CanAdvance reports whether the given step's input is complete. Unknown steps
// never advance.
func CanAdvance(step domain.Step, state WizardState) bool {
	switch step {
	case domain.StepPersonalInfo:
		return state.UserData.Valid
	case domain.StepShippingAddress:
		return state.Shipping.Valid
	case domain.StepPayment:
		return state.Payment != nil
	default:
		return false
	}
}

// stepErrors explains why CanAdvance is false for a step.
func stepErrors(step domain.Step, state WizardState) map[string]string {
	switch step {
	case domain.StepPersonalInfo:
		return copyErrors(state.UserData.Errors)
	case domain.StepShippingAddress:
		return copyErrors(state.Shipping.Errors)
	case domain.StepPayment:
		return map[string]string{"payment": "select a payment method"}
	default:
		return map[string]string{}
	}
}

func copyErrors(errs map[string]string) map[string]string {
	out := make(map[string]string, len(errs))
	for k, v := range errs {
		out[k] = v
	}
	return out
}
