package domain

type Step int

const (
	StepPersonalInfo Step = iota
	StepShippingAddress
	StepPayment
	StepFinalize
)

// StepCount is the number of interactive steps; StepFinalize is terminal.
const StepCount = 3

const LastStep = StepPayment

func (s Step) String() string {
	switch s {
	case StepPersonalInfo:
		return "personal_info"
	case StepShippingAddress:
		return "shipping_address"
	case StepPayment:
		return "payment"
	case StepFinalize:
		return "finalize"
	default:
		return "unknown"
	}
}

func (s Step) IsTerminal() bool {
	return s == StepFinalize
}

// WizardSnapshot is the serializable form of a checkout wizard, used to resume a
// session after a restart.
type WizardSnapshot struct {
	SessionID     string                `json:"session_id"`
	CartID        string                `json:"cart_id"`
	CartToken     string                `json:"cart_token,omitempty"`
	CustomerToken string                `json:"customer_token,omitempty"`
	Step          Step                  `json:"step"`
	UserData      UserDataFields        `json:"user_data"`
	Shipping      ShippingAddressFields `json:"shipping"`
	Payment       string                `json:"payment,omitempty"`
	Order         *OrderResult          `json:"order,omitempty"`
}
