package checkout

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rl1809/storefront-checkout/internal/core/domain"
)

var (
	ErrInFlight                  = errors.New("a checkout step is already in progress")
	ErrCheckoutComplete          = errors.New("checkout already finalized")
	ErrMissingCart               = errors.New("no cart to build the order from")
	ErrPaymentNotSelected        = errors.New("no payment method selected")
	ErrPaymentMethodUnavailable  = errors.New("payment method is not available")
	ErrFulfillmentNotSelected    = errors.New("fulfillment group has no selected fulfillment option")
	ErrShippingIncomplete        = errors.New("shipping address is incomplete")
	ErrNoFulfillmentGroup        = errors.New("cart has no fulfillment group")
	ErrMultipleFulfillmentGroups = errors.New("carts with more than one fulfillment group are not supported")
	ErrNoFulfillmentOption       = errors.New("fulfillment group has no available fulfillment option")
	ErrUnknownField              = errors.New("unknown form field")
	ErrDuplicateOrder            = errors.New("order already placed for this cart")
)

// ValidationError blocks a step from advancing. Fields maps field names to messages.
type ValidationError struct {
	Step   domain.Step
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("step %s is incomplete", e.Step)
	}

	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return fmt.Sprintf("step %s is incomplete: %s", e.Step, strings.Join(parts, ", "))
}

// CommerceError wraps a failed call to the commerce backend made during a step
// transition. The wizard stays on the step that issued the call.
type CommerceError struct {
	Op   string
	Step domain.Step
	Err  error
}

func (e *CommerceError) Error() string {
	return fmt.Sprintf("%s failed on step %s: %v", e.Op, e.Step, e.Err)
}

func (e *CommerceError) Unwrap() error {
	return e.Err
}
