package checkout

import (
	"strings"

	"github.com/rl1809/storefront-checkout/internal/core/domain"
)

// BuildOrder assembles the order-creation payload. It returns ErrMissingCart when
// there is no cart, in which case nothing must be sent to the backend.
//
// Every fulfillment group becomes one group input. A group receives the cart items
// listed in its ItemIDs; items no group claims go to the first group, so each cart
// item appears exactly once in the payload.
func BuildOrder(cart *domain.Cart, user domain.UserDataFields, shipping domain.ShippingAddressFields, payment *domain.PaymentMethod) (*domain.OrderInput, error) {
	if cart == nil {
		return nil, ErrMissingCart
	}
	if payment == nil {
		return nil, ErrPaymentNotSelected
	}
	if shipping.Address == "" || shipping.Locality == "" || shipping.PostalCode == "" {
		return nil, ErrShippingIncomplete
	}
	if cart.Checkout == nil || len(cart.Checkout.FulfillmentGroups) == 0 {
		return nil, ErrNoFulfillmentGroup
	}

	checkout := cart.Checkout
	itemsByGroup := splitItems(cart)

	groups := make([]domain.OrderFulfillmentGroupInput, 0, len(checkout.FulfillmentGroups))
	for i, group := range checkout.FulfillmentGroups {
		if group == nil {
			continue
		}
		selected := group.SelectedFulfillmentOption
		if selected == nil || selected.FulfillmentMethod == nil {
			return nil, ErrFulfillmentNotSelected
		}

		groups = append(groups, domain.OrderFulfillmentGroupInput{
			Data:                        group.Data,
			Items:                       itemsByGroup[i],
			SelectedFulfillmentMethodID: selected.FulfillmentMethod.ID,
			ShopID:                      group.Shop.ID,
			TotalPrice:                  checkout.Summary.Total.Amount,
			Type:                        group.Type,
		})
	}

	return &domain.OrderInput{
		CartID:            cart.ID,
		CurrencyCode:      checkout.Summary.Total.Currency.Code,
		Email:             user.Email,
		FulfillmentGroups: groups,
		ShopID:            cart.Shop.ID,
	}, nil
}

func splitItems(cart *domain.Cart) [][]domain.OrderItemInput {
	groups := cart.Checkout.FulfillmentGroups
	out := make([][]domain.OrderItemInput, len(groups))
	for i := range out {
		out[i] = []domain.OrderItemInput{}
	}
	if cart.Items == nil {
		return out
	}

	owner := map[string]int{}
	for i, group := range groups {
		if group == nil {
			continue
		}
		for _, id := range group.ItemIDs {
			if _, taken := owner[id]; !taken {
				owner[id] = i
			}
		}
	}

	fallback := 0
	for i, group := range groups {
		if group != nil {
			fallback = i
			break
		}
	}

	for _, edge := range cart.Items.Edges {
		if edge == nil || edge.Node == nil {
			continue
		}
		node := edge.Node
		idx, ok := owner[node.ID]
		if !ok {
			idx = fallback
		}
		out[idx] = append(out[idx], domain.OrderItemInput{
			AddedAt:              node.AddedAt,
			Price:                node.Price.Amount,
			ProductConfiguration: node.ProductConfiguration,
			Quantity:             node.Quantity,
		})
	}
	return out
}

// BuildPayments charges the whole checkout total to the selected method.
func BuildPayments(cart *domain.Cart, payment *domain.PaymentMethod) ([]domain.PaymentInput, error) {
	if cart == nil {
		return nil, ErrMissingCart
	}
	if payment == nil {
		return nil, ErrPaymentNotSelected
	}

	payments := []domain.PaymentInput{{Method: payment.Name}}
	if cart.Checkout != nil {
		payments[0].Amount = cart.Checkout.Summary.Total.Amount
	}
	return payments, nil
}

// BuildShippingAddress maps the two forms onto the backend address. The locality
// fills both city and region and the country is fixed per deployment.
func BuildShippingAddress(user domain.UserDataFields, shipping domain.ShippingAddressFields, country string) domain.AddressInput {
	return domain.AddressInput{
		FullName:  strings.TrimSpace(user.FirstName + " " + user.LastName),
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Phone:     user.Phone,
		Address1:  shipping.Address,
		City:      shipping.Locality,
		Region:    shipping.Locality,
		Country:   country,
		Postal:    shipping.PostalCode,
	}
}

// PrimaryFulfillment picks the group and option the shipping step assigns. Only
// single-group carts are supported; anything else is refused instead of guessed.
func PrimaryFulfillment(cart *domain.Cart) (groupID, methodID string, err error) {
	if cart == nil {
		return "", "", ErrMissingCart
	}
	if cart.Checkout == nil || len(cart.Checkout.FulfillmentGroups) == 0 || cart.Checkout.FulfillmentGroups[0] == nil {
		return "", "", ErrNoFulfillmentGroup
	}
	if len(cart.Checkout.FulfillmentGroups) > 1 {
		return "", "", ErrMultipleFulfillmentGroups
	}

	group := cart.Checkout.FulfillmentGroups[0]
	if len(group.AvailableFulfillmentOptions) == 0 {
		return "", "", ErrNoFulfillmentOption
	}
	option := group.AvailableFulfillmentOptions[0]
	if option == nil || option.FulfillmentMethod == nil {
		return "", "", ErrNoFulfillmentOption
	}
	return group.ID, option.FulfillmentMethod.ID, nil
}
