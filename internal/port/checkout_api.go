package port

import (
	"context"

	"github.com/rl1809/storefront-checkout/internal/core/domain"
)

type CheckoutAPI interface {
	// SetShippingAddress attaches the buyer's address to the cart's fulfillment groups
	SetShippingAddress(ctx context.Context, ref domain.CartRef, address domain.AddressInput) (*domain.Cart, error)

	// SetFulfillmentOption selects a fulfillment method for one group
	SetFulfillmentOption(ctx context.Context, ref domain.CartRef, groupID, methodID string) (*domain.Cart, error)

	// PlaceOrder turns the cart into an order on the commerce backend
	PlaceOrder(ctx context.Context, ref domain.CartRef, input domain.PlaceOrderInput) (*domain.OrderResult, error)
}

type CartSource interface {
	// GetCart returns the current cart, nil when the backend has none
	GetCart(ctx context.Context, ref domain.CartRef) (*domain.Cart, error)

	// Invalidate drops any cached copy after the cart was mutated
	Invalidate(ctx context.Context, ref domain.CartRef)
}

// CommerceAPI is the full surface of the commerce backend used by the service.
type CommerceAPI interface {
	CheckoutAPI

	// GetCart loads a cart by id (and anonymous token), nil when it does not exist
	GetCart(ctx context.Context, ref domain.CartRef) (*domain.Cart, error)

	// CreateCart creates a cart in the shop holding the given items
	CreateCart(ctx context.Context, ref domain.CartRef, items []domain.NewCartItem) (*domain.CreatedCart, error)

	// AddCartItems appends items to an existing cart
	AddCartItems(ctx context.Context, ref domain.CartRef, items []domain.NewCartItem) (*domain.Cart, error)

	// RemoveCartItems removes cart items by their cart item ids
	RemoveCartItems(ctx context.Context, ref domain.CartRef, itemIDs []string) (*domain.Cart, error)
}
