package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type Currency struct {
	Code string `json:"code"`
}

type Money struct {
	Amount        decimal.Decimal `json:"amount"`
	Currency      Currency        `json:"currency"`
	DisplayAmount string          `json:"displayAmount,omitempty"`
}

type Shop struct {
	ID string `json:"_id"`
}

type ProductConfiguration struct {
	ProductID        string `json:"productId"`
	ProductVariantID string `json:"productVariantId"`
}

type CartItem struct {
	ID                   string               `json:"_id"`
	Title                string               `json:"title"`
	VariantTitle         string               `json:"variantTitle,omitempty"`
	ProductConfiguration ProductConfiguration `json:"productConfiguration"`
	Quantity             int                  `json:"quantity"`
	Price                Money                `json:"price"`
	AddedAt              time.Time            `json:"addedAt"`
}

type CartItemEdge struct {
	Cursor string    `json:"cursor,omitempty"`
	Node   *CartItem `json:"node"`
}

type PageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor,omitempty"`
}

// CartItemConnection is the paginated wrapper the commerce backend returns cart items in.
type CartItemConnection struct {
	Edges      []*CartItemEdge `json:"edges"`
	PageInfo   PageInfo        `json:"pageInfo"`
	TotalCount int             `json:"totalCount"`
}

type FulfillmentMethod struct {
	ID          string `json:"_id"`
	Name        string `json:"name,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

type FulfillmentOption struct {
	FulfillmentMethod *FulfillmentMethod `json:"fulfillmentMethod"`
	Price             Money              `json:"price"`
}

// FulfillmentGroup groups items sharing one delivery method. Data is opaque and
// must reach the order payload unmodified.
type FulfillmentGroup struct {
	ID                          string               `json:"_id"`
	Type                        string               `json:"type"`
	Shop                        Shop                 `json:"shop"`
	ItemIDs                     []string             `json:"itemIds,omitempty"`
	Data                        json.RawMessage      `json:"data,omitempty"`
	AvailableFulfillmentOptions []*FulfillmentOption `json:"availableFulfillmentOptions"`
	SelectedFulfillmentOption   *FulfillmentOption   `json:"selectedFulfillmentOption"`
}

type CheckoutSummary struct {
	ItemTotal Money `json:"itemTotal"`
	Total     Money `json:"total"`
}

type Checkout struct {
	FulfillmentGroups []*FulfillmentGroup `json:"fulfillmentGroups"`
	Summary           CheckoutSummary     `json:"summary"`
}

// Cart is the read-only copy of the backend cart.
type Cart struct {
	ID       string              `json:"_id"`
	Shop     Shop                `json:"shop"`
	Items    *CartItemConnection `json:"items"`
	Checkout *Checkout           `json:"checkout"`
}

// CartRef identifies a cart on the commerce backend together with the credentials
// needed to read or mutate it.
type CartRef struct {
	CartID        string `json:"cart_id"`
	CartToken     string `json:"cart_token,omitempty"`
	CustomerToken string `json:"-"`
}

// NewCartItem is a line the storefront asks to put into a cart.
type NewCartItem struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
	Price     Money  `json:"price"`
}

// CreatedCart is returned when adding an item had to create the cart first.
type CreatedCart struct {
	Cart  *Cart  `json:"cart"`
	Token string `json:"token"`
}
