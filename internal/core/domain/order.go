package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type OrderItemInput struct {
	AddedAt              time.Time            `json:"addedAt"`
	Price                decimal.Decimal      `json:"price"`
	ProductConfiguration ProductConfiguration `json:"productConfiguration"`
	Quantity             int                  `json:"quantity"`
}

type OrderFulfillmentGroupInput struct {
	Data                        json.RawMessage  `json:"data,omitempty"`
	Items                       []OrderItemInput `json:"items"`
	SelectedFulfillmentMethodID string           `json:"selectedFulfillmentMethodId"`
	ShopID                      string           `json:"shopId"`
	TotalPrice                  decimal.Decimal  `json:"totalPrice"`
	Type                        string           `json:"type"`
}

type OrderInput struct {
	CartID            string                       `json:"cartId"`
	CurrencyCode      string                       `json:"currencyCode"`
	Email             string                       `json:"email"`
	FulfillmentGroups []OrderFulfillmentGroupInput `json:"fulfillmentGroups"`
	ShopID            string                       `json:"shopId"`
}

type PaymentInput struct {
	Amount decimal.Decimal `json:"amount"`
	Method string          `json:"method"`
}

type PlaceOrderInput struct {
	Order    OrderInput     `json:"order"`
	Payments []PaymentInput `json:"payments"`
}

type OrderResult struct {
	OrderIDs []string `json:"order_ids"`
	Token    string   `json:"token,omitempty"`
}

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPersisted OrderStatus = "persisted"
	OrderStatusFailed    OrderStatus = "failed"
)

// PlacedOrder is the local record of a checkout that reached the backend.
type PlacedOrder struct {
	ID            string
	SessionID     string
	CartID        string
	ShopID        string
	Email         string
	PaymentMethod string
	Currency      string
	Total         decimal.Decimal
	BackendIDs    []string
	Status        OrderStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
