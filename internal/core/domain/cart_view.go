package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type LineItem struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	VariantName string          `json:"variant_name,omitempty"`
	ProductID   string          `json:"product_id"`
	VariantID   string          `json:"variant_id"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
	AddedAt     time.Time       `json:"added_at"`
}

// CartView is the flattened cart the checkout views render from.
type CartView struct {
	ID        string          `json:"id"`
	ShopID    string          `json:"shop_id"`
	Currency  string          `json:"currency"`
	LineItems []LineItem      `json:"line_items"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Total     decimal.Decimal `json:"total"`
	IsEmpty   bool            `json:"is_empty"`
}

// NormalizeCart flattens the paginated item connection and the checkout summary.
// A nil cart yields an empty view with zero items and a zero total.
func NormalizeCart(cart *Cart, defaultCurrency string) CartView {
	view := CartView{
		Currency:  defaultCurrency,
		LineItems: []LineItem{},
		Subtotal:  decimal.Zero,
		Total:     decimal.Zero,
	}
	if cart == nil {
		view.IsEmpty = true
		return view
	}

	view.ID = cart.ID
	view.ShopID = cart.Shop.ID
	view.LineItems = FlattenItems(cart)

	if cart.Checkout != nil {
		summary := cart.Checkout.Summary
		view.Subtotal = summary.ItemTotal.Amount
		view.Total = summary.Total.Amount
		if code := summary.Total.Currency.Code; code != "" {
			view.Currency = code
		}
	} else {
		for _, item := range view.LineItems {
			view.Subtotal = view.Subtotal.Add(item.LineTotal)
		}
		view.Total = view.Subtotal
	}

	view.IsEmpty = len(view.LineItems) == 0
	return view
}

// FlattenItems returns the cart's items in edge order, skipping empty edges.
func FlattenItems(cart *Cart) []LineItem {
	if cart == nil || cart.Items == nil {
		return []LineItem{}
	}

	items := make([]LineItem, 0, len(cart.Items.Edges))
	for _, edge := range cart.Items.Edges {
		if edge == nil || edge.Node == nil {
			continue
		}
		node := edge.Node
		items = append(items, LineItem{
			ID:          node.ID,
			Name:        node.Title,
			VariantName: node.VariantTitle,
			ProductID:   node.ProductConfiguration.ProductID,
			VariantID:   node.ProductConfiguration.ProductVariantID,
			Quantity:    node.Quantity,
			UnitPrice:   node.Price.Amount,
			LineTotal:   node.Price.Amount.Mul(decimal.NewFromInt(int64(node.Quantity))),
			AddedAt:     node.AddedAt,
		})
	}
	return items
}
