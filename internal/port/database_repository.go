package port

import (
	"context"

	"github.com/rl1809/storefront-checkout/internal/core/domain"
)

type OrderRepository interface {
	// CreateOrder persists a placed order
	CreateOrder(ctx context.Context, order domain.PlacedOrder) error

	// GetOrder retrieves a placed order by ID, nil if absent
	GetOrder(ctx context.Context, orderID string) (*domain.PlacedOrder, error)

	// UpdateOrderStatus moves an order to a new status
	UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) error
}
