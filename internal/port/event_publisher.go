package port

import (
	"context"

	"github.com/rl1809/storefront-checkout/internal/core/domain"
)

type OrderPublisher interface {
	// PublishOrderPlaced announces a persisted order to downstream consumers
	PublishOrderPlaced(ctx context.Context, order domain.PlacedOrder) error
}
