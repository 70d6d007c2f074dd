package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/storefront-checkout/internal/core/domain"
	"github.com/rl1809/storefront-checkout/internal/metrics"
	"github.com/rl1809/storefront-checkout/internal/port"
)

const orderWriteTimeout = 5 * time.Second

// OrderWorker records placed orders in the local ledger and announces them.
type OrderWorker struct {
	repo      port.OrderRepository
	publisher port.OrderPublisher
	metrics   *metrics.CheckoutMetrics
	logger    *zap.Logger
}

func NewOrderWorker(repo port.OrderRepository, publisher port.OrderPublisher, m *metrics.CheckoutMetrics, logger *zap.Logger) *OrderWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderWorker{repo: repo, publisher: publisher, metrics: m, logger: logger}
}

// Start runs count workers draining the queue. The returned function blocks until
// the queue is closed and every worker has finished.
func (w *OrderWorker) Start(count int, queue <-chan domain.PlacedOrder) (wait func()) {
	var wg sync.WaitGroup
	for i := 0; i < count; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			w.loop(id, queue)
		}(i)
	}
	w.logger.Info("order workers started", zap.Int("count", count))
	return wg.Wait
}

func (w *OrderWorker) loop(id int, queue <-chan domain.PlacedOrder) {
	logger := w.logger.With(zap.Int("worker", id))
	for order := range queue {
		ctx, cancel := context.WithTimeout(context.Background(), orderWriteTimeout)
		w.handle(ctx, logger, order)
		cancel()
	}
}

func (w *OrderWorker) handle(ctx context.Context, logger *zap.Logger, order domain.PlacedOrder) {
	logger = logger.With(zap.String("order_id", order.ID), zap.String("cart_id", order.CartID))

	if err := w.repo.CreateOrder(ctx, order); err != nil {
		logger.Error("failed to save order", zap.Strings("backend_ids", order.BackendIDs), zap.Error(err))
		w.metrics.ObserveOrderSaved("failed")
		return
	}

	status := domain.OrderStatusPersisted
	if err := w.publisher.PublishOrderPlaced(ctx, order); err != nil {
		logger.Error("failed to publish order", zap.Error(err))
		status = domain.OrderStatusFailed
	}

	if err := w.repo.UpdateOrderStatus(ctx, order.ID, status); err != nil {
		logger.Error("failed to update order status", zap.String("status", string(status)), zap.Error(err))
		w.metrics.ObserveOrderSaved("failed")
		return
	}

	w.metrics.ObserveOrderSaved(string(status))
	logger.Info("saved order", zap.String("status", string(status)))
}
