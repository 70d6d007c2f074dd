package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/storefront-checkout/internal/core/domain"
)

var ErrOrderNotFound = errors.New("order not found")

const ordersSchema = `
CREATE TABLE IF NOT EXISTS orders (
	id             VARCHAR(64)    NOT NULL PRIMARY KEY,
	session_id     VARCHAR(64)    NOT NULL,
	cart_id        VARCHAR(128)   NOT NULL,
	shop_id        VARCHAR(128)   NOT NULL,
	email          VARCHAR(255)   NOT NULL,
	payment_method VARCHAR(64)    NOT NULL,
	currency       CHAR(3)        NOT NULL,
	total          DECIMAL(12, 2) NOT NULL,
	backend_ids    JSON           NOT NULL,
	status         VARCHAR(16)    NOT NULL,
	created_at     DATETIME(6)    NOT NULL,
	updated_at     DATETIME(6)    NOT NULL,
	KEY idx_orders_cart (cart_id)
)`

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) EnsureSchema(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, ordersSchema); err != nil {
		return fmt.Errorf("create orders table: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) CreateOrder(ctx context.Context, order domain.PlacedOrder) error {
	backendIDs, err := json.Marshal(nonNil(order.BackendIDs))
	if err != nil {
		return fmt.Errorf("marshal backend ids: %w", err)
	}

	_, err = m.db.ExecContext(ctx, `
		INSERT INTO orders (id, session_id, cart_id, shop_id, email, payment_method, currency, total, backend_ids, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.SessionID, order.CartID, order.ShopID, order.Email, order.PaymentMethod,
		order.Currency, order.Total.StringFixed(2), string(backendIDs), order.Status,
		order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) GetOrder(ctx context.Context, orderID string) (*domain.PlacedOrder, error) {
	var (
		order      domain.PlacedOrder
		total      string
		backendIDs []byte
	)
	err := m.db.QueryRowContext(ctx, `
		SELECT id, session_id, cart_id, shop_id, email, payment_method, currency, total, backend_ids, status, created_at, updated_at
		FROM orders WHERE id = ?`, orderID,
	).Scan(&order.ID, &order.SessionID, &order.CartID, &order.ShopID, &order.Email, &order.PaymentMethod,
		&order.Currency, &total, &backendIDs, &order.Status, &order.CreatedAt, &order.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}

	if order.Total, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("parse order total: %w", err)
	}
	if err := json.Unmarshal(backendIDs, &order.BackendIDs); err != nil {
		return nil, fmt.Errorf("parse backend ids: %w", err)
	}
	return &order, nil
}

func (m *MySQLAdapter) UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE orders
		SET status = ?, updated_at = ?
		WHERE id = ?`,
		status, time.Now(), orderID,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (m *MySQLAdapter) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
