package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/rl1809/storefront-checkout/internal/core/domain"
)

const EventOrderPlaced = "order.placed"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// OrderPlacedEvent is the payload published for every persisted order.
type OrderPlacedEvent struct {
	EventID       string    `json:"event_id"`
	Type          string    `json:"type"`
	OrderID       string    `json:"order_id"`
	BackendIDs    []string  `json:"backend_order_ids"`
	CartID        string    `json:"cart_id"`
	ShopID        string    `json:"shop_id"`
	Email         string    `json:"email"`
	PaymentMethod string    `json:"payment_method"`
	Currency      string    `json:"currency"`
	Total         string    `json:"total"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type KafkaPublisher struct {
	writer messageWriter
	logger *zap.Logger
}

// ParseBrokers splits a comma separated broker list, dropping blanks.
func ParseBrokers(csv string) []string {
	brokers := []string{}
	for _, b := range strings.Split(csv, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	return newPublisher(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}, logger)
}

func newPublisher(writer messageWriter, logger *zap.Logger) *KafkaPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaPublisher{writer: writer, logger: logger}
}

// PublishOrderPlaced writes the event keyed by cart id so events of one cart stay ordered.
func (p *KafkaPublisher) PublishOrderPlaced(ctx context.Context, order domain.PlacedOrder) error {
	evt := OrderPlacedEvent{
		EventID:       order.ID,
		Type:          EventOrderPlaced,
		OrderID:       order.ID,
		BackendIDs:    order.BackendIDs,
		CartID:        order.CartID,
		ShopID:        order.ShopID,
		Email:         order.Email,
		PaymentMethod: order.PaymentMethod,
		Currency:      order.Currency,
		Total:         order.Total.StringFixed(2),
		OccurredAt:    order.CreatedAt.UTC(),
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(order.CartID),
		Value: data,
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventOrderPlaced)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	p.logger.Debug("order event published", zap.String("order_id", order.ID))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// LogPublisher stands in when no brokers are configured.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) PublishOrderPlaced(ctx context.Context, order domain.PlacedOrder) error {
	p.logger.Info("order placed", zap.String("order_id", order.ID), zap.Strings("backend_ids", order.BackendIDs))
	return nil
}
