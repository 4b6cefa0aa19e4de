package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fanclub/internal/shared/config"
	"fanclub/pkg/logger"

	"github.com/IBM/sarama"
)

const EventOrderConfirmed = "ORDER_CONFIRMED"

// OrderEvent is the message published for downstream fulfilment
type OrderEvent struct {
	Type       string    `json:"type"`
	OrderID    string    `json:"orderId"`
	OrderRef   string    `json:"orderRef"`
	ClubID     string    `json:"clubId"`
	UserID     string    `json:"userId"`
	Email      string    `json:"email"`
	SeatIDs    []string  `json:"seatIds,omitempty"`
	TotalCents int64     `json:"totalCents"`
	OccurredAt time.Time `json:"occurredAt"`
}

// OrderEventPublisher announces confirmed orders
type OrderEventPublisher interface {
	PublishOrderConfirmed(ctx context.Context, order *Order) error
	Close() error
}

// KafkaOrderPublisher publishes order events with a sarama SyncProducer
type KafkaOrderPublisher struct {
	producer sarama.SyncProducer
	topic    string
	log      *logger.Logger
}

// NewKafkaOrderPublisher connects a producer to the configured brokers
func NewKafkaOrderPublisher(cfg config.KafkaConfig, log *logger.Logger) (*KafkaOrderPublisher, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.ClientID = cfg.ClientID
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = 3
	saramaConfig.Producer.Timeout = 10 * time.Second
	saramaConfig.Producer.Idempotent = true
	saramaConfig.Net.MaxOpenRequests = 1

	// orders of one club land on one partition
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	return NewKafkaOrderPublisherWithProducer(producer, cfg.OrdersTopic, log), nil
}

func NewKafkaOrderPublisherWithProducer(producer sarama.SyncProducer, topic string, log *logger.Logger) *KafkaOrderPublisher {
	if log == nil {
		log = logger.GetDefault()
	}
	return &KafkaOrderPublisher{producer: producer, topic: topic, log: log}
}

func (p *KafkaOrderPublisher) PublishOrderConfirmed(ctx context.Context, order *Order) error {
	event := OrderEvent{
		Type:       EventOrderConfirmed,
		OrderID:    order.ID.String(),
		OrderRef:   order.OrderRef,
		ClubID:     order.ClubID,
		UserID:     order.UserID,
		Email:      order.Email,
		SeatIDs:    order.SeatIDs(),
		TotalCents: order.TotalCents,
		OccurredAt: order.CreatedAt,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal order event: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(order.ClubID),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(EventOrderConfirmed)},
			{Key: []byte("order_id"), Value: []byte(event.OrderID)},
			{Key: []byte("producer"), Value: []byte("fanclub-storefront")},
		},
		Timestamp: order.CreatedAt,
	}

	partition, offset, err := p.producer.SendMessage(message)
	if err != nil {
		return fmt.Errorf("failed to send order event to Kafka: %w", err)
	}

	p.log.DebugContext(ctx, "Order event published",
		"topic", p.topic, "partition", partition, "offset", offset, "order_id", event.OrderID)
	return nil
}

func (p *KafkaOrderPublisher) Close() error {
	if p.producer == nil {
		return nil
	}
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka producer: %w", err)
	}
	return nil
}

// NoopPublisher drops events. Used when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishOrderConfirmed(ctx context.Context, order *Order) error { return nil }

func (NoopPublisher) Close() error { return nil }
