package notifications

import (
	"context"
	"fmt"
	"time"

	"stagepass/pkg/logger"

	"github.com/IBM/sarama"
)

// OrderEventProducer publishes order lifecycle events
type OrderEventProducer interface {
	Publish(ctx context.Context, event *OrderEvent) error
	Close() error
	HealthCheck(ctx context.Context) error
}

// KafkaProducerConfig contains configuration for the Kafka order event producer
type KafkaProducerConfig struct {
	Brokers          []string
	OrderTopic       string
	DeadLetterTopic  string
	RetryMax         int
	TimeoutMs        int
	RequiredAcks     sarama.RequiredAcks
	CompressionType  sarama.CompressionCodec
	IdempotentWrites bool
	MaxMessageBytes  int
}

// DefaultKafkaProducerConfig returns a default producer configuration
func DefaultKafkaProducerConfig() *KafkaProducerConfig {
	return &KafkaProducerConfig{
		Brokers:          []string{"localhost:9092"},
		OrderTopic:       "order-events",
		DeadLetterTopic:  "order-events-dlq",
		RetryMax:         3,
		TimeoutMs:        10000,
		RequiredAcks:     sarama.WaitForAll,
		CompressionType:  sarama.CompressionSnappy,
		IdempotentWrites: true,
		MaxMessageBytes:  1000000, // 1MB
	}
}

// KafkaOrderEventProducer publishes order events to Kafka
type KafkaOrderEventProducer struct {
	producer sarama.SyncProducer
	config   *KafkaProducerConfig
	logger   *logger.Logger
}

// NewKafkaOrderEventProducer creates a new Kafka order event producer
func NewKafkaOrderEventProducer(config *KafkaProducerConfig) (OrderEventProducer, error) {
	saramaConfig := sarama.NewConfig()

	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.RequiredAcks = config.RequiredAcks
	saramaConfig.Producer.Compression = config.CompressionType
	saramaConfig.Producer.Retry.Max = config.RetryMax
	saramaConfig.Producer.Timeout = time.Duration(config.TimeoutMs) * time.Millisecond
	saramaConfig.Producer.Idempotent = config.IdempotentWrites
	saramaConfig.Producer.MaxMessageBytes = config.MaxMessageBytes

	if config.IdempotentWrites {
		saramaConfig.Net.MaxOpenRequests = 1
	}

	// Hash partitioner keeps per-order ordering
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(config.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	return &KafkaOrderEventProducer{
		producer: producer,
		config:   config,
		logger:   logger.GetDefault(),
	}, nil
}

// Publish sends one order event to the order topic
func (p *KafkaOrderEventProducer) Publish(ctx context.Context, event *OrderEvent) error {
	messageBytes, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal order event: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic:     p.config.OrderTopic,
		Key:       sarama.StringEncoder(event.PartitionKey()),
		Value:     sarama.ByteEncoder(messageBytes),
		Headers:   p.createHeaders(event),
		Timestamp: event.OccurredAt,
	}

	partition, offset, err := p.producer.SendMessage(message)
	if err != nil {
		return fmt.Errorf("failed to send order event to Kafka: %w", err)
	}

	p.logger.Info("order event published",
		"topic", p.config.OrderTopic,
		"partition", partition,
		"offset", offset,
		"type", string(event.Type),
		"order_id", event.OrderID.String())
	return nil
}

// PublishDeadLetter parks an unprocessable event on the dead letter topic
func (p *KafkaOrderEventProducer) PublishDeadLetter(ctx context.Context, raw []byte, reason string) error {
	message := &sarama.ProducerMessage{
		Topic: p.config.DeadLetterTopic,
		Value: sarama.ByteEncoder(raw),
		Headers: []sarama.RecordHeader{
			{Key: []byte("dlq_reason"), Value: []byte(reason)},
			{Key: []byte("dlq_at"), Value: []byte(time.Now().Format(time.RFC3339))},
		},
	}
	if _, _, err := p.producer.SendMessage(message); err != nil {
		return fmt.Errorf("failed to send event to dead letter topic: %w", err)
	}
	return nil
}

func (p *KafkaOrderEventProducer) createHeaders(event *OrderEvent) []sarama.RecordHeader {
	return []sarama.RecordHeader{
		{Key: []byte("event_id"), Value: []byte(event.ID.String())},
		{Key: []byte("event_type"), Value: []byte(event.Type)},
		{Key: []byte("order_id"), Value: []byte(event.OrderID.String())},
		{Key: []byte("order_reference"), Value: []byte(event.OrderReference)},
		{Key: []byte("version"), Value: []byte("1.0")},
		{Key: []byte("producer"), Value: []byte("stagepass-orders")},
		{Key: []byte("occurred_at"), Value: []byte(event.OccurredAt.Format(time.RFC3339))},
	}
}

// Close closes the Kafka producer
func (p *KafkaOrderEventProducer) Close() error {
	if p.producer != nil {
		if err := p.producer.Close(); err != nil {
			return fmt.Errorf("failed to close Kafka producer: %w", err)
		}
	}
	return nil
}

// HealthCheck validates producer wiring without publishing
func (p *KafkaOrderEventProducer) HealthCheck(ctx context.Context) error {
	if p.producer == nil {
		return fmt.Errorf("health check failed - producer is nil")
	}
	if p.config.OrderTopic == "" {
		return fmt.Errorf("health check failed - order topic not configured")
	}
	return nil
}

// NoopProducer drops events. Used when Kafka is disabled, so the checkout
// pipeline keeps working in environments without a broker.
type NoopProducer struct {
	logger *logger.Logger
}

func NewNoopProducer() OrderEventProducer {
	return &NoopProducer{logger: logger.GetDefault()}
}

func (n *NoopProducer) Publish(ctx context.Context, event *OrderEvent) error {
	n.logger.Debug("order event dropped, kafka disabled",
		"type", string(event.Type),
		"order_id", event.OrderID.String())
	return nil
}

func (n *NoopProducer) Close() error { return nil }

func (n *NoopProducer) HealthCheck(ctx context.Context) error { return nil }
