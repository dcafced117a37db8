package notifications

import (
	"context"
	"fmt"
	"sync"
	"time"

	"stagepass/pkg/logger"

	"github.com/IBM/sarama"
)

// OrderEventConsumer consumes order events and delivers buyer emails
type OrderEventConsumer interface {
	StartConsumers(ctx context.Context, numWorkers int) error
	Stop() error
	HealthCheck(ctx context.Context) error
}

type ConsumerConfig struct {
	Brokers              []string
	GroupID              string
	Topics               []string
	SessionTimeoutMs     int
	HeartbeatMs          int
	RetryBackoffMs       int
	MaxProcessingTime    time.Duration
	AutoCommit           bool
	OffsetOldest         bool
	MaxRetries           int
	RetryBackoffDuration time.Duration
}

func DefaultConsumerConfig() *ConsumerConfig {
	return &ConsumerConfig{
		Brokers:              []string{"localhost:9092"},
		GroupID:              "stagepass-notification-workers",
		Topics:               []string{"order-events"},
		SessionTimeoutMs:     30000,
		HeartbeatMs:          3000,
		RetryBackoffMs:       100,
		MaxProcessingTime:    5 * time.Minute,
		AutoCommit:           true,
		OffsetOldest:         false,
		MaxRetries:           3,
		RetryBackoffDuration: time.Second,
	}
}

type KafkaOrderEventConsumer struct {
	consumerGroup sarama.ConsumerGroup
	config        *ConsumerConfig
	emailService  EmailService
	deadLetter    *KafkaOrderEventProducer
	topics        []string
	ctx           context.Context
	cancel        context.CancelFunc
	logger        *logger.Logger
}

func NewKafkaOrderEventConsumer(config *ConsumerConfig, emailService EmailService, deadLetter *KafkaOrderEventProducer) (OrderEventConsumer, error) {
	saramaConfig := sarama.NewConfig()

	saramaConfig.Consumer.Group.Session.Timeout = time.Duration(config.SessionTimeoutMs) * time.Millisecond
	saramaConfig.Consumer.Group.Heartbeat.Interval = time.Duration(config.HeartbeatMs) * time.Millisecond
	saramaConfig.Consumer.Retry.Backoff = time.Duration(config.RetryBackoffMs) * time.Millisecond
	saramaConfig.Consumer.MaxProcessingTime = config.MaxProcessingTime
	saramaConfig.Consumer.Return.Errors = true

	if config.OffsetOldest {
		saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	}

	if config.AutoCommit {
		saramaConfig.Consumer.Offsets.AutoCommit.Enable = true
		saramaConfig.Consumer.Offsets.AutoCommit.Interval = 1 * time.Second
	}

	consumerGroup, err := sarama.NewConsumerGroup(config.Brokers, config.GroupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &KafkaOrderEventConsumer{
		consumerGroup: consumerGroup,
		config:        config,
		emailService:  emailService,
		deadLetter:    deadLetter,
		topics:        config.Topics,
		ctx:           ctx,
		cancel:        cancel,
		logger:        logger.GetDefault(),
	}, nil
}

func (c *KafkaOrderEventConsumer) StartConsumers(ctx context.Context, numWorkers int) error {
	c.logger.Info("starting order event consumer workers",
		"workers", numWorkers, "topics", fmt.Sprintf("%v", c.topics))

	go c.handleErrors()

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			c.runWorker(ctx, workerID)
		}(i)
	}
	return nil
}

func (c *KafkaOrderEventConsumer) runWorker(ctx context.Context, workerID int) {
	handler := &orderEventGroupHandler{
		consumer: c,
		workerID: workerID,
	}

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("order event worker shutting down", "worker", workerID)
			return
		default:
			if err := c.consumerGroup.Consume(ctx, c.topics, handler); err != nil {
				c.logger.WithError(err).Error("order event worker consume error", "worker", workerID)
				time.Sleep(time.Second)
			}
		}
	}
}

func (c *KafkaOrderEventConsumer) handleErrors() {
	for err := range c.consumerGroup.Errors() {
		c.logger.WithError(err).Error("consumer group error")
	}
}

func (c *KafkaOrderEventConsumer) Stop() error {
	c.cancel()
	if err := c.consumerGroup.Close(); err != nil {
		return fmt.Errorf("failed to close consumer group: %w", err)
	}
	return nil
}

func (c *KafkaOrderEventConsumer) HealthCheck(ctx context.Context) error {
	select {
	case <-c.ctx.Done():
		return fmt.Errorf("consumer context is cancelled")
	default:
		if c.emailService == nil {
			return fmt.Errorf("email service not configured")
		}
		return nil
	}
}

type orderEventGroupHandler struct {
	consumer *KafkaOrderEventConsumer
	workerID int
}

func (h *orderEventGroupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *orderEventGroupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *orderEventGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message := <-claim.Messages():
			if message == nil {
				return nil
			}
			if err := h.processMessage(session.Context(), message); err != nil {
				h.consumer.logger.WithError(err).Error("failed to process order event",
					"worker", h.workerID, "offset", message.Offset)
				h.parkMessage(session.Context(), message, err)
			}
			// Mark either way: failures went to the dead letter topic
			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}

func (h *orderEventGroupHandler) processMessage(ctx context.Context, message *sarama.ConsumerMessage) error {
	event, err := OrderEventFromJSON(message.Value)
	if err != nil {
		return err
	}

	return h.executeWithRetry(ctx, event)
}

func (h *orderEventGroupHandler) executeWithRetry(ctx context.Context, event *OrderEvent) error {
	maxRetries := h.consumer.config.MaxRetries
	backoff := h.consumer.config.RetryBackoffDuration

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := h.consumer.emailService.SendOrderEmail(ctx, event)
		if err == nil {
			return nil
		}

		if attempt == maxRetries {
			return err
		}

		delay := backoff * time.Duration(1<<attempt)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (h *orderEventGroupHandler) parkMessage(ctx context.Context, message *sarama.ConsumerMessage, cause error) {
	if h.consumer.deadLetter == nil {
		return
	}
	if err := h.consumer.deadLetter.PublishDeadLetter(ctx, message.Value, cause.Error()); err != nil {
		h.consumer.logger.WithError(err).Error("failed to park order event on dead letter topic")
	}
}
