package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/Gopher0727/automod/config"
)

// MessageHandler processes one consumed message. A returned error makes the
// consumer retry the message before giving up on it.
type MessageHandler func(ctx context.Context, message *sarama.ConsumerMessage) error

// Consumer joins a consumer group and feeds every message to a handler.
// Offsets are marked whether or not the handler eventually succeeds, so one
// poisoned message can never stall a partition.
type Consumer struct {
	group      sarama.ConsumerGroup
	topics     []string
	handler    MessageHandler
	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger

	ready     chan struct{}
	readyOnce sync.Once
	wg        sync.WaitGroup
	cancel    context.CancelFunc
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler.
type consumerGroupHandler struct {
	consumer *Consumer
}

// NewConsumer connects to the brokers in cfg and joins groupID.
func NewConsumer(cfg *config.KafkaConfig, groupID string, topics []string, handler MessageHandler, logger *zap.Logger) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V2_6_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaConfig.Consumer.Return.Errors = true

	// Set connection timeouts to prevent hanging
	saramaConfig.Net.DialTimeout = 10 * time.Second
	saramaConfig.Net.ReadTimeout = 10 * time.Second
	saramaConfig.Net.WriteTimeout = 10 * time.Second
	saramaConfig.Metadata.Retry.Max = 3
	saramaConfig.Metadata.Retry.Backoff = 250 * time.Millisecond
	saramaConfig.Metadata.Timeout = 10 * time.Second

	group, err := sarama.NewConsumerGroup(cfg.Brokers, groupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer group: %w", err)
	}
	return NewConsumerWith(group, cfg, topics, handler, logger), nil
}

// NewConsumerWith wraps an existing consumer group, e.g. a test double.
func NewConsumerWith(group sarama.ConsumerGroup, cfg *config.KafkaConfig, topics []string, handler MessageHandler, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{
		group:      group,
		topics:     topics,
		handler:    handler,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.RetryBackoffMs) * time.Millisecond,
		logger:     logger,
		ready:      make(chan struct{}),
	}
}

// Start consumes in the background until ctx is done or Stop is called.
// It returns immediately; Ready is closed once the first session is set up.
func (c *Consumer) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()

		handler := &consumerGroupHandler{consumer: c}
		for {
			if err := c.group.Consume(ctx, c.topics, handler); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				c.logger.Warn("consumer session ended with error", zap.Error(err))
				select {
				case <-ctx.Done():
				case <-time.After(max(c.backoff, time.Second)):
				}
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	go func() {
		defer c.wg.Done()
		errs := c.group.Errors()
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-errs:
				if !ok {
					return
				}
				c.logger.Warn("consumer group error", zap.Error(err))
			}
		}
	}()
}

// Ready is closed when the consumer has joined the group for the first time.
func (c *Consumer) Ready() <-chan struct{} {
	return c.ready
}

// Stop cancels consumption, waits for in-flight messages and closes the group.
func (c *Consumer) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()

	if err := c.group.Close(); err != nil {
		return fmt.Errorf("failed to close kafka consumer group: %w", err)
	}
	return nil
}

// Setup is run at the beginning of a new session, before ConsumeClaim.
func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	h.consumer.readyOnce.Do(func() { close(h.consumer.ready) })
	return nil
}

// Cleanup is run at the end of a session, once all ConsumeClaim goroutines have exited.
func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim processes messages from a partition.
func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok || message == nil {
				return nil
			}

			if err := h.processMessageWithRetry(session.Context(), message); err != nil {
				h.consumer.logger.Error("dropping message after retries",
					zap.String("topic", message.Topic),
					zap.Int32("partition", message.Partition),
					zap.Int64("offset", message.Offset),
					zap.Error(err),
				)
			}

			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}

func (h *consumerGroupHandler) processMessageWithRetry(ctx context.Context, message *sarama.ConsumerMessage) error {
	maxRetries := h.consumer.maxRetries
	backoff := h.consumer.backoff

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := h.consumer.handler(ctx, message)
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt < maxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}
	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}
