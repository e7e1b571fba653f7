package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/Gopher0727/automod/config"
)

// Producer represents a Kafka message producer.
// It manages the connection to Kafka brokers and provides methods to send messages.
type Producer struct {
	producer sarama.SyncProducer
	config   *config.KafkaConfig
}

// NewProducer creates a new Kafka producer instance.
// It establishes a connection to the Kafka brokers specified in the configuration.
func NewProducer(cfg *config.KafkaConfig) (*Producer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = cfg.MaxRetries
	saramaConfig.Producer.Retry.Backoff = time.Duration(cfg.RetryBackoffMs) * time.Millisecond
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Idempotent = true
	saramaConfig.Net.MaxOpenRequests = 1

	// Set connection timeouts to prevent hanging
	saramaConfig.Net.DialTimeout = 10 * time.Second
	saramaConfig.Net.ReadTimeout = 10 * time.Second
	saramaConfig.Net.WriteTimeout = 10 * time.Second
	saramaConfig.Metadata.Retry.Max = 3
	saramaConfig.Metadata.Retry.Backoff = 250 * time.Millisecond
	saramaConfig.Metadata.Timeout = 10 * time.Second

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return NewProducerWith(producer, cfg), nil
}

// NewProducerWith wraps an existing SyncProducer, e.g. a sarama mock.
func NewProducerWith(producer sarama.SyncProducer, cfg *config.KafkaConfig) *Producer {
	return &Producer{
		producer: producer,
		config:   cfg,
	}
}

// Produce sends a message to the specified Kafka topic.
// key is optional and selects the partition when set.
func (p *Producer) Produce(ctx context.Context, topic string, key []byte, value []byte) (partition int32, offset int64, err error) {
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(value),
	}
	if key != nil {
		msg.Key = sarama.ByteEncoder(key)
	}

	partition, offset, err = p.producer.SendMessage(msg)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to send message to topic %s: %w", topic, err)
	}
	return partition, offset, nil
}

// ProduceWithRetry sends a message with retries on top of the producer's own,
// doubling the backoff after every failed attempt. It stops early when ctx
// is done.
func (p *Producer) ProduceWithRetry(ctx context.Context, topic string, key []byte, value []byte, maxRetries int) (partition int32, offset int64, err error) {
	var lastErr error
	backoff := time.Duration(p.config.RetryBackoffMs) * time.Millisecond
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}

		partition, offset, err = p.Produce(ctx, topic, key, value)
		if err == nil {
			return partition, offset, nil
		}
		lastErr = err

		if attempt < maxRetries {
			select {
			case <-ctx.Done():
				return 0, 0, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2 // Exponential backoff
		}
	}
	return 0, 0, fmt.Errorf("failed to send message after %d attempts: %w", maxRetries+1, lastErr)
}

// Close closes the Kafka producer and releases all resources.
func (p *Producer) Close() error {
	if p.producer != nil {
		if err := p.producer.Close(); err != nil {
			return fmt.Errorf("failed to close kafka producer: %w", err)
		}
	}
	return nil
}
