// Package messaging consumes usage events from Kafka.
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	usageapp "github.com/faasbill/backend/internal/application/usage"
	"github.com/faasbill/backend/internal/domain/shared"
	"github.com/faasbill/backend/internal/domain/usage"
	infraconfig "github.com/faasbill/backend/internal/infrastructure/config"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageReader is the subset of *kafka.Reader the consumer needs
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Ingestor records usage events
type Ingestor interface {
	Ingest(ctx context.Context, events []usage.Event, source string) (usage.IngestResult, error)
}

// UsageEventConsumer reads usage events from a consumer group and ingests
// them with at-least-once delivery. An offset is committed only after the
// event was recorded or found unprocessable.
type UsageEventConsumer struct {
	reader  MessageReader
	ingest  Ingestor
	backoff time.Duration
	logger  *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
}

// NewKafkaReader builds a consumer group reader from configuration
func NewKafkaReader(cfg *infraconfig.KafkaConfig) (*kafka.Reader, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if cfg.Topic == "" || cfg.GroupID == "" {
		return nil, errors.New("kafka topic and group id are required")
	}
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: cfg.MinBytes,
		MaxBytes: cfg.MaxBytes,
		MaxWait:  cfg.MaxWait,
	}), nil
}

// NewUsageEventConsumer creates a consumer. backoff is the pause before a
// transient failure is retried.
func NewUsageEventConsumer(reader MessageReader, ingest Ingestor, backoff time.Duration, logger *zap.Logger) *UsageEventConsumer {
	if backoff <= 0 {
		backoff = 2 * time.Second
	}
	return &UsageEventConsumer{
		reader:  reader,
		ingest:  ingest,
		backoff: backoff,
		logger:  logger.Named("usage-consumer"),
	}
}

// Start runs the consume loop in the background
func (c *UsageEventConsumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return ErrConsumerClosed
	}
	if c.done != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go func() {
		defer close(c.done)
		c.Run(ctx)
	}()
	c.logger.Info("Usage event consumer started")
	return nil
}

// Stop cancels the loop, waits for the message in flight and closes the reader
func (c *UsageEventConsumer) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-ctx.Done():
			c.logger.Warn("Usage event consumer stop timed out")
			_ = c.reader.Close()
			return ctx.Err()
		}
	}
	if err := c.reader.Close(); err != nil {
		return fmt.Errorf("failed to close kafka reader: %w", err)
	}
	c.logger.Info("Usage event consumer stopped")
	return nil
}

// Run consumes until ctx is cancelled
func (c *UsageEventConsumer) Run(ctx context.Context) {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("Failed to fetch usage message", zap.Error(err))
			if !c.sleep(ctx) {
				return
			}
			continue
		}
		if !c.handle(ctx, msg) {
			return
		}
	}
}

// handle processes one message until it is committed or ctx ends
func (c *UsageEventConsumer) handle(ctx context.Context, msg kafka.Message) bool {
	log := c.logger.With(
		zap.String("topic", msg.Topic),
		zap.Int("partition", msg.Partition),
		zap.Int64("offset", msg.Offset),
	)

	events, err := DecodeEvents(msg.Value)
	if err != nil {
		log.Warn("Skipping malformed usage message", zap.Error(err))
		return c.commit(ctx, msg, log)
	}

	for {
		result, err := c.ingest.Ingest(ctx, events, usageapp.SourceKafka)
		if err == nil {
			log.Debug("Usage message ingested",
				zap.Int("accepted", result.Accepted),
				zap.Int("duplicates", result.Duplicates),
				zap.Int("late", result.Late),
			)
			return c.commit(ctx, msg, log)
		}
		if !retryable(err) {
			log.Warn("Skipping unprocessable usage message", zap.Error(err))
			return c.commit(ctx, msg, log)
		}
		log.Warn("Usage ingestion failed, retrying",
			zap.Duration("backoff", c.backoff),
			zap.Error(err),
		)
		if !c.sleep(ctx) {
			return false
		}
	}
}

func (c *UsageEventConsumer) commit(ctx context.Context, msg kafka.Message, log *zap.Logger) bool {
	for {
		err := c.reader.CommitMessages(ctx, msg)
		if err == nil {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		log.Error("Failed to commit usage message", zap.Error(err))
		if !c.sleep(ctx) {
			return false
		}
	}
}

func (c *UsageEventConsumer) sleep(ctx context.Context) bool {
	t := time.NewTimer(c.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryable treats unknown infrastructure errors like transient ones
func retryable(err error) bool {
	var de *shared.DomainError
	if !errors.As(err, &de) {
		return true
	}
	return shared.IsRetryable(err)
}

// DecodeEvents accepts a single event object or an array of events
func DecodeEvents(data []byte) ([]usage.Event, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("empty message")
	}
	if data[0] == '[' {
		var inputs []usageapp.EventInput
		if err := json.Unmarshal(data, &inputs); err != nil {
			return nil, fmt.Errorf("invalid usage event array: %w", err)
		}
		return usageapp.ToEvents(inputs), nil
	}
	var input usageapp.EventInput
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, fmt.Errorf("invalid usage event: %w", err)
	}
	return []usage.Event{input.ToEvent()}, nil
}
