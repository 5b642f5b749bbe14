package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smartlink/smartlink/internal/metrics"
	"github.com/smartlink/smartlink/internal/model"
)

const (
	// StreamKey is the Redis stream for audit records.
	StreamKey = "stream:click_records"

	// DeadLetterStreamKey is the Redis stream for poison messages.
	DeadLetterStreamKey = "stream:click_records:dlq"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 100000

	// PublishTimeout is the max time to wait for Redis publish.
	PublishTimeout = 100 * time.Millisecond
)

// Publisher enqueues audit records to the Redis stream.
type Publisher struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewPublisher creates a new audit record publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Publisher{
		redis:   client,
		logger:  logger.With("component", "audit.publisher"),
		metrics: recorder,
	}
}

// Publish adds a record to the stream synchronously.
func (p *Publisher) Publish(ctx context.Context, record *model.Click) (string, error) {
	data, err := json.Marshal(PayloadFromClick(record))
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}

	result, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"payload": string(data),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}

	return result, nil
}

// PublishAsync publishes without blocking the redirect.
// Errors are logged but not returned (fire-and-forget).
func (p *Publisher) PublishAsync(record *model.Click) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
		defer cancel()

		streamID, err := p.Publish(ctx, record)
		if err != nil {
			p.logger.Warn("failed to publish audit record",
				"short_code", record.ShortCode,
				"click_type", record.ClickType,
				"error", err,
			)
			p.metrics.IncAuditRecordPublished("dropped")
			return
		}

		p.logger.Debug("audit record published",
			"short_code", record.ShortCode,
			"stream_id", streamID,
		)
		p.metrics.IncAuditRecordPublished("success")
	}()
}
