package queue

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	// jobIDField carries the database job id; executors re-read everything
	// else from PostgreSQL.
	jobIDField = "job_id"

	// enqueuedAtField carries the dispatch timestamp for latency metrics.
	enqueuedAtField = "enqueued_at"

	// defaultMaxStreamLen caps the stream to prevent unbounded growth.
	defaultMaxStreamLen = 10000
)

// Producer dispatches job triggers onto the stream.
type Producer struct {
	client       *StreamsClient
	maxStreamLen int64
}

// ProducerConfig holds configuration for the Producer.
type ProducerConfig struct {
	MaxStreamLen int64
}

// NewProducer creates a new trigger producer.
func NewProducer(client *StreamsClient, cfg ProducerConfig) *Producer {
	maxLen := cfg.MaxStreamLen
	if maxLen <= 0 {
		maxLen = defaultMaxStreamLen
	}
	return &Producer{client: client, maxStreamLen: maxLen}
}

// Dispatch enqueues one job trigger and returns the stream message id.
func (p *Producer) Dispatch(ctx context.Context, jobID string) (string, error) {
	if jobID == "" {
		return "", errors.New("job id cannot be empty")
	}

	messageID, err := p.client.XAdd(ctx, map[string]any{
		jobIDField:      jobID,
		enqueuedAtField: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", fmt.Errorf("dispatch job %s: %w", jobID, err)
	}
	return messageID, nil
}

// DispatchBatch enqueues triggers for a batch of jobs, stopping at the first
// failure. Already-dispatched ids are returned either way.
func (p *Producer) DispatchBatch(ctx context.Context, jobIDs []string) ([]string, error) {
	messageIDs := make([]string, 0, len(jobIDs))
	for _, jobID := range jobIDs {
		messageID, err := p.Dispatch(ctx, jobID)
		if err != nil {
			return messageIDs, err
		}
		messageIDs = append(messageIDs, messageID)
	}
	return messageIDs, nil
}

// QueueDepth returns the current stream length.
func (p *Producer) QueueDepth(ctx context.Context) (int64, error) {
	return p.client.XLen(ctx)
}
