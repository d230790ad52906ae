package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultBlockTimeout = 5 * time.Second
	defaultBatchSize    = 10
	defaultClaimMinIdle = 5 * time.Minute

	// maxPendingCheck caps how many pending entries one reclaim pass
	// inspects.
	maxPendingCheck = 100
)

// Trigger is one job trigger read from the stream.
type Trigger struct {
	MessageID  string
	JobID      string
	EnqueuedAt time.Time
}

// Consumer reads job triggers through a consumer group, reclaiming triggers
// abandoned by dead consumers before reading new ones.
type Consumer struct {
	client       *StreamsClient
	group        string
	consumerID   string
	blockTimeout time.Duration
	batchSize    int64
	claimMinIdle time.Duration
}

// ConsumerConfig holds configuration for the Consumer.
type ConsumerConfig struct {
	Group        string
	ConsumerID   string
	BlockTimeout time.Duration
	BatchSize    int64
	ClaimMinIdle time.Duration
}

// NewConsumer creates a new trigger consumer.
func NewConsumer(client *StreamsClient, cfg ConsumerConfig) (*Consumer, error) {
	if cfg.ConsumerID == "" {
		return nil, errors.New("consumer ID is required")
	}
	if cfg.Group == "" {
		return nil, errors.New("consumer group is required")
	}

	blockTimeout := cfg.BlockTimeout
	if blockTimeout <= 0 {
		blockTimeout = defaultBlockTimeout
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	claimMinIdle := cfg.ClaimMinIdle
	if claimMinIdle <= 0 {
		claimMinIdle = defaultClaimMinIdle
	}

	return &Consumer{
		client:       client,
		group:        cfg.Group,
		consumerID:   cfg.ConsumerID,
		blockTimeout: blockTimeout,
		batchSize:    batchSize,
		claimMinIdle: claimMinIdle,
	}, nil
}

// Initialize creates the consumer group.
func (c *Consumer) Initialize(ctx context.Context) error {
	return c.client.CreateConsumerGroup(ctx, c.group)
}

// Read returns the next batch of triggers: reclaimed stale ones first, then
// new messages. A nil result with nil error means the block timeout elapsed
// with nothing to do.
func (c *Consumer) Read(ctx context.Context) ([]*Trigger, error) {
	if reclaimed := c.reclaimPending(ctx); len(reclaimed) > 0 {
		return reclaimed, nil
	}

	streams, err := c.client.XReadGroup(ctx, c.group, c.consumerID, c.batchSize, c.blockTimeout)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("read triggers: %w", err)
	}

	var triggers []*Trigger
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			trigger, parseErr := parseTrigger(msg)
			if parseErr != nil {
				// Malformed message: ack it away so it never redelivers.
				_ = c.client.XAck(ctx, c.group, msg.ID)
				continue
			}
			triggers = append(triggers, trigger)
		}
	}
	return triggers, nil
}

// Ack acknowledges a processed trigger.
func (c *Consumer) Ack(ctx context.Context, trigger *Trigger) error {
	if trigger == nil {
		return errors.New("trigger cannot be nil")
	}
	return c.client.XAck(ctx, c.group, trigger.MessageID)
}

// PendingCount returns how many delivered-but-unacked triggers exist.
func (c *Consumer) PendingCount(ctx context.Context) (int64, error) {
	pending, err := c.client.XPendingExt(ctx, c.group, maxPendingCheck)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("pending count: %w", err)
	}
	return int64(len(pending)), nil
}

// ConsumerID returns the unique consumer identifier.
func (c *Consumer) ConsumerID() string {
	return c.consumerID
}

// reclaimPending claims triggers idle past the threshold. Execution is still
// safe if another consumer races here: the database claim rejects the loser.
func (c *Consumer) reclaimPending(ctx context.Context) []*Trigger {
	pending, err := c.client.XPendingExt(ctx, c.group, maxPendingCheck)
	if err != nil {
		return nil
	}

	var idsToReclaim []string
	for _, entry := range pending {
		if entry.Idle >= c.claimMinIdle {
			idsToReclaim = append(idsToReclaim, entry.ID)
		}
	}
	if len(idsToReclaim) == 0 {
		return nil
	}

	claimed, err := c.client.XClaim(ctx, c.group, c.consumerID, c.claimMinIdle, idsToReclaim...)
	if err != nil {
		return nil
	}

	var triggers []*Trigger
	for _, msg := range claimed {
		trigger, parseErr := parseTrigger(msg)
		if parseErr != nil {
			_ = c.client.XAck(ctx, c.group, msg.ID)
			continue
		}
		triggers = append(triggers, trigger)
	}
	return triggers
}

func parseTrigger(msg redis.XMessage) (*Trigger, error) {
	jobID, ok := msg.Values[jobIDField].(string)
	if !ok || jobID == "" {
		return nil, errors.New("missing job id")
	}

	trigger := &Trigger{MessageID: msg.ID, JobID: jobID}
	if enqueuedStr, has := msg.Values[enqueuedAtField].(string); has {
		if t, parseErr := time.Parse(time.RFC3339, enqueuedStr); parseErr == nil {
			trigger.EnqueuedAt = t
		}
	}
	return trigger, nil
}
