// Package queue carries job triggers from the scheduler to the executors
// over Redis Streams. The stream is a delivery channel only: PostgreSQL
// remains the source of truth for job state, and the claim there is what
// prevents double execution.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// connectTimeout bounds the startup ping.
	connectTimeout = 2 * time.Second

	defaultPrefix = "mindshare"
)

// StreamsClient wraps a Redis client with the stream operations the producer
// and consumer need.
type StreamsClient struct {
	client *redis.Client
	prefix string
}

// StreamsConfig holds connection settings for the Redis Streams client.
type StreamsConfig struct {
	Addr     string
	Password string `json:"-"`
	DB       int
	Prefix   string
}

// NewStreamsClient connects to Redis and verifies the connection.
func NewStreamsClient(cfg StreamsConfig) (*StreamsClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewStreamsClientFromRedis(client, cfg.Prefix), nil
}

// NewStreamsClientFromRedis wraps an existing Redis client. Tests use it with
// a miniredis-backed client.
func NewStreamsClientFromRedis(client *redis.Client, prefix string) *StreamsClient {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &StreamsClient{client: client, prefix: prefix}
}

// JobStream returns the stream key job triggers flow through.
func (c *StreamsClient) JobStream() string {
	return c.prefix + ":jobs"
}

// Close closes the underlying Redis client.
func (c *StreamsClient) Close() error {
	return c.client.Close()
}

// Ping checks if Redis is reachable.
func (c *StreamsClient) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// CreateConsumerGroup creates the executor consumer group if it does not
// exist yet, creating the stream alongside it.
func (c *StreamsClient) CreateConsumerGroup(ctx context.Context, group string) error {
	err := c.client.XGroupCreateMkStream(ctx, c.JobStream(), group, "0").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return fmt.Errorf("create consumer group: %w", err)
	}
	return nil
}

// XAdd appends a message to the job stream.
func (c *StreamsClient) XAdd(ctx context.Context, values map[string]any) (string, error) {
	return c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: c.JobStream(),
		Values: values,
	}).Result()
}

// XReadGroup reads new messages for a consumer.
func (c *StreamsClient) XReadGroup(
	ctx context.Context, group, consumer string, count int64, block time.Duration,
) ([]redis.XStream, error) {
	return c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{c.JobStream(), ">"},
		Count:    count,
		Block:    block,
	}).Result()
}

// XAck acknowledges processed messages.
func (c *StreamsClient) XAck(ctx context.Context, group string, ids ...string) error {
	return c.client.XAck(ctx, c.JobStream(), group, ids...).Err()
}

// XPendingExt lists pending entries with idle times.
func (c *StreamsClient) XPendingExt(ctx context.Context, group string, count int64) ([]redis.XPendingExt, error) {
	return c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: c.JobStream(),
		Group:  group,
		Start:  "-",
		End:    "+",
		Count:  count,
	}).Result()
}

// XClaim transfers pending messages idle past minIdle to a consumer.
func (c *StreamsClient) XClaim(
	ctx context.Context, group, consumer string, minIdle time.Duration, ids ...string,
) ([]redis.XMessage, error) {
	return c.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   c.JobStream(),
		Group:    group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Messages: ids,
	}).Result()
}

// XLen returns the stream length for queue depth metrics.
func (c *StreamsClient) XLen(ctx context.Context) (int64, error) {
	return c.client.XLen(ctx, c.JobStream()).Result()
}
