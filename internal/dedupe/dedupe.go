package dedupe

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deduper suppresses duplicate event deliveries across process
// restarts. Slack redelivers events it has not seen acked within a few
// seconds, and a mention arrives as both an app_mention and a message
// event, so every inbound event is claimed here before processing.
type Deduper struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// New creates a Redis-backed deduper.
func New(redisURL string, ttl time.Duration, logger *zap.Logger) (*Deduper, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	logger.Info("Redis connected")
	return &Deduper{rdb: rdb, ttl: ttl, logger: logger}, nil
}

// Claim marks an event key as processed. It returns true on the first
// claim and false if the key was already seen within the TTL window.
func (d *Deduper) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := d.rdb.SetNX(ctx, "taskweave:event:"+key, 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim event: %w", err)
	}
	return ok, nil
}

// Close shuts down the Redis connection.
func (d *Deduper) Close() error {
	return d.rdb.Close()
}
