package redisclient

import (
	"context"
	"fmt"
	"time"

	"shipment-consolidator/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const releaseLockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

type Client struct {
	rdb     *redis.Client
	release *redis.Script
	// token identifies locks taken by this client
	token string
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewFromRedis(rdb), nil
}

// NewFromRedis wraps an existing go-redis client
func NewFromRedis(rdb *redis.Client) *Client {
	return &Client{
		rdb:     rdb,
		release: redis.NewScript(releaseLockScript),
		token:   uuid.New().String(),
	}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks the connection
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// AcquireLock acquires a distributed lock owned by this client
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, lockName(lockKey), c.token, ttl).Result()
}

// ReleaseLock releases the lock if this client still owns it
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	if err := c.release.Run(ctx, c.rdb, []string{lockName(lockKey)}, c.token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("release lock script failed: %w", err)
	}
	return nil
}

// CheckIdempotencyKey checks if an idempotency key exists
func (c *Client) CheckIdempotencyKey(ctx context.Context, key string) (bool, error) {
	result, err := c.rdb.Exists(ctx, idempotencyName(key)).Result()
	if err != nil {
		return false, err
	}
	return result > 0, nil
}

// IsWritten reports whether instructions for the order were already committed
func (c *Client) IsWritten(ctx context.Context, ref models.OrderRef) (bool, error) {
	ok, err := c.CheckIdempotencyKey(ctx, writtenKey(ref))
	if err != nil {
		return false, fmt.Errorf("failed to check written marker: %w", err)
	}
	return ok, nil
}

// MarkWritten records committed orders in one pipeline
func (c *Client) MarkWritten(ctx context.Context, refs []models.OrderRef, ttl time.Duration) error {
	if len(refs) == 0 {
		return nil
	}
	pipe := c.rdb.Pipeline()
	for _, ref := range refs {
		pipe.Set(ctx, idempotencyName(writtenKey(ref)), "1", ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to set written markers: %w", err)
	}
	return nil
}

func lockName(key string) string {
	return fmt.Sprintf("lock:%s", key)
}

func idempotencyName(key string) string {
	return fmt.Sprintf("idempotency:%s", key)
}

func writtenKey(ref models.OrderRef) string {
	return fmt.Sprintf("written:%s:%s", ref.Source, ref.RecordID)
}
