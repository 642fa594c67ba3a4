package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	stderrors "errors"

	"github.com/redis/go-redis/v9"
)

var ErrKeyNotFound = stderrors.New("key not found")

// RedisClient is the subset of Redis the ledger caches rely on. Values are
// stored as JSON.
type RedisClient interface {
	GetJSON(ctx context.Context, key string, dst any) error
	SetJSON(ctx context.Context, key string, value any, expiration time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
	Close() error
}

// Client is the go-redis implementation of RedisClient.
type Client struct {
	client *redis.Client
}

var _ RedisClient = (*Client)(nil)

func NewClient(ctx context.Context, addr string) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		slog.Error("failed to connect to Redis", "addr", addr, "error", err)
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	slog.Info("connected to Redis", "addr", addr)
	return &Client{client: client}, nil
}

// GetJSON decodes the value at key into dst. A missing key is ErrKeyNotFound.
func (c *Client) GetJSON(ctx context.Context, key string, dst any) error {
	raw, err := c.client.Get(ctx, key).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return ErrKeyNotFound
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

func (c *Client) SetJSON(ctx context.Context, key string, value any, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return c.client.Set(ctx, key, data, expiration).Err()
}

func (c *Client) Incr(ctx context.Context, key string) (int64, error) {
	return c.client.Incr(ctx, key).Result()
}

func (c *Client) Close() error {
	return c.client.Close()
}
