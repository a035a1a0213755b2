package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const overviewKey = "canteen:advance-menu:overview"

// Overview caches the serialized menu tree served by /advanceMenu/overview.
type Overview struct {
	client *redis.Client
	ttl    time.Duration
}

func NewOverview(redisURL string, ttl time.Duration) (*Overview, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &Overview{client: client, ttl: ttl}, nil
}

func (c *Overview) Close() error {
	return c.client.Close()
}

// GetOverview returns the cached payload; ok is false on a miss.
func (c *Overview) GetOverview(ctx context.Context) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, overviewKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading overview cache: %w", err)
	}
	return data, true, nil
}

func (c *Overview) SetOverview(ctx context.Context, data []byte) error {
	if err := c.client.Set(ctx, overviewKey, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("writing overview cache: %w", err)
	}
	return nil
}

func (c *Overview) InvalidateOverview(ctx context.Context) error {
	if err := c.client.Del(ctx, overviewKey).Err(); err != nil {
		return fmt.Errorf("invalidating overview cache: %w", err)
	}
	return nil
}
