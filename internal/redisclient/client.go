package redisclient

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"distribution-engine/internal/models"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/publish_rates.lua
var publishRatesScript string

const (
	keyRateTable   = "commission_rates"
	keyIdempotency = "idempotency:%s"
	fieldVersion   = "__version"

	defaultRateTTL = 5 * time.Minute
)

type Client struct {
	rdb           *redis.Client
	publishScript *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
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

	return newClient(rdb), nil
}

func newClient(rdb *redis.Client) *Client {
	return &Client{
		rdb:           rdb,
		publishScript: redis.NewScript(publishRatesScript),
	}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks Redis connectivity
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// PublishRateTable atomically replaces the cached rate table unless a newer
// version is already cached. Returns false when the write was skipped.
func (c *Client) PublishRateTable(ctx context.Context, version int64, rates []models.CommissionRate, ttl time.Duration) (bool, error) {
	if ttl < time.Second {
		ttl = defaultRateTTL
	}
	args := make([]interface{}, 0, 2+2*len(rates))
	args = append(args, version, int64(ttl/time.Second))
	for _, r := range rates {
		b, err := json.Marshal(r)
		if err != nil {
			return false, fmt.Errorf("failed to marshal rate %s: %w", r.DeviceType, err)
		}
		args = append(args, r.DeviceType, string(b))
	}

	result, err := c.publishScript.Run(ctx, c.rdb, []string{keyRateTable}, args...).Result()
	if err != nil {
		return false, fmt.Errorf("publish rates script failed: %w", err)
	}

	written, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected script result type")
	}
	return written == 1, nil
}

// GetRateTable returns the cached rate table and its version; ok is false on a miss
func (c *Client) GetRateTable(ctx context.Context) (version int64, rates map[string]models.CommissionRate, ok bool, err error) {
	result, err := c.rdb.HGetAll(ctx, keyRateTable).Result()
	if err != nil {
		return 0, nil, false, err
	}
	raw, found := result[fieldVersion]
	if !found {
		return 0, nil, false, nil
	}

	version, err = strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, nil, false, fmt.Errorf("corrupt rate table version %q: %w", raw, err)
	}

	rates = make(map[string]models.CommissionRate, len(result)-1)
	for field, value := range result {
		if field == fieldVersion {
			continue
		}
		var r models.CommissionRate
		if err := json.Unmarshal([]byte(value), &r); err != nil {
			return 0, nil, false, fmt.Errorf("corrupt rate for %s: %w", field, err)
		}
		rates[field] = r
	}
	return version, rates, true, nil
}

// InvalidateRateTable drops the cached rate table
func (c *Client) InvalidateRateTable(ctx context.Context) error {
	return c.rdb.Del(ctx, keyRateTable).Err()
}

// GetIdempotent returns a stored response for an idempotency key
func (c *Client) GetIdempotent(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := c.rdb.Get(ctx, fmt.Sprintf(keyIdempotency, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// SetIdempotent stores a response under an idempotency key with TTL
func (c *Client) SetIdempotent(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, fmt.Sprintf(keyIdempotency, key), value, ttl).Err()
}
