package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Client wraps a Redis connection for presence lookups and rate limiting.
type Client struct {
	rdb *goredis.Client
}

// NewClient creates a Redis client from a URL and verifies the connection.
func NewClient(redisURL string) (*Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	rdb := goredis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return &Client{rdb: rdb}, nil
}

// Ping checks the Redis connection.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

const (
	presencePrefix = "presence:"
	presenceTTL    = 5 * time.Minute
)

func presenceKey(userID int64) string {
	return presencePrefix + strconv.FormatInt(userID, 10)
}

// rateLimitScript atomically increments a counter, sets its TTL on first use
// and returns the count with the remaining window in milliseconds.
var rateLimitScript = goredis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
    redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {count, redis.call("PTTL", KEYS[1])}
`)

// CheckRateLimit reports whether a request under key is allowed in the
// current fixed window, the count so far and the window's remaining time in
// milliseconds.
func (c *Client) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, count, ttlMs int64, err error) {
	vals, err := rateLimitScript.Run(ctx, c.rdb, []string{key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return false, 0, 0, fmt.Errorf("checking rate limit: %w", err)
	}
	if len(vals) != 2 {
		return false, 0, 0, fmt.Errorf("checking rate limit: unexpected reply %v", vals)
	}
	count, ttlMs = vals[0], max(vals[1], 0)
	return count <= int64(limit), count, ttlMs, nil
}

// SetPresence sets a user's presence status with a TTL.
func (c *Client) SetPresence(ctx context.Context, userID int64, status string) error {
	if err := c.rdb.Set(ctx, presenceKey(userID), status, presenceTTL).Err(); err != nil {
		return fmt.Errorf("setting presence: %w", err)
	}
	return nil
}

// GetPresence returns a user's presence status, or empty string if not set.
func (c *Client) GetPresence(ctx context.Context, userID int64) (string, error) {
	val, err := c.rdb.Get(ctx, presenceKey(userID)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting presence: %w", err)
	}
	return val, nil
}

// GetPresences returns the stored status of each user that has one. Users
// without a live presence key are absent from the map.
func (c *Client) GetPresences(ctx context.Context, userIDs []int64) (map[int64]string, error) {
	out := make(map[int64]string, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = presenceKey(id)
	}

	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("getting presences: %w", err)
	}
	for i, v := range vals {
		if s, ok := v.(string); ok && s != "" {
			out[userIDs[i]] = s
		}
	}
	return out, nil
}

// DeletePresence removes a user's presence status.
func (c *Client) DeletePresence(ctx context.Context, userID int64) error {
	return c.rdb.Del(ctx, presenceKey(userID)).Err()
}
