package redisclient

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/reserve_stock.lua
var reserveStockScript string

//go:embed scripts/release_stock.lua
var releaseStockScript string

//go:embed scripts/commit_stock.lua
var commitStockScript string

// Client mirrors stock counters into Redis so availability checks can
// be served without touching Postgres. The database conditional update
// is the source of truth; the mirror is best effort and self-heals on
// the next SetStock.
type Client struct {
	rdb           *redis.Client
	reserveScript *redis.Script
	releaseScript *redis.Script
	commitScript  *redis.Script
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

	return &Client{
		rdb:           rdb,
		reserveScript: redis.NewScript(reserveStockScript),
		releaseScript: redis.NewScript(releaseStockScript),
		commitScript:  redis.NewScript(commitStockScript),
	}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func stockKey(productID int64, size string) string {
	return fmt.Sprintf("stock:%d:%s", productID, size)
}

// SetStock writes the (quantity, reserved) pair for one row
func (c *Client) SetStock(ctx context.Context, productID int64, size string, quantity, reserved int) error {
	pipe := c.rdb.Pipeline()
	pipe.HSet(ctx, stockKey(productID, size), "quantity", quantity)
	pipe.HSet(ctx, stockKey(productID, size), "reserved", reserved)

	_, err := pipe.Exec(ctx)
	return err
}

// GetStock retrieves cached (quantity, reserved) for one row. found is
// false on a cache miss.
func (c *Client) GetStock(ctx context.Context, productID int64, size string) (quantity, reserved int, found bool, err error) {
	result, err := c.rdb.HGetAll(ctx, stockKey(productID, size)).Result()
	if err != nil {
		return 0, 0, false, err
	}
	if len(result) == 0 {
		return 0, 0, false, nil
	}

	fmt.Sscanf(result["quantity"], "%d", &quantity)
	fmt.Sscanf(result["reserved"], "%d", &reserved)
	return quantity, reserved, true, nil
}

// MirrorReserve applies a reservation to the cache mirror
func (c *Client) MirrorReserve(ctx context.Context, productID int64, size string, qty int) error {
	_, err := c.reserveScript.Run(ctx, c.rdb, []string{stockKey(productID, size)}, qty).Result()
	if err != nil {
		return fmt.Errorf("reserve stock script failed: %w", err)
	}
	return nil
}

// MirrorRelease applies a release to the cache mirror
func (c *Client) MirrorRelease(ctx context.Context, productID int64, size string, qty int) error {
	_, err := c.releaseScript.Run(ctx, c.rdb, []string{stockKey(productID, size)}, qty).Result()
	if err != nil {
		return fmt.Errorf("release stock script failed: %w", err)
	}
	return nil
}

// MirrorCommit applies a commit to the cache mirror
func (c *Client) MirrorCommit(ctx context.Context, productID int64, size string, qty int) error {
	_, err := c.commitScript.Run(ctx, c.rdb, []string{stockKey(productID, size)}, qty).Result()
	if err != nil {
		return fmt.Errorf("commit stock script failed: %w", err)
	}
	return nil
}

// SetIdempotencyResult stores the serialized outcome of a reserve batch
// under its idempotency key. Returns false if the key already existed.
func (c *Client) SetIdempotencyResult(ctx context.Context, key string, payload []byte, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("idempotency:%s", key), payload, ttl).Result()
}

// GetIdempotencyResult fetches a previously stored reserve batch
// outcome. Returns nil when the key is unknown.
func (c *Client) GetIdempotencyResult(ctx context.Context, key string) ([]byte, error) {
	payload, err := c.rdb.Get(ctx, fmt.Sprintf("idempotency:%s", key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// AcquireLock acquires a distributed lock
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a distributed lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}
