package redis

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Gopher0727/automod/config"
)

const connectTimeout = 5 * time.Second

// Client owns the shared connection pool. Spam windows and rate limit
// counters are built on top of it.
type Client struct {
	client *redis.Client
	addr   string
}

// NewClient connects and pings once, so a bad address fails at startup.
func NewClient(cfg *config.RedisConfig) (*Client, error) {
	addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis %s: %w", addr, err)
	}
	return &Client{client: rdb, addr: addr}, nil
}

// MessageWindow builds the per-channel recent-message window on this pool.
func (c *Client) MessageWindow(cfg *config.AutomodConfig, logger *zap.Logger) *MessageWindow {
	return NewMessageWindow(c.client, cfg.WindowSize, cfg.WindowTTL, logger)
}

func (c *Client) Close() error {
	return c.client.Close()
}

// GetClient exposes the raw client for components outside this package.
func (c *Client) GetClient() *redis.Client {
	return c.client
}

// Ping backs the health check.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis %s: %w", c.addr, err)
	}
	return nil
}
