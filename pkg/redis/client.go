package redis

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wonny/aegis-committee/pkg/config"
)

// Client is an optional Redis connection. A disabled Client is usable:
// every helper built on it degrades to a no-op.
// ⭐ SSOT: Redis 연결은 여기서만 관리
type Client struct {
	rdb    *redis.Client
	prefix string
}

// New connects when cfg.Redis.Enabled, pinging once so a bad address fails
// at startup instead of on the first report.
func New(cfg *config.Config) (*Client, error) {
	if !cfg.Redis.Enabled {
		return &Client{}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        net.JoinHostPort(cfg.Redis.Host, cfg.Redis.Port),
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		DialTimeout: 3 * time.Second,
		ReadTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &Client{rdb: rdb, prefix: cfg.Redis.Prefix}, nil
}

// Enabled is false for a nil or disabled client
func (c *Client) Enabled() bool {
	return c != nil && c.rdb != nil
}

// Close closes the connection (no-op when disabled)
func (c *Client) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.rdb.Close()
}

// key namespaces name under the configured prefix and a kind ("cache", "ratelimit")
func (c *Client) key(kind, name string) string {
	if c.prefix == "" {
		return kind + ":" + name
	}
	return c.prefix + ":" + kind + ":" + name
}
