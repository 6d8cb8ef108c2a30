package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TTLs per cached artifact
const (
	TTLMedium = 10 * time.Minute // Yahoo 일봉 차트
	TTLLong   = 6 * time.Hour    // 월간/분기 매크로 시계열
	TTLDaily  = 24 * time.Hour   // 발행된 일별 리포트
)

// Cache stores JSON values under "<prefix>:cache:<key>".
// ⭐ SSOT: 캐시 헬퍼는 여기서만
type Cache struct {
	client *Client
}

// NewCache wraps client; a nil or disabled client yields a cache that always misses
func NewCache(client *Client) *Cache {
	return &Cache{client: client}
}

// Get decodes the cached value into dest. A missing key is (false, nil).
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.client.Enabled() {
		return false, nil
	}

	data, err := c.client.rdb.Get(ctx, c.client.key("cache", key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache unmarshal %s: %w", key, err)
	}
	return true, nil
}

// Set stores value as JSON for ttl
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.client.Enabled() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal %s: %w", key, err)
	}
	return c.setRaw(ctx, key, data, ttl)
}

func (c *Cache) setRaw(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if !c.client.Enabled() {
		return nil
	}
	return c.client.rdb.Set(ctx, c.client.key("cache", key), data, ttl).Err()
}

// GetOrSet serves key from cache, or loads it with fn and stores the result.
// Redis errors count as a miss so an outage never hides the loaded value.
func (c *Cache) GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, fn func() (interface{}, error)) error {
	if found, err := c.Get(ctx, key, dest); err == nil && found {
		return nil
	}

	value, err := fn()
	if err != nil {
		return err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal %s: %w", key, err)
	}
	_ = c.setRaw(ctx, key, data, ttl)

	return json.Unmarshal(data, dest)
}

// ChartKey identifies a cached Yahoo chart response
func ChartKey(symbol string, rng string) string {
	return fmt.Sprintf("chart:%s:%s", symbol, rng)
}

// SeriesKey identifies a cached FRED observation window
func SeriesKey(seriesID string, limit int) string {
	return fmt.Sprintf("fred:%s:%d", seriesID, limit)
}

// ReportKey identifies a published committee report by market date
func ReportKey(date string) string {
	return "report:" + date
}
