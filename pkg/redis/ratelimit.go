package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// RateLimitConfig is a per-upstream request budget
type RateLimitConfig struct {
	Key    string        // upstream group ("yahoo", "fred", "krx", "naver")
	Limit  int           // requests per window; <= 0 means unlimited
	Window time.Duration // fixed window length
}

// Budgets shared by every process using the same Redis
var (
	// Yahoo chart: 초당 4회 (비공식 API, 보수적)
	YahooRateLimit = RateLimitConfig{Key: "yahoo", Limit: 4, Window: time.Second}

	// FRED API: 분당 120회 제한
	FREDRateLimit = RateLimitConfig{Key: "fred", Limit: 120, Window: time.Minute}

	// KRX 정보데이터시스템: 초당 2회 (보수적)
	KRXRateLimit = RateLimitConfig{Key: "krx", Limit: 2, Window: time.Second}

	// Naver Finance + m.stock 투자자 동향: 초당 10회
	NaverRateLimit = RateLimitConfig{Key: "naver", Limit: 10, Window: time.Second}
)

// RateLimiter counts requests in fixed windows keyed
// "<prefix>:ratelimit:<key>:<window index>", so a scheduled run and a manual
// backfill hitting the same upstream share one budget.
// ⭐ SSOT: 레이트 리밋은 여기서만
type RateLimiter struct {
	client *Client
	now    func() time.Time
}

// NewRateLimiter creates a limiter; with Redis disabled every request is allowed
func NewRateLimiter(client *Client) *RateLimiter {
	return &RateLimiter{client: client, now: time.Now}
}

// Allow consumes one request from the current window.
// Returns (allowed, remaining, error).
func (r *RateLimiter) Allow(ctx context.Context, cfg RateLimitConfig) (bool, int, error) {
	if !r.client.Enabled() || cfg.Limit <= 0 || cfg.Window <= 0 {
		return true, cfg.Limit, nil
	}

	window := r.now().UnixMilli() / cfg.Window.Milliseconds()
	key := r.client.key("ratelimit", cfg.Key+":"+strconv.FormatInt(window, 10))

	pipe := r.client.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.PExpire(ctx, key, 2*cfg.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("rate limit %s: %w", cfg.Key, err)
	}

	count := int(incr.Val())
	if count > cfg.Limit {
		return false, 0, nil
	}
	return true, cfg.Limit - count, nil
}

// Wait blocks until the budget allows a request or ctx is done
func (r *RateLimiter) Wait(ctx context.Context, cfg RateLimitConfig) error {
	for {
		allowed, _, err := r.Allow(ctx, cfg)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		// sleep to the next window boundary
		ms := cfg.Window.Milliseconds()
		wait := time.Duration(ms-r.now().UnixMilli()%ms) * time.Millisecond

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
