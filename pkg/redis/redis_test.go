package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-committee/pkg/config"
)

func disabledClient(t *testing.T) *Client {
	t.Helper()
	client, err := New(&config.Config{Redis: config.RedisConfig{Enabled: false, Prefix: "test"}})
	require.NoError(t, err)
	return client
}

func TestNewClient_Disabled(t *testing.T) {
	client := disabledClient(t)
	assert.False(t, client.Enabled())
	assert.NoError(t, client.Close())

	var nilClient *Client
	assert.False(t, nilClient.Enabled())
	assert.NoError(t, nilClient.Close())
}

func TestClientKey(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{"committee", "committee:cache:report:2026-10-16"},
		{"", "cache:report:2026-10-16"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			c := &Client{prefix: tt.prefix}
			assert.Equal(t, tt.want, c.key("cache", ReportKey("2026-10-16")))
		})
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	limiter := NewRateLimiter(disabledClient(t))

	allowed, remaining, err := limiter.Allow(context.Background(), YahooRateLimit)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, YahooRateLimit.Limit, remaining)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, limiter.Wait(ctx, FREDRateLimit))
}

func TestRateLimiter_Unlimited(t *testing.T) {
	limiter := NewRateLimiter(nil)

	allowed, _, err := limiter.Allow(context.Background(), RateLimitConfig{Key: "news"})
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestCache_Disabled(t *testing.T) {
	cache := NewCache(disabledClient(t))
	ctx := context.Background()

	var result []float64
	found, err := cache.Get(ctx, SeriesKey("UNRATE", 2), &result)
	require.NoError(t, err)
	assert.False(t, found)

	assert.NoError(t, cache.Set(ctx, ReportKey("2026-10-16"), []float64{1}, TTLDaily))
}

func TestCache_GetOrSetDisabledCallsLoader(t *testing.T) {
	cache := NewCache(nil)

	calls := 0
	var dest []float64
	err := cache.GetOrSet(context.Background(), ChartKey("^KS11", "5d"), &dest, TTLMedium, func() (interface{}, error) {
		calls++
		return []float64{2500.5, 2510.25}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, []float64{2500.5, 2510.25}, dest)
}

func TestCache_GetOrSetLoaderError(t *testing.T) {
	cache := NewCache(disabledClient(t))

	var dest []float64
	err := cache.GetOrSet(context.Background(), "k", &dest, TTLMedium, func() (interface{}, error) {
		return nil, assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestCacheKeys(t *testing.T) {
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"ChartKey", ChartKey("^GSPC", "5d"), "chart:^GSPC:5d"},
		{"SeriesKey", SeriesKey("CPIAUCSL", 26), "fred:CPIAUCSL:26"},
		{"ReportKey", ReportKey("2026-10-19"), "report:2026-10-19"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.got)
		})
	}
}
