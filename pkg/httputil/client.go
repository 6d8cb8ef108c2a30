package httputil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/aegis-committee/pkg/config"
	"github.com/wonny/aegis-committee/pkg/logger"
	"github.com/wonny/aegis-committee/pkg/redis"
)

// DefaultUserAgent is sent when a request does not set its own.
// Several public finance endpoints reject Go's default agent.
const DefaultUserAgent = "Mozilla/5.0 (compatible; aegis-committee/1.0)"

const (
	defaultTimeout    = 30 * time.Second
	defaultRetryDelay = 500 * time.Millisecond
	maxRetryDelay     = 8 * time.Second
)

// waiter blocks until the upstream budget admits one more request.
// *rate.Limiter satisfies it directly; redisBudget adapts the shared limiter.
type waiter interface {
	Wait(ctx context.Context) error
}

type redisBudget struct {
	limiter *redis.RateLimiter
	cfg     redis.RateLimitConfig
}

func (b redisBudget) Wait(ctx context.Context) error {
	return b.limiter.Wait(ctx, b.cfg)
}

// Client is the one HTTP client every upstream adapter goes through:
// it paces requests, retries transient failures, and logs at debug level.
// ⭐ SSOT: 모든 HTTP 요청은 이 클라이언트를 통해서만 수행
type Client struct {
	httpClient *http.Client
	logger     *logger.Logger
	limiter    waiter
	headers    http.Header

	maxRetries int
	retryDelay time.Duration
}

// StatusError is returned by ReadBody for non-2xx responses.
// Its text ("http_status_503") is what lands in the source status map.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http_status_%d", e.Code)
}

// New creates a client using the collector's fetch timeout and retry count
// ⭐ SSOT: http.Client 인스턴스는 여기서만 생성
func New(cfg *config.Config, log *logger.Logger) *Client {
	timeout := cfg.Collector.FetchTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.WithComponent("http"),
		headers:    http.Header{"User-Agent": []string{DefaultUserAgent}},
		maxRetries: cfg.Collector.FetchRetries,
		retryDelay: defaultRetryDelay,
	}
}

// NewWithTimeout overrides the per-request timeout (LLM calls run longer than quotes)
func NewWithTimeout(cfg *config.Config, log *logger.Logger, timeout time.Duration) *Client {
	client := New(cfg, log)
	if timeout > 0 {
		client.httpClient.Timeout = timeout
	}
	return client
}

// DisableRetry sends every request exactly once
func (c *Client) DisableRetry() *Client {
	c.maxRetries = 0
	return c
}

// WithRateLimiter paces requests with the Redis budget shared across processes
func (c *Client) WithRateLimiter(limiter *redis.RateLimiter, cfg redis.RateLimitConfig) *Client {
	c.limiter = redisBudget{limiter: limiter, cfg: cfg}
	return c
}

// WithLocalLimit paces requests with an in-process token bucket (Redis disabled)
func (c *Client) WithLocalLimit(perSecond int) *Client {
	if perSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), perSecond)
	}
	return c
}

// WithHeader adds a default header sent with every request
func (c *Client) WithHeader(key, value string) *Client {
	c.headers.Set(key, value)
	return c
}

// Get performs a GET request
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create GET request: %w", err)
	}
	return c.Do(req)
}

// Do executes a prepared request (custom headers such as Referer or Authorization).
// Bodies built from bytes/strings readers are replayed on retry.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	for key, values := range c.headers {
		if req.Header.Get(key) == "" {
			req.Header[key] = values
		}
	}

	start := time.Now()
	resp, attempts, err := c.doWithRetry(req)
	log := c.logger.WithFields(map[string]interface{}{
		"method":   req.Method,
		"host":     req.URL.Host,
		"path":     req.URL.Path,
		"attempts": attempts,
		"duration": time.Since(start),
	})
	if err != nil {
		log.WithError(err).Warn("HTTP request failed")
		return nil, err
	}

	log.WithField("status_code", resp.StatusCode).Debug("HTTP request completed")
	return resp, nil
}

func (c *Client) doWithRetry(req *http.Request) (*http.Response, int, error) {
	ctx := req.Context()
	delay := c.retryDelay

	for attempt := 1; ; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, attempt, fmt.Errorf("rate limit wait failed: %w", err)
			}
		}

		if attempt > 1 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, attempt, fmt.Errorf("rewind request body: %w", err)
			}
			req.Body = body
		}

		resp, err := c.httpClient.Do(req)
		if err == nil && !IsRetryableError(resp.StatusCode) {
			return resp, attempt, nil
		}
		if attempt > c.maxRetries {
			return resp, attempt, err
		}

		wait := delay
		if resp != nil {
			if ra := retryAfter(resp); ra > 0 {
				wait = ra
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}

		select {
		case <-ctx.Done():
			return nil, attempt, ctx.Err()
		case <-time.After(wait):
		}

		delay = min(delay*2, maxRetryDelay)
	}
}

// retryAfter reads a delta-seconds Retry-After header, capped at maxRetryDelay
func retryAfter(resp *http.Response) time.Duration {
	secs, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || secs <= 0 {
		return 0
	}
	return min(time.Duration(secs)*time.Second, maxRetryDelay)
}

// ReadBody drains and closes resp, returning *StatusError for non-2xx codes
func ReadBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// IsRetryableError reports whether a status is worth another attempt (5xx, 429)
func IsRetryableError(statusCode int) bool {
	return statusCode >= 500 || statusCode == http.StatusTooManyRequests
}
