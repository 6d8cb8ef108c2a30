package naver

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/wonny/aegis-committee/pkg/httputil"
	"github.com/wonny/aegis-committee/pkg/logger"
)

const (
	// DefaultBaseURL is the Naver Finance desktop site
	DefaultBaseURL = "https://finance.naver.com"
	// DefaultChartURL serves daily OHLC series
	DefaultChartURL = "https://fchart.stock.naver.com"
)

// Client handles communication with Naver Finance
// ⭐ SSOT: Naver Finance 지수 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	chartURL   string
}

// NewClient creates a new Naver Finance client
func NewClient(httpClient *httputil.Client, log *logger.Logger, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: httpClient,
		logger:     log.WithComponent("naver"),
		baseURL:    baseURL,
		chartURL:   DefaultChartURL,
	}
}

// WithChartURL overrides the chart host
func (c *Client) WithChartURL(chartURL string) *Client {
	if chartURL != "" {
		c.chartURL = chartURL
	}
	return c
}

// fetchHTML fetches a page from Naver Finance
func (c *Client) fetchHTML(ctx context.Context, path string, params url.Values) ([]byte, error) {
	fullURL := fmt.Sprintf("%s%s", c.baseURL, path)
	if len(params) > 0 {
		fullURL = fmt.Sprintf("%s?%s", fullURL, params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("Referer", DefaultBaseURL+"/")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	return httputil.ReadBody(resp)
}

// IndexClose is one daily close of a market index
type IndexClose struct {
	TradeDate time.Time
	Close     float64
}
