package fred

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/wonny/aegis-committee/pkg/httputil"
	"github.com/wonny/aegis-committee/pkg/logger"
	"github.com/wonny/aegis-committee/pkg/redis"
)

// DefaultBaseURL is the St. Louis Fed API host
const DefaultBaseURL = "https://api.stlouisfed.org"

// Series IDs
const (
	SeriesUnemployment = "UNRATE"
	SeriesCPI          = "CPIAUCSL"
	SeriesCoreCPI      = "CPILFESL"
	SeriesPCE          = "PCEPI"
	SeriesWage         = "CES0500000003" // avg hourly earnings, total private
	SeriesRealGDP      = "GDPC1"
	SeriesGDPQoQ       = "A191RL1Q225SBEA"
	SeriesFedFunds     = "FEDFUNDS"
	SeriesBreakeven10Y = "T10YIE"
	SeriesHYOAS        = "BAMLH0A0HYM2"
	SeriesIGOAS        = "BAMLC0A0CM"
	SeriesFedBalance   = "WALCL"
	SeriesUS2Y         = "DGS2"
)

var (
	// ErrNoAPIKey is returned before any request when FRED_API_KEY is empty
	ErrNoAPIKey = errors.New("fred_api_key_missing")
	// ErrInsufficientObservations means the series had fewer usable points than required
	ErrInsufficientObservations = errors.New("insufficient_observations")
)

// Client handles communication with the FRED observations API
// ⭐ SSOT: FRED 시계열 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	apiKey     string
	cache      *gocache.Cache
}

// NewClient creates a new FRED client. Observation windows are cached
// in-process for ttl; monthly series do not move within a run day.
func NewClient(httpClient *httputil.Client, log *logger.Logger, baseURL, apiKey string, ttl time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if ttl <= 0 {
		ttl = redis.TTLLong
	}
	return &Client{
		httpClient: httpClient,
		logger:     log.WithComponent("fred"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		cache:      gocache.New(ttl, 2*ttl),
	}
}

type observationsResponse struct {
	Observations []struct {
		Date  string `json:"date"`
		Value string `json:"value"`
	} `json:"observations"`
	ErrorCode    int    `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// Observations returns up to n numeric observations, newest first.
// Missing points (".") are skipped, so twice as many rows are requested.
func (c *Client) Observations(ctx context.Context, seriesID string, n int) ([]float64, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}

	key := redis.SeriesKey(seriesID, n)
	if cached, ok := c.cache.Get(key); ok {
		return cached.([]float64), nil
	}

	values, err := c.fetch(ctx, seriesID, n, nil)
	if err != nil {
		return nil, err
	}

	c.cache.Set(key, values, gocache.DefaultExpiration)
	return values, nil
}

// ObservationOnOrBefore returns the newest observation dated at or before asOf
func (c *Client) ObservationOnOrBefore(ctx context.Context, seriesID string, asOf time.Time) (float64, error) {
	if c.apiKey == "" {
		return 0, ErrNoAPIKey
	}

	extra := url.Values{}
	extra.Set("observation_end", asOf.Format("2006-01-02"))
	values, err := c.fetch(ctx, seriesID, 1, extra)
	if err != nil {
		return 0, err
	}
	return values[0], nil
}

func (c *Client) fetch(ctx context.Context, seriesID string, n int, extra url.Values) ([]float64, error) {
	params := url.Values{}
	params.Set("series_id", seriesID)
	params.Set("api_key", c.apiKey)
	params.Set("file_type", "json")
	params.Set("sort_order", "desc")
	params.Set("limit", strconv.Itoa(n*2))
	for k, v := range extra {
		params[k] = v
	}
	fullURL := fmt.Sprintf("%s/fred/series/observations?%s", c.baseURL, params.Encode())

	resp, err := c.httpClient.Get(ctx, fullURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var parsed observationsResponse
	parseErr := json.Unmarshal(body, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if parseErr == nil && parsed.ErrorMessage != "" {
			return nil, fmt.Errorf("fred_error: %s", parsed.ErrorMessage)
		}
		return nil, &httputil.StatusError{Code: resp.StatusCode}
	}
	if parseErr != nil {
		return nil, fmt.Errorf("json_parse_error: %w", parseErr)
	}

	values := make([]float64, 0, n)
	for _, obs := range parsed.Observations {
		if obs.Value == "." || obs.Value == "" {
			continue
		}
		v, err := strconv.ParseFloat(obs.Value, 64)
		if err != nil {
			continue
		}
		values = append(values, v)
		if len(values) == n {
			break
		}
	}
	if len(values) == 0 {
		return nil, ErrInsufficientObservations
	}

	c.logger.WithFields(map[string]interface{}{
		"series": seriesID,
		"count":  len(values),
	}).Debug("Fetched observations")

	return values, nil
}

// Latest returns the newest observation
func (c *Client) Latest(ctx context.Context, seriesID string) (float64, error) {
	values, err := c.Observations(ctx, seriesID, 1)
	if err != nil {
		return 0, err
	}
	return values[0], nil
}

// YoY returns the year-over-year % change of a monthly series
func (c *Client) YoY(ctx context.Context, seriesID string) (float64, error) {
	values, err := c.Observations(ctx, seriesID, 13)
	if err != nil {
		return 0, err
	}
	return YoYFromDesc(values)
}

// YoYFromDesc computes (v[0] / v[12] - 1) * 100 over newest-first monthly values
func YoYFromDesc(values []float64) (float64, error) {
	if len(values) < 13 || values[12] == 0 {
		return 0, ErrInsufficientObservations
	}
	return (values[0]/values[12] - 1) * 100.0, nil
}
