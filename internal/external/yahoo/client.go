package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/wonny/aegis-committee/pkg/httputil"
	"github.com/wonny/aegis-committee/pkg/logger"
	"github.com/wonny/aegis-committee/pkg/redis"
)

// DefaultBaseURL is the public chart/quote host
const DefaultBaseURL = "https://query1.finance.yahoo.com"

// Symbols used by the snapshot
const (
	SymbolKOSPI  = "^KS11"
	SymbolKOSDAQ = "^KQ11"
	SymbolSP500  = "^GSPC"
	SymbolNASDAQ = "^IXIC"
	SymbolDOW    = "^DJI"
	SymbolVIX    = "^VIX"
	SymbolVIX3M  = "^VIX3M"
	SymbolTNX    = "^TNX"
	SymbolDXY    = "DX-Y.NYB"
	SymbolUSDKRW = "KRW=X"
)

// Alternate tickers tried in order when the first returns nothing
var (
	DXYSymbols    = []string{SymbolDXY, "^DXY"}
	USDKRWSymbols = []string{SymbolUSDKRW, "USDKRW=X"}
)

// Failure reasons (recorded verbatim in the source status map)
var (
	ErrNoResult           = errors.New("no_result")
	ErrInsufficientCloses = errors.New("insufficient_closes")
	ErrNonPositiveClose   = errors.New("non_positive_close")
	ErrNoForwardPE        = errors.New("forward_pe_missing")
)

// Client handles communication with the Yahoo Finance chart API
// ⭐ SSOT: Yahoo 시세 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	cache      *redis.Cache
	group      singleflight.Group
}

// NewClient creates a new Yahoo client
func NewClient(httpClient *httputil.Client, log *logger.Logger, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: httpClient,
		logger:     log.WithComponent("yahoo"),
		baseURL:    baseURL,
	}
}

// WithCache enables the shared response cache (no-op when Redis is disabled)
func (c *Client) WithCache(cache *redis.Cache) *Client {
	c.cache = cache
	return c
}

// Series is the daily close history of one symbol, oldest first, gaps removed
type Series struct {
	Symbol string    `json:"symbol"`
	Closes []float64 `json:"closes"`
}

// Quote is the subset of the quote endpoint the snapshot uses
type Quote struct {
	Symbol             string   `json:"symbol"`
	RegularMarketPrice *float64 `json:"regularMarketPrice"`
	ForwardPE          *float64 `json:"forwardPE"`
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol string `json:"symbol"`
			} `json:"meta"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *apiError `json:"error"`
	} `json:"chart"`
}

type quoteResponse struct {
	QuoteResponse struct {
		Result []Quote    `json:"result"`
		Error  *apiError `json:"error"`
	} `json:"quoteResponse"`
}

type apiError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Chart fetches daily closes for symbol over rng (e.g. "5d").
// Concurrent calls for the same symbol share one request.
func (c *Client) Chart(ctx context.Context, symbol, rng string) (*Series, error) {
	key := redis.ChartKey(symbol, rng)

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if c.cache != nil {
			var cached Series
			if found, _ := c.cache.Get(ctx, key, &cached); found {
				return &cached, nil
			}
		}

		params := url.Values{}
		params.Set("range", rng)
		series, err := c.fetchChart(ctx, symbol, params)
		if err != nil {
			return nil, err
		}

		if c.cache != nil {
			if err := c.cache.Set(ctx, key, series, redis.TTLMedium); err != nil {
				c.logger.WithError(err).Warn("Failed to cache chart")
			}
		}
		return series, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Series), nil
}

func (c *Client) fetchChart(ctx context.Context, symbol string, params url.Values) (*Series, error) {
	params.Set("interval", "1d")
	fullURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(symbol), params.Encode())

	resp, err := c.httpClient.Get(ctx, fullURL)
	if err != nil {
		return nil, err
	}
	body, err := httputil.ReadBody(resp)
	if err != nil {
		return nil, err
	}

	var parsed chartResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("json_parse_error: %w", err)
	}
	if parsed.Chart.Error != nil {
		return nil, fmt.Errorf("chart_error: %s", parsed.Chart.Error.Description)
	}
	if len(parsed.Chart.Result) == 0 || len(parsed.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, ErrNoResult
	}

	series := &Series{Symbol: symbol}
	for _, v := range parsed.Chart.Result[0].Indicators.Quote[0].Close {
		if v != nil {
			series.Closes = append(series.Closes, *v)
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"closes": len(series.Closes),
	}).Debug("Fetched chart")

	return series, nil
}

// CloseOnOrBefore returns the last positive close of symbol within the
// lookback days ending at asOf. Historical windows bypass the cache.
func (c *Client) CloseOnOrBefore(ctx context.Context, symbol string, asOf time.Time, lookback int) (float64, error) {
	if lookback <= 0 {
		lookback = 7
	}
	params := url.Values{}
	params.Set("period1", strconv.FormatInt(asOf.AddDate(0, 0, -lookback).Unix(), 10))
	params.Set("period2", strconv.FormatInt(asOf.AddDate(0, 0, 1).Unix(), 10))

	series, err := c.fetchChart(ctx, symbol, params)
	if err != nil {
		return 0, err
	}
	return series.Latest()
}

// ChangePct returns the last daily % change of symbol
func (c *Client) ChangePct(ctx context.Context, symbol string) (float64, error) {
	series, err := c.Chart(ctx, symbol, "5d")
	if err != nil {
		return 0, err
	}
	return series.ChangePct()
}

// LatestClose returns the most recent positive close of symbol
func (c *Client) LatestClose(ctx context.Context, symbol string) (float64, error) {
	series, err := c.Chart(ctx, symbol, "5d")
	if err != nil {
		return 0, err
	}
	return series.Latest()
}

// FirstLatestClose tries symbols in order and returns the first usable close.
// The error of the last attempt is returned when all fail.
func (c *Client) FirstLatestClose(ctx context.Context, symbols ...string) (float64, error) {
	err := ErrNoResult
	for _, sym := range symbols {
		var v float64
		if v, err = c.LatestClose(ctx, sym); err == nil {
			return v, nil
		}
	}
	return 0, err
}

// FirstChangePct is FirstLatestClose for daily % change
func (c *Client) FirstChangePct(ctx context.Context, symbols ...string) (float64, error) {
	err := ErrNoResult
	for _, sym := range symbols {
		var v float64
		if v, err = c.ChangePct(ctx, sym); err == nil {
			return v, nil
		}
	}
	return 0, err
}

// ChangePct computes (last - prev) / prev * 100
func (s *Series) ChangePct() (float64, error) {
	if len(s.Closes) < 2 {
		return 0, ErrInsufficientCloses
	}
	prev, last := s.Closes[len(s.Closes)-2], s.Closes[len(s.Closes)-1]
	if prev == 0 {
		return 0, ErrNonPositiveClose
	}
	return (last - prev) / prev * 100.0, nil
}

// Latest returns the last close, rejecting non-positive values
func (s *Series) Latest() (float64, error) {
	if len(s.Closes) == 0 {
		return 0, ErrInsufficientCloses
	}
	v := s.Closes[len(s.Closes)-1]
	if v <= 0 {
		return 0, ErrNonPositiveClose
	}
	return v, nil
}

// Quote fetches the quote snapshot of symbol
func (c *Client) Quote(ctx context.Context, symbol string) (*Quote, error) {
	fullURL := fmt.Sprintf("%s/v7/finance/quote?symbols=%s", c.baseURL, url.QueryEscape(symbol))

	v, err, _ := c.group.Do("quote:"+symbol, func() (interface{}, error) {
		resp, err := c.httpClient.Get(ctx, fullURL)
		if err != nil {
			return nil, err
		}
		body, err := httputil.ReadBody(resp)
		if err != nil {
			return nil, err
		}

		var parsed quoteResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, fmt.Errorf("json_parse_error: %w", err)
		}
		if parsed.QuoteResponse.Error != nil {
			return nil, fmt.Errorf("quote_error: %s", parsed.QuoteResponse.Error.Description)
		}
		if len(parsed.QuoteResponse.Result) == 0 {
			return nil, ErrNoResult
		}
		q := parsed.QuoteResponse.Result[0]
		return &q, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Quote), nil
}

// ForwardPE returns the S&P 500 forward multiple
func (c *Client) ForwardPE(ctx context.Context) (float64, error) {
	q, err := c.Quote(ctx, SymbolSP500)
	if err != nil {
		return 0, err
	}
	if q.ForwardPE == nil || *q.ForwardPE <= 0 {
		return 0, ErrNoForwardPE
	}
	return *q.ForwardPE, nil
}

// ForwardEPS approximates S&P 500 forward EPS as price / forward PE
func (c *Client) ForwardEPS(ctx context.Context) (float64, error) {
	pe, err := c.ForwardPE(ctx)
	if err != nil {
		return 0, err
	}
	price, err := c.LatestClose(ctx, SymbolSP500)
	if err != nil {
		return 0, err
	}
	return price / pe, nil
}

// ScaleTNX converts ^TNX quotes to percent (older feeds report yield x10)
func ScaleTNX(v float64) float64 {
	if v > 20 {
		return v / 10
	}
	return v
}
