package naver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/aegis-committee/pkg/httputil"
)

var closeRowRe = regexp.MustCompile(`\["(\d{8})",\s*([\d.]+),\s*([\d.]+),\s*([\d.]+),\s*([\d.]+),\s*([\d.]+)`)

// FetchIndexCloses fetches daily closes for an index symbol (KOSPI, KOSDAQ), oldest first
func (c *Client) FetchIndexCloses(ctx context.Context, symbol string, from, to time.Time) ([]IndexClose, error) {
	fullURL := fmt.Sprintf(
		"%s/siseJson.naver?symbol=%s&requestType=1&startTime=%s&endTime=%s&timeframe=day",
		c.chartURL, symbol, from.Format("20060102"), to.Format("20060102"),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("Referer", DefaultBaseURL+"/")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	body, err := httputil.ReadBody(resp)
	if err != nil {
		return nil, err
	}

	closes := parseCloseResponse(string(body))
	sort.Slice(closes, func(i, j int) bool { return closes[i].TradeDate.Before(closes[j].TradeDate) })

	c.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"count":  len(closes),
	}).Debug("Fetched index closes")
	return closes, nil
}

// parseCloseResponse parses the single-quoted JSON-ish chart body
func parseCloseResponse(body string) []IndexClose {
	body = strings.TrimSpace(body)
	body = strings.ReplaceAll(body, "'", "\"")

	// Try JSON parsing first
	var rawData [][]interface{}
	if err := json.Unmarshal([]byte(body), &rawData); err == nil {
		return parseCloseJSON(rawData)
	}

	// Fallback to regex parsing
	return parseCloseRegex(body)
}

// parseCloseJSON reads [date, open, high, low, close, volume] rows after the header
func parseCloseJSON(rawData [][]interface{}) []IndexClose {
	var closes []IndexClose
	for i, row := range rawData {
		if i == 0 || len(row) < 5 {
			continue // Skip header
		}

		dateStr, ok := row[0].(string)
		if !ok {
			continue
		}
		tradeDate, err := time.Parse("20060102", strings.TrimSpace(dateStr))
		if err != nil {
			continue
		}

		if v := toFloat64(row[4]); v > 0 {
			closes = append(closes, IndexClose{TradeDate: tradeDate, Close: v})
		}
	}
	return closes
}

// parseCloseRegex parses using regex (fallback)
func parseCloseRegex(body string) []IndexClose {
	var closes []IndexClose
	for _, match := range closeRowRe.FindAllStringSubmatch(body, -1) {
		tradeDate, err := time.Parse("20060102", match[1])
		if err != nil {
			continue
		}
		v, _ := strconv.ParseFloat(match[5], 64)
		if v > 0 {
			closes = append(closes, IndexClose{TradeDate: tradeDate, Close: v})
		}
	}
	return closes
}

// toFloat64 converts various types to float64
func toFloat64(v interface{}) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int64:
		return float64(val)
	case int:
		return float64(val)
	case string:
		n, _ := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(val), ",", ""), 64)
		return n
	default:
		return 0
	}
}
