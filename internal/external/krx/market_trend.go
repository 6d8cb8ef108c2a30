package krx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/aegis-committee/pkg/httputil"
)

// trendResponse is m.stock.naver.com's daily investor trend for one index.
// Values are strings in 억원 with explicit signs ("+1,459").
type trendResponse struct {
	Bizdate          string `json:"bizdate"`
	PersonalValue    string `json:"personalValue"`
	ForeignValue     string `json:"foreignValue"`
	InstitutionValue string `json:"institutionalValue"`
}

// FetchTrendFlows collects KOSPI and KOSDAQ net buying from the Naver trend API.
// Either market failing fails the whole fetch; the caller records one reason.
func (c *Client) FetchTrendFlows(ctx context.Context) (*MarketFlows, error) {
	flows := &MarketFlows{Source: "naver", Markets: make(map[string]MarketTrendData, len(marketCodes))}

	for _, m := range marketCodes {
		data, err := c.fetchMarketTrend(ctx, m.Name)
		if err != nil {
			return nil, fmt.Errorf("naver_trend[%s]: %w", strings.ToLower(m.Code), err)
		}
		if data.TradeDate.After(flows.TradeDate) {
			flows.TradeDate = data.TradeDate
		}
		flows.Markets[m.Name] = *data
	}
	return flows, nil
}

func (c *Client) fetchMarketTrend(ctx context.Context, indexName string) (*MarketTrendData, error) {
	url := fmt.Sprintf("%s/api/index/%s/trend", c.trendBaseURL, strings.ToUpper(indexName))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Referer", "https://finance.naver.com/")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	body, err := httputil.ReadBody(resp)
	if err != nil {
		return nil, err
	}
	return parseTrend(body)
}

// parseTrend rejects a row with any unparseable value; a blank investor
// figure is missing data, not zero net buying
func parseTrend(body []byte) (*MarketTrendData, error) {
	var trend trendResponse
	if err := json.Unmarshal(body, &trend); err != nil {
		return nil, fmt.Errorf("json_parse_error: %w", err)
	}
	if trend.Bizdate == "" {
		return nil, errors.New("trend_empty")
	}

	tradeDate, err := time.Parse("20060102", trend.Bizdate)
	if err != nil {
		return nil, fmt.Errorf("bizdate_invalid[%s]", trend.Bizdate)
	}

	data := &MarketTrendData{TradeDate: tradeDate}
	for _, f := range []struct {
		name string
		raw  string
		dst  *float64
	}{
		{"foreign", trend.ForeignValue, &data.ForeignNet},
		{"institution", trend.InstitutionValue, &data.InstitutionNet},
		{"individual", trend.PersonalValue, &data.IndividualNet},
	} {
		v, err := parseAmount(f.raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = v
	}
	return data, nil
}

// parseAmount accepts JSON numbers and strings with commas, signs and decimals
func parseAmount(raw interface{}) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case json.Number:
		return v.Float64()
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(v, ",", ""))
		s = strings.TrimPrefix(s, "+")
		if s == "" {
			return 0, errors.New("value_is_empty")
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("value_not_numeric[%s]", s)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("value_not_numeric[%v]", raw)
	}
}
