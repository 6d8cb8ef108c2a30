package krx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"github.com/wonny/aegis-committee/pkg/httputil"
)

var eok = decimal.NewFromInt(100_000_000) // 1억원

// Investor statistics screens and their JSON bld identifiers, tried in order.
// KRX rejects a bld whose Referer is not the page that owns it.
var statScreens = []struct {
	Bld  string
	Page string
}{
	{Bld: "dbms/MDC/STAT/standard/MDCSTAT02301", Page: "/contents/MDC/STAT/standard/MDCSTAT02301.jspx"},
	{Bld: "dbms/MDC/STAT/standard/MDCSTAT02201", Page: "/contents/MDC/STAT/standard/MDCSTAT02201.jspx"},
	{Bld: "dbms/MDC/STAT/standard/MDCSTAT02401", Page: "/contents/MDC/STAT/standard/MDCSTAT02401.jspx"},
}

var (
	rowListKeys  = []string{"output", "output1", "OutBlock_1", "block1", "result"}
	investorKeys = []string{"INVST_TP_NM", "invstTpNm", "투자자구분", "투자자구분명", "투자자", "INVESTOR"}
	netKeys      = []string{"NET_TRDVAL", "NET_TRDVOL", "netTrdVal", "순매수", "순매수거래대금", "순매수대금", "NET"}
)

// FetchInvestorFlows returns KOSPI and KOSDAQ net buying for the latest
// trading day on or before asOf, stepping back over weekends and holidays.
// ⭐ SSOT: KRX 투자자별 거래실적 조회는 이 함수에서만
func (c *Client) FetchInvestorFlows(ctx context.Context, asOf time.Time) (*MarketFlows, error) {
	d := asOf
	lastErr := "unknown"

	for i := 0; i < c.lookbackDays; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ymd := d.Format("20060102")

		flows := &MarketFlows{TradeDate: d, Source: "krx", Markets: make(map[string]MarketTrendData, len(marketCodes))}
		var err error
		for _, m := range marketCodes {
			var data *MarketTrendData
			if data, err = c.fetchMarket(ctx, ymd, m.Code); err != nil {
				break
			}
			data.TradeDate = d
			flows.Markets[m.Name] = *data
		}
		if err == nil {
			c.logger.WithFields(map[string]interface{}{
				"trade_date": d.Format("2006-01-02"),
				"lookback":   i,
			}).Info("Fetched investor flows")
			return flows, nil
		}

		lastErr = fmt.Sprintf("%s: %v", ymd, err)
		d = d.AddDate(0, 0, -1)
	}

	return nil, fmt.Errorf("krx_flow_unavailable: %s", lastErr)
}

// fetchMarket tries every screen and payload shape for one market and day
func (c *Client) fetchMarket(ctx context.Context, ymd, code string) (*MarketTrendData, error) {
	lastErr := "no_candidates"

	for _, screen := range statScreens {
		page := c.baseURL + screen.Page
		defaults := c.defaultsFor(ctx, page)

		for _, payload := range payloadVariants(ymd, code, defaults) {
			js, err := c.postJSON(ctx, screen.Bld, payload, page)
			if err == nil {
				var data *MarketTrendData
				if data, err = investorNet(js); err == nil {
					return data, nil
				}
			}
			lastErr = fmt.Sprintf("%s: %v", screen.Bld, err)
		}
	}

	// lowercase market code keeps the reason clear of the ticker check
	return nil, fmt.Errorf("krx_fetch_failed[%s,%s]: %s", strings.ToLower(code), ymd, lastErr)
}

// payloadVariants returns the request shapes KRX screens accept:
// single day, date range, and both
func payloadVariants(ymd, code string, defaults map[string]string) []url.Values {
	base := url.Values{}
	for k, v := range defaults {
		if strings.TrimSpace(v) != "" {
			base.Set(k, v)
		}
	}
	if base.Get("money") == "" {
		base.Set("money", "1")
	}
	if base.Get("csvxls_isNo") == "" {
		base.Set("csvxls_isNo", "false")
	}

	clone := func() url.Values {
		v := url.Values{}
		for k, vals := range base {
			v[k] = append([]string(nil), vals...)
		}
		v.Set("mktId", code)
		return v
	}

	single := clone()
	single.Set("trdDd", ymd)

	ranged := clone()
	ranged.Set("strtDd", ymd)
	ranged.Set("endDd", ymd)

	both := clone()
	both.Set("strtDd", ymd)
	both.Set("endDd", ymd)
	both.Set("trdDd", ymd)

	return []url.Values{single, ranged, both}
}

// defaultsFor returns the named <input> values of a screen, fetched once.
// A page that cannot be loaded caches an empty set.
func (c *Client) defaultsFor(ctx context.Context, page string) map[string]string {
	c.mu.Lock()
	cached, ok := c.pageDefaults[page]
	c.mu.Unlock()
	if ok {
		return cached
	}

	defaults := map[string]string{}
	if html, err := c.fetchPage(ctx, page); err == nil {
		defaults = extractInputDefaults(html)
	} else {
		c.logger.WithError(err).WithField("page", page).Debug("KRX page defaults unavailable")
	}

	c.mu.Lock()
	c.pageDefaults[page] = defaults
	c.mu.Unlock()
	return defaults
}

func (c *Client) fetchPage(ctx context.Context, page string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, page, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Referer", c.baseURL+"/")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	return httputil.ReadBody(resp)
}

// extractInputDefaults collects <input name=... value=...> pairs with a non-empty value
func extractInputDefaults(html []byte) map[string]string {
	out := map[string]string{}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return out
	}
	doc.Find("input[name]").Each(func(_ int, s *goquery.Selection) {
		name := strings.TrimSpace(s.AttrOr("name", ""))
		value := strings.TrimSpace(s.AttrOr("value", ""))
		if name != "" && value != "" {
			out[name] = value
		}
	})
	return out
}

func (c *Client) postJSON(ctx context.Context, bld string, payload url.Values, referer string) (map[string]interface{}, error) {
	form := url.Values{}
	form.Set("bld", bld)
	for k, v := range payload {
		form[k] = v
	}

	endpoint := c.baseURL + "/comm/bldAttendant/getJsonData.cmd"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	req.Header.Set("Origin", c.baseURL)
	req.Header.Set("Referer", referer)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	body, err := httputil.ReadBody(resp)
	if err != nil {
		return nil, err
	}

	var js map[string]interface{}
	if err := json.Unmarshal(body, &js); err != nil {
		return nil, fmt.Errorf("json_parse_error: %w", err)
	}
	if len(js) == 0 {
		return nil, errors.New("empty_json")
	}
	return js, nil
}

// investorNet maps a KRX payload to 억원 net buying by investor class
func investorNet(js map[string]interface{}) (*MarketTrendData, error) {
	var rows []interface{}
	for _, k := range rowListKeys {
		if list, ok := js[k].([]interface{}); ok {
			rows = list
			break
		}
	}
	if len(rows) == 0 {
		return nil, errors.New("no_output_rows")
	}

	byInvestor := map[string]float64{}
	for _, r := range rows {
		row, ok := r.(map[string]interface{})
		if !ok {
			continue
		}
		investor, ok := firstString(row, investorKeys)
		if !ok || investor == "" {
			continue
		}
		raw, ok := firstValue(row, netKeys)
		if !ok {
			continue
		}
		v, err := parseAmount(raw)
		if err != nil {
			continue
		}
		byInvestor[investor] = v
	}

	// wide format: one row with a column per investor class
	if len(byInvestor) == 0 {
		if first, ok := rows[0].(map[string]interface{}); ok {
			for _, k := range []string{"개인", "외국인", "기관합계", "기관"} {
				if raw, ok := first[k]; ok {
					if v, err := parseAmount(raw); err == nil {
						byInvestor[k] = v
					}
				}
			}
		}
	}
	if len(byInvestor) == 0 {
		return nil, errors.New("unrecognized_output_keys")
	}

	individual, err := pick(byInvestor, "개인")
	if err != nil {
		return nil, err
	}
	foreign, err := pick(byInvestor, "외국인", "외국인합계")
	if err != nil {
		return nil, err
	}
	institution, err := pick(byInvestor, "기관합계", "기관")
	if err != nil {
		return nil, err
	}

	return &MarketTrendData{
		IndividualNet:  toEok(individual),
		ForeignNet:     toEok(foreign),
		InstitutionNet: toEok(institution),
	}, nil
}

func pick(values map[string]float64, keys ...string) (float64, error) {
	for _, k := range keys {
		if v, ok := values[k]; ok {
			return v, nil
		}
	}
	return 0, fmt.Errorf("missing_keys: tried=%s", strings.Join(keys, ","))
}

func firstValue(row map[string]interface{}, keys []string) (interface{}, bool) {
	for _, k := range keys {
		if v, ok := row[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func firstString(row map[string]interface{}, keys []string) (string, bool) {
	v, ok := firstValue(row, keys)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(fmt.Sprint(v)), true
}

// toEok converts KRW to whole 억원, half away from zero
func toEok(krw float64) float64 {
	return decimal.NewFromFloat(krw).Div(eok).Round(0).InexactFloat64()
}
