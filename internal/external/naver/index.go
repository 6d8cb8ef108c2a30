package naver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

var pctRe = regexp.MustCompile(`([+-]?\d+(?:\.\d+)?)\s*%`)

// ErrIndexChangeMissing means the index page had no parsable change rate
var ErrIndexChangeMissing = errors.New("index_change_missing")

// IndexChange returns today's % change of a domestic index (KOSPI, KOSDAQ).
// The index page is tried first, then the daily chart series.
func (c *Client) IndexChange(ctx context.Context, code string) (float64, error) {
	pct, scrapeErr := c.scrapeIndexChange(ctx, code)
	if scrapeErr == nil {
		return pct, nil
	}

	to := time.Now()
	closes, err := c.FetchIndexCloses(ctx, code, to.AddDate(0, 0, -10), to)
	if err == nil {
		if pct, err = ChangeFromCloses(closes); err == nil {
			c.logger.WithError(scrapeErr).WithField("code", code).Debug("Index page unparsable, used chart series")
			return pct, nil
		}
	}
	return 0, fmt.Errorf("naver_index_unavailable: %v; chart: %v", scrapeErr, err)
}

func (c *Client) scrapeIndexChange(ctx context.Context, code string) (float64, error) {
	html, err := c.fetchHTML(ctx, "/sise/sise_index.naver", url.Values{"code": {code}})
	if err != nil {
		return 0, err
	}
	return parseIndexChange(html)
}

// parseIndexChange reads "#change_value_and_rate" ("12.34 +0.52% 상승").
// Naver marks falls with the 하락 label and sometimes omits the sign.
func parseIndexChange(html []byte) (float64, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return 0, fmt.Errorf("parse html: %w", err)
	}

	sel := doc.Find("#change_value_and_rate")
	if sel.Length() == 0 {
		return 0, ErrIndexChangeMissing
	}
	text := strings.TrimSpace(sel.Text())

	m := pctRe.FindStringSubmatch(text)
	if m == nil {
		return 0, ErrIndexChangeMissing
	}
	pct, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, ErrIndexChangeMissing
	}
	if pct > 0 && !strings.HasPrefix(m[1], "+") && strings.Contains(text, "하락") {
		pct = -pct
	}
	return pct, nil
}

// ChangeFromCloses returns the last daily % change of an oldest-first series
func ChangeFromCloses(closes []IndexClose) (float64, error) {
	if len(closes) < 2 {
		return 0, errors.New("insufficient_closes")
	}
	prev, last := closes[len(closes)-2].Close, closes[len(closes)-1].Close
	if prev <= 0 {
		return 0, errors.New("non_positive_close")
	}
	return (last - prev) / prev * 100.0, nil
}
