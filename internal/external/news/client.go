package news

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/wonny/aegis-committee/pkg/httputil"
	"github.com/wonny/aegis-committee/pkg/logger"
)

// DefaultBaseURL is the Google News host
const DefaultBaseURL = "https://news.google.com"

// duplicateOverlap is the token overlap at which two headlines are the same story
const duplicateOverlap = 0.85

// ErrNoTitles means the feed produced nothing usable after cleanup
var ErrNoTitles = errors.New("no_titles")

var (
	trailingParenRe = regexp.MustCompile(`\([^)]*\)$`)
	bracketRe       = regexp.MustCompile(`\[[^\]]*\]`)
	sourceSuffixRe  = regexp.MustCompile(`\s+-\s+[^-]+$`)
	nonWordRe       = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
	spaceRe         = regexp.MustCompile(`\s+`)
)

// Item is one feed entry
type Item struct {
	Title string
	Link  string
}

type rssFeed struct {
	Channel struct {
		Items []struct {
			Title string `xml:"title"`
			Link  string `xml:"link"`
		} `xml:"item"`
	} `xml:"channel"`
}

// Client fetches market headlines from the Google News RSS search feed
// ⭐ SSOT: 뉴스 헤드라인 수집은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	query      string
	policy     *bluemonday.Policy
}

// NewClient creates a news client searching for query (default "KOSPI")
func NewClient(httpClient *httputil.Client, log *logger.Logger, baseURL, query string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if strings.TrimSpace(query) == "" {
		query = "KOSPI"
	}
	return &Client{
		httpClient: httpClient,
		logger:     log.WithComponent("news"),
		baseURL:    baseURL,
		query:      query,
		policy:     bluemonday.StrictPolicy(),
	}
}

// Headlines returns up to limit de-duplicated, tag-free titles
func (c *Client) Headlines(ctx context.Context, limit int) ([]string, error) {
	items, err := c.FetchItems(ctx, max(limit*2, 50))
	if err != nil {
		return nil, err
	}

	items = Deduplicate(items, limit)
	if len(items) == 0 {
		return nil, ErrNoTitles
	}

	titles := make([]string, 0, len(items))
	for _, it := range items {
		titles = append(titles, it.Title)
	}

	c.logger.WithField("count", len(titles)).Debug("Fetched headlines")
	return titles, nil
}

// FetchItems reads up to limit raw feed entries
func (c *Client) FetchItems(ctx context.Context, limit int) ([]Item, error) {
	fullURL := fmt.Sprintf("%s/rss/search?q=%s", c.baseURL, url.QueryEscape(c.query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept-Language", "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	body, err := httputil.ReadBody(resp)
	if err != nil {
		return nil, err
	}

	var feed rssFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("rss_parse_error: %w", err)
	}

	items := make([]Item, 0, limit)
	for _, raw := range feed.Channel.Items {
		title := c.sanitize(raw.Title)
		if title == "" {
			continue
		}
		items = append(items, Item{Title: title, Link: strings.TrimSpace(raw.Link)})
		if len(items) >= limit {
			break
		}
	}
	return items, nil
}

// sanitize strips markup; the strict policy escapes entities so they are decoded back
func (c *Client) sanitize(s string) string {
	return strings.TrimSpace(html.UnescapeString(c.policy.Sanitize(s)))
}

// Normalize reduces a headline to lowercase word tokens for duplicate detection.
// Trailing "(...)", bracketed tags and the " - Publisher" suffix are dropped.
func Normalize(title string) string {
	s := strings.TrimSpace(trailingParenRe.ReplaceAllString(title, ""))
	s = bracketRe.ReplaceAllString(s, " ")
	s = sourceSuffixRe.ReplaceAllString(s, "")
	s = nonWordRe.ReplaceAllString(s, " ")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.ToLower(strings.TrimSpace(s))
}

// Deduplicate drops exact and near-duplicate headlines, keeping feed order
func Deduplicate(items []Item, limit int) []Item {
	unique := make([]Item, 0, limit)
	seen := map[string]bool{}
	var seenTokens []map[string]bool

	for _, it := range items {
		normalized := Normalize(it.Title)
		if normalized == "" || seen[normalized] {
			continue
		}

		tokens := tokenSet(normalized)
		duplicate := false
		for _, prior := range seenTokens {
			if overlap(tokens, prior) >= duplicateOverlap {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}

		seen[normalized] = true
		seenTokens = append(seenTokens, tokens)
		unique = append(unique, it)
		if len(unique) >= limit {
			break
		}
	}
	return unique
}

func tokenSet(s string) map[string]bool {
	out := map[string]bool{}
	for _, tok := range strings.Fields(s) {
		out[tok] = true
	}
	return out
}

// overlap is |a ∩ b| / max(|a|, |b|)
func overlap(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared := 0
	for tok := range a {
		if b[tok] {
			shared++
		}
	}
	return float64(shared) / float64(max(len(a), len(b)))
}
