package fx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/wonny/aegis-committee/pkg/httputil"
	"github.com/wonny/aegis-committee/pkg/logger"
)

// Candidate is one public USD/KRW quote endpoint.
// Path is the dotted JSON path to the rate.
type Candidate struct {
	Name string
	URL  string
	Path string
}

// DefaultCandidates are tried in order until one yields a float
var DefaultCandidates = []Candidate{
	{Name: "er_api", URL: "https://open.er-api.com/v6/latest/USD", Path: "rates.KRW"},
	{Name: "exchangerate_host", URL: "https://api.exchangerate.host/latest?base=USD&symbols=KRW", Path: "rates.KRW"},
	{Name: "fawaz_api", URL: "https://cdn.jsdelivr.net/npm/@fawazahmed0/currency-api@1/latest/currencies/usd/krw.json", Path: "krw"},
}

// Client resolves the USD/KRW level from a chain of free FX endpoints
// ⭐ SSOT: 환율 레벨 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	candidates []Candidate
}

// NewClient creates an FX client. Nil candidates uses DefaultCandidates.
func NewClient(httpClient *httputil.Client, log *logger.Logger, candidates []Candidate) *Client {
	if len(candidates) == 0 {
		candidates = DefaultCandidates
	}
	return &Client{
		httpClient: httpClient,
		logger:     log.WithComponent("fx"),
		candidates: candidates,
	}
}

// USDKRW returns the first candidate quote. When all fail the error is the
// last candidate's reason, e.g. "fawaz_api:key_missing".
func (c *Client) USDKRW(ctx context.Context) (float64, error) {
	lastErr := errors.New("no_fx_candidates")
	for _, cand := range c.candidates {
		v, reason := c.try(ctx, cand)
		if reason == "" {
			c.logger.WithFields(map[string]interface{}{
				"source": cand.Name,
				"usdkrw": v,
			}).Debug("Resolved USD/KRW")
			return v, nil
		}
		lastErr = fmt.Errorf("%s:%s", cand.Name, reason)
		c.logger.WithField("reason", lastErr.Error()).Debug("FX candidate failed")
	}
	return 0, lastErr
}

func (c *Client) try(ctx context.Context, cand Candidate) (float64, string) {
	resp, err := c.httpClient.Get(ctx, cand.URL)
	if err != nil {
		return 0, "request_error"
	}
	body, err := httputil.ReadBody(resp)
	if err != nil {
		var statusErr *httputil.StatusError
		if errors.As(err, &statusErr) {
			return 0, statusErr.Error()
		}
		return 0, "read_error"
	}

	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return 0, "json_parse_error"
	}

	node := doc
	for _, part := range strings.Split(cand.Path, ".") {
		obj, ok := node.(map[string]interface{})
		if !ok {
			return 0, "key_missing"
		}
		if node, ok = obj[part]; !ok {
			return 0, "key_missing"
		}
	}

	v, ok := node.(float64)
	if !ok {
		return 0, "value_not_float"
	}
	return v, ""
}
