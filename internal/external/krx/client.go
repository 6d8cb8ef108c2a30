package krx

import (
	"sync"
	"time"

	"github.com/wonny/aegis-committee/pkg/httputil"
	"github.com/wonny/aegis-committee/pkg/logger"
)

const (
	// DefaultBaseURL is the KRX data portal
	DefaultBaseURL = "https://data.krx.co.kr"
	// DefaultTrendBaseURL serves the Naver mobile index trend API (FLOW_SOURCE=naver)
	DefaultTrendBaseURL = "https://m.stock.naver.com"
)

// Market codes used by the KRX investor statistics pages
var marketCodes = []struct {
	Code string
	Name string
}{
	{Code: "STK", Name: "KOSPI"},
	{Code: "KSQ", Name: "KOSDAQ"},
}

// Client handles investor flow data from the KRX portal and the Naver trend API
// ⭐ SSOT: 투자자별 순매수 호출은 이 클라이언트에서만
type Client struct {
	httpClient   *httputil.Client
	logger       *logger.Logger
	baseURL      string
	trendBaseURL string
	lookbackDays int

	mu           sync.Mutex
	pageDefaults map[string]map[string]string
}

// NewClient creates a new KRX client
func NewClient(httpClient *httputil.Client, log *logger.Logger, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient:   httpClient,
		logger:       log.WithComponent("krx"),
		baseURL:      baseURL,
		trendBaseURL: DefaultTrendBaseURL,
		lookbackDays: 10,
		pageDefaults: make(map[string]map[string]string),
	}
}

// WithTrendBaseURL overrides the Naver trend host
func (c *Client) WithTrendBaseURL(baseURL string) *Client {
	if baseURL != "" {
		c.trendBaseURL = baseURL
	}
	return c
}

// MarketTrendData is one market's net buying by investor class, KRW 100M (억원)
type MarketTrendData struct {
	TradeDate      time.Time
	ForeignNet     float64 // 외국인 순매수
	InstitutionNet float64 // 기관 순매수
	IndividualNet  float64 // 개인 순매수
}

// MarketFlows is the KOSPI/KOSDAQ breakdown of one trading day
type MarketFlows struct {
	TradeDate time.Time
	Source    string
	Markets   map[string]MarketTrendData
}
