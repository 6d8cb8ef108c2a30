package s0_data

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/aegis-committee/internal/contracts"
	"github.com/wonny/aegis-committee/internal/external/fred"
	"github.com/wonny/aegis-committee/internal/external/fx"
	"github.com/wonny/aegis-committee/internal/external/ism"
	"github.com/wonny/aegis-committee/internal/external/krx"
	"github.com/wonny/aegis-committee/internal/external/naver"
	"github.com/wonny/aegis-committee/internal/external/news"
	"github.com/wonny/aegis-committee/internal/external/yahoo"
	"github.com/wonny/aegis-committee/pkg/config"
	"github.com/wonny/aegis-committee/pkg/httputil"
	"github.com/wonny/aegis-committee/pkg/logger"
	"github.com/wonny/aegis-committee/pkg/redis"
)

const (
	reasonMacroOff = "macro source off"
	reasonNewsOff  = "news source off"
)

type fredSeries struct {
	id  string
	yoy bool
}

// ⭐ SSOT: FRED 필드 ↔ 시리즈 매핑
var fredFields = map[contracts.Field]fredSeries{
	contracts.FieldUS2Y:         {id: fred.SeriesUS2Y},
	contracts.FieldUnemployment: {id: fred.SeriesUnemployment},
	contracts.FieldCPIYoY:       {id: fred.SeriesCPI, yoy: true},
	contracts.FieldCoreCPIYoY:   {id: fred.SeriesCoreCPI, yoy: true},
	contracts.FieldPCEYoY:       {id: fred.SeriesPCE, yoy: true},
	contracts.FieldWageLevel:    {id: fred.SeriesWage},
	contracts.FieldWageYoY:      {id: fred.SeriesWage, yoy: true},
	contracts.FieldRealGDP:      {id: fred.SeriesRealGDP},
	contracts.FieldGDPQoQ:       {id: fred.SeriesGDPQoQ},
	contracts.FieldFedFunds:     {id: fred.SeriesFedFunds},
	contracts.FieldBreakeven10Y: {id: fred.SeriesBreakeven10Y},
	contracts.FieldHYOAS:        {id: fred.SeriesHYOAS},
	contracts.FieldIGOAS:        {id: fred.SeriesIGOAS},
	contracts.FieldFedBalance:   {id: fred.SeriesFedBalance},
}

var yahooIndexSymbols = map[contracts.Field]string{
	contracts.FieldKOSPI:  yahoo.SymbolKOSPI,
	contracts.FieldKOSDAQ: yahoo.SymbolKOSDAQ,
	contracts.FieldSP500:  yahoo.SymbolSP500,
	contracts.FieldNASDAQ: yahoo.SymbolNASDAQ,
	contracts.FieldDOW:    yahoo.SymbolDOW,
}

var naverIndexCodes = map[contracts.Field]string{
	contracts.FieldKOSPI:  "KOSPI",
	contracts.FieldKOSDAQ: "KOSDAQ",
}

// HTTPClients are the upstream clients behind HTTPProvider.
// A nil client disables its field group (the field fails with a reason).
type HTTPClients struct {
	Yahoo *yahoo.Client
	Naver *naver.Client
	FX    *fx.Client
	KRX   *krx.Client
	FRED  *fred.Client
	ISM   *ism.Client
	News  *news.Client
}

// HTTPProvider is the primary provider backed by public market data APIs.
// Source toggles pick between alternative upstreams per group.
type HTTPProvider struct {
	clients      HTTPClients
	marketSource string
	flowSource   string
	logger       *logger.Logger
}

// NewHTTPProvider wires already-built clients
func NewHTTPProvider(clients HTTPClients, sources config.SourceConfig, log *logger.Logger) *HTTPProvider {
	return &HTTPProvider{
		clients:      clients,
		marketSource: sources.Market,
		flowSource:   sources.Flow,
		logger:       log.WithComponent("http_provider"),
	}
}

// NewHTTPProviderFromConfig builds every client from cfg. Each upstream gets
// its own HTTP client so rate limits apply per host group; the Redis sliding
// window is used when Redis is enabled, an in-process token bucket otherwise.
func NewHTTPProviderFromConfig(cfg *config.Config, log *logger.Logger, rdb *redis.Client) *HTTPProvider {
	var limiter *redis.RateLimiter
	if rdb != nil && rdb.Enabled() {
		limiter = redis.NewRateLimiter(rdb)
	}
	httpFor := func(rl redis.RateLimitConfig) *httputil.Client {
		c := httputil.NewWithTimeout(cfg, log, cfg.Collector.FetchTimeout)
		if limiter != nil && rl.Key != "" {
			return c.WithRateLimiter(limiter, rl)
		}
		return c.WithLocalLimit(cfg.Collector.RatePerSec)
	}

	clients := HTTPClients{
		Yahoo: yahoo.NewClient(httpFor(redis.YahooRateLimit), log, cfg.Sources.YahooBaseURL).
			WithCache(redis.NewCache(rdb)),
		FX: fx.NewClient(httpFor(redis.RateLimitConfig{}), log, nil),
	}
	if cfg.Sources.Market == "naver" {
		clients.Naver = naver.NewClient(httpFor(redis.NaverRateLimit), log, cfg.Sources.NaverBaseURL)
	}
	// investor trend on m.stock.naver.com shares the Naver budget
	if cfg.Sources.Flow == "naver" {
		clients.KRX = krx.NewClient(httpFor(redis.NaverRateLimit), log, cfg.Sources.KRXBaseURL)
	} else {
		clients.KRX = krx.NewClient(httpFor(redis.KRXRateLimit), log, cfg.Sources.KRXBaseURL)
	}
	if cfg.Sources.Macro == "fred" {
		clients.FRED = fred.NewClient(httpFor(redis.FREDRateLimit), log, cfg.FRED.BaseURL, cfg.FRED.APIKey, cfg.FRED.CacheTTL)
		clients.ISM = ism.NewClient(log, cfg.Sources.ISMURL, cfg.Collector.FetchTimeout)
	}
	if cfg.Sources.News == "google" {
		clients.News = news.NewClient(httpFor(redis.RateLimitConfig{}), log, cfg.Sources.NewsBaseURL, cfg.Sources.NewsQuery)
	}

	return NewHTTPProvider(clients, cfg.Sources, log)
}

func (p *HTTPProvider) Name() string { return "http" }

// Clients exposes the wired upstream clients (backfill reuses them)
func (p *HTTPProvider) Clients() HTTPClients { return p.clients }

func (p *HTTPProvider) FX(ctx context.Context, field contracts.Field) Outcome[float64] {
	switch field {
	case contracts.FieldUSDKRW:
		if p.clients.FX == nil {
			return Absent[float64]("fx client not configured")
		}
		return FromResult(p.clients.FX.USDKRW(ctx))
	case contracts.FieldUSDKRWPct:
		if p.clients.Yahoo == nil {
			return Absent[float64]("yahoo client not configured")
		}
		return FromResult(p.clients.Yahoo.FirstChangePct(ctx, yahoo.USDKRWSymbols...))
	default:
		return unsupported(field)
	}
}

func (p *HTTPProvider) IndexChange(ctx context.Context, field contracts.Field) Outcome[float64] {
	if code, ok := naverIndexCodes[field]; ok && p.marketSource == "naver" && p.clients.Naver != nil {
		return FromResult(p.clients.Naver.IndexChange(ctx, code))
	}
	symbol, ok := yahooIndexSymbols[field]
	if !ok {
		return unsupported(field)
	}
	if p.clients.Yahoo == nil {
		return Absent[float64]("yahoo client not configured")
	}
	return FromResult(p.clients.Yahoo.ChangePct(ctx, symbol))
}

func (p *HTTPProvider) MarketLevel(ctx context.Context, field contracts.Field) Outcome[float64] {
	y := p.clients.Yahoo
	if y == nil {
		return Absent[float64]("yahoo client not configured")
	}
	switch field {
	case contracts.FieldVIX:
		return FromResult(y.LatestClose(ctx, yahoo.SymbolVIX))
	case contracts.FieldVIX3M:
		return FromResult(y.LatestClose(ctx, yahoo.SymbolVIX3M))
	case contracts.FieldUS10Y:
		v, err := y.LatestClose(ctx, yahoo.SymbolTNX)
		if err != nil {
			return AbsentErr[float64](err)
		}
		return Present(yahoo.ScaleTNX(v))
	case contracts.FieldDXY:
		return FromResult(y.FirstLatestClose(ctx, yahoo.DXYSymbols...))
	case contracts.FieldSP500FwdPE:
		return FromResult(y.ForwardPE(ctx))
	case contracts.FieldSP500FwdEPS:
		return FromResult(y.ForwardEPS(ctx))
	default:
		return unsupported(field)
	}
}

func (p *HTTPProvider) Macro(ctx context.Context, field contracts.Field) Outcome[float64] {
	if field == contracts.FieldPMI {
		if p.clients.ISM == nil {
			return Absent[float64](reasonMacroOff)
		}
		return FromResult(p.clients.ISM.ManufacturingPMI(ctx))
	}

	series, ok := fredFields[field]
	if !ok {
		return unsupported(field)
	}
	if p.clients.FRED == nil {
		return Absent[float64](reasonMacroOff)
	}
	if series.yoy {
		return FromResult(p.clients.FRED.YoY(ctx, series.id))
	}
	return FromResult(p.clients.FRED.Latest(ctx, series.id))
}

func (p *HTTPProvider) Flows(ctx context.Context, asOf time.Time) Outcome[contracts.KoreanMarketFlow] {
	if p.clients.KRX == nil {
		return Absent[contracts.KoreanMarketFlow]("krx client not configured")
	}

	var flows *krx.MarketFlows
	var err error
	if p.flowSource == "naver" {
		flows, err = p.clients.KRX.FetchTrendFlows(ctx)
	} else {
		flows, err = p.clients.KRX.FetchInvestorFlows(ctx, asOf)
	}
	if err != nil {
		return AbsentErr[contracts.KoreanMarketFlow](err)
	}
	return Present(toKoreanMarketFlow(flows))
}

func (p *HTTPProvider) Headlines(ctx context.Context, limit int) Outcome[[]string] {
	if p.clients.News == nil {
		return Absent[[]string](reasonNewsOff)
	}
	return FromResult(p.clients.News.Headlines(ctx, limit))
}

// toKoreanMarketFlow converts the upstream breakdown and sums the market totals
func toKoreanMarketFlow(flows *krx.MarketFlows) contracts.KoreanMarketFlow {
	out := contracts.KoreanMarketFlow{
		TradeDate: flows.TradeDate.Format("2006-01-02"),
		Source:    flows.Source,
		ByMarket:  make(map[string]contracts.InvestorFlows, len(flows.Markets)),
	}
	for name, m := range flows.Markets {
		f := contracts.InvestorFlows{
			Foreign:     m.ForeignNet,
			Institution: m.InstitutionNet,
			Retail:      m.IndividualNet,
		}
		out.ByMarket[name] = f
		out.Total = out.Total.Add(f)
	}
	return out
}

func unsupported(field contracts.Field) Outcome[float64] {
	return Absent[float64](fmt.Sprintf("unsupported field %s", field))
}
