package contracts

// Snapshot is one run's consolidated market/macro fact bundle.
// ⭐ SSOT: S2 → S3/S4 전달 데이터. 생성 후 변경 금지
//
// Every *float64 is independently nullable: nil means the fetch failed
// (or no value exists), never "zero". A real zero is a non-nil pointer to 0.
type Snapshot struct {
	MarketSummary    MarketSummary     `json:"market_summary"`
	FlowSummary      FlowSummary       `json:"flow_summary"`
	Markets          Markets           `json:"markets"`
	Macro            Macro             `json:"macro"`
	DerivedSignals   DerivedSignals    `json:"derived_signals"`
	NewsHeadlines    []string          `json:"news_headlines" validate:"max=10,dive,required,max=300"`
	Watchlist        []string          `json:"watchlist" validate:"min=1,max=50,dive,required,max=12"`
	KoreanMarketFlow *KoreanMarketFlow `json:"korean_market_flow,omitempty"`
}

// MarketSummary is the headline market line of the report
type MarketSummary struct {
	Note           string   `json:"note" validate:"required,max=500"`
	KOSPIChangePct *float64 `json:"kospi_change_pct"`
	USDKRW         *float64 `json:"usdkrw"`
}

// FlowSummary holds net buying by investor class, KRW 100M units (억원)
type FlowSummary struct {
	Note           string   `json:"note" validate:"required,max=500"`
	ForeignNet     *float64 `json:"foreign_net"`
	InstitutionNet *float64 `json:"institution_net"`
	RetailNet      *float64 `json:"retail_net"`
}

// Markets groups regional index changes, FX and volatility
type Markets struct {
	KR         KRMarkets  `json:"kr"`
	US         USMarkets  `json:"us"`
	FX         FXMarkets  `json:"fx"`
	Volatility Volatility `json:"volatility"`
}

type KRMarkets struct {
	KOSPIPct  *float64 `json:"kospi_pct"`
	KOSDAQPct *float64 `json:"kosdaq_pct"`
}

type USMarkets struct {
	SP500Pct  *float64 `json:"sp500_pct"`
	NASDAQPct *float64 `json:"nasdaq_pct"`
	DOWPct    *float64 `json:"dow_pct"`
}

type FXMarkets struct {
	USDKRW    *float64 `json:"usdkrw"`
	USDKRWPct *float64 `json:"usdkrw_pct"`
}

type Volatility struct {
	VIX           *float64 `json:"vix"`
	VIX3M         *float64 `json:"vix3m"`
	VIXTermSpread *float64 `json:"vix_term_spread"`
}

// Macro groups indicators by release cadence
type Macro struct {
	Daily      DailyMacro      `json:"daily"`
	Monthly    MonthlyMacro    `json:"monthly"`
	Quarterly  QuarterlyMacro  `json:"quarterly"`
	Structural StructuralMacro `json:"structural"`
	Forward    ForwardMetrics  `json:"forward"`
}

type DailyMacro struct {
	US10Y     *float64 `json:"us10y"`
	US2Y      *float64 `json:"us2y"`
	Spread210 *float64 `json:"spread_2_10"`
	VIX       *float64 `json:"vix"`
	DXY       *float64 `json:"dxy"`
	USDKRW    *float64 `json:"usdkrw"`
}

type MonthlyMacro struct {
	UnemploymentRate *float64 `json:"unemployment_rate"`
	CPIYoY           *float64 `json:"cpi_yoy"`
	CoreCPIYoY       *float64 `json:"core_cpi_yoy"`
	PCEYoY           *float64 `json:"pce_yoy"`
	PMI              *float64 `json:"pmi"`
	WageLevel        *float64 `json:"wage_level"`
	WageYoY          *float64 `json:"wage_yoy"`
}

type QuarterlyMacro struct {
	RealGDP          *float64 `json:"real_gdp"`
	GDPQoQAnnualized *float64 `json:"gdp_qoq_annualized"`
}

// StructuralMacro holds slow-moving policy and credit indicators.
// RealRate is derived: us10y − breakeven_10y.
type StructuralMacro struct {
	FedFundsRate    *float64 `json:"fed_funds_rate"`
	Breakeven10Y    *float64 `json:"breakeven_10y"`
	RealRate        *float64 `json:"real_rate"`
	HYOAS           *float64 `json:"hy_oas"`
	IGOAS           *float64 `json:"ig_oas"`
	FedBalanceSheet *float64 `json:"fed_balance_sheet"`
}

type ForwardMetrics struct {
	SP500ForwardPE  *float64 `json:"sp500_forward_pe"`
	SP500ForwardEPS *float64 `json:"sp500_forward_eps"`
	EPSRevision3M   *float64 `json:"eps_revision_3m"`
}

// DerivedSignals are composite scores computed from already-resolved fields
type DerivedSignals struct {
	EarningsScore  float64  `json:"earnings_signal_score"`
	BreadthScore   *float64 `json:"breadth_signal_score"`
	LiquidityScore float64  `json:"liquidity_signal_score"`
	Note           string   `json:"note" validate:"max=300"`
}

// InvestorFlows is net buying per investor class in KRW 100M (억원)
type InvestorFlows struct {
	Foreign     float64 `json:"foreign"`
	Institution float64 `json:"institution"`
	Retail      float64 `json:"retail"`
}

// Add returns the element-wise sum
func (f InvestorFlows) Add(o InvestorFlows) InvestorFlows {
	return InvestorFlows{
		Foreign:     f.Foreign + o.Foreign,
		Institution: f.Institution + o.Institution,
		Retail:      f.Retail + o.Retail,
	}
}

// KoreanMarketFlow is the per-market investor breakdown behind FlowSummary
type KoreanMarketFlow struct {
	TradeDate string                   `json:"trade_date"`
	Source    string                   `json:"source"`
	ByMarket  map[string]InvestorFlows `json:"by_market"`
	Total     InvestorFlows            `json:"total"`
}

// Float returns a pointer to v (for building nullable fields)
func Float(v float64) *float64 {
	return &v
}
