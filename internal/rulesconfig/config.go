package rulesconfig

import "github.com/wonny/aegis-committee/internal/s0_data/quality"

// Config는 위원회 규칙(신호 어휘, 스텁 임계값, 품질 기준)의 전체 설정
type Config struct {
	Meta    Meta           `yaml:"meta" json:"meta"`
	Signals Signals        `yaml:"signals" json:"signals"`
	Stubs   Stubs          `yaml:"stubs" json:"stubs"`
	Guards  Guards         `yaml:"guards" json:"guards"`
	Quality quality.Config `yaml:"quality" json:"quality"`
}

// Meta 메타 정보
type Meta struct {
	RulesID string `yaml:"rules_id" json:"rules_id"`
	Version string `yaml:"version" json:"version"`
}

// Signals S1: 파생 신호 어휘
type Signals struct {
	Earnings EarningsVocabulary `yaml:"earnings" json:"earnings"`
}

// EarningsVocabulary holds the keyword lists matched against headlines (case-insensitive)
type EarningsVocabulary struct {
	Positive []string `yaml:"positive" json:"positive"`
	Negative []string `yaml:"negative" json:"negative"`
}

// Stubs S4: 규칙 기반 에이전트 임계값
type Stubs struct {
	Macro     KeywordRule   `yaml:"macro" json:"macro"`
	Flow      KeywordRule   `yaml:"flow" json:"flow"`
	Risk      KeywordRule   `yaml:"risk" json:"risk"`
	Sector    SectorRule    `yaml:"sector" json:"sector"`
	Earnings  EarningsRule  `yaml:"earnings" json:"earnings"`
	Breadth   BreadthRule   `yaml:"breadth" json:"breadth"`
	Liquidity LiquidityRule `yaml:"liquidity" json:"liquidity"`
}

// KeywordRule fires when any keyword appears in the inspected text
type KeywordRule struct {
	Keywords []string `yaml:"keywords" json:"keywords"`
}

// SectorRule fires when every keyword appears in the headline text
type SectorRule struct {
	AllOf []string `yaml:"all_of" json:"all_of"`
}

type EarningsRule struct {
	RiskOffScore   float64 `yaml:"risk_off_score" json:"risk_off_score"`       // score <= → RISK_OFF
	RiskOnScore    float64 `yaml:"risk_on_score" json:"risk_on_score"`         // score >= → RISK_ON
	RiskOnKOSPIPct float64 `yaml:"risk_on_kospi_pct" json:"risk_on_kospi_pct"` // or kospi_pct >=
}

type BreadthRule struct {
	RiskOnSpread  float64 `yaml:"risk_on_spread" json:"risk_on_spread"`
	RiskOnMaxVIX  float64 `yaml:"risk_on_max_vix" json:"risk_on_max_vix"`
	RiskOffSpread float64 `yaml:"risk_off_spread" json:"risk_off_spread"`
	RiskOffVIX    float64 `yaml:"risk_off_vix" json:"risk_off_vix"`
}

// LiquidityRule: RISK_OFF when the score or any single proxy is tight,
// RISK_ON when the score is loose or every present proxy is easy
type LiquidityRule struct {
	RiskOffScore    float64 `yaml:"risk_off_score" json:"risk_off_score"`
	RiskOnScore     float64 `yaml:"risk_on_score" json:"risk_on_score"`
	RiskOffDXY      float64 `yaml:"risk_off_dxy" json:"risk_off_dxy"`
	RiskOnDXY       float64 `yaml:"risk_on_dxy" json:"risk_on_dxy"`
	RiskOffRealRate float64 `yaml:"risk_off_real_rate" json:"risk_off_real_rate"`
	RiskOnRealRate  float64 `yaml:"risk_on_real_rate" json:"risk_on_real_rate"`
	RiskOffCurve    float64 `yaml:"risk_off_curve" json:"risk_off_curve"` // spread_2_10 below → RISK_OFF
	RiskOnCurve     float64 `yaml:"risk_on_curve" json:"risk_on_curve"`
}

// Guards S5: 출력 안전장치 어휘
// Enum values (RISK_ON, CAUTION, HIGH, ...) are always allowed and need not be listed.
type Guards struct {
	ForbiddenPhrases []string `yaml:"forbidden_phrases" json:"forbidden_phrases"` // case-insensitive substring
	NonTickerTokens  []string `yaml:"non_ticker_tokens" json:"non_ticker_tokens"` // uppercase vocabulary, not tickers
}
