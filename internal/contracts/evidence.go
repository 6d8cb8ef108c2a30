package contracts

import (
	"regexp"
	"sort"
)

// EvidenceIDPattern is the shape of every evidence id
var EvidenceIDPattern = regexp.MustCompile(`^snapshot\.[a-z][a-z0-9_]*(\.[a-z][a-z0-9_]*)*$`)

// MaxEvidenceIDLength bounds a single evidence id
const MaxEvidenceIDLength = 60

// ⭐ SSOT: 에이전트가 인용할 수 있는 스냅샷 경로 허용 목록
var evidenceAllowList = map[string]struct{}{
	"snapshot.market_summary.note":             {},
	"snapshot.market_summary.kospi_change_pct": {},
	"snapshot.market_summary.usdkrw":           {},

	"snapshot.flow_summary.note":            {},
	"snapshot.flow_summary.foreign_net":     {},
	"snapshot.flow_summary.institution_net": {},
	"snapshot.flow_summary.retail_net":      {},

	"snapshot.markets.kr.kospi_pct":               {},
	"snapshot.markets.kr.kosdaq_pct":              {},
	"snapshot.markets.us.sp500_pct":               {},
	"snapshot.markets.us.nasdaq_pct":              {},
	"snapshot.markets.us.dow_pct":                 {},
	"snapshot.markets.fx.usdkrw":                  {},
	"snapshot.markets.fx.usdkrw_pct":              {},
	"snapshot.markets.volatility.vix":             {},
	"snapshot.markets.volatility.vix3m":           {},
	"snapshot.markets.volatility.vix_term_spread": {},

	"snapshot.macro.daily.us10y":       {},
	"snapshot.macro.daily.us2y":        {},
	"snapshot.macro.daily.spread_2_10": {},
	"snapshot.macro.daily.vix":         {},
	"snapshot.macro.daily.dxy":         {},
	"snapshot.macro.daily.usdkrw":      {},

	"snapshot.macro.monthly.unemployment_rate": {},
	"snapshot.macro.monthly.cpi_yoy":           {},
	"snapshot.macro.monthly.core_cpi_yoy":      {},
	"snapshot.macro.monthly.pce_yoy":           {},
	"snapshot.macro.monthly.pmi":               {},
	"snapshot.macro.monthly.wage_level":        {},
	"snapshot.macro.monthly.wage_yoy":          {},

	"snapshot.macro.quarterly.real_gdp":           {},
	"snapshot.macro.quarterly.gdp_qoq_annualized": {},

	"snapshot.macro.structural.fed_funds_rate":    {},
	"snapshot.macro.structural.breakeven_10y":     {},
	"snapshot.macro.structural.real_rate":         {},
	"snapshot.macro.structural.hy_oas":            {},
	"snapshot.macro.structural.ig_oas":            {},
	"snapshot.macro.structural.fed_balance_sheet": {},

	"snapshot.macro.forward.sp500_forward_pe":  {},
	"snapshot.macro.forward.sp500_forward_eps": {},
	"snapshot.macro.forward.eps_revision_3m":   {},

	"snapshot.derived_signals.earnings_signal_score":  {},
	"snapshot.derived_signals.breadth_signal_score":   {},
	"snapshot.derived_signals.liquidity_signal_score": {},
	"snapshot.derived_signals.note":                   {},

	"snapshot.news_headlines": {},
	"snapshot.watchlist":      {},
}

// IsAllowedEvidence reports whether id is well-formed and allow-listed
func IsAllowedEvidence(id string) bool {
	if len(id) > MaxEvidenceIDLength || !EvidenceIDPattern.MatchString(id) {
		return false
	}
	_, ok := evidenceAllowList[id]
	return ok
}

// EvidenceAllowList returns the allow-list sorted (used in LLM prompts)
func EvidenceAllowList() []string {
	out := make([]string, 0, len(evidenceAllowList))
	for id := range evidenceAllowList {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
