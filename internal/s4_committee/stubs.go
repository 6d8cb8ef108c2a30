package s4_committee

import (
	"strings"

	"github.com/wonny/aegis-committee/internal/contracts"
	"github.com/wonny/aegis-committee/internal/rulesconfig"
)

// Evidence ids cited by the rule stubs
const (
	evKOSPIChange   = "snapshot.market_summary.kospi_change_pct"
	evUSDKRW        = "snapshot.market_summary.usdkrw"
	evMarketNote    = "snapshot.market_summary.note"
	evFlowNote      = "snapshot.flow_summary.note"
	evHeadlines     = "snapshot.news_headlines"
	evWatchlist     = "snapshot.watchlist"
	evVIX           = "snapshot.markets.volatility.vix"
	evDXY           = "snapshot.macro.daily.dxy"
	evRealRate      = "snapshot.macro.structural.real_rate"
	evEarningsScore = "snapshot.derived_signals.earnings_signal_score"
	evBreadthScore  = "snapshot.derived_signals.breadth_signal_score"
	evLiquidity     = "snapshot.derived_signals.liquidity_signal_score"
)

// Stubs produces deterministic stances from snapshot facts.
// Every agent is covered, so a stub stance is always available as fallback.
// ⭐ SSOT: 규칙 기반 에이전트 (LLM 실패 시 대체)
type Stubs struct {
	rules rulesconfig.Stubs
}

// NewStubs creates the rule stubs with thresholds from the rules config
func NewStubs(rules rulesconfig.Stubs) *Stubs {
	return &Stubs{rules: rules}
}

// Stance returns the stub stance of agent
func (s *Stubs) Stance(agent contracts.AgentName, snap *contracts.Snapshot) contracts.Stance {
	switch agent {
	case contracts.AgentMacro:
		return s.macro(snap)
	case contracts.AgentFlow:
		return s.flow(snap)
	case contracts.AgentSector:
		return s.sector(snap)
	case contracts.AgentRisk:
		return s.risk(snap)
	case contracts.AgentEarnings:
		return s.earnings(snap)
	case contracts.AgentBreadth:
		return s.breadth(snap)
	case contracts.AgentLiquidity:
		return s.liquidity(snap)
	default:
		// 규칙이 없는 에이전트는 중립 (schema 검증에서 agent_name으로 걸러짐)
		return stance(agent, verdict{
			tag:        contracts.RegimeNeutral,
			confidence: contracts.ConfidenceLow,
			claims:     []string{"No rule is defined for this agent."},
			comment:    "정의된 규칙이 없어 중립 의견을 유지합니다.",
		}, "snapshot.watchlist")
	}
}

// All returns one stub stance per agent in reporting order
func (s *Stubs) All(snap *contracts.Snapshot) []contracts.Stance {
	agents := contracts.AllAgents()
	out := make([]contracts.Stance, 0, len(agents))
	for _, agent := range agents {
		out = append(out, s.Stance(agent, snap))
	}
	return out
}

type verdict struct {
	tag        contracts.RegimeTag
	confidence contracts.Confidence
	claims     []string
	comment    string
}

func stance(agent contracts.AgentName, v verdict, evidence ...string) contracts.Stance {
	return contracts.Stance{
		AgentName:     agent,
		CoreClaims:    v.claims,
		RegimeTag:     v.tag,
		EvidenceIDs:   evidence,
		Confidence:    v.confidence,
		KoreanComment: v.comment,
	}
}

func (s *Stubs) macro(snap *contracts.Snapshot) contracts.Stance {
	ms := snap.MarketSummary
	note := strings.ToLower(ms.Note)

	var v verdict
	switch {
	case zeroOrNil(ms.USDKRW) && zeroOrNil(ms.KOSPIChangePct) && strings.Contains(note, "fetch_failed"):
		v = verdict{contracts.RegimeNeutral, contracts.ConfidenceLow,
			[]string{"Macro data unavailable.", "Use neutral stance."},
			"거시 데이터가 부족해 중립을 유지합니다."}
	case containsAny(note, s.rules.Macro.Keywords):
		v = verdict{contracts.RegimeRiskOff, contracts.ConfidenceMed,
			[]string{"Macro tone is cautious.", "Volatility noted.", "Prefer defense."},
			"변동성 경고가 있어 방어적 접근이 필요합니다."}
	default:
		v = verdict{contracts.RegimeNeutral, contracts.ConfidenceMed,
			[]string{"Macro tone is balanced.", "No major shocks.", "Stay selective."},
			"거시는 균형적이며 선택적 대응이 적절합니다."}
	}
	return stance(contracts.AgentMacro, v, evUSDKRW, evKOSPIChange, evHeadlines)
}

func (s *Stubs) flow(snap *contracts.Snapshot) contracts.Stance {
	fs := snap.FlowSummary
	note := strings.ToLower(fs.Note)

	var v verdict
	switch {
	case (zeroOrNil(fs.ForeignNet) || zeroOrNil(fs.InstitutionNet) || zeroOrNil(fs.RetailNet)) &&
		strings.Contains(note, "fetch_failed"):
		v = verdict{contracts.RegimeNeutral, contracts.ConfidenceLow,
			[]string{"Flow data unavailable.", "Use neutral stance."},
			"수급 데이터가 없어 중립을 유지합니다."}
	case containsAny(note, s.rules.Flow.Keywords):
		v = verdict{contracts.RegimeRiskOn, contracts.ConfidenceHigh,
			[]string{"Flows are supportive.", "Demand leads supply.", "Risk appetite rising."},
			"수급 흐름이 우호적이라 위험 선호가 높아 보입니다."}
	default:
		v = verdict{contracts.RegimeNeutral, contracts.ConfidenceMed,
			[]string{"Flows are balanced.", "No strong tilt.", "Keep positions moderate."},
			"수급이 균형적이라 포지션은 보수적으로 유지하세요."}
	}
	return stance(contracts.AgentFlow, v, evFlowNote, evWatchlist)
}

// sector reads sector tone from headlines (no per-sector feed exists)
func (s *Stubs) sector(snap *contracts.Snapshot) contracts.Stance {
	text := strings.ToLower(strings.Join(snap.NewsHeadlines, " "))

	v := verdict{contracts.RegimeNeutral, contracts.ConfidenceLow,
		[]string{"Sector moves are mixed.", "No clear leader.", "Maintain balance."},
		"섹터 주도주가 불명확해 균형 유지가 낫습니다."}
	if containsAll(text, s.rules.Sector.AllOf) {
		v = verdict{contracts.RegimeRiskOn, contracts.ConfidenceMed,
			[]string{"Growth sectors show strength.", "Tech tone is firm.", "Risk appetite improving."},
			"성장/테크가 강해 위험 선호가 개선됩니다."}
	}
	return stance(contracts.AgentSector, v, evHeadlines, evWatchlist)
}

func (s *Stubs) risk(snap *contracts.Snapshot) contracts.Stance {
	text := strings.ToLower(strings.Join(snap.NewsHeadlines, " "))

	v := verdict{contracts.RegimeNeutral, contracts.ConfidenceMed,
		[]string{"Risk signals stable.", "No acute stress.", "Maintain discipline."},
		"급격한 리스크는 없어 규율을 유지하세요."}
	if containsAny(text, s.rules.Risk.Keywords) {
		v = verdict{contracts.RegimeRiskOff, contracts.ConfidenceHigh,
			[]string{"Risk signals elevated.", "Headline risk rising.", "Reduce exposure."},
			"리스크 신호가 높아 노출 축소가 필요합니다."}
	}
	return stance(contracts.AgentRisk, v, evUSDKRW, evKOSPIChange, evHeadlines)
}

func (s *Stubs) earnings(snap *contracts.Snapshot) contracts.Stance {
	r := s.rules.Earnings
	score := snap.DerivedSignals.EarningsScore
	kospi := snap.Markets.KR.KOSPIPct

	var v verdict
	switch {
	case score <= r.RiskOffScore:
		v = verdict{contracts.RegimeRiskOff, contracts.ConfidenceMed,
			[]string{
				"실적/가이던스 하향 신호가 누적됩니다.",
				"이익 추정치 둔화 가능성이 커졌습니다.",
				"밸류에이션 리레이팅 압력이 발생할 수 있습니다.",
			},
			"이익 모멘텀이 약해져 방어적 접근이 유리합니다."}
	case score >= r.RiskOnScore || (kospi != nil && *kospi >= r.RiskOnKOSPIPct):
		v = verdict{contracts.RegimeRiskOn, contracts.ConfidenceMed,
			[]string{
				"실적/가이던스 상향 관련 단서가 우세합니다.",
				"이익 추정치 개선 기대가 유지됩니다.",
				"주가 상승의 펀더멘털 정당화 가능성이 있습니다.",
			},
			"이익 모멘텀이 견조해 위험자산 선호를 지지합니다."}
	default:
		v = verdict{contracts.RegimeNeutral, contracts.ConfidenceLow,
			[]string{
				"실적 추정치 방향성이 뚜렷하지 않습니다.",
				"상향/하향 신호가 혼재되어 있습니다.",
				"확증 신호 전까지 중립 대응이 적절합니다.",
			},
			"이익 모멘텀 신호가 혼재되어 중립을 유지합니다."}
	}
	return stance(contracts.AgentEarnings, v, evEarningsScore, evHeadlines, evMarketNote)
}

func (s *Stubs) breadth(snap *contracts.Snapshot) contracts.Stance {
	r := s.rules.Breadth
	vix := snap.Markets.Volatility.VIX

	// Without a cross-market score, fall back to the domestic average
	spread := snap.DerivedSignals.BreadthScore
	if spread == nil {
		spread = average(snap.Markets.KR.KOSPIPct, snap.Markets.KR.KOSDAQPct)
	}

	calm := vix == nil || *vix < r.RiskOnMaxVIX
	stressed := vix != nil && *vix >= r.RiskOffVIX

	var v verdict
	switch {
	case spread != nil && *spread >= r.RiskOnSpread && calm:
		v = verdict{contracts.RegimeRiskOn, contracts.ConfidenceMed,
			[]string{
				"국내 지수 확산 강도가 미국 대비 우위입니다.",
				"시장 내부체력(브레드스)이 개선되는 구간입니다.",
				"추세 추종 전략의 효율이 높아질 수 있습니다.",
			},
			"브레드스가 개선되어 기술적 추세는 우호적입니다."}
	case (spread != nil && *spread <= r.RiskOffSpread) || stressed:
		v = verdict{contracts.RegimeRiskOff, contracts.ConfidenceMed,
			[]string{
				"지수 확산이 약화되어 추세 신뢰도가 낮습니다.",
				"변동성 레짐이 위험자산에 불리한 구간입니다.",
				"손절·비중관리 규칙을 강화할 필요가 있습니다.",
			},
			"브레드스 약화와 변동성 상승으로 보수적 대응이 필요합니다."}
	default:
		v = verdict{contracts.RegimeNeutral, contracts.ConfidenceLow,
			[]string{
				"추세 확산과 역추세 신호가 공존합니다.",
				"기술적 우위가 명확하지 않습니다.",
				"방향 확정 전까지 균형 비중이 적절합니다.",
			},
			"브레드스 신호가 혼재되어 중립 대응이 합리적입니다."}
	}
	return stance(contracts.AgentBreadth, v, evBreadthScore, evVIX, evMarketNote)
}

func (s *Stubs) liquidity(snap *contracts.Snapshot) contracts.Stance {
	r := s.rules.Liquidity
	score := snap.DerivedSignals.LiquidityScore
	dxy := snap.Macro.Daily.DXY
	realRate := snap.Macro.Structural.RealRate
	curve := snap.Macro.Daily.Spread210

	// any single tight proxy is enough for RISK_OFF; RISK_ON needs a soft dollar
	// and no present proxy pointing the other way
	tight := score <= r.RiskOffScore ||
		(dxy != nil && *dxy >= r.RiskOffDXY) ||
		(realRate != nil && *realRate >= r.RiskOffRealRate) ||
		(curve != nil && *curve < r.RiskOffCurve)
	easy := score >= r.RiskOnScore ||
		(dxy != nil && *dxy <= r.RiskOnDXY &&
			(realRate == nil || *realRate <= r.RiskOnRealRate) &&
			(curve == nil || *curve >= r.RiskOnCurve))

	var v verdict
	switch {
	case tight:
		v = verdict{contracts.RegimeRiskOff, contracts.ConfidenceMed,
			[]string{
				"달러·실질금리 환경이 위험자산에 부담으로 작용합니다.",
				"유동성 여건이 타이트해 밸류에이션 할인 요인이 큽니다.",
				"정책/금리 민감 자산 비중 축소가 필요합니다.",
			},
			"유동성 여건이 긴축적이라 보수적 운용이 유리합니다."}
	case easy:
		v = verdict{contracts.RegimeRiskOn, contracts.ConfidenceMed,
			[]string{
				"달러 압력이 완화되고 금리 부담이 제한적입니다.",
				"유동성 환경이 위험자산 회복에 우호적입니다.",
				"정책 충격 가능성이 낮아 비중 확대 여지가 있습니다.",
			},
			"유동성/정책 환경이 우호적이라 리스크온을 지지합니다."}
	default:
		v = verdict{contracts.RegimeNeutral, contracts.ConfidenceLow,
			[]string{
				"유동성 지표가 방향성 없이 혼재되어 있습니다.",
				"정책 민감도는 높지만 확증 신호는 부족합니다.",
				"과도한 베팅보다 리스크 균형이 유효합니다.",
			},
			"유동성 신호가 혼재되어 중립적 비중 관리가 적절합니다."}
	}
	return stance(contracts.AgentLiquidity, v, evLiquidity, evDXY, evRealRate)
}

func zeroOrNil(p *float64) bool {
	return p == nil || *p == 0
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if k != "" && strings.Contains(text, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

func containsAll(text string, keywords []string) bool {
	if len(keywords) == 0 {
		return false
	}
	for _, k := range keywords {
		if !strings.Contains(text, strings.ToLower(k)) {
			return false
		}
	}
	return true
}

func average(values ...*float64) *float64 {
	sum, n := 0.0, 0
	for _, v := range values {
		if v != nil {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return nil
	}
	avg := sum / float64(n)
	return &avg
}
