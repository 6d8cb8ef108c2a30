package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wonny/aegis-committee/internal/contracts"
)

// 고정 문구 번역 (모르는 문장은 원문 유지)
var sentenceKO = map[string]string{
	"Committee maintains a neutral posture with selective positioning.": "위원회는 선별적 포지셔닝을 전제로 중립적 입장을 유지합니다.",
	"Committee adopts a defensive posture and reduces risk exposure.":    "위원회는 방어적 입장을 채택하고 위험 노출을 줄입니다.",
	"No consensus can be formed due to missing stances.":                 "의견이 없어 합의를 도출할 수 없습니다.",
	"No dissenting regime tags are present.":                             "다른 국면 태그의 이견은 없습니다.",
	"Minority risk regime can change positioning boundaries.":            "소수 의견 국면은 포지션 경계에 영향을 줄 수 있습니다.",
	"Maintain balanced exposure.":                                        "노출을 균형 있게 유지합니다.",
	"Keep risk limits tight.":                                            "리스크 한도를 엄격히 유지합니다.",
	"Avoid aggressive leverage.":                                         "과도한 레버리지는 피합니다.",
	"Keep exposure focused on resilience.":                               "방어력 있는 자산 위주로 노출을 유지합니다.",
	"Favor defensive positioning.":                                       "방어적 포지셔닝을 우선합니다.",
	"Avoid high-beta risk assets.":                                       "고베타 위험자산은 피합니다.",
}

var phraseKO = []struct{ en, ko string }{
	{"Majority regime tag", "다수 국면 태그"},
	{"Shared evidence focus", "공통 근거"},
	{"Shared claim", "공통 주장"},
	{"Regime tags", "국면 태그"},
}

var agentKO = map[contracts.AgentName]string{
	contracts.AgentMacro:     "매크로",
	contracts.AgentFlow:      "수급",
	contracts.AgentSector:    "섹터",
	contracts.AgentRisk:      "리스크",
	contracts.AgentEarnings:  "실적",
	contracts.AgentBreadth:   "브레드스",
	contracts.AgentLiquidity: "유동성",
}

var levelKO = map[contracts.GuidanceLevel]string{
	contracts.GuidanceOK:      "유지",
	contracts.GuidanceCaution: "주의",
	contracts.GuidanceAvoid:   "회피",
}

// RenderMarkdown renders the human-readable run report. Missing values print as n/a.
func RenderMarkdown(r *contracts.Report) string {
	var b strings.Builder
	line := func(format string, args ...interface{}) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	cr := r.CommitteeResult
	snap := r.Snapshot

	line("# 데일리 AI 투자위원회")
	line("")
	line("날짜: %s", r.MarketDate)
	line("생성 시각: %s", r.GeneratedAt.UTC().Format("2006-01-02T15:04:05Z07:00"))
	line("실행 ID: %s", r.RunID)

	line("")
	line("## 합의 결과")
	line("%s", translateSentence(cr.Consensus))

	line("")
	line("## 핵심 포인트")
	for _, kp := range cr.KeyPoints {
		line("- %s (출처: %s)", translatePhrase(kp.Point), strings.Join(kp.Sources, ", "))
	}

	line("")
	line("## AI 한줄 의견")
	for _, s := range r.Stances {
		comment := s.KoreanComment
		if comment == "" {
			comment = "n/a"
		}
		line("- %s: %s", agentLabel(s.AgentName), comment)
	}

	line("")
	line("## AI 핵심 주장")
	for _, s := range r.Stances {
		line("### %s (%s, %s)", agentLabel(s.AgentName), s.RegimeTag, s.Confidence)
		for _, c := range s.CoreClaims {
			line("- %s", c)
		}
	}

	tally := map[contracts.RegimeTag]int{}
	for _, s := range r.Stances {
		tally[s.RegimeTag]++
	}
	line("")
	line("국면 투표: NEUTRAL=%d, RISK_ON=%d, RISK_OFF=%d",
		tally[contracts.RegimeNeutral], tally[contracts.RegimeRiskOn], tally[contracts.RegimeRiskOff])

	line("")
	line("## 이견")
	for _, d := range cr.Disagreements {
		line("- %s: 다수=%s, 소수=%s, 에이전트=[%s]. %s",
			translatePhrase(d.Topic), d.Majority, d.Minority,
			strings.Join(d.MinorityAgents, ", "), translateSentence(d.WhyItMatters))
	}

	line("")
	line("## 운영 가이드")
	for _, g := range cr.OpsGuidance {
		line("- [%s/%s] %s", g.Level, levelKO[g.Level], translateSentence(g.Text))
	}

	m := snap.Markets
	line("")
	line("## 글로벌 시장")
	line("국내: KOSPI %s, KOSDAQ %s", pct(m.KR.KOSPIPct), pct(m.KR.KOSDAQPct))
	line("미국: S&P500 %s, NASDAQ %s, DOW %s", pct(m.US.SP500Pct), pct(m.US.NASDAQPct), pct(m.US.DOWPct))
	line("환율: USD/KRW %s (%s)", num(m.FX.USDKRW, 2, ""), pct(m.FX.USDKRWPct))
	line("변동성: VIX %s / VIX3M %s / 기간 스프레드 %s",
		num(m.Volatility.VIX, 1, ""), num(m.Volatility.VIX3M, 1, ""), num(m.Volatility.VIXTermSpread, 2, ""))

	ms := snap.MarketSummary
	line("")
	line("## 시장 지표")
	line("- KOSPI 일일 등락: **%s**", pct(ms.KOSPIChangePct))
	line("- USD/KRW: **%s**", num(ms.USDKRW, 2, ""))
	line("- 요약: %s", ms.Note)

	fs := snap.FlowSummary
	line("")
	line("## 수급 (억원, 순매수)")
	line("- 외국인: **%s** / 기관: **%s** / 개인: **%s**", signed0(fs.ForeignNet), signed0(fs.InstitutionNet), signed0(fs.RetailNet))
	line("- 비고: %s", fs.Note)

	line("")
	line("## 한국 수급 (KOSPI/KOSDAQ, 억원 순매수)")
	if kf := snap.KoreanMarketFlow; kf == nil {
		line("- 데이터: unavailable")
	} else {
		line("- 기준일: %s (%s)", kf.TradeDate, kf.Source)
		for _, market := range []string{"KOSPI", "KOSDAQ"} {
			inv, ok := kf.ByMarket[market]
			if !ok {
				line("- %s: n/a", market)
				continue
			}
			line("- %s: 외국인 **%+.0f** / 기관 **%+.0f** / 개인 **%+.0f**", market, inv.Foreign, inv.Institution, inv.Retail)
		}
	}

	mac := snap.Macro
	d, mth, q, st, fw := mac.Daily, mac.Monthly, mac.Quarterly, mac.Structural, mac.Forward
	line("")
	line("## 매크로 (요약)")
	line("- 일간: 미10년 %s / 미2년 %s / 2-10 %s", num(d.US10Y, 2, "%"), num(d.US2Y, 2, "%"), num(d.Spread210, 2, "%p"))
	line("        DXY %s / USDKRW %s / VIX %s", num(d.DXY, 2, ""), num(d.USDKRW, 2, ""), num(d.VIX, 1, ""))
	line("- 월간: 실업률 %s, CPI YoY %s, Core CPI YoY %s, PCE YoY %s, PMI %s",
		num(mth.UnemploymentRate, 2, "%"), num(mth.CPIYoY, 2, "%"), num(mth.CoreCPIYoY, 2, "%"), num(mth.PCEYoY, 2, "%"), num(mth.PMI, 1, ""))
	line("          임금 레벨 %s, 임금 YoY %s", num(mth.WageLevel, 2, ""), num(mth.WageYoY, 2, "%"))
	line("- 분기: 실질 GDP %s, GDP QoQ 연율 %s", num(q.RealGDP, 2, ""), num(q.GDPQoQAnnualized, 2, "%"))
	line("- 구조: 기준금리 %s, 실질금리 %s, HY OAS %s, IG OAS %s, 연준 자산 %s",
		num(st.FedFundsRate, 2, "%"), num(st.RealRate, 2, "%"), num(st.HYOAS, 2, "%p"), num(st.IGOAS, 2, "%p"), num(st.FedBalanceSheet, 0, ""))
	line("- 선행: S&P500 PER %s, EPS %s, EPS 3개월 변화 %s",
		num(fw.SP500ForwardPE, 2, ""), num(fw.SP500ForwardEPS, 2, ""), num(fw.EPSRevision3M, 2, "%"))

	ds := snap.DerivedSignals
	line("")
	line("## 파생 신호")
	line("- 실적 %.3f / 브레드스 %s / 유동성 %.3f", ds.EarningsScore, num(ds.BreadthScore, 3, ""), ds.LiquidityScore)
	if ds.Note != "" {
		line("- 비고: %s", ds.Note)
	}

	line("")
	line("## 데이터 소스 상태")
	failures := r.SourceStatus.Failures()
	line("- 정상 %d / 실패 %d", r.SourceStatus.Len()-len(failures), len(failures))
	fields := make([]string, 0, len(failures))
	for f := range failures {
		fields = append(fields, string(f))
	}
	sort.Strings(fields)
	for _, f := range fields {
		line("- %s: FAIL (%s)", f, failures[contracts.Field(f)])
	}

	return b.String()
}

func translateSentence(s string) string {
	if ko, ok := sentenceKO[s]; ok {
		return ko
	}
	return s
}

func translatePhrase(s string) string {
	for _, p := range phraseKO {
		if strings.HasPrefix(s, p.en) {
			return p.ko + strings.TrimPrefix(s, p.en)
		}
	}
	return s
}

func agentLabel(a contracts.AgentName) string {
	if ko, ok := agentKO[a]; ok {
		return ko
	}
	return string(a)
}

func pct(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%+.2f%%", *v)
}

func num(v *float64, digits int, suffix string) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.*f%s", digits, *v, suffix)
}

func signed0(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%+.0f", *v)
}
