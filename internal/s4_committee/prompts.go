package s4_committee

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wonny/aegis-committee/internal/contracts"
)

const outputRules = "Output JSON only. No markdown. " +
	"Required keys: agent_name, core_claims, regime_tag, evidence_ids, confidence. Optional key: korean_comment. " +
	"core_claims must be 1~3 short lines. " +
	"regime_tag must be one of RISK_ON/NEUTRAL/RISK_OFF. " +
	"confidence must be one of LOW/MED/HIGH. " +
	"evidence_ids must use allowed snapshot paths only. " +
	"Never promise returns and never name tickers outside the watchlist."

// 에이전트별 역할 프롬프트
var agentPrompts = map[contracts.AgentName]string{
	contracts.AgentMacro: "You are the MACRO pre-analysis agent for an investment committee. " +
		"Be conservative, explicitly acknowledge uncertainty, and avoid overconfident claims. " +
		"Focus on macro regime interpretation from market_summary and macro context. ",
	contracts.AgentFlow: "You are the FLOW pre-analysis agent. " +
		"Map numeric flow context to directional interpretation with stable logic. " +
		"Prefer consistency over creativity. ",
	contracts.AgentSector: "You are the SECTOR pre-analysis agent. " +
		"Perform keyword/sector signal classification and produce concise claims. " +
		"Do not invent unseen sectors or tickers. ",
	contracts.AgentRisk: "You are the RISK pre-analysis agent. " +
		"Precision is critical: avoid false alarms and overreaction. " +
		"Only emit RISK_OFF when risk evidence is concrete. ",
	contracts.AgentEarnings: "You are the EARNINGS-REVISION pre-analysis agent. " +
		"Judge the direction of earnings and guidance revisions from headlines, forward EPS and the earnings signal score. ",
	contracts.AgentBreadth: "You are the BREADTH pre-analysis agent. " +
		"Compare domestic and US index diffusion and the volatility regime. Do not extrapolate one session. ",
	contracts.AgentLiquidity: "You are the LIQUIDITY pre-analysis agent. " +
		"Read the dollar, real rates, the 2s10s curve and credit spreads as policy and liquidity proxies. ",
}

// SystemPrompt returns the role prompt of agent with the live market context appended
func SystemPrompt(agent contracts.AgentName, snap *contracts.Snapshot) string {
	return agentPrompts[agent] + outputRules + contextBlock(snap)
}

// UserPrompt carries the full snapshot and the evidence allow-list
func UserPrompt(snap *contracts.Snapshot) (string, error) {
	payload := map[string]interface{}{
		"snapshot":             snap,
		"instruction":          "Generate one stance JSON for this agent.",
		"allowed_evidence_ids": contracts.EvidenceAllowList(),
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal user prompt: %w", err)
	}
	return string(b), nil
}

func contextBlock(snap *contracts.Snapshot) string {
	m := snap.Markets

	var b strings.Builder
	b.WriteString("\n\nMarket Context (use this as primary evidence):\n")
	fmt.Fprintf(&b, "- KOSPI: %s\n", signedPct(m.KR.KOSPIPct))
	fmt.Fprintf(&b, "- KOSDAQ: %s\n", signedPct(m.KR.KOSDAQPct))
	fmt.Fprintf(&b, "- S&P500: %s\n", signedPct(m.US.SP500Pct))
	fmt.Fprintf(&b, "- NASDAQ: %s\n", signedPct(m.US.NASDAQPct))
	fmt.Fprintf(&b, "- DOW: %s\n", signedPct(m.US.DOWPct))
	fmt.Fprintf(&b, "- USD/KRW: %s (%s)\n", level(m.FX.USDKRW), signedPct(m.FX.USDKRWPct))
	fmt.Fprintf(&b, "- VIX: %s\n", level(m.Volatility.VIX))
	fmt.Fprintf(&b, "- Market note: %s\n", snap.MarketSummary.Note)
	fmt.Fprintf(&b, "- Flow note: %s\n", snap.FlowSummary.Note)

	b.WriteString("\nNews Headlines:\n")
	if len(snap.NewsHeadlines) == 0 {
		b.WriteString("- (none)\n")
	}
	for _, h := range snap.NewsHeadlines {
		fmt.Fprintf(&b, "- %s\n", h)
	}
	return b.String()
}

func signedPct(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%+.2f%%", *v)
}

func level(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *v)
}
