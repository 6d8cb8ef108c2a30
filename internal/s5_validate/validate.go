package s5_validate

import (
	"fmt"

	"github.com/wonny/aegis-committee/internal/contracts"
)

// Snapshot validates the snapshot schema
func Snapshot(s *contracts.Snapshot) error {
	return Schema(s)
}

// Stance validates one stance: schema, then evidence allow-list
func Stance(s contracts.Stance) error {
	if err := Schema(s); err != nil {
		return err
	}
	return EvidenceIDs(s)
}

// Stances requires at least one stance and validates each
func Stances(stances []contracts.Stance) error {
	if len(stances) == 0 {
		return fail(RuleStancesRequired, "stances", "at least one stance is required")
	}
	for _, s := range stances {
		if err := Stance(s); err != nil {
			return err
		}
	}
	return nil
}

// CommitteeResult validates schema, the single-sentence consensus and the guidance levels
func CommitteeResult(r contracts.CommitteeResult) error {
	if err := Consensus(r.Consensus); err != nil {
		return err
	}
	if err := Guidance(r.OpsGuidance); err != nil {
		return err
	}
	return Schema(r)
}

// Pipeline validates every output of a run before anything is published
// ⭐ SSOT: S5 출력 검증 (실패 시 발행 금지)
func (g *Guards) Pipeline(snapshot *contracts.Snapshot, stances []contracts.Stance, result contracts.CommitteeResult) error {
	if err := Snapshot(snapshot); err != nil {
		return err
	}
	if err := Stances(stances); err != nil {
		return err
	}
	if err := CommitteeResult(result); err != nil {
		return err
	}

	generated := GeneratedTexts(stances, result)
	userFacing := append(SnapshotTexts(snapshot), generated...)
	if err := g.ForbiddenPhrases(userFacing); err != nil {
		return err
	}
	return g.Tickers(generated, snapshot.Watchlist)
}

// Report validates the final artifact: schema, then the full pipeline checks
func (g *Guards) Report(r *contracts.Report) error {
	if err := Schema(r); err != nil {
		return err
	}
	return g.Pipeline(&r.Snapshot, r.Stances, r.CommitteeResult)
}

// SnapshotTexts returns the fetched user-facing text (notes and headlines)
func SnapshotTexts(s *contracts.Snapshot) []Text {
	texts := []Text{
		{Field: "snapshot.market_summary.note", Value: s.MarketSummary.Note},
		{Field: "snapshot.flow_summary.note", Value: s.FlowSummary.Note},
		{Field: "snapshot.derived_signals.note", Value: s.DerivedSignals.Note},
	}
	for i, h := range s.NewsHeadlines {
		texts = append(texts, Text{Field: fmt.Sprintf("snapshot.news_headlines[%d]", i), Value: h})
	}
	return texts
}

// GeneratedTexts returns text produced by the committee (stances and synthesis)
func GeneratedTexts(stances []contracts.Stance, r contracts.CommitteeResult) []Text {
	var texts []Text
	for _, s := range stances {
		for i, c := range s.CoreClaims {
			texts = append(texts, Text{Field: fmt.Sprintf("stances[%s].core_claims[%d]", s.AgentName, i), Value: c})
		}
		if s.KoreanComment != "" {
			texts = append(texts, Text{Field: fmt.Sprintf("stances[%s].korean_comment", s.AgentName), Value: s.KoreanComment})
		}
	}

	texts = append(texts, Text{Field: "committee_result.consensus", Value: r.Consensus})
	for i, kp := range r.KeyPoints {
		field := fmt.Sprintf("committee_result.key_points[%d]", i)
		texts = append(texts, Text{Field: field + ".point", Value: kp.Point})
		for _, src := range kp.Sources {
			texts = append(texts, Text{Field: field + ".sources", Value: src})
		}
	}
	for i, d := range r.Disagreements {
		field := fmt.Sprintf("committee_result.disagreements[%d]", i)
		texts = append(texts,
			Text{Field: field + ".topic", Value: d.Topic},
			Text{Field: field + ".majority", Value: d.Majority},
			Text{Field: field + ".minority", Value: d.Minority},
			Text{Field: field + ".why_it_matters", Value: d.WhyItMatters},
		)
	}
	for i, g := range r.OpsGuidance {
		texts = append(texts, Text{Field: fmt.Sprintf("committee_result.ops_guidance[%d].text", i), Value: g.Text})
	}
	return texts
}
