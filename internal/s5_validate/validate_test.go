package s5_validate

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-committee/internal/contracts"
	"github.com/wonny/aegis-committee/internal/rulesconfig"
)

func validSnapshot() *contracts.Snapshot {
	return &contracts.Snapshot{
		MarketSummary: contracts.MarketSummary{Note: "KOSPI 0.84%, USD/KRW 1385.20. Headlines loaded. Flows loaded.", KOSPIChangePct: contracts.Float(0.84), USDKRW: contracts.Float(1385.2)},
		FlowSummary:   contracts.FlowSummary{Note: "Foreign net inflow 1050억원.", ForeignNet: contracts.Float(1050)},
		NewsHeadlines: []string{"Chipmakers rally", "Won steady"},
		Watchlist:     []string{"SPY", "QQQ", "XLK"},
	}
}

func validStance(agent contracts.AgentName, tag contracts.RegimeTag) contracts.Stance {
	return contracts.Stance{
		AgentName:   agent,
		CoreClaims:  []string{"Flows are balanced.", "No strong tilt."},
		RegimeTag:   tag,
		EvidenceIDs: []string{"snapshot.flow_summary.note", "snapshot.watchlist"},
		Confidence:  contracts.ConfidenceMed,
	}
}

func validResult() contracts.CommitteeResult {
	return contracts.CommitteeResult{
		Consensus: "Committee maintains a neutral posture with selective positioning.",
		KeyPoints: []contracts.KeyPoint{{Point: "Majority regime tag: NEUTRAL.", Sources: []string{"flow"}}},
		Disagreements: []contracts.Disagreement{{
			Topic: "Regime tags", Majority: "NEUTRAL", Minority: "None",
			MinorityAgents: []string{"none"}, WhyItMatters: "No dissenting regime tags are present.",
		}},
		OpsGuidance: []contracts.OpsGuidance{
			{Level: contracts.GuidanceOK, Text: "Maintain balanced exposure."},
			{Level: contracts.GuidanceCaution, Text: "Keep risk limits tight."},
			{Level: contracts.GuidanceAvoid, Text: "Avoid aggressive leverage."},
		},
	}
}

func ruleOf(t *testing.T, err error) Rule {
	t.Helper()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
	return verr.Rule
}

func TestConsensus(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "one sentence", input: "Committee maintains a neutral posture.", wantErr: false},
		{name: "no terminator", input: "Committee maintains a neutral posture", wantErr: false},
		{name: "two sentences", input: "Risk is high. Reduce exposure.", wantErr: true},
		{name: "mixed terminators", input: "Really? Yes!", wantErr: true},
		{name: "newline", input: "Neutral\nposture", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Consensus(tt.input)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, RuleConsensusSentence, ruleOf(t, err))
		})
	}
}

func TestGuidance(t *testing.T) {
	ok := validResult().OpsGuidance

	tests := []struct {
		name     string
		guidance []contracts.OpsGuidance
		wantErr  bool
	}{
		{name: "valid", guidance: ok},
		{name: "two items", guidance: ok[:2], wantErr: true},
		{name: "duplicate", guidance: []contracts.OpsGuidance{ok[0], ok[0], ok[2]}, wantErr: true},
		{name: "foreign level", guidance: []contracts.OpsGuidance{ok[0], ok[1], {Level: "HOLD", Text: "x"}}, wantErr: true},
		{name: "four items", guidance: append(append([]contracts.OpsGuidance{}, ok...), ok[0]), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Guidance(tt.guidance)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, RuleGuidanceLevels, ruleOf(t, err))
		})
	}
}

func TestEvidenceIDs(t *testing.T) {
	s := validStance(contracts.AgentFlow, contracts.RegimeNeutral)
	assert.NoError(t, EvidenceIDs(s))

	s.EvidenceIDs = append(s.EvidenceIDs, "snapshot.sector_moves")
	err := EvidenceIDs(s)
	assert.Equal(t, RuleEvidenceAllowlist, ruleOf(t, err))
	assert.Contains(t, err.Error(), "stances[flow].evidence_ids[2]")
}

func TestForbiddenPhrases(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{name: "clean", value: "Maintain balanced exposure."},
		{name: "english", value: "This is a Guaranteed Profit setup", wantErr: true},
		{name: "korean", value: "지금은 무조건 매수 구간", wantErr: true},
		{name: "korean no loss", value: "절대 손실 없음", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := DefaultGuards().ForbiddenPhrases([]Text{{Field: "x", Value: tt.value}})
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, RuleForbiddenPhrase, ruleOf(t, err))
		})
	}
}

func TestTickers(t *testing.T) {
	watchlist := []string{"SPY", "qqq"}

	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{name: "vocabulary", value: "AI demand and CPI cooling support RISK_ON"},
		{name: "watchlist", value: "SPY and QQQ lead"},
		{name: "unknown ticker", value: "AI and XYZ rally", wantErr: true},
		{name: "single letters ignored", value: "A rally in S stocks"},
		{name: "lowercase ignored", value: "nvda strength"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := DefaultGuards().Tickers([]Text{{Field: "claim", Value: tt.value}}, watchlist)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, RuleTickerGuard, ruleOf(t, err))
			assert.Contains(t, err.Error(), "XYZ")
		})
	}
}

func TestGuards_FromRules(t *testing.T) {
	g := NewGuards(rulesconfig.Guards{
		ForbiddenPhrases: []string{"Sure Thing"},
		NonTickerTokens:  []string{"BOJ"},
	})
	watchlist := []string{"SPY"}

	assert.Equal(t, RuleForbiddenPhrase, ruleOf(t, g.ForbiddenPhrases([]Text{{Field: "x", Value: "a sure thing rally"}})))
	assert.NoError(t, g.ForbiddenPhrases([]Text{{Field: "x", Value: "guaranteed profit"}}), "only configured phrases are guarded")

	assert.NoError(t, g.Tickers([]Text{{Field: "x", Value: "BOJ holds, SPY steady, RISK_OFF and CAUTION"}}, watchlist))
	assert.NoError(t, g.Tickers([]Text{{Field: "x", Value: "confidence HIGH, MED or LOW"}}, watchlist), "enum values need no listing")
	assert.Equal(t, RuleTickerGuard, ruleOf(t, g.Tickers([]Text{{Field: "x", Value: "CPI cools"}}, watchlist)))
}

func TestSchema(t *testing.T) {
	s := validStance(contracts.AgentFlow, contracts.RegimeNeutral)
	assert.NoError(t, Schema(s))

	tests := []struct {
		name      string
		mutate    func(*contracts.Stance)
		wantField string
	}{
		{name: "bad regime", mutate: func(s *contracts.Stance) { s.RegimeTag = "BULLISH" }, wantField: "Stance.regime_tag"},
		{name: "no claims", mutate: func(s *contracts.Stance) { s.CoreClaims = nil }, wantField: "Stance.core_claims"},
		{name: "too many claims", mutate: func(s *contracts.Stance) { s.CoreClaims = []string{"a", "b", "c", "d"} }, wantField: "Stance.core_claims"},
		{name: "long claim", mutate: func(s *contracts.Stance) { s.CoreClaims = []string{strings.Repeat("x", 201)} }, wantField: "Stance.core_claims[0]"},
		{name: "bad evidence", mutate: func(s *contracts.Stance) { s.EvidenceIDs = []string{"snapshot.Bad"} }, wantField: "Stance.evidence_ids[0]"},
		{name: "bad agent", mutate: func(s *contracts.Stance) { s.AgentName = "chair" }, wantField: "Stance.agent_name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := validStance(contracts.AgentFlow, contracts.RegimeNeutral)
			tt.mutate(&st)

			err := Schema(st)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, RuleSchema, verr.Rule)
			assert.Equal(t, tt.wantField, verr.Field)
		})
	}
}

func TestStances_Required(t *testing.T) {
	assert.Equal(t, RuleStancesRequired, ruleOf(t, Stances(nil)))
}

func TestPipeline(t *testing.T) {
	g := DefaultGuards()
	stances := []contracts.Stance{validStance(contracts.AgentFlow, contracts.RegimeNeutral)}
	require.NoError(t, g.Pipeline(validSnapshot(), stances, validResult()))

	t.Run("forbidden phrase in headline", func(t *testing.T) {
		snap := validSnapshot()
		snap.NewsHeadlines = append(snap.NewsHeadlines, "Broker promises guaranteed profit")
		assert.Equal(t, RuleForbiddenPhrase, ruleOf(t, g.Pipeline(snap, stances, validResult())))
	})

	t.Run("tickers in headlines are not guarded", func(t *testing.T) {
		snap := validSnapshot()
		snap.NewsHeadlines = append(snap.NewsHeadlines, "NVDA and TSLA jump")
		assert.NoError(t, g.Pipeline(snap, stances, validResult()))
	})

	t.Run("unknown ticker in claim", func(t *testing.T) {
		bad := validStance(contracts.AgentRisk, contracts.RegimeRiskOff)
		bad.CoreClaims = []string{"AI and XYZ rally"}
		err := g.Pipeline(validSnapshot(), append(stances, bad), validResult())
		assert.Equal(t, RuleTickerGuard, ruleOf(t, err))
	})

	t.Run("two sentence consensus", func(t *testing.T) {
		r := validResult()
		r.Consensus = "Stay neutral. Watch flows."
		assert.Equal(t, RuleConsensusSentence, ruleOf(t, g.Pipeline(validSnapshot(), stances, r)))
	})

	t.Run("empty watchlist", func(t *testing.T) {
		snap := validSnapshot()
		snap.Watchlist = nil
		assert.Equal(t, RuleSchema, ruleOf(t, g.Pipeline(snap, stances, validResult())))
	})
}

func TestReport(t *testing.T) {
	report := &contracts.Report{
		RunID:           "9b2f0c1e-2a7d-4d59-8f5e-2a1c3e4b5d6f",
		GeneratedAt:     time.Date(2026, 10, 19, 7, 30, 0, 0, time.UTC),
		MarketDate:      "2026-10-19",
		Snapshot:        *validSnapshot(),
		Stances:         []contracts.Stance{validStance(contracts.AgentFlow, contracts.RegimeNeutral)},
		CommitteeResult: validResult(),
	}
	require.NoError(t, DefaultGuards().Report(report))

	report.MarketDate = "19/10/2026"
	err := DefaultGuards().Report(report)
	assert.Equal(t, RuleSchema, ruleOf(t, err))
	assert.Contains(t, err.Error(), "market_date")
}
