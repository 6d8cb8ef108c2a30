package s4_committee

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-committee/internal/contracts"
	"github.com/wonny/aegis-committee/internal/rulesconfig"
	"github.com/wonny/aegis-committee/internal/s5_validate"
)

func testStubs() *Stubs {
	return NewStubs(rulesconfig.MustDefault().Stubs)
}

func baseSnapshot() *contracts.Snapshot {
	return &contracts.Snapshot{
		MarketSummary: contracts.MarketSummary{
			Note:           "KOSPI 0.40%, USD/KRW 1380.00.",
			KOSPIChangePct: contracts.Float(0.4),
			USDKRW:         contracts.Float(1380),
		},
		FlowSummary: contracts.FlowSummary{
			Note:           "Foreign net 120억원.",
			ForeignNet:     contracts.Float(120),
			InstitutionNet: contracts.Float(-40),
			RetailNet:      contracts.Float(-80),
		},
		NewsHeadlines: []string{"Markets steady ahead of data"},
		Watchlist:     []string{"SPY", "QQQ", "XLK"},
	}
}

func TestStubs_Keywords(t *testing.T) {
	tests := []struct {
		name       string
		agent      contracts.AgentName
		mutate     func(s *contracts.Snapshot)
		wantTag    contracts.RegimeTag
		wantConf   contracts.Confidence
		wantClaim0 string
	}{
		{
			name:  "macro unavailable",
			agent: contracts.AgentMacro,
			mutate: func(s *contracts.Snapshot) {
				s.MarketSummary = contracts.MarketSummary{Note: "KOSPI fetch_failed. USD/KRW fetch_failed."}
			},
			wantTag:    contracts.RegimeNeutral,
			wantConf:   contracts.ConfidenceLow,
			wantClaim0: "Macro data unavailable.",
		},
		{
			name:       "macro volatile",
			agent:      contracts.AgentMacro,
			mutate:     func(s *contracts.Snapshot) { s.MarketSummary.Note = "Volatile session for KOSPI." },
			wantTag:    contracts.RegimeRiskOff,
			wantConf:   contracts.ConfidenceMed,
			wantClaim0: "Macro tone is cautious.",
		},
		{
			name:       "macro balanced",
			agent:      contracts.AgentMacro,
			mutate:     func(s *contracts.Snapshot) {},
			wantTag:    contracts.RegimeNeutral,
			wantConf:   contracts.ConfidenceMed,
			wantClaim0: "Macro tone is balanced.",
		},
		{
			name:       "flow inflow",
			agent:      contracts.AgentFlow,
			mutate:     func(s *contracts.Snapshot) { s.FlowSummary.Note = "Foreign net inflow 1050억원." },
			wantTag:    contracts.RegimeRiskOn,
			wantConf:   contracts.ConfidenceHigh,
			wantClaim0: "Flows are supportive.",
		},
		{
			name:  "flow unavailable",
			agent: contracts.AgentFlow,
			mutate: func(s *contracts.Snapshot) {
				s.FlowSummary = contracts.FlowSummary{Note: "Flows fetch_failed."}
			},
			wantTag:    contracts.RegimeNeutral,
			wantConf:   contracts.ConfidenceLow,
			wantClaim0: "Flow data unavailable.",
		},
		{
			name:       "sector needs every keyword",
			agent:      contracts.AgentSector,
			mutate:     func(s *contracts.Snapshot) { s.NewsHeadlines = []string{"Tech rally broadens"} },
			wantTag:    contracts.RegimeNeutral,
			wantConf:   contracts.ConfidenceLow,
			wantClaim0: "Sector moves are mixed.",
		},
		{
			name:       "sector growth",
			agent:      contracts.AgentSector,
			mutate:     func(s *contracts.Snapshot) { s.NewsHeadlines = []string{"Tech names firm into close"} },
			wantTag:    contracts.RegimeRiskOn,
			wantConf:   contracts.ConfidenceMed,
			wantClaim0: "Growth sectors show strength.",
		},
		{
			name:       "risk headline",
			agent:      contracts.AgentRisk,
			mutate:     func(s *contracts.Snapshot) { s.NewsHeadlines = []string{"Agency downgrade hits banks"} },
			wantTag:    contracts.RegimeRiskOff,
			wantConf:   contracts.ConfidenceHigh,
			wantClaim0: "Risk signals elevated.",
		},
		{
			name:       "risk stable",
			agent:      contracts.AgentRisk,
			mutate:     func(s *contracts.Snapshot) {},
			wantTag:    contracts.RegimeNeutral,
			wantConf:   contracts.ConfidenceMed,
			wantClaim0: "Risk signals stable.",
		},
	}

	stubs := testStubs()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := baseSnapshot()
			tt.mutate(snap)

			st := stubs.Stance(tt.agent, snap)
			assert.Equal(t, tt.agent, st.AgentName)
			assert.Equal(t, tt.wantTag, st.RegimeTag)
			assert.Equal(t, tt.wantConf, st.Confidence)
			require.NotEmpty(t, st.CoreClaims)
			assert.Equal(t, tt.wantClaim0, st.CoreClaims[0])
			assert.NoError(t, s5_validate.Stance(st))
		})
	}
}

func TestStubs_Thresholds(t *testing.T) {
	tests := []struct {
		name    string
		agent   contracts.AgentName
		mutate  func(s *contracts.Snapshot)
		wantTag contracts.RegimeTag
	}{
		{"earnings weak score", contracts.AgentEarnings, func(s *contracts.Snapshot) { s.DerivedSignals.EarningsScore = -1.5 }, contracts.RegimeRiskOff},
		{"earnings strong score", contracts.AgentEarnings, func(s *contracts.Snapshot) { s.DerivedSignals.EarningsScore = 1 }, contracts.RegimeRiskOn},
		{"earnings strong kospi", contracts.AgentEarnings, func(s *contracts.Snapshot) { s.Markets.KR.KOSPIPct = contracts.Float(1.2) }, contracts.RegimeRiskOn},
		{"earnings mixed", contracts.AgentEarnings, func(s *contracts.Snapshot) {}, contracts.RegimeNeutral},
		{"breadth strong and calm", contracts.AgentBreadth, func(s *contracts.Snapshot) {
			s.DerivedSignals.BreadthScore = contracts.Float(1.5)
			s.Markets.Volatility.VIX = contracts.Float(18)
		}, contracts.RegimeRiskOn},
		{"breadth strong but stressed", contracts.AgentBreadth, func(s *contracts.Snapshot) {
			s.DerivedSignals.BreadthScore = contracts.Float(1.5)
			s.Markets.Volatility.VIX = contracts.Float(32)
		}, contracts.RegimeRiskOff},
		{"breadth domestic fallback", contracts.AgentBreadth, func(s *contracts.Snapshot) {
			s.Markets.KR.KOSPIPct = contracts.Float(2)
			s.Markets.KR.KOSDAQPct = contracts.Float(1)
		}, contracts.RegimeRiskOn},
		{"breadth weak", contracts.AgentBreadth, func(s *contracts.Snapshot) { s.DerivedSignals.BreadthScore = contracts.Float(-2) }, contracts.RegimeRiskOff},
		{"breadth no data", contracts.AgentBreadth, func(s *contracts.Snapshot) {}, contracts.RegimeNeutral},
		{"liquidity strong dollar", contracts.AgentLiquidity, func(s *contracts.Snapshot) { s.Macro.Daily.DXY = contracts.Float(106) }, contracts.RegimeRiskOff},
		{"liquidity inverted curve", contracts.AgentLiquidity, func(s *contracts.Snapshot) { s.Macro.Daily.Spread210 = contracts.Float(-0.5) }, contracts.RegimeRiskOff},
		{"liquidity soft dollar", contracts.AgentLiquidity, func(s *contracts.Snapshot) {
			s.Macro.Daily.DXY = contracts.Float(99)
			s.Macro.Structural.RealRate = contracts.Float(1.2)
		}, contracts.RegimeRiskOn},
		{"liquidity soft dollar high real rate", contracts.AgentLiquidity, func(s *contracts.Snapshot) {
			s.Macro.Daily.DXY = contracts.Float(99)
			s.Macro.Structural.RealRate = contracts.Float(1.9)
		}, contracts.RegimeNeutral},
		{"liquidity no data", contracts.AgentLiquidity, func(s *contracts.Snapshot) {}, contracts.RegimeNeutral},
	}

	stubs := testStubs()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := baseSnapshot()
			tt.mutate(snap)

			st := stubs.Stance(tt.agent, snap)
			assert.Equal(t, tt.wantTag, st.RegimeTag)
			assert.Len(t, st.CoreClaims, 3)
			assert.NotEmpty(t, st.KoreanComment)
			assert.NoError(t, s5_validate.Stance(st))
		})
	}
}

func TestStubs_AllPassPipeline(t *testing.T) {
	snap := baseSnapshot()
	stances := testStubs().All(snap)

	require.Len(t, stances, len(contracts.AllAgents()))
	for i, agent := range contracts.AllAgents() {
		assert.Equal(t, agent, stances[i].AgentName)
	}

	result, err := Aggregate(stances)
	require.NoError(t, err)
	assert.NoError(t, s5_validate.DefaultGuards().Pipeline(snap, stances, result))
}

func TestStubs_UnknownAgentIsNeutral(t *testing.T) {
	snap := baseSnapshot()
	liquidity := testStubs().Stance(contracts.AgentLiquidity, snap)

	st := testStubs().Stance(contracts.AgentName("chair"), snap)
	assert.Equal(t, contracts.AgentName("chair"), st.AgentName)
	assert.Equal(t, contracts.RegimeNeutral, st.RegimeTag)
	assert.Equal(t, contracts.ConfidenceLow, st.Confidence)
	assert.NotEqual(t, liquidity.CoreClaims, st.CoreClaims)

	err := s5_validate.Stance(st)
	var verr *s5_validate.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Stance.agent_name", verr.Field)
}
