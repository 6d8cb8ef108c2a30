package contracts

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRegimeTag(t *testing.T) {
	tests := []struct {
		input   string
		want    RegimeTag
		wantErr bool
	}{
		{"RISK_ON", RegimeRiskOn, false},
		{"risk-off", RegimeRiskOff, false},
		{" neutral ", RegimeNeutral, false},
		{"BULLISH", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseRegimeTag(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEnumUnmarshalRejectsUnknown(t *testing.T) {
	var s Stance
	err := json.Unmarshal([]byte(`{"agent_name":"macro","regime_tag":"SIDEWAYS"}`), &s)
	assert.Error(t, err)

	err = json.Unmarshal([]byte(`{"agent_name":"astrology"}`), &s)
	assert.Error(t, err)

	err = json.Unmarshal([]byte(`{"agent_name":"Flow","regime_tag":"risk_on","confidence":"medium"}`), &s)
	require.NoError(t, err)
	assert.Equal(t, AgentFlow, s.AgentName)
	assert.Equal(t, RegimeRiskOn, s.RegimeTag)
	assert.Equal(t, ConfidenceMed, s.Confidence)
}

func TestEnumOrder(t *testing.T) {
	assert.Equal(t, []RegimeTag{RegimeRiskOn, RegimeNeutral, RegimeRiskOff}, AllRegimeTags())
	assert.Equal(t, []GuidanceLevel{GuidanceOK, GuidanceCaution, GuidanceAvoid}, AllGuidanceLevels())
	assert.Len(t, AllAgents(), 7)
	for _, a := range AllAgents() {
		assert.True(t, a.IsValid())
	}
	assert.False(t, GuidanceLevel("PANIC").IsValid())
}

func TestStatusMap(t *testing.T) {
	m := NewStatusMap(map[Field]FieldStatus{
		FieldUSDKRW:    {Status: StatusFail, Reason: "er_api:http_status_500", Fallback: true},
		FieldKOSPI:     {Status: StatusOK},
		FieldHeadlines: {Status: StatusFail, Reason: "insufficient headlines"},
	})

	assert.Equal(t, 3, m.Len())
	assert.True(t, m.OK(FieldKOSPI))
	assert.False(t, m.OK(FieldUSDKRW))
	assert.False(t, m.OK(FieldVIX), "unknown fields are not OK")
	assert.Equal(t, "er_api:http_status_500", m.Reason(FieldUSDKRW))
	assert.Equal(t, map[Field]string{
		FieldUSDKRW:    "er_api:http_status_500",
		FieldHeadlines: "insufficient headlines",
	}, m.Failures())
	assert.Equal(t, []Field{FieldHeadlines, FieldKOSPI, FieldUSDKRW}, m.Fields())

	data, err := json.Marshal(m)
	require.NoError(t, err)

	var back StatusMap
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, m.Failures(), back.Failures())

	assert.Error(t, json.Unmarshal([]byte(`{"usdkrw":{"status":"OK","extra":1}}`), &back))
	assert.Error(t, json.Unmarshal([]byte(`{"usdkrw":{"status":"MAYBE"}}`), &back))
}

func TestStatusMap_ZeroValue(t *testing.T) {
	var m StatusMap
	assert.False(t, m.OK(FieldKOSPI))
	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestIsAllowedEvidence(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"snapshot.market_summary.note", true},
		{"snapshot.macro.daily.spread_2_10", true},
		{"snapshot.derived_signals.liquidity_signal_score", true},
		{"snapshot.news_headlines", true},
		{"snapshot.macro.daily.oil", false},
		{"market_summary.note", false},
		{"snapshot.Market_summary.note", false},
		{"snapshot..note", false},
		{"snapshot." + strings.Repeat("a", 60), false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAllowedEvidence(tt.id))
		})
	}

	for _, id := range EvidenceAllowList() {
		assert.True(t, IsAllowedEvidence(id), id)
	}
}

func TestSnapshot_NullableFieldsSerializeAsNull(t *testing.T) {
	s := Snapshot{
		MarketSummary: MarketSummary{Note: "n", KOSPIChangePct: Float(0)},
		Watchlist:     []string{"SPY"},
	}
	data, err := json.Marshal(s)
	require.NoError(t, err)

	var top map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &top))

	var summary map[string]interface{}
	require.NoError(t, json.Unmarshal(top["market_summary"], &summary))
	assert.Equal(t, 0.0, summary["kospi_change_pct"], "a real zero stays zero")
	assert.Contains(t, summary, "usdkrw")
	assert.Nil(t, summary["usdkrw"], "absent stays null")
}

func TestDecodeReport(t *testing.T) {
	report := &Report{
		RunID:       "8f14e45f-ceea-467f-a0a4-12c0f5f1a0e1",
		GeneratedAt: time.Date(2026, 10, 19, 7, 30, 0, 0, time.UTC),
		MarketDate:  "2026-10-19",
		Snapshot:    Snapshot{Watchlist: []string{"SPY"}},
		SourceStatus: NewStatusMap(map[Field]FieldStatus{
			FieldKOSPI: {Status: StatusOK},
		}),
		Stances: []Stance{{
			AgentName:   AgentMacro,
			CoreClaims:  []string{"Macro is steady."},
			RegimeTag:   RegimeNeutral,
			EvidenceIDs: []string{"snapshot.market_summary.note"},
			Confidence:  ConfidenceMed,
		}},
		CommitteeResult: CommitteeResult{Consensus: "Hold."},
	}

	data, err := EncodeReport(report)
	require.NoError(t, err)

	back, err := DecodeReport(strings.NewReader(string(data)))
	require.NoError(t, err)
	assert.Equal(t, report.RunID, back.RunID)
	assert.True(t, back.SourceStatus.OK(FieldKOSPI))

	// Undeclared fields are rejected at the top level and in nested records
	_, err = DecodeReport(strings.NewReader(`{"run_id":"x","unexpected":true}`))
	assert.Error(t, err)
	_, err = DecodeReport(strings.NewReader(`{"snapshot":{"market_summary":{"note":"n","extra":1}}}`))
	assert.Error(t, err)
}

func TestInvestorFlows_Add(t *testing.T) {
	total := InvestorFlows{Foreign: 100, Institution: -20, Retail: -80}.Add(InvestorFlows{Foreign: -5, Institution: 10, Retail: -5})
	assert.Equal(t, InvestorFlows{Foreign: 95, Institution: -10, Retail: -85}, total)
}

func TestStage(t *testing.T) {
	assert.Equal(t, "S0", StageAcquire.ShortName())
	assert.Equal(t, "S5", StageValidate.ShortName())
	assert.True(t, IsValidStage("S3_PERSIST"))
	assert.False(t, IsValidStage("S7_AUDIT"))
	assert.Len(t, AllStages(), 7)
}
