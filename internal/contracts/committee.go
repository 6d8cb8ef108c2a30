package contracts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Stance is one perspective's tagged opinion on a Snapshot
// ⭐ SSOT: S4 에이전트 출력 계약
type Stance struct {
	AgentName     AgentName  `json:"agent_name" validate:"enum"`
	CoreClaims    []string   `json:"core_claims" validate:"min=1,max=3,dive,required,max=200"`
	RegimeTag     RegimeTag  `json:"regime_tag" validate:"enum"`
	EvidenceIDs   []string   `json:"evidence_ids" validate:"min=1,max=10,dive,required,evidence_id"`
	Confidence    Confidence `json:"confidence" validate:"enum"`
	KoreanComment string     `json:"korean_comment,omitempty" validate:"max=200"`
	RawResponse   string     `json:"raw_response,omitempty"`
}

// KeyPoint is one ranked committee observation with attributed sources
type KeyPoint struct {
	Point   string   `json:"point" validate:"required,max=200"`
	Sources []string `json:"sources" validate:"min=1,max=5,dive,required,max=200"`
}

// Disagreement records one minority regime view
type Disagreement struct {
	Topic          string   `json:"topic" validate:"required,max=200"`
	Majority       string   `json:"majority" validate:"required,max=200"`
	Minority       string   `json:"minority" validate:"required,max=200"`
	MinorityAgents []string `json:"minority_agents" validate:"min=1,max=5,dive,required,max=200"`
	WhyItMatters   string   `json:"why_it_matters" validate:"required,max=200"`
}

// OpsGuidance is one fixed-level operating guideline
type OpsGuidance struct {
	Level GuidanceLevel `json:"level" validate:"enum"`
	Text  string        `json:"text" validate:"required,max=200"`
}

// CommitteeResult is the aggregated synthesis of all stances of one run
// ⭐ SSOT: 생성 후 변경 금지, 검증 통과 후에만 리포트에 포함
type CommitteeResult struct {
	Consensus     string         `json:"consensus" validate:"required,max=300"`
	KeyPoints     []KeyPoint     `json:"key_points" validate:"min=1,max=3,dive"`
	Disagreements []Disagreement `json:"disagreements" validate:"min=1,max=3,dive"`
	OpsGuidance   []OpsGuidance  `json:"ops_guidance" validate:"len=3,dive"`
}

// Report is the produced artifact handed to surrounding components
type Report struct {
	RunID           string          `json:"run_id" validate:"required,uuid"`
	GeneratedAt     time.Time       `json:"generated_at" validate:"required"`
	MarketDate      string          `json:"market_date" validate:"required,datetime=2006-01-02"`
	Snapshot        Snapshot        `json:"snapshot"`
	SourceStatus    StatusMap       `json:"source_status"`
	Stances         []Stance        `json:"stances" validate:"min=1,dive"`
	CommitteeResult CommitteeResult `json:"committee_result"`
}

// DecodeReport decodes a report, rejecting undeclared fields at every level
func DecodeReport(r io.Reader) (*Report, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var report Report
	if err := dec.Decode(&report); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("decode report: trailing data after report object")
	}
	return &report, nil
}

// EncodeReport writes an indented report
func EncodeReport(report *Report) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	return buf.Bytes(), nil
}
