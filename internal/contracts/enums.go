package contracts

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ⭐ SSOT: 닫힌 열거형. 알 수 없는 값은 JSON 디코딩 단계에서 거부됨

// RegimeTag is the three-way market posture classification
type RegimeTag string

const (
	RegimeRiskOn  RegimeTag = "RISK_ON"
	RegimeNeutral RegimeTag = "NEUTRAL"
	RegimeRiskOff RegimeTag = "RISK_OFF"
)

// AllRegimeTags returns the tags in enumeration order (also the majority tie-break order)
func AllRegimeTags() []RegimeTag {
	return []RegimeTag{RegimeRiskOn, RegimeNeutral, RegimeRiskOff}
}

func (r RegimeTag) String() string { return string(r) }

// IsValid reports whether r is a declared tag
func (r RegimeTag) IsValid() bool {
	switch r {
	case RegimeRiskOn, RegimeNeutral, RegimeRiskOff:
		return true
	default:
		return false
	}
}

// ParseRegimeTag parses case-insensitively ("risk-on" and "risk_on" both accepted)
func ParseRegimeTag(raw string) (RegimeTag, error) {
	normalized := strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(raw)), "-", "_")
	return parseEnum(normalized, AllRegimeTags(), "regime_tag")
}

func (r *RegimeTag) UnmarshalJSON(data []byte) error {
	return unmarshalEnum(data, r, ParseRegimeTag)
}

// Confidence is the stance confidence level
type Confidence string

const (
	ConfidenceLow  Confidence = "LOW"
	ConfidenceMed  Confidence = "MED"
	ConfidenceHigh Confidence = "HIGH"
)

// AllConfidences returns the levels in ascending order
func AllConfidences() []Confidence {
	return []Confidence{ConfidenceLow, ConfidenceMed, ConfidenceHigh}
}

func (c Confidence) String() string { return string(c) }

// IsValid reports whether c is a declared level
func (c Confidence) IsValid() bool {
	switch c {
	case ConfidenceLow, ConfidenceMed, ConfidenceHigh:
		return true
	default:
		return false
	}
}

// ParseConfidence parses case-insensitively; "MEDIUM" is accepted as MED
func ParseConfidence(raw string) (Confidence, error) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	if normalized == "MEDIUM" {
		normalized = string(ConfidenceMed)
	}
	return parseEnum(normalized, AllConfidences(), "confidence")
}

func (c *Confidence) UnmarshalJSON(data []byte) error {
	return unmarshalEnum(data, c, ParseConfidence)
}

// GuidanceLevel is an ops guidance severity
type GuidanceLevel string

const (
	GuidanceOK      GuidanceLevel = "OK"
	GuidanceCaution GuidanceLevel = "CAUTION"
	GuidanceAvoid   GuidanceLevel = "AVOID"
)

// AllGuidanceLevels returns the fixed level set in output order
func AllGuidanceLevels() []GuidanceLevel {
	return []GuidanceLevel{GuidanceOK, GuidanceCaution, GuidanceAvoid}
}

func (g GuidanceLevel) String() string { return string(g) }

// IsValid reports whether g is a declared level
func (g GuidanceLevel) IsValid() bool {
	switch g {
	case GuidanceOK, GuidanceCaution, GuidanceAvoid:
		return true
	default:
		return false
	}
}

// ParseGuidanceLevel parses case-insensitively
func ParseGuidanceLevel(raw string) (GuidanceLevel, error) {
	return parseEnum(strings.ToUpper(strings.TrimSpace(raw)), AllGuidanceLevels(), "guidance level")
}

func (g *GuidanceLevel) UnmarshalJSON(data []byte) error {
	return unmarshalEnum(data, g, ParseGuidanceLevel)
}

// AgentName identifies a committee perspective
type AgentName string

const (
	AgentMacro     AgentName = "macro"
	AgentFlow      AgentName = "flow"
	AgentSector    AgentName = "sector"
	AgentRisk      AgentName = "risk"
	AgentEarnings  AgentName = "earnings"
	AgentBreadth   AgentName = "breadth"
	AgentLiquidity AgentName = "liquidity"
)

// AllAgents returns the committee members in reporting order
func AllAgents() []AgentName {
	return []AgentName{AgentMacro, AgentFlow, AgentSector, AgentRisk, AgentEarnings, AgentBreadth, AgentLiquidity}
}

func (a AgentName) String() string { return string(a) }

// IsValid reports whether a is a declared agent
func (a AgentName) IsValid() bool {
	switch a {
	case AgentMacro, AgentFlow, AgentSector, AgentRisk, AgentEarnings, AgentBreadth, AgentLiquidity:
		return true
	default:
		return false
	}
}

// ParseAgentName parses case-insensitively
func ParseAgentName(raw string) (AgentName, error) {
	return parseEnum(strings.ToLower(strings.TrimSpace(raw)), AllAgents(), "agent_name")
}

func (a *AgentName) UnmarshalJSON(data []byte) error {
	return unmarshalEnum(data, a, ParseAgentName)
}

// SourceStatus is the per-field acquisition outcome
type SourceStatus string

const (
	StatusOK   SourceStatus = "OK"
	StatusFail SourceStatus = "FAIL"
)

func (s SourceStatus) String() string { return string(s) }

// IsValid reports whether s is a declared status
func (s SourceStatus) IsValid() bool {
	return s == StatusOK || s == StatusFail
}

// ParseSourceStatus parses case-insensitively
func ParseSourceStatus(raw string) (SourceStatus, error) {
	return parseEnum(strings.ToUpper(strings.TrimSpace(raw)), []SourceStatus{StatusOK, StatusFail}, "source status")
}

func (s *SourceStatus) UnmarshalJSON(data []byte) error {
	return unmarshalEnum(data, s, ParseSourceStatus)
}

func parseEnum[T ~string](raw string, all []T, kind string) (T, error) {
	for _, v := range all {
		if string(v) == raw {
			return v, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("unknown %s %q", kind, raw)
}

func unmarshalEnum[T ~string](data []byte, dst *T, parse func(string) (T, error)) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, err := parse(raw)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}
