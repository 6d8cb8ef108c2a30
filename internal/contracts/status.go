package contracts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Field names one acquired fact. It is the key of the source status map.
type Field string

// ⭐ SSOT: 수집 필드 이름 (status map, 로그, DB 컬럼 매핑에서 공통 사용)
const (
	FieldUSDKRW    Field = "usdkrw"
	FieldUSDKRWPct Field = "usdkrw_pct"
	FieldKOSPI     Field = "kospi"
	FieldKOSDAQ    Field = "kosdaq"
	FieldSP500     Field = "sp500"
	FieldNASDAQ    Field = "nasdaq"
	FieldDOW       Field = "dow"
	FieldVIX       Field = "vix"
	FieldVIX3M     Field = "vix3m"
	FieldUS10Y     Field = "us10y"
	FieldUS2Y      Field = "us2y"
	FieldDXY       Field = "dxy"
	FieldFlows     Field = "flows"
	FieldHeadlines Field = "headlines"

	FieldUnemployment Field = "unemployment_rate"
	FieldCPIYoY       Field = "cpi_yoy"
	FieldCoreCPIYoY   Field = "core_cpi_yoy"
	FieldPCEYoY       Field = "pce_yoy"
	FieldPMI          Field = "pmi"
	FieldWageLevel    Field = "wage_level"
	FieldWageYoY      Field = "wage_yoy"

	FieldRealGDP      Field = "real_gdp"
	FieldGDPQoQ       Field = "gdp_qoq_annualized"
	FieldFedFunds     Field = "fed_funds_rate"
	FieldBreakeven10Y Field = "breakeven_10y"
	FieldHYOAS        Field = "hy_oas"
	FieldIGOAS        Field = "ig_oas"
	FieldFedBalance   Field = "fed_balance_sheet"
	FieldSP500FwdPE   Field = "sp500_forward_pe"
	FieldSP500FwdEPS  Field = "sp500_forward_eps"
)

// AllFields returns every field an acquisition run attempts
func AllFields() []Field {
	return []Field{
		FieldUSDKRW, FieldUSDKRWPct, FieldKOSPI, FieldKOSDAQ, FieldSP500, FieldNASDAQ, FieldDOW,
		FieldVIX, FieldVIX3M, FieldUS10Y, FieldUS2Y, FieldDXY, FieldFlows, FieldHeadlines,
		FieldUnemployment, FieldCPIYoY, FieldCoreCPIYoY, FieldPCEYoY, FieldPMI, FieldWageLevel, FieldWageYoY,
		FieldRealGDP, FieldGDPQoQ, FieldFedFunds, FieldBreakeven10Y, FieldHYOAS, FieldIGOAS, FieldFedBalance,
		FieldSP500FwdPE, FieldSP500FwdEPS,
	}
}

// FieldStatus is one entry of the status map
type FieldStatus struct {
	Status   SourceStatus `json:"status"`
	Reason   string       `json:"reason,omitempty"`
	Fallback bool         `json:"fallback,omitempty"`
}

// StatusMap is the frozen, read-only field → status table of one run.
// The zero value is an empty map; lookups on it report "not OK".
type StatusMap struct {
	entries map[Field]FieldStatus
}

// NewStatusMap copies entries into a read-only map
func NewStatusMap(entries map[Field]FieldStatus) StatusMap {
	cp := make(map[Field]FieldStatus, len(entries))
	for k, v := range entries {
		cp[k] = v
	}
	return StatusMap{entries: cp}
}

// Get returns the entry for f
func (m StatusMap) Get(f Field) (FieldStatus, bool) {
	s, ok := m.entries[f]
	return s, ok
}

// OK reports whether f was recorded with status OK.
// Unknown fields are not OK: persistence writes NULL for them.
func (m StatusMap) OK(f Field) bool {
	s, ok := m.entries[f]
	return ok && s.Status == StatusOK
}

// Reason returns the recorded failure reason for f ("" when OK or unknown)
func (m StatusMap) Reason(f Field) string {
	return m.entries[f].Reason
}

// Len returns the number of recorded fields
func (m StatusMap) Len() int {
	return len(m.entries)
}

// Fields returns the recorded field names sorted
func (m StatusMap) Fields() []Field {
	out := make([]Field, 0, len(m.entries))
	for f := range m.entries {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Failures returns field → reason for every FAIL entry
func (m StatusMap) Failures() map[Field]string {
	out := map[Field]string{}
	for f, s := range m.entries {
		if s.Status == StatusFail {
			out[f] = s.Reason
		}
	}
	return out
}

func (m StatusMap) MarshalJSON() ([]byte, error) {
	if m.entries == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m.entries)
}

func (m *StatusMap) UnmarshalJSON(data []byte) error {
	var raw map[Field]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	entries := make(map[Field]FieldStatus, len(raw))
	for f, msg := range raw {
		dec := json.NewDecoder(bytes.NewReader(msg))
		dec.DisallowUnknownFields()
		var s FieldStatus
		if err := dec.Decode(&s); err != nil {
			return fmt.Errorf("source_status.%s: %w", f, err)
		}
		entries[f] = s
	}
	m.entries = entries
	return nil
}
