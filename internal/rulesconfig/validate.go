package rulesconfig

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var tokenPattern = regexp.MustCompile(`^[A-Z][A-Z0-9]*$`)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

// Validate checks all required constraints
// 실패 시 error 반환 (프로그램 중단)
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.RulesID == "" {
		return ValidationError{"meta.rules_id", "required"}
	}

	// === Signals ===
	if err := validateKeywords(cfg.Signals.Earnings.Positive); err != nil {
		return ValidationError{"signals.earnings.positive", err.Error()}
	}
	if err := validateKeywords(cfg.Signals.Earnings.Negative); err != nil {
		return ValidationError{"signals.earnings.negative", err.Error()}
	}

	// === Stubs ===
	if err := validateKeywords(cfg.Stubs.Macro.Keywords); err != nil {
		return ValidationError{"stubs.macro.keywords", err.Error()}
	}
	if err := validateKeywords(cfg.Stubs.Flow.Keywords); err != nil {
		return ValidationError{"stubs.flow.keywords", err.Error()}
	}
	if err := validateKeywords(cfg.Stubs.Risk.Keywords); err != nil {
		return ValidationError{"stubs.risk.keywords", err.Error()}
	}
	if err := validateKeywords(cfg.Stubs.Sector.AllOf); err != nil {
		return ValidationError{"stubs.sector.all_of", err.Error()}
	}

	e := cfg.Stubs.Earnings
	if e.RiskOffScore >= e.RiskOnScore {
		return ValidationError{"stubs.earnings", "risk_off_score must be < risk_on_score"}
	}

	b := cfg.Stubs.Breadth
	if b.RiskOffSpread >= b.RiskOnSpread {
		return ValidationError{"stubs.breadth", "risk_off_spread must be < risk_on_spread"}
	}
	if b.RiskOnMaxVIX <= 0 || b.RiskOffVIX < b.RiskOnMaxVIX {
		return ValidationError{"stubs.breadth", "must satisfy 0 < risk_on_max_vix <= risk_off_vix"}
	}

	l := cfg.Stubs.Liquidity
	if l.RiskOffScore >= l.RiskOnScore {
		return ValidationError{"stubs.liquidity", "risk_off_score must be < risk_on_score"}
	}
	if l.RiskOnDXY > l.RiskOffDXY {
		return ValidationError{"stubs.liquidity", "risk_on_dxy must be <= risk_off_dxy"}
	}
	if l.RiskOnRealRate > l.RiskOffRealRate {
		return ValidationError{"stubs.liquidity", "risk_on_real_rate must be <= risk_off_real_rate"}
	}
	if l.RiskOffCurve > l.RiskOnCurve {
		return ValidationError{"stubs.liquidity", "risk_off_curve must be <= risk_on_curve"}
	}

	// === Guards ===
	if err := validateKeywords(cfg.Guards.ForbiddenPhrases); err != nil {
		return ValidationError{"guards.forbidden_phrases", err.Error()}
	}
	for i, tok := range cfg.Guards.NonTickerTokens {
		if !tokenPattern.MatchString(tok) {
			return ValidationError{"guards.non_ticker_tokens", fmt.Sprintf("token[%d] %q must be uppercase letters and digits", i, tok)}
		}
	}

	// === Quality ===
	q := cfg.Quality
	for field, v := range map[string]float64{
		"quality.min_fx_coverage":       q.MinFXCoverage,
		"quality.min_index_coverage":    q.MinIndexCoverage,
		"quality.min_market_coverage":   q.MinMarketCoverage,
		"quality.min_macro_coverage":    q.MinMacroCoverage,
		"quality.min_flow_coverage":     q.MinFlowCoverage,
		"quality.min_headline_coverage": q.MinHeadlineCoverage,
		"quality.min_score":             q.MinScore,
	} {
		if err := validatePctRange(v, field); err != nil {
			return err
		}
	}

	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	// 어휘 중복: 같은 키워드가 양쪽에 있으면 점수가 상쇄됨
	neg := make(map[string]bool, len(cfg.Signals.Earnings.Negative))
	for _, k := range cfg.Signals.Earnings.Negative {
		neg[strings.ToLower(k)] = true
	}
	for _, k := range cfg.Signals.Earnings.Positive {
		if neg[strings.ToLower(k)] {
			warnings = append(warnings, Warning{
				Code:    "OVERLAPPING_VOCABULARY",
				Message: fmt.Sprintf("keyword %q is both positive and negative", k),
			})
		}
	}

	// 품질 기준이 너무 느슨함
	if cfg.Quality.MinScore < 0.3 {
		warnings = append(warnings, Warning{
			Code:    "LOW_QUALITY_BAR",
			Message: "quality.min_score < 0.3: 대부분의 소스가 실패해도 통과",
		})
	}

	return warnings
}

// === Helper Functions ===

func validateKeywords(keywords []string) error {
	if len(keywords) == 0 {
		return errors.New("must not be empty")
	}
	for i, k := range keywords {
		if strings.TrimSpace(k) == "" {
			return fmt.Errorf("keyword[%d] is blank", i)
		}
	}
	return nil
}

// validatePctRange는 비율 값이 0~1 범위인지 검증
func validatePctRange(pct float64, field string) error {
	if pct < 0 || pct > 1 {
		return ValidationError{field, "must be in range [0, 1]"}
	}
	return nil
}
