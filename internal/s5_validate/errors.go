package s5_validate

import "fmt"

// Rule names the violated output contract
type Rule string

const (
	RuleSchema            Rule = "schema"
	RuleConsensusSentence Rule = "consensus_sentence"
	RuleGuidanceLevels    Rule = "guidance_levels"
	RuleEvidenceAllowlist Rule = "evidence_allowlist"
	RuleForbiddenPhrase   Rule = "forbidden_phrase"
	RuleTickerGuard       Rule = "ticker_guard"
	RuleStancesRequired   Rule = "stances_required"
)

// ValidationError is a fatal output violation. The run must not publish.
type ValidationError struct {
	Rule    Rule
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed [%s]: %s", e.Rule, e.Message)
	}
	return fmt.Sprintf("validation failed [%s] %s: %s", e.Rule, e.Field, e.Message)
}

func fail(rule Rule, field, format string, args ...interface{}) error {
	return &ValidationError{Rule: rule, Field: field, Message: fmt.Sprintf(format, args...)}
}
