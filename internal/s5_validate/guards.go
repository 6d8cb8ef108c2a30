package s5_validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/wonny/aegis-committee/internal/contracts"
	"github.com/wonny/aegis-committee/internal/rulesconfig"
)

// Guards holds the output vocabularies loaded from the rules file
// ⭐ SSOT: 출력 안전장치 (과장/확정 수익 표현 금지)
type Guards struct {
	phrases    []string // lowercased
	vocabulary map[string]struct{}
}

// NewGuards builds the guards from rules. Enum values are always vocabulary.
func NewGuards(cfg rulesconfig.Guards) *Guards {
	g := &Guards{
		phrases:    make([]string, 0, len(cfg.ForbiddenPhrases)),
		vocabulary: make(map[string]struct{}, len(cfg.NonTickerTokens)+16),
	}
	for _, p := range cfg.ForbiddenPhrases {
		g.phrases = append(g.phrases, strings.ToLower(strings.TrimSpace(p)))
	}
	for _, tok := range cfg.NonTickerTokens {
		g.vocabulary[tok] = struct{}{}
	}
	for _, tag := range contracts.AllRegimeTags() {
		g.vocabulary[string(tag)] = struct{}{}
	}
	for _, level := range contracts.AllGuidanceLevels() {
		g.vocabulary[string(level)] = struct{}{}
	}
	for _, c := range contracts.AllConfidences() {
		g.vocabulary[string(c)] = struct{}{}
	}
	return g
}

// DefaultGuards uses the embedded rules
func DefaultGuards() *Guards {
	return NewGuards(rulesconfig.MustDefault().Guards)
}

var tickerPattern = regexp.MustCompile(`\b[A-Z][A-Z0-9]{1,11}\b`)

// Text is one user-facing string with its location in the artifact
type Text struct {
	Field string
	Value string
}

// Consensus requires one sentence: no newline, at most one of . ! ?
func Consensus(consensus string) error {
	if strings.ContainsAny(consensus, "\r\n") {
		return fail(RuleConsensusSentence, "committee_result.consensus", "must be a single sentence without newlines")
	}
	if n := strings.Count(consensus, ".") + strings.Count(consensus, "!") + strings.Count(consensus, "?"); n > 1 {
		return fail(RuleConsensusSentence, "committee_result.consensus", "must be a single sentence, found %d terminators", n)
	}
	return nil
}

// Guidance requires exactly one entry per level OK, CAUTION, AVOID
func Guidance(guidance []contracts.OpsGuidance) error {
	const field = "committee_result.ops_guidance"
	if len(guidance) != 3 {
		return fail(RuleGuidanceLevels, field, "must contain exactly 3 items, got %d", len(guidance))
	}
	seen := make(map[contracts.GuidanceLevel]bool, 3)
	for i, g := range guidance {
		if !g.Level.IsValid() {
			return fail(RuleGuidanceLevels, fmt.Sprintf("%s[%d].level", field, i), "unknown level %q", g.Level)
		}
		if seen[g.Level] {
			return fail(RuleGuidanceLevels, fmt.Sprintf("%s[%d].level", field, i), "duplicate level %s", g.Level)
		}
		seen[g.Level] = true
	}
	for _, level := range contracts.AllGuidanceLevels() {
		if !seen[level] {
			return fail(RuleGuidanceLevels, field, "missing level %s", level)
		}
	}
	return nil
}

// EvidenceIDs requires every id of the stance to be allow-listed
func EvidenceIDs(stance contracts.Stance) error {
	for i, id := range stance.EvidenceIDs {
		if !contracts.IsAllowedEvidence(id) {
			return fail(RuleEvidenceAllowlist, fmt.Sprintf("stances[%s].evidence_ids[%d]", stance.AgentName, i), "evidence id %q is not allowed", id)
		}
	}
	return nil
}

// ForbiddenPhrases rejects absolute or guaranteed-outcome language (case-insensitive)
func (g *Guards) ForbiddenPhrases(texts []Text) error {
	for _, t := range texts {
		lowered := strings.ToLower(t.Value)
		for _, phrase := range g.phrases {
			if strings.Contains(lowered, phrase) {
				return fail(RuleForbiddenPhrase, t.Field, "forbidden phrase detected: %s", phrase)
			}
		}
	}
	return nil
}

// Tickers rejects uppercase ticker-like tokens that are neither vocabulary nor on the watchlist
func (g *Guards) Tickers(texts []Text, watchlist []string) error {
	allowed := make(map[string]struct{}, len(watchlist))
	for _, w := range watchlist {
		allowed[strings.ToUpper(strings.TrimSpace(w))] = struct{}{}
	}
	for _, t := range texts {
		for _, token := range tickerPattern.FindAllString(t.Value, -1) {
			if _, ok := g.vocabulary[token]; ok {
				continue
			}
			if _, ok := allowed[token]; !ok {
				return fail(RuleTickerGuard, t.Field, "ticker %q not found in snapshot watchlist", token)
			}
		}
	}
	return nil
}
