package s4_committee

import (
	"sort"

	"github.com/wonny/aegis-committee/internal/contracts"
	"github.com/wonny/aegis-committee/internal/s5_validate"
)

const (
	maxKeyPoints     = 3
	maxDisagreements = 3
	maxSources       = 5
	maxPointLength   = 200
	regimeTopic      = "Regime tags"
)

// Posture is the three-way classification that picks consensus and guidance text
type Posture string

const (
	PostureEmpty     Posture = "empty"
	PostureDefensive Posture = "defensive"
	PostureNeutral   Posture = "neutral"
)

var consensusText = map[Posture]string{
	PostureEmpty:     "No consensus can be formed due to missing stances.",
	PostureDefensive: "Committee adopts a defensive posture and reduces risk exposure.",
	PostureNeutral:   "Committee maintains a neutral posture with selective positioning.",
}

var guidanceText = map[Posture][3]string{
	PostureEmpty:     {"Pause until stances are provided.", "Await minimum stance coverage.", "Do not act without stances."},
	PostureDefensive: {"Keep exposure focused on resilience.", "Favor defensive positioning.", "Avoid high-beta risk assets."},
	PostureNeutral:   {"Maintain balanced exposure.", "Keep risk limits tight.", "Avoid aggressive leverage."},
}

// Tally counts regime votes
type Tally map[contracts.RegimeTag]int

// NewTally counts the regime tag of every stance
func NewTally(stances []contracts.Stance) Tally {
	t := Tally{}
	for _, tag := range contracts.AllRegimeTags() {
		t[tag] = 0
	}
	for _, s := range stances {
		if s.RegimeTag.IsValid() {
			t[s.RegimeTag]++
		}
	}
	return t
}

// Total returns the number of votes
func (t Tally) Total() int {
	n := 0
	for _, c := range t {
		n += c
	}
	return n
}

// Majority returns the most voted tag. Ties go to the earlier tag in
// RISK_ON, NEUTRAL, RISK_OFF order. ok is false when nothing was voted.
func (t Tally) Majority() (tag contracts.RegimeTag, ok bool) {
	best := 0
	for _, candidate := range contracts.AllRegimeTags() {
		if t[candidate] > best {
			tag, best = candidate, t[candidate]
		}
	}
	return tag, best > 0
}

// Posture is defensive only when RISK_OFF holds strictly more than half the votes
func (t Tally) Posture() Posture {
	total := t.Total()
	switch {
	case total == 0:
		return PostureEmpty
	case t[contracts.RegimeRiskOff]*2 > total:
		return PostureDefensive
	default:
		return PostureNeutral
	}
}

// Aggregate reduces stances into the committee result.
// The only error is a consensus that is not a single sentence.
// ⭐ SSOT: S4 합의 도출 (규칙 기반 의장)
func Aggregate(stances []contracts.Stance) (contracts.CommitteeResult, error) {
	tally := NewTally(stances)
	posture := tally.Posture()

	result := contracts.CommitteeResult{
		Consensus:   consensusText[posture],
		OpsGuidance: guidance(posture),
	}

	majority, ok := tally.Majority()
	if !ok {
		result.KeyPoints = []contracts.KeyPoint{{Point: "Stance list is empty.", Sources: []string{"none"}}}
		result.Disagreements = []contracts.Disagreement{{
			Topic:          regimeTopic,
			Majority:       "None",
			Minority:       "None",
			MinorityAgents: []string{"none"},
			WhyItMatters:   "No stances provided, so no regime disagreement can be assessed.",
		}}
	} else {
		result.KeyPoints = keyPoints(stances, majority)
		result.Disagreements = disagreements(stances, tally, majority)
	}

	if err := s5_validate.Consensus(result.Consensus); err != nil {
		return contracts.CommitteeResult{}, err
	}
	return result, nil
}

func guidance(p Posture) []contracts.OpsGuidance {
	text := guidanceText[p]
	levels := contracts.AllGuidanceLevels()
	out := make([]contracts.OpsGuidance, len(levels))
	for i, level := range levels {
		out[i] = contracts.OpsGuidance{Level: level, Text: text[i]}
	}
	return out
}

// keyPoints: majority holders, then the most shared evidence id, then the most shared claim
func keyPoints(stances []contracts.Stance, majority contracts.RegimeTag) []contracts.KeyPoint {
	var holders []string
	for _, s := range stances {
		if s.RegimeTag == majority {
			holders = append(holders, string(s.AgentName))
		}
	}

	points := []contracts.KeyPoint{{
		Point:   "Majority regime tag: " + string(majority) + ".",
		Sources: capSources(holders),
	}}

	if evidence, agents := mostShared(stances, func(s contracts.Stance) []string { return s.EvidenceIDs }); len(agents) >= 2 {
		points = append(points, contracts.KeyPoint{
			Point:   "Shared evidence focus: " + evidence + ".",
			Sources: capSources(agents),
		})
	}
	if claim, agents := mostShared(stances, func(s contracts.Stance) []string { return s.CoreClaims }); len(agents) >= 2 {
		points = append(points, contracts.KeyPoint{
			Point:   clip("Shared claim: "+claim, maxPointLength),
			Sources: capSources(agents),
		})
	}

	if len(points) > maxKeyPoints {
		points = points[:maxKeyPoints]
	}
	return points
}

// mostShared returns the item cited by the most distinct agents (sorted).
// Holders are keyed by agent name: an agent is one voice, so repeated
// stances or repeated citations from the same agent count once.
// Ties keep the item discovered first.
func mostShared(stances []contracts.Stance, items func(contracts.Stance) []string) (string, []string) {
	var order []string
	holders := map[string]map[string]bool{}
	for _, s := range stances {
		for _, item := range items(s) {
			if holders[item] == nil {
				holders[item] = map[string]bool{}
				order = append(order, item)
			}
			holders[item][string(s.AgentName)] = true
		}
	}

	best := ""
	for _, item := range order {
		if best == "" || len(holders[item]) > len(holders[best]) {
			best = item
		}
	}
	if best == "" {
		return "", nil
	}

	agents := make([]string, 0, len(holders[best]))
	for a := range holders[best] {
		agents = append(agents, a)
	}
	sort.Strings(agents)
	return best, agents
}

func disagreements(stances []contracts.Stance, tally Tally, majority contracts.RegimeTag) []contracts.Disagreement {
	var out []contracts.Disagreement
	for _, tag := range contracts.AllRegimeTags() {
		if tag == majority || tally[tag] == 0 {
			continue
		}
		var agents []string
		for _, s := range stances {
			if s.RegimeTag == tag {
				agents = append(agents, string(s.AgentName))
			}
		}
		out = append(out, contracts.Disagreement{
			Topic:          regimeTopic,
			Majority:       string(majority),
			Minority:       string(tag),
			MinorityAgents: capSources(agents),
			WhyItMatters:   "Minority risk regime can change positioning boundaries.",
		})
	}

	if len(out) == 0 {
		return []contracts.Disagreement{{
			Topic:          regimeTopic,
			Majority:       string(majority),
			Minority:       "None",
			MinorityAgents: []string{"none"},
			WhyItMatters:   "No dissenting regime tags are present.",
		}}
	}
	if len(out) > maxDisagreements {
		out = out[:maxDisagreements]
	}
	return out
}

func capSources(sources []string) []string {
	if len(sources) == 0 {
		return []string{"unknown"}
	}
	if len(sources) > maxSources {
		return sources[:maxSources]
	}
	return sources
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
