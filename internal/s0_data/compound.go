package s0_data

import (
	"fmt"
	"strings"

	"github.com/wonny/aegis-committee/internal/contracts"
)

// Headline bounds
const (
	HeadlineFetchLimit = 8
	MinHeadlines       = 5
	MaxHeadlines       = 10
	// MaxHeadlineRunes matches the snapshot schema bound on a single title
	MaxHeadlineRunes = 300
)

// ReasonInsufficientHeadlines marks a headline list below MinHeadlines
const ReasonInsufficientHeadlines = "insufficient headlines"

// FlowMarkets are the markets a complete flow record covers
var FlowMarkets = []string{"KOSPI", "KOSDAQ"}

// AcceptHeadlines rejects lists shorter than MinHeadlines.
// A short list fetched successfully is still a failure.
func AcceptHeadlines(titles []string) (bool, string) {
	n := 0
	for _, t := range titles {
		if strings.TrimSpace(t) != "" {
			n++
		}
	}
	if n < MinHeadlines {
		return false, ReasonInsufficientHeadlines
	}
	return true, ""
}

// AcceptFlows rejects a flow record that does not cover every market
func AcceptFlows(flow contracts.KoreanMarketFlow) (bool, string) {
	var missing []string
	for _, m := range FlowMarkets {
		if _, ok := flow.ByMarket[m]; !ok {
			missing = append(missing, m)
		}
	}
	if len(missing) > 0 {
		return false, fmt.Sprintf("partial flows: missing %s", strings.Join(missing, ","))
	}
	return true, ""
}

// CapHeadlines drops blank titles, cuts each to MaxHeadlineRunes and
// keeps at most MaxHeadlines
func CapHeadlines(titles []string) []string {
	out := make([]string, 0, len(titles))
	for _, t := range titles {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		out = append(out, clipRunes(t, MaxHeadlineRunes))
		if len(out) == MaxHeadlines {
			break
		}
	}
	return out
}

func clipRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
