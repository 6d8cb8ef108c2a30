package s2_snapshot

import (
	"strings"

	"github.com/wonny/aegis-committee/internal/s1_signals"
	"github.com/wonny/aegis-committee/pkg/config"
)

// MaxWatchlist bounds the watchlist size
const MaxWatchlist = 50

// Watchlist uppercases, trims and de-duplicates symbols, keeping the first
// MaxWatchlist. An empty result falls back to config.DefaultWatchlist.
func Watchlist(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
		if len(out) == MaxWatchlist {
			break
		}
	}
	if len(out) == 0 {
		return append([]string(nil), config.DefaultWatchlist...)
	}
	return out
}

// EPSRevision is the forward EPS change against the stored value ~3 months
// earlier, in percent: (eps / prior − 1) × 100. nil without a usable prior.
func EPSRevision(eps, prior *float64) *float64 {
	if eps == nil || prior == nil || *prior == 0 {
		return nil
	}
	v := s1_signals.Round3((*eps / *prior - 1) * 100)
	return &v
}
