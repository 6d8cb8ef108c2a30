package s1_signals

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/wonny/aegis-committee/internal/contracts"
	"github.com/wonny/aegis-committee/internal/rulesconfig"
)

// Inputs are the already-resolved values the engine reads.
// A nil pointer is an absent input; callers pass only values whose status is OK.
type Inputs struct {
	Headlines []string

	KOSPIPct  *float64
	KOSDAQPct *float64
	SP500Pct  *float64
	NASDAQPct *float64
	DOWPct    *float64

	DXY       *float64
	RealRate  *float64
	Spread210 *float64
}

// Engine computes derived signals
// ⭐ SSOT: 파생 신호 계산은 여기서만 (I/O 없음, 결정적)
type Engine struct {
	vocab rulesconfig.EarningsVocabulary
}

// NewEngine creates an engine over the earnings vocabularies
func NewEngine(vocab rulesconfig.EarningsVocabulary) *Engine {
	return &Engine{vocab: vocab}
}

// Compute maps inputs to the derived signal block
func (e *Engine) Compute(in Inputs) contracts.DerivedSignals {
	earnings := EarningsTone(in.Headlines, e.vocab.Positive, e.vocab.Negative)

	domestic := present(in.KOSPIPct, in.KOSDAQPct)
	foreign := present(in.SP500Pct, in.NASDAQPct, in.DOWPct)
	breadth := Breadth(domestic, foreign)

	liquidity, used := Liquidity(in.DXY, in.RealRate, in.Spread210)

	return contracts.DerivedSignals{
		EarningsScore:  earnings,
		BreadthScore:   breadth,
		LiquidityScore: liquidity,
		Note:           note(len(in.Headlines), len(domestic), len(foreign), used),
	}
}

// EarningsTone counts positive minus negative keyword hits, one per
// (headline, keyword) pair, case-insensitive substring match
func EarningsTone(headlines, positive, negative []string) float64 {
	score := 0
	for _, h := range headlines {
		text := strings.ToLower(h)
		for _, k := range positive {
			if k != "" && strings.Contains(text, strings.ToLower(k)) {
				score++
			}
		}
		for _, k := range negative {
			if k != "" && strings.Contains(text, strings.ToLower(k)) {
				score--
			}
		}
	}
	return Round3(float64(score))
}

// Breadth is avg(domestic) − avg(foreign); nil when either side is empty
func Breadth(domestic, foreign []float64) *float64 {
	if len(domestic) == 0 || len(foreign) == 0 {
		return nil
	}
	v := Round3(mean(domestic) - mean(foreign))
	return &v
}

// Liquidity sums (100 − dxy)/5, (1.5 − real_rate) and 2 × spread_2_10.
// Absent inputs contribute zero; with every input absent the score is exactly 0.
// used lists the input names that contributed.
func Liquidity(dxy, realRate, spread210 *float64) (score float64, used []string) {
	total := decimal.Zero
	if dxy != nil {
		total = total.Add(decimal.NewFromInt(100).Sub(decimal.NewFromFloat(*dxy)).Div(decimal.NewFromInt(5)))
		used = append(used, "dxy")
	}
	if realRate != nil {
		total = total.Add(decimal.NewFromFloat(1.5).Sub(decimal.NewFromFloat(*realRate)))
		used = append(used, "real_rate")
	}
	if spread210 != nil {
		total = total.Add(decimal.NewFromFloat(*spread210).Mul(decimal.NewFromInt(2)))
		used = append(used, "spread_2_10")
	}
	return total.Round(3).InexactFloat64(), used
}

// Round3 rounds half away from zero to 3 decimals
func Round3(v float64) float64 {
	return decimal.NewFromFloat(v).Round(3).InexactFloat64()
}

func present(values ...*float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if v != nil {
			out = append(out, *v)
		}
	}
	return out
}

func mean(values []float64) float64 {
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(decimal.NewFromFloat(v))
	}
	return sum.Div(decimal.NewFromInt(int64(len(values)))).InexactFloat64()
}

func note(headlines, domestic, foreign int, liquidity []string) string {
	liq := "none"
	if len(liquidity) > 0 {
		liq = strings.Join(liquidity, ",")
	}
	return fmt.Sprintf("earnings: %d headlines; breadth: kr %d, us %d; liquidity: %s",
		headlines, domestic, foreign, liq)
}
