package quality

import (
	"sort"

	"github.com/wonny/aegis-committee/internal/contracts"
	"github.com/wonny/aegis-committee/internal/s0_data"
)

// QualityGate scores the coverage of one acquisition run.
// It never blocks the run: a failing gate is reported, not raised.
type QualityGate struct {
	config Config
}

// Config holds quality gate thresholds per field category
type Config struct {
	MinFXCoverage       float64 `yaml:"min_fx_coverage"`       // 0.5
	MinIndexCoverage    float64 `yaml:"min_index_coverage"`    // 0.6
	MinMarketCoverage   float64 `yaml:"min_market_coverage"`   // 0.5
	MinMacroCoverage    float64 `yaml:"min_macro_coverage"`    // 0.5
	MinFlowCoverage     float64 `yaml:"min_flow_coverage"`     // 0.0 (KRX is often closed)
	MinHeadlineCoverage float64 `yaml:"min_headline_coverage"` // 0.0
	MinScore            float64 `yaml:"min_score"`             // 0.6
}

// DefaultConfig returns the thresholds used when the rules file omits them
func DefaultConfig() Config {
	return Config{
		MinFXCoverage:     0.5,
		MinIndexCoverage:  0.6,
		MinMarketCoverage: 0.5,
		MinMacroCoverage:  0.5,
		MinScore:          0.6,
	}
}

// Snapshot is the coverage summary of one run
type Snapshot struct {
	Coverage     map[s0_data.Category]float64 `json:"coverage"`
	QualityScore float64                      `json:"quality_score"`
	OKFields     int                          `json:"ok_fields"`
	TotalFields  int                          `json:"total_fields"`
	Failing      []s0_data.Category           `json:"failing,omitempty"`
	Passed       bool                         `json:"passed"`
}

// NewQualityGate creates a new QualityGate instance
func NewQualityGate(config Config) *QualityGate {
	return &QualityGate{config: config}
}

// Check computes per-category coverage over the frozen status map
// ⭐ SSOT: S0 → S1 품질 검증
func (g *QualityGate) Check(status contracts.StatusMap) *Snapshot {
	total := map[s0_data.Category]int{}
	ok := map[s0_data.Category]int{}

	snapshot := &Snapshot{Coverage: make(map[s0_data.Category]float64)}

	for _, f := range status.Fields() {
		cat, err := s0_data.CategoryOf(f)
		if err != nil {
			continue
		}
		total[cat]++
		snapshot.TotalFields++
		if status.OK(f) {
			ok[cat]++
			snapshot.OKFields++
		}
	}

	for cat, n := range total {
		snapshot.Coverage[cat] = float64(ok[cat]) / float64(n)
	}

	snapshot.QualityScore = g.calculateScore(snapshot.Coverage)
	snapshot.Failing = g.failing(snapshot.Coverage)
	snapshot.Passed = len(snapshot.Failing) == 0 && snapshot.QualityScore >= g.config.MinScore

	return snapshot
}

func (g *QualityGate) thresholds() map[s0_data.Category]float64 {
	return map[s0_data.Category]float64{
		s0_data.CategoryFX:          g.config.MinFXCoverage,
		s0_data.CategoryIndex:       g.config.MinIndexCoverage,
		s0_data.CategoryMarketLevel: g.config.MinMarketCoverage,
		s0_data.CategoryMacro:       g.config.MinMacroCoverage,
		s0_data.CategoryFlows:       g.config.MinFlowCoverage,
		s0_data.CategoryHeadlines:   g.config.MinHeadlineCoverage,
	}
}

// failing lists categories below their threshold, sorted
func (g *QualityGate) failing(coverage map[s0_data.Category]float64) []s0_data.Category {
	var out []s0_data.Category
	for cat, min := range g.thresholds() {
		cov, exists := coverage[cat]
		if !exists || cov < min {
			out = append(out, cat)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// calculateScore calculates overall quality score using weighted average
func (g *QualityGate) calculateScore(coverage map[s0_data.Category]float64) float64 {
	// 가중치 (합계 = 1.0)
	weights := map[s0_data.Category]float64{
		s0_data.CategoryFX:          0.20, // 환율은 리포트 필수
		s0_data.CategoryIndex:       0.25, // 지수 등락
		s0_data.CategoryMarketLevel: 0.15, // VIX, 금리, DXY
		s0_data.CategoryMacro:       0.20, // FRED/ISM
		s0_data.CategoryFlows:       0.10, // 수급
		s0_data.CategoryHeadlines:   0.10, // 뉴스
	}

	score := 0.0
	for key, weight := range weights {
		if cov, exists := coverage[key]; exists {
			score += cov * weight
		}
	}

	return score
}
