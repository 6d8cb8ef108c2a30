package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-committee/internal/contracts"
	"github.com/wonny/aegis-committee/internal/rulesconfig"
	"github.com/wonny/aegis-committee/internal/s0_data"
	"github.com/wonny/aegis-committee/internal/s0_data/collector"
	"github.com/wonny/aegis-committee/internal/s0_data/quality"
	"github.com/wonny/aegis-committee/internal/s1_signals"
	"github.com/wonny/aegis-committee/internal/s2_snapshot"
	"github.com/wonny/aegis-committee/internal/s3_store"
	"github.com/wonny/aegis-committee/internal/s4_committee"
	"github.com/wonny/aegis-committee/internal/s5_validate"
	"github.com/wonny/aegis-committee/pkg/config"
	"github.com/wonny/aegis-committee/pkg/logger"
)

var marketDay = time.Date(2026, 10, 19, 16, 30, 0, 0, time.UTC)

type testEnv struct {
	runner    *Runner
	store     *s3_store.Store
	publisher *Publisher
}

func openTestStore(t *testing.T) *s3_store.Store {
	t.Helper()
	cfg := &config.Config{Database: config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "committee.db")}}
	store, err := s3_store.Open(cfg, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestEnv(t *testing.T, primary s0_data.Provider, fallback bool, gen s4_committee.Generator) *testEnv {
	t.Helper()
	return newTestEnvWithRules(t, primary, fallback, gen, rulesconfig.MustDefault())
}

func newTestEnvWithRules(t *testing.T, primary s0_data.Provider, fallback bool, gen s4_committee.Generator, rules *rulesconfig.Config) *testEnv {
	t.Helper()
	if gen == nil {
		gen = s4_committee.NewRulesGenerator(s4_committee.NewStubs(rules.Stubs))
	}

	store := openTestStore(t)
	publisher := NewPublisher(filepath.Join(t.TempDir(), "runs"))
	runner := NewRunner(Deps{
		Collector: collector.NewCollector(primary, s0_data.NewFallbackProvider(fallback), logger.Nop()),
		Gate:      quality.NewQualityGate(rules.Quality),
		Assembler: s2_snapshot.NewAssembler(s1_signals.NewEngine(rules.Signals.Earnings), logger.Nop()),
		Generator: gen,
		Store:     store,
		Publisher: publisher,
		Guards:    s5_validate.NewGuards(rules.Guards),
	}, logger.Nop())
	return &testEnv{runner: runner, store: store, publisher: publisher}
}

func runOptions() Options {
	return Options{
		Date:      marketDay,
		Watchlist: []string{"SPY", "QQQ", "XLK"},
		Persist:   true,
		Publish:   true,
		Collector: collector.Config{Workers: 4, FetchTimeout: time.Second},
	}
}

// fixedGenerator returns the same stances for every run
type fixedGenerator struct {
	stances []contracts.Stance
}

func (g fixedGenerator) Generate(context.Context, *contracts.Snapshot) s4_committee.Panel {
	return s4_committee.Panel{Stances: g.stances}
}

func TestRun_FullFixture(t *testing.T) {
	env := newTestEnv(t, s0_data.SampleFixture(), true, nil)
	ctx := context.Background()

	res, err := env.runner.Run(ctx, runOptions())
	require.NoError(t, err)

	report := res.Report
	_, err = uuid.Parse(report.RunID)
	assert.NoError(t, err)
	assert.Equal(t, "2026-10-19", report.MarketDate)
	assert.Len(t, report.Stances, len(contracts.AllAgents()))
	assert.True(t, res.Persisted)
	assert.True(t, res.Quality.Passed)
	assert.NoError(t, s5_validate.DefaultGuards().Report(report))

	require.NotNil(t, res.Artifacts)
	for _, name := range []string{FileSnapshot, FileStances, FileCommitteeResult, FileReport, FileMarkdown} {
		assert.FileExists(t, filepath.Join(res.Artifacts.Dir, name))
	}

	md, err := os.ReadFile(res.Artifacts.Markdown)
	require.NoError(t, err)
	assert.Contains(t, string(md), "# 데일리 AI 투자위원회")
	assert.Contains(t, string(md), "EPS 3개월 변화 n/a")

	loaded, err := env.publisher.Latest()
	require.NoError(t, err)
	assert.Equal(t, report.RunID, loaded.RunID)

	row, err := env.store.GetMarketDaily(ctx, "2026-10-19")
	require.NoError(t, err)
	require.NotNil(t, row.KOSPIPct)
	assert.Equal(t, 0.84, *row.KOSPIPct)

	last, err := env.store.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, report.RunID, last.RunID)
	assert.Equal(t, res.Artifacts.Report, last.ReportPath)
}

func TestRun_AllSourcesFailing(t *testing.T) {
	env := newTestEnv(t, &s0_data.FixtureProvider{}, false, nil)

	res, err := env.runner.Run(context.Background(), runOptions())
	require.NoError(t, err)

	assert.False(t, res.Quality.Passed)
	assert.Nil(t, res.Report.Snapshot.Markets.KR.KOSPIPct)
	assert.NotEmpty(t, res.Report.SourceStatus.Failures())

	md, err := os.ReadFile(res.Artifacts.Markdown)
	require.NoError(t, err)
	assert.Contains(t, string(md), "KOSPI n/a")
	assert.Contains(t, string(md), "FAIL (")

	// the store keeps NULL rather than placeholders
	row, err := env.store.GetMarketDaily(context.Background(), "2026-10-19")
	require.NoError(t, err)
	assert.Nil(t, row.KOSPIPct)
}

func TestRun_NoPersist(t *testing.T) {
	env := newTestEnv(t, s0_data.SampleFixture(), true, nil)
	opts := runOptions()
	opts.Persist = false
	opts.Publish = false

	res, err := env.runner.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.False(t, res.Persisted)
	assert.Nil(t, res.Artifacts)

	_, err = env.store.GetMarketDaily(context.Background(), "2026-10-19")
	assert.ErrorIs(t, err, s3_store.ErrNotFound)

	_, err = env.publisher.Latest()
	assert.ErrorIs(t, err, ErrNoReport)
}

func TestRun_ValidationFailureBlocksPublish(t *testing.T) {
	gen := fixedGenerator{stances: []contracts.Stance{{
		AgentName:   contracts.AgentSector,
		CoreClaims:  []string{"AI names lead; rotate into XYZ."},
		RegimeTag:   contracts.RegimeRiskOn,
		EvidenceIDs: []string{"snapshot.news_headlines"},
		Confidence:  contracts.ConfidenceMed,
	}}}
	env := newTestEnv(t, s0_data.SampleFixture(), true, gen)

	res, err := env.runner.Run(context.Background(), runOptions())
	require.Error(t, err)
	assert.Nil(t, res)

	var verr *s5_validate.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, s5_validate.RuleTickerGuard, verr.Rule)

	dates, err := env.publisher.Dates()
	require.NoError(t, err)
	assert.Empty(t, dates)

	_, err = env.store.LatestRun(context.Background())
	assert.ErrorIs(t, err, s3_store.ErrNotFound)
}

func TestRun_EPSRevisionFromHistory(t *testing.T) {
	env := newTestEnv(t, s0_data.SampleFixture(), true, nil)
	ctx := context.Background()

	early := runOptions()
	early.Date = marketDay.AddDate(0, 0, -91)
	_, err := env.runner.Run(ctx, early)
	require.NoError(t, err)

	res, err := env.runner.Run(ctx, runOptions())
	require.NoError(t, err)

	// same forward EPS 91 days apart: revision is zero, not missing
	rev := res.Report.Snapshot.Macro.Forward.EPSRevision3M
	require.NotNil(t, rev)
	assert.Equal(t, 0.0, *rev)
}

func TestRun_ConfiguredGuardsRejectBeforePublish(t *testing.T) {
	rules := rulesconfig.MustDefault()
	rules.Guards.ForbiddenPhrases = append(rules.Guards.ForbiddenPhrases, "memory prices rebound")
	env := newTestEnvWithRules(t, s0_data.SampleFixture(), true, nil, rules)

	res, err := env.runner.Run(context.Background(), runOptions())
	require.Error(t, err)
	assert.Nil(t, res)

	var verr *s5_validate.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, s5_validate.RuleForbiddenPhrase, verr.Rule)
	assert.Equal(t, "snapshot.news_headlines[0]", verr.Field)

	_, err = env.publisher.Latest()
	assert.ErrorIs(t, err, ErrNoReport, "nothing is published")
}
