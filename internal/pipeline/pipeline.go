package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/aegis-committee/internal/contracts"
	"github.com/wonny/aegis-committee/internal/s0_data/collector"
	"github.com/wonny/aegis-committee/internal/s0_data/quality"
	"github.com/wonny/aegis-committee/internal/s2_snapshot"
	"github.com/wonny/aegis-committee/internal/s3_store"
	"github.com/wonny/aegis-committee/internal/s4_committee"
	"github.com/wonny/aegis-committee/internal/s5_validate"
	"github.com/wonny/aegis-committee/pkg/logger"
	"github.com/wonny/aegis-committee/pkg/redis"
)

// EPSRevisionLookback is how far back the stored forward EPS is compared
const EPSRevisionLookback = 90

// Deps are the stage components of a run.
// Store and Cache are optional: nil disables persistence or report caching.
type Deps struct {
	Collector *collector.Collector
	Gate      *quality.QualityGate
	Assembler *s2_snapshot.Assembler
	Generator s4_committee.Generator
	Store     *s3_store.Store
	Publisher *Publisher
	Cache     *redis.Cache
	Guards    *s5_validate.Guards // nil: embedded rules
}

// Options are per-run inputs
type Options struct {
	Date      time.Time // market date; zero means today
	Watchlist []string
	Persist   bool
	Publish   bool
	Collector collector.Config
}

// Prepared is the output of S0–S2
type Prepared struct {
	MarketDate string
	Snapshot   *contracts.Snapshot
	Status     contracts.StatusMap
	Quality    *quality.Snapshot
}

// Result is a finished run
type Result struct {
	Report    *contracts.Report
	Quality   *quality.Snapshot
	Fallbacks []contracts.AgentName
	Persisted bool
	Artifacts *Artifacts
}

// Runner executes S0 → S6 for one market date
// ⭐ SSOT: 파이프라인 실행 순서는 여기서만
type Runner struct {
	deps   Deps
	logger *logger.Logger
	now    func() time.Time
}

// NewRunner creates a runner
func NewRunner(deps Deps, log *logger.Logger) *Runner {
	if deps.Guards == nil {
		deps.Guards = s5_validate.DefaultGuards()
	}
	return &Runner{
		deps:   deps,
		logger: log.WithComponent("pipeline"),
		now:    time.Now,
	}
}

// Store returns the persistence store (nil when disabled)
func (r *Runner) Store() *s3_store.Store {
	return r.deps.Store
}

// Publisher returns the artifact publisher
func (r *Runner) Publisher() *Publisher {
	return r.deps.Publisher
}

// Prepare runs acquisition, the quality gate and snapshot assembly.
// The gate reports coverage but never stops the run.
func (r *Runner) Prepare(ctx context.Context, opts Options) (*Prepared, error) {
	asOf := opts.Date
	if asOf.IsZero() {
		asOf = r.now()
	}
	date := asOf.Format(s3_store.DateLayout)

	// S0
	res := r.deps.Collector.Collect(ctx, asOf, opts.Collector)

	q := r.deps.Gate.Check(res.Status)
	r.logger.WithFields(map[string]interface{}{
		"stage":         contracts.StageAcquire,
		"quality_score": q.QualityScore,
		"passed":        q.Passed,
		"failing":       q.Failing,
	}).Info("Quality gate checked")

	// S1 + S2
	var prior *float64
	if r.deps.Store != nil {
		prior = r.deps.Store.SafeForwardEPSOnOrBefore(ctx, date, EPSRevisionLookback)
	}
	snap, err := r.deps.Assembler.Build(res, s2_snapshot.Options{
		Watchlist:       opts.Watchlist,
		PriorForwardEPS: prior,
	})
	if err != nil {
		return nil, err
	}

	return &Prepared{MarketDate: date, Snapshot: snap, Status: res.Status, Quality: q}, nil
}

// Run executes the full pipeline. Fetch and persistence failures are absorbed;
// a validation failure aborts before anything is published.
func (r *Runner) Run(ctx context.Context, opts Options) (*Result, error) {
	start := r.now()
	runID := uuid.NewString()

	prep, err := r.Prepare(ctx, opts)
	if err != nil {
		return nil, err
	}
	log := r.logger.WithRun(runID, prep.MarketDate)

	// S3 (best effort)
	persisted := false
	if opts.Persist && r.deps.Store != nil {
		persisted = r.deps.Store.SafeSaveSnapshot(ctx, prep.MarketDate, prep.Snapshot, prep.Status)
	}

	// S4
	panel := r.deps.Generator.Generate(ctx, prep.Snapshot)
	result, err := s4_committee.Aggregate(panel.Stances)
	if err != nil {
		return nil, fmt.Errorf("aggregate stances: %w", err)
	}

	// S5
	report := &contracts.Report{
		RunID:           runID,
		GeneratedAt:     r.now().UTC(),
		MarketDate:      prep.MarketDate,
		Snapshot:        *prep.Snapshot,
		SourceStatus:    prep.Status,
		Stances:         panel.Stances,
		CommitteeResult: result,
	}
	if err := r.deps.Guards.Report(report); err != nil {
		log.WithStage(contracts.StageValidate.String()).WithError(err).Error("Report rejected")
		return nil, err
	}

	out := &Result{
		Report:    report,
		Quality:   prep.Quality,
		Fallbacks: panel.Fallbacks,
		Persisted: persisted,
	}

	// S6
	if opts.Publish {
		art, err := r.deps.Publisher.Publish(report)
		if err != nil {
			return nil, fmt.Errorf("publish report: %w", err)
		}
		out.Artifacts = &art
		r.afterPublish(ctx, report, panel, art)
	}

	log.WithStage(contracts.StagePublish.String()).WithFields(map[string]interface{}{
		"stances":     len(panel.Stances),
		"fallbacks":   len(panel.Fallbacks),
		"persisted":   persisted,
		"duration_ms": r.now().Sub(start).Milliseconds(),
	}).Info("Run completed")

	return out, nil
}

// afterPublish records the audit row and warms the report cache; both best effort
func (r *Runner) afterPublish(ctx context.Context, report *contracts.Report, panel s4_committee.Panel, art Artifacts) {
	if r.deps.Store != nil {
		majority, _ := s4_committee.NewTally(report.Stances).Majority()
		fallbacks := make([]string, len(panel.Fallbacks))
		for i, a := range panel.Fallbacks {
			fallbacks[i] = string(a)
		}
		r.deps.Store.SafeRecordRun(ctx, s3_store.RunRecord{
			RunID:          report.RunID,
			MarketDate:     report.MarketDate,
			GeneratedAt:    report.GeneratedAt,
			Consensus:      report.CommitteeResult.Consensus,
			Majority:       string(majority),
			FallbackAgents: fallbacks,
			ReportPath:     art.Report,
		})
	}

	if r.deps.Cache != nil {
		if err := r.deps.Cache.Set(ctx, redis.ReportKey(report.MarketDate), report, redis.TTLDaily); err != nil {
			r.logger.WithError(err).Warn("Report cache write failed")
		}
	}
}
