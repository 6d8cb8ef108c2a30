package collector

import (
	"context"
	"sync"
	"time"

	"github.com/wonny/aegis-committee/internal/contracts"
	"github.com/wonny/aegis-committee/internal/s0_data"
	"github.com/wonny/aegis-committee/pkg/logger"
)

// Collector runs one acquisition pass: every field is resolved against the
// primary provider with the fallback provider behind it, on a bounded pool
// ⭐ SSOT: 데이터 수집 오케스트레이션은 이 패키지에서만
type Collector struct {
	primary  s0_data.Provider
	fallback s0_data.Provider
	logger   *logger.Logger
}

// Config holds collector configuration
type Config struct {
	Workers      int           // Number of concurrent workers
	FetchTimeout time.Duration // Per-field deadline
}

// DefaultConfig mirrors COLLECT_WORKERS / FETCH_TIMEOUT defaults
func DefaultConfig() Config {
	return Config{Workers: 6, FetchTimeout: 15 * time.Second}
}

// Result is the outcome of one acquisition pass.
// Status is frozen: it has an entry for every field in contracts.AllFields().
type Result struct {
	AsOf      time.Time
	Values    map[contracts.Field]s0_data.Resolution[float64]
	Flows     s0_data.Resolution[contracts.KoreanMarketFlow]
	Headlines s0_data.Resolution[[]string]
	Status    contracts.StatusMap
	Duration  time.Duration
}

// Value returns the resolution of a single-value field (zero Resolution when unknown)
func (r *Result) Value(f contracts.Field) s0_data.Resolution[float64] {
	return r.Values[f]
}

// NewCollector creates a new Collector instance
func NewCollector(primary, fallback s0_data.Provider, log *logger.Logger) *Collector {
	return &Collector{
		primary:  primary,
		fallback: fallback,
		logger:   log.WithField("module", "collector"),
	}
}

// fetchResult carries one resolved field back from a worker
type fetchResult struct {
	field     contracts.Field
	value     s0_data.Resolution[float64]
	flows     s0_data.Resolution[contracts.KoreanMarketFlow]
	headlines s0_data.Resolution[[]string]
	skipped   string // set when the run was cancelled before the field started
}

// Collect resolves every field. It never returns an error: fetch failures and
// cancellation end up in Result.Status with their reasons.
func (c *Collector) Collect(ctx context.Context, asOf time.Time, cfg Config) *Result {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultConfig().FetchTimeout
	}

	start := time.Now()
	fields := contracts.AllFields()

	c.logger.WithFields(map[string]interface{}{
		"stage":    contracts.StageAcquire,
		"fields":   len(fields),
		"workers":  cfg.Workers,
		"primary":  c.primary.Name(),
		"fallback": c.fallback.Name(),
		"as_of":    asOf.Format("2006-01-02"),
	}).Info("Starting acquisition")

	// 1. Create worker pool
	fieldCh := make(chan contracts.Field, len(fields))
	resultCh := make(chan fetchResult, len(fields))

	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			c.worker(ctx, workerID, fieldCh, resultCh, asOf, cfg.FetchTimeout)
		}(i)
	}

	// 2. Send fields to workers
	for _, f := range fields {
		fieldCh <- f
	}
	close(fieldCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	// 3. Collect results (single goroutine owns the maps)
	recorder := s0_data.NewStatusRecorder()
	result := &Result{
		AsOf:   asOf,
		Values: make(map[contracts.Field]s0_data.Resolution[float64], len(fields)),
	}

	for r := range resultCh {
		switch {
		case r.skipped != "":
			recorder.Fail(r.field, r.skipped)
		case r.field == contracts.FieldFlows:
			result.Flows = r.flows
			s0_data.Record(recorder, r.field, r.flows)
		case r.field == contracts.FieldHeadlines:
			result.Headlines = r.headlines
			s0_data.Record(recorder, r.field, r.headlines)
		default:
			result.Values[r.field] = r.value
			s0_data.Record(recorder, r.field, r.value)
		}
	}

	// every attempted field has an entry, even one a worker never reported
	for _, f := range fields {
		if !recorder.Has(f) {
			recorder.Fail(f, s0_data.ReasonUnavailable)
		}
	}

	result.Status = recorder.Freeze()
	result.Duration = time.Since(start)

	failures := result.Status.Failures()
	c.logger.WithFields(map[string]interface{}{
		"stage":       contracts.StageAcquire,
		"ok":          result.Status.Len() - len(failures),
		"failed":      len(failures),
		"duration_ms": result.Duration.Milliseconds(),
	}).Info("Acquisition completed")

	return result
}

// worker resolves fields until the channel drains
func (c *Collector) worker(ctx context.Context, workerID int, fieldCh <-chan contracts.Field, resultCh chan<- fetchResult, asOf time.Time, timeout time.Duration) {
	for field := range fieldCh {
		if err := ctx.Err(); err != nil {
			resultCh <- fetchResult{field: field, skipped: err.Error()}
			continue
		}

		fctx, cancel := context.WithTimeout(ctx, timeout)
		r := c.resolve(fctx, field, asOf)
		cancel()

		c.logResolution(workerID, field, r)
		resultCh <- r
	}
}

func (c *Collector) resolve(ctx context.Context, field contracts.Field, asOf time.Time) fetchResult {
	switch field {
	case contracts.FieldFlows:
		return fetchResult{
			field: field,
			flows: s0_data.ResolveWith(ctx,
				s0_data.FlowsFetcher(c.primary, asOf),
				s0_data.FlowsFetcher(c.fallback, asOf),
				s0_data.AcceptFlows),
		}
	case contracts.FieldHeadlines:
		res := s0_data.ResolveWith(ctx,
			s0_data.HeadlinesFetcher(c.primary, s0_data.HeadlineFetchLimit),
			s0_data.HeadlinesFetcher(c.fallback, s0_data.HeadlineFetchLimit),
			s0_data.AcceptHeadlines)
		if res.Present {
			res.Value = s0_data.CapHeadlines(res.Value)
		}
		return fetchResult{field: field, headlines: res}
	default:
		return fetchResult{
			field: field,
			value: s0_data.Resolve(ctx,
				s0_data.ValueFetcher(c.primary, field),
				s0_data.ValueFetcher(c.fallback, field)),
		}
	}
}

func (c *Collector) logResolution(workerID int, field contracts.Field, r fetchResult) {
	var present, fallback bool
	var reason string
	switch field {
	case contracts.FieldFlows:
		present, fallback, reason = r.flows.Present, r.flows.IsFallback, r.flows.Reason
	case contracts.FieldHeadlines:
		present, fallback, reason = r.headlines.Present, r.headlines.IsFallback, r.headlines.Reason
	default:
		present, fallback, reason = r.value.Present, r.value.IsFallback, r.value.Reason
	}

	if present && !fallback {
		c.logger.WithFields(map[string]interface{}{
			"worker": workerID,
			"field":  field,
		}).Debug("Field resolved")
		return
	}

	c.logger.WithFields(map[string]interface{}{
		"worker":   workerID,
		"field":    field,
		"fallback": fallback,
		"reason":   reason,
	}).Warn("Field fetch failed")
}
