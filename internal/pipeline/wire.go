package pipeline

import (
	"fmt"

	"github.com/wonny/aegis-committee/internal/external/openai"
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
	"github.com/wonny/aegis-committee/pkg/httputil"
	"github.com/wonny/aegis-committee/pkg/logger"
	"github.com/wonny/aegis-committee/pkg/redis"
)

// BuildOptions toggle optional components
type BuildOptions struct {
	NoLLM   bool // force rule stubs
	NoStore bool // skip opening the database
}

// Components is the wired application
type Components struct {
	Config     *config.Config
	Rules      *rulesconfig.Config
	Guards     *s5_validate.Guards
	Redis      *redis.Client
	Store      *s3_store.Store
	Cache      *redis.Cache
	Runner     *Runner
	Backfiller *Backfiller
	Publisher  *Publisher
}

// Build wires every component from configuration. Redis and the store are
// optional: a failure to reach them is logged and the run continues without.
func Build(cfg *config.Config, log *logger.Logger, opts BuildOptions) (*Components, error) {
	rules, err := rulesconfig.Load(cfg.Output.RulesPath)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}

	for _, w := range cfg.Warnings {
		log.Warn(w)
	}
	for _, w := range rulesconfig.Warn(rules) {
		log.WithField("code", w.Code).Warn(w.Message)
	}

	rdb, err := redis.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, continuing without cache")
		rdb = nil
	}
	cache := redis.NewCache(rdb)

	var store *s3_store.Store
	if !opts.NoStore {
		store, err = s3_store.Open(cfg, log)
		if err != nil {
			log.WithError(err).Warn("Store unavailable, continuing without persistence")
			store = nil
		}
	}

	provider := s0_data.NewHTTPProviderFromConfig(cfg, log, rdb)
	col := collector.NewCollector(provider, s0_data.NewFallbackProvider(cfg.FallbackEnabled()), log)

	guards := s5_validate.NewGuards(rules.Guards)
	stubs := s4_committee.NewStubs(rules.Stubs)
	var gen s4_committee.Generator = s4_committee.NewRulesGenerator(stubs)
	if !opts.NoLLM && cfg.LLMEnabled() {
		client := openai.NewClient(httputil.NewWithTimeout(cfg, log, cfg.LLM.Timeout), log, cfg.LLM.BaseURL, cfg.LLM.APIKey)
		gen = s4_committee.NewLLMGenerator(client, cfg.LLM.Models(), stubs, s4_committee.NewTrace(cfg.LLM.TracePath), log).
			WithTimeout(cfg.LLM.Timeout).
			WithGuards(guards)
	}

	publisher := NewPublisher(cfg.Output.RunsDir)
	runner := NewRunner(Deps{
		Collector: col,
		Gate:      quality.NewQualityGate(rules.Quality),
		Assembler: s2_snapshot.NewAssembler(s1_signals.NewEngine(rules.Signals.Earnings), log),
		Generator: gen,
		Store:     store,
		Publisher: publisher,
		Cache:     cache,
		Guards:    guards,
	}, log)

	c := &Components{
		Config:    cfg,
		Rules:     rules,
		Guards:    guards,
		Redis:     rdb,
		Store:     store,
		Cache:     cache,
		Runner:    runner,
		Publisher: publisher,
	}

	if store != nil {
		// typed nil clients must not become non-nil interfaces
		var closes CloseSource
		var series ObservationSource
		clients := provider.Clients()
		if clients.Yahoo != nil {
			closes = clients.Yahoo
		}
		if clients.FRED != nil {
			series = clients.FRED
		}
		c.Backfiller = NewBackfiller(store, closes, series, log)
	}

	return c, nil
}

// RunOptions returns run options filled from configuration
func (c *Components) RunOptions() Options {
	return Options{
		Watchlist: c.Config.Output.Watchlist,
		Persist:   c.Store != nil,
		Publish:   true,
		Collector: collector.Config{
			Workers:      c.Config.Collector.Workers,
			FetchTimeout: c.Config.Collector.FetchTimeout,
		},
	}
}

// Close releases the store and Redis connections
func (c *Components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
