package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-committee/internal/pipeline"
	"github.com/wonny/aegis-committee/pkg/config"
	"github.com/wonny/aegis-committee/pkg/logger"
)

var (
	// Global flags
	configFile string
	env        string
	verbose    bool
)

var validEnvs = map[string]bool{"development": true, "staging": true, "production": true}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "committee",
	Short: "Aegis Committee - 데일리 AI 투자위원회",
	Long: `Aegis Committee CLI

시장 스냅샷을 수집하고 7개 AI 에이전트 의견을 합의 리포트로 만듭니다.
S0 수집 → S1 신호 → S2 스냅샷 → S3 저장 → S4 위원회 → S5 검증 → S6 발행

Usage:
  go run ./cmd/committee [command]

Examples:
  go run ./cmd/committee run
  go run ./cmd/committee run --date 2026-10-16 --no-llm
  go run ./cmd/committee snapshot
  go run ./cmd/committee backfill --dry-run
  go run ./cmd/committee serve`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and runs it.
// SIGINT/SIGTERM cancel the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "env file (default is .env)")
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "environment override (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadConfig applies the global flags on top of the environment
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFrom(configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if env != "" {
		if !validEnvs[env] {
			return nil, fmt.Errorf("--env must be one of: development, staging, production")
		}
		cfg.Env = env
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// buildApp loads configuration and wires every component
func buildApp(opts pipeline.BuildOptions) (*pipeline.Components, *logger.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	return buildAppWith(cfg, opts)
}

func buildAppWith(cfg *config.Config, opts pipeline.BuildOptions) (*pipeline.Components, *logger.Logger, error) {
	log := logger.New(cfg)
	app, err := pipeline.Build(cfg, log, opts)
	if err != nil {
		return nil, nil, err
	}
	return app, log, nil
}

// requireStore fails commands that only make sense with persistence
func requireStore(app *pipeline.Components) error {
	if app.Store == nil {
		return fmt.Errorf("store unavailable (check COMMITTEE_DB_PATH)")
	}
	return nil
}
