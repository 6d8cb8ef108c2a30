package commands

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-committee/internal/contracts"
	"github.com/wonny/aegis-committee/internal/pipeline"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "위원회 파이프라인 실행 (S0~S6)",
	Long: `시장 데이터를 수집하고 위원회 리포트를 생성합니다.

이 명령어는:
- 소스별 데이터 수집 (실패는 null + 사유로 기록)
- 파생 신호 계산 및 스냅샷 구성
- SQLite 저장 (실패해도 계속 진행)
- 7개 에이전트 의견 생성 및 합의
- 검증 후 runs/<date>/ 에 산출물 발행

Example:
  go run ./cmd/committee run
  go run ./cmd/committee run --date 2026-10-16 --no-llm --out /tmp/runs`,
	RunE: runPipeline,
}

// snapshotCmd represents the snapshot command
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "스냅샷만 생성 (S0~S2, JSON 출력)",
	RunE:  runSnapshot,
}

var (
	runDate      string
	runNoLLM     bool
	runNoPersist bool
	runOut       string
)

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(snapshotCmd)

	runCmd.Flags().StringVar(&runDate, "date", "", "market date YYYY-MM-DD (default today)")
	runCmd.Flags().BoolVar(&runNoLLM, "no-llm", false, "rule-based stances only")
	runCmd.Flags().BoolVar(&runNoPersist, "no-persist", false, "skip the SQLite store")
	runCmd.Flags().StringVar(&runOut, "out", "", "runs directory override")

	snapshotCmd.Flags().StringVar(&runDate, "date", "", "market date YYYY-MM-DD (default today)")
}

func parseRunDate() (time.Time, error) {
	if runDate == "" {
		return time.Time{}, nil
	}
	d, err := time.ParseInLocation("2006-01-02", runDate, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
	}
	return d, nil
}

func runPipeline(cmd *cobra.Command, args []string) error {
	date, err := parseRunDate()
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runOut != "" {
		cfg.Output.RunsDir = runOut
	}

	app, _, err := buildAppWith(cfg, pipeline.BuildOptions{NoLLM: runNoLLM, NoStore: runNoPersist})
	if err != nil {
		return err
	}
	defer app.Close()

	mode := "llm"
	if runNoLLM || !cfg.LLMEnabled() {
		mode = "rules"
	}

	opts := app.RunOptions()
	opts.Date = date

	start := time.Now()
	res, err := app.Runner.Run(cmd.Context(), opts)
	if err != nil {
		PrintError(err.Error())
		return err
	}

	report := res.Report
	PrintRunHeader(RunMetadata{
		Title:      "데일리 AI 투자위원회",
		MarketDate: report.MarketDate,
		RunID:      report.RunID,
		Mode:       mode,
	})

	PrintKeyValue("Quality", fmt.Sprintf("%.2f (passed=%v)", res.Quality.QualityScore, res.Quality.Passed), 10)
	PrintKeyValue("Consensus", report.CommitteeResult.Consensus, 10)
	PrintKeyValue("Persisted", fmt.Sprintf("%v", res.Persisted), 10)
	if len(res.Fallbacks) > 0 {
		names := make([]string, len(res.Fallbacks))
		for i, a := range res.Fallbacks {
			names[i] = string(a)
		}
		PrintKeyValue("Fallbacks", strings.Join(names, ", "), 10)
	}

	printFailures(report.SourceStatus)

	if res.Artifacts != nil {
		fmt.Println()
		PrintInfo("Artifacts")
		PrintList([]string{res.Artifacts.Report, res.Artifacts.Markdown})
	}

	PrintCompletion("Committee run", time.Since(start).Seconds())
	return nil
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	date, err := parseRunDate()
	if err != nil {
		return err
	}

	app, _, err := buildApp(pipeline.BuildOptions{NoLLM: true})
	if err != nil {
		return err
	}
	defer app.Close()

	opts := app.RunOptions()
	opts.Date = date
	prep, err := app.Runner.Prepare(cmd.Context(), opts)
	if err != nil {
		return err
	}

	return PrintJSON(map[string]interface{}{
		"market_date":   prep.MarketDate,
		"snapshot":      prep.Snapshot,
		"source_status": prep.Status,
		"quality":       prep.Quality,
	})
}

// printFailures lists FAIL fields with reasons, sorted
func printFailures(status contracts.StatusMap) {
	failures := status.Failures()
	if len(failures) == 0 {
		PrintSuccess(fmt.Sprintf("All %d sources OK", status.Len()))
		return
	}

	PrintWarning(fmt.Sprintf("%d of %d sources failed", len(failures), status.Len()))
	fields := make([]string, 0, len(failures))
	for f := range failures {
		fields = append(fields, string(f))
	}
	sort.Strings(fields)

	items := make([]string, len(fields))
	for i, f := range fields {
		items[i] = fmt.Sprintf("%s: %s", f, failures[contracts.Field(f)])
	}
	PrintList(items)
}
