package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-committee/internal/pipeline"
	"github.com/wonny/aegis-committee/internal/rulesconfig"
	"github.com/wonny/aegis-committee/internal/s5_validate"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "최근 실행 및 데이터 소스 상태",
	RunE:  runStatus,
}

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate <report.json>",
	Short: "리포트 파일 검증 (스키마 + 안전 규칙)",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

var statusLimit int

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(validateCmd)

	statusCmd.Flags().IntVar(&statusLimit, "limit", 10, "recent runs to list")
}

func runStatus(cmd *cobra.Command, args []string) error {
	app, _, err := buildApp(pipeline.BuildOptions{NoLLM: true})
	if err != nil {
		return err
	}
	defer app.Close()

	fmt.Println("=== Aegis Committee Status ===")
	fmt.Println()

	if app.Store == nil {
		PrintWarning("Store unavailable: run history not shown")
	} else {
		runs, err := app.Store.ListRuns(cmd.Context(), statusLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			PrintInfo("No runs recorded yet")
		} else {
			widths := []int{10, 20, 9, 36}
			PrintTableHeader([]string{"DATE", "GENERATED", "MAJORITY", "FALLBACK AGENTS"}, widths)
			for _, r := range runs {
				fallbacks := strings.Join(r.FallbackAgents, ",")
				if fallbacks == "" {
					fallbacks = "-"
				}
				PrintTableRow([]string{
					r.MarketDate,
					r.GeneratedAt.Format("2006-01-02 15:04:05"),
					r.Majority,
					fallbacks,
				}, widths)
			}
		}
		fmt.Println()
	}

	report, err := app.Publisher.Latest()
	if errors.Is(err, pipeline.ErrNoReport) {
		PrintInfo("No report published yet")
		return nil
	}
	if err != nil {
		return err
	}

	PrintKeyValue("Latest report", report.MarketDate, 14)
	PrintKeyValue("Consensus", report.CommitteeResult.Consensus, 14)
	printFailures(report.SourceStatus)
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	report, err := pipeline.LoadReport(args[0])
	if err != nil {
		PrintError(err.Error())
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rules, err := rulesconfig.Load(cfg.Output.RulesPath)
	if err != nil {
		PrintError(fmt.Sprintf("rules: %v", err))
		return err
	}

	if err := s5_validate.NewGuards(rules.Guards).Report(report); err != nil {
		PrintError(err.Error())
		return err
	}

	PrintSuccess(fmt.Sprintf("%s is valid (%s, %d stances)", args[0], report.MarketDate, len(report.Stances)))
	return nil
}
