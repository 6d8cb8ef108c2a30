package commands

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-committee/internal/pipeline"
	"github.com/wonny/aegis-committee/internal/s3_store"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "SQLite 스키마 마이그레이션",
	Long: `스키마를 최신 버전으로 올립니다 (재실행해도 안전).

--nulls 를 주면 과거에 0 등으로 저장된 결측 placeholder 를 NULL 로 바꿉니다.

Example:
  go run ./cmd/committee migrate
  go run ./cmd/committee migrate --nulls`,
	RunE: runMigrate,
}

// backfillCmd represents the backfill command
var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "구조 매크로 컬럼 백필 (VIX3M, OAS, 연준 자산)",
	RunE:  runBackfill,
}

// rollingCmd represents the rolling command
var rollingCmd = &cobra.Command{
	Use:   "rolling",
	Short: "수급 누적 합계 조회",
	Long: `market_flow_daily 의 최근 N일 합계를 계산합니다.
데이터가 부족하면 0 이 아니라 n/a 를 출력합니다.`,
	RunE: runRolling,
}

var (
	migrateNulls   bool
	backfillDryRun bool
	backfillLimit  int
	rollingColumn  string
	rollingWindow  int
)

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(backfillCmd)
	rootCmd.AddCommand(rollingCmd)

	migrateCmd.Flags().BoolVar(&migrateNulls, "nulls", false, "rewrite placeholder values to NULL")

	backfillCmd.Flags().BoolVar(&backfillDryRun, "dry-run", false, "fetch and print without writing")
	backfillCmd.Flags().IntVar(&backfillLimit, "limit", 0, "max dates (0 = all)")

	rollingCmd.Flags().StringVar(&rollingColumn, "column", "foreign_net",
		"column ("+strings.Join(s3_store.RollingColumns(), "|")+")")
	rollingCmd.Flags().IntVar(&rollingWindow, "window", 20, "window in rows")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	app, _, err := buildApp(pipeline.BuildOptions{NoLLM: true})
	if err != nil {
		return err
	}
	defer app.Close()
	if err := requireStore(app); err != nil {
		return err
	}

	PrintSuccess(fmt.Sprintf("Schema at version %d (%s)", app.Store.Version(), app.Config.Database.Path))

	if !migrateNulls {
		return nil
	}

	counts, err := app.Store.MigratePlaceholdersToNull(cmd.Context())
	if err != nil {
		return fmt.Errorf("migrate placeholders: %w", err)
	}

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	widths := []int{36, 8}
	PrintTableHeader([]string{"COLUMN", "NULLED"}, widths)
	for _, k := range keys {
		PrintTableRow([]string{k, fmt.Sprintf("%d", counts[k])}, widths)
	}
	return nil
}

func runBackfill(cmd *cobra.Command, args []string) error {
	app, _, err := buildApp(pipeline.BuildOptions{NoLLM: true})
	if err != nil {
		return err
	}
	defer app.Close()
	if err := requireStore(app); err != nil {
		return err
	}

	summary, err := app.Backfiller.Run(cmd.Context(), backfillLimit, backfillDryRun)
	if err != nil {
		return fmt.Errorf("backfill: %w", err)
	}

	widths := []int{10, 8, 8, 8, 8, 12, 7, 24}
	PrintTableHeader([]string{"DATE", "VIX3M", "SPREAD", "HY", "IG", "FED_BS", "SAVED", "MISSING"}, widths)
	for _, row := range summary.Rows {
		v := row.Values
		PrintTableRow([]string{
			row.Date,
			FormatFloat(v.VIX3M, 2),
			FormatFloat(v.VIXTermSpread, 2),
			FormatFloat(v.HYOAS, 2),
			FormatFloat(v.IGOAS, 2),
			FormatFloat(v.FedBalanceSheet, 0),
			fmt.Sprintf("%v", row.Updated),
			strings.Join(row.Missing, ","),
		}, widths)
	}

	fmt.Println()
	if summary.DryRun {
		PrintInfo(fmt.Sprintf("Dry run: %d candidate dates, nothing written", summary.Candidates))
		return nil
	}
	PrintSuccess(fmt.Sprintf("Updated %d of %d candidate dates", summary.Updated, summary.Candidates))
	return nil
}

func runRolling(cmd *cobra.Command, args []string) error {
	app, _, err := buildApp(pipeline.BuildOptions{NoLLM: true})
	if err != nil {
		return err
	}
	defer app.Close()
	if err := requireStore(app); err != nil {
		return err
	}

	sum, err := app.Store.RollingSum(cmd.Context(), rollingColumn, rollingWindow)
	if errors.Is(err, s3_store.ErrInsufficientHistory) {
		PrintKeyValue(fmt.Sprintf("%s/%d", rollingColumn, rollingWindow), "n/a", 16)
		PrintInfo(err.Error())
		return nil
	}
	if err != nil {
		return err
	}

	PrintKeyValue(fmt.Sprintf("%s/%d", rollingColumn, rollingWindow), fmt.Sprintf("%.0f", sum), 16)
	return nil
}
