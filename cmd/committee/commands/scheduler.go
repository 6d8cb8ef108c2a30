package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-committee/internal/pipeline"
	"github.com/wonny/aegis-committee/internal/scheduler"
	"github.com/wonny/aegis-committee/internal/scheduler/jobs"
	"github.com/wonny/aegis-committee/pkg/logger"
)

// maintenanceBackfillLimit caps dates per weekly backfill pass
const maintenanceBackfillLimit = 60

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `스케줄러를 시작하거나 작업을 관리합니다.

Subcommands:
  start   - 스케줄러 시작
  list    - 등록된 작업 목록
  run     - 특정 작업 즉시 실행

Example:
  go run ./cmd/committee scheduler start
  go run ./cmd/committee scheduler list
  go run ./cmd/committee scheduler run daily_report`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `스케줄러를 시작하고 등록된 모든 작업을 스케줄합니다.

등록되는 작업:
- daily_report: 평일 16:30 (REPORT_SCHEDULE, REPORT_TZ)
- store_maintenance: 토요일 06:00 (placeholder 정리 + 백필, 저장소가 있을 때)

스케줄러는 Ctrl+C로 종료할 수 있습니다.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행 (완료까지 대기)",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Aegis Committee Scheduler ===")

	app, log, err := buildApp(pipeline.BuildOptions{})
	if err != nil {
		return err
	}
	defer app.Close()

	sched, err := initScheduler(app, log)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	sched.Start()

	fmt.Println("\n✅ Scheduler started successfully")
	fmt.Println("\nRegistered jobs:")
	for _, job := range sched.Jobs() {
		fmt.Printf("  - %s (next: %s)\n", job.Name, job.Next.Format("2006-01-02 15:04:05 MST"))
	}
	fmt.Println("\nPress Ctrl+C to stop")

	<-cmd.Context().Done()

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	fmt.Println("Scheduler stopped")

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	app, log, err := buildApp(pipeline.BuildOptions{NoLLM: true})
	if err != nil {
		return err
	}
	defer app.Close()

	sched, err := initScheduler(app, log)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	widths := []int{20, 20}
	PrintTableHeader([]string{"JOB", "SCHEDULE"}, widths)
	for _, job := range sched.Jobs() {
		PrintTableRow([]string{job.Name, job.Schedule}, widths)
	}
	fmt.Println()
	PrintKeyValue("Time zone", app.Config.Output.ScheduleTZ, 10)

	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]
	fmt.Printf("Running job: %s\n", jobName)

	app, log, err := buildApp(pipeline.BuildOptions{})
	if err != nil {
		return err
	}
	defer app.Close()

	sched, err := initScheduler(app, log)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	result, err := sched.RunJob(cmd.Context(), jobName)
	if err != nil {
		return fmt.Errorf("run job: %w", err)
	}
	if !result.Success {
		PrintError(fmt.Sprintf("Job %s failed after %d attempt(s): %s", jobName, result.Attempts, result.Error))
		return fmt.Errorf("job %s failed", jobName)
	}

	PrintCompletion("Job "+jobName, result.Duration.Seconds())
	return nil
}

func initScheduler(app *pipeline.Components, log *logger.Logger) (*scheduler.Scheduler, error) {
	loc := scheduler.LoadLocation(app.Config.Output.ScheduleTZ, log)
	sched := scheduler.New(log, scheduler.WithLocation(loc))

	daily := jobs.NewDailyReportJob(app.Runner, app.RunOptions(), app.Config.Output.Schedule, log)
	if err := sched.AddJob(daily); err != nil {
		return nil, err
	}

	if app.Store != nil {
		maintenance := jobs.NewMaintenanceJob(app.Store, app.Backfiller, maintenanceBackfillLimit, log)
		if err := sched.AddJob(maintenance); err != nil {
			return nil, err
		}
	}

	return sched, nil
}
