package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/aegis-committee/internal/pipeline"
	"github.com/wonny/aegis-committee/internal/s5_validate"
	"github.com/wonny/aegis-committee/internal/scheduler"
	"github.com/wonny/aegis-committee/pkg/logger"
)

// DefaultReportSchedule is weekdays 16:30, after the Korean close
const DefaultReportSchedule = "0 30 16 * * 1-5"

// ReportRunner runs the full pipeline
type ReportRunner interface {
	Run(ctx context.Context, opts pipeline.Options) (*pipeline.Result, error)
}

// DailyReportJob produces the committee report once per trading day
// ⭐ SSOT: 데일리 리포트 스케줄은 이 Job에서만
type DailyReportJob struct {
	runner   ReportRunner
	options  pipeline.Options
	schedule string
	logger   *logger.Logger
}

// NewDailyReportJob creates a daily report job. An empty schedule uses DefaultReportSchedule.
func NewDailyReportJob(runner ReportRunner, opts pipeline.Options, schedule string, log *logger.Logger) *DailyReportJob {
	if schedule == "" {
		schedule = DefaultReportSchedule
	}
	return &DailyReportJob{
		runner:   runner,
		options:  opts,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *DailyReportJob) Name() string {
	return "daily_report"
}

// Schedule returns the cron schedule
func (j *DailyReportJob) Schedule() string {
	return j.schedule
}

// Run executes the pipeline for today's market date
func (j *DailyReportJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled committee run")

	opts := j.options
	opts.Date = time.Time{} // the runner picks the current date per attempt
	res, err := j.runner.Run(ctx, opts)
	var verr *s5_validate.ValidationError
	if errors.As(err, &verr) {
		// same snapshot, same rejection; the trace file shows what tripped it
		return scheduler.Permanent(fmt.Errorf("committee run: %w", err))
	}
	if err != nil {
		return fmt.Errorf("committee run: %w", err)
	}

	fields := map[string]interface{}{
		"market_date": res.Report.MarketDate,
		"consensus":   res.Report.CommitteeResult.Consensus,
		"fallbacks":   len(res.Fallbacks),
	}
	if res.Artifacts != nil {
		fields["report"] = res.Artifacts.Report
	}
	j.logger.WithFields(fields).Info("Scheduled committee run completed")
	return nil
}
