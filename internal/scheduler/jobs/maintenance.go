package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/aegis-committee/internal/pipeline"
	"github.com/wonny/aegis-committee/pkg/logger"
)

// Backfill fills late-added daily_macro columns
type Backfill interface {
	Run(ctx context.Context, limit int, dryRun bool) (*pipeline.BackfillSummary, error)
}

// PlaceholderRepair rewrites legacy placeholder values to NULL
type PlaceholderRepair interface {
	SafeMigratePlaceholdersToNull(ctx context.Context) map[string]int64
}

// MaintenanceJob repairs placeholders and backfills structural macro columns (weekly)
type MaintenanceJob struct {
	repair   PlaceholderRepair
	backfill Backfill
	limit    int
	logger   *logger.Logger
}

// NewMaintenanceJob creates a new maintenance job. limit caps dates per backfill pass.
func NewMaintenanceJob(repair PlaceholderRepair, backfill Backfill, limit int, log *logger.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		repair:   repair,
		backfill: backfill,
		limit:    limit,
		logger:   log,
	}
}

// Name returns the job name
func (j *MaintenanceJob) Name() string {
	return "store_maintenance"
}

// Schedule returns the cron schedule (Saturday 06:00)
func (j *MaintenanceJob) Schedule() string {
	return "0 0 6 * * 6"
}

// Run executes the maintenance
func (j *MaintenanceJob) Run(ctx context.Context) error {
	j.logger.Debug("Starting scheduled store maintenance")

	if j.repair != nil {
		changed := j.repair.SafeMigratePlaceholdersToNull(ctx)
		total := int64(0)
		for _, n := range changed {
			total += n
		}
		if total > 0 {
			j.logger.WithField("nulled", total).Info("Placeholder values repaired")
		}
	}

	if j.backfill != nil {
		summary, err := j.backfill.Run(ctx, j.limit, false)
		if err != nil {
			return fmt.Errorf("backfill: %w", err)
		}
		if summary.Updated > 0 {
			j.logger.WithField("updated", summary.Updated).Info("Backfill completed")
		}
	}

	return nil
}
