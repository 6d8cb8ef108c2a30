package s3_store

import (
	"context"

	"github.com/wonny/aegis-committee/internal/contracts"
)

// Safe… wrappers log and absorb write errors. Persistence never blocks a run.

func (s *Store) absorb(op, date string, err error) bool {
	if err == nil {
		return true
	}
	s.logger.WithError(err).WithFields(map[string]interface{}{
		"op":   op,
		"date": date,
	}).Warn("Store write failed (absorbed)")
	return false
}

// SafeSaveSnapshot is SaveSnapshot that never fails. Reports whether every write succeeded.
func (s *Store) SafeSaveSnapshot(ctx context.Context, date string, snap *contracts.Snapshot, status contracts.StatusMap) bool {
	return s.absorb("save_snapshot", date, s.SaveSnapshot(ctx, date, snap, status))
}

func (s *Store) SafeUpsertMarketDaily(ctx context.Context, date string, snap *contracts.Snapshot, status contracts.StatusMap) bool {
	return s.absorb("upsert_market_daily", date, s.UpsertMarketDaily(ctx, date, snap, status))
}

func (s *Store) SafeUpsertFlowDaily(ctx context.Context, date string, snap *contracts.Snapshot, status contracts.StatusMap) bool {
	return s.absorb("upsert_flow_daily", date, s.UpsertFlowDaily(ctx, date, snap, status))
}

func (s *Store) SafeUpsertDailyMacro(ctx context.Context, date string, snap *contracts.Snapshot, status contracts.StatusMap) bool {
	return s.absorb("upsert_daily_macro", date, s.UpsertDailyMacro(ctx, date, snap, status))
}

func (s *Store) SafeUpsertMonthlyMacro(ctx context.Context, date string, snap *contracts.Snapshot, status contracts.StatusMap) bool {
	return s.absorb("upsert_monthly_macro", date, s.UpsertMonthlyMacro(ctx, date, snap, status))
}

func (s *Store) SafeUpsertQuarterlyMacro(ctx context.Context, date string, snap *contracts.Snapshot, status contracts.StatusMap) bool {
	return s.absorb("upsert_quarterly_macro", date, s.UpsertQuarterlyMacro(ctx, date, snap, status))
}

func (s *Store) SafeUpsertMarketForward(ctx context.Context, date string, snap *contracts.Snapshot, status contracts.StatusMap) bool {
	return s.absorb("upsert_market_forward", date, s.UpsertMarketForward(ctx, date, snap, status))
}

// SafeRecordRun is RecordRun that never fails
func (s *Store) SafeRecordRun(ctx context.Context, rec RunRecord) bool {
	return s.absorb("record_run", rec.MarketDate, s.RecordRun(ctx, rec))
}

// SafeUpdateBackfill is UpdateBackfill that never fails
func (s *Store) SafeUpdateBackfill(ctx context.Context, date string, v BackfillValues) bool {
	return s.absorb("update_backfill", date, s.UpdateBackfill(ctx, date, v))
}

// SafeMigratePlaceholdersToNull returns an empty map on failure
func (s *Store) SafeMigratePlaceholdersToNull(ctx context.Context) map[string]int64 {
	counts, err := s.MigratePlaceholdersToNull(ctx)
	if !s.absorb("migrate_placeholders_to_null", "", err) {
		return map[string]int64{}
	}
	return counts
}

// SafeForwardEPSOnOrBefore treats lookup failures as "no history"
func (s *Store) SafeForwardEPSOnOrBefore(ctx context.Context, date string, daysBack int) *float64 {
	eps, err := s.ForwardEPSOnOrBefore(ctx, date, daysBack)
	if !s.absorb("forward_eps_on_or_before", date, err) {
		return nil
	}
	return eps
}
