package s3_store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-committee/internal/contracts"
	"github.com/wonny/aegis-committee/pkg/config"
	"github.com/wonny/aegis-committee/pkg/database"
	"github.com/wonny/aegis-committee/pkg/logger"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{Database: config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "committee.db")}}
}

func openStore(t *testing.T, cfg *config.Config) *Store {
	t.Helper()
	s, err := Open(cfg, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func okStatus(failed ...contracts.Field) contracts.StatusMap {
	entries := make(map[contracts.Field]contracts.FieldStatus)
	for _, f := range contracts.AllFields() {
		entries[f] = contracts.FieldStatus{Status: contracts.StatusOK}
	}
	for _, f := range failed {
		entries[f] = contracts.FieldStatus{Status: contracts.StatusFail, Reason: "unavailable"}
	}
	return contracts.NewStatusMap(entries)
}

func sampleSnapshot() *contracts.Snapshot {
	f := contracts.Float
	snap := &contracts.Snapshot{}
	snap.Markets.KR = contracts.KRMarkets{KOSPIPct: f(0.84), KOSDAQPct: f(1.12)}
	snap.Markets.US = contracts.USMarkets{SP500Pct: f(0.35), NASDAQPct: f(0.62), DOWPct: f(0.11)}
	snap.Markets.FX = contracts.FXMarkets{USDKRW: f(1382.5), USDKRWPct: f(0.1)}
	snap.Markets.Volatility = contracts.Volatility{VIX: f(15.8), VIX3M: f(17.9), VIXTermSpread: f(2.1)}
	snap.Macro.Daily = contracts.DailyMacro{US10Y: f(4.21), US2Y: f(3.98), Spread210: f(0.23), VIX: f(15.8), DXY: f(101.4), USDKRW: f(1382.5)}
	snap.Macro.Monthly = contracts.MonthlyMacro{UnemploymentRate: f(4.1), CPIYoY: f(2.9), WageLevel: f(35.1), WageYoY: f(3.8)}
	snap.Macro.Quarterly = contracts.QuarterlyMacro{RealGDP: f(23400), GDPQoQAnnualized: f(2.4)}
	snap.Macro.Structural = contracts.StructuralMacro{FedFundsRate: f(4.33), Breakeven10Y: f(2.31), RealRate: f(1.9)}
	snap.Macro.Forward = contracts.ForwardMetrics{SP500ForwardPE: f(21.3), SP500ForwardEPS: f(271.4)}
	snap.FlowSummary = contracts.FlowSummary{Note: "flows", ForeignNet: f(1730), InstitutionNet: f(-295), RetailNet: f(-1435)}
	return snap
}

func flowSnapshot(foreign float64) *contracts.Snapshot {
	return &contracts.Snapshot{FlowSummary: contracts.FlowSummary{
		ForeignNet:     contracts.Float(foreign),
		InstitutionNet: contracts.Float(0),
		RetailNet:      contracts.Float(-foreign),
	}}
}

func day(i int) string {
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i).Format(DateLayout)
}

func columnsOf(t *testing.T, s *Store, table string) map[string]bool {
	t.Helper()
	cols, err := s.tableColumns(context.Background(), table)
	require.NoError(t, err)
	return cols
}

func TestOpen_SchemaAndColumns(t *testing.T) {
	cfg := testConfig(t)
	s := openStore(t, cfg)

	assert.Equal(t, uint(1), s.Version())
	for _, table := range additiveColumns {
		cols := columnsOf(t, s, table.table)
		for _, c := range table.columns {
			assert.True(t, cols[c], "%s.%s", table.table, c)
		}
	}
	assert.True(t, columnsOf(t, s, "stock_daily")["volume_ratio"])
	assert.True(t, columnsOf(t, s, "run_log")["fallback_agents"])
}

func TestOpen_Idempotent(t *testing.T) {
	cfg := testConfig(t)
	first, err := Open(cfg, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, first.UpsertMarketDaily(context.Background(), day(0), sampleSnapshot(), okStatus()))
	require.NoError(t, first.Close())

	second := openStore(t, cfg)
	row, err := second.GetMarketDaily(context.Background(), day(0))
	require.NoError(t, err)
	assert.Equal(t, 0.84, *row.KOSPIPct)
}

func TestOpen_LegacyLayout(t *testing.T) {
	cfg := testConfig(t)

	legacy, err := database.New(cfg)
	require.NoError(t, err)
	_, err = legacy.SQL.Exec(`
		CREATE TABLE monthly_macro (date TEXT PRIMARY KEY, cpi_yoy REAL, wage_level REAL, wage_growth REAL, created_at TEXT);
		INSERT INTO monthly_macro VALUES ('2025-01-01', 3.0, NULL, 4.2, 'x');
		INSERT INTO monthly_macro VALUES ('2025-02-01', 2.9, 35.5, 4.1, 'x');
		CREATE TABLE daily_macro (date TEXT PRIMARY KEY, us10y REAL, us2y REAL, spread_2_10 REAL, vix REAL, created_at TEXT);
		INSERT INTO daily_macro VALUES ('2025-02-03', 4.5, 4.2, 0.3, 18.0, 'x');
	`)
	require.NoError(t, err)
	require.NoError(t, legacy.Close())

	s := openStore(t, cfg)

	cols := columnsOf(t, s, "monthly_macro")
	assert.False(t, cols["wage_growth"])
	assert.True(t, cols["wage_yoy"])
	assert.True(t, columnsOf(t, s, "daily_macro")["fed_balance_sheet"])

	rows, err := s.db.SQL.Query(`SELECT date, cpi_yoy, wage_level FROM monthly_macro ORDER BY date`)
	require.NoError(t, err)
	type monthly struct {
		date string
		cpi  *float64
		wage *float64
	}
	var got []monthly
	for rows.Next() {
		var m monthly
		require.NoError(t, rows.Scan(&m.date, &m.cpi, &m.wage))
		got = append(got, m)
	}
	require.NoError(t, rows.Close())

	require.Len(t, got, 2)
	assert.Equal(t, 4.2, *got[0].wage)
	assert.Equal(t, 35.5, *got[1].wage)
	assert.Equal(t, 2.9, *got[1].cpi)

	// Rebuild happens once
	require.NoError(t, s.consolidateWage(context.Background()))
	assert.Len(t, columnsOf(t, s, "monthly_macro"), len(monthlyColumns))

	candidates, err := s.BackfillCandidates(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-02-03"}, candidates)
}

func TestSaveSnapshot_NullForFail(t *testing.T) {
	s := openStore(t, testConfig(t))
	ctx := context.Background()

	// VIX carries a value but its status failed: nothing but NULL may land
	snap := sampleSnapshot()
	status := okStatus(contracts.FieldVIX, contracts.FieldUSDKRWPct)
	snap.Markets.FX.USDKRWPct = nil

	require.NoError(t, s.SaveSnapshot(ctx, day(0), snap, status))

	row, err := s.GetMarketDaily(ctx, day(0))
	require.NoError(t, err)
	assert.Nil(t, row.VIX)
	assert.Nil(t, row.USDKRWPct)
	assert.Equal(t, 1382.5, *row.USDKRW)
	assert.NotNil(t, row.CreatedAt)

	var vix, vix3m, spread *float64
	require.NoError(t, s.db.SQL.QueryRow(
		`SELECT vix, vix3m, vix_term_spread FROM daily_macro WHERE date = ?`, day(0),
	).Scan(&vix, &vix3m, &spread))
	assert.Nil(t, vix)
	assert.Equal(t, 17.9, *vix3m)
	assert.Equal(t, 2.1, *spread)

	flow, err := s.GetFlowDaily(ctx, day(0))
	require.NoError(t, err)
	assert.Equal(t, 1730.0, *flow.ForeignNet)
	assert.Nil(t, flow.Foreign20D)
}

func TestSaveSnapshot_ZeroIsNotNull(t *testing.T) {
	s := openStore(t, testConfig(t))
	ctx := context.Background()

	snap := sampleSnapshot()
	snap.Markets.KR.KOSPIPct = contracts.Float(0)
	require.NoError(t, s.SaveSnapshot(ctx, day(0), snap, okStatus()))

	row, err := s.GetMarketDaily(ctx, day(0))
	require.NoError(t, err)
	require.NotNil(t, row.KOSPIPct)
	assert.Equal(t, 0.0, *row.KOSPIPct)
}

func TestUpsert_ReplacesRow(t *testing.T) {
	s := openStore(t, testConfig(t))
	ctx := context.Background()

	require.NoError(t, s.UpsertMarketDaily(ctx, day(0), sampleSnapshot(), okStatus()))
	require.NoError(t, s.UpsertMarketDaily(ctx, day(0), sampleSnapshot(), okStatus(contracts.FieldKOSPI)))

	row, err := s.GetMarketDaily(ctx, day(0))
	require.NoError(t, err)
	assert.Nil(t, row.KOSPIPct)

	var n int
	require.NoError(t, s.db.SQL.QueryRow(`SELECT COUNT(*) FROM market_daily`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestGet_NotFound(t *testing.T) {
	s := openStore(t, testConfig(t))

	_, err := s.GetMarketDaily(context.Background(), "1999-01-01")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetFlowDaily(context.Background(), "1999-01-01")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.LatestRun(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRollingSum(t *testing.T) {
	s := openStore(t, testConfig(t))
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		require.NoError(t, s.UpsertFlowDaily(ctx, day(i), flowSnapshot(float64(i+1)), okStatus()))
	}

	tests := []struct {
		name    string
		column  string
		window  int
		want    float64
		wantErr error
	}{
		{name: "last 20", column: "foreign_net", window: 20, want: 310}, // 6..25
		{name: "last 1", column: "foreign_net", window: 1, want: 25},
		{name: "all rows", column: "foreign_net", window: 25, want: 325},
		{name: "window longer than history", column: "foreign_net", window: 60, wantErr: ErrInsufficientHistory},
		{name: "rolling column partly null", column: "foreign_20d", window: 10, wantErr: ErrInsufficientHistory},
		{name: "zero window", column: "foreign_net", window: 0, wantErr: ErrInvalidWindow},
		{name: "negative window", column: "foreign_net", window: -3, wantErr: ErrInvalidWindow},
		{name: "unknown column", column: "retail_net; DROP TABLE run_log", window: 5, wantErr: ErrUnknownColumn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.RollingSum(ctx, tt.column, tt.window)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestUpsertFlowDaily_UpdatesRollings(t *testing.T) {
	s := openStore(t, testConfig(t))
	ctx := context.Background()

	for i := 0; i < 21; i++ {
		require.NoError(t, s.UpsertFlowDaily(ctx, day(i), flowSnapshot(10), okStatus()))
	}

	row, err := s.GetFlowDaily(ctx, day(18))
	require.NoError(t, err)
	assert.Nil(t, row.Foreign20D)

	row, err = s.GetFlowDaily(ctx, day(19))
	require.NoError(t, err)
	require.NotNil(t, row.Foreign20D)
	assert.Equal(t, 200.0, *row.Foreign20D)
	assert.Nil(t, row.Foreign60D)

	// A failed flow day is NULL and breaks the next window
	require.NoError(t, s.UpsertFlowDaily(ctx, day(21), flowSnapshot(10), okStatus(contracts.FieldFlows)))
	row, err = s.GetFlowDaily(ctx, day(21))
	require.NoError(t, err)
	assert.Nil(t, row.ForeignNet)
	assert.Nil(t, row.Foreign20D)
}

func TestUpsertFlowDaily_BackdatedRefreshesLaterRollings(t *testing.T) {
	s := openStore(t, testConfig(t))
	ctx := context.Background()

	// day 10 arrives late
	for i := 0; i < 22; i++ {
		if i == 10 {
			continue
		}
		require.NoError(t, s.UpsertFlowDaily(ctx, day(i), flowSnapshot(10), okStatus()))
	}

	row, err := s.GetFlowDaily(ctx, day(19))
	require.NoError(t, err)
	assert.Nil(t, row.Foreign20D, "19 rows up to day 19")

	require.NoError(t, s.UpsertFlowDaily(ctx, day(10), flowSnapshot(100), okStatus()))

	tests := []struct {
		date string
		want *float64
	}{
		{date: day(10), want: nil}, // 11 rows
		{date: day(18), want: nil},
		{date: day(19), want: contracts.Float(290)},
		{date: day(20), want: contracts.Float(290)},
		{date: day(21), want: contracts.Float(290)},
	}
	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			row, err := s.GetFlowDaily(ctx, tt.date)
			require.NoError(t, err)
			if tt.want == nil {
				assert.Nil(t, row.Foreign20D)
				return
			}
			require.NotNil(t, row.Foreign20D)
			assert.InDelta(t, *tt.want, *row.Foreign20D, 1e-9)
		})
	}

	sum, err := s.RollingSum(ctx, "foreign_20d", 3)
	require.NoError(t, err)
	assert.InDelta(t, 870.0, sum, 1e-9)
}

func TestMigratePlaceholdersToNull(t *testing.T) {
	s := openStore(t, testConfig(t))
	ctx := context.Background()

	_, err := s.db.SQL.Exec(`
		INSERT INTO market_daily (date, usdkrw_pct, us10y, vix, created_at) VALUES
			('2025-01-02', 0.0, 0.0, 0.0, 'x'),
			('2025-01-03', 0.4, 0.0, 16.0, 'x');
		INSERT INTO market_flow_daily (date, foreign_net, foreign_20d, foreign_60d, created_at) VALUES
			('2025-01-02', 0.0, NULL, 0.0, 'x'),
			('2025-01-03', 0.0, 120.0, NULL, 'x');
	`)
	require.NoError(t, err)

	counts, err := s.MigratePlaceholdersToNull(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{
		KeyUSDKRWPct:   1,
		KeyUS10Y:       2,
		KeyVIX:         1,
		KeyForeignFlow: 1,
	}, counts)

	// Second pass finds nothing
	counts = s.SafeMigratePlaceholdersToNull(ctx)
	for key, n := range counts {
		assert.Zero(t, n, key)
	}

	flow, err := s.GetFlowDaily(ctx, "2025-01-03")
	require.NoError(t, err)
	assert.Equal(t, 0.0, *flow.ForeignNet)
}

func TestForwardEPSOnOrBefore(t *testing.T) {
	s := openStore(t, testConfig(t))
	ctx := context.Background()

	eps, err := s.ForwardEPSOnOrBefore(ctx, "2026-10-19", 90)
	require.NoError(t, err)
	assert.Nil(t, eps)

	for date, v := range map[string]float64{"2026-06-30": 255, "2026-07-15": 260, "2026-10-01": 270} {
		snap := &contracts.Snapshot{}
		snap.Macro.Forward.SP500ForwardEPS = contracts.Float(v)
		require.NoError(t, s.UpsertMarketForward(ctx, date, snap, okStatus()))
	}

	eps, err = s.ForwardEPSOnOrBefore(ctx, "2026-10-19", 90) // target 2026-07-21
	require.NoError(t, err)
	require.NotNil(t, eps)
	assert.Equal(t, 260.0, *eps)

	assert.Nil(t, s.SafeForwardEPSOnOrBefore(ctx, "2026-06-01", 0))
}

func TestRunLog(t *testing.T) {
	s := openStore(t, testConfig(t))
	ctx := context.Background()

	base := time.Date(2026, 10, 19, 7, 30, 0, 0, time.UTC)
	for i, id := range []string{"run-a", "run-b"} {
		require.True(t, s.SafeRecordRun(ctx, RunRecord{
			RunID:          id,
			MarketDate:     "2026-10-19",
			GeneratedAt:    base.Add(time.Duration(i) * time.Minute),
			Consensus:      fmt.Sprintf("Committee consensus %d.", i),
			Majority:       string(contracts.RegimeNeutral),
			FallbackAgents: []string{"macro", "risk"},
			ReportPath:     "runs/2026-10-19/report.json",
		}))
	}

	latest, err := s.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-b", latest.RunID)
	assert.Equal(t, []string{"macro", "risk"}, latest.FallbackAgents)
	assert.True(t, latest.GeneratedAt.Equal(base.Add(time.Minute)))

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestBackfill(t *testing.T) {
	s := openStore(t, testConfig(t))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.UpsertDailyMacro(ctx, day(i), sampleSnapshot(), okStatus(contracts.FieldHYOAS)))
	}

	dates, err := s.BackfillCandidates(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{day(0), day(1)}, dates)

	f := contracts.Float
	require.True(t, s.SafeUpdateBackfill(ctx, day(0), BackfillValues{
		VIX3M: f(18), VIXTermSpread: f(2), HYOAS: f(3.1), IGOAS: f(0.9), FedBalanceSheet: f(6.7e6),
	}))

	dates, err = s.BackfillCandidates(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{day(1), day(2)}, dates)

	var us10y, hy *float64
	require.NoError(t, s.db.SQL.QueryRow(`SELECT us10y, hy_oas FROM daily_macro WHERE date = ?`, day(0)).Scan(&us10y, &hy))
	assert.Equal(t, 4.21, *us10y)
	assert.Equal(t, 3.1, *hy)
}

func TestSafeWrappers_AbsorbErrors(t *testing.T) {
	s, err := Open(testConfig(t), logger.Nop())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	ctx := context.Background()
	snap := sampleSnapshot()

	writes := map[string]func() bool{
		"save":      func() bool { return s.SafeSaveSnapshot(ctx, day(0), snap, okStatus()) },
		"market":    func() bool { return s.SafeUpsertMarketDaily(ctx, day(0), snap, okStatus()) },
		"flow":      func() bool { return s.SafeUpsertFlowDaily(ctx, day(0), snap, okStatus()) },
		"daily":     func() bool { return s.SafeUpsertDailyMacro(ctx, day(0), snap, okStatus()) },
		"monthly":   func() bool { return s.SafeUpsertMonthlyMacro(ctx, day(0), snap, okStatus()) },
		"quarterly": func() bool { return s.SafeUpsertQuarterlyMacro(ctx, day(0), snap, okStatus()) },
		"forward":   func() bool { return s.SafeUpsertMarketForward(ctx, day(0), snap, okStatus()) },
		"run":       func() bool { return s.SafeRecordRun(ctx, RunRecord{RunID: "x"}) },
		"backfill":  func() bool { return s.SafeUpdateBackfill(ctx, day(0), BackfillValues{}) },
	}
	for name, write := range writes {
		assert.NotPanics(t, func() {
			assert.False(t, write(), name)
		})
	}
	assert.Empty(t, s.SafeMigratePlaceholdersToNull(ctx))
	assert.Nil(t, s.SafeForwardEPSOnOrBefore(ctx, day(0), 90))
}

func TestSaveSnapshot_Nil(t *testing.T) {
	s := openStore(t, testConfig(t))
	assert.Error(t, s.SaveSnapshot(context.Background(), day(0), nil, okStatus()))
}
