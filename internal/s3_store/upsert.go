package s3_store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/wonny/aegis-committee/internal/contracts"
)

// column is one nullable value bound for a dated row.
// Derived columns carry no field: their value is already nil when an input failed.
type column struct {
	name  string
	field contracts.Field
	value *float64
}

func col(name string, field contracts.Field, value *float64) column {
	return column{name: name, field: field, value: value}
}

func derived(name string, value *float64) column {
	return column{name: name, value: value}
}

// bind returns the SQL argument for c: NULL whenever the source field is not OK.
// ⭐ SSOT: FAIL 필드는 0.0이 아닌 NULL로 저장
func (c column) bind(status contracts.StatusMap) interface{} {
	if c.value == nil {
		return nil
	}
	if c.field != "" && !status.OK(c.field) {
		return nil
	}
	return *c.value
}

// querier is satisfied by *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// upsert writes one dated row in a single statement
func (s *Store) upsert(ctx context.Context, q querier, table, date string, cols []column, status contracts.StatusMap) error {
	names := make([]string, 0, len(cols)+2)
	holders := make([]string, 0, len(cols)+2)
	updates := make([]string, 0, len(cols)+1)
	args := make([]interface{}, 0, len(cols)+2)

	names = append(names, "date")
	holders = append(holders, "?")
	args = append(args, date)

	for _, c := range cols {
		names = append(names, c.name)
		holders = append(holders, "?")
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", c.name, c.name))
		args = append(args, c.bind(status))
	}

	names = append(names, "created_at")
	holders = append(holders, "?")
	updates = append(updates, "created_at = excluded.created_at")
	args = append(args, s.timestamp())

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(date) DO UPDATE SET %s",
		table, strings.Join(names, ", "), strings.Join(holders, ", "), strings.Join(updates, ", "),
	)

	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert %s %s: %w", table, date, err)
	}
	return nil
}

// UpsertMarketDaily writes the daily index/FX row
func (s *Store) UpsertMarketDaily(ctx context.Context, date string, snap *contracts.Snapshot, status contracts.StatusMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := snap.Markets
	return s.upsert(ctx, s.db.SQL, "market_daily", date, []column{
		col("kospi_pct", contracts.FieldKOSPI, m.KR.KOSPIPct),
		col("kosdaq_pct", contracts.FieldKOSDAQ, m.KR.KOSDAQPct),
		col("sp500_pct", contracts.FieldSP500, m.US.SP500Pct),
		col("nasdaq_pct", contracts.FieldNASDAQ, m.US.NASDAQPct),
		col("dow_pct", contracts.FieldDOW, m.US.DOWPct),
		col("usdkrw", contracts.FieldUSDKRW, m.FX.USDKRW),
		col("usdkrw_pct", contracts.FieldUSDKRWPct, m.FX.USDKRWPct),
		col("us10y", contracts.FieldUS10Y, snap.Macro.Daily.US10Y),
		col("vix", contracts.FieldVIX, m.Volatility.VIX),
	}, status)
}

// UpsertFlowDaily writes investor net flows and refreshes the 20/60 day rollings
// of that date and every later one, in one transaction
func (s *Store) UpsertFlowDaily(ctx context.Context, date string, snap *contracts.Snapshot, status contracts.StatusMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.SQL.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin flow upsert %s: %w", date, err)
	}
	defer tx.Rollback()

	f := snap.FlowSummary
	err = s.upsert(ctx, tx, "market_flow_daily", date, []column{
		col("foreign_net", contracts.FieldFlows, f.ForeignNet),
		col("institution_net", contracts.FieldFlows, f.InstitutionNet),
		col("retail_net", contracts.FieldFlows, f.RetailNet),
	}, status)
	if err != nil {
		return err
	}
	if err := refreshFlowRollings(ctx, tx, date); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit flow upsert %s: %w", date, err)
	}
	return nil
}

// UpsertDailyMacro writes rates, volatility and the structural series
func (s *Store) UpsertDailyMacro(ctx context.Context, date string, snap *contracts.Snapshot, status contracts.StatusMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, st, v := snap.Macro.Daily, snap.Macro.Structural, snap.Markets.Volatility
	return s.upsert(ctx, s.db.SQL, "daily_macro", date, []column{
		col("us10y", contracts.FieldUS10Y, d.US10Y),
		col("us2y", contracts.FieldUS2Y, d.US2Y),
		derived("spread_2_10", d.Spread210),
		col("vix", contracts.FieldVIX, d.VIX),
		col("dxy", contracts.FieldDXY, d.DXY),
		col("usdkrw", contracts.FieldUSDKRW, d.USDKRW),
		col("fed_funds_rate", contracts.FieldFedFunds, st.FedFundsRate),
		col("breakeven_10y", contracts.FieldBreakeven10Y, st.Breakeven10Y),
		derived("real_rate", st.RealRate),
		col("vix3m", contracts.FieldVIX3M, v.VIX3M),
		derived("vix_term_spread", v.VIXTermSpread),
		col("hy_oas", contracts.FieldHYOAS, st.HYOAS),
		col("ig_oas", contracts.FieldIGOAS, st.IGOAS),
		col("fed_balance_sheet", contracts.FieldFedBalance, st.FedBalanceSheet),
	}, status)
}

// UpsertMonthlyMacro writes the monthly releases keyed by run date
func (s *Store) UpsertMonthlyMacro(ctx context.Context, date string, snap *contracts.Snapshot, status contracts.StatusMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := snap.Macro.Monthly
	return s.upsert(ctx, s.db.SQL, "monthly_macro", date, []column{
		col("unemployment_rate", contracts.FieldUnemployment, m.UnemploymentRate),
		col("cpi_yoy", contracts.FieldCPIYoY, m.CPIYoY),
		col("core_cpi_yoy", contracts.FieldCoreCPIYoY, m.CoreCPIYoY),
		col("pce_yoy", contracts.FieldPCEYoY, m.PCEYoY),
		col("pmi", contracts.FieldPMI, m.PMI),
		col("wage_level", contracts.FieldWageLevel, m.WageLevel),
		col("wage_yoy", contracts.FieldWageYoY, m.WageYoY),
	}, status)
}

// UpsertQuarterlyMacro writes GDP figures
func (s *Store) UpsertQuarterlyMacro(ctx context.Context, date string, snap *contracts.Snapshot, status contracts.StatusMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := snap.Macro.Quarterly
	return s.upsert(ctx, s.db.SQL, "quarterly_macro", date, []column{
		col("real_gdp", contracts.FieldRealGDP, q.RealGDP),
		col("gdp_qoq_annualized", contracts.FieldGDPQoQ, q.GDPQoQAnnualized),
	}, status)
}

// UpsertMarketForward writes forward valuation; its history feeds eps_revision_3m
func (s *Store) UpsertMarketForward(ctx context.Context, date string, snap *contracts.Snapshot, status contracts.StatusMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := snap.Macro.Forward
	return s.upsert(ctx, s.db.SQL, "market_forward", date, []column{
		col("sp500_forward_eps", contracts.FieldSP500FwdEPS, f.SP500ForwardEPS),
		col("sp500_forward_pe", contracts.FieldSP500FwdPE, f.SP500ForwardPE),
		derived("eps_revision_3m", f.EPSRevision3M),
	}, status)
}

// SaveSnapshot writes every topic row for date.
// Topics are independent: one failing write does not skip the others.
func (s *Store) SaveSnapshot(ctx context.Context, date string, snap *contracts.Snapshot, status contracts.StatusMap) error {
	if snap == nil {
		return errors.New("nil snapshot")
	}
	writes := []func(context.Context, string, *contracts.Snapshot, contracts.StatusMap) error{
		s.UpsertMarketDaily,
		s.UpsertFlowDaily,
		s.UpsertDailyMacro,
		s.UpsertMonthlyMacro,
		s.UpsertQuarterlyMacro,
		s.UpsertMarketForward,
	}

	var errs []error
	for _, write := range writes {
		if err := write(ctx, date, snap, status); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
