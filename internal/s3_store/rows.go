package s3_store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// MarketDaily is one persisted market_daily row
type MarketDaily struct {
	Date      string   `json:"date"`
	KOSPIPct  *float64 `json:"kospi_pct"`
	KOSDAQPct *float64 `json:"kosdaq_pct"`
	SP500Pct  *float64 `json:"sp500_pct"`
	NASDAQPct *float64 `json:"nasdaq_pct"`
	DOWPct    *float64 `json:"dow_pct"`
	USDKRW    *float64 `json:"usdkrw"`
	USDKRWPct *float64 `json:"usdkrw_pct"`
	US10Y     *float64 `json:"us10y"`
	VIX       *float64 `json:"vix"`
	CreatedAt *string  `json:"created_at"`
}

// FlowDaily is one persisted market_flow_daily row
type FlowDaily struct {
	Date           string   `json:"date"`
	ForeignNet     *float64 `json:"foreign_net"`
	InstitutionNet *float64 `json:"institution_net"`
	RetailNet      *float64 `json:"retail_net"`
	Foreign20D     *float64 `json:"foreign_20d"`
	Foreign60D     *float64 `json:"foreign_60d"`
}

// GetMarketDaily retrieves the market row for date
func (s *Store) GetMarketDaily(ctx context.Context, date string) (*MarketDaily, error) {
	var row MarketDaily
	err := s.db.SQL.QueryRowContext(ctx, `
		SELECT date, kospi_pct, kosdaq_pct, sp500_pct, nasdaq_pct, dow_pct,
		       usdkrw, usdkrw_pct, us10y, vix, created_at
		FROM market_daily
		WHERE date = ?
	`, date).Scan(
		&row.Date, &row.KOSPIPct, &row.KOSDAQPct, &row.SP500Pct, &row.NASDAQPct, &row.DOWPct,
		&row.USDKRW, &row.USDKRWPct, &row.US10Y, &row.VIX, &row.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("market_daily %s: %w", date, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get market_daily: %w", err)
	}
	return &row, nil
}

// GetFlowDaily retrieves the flow row for date
func (s *Store) GetFlowDaily(ctx context.Context, date string) (*FlowDaily, error) {
	var row FlowDaily
	err := s.db.SQL.QueryRowContext(ctx, `
		SELECT date, foreign_net, institution_net, retail_net, foreign_20d, foreign_60d
		FROM market_flow_daily
		WHERE date = ?
	`, date).Scan(
		&row.Date, &row.ForeignNet, &row.InstitutionNet, &row.RetailNet, &row.Foreign20D, &row.Foreign60D,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("market_flow_daily %s: %w", date, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get market_flow_daily: %w", err)
	}
	return &row, nil
}
