package s3_store

import (
	"context"
	"fmt"
)

// BackfillValues are the daily_macro columns added after the base schema
type BackfillValues struct {
	VIX3M           *float64 `json:"vix3m"`
	VIXTermSpread   *float64 `json:"vix_term_spread"`
	HYOAS           *float64 `json:"hy_oas"`
	IGOAS           *float64 `json:"ig_oas"`
	FedBalanceSheet *float64 `json:"fed_balance_sheet"`
}

// BackfillCandidates lists daily_macro dates missing any backfill column, oldest first.
// limit <= 0 returns all.
func (s *Store) BackfillCandidates(ctx context.Context, limit int) ([]string, error) {
	query := `
		SELECT date
		FROM daily_macro
		WHERE vix3m IS NULL
		   OR vix_term_spread IS NULL
		   OR hy_oas IS NULL
		   OR ig_oas IS NULL
		   OR fed_balance_sheet IS NULL
		ORDER BY date
	`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.SQL.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list backfill candidates: %w", err)
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// UpdateBackfill fills the backfill columns of an existing row.
// A nil value keeps what is already stored.
func (s *Store) UpdateBackfill(ctx context.Context, date string, v BackfillValues) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.SQL.ExecContext(ctx, `
		UPDATE daily_macro
		SET vix3m = COALESCE(?, vix3m),
		    vix_term_spread = COALESCE(?, vix_term_spread),
		    hy_oas = COALESCE(?, hy_oas),
		    ig_oas = COALESCE(?, ig_oas),
		    fed_balance_sheet = COALESCE(?, fed_balance_sheet),
		    created_at = ?
		WHERE date = ?
	`, v.VIX3M, v.VIXTermSpread, v.HYOAS, v.IGOAS, v.FedBalanceSheet, s.timestamp(), date)
	if err != nil {
		return fmt.Errorf("backfill daily_macro %s: %w", date, err)
	}
	return nil
}
