package s3_store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Placeholder repair keys returned by MigratePlaceholdersToNull
const (
	KeyUSDKRWPct   = "market_daily.usdkrw_pct"
	KeyUS10Y       = "market_daily.us10y"
	KeyVIX         = "market_daily.vix"
	KeyForeignFlow = "market_flow_daily.foreign_*"
)

// MigratePlaceholdersToNull converts legacy 0.0 placeholders into NULL.
// Only columns known to have carried placeholders are touched. Flow rows are
// cleared only when the whole foreign trio looks like "no data".
func (s *Store) MigratePlaceholdersToNull(ctx context.Context) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repairs := []struct {
		key   string
		query string
	}{
		{KeyUSDKRWPct, `UPDATE market_daily SET usdkrw_pct = NULL WHERE usdkrw_pct = 0.0`},
		{KeyUS10Y, `UPDATE market_daily SET us10y = NULL WHERE us10y = 0.0`},
		{KeyVIX, `UPDATE market_daily SET vix = NULL WHERE vix = 0.0`},
		{KeyForeignFlow, `
			UPDATE market_flow_daily
			SET foreign_net = NULL, foreign_20d = NULL, foreign_60d = NULL
			WHERE foreign_net = 0.0
			  AND (foreign_20d IS NULL OR foreign_20d = 0.0)
			  AND (foreign_60d IS NULL OR foreign_60d = 0.0)
		`},
	}

	counts := make(map[string]int64, len(repairs))
	for _, r := range repairs {
		res, err := s.db.SQL.ExecContext(ctx, r.query)
		if err != nil {
			return counts, fmt.Errorf("placeholder repair %s: %w", r.key, err)
		}
		n, _ := res.RowsAffected()
		counts[r.key] = n
	}

	s.logger.WithField("counts", counts).Info("Placeholder repair complete")
	return counts, nil
}

// ForwardEPSOnOrBefore returns the latest stored forward EPS at or before date - daysBack.
// nil means no history exists yet.
func (s *Store) ForwardEPSOnOrBefore(ctx context.Context, date string, daysBack int) (*float64, error) {
	target := date
	if d, err := time.Parse(DateLayout, date); err == nil {
		target = d.AddDate(0, 0, -daysBack).Format(DateLayout)
	}

	var eps *float64
	err := s.db.SQL.QueryRowContext(ctx, `
		SELECT sp500_forward_eps
		FROM market_forward
		WHERE date <= ? AND sp500_forward_eps IS NOT NULL
		ORDER BY date DESC
		LIMIT 1
	`, target).Scan(&eps)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("forward eps on or before %s: %w", target, err)
	}
	return eps, nil
}
