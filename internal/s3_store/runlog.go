package s3_store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// RunRecord is the audit row of one committee run
type RunRecord struct {
	RunID          string    `json:"run_id"`
	MarketDate     string    `json:"market_date"`
	GeneratedAt    time.Time `json:"generated_at"`
	Consensus      string    `json:"consensus"`
	Majority       string    `json:"majority"`
	FallbackAgents []string  `json:"fallback_agents"`
	ReportPath     string    `json:"report_path"`
}

// RecordRun appends (or replaces) the run_log row of rec.RunID
func (s *Store) RecordRun(ctx context.Context, rec RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.SQL.ExecContext(ctx, `
		INSERT INTO run_log (run_id, market_date, generated_at, consensus, majority, fallback_agents, report_path)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			market_date = excluded.market_date,
			generated_at = excluded.generated_at,
			consensus = excluded.consensus,
			majority = excluded.majority,
			fallback_agents = excluded.fallback_agents,
			report_path = excluded.report_path
	`,
		rec.RunID, rec.MarketDate, rec.GeneratedAt.UTC().Format(time.RFC3339),
		rec.Consensus, rec.Majority, strings.Join(rec.FallbackAgents, ","), rec.ReportPath,
	)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", rec.RunID, err)
	}
	return nil
}

// LatestRun returns the most recently generated run
func (s *Store) LatestRun(ctx context.Context) (*RunRecord, error) {
	runs, err := s.ListRuns(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("run_log: %w", ErrNotFound)
	}
	return &runs[0], nil
}

// ListRuns returns up to limit runs, newest first
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.SQL.QueryContext(ctx, `
		SELECT run_id, market_date, generated_at, consensus, majority, fallback_agents, report_path
		FROM run_log
		ORDER BY generated_at DESC, run_id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var (
			rec       RunRecord
			generated string
			fallbacks string
		)
		if err := rows.Scan(&rec.RunID, &rec.MarketDate, &generated, &rec.Consensus,
			&rec.Majority, &fallbacks, &rec.ReportPath); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		rec.GeneratedAt, _ = time.Parse(time.RFC3339, generated)
		if fallbacks != "" {
			rec.FallbackAgents = strings.Split(fallbacks, ",")
		}
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return runs, nil
}
