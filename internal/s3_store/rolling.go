package s3_store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Rolling windows refreshed after every flow upsert
const (
	Window20 = 20
	Window60 = 60
)

// rollingColumns is the allow-list interpolated into rolling queries
var rollingColumns = map[string]bool{
	"foreign_net": true,
	"foreign_20d": true,
	"foreign_60d": true,
}

// RollingColumns lists the columns RollingSum accepts
func RollingColumns() []string {
	return []string{"foreign_net", "foreign_20d", "foreign_60d"}
}

// RollingSum sums column over the last window rows of market_flow_daily (newest first).
// Missing data never becomes zero: unless all window rows exist and are non-null,
// ErrInsufficientHistory is returned.
func (s *Store) RollingSum(ctx context.Context, column string, window int) (float64, error) {
	if !rollingColumns[column] {
		return 0, fmt.Errorf("%w: %s", ErrUnknownColumn, column)
	}
	if window <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidWindow, window)
	}
	return windowSum(ctx, s.db.SQL, column, "", window)
}

// windowSum sums column over the window rows dated on or before until ("" = newest row)
func windowSum(ctx context.Context, q querier, column, until string, window int) (float64, error) {
	where := ""
	args := make([]interface{}, 0, 2)
	if until != "" {
		where = "WHERE date <= ?"
		args = append(args, until)
	}
	args = append(args, window)

	query := fmt.Sprintf(`
		SELECT SUM(%[1]s), COUNT(%[1]s)
		FROM (
			SELECT %[1]s
			FROM market_flow_daily
			%[2]s
			ORDER BY date DESC
			LIMIT ?
		)
	`, column, where)

	var (
		sum sql.NullFloat64
		cnt int
	)
	if err := q.QueryRowContext(ctx, query, args...).Scan(&sum, &cnt); err != nil {
		return 0, fmt.Errorf("rolling sum %s/%d: %w", column, window, err)
	}
	if cnt < window || !sum.Valid {
		return 0, fmt.Errorf("%w: %s has %d of %d values", ErrInsufficientHistory, column, cnt, window)
	}
	return sum.Float64, nil
}

// foreignRollingAt is the foreign_net window ending at date, NULL when insufficient
func foreignRollingAt(ctx context.Context, q querier, date string, window int) (interface{}, error) {
	v, err := windowSum(ctx, q, "foreign_net", date, window)
	if err != nil {
		if isInsufficient(err) {
			return nil, nil
		}
		return nil, err
	}
	return v, nil
}

// refreshFlowRollings recomputes foreign_20d/foreign_60d on every row dated on or
// after from: a backdated flow row shifts the windows of all later dates.
func refreshFlowRollings(ctx context.Context, q querier, from string) error {
	rows, err := q.QueryContext(ctx,
		`SELECT date FROM market_flow_daily WHERE date >= ? ORDER BY date`, from)
	if err != nil {
		return fmt.Errorf("list flow dates from %s: %w", from, err)
	}
	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			rows.Close()
			return fmt.Errorf("scan flow date: %w", err)
		}
		dates = append(dates, d)
	}
	// 같은 연결에서 UPDATE 전에 커서를 닫아야 함
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("list flow dates from %s: %w", from, err)
	}

	for _, d := range dates {
		f20, err := foreignRollingAt(ctx, q, d, Window20)
		if err != nil {
			return err
		}
		f60, err := foreignRollingAt(ctx, q, d, Window60)
		if err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx,
			`UPDATE market_flow_daily SET foreign_20d = ?, foreign_60d = ? WHERE date = ?`,
			f20, f60, d,
		); err != nil {
			return fmt.Errorf("update flow rollings %s: %w", d, err)
		}
	}
	return nil
}

func isInsufficient(err error) bool {
	return errors.Is(err, ErrInsufficientHistory)
}
