package s3_store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/wonny/aegis-committee/internal/contracts"
	"github.com/wonny/aegis-committee/pkg/config"
	"github.com/wonny/aegis-committee/pkg/database"
	"github.com/wonny/aegis-committee/pkg/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DateLayout is the key format of every dated table
const DateLayout = "2006-01-02"

var (
	// ErrNotFound is returned by point lookups with no matching row
	ErrNotFound = errors.New("not found")
	// ErrInsufficientHistory means the rolling window holds fewer non-null values than requested
	ErrInsufficientHistory = errors.New("insufficient history")
	// ErrUnknownColumn rejects rolling columns outside the allow-list
	ErrUnknownColumn = errors.New("unsupported rolling column")
	// ErrInvalidWindow rejects non-positive rolling windows
	ErrInvalidWindow = errors.New("rolling window must be positive")
)

// Store persists snapshots into the local SQLite file
// ⭐ SSOT: committee.db 읽기/쓰기는 여기서만
type Store struct {
	db      *database.DB
	mu      sync.Mutex // serializes writes
	logger  *logger.Logger
	version uint
	now     func() time.Time
}

// additiveColumns are nullable REAL columns that older files may lack.
// Order matters only for readability of PRAGMA output.
var additiveColumns = []struct {
	table   string
	columns []string
}{
	{"market_daily", []string{"created_at"}},
	{"market_flow_daily", []string{"institution_net", "retail_net", "created_at"}},
	{"daily_macro", []string{
		"dxy", "usdkrw", "fed_funds_rate", "breakeven_10y", "real_rate",
		"vix3m", "vix_term_spread", "hy_oas", "ig_oas", "fed_balance_sheet", "created_at",
	}},
	{"monthly_macro", []string{
		"unemployment_rate", "cpi_yoy", "core_cpi_yoy", "pce_yoy", "pmi", "wage_level", "wage_yoy", "created_at",
	}},
	{"quarterly_macro", []string{"real_gdp", "gdp_qoq_annualized", "created_at"}},
	{"market_forward", []string{"eps_revision_3m", "created_at"}},
}

// Open opens the store file, applies the base schema and repairs older layouts.
// Schema problems are logged and absorbed: a half-migrated file still accepts
// the writes it can, and every write is best effort upstream.
func Open(cfg *config.Config, log *logger.Logger) (*Store, error) {
	db, err := database.New(cfg)
	if err != nil {
		return nil, err
	}

	s := &Store{
		db:     db,
		logger: log.WithComponent("s3_store").WithStage(contracts.StagePersist.String()),
		now:    time.Now,
	}

	version, err := db.Migrate(migrationsFS, "migrations")
	if err != nil {
		s.logger.WithError(err).Error("Base schema migration failed")
	}
	s.version = version

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.ensureColumns(ctx); err != nil {
		s.logger.WithError(err).Error("Additive column migration failed")
	}
	if err := s.consolidateWage(ctx); err != nil {
		s.logger.WithError(err).Error("monthly_macro wage consolidation failed")
	}

	s.logger.WithFields(map[string]interface{}{
		"path":    db.Path,
		"version": version,
	}).Info("Store opened")

	return s, nil
}

// Close closes the underlying file
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the handle for health checks
func (s *Store) DB() *database.DB {
	return s.db
}

// Version returns the base schema version applied on open
func (s *Store) Version() uint {
	return s.version
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

// tableColumns reads the column set of table.
// Rows are drained before returning: the pool holds a single connection.
func (s *Store) tableColumns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := s.db.SQL.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("table_info %s: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notNull int
			dflt    interface{}
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan table_info %s: %w", table, err)
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

// ensureColumns adds every missing additive column as nullable.
// Existing columns and rows are never touched.
func (s *Store) ensureColumns(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, t := range additiveColumns {
		existing, err := s.tableColumns(ctx, t.table)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if len(existing) == 0 {
			errs = append(errs, fmt.Errorf("table %s missing", t.table))
			continue
		}
		for _, col := range t.columns {
			if existing[col] {
				continue
			}
			ddl := "REAL"
			if col == "created_at" {
				ddl = "TEXT"
			}
			stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", t.table, col, ddl)
			if _, err := s.db.SQL.ExecContext(ctx, stmt); err != nil {
				errs = append(errs, fmt.Errorf("add %s.%s: %w", t.table, col, err))
				continue
			}
			s.logger.WithFields(map[string]interface{}{
				"table":  t.table,
				"column": col,
			}).Info("Added column")
		}
	}
	return errors.Join(errs...)
}

// monthlyColumns is the consolidated monthly_macro layout
var monthlyColumns = []string{
	"date", "unemployment_rate", "cpi_yoy", "core_cpi_yoy", "pce_yoy", "pmi", "wage_level", "wage_yoy", "created_at",
}

// consolidateWage rebuilds monthly_macro without the obsolete wage_growth column.
// wage_level keeps its own value and falls back to wage_growth. No-op once rebuilt.
func (s *Store) consolidateWage(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cols, err := s.tableColumns(ctx, "monthly_macro")
	if err != nil {
		return err
	}
	if !cols["wage_growth"] {
		return nil
	}

	selects := make([]string, 0, len(monthlyColumns))
	for _, col := range monthlyColumns {
		switch {
		case col == "wage_level" && cols["wage_level"]:
			selects = append(selects, "COALESCE(wage_level, wage_growth)")
		case col == "wage_level":
			selects = append(selects, "wage_growth")
		case cols[col]:
			selects = append(selects, col)
		default:
			selects = append(selects, "NULL")
		}
	}

	tx, err := s.db.SQL.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin wage rebuild: %w", err)
	}
	defer tx.Rollback()

	stmts := []string{
		`DROP TABLE IF EXISTS monthly_macro_new`,
		`CREATE TABLE monthly_macro_new (
			date              TEXT PRIMARY KEY,
			unemployment_rate REAL,
			cpi_yoy           REAL,
			core_cpi_yoy      REAL,
			pce_yoy           REAL,
			pmi               REAL,
			wage_level        REAL,
			wage_yoy          REAL,
			created_at        TEXT
		)`,
		fmt.Sprintf("INSERT INTO monthly_macro_new (%s) SELECT %s FROM monthly_macro",
			strings.Join(monthlyColumns, ", "), strings.Join(selects, ", ")),
		`DROP TABLE monthly_macro`,
		`ALTER TABLE monthly_macro_new RENAME TO monthly_macro`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("wage rebuild: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit wage rebuild: %w", err)
	}

	s.logger.Info("Consolidated monthly_macro wage columns")
	return nil
}
