// Package postgres implements cache.ResultStore against a PostgreSQL table
// holding one row per symbol (the latest analysis only), grounded on the
// teacher's internal/persistence/postgres/regime_repo.go upsert pattern.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/sawpanic/lppldiag/internal/cache"
)

// Connect opens a sqlx connection pool against dsn and ensures the schema
// exists. Callers own the lifetime of the returned *sqlx.DB.
func Connect(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: apply schema: %w", err)
	}
	return db, nil
}

// Store implements cache.ResultStore backed by Postgres via sqlx.
type Store struct {
	db      *sqlx.DB
	timeout time.Duration
}

// New creates a Store. timeout bounds every individual query.
func New(db *sqlx.DB, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Store{db: db, timeout: timeout}
}

// Schema is the DDL this store expects. Connect applies it on every
// connect; callers that build a Store from their own *sqlx.DB via New
// must apply it themselves.
const Schema = `
CREATE TABLE IF NOT EXISTS lppl_cached_analysis (
	symbol            TEXT PRIMARY KEY,
	analysis_date     DATE NOT NULL,
	last_price_date   DATE NOT NULL,
	window_min        INT NOT NULL,
	window_max        INT NOT NULL,
	window_step       INT NOT NULL,
	report            JSONB NOT NULL,
	windows           JSONB NOT NULL,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
)`

type row struct {
	Symbol        string    `db:"symbol"`
	AnalysisDate  time.Time `db:"analysis_date"`
	LastPriceDate time.Time `db:"last_price_date"`
	WindowMin     int       `db:"window_min"`
	WindowMax     int       `db:"window_max"`
	WindowStep    int       `db:"window_step"`
	Report        []byte    `db:"report"`
	Windows       []byte    `db:"windows"`
	CreatedAt     time.Time `db:"created_at"`
}

// GetLatest returns the single stored row for symbol, or nil if absent.
func (s *Store) GetLatest(ctx context.Context, symbol string) (*cache.CachedAnalysis, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	const query = `
		SELECT symbol, analysis_date, last_price_date, window_min, window_max,
		       window_step, report, windows, created_at
		FROM lppl_cached_analysis
		WHERE symbol = $1`

	var r row
	err := s.db.GetContext(ctx, &r, query, symbol)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get latest analysis for %s: %w", symbol, err)
	}
	return rowToAnalysis(r)
}

// Put upserts the single row for analysis.Symbol, replacing any prior entry
// — §4.6's "the store retains only the newest" policy.
func (s *Store) Put(ctx context.Context, analysis cache.CachedAnalysis) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	reportJSON, err := json.Marshal(analysis.Report)
	if err != nil {
		return fmt.Errorf("postgres: marshal report for %s: %w", analysis.Symbol, err)
	}
	windowsJSON, err := json.Marshal(analysis.Windows)
	if err != nil {
		return fmt.Errorf("postgres: marshal windows for %s: %w", analysis.Symbol, err)
	}

	const query = `
		INSERT INTO lppl_cached_analysis
			(symbol, analysis_date, last_price_date, window_min, window_max, window_step, report, windows)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (symbol) DO UPDATE SET
			analysis_date   = EXCLUDED.analysis_date,
			last_price_date = EXCLUDED.last_price_date,
			window_min      = EXCLUDED.window_min,
			window_max      = EXCLUDED.window_max,
			window_step     = EXCLUDED.window_step,
			report          = EXCLUDED.report,
			windows         = EXCLUDED.windows,
			created_at      = now()`

	_, err = s.db.ExecContext(ctx, query,
		analysis.Symbol, analysis.AnalysisDate, analysis.LastPriceDate,
		analysis.WindowMin, analysis.WindowMax, analysis.WindowStep,
		reportJSON, windowsJSON)
	if err != nil {
		return fmt.Errorf("postgres: upsert analysis for %s: %w", analysis.Symbol, err)
	}
	return nil
}

func rowToAnalysis(r row) (*cache.CachedAnalysis, error) {
	var report cache.ConfidenceReport
	if err := json.Unmarshal(r.Report, &report); err != nil {
		return nil, fmt.Errorf("postgres: unmarshal report: %w", err)
	}
	var windows []cache.WindowParameters
	if err := json.Unmarshal(r.Windows, &windows); err != nil {
		return nil, fmt.Errorf("postgres: unmarshal windows: %w", err)
	}
	return &cache.CachedAnalysis{
		Symbol:        r.Symbol,
		AnalysisDate:  r.AnalysisDate,
		LastPriceDate: r.LastPriceDate,
		WindowMin:     r.WindowMin,
		WindowMax:     r.WindowMax,
		WindowStep:    r.WindowStep,
		Report:        report,
		Windows:       windows,
		CreatedAt:     r.CreatedAt,
	}, nil
}
