package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/quantforge/backtester/pkg/backtest"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// RunSummary is the persisted record of one completed backtest run.
type RunSummary struct {
	RunID          string
	Strategy       string
	Symbol         string
	Timeframe      string
	StartDate      time.Time
	EndDate        time.Time
	InitialCapital float64
	FinalCapital   float64
	TotalReturnPct float64
	TotalTrades    int
	WinRate        float64
	ProfitFactor   float64
	SharpeRatio    float64
	MaxDrawdownPct float64
	CreatedAt      time.Time
}

// SQLiteRunStore persists run summaries to a local SQLite file so successive
// runs of the same strategy can be compared.
type SQLiteRunStore struct {
	db *sql.DB
}

// NewSQLiteRunStore opens (or creates) the database at path.
func NewSQLiteRunStore(path string) (*SQLiteRunStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteRunStore{db: db}
	if err := store.Migrate(context.Background()); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store, nil
}

// Migrate creates the schema if it does not exist.
func (s *SQLiteRunStore) Migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS backtest_runs (
			run_id TEXT PRIMARY KEY,
			strategy TEXT NOT NULL,
			symbol TEXT NOT NULL,
			timeframe TEXT NOT NULL,
			start_date DATETIME NOT NULL,
			end_date DATETIME NOT NULL,
			initial_capital REAL NOT NULL,
			final_capital REAL NOT NULL,
			total_return_pct REAL NOT NULL,
			total_trades INTEGER NOT NULL,
			win_rate REAL NOT NULL,
			profit_factor REAL NOT NULL,
			sharpe_ratio REAL NOT NULL,
			max_drawdown_pct REAL NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_strategy ON backtest_runs(strategy)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_symbol ON backtest_runs(symbol)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON backtest_runs(created_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}
	return nil
}

// SaveResult stores the summary of a completed run.
func (s *SQLiteRunStore) SaveResult(ctx context.Context, result *backtest.Result) error {
	query := `INSERT INTO backtest_runs
		(run_id, strategy, symbol, timeframe, start_date, end_date, initial_capital, final_capital,
		 total_return_pct, total_trades, win_rate, profit_factor, sharpe_ratio, max_drawdown_pct)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		result.RunID.String(),
		result.StrategyName,
		result.Config.Symbol,
		result.Config.Timeframe,
		result.Config.StartDate,
		result.Config.EndDate,
		result.InitialCapital,
		result.FinalCapital,
		result.TotalReturnPct(),
		result.Metrics.TotalTrades,
		result.Metrics.WinRate,
		result.Metrics.ProfitFactor,
		result.Metrics.SharpeRatio,
		result.Metrics.MaxDrawdownPct,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first. A non-empty strategy
// filters the listing.
func (s *SQLiteRunStore) ListRuns(ctx context.Context, strategy string, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT run_id, strategy, symbol, timeframe, start_date, end_date,
		initial_capital, final_capital, total_return_pct, total_trades,
		win_rate, profit_factor, sharpe_ratio, max_drawdown_pct, created_at
		FROM backtest_runs`
	args := []interface{}{}
	if strategy != "" {
		query += ` WHERE strategy = ?`
		args = append(args, strategy)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.RunID, &r.Strategy, &r.Symbol, &r.Timeframe, &r.StartDate, &r.EndDate,
			&r.InitialCapital, &r.FinalCapital, &r.TotalReturnPct, &r.TotalTrades,
			&r.WinRate, &r.ProfitFactor, &r.SharpeRatio, &r.MaxDrawdownPct, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun fetches one run by id, nil when not found.
func (s *SQLiteRunStore) GetRun(ctx context.Context, runID string) (*RunSummary, error) {
	query := `SELECT run_id, strategy, symbol, timeframe, start_date, end_date,
		initial_capital, final_capital, total_return_pct, total_trades,
		win_rate, profit_factor, sharpe_ratio, max_drawdown_pct, created_at
		FROM backtest_runs WHERE run_id = ?`

	var r RunSummary
	err := s.db.QueryRowContext(ctx, query, runID).Scan(
		&r.RunID, &r.Strategy, &r.Symbol, &r.Timeframe, &r.StartDate, &r.EndDate,
		&r.InitialCapital, &r.FinalCapital, &r.TotalReturnPct, &r.TotalTrades,
		&r.WinRate, &r.ProfitFactor, &r.SharpeRatio, &r.MaxDrawdownPct, &r.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	return &r, nil
}

// Close closes the database connection.
func (s *SQLiteRunStore) Close() error {
	return s.db.Close()
}
