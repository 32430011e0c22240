package marketdata

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// PostgresProvider serves historical bars from a PostgreSQL/TimescaleDB
// ohlcv_bars hypertable.
type PostgresProvider struct {
	db *sql.DB
}

// NewPostgresProvider opens a connection and verifies it with a ping.
func NewPostgresProvider(connectionString string) (*PostgresProvider, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresProvider{db: db}, nil
}

// HistoricalBars retrieves OHLCV bars for the given symbol, timeframe and range.
func (p *PostgresProvider) HistoricalBars(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]Bar, error) {
	query := `
		SELECT symbol, timestamp, open, high, low, close, volume, timeframe
		FROM ohlcv_bars
		WHERE symbol = $1 AND timeframe = $2 AND timestamp >= $3 AND timestamp <= $4
		ORDER BY timestamp ASC
	`

	rows, err := p.db.QueryContext(ctx, query, symbol, timeframe, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query ohlcv_bars: %w", err)
	}
	defer rows.Close()

	var bars []Bar
	for rows.Next() {
		var bar Bar
		err := rows.Scan(
			&bar.Symbol,
			&bar.Timestamp,
			&bar.Open,
			&bar.High,
			&bar.Low,
			&bar.Close,
			&bar.Volume,
			&bar.Timeframe,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		bars = append(bars, bar)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return bars, nil
}

// LastBar returns the most recent bar for a symbol and timeframe.
func (p *PostgresProvider) LastBar(ctx context.Context, symbol, timeframe string) (*Bar, error) {
	query := `
		SELECT symbol, timestamp, open, high, low, close, volume, timeframe
		FROM ohlcv_bars
		WHERE symbol = $1 AND timeframe = $2
		ORDER BY timestamp DESC
		LIMIT 1
	`

	row := p.db.QueryRowContext(ctx, query, symbol, timeframe)

	var bar Bar
	err := row.Scan(
		&bar.Symbol,
		&bar.Timestamp,
		&bar.Open,
		&bar.High,
		&bar.Low,
		&bar.Close,
		&bar.Volume,
		&bar.Timeframe,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no data found for symbol %s timeframe %s", symbol, timeframe)
		}
		return nil, fmt.Errorf("failed to get last bar: %w", err)
	}

	return &bar, nil
}

// Close closes the database connection.
func (p *PostgresProvider) Close() error {
	return p.db.Close()
}

// Verify that PostgresProvider implements the BarProvider interface
var _ BarProvider = (*PostgresProvider)(nil)
