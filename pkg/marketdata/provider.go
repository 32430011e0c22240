package marketdata

import (
	"context"
	"time"
)

// BarProvider is the source of historical bars consumed by the backtest engine.
//
// Implementations must return bars sorted ascending by timestamp, covering the
// requested range (missing days are allowed), in a consistent timezone. The
// engine does not resample; callers pick the timeframe string (e.g. "1Min").
// Providers may be shared across concurrent engines and must be safe for
// concurrent reads.
type BarProvider interface {
	HistoricalBars(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]Bar, error)
}
