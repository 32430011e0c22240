package marketdata

import (
	"context"
	"sort"
	"time"
)

// MemoryProvider serves bars from a pre-seeded in-memory slice. It is used in
// tests and as an immutable cache in front of a slower provider so that
// concurrent optimizer runs do not hit the upstream source per combination.
type MemoryProvider struct {
	bars []Bar
}

// NewMemoryProvider copies and sorts the given bars.
func NewMemoryProvider(bars []Bar) *MemoryProvider {
	owned := make([]Bar, len(bars))
	copy(owned, bars)
	sort.Slice(owned, func(i, j int) bool {
		return owned[i].Timestamp.Before(owned[j].Timestamp)
	})
	return &MemoryProvider{bars: owned}
}

// Preload fetches the full range from an upstream provider once and returns a
// MemoryProvider holding the result.
func Preload(ctx context.Context, upstream BarProvider, symbol, timeframe string, start, end time.Time) (*MemoryProvider, error) {
	bars, err := upstream.HistoricalBars(ctx, symbol, timeframe, start, end)
	if err != nil {
		return nil, err
	}
	return NewMemoryProvider(bars), nil
}

// HistoricalBars returns the cached bars matching symbol, timeframe and range.
func (p *MemoryProvider) HistoricalBars(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []Bar
	for _, bar := range p.bars {
		if bar.Symbol != symbol || bar.Timeframe != timeframe {
			continue
		}
		if bar.Timestamp.Before(start) || bar.Timestamp.After(end) {
			continue
		}
		out = append(out, bar)
	}
	return out, nil
}

var _ BarProvider = (*MemoryProvider)(nil)
