package marketdata

import (
	"fmt"
	"time"
)

// Bar represents a single OHLCV candle for one symbol and timeframe.
// Bars are immutable once loaded; the engine only ever reads them.
type Bar struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	Timeframe string    `json:"timeframe"`
}

// Date returns the bar's trading date truncated to midnight in the bar's location.
func (b Bar) Date() time.Time {
	y, m, d := b.Timestamp.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, b.Timestamp.Location())
}

// Validate checks the OHLCV invariants for a single bar.
func (b Bar) Validate() error {
	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
		return fmt.Errorf("bar %s at %s has non-positive price", b.Symbol, b.Timestamp.Format(time.RFC3339))
	}
	if b.Low > b.Open || b.Low > b.Close || b.High < b.Open || b.High < b.Close {
		return fmt.Errorf("bar %s at %s violates low <= open,close <= high", b.Symbol, b.Timestamp.Format(time.RFC3339))
	}
	if b.Volume < 0 {
		return fmt.Errorf("bar %s at %s has negative volume", b.Symbol, b.Timestamp.Format(time.RFC3339))
	}
	return nil
}

// ValidateSeries checks bar-level invariants and strict timestamp ordering
// across a replay sequence.
func ValidateSeries(bars []Bar) error {
	for i, bar := range bars {
		if err := bar.Validate(); err != nil {
			return err
		}
		if i > 0 && !bars[i-1].Timestamp.Before(bar.Timestamp) {
			return fmt.Errorf("bars out of order: %s not after %s",
				bar.Timestamp.Format(time.RFC3339), bars[i-1].Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}
