// Package strategy defines the trading strategy contract and the built-in
// strategies selectable from the CLI.
//
// A strategy subscribes to market data on the event bus during Start and
// reacts to each bar by publishing SignalEvents back onto the bus. Strategies
// must be deterministic given identical bars and parameters and must not
// perform I/O; all market access goes through the replayed bars.
package strategy

import (
	"context"
	"fmt"

	"github.com/quantforge/backtester/pkg/events"
	"github.com/rs/zerolog"
)

// Strategy is the capability set every trading strategy implements.
type Strategy interface {
	// Initialize is called once before the replay starts.
	Initialize(ctx context.Context) error

	// Start subscribes the strategy to market data on its bus.
	Start(ctx context.Context) error

	// Stop is called once after the replay ends.
	Stop(ctx context.Context) error

	// Name returns the strategy name.
	Name() string

	// Parameters returns the strategy parameters.
	Parameters() map[string]interface{}
}

// Factory produces a fresh, independent strategy per call. The optimizer and
// walk-forward analyzer call it once per inner run with that run's own bus and
// logger.
type Factory func(params map[string]interface{}, bus *events.EventBus, logger zerolog.Logger) (Strategy, error)

// Names returns the closed set of built-in strategy names.
func Names() []string {
	return []string{
		"buy_and_hold",
		"ma_crossover",
		"rsi_mean_reversion",
		"bollinger_bounce",
	}
}

// New constructs a built-in strategy by name.
func New(name, symbol string, params map[string]interface{}, bus *events.EventBus, logger zerolog.Logger) (Strategy, error) {
	switch name {
	case "buy_and_hold":
		return NewBuyAndHold(symbol, params, bus, logger), nil
	case "ma_crossover":
		return NewMACrossover(symbol, params, bus, logger)
	case "rsi_mean_reversion":
		return NewRSIMeanReversion(symbol, params, bus, logger)
	case "bollinger_bounce":
		return NewBollingerBounce(symbol, params, bus, logger)
	default:
		return nil, fmt.Errorf("unknown strategy %q, available: %v", name, Names())
	}
}

// NewFactory returns a Factory bound to a built-in strategy name and symbol.
func NewFactory(name, symbol string) Factory {
	return func(params map[string]interface{}, bus *events.EventBus, logger zerolog.Logger) (Strategy, error) {
		return New(name, symbol, params, bus, logger)
	}
}
