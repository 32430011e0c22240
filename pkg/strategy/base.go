package strategy

import (
	"context"
	"fmt"

	"github.com/quantforge/backtester/pkg/events"
	"github.com/quantforge/backtester/pkg/marketdata"
	"github.com/rs/zerolog"
)

// BaseStrategy provides parameter handling, signal emission and default
// lifecycle hooks shared by the built-in strategies.
type BaseStrategy struct {
	name   string
	symbol string
	params map[string]interface{}
	bus    *events.EventBus
	logger zerolog.Logger

	long bool // true while the strategy believes it holds the position
}

// NewBaseStrategy creates the shared strategy core.
func NewBaseStrategy(name, symbol string, params map[string]interface{}, bus *events.EventBus, logger zerolog.Logger) *BaseStrategy {
	if params == nil {
		params = make(map[string]interface{})
	}
	return &BaseStrategy{
		name:   name,
		symbol: symbol,
		params: params,
		bus:    bus,
		logger: logger.With().Str("strategy", name).Logger(),
	}
}

// Name returns the strategy name.
func (s *BaseStrategy) Name() string {
	return s.name
}

// Symbol returns the symbol this strategy trades.
func (s *BaseStrategy) Symbol() string {
	return s.symbol
}

// Parameters returns the strategy parameters.
func (s *BaseStrategy) Parameters() map[string]interface{} {
	return s.params
}

// Logger returns the strategy-scoped logger.
func (s *BaseStrategy) Logger() zerolog.Logger {
	return s.logger
}

// Initialize provides a default initialization.
func (s *BaseStrategy) Initialize(ctx context.Context) error {
	s.logger.Debug().Str("symbol", s.symbol).Msg("Strategy initialized")
	return nil
}

// Stop provides a default shutdown.
func (s *BaseStrategy) Stop(ctx context.Context) error {
	s.logger.Debug().Msg("Strategy stopped")
	return nil
}

// IsLong reports whether the strategy has an outstanding buy.
func (s *BaseStrategy) IsLong() bool {
	return s.long
}

// EmitBuy publishes a BUY signal for the given bar.
func (s *BaseStrategy) EmitBuy(bar marketdata.Bar, quantity float64, reason string, confidence float64) {
	s.long = true
	s.bus.Publish(events.SignalEvent{
		Symbol:     s.symbol,
		Action:     events.ActionBuy,
		Price:      bar.Close,
		Quantity:   quantity,
		Reason:     reason,
		Confidence: confidence,
		Timestamp:  bar.Timestamp,
	})
}

// EmitSell publishes a SELL signal for the given bar.
func (s *BaseStrategy) EmitSell(bar marketdata.Bar, reason string, confidence float64) {
	s.long = false
	s.bus.Publish(events.SignalEvent{
		Symbol:     s.symbol,
		Action:     events.ActionSell,
		Price:      bar.Close,
		Reason:     reason,
		Confidence: confidence,
		Timestamp:  bar.Timestamp,
	})
}

// SubscribeMarketData registers the handler for bars matching the strategy's
// symbol.
func (s *BaseStrategy) SubscribeMarketData(handler func(marketdata.Bar)) {
	s.bus.SubscribeFunc(events.TopicMarketData, func(ev events.Event) {
		md, ok := ev.(events.MarketDataEvent)
		if !ok || md.Bar.Symbol != s.symbol {
			return
		}
		handler(md.Bar)
	})
}

// ParamFloat returns a numeric parameter, falling back to def when absent.
func (s *BaseStrategy) ParamFloat(key string, def float64) (float64, error) {
	val, ok := s.params[key]
	if !ok {
		return def, nil
	}

	switch v := val.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("parameter %s is not a number", key)
	}
}

// ParamInt returns an integer parameter, falling back to def when absent.
func (s *BaseStrategy) ParamInt(key string, def int) (int, error) {
	val, ok := s.params[key]
	if !ok {
		return def, nil
	}

	switch v := val.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("parameter %s is not an integer", key)
	}
}

// ParamString returns a string parameter, falling back to def when absent.
func (s *BaseStrategy) ParamString(key string, def string) (string, error) {
	val, ok := s.params[key]
	if !ok {
		return def, nil
	}

	if str, ok := val.(string); ok {
		return str, nil
	}
	return "", fmt.Errorf("parameter %s is not a string", key)
}
