package strategy

import (
	"context"
	"fmt"

	"github.com/quantforge/backtester/pkg/events"
	"github.com/quantforge/backtester/pkg/indicator"
	"github.com/quantforge/backtester/pkg/marketdata"
	"github.com/rs/zerolog"
)

// RSIMeanReversion buys when RSI drops below the oversold threshold and sells
// when it rises above the overbought threshold.
type RSIMeanReversion struct {
	*BaseStrategy
	rsi        *indicator.RSI
	oversold   float64
	overbought float64
	quantity   float64
}

// NewRSIMeanReversion creates an RSI mean-reversion strategy.
// Parameters: rsi_period (default 14), oversold_threshold (default 30),
// overbought_threshold (default 70), quantity (default 10).
func NewRSIMeanReversion(symbol string, params map[string]interface{}, bus *events.EventBus, logger zerolog.Logger) (*RSIMeanReversion, error) {
	base := NewBaseStrategy("rsi_mean_reversion", symbol, params, bus, logger)

	period, err := base.ParamInt("rsi_period", 14)
	if err != nil {
		return nil, err
	}
	oversold, err := base.ParamFloat("oversold_threshold", 30)
	if err != nil {
		return nil, err
	}
	overbought, err := base.ParamFloat("overbought_threshold", 70)
	if err != nil {
		return nil, err
	}
	quantity, err := base.ParamFloat("quantity", 10)
	if err != nil {
		return nil, err
	}

	if period < 2 {
		return nil, fmt.Errorf("rsi_period must be at least 2, got %d", period)
	}
	if oversold >= overbought {
		return nil, fmt.Errorf("oversold_threshold %v must be below overbought_threshold %v", oversold, overbought)
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive, got %v", quantity)
	}

	return &RSIMeanReversion{
		BaseStrategy: base,
		rsi:          indicator.NewRSI(period),
		oversold:     oversold,
		overbought:   overbought,
		quantity:     quantity,
	}, nil
}

// Start subscribes to market data.
func (s *RSIMeanReversion) Start(ctx context.Context) error {
	s.SubscribeMarketData(s.onBar)
	return nil
}

func (s *RSIMeanReversion) onBar(bar marketdata.Bar) {
	rsi := s.rsi.Update(bar.Close)
	if !s.rsi.Ready() {
		return
	}

	if rsi < s.oversold && !s.IsLong() {
		// Confidence scales with how deep the oversold reading is.
		confidence := 0.5 + 0.5*(s.oversold-rsi)/s.oversold
		if confidence > 1 {
			confidence = 1
		}
		s.EmitBuy(bar, s.quantity,
			fmt.Sprintf("RSI %.1f below oversold threshold %.1f", rsi, s.oversold), confidence)
	} else if rsi > s.overbought && s.IsLong() {
		confidence := 0.5 + 0.5*(rsi-s.overbought)/(100-s.overbought)
		if confidence > 1 {
			confidence = 1
		}
		s.EmitSell(bar,
			fmt.Sprintf("RSI %.1f above overbought threshold %.1f", rsi, s.overbought), confidence)
	}
}
