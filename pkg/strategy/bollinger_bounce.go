package strategy

import (
	"context"
	"fmt"

	"github.com/quantforge/backtester/pkg/events"
	"github.com/quantforge/backtester/pkg/indicator"
	"github.com/quantforge/backtester/pkg/marketdata"
	"github.com/rs/zerolog"
)

// BollingerBounce buys when the close trades below the lower Bollinger band
// and exits when it reverts above the middle band.
type BollingerBounce struct {
	*BaseStrategy
	std      *indicator.StdDev
	width    float64
	quantity float64
}

// NewBollingerBounce creates a Bollinger-band bounce strategy.
// Parameters: period (default 20), std_dev (default 2.0), quantity (default 10).
func NewBollingerBounce(symbol string, params map[string]interface{}, bus *events.EventBus, logger zerolog.Logger) (*BollingerBounce, error) {
	base := NewBaseStrategy("bollinger_bounce", symbol, params, bus, logger)

	period, err := base.ParamInt("period", 20)
	if err != nil {
		return nil, err
	}
	width, err := base.ParamFloat("std_dev", 2.0)
	if err != nil {
		return nil, err
	}
	quantity, err := base.ParamFloat("quantity", 10)
	if err != nil {
		return nil, err
	}

	if period < 2 {
		return nil, fmt.Errorf("period must be at least 2, got %d", period)
	}
	if width <= 0 {
		return nil, fmt.Errorf("std_dev must be positive, got %v", width)
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive, got %v", quantity)
	}

	return &BollingerBounce{
		BaseStrategy: base,
		std:          indicator.NewStdDev(period),
		width:        width,
		quantity:     quantity,
	}, nil
}

// Start subscribes to market data.
func (s *BollingerBounce) Start(ctx context.Context) error {
	s.SubscribeMarketData(s.onBar)
	return nil
}

func (s *BollingerBounce) onBar(bar marketdata.Bar) {
	sd := s.std.Update(bar.Close)
	if !s.std.Ready() {
		return
	}

	middle := s.std.Mean()
	lower := middle - s.width*sd

	if bar.Close < lower && !s.IsLong() {
		s.EmitBuy(bar, s.quantity,
			fmt.Sprintf("Close %.2f below lower band %.2f", bar.Close, lower), 0.6)
	} else if bar.Close > middle && s.IsLong() {
		s.EmitSell(bar,
			fmt.Sprintf("Close %.2f reverted above middle band %.2f", bar.Close, middle), 0.6)
	}
}
