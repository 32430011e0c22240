package strategy

import (
	"context"
	"fmt"

	"github.com/quantforge/backtester/pkg/events"
	"github.com/quantforge/backtester/pkg/indicator"
	"github.com/quantforge/backtester/pkg/marketdata"
	"github.com/rs/zerolog"
)

// MACrossover goes long when the fast SMA crosses above the slow SMA and
// exits when it crosses back below.
type MACrossover struct {
	*BaseStrategy
	fast     *indicator.SMA
	slow     *indicator.SMA
	quantity float64

	prevFast float64
	prevSlow float64
	warm     bool
}

// NewMACrossover creates a moving-average crossover strategy.
// Parameters: fast_period (default 5), slow_period (default 20), quantity (default 10).
func NewMACrossover(symbol string, params map[string]interface{}, bus *events.EventBus, logger zerolog.Logger) (*MACrossover, error) {
	base := NewBaseStrategy("ma_crossover", symbol, params, bus, logger)

	fastPeriod, err := base.ParamInt("fast_period", 5)
	if err != nil {
		return nil, err
	}
	slowPeriod, err := base.ParamInt("slow_period", 20)
	if err != nil {
		return nil, err
	}
	quantity, err := base.ParamFloat("quantity", 10)
	if err != nil {
		return nil, err
	}

	if fastPeriod >= slowPeriod {
		return nil, fmt.Errorf("fast_period %d must be less than slow_period %d", fastPeriod, slowPeriod)
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive, got %v", quantity)
	}

	return &MACrossover{
		BaseStrategy: base,
		fast:         indicator.NewSMA(fastPeriod),
		slow:         indicator.NewSMA(slowPeriod),
		quantity:     quantity,
	}, nil
}

// Start subscribes to market data.
func (s *MACrossover) Start(ctx context.Context) error {
	s.SubscribeMarketData(s.onBar)
	return nil
}

func (s *MACrossover) onBar(bar marketdata.Bar) {
	fast := s.fast.Update(bar.Close)
	slow := s.slow.Update(bar.Close)

	if !s.slow.Ready() {
		return
	}
	if !s.warm {
		// First bar with both averages available establishes the baseline;
		// a cross needs a previous reading to compare against.
		s.prevFast, s.prevSlow = fast, slow
		s.warm = true
		return
	}

	crossedUp := s.prevFast <= s.prevSlow && fast > slow
	crossedDown := s.prevFast >= s.prevSlow && fast < slow
	s.prevFast, s.prevSlow = fast, slow

	if crossedUp && !s.IsLong() {
		s.EmitBuy(bar, s.quantity,
			fmt.Sprintf("Fast MA %.2f crossed above slow MA %.2f", fast, slow), 0.7)
	} else if crossedDown && s.IsLong() {
		s.EmitSell(bar,
			fmt.Sprintf("Fast MA %.2f crossed below slow MA %.2f", fast, slow), 0.7)
	}
}
