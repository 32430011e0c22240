package strategy

import (
	"context"

	"github.com/quantforge/backtester/pkg/events"
	"github.com/quantforge/backtester/pkg/marketdata"
	"github.com/rs/zerolog"
)

// BuyAndHold buys once on the first bar and never exits; the engine's force
// close realizes the position at the end of the replay. Mostly useful as a
// benchmark for the other strategies.
type BuyAndHold struct {
	*BaseStrategy
	quantity float64
	bought   bool
}

// NewBuyAndHold creates a buy-and-hold strategy.
// Parameters: quantity (default 10).
func NewBuyAndHold(symbol string, params map[string]interface{}, bus *events.EventBus, logger zerolog.Logger) *BuyAndHold {
	base := NewBaseStrategy("buy_and_hold", symbol, params, bus, logger)
	quantity, err := base.ParamFloat("quantity", 10)
	if err != nil || quantity <= 0 {
		quantity = 10
	}

	return &BuyAndHold{
		BaseStrategy: base,
		quantity:     quantity,
	}
}

// Start subscribes to market data.
func (s *BuyAndHold) Start(ctx context.Context) error {
	s.SubscribeMarketData(s.onBar)
	return nil
}

func (s *BuyAndHold) onBar(bar marketdata.Bar) {
	if s.bought {
		return
	}
	s.bought = true
	s.EmitBuy(bar, s.quantity, "Initial buy and hold entry", 1.0)
}
