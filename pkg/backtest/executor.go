package backtest

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ForceCloseReason marks the synthetic exit emitted at the end of a replay.
const ForceCloseReason = "Backtest end - force close"

// SimulatedExecutor models the execution venue for one run: it holds cash and
// at most one long position, applies slippage and commissions, and records
// closed trades, daily stats and the equity curve.
//
// Accounting note: the entry commission is debited from cash at entry, while
// net profit on a closed trade is proceeds minus cost basis (so only the exit
// commission reduces it). Trade.Commission reports both legs summed.
type SimulatedExecutor struct {
	config *Config
	logger zerolog.Logger

	cash        float64
	position    *Position
	nextTradeID int
	barVolume   float64

	trades      []Trade
	equityCurve []EquityPoint
	dailyStats  []DailyStats

	// Current trading day accumulators, finalized on day-boundary change.
	dayOpen       bool
	currentDate   time.Time
	dayStartCash  float64
	dailyPnL      float64
	dayTrades     int
	dayWins       int
	dayLosses     int
	dayCommission float64
	daySlippage   float64
}

// NewSimulatedExecutor creates an executor holding the config's initial capital.
func NewSimulatedExecutor(config *Config, logger zerolog.Logger) *SimulatedExecutor {
	return &SimulatedExecutor{
		config:      config,
		logger:      logger.With().Str("subcomponent", "executor").Logger(),
		cash:        config.InitialCapital,
		nextTradeID: 1,
	}
}

// Cash returns the current cash balance.
func (e *SimulatedExecutor) Cash() float64 {
	return e.cash
}

// SetBarVolume records the volume of the bar currently being replayed. The
// volume-based slippage model reads it when filling that bar's signals.
func (e *SimulatedExecutor) SetBarVolume(volume float64) {
	e.barVolume = volume
}

// slippageFraction returns the adverse price fraction for an order. The
// volume-based model scales the base rate by the order's share of the current
// bar's volume, so large orders in thin bars pay more. It degrades to the
// fixed rate when the bar volume is unknown.
func (e *SimulatedExecutor) slippageFraction(quantity float64) float64 {
	if e.config.SlippageModel == SlippageVolumeBased && e.barVolume > 0 {
		return e.config.SlippagePct * (1 + quantity/e.barVolume)
	}
	return e.config.SlippagePct
}

// Position returns the open position, or nil when flat.
func (e *SimulatedExecutor) Position() *Position {
	return e.position
}

// Trades returns the closed trades in execution order.
func (e *SimulatedExecutor) Trades() []Trade {
	return e.trades
}

// EquityCurve returns the recorded equity points.
func (e *SimulatedExecutor) EquityCurve() []EquityPoint {
	return e.equityCurve
}

// DailyStats returns the finalized per-day summaries.
func (e *SimulatedExecutor) DailyStats() []DailyStats {
	return e.dailyStats
}

// ExecuteBuy opens a long position. A buy while a position is already open is
// a warned no-op (one-at-a-time rule). The capital check uses the signal's
// reference price notional; slippage and commission are then debited on top,
// which can leave cash slightly negative on a full-size entry.
func (e *SimulatedExecutor) ExecuteBuy(symbol string, price, quantity float64, ts time.Time, reason string) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidQuantity, quantity)
	}
	if price <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidPrice, price)
	}
	if e.position != nil {
		e.logger.Warn().
			Str("symbol", symbol).
			Float64("price", price).
			Msg("Buy ignored, position already open")
		return nil
	}

	if quantity > e.config.MaxPositionSize {
		e.logger.Debug().
			Float64("requested", quantity).
			Float64("capped", e.config.MaxPositionSize).
			Msg("Quantity capped at max position size")
		quantity = e.config.MaxPositionSize
	}

	if price*quantity > e.cash {
		return fmt.Errorf("%w: need %.2f, have %.2f", ErrInsufficientCapital, price*quantity, e.cash)
	}

	executionPrice := price * (1 + e.slippageFraction(quantity))
	commission := e.config.Commission + e.config.CommissionPct*executionPrice*quantity
	slippage := (executionPrice - price) * quantity

	e.cash -= executionPrice*quantity + commission
	e.dayCommission += commission
	e.daySlippage += slippage

	e.position = &Position{
		Symbol:          symbol,
		Side:            "LONG",
		EntryTime:       ts,
		EntryPrice:      executionPrice,
		Quantity:        quantity,
		EntryReason:     reason,
		entryCommission: commission,
		entrySlippage:   slippage,
	}

	e.logger.Debug().
		Str("symbol", symbol).
		Float64("quantity", quantity).
		Float64("execution_price", executionPrice).
		Float64("commission", commission).
		Float64("cash", e.cash).
		Msg("Buy executed")

	return nil
}

// ExecuteSell closes the open position and appends the resulting trade.
func (e *SimulatedExecutor) ExecuteSell(symbol string, price float64, ts time.Time, reason string) error {
	if e.position == nil {
		return ErrNoPosition
	}
	if price <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidPrice, price)
	}

	pos := e.position
	quantity := pos.Quantity

	executionPrice := price * (1 - e.slippageFraction(quantity))
	exitCommission := e.config.Commission + e.config.CommissionPct*executionPrice*quantity
	exitSlippage := (price - executionPrice) * quantity

	proceeds := executionPrice*quantity - exitCommission
	costBasis := pos.EntryPrice * quantity
	grossProfit := proceeds + exitCommission - costBasis
	netProfit := proceeds - costBasis

	trade := Trade{
		TradeID:     e.nextTradeID,
		Symbol:      symbol,
		Side:        pos.Side,
		EntryTime:   pos.EntryTime,
		EntryPrice:  pos.EntryPrice,
		EntryQty:    quantity,
		ExitTime:    ts,
		ExitPrice:   executionPrice,
		ExitQty:     quantity,
		GrossProfit: grossProfit,
		NetProfit:   netProfit,
		Commission:  pos.entryCommission + exitCommission,
		Slippage:    pos.entrySlippage + exitSlippage,
		ReturnPct:   netProfit / (pos.EntryPrice * quantity) * 100,
		Duration:    ts.Sub(pos.EntryTime),
		EntryReason: pos.EntryReason,
		ExitReason:  reason,
	}
	e.nextTradeID++
	e.trades = append(e.trades, trade)

	e.cash += proceeds
	e.position = nil

	e.dailyPnL += netProfit
	e.dayTrades++
	if trade.IsWin() {
		e.dayWins++
	} else {
		e.dayLosses++
	}
	e.dayCommission += exitCommission
	e.daySlippage += exitSlippage

	e.logger.Debug().
		Int("trade_id", trade.TradeID).
		Float64("net_profit", netProfit).
		Float64("cash", e.cash).
		Str("exit_reason", reason).
		Msg("Sell executed")

	return nil
}

// UpdateEquityCurve appends an equity point marked at the given price.
func (e *SimulatedExecutor) UpdateEquityCurve(ts time.Time, markPrice float64) {
	point := EquityPoint{
		Timestamp: ts,
		Equity:    e.cash,
		Cash:      e.cash,
	}
	if e.position != nil {
		point.Equity = e.cash + e.position.Quantity*markPrice
		point.UnrealizedPnL = (markPrice - e.position.EntryPrice) * e.position.Quantity
	}
	e.equityCurve = append(e.equityCurve, point)
}

// CheckDailyLossLimit rolls the daily accumulators on a date change and
// reports whether the current day's loss breached either limit. A true return
// tells the engine to skip the remainder of the trading day; it is a control
// signal, not an error.
func (e *SimulatedExecutor) CheckDailyLossLimit(date time.Time) bool {
	if !e.dayOpen {
		e.openDay(date)
		return false
	}

	if !date.Equal(e.currentDate) {
		e.finalizeDay()
		e.openDay(date)
		return false
	}

	if e.config.MaxDailyLoss > 0 && e.dailyPnL < -e.config.MaxDailyLoss {
		e.logger.Warn().
			Float64("daily_pnl", e.dailyPnL).
			Float64("max_daily_loss", e.config.MaxDailyLoss).
			Time("date", date).
			Msg("Daily loss limit breached, halting for the day")
		return true
	}

	if e.config.MaxDailyLossPct > 0 && e.dayStartCash > 0 &&
		-e.dailyPnL/e.dayStartCash > e.config.MaxDailyLossPct {
		e.logger.Warn().
			Float64("daily_pnl_pct", -e.dailyPnL/e.dayStartCash*100).
			Float64("max_daily_loss_pct", e.config.MaxDailyLossPct*100).
			Time("date", date).
			Msg("Daily loss percentage limit breached, halting for the day")
		return true
	}

	return false
}

// ForceClosePosition flattens any open position with a synthetic sell.
func (e *SimulatedExecutor) ForceClosePosition(price float64, ts time.Time) error {
	if e.position == nil {
		return nil
	}
	return e.ExecuteSell(e.position.Symbol, price, ts, ForceCloseReason)
}

// Finalize flushes the last open trading day. Called once after the replay.
func (e *SimulatedExecutor) Finalize() {
	if e.dayOpen {
		e.finalizeDay()
	}
}

func (e *SimulatedExecutor) openDay(date time.Time) {
	e.dayOpen = true
	e.currentDate = date
	e.dayStartCash = e.cash
	e.dailyPnL = 0
	e.dayTrades = 0
	e.dayWins = 0
	e.dayLosses = 0
	e.dayCommission = 0
	e.daySlippage = 0
}

func (e *SimulatedExecutor) finalizeDay() {
	pnlPct := 0.0
	if e.dayStartCash > 0 {
		pnlPct = e.dailyPnL / e.dayStartCash * 100
	}
	e.dailyStats = append(e.dailyStats, DailyStats{
		Date:         e.currentDate,
		StartingCash: e.dayStartCash,
		EndingCash:   e.cash,
		PnL:          e.dailyPnL,
		PnLPct:       pnlPct,
		Trades:       e.dayTrades,
		Wins:         e.dayWins,
		Losses:       e.dayLosses,
		Commission:   e.dayCommission,
		Slippage:     e.daySlippage,
	})
	e.dayOpen = false
}
