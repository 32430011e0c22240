package backtest

import (
	"time"

	"github.com/google/uuid"
)

// Position is the at-most-one open long held by the executor.
type Position struct {
	Symbol      string    `json:"symbol"`
	Side        string    `json:"side"` // always "LONG"
	EntryTime   time.Time `json:"entry_time"`
	EntryPrice  float64   `json:"entry_price"` // execution price after slippage
	Quantity    float64   `json:"quantity"`
	EntryReason string    `json:"entry_reason"`

	// Entry-leg costs carried into the closed trade record.
	entryCommission float64
	entrySlippage   float64
}

// Trade is a closed entry/exit pair. Trades are append-only and never mutated
// after creation.
type Trade struct {
	TradeID     int           `json:"trade_id"`
	Symbol      string        `json:"symbol"`
	Side        string        `json:"side"`
	EntryTime   time.Time     `json:"entry_time"`
	EntryPrice  float64       `json:"entry_price"`
	EntryQty    float64       `json:"entry_qty"`
	ExitTime    time.Time     `json:"exit_time"`
	ExitPrice   float64       `json:"exit_price"`
	ExitQty     float64       `json:"exit_qty"`
	GrossProfit float64       `json:"gross_profit"`
	NetProfit   float64       `json:"net_profit"`
	Commission  float64       `json:"commission"` // both legs summed
	Slippage    float64       `json:"slippage"`   // both legs summed
	ReturnPct   float64       `json:"return_pct"`
	Duration    time.Duration `json:"duration"`
	EntryReason string        `json:"entry_reason"`
	ExitReason  string        `json:"exit_reason"`
}

// IsWin reports whether the trade closed with a positive net profit.
func (t Trade) IsWin() bool {
	return t.NetProfit > 0
}

// EquityPoint is one sample of total account value on the bar timeline.
type EquityPoint struct {
	Timestamp     time.Time `json:"timestamp"`
	Equity        float64   `json:"equity"`
	Cash          float64   `json:"cash"`
	UnrealizedPnL float64   `json:"unrealized_pnl"`
}

// DailyStats summarizes one trading day touched by the replay.
type DailyStats struct {
	Date         time.Time `json:"date"`
	StartingCash float64   `json:"starting_cash"`
	EndingCash   float64   `json:"ending_cash"`
	PnL          float64   `json:"pnl"` // realized net profit for the day
	PnLPct       float64   `json:"pnl_pct"`
	Trades       int       `json:"trades"`
	Wins         int       `json:"wins"`
	Losses       int       `json:"losses"`
	Commission   float64   `json:"commission"`
	Slippage     float64   `json:"slippage"`
}

// Result is the closed record of a completed backtest run. It is immutable
// once the engine returns it.
type Result struct {
	RunID          uuid.UUID     `json:"run_id"`
	Config         *Config       `json:"config"`
	StrategyName   string        `json:"strategy_name"`
	InitialCapital float64       `json:"initial_capital"`
	FinalCapital   float64       `json:"final_capital"`
	Metrics        *Metrics      `json:"metrics"`
	Trades         []Trade       `json:"trades"`
	DailyStats     []DailyStats  `json:"daily_stats"`
	EquityCurve    []EquityPoint `json:"equity_curve"`
	BarsProcessed  int           `json:"bars_processed"`
	Duration       time.Duration `json:"duration"` // wall clock
}

// TotalReturnPct is the run's overall return in percent.
func (r *Result) TotalReturnPct() float64 {
	if r.InitialCapital == 0 {
		return 0
	}
	return (r.FinalCapital - r.InitialCapital) / r.InitialCapital * 100
}
