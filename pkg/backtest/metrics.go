package backtest

import (
	"math"
	"time"
)

// RatioSentinel replaces an infinite ratio when its denominator is zero but
// the numerator is positive (profit factor with no losses, Sortino with no
// down days).
const RatioSentinel = 999.99

// tradingDaysPerYear annualizes daily return ratios.
const tradingDaysPerYear = 252

// Metrics is the battery of performance and risk metrics derived from a
// completed run. All derivations are pure functions of the realized trades,
// daily stats and equity curve.
type Metrics struct {
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`

	GrossProfit  float64 `json:"gross_profit"`
	GrossLoss    float64 `json:"gross_loss"`
	NetProfit    float64 `json:"net_profit"`
	ProfitFactor float64 `json:"profit_factor"`
	AverageTrade float64 `json:"average_trade"`
	AverageWin   float64 `json:"average_win"`
	AverageLoss  float64 `json:"average_loss"` // reported negative
	LargestWin   float64 `json:"largest_win"`
	LargestLoss  float64 `json:"largest_loss"` // reported negative

	TotalReturnPct float64 `json:"total_return_pct"`
	MaxDrawdown    float64 `json:"max_drawdown"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
	SortinoRatio   float64 `json:"sortino_ratio"`
	CalmarRatio    float64 `json:"calmar_ratio"`

	AvgTradeDuration     time.Duration `json:"avg_trade_duration"`
	MaxConsecutiveWins   int           `json:"max_consecutive_wins"`
	MaxConsecutiveLosses int           `json:"max_consecutive_losses"`
	TotalCommission      float64       `json:"total_commission"`
	TotalSlippage        float64       `json:"total_slippage"`
}

// CalculateMetrics derives the full metric set from the realized sequences.
func CalculateMetrics(trades []Trade, daily []DailyStats, equity []EquityPoint, initialCapital, finalCapital float64) *Metrics {
	m := &Metrics{}

	if initialCapital > 0 {
		m.TotalReturnPct = (finalCapital - initialCapital) / initialCapital * 100
	}

	m.tradeStats(trades)
	m.drawdown(equity)
	m.riskRatios(daily)

	if m.MaxDrawdownPct != 0 {
		m.CalmarRatio = m.TotalReturnPct / m.MaxDrawdownPct
	}

	return m
}

func (m *Metrics) tradeStats(trades []Trade) {
	m.TotalTrades = len(trades)
	if m.TotalTrades == 0 {
		return
	}

	var totalDuration time.Duration
	var winStreak, lossStreak int

	for _, trade := range trades {
		m.NetProfit += trade.NetProfit
		m.TotalCommission += trade.Commission
		m.TotalSlippage += trade.Slippage
		totalDuration += trade.Duration

		if trade.IsWin() {
			m.WinningTrades++
			m.GrossProfit += trade.NetProfit
			if trade.NetProfit > m.LargestWin {
				m.LargestWin = trade.NetProfit
			}
			winStreak++
			lossStreak = 0
			if winStreak > m.MaxConsecutiveWins {
				m.MaxConsecutiveWins = winStreak
			}
		} else {
			m.LosingTrades++
			m.GrossLoss += math.Abs(trade.NetProfit)
			if trade.NetProfit < m.LargestLoss {
				m.LargestLoss = trade.NetProfit
			}
			lossStreak++
			winStreak = 0
			if lossStreak > m.MaxConsecutiveLosses {
				m.MaxConsecutiveLosses = lossStreak
			}
		}
	}

	m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades) * 100
	m.AverageTrade = m.NetProfit / float64(m.TotalTrades)
	m.AvgTradeDuration = totalDuration / time.Duration(m.TotalTrades)

	if m.WinningTrades > 0 {
		m.AverageWin = m.GrossProfit / float64(m.WinningTrades)
	}
	if m.LosingTrades > 0 {
		m.AverageLoss = -m.GrossLoss / float64(m.LosingTrades)
	}

	switch {
	case m.GrossLoss > 0:
		m.ProfitFactor = m.GrossProfit / m.GrossLoss
	case m.GrossProfit > 0:
		m.ProfitFactor = RatioSentinel
	default:
		m.ProfitFactor = 0
	}
}

func (m *Metrics) drawdown(equity []EquityPoint) {
	if len(equity) == 0 {
		return
	}

	peak := equity[0].Equity
	for _, point := range equity {
		if point.Equity > peak {
			peak = point.Equity
		}
		dd := peak - point.Equity
		if dd > m.MaxDrawdown {
			m.MaxDrawdown = dd
		}
		if peak > 0 {
			ddPct := dd / peak * 100
			if ddPct > m.MaxDrawdownPct {
				m.MaxDrawdownPct = ddPct
			}
		}
	}
}

// riskRatios derives Sharpe and Sortino from daily percentage returns
// pnl_i / starting_cash_i, annualized by sqrt(252).
func (m *Metrics) riskRatios(daily []DailyStats) {
	var returns []float64
	for _, day := range daily {
		if day.StartingCash > 0 {
			returns = append(returns, day.PnL/day.StartingCash)
		}
	}

	if len(returns) < 2 {
		return
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		diff := r - mean
		variance += diff * diff
	}
	variance /= float64(len(returns) - 1)
	stdev := math.Sqrt(variance)

	annualize := math.Sqrt(tradingDaysPerYear)
	if stdev > 0 {
		m.SharpeRatio = mean / stdev * annualize
	}

	downSquares := 0.0
	downCount := 0
	for _, r := range returns {
		if r < 0 {
			downSquares += r * r
			downCount++
		}
	}
	if downCount == 0 {
		m.SortinoRatio = RatioSentinel
		return
	}
	downside := math.Sqrt(downSquares / float64(downCount))
	if downside > 0 {
		m.SortinoRatio = mean / downside * annualize
	}
}

// Value extracts a metric by its optimization name. The second return is
// false for unknown names.
func (m *Metrics) Value(name string) (float64, bool) {
	switch name {
	case "sharpe_ratio":
		return m.SharpeRatio, true
	case "sortino_ratio":
		return m.SortinoRatio, true
	case "total_return":
		return m.TotalReturnPct, true
	case "profit_factor":
		return m.ProfitFactor, true
	case "calmar_ratio":
		return m.CalmarRatio, true
	case "win_rate":
		return m.WinRate, true
	default:
		return 0, false
	}
}
