package backtest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Grade summarizes a run in one letter, blending Sharpe, profit factor,
// win rate and drawdown.
func (r *Result) Grade() string {
	m := r.Metrics
	score := 0

	switch {
	case m.SharpeRatio >= 2:
		score += 3
	case m.SharpeRatio >= 1:
		score += 2
	case m.SharpeRatio > 0:
		score++
	}
	switch {
	case m.ProfitFactor >= 2:
		score += 3
	case m.ProfitFactor >= 1.5:
		score += 2
	case m.ProfitFactor > 1:
		score++
	}
	switch {
	case m.WinRate >= 60:
		score += 2
	case m.WinRate >= 50:
		score++
	}
	switch {
	case m.MaxDrawdownPct <= 5:
		score += 2
	case m.MaxDrawdownPct <= 15:
		score++
	}

	switch {
	case score >= 9:
		return "A+"
	case score >= 8:
		return "A"
	case score >= 6:
		return "B"
	case score >= 4:
		return "C"
	case score >= 2:
		return "D"
	default:
		return "F"
	}
}

// Summary renders the full human-readable report.
func (r *Result) Summary() string {
	m := r.Metrics
	var b strings.Builder

	line := strings.Repeat("=", 64)
	fmt.Fprintf(&b, "%s\nBACKTEST REPORT  %s\n%s\n\n", line, r.RunID, line)

	fmt.Fprintf(&b, "Configuration\n-------------\n")
	fmt.Fprintf(&b, "  Strategy:         %s\n", r.StrategyName)
	fmt.Fprintf(&b, "  Symbol:           %s (%s)\n", r.Config.Symbol, r.Config.Timeframe)
	fmt.Fprintf(&b, "  Period:           %s to %s\n",
		r.Config.StartDate.Format("2006-01-02"), r.Config.EndDate.Format("2006-01-02"))
	fmt.Fprintf(&b, "  Initial capital:  $%.2f\n", r.InitialCapital)
	fmt.Fprintf(&b, "  Commission:       $%.2f + %.4f%% per fill\n",
		r.Config.Commission, r.Config.CommissionPct*100)
	fmt.Fprintf(&b, "  Slippage:         %.4f%%\n\n", r.Config.SlippagePct*100)

	fmt.Fprintf(&b, "Overall\n-------\n")
	fmt.Fprintf(&b, "  Final capital:    $%.2f\n", r.FinalCapital)
	fmt.Fprintf(&b, "  Total return:     %.2f%%\n", r.TotalReturnPct())
	fmt.Fprintf(&b, "  Net profit:       $%.2f\n", m.NetProfit)
	fmt.Fprintf(&b, "  Bars processed:   %d in %s\n", r.BarsProcessed, r.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "  Grade:            %s\n\n", r.Grade())

	fmt.Fprintf(&b, "Trades\n------\n")
	fmt.Fprintf(&b, "  Total:            %d (%d wins, %d losses)\n",
		m.TotalTrades, m.WinningTrades, m.LosingTrades)
	fmt.Fprintf(&b, "  Win rate:         %.1f%%\n", m.WinRate)
	fmt.Fprintf(&b, "  Avg trade:        $%.2f\n", m.AverageTrade)
	fmt.Fprintf(&b, "  Avg win / loss:   $%.2f / $%.2f\n", m.AverageWin, m.AverageLoss)
	fmt.Fprintf(&b, "  Largest win/loss: $%.2f / $%.2f\n", m.LargestWin, m.LargestLoss)
	fmt.Fprintf(&b, "  Streaks:          %d wins, %d losses\n", m.MaxConsecutiveWins, m.MaxConsecutiveLosses)
	fmt.Fprintf(&b, "  Avg duration:     %s\n", m.AvgTradeDuration.Round(time.Second))
	fmt.Fprintf(&b, "  Costs:            $%.2f commission, $%.2f slippage\n\n",
		m.TotalCommission, m.TotalSlippage)

	fmt.Fprintf(&b, "Profit & Risk\n-------------\n")
	fmt.Fprintf(&b, "  Gross profit:     $%.2f\n", m.GrossProfit)
	fmt.Fprintf(&b, "  Gross loss:       $%.2f\n", m.GrossLoss)
	fmt.Fprintf(&b, "  Profit factor:    %.2f\n", m.ProfitFactor)
	fmt.Fprintf(&b, "  Max drawdown:     $%.2f (%.2f%%)\n", m.MaxDrawdown, m.MaxDrawdownPct)
	fmt.Fprintf(&b, "  Sharpe ratio:     %.2f\n", m.SharpeRatio)
	fmt.Fprintf(&b, "  Sortino ratio:    %.2f\n", m.SortinoRatio)
	fmt.Fprintf(&b, "  Calmar ratio:     %.2f\n\n", m.CalmarRatio)

	if len(r.DailyStats) > 0 {
		fmt.Fprintf(&b, "Daily\n-----\n")
		fmt.Fprintf(&b, "  %-12s %12s %12s %8s %7s %4s %4s\n",
			"Date", "Start Cash", "End Cash", "PnL", "PnL%", "W", "L")
		for _, day := range r.DailyStats {
			fmt.Fprintf(&b, "  %-12s %12.2f %12.2f %8.2f %6.2f%% %4d %4d\n",
				day.Date.Format("2006-01-02"), day.StartingCash, day.EndingCash,
				day.PnL, day.PnLPct, day.Wins, day.Losses)
		}
		b.WriteString("\n")
	}

	if len(r.Trades) > 0 {
		fmt.Fprintf(&b, "Trade Log\n---------\n")
		for _, t := range r.Trades {
			fmt.Fprintf(&b, "  #%-3d %s %s  %s @ %.4f -> %s @ %.4f  qty %.0f  net $%.2f (%.2f%%)  [%s -> %s]\n",
				t.TradeID, t.Side, t.Symbol,
				t.EntryTime.Format("2006-01-02 15:04"), t.EntryPrice,
				t.ExitTime.Format("2006-01-02 15:04"), t.ExitPrice,
				t.EntryQty, t.NetProfit, t.ReturnPct, t.EntryReason, t.ExitReason)
		}
		b.WriteString("\n")
	}

	b.WriteString(line + "\n")
	return b.String()
}

// SaveReport writes the report to dir as
// backtest_<symbol>_<yyyymmdd_HHMMSS>.txt and returns the path.
func (r *Result) SaveReport(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}
	name := fmt.Sprintf("backtest_%s_%s.txt", r.Config.Symbol, time.Now().Format("20060102_150405"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(r.Summary()), 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}
