package backtest

import (
	"math"
	"testing"
	"time"
)

func TestMetrics_WinRateAndAverages(t *testing.T) {
	trades := []Trade{
		{NetProfit: 100},
		{NetProfit: -50},
		{NetProfit: 200},
		{NetProfit: -100},
		{NetProfit: 50},
	}

	m := CalculateMetrics(trades, nil, nil, 10000, 10200)

	if m.TotalTrades != 5 || m.WinningTrades != 3 || m.LosingTrades != 2 {
		t.Errorf("counts = %d/%d/%d, want 5/3/2", m.TotalTrades, m.WinningTrades, m.LosingTrades)
	}
	if !almostEqual(m.WinRate, 60) {
		t.Errorf("WinRate = %v, want 60", m.WinRate)
	}
	// (100 + 200 + 50) / 3
	if !almostEqual(m.AverageWin, 350.0/3) {
		t.Errorf("AverageWin = %v, want %v", m.AverageWin, 350.0/3)
	}
	// Reported negative: (-50 + -100) / 2
	if !almostEqual(m.AverageLoss, -75) {
		t.Errorf("AverageLoss = %v, want -75", m.AverageLoss)
	}
	if !almostEqual(m.LargestWin, 200) || !almostEqual(m.LargestLoss, -100) {
		t.Errorf("largest = %v/%v, want 200/-100", m.LargestWin, m.LargestLoss)
	}
	// 350 profit / 150 loss
	if !almostEqual(m.ProfitFactor, 350.0/150) {
		t.Errorf("ProfitFactor = %v, want %v", m.ProfitFactor, 350.0/150)
	}
}

func TestMetrics_ProfitFactorSentinel(t *testing.T) {
	m := CalculateMetrics([]Trade{{NetProfit: 100}}, nil, nil, 10000, 10100)
	if m.ProfitFactor != RatioSentinel {
		t.Errorf("ProfitFactor = %v, want sentinel %v", m.ProfitFactor, RatioSentinel)
	}

	m = CalculateMetrics(nil, nil, nil, 10000, 10000)
	if m.ProfitFactor != 0 {
		t.Errorf("empty ProfitFactor = %v, want 0", m.ProfitFactor)
	}
}

func TestMetrics_MaxDrawdown(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	equity := []EquityPoint{
		{Timestamp: base, Equity: 10000},
		{Timestamp: base.Add(time.Hour), Equity: 11000},
		{Timestamp: base.Add(2 * time.Hour), Equity: 9900}, // 1100 off the 11000 peak
		{Timestamp: base.Add(3 * time.Hour), Equity: 10500},
		{Timestamp: base.Add(4 * time.Hour), Equity: 12000},
		{Timestamp: base.Add(5 * time.Hour), Equity: 10800}, // 1200 off the 12000 peak, the deeper dip
	}

	m := CalculateMetrics(nil, nil, equity, 10000, 10800)

	if !almostEqual(m.MaxDrawdown, 1200) {
		t.Errorf("MaxDrawdown = %v, want 1200", m.MaxDrawdown)
	}
	if !almostEqual(m.MaxDrawdownPct, 1200.0/12000*100) {
		t.Errorf("MaxDrawdownPct = %v, want 10", m.MaxDrawdownPct)
	}
}

func TestMetrics_RiskRatios(t *testing.T) {
	daily := []DailyStats{
		{StartingCash: 10000, PnL: 100},
		{StartingCash: 10100, PnL: -50},
		{StartingCash: 10050, PnL: 200},
		{StartingCash: 10250, PnL: -80},
	}

	m := CalculateMetrics(nil, daily, nil, 10000, 10170)

	returns := []float64{100.0 / 10000, -50.0 / 10100, 200.0 / 10050, -80.0 / 10250}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= 4

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	stdev := math.Sqrt(variance / 3)
	wantSharpe := mean / stdev * math.Sqrt(252)

	if !almostEqual(m.SharpeRatio, wantSharpe) {
		t.Errorf("SharpeRatio = %v, want %v", m.SharpeRatio, wantSharpe)
	}

	downside := math.Sqrt((returns[1]*returns[1] + returns[3]*returns[3]) / 2)
	wantSortino := mean / downside * math.Sqrt(252)
	if !almostEqual(m.SortinoRatio, wantSortino) {
		t.Errorf("SortinoRatio = %v, want %v", m.SortinoRatio, wantSortino)
	}
}

func TestMetrics_SortinoSentinelWithNoDownDays(t *testing.T) {
	daily := []DailyStats{
		{StartingCash: 10000, PnL: 100},
		{StartingCash: 10100, PnL: 50},
	}
	m := CalculateMetrics(nil, daily, nil, 10000, 10150)
	if m.SortinoRatio != RatioSentinel {
		t.Errorf("SortinoRatio = %v, want sentinel %v", m.SortinoRatio, RatioSentinel)
	}
}

func TestMetrics_TooFewDailyPoints(t *testing.T) {
	daily := []DailyStats{{StartingCash: 10000, PnL: 100}}
	m := CalculateMetrics(nil, daily, nil, 10000, 10100)
	if m.SharpeRatio != 0 || m.SortinoRatio != 0 {
		t.Errorf("ratios = %v/%v, want 0/0 with a single daily point", m.SharpeRatio, m.SortinoRatio)
	}
}

func TestMetrics_ConsecutiveStreaks(t *testing.T) {
	trades := []Trade{
		{NetProfit: 1}, {NetProfit: 1}, {NetProfit: 1},
		{NetProfit: -1}, {NetProfit: -1},
		{NetProfit: 1},
		{NetProfit: -1}, {NetProfit: -1}, {NetProfit: -1}, {NetProfit: -1},
	}
	m := CalculateMetrics(trades, nil, nil, 10000, 10000)
	if m.MaxConsecutiveWins != 3 {
		t.Errorf("MaxConsecutiveWins = %d, want 3", m.MaxConsecutiveWins)
	}
	if m.MaxConsecutiveLosses != 4 {
		t.Errorf("MaxConsecutiveLosses = %d, want 4", m.MaxConsecutiveLosses)
	}
}

func TestMetrics_CalmarRatio(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	equity := []EquityPoint{
		{Timestamp: base, Equity: 10000},
		{Timestamp: base.Add(time.Hour), Equity: 9000}, // 10% drawdown
		{Timestamp: base.Add(2 * time.Hour), Equity: 12000},
	}
	m := CalculateMetrics(nil, nil, equity, 10000, 12000)
	if !almostEqual(m.CalmarRatio, 20.0/10.0) {
		t.Errorf("CalmarRatio = %v, want 2", m.CalmarRatio)
	}
}

func TestMetrics_Value(t *testing.T) {
	m := &Metrics{SharpeRatio: 1.5, WinRate: 60}

	if v, ok := m.Value("sharpe_ratio"); !ok || v != 1.5 {
		t.Errorf("Value(sharpe_ratio) = %v, %v", v, ok)
	}
	if v, ok := m.Value("win_rate"); !ok || v != 60 {
		t.Errorf("Value(win_rate) = %v, %v", v, ok)
	}
	if _, ok := m.Value("bogus"); ok {
		t.Error("Value(bogus) should report unknown")
	}
}
