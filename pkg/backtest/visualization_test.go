package backtest

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func visualizationFixture() *Result {
	base := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	cfg := zeroCostConfig(10000)
	cfg.StartDate = base.AddDate(0, 0, -1)
	cfg.EndDate = base.AddDate(0, 0, 5)

	trades := []Trade{
		{
			TradeID: 1, Symbol: "SPY", Side: "LONG",
			EntryTime: base, EntryPrice: 100, EntryQty: 10,
			ExitTime: base.Add(time.Hour), ExitPrice: 105, ExitQty: 10,
			GrossProfit: 50, NetProfit: 50, ReturnPct: 5,
			Duration: time.Hour, EntryReason: "entry", ExitReason: "exit",
		},
		{
			TradeID: 2, Symbol: "SPY", Side: "LONG",
			EntryTime: base.Add(2 * time.Hour), EntryPrice: 105, EntryQty: 10,
			ExitTime: base.Add(3 * time.Hour), ExitPrice: 103, ExitQty: 10,
			GrossProfit: -20, NetProfit: -20, ReturnPct: -1.9,
			Duration: time.Hour, EntryReason: "entry", ExitReason: "exit",
		},
	}
	equity := []EquityPoint{
		{Timestamp: base, Equity: 10000, Cash: 10000},
		{Timestamp: base.Add(time.Hour), Equity: 10050, Cash: 10050},
		{Timestamp: base.Add(3 * time.Hour), Equity: 10030, Cash: 10030},
	}
	daily := []DailyStats{
		{Date: base.Truncate(24 * time.Hour), StartingCash: 10000, EndingCash: 10030, PnL: 30, PnLPct: 0.3, Trades: 2, Wins: 1, Losses: 1},
	}

	result := &Result{
		RunID:          uuid.New(),
		Config:         cfg,
		StrategyName:   "scripted",
		InitialCapital: 10000,
		FinalCapital:   10030,
		Trades:         trades,
		DailyStats:     daily,
		EquityCurve:    equity,
		BarsProcessed:  3,
	}
	result.Metrics = CalculateMetrics(trades, daily, equity, 10000, 10030)
	return result
}

func TestVisualization_ExportAll(t *testing.T) {
	dir := t.TempDir()
	result := visualizationFixture()

	exporter := NewVisualizationExporter(dir, zerolog.Nop())
	if err := exporter.ExportAll(result); err != nil {
		t.Fatalf("ExportAll: %v", err)
	}

	for _, name := range []string{"equity_curve.csv", "trades.csv", "monthly_returns.csv", "visualization_data.json"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing artifact %s: %v", name, err)
		}
	}
}

func TestVisualization_EquityCurveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	result := visualizationFixture()

	exporter := NewVisualizationExporter(dir, zerolog.Nop())
	if err := exporter.ExportAll(result); err != nil {
		t.Fatalf("ExportAll: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "equity_curve.csv"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	// Header + one row per equity point.
	if len(records) != 1+len(result.EquityCurve) {
		t.Fatalf("rows = %d, want %d", len(records), 1+len(result.EquityCurve))
	}
	if records[0][0] != "Timestamp" || records[0][5] != "CumulativeReturn" {
		t.Errorf("unexpected header: %v", records[0])
	}

	for i, point := range result.EquityCurve {
		row := records[i+1]
		ts, err := time.Parse(time.RFC3339, row[0])
		if err != nil {
			t.Fatalf("row %d timestamp: %v", i, err)
		}
		if !ts.Equal(point.Timestamp) {
			t.Errorf("row %d timestamp = %v, want %v", i, ts, point.Timestamp)
		}
		equity, _ := strconv.ParseFloat(row[1], 64)
		if !almostEqual(equity, point.Equity) {
			t.Errorf("row %d equity = %v, want %v", i, equity, point.Equity)
		}
	}

	// Drawdown at the last point: peak 10050, equity 10030.
	lastDD, _ := strconv.ParseFloat(records[3][3], 64)
	if !almostEqual(lastDD, 20) {
		t.Errorf("last drawdown = %v, want 20", lastDD)
	}
}

func TestVisualization_TradesRoundTrip(t *testing.T) {
	dir := t.TempDir()
	result := visualizationFixture()

	exporter := NewVisualizationExporter(dir, zerolog.Nop())
	if err := exporter.ExportTrades(result); err != nil {
		t.Fatalf("ExportTrades: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "trades.csv"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(records) != 1+len(result.Trades) {
		t.Fatalf("rows = %d, want %d", len(records), 1+len(result.Trades))
	}

	row := records[1]
	if row[0] != "1" || row[1] != "SPY" {
		t.Errorf("first trade row = %v", row)
	}
	netProfit, _ := strconv.ParseFloat(row[10], 64)
	if !almostEqual(netProfit, 50) {
		t.Errorf("net profit = %v, want 50", netProfit)
	}
}

func TestVisualization_JSONDocument(t *testing.T) {
	dir := t.TempDir()
	result := visualizationFixture()

	exporter := NewVisualizationExporter(dir, zerolog.Nop())
	if err := exporter.ExportJSON(result); err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "visualization_data.json"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var doc struct {
		Metadata struct {
			RunID    string `json:"run_id"`
			Strategy string `json:"strategy"`
		} `json:"metadata"`
		EquityCurve    []EquityPoint   `json:"equity_curve"`
		MonthlyReturns []MonthlyReturn `json:"monthly_returns"`
		WinProfits     []float64       `json:"win_profits"`
		LossProfits    []float64       `json:"loss_profits"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if doc.Metadata.RunID != result.RunID.String() {
		t.Errorf("run_id = %q, want %q", doc.Metadata.RunID, result.RunID)
	}
	if doc.Metadata.Strategy != "scripted" {
		t.Errorf("strategy = %q", doc.Metadata.Strategy)
	}
	if len(doc.EquityCurve) != 3 {
		t.Errorf("equity points = %d, want 3", len(doc.EquityCurve))
	}
	if len(doc.WinProfits) != 1 || len(doc.LossProfits) != 1 {
		t.Errorf("histogram sizes = %d/%d, want 1/1", len(doc.WinProfits), len(doc.LossProfits))
	}
}

func TestMonthlyReturnsCompound(t *testing.T) {
	jan := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC)

	daily := []DailyStats{
		{Date: jan, PnLPct: 1},
		{Date: jan.AddDate(0, 0, 1), PnLPct: 2},
		{Date: feb, PnLPct: -1},
	}

	months := MonthlyReturns(daily)
	if len(months) != 2 {
		t.Fatalf("months = %d, want 2", len(months))
	}
	if months[0].Month != "2024-01" || months[1].Month != "2024-02" {
		t.Errorf("month keys = %v", months)
	}
	// 1.01 * 1.02 - 1 = 3.02%
	if !almostEqual(months[0].ReturnPct, (1.01*1.02-1)*100) {
		t.Errorf("january = %v, want 3.02", months[0].ReturnPct)
	}
	if !almostEqual(months[1].ReturnPct, -1) {
		t.Errorf("february = %v, want -1", months[1].ReturnPct)
	}
}

func TestDrawdownPeriods(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	equity := []EquityPoint{
		{Timestamp: base, Equity: 100},
		{Timestamp: base.Add(1 * time.Hour), Equity: 110},
		{Timestamp: base.Add(2 * time.Hour), Equity: 99},  // drawdown starts
		{Timestamp: base.Add(3 * time.Hour), Equity: 112}, // recovered
		{Timestamp: base.Add(4 * time.Hour), Equity: 108}, // open drawdown
	}

	periods := drawdownPeriods(equity)
	if len(periods) != 2 {
		t.Fatalf("periods = %d, want 2", len(periods))
	}
	if !periods[0].Recovered {
		t.Error("first drawdown should be recovered")
	}
	if !almostEqual(periods[0].DepthPct, 10) {
		t.Errorf("first depth = %v, want 10", periods[0].DepthPct)
	}
	if periods[1].Recovered {
		t.Error("second drawdown should still be open")
	}
}
