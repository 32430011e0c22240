package backtest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// VisualizationExporter writes a run's series to CSV and JSON artifacts that
// external plotting tools can consume directly.
type VisualizationExporter struct {
	outputDir string
	logger    zerolog.Logger
}

// NewVisualizationExporter creates an exporter rooted at outputDir.
func NewVisualizationExporter(outputDir string, logger zerolog.Logger) *VisualizationExporter {
	return &VisualizationExporter{
		outputDir: outputDir,
		logger:    logger.With().Str("component", "visualization").Logger(),
	}
}

// ExportAll writes equity_curve.csv, trades.csv, monthly_returns.csv and
// visualization_data.json for the given result.
func (v *VisualizationExporter) ExportAll(result *Result) error {
	if err := os.MkdirAll(v.outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := v.ExportEquityCurve(result); err != nil {
		return err
	}
	if err := v.ExportTrades(result); err != nil {
		return err
	}
	if err := v.ExportMonthlyReturns(result); err != nil {
		return err
	}
	if err := v.ExportJSON(result); err != nil {
		return err
	}

	v.logger.Info().Str("dir", v.outputDir).Msg("Visualization data exported")
	return nil
}

// ExportEquityCurve writes the equity series with running drawdown and
// cumulative return columns.
func (v *VisualizationExporter) ExportEquityCurve(result *Result) error {
	file, err := os.Create(filepath.Join(v.outputDir, "equity_curve.csv"))
	if err != nil {
		return fmt.Errorf("failed to create equity_curve.csv: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	if err := w.Write([]string{"Timestamp", "Equity", "Cash", "Drawdown", "DrawdownPct", "CumulativeReturn"}); err != nil {
		return err
	}

	peak := result.InitialCapital
	for _, point := range result.EquityCurve {
		if point.Equity > peak {
			peak = point.Equity
		}
		drawdown := peak - point.Equity
		drawdownPct := 0.0
		if peak > 0 {
			drawdownPct = drawdown / peak * 100
		}
		cumReturn := 0.0
		if result.InitialCapital > 0 {
			cumReturn = (point.Equity - result.InitialCapital) / result.InitialCapital * 100
		}

		record := []string{
			point.Timestamp.Format(time.RFC3339),
			formatFloat(point.Equity),
			formatFloat(point.Cash),
			formatFloat(drawdown),
			formatFloat(drawdownPct),
			formatFloat(cumReturn),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return w.Error()
}

// ExportTrades writes the full trade log.
func (v *VisualizationExporter) ExportTrades(result *Result) error {
	file, err := os.Create(filepath.Join(v.outputDir, "trades.csv"))
	if err != nil {
		return fmt.Errorf("failed to create trades.csv: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	header := []string{
		"TradeID", "Symbol", "Side",
		"EntryTime", "EntryPrice", "EntryQty",
		"ExitTime", "ExitPrice", "ExitQty",
		"GrossProfit", "NetProfit", "Commission", "Slippage",
		"ReturnPct", "Duration", "EntryReason", "ExitReason",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, t := range result.Trades {
		record := []string{
			strconv.Itoa(t.TradeID),
			t.Symbol,
			t.Side,
			t.EntryTime.Format(time.RFC3339),
			formatFloat(t.EntryPrice),
			formatFloat(t.EntryQty),
			t.ExitTime.Format(time.RFC3339),
			formatFloat(t.ExitPrice),
			formatFloat(t.ExitQty),
			formatFloat(t.GrossProfit),
			formatFloat(t.NetProfit),
			formatFloat(t.Commission),
			formatFloat(t.Slippage),
			formatFloat(t.ReturnPct),
			t.Duration.String(),
			t.EntryReason,
			t.ExitReason,
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return w.Error()
}

// ExportMonthlyReturns compounds the daily stats into calendar-month returns.
func (v *VisualizationExporter) ExportMonthlyReturns(result *Result) error {
	file, err := os.Create(filepath.Join(v.outputDir, "monthly_returns.csv"))
	if err != nil {
		return fmt.Errorf("failed to create monthly_returns.csv: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	if err := w.Write([]string{"Month", "Return"}); err != nil {
		return err
	}
	for _, mr := range MonthlyReturns(result.DailyStats) {
		if err := w.Write([]string{mr.Month, formatFloat(mr.ReturnPct)}); err != nil {
			return err
		}
	}
	return w.Error()
}

// MonthlyReturn is one calendar month's compounded return.
type MonthlyReturn struct {
	Month     string  `json:"month"` // YYYY-MM
	ReturnPct float64 `json:"return_pct"`
}

// MonthlyReturns compounds daily percentage returns within each calendar
// month, in chronological order.
func MonthlyReturns(daily []DailyStats) []MonthlyReturn {
	growth := make(map[string]float64)
	var order []string
	for _, day := range daily {
		month := day.Date.Format("2006-01")
		if _, ok := growth[month]; !ok {
			growth[month] = 1
			order = append(order, month)
		}
		growth[month] *= 1 + day.PnLPct/100
	}
	sort.Strings(order)

	out := make([]MonthlyReturn, 0, len(order))
	for _, month := range order {
		out = append(out, MonthlyReturn{Month: month, ReturnPct: (growth[month] - 1) * 100})
	}
	return out
}

// DrawdownPeriod is one peak-to-recovery episode on the equity curve.
type DrawdownPeriod struct {
	Start     time.Time `json:"start"`
	Trough    time.Time `json:"trough"`
	End       time.Time `json:"end"` // zero when not recovered by run end
	DepthPct  float64   `json:"depth_pct"`
	Recovered bool      `json:"recovered"`
}

// drawdownPeriods walks the equity curve and extracts every episode where
// equity fell below its prior peak.
func drawdownPeriods(equity []EquityPoint) []DrawdownPeriod {
	if len(equity) == 0 {
		return nil
	}

	var periods []DrawdownPeriod
	peak := equity[0].Equity
	peakTime := equity[0].Timestamp
	var current *DrawdownPeriod

	for _, point := range equity {
		if point.Equity >= peak {
			if current != nil {
				current.End = point.Timestamp
				current.Recovered = true
				periods = append(periods, *current)
				current = nil
			}
			peak = point.Equity
			peakTime = point.Timestamp
			continue
		}

		depthPct := 0.0
		if peak > 0 {
			depthPct = (peak - point.Equity) / peak * 100
		}
		if current == nil {
			current = &DrawdownPeriod{Start: peakTime, Trough: point.Timestamp, DepthPct: depthPct}
		} else if depthPct > current.DepthPct {
			current.Trough = point.Timestamp
			current.DepthPct = depthPct
		}
	}
	if current != nil {
		periods = append(periods, *current)
	}
	return periods
}

// visualizationData is the JSON artifact schema.
type visualizationData struct {
	Metadata struct {
		RunID          string    `json:"run_id"`
		Strategy       string    `json:"strategy"`
		Symbol         string    `json:"symbol"`
		StartDate      time.Time `json:"start_date"`
		EndDate        time.Time `json:"end_date"`
		InitialCapital float64   `json:"initial_capital"`
		FinalCapital   float64   `json:"final_capital"`
		GeneratedAt    time.Time `json:"generated_at"`
	} `json:"metadata"`
	Metrics         *Metrics         `json:"metrics"`
	EquityCurve     []EquityPoint    `json:"equity_curve"`
	DrawdownPeriods []DrawdownPeriod `json:"drawdown_periods"`
	MonthlyReturns  []MonthlyReturn  `json:"monthly_returns"`
	WinProfits      []float64        `json:"win_profits"`
	LossProfits     []float64        `json:"loss_profits"`
}

// ExportJSON writes visualization_data.json with everything a dashboard needs
// in one document.
func (v *VisualizationExporter) ExportJSON(result *Result) error {
	var data visualizationData
	data.Metadata.RunID = result.RunID.String()
	data.Metadata.Strategy = result.StrategyName
	data.Metadata.Symbol = result.Config.Symbol
	data.Metadata.StartDate = result.Config.StartDate
	data.Metadata.EndDate = result.Config.EndDate
	data.Metadata.InitialCapital = result.InitialCapital
	data.Metadata.FinalCapital = result.FinalCapital
	data.Metadata.GeneratedAt = time.Now()

	data.Metrics = result.Metrics
	data.EquityCurve = result.EquityCurve
	data.DrawdownPeriods = drawdownPeriods(result.EquityCurve)
	data.MonthlyReturns = MonthlyReturns(result.DailyStats)

	for _, t := range result.Trades {
		if t.IsWin() {
			data.WinProfits = append(data.WinProfits, t.NetProfit)
		} else {
			data.LossProfits = append(data.LossProfits, t.NetProfit)
		}
	}

	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode visualization data: %w", err)
	}
	path := filepath.Join(v.outputDir, "visualization_data.json")
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return fmt.Errorf("failed to write visualization data: %w", err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
