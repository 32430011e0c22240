package backtest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/quantforge/backtester/pkg/events"
	"github.com/quantforge/backtester/pkg/marketdata"
	"github.com/quantforge/backtester/pkg/strategy"
	"github.com/rs/zerolog"
)

// WalkForwardConfig drives a walk-forward analysis over the base config's
// date range.
type WalkForwardConfig struct {
	BacktestConfig     *Config
	ParameterRanges    []ParameterRange
	OptimizationMetric string
	InSampleDays       int
	OutOfSampleDays    int
	StepDays           int
	Anchored           bool
	Workers            int
}

// WalkForwardPeriod is one in-sample / out-of-sample window pair.
type WalkForwardPeriod struct {
	Index    int       `json:"index"`
	ISStart  time.Time `json:"is_start"`
	ISEnd    time.Time `json:"is_end"`
	OOSStart time.Time `json:"oos_start"`
	OOSEnd   time.Time `json:"oos_end"`
}

// PeriodResult holds one period's optimization and forward-test outcome.
type PeriodResult struct {
	Period           WalkForwardPeriod `json:"period"`
	BestParameters   ParameterSet      `json:"best_parameters"`
	ISMetric         float64           `json:"is_metric"`
	OOSMetric        float64           `json:"oos_metric"`
	PerformanceRatio float64           `json:"performance_ratio"` // OOS / IS
	OOSResult        *Result           `json:"-"`
}

// WalkForwardResult aggregates all periods.
type WalkForwardResult struct {
	MetricName        string         `json:"metric_name"`
	Anchored          bool           `json:"anchored"`
	Periods           []PeriodResult `json:"periods"`
	TotalPeriods      int            `json:"total_periods"`
	ProfitablePeriods int            `json:"profitable_periods"`

	AvgISMetric     float64 `json:"avg_is_metric"`
	AvgOOSMetric    float64 `json:"avg_oos_metric"`
	MedianOOSMetric float64 `json:"median_oos_metric"`
	AvgRatio        float64 `json:"avg_performance_ratio"`

	// Concatenated out-of-sample statistics.
	TotalOOSReturnPct float64 `json:"total_oos_return_pct"`
	TotalOOSTrades    int     `json:"total_oos_trades"`
	CombinedWinRate   float64 `json:"combined_win_rate"`
	AvgOOSSharpe      float64 `json:"avg_oos_sharpe"`
	MaxOOSDrawdownPct float64 `json:"max_oos_drawdown_pct"`
}

// WalkForwardAnalyzer alternates in-sample optimization windows with
// out-of-sample test windows across the configured date range.
type WalkForwardAnalyzer struct {
	config   *WalkForwardConfig
	provider marketdata.BarProvider
	logger   zerolog.Logger
}

// NewWalkForwardAnalyzer creates a walk-forward analyzer.
func NewWalkForwardAnalyzer(config *WalkForwardConfig, provider marketdata.BarProvider, logger zerolog.Logger) *WalkForwardAnalyzer {
	return &WalkForwardAnalyzer{
		config:   config,
		provider: provider,
		logger:   logger.With().Str("component", "walkforward").Logger(),
	}
}

// GeneratePeriods slices the date range into IS/OOS pairs. In rolling mode the
// in-sample window slides by StepDays; in anchored mode the in-sample start is
// pinned and only the window end advances, so in-sample grows every period.
func (a *WalkForwardAnalyzer) GeneratePeriods() []WalkForwardPeriod {
	cfg := a.config
	start := cfg.BacktestConfig.StartDate
	end := cfg.BacktestConfig.EndDate

	var periods []WalkForwardPeriod
	for idx := 0; ; idx++ {
		var isStart, isEnd time.Time
		if cfg.Anchored {
			isStart = start
			isEnd = start.AddDate(0, 0, cfg.InSampleDays+idx*cfg.StepDays)
		} else {
			isStart = start.AddDate(0, 0, idx*cfg.StepDays)
			isEnd = isStart.AddDate(0, 0, cfg.InSampleDays)
		}

		oosStart := isEnd
		oosEnd := oosStart.AddDate(0, 0, cfg.OutOfSampleDays)
		if oosEnd.After(end) {
			break
		}

		periods = append(periods, WalkForwardPeriod{
			Index:    idx,
			ISStart:  isStart,
			ISEnd:    isEnd,
			OOSStart: oosStart,
			OOSEnd:   oosEnd,
		})
	}
	return periods
}

// Analyze optimizes on each in-sample window, tests the best parameters on
// the following out-of-sample window, and aggregates across periods. Failed
// periods are skipped with an error log; only cancellation aborts.
func (a *WalkForwardAnalyzer) Analyze(ctx context.Context, factory strategy.Factory) (*WalkForwardResult, error) {
	if a.config.InSampleDays <= 0 || a.config.OutOfSampleDays <= 0 || a.config.StepDays <= 0 {
		return nil, fmt.Errorf("in_sample_days, out_of_sample_days and step_days must be positive")
	}

	periods := a.GeneratePeriods()
	if len(periods) == 0 {
		return nil, fmt.Errorf("date range too short for one in-sample + out-of-sample window")
	}

	a.logger.Info().
		Int("periods", len(periods)).
		Bool("anchored", a.config.Anchored).
		Int("in_sample_days", a.config.InSampleDays).
		Int("out_of_sample_days", a.config.OutOfSampleDays).
		Msg("Starting walk-forward analysis")

	var results []PeriodResult
	for _, period := range periods {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("walk-forward cancelled: %w", err)
		}

		pr, err := a.runPeriod(ctx, factory, period)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("walk-forward cancelled: %w", ctx.Err())
			}
			a.logger.Error().Err(err).Int("period", period.Index).Msg("Period failed, skipping")
			continue
		}
		results = append(results, *pr)

		a.logger.Info().
			Int("period", period.Index).
			Float64("is_metric", pr.ISMetric).
			Float64("oos_metric", pr.OOSMetric).
			Str("best_params", pr.BestParameters.String()).
			Msg("Period complete")
	}

	if len(results) == 0 {
		return nil, fmt.Errorf("all walk-forward periods failed")
	}

	return a.aggregate(results), nil
}

func (a *WalkForwardAnalyzer) runPeriod(ctx context.Context, factory strategy.Factory, period WalkForwardPeriod) (*PeriodResult, error) {
	// Optimize on the in-sample slice.
	isConfig := *a.config.BacktestConfig
	isConfig.StartDate = period.ISStart
	isConfig.EndDate = period.ISEnd

	optimizer := NewOptimizer(&OptimizationConfig{
		BacktestConfig:     &isConfig,
		ParameterRanges:    a.config.ParameterRanges,
		OptimizationMetric: a.config.OptimizationMetric,
		Workers:            a.config.Workers,
	}, a.provider, a.logger)

	ranked, err := optimizer.Optimize(ctx, factory)
	if err != nil {
		return nil, fmt.Errorf("in-sample optimization: %w", err)
	}
	best := ranked[0]
	if best.MetricValue == MetricSentinel {
		return nil, fmt.Errorf("no in-sample combination succeeded")
	}

	// Forward-test the winner on the out-of-sample slice.
	oosConfig := *a.config.BacktestConfig
	oosConfig.StartDate = period.OOSStart
	oosConfig.EndDate = period.OOSEnd

	runLogger := a.logger.Level(zerolog.ErrorLevel)
	bus := events.NewEventBus(1000, runLogger)
	strat, err := factory(best.Parameters, bus, runLogger)
	if err != nil {
		return nil, fmt.Errorf("strategy factory: %w", err)
	}

	oosResult, err := NewEngine(&oosConfig, strat, a.provider, bus, runLogger).Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("out-of-sample run: %w", err)
	}

	oosMetric, _ := oosResult.Metrics.Value(best.MetricName)
	ratio := 0.0
	if best.MetricValue != 0 {
		ratio = oosMetric / best.MetricValue
	}

	return &PeriodResult{
		Period:           period,
		BestParameters:   best.Parameters,
		ISMetric:         best.MetricValue,
		OOSMetric:        oosMetric,
		PerformanceRatio: ratio,
		OOSResult:        oosResult,
	}, nil
}

func (a *WalkForwardAnalyzer) aggregate(results []PeriodResult) *WalkForwardResult {
	out := &WalkForwardResult{
		MetricName:   a.config.OptimizationMetric,
		Anchored:     a.config.Anchored,
		Periods:      results,
		TotalPeriods: len(results),
	}

	oosMetrics := make([]float64, 0, len(results))
	var totalWins, totalTrades int
	for _, pr := range results {
		out.AvgISMetric += pr.ISMetric
		out.AvgOOSMetric += pr.OOSMetric
		out.AvgRatio += pr.PerformanceRatio
		oosMetrics = append(oosMetrics, pr.OOSMetric)

		res := pr.OOSResult
		if res.TotalReturnPct() > 0 {
			out.ProfitablePeriods++
		}
		out.TotalOOSReturnPct += res.TotalReturnPct()
		out.TotalOOSTrades += res.Metrics.TotalTrades
		totalWins += res.Metrics.WinningTrades
		totalTrades += res.Metrics.TotalTrades
		out.AvgOOSSharpe += res.Metrics.SharpeRatio
		if res.Metrics.MaxDrawdownPct > out.MaxOOSDrawdownPct {
			out.MaxOOSDrawdownPct = res.Metrics.MaxDrawdownPct
		}
	}

	n := float64(len(results))
	out.AvgISMetric /= n
	out.AvgOOSMetric /= n
	out.AvgRatio /= n
	out.AvgOOSSharpe /= n
	if totalTrades > 0 {
		out.CombinedWinRate = float64(totalWins) / float64(totalTrades) * 100
	}

	sort.Float64s(oosMetrics)
	mid := len(oosMetrics) / 2
	if len(oosMetrics)%2 == 1 {
		out.MedianOOSMetric = oosMetrics[mid]
	} else {
		out.MedianOOSMetric = (oosMetrics[mid-1] + oosMetrics[mid]) / 2
	}

	return out
}

// Verdict grades how well in-sample performance carried forward.
func (r *WalkForwardResult) Verdict() string {
	switch {
	case r.AvgRatio >= 0.7:
		return "EXCELLENT - performance transfers out-of-sample"
	case r.AvgRatio >= 0.5:
		return "GOOD - strategy is deployable"
	case r.AvgRatio >= 0:
		return "MARGINAL - live performance likely to underperform in-sample"
	default:
		return "FAIL - strategy loses money out-of-sample"
	}
}

// FormatWalkForwardResult renders the aggregate for the CLI.
func FormatWalkForwardResult(r *WalkForwardResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Walk-Forward Analysis (%s, anchored=%v)\n", r.MetricName, r.Anchored)
	fmt.Fprintf(&b, "=====================================\n")
	fmt.Fprintf(&b, "Periods:               %d (%d profitable)\n", r.TotalPeriods, r.ProfitablePeriods)
	fmt.Fprintf(&b, "Avg IS metric:         %.4f\n", r.AvgISMetric)
	fmt.Fprintf(&b, "Avg OOS metric:        %.4f\n", r.AvgOOSMetric)
	fmt.Fprintf(&b, "Median OOS metric:     %.4f\n", r.MedianOOSMetric)
	fmt.Fprintf(&b, "Avg OOS/IS ratio:      %.2f\n", r.AvgRatio)
	fmt.Fprintf(&b, "Total OOS return:      %.2f%%\n", r.TotalOOSReturnPct)
	fmt.Fprintf(&b, "Total OOS trades:      %d\n", r.TotalOOSTrades)
	fmt.Fprintf(&b, "Combined win rate:     %.1f%%\n", r.CombinedWinRate)
	fmt.Fprintf(&b, "Avg OOS Sharpe:        %.2f\n", r.AvgOOSSharpe)
	fmt.Fprintf(&b, "Max OOS drawdown:      %.2f%%\n", r.MaxOOSDrawdownPct)
	fmt.Fprintf(&b, "Verdict:               %s\n", r.Verdict())

	for _, pr := range r.Periods {
		fmt.Fprintf(&b, "  period %d  IS %s..%s  OOS %s..%s  is=%.4f oos=%.4f params=%s\n",
			pr.Period.Index,
			pr.Period.ISStart.Format("2006-01-02"), pr.Period.ISEnd.Format("2006-01-02"),
			pr.Period.OOSStart.Format("2006-01-02"), pr.Period.OOSEnd.Format("2006-01-02"),
			pr.ISMetric, pr.OOSMetric, pr.BestParameters.String())
	}

	return b.String()
}
