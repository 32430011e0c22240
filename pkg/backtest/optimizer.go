package backtest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/quantforge/backtester/pkg/events"
	"github.com/quantforge/backtester/pkg/marketdata"
	"github.com/quantforge/backtester/pkg/strategy"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// MetricSentinel sorts failed combinations to the bottom of the ranking.
const MetricSentinel = -999999.0

// DefaultOptimizationMetric is used when an unknown metric name is requested.
const DefaultOptimizationMetric = "sharpe_ratio"

// OptimizationConfig drives one grid search.
type OptimizationConfig struct {
	BacktestConfig     *Config
	ParameterRanges    []ParameterRange
	OptimizationMetric string
	Workers            int
	MaxCombinations    int // 0 = unlimited
}

// OptimizationResult is the outcome of one parameter combination.
type OptimizationResult struct {
	Rank        int          `json:"rank"`
	Parameters  ParameterSet `json:"parameters"`
	MetricName  string       `json:"metric_name"`
	MetricValue float64      `json:"metric_value"`
	Result      *Result      `json:"-"`
	Error       string       `json:"error,omitempty"`
}

// Optimizer evaluates the Cartesian product of parameter ranges, one
// independent backtest per combination, bounded by a worker pool.
type Optimizer struct {
	config   *OptimizationConfig
	provider marketdata.BarProvider
	logger   zerolog.Logger
}

// NewOptimizer creates a grid-search optimizer.
func NewOptimizer(config *OptimizationConfig, provider marketdata.BarProvider, logger zerolog.Logger) *Optimizer {
	return &Optimizer{
		config:   config,
		provider: provider,
		logger:   logger.With().Str("component", "optimizer").Logger(),
	}
}

// Optimize runs every combination and returns results sorted descending by
// the optimization metric, ranks assigned from 1.
func (o *Optimizer) Optimize(ctx context.Context, factory strategy.Factory) ([]*OptimizationResult, error) {
	if len(o.config.ParameterRanges) == 0 {
		return nil, fmt.Errorf("no parameter ranges to optimize")
	}

	metric := o.config.OptimizationMetric
	if !isKnownMetric(metric) {
		o.logger.Warn().
			Str("requested", metric).
			Str("fallback", DefaultOptimizationMetric).
			Msg("Unknown optimization metric, falling back")
		metric = DefaultOptimizationMetric
	}

	combinations := CartesianProduct(o.config.ParameterRanges)
	if len(combinations) == 0 {
		return nil, fmt.Errorf("parameter ranges produce no combinations")
	}
	if o.config.MaxCombinations > 0 && len(combinations) > o.config.MaxCombinations {
		o.logger.Warn().
			Int("total", len(combinations)).
			Int("cap", o.config.MaxCombinations).
			Msg("Combination count exceeds cap, truncating")
		combinations = combinations[:o.config.MaxCombinations]
	}

	workers := o.config.Workers
	if workers <= 0 {
		workers = 1
	}

	o.logger.Info().
		Int("combinations", len(combinations)).
		Int("workers", workers).
		Str("metric", metric).
		Msg("Starting grid search")

	results := make([]*OptimizationResult, len(combinations))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, params := range combinations {
		i, params := i, params
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = o.runCombination(gctx, factory, params, metric)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("optimization cancelled: %w", err)
	}

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].MetricValue > results[b].MetricValue
	})
	for i, r := range results {
		r.Rank = i + 1
	}

	o.logger.Info().
		Float64("best_metric", results[0].MetricValue).
		Str("best_params", results[0].Parameters.String()).
		Msg("Grid search complete")

	return results, nil
}

// runCombination executes one isolated inner backtest. Factory or engine
// failures map to the sentinel metric so the combination sorts last; only
// cancellation aborts the whole search.
func (o *Optimizer) runCombination(ctx context.Context, factory strategy.Factory, params ParameterSet, metric string) *OptimizationResult {
	out := &OptimizationResult{
		Parameters:  params,
		MetricName:  metric,
		MetricValue: MetricSentinel,
	}

	// Inner runs log at error level only so a large grid stays readable.
	runLogger := o.logger.Level(zerolog.ErrorLevel)
	bus := events.NewEventBus(1000, runLogger)

	strat, err := factory(params, bus, runLogger)
	if err != nil {
		o.logger.Error().Err(err).Str("params", params.String()).Msg("Strategy factory failed")
		out.Error = err.Error()
		return out
	}

	engine := NewEngine(o.config.BacktestConfig, strat, o.provider, bus, runLogger)
	result, err := engine.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			out.Error = err.Error()
			return out
		}
		o.logger.Error().Err(err).Str("params", params.String()).Msg("Inner backtest failed")
		out.Error = err.Error()
		return out
	}

	value, _ := result.Metrics.Value(metric)
	out.Result = result
	out.MetricValue = value
	return out
}

func isKnownMetric(name string) bool {
	switch name {
	case "sharpe_ratio", "sortino_ratio", "total_return", "profit_factor", "calmar_ratio", "win_rate":
		return true
	}
	return false
}

// FormatTopResults renders the best n combinations as a table for the CLI.
func FormatTopResults(results []*OptimizationResult, n int) string {
	if n > len(results) {
		n = len(results)
	}

	var b strings.Builder
	b.WriteString("Rank  Metric Value  Parameters\n")
	b.WriteString("----  ------------  ----------\n")
	for _, r := range results[:n] {
		value := fmt.Sprintf("%12.4f", r.MetricValue)
		if r.MetricValue == MetricSentinel {
			value = "      failed"
		}
		fmt.Fprintf(&b, "%4d  %s  %s\n", r.Rank, value, r.Parameters.String())
	}
	return b.String()
}
