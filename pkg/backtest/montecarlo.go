package backtest

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// MonteCarloConfig drives a bootstrap robustness analysis over a completed
// run's trade list.
type MonteCarloConfig struct {
	Simulations         int
	ConfidenceLevel     float64 // e.g. 0.95
	Seed                int64   // 0 = seed from wall clock
	AnnualizationFactor float64 // trading periods per year, 0 = 252
}

// DefaultMonteCarloConfig returns the standard 1000-path setup.
func DefaultMonteCarloConfig() *MonteCarloConfig {
	return &MonteCarloConfig{
		Simulations:     1000,
		ConfidenceLevel: 0.95,
	}
}

// SimulationPath is the outcome of one resampled trade sequence.
type SimulationPath struct {
	FinalReturnPct float64
	MaxDrawdownPct float64
	SharpeRatio    float64
}

// MonteCarloResult aggregates the simulated distribution.
type MonteCarloResult struct {
	Simulations     int     `json:"simulations"`
	TradesPerPath   int     `json:"trades_per_path"`
	ConfidenceLevel float64 `json:"confidence_level"`
	Seed            int64   `json:"seed"`

	MeanReturnPct   float64 `json:"mean_return_pct"`
	MedianReturnPct float64 `json:"median_return_pct"`
	StdevReturnPct  float64 `json:"stdev_return_pct"`
	MinReturnPct    float64 `json:"min_return_pct"`
	MaxReturnPct    float64 `json:"max_return_pct"`
	ReturnCILower   float64 `json:"return_ci_lower"`
	ReturnCIUpper   float64 `json:"return_ci_upper"`

	MeanDrawdownPct   float64 `json:"mean_drawdown_pct"`
	MedianDrawdownPct float64 `json:"median_drawdown_pct"`
	WorstDrawdownPct  float64 `json:"worst_drawdown_pct"`
	DrawdownCIUpper   float64 `json:"drawdown_ci_upper"`

	MeanSharpe   float64 `json:"mean_sharpe"`
	MedianSharpe float64 `json:"median_sharpe"`

	ProbabilityOfProfit float64 `json:"probability_of_profit"`
	ProbabilityOfTarget float64 `json:"probability_of_target"` // return >= 10%
	RiskOfRuin          float64 `json:"risk_of_ruin"`          // drawdown > 50%
}

// profitTargetPct and ruinDrawdownPct bound the tail probabilities.
const (
	profitTargetPct = 10.0
	ruinDrawdownPct = 50.0
)

// MonteCarloAnalyzer bootstraps alternative orderings of a run's realized
// trades to estimate how sensitive the outcome is to trade sequence.
type MonteCarloAnalyzer struct {
	config *MonteCarloConfig
	logger zerolog.Logger
}

// NewMonteCarloAnalyzer creates a Monte Carlo analyzer.
func NewMonteCarloAnalyzer(config *MonteCarloConfig, logger zerolog.Logger) *MonteCarloAnalyzer {
	return &MonteCarloAnalyzer{
		config: config,
		logger: logger.With().Str("component", "montecarlo").Logger(),
	}
}

// Analyze resamples the result's trades with replacement Simulations times.
// A fixed non-zero seed makes the whole analysis reproducible; each path gets
// its own derived source so paths are independent.
func (a *MonteCarloAnalyzer) Analyze(result *Result) (*MonteCarloResult, error) {
	if len(result.Trades) == 0 {
		return nil, ErrNoTrades
	}

	cfg := a.config
	sims := cfg.Simulations
	if sims <= 0 {
		sims = 1000
	}
	confidence := cfg.ConfidenceLevel
	if confidence <= 0 || confidence >= 1 {
		confidence = 0.95
	}
	annualization := cfg.AnnualizationFactor
	if annualization <= 0 {
		annualization = tradingDaysPerYear
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	a.logger.Info().
		Int("simulations", sims).
		Int("trades", len(result.Trades)).
		Int64("seed", seed).
		Msg("Starting Monte Carlo analysis")

	paths := make([]SimulationPath, sims)
	for i := range paths {
		rng := rand.New(rand.NewSource(seed + int64(i)))
		paths[i] = a.simulatePath(rng, result.Trades, result.InitialCapital, annualization)
	}

	mc := a.aggregate(paths, confidence)
	mc.TradesPerPath = len(result.Trades)
	mc.Seed = seed

	a.logger.Info().
		Float64("mean_return_pct", mc.MeanReturnPct).
		Float64("probability_of_profit", mc.ProbabilityOfProfit).
		Float64("risk_of_ruin", mc.RiskOfRuin).
		Msg("Monte Carlo analysis complete")

	return mc, nil
}

// simulatePath draws len(trades) trades with replacement and replays their
// net profits against a synthetic equity line.
func (a *MonteCarloAnalyzer) simulatePath(rng *rand.Rand, trades []Trade, initialCapital, annualization float64) SimulationPath {
	equity := initialCapital
	peak := initialCapital
	maxDDPct := 0.0
	returns := make([]float64, 0, len(trades))

	for range trades {
		trade := trades[rng.Intn(len(trades))]
		if equity > 0 {
			returns = append(returns, trade.NetProfit/equity)
		}
		equity += trade.NetProfit

		if equity > peak {
			peak = equity
		}
		if peak > 0 {
			ddPct := (peak - equity) / peak * 100
			if ddPct > maxDDPct {
				maxDDPct = ddPct
			}
		}
	}

	path := SimulationPath{MaxDrawdownPct: maxDDPct}
	if initialCapital > 0 {
		path.FinalReturnPct = (equity - initialCapital) / initialCapital * 100
	}
	path.SharpeRatio = pathSharpe(returns, annualization)
	return path
}

// pathSharpe computes an annualized Sharpe ratio from per-trade returns.
func pathSharpe(returns []float64, annualization float64) float64 {
	if len(returns) < 2 {
		return 0
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
	if stdev == 0 {
		return 0
	}
	return mean / stdev * math.Sqrt(annualization)
}

func (a *MonteCarloAnalyzer) aggregate(paths []SimulationPath, confidence float64) *MonteCarloResult {
	n := len(paths)
	returns := make([]float64, n)
	drawdowns := make([]float64, n)
	sharpes := make([]float64, n)

	var profitable, atTarget, ruined int
	for i, p := range paths {
		returns[i] = p.FinalReturnPct
		drawdowns[i] = p.MaxDrawdownPct
		sharpes[i] = p.SharpeRatio
		if p.FinalReturnPct > 0 {
			profitable++
		}
		if p.FinalReturnPct >= profitTargetPct {
			atTarget++
		}
		if p.MaxDrawdownPct > ruinDrawdownPct {
			ruined++
		}
	}

	sort.Float64s(returns)
	sort.Float64s(drawdowns)
	sort.Float64s(sharpes)

	alpha := 1 - confidence
	out := &MonteCarloResult{
		Simulations:     n,
		ConfidenceLevel: confidence,

		MeanReturnPct:   mean(returns),
		MedianReturnPct: quantile(returns, 0.5),
		StdevReturnPct:  sampleStdev(returns),
		MinReturnPct:    returns[0],
		MaxReturnPct:    returns[n-1],
		ReturnCILower:   quantile(returns, alpha/2),
		ReturnCIUpper:   quantile(returns, 1-alpha/2),

		MeanDrawdownPct:   mean(drawdowns),
		MedianDrawdownPct: quantile(drawdowns, 0.5),
		WorstDrawdownPct:  drawdowns[n-1],
		DrawdownCIUpper:   quantile(drawdowns, 1-alpha/2),

		MeanSharpe:   mean(sharpes),
		MedianSharpe: quantile(sharpes, 0.5),

		ProbabilityOfProfit: float64(profitable) / float64(n) * 100,
		ProbabilityOfTarget: float64(atTarget) / float64(n) * 100,
		RiskOfRuin:          float64(ruined) / float64(n) * 100,
	}
	return out
}

func mean(sorted []float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	return sum / float64(len(sorted))
}

func sampleStdev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	variance := 0.0
	for _, v := range values {
		diff := v - m
		variance += diff * diff
	}
	return math.Sqrt(variance / float64(len(values)-1))
}

// quantile interpolates linearly between the two nearest order statistics.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return sorted[lower]
	}
	frac := pos - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}

// FormatMonteCarloResult renders the distribution summary for the CLI.
func FormatMonteCarloResult(r *MonteCarloResult) string {
	var b strings.Builder

	ciPct := r.ConfidenceLevel * 100
	fmt.Fprintf(&b, "Monte Carlo Analysis (%d simulations, %d trades/path, seed %d)\n",
		r.Simulations, r.TradesPerPath, r.Seed)
	fmt.Fprintf(&b, "==========================================================\n")
	fmt.Fprintf(&b, "Return:    mean %.2f%%  median %.2f%%  stdev %.2f%%\n",
		r.MeanReturnPct, r.MedianReturnPct, r.StdevReturnPct)
	fmt.Fprintf(&b, "           range [%.2f%%, %.2f%%]  %.0f%% CI [%.2f%%, %.2f%%]\n",
		r.MinReturnPct, r.MaxReturnPct, ciPct, r.ReturnCILower, r.ReturnCIUpper)
	fmt.Fprintf(&b, "Drawdown:  mean %.2f%%  median %.2f%%  worst %.2f%%  %.1f%%ile %.2f%%\n",
		r.MeanDrawdownPct, r.MedianDrawdownPct, r.WorstDrawdownPct,
		(1-(1-r.ConfidenceLevel)/2)*100, r.DrawdownCIUpper)
	fmt.Fprintf(&b, "Sharpe:    mean %.2f  median %.2f\n", r.MeanSharpe, r.MedianSharpe)
	fmt.Fprintf(&b, "P(profit):           %.1f%%\n", r.ProbabilityOfProfit)
	fmt.Fprintf(&b, "P(return >= %.0f%%):   %.1f%%\n", profitTargetPct, r.ProbabilityOfTarget)
	fmt.Fprintf(&b, "Risk of ruin (>%.0f%% DD): %.1f%%\n", ruinDrawdownPct, r.RiskOfRuin)

	return b.String()
}
