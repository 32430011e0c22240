package backtest

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func monteCarloFixture() *Result {
	trades := []Trade{
		{NetProfit: 500}, {NetProfit: -200}, {NetProfit: 300},
		{NetProfit: -100}, {NetProfit: 400}, {NetProfit: -250},
		{NetProfit: 150}, {NetProfit: 600}, {NetProfit: -300},
		{NetProfit: 200},
	}
	return &Result{
		InitialCapital: 10000,
		FinalCapital:   11300,
		Trades:         trades,
	}
}

func TestMonteCarlo_FixedSeedIsReproducible(t *testing.T) {
	cfg := &MonteCarloConfig{Simulations: 200, ConfidenceLevel: 0.95, Seed: 42}

	analyzer := NewMonteCarloAnalyzer(cfg, zerolog.Nop())
	first, err := analyzer.Analyze(monteCarloFixture())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	second, err := analyzer.Analyze(monteCarloFixture())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if !almostEqual(first.MeanReturnPct, second.MeanReturnPct) {
		t.Errorf("mean return differs: %v vs %v", first.MeanReturnPct, second.MeanReturnPct)
	}
	if !almostEqual(first.WorstDrawdownPct, second.WorstDrawdownPct) {
		t.Errorf("worst drawdown differs: %v vs %v", first.WorstDrawdownPct, second.WorstDrawdownPct)
	}
	if first.Seed != 42 || second.Seed != 42 {
		t.Errorf("seed not preserved: %d / %d", first.Seed, second.Seed)
	}
}

func TestMonteCarlo_DistributionShape(t *testing.T) {
	cfg := &MonteCarloConfig{Simulations: 500, ConfidenceLevel: 0.9, Seed: 7}

	result, err := NewMonteCarloAnalyzer(cfg, zerolog.Nop()).Analyze(monteCarloFixture())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if result.Simulations != 500 {
		t.Errorf("Simulations = %d, want 500", result.Simulations)
	}
	if result.TradesPerPath != 10 {
		t.Errorf("TradesPerPath = %d, want 10", result.TradesPerPath)
	}
	if result.MinReturnPct > result.ReturnCILower ||
		result.ReturnCILower > result.MedianReturnPct ||
		result.MedianReturnPct > result.ReturnCIUpper ||
		result.ReturnCIUpper > result.MaxReturnPct {
		t.Errorf("return quantiles out of order: min %v, lo %v, med %v, hi %v, max %v",
			result.MinReturnPct, result.ReturnCILower, result.MedianReturnPct,
			result.ReturnCIUpper, result.MaxReturnPct)
	}
	if result.ProbabilityOfProfit < 0 || result.ProbabilityOfProfit > 100 {
		t.Errorf("ProbabilityOfProfit = %v, want [0, 100]", result.ProbabilityOfProfit)
	}
	if result.RiskOfRuin < 0 || result.RiskOfRuin > 100 {
		t.Errorf("RiskOfRuin = %v, want [0, 100]", result.RiskOfRuin)
	}
	if result.WorstDrawdownPct < result.MedianDrawdownPct {
		t.Errorf("worst drawdown %v below median %v", result.WorstDrawdownPct, result.MedianDrawdownPct)
	}
}

func TestMonteCarlo_AllWinnersAlwaysProfit(t *testing.T) {
	result := &Result{
		InitialCapital: 10000,
		Trades:         []Trade{{NetProfit: 100}, {NetProfit: 200}, {NetProfit: 300}},
	}
	cfg := &MonteCarloConfig{Simulations: 100, ConfidenceLevel: 0.95, Seed: 1}

	mc, err := NewMonteCarloAnalyzer(cfg, zerolog.Nop()).Analyze(result)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !almostEqual(mc.ProbabilityOfProfit, 100) {
		t.Errorf("ProbabilityOfProfit = %v, want 100", mc.ProbabilityOfProfit)
	}
	if !almostEqual(mc.RiskOfRuin, 0) {
		t.Errorf("RiskOfRuin = %v, want 0", mc.RiskOfRuin)
	}
	if mc.MinReturnPct <= 0 {
		t.Errorf("MinReturnPct = %v, want positive", mc.MinReturnPct)
	}
}

func TestMonteCarlo_NoTrades(t *testing.T) {
	result := &Result{InitialCapital: 10000}
	cfg := DefaultMonteCarloConfig()

	_, err := NewMonteCarloAnalyzer(cfg, zerolog.Nop()).Analyze(result)
	if !errors.Is(err, ErrNoTrades) {
		t.Fatalf("err = %v, want ErrNoTrades", err)
	}
}

func TestMonteCarlo_ZeroSeedUsesClock(t *testing.T) {
	cfg := &MonteCarloConfig{Simulations: 10, ConfidenceLevel: 0.95, Seed: 0}

	before := time.Now().UnixNano()
	result, err := NewMonteCarloAnalyzer(cfg, zerolog.Nop()).Analyze(monteCarloFixture())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if result.Seed < before {
		t.Errorf("Seed = %d, want wall-clock derived >= %d", result.Seed, before)
	}
}

func TestQuantile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}

	if q := quantile(sorted, 0.5); !almostEqual(q, 3) {
		t.Errorf("median = %v, want 3", q)
	}
	if q := quantile(sorted, 0); !almostEqual(q, 1) {
		t.Errorf("q0 = %v, want 1", q)
	}
	if q := quantile(sorted, 1); !almostEqual(q, 5) {
		t.Errorf("q1 = %v, want 5", q)
	}
	// Interpolated: position 0.25 * 4 = 1 exactly -> 2
	if q := quantile(sorted, 0.25); !almostEqual(q, 2) {
		t.Errorf("q25 = %v, want 2", q)
	}
	if q := quantile([]float64{1, 2}, 0.5); !almostEqual(q, 1.5) {
		t.Errorf("two-point median = %v, want 1.5", q)
	}
}
