package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/quantforge/backtester/pkg/events"
	"github.com/quantforge/backtester/pkg/marketdata"
	"github.com/quantforge/backtester/pkg/strategy"
	"github.com/rs/zerolog"
)

// Engine orchestrates one backtest run: it loads bars, wires the bus, drives
// the replay, pumps signals into the executor and assembles the final Result.
//
// The replay is single-threaded cooperative: one MarketDataEvent is published
// per bar, strategy handlers run inline, and all signals produced for that bar
// are drained and executed at the bar's timestamp before the next bar.
type Engine struct {
	config   *Config
	strategy strategy.Strategy
	provider marketdata.BarProvider
	bus      *events.EventBus
	executor *SimulatedExecutor
	logger   zerolog.Logger
}

// NewEngine creates an engine for a single run. The bus must be the same one
// the strategy was constructed with.
func NewEngine(config *Config, strat strategy.Strategy, provider marketdata.BarProvider, bus *events.EventBus, logger zerolog.Logger) *Engine {
	engineLogger := logger.With().Str("component", "engine").Str("symbol", config.Symbol).Logger()
	return &Engine{
		config:   config,
		strategy: strat,
		provider: provider,
		bus:      bus,
		executor: NewSimulatedExecutor(config, engineLogger),
		logger:   engineLogger,
	}
}

// Run executes the backtest. Given identical config, bars and strategy
// parameters, two runs produce identical trades, daily stats and equity
// curves.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	started := time.Now()

	if err := e.config.Validate(); err != nil {
		return nil, err
	}

	bars, err := e.provider.HistoricalBars(ctx, e.config.Symbol, e.config.Timeframe, e.config.StartDate, e.config.EndDate)
	if err != nil {
		return nil, fmt.Errorf("failed to load historical bars: %w", err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s %s [%s, %s]", ErrNoData,
			e.config.Symbol, e.config.Timeframe,
			e.config.StartDate.Format("2006-01-02"), e.config.EndDate.Format("2006-01-02"))
	}
	if err := marketdata.ValidateSeries(bars); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedData, err)
	}

	e.logger.Info().
		Int("bars", len(bars)).
		Str("strategy", e.strategy.Name()).
		Float64("initial_capital", e.config.InitialCapital).
		Msg("Starting backtest")

	if err := e.strategy.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize strategy: %w", err)
	}
	if err := e.strategy.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start strategy: %w", err)
	}

	signals := e.bus.Subscribe(events.TopicSignal)

	var haltedDate time.Time
	halted := false
	progressStep := len(bars) / 10

	for i, bar := range bars {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("backtest cancelled: %w", err)
		}

		barDate := bar.Date()
		if halted {
			if barDate.Equal(haltedDate) {
				continue
			}
			halted = false
		}

		if e.executor.CheckDailyLossLimit(barDate) {
			halted = true
			haltedDate = barDate
			continue
		}

		e.executor.SetBarVolume(bar.Volume)
		e.bus.Publish(events.MarketDataEvent{Bar: bar})
		e.drainSignals(signals, bar)
		e.executor.UpdateEquityCurve(bar.Timestamp, bar.Close)

		if progressStep > 0 && (i+1)%progressStep == 0 {
			elapsed := time.Since(started).Seconds()
			throughput := 0.0
			if elapsed > 0 {
				throughput = float64(i+1) / elapsed
			}
			e.logger.Info().
				Int("percent", (i+1)*100/len(bars)).
				Float64("bars_per_sec", throughput).
				Time("current_date", bar.Timestamp).
				Float64("cash", e.executor.Cash()).
				Msg("Backtest progress")
		}
	}

	if err := e.strategy.Stop(ctx); err != nil {
		e.logger.Error().Err(err).Msg("Strategy stop error")
	}

	last := bars[len(bars)-1]
	if err := e.executor.ForceClosePosition(last.Close, last.Timestamp); err != nil {
		e.logger.Error().Err(err).Msg("Force close failed")
	}
	e.executor.Finalize()

	finalCapital := e.executor.Cash()
	result := &Result{
		RunID:          uuid.New(),
		Config:         e.config,
		StrategyName:   e.strategy.Name(),
		InitialCapital: e.config.InitialCapital,
		FinalCapital:   finalCapital,
		Trades:         e.executor.Trades(),
		DailyStats:     e.executor.DailyStats(),
		EquityCurve:    e.executor.EquityCurve(),
		BarsProcessed:  len(bars),
		Duration:       time.Since(started),
	}
	result.Metrics = CalculateMetrics(result.Trades, result.DailyStats, result.EquityCurve,
		result.InitialCapital, result.FinalCapital)

	e.logger.Info().
		Int("trades", len(result.Trades)).
		Float64("final_capital", finalCapital).
		Float64("total_return_pct", result.TotalReturnPct()).
		Dur("duration", result.Duration).
		Msg("Backtest completed")

	return result, nil
}

// drainSignals executes every signal produced for the current bar. Execution
// preconditions are per-signal and non-fatal.
func (e *Engine) drainSignals(signals *events.Subscription, bar marketdata.Bar) {
	for {
		ev, ok := signals.TryNext()
		if !ok {
			return
		}
		sig, ok := ev.(events.SignalEvent)
		if !ok {
			continue
		}

		var err error
		switch sig.Action {
		case events.ActionBuy:
			err = e.executor.ExecuteBuy(sig.Symbol, sig.Price, sig.Quantity, bar.Timestamp, sig.Reason)
		case events.ActionSell:
			err = e.executor.ExecuteSell(sig.Symbol, sig.Price, bar.Timestamp, sig.Reason)
		default:
			e.logger.Warn().Str("action", string(sig.Action)).Msg("Unknown signal action, dropping")
			continue
		}

		if err != nil {
			e.logger.Debug().
				Err(err).
				Str("action", string(sig.Action)).
				Float64("price", sig.Price).
				Time("bar", bar.Timestamp).
				Msg("Signal skipped")
		}
	}
}
