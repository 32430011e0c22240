package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/quantforge/backtester/pkg/backtest"
	"github.com/quantforge/backtester/pkg/events"
	"github.com/quantforge/backtester/pkg/logging"
	"github.com/quantforge/backtester/pkg/marketdata"
	"github.com/quantforge/backtester/pkg/strategy"
)

const (
	exitOK       = 0
	exitConfig   = 1
	exitData     = 2
	exitInternal = 3
)

func main() {
	envErr := godotenv.Load()

	var (
		modeFlag     = flag.String("mode", "grid", "Analysis mode: grid, walkforward or montecarlo")
		symbolFlag   = flag.String("symbol", "SPY", "Symbol to backtest")
		strategyFlag = flag.String("strategy", "ma_crossover", "Strategy to optimize")
		startDate    = flag.String("start", "", "Start date (YYYY-MM-DD), default 90 days before end")
		endDate      = flag.String("end", "", "End date (YYYY-MM-DD), default yesterday")
		capital      = flag.Float64("capital", 100000.0, "Initial capital")
		timeframe    = flag.String("timeframe", "1Min", "Bar timeframe")
		dataFile     = flag.String("data", "", "CSV bar file (default: PostgreSQL from environment)")
		configFile   = flag.String("config", "", "YAML config file with parameter ranges")
		metricFlag   = flag.String("metric", "sharpe_ratio", "Optimization metric")
		workers      = flag.Int("workers", runtime.NumCPU(), "Parallel worker count")
		topN         = flag.Int("top", 10, "Top combinations to print")

		// walk-forward
		inSampleDays  = flag.Int("in-sample", 30, "In-sample window days")
		outSampleDays = flag.Int("out-sample", 10, "Out-of-sample window days")
		stepDays      = flag.Int("step", 10, "Window step days")
		anchored      = flag.Bool("anchored", false, "Anchor the in-sample start")

		// monte carlo
		simulations = flag.Int("simulations", 1000, "Monte Carlo simulation count")
		seed        = flag.Int64("seed", 0, "Monte Carlo seed (0 = wall clock)")
		confidence  = flag.Float64("confidence", 0.95, "Monte Carlo confidence level")

		verbose = flag.Bool("verbose", false, "Enable debug logging")
	)
	flag.Parse()

	logLevel := getEnv("LOG_LEVEL", "info")
	if *verbose {
		logLevel = "debug"
	}
	logConfig := logging.DefaultConfig()
	logConfig.Level = logging.LogLevel(logLevel)
	logConfig.Pretty = getEnvBool("LOG_PRETTY", true)
	logging.Initialize(logConfig)

	logger := logging.GetLogger("main")
	if envErr != nil {
		logger.Debug().Err(envErr).Msg("Could not load .env file, using system environment variables")
	}

	config := backtest.DefaultConfig()
	var ranges []backtest.ParameterRange
	if *configFile != "" {
		fileCfg, err := backtest.LoadFileConfig(*configFile)
		if err != nil {
			logger.Error().Err(err).Str("config", *configFile).Msg("Failed to load config file")
			os.Exit(exitConfig)
		}
		if fileCfg.Backtest != nil {
			config = fileCfg.Backtest
		}
		ranges = fileCfg.Ranges()
	}

	config.Symbol = *symbolFlag
	config.InitialCapital = *capital
	config.Timeframe = *timeframe

	end := time.Now().AddDate(0, 0, -1).Truncate(24 * time.Hour)
	if *endDate != "" {
		parsed, err := time.Parse("2006-01-02", *endDate)
		if err != nil {
			logger.Error().Err(err).Str("end_date", *endDate).Msg("Invalid end date")
			os.Exit(exitConfig)
		}
		end = parsed
	}
	end = end.Add(24*time.Hour - time.Second)

	start := end.AddDate(0, 0, -90)
	if *startDate != "" {
		parsed, err := time.Parse("2006-01-02", *startDate)
		if err != nil {
			logger.Error().Err(err).Str("start_date", *startDate).Msg("Invalid start date")
			os.Exit(exitConfig)
		}
		start = parsed
	}
	config.StartDate = start
	config.EndDate = end

	if err := config.Validate(); err != nil {
		logger.Error().Err(err).Msg("Invalid configuration")
		os.Exit(exitConfig)
	}
	if len(ranges) == 0 && *modeFlag != "montecarlo" {
		logger.Error().Msg("No parameter ranges configured, pass -config with a parameters section")
		os.Exit(exitConfig)
	}

	provider, cleanup, err := buildProvider(*dataFile)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create data provider")
		os.Exit(exitData)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	factory := strategy.NewFactory(*strategyFlag, config.Symbol)

	switch *modeFlag {
	case "grid":
		optimizer := backtest.NewOptimizer(&backtest.OptimizationConfig{
			BacktestConfig:     config,
			ParameterRanges:    ranges,
			OptimizationMetric: *metricFlag,
			Workers:            *workers,
		}, provider, logging.GetLogger("optimizer"))

		results, err := optimizer.Optimize(ctx, factory)
		if err != nil {
			logger.Error().Err(err).Msg("Optimization failed")
			os.Exit(exitCode(err))
		}
		fmt.Println(backtest.FormatTopResults(results, *topN))

	case "walkforward":
		analyzer := backtest.NewWalkForwardAnalyzer(&backtest.WalkForwardConfig{
			BacktestConfig:     config,
			ParameterRanges:    ranges,
			OptimizationMetric: *metricFlag,
			InSampleDays:       *inSampleDays,
			OutOfSampleDays:    *outSampleDays,
			StepDays:           *stepDays,
			Anchored:           *anchored,
			Workers:            *workers,
		}, provider, logging.GetLogger("walkforward"))

		result, err := analyzer.Analyze(ctx, factory)
		if err != nil {
			logger.Error().Err(err).Msg("Walk-forward analysis failed")
			os.Exit(exitCode(err))
		}
		fmt.Println(backtest.FormatWalkForwardResult(result))

	case "montecarlo":
		result, err := runMonteCarlo(ctx, config, factory, provider, &backtest.MonteCarloConfig{
			Simulations:     *simulations,
			ConfidenceLevel: *confidence,
			Seed:            *seed,
		})
		if err != nil {
			logger.Error().Err(err).Msg("Monte Carlo analysis failed")
			os.Exit(exitCode(err))
		}
		fmt.Println(backtest.FormatMonteCarloResult(result))

	default:
		logger.Error().Str("mode", *modeFlag).Msg("Unknown mode, expected grid, walkforward or montecarlo")
		os.Exit(exitConfig)
	}

	os.Exit(exitOK)
}

// runMonteCarlo runs one baseline backtest with the strategy's default
// parameters and bootstraps its trade list.
func runMonteCarlo(ctx context.Context, config *backtest.Config, factory strategy.Factory, provider marketdata.BarProvider, mcConfig *backtest.MonteCarloConfig) (*backtest.MonteCarloResult, error) {
	runLogger := logging.GetLogger("montecarlo")

	bus := events.NewEventBus(1000, runLogger)
	strat, err := factory(nil, bus, runLogger)
	if err != nil {
		return nil, err
	}

	result, err := backtest.NewEngine(config, strat, provider, bus, runLogger).Run(ctx)
	if err != nil {
		return nil, err
	}

	return backtest.NewMonteCarloAnalyzer(mcConfig, runLogger).Analyze(result)
}

func buildProvider(dataFile string) (marketdata.BarProvider, func(), error) {
	if dataFile != "" {
		provider, err := marketdata.NewCSVProvider(dataFile)
		if err != nil {
			return nil, nil, err
		}
		return provider, func() {}, nil
	}

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		getEnv("POSTGRES_HOST", "localhost"),
		getEnv("POSTGRES_PORT", "5432"),
		getEnv("POSTGRES_USER", "postgres"),
		getEnv("POSTGRES_PASSWORD", "postgres"),
		getEnv("POSTGRES_DB", "trading_data"))

	provider, err := marketdata.NewPostgresProvider(connStr)
	if err != nil {
		return nil, nil, err
	}
	return provider, func() { provider.Close() }, nil
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, backtest.ErrInvalidCapital),
		errors.Is(err, backtest.ErrInvalidDateRange),
		errors.Is(err, backtest.ErrInvalidSymbol):
		return exitConfig
	case errors.Is(err, backtest.ErrNoData),
		errors.Is(err, backtest.ErrMalformedData),
		errors.Is(err, backtest.ErrNoTrades):
		return exitData
	default:
		return exitInternal
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
