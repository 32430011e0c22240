package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/quantforge/backtester/internal/store"
	"github.com/quantforge/backtester/pkg/backtest"
	"github.com/quantforge/backtester/pkg/events"
	"github.com/quantforge/backtester/pkg/logging"
	"github.com/quantforge/backtester/pkg/marketdata"
	"github.com/quantforge/backtester/pkg/strategy"
)

// Exit codes: 0 success, 1 configuration error, 2 data error, 3 internal error.
const (
	exitOK       = 0
	exitConfig   = 1
	exitData     = 2
	exitInternal = 3
)

func main() {
	// Load environment variables from .env file
	envErr := godotenv.Load()

	var (
		symbolFlag    = flag.String("symbol", "SPY", "Symbol to backtest")
		strategyFlag  = flag.String("strategy", "buy_and_hold", "Strategy to use")
		startDate     = flag.String("start", "", "Start date (YYYY-MM-DD), default 30 days before end")
		endDate       = flag.String("end", "", "End date (YYYY-MM-DD), default yesterday")
		capital       = flag.Float64("capital", 100000.0, "Initial capital")
		timeframe     = flag.String("timeframe", "1Min", "Bar timeframe")
		dataFile      = flag.String("data", "", "CSV bar file (default: PostgreSQL from environment)")
		configFile    = flag.String("config", "", "YAML config file overriding defaults")
		outputDir     = flag.String("output", "./backtest_results", "Output directory for reports and exports")
		dbFile        = flag.String("db", "", "SQLite file to record run summaries (optional)")
		exportFlag    = flag.Bool("export", true, "Export visualization CSV/JSON artifacts")
		verbose       = flag.Bool("verbose", false, "Enable debug logging")
	)
	flag.Parse()

	logLevel := getEnv("LOG_LEVEL", "info")
	if *verbose {
		logLevel = "debug"
	}

	logConfig := logging.DefaultConfig()
	logConfig.Level = logging.LogLevel(logLevel)
	logConfig.Pretty = getEnvBool("LOG_PRETTY", true)
	logConfig.EnableFile = getEnvBool("LOG_TO_FILE", false)
	logConfig.LogDir = getEnv("LOG_DIR", "logs")
	logConfig.LogFileName = getEnv("LOG_FILE", "backtester.log")
	logging.Initialize(logConfig)

	logger := logging.GetLogger("main")

	if envErr != nil {
		logger.Debug().Err(envErr).Msg("Could not load .env file, using system environment variables")
	}

	config := backtest.DefaultConfig()
	if *configFile != "" {
		fileCfg, err := backtest.LoadFileConfig(*configFile)
		if err != nil {
			logger.Error().Err(err).Str("config", *configFile).Msg("Failed to load config file")
			os.Exit(exitConfig)
		}
		if fileCfg.Backtest != nil {
			config = fileCfg.Backtest
		}
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
	// Include the entire end day
	end = end.Add(24*time.Hour - time.Second)

	start := end.AddDate(0, 0, -30)
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

	provider, cleanup, err := buildProvider(*dataFile)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create data provider")
		os.Exit(exitData)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := events.NewEventBus(1000, logging.GetLogger("bus"))
	strat, err := strategy.New(*strategyFlag, config.Symbol, nil, bus, logging.GetLogger("strategy"))
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create strategy")
		os.Exit(exitConfig)
	}

	logger.Info().
		Str("symbol", config.Symbol).
		Str("strategy", strat.Name()).
		Str("start", config.StartDate.Format("2006-01-02")).
		Str("end", config.EndDate.Format("2006-01-02")).
		Float64("capital", config.InitialCapital).
		Msg("Running backtest")

	engine := backtest.NewEngine(config, strat, provider, bus, logging.GetLogger("backtest"))
	result, err := engine.Run(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Backtest failed")
		os.Exit(exitCode(err))
	}

	fmt.Println(result.Summary())

	reportPath, err := result.SaveReport(*outputDir)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to save report")
		os.Exit(exitInternal)
	}
	logger.Info().Str("path", reportPath).Msg("Report saved")

	if *exportFlag {
		exporter := backtest.NewVisualizationExporter(*outputDir, logging.GetLogger("visualization"))
		if err := exporter.ExportAll(result); err != nil {
			logger.Error().Err(err).Msg("Failed to export visualization data")
			os.Exit(exitInternal)
		}
	}

	if *dbFile != "" {
		runStore, err := store.NewSQLiteRunStore(*dbFile)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to open run store")
			os.Exit(exitInternal)
		}
		defer runStore.Close()
		if err := runStore.SaveResult(ctx, result); err != nil {
			logger.Error().Err(err).Msg("Failed to record run")
			os.Exit(exitInternal)
		}
		logger.Info().Str("db", *dbFile).Str("run_id", result.RunID.String()).Msg("Run recorded")
	}

	os.Exit(exitOK)
}

// buildProvider picks CSV when a file is given, PostgreSQL from environment
// otherwise.
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

// exitCode classifies a run error into the CLI exit code contract.
func exitCode(err error) int {
	switch {
	case errors.Is(err, backtest.ErrInvalidCapital),
		errors.Is(err, backtest.ErrInvalidDateRange),
		errors.Is(err, backtest.ErrInvalidSymbol):
		return exitConfig
	case errors.Is(err, backtest.ErrNoData),
		errors.Is(err, backtest.ErrMalformedData):
		return exitData
	default:
		return exitInternal
	}
}

// Helper function to get environment variable with default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Helper function to get boolean environment variable with default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
