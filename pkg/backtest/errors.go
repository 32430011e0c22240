package backtest

import "errors"

// Configuration and data errors abort the run; the CLI maps them to distinct
// exit codes.
var (
	ErrInvalidCapital   = errors.New("initial capital must be positive")
	ErrInvalidDateRange = errors.New("start date must be before end date")
	ErrInvalidSymbol    = errors.New("symbol must not be empty")
	ErrNoData           = errors.New("no historical bars for requested range")
	ErrMalformedData    = errors.New("malformed bar data")
)

// Execution precondition errors are per-signal and non-fatal: the engine logs
// them and keeps replaying.
var (
	ErrInvalidQuantity     = errors.New("quantity must be positive")
	ErrInvalidPrice        = errors.New("price must be positive")
	ErrInsufficientCapital = errors.New("insufficient capital for buy")
	ErrNoPosition          = errors.New("no open position to sell")
)

// ErrNoTrades is returned by analyses that need a realized trade list.
var ErrNoTrades = errors.New("backtest result contains no trades")
