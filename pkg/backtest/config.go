package backtest

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SlippageModel selects how slippage is derived from the signal price.
type SlippageModel string

const (
	SlippageFixed       SlippageModel = "fixed"
	SlippageVolumeBased SlippageModel = "volume_based"
)

// Config describes one backtest run.
type Config struct {
	Symbol         string    `yaml:"symbol"`
	StartDate      time.Time `yaml:"start_date"`
	EndDate        time.Time `yaml:"end_date"`
	InitialCapital float64   `yaml:"initial_capital"`

	// Cost model
	Commission    float64       `yaml:"commission"`     // fixed per fill
	CommissionPct float64       `yaml:"commission_pct"` // fraction of notional per fill
	SlippagePct   float64       `yaml:"slippage_pct"`   // adverse fraction of signal price
	SlippageModel SlippageModel `yaml:"slippage_model"`

	// Risk limits
	MaxPositionSize float64 `yaml:"max_position_size"` // shares
	MaxDailyLoss    float64 `yaml:"max_daily_loss"`    // absolute dollars, 0 disables
	MaxDailyLossPct float64 `yaml:"max_daily_loss_pct"` // fraction of day's starting cash, 0 disables

	Timeframe string `yaml:"timeframe"`
}

// DefaultConfig returns a config with the standard cost model. Symbol and
// dates still have to be filled in by the caller.
func DefaultConfig() *Config {
	return &Config{
		Symbol:          "SPY",
		InitialCapital:  100000,
		Commission:      0,
		CommissionPct:   0.0005,
		SlippagePct:     0.0001,
		SlippageModel:   SlippageFixed,
		MaxPositionSize: 1000,
		MaxDailyLoss:    0,
		MaxDailyLossPct: 0.03,
		Timeframe:       "1Min",
	}
}

// Validate fails fast on an ill-defined run.
func (c *Config) Validate() error {
	if c.InitialCapital <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidCapital, c.InitialCapital)
	}
	if !c.StartDate.Before(c.EndDate) {
		return fmt.Errorf("%w: %s >= %s", ErrInvalidDateRange,
			c.StartDate.Format("2006-01-02"), c.EndDate.Format("2006-01-02"))
	}
	if c.Symbol == "" {
		return ErrInvalidSymbol
	}
	if c.MaxPositionSize <= 0 {
		return fmt.Errorf("max_position_size must be positive, got %v", c.MaxPositionSize)
	}
	if c.Commission < 0 || c.CommissionPct < 0 || c.SlippagePct < 0 {
		return fmt.Errorf("commission and slippage must not be negative")
	}
	if c.MaxDailyLoss < 0 {
		return fmt.Errorf("max_daily_loss must not be negative, got %v", c.MaxDailyLoss)
	}
	if c.MaxDailyLossPct < 0 || c.MaxDailyLossPct > 1 {
		return fmt.Errorf("max_daily_loss_pct must be in [0,1], got %v", c.MaxDailyLossPct)
	}
	switch c.SlippageModel {
	case "", SlippageFixed, SlippageVolumeBased:
	default:
		return fmt.Errorf("unknown slippage_model %q", c.SlippageModel)
	}
	return nil
}

// FileConfig is the YAML file surface: backtest defaults plus optional
// parameter ranges for the optimizer.
type FileConfig struct {
	Backtest   *Config              `yaml:"backtest"`
	Parameters []ParameterRangeSpec `yaml:"parameters"`
}

// ParameterRangeSpec declares one numeric parameter sweep in the config file.
type ParameterRangeSpec struct {
	Name string  `yaml:"name"`
	Min  float64 `yaml:"min"`
	Max  float64 `yaml:"max"`
	Step float64 `yaml:"step"`
	Int  bool    `yaml:"int"`
}

// LoadFileConfig reads and parses a YAML config file.
func LoadFileConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &cfg, nil
}

// Ranges converts the declared sweeps into optimizer parameter ranges.
func (fc *FileConfig) Ranges() []ParameterRange {
	ranges := make([]ParameterRange, 0, len(fc.Parameters))
	for _, spec := range fc.Parameters {
		if spec.Int {
			ranges = append(ranges, IntRange(spec.Name, int(spec.Min), int(spec.Max), int(spec.Step)))
		} else {
			ranges = append(ranges, FloatRange(spec.Name, spec.Min, spec.Max, spec.Step))
		}
	}
	return ranges
}
