package marketdata

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validBar(ts time.Time) Bar {
	return Bar{
		Symbol:    "SPY",
		Timestamp: ts,
		Open:      100,
		High:      102,
		Low:       99,
		Close:     101,
		Volume:    5000,
		Timeframe: "1Min",
	}
}

func TestBar_Validate(t *testing.T) {
	now := time.Now()

	if err := validBar(now).Validate(); err != nil {
		t.Errorf("valid bar rejected: %v", err)
	}

	negative := validBar(now)
	negative.Close = -1
	if err := negative.Validate(); err == nil {
		t.Error("non-positive price accepted")
	}

	inverted := validBar(now)
	inverted.Low = 103 // above open and close
	if err := inverted.Validate(); err == nil {
		t.Error("low above open/close accepted")
	}

	highBelow := validBar(now)
	highBelow.High = 100.5 // below close 101
	if err := highBelow.Validate(); err == nil {
		t.Error("high below close accepted")
	}

	badVolume := validBar(now)
	badVolume.Volume = -1
	if err := badVolume.Validate(); err == nil {
		t.Error("negative volume accepted")
	}
}

func TestBar_Date(t *testing.T) {
	ts := time.Date(2024, 3, 15, 14, 30, 45, 0, time.UTC)
	want := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	if got := (Bar{Timestamp: ts}).Date(); !got.Equal(want) {
		t.Errorf("Date = %v, want %v", got, want)
	}
}

func TestValidateSeries(t *testing.T) {
	base := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	bars := []Bar{validBar(base), validBar(base.Add(time.Minute)), validBar(base.Add(2 * time.Minute))}

	if err := ValidateSeries(bars); err != nil {
		t.Errorf("ascending series rejected: %v", err)
	}

	// Duplicate timestamp is not strictly ascending.
	dup := append(bars[:2:2], validBar(base.Add(time.Minute)))
	if err := ValidateSeries(dup); err == nil {
		t.Error("duplicate timestamp accepted")
	}

	reversed := []Bar{bars[1], bars[0]}
	if err := ValidateSeries(reversed); err == nil {
		t.Error("descending series accepted")
	}
}

func TestCSVProvider(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bars.csv")

	content := `Symbol,Timestamp,Open,High,Low,Close,Volume,Timeframe
SPY,2024-01-02T09:31:00Z,101,102,100,101.5,1200,1Min
SPY,2024-01-02T09:30:00Z,100,101,99,100.5,1000,1Min
QQQ,2024-01-02T09:30:00Z,400,401,399,400.5,800,1Min
SPY,2024-01-02T09:30:00Z,100,101,99,100.5,1000,5Min
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	provider, err := NewCSVProvider(path)
	if err != nil {
		t.Fatalf("NewCSVProvider: %v", err)
	}
	if provider.TotalBars() != 4 {
		t.Errorf("TotalBars = %d, want 4", provider.TotalBars())
	}

	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	bars, err := provider.HistoricalBars(context.Background(), "SPY", "1Min", start, end)
	if err != nil {
		t.Fatalf("HistoricalBars: %v", err)
	}
	// Symbol and timeframe filtered, rows sorted by timestamp.
	if len(bars) != 2 {
		t.Fatalf("bars = %d, want 2", len(bars))
	}
	if !bars[0].Timestamp.Before(bars[1].Timestamp) {
		t.Error("bars not sorted ascending")
	}
	if bars[0].Close != 100.5 {
		t.Errorf("first close = %v, want 100.5", bars[0].Close)
	}
}

func TestCSVProvider_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.csv")

	content := `Symbol,Timestamp,Open,High,Low,Close,Volume,Timeframe
SPY,not-a-timestamp,100,101,99,100.5,1000,1Min
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewCSVProvider(path); err == nil {
		t.Fatal("malformed timestamp accepted")
	}
}

func TestMemoryProvider_FiltersAndSorts(t *testing.T) {
	base := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)

	later := validBar(base.Add(time.Minute))
	earlier := validBar(base)
	other := validBar(base)
	other.Symbol = "QQQ"

	provider := NewMemoryProvider([]Bar{later, earlier, other})

	bars, err := provider.HistoricalBars(context.Background(), "SPY", "1Min", base.Add(-time.Hour), base.Add(time.Hour))
	if err != nil {
		t.Fatalf("HistoricalBars: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("bars = %d, want 2", len(bars))
	}
	if !bars[0].Timestamp.Equal(base) {
		t.Error("bars not sorted ascending")
	}

	// Range boundaries are inclusive.
	exact, err := provider.HistoricalBars(context.Background(), "SPY", "1Min", base, base.Add(time.Minute))
	if err != nil {
		t.Fatalf("HistoricalBars: %v", err)
	}
	if len(exact) != 2 {
		t.Errorf("inclusive range bars = %d, want 2", len(exact))
	}
}

func TestPreload(t *testing.T) {
	base := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	upstream := NewMemoryProvider([]Bar{validBar(base), validBar(base.Add(time.Minute))})

	cached, err := Preload(context.Background(), upstream, "SPY", "1Min", base.Add(-time.Hour), base.Add(time.Hour))
	if err != nil {
		t.Fatalf("Preload: %v", err)
	}

	bars, err := cached.HistoricalBars(context.Background(), "SPY", "1Min", base.Add(-time.Hour), base.Add(time.Hour))
	if err != nil {
		t.Fatalf("HistoricalBars: %v", err)
	}
	if len(bars) != 2 {
		t.Errorf("cached bars = %d, want 2", len(bars))
	}
}
