package marketdata

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"
)

// CSVProvider loads bars from a CSV file once and serves range queries from
// memory. Expected header: Symbol,Timestamp,Open,High,Low,Close,Volume,Timeframe
// with RFC 3339 timestamps. The in-memory slice is never mutated after load, so
// the provider is safe for concurrent readers.
type CSVProvider struct {
	bars []Bar
}

// NewCSVProvider reads and parses the whole file up front.
func NewCSVProvider(path string) (*CSVProvider, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open bar file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)

	// Skip header
	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	var bars []Bar
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record at line %d: %w", line, err)
		}
		line++

		if len(record) < 8 {
			return nil, fmt.Errorf("malformed record at line %d: expected 8 fields, got %d", line, len(record))
		}

		bar, err := parseBarRecord(record)
		if err != nil {
			return nil, fmt.Errorf("malformed record at line %d: %w", line, err)
		}
		bars = append(bars, bar)
	}

	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})

	return &CSVProvider{bars: bars}, nil
}

func parseBarRecord(record []string) (Bar, error) {
	ts, err := time.Parse(time.RFC3339, record[1])
	if err != nil {
		return Bar{}, fmt.Errorf("invalid timestamp %q: %w", record[1], err)
	}

	fields := make([]float64, 5)
	for i, raw := range record[2:7] {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Bar{}, fmt.Errorf("invalid numeric field %q: %w", raw, err)
		}
		fields[i] = v
	}

	return Bar{
		Symbol:    record[0],
		Timestamp: ts,
		Open:      fields[0],
		High:      fields[1],
		Low:       fields[2],
		Close:     fields[3],
		Volume:    fields[4],
		Timeframe: record[7],
	}, nil
}

// HistoricalBars returns the loaded bars matching symbol, timeframe and range.
func (p *CSVProvider) HistoricalBars(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []Bar
	for _, bar := range p.bars {
		if bar.Symbol != symbol || bar.Timeframe != timeframe {
			continue
		}
		if bar.Timestamp.Before(start) || bar.Timestamp.After(end) {
			continue
		}
		out = append(out, bar)
	}
	return out, nil
}

// TotalBars returns the number of bars loaded from the file.
func (p *CSVProvider) TotalBars() int {
	return len(p.bars)
}

var _ BarProvider = (*CSVProvider)(nil)
