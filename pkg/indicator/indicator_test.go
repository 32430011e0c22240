package indicator

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSMA(t *testing.T) {
	sma := NewSMA(3)

	if v := sma.Update(1); v != 0 {
		t.Errorf("Update(1) = %v, want 0 before window fills", v)
	}
	if sma.Ready() {
		t.Error("Ready before window fills")
	}
	sma.Update(2)

	if v := sma.Update(3); !almostEqual(v, 2) {
		t.Errorf("SMA(1,2,3) = %v, want 2", v)
	}
	// Window slides: (2+3+10)/3 = 5
	if v := sma.Update(10); !almostEqual(v, 5) {
		t.Errorf("SMA(2,3,10) = %v, want 5", v)
	}
	if !almostEqual(sma.Current(), 5) {
		t.Errorf("Current = %v, want 5", sma.Current())
	}

	sma.Reset()
	if sma.Ready() || sma.Current() != 0 {
		t.Error("Reset should clear state")
	}
}

func TestEMA(t *testing.T) {
	ema := NewEMA(3)

	ema.Update(1)
	ema.Update(2)
	// Seed is SMA(1,2,3) = 2
	if v := ema.Update(3); !almostEqual(v, 2) {
		t.Errorf("seed = %v, want 2", v)
	}
	if !ema.Ready() {
		t.Error("Ready after seed window fills")
	}

	// alpha = 2/(3+1) = 0.5; next = (4-2)*0.5 + 2 = 3
	if v := ema.Update(4); !almostEqual(v, 3) {
		t.Errorf("EMA after 4 = %v, want 3", v)
	}
	if v := ema.Update(5); !almostEqual(v, 4) {
		t.Errorf("EMA after 5 = %v, want 4", v)
	}
}

func TestRSI_AllGainsIs100(t *testing.T) {
	rsi := NewRSI(3)
	prices := []float64{100, 101, 102, 103, 104}

	var last float64
	for _, p := range prices {
		last = rsi.Update(p)
	}
	if !almostEqual(last, 100) {
		t.Errorf("RSI of monotonic gains = %v, want 100", last)
	}
}

func TestRSI_BalancedMovesNear50(t *testing.T) {
	rsi := NewRSI(4)
	// Alternating +1/-1 changes: avg gain == avg loss -> RSI 50.
	prices := []float64{100, 101, 100, 101, 100}

	var last float64
	for _, p := range prices {
		last = rsi.Update(p)
	}
	if !almostEqual(last, 50) {
		t.Errorf("RSI of balanced moves = %v, want 50", last)
	}
}

func TestRSI_NotReadyReturnsZero(t *testing.T) {
	rsi := NewRSI(14)
	if v := rsi.Update(100); v != 0 {
		t.Errorf("first update = %v, want 0", v)
	}
	if rsi.Ready() {
		t.Error("Ready with one sample")
	}
}

func TestStdDev(t *testing.T) {
	sd := NewStdDev(4)

	for _, v := range []float64{2, 4, 4, 4} {
		sd.Update(v)
	}
	// Sample stdev of {2,4,4,4}: mean 3.5, variance (2.25+0.75)/3 = 1, stdev 1.
	if v := sd.Current(); !almostEqual(v, 1) {
		t.Errorf("StdDev = %v, want 1", v)
	}
	if !almostEqual(sd.Mean(), 3.5) {
		t.Errorf("Mean = %v, want 3.5", sd.Mean())
	}
}

func TestStdDev_NotReadyReturnsZero(t *testing.T) {
	sd := NewStdDev(3)
	sd.Update(1)
	sd.Update(2)
	if v := sd.Current(); v != 0 {
		t.Errorf("Current = %v, want 0 before window fills", v)
	}
}
