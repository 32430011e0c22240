// Package indicator provides streaming technical indicator calculations.
package indicator

// SMA calculates a Simple Moving Average over a sliding window.
type SMA struct {
	period int
	values []float64
	sum    float64
}

// NewSMA creates a new SMA calculator with the given period.
func NewSMA(period int) *SMA {
	if period < 1 {
		period = 1
	}
	return &SMA{
		period: period,
		values: make([]float64, 0, period),
	}
}

// Update adds a new value and returns the current SMA.
// Returns zero until the window is full.
func (s *SMA) Update(value float64) float64 {
	s.values = append(s.values, value)
	s.sum += value

	if len(s.values) > s.period {
		s.sum -= s.values[0]
		s.values = s.values[1:]
	}

	if len(s.values) < s.period {
		return 0
	}

	return s.sum / float64(s.period)
}

// Current returns the current SMA value without adding new data.
func (s *SMA) Current() float64 {
	if len(s.values) < s.period {
		return 0
	}
	return s.sum / float64(s.period)
}

// Ready returns true once the window is full.
func (s *SMA) Ready() bool {
	return len(s.values) >= s.period
}

// Period returns the SMA period.
func (s *SMA) Period() int {
	return s.period
}

// Reset clears all data.
func (s *SMA) Reset() {
	s.values = s.values[:0]
	s.sum = 0
}
