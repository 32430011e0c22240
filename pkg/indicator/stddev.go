package indicator

import "math"

// StdDev calculates the sample standard deviation over a sliding window.
type StdDev struct {
	period int
	values []float64
	sum    float64
}

// NewStdDev creates a new StdDev calculator with the given period.
func NewStdDev(period int) *StdDev {
	if period < 2 {
		period = 2
	}
	return &StdDev{
		period: period,
		values: make([]float64, 0, period),
	}
}

// Update adds a new value and returns the current standard deviation.
// Returns zero until the window is full.
func (s *StdDev) Update(value float64) float64 {
	s.values = append(s.values, value)
	s.sum += value

	if len(s.values) > s.period {
		s.sum -= s.values[0]
		s.values = s.values[1:]
	}

	return s.Current()
}

// Current returns the current standard deviation without adding new data.
func (s *StdDev) Current() float64 {
	n := len(s.values)
	if n < s.period {
		return 0
	}

	mean := s.sum / float64(n)
	sumSquares := 0.0
	for _, v := range s.values {
		diff := v - mean
		sumSquares += diff * diff
	}

	return math.Sqrt(sumSquares / float64(n-1))
}

// Mean returns the mean of the current window, zero until the window is full.
func (s *StdDev) Mean() float64 {
	if len(s.values) < s.period {
		return 0
	}
	return s.sum / float64(len(s.values))
}

// Ready returns true once the window is full.
func (s *StdDev) Ready() bool {
	return len(s.values) >= s.period
}

// Reset clears all data.
func (s *StdDev) Reset() {
	s.values = s.values[:0]
	s.sum = 0
}
