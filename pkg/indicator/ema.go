package indicator

// EMA calculates an Exponential Moving Average. The first period values are
// accumulated into an SMA seed, after which the standard smoothing recurrence
// applies.
type EMA struct {
	period int
	alpha  float64
	seed   *SMA
	value  float64
	ready  bool
}

// NewEMA creates a new EMA calculator with the given period.
func NewEMA(period int) *EMA {
	if period < 1 {
		period = 1
	}
	return &EMA{
		period: period,
		alpha:  2.0 / (float64(period) + 1.0),
		seed:   NewSMA(period),
	}
}

// Update adds a new value and returns the current EMA.
// Returns zero until the seed window is full.
func (e *EMA) Update(value float64) float64 {
	if !e.ready {
		seeded := e.seed.Update(value)
		if e.seed.Ready() {
			e.value = seeded
			e.ready = true
		}
		return e.value
	}

	e.value = (value-e.value)*e.alpha + e.value
	return e.value
}

// Current returns the current EMA value without adding new data.
func (e *EMA) Current() float64 {
	return e.value
}

// Ready returns true once the seed window is full.
func (e *EMA) Ready() bool {
	return e.ready
}

// Reset clears all data.
func (e *EMA) Reset() {
	e.seed.Reset()
	e.value = 0
	e.ready = false
}
