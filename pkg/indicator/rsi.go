package indicator

// RSI calculates the Relative Strength Index using Wilder's smoothing.
type RSI struct {
	period   int
	prev     float64
	avgGain  float64
	avgLoss  float64
	samples  int
	havePrev bool
}

// NewRSI creates a new RSI calculator with the given period.
func NewRSI(period int) *RSI {
	if period < 1 {
		period = 1
	}
	return &RSI{period: period}
}

// Update adds a new closing price and returns the current RSI in [0, 100].
// Returns zero until period+1 prices have been observed.
func (r *RSI) Update(price float64) float64 {
	if !r.havePrev {
		r.prev = price
		r.havePrev = true
		return 0
	}

	change := price - r.prev
	r.prev = price

	gain, loss := 0.0, 0.0
	if change > 0 {
		gain = change
	} else {
		loss = -change
	}

	if r.samples < r.period {
		// Accumulate the initial averages
		r.avgGain += gain / float64(r.period)
		r.avgLoss += loss / float64(r.period)
		r.samples++
		if r.samples < r.period {
			return 0
		}
	} else {
		// Wilder smoothing
		r.avgGain = (r.avgGain*float64(r.period-1) + gain) / float64(r.period)
		r.avgLoss = (r.avgLoss*float64(r.period-1) + loss) / float64(r.period)
	}

	return r.Current()
}

// Current returns the current RSI value without adding new data.
func (r *RSI) Current() float64 {
	if r.samples < r.period {
		return 0
	}
	if r.avgLoss == 0 {
		return 100
	}
	rs := r.avgGain / r.avgLoss
	return 100 - 100/(1+rs)
}

// Ready returns true once enough prices have been observed.
func (r *RSI) Ready() bool {
	return r.samples >= r.period
}

// Reset clears all data.
func (r *RSI) Reset() {
	r.prev = 0
	r.avgGain = 0
	r.avgLoss = 0
	r.samples = 0
	r.havePrev = false
}
