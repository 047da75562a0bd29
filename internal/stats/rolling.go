package stats

import "math"

// RollingStats maintains a fixed-capacity sliding window of numeric samples
// and exposes the running mean and sample standard deviation in O(1).
//
// A capacity of 0 switches to unbounded streaming accumulation: no samples are
// stored and nothing is ever evicted. In bounded mode the samples are kept in
// a circular buffer so the evicted sample's contribution to the running sums
// is removed exactly, keeping the streaming values identical to a direct
// computation over the window contents.
type RollingStats struct {
	capacity     int
	samples      []float64
	next         int
	count        int
	sum          float64
	sumOfSquares float64
}

// NewRollingStats creates a calculator over a window of the given capacity.
// Non-positive capacity means unbounded accumulation from the first sample.
func NewRollingStats(capacity int) *RollingStats {
	rs := &RollingStats{}
	if capacity > 0 {
		rs.capacity = capacity
		rs.samples = make([]float64, capacity)
	}
	return rs
}

// Insert records one sample, evicting the oldest when the window is full.
func (rs *RollingStats) Insert(value float64) {
	if rs.capacity > 0 {
		if rs.count == rs.capacity {
			evicted := rs.samples[rs.next]
			rs.sum -= evicted
			rs.sumOfSquares -= evicted * evicted
			rs.count--
		}
		rs.samples[rs.next] = value
		rs.next = (rs.next + 1) % rs.capacity
	}
	rs.count++
	rs.sum += value
	rs.sumOfSquares += value * value
}

// Mean returns the arithmetic mean of the samples currently held, 0 if empty.
func (rs *RollingStats) Mean() float64 {
	if rs.count == 0 {
		return 0
	}
	return rs.sum / float64(rs.count)
}

// Deviation returns the sample standard deviation of the samples currently
// held, 0 when fewer than two samples are present.
func (rs *RollingStats) Deviation() float64 {
	if rs.count < 2 {
		return 0
	}
	n := float64(rs.count)
	mean := rs.sum / n
	variance := (rs.sumOfSquares - n*mean*mean) / (n - 1)
	if variance < 0 {
		// Cancellation in the running sums can push a near-zero variance
		// slightly negative.
		variance = 0
	}
	return math.Sqrt(variance)
}

// Count returns the number of samples currently held in the window.
func (rs *RollingStats) Count() int {
	return rs.count
}
