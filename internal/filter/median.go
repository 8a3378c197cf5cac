package filter

import (
	"slices"

	"github.com/oshokin/homee/internal/domain/home"
)

// Median is a fixed-capacity FIFO window of valid distances producing their median.
// It is not safe for concurrent use; each loop owns its own instance.
type Median struct {
	window []float64
	// next is the ring index the next sample is written to.
	next int
	// full is set once the window has held capacity samples.
	full bool
	// last is the most recent output, returned again for missing samples.
	last float64
	// scratch is reused for sorting.
	scratch []float64
}

// NewMedian creates a filter with the given window size. Sizes below 1 are treated as 1.
func NewMedian(size int) *Median {
	size = max(size, 1)

	return &Median{
		window:  make([]float64, 0, size),
		scratch: make([]float64, 0, size),
	}
}

// Size returns the window capacity.
func (m *Median) Size() int {
	return cap(m.window)
}

// Push feeds one raw reading. A missing reading leaves the window untouched and
// returns the previous output. The boolean is false until the window first fills.
func (m *Median) Push(sample home.RawSample) (float64, bool) {
	if !sample.Valid {
		return m.last, m.full
	}

	if len(m.window) < cap(m.window) {
		m.window = append(m.window, sample.Distance)
	} else {
		m.window[m.next] = sample.Distance
	}

	m.next = (m.next + 1) % cap(m.window)

	if len(m.window) == cap(m.window) {
		m.full = true
	}

	if !m.full {
		return 0, false
	}

	m.last = m.median()

	return m.last, true
}

// Reset empties the window.
func (m *Median) Reset() {
	m.window = m.window[:0]
	m.next = 0
	m.full = false
	m.last = 0
}

func (m *Median) median() float64 {
	m.scratch = append(m.scratch[:0], m.window...)

	return medianInPlace(m.scratch)
}

// medianInPlace sorts values and returns their median; the two middle values
// are averaged for even counts. values must not be empty.
func medianInPlace(values []float64) float64 {
	slices.Sort(values)

	mid := len(values) / 2
	if len(values)%2 == 1 {
		return values[mid]
	}

	return (values[mid-1] + values[mid]) / 2
}
