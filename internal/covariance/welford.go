package covariance

import (
	"fmt"
	"math"
)

// Welford maintains lifetime running mean and variance per dimension
// using Welford's online update. Unlike the windowed Tracker it never
// evicts: it summarizes every sample seen since construction in O(D)
// state, and is cheap enough to update on every insertion.
type Welford struct {
	dim   int
	count int64
	mean  []float64
	m2    []float64
}

// NewWelford creates an accumulator for dim-wide samples.
func NewWelford(dim int) (*Welford, error) {
	if dim < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidDimension, dim)
	}
	return &Welford{
		dim:  dim,
		mean: make([]float64, dim),
		m2:   make([]float64, dim),
	}, nil
}

// Add incorporates a new sample into the running statistics.
func (w *Welford) Add(sample []float64) error {
	if len(sample) != w.dim {
		return fmt.Errorf("%w: got %d values, want %d", ErrDimensionMismatch, len(sample), w.dim)
	}
	w.count++
	for j, x := range sample {
		delta := x - w.mean[j]
		w.mean[j] += delta / float64(w.count)
		w.m2[j] += delta * (x - w.mean[j])
	}
	return nil
}

// Count returns the number of samples that have been added.
func (w *Welford) Count() int64 {
	return w.count
}

// Mean returns the running mean per dimension. Zero before any samples.
func (w *Welford) Mean() []float64 {
	out := make([]float64, w.dim)
	copy(out, w.mean)
	return out
}

// SampleVariance returns the per-dimension sample variance (m2/(n-1)).
// Zero with fewer than two samples.
func (w *Welford) SampleVariance() []float64 {
	out := make([]float64, w.dim)
	if w.count < 2 {
		return out
	}
	for j, m2 := range w.m2 {
		out[j] = m2 / float64(w.count-1)
	}
	return out
}

// SampleStandardDeviation returns the per-dimension sample standard
// deviation.
func (w *Welford) SampleStandardDeviation() []float64 {
	out := w.SampleVariance()
	for j, v := range out {
		out[j] = math.Sqrt(v)
	}
	return out
}
