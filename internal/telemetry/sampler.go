// Package telemetry owns the live statistics state of the daemon: a
// windowed covariance tracker plus a lifetime accumulator, serialized
// behind a mutex so the feed goroutine and HTTP readers can share them.
package telemetry

import (
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/covtrack/internal/covariance"
)

// Sampler serializes access to a windowed covariance Tracker and a
// lifetime Welford accumulator. The tracker itself is single-threaded by
// design; this is the single-owner wrapper the daemon shares between the
// feed and the API.
type Sampler struct {
	mu       sync.Mutex
	tracker  *covariance.Tracker
	lifetime *covariance.Welford
	rejected int64
}

// LifetimeStats summarizes every sample seen since startup.
type LifetimeStats struct {
	Count    int64     `json:"count"`
	Mean     []float64 `json:"mean"`
	Variance []float64 `json:"variance"`
}

// Stats is a point-in-time view of the sampler's statistics.
type Stats struct {
	Dimension    int           `json:"dimension"`
	Capacity     int           `json:"capacity"`
	Occupancy    int           `json:"occupancy"`
	FractionUsed float64       `json:"fraction_used"`
	Mean         []float64     `json:"mean"`
	Covariance   [][]float64   `json:"covariance"`
	Trace        float64       `json:"trace"`
	Rejected     int64         `json:"rejected"`
	Lifetime     LifetimeStats `json:"lifetime"`
}

// NewSampler creates a sampler for dim-wide samples with the given
// window capacity.
func NewSampler(dim, window int) (*Sampler, error) {
	tracker, err := covariance.New(dim, window)
	if err != nil {
		return nil, err
	}
	lifetime, err := covariance.NewWelford(dim)
	if err != nil {
		return nil, err
	}
	return &Sampler{tracker: tracker, lifetime: lifetime}, nil
}

// Observe feeds one sample into both the window and the lifetime
// accumulator and returns the window fraction used. Rejected samples
// (wrong dimensionality) are counted and leave all statistics unchanged.
func (s *Sampler) Observe(sample []float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frac, err := s.tracker.Insert(sample)
	if err != nil {
		s.rejected++
		return frac, err
	}
	// The tracker accepted the sample, so the dimensionality is right and
	// the lifetime accumulator cannot reject it.
	_ = s.lifetime.Add(sample)
	return frac, nil
}

// Stats returns a consistent snapshot of all current statistics.
func (s *Sampler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	dim := s.tracker.Dimension()
	mean := s.tracker.Mean()
	cov := s.tracker.Covariance()

	meanOut := make([]float64, dim)
	for j := 0; j < dim; j++ {
		meanOut[j] = mean.AtVec(j)
	}
	covOut := make([][]float64, dim)
	for i := 0; i < dim; i++ {
		covOut[i] = make([]float64, dim)
		for j := 0; j < dim; j++ {
			covOut[i][j] = cov.At(i, j)
		}
	}

	return Stats{
		Dimension:    dim,
		Capacity:     s.tracker.Capacity(),
		Occupancy:    s.tracker.Occupancy(),
		FractionUsed: s.tracker.FractionUsed(),
		Mean:         meanOut,
		Covariance:   covOut,
		Trace:        mat.Trace(cov),
		Rejected:     s.rejected,
		Lifetime: LifetimeStats{
			Count:    s.lifetime.Count(),
			Mean:     s.lifetime.Mean(),
			Variance: s.lifetime.SampleVariance(),
		},
	}
}

// SetWindow rebuilds the tracker window with a new capacity, keeping the
// newest samples that fit. The lifetime accumulator is unaffected.
func (s *Sampler) SetWindow(capacity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker.SetCapacity(capacity)
}
