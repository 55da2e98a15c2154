// Package covariance maintains windowed mean and covariance statistics
// over a stream of fixed-dimensionality sensor samples. A Tracker holds
// the most recent observations in a circular buffer and recomputes the
// derived mean vector, residual matrix, and covariance matrix lazily,
// the next time they are read after an insertion.
package covariance

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// DefaultCapacity is the window size used when the embedding application
// does not configure one.
const DefaultCapacity = 100

var (
	// ErrDimensionMismatch is returned by Insert when a sample's length
	// does not equal the tracker's configured dimensionality.
	ErrDimensionMismatch = fmt.Errorf("sample dimension mismatch")

	// ErrInvalidCapacity is returned when a window capacity of fewer than
	// two rows is requested; sample covariance needs at least two rows.
	ErrInvalidCapacity = fmt.Errorf("window capacity must be at least 2")

	// ErrInvalidDimension is returned when a tracker is constructed with a
	// dimensionality below one.
	ErrInvalidDimension = fmt.Errorf("dimension must be at least 1")
)

// Tracker accumulates the most recent samples in a fixed-size window and
// exposes their mean and sample covariance. Insertion is O(D); the
// derived statistics are recomputed on read, gated by staleness flags, in
// O(occupancy*D) for the mean and O(occupancy*D^2) for the covariance.
//
// A Tracker is not safe for concurrent use. Callers that share one across
// goroutines must serialize access externally, or take a Clone to read
// from independently.
type Tracker struct {
	dim  int
	ring *sampleRing

	mean      *mat.VecDense // dim
	residuals *mat.Dense    // capacity x dim scratch
	cov       *mat.SymDense // dim x dim

	meanStale      bool
	residualsStale bool
	covStale       bool
}

// New creates a Tracker for dim-wide samples holding the most recent
// capacity observations. All derived values start at zero and are marked
// stale until real data exists.
func New(dim, capacity int) (*Tracker, error) {
	if dim < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidDimension, dim)
	}
	if capacity <= 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}
	return &Tracker{
		dim:            dim,
		ring:           newSampleRing(capacity, dim),
		mean:           mat.NewVecDense(dim, nil),
		residuals:      mat.NewDense(capacity, dim, nil),
		cov:            mat.NewSymDense(dim, nil),
		meanStale:      true,
		residualsStale: true,
		covStale:       true,
	}, nil
}

// Insert copies a sample into the window, evicting the oldest sample once
// the window is full, and returns the fraction of the window now
// populated. A sample of the wrong length is a contract violation: the
// returned error wraps ErrDimensionMismatch and the tracker state is left
// unchanged.
//
// Insertion never touches the derived statistics; it only marks them
// stale so the next read recomputes them.
func (t *Tracker) Insert(sample []float64) (float64, error) {
	if len(sample) != t.dim {
		return t.FractionUsed(), fmt.Errorf("%w: got %d values, want %d", ErrDimensionMismatch, len(sample), t.dim)
	}
	t.ring.Push(sample)
	t.meanStale = true
	t.residualsStale = true
	t.covStale = true
	return t.FractionUsed(), nil
}

// Mean returns the arithmetic mean of each dimension across the samples
// currently in the window. With no samples it returns the zero vector.
// The returned vector is a copy; mutating it does not affect the tracker.
func (t *Tracker) Mean() *mat.VecDense {
	t.refreshMean()
	out := mat.NewVecDense(t.dim, nil)
	out.CopyVec(t.mean)
	return out
}

// Covariance returns the sample covariance matrix of the window,
// Residuals^T * Residuals / (occupancy-1). With fewer than two samples it
// returns the all-zero matrix. The result is symmetric with non-negative
// diagonal entries. The returned matrix is a copy.
func (t *Tracker) Covariance() *mat.SymDense {
	t.refreshCovariance()
	out := mat.NewSymDense(t.dim, nil)
	out.CopySym(t.cov)
	return out
}

// FractionUsed returns occupancy divided by capacity, in [0, 1]. Callers
// should gate statistical decisions on this before trusting Covariance.
func (t *Tracker) FractionUsed() float64 {
	return float64(t.ring.Size()) / float64(t.ring.Capacity())
}

// Occupancy returns the number of samples currently in the window.
func (t *Tracker) Occupancy() int {
	return t.ring.Size()
}

// Dimension returns the configured sample width.
func (t *Tracker) Dimension() int {
	return t.dim
}

// Capacity returns the configured window size.
func (t *Tracker) Capacity() int {
	return t.ring.Capacity()
}

// SetCapacity rebuilds the window with a new capacity. The newest rows
// that fit are kept, oldest dropped first when shrinking; growing leaves
// the extra rows empty until new data arrives. All derived statistics are
// marked stale.
func (t *Tracker) SetCapacity(capacity int) error {
	if capacity <= 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}
	if capacity == t.ring.Capacity() {
		return nil
	}

	keep := t.ring.Size()
	if keep > capacity {
		keep = capacity
	}
	next := newSampleRing(capacity, t.dim)
	row := make([]float64, t.dim)
	for i := t.ring.Size() - keep; i < t.ring.Size(); i++ {
		next.Push(t.ring.RowAt(i, row))
	}

	t.ring = next
	t.residuals = mat.NewDense(capacity, t.dim, nil)
	t.meanStale = true
	t.residualsStale = true
	t.covStale = true
	return nil
}

// Clone returns a deep copy of the tracker, including window contents and
// cached statistics. The copy is independent: readers can snapshot a
// tracker under a lock and compute from the clone without further
// synchronization.
func (t *Tracker) Clone() *Tracker {
	out := &Tracker{
		dim:            t.dim,
		ring:           t.ring.clone(),
		mean:           mat.NewVecDense(t.dim, nil),
		residuals:      mat.NewDense(t.ring.Capacity(), t.dim, nil),
		cov:            mat.NewSymDense(t.dim, nil),
		meanStale:      t.meanStale,
		residualsStale: t.residualsStale,
		covStale:       t.covStale,
	}
	out.mean.CopyVec(t.mean)
	out.residuals.Copy(t.residuals)
	out.cov.CopySym(t.cov)
	return out
}

func (t *Tracker) refreshMean() {
	if !t.meanStale {
		return
	}
	t.mean.Zero()
	n := t.ring.Size()
	if n > 0 {
		valid := t.ring.Valid()
		for j := 0; j < t.dim; j++ {
			sum := 0.0
			for i := 0; i < n; i++ {
				sum += valid.At(i, j)
			}
			t.mean.SetVec(j, sum/float64(n))
		}
	}
	t.meanStale = false
}

func (t *Tracker) refreshResiduals() {
	if !t.residualsStale {
		return
	}
	t.refreshMean()
	n := t.ring.Size()
	if n > 0 {
		valid := t.ring.Valid()
		for i := 0; i < n; i++ {
			for j := 0; j < t.dim; j++ {
				t.residuals.Set(i, j, valid.At(i, j)-t.mean.AtVec(j))
			}
		}
	}
	t.residualsStale = false
}

func (t *Tracker) refreshCovariance() {
	if !t.covStale {
		return
	}
	n := t.ring.Size()
	if n <= 1 {
		// Covariance is undefined below two samples; report zero rather
		// than erroring so callers can poll freely during warmup.
		t.cov.Zero()
		t.covStale = false
		return
	}

	t.refreshResiduals()
	resid := t.residuals.Slice(0, n, 0, t.dim)

	var gram mat.Dense
	gram.Mul(resid.T(), resid)
	gram.Scale(1/float64(n-1), &gram)

	// The Gram product is symmetric up to bit-identical dot products, so
	// copying the upper triangle loses nothing.
	for i := 0; i < t.dim; i++ {
		for j := i; j < t.dim; j++ {
			t.cov.SetSym(i, j, gram.At(i, j))
		}
	}
	t.covStale = false
}
