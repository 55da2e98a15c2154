package covariance

import (
	"gonum.org/v1/gonum/mat"
)

// sampleRing is a fixed-capacity circular store of D-wide sample rows.
// Rows are filled sequentially and then wrap, so the physically valid
// block is always rows [0, size) of the backing matrix regardless of
// where the write head currently points. That property lets the tracker
// slice the valid block directly instead of reassembling it row by row.
type sampleRing struct {
	data     *mat.Dense // capacity x dim
	dim      int
	capacity int
	head     int // next write position
	size     int // current number of valid rows
}

func newSampleRing(capacity, dim int) *sampleRing {
	return &sampleRing{
		data:     mat.NewDense(capacity, dim, nil),
		dim:      dim,
		capacity: capacity,
		head:     0,
		size:     0,
	}
}

// Push copies a row into the ring, overwriting the oldest row once full.
func (r *sampleRing) Push(row []float64) {
	r.data.SetRow(r.head, row)
	r.head = (r.head + 1) % r.capacity
	if r.size < r.capacity {
		r.size++
	}
}

// Size returns the current number of valid rows.
func (r *sampleRing) Size() int {
	return r.size
}

// Capacity returns the maximum number of rows that can be stored.
func (r *sampleRing) Capacity() int {
	return r.capacity
}

// Valid returns the block of valid rows as a matrix view. The rows are in
// arbitrary circular order, which is fine for order-independent statistics.
// Callers must not retain the view across a Push. Panics if the ring is
// empty.
func (r *sampleRing) Valid() mat.Matrix {
	return r.data.Slice(0, r.size, 0, r.dim)
}

// RowAt copies the row at logical index i into dst and returns it.
// Logical index 0 is the oldest valid row, size-1 the newest.
func (r *sampleRing) RowAt(i int, dst []float64) []float64 {
	idx := (r.head - r.size + i + r.capacity) % r.capacity
	for j := 0; j < r.dim; j++ {
		dst[j] = r.data.At(idx, j)
	}
	return dst
}

// Clear discards all rows without releasing storage.
func (r *sampleRing) Clear() {
	r.data.Zero()
	r.head = 0
	r.size = 0
}

func (r *sampleRing) clone() *sampleRing {
	out := newSampleRing(r.capacity, r.dim)
	out.data.Copy(r.data)
	out.head = r.head
	out.size = r.size
	return out
}
