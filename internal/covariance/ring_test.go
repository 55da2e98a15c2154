package covariance

import (
	"testing"
)

func TestSampleRing_FillAndWrap(t *testing.T) {
	r := newSampleRing(3, 2)

	if r.Size() != 0 || r.Capacity() != 3 {
		t.Fatalf("fresh ring Size/Capacity = %d/%d, want 0/3", r.Size(), r.Capacity())
	}

	r.Push([]float64{1, 10})
	r.Push([]float64{2, 20})
	if r.Size() != 2 {
		t.Errorf("Size = %d after two pushes, want 2", r.Size())
	}

	r.Push([]float64{3, 30})
	r.Push([]float64{4, 40}) // overwrites {1, 10}
	if r.Size() != 3 {
		t.Errorf("Size = %d after wrap, want 3", r.Size())
	}

	row := make([]float64, 2)
	wantOldest := []float64{2, 20}
	got := r.RowAt(0, row)
	if got[0] != wantOldest[0] || got[1] != wantOldest[1] {
		t.Errorf("RowAt(0) = %v, want %v", got, wantOldest)
	}
	wantNewest := []float64{4, 40}
	got = r.RowAt(2, row)
	if got[0] != wantNewest[0] || got[1] != wantNewest[1] {
		t.Errorf("RowAt(2) = %v, want %v", got, wantNewest)
	}
}

func TestSampleRing_ValidBlockShape(t *testing.T) {
	r := newSampleRing(4, 3)
	r.Push([]float64{1, 2, 3})
	r.Push([]float64{4, 5, 6})

	valid := r.Valid()
	rows, cols := valid.Dims()
	if rows != 2 || cols != 3 {
		t.Fatalf("Valid() dims = %dx%d, want 2x3", rows, cols)
	}

	// After wrapping every physical row is valid, so the block covers the
	// whole backing matrix even though logical order differs.
	for i := 0; i < 4; i++ {
		r.Push([]float64{float64(i), 0, 0})
	}
	rows, _ = r.Valid().Dims()
	if rows != 4 {
		t.Errorf("Valid() rows after wrap = %d, want 4", rows)
	}
}

func TestSampleRing_Clear(t *testing.T) {
	r := newSampleRing(3, 1)
	r.Push([]float64{7})
	r.Push([]float64{8})
	r.Clear()
	if r.Size() != 0 {
		t.Errorf("Size after Clear = %d, want 0", r.Size())
	}
	r.Push([]float64{9})
	row := make([]float64, 1)
	if got := r.RowAt(0, row); got[0] != 9 {
		t.Errorf("RowAt(0) after Clear+Push = %v, want [9]", got)
	}
}
