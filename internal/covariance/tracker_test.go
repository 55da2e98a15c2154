package covariance

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

func TestNew_Validation(t *testing.T) {
	if _, err := New(0, 10); !errors.Is(err, ErrInvalidDimension) {
		t.Errorf("New(0, 10) err = %v, want ErrInvalidDimension", err)
	}
	if _, err := New(3, 1); !errors.Is(err, ErrInvalidCapacity) {
		t.Errorf("New(3, 1) err = %v, want ErrInvalidCapacity", err)
	}
	if _, err := New(3, 0); !errors.Is(err, ErrInvalidCapacity) {
		t.Errorf("New(3, 0) err = %v, want ErrInvalidCapacity", err)
	}
	tr, err := New(3, 2)
	if err != nil {
		t.Fatalf("New(3, 2) err = %v", err)
	}
	if tr.Dimension() != 3 || tr.Capacity() != 2 {
		t.Errorf("Dimension/Capacity = %d/%d, want 3/2", tr.Dimension(), tr.Capacity())
	}
}

func TestInsert_FractionExact(t *testing.T) {
	const capacity = 8
	tr, err := New(2, capacity)
	if err != nil {
		t.Fatal(err)
	}
	for k := 1; k <= capacity; k++ {
		frac, err := tr.Insert([]float64{float64(k), float64(-k)})
		if err != nil {
			t.Fatalf("Insert #%d: %v", k, err)
		}
		want := float64(k) / float64(capacity)
		if frac != want {
			t.Errorf("Insert #%d fraction = %v, want %v", k, frac, want)
		}
		if tr.FractionUsed() != want {
			t.Errorf("FractionUsed after %d inserts = %v, want %v", k, tr.FractionUsed(), want)
		}
	}
	// Past capacity the fraction saturates at 1.
	for k := 0; k < 3; k++ {
		frac, err := tr.Insert([]float64{1, 2})
		if err != nil {
			t.Fatal(err)
		}
		if frac != 1.0 {
			t.Errorf("fraction after overflow insert = %v, want 1.0", frac)
		}
	}
	if tr.Occupancy() != capacity {
		t.Errorf("Occupancy = %d, want %d", tr.Occupancy(), capacity)
	}
}

func TestMean_Empty(t *testing.T) {
	tr, _ := New(3, 5)
	m := tr.Mean()
	for j := 0; j < 3; j++ {
		if m.AtVec(j) != 0 {
			t.Errorf("Mean()[%d] = %v on empty tracker, want 0", j, m.AtVec(j))
		}
	}
}

func TestMean_UnitVectors(t *testing.T) {
	tr, _ := New(3, 5)
	for _, p := range [][]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}} {
		if _, err := tr.Insert(p); err != nil {
			t.Fatal(err)
		}
	}
	m := tr.Mean()
	for j := 0; j < 3; j++ {
		if m.AtVec(j) != 1.0/3.0 {
			t.Errorf("Mean()[%d] = %v, want 1/3", j, m.AtVec(j))
		}
	}
}

func TestCovariance_Degenerate(t *testing.T) {
	tr, _ := New(3, 5)

	cov := tr.Covariance()
	if !mat.Equal(cov, mat.NewSymDense(3, nil)) {
		t.Errorf("Covariance on empty tracker = %v, want zero matrix", mat.Formatted(cov))
	}

	if _, err := tr.Insert([]float64{4, 5, 6}); err != nil {
		t.Fatal(err)
	}
	cov = tr.Covariance()
	if !mat.Equal(cov, mat.NewSymDense(3, nil)) {
		t.Errorf("Covariance with one sample = %v, want zero matrix", mat.Formatted(cov))
	}
}

func TestCovariance_ScalarVariance(t *testing.T) {
	tr, _ := New(1, 5)
	for _, v := range []float64{1, 2, 3, 4, 5} {
		if _, err := tr.Insert([]float64{v}); err != nil {
			t.Fatal(err)
		}
	}
	if m := tr.Mean(); m.AtVec(0) != 3.0 {
		t.Errorf("Mean = %v, want 3.0", m.AtVec(0))
	}
	if cov := tr.Covariance(); cov.At(0, 0) != 2.5 {
		t.Errorf("Variance = %v, want 2.5 (sample variance, n-1 divisor)", cov.At(0, 0))
	}
}

func TestCovariance_SymmetricNonNegativeDiagonal(t *testing.T) {
	tr, _ := New(3, 6)
	samples := [][]float64{
		{1.2, -0.7, 3.3},
		{0.4, 2.1, -1.0},
		{-2.5, 0.0, 0.9},
		{1.1, 1.1, 1.1},
		{3.0, -4.2, 0.5},
		{0.0, 0.3, -2.8},
		{1.9, 0.8, 0.0}, // evicts the first sample
	}
	for _, p := range samples {
		if _, err := tr.Insert(p); err != nil {
			t.Fatal(err)
		}
	}
	cov := tr.Covariance()
	for i := 0; i < 3; i++ {
		if cov.At(i, i) < 0 {
			t.Errorf("variance [%d][%d] = %v, want >= 0", i, i, cov.At(i, i))
		}
		for j := 0; j < 3; j++ {
			if cov.At(i, j) != cov.At(j, i) {
				t.Errorf("covariance not symmetric at (%d,%d): %v vs %v", i, j, cov.At(i, j), cov.At(j, i))
			}
		}
	}
}

func TestCovariance_MatchesGonumStat(t *testing.T) {
	tr, _ := New(3, 10)
	samples := [][]float64{
		{0.5, 1.5, -2.0},
		{1.0, -0.4, 0.2},
		{-1.2, 2.2, 1.8},
		{0.0, 0.0, 3.1},
		{2.4, -1.9, -0.6},
		{1.7, 0.3, 0.9},
		{-0.8, 1.1, -1.4},
	}
	rows := mat.NewDense(len(samples), 3, nil)
	for i, p := range samples {
		if _, err := tr.Insert(p); err != nil {
			t.Fatal(err)
		}
		rows.SetRow(i, p)
	}

	var want mat.SymDense
	stat.CovarianceMatrix(&want, rows, nil)

	got := tr.Covariance()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if math.Abs(got.At(i, j)-want.At(i, j)) > 1e-12 {
				t.Errorf("covariance (%d,%d) = %v, want %v", i, j, got.At(i, j), want.At(i, j))
			}
		}
	}
}

func TestReads_Idempotent(t *testing.T) {
	tr, _ := New(2, 4)
	for _, p := range [][]float64{{1, 2}, {3, 4}, {5, 6}} {
		if _, err := tr.Insert(p); err != nil {
			t.Fatal(err)
		}
	}
	m1, m2 := tr.Mean(), tr.Mean()
	if !mat.Equal(m1, m2) {
		t.Errorf("repeated Mean() differs: %v vs %v", mat.Formatted(m1), mat.Formatted(m2))
	}
	c1, c2 := tr.Covariance(), tr.Covariance()
	if !mat.Equal(c1, c2) {
		t.Errorf("repeated Covariance() differs: %v vs %v", mat.Formatted(c1), mat.Formatted(c2))
	}
}

func TestEviction_OldestHasNoInfluence(t *testing.T) {
	const capacity = 4
	tr, _ := New(1, capacity)

	// The huge first value must be fully evicted by the subsequent
	// capacity inserts.
	points := []float64{1e9, 2, 4, 6, 8}
	for _, v := range points {
		if _, err := tr.Insert([]float64{v}); err != nil {
			t.Fatal(err)
		}
	}
	if tr.Occupancy() != capacity {
		t.Fatalf("Occupancy = %d, want %d", tr.Occupancy(), capacity)
	}
	if m := tr.Mean(); m.AtVec(0) != 5.0 {
		t.Errorf("Mean after eviction = %v, want 5.0 (mean of last %d)", m.AtVec(0), capacity)
	}
}

func TestInsert_DimensionMismatchLeavesStateUnchanged(t *testing.T) {
	tr, _ := New(3, 4)
	for _, p := range [][]float64{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}} {
		if _, err := tr.Insert(p); err != nil {
			t.Fatal(err)
		}
	}
	meanBefore := tr.Mean()
	covBefore := tr.Covariance()
	fracBefore := tr.FractionUsed()

	frac, err := tr.Insert([]float64{1, 2})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("Insert short sample err = %v, want ErrDimensionMismatch", err)
	}
	if frac != fracBefore {
		t.Errorf("fraction after rejected insert = %v, want %v", frac, fracBefore)
	}
	if _, err := tr.Insert([]float64{1, 2, 3, 4}); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("Insert long sample err = %v, want ErrDimensionMismatch", err)
	}

	if !mat.Equal(tr.Mean(), meanBefore) {
		t.Errorf("Mean changed after rejected insert")
	}
	if !mat.Equal(tr.Covariance(), covBefore) {
		t.Errorf("Covariance changed after rejected insert")
	}
	if tr.Occupancy() != 3 {
		t.Errorf("Occupancy = %d after rejected inserts, want 3", tr.Occupancy())
	}
}

func TestSetCapacity_ShrinkKeepsNewest(t *testing.T) {
	tr, _ := New(1, 5)
	for _, v := range []float64{1, 2, 3, 4, 5} {
		if _, err := tr.Insert([]float64{v}); err != nil {
			t.Fatal(err)
		}
	}
	if err := tr.SetCapacity(3); err != nil {
		t.Fatal(err)
	}
	if tr.Capacity() != 3 || tr.Occupancy() != 3 {
		t.Fatalf("Capacity/Occupancy = %d/%d, want 3/3", tr.Capacity(), tr.Occupancy())
	}
	// Kept rows are 3, 4, 5.
	if m := tr.Mean(); m.AtVec(0) != 4.0 {
		t.Errorf("Mean after shrink = %v, want 4.0", m.AtVec(0))
	}
	if cov := tr.Covariance(); cov.At(0, 0) != 1.0 {
		t.Errorf("Variance after shrink = %v, want 1.0", cov.At(0, 0))
	}
}

func TestSetCapacity_GrowKeepsAll(t *testing.T) {
	tr, _ := New(1, 3)
	for _, v := range []float64{1, 2, 3, 4} {
		if _, err := tr.Insert([]float64{v}); err != nil {
			t.Fatal(err)
		}
	}
	// Window holds 2, 3, 4.
	if err := tr.SetCapacity(6); err != nil {
		t.Fatal(err)
	}
	if tr.Capacity() != 6 || tr.Occupancy() != 3 {
		t.Fatalf("Capacity/Occupancy = %d/%d, want 6/3", tr.Capacity(), tr.Occupancy())
	}
	if m := tr.Mean(); m.AtVec(0) != 3.0 {
		t.Errorf("Mean after grow = %v, want 3.0", m.AtVec(0))
	}
	if frac := tr.FractionUsed(); frac != 0.5 {
		t.Errorf("FractionUsed after grow = %v, want 0.5", frac)
	}

	if err := tr.SetCapacity(1); !errors.Is(err, ErrInvalidCapacity) {
		t.Errorf("SetCapacity(1) err = %v, want ErrInvalidCapacity", err)
	}
}

func TestClone_Independent(t *testing.T) {
	tr, _ := New(2, 4)
	for _, p := range [][]float64{{1, 1}, {2, 2}, {3, 3}} {
		if _, err := tr.Insert(p); err != nil {
			t.Fatal(err)
		}
	}
	snap := tr.Clone()

	if _, err := tr.Insert([]float64{100, -100}); err != nil {
		t.Fatal(err)
	}

	if m := snap.Mean(); m.AtVec(0) != 2.0 {
		t.Errorf("clone Mean = %v, want 2.0 (unaffected by later inserts)", m.AtVec(0))
	}
	if snap.Occupancy() != 3 {
		t.Errorf("clone Occupancy = %d, want 3", snap.Occupancy())
	}
	if tr.Occupancy() != 4 {
		t.Errorf("original Occupancy = %d, want 4", tr.Occupancy())
	}
}

func TestWindowHoldsExactlyLastCapacitySamples(t *testing.T) {
	const capacity = 3
	tr, _ := New(1, capacity)
	for v := 1.0; v <= 10.0; v++ {
		if _, err := tr.Insert([]float64{v}); err != nil {
			t.Fatal(err)
		}
	}
	// Window holds 8, 9, 10.
	if m := tr.Mean(); m.AtVec(0) != 9.0 {
		t.Errorf("Mean = %v, want 9.0", m.AtVec(0))
	}
	if cov := tr.Covariance(); cov.At(0, 0) != 1.0 {
		t.Errorf("Variance = %v, want 1.0", cov.At(0, 0))
	}
}
