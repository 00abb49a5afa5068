package mlem

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"tomosparse/pkg/tomo"
)

// toyOperator builds the 1-D system apply(x) = [x0+x1, x0] with
// adjoint(y) = [y0+y1, y0].
func toyOperator(t testing.TB) *tomo.MatrixOperator {
	g := tomo.Grid{Width: 2, Height: 1}
	op, err := tomo.NewMatrixOperator(mat.NewDense(2, 2, []float64{1, 1, 1, 0}), g, g)
	if err != nil {
		t.Fatalf("Failed to create toy operator: %v", err)
	}
	return op
}

// identityOperator builds an n-element identity system
func identityOperator(t testing.TB, n int) *tomo.MatrixOperator {
	g := tomo.Grid{Width: n, Height: 1}
	a := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		a.Set(i, i, 1)
	}
	op, err := tomo.NewMatrixOperator(a, g, g)
	if err != nil {
		t.Fatalf("Failed to create identity operator: %v", err)
	}
	return op
}

// TestIteratorToyConvergence runs the end-to-end toy scenario: data [3,1]
// generated noiselessly from the true source [1,2] should be recovered
// within tolerance after 50 iterations
func TestIteratorToyConvergence(t *testing.T) {
	op := toyOperator(t)
	g := op.Domain()

	x0 := tomo.Image{Grid: g, Data: []float64{1, 1}}
	data := tomo.Sinogram{Grid: g, Data: []float64{3, 1}}

	history, err := Run(op, x0, data, 50, 0)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(history) != 50 {
		t.Fatalf("Expected 50 steps, got %d", len(history))
	}

	final := history[len(history)-1].Estimate
	dist := math.Hypot(final.Data[0]-1, final.Data[1]-2)
	if dist > 1e-2 {
		t.Errorf("Final estimate %v too far from [1,2]: L2 distance %g", final.Data, dist)
	}

	trace, nonFinite, err := DivergenceTrace(history, data.Data, false)
	if err != nil {
		t.Fatalf("DivergenceTrace failed: %v", err)
	}
	if len(nonFinite) != 0 {
		t.Errorf("Unexpected non-finite divergences at iterations %v", nonFinite)
	}
	if last := trace[len(trace)-1]; last >= 1e-3 {
		t.Errorf("Final divergence %g, want < 1e-3", last)
	}
}

// TestIteratorNonnegativity verifies every emitted estimate is elementwise
// nonnegative given a nonnegative start
func TestIteratorNonnegativity(t *testing.T) {
	op := toyOperator(t)
	g := op.Domain()

	x0 := tomo.Image{Grid: g, Data: []float64{0.5, 3}}
	data := tomo.Sinogram{Grid: g, Data: []float64{1, 2}}

	history, err := Run(op, x0, data, 30, 0)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	for _, s := range history {
		for i, v := range s.Estimate.Data {
			if v < 0 {
				t.Fatalf("Estimate[%d] = %g negative at iteration %d", i, v, s.Index)
			}
		}
	}
}

// TestIteratorDivergenceMonotone verifies the divergence trace is
// non-increasing within tolerance for a well-posed identity problem
func TestIteratorDivergenceMonotone(t *testing.T) {
	n := 8
	op := identityOperator(t, n)
	g := op.Domain()

	source := []float64{1, 4, 0.5, 2, 3, 0.25, 5, 1.5}
	data := tomo.Sinogram{Grid: g, Data: source}
	x0 := tomo.OnesImage(g)

	history, err := Run(op, x0, data, 40, 0)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	trace, _, err := DivergenceTrace(history, data.Data, false)
	if err != nil {
		t.Fatalf("DivergenceTrace failed: %v", err)
	}

	const tol = 1e-12
	for i := 1; i < len(trace); i++ {
		if trace[i] > trace[i-1]+tol {
			t.Errorf("Divergence increased at iteration %d: %g -> %g", i, trace[i-1], trace[i])
		}
	}
	if final := trace[len(trace)-1]; final > 1e-6 {
		t.Errorf("Identity problem did not converge: final divergence %g", final)
	}
}

// TestIteratorZeroLock verifies a pixel started at zero stays locked at zero
func TestIteratorZeroLock(t *testing.T) {
	op := toyOperator(t)
	g := op.Domain()

	x0 := tomo.Image{Grid: g, Data: []float64{1, 0}}
	data := tomo.Sinogram{Grid: g, Data: []float64{3, 1}}

	history, err := Run(op, x0, data, 20, 0)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	for _, s := range history {
		if s.Estimate.Data[1] != 0 {
			t.Fatalf("Zero-started pixel became %g at iteration %d", s.Estimate.Data[1], s.Index)
		}
	}
}

// TestIteratorOneShot verifies the sequence ends after exactly n steps and
// cannot be resumed
func TestIteratorOneShot(t *testing.T) {
	op := toyOperator(t)
	g := op.Domain()

	it, err := NewIterator(op, tomo.OnesImage(g), tomo.Sinogram{Grid: g, Data: []float64{3, 1}}, 5, 0)
	if err != nil {
		t.Fatalf("NewIterator failed: %v", err)
	}

	count := 0
	for it.Next() {
		count++
	}
	if count != 5 {
		t.Errorf("Expected 5 steps, got %d", count)
	}
	if it.Next() {
		t.Error("Next returned true after the sequence ended")
	}
	if it.Err() != nil {
		t.Errorf("Unexpected iterator error: %v", it.Err())
	}
}

// TestIteratorEmittedImmutability verifies later steps never mutate arrays
// yielded earlier
func TestIteratorEmittedImmutability(t *testing.T) {
	op := toyOperator(t)
	g := op.Domain()

	it, err := NewIterator(op, tomo.OnesImage(g), tomo.Sinogram{Grid: g, Data: []float64{3, 1}}, 10, 0)
	if err != nil {
		t.Fatalf("NewIterator failed: %v", err)
	}

	if !it.Next() {
		t.Fatal("Expected at least one step")
	}
	first := it.Step()
	snapshot := append([]float64(nil), first.Estimate.Data...)

	for it.Next() {
	}

	for i := range snapshot {
		if first.Estimate.Data[i] != snapshot[i] {
			t.Fatalf("Emitted estimate mutated at index %d: %g -> %g", i, snapshot[i], first.Estimate.Data[i])
		}
	}
}

// TestIteratorPreconditions verifies fatal input validation
func TestIteratorPreconditions(t *testing.T) {
	op := toyOperator(t)
	g := op.Domain()
	data := tomo.Sinogram{Grid: g, Data: []float64{3, 1}}

	if _, err := NewIterator(op, tomo.OnesImage(g), data, 0, 0); err == nil {
		t.Error("Expected error for non-positive iteration count")
	}

	neg := tomo.Image{Grid: g, Data: []float64{-1, 1}}
	if _, err := NewIterator(op, neg, data, 10, 0); err == nil {
		t.Error("Expected error for negative initial estimate")
	}

	negData := tomo.Sinogram{Grid: g, Data: []float64{-3, 1}}
	if _, err := NewIterator(op, tomo.OnesImage(g), negData, 10, 0); err == nil {
		t.Error("Expected error for negative data")
	}

	wrongGrid := tomo.OnesImage(tomo.Grid{Width: 3, Height: 1})
	if _, err := NewIterator(op, wrongGrid, data, 10, 0); err == nil {
		t.Error("Expected error for mismatched estimate grid")
	}
}

// BenchmarkIterator benchmarks the update loop on a moderate identity system
func BenchmarkIterator(b *testing.B) {
	n := 64
	op := identityOperator(b, n)
	g := op.Domain()

	data := tomo.NewSinogram(g)
	for i := range data.Data {
		data.Data[i] = float64(i%7) + 0.5
	}
	x0 := tomo.OnesImage(g)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Run(op, x0, data, 10, 0); err != nil {
			b.Fatalf("Run failed: %v", err)
		}
	}
}
