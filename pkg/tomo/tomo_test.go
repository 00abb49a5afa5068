package tomo

import (
	"testing"

	"gonum.org/v1/gonum/mat"
)

// TestGridCheck verifies grid/data validation
func TestGridCheck(t *testing.T) {
	g := Grid{Width: 3, Height: 2}

	if g.NumCells() != 6 {
		t.Errorf("Expected 6 cells, got %d", g.NumCells())
	}

	if err := g.Check(make([]float64, 6)); err != nil {
		t.Errorf("Valid data rejected: %v", err)
	}

	if err := g.Check(make([]float64, 5)); err == nil {
		t.Error("Expected error for mismatched data length")
	}

	bad := Grid{Width: 0, Height: 2}
	if err := bad.Check(nil); err == nil {
		t.Error("Expected error for degenerate grid")
	}
}

// TestOnesConstructors verifies the all-ones elements of both spaces
func TestOnesConstructors(t *testing.T) {
	g := Grid{Width: 4, Height: 3}

	img := OnesImage(g)
	for i, v := range img.Data {
		if v != 1 {
			t.Fatalf("OnesImage[%d] = %f, want 1", i, v)
		}
	}

	s := OnesSinogram(g)
	for i, v := range s.Data {
		if v != 1 {
			t.Fatalf("OnesSinogram[%d] = %f, want 1", i, v)
		}
	}
}

// TestClone verifies clones do not share backing arrays
func TestClone(t *testing.T) {
	img := OnesImage(Grid{Width: 2, Height: 2})
	cl := img.Clone()
	cl.Data[0] = 42

	if img.Data[0] != 1 {
		t.Error("Clone shares backing array with original")
	}
}

// TestMatrixOperator verifies the forward and adjoint maps against
// hand-computed products for a small system matrix
func TestMatrixOperator(t *testing.T) {
	domain := Grid{Width: 2, Height: 1}
	rng := Grid{Width: 2, Height: 1}

	// apply(x) = [x0+x1, x0], adjoint(y) = [y0+y1, y0]
	a := mat.NewDense(2, 2, []float64{1, 1, 1, 0})
	op, err := NewMatrixOperator(a, domain, rng)
	if err != nil {
		t.Fatalf("Failed to create operator: %v", err)
	}

	img := Image{Grid: domain, Data: []float64{1, 2}}
	sino, err := op.Apply(img)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if sino.Data[0] != 3 || sino.Data[1] != 1 {
		t.Errorf("Apply([1,2]) = %v, want [3,1]", sino.Data)
	}

	back, err := op.Adjoint(Sinogram{Grid: rng, Data: []float64{3, 1}})
	if err != nil {
		t.Fatalf("Adjoint failed: %v", err)
	}
	if back.Data[0] != 4 || back.Data[1] != 3 {
		t.Errorf("Adjoint([3,1]) = %v, want [4,3]", back.Data)
	}
}

// TestMatrixOperatorShapeErrors verifies dimension validation
func TestMatrixOperatorShapeErrors(t *testing.T) {
	a := mat.NewDense(2, 2, []float64{1, 0, 0, 1})

	if _, err := NewMatrixOperator(a, Grid{Width: 3, Height: 1}, Grid{Width: 2, Height: 1}); err == nil {
		t.Error("Expected error for domain size mismatch")
	}

	op, err := NewMatrixOperator(a, Grid{Width: 2, Height: 1}, Grid{Width: 2, Height: 1})
	if err != nil {
		t.Fatalf("Failed to create operator: %v", err)
	}

	wrong := Image{Grid: Grid{Width: 3, Height: 1}, Data: make([]float64, 3)}
	if _, err := op.Apply(wrong); err == nil {
		t.Error("Expected error for image grid mismatch")
	}
}
