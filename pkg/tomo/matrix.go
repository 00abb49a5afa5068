package tomo

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// MatrixOperator is a projection operator backed by an explicit dense matrix.
// Apply multiplies by the matrix and Adjoint by its transpose, so the adjoint
// is exact by construction. It is intended for small problems where the
// system matrix fits in memory, and for validating iterative algorithms
// against hand-computed projections.
type MatrixOperator struct {
	a      *mat.Dense
	domain Grid
	rng    Grid
}

// NewMatrixOperator wraps a dense matrix as an Operator. The matrix must
// have Range().NumCells() rows and Domain().NumCells() columns.
func NewMatrixOperator(a *mat.Dense, domain, rng Grid) (*MatrixOperator, error) {
	rows, cols := a.Dims()
	if rows != rng.NumCells() {
		return nil, fmt.Errorf("matrix has %d rows, range grid needs %d", rows, rng.NumCells())
	}
	if cols != domain.NumCells() {
		return nil, fmt.Errorf("matrix has %d columns, domain grid needs %d", cols, domain.NumCells())
	}
	return &MatrixOperator{a: a, domain: domain, rng: rng}, nil
}

// Domain returns the image space grid.
func (m *MatrixOperator) Domain() Grid { return m.domain }

// Range returns the sinogram space grid.
func (m *MatrixOperator) Range() Grid { return m.rng }

// Apply computes the forward projection A*x.
func (m *MatrixOperator) Apply(img Image) (Sinogram, error) {
	if img.Grid != m.domain {
		return Sinogram{}, fmt.Errorf("image grid %v does not match operator domain %v", img.Grid, m.domain)
	}
	if err := img.Grid.Check(img.Data); err != nil {
		return Sinogram{}, err
	}
	x := mat.NewVecDense(len(img.Data), img.Data)
	var y mat.VecDense
	y.MulVec(m.a, x)

	out := NewSinogram(m.rng)
	for i := range out.Data {
		out.Data[i] = y.AtVec(i)
	}
	return out, nil
}

// Adjoint computes the transpose map A^T*y.
func (m *MatrixOperator) Adjoint(s Sinogram) (Image, error) {
	if s.Grid != m.rng {
		return Image{}, fmt.Errorf("sinogram grid %v does not match operator range %v", s.Grid, m.rng)
	}
	if err := s.Grid.Check(s.Data); err != nil {
		return Image{}, err
	}
	y := mat.NewVecDense(len(s.Data), s.Data)
	var x mat.VecDense
	x.MulVec(m.a.T(), y)

	out := NewImage(m.domain)
	for i := range out.Data {
		out.Data[i] = x.AtVec(i)
	}
	return out, nil
}
