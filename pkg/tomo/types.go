// Package tomo defines the data model shared by the reconstruction engine:
// flat nonnegative float64 arrays over discretized 2D spaces, and the
// projection operator contract that maps between them.
package tomo

import (
	"fmt"
)

// Grid describes the discretization of a 2D space as a rectangular array
// stored in row-major order.
type Grid struct {
	// Width is the number of columns. For a sinogram grid this is the
	// number of detector bins.
	Width int

	// Height is the number of rows. For a sinogram grid this is the
	// number of projection angles.
	Height int
}

// NumCells returns the total number of cells in the grid.
func (g Grid) NumCells() int {
	return g.Width * g.Height
}

// Check validates that a flat data array matches the grid size.
func (g Grid) Check(data []float64) error {
	if g.Width <= 0 || g.Height <= 0 {
		return fmt.Errorf("invalid grid dimensions %dx%d", g.Width, g.Height)
	}
	if len(data) != g.NumCells() {
		return fmt.Errorf("data length %d does not match grid %dx%d", len(data), g.Width, g.Height)
	}
	return nil
}

// Image is a nonnegative real-valued array over the reconstruction space.
// Data is stored row-major: Data[y*Width+x].
type Image struct {
	Grid Grid
	Data []float64
}

// Sinogram is a real-valued array over the measurement space. Rows are
// projection angles, columns are detector bins.
type Sinogram struct {
	Grid Grid
	Data []float64
}

// NewImage creates a zero-filled image on the given grid.
func NewImage(g Grid) Image {
	return Image{Grid: g, Data: make([]float64, g.NumCells())}
}

// OnesImage creates an all-ones image on the given grid.
func OnesImage(g Grid) Image {
	img := NewImage(g)
	for i := range img.Data {
		img.Data[i] = 1
	}
	return img
}

// NewSinogram creates a zero-filled sinogram on the given grid.
func NewSinogram(g Grid) Sinogram {
	return Sinogram{Grid: g, Data: make([]float64, g.NumCells())}
}

// OnesSinogram creates an all-ones sinogram on the given grid.
func OnesSinogram(g Grid) Sinogram {
	s := NewSinogram(g)
	for i := range s.Data {
		s.Data[i] = 1
	}
	return s
}

// Clone returns a deep copy of the image.
func (im Image) Clone() Image {
	out := Image{Grid: im.Grid, Data: make([]float64, len(im.Data))}
	copy(out.Data, im.Data)
	return out
}

// Clone returns a deep copy of the sinogram.
func (s Sinogram) Clone() Sinogram {
	out := Sinogram{Grid: s.Grid, Data: make([]float64, len(s.Data))}
	copy(out.Data, s.Data)
	return out
}

// Operator is the projection operator contract: a linear forward map from
// image space to measurement space together with its adjoint (the transpose,
// not an inverse). Implementations must be linear and fixed for the duration
// of a run; the MLEM update and the dual certificate both assume this.
type Operator interface {
	// Domain describes the image space the operator accepts.
	Domain() Grid

	// Range describes the sinogram space the operator produces.
	Range() Grid

	// Apply computes the forward projection of an image.
	Apply(img Image) (Sinogram, error)

	// Adjoint computes the transpose map of a sinogram back into
	// image space.
	Adjoint(s Sinogram) (Image, error)
}
