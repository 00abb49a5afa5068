// Package projection implements a 2D parallel-beam projection operator:
// forward line integrals over a pixelized image and the matching adjoint
// (backprojection). Forward and adjoint enumerate the identical sampling
// weights, so the adjoint is the true transpose of the forward map up to
// floating point rounding.
package projection

import (
	"fmt"
	"math"

	"tomosparse/pkg/tomo"
)

// Geometry describes a parallel-beam acquisition over a square image.
type Geometry struct {
	// Size is the side length of the square image in pixels.
	Size int

	// NumAngles is the number of projection angles, spread uniformly
	// over [0, pi).
	NumAngles int

	// NumDetectors is the number of detector bins per angle.
	NumDetectors int

	// DetectorSpacing is the distance between detector bin centers, in
	// pixel units.
	DetectorSpacing float64

	// StepSize is the ray sampling step for the line integrals, in pixel
	// units. Smaller steps give more accurate integrals at higher cost.
	StepSize float64
}

// DefaultGeometry returns a geometry with conventional settings for a
// square image of the given side length: one angle per pixel of width and
// enough unit-spaced detectors to cover the image diagonal.
func DefaultGeometry(size int) Geometry {
	return Geometry{
		Size:            size,
		NumAngles:       size,
		NumDetectors:    int(math.Ceil(float64(size)*math.Sqrt2)) + 1,
		DetectorSpacing: 1.0,
		StepSize:        0.5,
	}
}

// Validate checks the geometry parameters.
func (g Geometry) Validate() error {
	if g.Size <= 0 {
		return fmt.Errorf("image size must be positive, got %d", g.Size)
	}
	if g.NumAngles <= 0 {
		return fmt.Errorf("number of angles must be positive, got %d", g.NumAngles)
	}
	if g.NumDetectors <= 0 {
		return fmt.Errorf("number of detectors must be positive, got %d", g.NumDetectors)
	}
	if g.DetectorSpacing <= 0 {
		return fmt.Errorf("detector spacing must be positive, got %g", g.DetectorSpacing)
	}
	if g.StepSize <= 0 {
		return fmt.Errorf("step size must be positive, got %g", g.StepSize)
	}
	return nil
}

// ParallelBeam is a tomo.Operator for parallel-beam geometry. It is linear
// and fixed after construction.
type ParallelBeam struct {
	geom   Geometry
	domain tomo.Grid
	rng    tomo.Grid

	// per-angle ray directions, precomputed once
	cos []float64
	sin []float64

	// halfSpan is the ray half-length, covering the image diagonal
	halfSpan float64
}

// NewParallelBeam creates a parallel-beam operator for the given geometry.
func NewParallelBeam(geom Geometry) (*ParallelBeam, error) {
	if err := geom.Validate(); err != nil {
		return nil, fmt.Errorf("projection: invalid geometry: %v", err)
	}

	p := &ParallelBeam{
		geom:     geom,
		domain:   tomo.Grid{Width: geom.Size, Height: geom.Size},
		rng:      tomo.Grid{Width: geom.NumDetectors, Height: geom.NumAngles},
		cos:      make([]float64, geom.NumAngles),
		sin:      make([]float64, geom.NumAngles),
		halfSpan: float64(geom.Size) / math.Sqrt2,
	}
	for a := 0; a < geom.NumAngles; a++ {
		theta := math.Pi * float64(a) / float64(geom.NumAngles)
		p.cos[a] = math.Cos(theta)
		p.sin[a] = math.Sin(theta)
	}
	return p, nil
}

// Domain returns the image space grid (Size x Size).
func (p *ParallelBeam) Domain() tomo.Grid { return p.domain }

// Range returns the sinogram grid (NumDetectors x NumAngles).
func (p *ParallelBeam) Range() tomo.Grid { return p.rng }

// traverse walks the sampling points of the ray for one (angle, detector)
// pair and reports each touched pixel with its bilinear weight times the
// integration step. Both Apply and Adjoint are defined through this single
// enumeration, which is what makes the adjoint an exact transpose.
func (p *ParallelBeam) traverse(angle, detector int, visit func(pixel int, weight float64)) {
	size := p.geom.Size
	center := float64(size-1) / 2

	// detector offset from the rotation center along the detector axis
	t := (float64(detector) - float64(p.geom.NumDetectors-1)/2) * p.geom.DetectorSpacing

	// ray direction and detector axis for this angle
	dx, dy := p.cos[angle], p.sin[angle]
	px, py := -p.sin[angle], p.cos[angle]

	numSteps := int(2*p.halfSpan/p.geom.StepSize) + 1
	for k := 0; k < numSteps; k++ {
		s := -p.halfSpan + float64(k)*p.geom.StepSize

		x := t*px + s*dx + center
		y := t*py + s*dy + center

		x0 := int(math.Floor(x))
		y0 := int(math.Floor(y))
		fx := x - float64(x0)
		fy := y - float64(y0)

		for _, c := range [4]struct {
			ix, iy int
			w      float64
		}{
			{x0, y0, (1 - fx) * (1 - fy)},
			{x0 + 1, y0, fx * (1 - fy)},
			{x0, y0 + 1, (1 - fx) * fy},
			{x0 + 1, y0 + 1, fx * fy},
		} {
			if c.ix < 0 || c.ix >= size || c.iy < 0 || c.iy >= size || c.w == 0 {
				continue
			}
			visit(c.iy*size+c.ix, c.w*p.geom.StepSize)
		}
	}
}

// Apply computes the forward projection: one line integral per
// (angle, detector) pair.
func (p *ParallelBeam) Apply(img tomo.Image) (tomo.Sinogram, error) {
	if img.Grid != p.domain {
		return tomo.Sinogram{}, fmt.Errorf("projection: image grid %v does not match domain %v", img.Grid, p.domain)
	}
	if err := img.Grid.Check(img.Data); err != nil {
		return tomo.Sinogram{}, err
	}

	out := tomo.NewSinogram(p.rng)
	for a := 0; a < p.geom.NumAngles; a++ {
		for d := 0; d < p.geom.NumDetectors; d++ {
			var sum float64
			p.traverse(a, d, func(pixel int, weight float64) {
				sum += weight * img.Data[pixel]
			})
			out.Data[a*p.geom.NumDetectors+d] = sum
		}
	}
	return out, nil
}

// Adjoint computes the backprojection: the transpose of Apply, smearing
// each sinogram bin back along its ray with the same weights.
func (p *ParallelBeam) Adjoint(s tomo.Sinogram) (tomo.Image, error) {
	if s.Grid != p.rng {
		return tomo.Image{}, fmt.Errorf("projection: sinogram grid %v does not match range %v", s.Grid, p.rng)
	}
	if err := s.Grid.Check(s.Data); err != nil {
		return tomo.Image{}, err
	}

	out := tomo.NewImage(p.domain)
	for a := 0; a < p.geom.NumAngles; a++ {
		for d := 0; d < p.geom.NumDetectors; d++ {
			v := s.Data[a*p.geom.NumDetectors+d]
			if v == 0 {
				continue
			}
			p.traverse(a, d, func(pixel int, weight float64) {
				out.Data[pixel] += weight * v
			})
		}
	}
	return out, nil
}
