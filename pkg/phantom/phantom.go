// Package phantom provides synthetic test objects and Poisson noise
// injection for reconstruction experiments. Phantoms are deterministic;
// noise is reproducible through an explicit seed.
package phantom

import (
	"fmt"

	"tomosparse/pkg/tomo"
)

// disk is one circular feature of the smooth phantom, in fractional
// coordinates relative to the image side length.
type disk struct {
	cx, cy, radius, value float64
}

// Disks creates a smooth nonnegative phantom: a large background disk with
// two brighter inserts, loosely modeled on standard CT resolution phantoms.
func Disks(g tomo.Grid) tomo.Image {
	img := tomo.NewImage(g)
	side := float64(g.Width)

	features := []disk{
		{0.5, 0.5, 0.38, 1.0},
		{0.38, 0.42, 0.12, 1.0}, // stacked on the background disk
		{0.63, 0.6, 0.08, 2.0},
	}

	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			fx := (float64(x) + 0.5) / side
			fy := (float64(y) + 0.5) / side
			var v float64
			for _, d := range features {
				dx := fx - d.cx
				dy := fy - d.cy
				if dx*dx+dy*dy <= d.radius*d.radius {
					v += d.value
				}
			}
			img.Data[y*g.Width+x] = v
		}
	}
	return img
}

// PointSources creates a sparse phantom: n isolated bright pixels on a
// coarse interior lattice, everything else exactly zero. Sparse sources are
// the regime where the dual certificate is expected to succeed.
func PointSources(g tomo.Grid, n int, amplitude float64) tomo.Image {
	img := tomo.NewImage(g)
	if n <= 0 {
		return img
	}

	// walk an interior lattice; deterministic and collision-free,
	// capped at the lattice capacity
	const cols = 3
	if n > cols*cols {
		n = cols * cols
	}
	for i := 0; i < n; i++ {
		x := (i%cols + 1) * g.Width / (cols + 1)
		y := (i/cols + 1) * g.Height / (cols + 1)
		img.Data[y*g.Width+x] = amplitude
	}
	return img
}

// New builds a phantom by kind name, as configured in experiment files.
// Supported kinds: "disks", "points".
func New(kind string, g tomo.Grid) (tomo.Image, error) {
	switch kind {
	case "disks":
		return Disks(g), nil
	case "points":
		return PointSources(g, 5, 4.0), nil
	default:
		return tomo.Image{}, fmt.Errorf("phantom: unknown kind %q", kind)
	}
}
