package phantom

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"tomosparse/pkg/tomo"
)

// AddPoissonNoise replaces each sinogram bin with a Poisson draw of mean
// counts*clean[i], rescaled back by 1/counts. Larger counts means more
// photons and therefore less relative noise. Bins that are exactly zero
// stay exactly zero, matching the physics of unilluminated detectors.
//
// The draw is fully determined by the seed, so experiments are
// reproducible. A negative clean bin or non-positive counts is a
// precondition error.
func AddPoissonNoise(clean tomo.Sinogram, counts float64, seed uint64) (tomo.Sinogram, error) {
	if counts <= 0 {
		return tomo.Sinogram{}, fmt.Errorf("phantom: counts must be positive, got %g", counts)
	}
	if err := clean.Grid.Check(clean.Data); err != nil {
		return tomo.Sinogram{}, fmt.Errorf("phantom: invalid sinogram: %v", err)
	}

	src := rand.NewSource(seed)
	noisy := tomo.NewSinogram(clean.Grid)
	for i, v := range clean.Data {
		if v < 0 {
			return tomo.Sinogram{}, fmt.Errorf("phantom: negative sinogram bin %g at index %d", v, i)
		}
		if v == 0 {
			continue
		}
		p := distuv.Poisson{Lambda: v * counts, Src: src}
		noisy.Data[i] = p.Rand() / counts
	}
	return noisy, nil
}
