package mlem

import (
	"errors"
	"fmt"
	"math"
)

// ErrNonFinite reports that a divergence evaluation accumulated a NaN or
// infinite term, typically because the prediction has zeros where the
// observed data does not. The computed value is still returned alongside
// the error so monitoring code can flag the entry and keep the finite
// history ("surface, don't crash").
var ErrNonFinite = errors.New("divergence is not finite")

// Divergence computes the normalized generalized Kullback-Leibler divergence
// between an observed array u and a predicted array v:
//
//	delta(u||v) = sum_i( v[i] - u[i] + u[i]*log(u[i]/v[i]) ) / sum_i(u[i])
//
// using the generalized-entropy convention 0*log(0/anything) = 0, which is
// required because real sinograms contain exact zeros. The normalization by
// the total of u makes values comparable across noise levels with different
// total counts.
//
// Length mismatch and a non-positive normalizer are precondition errors.
// A non-finite result is returned together with ErrNonFinite.
func Divergence(u, v []float64) (float64, error) {
	if len(u) != len(v) {
		return 0, fmt.Errorf("divergence: length mismatch %d vs %d", len(u), len(v))
	}

	var sum, sumU float64
	for i := range u {
		sumU += u[i]
		term := v[i] - u[i]
		if u[i] != 0 {
			term += u[i] * math.Log(u[i]/v[i])
		}
		sum += term
	}

	if sumU <= 0 {
		return 0, fmt.Errorf("divergence: observed array has non-positive total %g", sumU)
	}

	d := sum / sumU
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return d, ErrNonFinite
	}
	return d, nil
}
