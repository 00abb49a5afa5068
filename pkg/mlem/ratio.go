// Package mlem implements the Maximum-Likelihood Expectation-Maximization
// iteration for Poisson-noise tomographic reconstruction, together with its
// convergence diagnostics: a normalized Kullback-Leibler-type divergence and
// a high-quantile trace of the iterates.
package mlem

// DefaultEps is the default guard threshold for elementwise divisions and
// for the prediction denominator floor in the MLEM update.
const DefaultEps = 1e-20

// SafeRatio computes the elementwise ratio x/y with a near-zero guard on the
// numerator: r[i] = x[i]/y[i] wherever |x[i]| > eps, and r[i] = 0 otherwise.
// Treating 0/0 as 0 rather than NaN preserves the nonnegativity and
// finiteness invariants the iteration and the dual certificate rely on,
// e.g. for unmeasured detector bins. The function is total: it never
// raises for any real inputs. Both slices must have the same length.
func SafeRatio(x, y []float64, eps float64) []float64 {
	if eps <= 0 {
		eps = DefaultEps
	}
	r := make([]float64, len(x))
	for i := range x {
		if x[i] > eps || x[i] < -eps {
			r[i] = x[i] / y[i]
		}
	}
	return r
}
