package mlem

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// DivergenceTrace computes the divergence between the observed data and each
// emitted prediction, in iteration order. discardFirst drops the pair at
// iteration 0, whose prediction reflects the initial guess rather than any
// refinement; this is a display convention, not a correctness requirement,
// so it is a parameter rather than a hardwired slice.
//
// The second return value lists the iteration indices whose divergence came
// out non-finite. Those entries are kept in the trace so it stays aligned
// with the iteration index; callers typically log them as warnings and plot
// the finite remainder.
func DivergenceTrace(history []Step, data []float64, discardFirst bool) ([]float64, []int, error) {
	steps := history
	if discardFirst && len(steps) > 0 {
		steps = steps[1:]
	}

	trace := make([]float64, 0, len(steps))
	var nonFinite []int
	for _, s := range steps {
		d, err := Divergence(data, s.Predicted.Data)
		if err != nil {
			if !errors.Is(err, ErrNonFinite) {
				return nil, nil, fmt.Errorf("divergence trace at iteration %d: %v", s.Index, err)
			}
			nonFinite = append(nonFinite, s.Index)
		}
		trace = append(trace, d)
	}
	return trace, nonFinite, nil
}

// QuantileTrace extracts the q-quantile of each emitted estimate as a scalar
// sequence aligned with the iteration index. The default convention in this
// system is q = 0.95, which tracks the reconstruction's bright pixels to
// detect blow-up or premature saturation; q is configurable in (0, 1).
func QuantileTrace(history []Step, q float64) ([]float64, error) {
	if q <= 0 || q >= 1 {
		return nil, fmt.Errorf("quantile must be in (0,1), got %g", q)
	}

	trace := make([]float64, len(history))
	for i, s := range history {
		sorted := make([]float64, len(s.Estimate.Data))
		copy(sorted, s.Estimate.Data)
		sort.Float64s(sorted)
		trace[i] = stat.Quantile(q, stat.Empirical, sorted, nil)
	}
	return trace, nil
}
