package mlem

import (
	"fmt"

	"tomosparse/pkg/tomo"
)

// Step is one emitted state of the iteration: the estimate before the k-th
// update, paired with its own forward projection. Diagnostics must use this
// pairing, so the divergence at step k measures the fit of the estimate
// that was actually emitted.
type Step struct {
	// Estimate is the current image estimate. It is a fresh allocation for
	// every step and is never mutated after being emitted.
	Estimate tomo.Image

	// Predicted is the forward projection of Estimate.
	Predicted tomo.Sinogram

	// Index is the iteration index, starting at 0 for the initial estimate.
	Index int
}

// Iterator produces the MLEM multiplicative-update sequence for the problem
//
//	argmax_{x >= 0} L(x; data)
//
// where L is the Poisson log-likelihood under the forward model op.Apply(x).
// The sequence is one-shot: it runs for exactly the configured number of
// iterations and cannot be restarted; re-running requires a fresh Iterator
// with the same initial estimate. Each step is deterministic given the
// operator, the sensitivity map and the observed data.
//
// Usage follows the scanner pattern:
//
//	it, err := mlem.NewIterator(op, x0, data, 100, 0)
//	for it.Next() {
//		step := it.Step()
//		...
//	}
//	if err := it.Err(); err != nil { ... }
//
// A caller may stop consuming at any step boundary; no step has partial
// side effects.
type Iterator struct {
	op   tomo.Operator
	data tomo.Sinogram

	// sensitivity is adjoint(ones), computed once and held constant. It
	// normalizes every update and must be strictly positive wherever the
	// estimate is nonzero; this is a caller precondition in well-posed
	// geometries, not something the iteration can recover from.
	sensitivity tomo.Image

	estimate   tomo.Image
	iterations int
	eps        float64

	k   int
	cur Step
	err error
}

// NewIterator validates the inputs and prepares an MLEM iteration.
//
// x0 must be nonnegative, and strictly positive wherever the sensitivity map
// is positive: a pixel started at zero is permanently locked at zero by the
// multiplicative update. This is documented boundary behavior, not a bug.
// data must be nonnegative. eps floors the prediction denominator in the
// update; values <= 0 select DefaultEps.
func NewIterator(op tomo.Operator, x0 tomo.Image, data tomo.Sinogram, iterations int, eps float64) (*Iterator, error) {
	if iterations <= 0 {
		return nil, fmt.Errorf("mlem: iterations must be positive, got %d", iterations)
	}
	if x0.Grid != op.Domain() {
		return nil, fmt.Errorf("mlem: initial estimate grid %v does not match operator domain %v", x0.Grid, op.Domain())
	}
	if err := x0.Grid.Check(x0.Data); err != nil {
		return nil, fmt.Errorf("mlem: invalid initial estimate: %v", err)
	}
	if data.Grid != op.Range() {
		return nil, fmt.Errorf("mlem: data grid %v does not match operator range %v", data.Grid, op.Range())
	}
	if err := data.Grid.Check(data.Data); err != nil {
		return nil, fmt.Errorf("mlem: invalid data: %v", err)
	}
	for i, v := range x0.Data {
		if v < 0 {
			return nil, fmt.Errorf("mlem: initial estimate has negative entry %g at index %d", v, i)
		}
	}
	for i, v := range data.Data {
		if v < 0 {
			return nil, fmt.Errorf("mlem: data has negative entry %g at index %d", v, i)
		}
	}
	if eps <= 0 {
		eps = DefaultEps
	}

	sensitivity, err := op.Adjoint(tomo.OnesSinogram(op.Range()))
	if err != nil {
		return nil, fmt.Errorf("mlem: failed to compute sensitivity map: %v", err)
	}

	return &Iterator{
		op:          op,
		data:        data,
		sensitivity: sensitivity,
		estimate:    x0.Clone(),
		iterations:  iterations,
		eps:         eps,
	}, nil
}

// Sensitivity returns the sensitivity map adjoint(ones) used to normalize
// the update.
func (it *Iterator) Sensitivity() tomo.Image {
	return it.sensitivity
}

// Next advances the iteration by one step. It returns false once the
// configured iteration count is reached or an operator error occurred;
// check Err afterwards to distinguish the two.
func (it *Iterator) Next() bool {
	if it.err != nil || it.k >= it.iterations {
		return false
	}

	predicted, err := it.op.Apply(it.estimate)
	if err != nil {
		it.err = fmt.Errorf("mlem: forward projection failed at step %d: %v", it.k, err)
		return false
	}
	it.cur = Step{Estimate: it.estimate, Predicted: predicted, Index: it.k}

	// Multiplicative update:
	//   x' = (x / sensitivity) * adjoint( data / max(predicted, eps) )
	// The denominator floor handles numerically zero predictions; the
	// SafeRatio guard independently handles zero data bins. Both are needed.
	floored := make([]float64, len(predicted.Data))
	for i, v := range predicted.Data {
		if v < it.eps {
			v = it.eps
		}
		floored[i] = v
	}
	ratio := tomo.Sinogram{Grid: it.data.Grid, Data: SafeRatio(it.data.Data, floored, it.eps)}

	back, err := it.op.Adjoint(ratio)
	if err != nil {
		it.err = fmt.Errorf("mlem: backprojection failed at step %d: %v", it.k, err)
		return false
	}

	scaled := SafeRatio(it.cur.Estimate.Data, it.sensitivity.Data, it.eps)
	next := tomo.NewImage(it.estimate.Grid)
	for i := range next.Data {
		next.Data[i] = scaled[i] * back.Data[i]
	}

	it.estimate = next
	it.k++
	return true
}

// Step returns the state emitted by the last successful call to Next.
func (it *Iterator) Step() Step {
	return it.cur
}

// Err returns the first operator error encountered, if any.
func (it *Iterator) Err() error {
	return it.err
}

// Run materializes the full iteration history: one Step per iteration, in
// order. It is a convenience for callers that want the complete sequence
// for diagnostics rather than incremental consumption.
func Run(op tomo.Operator, x0 tomo.Image, data tomo.Sinogram, iterations int, eps float64) ([]Step, error) {
	it, err := NewIterator(op, x0, data, iterations, eps)
	if err != nil {
		return nil, err
	}
	history := make([]Step, 0, iterations)
	for it.Next() {
		history = append(history, it.Step())
	}
	return history, it.Err()
}
