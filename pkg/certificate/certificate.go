// Package certificate verifies sparsity of a reconstructed image through
// convex duality: it builds a candidate dual-feasible variable from the
// reconstruction and the observed data, checks feasibility, and evaluates
// the dual objective. A strictly positive objective proves the noisy data
// lies outside the operator's image, which is a sufficient condition for
// the maximum-likelihood solution to have exact structural zeros.
package certificate

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"tomosparse/pkg/mlem"
	"tomosparse/pkg/tomo"
)

// Outcome is the decision reached by Certify. Exactly one outcome is
// produced for every well-shaped nonnegative input; a failed certification
// is an expected negative result, never an error.
type Outcome int

const (
	// Certified means the dual objective is strictly positive: sparsity
	// of the likelihood-maximizing solution is proven.
	Certified Outcome = iota

	// Infeasible means the shifted dual variable still has a negative
	// adjoint component. The caller is expected to retry with a larger
	// scaling; this package never retries itself.
	Infeasible

	// NonPositiveDual means the candidate was feasible but its objective
	// was not strictly positive: no certificate at this scaling and
	// iteration count. Distinguished from Infeasible so callers can pick
	// between escalating the scaling and running more iterations.
	NonPositiveDual
)

// String returns the stable code for the outcome.
func (o Outcome) String() string {
	switch o {
	case Certified:
		return "CERTIFIED"
	case Infeasible:
		return "INFEASIBLE"
	case NonPositiveDual:
		return "NON_POSITIVE_DUAL"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Result is the full decision record of one certification attempt.
type Result struct {
	// Outcome is the decision.
	Outcome Outcome

	// DualObjective is sum_i data[i]*log(1-lambda[i]) for the shifted
	// dual variable. Only meaningful for Certified and NonPositiveDual.
	DualObjective float64

	// MinAdjoint is the smallest component of the adjoint of the shifted
	// dual variable. Negative exactly when the outcome is Infeasible.
	MinAdjoint float64

	// Scaling is the shift scaling constant the attempt used.
	Scaling float64
}

// Certified reports whether the attempt proved sparsity.
func (r Result) Certified() bool {
	return r.Outcome == Certified
}

// Certify attempts to prove that the observed data cannot be exactly
// explained by any nonnegative image in the operator's domain, using the
// reconstruction reco as the anchor of the dual construction:
//
//	lambda  = 1 - SafeRatio(data, apply(reco))
//	lambda' = lambda - scaling * min(adjoint(lambda)) / min(adjoint(ones))
//
// If adjoint(lambda') has a negative component the candidate is infeasible.
// Otherwise the dual objective sum(data * log(1-lambda')) decides between
// Certified (> 0) and NonPositiveDual, using the 0*log convention for zero
// data bins.
//
// scaling must lie in (0, 1]; the conventional starting point is 0.5, and
// escalation toward 1.0 on an Infeasible outcome is caller policy. At
// scaling 1.0 the shift makes the candidate feasible whenever the unshifted
// minimum is negative, so escalation always terminates. eps <= 0 selects
// the default division guard.
//
// Errors are reserved for precondition violations: shape mismatches, a
// scaling outside (0, 1], or a degenerate sensitivity map.
func Certify(op tomo.Operator, reco tomo.Image, data tomo.Sinogram, scaling, eps float64) (Result, error) {
	if scaling <= 0 || scaling > 1 {
		return Result{}, fmt.Errorf("certificate: scaling must be in (0,1], got %g", scaling)
	}
	if reco.Grid != op.Domain() {
		return Result{}, fmt.Errorf("certificate: reconstruction grid %v does not match operator domain %v", reco.Grid, op.Domain())
	}
	if data.Grid != op.Range() {
		return Result{}, fmt.Errorf("certificate: data grid %v does not match operator range %v", data.Grid, op.Range())
	}
	if err := data.Grid.Check(data.Data); err != nil {
		return Result{}, fmt.Errorf("certificate: invalid data: %v", err)
	}

	predicted, err := op.Apply(reco)
	if err != nil {
		return Result{}, fmt.Errorf("certificate: forward projection failed: %v", err)
	}

	ratio := mlem.SafeRatio(data.Data, predicted.Data, eps)
	lambda := tomo.NewSinogram(op.Range())
	for i := range lambda.Data {
		lambda.Data[i] = 1 - ratio[i]
	}

	adjLambda, err := op.Adjoint(lambda)
	if err != nil {
		return Result{}, fmt.Errorf("certificate: adjoint of dual candidate failed: %v", err)
	}
	m1 := floats.Min(adjLambda.Data)

	sensitivity, err := op.Adjoint(tomo.OnesSinogram(op.Range()))
	if err != nil {
		return Result{}, fmt.Errorf("certificate: adjoint of ones failed: %v", err)
	}
	m2 := floats.Min(sensitivity.Data)
	if m2 <= 0 {
		return Result{}, fmt.Errorf("certificate: degenerate sensitivity map, min(adjoint(ones)) = %g", m2)
	}

	shift := scaling * m1 / m2
	shifted := tomo.NewSinogram(op.Range())
	for i := range shifted.Data {
		shifted.Data[i] = lambda.Data[i] - shift
	}

	adjShifted, err := op.Adjoint(shifted)
	if err != nil {
		return Result{}, fmt.Errorf("certificate: adjoint of shifted candidate failed: %v", err)
	}
	minAdj := floats.Min(adjShifted.Data)

	if minAdj < 0 {
		return Result{
			Outcome:       Infeasible,
			DualObjective: math.NaN(),
			MinAdjoint:    minAdj,
			Scaling:       scaling,
		}, nil
	}

	var objective float64
	for i, a := range data.Data {
		if a == 0 {
			continue
		}
		objective += a * math.Log(1-shifted.Data[i])
	}

	outcome := NonPositiveDual
	if objective > 0 {
		outcome = Certified
	}
	return Result{
		Outcome:       outcome,
		DualObjective: objective,
		MinAdjoint:    minAdj,
		Scaling:       scaling,
	}, nil
}
