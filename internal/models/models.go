package models

// CertificateAttempt records one certification try at a given scaling
type CertificateAttempt struct {
	// Scaling is the shift scaling constant used for the attempt
	Scaling float64 `yaml:"scaling"`

	// Outcome is the stable outcome code: CERTIFIED, INFEASIBLE or
	// NON_POSITIVE_DUAL
	Outcome string `yaml:"outcome"`

	// DualObjective is the dual objective value; omitted for
	// infeasible attempts where it is not meaningful
	DualObjective float64 `yaml:"dualObjective,omitempty"`

	// MinAdjoint is the smallest component of the adjoint of the
	// shifted dual variable
	MinAdjoint float64 `yaml:"minAdjoint"`
}

// RunRecord summarizes one reconstruction run at a single noise level
type RunRecord struct {
	// NoiseCounts is the photon-count level used for the Poisson draw
	NoiseCounts float64 `yaml:"noiseCounts"`

	// Iterations is the number of MLEM steps performed
	Iterations int `yaml:"iterations"`

	// FinalDivergence is the last entry of the divergence trace
	FinalDivergence float64 `yaml:"finalDivergence"`

	// FinalQuantile is the last entry of the quantile trace
	FinalQuantile float64 `yaml:"finalQuantile"`

	// NonFiniteDivergences lists iteration indices whose divergence
	// was not finite, if any
	NonFiniteDivergences []int `yaml:"nonFiniteDivergences,omitempty"`

	// Certificate lists the escalation attempts in order
	Certificate []CertificateAttempt `yaml:"certificate"`

	// Certified reports whether any attempt proved sparsity
	Certified bool `yaml:"certified"`
}

// ExperimentSummary aggregates all runs of one experiment for the
// results file
type ExperimentSummary struct {
	// Phantom is the synthetic object kind that was reconstructed
	Phantom string `yaml:"phantom"`

	// Seed is the noise seed the runs used
	Seed uint64 `yaml:"seed"`

	// Runs holds one record per noise level, in sweep order
	Runs []RunRecord `yaml:"runs"`
}
