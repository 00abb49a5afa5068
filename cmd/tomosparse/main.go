package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"tomosparse/internal/models"
	"tomosparse/pkg/certificate"
	"tomosparse/pkg/config"
	"tomosparse/pkg/mlem"
	"tomosparse/pkg/phantom"
	"tomosparse/pkg/projection"
	"tomosparse/pkg/tomo"
	"tomosparse/pkg/visualization"
)

func main() {
	configPath := flag.String("config", "tomosparse.yaml", "Path to the experiment configuration file")
	outputDir := flag.String("output", "", "Output directory (overrides config)")
	iterations := flag.Int("iterations", 0, "Number of MLEM iterations (overrides config)")
	seed := flag.Uint64("seed", 0, "Noise seed (overrides config)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *outputDir != "" {
		cfg.Output.Dir = *outputDir
	}
	if *iterations > 0 {
		cfg.Reconstruction.Iterations = *iterations
	}
	if *seed != 0 {
		cfg.Experiment.Seed = *seed
	}

	fmt.Println("================================")
	fmt.Println("TOMOSPARSE: MLEM RECONSTRUCTION WITH SPARSITY CERTIFICATION")
	fmt.Println("================================")

	if err := run(cfg); err != nil {
		log.Fatalf("Experiment failed: %v", err)
	}
}

func run(cfg *config.Config) error {
	geom := projection.Geometry{
		Size:            cfg.Geometry.Size,
		NumAngles:       cfg.Geometry.NumAngles,
		NumDetectors:    cfg.Geometry.NumDetectors,
		DetectorSpacing: cfg.Geometry.DetectorSpacing,
		StepSize:        cfg.Geometry.StepSize,
	}
	op, err := projection.NewParallelBeam(geom)
	if err != nil {
		return fmt.Errorf("failed to create projection operator: %v", err)
	}

	source, err := phantom.New(cfg.Experiment.Phantom, op.Domain())
	if err != nil {
		return fmt.Errorf("failed to create phantom: %v", err)
	}

	clean, err := op.Apply(source)
	if err != nil {
		return fmt.Errorf("failed to project phantom: %v", err)
	}

	if err := os.MkdirAll(cfg.Output.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %v", err)
	}
	if cfg.Output.SaveImages {
		if err := visualization.SaveImagePNG(source, filepath.Join(cfg.Output.Dir, "phantom.png")); err != nil {
			fmt.Printf("Warning: Failed to save phantom image: %v\n", err)
		}
		if err := visualization.SaveSinogramPNG(clean, filepath.Join(cfg.Output.Dir, "sinogram_clean.png")); err != nil {
			fmt.Printf("Warning: Failed to save clean sinogram: %v\n", err)
		}
	}

	summary := models.ExperimentSummary{
		Phantom: cfg.Experiment.Phantom,
		Seed:    cfg.Experiment.Seed,
	}

	for _, counts := range cfg.Experiment.NoiseCounts {
		record, err := runNoiseLevel(cfg, op, clean, counts)
		if err != nil {
			return fmt.Errorf("run at counts=%g failed: %v", counts, err)
		}
		summary.Runs = append(summary.Runs, record)
	}

	printSummary(summary)

	data, err := yaml.Marshal(&summary)
	if err != nil {
		return fmt.Errorf("failed to marshal results: %v", err)
	}
	resultsPath := filepath.Join(cfg.Output.Dir, "results.yaml")
	if err := os.WriteFile(resultsPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write results file: %v", err)
	}
	fmt.Printf("\nResults written to: %s\n", resultsPath)
	return nil
}

// runNoiseLevel reconstructs one noisy realization of the clean sinogram
// and attempts to certify sparsity of the result.
func runNoiseLevel(cfg *config.Config, op tomo.Operator, clean tomo.Sinogram, counts float64) (models.RunRecord, error) {
	fmt.Printf("\n--- Noise level: %g counts ---\n", counts)

	data, err := phantom.AddPoissonNoise(clean, counts, cfg.Experiment.Seed)
	if err != nil {
		return models.RunRecord{}, err
	}

	levelDir := filepath.Join(cfg.Output.Dir, fmt.Sprintf("counts_%g", counts))
	if cfg.Output.SaveImages {
		if err := visualization.SaveSinogramPNG(data, filepath.Join(levelDir, "sinogram_noisy.png")); err != nil {
			fmt.Printf("Warning: Failed to save noisy sinogram: %v\n", err)
		}
	}

	start := time.Now()
	history, err := mlem.Run(op, tomo.OnesImage(op.Domain()), data, cfg.Reconstruction.Iterations, cfg.Reconstruction.Eps)
	if err != nil {
		return models.RunRecord{}, err
	}
	if cfg.Output.Verbose {
		fmt.Printf("MLEM: %d iterations in %.2f seconds\n", len(history), time.Since(start).Seconds())
	}

	divTrace, nonFinite, err := mlem.DivergenceTrace(history, data.Data, cfg.Reconstruction.DiscardFirst)
	if err != nil {
		return models.RunRecord{}, err
	}
	for _, idx := range nonFinite {
		fmt.Printf("Warning: Non-finite divergence at iteration %d\n", idx)
	}

	quantTrace, err := mlem.QuantileTrace(history, cfg.Reconstruction.Quantile)
	if err != nil {
		return models.RunRecord{}, err
	}

	final := history[len(history)-1].Estimate
	if cfg.Output.SaveImages {
		if err := visualization.SaveImagePNG(final, filepath.Join(levelDir, "reconstruction.png")); err != nil {
			fmt.Printf("Warning: Failed to save reconstruction: %v\n", err)
		}
	}
	if cfg.Output.SavePlots {
		divStart := 0
		if cfg.Reconstruction.DiscardFirst {
			divStart = 1
		}
		if err := visualization.SaveTracePlot(divTrace, divStart, "KL divergence to data", "divergence", filepath.Join(levelDir, "divergence.png")); err != nil {
			fmt.Printf("Warning: Failed to save divergence plot: %v\n", err)
		}
		label := fmt.Sprintf("q%.2f", cfg.Reconstruction.Quantile)
		if err := visualization.SaveTracePlot(quantTrace, 0, "Estimate quantile", label, filepath.Join(levelDir, "quantile.png")); err != nil {
			fmt.Printf("Warning: Failed to save quantile plot: %v\n", err)
		}
	}

	record := models.RunRecord{
		NoiseCounts:          counts,
		Iterations:           len(history),
		FinalDivergence:      divTrace[len(divTrace)-1],
		FinalQuantile:        quantTrace[len(quantTrace)-1],
		NonFiniteDivergences: nonFinite,
	}

	// Escalate the shift scaling until the dual variable is feasible.
	// Retrying is driver policy; the verifier itself never retries.
	for _, scaling := range cfg.Certificate.Scalings {
		res, err := certificate.Certify(op, final, data, scaling, cfg.Certificate.Eps)
		if err != nil {
			return models.RunRecord{}, err
		}
		attempt := models.CertificateAttempt{
			Scaling:    scaling,
			Outcome:    res.Outcome.String(),
			MinAdjoint: res.MinAdjoint,
		}
		if !math.IsNaN(res.DualObjective) {
			attempt.DualObjective = res.DualObjective
		}
		record.Certificate = append(record.Certificate, attempt)

		if cfg.Output.Verbose {
			fmt.Printf("Certificate at scaling %.2f: %s\n", scaling, res.Outcome)
		}
		if res.Outcome != certificate.Infeasible {
			record.Certified = res.Certified()
			break
		}
	}

	return record, nil
}

func printSummary(summary models.ExperimentSummary) {
	fmt.Printf("\nExperiment summary (phantom: %s, seed: %d)\n", summary.Phantom, summary.Seed)
	fmt.Println("=============================================")
	fmt.Printf("%-12s %-12s %-16s %-10s\n", "counts", "iterations", "divergence", "certified")
	for _, r := range summary.Runs {
		fmt.Printf("%-12g %-12d %-16.6g %-10v\n", r.NoiseCounts, r.Iterations, r.FinalDivergence, r.Certified)
	}
}
