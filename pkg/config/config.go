// Package config provides configuration loading and management for
// tomosparse experiments. It handles loading configuration from YAML files
// and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the experiment configuration loaded from YAML
type Config struct {
	// Acquisition geometry for the parallel-beam operator
	Geometry struct {
		// Size is the side length of the square image in pixels
		Size int `yaml:"size"`

		// NumAngles is the number of projection angles over [0, pi)
		NumAngles int `yaml:"numAngles"`

		// NumDetectors is the number of detector bins per angle
		NumDetectors int `yaml:"numDetectors"`

		// DetectorSpacing is the detector bin pitch in pixel units
		DetectorSpacing float64 `yaml:"detectorSpacing"`

		// StepSize is the ray sampling step in pixel units
		StepSize float64 `yaml:"stepSize"`
	} `yaml:"geometry"`

	// Reconstruction parameters for the MLEM iteration
	Reconstruction struct {
		// Iterations is the number of MLEM steps per run
		Iterations int `yaml:"iterations"`

		// Eps floors the prediction denominator in the update
		Eps float64 `yaml:"eps"`

		// Quantile is the percentile tracked by the quantile trace
		Quantile float64 `yaml:"quantile"`

		// DiscardFirst drops the pre-update pair from the divergence
		// trace when plotting
		DiscardFirst bool `yaml:"discardFirst"`
	} `yaml:"reconstruction"`

	// Certificate parameters for the sparsity verification
	Certificate struct {
		// Scalings is the escalation schedule of shift scalings tried
		// in order until the dual variable is feasible
		Scalings []float64 `yaml:"scalings"`

		// Eps guards the elementwise division in the dual construction
		Eps float64 `yaml:"eps"`
	} `yaml:"certificate"`

	// Experiment parameters
	Experiment struct {
		// Phantom selects the synthetic object: "disks" or "points"
		Phantom string `yaml:"phantom"`

		// NoiseCounts lists the photon-count levels to sweep; higher
		// counts means less relative noise
		NoiseCounts []float64 `yaml:"noiseCounts"`

		// Seed makes the Poisson draws reproducible
		Seed uint64 `yaml:"seed"`
	} `yaml:"experiment"`

	// Output parameters
	Output struct {
		// Dir is the directory for plots, images and the results file
		Dir string `yaml:"dir"`

		// SavePlots enables divergence and quantile trace plots
		SavePlots bool `yaml:"savePlots"`

		// SaveImages enables phantom/sinogram/reconstruction images
		SaveImages bool `yaml:"saveImages"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Geometry.Size = 64
	cfg.Geometry.NumAngles = 64
	cfg.Geometry.NumDetectors = 92
	cfg.Geometry.DetectorSpacing = 1.0
	cfg.Geometry.StepSize = 0.5

	cfg.Reconstruction.Iterations = 100
	cfg.Reconstruction.Eps = 1e-20
	cfg.Reconstruction.Quantile = 0.95
	cfg.Reconstruction.DiscardFirst = true

	cfg.Certificate.Scalings = []float64{0.5, 0.75, 0.9, 1.0}
	cfg.Certificate.Eps = 1e-20

	cfg.Experiment.Phantom = "points"
	cfg.Experiment.NoiseCounts = []float64{10, 100, 1000}
	cfg.Experiment.Seed = 42

	cfg.Output.Dir = "results"
	cfg.Output.SavePlots = true
	cfg.Output.SaveImages = true
	cfg.Output.Verbose = true

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}
