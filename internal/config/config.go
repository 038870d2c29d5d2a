// Package config loads and validates sparsenet run configuration.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nvandessel/sparsenet/internal/constants"
	"github.com/nvandessel/sparsenet/internal/network"
)

// RunConfig represents a complete run configuration.
type RunConfig struct {
	// Network holds the population structure and connection strengths.
	Network network.Params `json:"network" yaml:"network"`

	// Run holds the simulated duration and seeds.
	Run RunSettings `json:"run" yaml:"run"`

	// Output controls where and how trajectories are written.
	Output OutputConfig `json:"output" yaml:"output"`

	// Logging controls log verbosity and step tracing.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// RunSettings controls a single simulation run.
type RunSettings struct {
	// Duration is the simulated time to run for, in units of the free period.
	Duration float64 `json:"duration" yaml:"duration"`

	// Seed seeds both random generators unless overridden below.
	Seed int64 `json:"seed" yaml:"seed"`

	// ConnectivitySeed overrides Seed for the weight matrix.
	ConnectivitySeed *int64 `json:"connectivity_seed,omitempty" yaml:"connectivity_seed,omitempty"`

	// DynamicsSeed overrides Seed for initial phases and Poisson arrivals.
	DynamicsSeed *int64 `json:"dynamics_seed,omitempty" yaml:"dynamics_seed,omitempty"`
}

// Seeds returns the effective connectivity and dynamics seeds.
func (r RunSettings) Seeds() (connectivity, dynamics int64) {
	connectivity, dynamics = r.Seed, r.Seed
	if r.ConnectivitySeed != nil {
		connectivity = *r.ConnectivitySeed
	}
	if r.DynamicsSeed != nil {
		dynamics = *r.DynamicsSeed
	}
	return connectivity, dynamics
}

// OutputConfig controls artifact output.
type OutputConfig struct {
	// Dir is the run directory. ${VAR} references are expanded.
	Dir string `json:"dir" yaml:"dir"`

	// MemoryBudget bounds the bytes held by the phase and spike tables
	// before they are flushed to disk.
	MemoryBudget int64 `json:"memory_budget" yaml:"memory_budget"`

	// Catalog registers finished runs in the SQLite catalog of the parent directory.
	Catalog bool `json:"catalog" yaml:"catalog"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level sets the logging verbosity: "info" (default), "debug", or "trace".
	// At "debug" and above every scheduler step is written to trace.jsonl.
	Level string `json:"level" yaml:"level"`
}

// Default returns a RunConfig with the reference two-population network.
func Default() *RunConfig {
	return &RunConfig{
		Network: network.DefaultParams(),
		Run: RunSettings{
			Duration: constants.DefaultDuration,
			Seed:     constants.DefaultSeed,
		},
		Output: OutputConfig{
			Dir:          constants.DefaultOutputDir,
			MemoryBudget: constants.DefaultMemoryBudget,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from path (if non-empty) and environment variables.
// Order: defaults -> path -> environment variables
func Load(path string) (*RunConfig, error) {
	config := Default()

	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		config = fileConfig
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file. Fields absent
// from the file keep their defaults.
func LoadFromFile(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.Output.Dir = expandEnvVars(config.Output.Dir)

	return config, nil
}

// Save writes the configuration as YAML, creating parent directories.
func (c *RunConfig) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c *RunConfig) Validate() error {
	if err := c.Network.Validate(); err != nil {
		return fmt.Errorf("network: %w", err)
	}

	if !(c.Run.Duration > 0) || math.IsInf(c.Run.Duration, 1) {
		return fmt.Errorf("duration must be a positive finite number, got %g", c.Run.Duration)
	}

	if c.Output.Dir == "" {
		return fmt.Errorf("output dir must be set")
	}
	if c.Output.MemoryBudget <= 0 {
		return fmt.Errorf("memory_budget must be positive, got %d", c.Output.MemoryBudget)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Numeric overrides that do not parse are errors.
func applyEnvOverrides(config *RunConfig) error {
	if v := os.Getenv("SPARSENET_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}

	if v := os.Getenv("SPARSENET_OUTPUT_DIR"); v != "" {
		config.Output.Dir = expandEnvVars(v)
	}

	if v := os.Getenv("SPARSENET_SEED"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("SPARSENET_SEED: %w", err)
		}
		config.Run.Seed = n
	}

	if v := os.Getenv("SPARSENET_DURATION"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("SPARSENET_DURATION: %w", err)
		}
		config.Run.Duration = f
	}

	if v := os.Getenv("SPARSENET_MEMORY_BUDGET"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("SPARSENET_MEMORY_BUDGET: %w", err)
		}
		config.Output.MemoryBudget = n
	}

	return nil
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
