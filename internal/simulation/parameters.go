package simulation

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nvandessel/sparsenet/internal/constants"
	"github.com/nvandessel/sparsenet/internal/network"
)

// ParametersVersion is the current parameter record format.
const ParametersVersion = 1

// Parameters is the record persisted at the start of every run. Readers use
// it to recover population boundaries and the delivery delay.
type Parameters struct {
	Version   int       `yaml:"version" json:"version"`
	RunID     string    `yaml:"run_id" json:"run_id"`
	CreatedAt time.Time `yaml:"created_at" json:"created_at"`

	Network network.Params `yaml:"network" json:"network"`

	Duration         float64 `yaml:"duration" json:"duration"`
	ConnectivitySeed int64   `yaml:"connectivity_seed" json:"connectivity_seed"`
	DynamicsSeed     int64   `yaml:"dynamics_seed" json:"dynamics_seed"`
	MemoryBudget     int64   `yaml:"memory_budget" json:"memory_budget"`
	Capacity         int     `yaml:"capacity" json:"capacity"`
}

// WriteParameters writes p as dir/parameters.yaml.
func WriteParameters(dir string, p *Parameters) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshaling parameters: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, constants.ParametersFile), data, 0o644); err != nil {
		return fmt.Errorf("writing parameters: %w", err)
	}
	return nil
}

// ReadParameters loads dir/parameters.yaml and validates the network it describes.
func ReadParameters(dir string) (*Parameters, error) {
	data, err := os.ReadFile(filepath.Join(dir, constants.ParametersFile))
	if err != nil {
		return nil, fmt.Errorf("reading parameters: %w", err)
	}
	var p Parameters
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing parameters: %w", err)
	}
	if p.Version != ParametersVersion {
		return nil, fmt.Errorf("unsupported parameters version %d", p.Version)
	}
	if err := p.Network.Validate(); err != nil {
		return nil, fmt.Errorf("parameters: %w", err)
	}
	return &p, nil
}

// ParamsHash identifies a network configuration: runs with equal hashes share
// populations, strengths, rates, K and tau.
func ParamsHash(p network.Params) (string, error) {
	data, err := yaml.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshaling network parameters: %w", err)
	}
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}
