package output

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/nvandessel/sparsenet/internal/constants"
	"github.com/nvandessel/sparsenet/internal/pathutil"
)

// ManifestVersion is the current manifest format.
const ManifestVersion = 1

// ErrManifestVersion is returned when reading a manifest of an unknown format.
var ErrManifestVersion = errors.New("output: unsupported manifest version")

// Manifest describes a completed run directory.
type Manifest struct {
	Version   int       `json:"version"`
	RunID     string    `json:"run_id"`
	CreatedAt time.Time `json:"created_at"`

	Neurons   int     `json:"neurons"`
	Duration  float64 `json:"duration"`
	FinalTime float64 `json:"final_time"`
	Steps     int     `json:"steps"`

	// Spikes counts every emitted spike. Delivered counts those written to
	// the spike artifacts; spikes still in flight at the end are not.
	Spikes    int `json:"spikes"`
	Delivered int `json:"delivered"`

	ConnectivitySeed int64 `json:"connectivity_seed"`
	DynamicsSeed     int64 `json:"dynamics_seed"`

	Artifacts []Artifact `json:"artifacts"`
}

// WriteManifest writes m as dir/manifest.json.
func WriteManifest(dir string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(filepath.Join(dir, constants.ManifestFile), data, 0o644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

// ReadManifest loads dir/manifest.json.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, constants.ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if m.Version != ManifestVersion {
		return nil, fmt.Errorf("version %d: %w", m.Version, ErrManifestVersion)
	}
	return &m, nil
}

// Mismatch is an artifact whose file does not match the manifest.
type Mismatch struct {
	Name     string `json:"name"`
	Expected string `json:"expected"`
	Actual   string `json:"actual,omitempty"`
	Missing  bool   `json:"missing,omitempty"`
}

// Verify recomputes the checksum of every artifact listed in dir's manifest.
// An empty mismatch list means the run directory is intact.
func Verify(dir string) (*Manifest, []Mismatch, error) {
	m, err := ReadManifest(dir)
	if err != nil {
		return nil, nil, err
	}

	var bad []Mismatch
	for _, a := range m.Artifacts {
		path, err := pathutil.ResolveIn(dir, a.Name)
		if err != nil {
			return m, nil, fmt.Errorf("manifest artifact: %w", err)
		}
		sum, err := FileChecksum(path)
		if errors.Is(err, os.ErrNotExist) {
			bad = append(bad, Mismatch{Name: a.Name, Expected: a.Checksum, Missing: true})
			continue
		}
		if err != nil {
			return m, nil, err
		}
		if sum != a.Checksum {
			bad = append(bad, Mismatch{Name: a.Name, Expected: a.Checksum, Actual: sum})
		}
	}
	return m, bad, nil
}

// FileChecksum returns the "sha256:<hex>" checksum of a file.
func FileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", filepath.Base(path), err)
	}
	return checksum(h), nil
}
