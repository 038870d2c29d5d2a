// Package constants provides named constants used throughout the sparsenet codebase.
// This centralizes magic numbers for better maintainability and documentation.
package constants

// Phase dynamics constants
const (
	// Threshold is the phase at which a neuron fires and is reset to zero.
	Threshold = 1.0

	// SentinelPhase is the phase assigned to a neuron whose incoming potential
	// jump saturates the logarithm in the phase update. It is above Threshold,
	// so the neuron fires on the next scheduling step rather than the current one.
	SentinelPhase = 1.1
)

// Output buffering constants
const (
	// DefaultMemoryBudget is the default number of bytes the output tables may
	// occupy before they are flushed to disk (1.5 GB).
	DefaultMemoryBudget int64 = 1_500_000_000

	// BytesPerValue is the size of one stored table cell (float64).
	BytesPerValue = 8

	// ParametersFile is the name of the serialized parameter record in a run directory.
	ParametersFile = "parameters.yaml"

	// ManifestFile lists the artifacts of a run with their checksums.
	ManifestFile = "manifest.json"

	// TraceFile receives the JSONL step trace at debug/trace log level.
	TraceFile = "trace.jsonl"

	// ArtifactExt is the file extension of persisted tables (Arrow IPC file format).
	ArtifactExt = ".arrow"

	// CatalogFile is the SQLite run catalog kept in the parent of run directories.
	CatalogFile = "catalog.db"
)

// Run defaults used by the CLI and the default configuration.
const (
	// DefaultDuration is the default simulated time of a run, in units of the
	// free-running period.
	DefaultDuration = 8.0

	// DefaultOutputDir is the default run directory.
	DefaultOutputDir = "out_example"

	// DefaultSeed seeds both generators when no seed is configured.
	DefaultSeed int64 = 1
)
