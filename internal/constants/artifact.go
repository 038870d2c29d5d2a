package constants

import "strconv"

// ArtifactKind identifies one of the two tables a run persists.
type ArtifactKind string

const (
	// ArtifactPhases holds one row per simulation step: time, then one phase per neuron.
	ArtifactPhases ArtifactKind = "phases"

	// ArtifactSpikes holds one row per delivered spike vector: arrival time, then
	// one 0/1 indicator per neuron.
	ArtifactSpikes ArtifactKind = "spikes"
)

// Valid returns true if the kind is a recognized value.
func (k ArtifactKind) Valid() bool {
	switch k {
	case ArtifactPhases, ArtifactSpikes:
		return true
	}
	return false
}

// String returns the string representation of the kind.
func (k ArtifactKind) String() string {
	return string(k)
}

// FileName returns the artifact file name for flush cycle n, e.g. "phases0.arrow".
func (k ArtifactKind) FileName(n int) string {
	return string(k) + strconv.Itoa(n) + ArtifactExt
}
