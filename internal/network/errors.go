package network

import "errors"

// Sentinel errors returned by parameter validation. Validate wraps them with
// the offending field so callers can match with errors.Is and still print a
// useful message.
var (
	// ErrEmptyNetwork is returned when no internal population is declared.
	ErrEmptyNetwork = errors.New("network: no populations")

	// ErrBadSize is returned when a population size is not positive.
	ErrBadSize = errors.New("network: population size must be > 0")

	// ErrLengthMismatch is returned when a per-population parameter list does
	// not have one entry per population.
	ErrLengthMismatch = errors.New("network: parameter length mismatch")

	// ErrBadShape is returned when a strength matrix has the wrong shape.
	ErrBadShape = errors.New("network: invalid strength matrix shape")

	// ErrInvalidRate is returned for a non-positive external Poisson rate.
	ErrInvalidRate = errors.New("network: external rate must be > 0")

	// ErrInvalidInDegree is returned for a non-positive mean in-degree K.
	ErrInvalidInDegree = errors.New("network: mean in-degree K must be > 0")

	// ErrInvalidDelay is returned for a negative transmission delay tau.
	ErrInvalidDelay = errors.New("network: transmission delay must be >= 0")

	// ErrInvalidNeuronParam is returned for a non-positive drive or leak.
	ErrInvalidNeuronParam = errors.New("network: drive and leak must be > 0")

	// ErrNonFinite is returned when any parameter is NaN or infinite.
	ErrNonFinite = errors.New("network: NaN or Inf parameter")

	// ErrOutOfRange is returned by layout lookups for an index outside the layout.
	ErrOutOfRange = errors.New("network: neuron index out of range")
)
