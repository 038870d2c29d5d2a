// Package network holds the typed parameter set of a simulated network and the
// population layout derived from it.
//
// A network consists of internal populations of leaky integrate-and-fire
// neurons and external populations of Poisson sources. Populations occupy
// contiguous, ordered blocks of the neuron index range; the boundaries are
// computed once into a Layout and reused for every neuron-to-population lookup.
package network

import (
	"fmt"
	"math"
)

// Params is the complete, validated description of a network.
//
// Strength matrices are indexed [target][source]: JInt[k][l] is the potential
// jump a neuron of population k receives when a connected neuron of population
// l fires, and JExt[k][m] is the jump from external population m.
type Params struct {
	// Sizes is the number of neurons in each internal population.
	Sizes []int `json:"sizes" yaml:"sizes"`

	// Drive is the current-like drive I of each population.
	Drive []float64 `json:"drive" yaml:"drive"`

	// Leak is the leak factor gamma of each population.
	Leak []float64 `json:"leak" yaml:"leak"`

	// JInt is the internal connection-strength matrix (P x P).
	JInt [][]float64 `json:"j_int" yaml:"j_int"`

	// ExtSizes is the number of neurons in each external population.
	ExtSizes []int `json:"ext_sizes,omitempty" yaml:"ext_sizes,omitempty"`

	// JExt is the external connection-strength matrix (P x Q).
	JExt [][]float64 `json:"j_ext,omitempty" yaml:"j_ext,omitempty"`

	// Rates holds one Poisson rate per external population.
	Rates []float64 `json:"rates,omitempty" yaml:"rates,omitempty"`

	// K is the mean number of connections a neuron receives from each population.
	K float64 `json:"k" yaml:"k"`

	// Tau is the internal spike transmission delay.
	Tau float64 `json:"tau" yaml:"tau"`
}

// DefaultParams returns the two-population inhibitory example network driven
// by one external Poisson population.
func DefaultParams() Params {
	return Params{
		Sizes: []int{800, 800},
		Drive: []float64{4, 4},
		Leak:  []float64{1, 1},
		JInt: [][]float64{
			{-0.6, -0.3},
			{-0.3, -0.6},
		},
		ExtSizes: []int{800},
		JExt: [][]float64{
			{0.2},
			{0.2},
		},
		Rates: []float64{0.1},
		K:     26,
		Tau:   0.05,
	}
}

// Validate checks every field and returns the first violation, wrapped around
// one of the package sentinel errors.
func (p Params) Validate() error {
	np := len(p.Sizes)
	if np == 0 {
		return ErrEmptyNetwork
	}
	for i, n := range p.Sizes {
		if n <= 0 {
			return fmt.Errorf("sizes[%d]=%d: %w", i, n, ErrBadSize)
		}
	}

	if len(p.Drive) != np {
		return fmt.Errorf("drive has %d entries, want %d: %w", len(p.Drive), np, ErrLengthMismatch)
	}
	if len(p.Leak) != np {
		return fmt.Errorf("leak has %d entries, want %d: %w", len(p.Leak), np, ErrLengthMismatch)
	}
	for i := 0; i < np; i++ {
		if !finite(p.Drive[i]) || !finite(p.Leak[i]) {
			return fmt.Errorf("population %d: %w", i, ErrNonFinite)
		}
		if p.Drive[i] <= 0 || p.Leak[i] <= 0 {
			return fmt.Errorf("population %d: drive=%g leak=%g: %w", i, p.Drive[i], p.Leak[i], ErrInvalidNeuronParam)
		}
	}

	if err := checkMatrix("j_int", p.JInt, np, np); err != nil {
		return err
	}

	nq := len(p.ExtSizes)
	for i, n := range p.ExtSizes {
		if n <= 0 {
			return fmt.Errorf("ext_sizes[%d]=%d: %w", i, n, ErrBadSize)
		}
	}
	if len(p.Rates) != nq {
		return fmt.Errorf("rates has %d entries, want %d: %w", len(p.Rates), nq, ErrLengthMismatch)
	}
	for i, r := range p.Rates {
		if !finite(r) {
			return fmt.Errorf("rates[%d]: %w", i, ErrNonFinite)
		}
		if r <= 0 {
			return fmt.Errorf("rates[%d]=%g: %w", i, r, ErrInvalidRate)
		}
	}
	if nq > 0 || len(p.JExt) > 0 {
		if err := checkMatrix("j_ext", p.JExt, np, nq); err != nil {
			return err
		}
	}

	if !finite(p.K) {
		return fmt.Errorf("k: %w", ErrNonFinite)
	}
	if p.K <= 0 {
		return fmt.Errorf("k=%g: %w", p.K, ErrInvalidInDegree)
	}
	if !finite(p.Tau) {
		return fmt.Errorf("tau: %w", ErrNonFinite)
	}
	if p.Tau < 0 {
		return fmt.Errorf("tau=%g: %w", p.Tau, ErrInvalidDelay)
	}

	return nil
}

// Clone returns a deep copy so a persisted record cannot alias caller slices.
func (p Params) Clone() Params {
	out := p
	out.Sizes = append([]int(nil), p.Sizes...)
	out.Drive = append([]float64(nil), p.Drive...)
	out.Leak = append([]float64(nil), p.Leak...)
	out.JInt = cloneMatrix(p.JInt)
	out.ExtSizes = append([]int(nil), p.ExtSizes...)
	out.JExt = cloneMatrix(p.JExt)
	out.Rates = append([]float64(nil), p.Rates...)
	return out
}

// checkMatrix verifies an rows x cols strength matrix with finite entries.
// An all-empty matrix is accepted when cols is zero.
func checkMatrix(name string, m [][]float64, rows, cols int) error {
	if cols == 0 {
		for i, row := range m {
			if len(row) != 0 {
				return fmt.Errorf("%s[%d] has %d columns, want 0: %w", name, i, len(row), ErrBadShape)
			}
		}
		return nil
	}
	if len(m) != rows {
		return fmt.Errorf("%s has %d rows, want %d: %w", name, len(m), rows, ErrBadShape)
	}
	for i, row := range m {
		if len(row) != cols {
			return fmt.Errorf("%s[%d] has %d columns, want %d: %w", name, i, len(row), cols, ErrBadShape)
		}
		for j, v := range row {
			if !finite(v) {
				return fmt.Errorf("%s[%d][%d]: %w", name, i, j, ErrNonFinite)
			}
		}
	}
	return nil
}

func cloneMatrix(m [][]float64) [][]float64 {
	if m == nil {
		return nil
	}
	out := make([][]float64, len(m))
	for i, row := range m {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
