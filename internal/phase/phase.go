// Package phase implements the phase-response map of leaky integrate-and-fire
// neurons in phase representation.
//
// A neuron with drive I and leak gamma has potential U(phi) = (I/gamma)(1 - exp(-gamma*phi)).
// A potential jump eps moves it to H(phi) = U^-1(U(phi) + eps).
package phase

import (
	"math"

	"github.com/nvandessel/sparsenet/internal/constants"
	"github.com/nvandessel/sparsenet/internal/vecmath"
)

// Sentinel is returned when a jump drives the neuron past the range of U^-1.
// It lies above threshold, so the neuron fires on the next scheduling step.
const Sentinel = constants.SentinelPhase

// H returns the phase of a neuron at phase phi after a potential jump eps.
// Results above Sentinel are capped to Sentinel.
func H(phi, drive, leak, eps float64) float64 {
	arg := math.Exp(-leak*phi) - leak/drive*eps
	if arg <= 0 {
		return Sentinel
	}
	out := -math.Log(arg) / leak
	if out > Sentinel {
		return Sentinel
	}
	return out
}

// Apply replaces every phases[i] with H(phases[i], drive[i], leak[i], eps[i]).
// All slices must have the same length.
func Apply(phases, drive, leak, eps []float64) {
	vecmath.ForEachChunk(len(phases), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			phases[i] = H(phases[i], drive[i], leak[i], eps[i])
		}
	})
}
