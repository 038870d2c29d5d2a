// Package poisson draws arrival times of external Poisson spike trains.
package poisson

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
)

// ErrInvalidRate is returned for a rate that is not a positive finite number.
var ErrInvalidRate = errors.New("poisson: rate must be a positive finite number")

// Source draws exponential inter-spike intervals from an injected generator.
// It is not safe for concurrent use; the scheduler owns one Source.
type Source struct {
	rng *rand.Rand
}

// NewSource returns a Source drawing from rng.
func NewSource(rng *rand.Rand) *Source {
	return &Source{rng: rng}
}

// Next returns the arrival time following now for a train with the given
// rate: now - ln(U)/rate with U uniform on (0, 1).
func (s *Source) Next(now, rate float64) (float64, error) {
	if !(rate > 0) || math.IsInf(rate, 1) {
		return 0, fmt.Errorf("rate=%g: %w", rate, ErrInvalidRate)
	}
	return now - math.Log(s.uniform())/rate, nil
}

// Initial draws the first arrival time after t=0 for every external neuron,
// given the rate of each neuron.
func (s *Source) Initial(rates []float64) ([]float64, error) {
	out := make([]float64, len(rates))
	for i, r := range rates {
		t, err := s.Next(0, r)
		if err != nil {
			return nil, fmt.Errorf("external neuron %d: %w", i, err)
		}
		out[i] = t
	}
	return out, nil
}

// uniform returns a draw on the open interval (0, 1).
func (s *Source) uniform() float64 {
	for {
		if u := s.rng.Float64(); u > 0 {
			return u
		}
	}
}
