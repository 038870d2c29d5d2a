package network

import "fmt"

// Network is the immutable, per-neuron view of validated Params. It is built
// once per simulation and shared read-only by every component.
type Network struct {
	params Params

	// Internal covers the modeled LIF neurons, External the Poisson sources.
	Internal Layout
	External Layout

	// Drive and Leak hold I and gamma for every internal neuron.
	Drive []float64
	Leak  []float64

	// ExtRate holds the Poisson rate of every external neuron.
	ExtRate []float64
}

// New validates p and derives the population layouts and per-neuron vectors.
func New(p Params) (*Network, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid network parameters: %w", err)
	}

	p = p.Clone()

	internal, err := NewLayout(p.Sizes)
	if err != nil {
		return nil, fmt.Errorf("internal layout: %w", err)
	}
	external, err := NewLayout(p.ExtSizes)
	if err != nil {
		return nil, fmt.Errorf("external layout: %w", err)
	}

	return &Network{
		params:   p,
		Internal: internal,
		External: external,
		Drive:    internal.Spread(p.Drive),
		Leak:     internal.Spread(p.Leak),
		ExtRate:  external.Spread(p.Rates),
	}, nil
}

// Params returns a copy of the parameters the network was built from.
func (n *Network) Params() Params {
	return n.params.Clone()
}

// N returns the number of internal neurons.
func (n *Network) N() int {
	return n.Internal.Total()
}

// NExt returns the number of external neurons.
func (n *Network) NExt() int {
	return n.External.Total()
}

// K returns the mean in-degree.
func (n *Network) K() float64 {
	return n.params.K
}

// Tau returns the internal transmission delay.
func (n *Network) Tau() float64 {
	return n.params.Tau
}

// JInt returns the internal strength from source population src to target population dst.
func (n *Network) JInt(dst, src int) float64 {
	return n.params.JInt[dst][src]
}

// JExt returns the strength from external population src to target population dst.
func (n *Network) JExt(dst, src int) float64 {
	return n.params.JExt[dst][src]
}
