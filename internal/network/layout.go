package network

import "fmt"

// Block is one population's contiguous range of neuron indices.
type Block struct {
	Start int `json:"start" yaml:"start"`
	Len   int `json:"len" yaml:"len"`
}

// End returns the first index past the block.
func (b Block) End() int {
	return b.Start + b.Len
}

// Contains reports whether idx lies inside the block.
func (b Block) Contains(idx int) bool {
	return idx >= b.Start && idx < b.End()
}

// Layout maps a neuron index range onto populations. Blocks partition
// [0, Total) in declaration order, without gaps or overlap.
type Layout struct {
	blocks []Block
	owner  []int
}

// NewLayout computes the population blocks for the given sizes.
func NewLayout(sizes []int) (Layout, error) {
	blocks := make([]Block, len(sizes))
	total := 0
	for i, n := range sizes {
		if n <= 0 {
			return Layout{}, fmt.Errorf("sizes[%d]=%d: %w", i, n, ErrBadSize)
		}
		blocks[i] = Block{Start: total, Len: n}
		total += n
	}

	owner := make([]int, total)
	for p, b := range blocks {
		for idx := b.Start; idx < b.End(); idx++ {
			owner[idx] = p
		}
	}

	return Layout{blocks: blocks, owner: owner}, nil
}

// Total returns the number of neurons covered by the layout.
func (l Layout) Total() int {
	return len(l.owner)
}

// Len returns the number of populations.
func (l Layout) Len() int {
	return len(l.blocks)
}

// Block returns the block of population p.
func (l Layout) Block(p int) Block {
	return l.blocks[p]
}

// Blocks returns a copy of all population blocks in declaration order.
func (l Layout) Blocks() []Block {
	return append([]Block(nil), l.blocks...)
}

// Owner returns the population that neuron idx belongs to.
func (l Layout) Owner(idx int) (int, error) {
	if idx < 0 || idx >= len(l.owner) {
		return 0, fmt.Errorf("index %d not in [0,%d): %w", idx, len(l.owner), ErrOutOfRange)
	}
	return l.owner[idx], nil
}

// Spread expands one value per population into one value per neuron.
func (l Layout) Spread(perPopulation []float64) []float64 {
	out := make([]float64, len(l.owner))
	for idx, p := range l.owner {
		out[idx] = perPopulation[p]
	}
	return out
}
