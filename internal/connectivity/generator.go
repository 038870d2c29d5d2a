package connectivity

import (
	"fmt"
	"math/rand/v2"

	"github.com/nvandessel/sparsenet/internal/network"
)

// Probability returns the connection probability for a target population of
// the given size: K/size, saturated at 1.
func Probability(k float64, targetSize int) float64 {
	p := k / float64(targetSize)
	if p > 1 {
		return 1
	}
	return p
}

// Build samples the weight matrix of net.
//
// Every target neuron of population i receives a connection from every
// candidate source neuron independently with probability Probability(K, N_i);
// a realized edge carries J[i][population of the source]. The internal block
// is sampled first (rows ascending, columns ascending), then the external
// block in the same order, so a fixed seed always yields the same matrix.
// Zero-weight edges are sampled but not stored.
func Build(net *network.Network, rng *rand.Rand) (*Matrix, error) {
	if rng == nil {
		return nil, ErrNilRand
	}
	if net.K() <= 0 {
		return nil, fmt.Errorf("K=%g: %w", net.K(), network.ErrInvalidInDegree)
	}

	n, nExt := net.N(), net.NExt()
	entries := make([][]Entry, n)

	sampleBlock(entries, net.Internal, net.Internal, 0, net.K(), net.JInt, rng)
	sampleBlock(entries, net.Internal, net.External, n, net.K(), net.JExt, rng)

	return newMatrix(n, n+nExt, entries), nil
}

// sampleBlock draws one Bernoulli trial per (target, source) pair of the
// targets x sources block and appends realized edges to entries.
func sampleBlock(
	entries [][]Entry,
	targets, sources network.Layout,
	colOffset int,
	k float64,
	strength func(dst, src int) float64,
	rng *rand.Rand,
) {
	for ti := 0; ti < targets.Len(); ti++ {
		tb := targets.Block(ti)
		p := Probability(k, tb.Len)
		for row := tb.Start; row < tb.End(); row++ {
			for sj := 0; sj < sources.Len(); sj++ {
				sb := sources.Block(sj)
				w := strength(ti, sj)
				for col := sb.Start; col < sb.End(); col++ {
					if rng.Float64() < p && w != 0 {
						entries[row] = append(entries[row], Entry{Col: colOffset + col, Weight: w})
					}
				}
			}
		}
	}
}
