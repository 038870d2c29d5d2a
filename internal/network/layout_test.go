package network

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLayout_Partition(t *testing.T) {
	t.Parallel()

	l, err := NewLayout([]int{3, 1, 4})
	require.NoError(t, err)
	require.Equal(t, 8, l.Total())
	require.Equal(t, 3, l.Len())
	require.Equal(t, []Block{{0, 3}, {3, 1}, {4, 4}}, l.Blocks())

	// Blocks cover [0, Total) without gaps or overlap, in declaration order.
	next := 0
	for p, b := range l.Blocks() {
		require.Equal(t, next, b.Start, "block %d starts at a gap or overlap", p)
		for idx := b.Start; idx < b.End(); idx++ {
			owner, err := l.Owner(idx)
			require.NoError(t, err)
			require.Equal(t, p, owner)
			require.True(t, b.Contains(idx))
		}
		next = b.End()
	}
	require.Equal(t, l.Total(), next)
}

func TestNewLayout_Empty(t *testing.T) {
	t.Parallel()

	l, err := NewLayout(nil)
	require.NoError(t, err)
	require.Zero(t, l.Total())
	require.Zero(t, l.Len())
}

func TestNewLayout_BadSize(t *testing.T) {
	t.Parallel()

	_, err := NewLayout([]int{2, 0})
	require.True(t, errors.Is(err, ErrBadSize))
}

func TestLayout_OwnerOutOfRange(t *testing.T) {
	t.Parallel()

	l, err := NewLayout([]int{2})
	require.NoError(t, err)

	for _, idx := range []int{-1, 2, 100} {
		_, err := l.Owner(idx)
		require.Truef(t, errors.Is(err, ErrOutOfRange), "Owner(%d) err = %v", idx, err)
	}
}

func TestLayout_Spread(t *testing.T) {
	t.Parallel()

	l, err := NewLayout([]int{2, 3})
	require.NoError(t, err)
	require.Equal(t, []float64{1, 1, 7, 7, 7}, l.Spread([]float64{1, 7}))
}
