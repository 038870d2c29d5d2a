// Package vecmath provides the element-wise vector operations used by the
// event scheduler. Large vectors are processed in chunks on several goroutines;
// every operation is element-wise, so the result does not depend on the split.
package vecmath

import (
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
)

// MinParallel is the vector length from which ForEachChunk fans out.
// Below it the goroutine overhead outweighs the work of one event step.
var MinParallel = 1 << 15

// ForEachChunk calls fn over disjoint [lo, hi) ranges covering [0, n).
// Short ranges run inline on the calling goroutine.
func ForEachChunk(n int, fn func(lo, hi int)) {
	if n <= 0 {
		return
	}
	workers := runtime.GOMAXPROCS(0)
	if n < MinParallel || workers < 2 {
		fn(0, n)
		return
	}

	chunk := (n + workers - 1) / workers
	var g errgroup.Group
	g.SetLimit(workers)
	for lo := 0; lo < n; lo += chunk {
		lo, hi := lo, min(lo+chunk, n)
		g.Go(func() error {
			fn(lo, hi)
			return nil
		})
	}
	_ = g.Wait()
}

// Max returns the largest element, or -Inf for an empty vector.
func Max(x []float64) float64 {
	if len(x) == 0 {
		return math.Inf(-1)
	}
	return floats.Max(x)
}

// Min returns the smallest element, or +Inf for an empty vector.
func Min(x []float64) float64 {
	if len(x) == 0 {
		return math.Inf(1)
	}
	return floats.Min(x)
}

// AddConst adds c to every element of x in place.
func AddConst(c float64, x []float64) {
	if c == 0 {
		return
	}
	ForEachChunk(len(x), func(lo, hi int) {
		floats.AddConst(c, x[lo:hi])
	})
}

// IndicesAtLeast returns, in ascending order, the indices i with x[i] >= thr.
func IndicesAtLeast(x []float64, thr float64) []int {
	var out []int
	for i, v := range x {
		if v >= thr {
			out = append(out, i)
		}
	}
	return out
}

// IndicesEqual returns, in ascending order, the indices i with x[i] == v.
func IndicesEqual(x []float64, v float64) []int {
	var out []int
	for i, xi := range x {
		if xi == v {
			out = append(out, i)
		}
	}
	return out
}
