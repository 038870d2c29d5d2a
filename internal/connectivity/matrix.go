// Package connectivity builds and stores the sparse weight matrix of a network.
//
// The matrix has one row per internal neuron and one column per source neuron,
// internal sources first, external sources after them. Entry (i, j) is the
// potential jump delivered to neuron i when source j fires. It is built once
// and is read-only afterwards, so it may be shared freely.
package connectivity

import (
	"errors"
	"fmt"
)

var (
	// ErrDimensionMismatch is returned when an operand does not fit the matrix shape.
	ErrDimensionMismatch = errors.New("connectivity: dimension mismatch")

	// ErrOutOfRange is returned for a row or column index outside the matrix.
	ErrOutOfRange = errors.New("connectivity: index out of range")

	// ErrNilRand is returned when Build is called without a random source.
	ErrNilRand = errors.New("connectivity: random source is nil")
)

// Matrix is a compressed sparse row matrix with a column-major mirror used
// for products with 0/1 spike vectors.
type Matrix struct {
	rows, cols int

	rowPtr []int
	colIdx []int
	values []float64

	colPtr []int
	rowIdx []int
	colVal []float64
}

// Entry is one stored non-zero of a row.
type Entry struct {
	Col    int
	Weight float64
}

// newMatrix assembles a Matrix from per-row entries with ascending columns.
func newMatrix(rows, cols int, entries [][]Entry) *Matrix {
	m := &Matrix{
		rows:   rows,
		cols:   cols,
		rowPtr: make([]int, rows+1),
	}

	nnz := 0
	for _, row := range entries {
		nnz += len(row)
	}
	m.colIdx = make([]int, 0, nnz)
	m.values = make([]float64, 0, nnz)

	colCount := make([]int, cols+1)
	for i, row := range entries {
		for _, e := range row {
			m.colIdx = append(m.colIdx, e.Col)
			m.values = append(m.values, e.Weight)
			colCount[e.Col+1]++
		}
		m.rowPtr[i+1] = len(m.colIdx)
	}

	// Column mirror: prefix sums give each column's start, rows stay ascending
	// because rows are visited in order.
	for c := 0; c < cols; c++ {
		colCount[c+1] += colCount[c]
	}
	m.colPtr = colCount
	m.rowIdx = make([]int, nnz)
	m.colVal = make([]float64, nnz)
	next := append([]int(nil), colCount[:cols]...)
	for i := 0; i < rows; i++ {
		for k := m.rowPtr[i]; k < m.rowPtr[i+1]; k++ {
			c := m.colIdx[k]
			m.rowIdx[next[c]] = i
			m.colVal[next[c]] = m.values[k]
			next[c]++
		}
	}

	return m
}

// Dims returns the number of rows and columns.
func (m *Matrix) Dims() (rows, cols int) {
	return m.rows, m.cols
}

// NNZ returns the number of stored non-zero entries.
func (m *Matrix) NNZ() int {
	return len(m.values)
}

// At returns entry (i, j); absent entries are zero.
func (m *Matrix) At(i, j int) (float64, error) {
	if i < 0 || i >= m.rows || j < 0 || j >= m.cols {
		return 0, fmt.Errorf("At(%d,%d) on %dx%d: %w", i, j, m.rows, m.cols, ErrOutOfRange)
	}
	for k := m.rowPtr[i]; k < m.rowPtr[i+1]; k++ {
		if m.colIdx[k] == j {
			return m.values[k], nil
		}
		if m.colIdx[k] > j {
			break
		}
	}
	return 0, nil
}

// Row returns the stored entries of row i in ascending column order.
func (m *Matrix) Row(i int) ([]Entry, error) {
	if i < 0 || i >= m.rows {
		return nil, fmt.Errorf("Row(%d) on %d rows: %w", i, m.rows, ErrOutOfRange)
	}
	out := make([]Entry, 0, m.rowPtr[i+1]-m.rowPtr[i])
	for k := m.rowPtr[i]; k < m.rowPtr[i+1]; k++ {
		out = append(out, Entry{Col: m.colIdx[k], Weight: m.values[k]})
	}
	return out, nil
}

// InDegrees returns the number of stored incoming connections of every row.
func (m *Matrix) InDegrees() []int {
	out := make([]int, m.rows)
	for i := range out {
		out[i] = m.rowPtr[i+1] - m.rowPtr[i]
	}
	return out
}

// CountIn returns the number of stored entries with row in [r0, r1) and
// column in [c0, c1).
func (m *Matrix) CountIn(r0, r1, c0, c1 int) int {
	n := 0
	for i := max(r0, 0); i < min(r1, m.rows); i++ {
		for k := m.rowPtr[i]; k < m.rowPtr[i+1]; k++ {
			if c := m.colIdx[k]; c >= c0 && c < c1 {
				n++
			}
		}
	}
	return n
}

// MulVec computes dst = M·x for a dense source vector x.
func (m *Matrix) MulVec(dst, x []float64) error {
	if len(dst) != m.rows || len(x) != m.cols {
		return fmt.Errorf("MulVec: dst=%d x=%d on %dx%d: %w", len(dst), len(x), m.rows, m.cols, ErrDimensionMismatch)
	}
	for i := 0; i < m.rows; i++ {
		var sum float64
		for k := m.rowPtr[i]; k < m.rowPtr[i+1]; k++ {
			sum += m.values[k] * x[m.colIdx[k]]
		}
		dst[i] = sum
	}
	return nil
}

// MulIndicator computes dst = M·s where s is the 0/1 vector whose ones are at
// the given column indices. Only the columns that fired are visited.
func (m *Matrix) MulIndicator(dst []float64, active []int) error {
	if len(dst) != m.rows {
		return fmt.Errorf("MulIndicator: dst=%d on %d rows: %w", len(dst), m.rows, ErrDimensionMismatch)
	}
	for i := range dst {
		dst[i] = 0
	}
	for _, c := range active {
		if c < 0 || c >= m.cols {
			return fmt.Errorf("MulIndicator: column %d on %d columns: %w", c, m.cols, ErrOutOfRange)
		}
		for k := m.colPtr[c]; k < m.colPtr[c+1]; k++ {
			dst[m.rowIdx[k]] += m.colVal[k]
		}
	}
	return nil
}
