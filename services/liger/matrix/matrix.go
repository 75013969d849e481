// Copyright (C) 2025 Enformatik (oss@enformatik.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package matrix provides sparse matrix reductions and transforms shared
// by the preprocessing pipeline.
//
// All matrices are CSR (github.com/james-bowman/sparse) in cells x genes
// orientation: rows are cells, columns are genes. Reductions over columns
// include implicit zeros, matching dense semantics; variances are
// population variances (divide by n, not n-1).
//
// Transforms never modify their input; they return new matrices.
package matrix

import (
	"errors"
	"fmt"
	"math"

	"github.com/james-bowman/sparse"
)

// ErrDimensionMismatch is returned when a vector argument does not match
// the corresponding matrix dimension.
var ErrDimensionMismatch = errors.New("dimension mismatch")

// FromTriplets builds a CSR matrix from coordinate triplets. Duplicate
// coordinates are summed, matching MatrixMarket semantics.
//
// Inputs:
//
//	rows, cols - Matrix dimensions
//	ri, ci - Row and column indices (0-based, equal length)
//	vals - Values, same length as the index slices
//
// Outputs:
//
//	*sparse.CSR - The assembled matrix
//	error - Non-nil on index out of range or length mismatch
func FromTriplets(rows, cols int, ri, ci []int, vals []float64) (*sparse.CSR, error) {
	if len(ri) != len(ci) || len(ri) != len(vals) {
		return nil, fmt.Errorf("%w: %d row, %d col, %d value entries", ErrDimensionMismatch, len(ri), len(ci), len(vals))
	}

	dok := sparse.NewDOK(rows, cols)
	for k := range ri {
		i, j := ri[k], ci[k]
		if i < 0 || i >= rows || j < 0 || j >= cols {
			return nil, fmt.Errorf("%w: entry (%d, %d) outside %dx%d", ErrDimensionMismatch, i, j, rows, cols)
		}
		if vals[k] == 0 {
			continue
		}
		dok.Set(i, j, dok.At(i, j)+vals[k])
	}
	return dok.ToCSR(), nil
}

// RowSums returns the sum of each row (per-cell total counts).
func RowSums(m *sparse.CSR) []float64 {
	rows, _ := m.Dims()
	sums := make([]float64, rows)
	m.DoNonZero(func(i, j int, v float64) {
		sums[i] += v
	})
	return sums
}

// RowNonZeroCounts returns the number of non-zero entries in each row
// (per-cell gene counts).
func RowNonZeroCounts(m *sparse.CSR) []int {
	rows, _ := m.Dims()
	counts := make([]int, rows)
	m.DoNonZero(func(i, j int, v float64) {
		if v != 0 {
			counts[i]++
		}
	})
	return counts
}

// ColSums returns the sum of each column (per-gene totals).
func ColSums(m *sparse.CSR) []float64 {
	_, cols := m.Dims()
	sums := make([]float64, cols)
	m.DoNonZero(func(i, j int, v float64) {
		sums[j] += v
	})
	return sums
}

// ColMeans returns the mean of each column over all rows, implicit
// zeros included.
func ColMeans(m *sparse.CSR) []float64 {
	rows, _ := m.Dims()
	means := ColSums(m)
	if rows == 0 {
		return means
	}
	n := float64(rows)
	for j := range means {
		means[j] /= n
	}
	return means
}

// ColVariances returns the population variance of each column
// (divide by n), implicit zeros included.
func ColVariances(m *sparse.CSR) []float64 {
	rows, cols := m.Dims()
	variances := make([]float64, cols)
	if rows == 0 {
		return variances
	}

	sums := make([]float64, cols)
	sumsq := make([]float64, cols)
	m.DoNonZero(func(i, j int, v float64) {
		sums[j] += v
		sumsq[j] += v * v
	})

	n := float64(rows)
	for j := 0; j < cols; j++ {
		mean := sums[j] / n
		variance := sumsq[j]/n - mean*mean
		if variance < 0 {
			variance = 0 // rounding
		}
		variances[j] = variance
	}
	return variances
}

// ColSumSquares returns the sum of squared entries for each column.
func ColSumSquares(m *sparse.CSR) []float64 {
	_, cols := m.Dims()
	sumsq := make([]float64, cols)
	m.DoNonZero(func(i, j int, v float64) {
		sumsq[j] += v * v
	})
	return sumsq
}

// ScaleRows divides every row by its divisor, returning a new matrix.
// Rows whose divisor is zero or non-finite are zeroed out.
//
// Inputs:
//
//	m - Source matrix
//	divisors - One divisor per row
//
// Outputs:
//
//	*sparse.CSR - Scaled copy
//	error - Non-nil when len(divisors) != rows
func ScaleRows(m *sparse.CSR, divisors []float64) (*sparse.CSR, error) {
	rows, cols := m.Dims()
	if len(divisors) != rows {
		return nil, fmt.Errorf("%w: %d divisors for %d rows", ErrDimensionMismatch, len(divisors), rows)
	}

	dok := sparse.NewDOK(rows, cols)
	m.DoNonZero(func(i, j int, v float64) {
		d := divisors[i]
		if d == 0 || math.IsNaN(d) || math.IsInf(d, 0) {
			return
		}
		dok.Set(i, j, v/d)
	})
	return dok.ToCSR(), nil
}

// ScaleCols divides every column by its divisor, returning a new matrix.
// Columns whose divisor is zero or non-finite are zeroed out.
func ScaleCols(m *sparse.CSR, divisors []float64) (*sparse.CSR, error) {
	rows, cols := m.Dims()
	if len(divisors) != cols {
		return nil, fmt.Errorf("%w: %d divisors for %d columns", ErrDimensionMismatch, len(divisors), cols)
	}

	dok := sparse.NewDOK(rows, cols)
	m.DoNonZero(func(i, j int, v float64) {
		d := divisors[j]
		if d == 0 || math.IsNaN(d) || math.IsInf(d, 0) {
			return
		}
		dok.Set(i, j, v/d)
	})
	return dok.ToCSR(), nil
}

// SelectRows returns a copy of m keeping only rows where keep[i] is true.
func SelectRows(m *sparse.CSR, keep []bool) (*sparse.CSR, error) {
	rows, cols := m.Dims()
	if len(keep) != rows {
		return nil, fmt.Errorf("%w: %d flags for %d rows", ErrDimensionMismatch, len(keep), rows)
	}

	remap := make([]int, rows)
	kept := 0
	for i, k := range keep {
		if k {
			remap[i] = kept
			kept++
		} else {
			remap[i] = -1
		}
	}

	dok := sparse.NewDOK(kept, cols)
	if kept > 0 {
		m.DoNonZero(func(i, j int, v float64) {
			if remap[i] >= 0 {
				dok.Set(remap[i], j, v)
			}
		})
	}
	return dok.ToCSR(), nil
}

// SelectColumns returns a copy of m keeping only columns where keep[j]
// is true.
func SelectColumns(m *sparse.CSR, keep []bool) (*sparse.CSR, error) {
	rows, cols := m.Dims()
	if len(keep) != cols {
		return nil, fmt.Errorf("%w: %d flags for %d columns", ErrDimensionMismatch, len(keep), cols)
	}

	remap := make([]int, cols)
	kept := 0
	for j, k := range keep {
		if k {
			remap[j] = kept
			kept++
		} else {
			remap[j] = -1
		}
	}

	dok := sparse.NewDOK(rows, kept)
	if kept > 0 {
		m.DoNonZero(func(i, j int, v float64) {
			if remap[j] >= 0 {
				dok.Set(i, remap[j], v)
			}
		})
	}
	return dok.ToCSR(), nil
}

// Triplets decomposes m back into coordinate form. Used by the dataset
// cache to serialize matrices without walking CSR internals.
func Triplets(m *sparse.CSR) (ri, ci []int, vals []float64) {
	nnz := m.NNZ()
	ri = make([]int, 0, nnz)
	ci = make([]int, 0, nnz)
	vals = make([]float64, 0, nnz)
	m.DoNonZero(func(i, j int, v float64) {
		ri = append(ri, i)
		ci = append(ci, j)
		vals = append(vals, v)
	})
	return ri, ci, vals
}
