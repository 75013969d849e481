// Copyright (C) 2025 Enformatik (oss@enformatik.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tenx

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// mmMatrix is a parsed MatrixMarket coordinate matrix in its on-disk
// orientation with 0-based indices.
type mmMatrix struct {
	Rows int
	Cols int
	RI   []int
	CI   []int
	V    []float64
}

// readMatrixMarket parses a MatrixMarket coordinate stream.
//
// Accepted banner:
//
//	%%MatrixMarket matrix coordinate (real|integer) general
//
// Comment lines (%) after the banner are skipped. The first data line
// carries "rows cols nnz"; every following line is a 1-based
// "row col value" triplet. Pattern, complex, and symmetric variants are
// rejected: CellRanger never emits them and silently mirroring a
// symmetric matrix would corrupt counts.
func readMatrixMarket(r io.Reader) (*mmMatrix, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
		}
		return nil, fmt.Errorf("%w: empty input", ErrMalformedHeader)
	}
	if err := checkBanner(scanner.Text()); err != nil {
		return nil, err
	}

	// Skip comments, find the dimensions line.
	var dims string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "%") {
			continue
		}
		dims = line
		break
	}
	if dims == "" {
		return nil, fmt.Errorf("%w: missing dimensions line", ErrMalformedEntry)
	}

	fields := strings.Fields(dims)
	if len(fields) != 3 {
		return nil, fmt.Errorf("%w: dimensions line %q", ErrMalformedEntry, dims)
	}
	rows, err1 := strconv.Atoi(fields[0])
	cols, err2 := strconv.Atoi(fields[1])
	nnz, err3 := strconv.Atoi(fields[2])
	if err1 != nil || err2 != nil || err3 != nil || rows < 0 || cols < 0 || nnz < 0 {
		return nil, fmt.Errorf("%w: dimensions line %q", ErrMalformedEntry, dims)
	}

	m := &mmMatrix{
		Rows: rows,
		Cols: cols,
		RI:   make([]int, 0, nnz),
		CI:   make([]int, 0, nnz),
		V:    make([]float64, 0, nnz),
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "%") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, fmt.Errorf("%w: triplet %q", ErrMalformedEntry, line)
		}
		i, err1 := strconv.Atoi(fields[0])
		j, err2 := strconv.Atoi(fields[1])
		v, err3 := strconv.ParseFloat(fields[2], 64)
		if err1 != nil || err2 != nil || err3 != nil {
			return nil, fmt.Errorf("%w: triplet %q", ErrMalformedEntry, line)
		}
		if i < 1 || i > rows || j < 1 || j > cols {
			return nil, fmt.Errorf("%w: index (%d, %d) outside %dx%d", ErrMalformedEntry, i, j, rows, cols)
		}
		m.RI = append(m.RI, i-1)
		m.CI = append(m.CI, j-1)
		m.V = append(m.V, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading matrix: %w", err)
	}
	if len(m.V) != nnz {
		return nil, fmt.Errorf("%w: header declares %d entries, found %d", ErrMalformedEntry, nnz, len(m.V))
	}
	return m, nil
}

// checkBanner validates the MatrixMarket banner line.
func checkBanner(line string) error {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) != 5 || fields[0] != "%%matrixmarket" {
		return fmt.Errorf("%w: %q", ErrMalformedHeader, line)
	}
	object, format, field, symmetry := fields[1], fields[2], fields[3], fields[4]
	if object != "matrix" || format != "coordinate" {
		return fmt.Errorf("%w: %s %s", ErrUnsupportedMatrix, object, format)
	}
	if field != "real" && field != "integer" {
		return fmt.Errorf("%w: field %s", ErrUnsupportedMatrix, field)
	}
	if symmetry != "general" {
		return fmt.Errorf("%w: symmetry %s", ErrUnsupportedMatrix, symmetry)
	}
	return nil
}
