// Copyright (C) 2025 Enformatik (oss@enformatik.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tenx

import (
	"errors"
	"strings"
	"testing"
)

func TestReadMatrixMarket(t *testing.T) {
	t.Run("parses coordinate integer general", func(t *testing.T) {
		input := `%%MatrixMarket matrix coordinate integer general
% CellRanger comment
3 2 3
1 1 5
3 1 4
2 2 7
`
		m, err := readMatrixMarket(strings.NewReader(input))
		if err != nil {
			t.Fatalf("readMatrixMarket: %v", err)
		}
		if m.Rows != 3 || m.Cols != 2 {
			t.Errorf("dims = %dx%d, want 3x2", m.Rows, m.Cols)
		}
		if len(m.V) != 3 {
			t.Fatalf("nnz = %d, want 3", len(m.V))
		}
		// indices are converted to 0-based
		if m.RI[1] != 2 || m.CI[1] != 0 || m.V[1] != 4 {
			t.Errorf("entry 1 = (%d,%d,%v), want (2,0,4)", m.RI[1], m.CI[1], m.V[1])
		}
	})

	t.Run("parses real field", func(t *testing.T) {
		input := "%%MatrixMarket matrix coordinate real general\n1 1 1\n1 1 2.5\n"
		m, err := readMatrixMarket(strings.NewReader(input))
		if err != nil {
			t.Fatalf("readMatrixMarket: %v", err)
		}
		if m.V[0] != 2.5 {
			t.Errorf("value = %v, want 2.5", m.V[0])
		}
	})

	t.Run("rejects missing banner", func(t *testing.T) {
		_, err := readMatrixMarket(strings.NewReader("3 2 0\n"))
		if !errors.Is(err, ErrMalformedHeader) {
			t.Errorf("err = %v, want ErrMalformedHeader", err)
		}
	})

	t.Run("rejects pattern matrices", func(t *testing.T) {
		input := "%%MatrixMarket matrix coordinate pattern general\n1 1 1\n1 1\n"
		_, err := readMatrixMarket(strings.NewReader(input))
		if !errors.Is(err, ErrUnsupportedMatrix) {
			t.Errorf("err = %v, want ErrUnsupportedMatrix", err)
		}
	})

	t.Run("rejects symmetric matrices", func(t *testing.T) {
		input := "%%MatrixMarket matrix coordinate real symmetric\n2 2 1\n2 1 1\n"
		_, err := readMatrixMarket(strings.NewReader(input))
		if !errors.Is(err, ErrUnsupportedMatrix) {
			t.Errorf("err = %v, want ErrUnsupportedMatrix", err)
		}
	})

	t.Run("rejects out-of-range indices", func(t *testing.T) {
		input := "%%MatrixMarket matrix coordinate real general\n2 2 1\n3 1 1\n"
		_, err := readMatrixMarket(strings.NewReader(input))
		if !errors.Is(err, ErrMalformedEntry) {
			t.Errorf("err = %v, want ErrMalformedEntry", err)
		}
	})

	t.Run("rejects nnz mismatch", func(t *testing.T) {
		input := "%%MatrixMarket matrix coordinate real general\n2 2 2\n1 1 1\n"
		_, err := readMatrixMarket(strings.NewReader(input))
		if !errors.Is(err, ErrMalformedEntry) {
			t.Errorf("err = %v, want ErrMalformedEntry", err)
		}
	})
}

func TestMakeUnique(t *testing.T) {
	got := makeUnique([]string{"A", "B", "A", "A", "B"})
	want := []string{"A", "B", "A.1", "A.2", "B.1"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("makeUnique = %v, want %v", got, want)
		}
	}
}
