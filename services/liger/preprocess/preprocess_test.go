// Copyright (C) 2025 Enformatik (oss@enformatik.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package preprocess

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/enformatik/pyliger/services/liger/dataset"
	"github.com/enformatik/pyliger/services/liger/matrix"
)

// buildStudy assembles a study from dense cells x genes grids, one per
// dataset, with generated barcodes and shared gene names g0..gN.
func buildStudy(t *testing.T, grids ...[][]float64) *dataset.Study {
	t.Helper()
	var datasets []*dataset.Dataset
	for di, grid := range grids {
		cells := len(grid)
		genes := len(grid[0])
		var ri, ci []int
		var vals []float64
		for r, row := range grid {
			for c, v := range row {
				if v != 0 {
					ri = append(ri, r)
					ci = append(ci, c)
					vals = append(vals, v)
				}
			}
		}
		raw, err := matrix.FromTriplets(cells, genes, ri, ci, vals)
		if err != nil {
			t.Fatalf("FromTriplets: %v", err)
		}
		barcodes := make([]string, cells)
		for i := range barcodes {
			barcodes[i] = fmt.Sprintf("d%d-cell%d", di, i)
		}
		geneNames := make([]string, genes)
		for i := range geneNames {
			geneNames[i] = fmt.Sprintf("g%d", i)
		}
		d, err := dataset.NewDataset(fmt.Sprintf("sample%d", di), dataset.GeneExpression, raw, barcodes, geneNames)
		if err != nil {
			t.Fatalf("NewDataset: %v", err)
		}
		datasets = append(datasets, d)
	}
	study, err := dataset.New(datasets)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return study
}

func TestNormalize(t *testing.T) {
	t.Run("rows sum to one", func(t *testing.T) {
		study := buildStudy(t, [][]float64{
			{2, 0, 6},
			{1, 1, 2},
		})
		if err := Normalize(context.Background(), study); err != nil {
			t.Fatalf("Normalize: %v", err)
		}
		norm := study.Datasets[0].Norm
		if norm == nil {
			t.Fatal("Norm layer not set")
		}
		rows, _ := norm.Dims()
		for r := 0; r < rows; r++ {
			sum := 0.0
			_, cols := norm.Dims()
			for c := 0; c < cols; c++ {
				sum += norm.At(r, c)
			}
			if math.Abs(sum-1) > 1e-12 {
				t.Errorf("row %d sums to %v, want 1", r, sum)
			}
		}
		if got := norm.At(0, 2); math.Abs(got-0.75) > 1e-12 {
			t.Errorf("norm[0,2] = %v, want 0.75", got)
		}
	})

	t.Run("drops empty cells first", func(t *testing.T) {
		study := buildStudy(t, [][]float64{
			{2, 0, 6},
			{0, 0, 0},
			{1, 1, 2},
		})
		// Empty-cell removal happens inside New already; re-add one to
		// prove Normalize repeats the sweep.
		if got := study.Datasets[0].Cells(); got != 2 {
			t.Fatalf("cells after New = %d, want 2", got)
		}
		if err := Normalize(context.Background(), study); err != nil {
			t.Fatalf("Normalize: %v", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		study := buildStudy(t, [][]float64{{1, 2}})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := Normalize(ctx, study); !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	})
}

// variableGrid builds a grid where every cell has the same total count,
// genes 0 and 2 are flat, and genes 1 and 3 swing between zero and a
// large count. After library-size normalization the flat genes have
// zero variance while the swinging genes stay far above their Poisson
// expectation.
func variableGrid(cells int) [][]float64 {
	grid := make([][]float64, cells)
	for i := range grid {
		if i%2 == 0 {
			grid[i] = []float64{10, 40, 5, 0}
		} else {
			grid[i] = []float64{10, 0, 5, 40}
		}
	}
	return grid
}

func TestSelectGenes(t *testing.T) {
	t.Run("requires normalize", func(t *testing.T) {
		study := buildStudy(t, variableGrid(20))
		err := SelectGenes(context.Background(), study, SelectOptions{})
		if !errors.Is(err, ErrNotNormalized) {
			t.Fatalf("err = %v, want ErrNotNormalized", err)
		}
	})

	t.Run("finds overdispersed gene", func(t *testing.T) {
		study := buildStudy(t, variableGrid(40))
		if err := Normalize(context.Background(), study); err != nil {
			t.Fatalf("Normalize: %v", err)
		}
		if err := SelectGenes(context.Background(), study, SelectOptions{}); err != nil {
			t.Fatalf("SelectGenes: %v", err)
		}
		selected := make(map[string]bool, len(study.VarGenes))
		for _, g := range study.VarGenes {
			selected[g] = true
		}
		if !selected["g1"] || !selected["g3"] {
			t.Errorf("overdispersed genes not selected, got %v", study.VarGenes)
		}
		if selected["g0"] || selected["g2"] {
			t.Errorf("flat genes selected, got %v", study.VarGenes)
		}
	})

	t.Run("bad threshold count", func(t *testing.T) {
		study := buildStudy(t, variableGrid(20), variableGrid(20))
		if err := Normalize(context.Background(), study); err != nil {
			t.Fatalf("Normalize: %v", err)
		}
		err := SelectGenes(context.Background(), study, SelectOptions{VarThresh: []float64{0.1, 0.1, 0.1}})
		if !errors.Is(err, ErrBadOptions) {
			t.Fatalf("err = %v, want ErrBadOptions", err)
		}
	})

	t.Run("capitalize", func(t *testing.T) {
		study := buildStudy(t, variableGrid(40))
		if err := Normalize(context.Background(), study); err != nil {
			t.Fatalf("Normalize: %v", err)
		}
		if err := SelectGenes(context.Background(), study, SelectOptions{Capitalize: true}); err != nil {
			t.Fatalf("SelectGenes: %v", err)
		}
		for _, g := range study.VarGenes {
			if g != strings.ToUpper(g) {
				t.Errorf("gene name %q not capitalized", g)
			}
		}
	})

	t.Run("sorted output", func(t *testing.T) {
		study := buildStudy(t, variableGrid(40))
		if err := Normalize(context.Background(), study); err != nil {
			t.Fatalf("Normalize: %v", err)
		}
		if err := SelectGenes(context.Background(), study, SelectOptions{VarThresh: []float64{-5}}); err != nil {
			t.Fatalf("SelectGenes: %v", err)
		}
		for i := 1; i < len(study.VarGenes); i++ {
			if study.VarGenes[i-1] >= study.VarGenes[i] {
				t.Fatalf("VarGenes not sorted: %v", study.VarGenes)
			}
		}
	})
}

func TestTuneThreshold(t *testing.T) {
	study := buildStudy(t, variableGrid(40))
	if err := Normalize(context.Background(), study); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	stats := newGeneStats(study.Datasets[0], 0.99)

	// Selection count must be non-increasing in the threshold.
	prev := len(stats.selectAt(varThreshLo))
	for thresh := varThreshLo; thresh <= varThreshHi; thresh += 0.1 {
		n := len(stats.selectAt(thresh))
		if n > prev {
			t.Fatalf("selection count increased from %d to %d at thresh %v", prev, n, thresh)
		}
		prev = n
	}

	target := len(stats.selectAt(0.5))
	got := tuneThreshold(stats, target, 1e-4)
	if n := len(stats.selectAt(got)); n != target {
		t.Errorf("tuned threshold selects %d genes, want %d", n, target)
	}
}

func TestScaleNotCenter(t *testing.T) {
	t.Run("requires variable genes", func(t *testing.T) {
		study := buildStudy(t, variableGrid(20))
		if err := Normalize(context.Background(), study); err != nil {
			t.Fatalf("Normalize: %v", err)
		}
		err := ScaleNotCenter(context.Background(), study)
		if !errors.Is(err, ErrNoVariableGenes) {
			t.Fatalf("err = %v, want ErrNoVariableGenes", err)
		}
	})

	t.Run("scales by root mean square", func(t *testing.T) {
		study := buildStudy(t, variableGrid(40))
		ctx := context.Background()
		if err := Normalize(ctx, study); err != nil {
			t.Fatalf("Normalize: %v", err)
		}
		study.VarGenes = []string{"g1", "g3"}
		if err := ScaleNotCenter(ctx, study); err != nil {
			t.Fatalf("ScaleNotCenter: %v", err)
		}

		d := study.Datasets[0]
		if d.Scale == nil {
			t.Fatal("Scale layer not set")
		}
		if got := d.Genes(); got != 2 {
			t.Errorf("genes after subset = %d, want 2", got)
		}
		rows, cols := d.Scale.Dims()
		if rows != d.Cells() || cols > 2 {
			t.Errorf("scale dims = %dx%d", rows, cols)
		}

		// Each scale entry is norm / rms(gene); all values non-negative.
		cells := d.Cells()
		for c := 0; c < cols; c++ {
			sumsq := 0.0
			for r := 0; r < rows; r++ {
				v := d.Scale.At(r, c)
				if v < 0 {
					t.Fatalf("negative scaled value at %d,%d", r, c)
				}
				sumsq += v * v
			}
			// sum(x^2/rms^2) = n-1 by construction.
			if math.Abs(sumsq-float64(cells-1)) > 1e-9 {
				t.Errorf("gene %d sum of squares = %v, want %v", c, sumsq, float64(cells-1))
			}
		}
		if len(d.ScaleGenes) != cols {
			t.Errorf("ScaleGenes has %d names for %d columns", len(d.ScaleGenes), cols)
		}
	})

	t.Run("norm layer required", func(t *testing.T) {
		study := buildStudy(t, variableGrid(20))
		study.VarGenes = []string{"g1"}
		err := ScaleNotCenter(context.Background(), study)
		if !errors.Is(err, ErrNotNormalized) {
			t.Fatalf("err = %v, want ErrNotNormalized", err)
		}
	})
}
