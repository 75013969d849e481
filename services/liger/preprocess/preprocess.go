// Copyright (C) 2025 Enformatik (oss@enformatik.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package preprocess implements the preprocessing pipeline run ahead of
// integration: per-cell normalization, variable gene selection, and
// root-mean-square scaling without centering.
//
// The stages are ordered: Normalize, then SelectGenes, then
// ScaleNotCenter. Each stage records its results on the study's
// datasets (Norm and Scale layers, VarGenes) and returns an error when
// called out of order.
//
// Scaling deliberately skips mean-centering: downstream factorization
// requires non-negative input.
package preprocess

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/enformatik/pyliger/services/liger/dataset"
	"github.com/enformatik/pyliger/services/liger/matrix"
)

// Sentinel errors for pipeline ordering and options.
var (
	// ErrNotNormalized is returned when a stage needs the Norm layer
	// and Normalize has not run.
	ErrNotNormalized = errors.New("normalize must run first")

	// ErrNoVariableGenes is returned when scaling runs before any
	// variable genes were selected.
	ErrNoVariableGenes = errors.New("no variable genes selected")

	// ErrBadOptions is returned for out-of-range selection options.
	ErrBadOptions = errors.New("invalid selection options")
)

// Normalize fills each dataset's Norm layer with counts scaled by the
// cell's total transcript count, after dropping cells with no counts.
//
// Inputs:
//
//	ctx - Checked between datasets
//	study - Study with raw layers
//
// Outputs:
//
//	error - Non-nil on cancellation or dimension failure
func Normalize(ctx context.Context, study *dataset.Study) error {
	timer := prometheus.NewTimer(normalizeDuration)
	defer timer.ObserveDuration()

	if err := study.RemoveMissing(dataset.SlotRaw, dataset.AxisCells); err != nil {
		return err
	}

	logger := study.Logger()
	for _, d := range study.Datasets {
		if err := ctx.Err(); err != nil {
			return err
		}
		norm, err := matrix.ScaleRows(d.Raw, matrix.RowSums(d.Raw))
		if err != nil {
			return fmt.Errorf("dataset %q: %w", d.Name, err)
		}
		d.Norm = norm
		datasetsNormalized.Inc()
		logger.Debug("normalized dataset", "dataset", d.Name, "cells", d.Cells())
	}
	return nil
}

// ScaleNotCenter restricts each dataset to the study's variable genes
// and fills the Scale layer with the Norm layer scaled per gene by its
// root-mean-square across cells, sqrt(sum(x^2)/(n-1)). The data is not
// centered. Genes left with no signal are dropped from the Scale layer.
//
// Normalize and SelectGenes must have run.
func ScaleNotCenter(ctx context.Context, study *dataset.Study) error {
	if len(study.VarGenes) == 0 {
		return ErrNoVariableGenes
	}
	varSet := make(map[string]bool, len(study.VarGenes))
	for _, gene := range study.VarGenes {
		varSet[gene] = true
	}

	for _, d := range study.Datasets {
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.Norm == nil {
			return fmt.Errorf("dataset %q: %w", d.Name, ErrNotNormalized)
		}

		if err := d.SubsetGenes(varSet); err != nil {
			return fmt.Errorf("dataset %q: %w", d.Name, err)
		}

		cells := d.Cells()
		divisors := matrix.ColSumSquares(d.Norm)
		for j := range divisors {
			if cells > 1 {
				divisors[j] = math.Sqrt(divisors[j] / float64(cells-1))
			} else {
				divisors[j] = math.Sqrt(divisors[j])
			}
		}
		scale, err := matrix.ScaleCols(d.Norm, divisors)
		if err != nil {
			return fmt.Errorf("dataset %q: %w", d.Name, err)
		}
		d.Scale = scale
		d.ScaleGenes = append([]string(nil), d.GeneNames...)
		datasetsScaled.Inc()
	}

	return study.RemoveMissing(dataset.SlotScale, dataset.AxisGenes)
}
