// Copyright (C) 2025 Enformatik (oss@enformatik.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package dataset defines the core types of the toolkit: Dataset, a
// single sample's cells x genes matrix with its axis labels and layers,
// and Study, the ordered collection of datasets that the preprocessing
// pipeline operates on.
//
// # Orientation
//
// Every matrix is cells x genes: rows are cells (barcodes), columns are
// genes. Readers that encounter gene-major data on disk transpose it
// before constructing a Dataset.
//
// # Layers
//
// Raw holds counts as read. Norm and Scale are filled in by the
// preprocess package and start nil. Scale covers only the selected
// variable genes, tracked separately in ScaleGenes.
//
// # Thread Safety
//
// Dataset and Study are not safe for concurrent mutation. Pipeline
// stages run sequentially; concurrent reads are fine.
package dataset

import "errors"

// Sentinel errors for dataset construction and mutation.
var (
	// ErrNoDatasets is returned when a study is created with no datasets.
	// Integration needs at least two, but single-dataset studies are
	// allowed for preprocessing alone.
	ErrNoDatasets = errors.New("no datasets provided")

	// ErrMissingAxisLabels is returned when a matrix has no barcode or
	// gene names for one of its axes.
	ErrMissingAxisLabels = errors.New("dataset must have both cell and gene names")

	// ErrAxisMismatch is returned when axis label counts do not match
	// the matrix dimensions.
	ErrAxisMismatch = errors.New("axis labels do not match matrix dimensions")

	// ErrDuplicateBarcode is returned when a cell barcode repeats across
	// the datasets of a study.
	ErrDuplicateBarcode = errors.New("cell barcode repeated across datasets")

	// ErrLayerMissing is returned when an operation needs a layer that
	// has not been computed yet (e.g. scaling before normalization).
	ErrLayerMissing = errors.New("required layer not computed")
)
