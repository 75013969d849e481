// Copyright (C) 2025 Enformatik (oss@enformatik.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package tenx reads 10X Genomics CellRanger count output.
//
// It handles V2 and V3 directory layouts, plain and gzip-compressed
// files, RNA and ATAC feature files, and V3 multi-modality matrices
// (Gene Expression, Antibody Capture, CRISPR Guide Capture, Custom),
// producing cells x genes datasets. Matrices on disk are genes x cells;
// the reader transposes during assembly.
//
// Accepted inputs per sample are either a matrix directory holding
// matrix.mtx(.gz), barcodes.tsv(.gz), and genes.tsv / features.tsv.gz
// (peaks.bed for ATAC), or an outer CellRanger run directory containing
// outs/.
package tenx

import "errors"

// Sentinel errors for 10X reads.
var (
	// ErrAmbiguousReference is returned for V2 layouts holding more than
	// one reference genome when none was specified.
	ErrAmbiguousReference = errors.New("multiple reference genomes found, specify one")

	// ErrUnsupportedDataType is returned for data types other than
	// "rna" and "atac".
	ErrUnsupportedDataType = errors.New("unsupported data type")

	// ErrMissingFile is returned when a required matrix, barcode, or
	// feature file is absent in both plain and gzipped form.
	ErrMissingFile = errors.New("required 10X file not found")

	// ErrMalformedHeader is returned when the MatrixMarket banner line
	// is missing or unreadable.
	ErrMalformedHeader = errors.New("malformed MatrixMarket header")

	// ErrUnsupportedMatrix is returned for MatrixMarket variants other
	// than coordinate real/integer general.
	ErrUnsupportedMatrix = errors.New("unsupported MatrixMarket variant")

	// ErrMalformedEntry is returned for unparseable dimension or
	// triplet lines.
	ErrMalformedEntry = errors.New("malformed MatrixMarket entry")

	// ErrAxisMismatch is returned when barcode or feature counts do not
	// match the matrix dimensions.
	ErrAxisMismatch = errors.New("axis file does not match matrix dimensions")
)
