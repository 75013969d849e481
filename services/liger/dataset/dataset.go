// Copyright (C) 2025 Enformatik (oss@enformatik.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package dataset

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/james-bowman/sparse"

	"github.com/enformatik/pyliger/services/liger/matrix"
)

// Modality identifies the measurement type of a dataset, following the
// 10X feature-type vocabulary.
type Modality string

const (
	// GeneExpression is scRNA-seq count data.
	GeneExpression Modality = "Gene Expression"

	// ChromatinAccessibility is scATAC-seq peak data.
	ChromatinAccessibility Modality = "Chromatin Accessibility"

	// AntibodyCapture is CITE-seq antibody count data.
	AntibodyCapture Modality = "Antibody Capture"

	// CRISPRGuideCapture is CRISPR screen guide count data.
	CRISPRGuideCapture Modality = "CRISPR Guide Capture"

	// Custom is any other 10X V3 feature type.
	Custom Modality = "Custom"
)

// Slot names a matrix layer of a Dataset.
type Slot int

const (
	// SlotRaw is the counts layer as read from disk.
	SlotRaw Slot = iota

	// SlotNorm is the per-cell normalized layer.
	SlotNorm

	// SlotScale is the per-gene scaled layer over variable genes.
	SlotScale
)

// String returns the layer name for logs.
func (s Slot) String() string {
	switch s {
	case SlotRaw:
		return "raw"
	case SlotNorm:
		return "norm"
	case SlotScale:
		return "scale"
	default:
		return "unknown"
	}
}

// Axis selects rows (cells) or columns (genes) of a layer.
type Axis int

const (
	// AxisCells addresses matrix rows.
	AxisCells Axis = iota

	// AxisGenes addresses matrix columns.
	AxisGenes
)

// String returns "cells" or "genes".
func (a Axis) String() string {
	if a == AxisCells {
		return "cells"
	}
	return "genes"
}

// Dataset is one sample's measurements: a cells x genes count matrix
// with barcode and gene labels, plus layers computed by the pipeline.
type Dataset struct {
	// ID uniquely identifies this dataset within a run.
	ID uuid.UUID

	// Name is the sample name supplied by the caller.
	Name string

	// Modality is the measurement type.
	Modality Modality

	// Barcodes labels the rows. len(Barcodes) == rows of Raw.
	Barcodes []string

	// GeneNames labels the columns of Raw and Norm.
	GeneNames []string

	// Raw is the counts matrix, cells x genes.
	Raw *sparse.CSR

	// Norm is the per-cell normalized matrix, nil until Normalize runs.
	Norm *sparse.CSR

	// Scale is the scaled matrix over variable genes, nil until
	// ScaleNotCenter runs. Its columns are labeled by ScaleGenes,
	// not GeneNames.
	Scale *sparse.CSR

	// ScaleGenes labels the columns of Scale.
	ScaleGenes []string
}

// NewDataset constructs a Dataset and validates its axes.
//
// Inputs:
//
//	name - Sample name
//	modality - Measurement type
//	raw - Counts, cells x genes
//	barcodes - Row labels, one per cell
//	genes - Column labels, one per gene
//
// Outputs:
//
//	*Dataset - Dataset with a fresh UUID
//	error - ErrMissingAxisLabels or ErrAxisMismatch
func NewDataset(name string, modality Modality, raw *sparse.CSR, barcodes, genes []string) (*Dataset, error) {
	if len(barcodes) == 0 || len(genes) == 0 {
		return nil, fmt.Errorf("dataset %q: %w", name, ErrMissingAxisLabels)
	}
	rows, cols := raw.Dims()
	if rows != len(barcodes) || cols != len(genes) {
		return nil, fmt.Errorf("dataset %q: %w: matrix is %dx%d, labels are %dx%d",
			name, ErrAxisMismatch, rows, cols, len(barcodes), len(genes))
	}
	return &Dataset{
		ID:        uuid.New(),
		Name:      name,
		Modality:  modality,
		Barcodes:  barcodes,
		GeneNames: genes,
		Raw:       raw,
	}, nil
}

// Cells returns the number of cells (rows).
func (d *Dataset) Cells() int {
	return len(d.Barcodes)
}

// Genes returns the number of genes (columns of Raw).
func (d *Dataset) Genes() int {
	return len(d.GeneNames)
}

// Layer returns the matrix for a slot, or nil if not computed.
func (d *Dataset) Layer(slot Slot) *sparse.CSR {
	switch slot {
	case SlotRaw:
		return d.Raw
	case SlotNorm:
		return d.Norm
	case SlotScale:
		return d.Scale
	default:
		return nil
	}
}

// removeEmpty drops all-zero rows or columns of the given slot and keeps
// the axis labels and sibling layers consistent. Returns the number of
// entries removed and their labels (for logging).
func (d *Dataset) removeEmpty(slot Slot, axis Axis) (int, []string, error) {
	m := d.Layer(slot)
	if m == nil {
		return 0, nil, fmt.Errorf("dataset %q: slot %s: %w", d.Name, slot, ErrLayerMissing)
	}

	var totals []float64
	if axis == AxisCells {
		totals = matrix.RowSums(m)
	} else {
		totals = matrix.ColSums(m)
	}

	keep := make([]bool, len(totals))
	var dropped []string
	for i, total := range totals {
		keep[i] = total != 0
		if total == 0 {
			dropped = append(dropped, d.labelFor(slot, axis, i))
		}
	}
	if len(dropped) == 0 {
		return 0, nil, nil
	}

	if axis == AxisCells {
		if err := d.applyCellMask(keep); err != nil {
			return 0, nil, err
		}
	} else if slot == SlotScale {
		// The scale layer has its own gene axis; other layers keep theirs.
		sub, err := matrix.SelectColumns(d.Scale, keep)
		if err != nil {
			return 0, nil, err
		}
		d.Scale = sub
		d.ScaleGenes = filterStrings(d.ScaleGenes, keep)
	} else {
		if err := d.applyGeneMask(keep); err != nil {
			return 0, nil, err
		}
	}
	return len(dropped), dropped, nil
}

// labelFor returns the axis label at index i for the given slot.
func (d *Dataset) labelFor(slot Slot, axis Axis, i int) string {
	if axis == AxisCells {
		return d.Barcodes[i]
	}
	if slot == SlotScale {
		return d.ScaleGenes[i]
	}
	return d.GeneNames[i]
}

// applyCellMask slices every layer and the barcode axis by the mask.
func (d *Dataset) applyCellMask(keep []bool) error {
	raw, err := matrix.SelectRows(d.Raw, keep)
	if err != nil {
		return err
	}
	d.Raw = raw
	if d.Norm != nil {
		if d.Norm, err = matrix.SelectRows(d.Norm, keep); err != nil {
			return err
		}
	}
	if d.Scale != nil {
		if d.Scale, err = matrix.SelectRows(d.Scale, keep); err != nil {
			return err
		}
	}
	d.Barcodes = filterStrings(d.Barcodes, keep)
	return nil
}

// applyGeneMask slices Raw and Norm and the gene axis by the mask.
// Scale is untouched: it has its own gene subset.
func (d *Dataset) applyGeneMask(keep []bool) error {
	raw, err := matrix.SelectColumns(d.Raw, keep)
	if err != nil {
		return err
	}
	d.Raw = raw
	if d.Norm != nil {
		if d.Norm, err = matrix.SelectColumns(d.Norm, keep); err != nil {
			return err
		}
	}
	d.GeneNames = filterStrings(d.GeneNames, keep)
	return nil
}

// SubsetGenes restricts Raw and Norm to the genes in keep, preserving
// the dataset's column order. Genes absent from the dataset are ignored.
func (d *Dataset) SubsetGenes(keep map[string]bool) error {
	mask := make([]bool, len(d.GeneNames))
	for j, gene := range d.GeneNames {
		mask[j] = keep[gene]
	}
	return d.applyGeneMask(mask)
}

func filterStrings(values []string, keep []bool) []string {
	out := make([]string, 0, len(values))
	for i, v := range values {
		if keep[i] {
			out = append(out, v)
		}
	}
	return out
}
