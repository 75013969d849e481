// Copyright (C) 2025 Enformatik (oss@enformatik.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package dataset

import (
	"fmt"

	"github.com/enformatik/pyliger/pkg/logging"
	"github.com/enformatik/pyliger/pkg/validation"
	"github.com/enformatik/pyliger/services/liger/matrix"
)

// CellRecord is the per-cell metadata row computed at study creation:
// total transcript count, expressed gene count, and owning dataset.
type CellRecord struct {
	Barcode string
	NUMI    float64
	NGene   int
	Dataset string
}

// Study is an ordered collection of datasets sharing a preprocessing
// run, the Liger-object analog. VarGenes is filled by gene selection.
type Study struct {
	Datasets []*Dataset
	CellData []CellRecord
	VarGenes []string

	logger *logging.Logger
}

// Option configures study creation.
type Option func(*createOptions)

type createOptions struct {
	geneUnion     bool
	removeMissing bool
	logger        *logging.Logger
}

// WithGeneUnion fills every dataset out to the union of genes across all
// datasets, zero-filling missing genes, then drops genes expressed in no
// dataset. Off by default.
func WithGeneUnion() Option {
	return func(o *createOptions) { o.geneUnion = true }
}

// WithKeepMissing disables removal of empty cells and genes at creation.
func WithKeepMissing() Option {
	return func(o *createOptions) { o.removeMissing = false }
}

// WithLogger sets the study logger. Default: logging.Default().
func WithLogger(l *logging.Logger) Option {
	return func(o *createOptions) { o.logger = l }
}

// New creates a Study from datasets, the create-study entry point.
//
// Description:
//
//	Validates sample names and axis labels, rejects barcodes repeated
//	across datasets, optionally takes the gene union, removes cells and
//	genes with no expression, and computes per-cell metadata (nUMI,
//	nGene, dataset).
//
// Inputs:
//
//	datasets - At least one dataset; order is preserved
//	opts - Creation options
//
// Outputs:
//
//	*Study - Ready for Normalize
//	error - ErrNoDatasets, ErrDuplicateBarcode, or a validation error
func New(datasets []*Dataset, opts ...Option) (*Study, error) {
	options := createOptions{removeMissing: true}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = logging.Default()
	}
	if len(datasets) == 0 {
		return nil, ErrNoDatasets
	}

	names := make([]string, len(datasets))
	for i, d := range datasets {
		names[i] = d.Name
	}
	if err := validation.ValidateSampleNames(names); err != nil {
		return nil, err
	}

	for _, d := range datasets {
		if len(d.Barcodes) == 0 || len(d.GeneNames) == 0 {
			return nil, fmt.Errorf("dataset %q: %w", d.Name, ErrMissingAxisLabels)
		}
		rows, cols := d.Raw.Dims()
		if rows != len(d.Barcodes) || cols != len(d.GeneNames) {
			return nil, fmt.Errorf("dataset %q: %w", d.Name, ErrAxisMismatch)
		}
	}

	seen := make(map[string]string)
	for _, d := range datasets {
		for _, bc := range d.Barcodes {
			if owner, dup := seen[bc]; dup {
				return nil, fmt.Errorf("%w: %q in %q and %q", ErrDuplicateBarcode, bc, owner, d.Name)
			}
			seen[bc] = d.Name
		}
	}

	study := &Study{
		Datasets: datasets,
		logger:   options.logger,
	}

	if options.geneUnion {
		if err := study.mergeGeneUnion(options.removeMissing); err != nil {
			return nil, fmt.Errorf("gene union: %w", err)
		}
	}

	if options.removeMissing {
		if err := study.RemoveMissing(SlotRaw, AxisCells); err != nil {
			return nil, err
		}
		if !options.geneUnion {
			if err := study.RemoveMissing(SlotRaw, AxisGenes); err != nil {
				return nil, err
			}
		}
	}

	study.refreshCellData()
	return study, nil
}

// Logger returns the study logger.
func (s *Study) Logger() *logging.Logger {
	if s.logger == nil {
		s.logger = logging.Default()
	}
	return s.logger
}

// RemoveMissing drops all-zero cells or genes of the chosen slot from
// every dataset. Dataset names and ordering are preserved; dropped
// labels are logged, listed individually when fewer than 25.
func (s *Study) RemoveMissing(slot Slot, axis Axis) error {
	logger := s.Logger()
	cellsDropped := false
	for _, d := range s.Datasets {
		n, labels, err := d.removeEmpty(slot, axis)
		if err != nil {
			return err
		}
		if n == 0 {
			continue
		}
		if axis == AxisCells {
			cellsDropped = true
			cellsDroppedTotal.Add(float64(n))
			logger.Info("removing cells not expressing any genes",
				"dataset", d.Name, "count", n)
		} else {
			genesDroppedTotal.Add(float64(n))
			logger.Info("removing genes not expressed in any cells",
				"dataset", d.Name, "count", n)
		}
		if n < 25 {
			logger.Debug("dropped labels", "dataset", d.Name, "labels", labels)
		}
	}
	if cellsDropped && s.CellData != nil {
		s.refreshCellData()
	}
	return nil
}

// refreshCellData recomputes CellData from the raw layers.
func (s *Study) refreshCellData() {
	var total int
	for _, d := range s.Datasets {
		total += d.Cells()
	}
	records := make([]CellRecord, 0, total)
	for _, d := range s.Datasets {
		sums := matrix.RowSums(d.Raw)
		counts := matrix.RowNonZeroCounts(d.Raw)
		for i, bc := range d.Barcodes {
			records = append(records, CellRecord{
				Barcode: bc,
				NUMI:    sums[i],
				NGene:   counts[i],
				Dataset: d.Name,
			})
		}
	}
	s.CellData = records
}

// mergeGeneUnion expands every dataset's raw matrix to the union of all
// gene names (first-seen order), zero-filling genes a dataset lacks.
// When dropMissing is set, genes expressed in no dataset are removed
// from the union afterwards.
func (s *Study) mergeGeneUnion(dropMissing bool) error {
	var union []string
	index := make(map[string]int)
	for _, d := range s.Datasets {
		for _, gene := range d.GeneNames {
			if _, ok := index[gene]; !ok {
				index[gene] = len(union)
				union = append(union, gene)
			}
		}
	}

	for _, d := range s.Datasets {
		ri, ci, vals := matrix.Triplets(d.Raw)
		for k := range ci {
			ci[k] = index[d.GeneNames[ci[k]]]
		}
		expanded, err := matrix.FromTriplets(d.Cells(), len(union), ri, ci, vals)
		if err != nil {
			return fmt.Errorf("dataset %q: %w", d.Name, err)
		}
		d.Raw = expanded
		d.GeneNames = append([]string(nil), union...)
	}

	if !dropMissing {
		return nil
	}

	// Drop union genes with zero counts everywhere.
	expressed := make([]bool, len(union))
	for _, d := range s.Datasets {
		for j, total := range matrix.ColSums(d.Raw) {
			if total != 0 {
				expressed[j] = true
			}
		}
	}
	missing := 0
	for _, e := range expressed {
		if !e {
			missing++
		}
	}
	if missing == 0 {
		return nil
	}
	s.Logger().Info("removing genes not expressed in any cells across merged datasets",
		"count", missing)
	for _, d := range s.Datasets {
		if err := d.applyGeneMask(expressed); err != nil {
			return fmt.Errorf("dataset %q: %w", d.Name, err)
		}
	}
	return nil
}

// GeneUnion returns the union of gene names across datasets in
// first-seen order.
func (s *Study) GeneUnion() []string {
	var union []string
	seen := make(map[string]bool)
	for _, d := range s.Datasets {
		for _, gene := range d.GeneNames {
			if !seen[gene] {
				seen[gene] = true
				union = append(union, gene)
			}
		}
	}
	return union
}

// GeneIntersection returns the genes present in every dataset, ordered
// by the first dataset.
func (s *Study) GeneIntersection() []string {
	if len(s.Datasets) == 0 {
		return nil
	}
	counts := make(map[string]int)
	for _, d := range s.Datasets {
		for _, gene := range d.GeneNames {
			counts[gene]++
		}
	}
	var common []string
	for _, gene := range s.Datasets[0].GeneNames {
		if counts[gene] == len(s.Datasets) {
			common = append(common, gene)
		}
	}
	return common
}
