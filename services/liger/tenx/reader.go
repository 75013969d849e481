// Copyright (C) 2025 Enformatik (oss@enformatik.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tenx

import (
	"bufio"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/james-bowman/sparse"
	"golang.org/x/sync/errgroup"

	"github.com/enformatik/pyliger/pkg/logging"
	"github.com/enformatik/pyliger/pkg/validation"
	"github.com/enformatik/pyliger/services/liger/dataset"
	"github.com/enformatik/pyliger/services/liger/matrix"
)

// DataType selects the feature file layout of the input.
type DataType string

const (
	// DataTypeRNA reads genes.tsv / features.tsv.gz feature files.
	DataTypeRNA DataType = "rna"

	// DataTypeATAC reads peaks.bed(.gz) feature files; feature names
	// become chrom:start-end coordinates.
	DataTypeATAC DataType = "atac"
)

// Options configures 10X reads. The zero value reads raw RNA data with
// no UMI filter, serially, without merging.
type Options struct {
	// DataType is the input protocol. Default: DataTypeRNA.
	DataType DataType

	// UseFiltered selects CellRanger's filtered output over raw. Only
	// relevant for outer run directories containing outs/.
	UseFiltered bool

	// Reference names the V2 reference directory when the run was
	// aligned against more than one reference genome.
	Reference string

	// MinUMI drops cells whose total transcript count is not above
	// this threshold. Applied before dataset construction.
	MinUMI float64

	// MaxCells caps each gene-expression dataset at the N cells with
	// the highest transcript counts. 0 means no cap.
	MaxCells int

	// Merge combines same-modality datasets across samples into one
	// dataset per modality. Merged barcodes are prefixed with the
	// sample name to keep them unique.
	Merge bool

	// Parallelism bounds concurrent sample reads. Default: 1.
	Parallelism int

	// Logger receives progress entries. Default: logging.Default().
	Logger *logging.Logger
}

func (o *Options) withDefaults() Options {
	opts := *o
	if opts.DataType == "" {
		opts.DataType = DataTypeRNA
	}
	if opts.Parallelism < 1 {
		opts.Parallelism = 1
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	return opts
}

// Sample identifies one input: a directory and the name its datasets
// will carry.
type Sample struct {
	Dir  string
	Name string
}

// ReadSamples reads multiple sample directories with bounded
// parallelism, preserving sample order in the result.
//
// Description:
//
//	Each sample is read independently; a failure in any sample aborts
//	the remaining reads. With opts.Merge, same-modality datasets across
//	samples are combined into one dataset per modality, in order of
//	first appearance.
//
// Inputs:
//
//	ctx - Cancels in-flight reads
//	samples - Sample directories and names
//	opts - Read options shared by all samples
//
// Outputs:
//
//	[]*dataset.Dataset - One or more datasets per sample (several when
//	  a V3 matrix carries multiple feature types), or one per modality
//	  when merging
//	error - First failure
func ReadSamples(ctx context.Context, samples []Sample, opts Options) ([]*dataset.Dataset, error) {
	opts = opts.withDefaults()

	names := make([]string, len(samples))
	for i, s := range samples {
		names[i] = s.Name
	}
	if err := validation.ValidateSampleNames(names); err != nil {
		return nil, err
	}

	results := make([][]*dataset.Dataset, len(samples))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Parallelism)
	for i, sample := range samples {
		i, sample := i, sample
		g.Go(func() error {
			read, err := ReadSample(gctx, sample, opts)
			if err != nil {
				return fmt.Errorf("sample %q: %w", sample.Name, err)
			}
			results[i] = read
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []*dataset.Dataset
	for _, r := range results {
		all = append(all, r...)
	}
	if !opts.Merge {
		return all, nil
	}

	opts.Logger.Info("merging samples", "datasets", len(all))
	return MergeByModality(all)
}

// ReadSample reads one 10X sample directory.
func ReadSample(ctx context.Context, sample Sample, opts Options) ([]*dataset.Dataset, error) {
	opts = opts.withDefaults()
	logger := opts.Logger.With("sample", sample.Name)

	if err := validation.ValidateSampleName(sample.Name); err != nil {
		return nil, err
	}
	if err := validation.ValidateDataDir(sample.Dir); err != nil {
		return nil, err
	}
	if opts.DataType != DataTypeRNA && opts.DataType != DataTypeATAC {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDataType, opts.DataType)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger.Info("processing sample", "dir", sample.Dir)

	matrixDir, v3, err := resolveLayout(sample.Dir, opts)
	if err != nil {
		return nil, err
	}

	mm, err := readMatrixFile(matrixDir)
	if err != nil {
		return nil, err
	}
	barcodes, err := readBarcodes(matrixDir)
	if err != nil {
		return nil, err
	}
	features, modality, types, err := readFeatures(matrixDir, opts.DataType, v3)
	if err != nil {
		return nil, err
	}

	// On disk the matrix is genes x cells.
	if mm.Rows != len(features) {
		return nil, fmt.Errorf("%w: %d features for %d matrix rows", ErrAxisMismatch, len(features), mm.Rows)
	}
	if mm.Cols != len(barcodes) {
		return nil, fmt.Errorf("%w: %d barcodes for %d matrix columns", ErrAxisMismatch, len(barcodes), mm.Cols)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// UMI filter runs first to shrink everything downstream.
	cellTotals := make([]float64, mm.Cols)
	for k, c := range mm.CI {
		cellTotals[c] += mm.V[k]
	}
	keepCell := make([]int, mm.Cols) // new index or -1
	kept := 0
	for c, total := range cellTotals {
		if total > opts.MinUMI {
			keepCell[c] = kept
			kept++
		} else {
			keepCell[c] = -1
		}
	}
	if kept == 0 {
		logger.Warn("no cells pass UMI cutoff, lower it", "min_umi", opts.MinUMI)
	}
	if kept < len(barcodes) {
		logger.Info("filtered cells below UMI cutoff",
			"kept", kept, "dropped", len(barcodes)-kept, "min_umi", opts.MinUMI)
	}

	keptBarcodes := make([]string, 0, kept)
	for c, bc := range barcodes {
		if keepCell[c] >= 0 {
			keptBarcodes = append(keptBarcodes, bc)
		}
	}

	// Transpose to cells x genes while remapping filtered cells.
	var ri, ci []int
	var vals []float64
	for k := range mm.V {
		cell := keepCell[mm.CI[k]]
		if cell < 0 {
			continue
		}
		ri = append(ri, cell)
		ci = append(ci, mm.RI[k])
		vals = append(vals, mm.V[k])
	}
	counts, err := matrix.FromTriplets(kept, len(features), ri, ci, vals)
	if err != nil {
		return nil, err
	}

	datasets, err := splitByType(sample.Name, counts, keptBarcodes, features, types, modality)
	if err != nil {
		return nil, err
	}

	if opts.MaxCells > 0 {
		for _, d := range datasets {
			if d.Modality != dataset.GeneExpression {
				continue
			}
			if err := capCells(d, opts.MaxCells, logger); err != nil {
				return nil, err
			}
		}
	}

	for _, d := range datasets {
		logger.Info("read dataset", "modality", string(d.Modality),
			"cells", d.Cells(), "genes", d.Genes())
	}
	return datasets, nil
}

// resolveLayout maps a sample directory to the directory holding the
// matrix files and reports whether the layout is V3.
func resolveLayout(dir string, opts Options) (string, bool, error) {
	outs := filepath.Join(dir, "outs")
	if _, err := os.Stat(outs); err != nil {
		// Matrix directory given directly; gzipped features mark V3.
		_, err := os.Stat(filepath.Join(dir, "features.tsv.gz"))
		return dir, err == nil, nil
	}

	prefix := "raw"
	if opts.UseFiltered {
		prefix = "filtered"
	}

	if _, err := os.Stat(filepath.Join(outs, "filtered_feature_bc_matrix")); err == nil {
		return filepath.Join(outs, prefix+"_feature_bc_matrix"), true, nil
	}

	reference := opts.Reference
	if reference == "" {
		entries, err := os.ReadDir(filepath.Join(outs, "raw_gene_bc_matrices"))
		if err != nil {
			return "", false, fmt.Errorf("listing references: %w", err)
		}
		if len(entries) > 1 {
			return "", false, ErrAmbiguousReference
		}
		if len(entries) == 1 {
			reference = entries[0].Name()
		}
	}
	return filepath.Join(outs, prefix+"_gene_bc_matrices", reference), false, nil
}

// readMatrixFile locates and parses matrix.mtx(.gz).
func readMatrixFile(dir string) (*mmMatrix, error) {
	path, err := locate(dir, "matrix.mtx")
	if err != nil {
		return nil, err
	}
	r, err := openMaybeGzip(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	mm, err := readMatrixMarket(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return mm, nil
}

// readBarcodes reads barcodes.tsv(.gz) and strips the trailing "-1"
// GEM-well tag CellRanger appends.
func readBarcodes(dir string) ([]string, error) {
	lines, err := readTSV(dir, "barcodes.tsv")
	if err != nil {
		return nil, err
	}
	barcodes := make([]string, len(lines))
	for i, fields := range lines {
		barcodes[i] = strings.TrimSuffix(fields[0], "-1")
	}
	return barcodes, nil
}

// readFeatures reads the feature file for the data type and returns
// feature names (deduplicated), the default modality, and the per-feature
// type column when present (V3 multi-modality).
func readFeatures(dir string, dataType DataType, v3 bool) ([]string, dataset.Modality, []string, error) {
	var lines [][]string
	var err error
	switch dataType {
	case DataTypeATAC:
		lines, err = readTSV(dir, "peaks.bed")
		if err != nil {
			return nil, "", nil, err
		}
		names := make([]string, len(lines))
		for i, fields := range lines {
			if len(fields) < 3 {
				return nil, "", nil, fmt.Errorf("%w: peaks.bed line %d has %d fields", ErrMalformedEntry, i+1, len(fields))
			}
			names[i] = fmt.Sprintf("%s:%s-%s", fields[0], fields[1], fields[2])
		}
		return names, dataset.ChromatinAccessibility, nil, nil

	case DataTypeRNA:
		name := "genes.tsv"
		if v3 {
			name = "features.tsv"
		}
		lines, err = readTSV(dir, name)
		if err != nil {
			return nil, "", nil, err
		}
		names := make([]string, len(lines))
		var types []string
		hasTypes := len(lines) > 0 && len(lines[0]) >= 3
		if hasTypes {
			types = make([]string, len(lines))
		}
		modality := dataset.GeneExpression
		for i, fields := range lines {
			switch {
			case len(fields) == 1:
				// Single-column feature files are preprocessed ATAC output.
				names[i] = fields[0]
				modality = dataset.ChromatinAccessibility
			default:
				names[i] = fields[1]
			}
			if hasTypes {
				if len(fields) < 3 {
					return nil, "", nil, fmt.Errorf("%w: %s line %d missing feature type", ErrMalformedEntry, name, i+1)
				}
				types[i] = fields[2]
			}
		}
		return makeUnique(names), modality, types, nil

	default:
		return nil, "", nil, fmt.Errorf("%w: %q", ErrUnsupportedDataType, dataType)
	}
}

// splitByType builds datasets from the assembled matrix, one per
// feature type when the V3 type column is present.
func splitByType(name string, counts *sparse.CSR, barcodes, features, types []string, modality dataset.Modality) ([]*dataset.Dataset, error) {
	if len(types) == 0 {
		d, err := dataset.NewDataset(name, modality, counts, barcodes, features)
		if err != nil {
			return nil, err
		}
		return []*dataset.Dataset{d}, nil
	}

	// Preserve type order of first appearance.
	var order []string
	seen := make(map[string]bool)
	for _, ty := range types {
		if !seen[ty] {
			seen[ty] = true
			order = append(order, ty)
		}
	}

	var datasets []*dataset.Dataset
	for _, ty := range order {
		mask := make([]bool, len(features))
		var subNames []string
		for j, t := range types {
			if t == ty {
				mask[j] = true
				subNames = append(subNames, features[j])
			}
		}
		sub, err := matrix.SelectColumns(counts, mask)
		if err != nil {
			return nil, err
		}
		d, err := dataset.NewDataset(name, dataset.Modality(ty), sub, barcodes, subNames)
		if err != nil {
			return nil, err
		}
		datasets = append(datasets, d)
	}
	return datasets, nil
}

// capCells keeps the n cells with the highest transcript totals.
func capCells(d *dataset.Dataset, n int, logger *logging.Logger) error {
	if d.Cells() <= n {
		logger.Info("requested more cells than matrix holds, returning all",
			"dataset", d.Name, "cells", d.Cells(), "requested", n)
		return nil
	}
	totals := matrix.RowSums(d.Raw)
	idx := make([]int, len(totals))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return totals[idx[a]] > totals[idx[b]] })

	keep := make([]bool, len(totals))
	for _, i := range idx[:n] {
		keep[i] = true
	}
	raw, err := matrix.SelectRows(d.Raw, keep)
	if err != nil {
		return err
	}
	d.Raw = raw
	kept := make([]string, 0, n)
	for i, bc := range d.Barcodes {
		if keep[i] {
			kept = append(kept, bc)
		}
	}
	d.Barcodes = kept
	logger.Info("capped cells by transcript count", "dataset", d.Name, "kept", n)
	return nil
}

// makeUnique disambiguates repeated names the way R's make.unique does:
// the first occurrence is unchanged, later ones get .1, .2, ... suffixes.
func makeUnique(names []string) []string {
	counts := make(map[string]int, len(names))
	out := make([]string, len(names))
	for i, name := range names {
		n := counts[name]
		counts[name] = n + 1
		if n == 0 {
			out[i] = name
		} else {
			out[i] = fmt.Sprintf("%s.%d", name, n)
		}
	}
	return out
}

// locate finds a file in dir as either name or name.gz.
func locate(dir, name string) (string, error) {
	plain := filepath.Join(dir, name)
	if _, err := os.Stat(plain); err == nil {
		return plain, nil
	}
	gz := plain + ".gz"
	if _, err := os.Stat(gz); err == nil {
		return gz, nil
	}
	return "", fmt.Errorf("%w: %s(.gz) in %s", ErrMissingFile, name, dir)
}

// openMaybeGzip opens a file, transparently decompressing .gz.
func openMaybeGzip(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	zr, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &gzipReadCloser{zr: zr, f: f}, nil
}

type gzipReadCloser struct {
	zr *gzip.Reader
	f  *os.File
}

func (g *gzipReadCloser) Read(p []byte) (int, error) { return g.zr.Read(p) }

func (g *gzipReadCloser) Close() error {
	zerr := g.zr.Close()
	ferr := g.f.Close()
	if zerr != nil {
		return zerr
	}
	return ferr
}

// readTSV locates name(.gz) in dir and reads tab-separated lines.
func readTSV(dir, name string) ([][]string, error) {
	path, err := locate(dir, name)
	if err != nil {
		return nil, err
	}
	r, err := openMaybeGzip(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var lines [][]string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" {
			continue
		}
		lines = append(lines, strings.Split(line, "\t"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return lines, nil
}
