// Copyright (C) 2025 Enformatik (oss@enformatik.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package preprocess

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/enformatik/pyliger/services/liger/dataset"
	"github.com/enformatik/pyliger/services/liger/matrix"
)

// CombineMode controls how per-dataset gene sets combine.
type CombineMode string

const (
	// CombineUnion keeps genes variable in any dataset.
	CombineUnion CombineMode = "union"

	// CombineIntersect keeps genes variable in every dataset used.
	CombineIntersect CombineMode = "intersect"
)

// varThreshBounds for the NumGenes search, matching the practical range
// of the variance threshold.
const (
	varThreshLo = 0.0
	varThreshHi = 1.5
)

// SelectOptions configures variable gene selection.
type SelectOptions struct {
	// VarThresh is the variance threshold per dataset; a single value
	// broadcasts to all datasets. Genes whose expression variance
	// exceeds the threshold relative to their mean are selected.
	// Higher thresholds select fewer genes. Default: 0.1.
	VarThresh []float64

	// AlphaThresh controls the upper bound on expected mean gene
	// expression (lower alpha, higher bound). Default: 0.99.
	AlphaThresh float64

	// NumGenes, when positive, tunes VarThresh per dataset to select
	// approximately this many genes.
	NumGenes int

	// Tol is the search tolerance for NumGenes tuning. Default: 1e-4.
	Tol float64

	// DatasetsUse restricts discovery to these dataset indices.
	// Default: all datasets. Out-of-range indices are ignored.
	DatasetsUse []int

	// Combine merges per-dataset gene sets. Default: CombineUnion.
	Combine CombineMode

	// KeepUnique keeps selected genes that exist in only some datasets.
	// When false (default), the result is intersected with every
	// dataset's gene axis.
	KeepUnique bool

	// Capitalize upper-cases gene names before selection to match
	// homologs across species.
	Capitalize bool
}

func (o SelectOptions) withDefaults(n int) (SelectOptions, error) {
	if len(o.VarThresh) == 0 {
		o.VarThresh = []float64{0.1}
	}
	if len(o.VarThresh) == 1 && n > 1 {
		v := o.VarThresh[0]
		o.VarThresh = make([]float64, n)
		for i := range o.VarThresh {
			o.VarThresh[i] = v
		}
	}
	if len(o.VarThresh) != n {
		return o, fmt.Errorf("%w: %d variance thresholds for %d datasets", ErrBadOptions, len(o.VarThresh), n)
	}
	if o.AlphaThresh == 0 {
		o.AlphaThresh = 0.99
	}
	if o.AlphaThresh < 0 || o.AlphaThresh > 1 {
		return o, fmt.Errorf("%w: alpha threshold %v outside [0, 1]", ErrBadOptions, o.AlphaThresh)
	}
	if o.Tol <= 0 {
		o.Tol = 1e-4
	}
	if o.Combine == "" {
		o.Combine = CombineUnion
	}
	if o.Combine != CombineUnion && o.Combine != CombineIntersect {
		return o, fmt.Errorf("%w: combine %q", ErrBadOptions, o.Combine)
	}
	if len(o.DatasetsUse) == 0 {
		o.DatasetsUse = make([]int, n)
		for i := range o.DatasetsUse {
			o.DatasetsUse[i] = i
		}
	} else {
		var inRange []int
		for _, i := range o.DatasetsUse {
			if i >= 0 && i < n {
				inRange = append(inRange, i)
			}
		}
		o.DatasetsUse = inRange
	}
	return o, nil
}

// SelectGenes identifies highly variable genes in each dataset and
// combines the per-dataset sets into study.VarGenes.
//
// Description:
//
//	Assumes expression approximately follows a Poisson distribution.
//	For each dataset the expected technical variance of a gene is its
//	mean expression times the Nolan constant (mean reciprocal cell
//	depth); genes whose observed variance exceeds both the
//	alpha-corrected upper bound and the log-scale variance threshold
//	are selected. The result is sorted lexicographically.
//
// Inputs:
//
//	ctx - Checked between datasets
//	study - Study with Norm layers (Normalize must have run)
//	opts - Selection options
//
// Outputs:
//
//	error - ErrNotNormalized, ErrBadOptions, or cancellation
//
// An empty final selection logs a warning instead of failing, so
// callers can retry with a lower threshold.
func SelectGenes(ctx context.Context, study *dataset.Study, opts SelectOptions) error {
	timer := prometheus.NewTimer(selectGenesDuration)
	defer timer.ObserveDuration()

	logger := study.Logger()
	opts, err := opts.withDefaults(len(study.Datasets))
	if err != nil {
		return err
	}

	var combined []string
	haveAny := false
	for _, i := range opts.DatasetsUse {
		if err := ctx.Err(); err != nil {
			return err
		}
		d := study.Datasets[i]
		if d.Norm == nil {
			return fmt.Errorf("dataset %q: %w", d.Name, ErrNotNormalized)
		}

		if opts.Capitalize {
			for j, gene := range d.GeneNames {
				d.GeneNames[j] = strings.ToUpper(gene)
			}
		}

		stats := newGeneStats(d, opts.AlphaThresh)
		thresh := opts.VarThresh[i]
		if opts.NumGenes > 0 {
			thresh = tuneThreshold(stats, opts.NumGenes, opts.Tol)
			got := len(stats.selectAt(thresh))
			if got != opts.NumGenes {
				logger.Warn("selected gene count differs from requested",
					"dataset", d.Name, "requested", opts.NumGenes, "selected", got,
					"var_thresh", thresh)
			}
		}

		selected := stats.selectAt(thresh)
		logger.Info("selected variable genes", "dataset", d.Name,
			"genes", len(selected), "var_thresh", thresh)

		if !haveAny {
			combined = selected
			haveAny = true
			continue
		}
		if opts.Combine == CombineUnion {
			combined = unionStrings(combined, selected)
		} else {
			combined = intersectStrings(combined, selected)
		}
	}

	if !opts.KeepUnique {
		for _, d := range study.Datasets {
			combined = intersectStrings(combined, d.GeneNames)
		}
	}

	sort.Strings(combined)
	study.VarGenes = combined
	variableGenes.Set(float64(len(combined)))

	if len(combined) == 0 {
		logger.Warn("no genes were selected, lower var_thresh or combine with union")
	}
	return nil
}

// geneStats holds the per-gene quantities the Poisson model needs.
type geneStats struct {
	names     []string
	mean      []float64 // mean normalized expression per gene
	variance  []float64 // population variance per gene
	upper     []float64 // alpha-corrected upper bound on expected mean
	baseLower []float64 // log10 expected variance floor
	nolan     float64
}

func newGeneStats(d *dataset.Dataset, alpha float64) *geneStats {
	cells := float64(d.Cells())
	genes := float64(d.Genes())

	trx := matrix.RowSums(d.Raw)
	recipSum := 0.0
	for _, t := range trx {
		if t > 0 {
			recipSum += 1 / t
		}
	}
	nolan := recipSum / cells

	g := &geneStats{
		names:    d.GeneNames,
		mean:     matrix.ColMeans(d.Norm),
		variance: matrix.ColVariances(d.Norm),
		nolan:    nolan,
	}

	normal := distuv.Normal{Mu: 0, Sigma: 1}
	alphaCorrected := alpha / genes
	q := normal.Quantile(1 - alphaCorrected/2)

	g.upper = make([]float64, len(g.mean))
	g.baseLower = make([]float64, len(g.mean))
	for j, m := range g.mean {
		g.upper[j] = m + q*math.Sqrt(m*nolan/cells)
		g.baseLower[j] = math.Log10(m * nolan)
	}
	return g
}

// selectAt returns the names of genes passing both bounds at the given
// variance threshold.
func (g *geneStats) selectAt(thresh float64) []string {
	var selected []string
	for j, v := range g.variance {
		if v <= 0 {
			continue
		}
		if v/g.nolan > g.upper[j] && math.Log10(v) > g.baseLower[j]+thresh {
			selected = append(selected, g.names[j])
		}
	}
	return selected
}

// tuneThreshold finds the variance threshold whose selection count is
// closest to target. The count is non-increasing in the threshold, so a
// bisection over [varThreshLo, varThreshHi] converges; tol bounds the
// final interval width.
func tuneThreshold(g *geneStats, target int, tol float64) float64 {
	lo, hi := varThreshLo, varThreshHi
	for hi-lo > tol {
		mid := (lo + hi) / 2
		if len(g.selectAt(mid)) > target {
			lo = mid
		} else {
			hi = mid
		}
	}
	// Pick the endpoint closest to the target.
	dLo := absInt(len(g.selectAt(lo)) - target)
	dHi := absInt(len(g.selectAt(hi)) - target)
	if dLo < dHi {
		return lo
	}
	return hi
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, s := range a {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func intersectStrings(a, b []string) []string {
	inB := make(map[string]bool, len(b))
	for _, s := range b {
		inB[s] = true
	}
	var out []string
	for _, s := range a {
		if inB[s] {
			out = append(out, s)
		}
	}
	return out
}
