// Copyright (C) 2025 Enformatik (oss@enformatik.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tenx

import (
	"fmt"
	"strings"

	"github.com/enformatik/pyliger/services/liger/dataset"
	"github.com/enformatik/pyliger/services/liger/matrix"
)

// MergeByModality combines same-modality datasets from different
// samples into one dataset per modality.
//
// Description:
//
//	Within each modality (ordered by first appearance) the gene axes
//	are unioned in first-seen order with zero fill, and cell rows are
//	stacked in input order. Barcodes are prefixed with the source
//	sample name ("ctrl_AAACGG") so merged barcodes stay unique across
//	samples sequenced with the same GEM wells.
//
// Inputs:
//
//	datasets - Datasets to merge; raw layers only
//
// Outputs:
//
//	[]*dataset.Dataset - One dataset per modality
//	error - Non-nil on matrix assembly failure
func MergeByModality(datasets []*dataset.Dataset) ([]*dataset.Dataset, error) {
	var order []dataset.Modality
	groups := make(map[dataset.Modality][]*dataset.Dataset)
	for _, d := range datasets {
		if _, ok := groups[d.Modality]; !ok {
			order = append(order, d.Modality)
		}
		groups[d.Modality] = append(groups[d.Modality], d)
	}

	var merged []*dataset.Dataset
	for _, modality := range order {
		group := groups[modality]
		if len(group) == 1 {
			merged = append(merged, group[0])
			continue
		}
		m, err := mergeGroup(modality, group)
		if err != nil {
			return nil, fmt.Errorf("merging %s: %w", modality, err)
		}
		merged = append(merged, m)
	}
	return merged, nil
}

// mergeGroup stacks a group of same-modality datasets.
func mergeGroup(modality dataset.Modality, group []*dataset.Dataset) (*dataset.Dataset, error) {
	var union []string
	index := make(map[string]int)
	for _, d := range group {
		for _, gene := range d.GeneNames {
			if _, ok := index[gene]; !ok {
				index[gene] = len(union)
				union = append(union, gene)
			}
		}
	}

	var barcodes []string
	var ri, ci []int
	var vals []float64
	rowOffset := 0
	for _, d := range group {
		for _, bc := range d.Barcodes {
			barcodes = append(barcodes, d.Name+"_"+bc)
		}
		dri, dci, dvals := matrix.Triplets(d.Raw)
		for k := range dri {
			ri = append(ri, dri[k]+rowOffset)
			ci = append(ci, index[d.GeneNames[dci[k]]])
			vals = append(vals, dvals[k])
		}
		rowOffset += d.Cells()
	}

	stacked, err := matrix.FromTriplets(rowOffset, len(union), ri, ci, vals)
	if err != nil {
		return nil, err
	}
	name := strings.ReplaceAll(strings.ToLower(string(modality)), " ", "_")
	return dataset.NewDataset(name, modality, stacked, barcodes, union)
}
