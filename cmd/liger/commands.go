// Copyright (C) 2025 Enformatik (oss@enformatik.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	configPath  string
	sampleNames []string
	dataType    string
	minUMI      float64
	maxCells    int
	useRaw      bool
	reference   string
	mergeAll    bool
	noCache     bool

	varThresh   []float64
	numGenes    int
	combineMode string

	rootCmd = &cobra.Command{
		Use:   "liger",
		Short: "A cli for loading and preprocessing single-cell datasets",
		Long: `Liger loads 10X Genomics CellRanger output, builds a multi-dataset
study and runs the preprocessing pipeline (normalization, variable gene
selection, scaling) ahead of integration.`,
	}

	read10xCmd = &cobra.Command{
		Use:   "read10x [sample directory...]",
		Short: "Read 10X sample directories and report what they contain",
		Args:  cobra.MinimumNArgs(1),
		Run:   runRead10x, // Defined in cmd_read10x.go
	}

	preprocessCmd = &cobra.Command{
		Use:   "preprocess [sample directory...]",
		Short: "Read samples and run normalization, gene selection and scaling",
		Args:  cobra.MinimumNArgs(1),
		Run:   runPreprocess, // Defined in cmd_preprocess.go
	}

	manifestCmd = &cobra.Command{
		Use:   "manifest",
		Short: "Inspect and validate package manifests",
	}
	manifestValidateCmd = &cobra.Command{
		Use:   "validate [pyproject.toml]",
		Short: "Check a package manifest against its declared contract",
		Args:  cobra.ExactArgs(1),
		Run:   runManifestValidate, // Defined in cmd_manifest.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to a liger.yaml configuration file")

	for _, cmd := range []*cobra.Command{read10xCmd, preprocessCmd} {
		cmd.Flags().StringSliceVar(&sampleNames, "names", nil,
			"Sample names, one per directory (default: directory base names)")
		cmd.Flags().StringVar(&dataType, "data-type", "",
			"Input protocol: rna or atac")
		cmd.Flags().Float64Var(&minUMI, "min-umi", 0,
			"Drop cells whose total count is not above this threshold")
		cmd.Flags().IntVar(&maxCells, "max-cells", 0,
			"Keep only the N highest-count cells per sample (0 = no cap)")
		cmd.Flags().BoolVar(&useRaw, "raw", false,
			"Use CellRanger's raw output instead of filtered")
		cmd.Flags().StringVar(&reference, "reference", "",
			"Reference genome directory name for multi-reference V2 runs")
		cmd.Flags().BoolVar(&mergeAll, "merge", false,
			"Merge same-modality datasets across samples")
		cmd.Flags().BoolVar(&noCache, "no-cache", false,
			"Bypass the dataset cache even when configured")
	}

	preprocessCmd.Flags().Float64SliceVar(&varThresh, "var-thresh", nil,
		"Variance threshold for gene selection (one value or one per dataset)")
	preprocessCmd.Flags().IntVar(&numGenes, "num-genes", 0,
		"Tune the variance threshold to select this many genes")
	preprocessCmd.Flags().StringVar(&combineMode, "combine", "",
		"Combine per-dataset gene sets: union or intersect")

	rootCmd.AddCommand(read10xCmd)
	rootCmd.AddCommand(preprocessCmd)

	manifestCmd.AddCommand(manifestValidateCmd)
	rootCmd.AddCommand(manifestCmd)
}
