// Copyright (C) 2025 Enformatik (oss@enformatik.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/enformatik/pyliger/services/liger/dataset"
	"github.com/enformatik/pyliger/services/liger/preprocess"
)

func runPreprocess(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	datasets, err := readSamples(ctx, args)
	if err != nil {
		log.Fatalf("Error reading samples: %v", err)
	}

	study, err := dataset.New(datasets, dataset.WithLogger(logger))
	if err != nil {
		log.Fatalf("Error building study: %v", err)
	}

	if err := preprocess.Normalize(ctx, study); err != nil {
		log.Fatalf("Error normalizing: %v", err)
	}
	fmt.Println("Normalized all datasets")

	if err := preprocess.SelectGenes(ctx, study, selectionOptions()); err != nil {
		log.Fatalf("Error selecting genes: %v", err)
	}
	fmt.Printf("Selected %d variable genes\n", len(study.VarGenes))

	if err := preprocess.ScaleNotCenter(ctx, study); err != nil {
		log.Fatalf("Error scaling: %v", err)
	}
	fmt.Println("Scaled all datasets over the variable gene set")

	fmt.Println(summarizeStudy(study))
}

func selectionOptions() preprocess.SelectOptions {
	opts := preprocess.SelectOptions{
		VarThresh:   cfg.Selection.VarThresh,
		AlphaThresh: cfg.Selection.AlphaThresh,
		NumGenes:    cfg.Selection.NumGenes,
		Combine:     preprocess.CombineMode(cfg.Selection.Combine),
		KeepUnique:  cfg.Selection.KeepUnique,
		Capitalize:  cfg.Selection.Capitalize,
	}
	if len(varThresh) > 0 {
		opts.VarThresh = varThresh
	}
	if numGenes > 0 {
		opts.NumGenes = numGenes
	}
	if combineMode != "" {
		opts.Combine = preprocess.CombineMode(combineMode)
	}
	return opts
}
