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
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/enformatik/pyliger/services/liger/dataset"
	"github.com/enformatik/pyliger/services/liger/storage/badger"
	"github.com/enformatik/pyliger/services/liger/tenx"
)

func runRead10x(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	datasets, err := readSamples(ctx, args)
	if err != nil {
		log.Fatalf("Error reading samples: %v", err)
	}

	fmt.Printf("Read %d dataset(s) from %d sample directorie(s)\n", len(datasets), len(args))
	for _, d := range datasets {
		fmt.Printf("  %-20s %-24s %8d cells %8d genes\n",
			d.Name, d.Modality, d.Cells(), d.Genes())
	}
}

// samplesFromArgs pairs each directory argument with a sample name,
// taken from --names or falling back to the directory base name.
func samplesFromArgs(args, names []string) ([]tenx.Sample, error) {
	if len(names) > 0 && len(names) != len(args) {
		return nil, fmt.Errorf("got %d names for %d directories", len(names), len(args))
	}
	samples := make([]tenx.Sample, len(args))
	for i, dir := range args {
		name := filepath.Base(filepath.Clean(dir))
		if len(names) > 0 {
			name = names[i]
		}
		samples[i] = tenx.Sample{Dir: dir, Name: name}
	}
	return samples, nil
}

func readerOptions() tenx.Options {
	opts := tenx.Options{
		DataType:    tenx.DataType(cfg.Reader.DataType),
		UseFiltered: cfg.Reader.UseFiltered && !useRaw,
		Reference:   cfg.Reader.Reference,
		MinUMI:      float64(cfg.Reader.MinUMI),
		MaxCells:    cfg.Reader.MaxCells,
		Merge:       cfg.Reader.Merge || mergeAll,
		Parallelism: cfg.Reader.Parallelism,
		Logger:      logger,
	}
	if dataType != "" {
		opts.DataType = tenx.DataType(dataType)
	}
	if minUMI > 0 {
		opts.MinUMI = minUMI
	}
	if maxCells > 0 {
		opts.MaxCells = maxCells
	}
	if reference != "" {
		opts.Reference = reference
	}
	return opts
}

// optionsFingerprint captures every reader option that changes the
// parse result, for use as part of the cache key.
func optionsFingerprint(opts tenx.Options) string {
	return fmt.Sprintf("%s|filtered=%t|ref=%s|minumi=%g|maxcells=%d",
		opts.DataType, opts.UseFiltered, opts.Reference, opts.MinUMI, opts.MaxCells)
}

// readSamples reads all sample directories, going through the dataset
// cache when one is configured. Merging happens after cache lookups so
// cached entries stay per-sample.
func readSamples(ctx context.Context, args []string) ([]*dataset.Dataset, error) {
	samples, err := samplesFromArgs(args, sampleNames)
	if err != nil {
		return nil, err
	}
	opts := readerOptions()

	if !cfg.Cache.Enabled || noCache {
		return tenx.ReadSamples(ctx, samples, opts)
	}

	db, err := badger.Open(badger.Config{
		Path:       cfg.Cache.Dir,
		SyncWrites: true,
		Logger:     logger.Slog(),
	})
	if err != nil {
		return nil, fmt.Errorf("opening dataset cache: %w", err)
	}
	defer db.Close()
	cache := badger.NewDatasetCache(db)

	fingerprint := optionsFingerprint(opts)
	perSample := opts
	perSample.Merge = false

	var all []*dataset.Dataset
	for _, s := range samples {
		abs, err := filepath.Abs(s.Dir)
		if err != nil {
			return nil, err
		}
		key := abs + "|" + s.Name

		cached, hit, err := cache.Get(ctx, key, fingerprint)
		if err != nil {
			logger.Warn("dataset cache read failed", "sample", s.Name, "error", err)
		}
		if hit {
			logger.Info("dataset cache hit", "sample", s.Name)
			all = append(all, cached...)
			continue
		}

		read, err := tenx.ReadSample(ctx, s, perSample)
		if err != nil {
			return nil, err
		}
		if err := cache.Put(ctx, key, fingerprint, read); err != nil {
			logger.Warn("dataset cache write failed", "sample", s.Name, "error", err)
		}
		all = append(all, read...)
	}

	if opts.Merge {
		return tenx.MergeByModality(all)
	}
	return all, nil
}

func summarizeStudy(study *dataset.Study) string {
	var b strings.Builder
	totalCells := 0
	for _, d := range study.Datasets {
		totalCells += d.Cells()
	}
	fmt.Fprintf(&b, "Study: %d dataset(s), %d cells", len(study.Datasets), totalCells)
	if len(study.VarGenes) > 0 {
		fmt.Fprintf(&b, ", %d variable genes", len(study.VarGenes))
	}
	return b.String()
}
