// Copyright (C) 2025 Enformatik (oss@enformatik.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package badger

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/enformatik/pyliger/services/liger/dataset"
	"github.com/enformatik/pyliger/services/liger/matrix"
)

// ErrCorruptEntry is returned when a cached value fails to decode.
// Callers should invalidate and re-read from disk.
var ErrCorruptEntry = errors.New("corrupt cache entry")

// DatasetCache stores parsed sample directories keyed by sample path
// and reader options, so a pipeline re-run skips the MatrixMarket
// parse.
//
// Thread Safety: Safe for concurrent use.
type DatasetCache struct {
	db *DB
}

// NewDatasetCache wraps an open database.
func NewDatasetCache(db *DB) *DatasetCache {
	return &DatasetCache{db: db}
}

// datasetSnapshot is the gob wire form of one parsed dataset. Only the
// ingest result is cached; derived layers are cheap to recompute.
type datasetSnapshot struct {
	Name      string
	Modality  string
	Barcodes  []string
	GeneNames []string
	Rows      int
	Cols      int
	RI        []int
	CI        []int
	Vals      []float64
}

// Key derives the cache key for a sample directory and an options
// fingerprint. The fingerprint must capture every reader option that
// changes the parse result.
func Key(sampleDir, fingerprint string) []byte {
	sum := sha256.Sum256([]byte(sampleDir + "\x00" + fingerprint))
	return append([]byte("dataset/"), sum[:]...)
}

// Put stores the datasets parsed from one sample directory.
func (c *DatasetCache) Put(ctx context.Context, sampleDir, fingerprint string, datasets []*dataset.Dataset) error {
	snapshots := make([]datasetSnapshot, 0, len(datasets))
	for _, d := range datasets {
		rows, cols := d.Raw.Dims()
		ri, ci, vals := matrix.Triplets(d.Raw)
		snapshots = append(snapshots, datasetSnapshot{
			Name:      d.Name,
			Modality:  string(d.Modality),
			Barcodes:  d.Barcodes,
			GeneNames: d.GeneNames,
			Rows:      rows,
			Cols:      cols,
			RI:        ri,
			CI:        ci,
			Vals:      vals,
		})
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snapshots); err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}

	return c.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set(Key(sampleDir, fingerprint), buf.Bytes())
	})
}

// Get loads the cached datasets for a sample directory. The second
// return is false on a miss.
func (c *DatasetCache) Get(ctx context.Context, sampleDir, fingerprint string) ([]*dataset.Dataset, bool, error) {
	var raw []byte
	err := c.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(Key(sampleDir, fingerprint))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cache entry: %w", err)
	}

	var snapshots []datasetSnapshot
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&snapshots); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrCorruptEntry, err)
	}

	datasets := make([]*dataset.Dataset, 0, len(snapshots))
	for _, s := range snapshots {
		m, err := matrix.FromTriplets(s.Rows, s.Cols, s.RI, s.CI, s.Vals)
		if err != nil {
			return nil, false, fmt.Errorf("%w: %v", ErrCorruptEntry, err)
		}
		d, err := dataset.NewDataset(s.Name, dataset.Modality(s.Modality), m, s.Barcodes, s.GeneNames)
		if err != nil {
			return nil, false, fmt.Errorf("%w: %v", ErrCorruptEntry, err)
		}
		datasets = append(datasets, d)
	}
	return datasets, true, nil
}

// Invalidate drops the cached entry for a sample directory. Missing
// entries are not an error.
func (c *DatasetCache) Invalidate(ctx context.Context, sampleDir, fingerprint string) error {
	return c.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Delete(Key(sampleDir, fingerprint))
	})
}
