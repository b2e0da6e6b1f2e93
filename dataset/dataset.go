// Copyright 2025 The pymltools Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package dataset provides in-memory datasets and batch iteration for
// pymltools.
//
// Example:
//
//	ds, err := dataset.FromNPZ("train.npz")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	it := ds.Batches(dataset.BatchConfig{BatchSize: 64, Shuffle: true, Seed: 42})
//	for batch, ok := it.Next(); ok; batch, ok = it.Next() {
//	    // ...
//	}
package dataset

import (
	"github.com/fengrk/pymltools/internal/dataset"
)

// Dataset holds features, optional labels and per-example filenames.
type Dataset = dataset.Dataset

// Batch is one batch of examples as raw tensors.
type Batch = dataset.Batch

// BatchConfig configures batch iteration.
type BatchConfig = dataset.BatchConfig

// Iterator yields batches in order.
type Iterator = dataset.Iterator

// New creates a dataset from flat row-major features of the given
// dimension. Labels and filenames may be nil; missing filenames get
// synthetic names.
func New(x []float32, labels []int64, filenames []string, dim int) (*Dataset, error) {
	return dataset.New(x, labels, filenames, dim)
}

// FromNPZ loads a dataset from an npz archive holding "x.npy"
// (float32 or uint8 image data) and optionally "y.npy" labels.
func FromNPZ(path string) (*Dataset, error) {
	return dataset.FromNPZ(path)
}
