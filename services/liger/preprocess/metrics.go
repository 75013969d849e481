// Copyright (C) 2025 Enformatik (oss@enformatik.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package preprocess

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Preprocessing pipeline metrics
var (
	datasetsNormalized = promauto.NewCounter(prometheus.CounterOpts{
		Name: "liger_datasets_normalized_total",
		Help: "Datasets library-size normalized",
	})

	datasetsScaled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "liger_datasets_scaled_total",
		Help: "Datasets scaled over the variable gene set",
	})

	variableGenes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "liger_variable_genes_selected",
		Help: "Size of the most recent variable gene selection",
	})

	normalizeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "liger_normalize_duration_seconds",
		Help:    "Time to normalize all datasets in a study",
		Buckets: []float64{0.001, 0.01, 0.1, 1, 10, 60},
	})

	selectGenesDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "liger_select_genes_duration_seconds",
		Help:    "Time to select variable genes across a study",
		Buckets: []float64{0.001, 0.01, 0.1, 1, 10, 60},
	})
)
