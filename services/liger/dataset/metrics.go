// Copyright (C) 2025 Enformatik (oss@enformatik.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package dataset

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Missing-data sweep metrics
var (
	cellsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "liger_cells_dropped_total",
		Help: "Cells removed for expressing no genes",
	})

	genesDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "liger_genes_dropped_total",
		Help: "Genes removed for being expressed in no cells",
	})
)
