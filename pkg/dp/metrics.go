// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dp

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sweep result label values.
const (
	sweepResultContinue  = "continue"
	sweepResultConverged = "converged"
	sweepResultCapped    = "capped"
	sweepResultError     = "error"
)

var (
	bellmanBackupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "oomdp",
		Name:      "bellman_backups_total",
		Help:      "Total single-state backups performed",
	}, []string{"planner"})

	sweepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "oomdp",
		Name:      "sweeps_total",
		Help:      "Total full sweeps over the value table, by outcome",
	}, []string{"planner", "result"})

	reachableStates = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "oomdp",
		Name:      "reachable_states",
		Help:      "Number of states in the value table",
	}, []string{"planner"})

	sweepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "oomdp",
		Name:      "sweep_duration_seconds",
		Help:      "Duration of one full sweep",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
	}, []string{"planner"})

	reachabilityDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "oomdp",
		Name:      "reachability_duration_seconds",
		Help:      "Duration of reachability analysis calls that expanded states",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
	})
)
