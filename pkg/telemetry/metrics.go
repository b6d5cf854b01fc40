// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the OTel instruments recorded around planner runs.
//
// Description:
//
//	The per-sweep Prometheus collectors live in the dp package. These
//	instruments cover whole runs as seen by a caller such as the CLI and
//	flow through whichever MeterProvider Init installed.
//
// Thread Safety: Safe for concurrent use after creation.
type Metrics struct {
	// RunsTotal counts planner runs by planner and outcome.
	RunsTotal metric.Int64Counter

	// RunDuration records run duration in seconds by planner.
	RunDuration metric.Float64Histogram

	// StatesPlanned records the state count of each run by planner.
	StatesPlanned metric.Int64Histogram
}

// NewMetrics registers the run instruments with meter.
//
// Example:
//
//	m, err := telemetry.NewMetrics(otel.Meter("oomdp"))
//	if err != nil {
//	    return fmt.Errorf("create metrics: %w", err)
//	}
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var m Metrics
	var err error

	m.RunsTotal, err = meter.Int64Counter("oomdp_runs_total",
		metric.WithDescription("Planner runs by planner and outcome"))
	if err != nil {
		return nil, fmt.Errorf("create runs counter: %w", err)
	}

	m.RunDuration, err = meter.Float64Histogram("oomdp_run_duration_seconds",
		metric.WithDescription("Planner run duration"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("create run duration histogram: %w", err)
	}

	m.StatesPlanned, err = meter.Int64Histogram("oomdp_run_states",
		metric.WithDescription("States in the value table after a run"))
	if err != nil {
		return nil, fmt.Errorf("create run states histogram: %w", err)
	}

	return &m, nil
}

// RecordRun records one planner run.
func (m *Metrics) RecordRun(ctx context.Context, planner string, elapsed time.Duration, states int, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	attrs := metric.WithAttributes(attribute.String("planner", planner))
	m.RunsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("planner", planner),
		attribute.String("outcome", outcome)))
	m.RunDuration.Record(ctx, elapsed.Seconds(), attrs)
	m.StatesPlanned.Record(ctx, int64(states), attrs)
}
