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
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// BackupFunc backs up the state at table index i and returns the absolute
// change of its value.
type BackupFunc func(i int) (float64, error)

// RunSweeps repeatedly applies backup to every state in the table.
//
// Description:
//
//	Each sweep visits states in discovery order and tracks the largest
//	absolute change. Sweeping stops when that change is below maxDelta (or
//	exactly zero), or after maxIterations sweeps. ctx is checked between
//	sweeps.
//
// Inputs:
//   - ctx: Cancellation, checked between sweeps.
//   - spanName: Name of the span wrapping the run.
//   - backup: Single-state backup.
//
// Outputs:
//   - *Result: Sweep summary; non-nil also on error.
//   - error: ErrNoReachableStates when the table is empty, otherwise the
//     first backup or context error.
//
// Thread Safety: NOT safe for concurrent use.
func (e *Engine) RunSweeps(ctx context.Context, spanName string, backup BackupFunc) (*Result, error) {
	res := &Result{
		RunID:     uuid.NewString(),
		Planner:   e.planner,
		NumStates: e.values.Len(),
		Status:    e.status,
	}
	if e.values.Len() == 0 {
		return res, plannerError(e.planner, "RunSweeps", ErrNoReachableStates)
	}

	ctx, span := e.tracer.Start(ctx, spanName,
		attribute.String("dp.planner", e.planner),
		attribute.String("dp.run_id", res.RunID),
		attribute.Int("dp.num_states", e.values.Len()),
		attribute.Float64("dp.gamma", e.gamma),
		attribute.Float64("dp.max_delta", e.maxDelta),
		attribute.Int("dp.max_iterations", e.maxIterations),
	)
	logger := e.logger.With(slog.String("run_id", res.RunID))
	logger.Debug("sweeps started", slog.Int("states", e.values.Len()))

	var err error
	for res.Iterations < e.maxIterations {
		if err = ctx.Err(); err != nil {
			break
		}

		start := time.Now()
		delta := 0.0
		for i := 0; i < e.values.Len(); i++ {
			d, berr := backup(i)
			if berr != nil {
				err = fmt.Errorf("backup of state %d: %w", i, berr)
				break
			}
			delta = max(delta, d)
		}
		sweepDuration.WithLabelValues(e.planner).Observe(time.Since(start).Seconds())
		if err != nil {
			sweepsTotal.WithLabelValues(e.planner, sweepResultError).Inc()
			break
		}

		res.Iterations++
		res.MaxDelta = delta
		e.swept = true

		if delta < e.maxDelta || delta == 0 {
			res.Converged = true
			sweepsTotal.WithLabelValues(e.planner, sweepResultConverged).Inc()
			break
		}
		if res.Iterations >= e.maxIterations {
			sweepsTotal.WithLabelValues(e.planner, sweepResultCapped).Inc()
			break
		}
		sweepsTotal.WithLabelValues(e.planner, sweepResultContinue).Inc()

		e.progress.Do(func() {
			logger.Info("sweep progress",
				slog.Int("iteration", res.Iterations),
				slog.Float64("max_delta", delta))
		})
	}

	res.NumStates = e.values.Len()
	if err == nil {
		if res.Converged {
			e.status = StatusConverged
		} else {
			e.status = StatusIterationCapReached
			logger.Warn("iteration cap reached before convergence",
				slog.Int("iterations", res.Iterations),
				slog.Float64("max_delta", res.MaxDelta),
				slog.Float64("target_delta", e.maxDelta))
		}
	}
	res.Status = e.status

	logger.Info("sweeps complete",
		slog.Int("iterations", res.Iterations),
		slog.Float64("max_delta", res.MaxDelta),
		slog.Bool("converged", res.Converged),
		slog.Int("states", res.NumStates))

	e.tracer.End(span, res, err)
	if err != nil {
		return res, plannerError(e.planner, "RunSweeps", err)
	}
	return res, nil
}

// noopResult describes a replanning call that had nothing to do.
func (e *Engine) noopResult() *Result {
	return &Result{
		Planner:   e.planner,
		NumStates: e.values.Len(),
		Converged: e.status == StatusConverged,
		Status:    e.status,
	}
}
