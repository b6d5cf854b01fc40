// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package parallel provides fixed-size worker pool helpers for
// embarrassingly parallel batch work such as independent episode rollouts.
//
// The DP planners never use this package internally; their value tables are
// not synchronized.
package parallel

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// DefaultWorkers returns the pool size used when a caller passes workers <= 0.
func DefaultWorkers() int {
	return runtime.GOMAXPROCS(0)
}

// For runs fn for every i in [0, n) on at most workers goroutines.
//
// Description:
//
//	Work items are dispatched in index order. The first error cancels the
//	context passed to the remaining calls and is returned once every started
//	call has finished. Items not yet started when the context is cancelled
//	are skipped.
//
// Inputs:
//   - ctx: Cancellation for the whole batch.
//   - n: Number of work items.
//   - workers: Pool size; <= 0 means DefaultWorkers().
//   - fn: Work function; must be safe for concurrent use.
//
// Outputs:
//   - error: The first error returned by fn, or the context error.
//
// Thread Safety: fn runs concurrently with itself.
func For(ctx context.Context, n, workers int, fn func(ctx context.Context, i int) error) error {
	if ctx == nil {
		return fmt.Errorf("parallel.For: nil context")
	}
	if n <= 0 {
		return nil
	}
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	if workers > n {
		workers = n
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, i)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// ForEach runs fn for every element of items on at most workers goroutines.
func ForEach[T any](ctx context.Context, items []T, workers int, fn func(ctx context.Context, i int, item T) error) error {
	return For(ctx, len(items), workers, func(ctx context.Context, i int) error {
		return fn(ctx, i, items[i])
	})
}

// Map applies fn to every element of items in parallel and returns the
// results in input order.
func Map[T, R any](ctx context.Context, items []T, workers int, fn func(ctx context.Context, i int, item T) (R, error)) ([]R, error) {
	out := make([]R, len(items))
	err := For(ctx, len(items), workers, func(ctx context.Context, i int) error {
		r, err := fn(ctx, i, items[i])
		if err != nil {
			return err
		}
		out[i] = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
