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

	"github.com/AleutianAI/oomdp/pkg/model"
	"github.com/AleutianAI/oomdp/pkg/state"
)

// PlannerValueIteration is the planner label of ValueIteration.
const PlannerValueIteration = "value_iteration"

// ValueIteration solves for the optimal value function by repeated Bellman
// backups with the engine's operator (max by default).
//
// Thread Safety: NOT safe for concurrent planning.
type ValueIteration struct {
	*Engine
}

// NewValueIteration creates a value iteration planner.
//
// Inputs:
//   - m: Model supporting full enumeration.
//   - actionTypes: Action types enumerating applicable actions.
//   - cfg: Planner configuration.
//   - opts: Optional overrides.
//
// Outputs:
//   - *ValueIteration: Planner in StatusUninitialized.
//   - error: Construction error.
func NewValueIteration(m model.SampleModel, actionTypes []model.ActionType, cfg Config, opts ...Option) (*ValueIteration, error) {
	e, err := NewEngine(PlannerValueIteration, m, actionTypes, cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &ValueIteration{Engine: e}, nil
}

// PlanFromState runs reachability from s and then value iteration.
//
// Description:
//
//	Sweeps run only if reachability added states or no sweep has run since
//	the last reset; otherwise the call is a no-op and the value table is
//	left unchanged. Converged values are reused as the starting point when
//	new states appear.
func (vi *ValueIteration) PlanFromState(ctx context.Context, s state.State) (*Result, error) {
	added, err := vi.PerformReachabilityFrom(ctx, s)
	if err != nil {
		return nil, err
	}
	if added == 0 && vi.HasSwept() {
		return vi.noopResult(), nil
	}
	res, err := vi.RunValueIteration(ctx)
	if res != nil {
		res.NewStates = added
	}
	return res, err
}

// RunValueIteration sweeps the current table until convergence or the
// iteration cap.
//
// Outputs:
//   - error: ErrNoReachableStates if reachability was never performed.
func (vi *ValueIteration) RunValueIteration(ctx context.Context) (*Result, error) {
	return vi.RunSweeps(ctx, SpanValueIteration, vi.BellmanUpdateAt)
}
