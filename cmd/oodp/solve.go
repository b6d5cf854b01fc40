// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/oomdp/internal/gridworld"
	"github.com/AleutianAI/oomdp/pkg/dp"
	"github.com/AleutianAI/oomdp/pkg/policy"
	"github.com/AleutianAI/oomdp/pkg/state"
	"github.com/AleutianAI/oomdp/pkg/valuefunction"
)

// solveOutput is the --json form of solve.
type solveOutput struct {
	Result *dp.Result  `json:"result"`
	Values [][]float64 `json:"values"`
}

func newSolveCmd(a *app) *cobra.Command {
	var planner string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Plan from the start state and print the value function and greedy policy",
		RunE: func(cmd *cobra.Command, _ []string) error {
			gw, s0, err := a.grid.build()
			if err != nil {
				return err
			}
			start := time.Now()
			q, res, err := a.plan(cmd.Context(), planner, gw, s0)
			a.record(cmd.Context(), planner, start, numStates(res), err)
			if err != nil {
				return err
			}

			gx, gy := a.grid.goal()
			if asJSON {
				return writeJSON(cmd, solveOutput{Result: res, Values: valueMatrix(gw, gx, gy, q)})
			}
			a.out.Title(fmt.Sprintf("%s on %dx%d grid", planner, gw.Width, gw.Height))
			printResult(a.out, res)
			headers, rows := gridRows(gw, gx, gy, valueCell(q))
			a.out.Table(headers, rows)
			headers, rows = gridRows(gw, gx, gy, policyCell(q))
			a.out.Table(headers, rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&planner, "planner", dp.PlannerValueIteration,
		"planner: value_iteration, policy_iteration, policy_evaluation (uniform random policy)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result and value grid as JSON")
	return cmd
}

// plan runs the named planner from s0.
func (a *app) plan(ctx context.Context, planner string, gw *gridworld.GridWorld, s0 state.State) (valuefunction.QProvider, *dp.Result, error) {
	m, types := gw.Model(), gw.ActionTypes()
	switch planner {
	case dp.PlannerValueIteration:
		vi, err := dp.NewValueIteration(m, types, a.cfg, a.engineOptions()...)
		if err != nil {
			return nil, nil, err
		}
		res, err := vi.PlanFromState(ctx, s0)
		return vi, res, err
	case dp.PlannerPolicyIteration:
		pi, err := dp.NewPolicyIteration(m, types, a.cfg, a.engineOptions()...)
		if err != nil {
			return nil, nil, err
		}
		res, err := pi.PlanFromState(ctx, s0)
		return pi, res, err
	case dp.PlannerPolicyEvaluation:
		pe, err := dp.NewPolicyEvaluation(m, types, policy.NewUniform(types), a.cfg, a.engineOptions()...)
		if err != nil {
			return nil, nil, err
		}
		res, err := pe.EvaluatePolicyFrom(ctx, s0)
		return pe, res, err
	default:
		return nil, nil, fmt.Errorf("unknown planner %q", planner)
	}
}

func valueMatrix(gw *gridworld.GridWorld, gx, gy int, v valuefunction.ValueFunction) [][]float64 {
	out := make([][]float64, 0, gw.Height)
	for y := gw.Height - 1; y >= 0; y-- {
		row := make([]float64, gw.Width)
		for x := range row {
			if !gw.Blocked(x, y) {
				row[x] = v.Value(gridworld.State(x, y, gx, gy))
			}
		}
		out = append(out, row)
	}
	return out
}

func numStates(res *dp.Result) int {
	if res == nil {
		return 0
	}
	return res.NumStates
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
