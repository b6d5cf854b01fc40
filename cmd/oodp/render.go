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
	"strconv"

	"github.com/AleutianAI/oomdp/internal/gridworld"
	"github.com/AleutianAI/oomdp/pkg/dp"
	"github.com/AleutianAI/oomdp/pkg/state"
	"github.com/AleutianAI/oomdp/pkg/ux"
	"github.com/AleutianAI/oomdp/pkg/valuefunction"
)

var arrows = map[string]string{
	gridworld.ActionNorth: "↑",
	gridworld.ActionSouth: "↓",
	gridworld.ActionEast:  "→",
	gridworld.ActionWest:  "←",
}

// cellFunc renders one grid cell given the state with the agent there.
type cellFunc func(s state.State) string

// gridRows lays a grid out top row first. Walls render as "#".
func gridRows(gw *gridworld.GridWorld, gx, gy int, cell cellFunc) ([]string, [][]string) {
	headers := []string{"y\\x"}
	for x := 0; x < gw.Width; x++ {
		headers = append(headers, strconv.Itoa(x))
	}
	rows := make([][]string, 0, gw.Height)
	for y := gw.Height - 1; y >= 0; y-- {
		row := []string{strconv.Itoa(y)}
		for x := 0; x < gw.Width; x++ {
			if gw.Blocked(x, y) {
				row = append(row, "#")
				continue
			}
			row = append(row, cell(gridworld.State(x, y, gx, gy)))
		}
		rows = append(rows, row)
	}
	return headers, rows
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// valueCell renders V(s).
func valueCell(v valuefunction.ValueFunction) cellFunc {
	return func(s state.State) string { return formatValue(v.Value(s)) }
}

// policyCell renders the greedy action as an arrow, "G" on the goal.
func policyCell(q valuefunction.QProvider) cellFunc {
	return func(s state.State) string {
		if gridworld.AtLocation(s) {
			return "G"
		}
		qs, err := q.Qs(s)
		if err != nil || len(qs) == 0 {
			return "?"
		}
		best := dp.Argmax(valuefunction.Values(qs))
		return arrows[qs[best].A.Name()]
	}
}

// printResult prints the run summary.
func printResult(p *ux.Printer, res *dp.Result) {
	if res.Converged {
		p.Success("converged")
	} else {
		p.Warning("did not converge: " + res.Status.String())
	}
	pairs := [][2]string{
		{"planner", res.Planner},
		{"states", strconv.Itoa(res.NumStates)},
		{"iterations", strconv.Itoa(res.Iterations)},
		{"max_delta", strconv.FormatFloat(res.MaxDelta, 'g', 4, 64)},
	}
	if res.PolicyIterations > 0 {
		pairs = append(pairs, [2]string{"policy_iterations", strconv.Itoa(res.PolicyIterations)})
	}
	p.KeyValues(pairs)
}
