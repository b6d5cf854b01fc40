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

// Status is the lifecycle state of a planner.
//
//	Uninitialized -> (reachability) -> Ready -> (sweeps) -> Converged | IterationCapReached
//
// New reachable states move a solved planner back to Ready.
type Status int

const (
	StatusUninitialized Status = iota
	StatusReady
	StatusConverged
	StatusIterationCapReached
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusReady:
		return "ready"
	case StatusConverged:
		return "converged"
	case StatusIterationCapReached:
		return "iteration_cap_reached"
	default:
		return "unknown"
	}
}

// Result summarizes one planning call.
//
// Reaching the iteration cap is not an error: the value table holds the best
// estimate so far and Converged is false.
type Result struct {
	// RunID identifies the sweep run in logs and traces. Empty for no-op
	// replanning calls.
	RunID string `json:"run_id"`

	// Planner is the planner label used in metrics.
	Planner string `json:"planner"`

	// Iterations is the number of full sweeps performed.
	Iterations int `json:"iterations"`

	// MaxDelta is the largest value change in the final sweep.
	MaxDelta float64 `json:"max_delta"`

	// Converged is true when the final sweep changed no value by maxDelta
	// or more.
	Converged bool `json:"converged"`

	// NumStates is the size of the value table.
	NumStates int `json:"num_states"`

	// NewStates is the number of states reachability added in this call.
	NewStates int `json:"new_states"`

	// PolicyIterations counts improvement steps; only policy iteration sets it.
	PolicyIterations int `json:"policy_iterations,omitempty"`

	Status Status `json:"status"`
}
