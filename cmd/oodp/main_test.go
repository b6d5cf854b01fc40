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
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append(args, "--log-level", "error"))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSolve_ValueIteration(t *testing.T) {
	out, err := run(t, "solve", "--width", "3", "--height", "3", "--gamma", "0.9", "--max-delta", "1e-9")
	require.NoError(t, err)

	assert.Contains(t, out, "OK: converged")
	assert.Contains(t, out, "planner\tvalue_iteration")
	assert.Contains(t, out, "states\t9")
	// (0,0) is four steps from (2,2): -(1 + .9 + .81 + .729).
	assert.Contains(t, out, "-3.439")
	assert.Contains(t, out, "G")
}

func TestSolve_PlannersAgree(t *testing.T) {
	values := map[string][][]float64{}
	for _, planner := range []string{"value_iteration", "policy_iteration"} {
		out, err := run(t, "solve", "--width", "3", "--height", "2", "--gamma", "0.9",
			"--max-delta", "1e-9", "--planner", planner, "--json")
		require.NoError(t, err, planner)

		var got solveOutput
		require.NoError(t, json.Unmarshal([]byte(out), &got), planner)
		assert.True(t, got.Result.Converged, planner)
		values[planner] = got.Values
	}
	require.Len(t, values["value_iteration"], 2)
	for y := range values["value_iteration"] {
		assert.InDeltaSlice(t, values["value_iteration"][y], values["policy_iteration"][y], 1e-6)
	}
}

func TestSolve_PolicyEvaluation(t *testing.T) {
	out, err := run(t, "solve", "--width", "2", "--height", "1", "--planner", "policy_evaluation", "--json")
	require.NoError(t, err)
	var got solveOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "policy_evaluation", got.Result.Planner)
	assert.Less(t, got.Values[0][0], -1.0, "a uniform policy needs more than one step on average")
}

func TestSolve_UnknownPlanner(t *testing.T) {
	_, err := run(t, "solve", "--planner", "astar")
	assert.ErrorContains(t, err, "unknown planner")
}

func TestReach_Walls(t *testing.T) {
	// The goal sits behind the walls so every free cell is reached before it.
	out, err := run(t, "reach", "--width", "3", "--height", "3", "--goal-x", "2", "--goal-y", "0",
		"--wall", "1,1", "--wall", "1,0")
	require.NoError(t, err)
	assert.Contains(t, out, "states\t7")
	assert.Contains(t, out, "terminal\t1")
}

func TestReach_BadWall(t *testing.T) {
	_, err := run(t, "reach", "--wall", "1-1")
	assert.ErrorIs(t, err, errBadGrid)
}

func TestRollout_Greedy(t *testing.T) {
	out, err := run(t, "rollout", "--width", "3", "--height", "3", "--episodes", "8", "--workers", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "episodes\t8")
	assert.Contains(t, out, "goal_rate\t1.00")
	assert.Contains(t, out, "mean_steps\t4.000")
}

func TestIRL_RunsAndPrintsRewardGrid(t *testing.T) {
	out, err := run(t, "irl", "--width", "3", "--height", "3", "--demos", "2", "--steps", "3",
		"--tolerance", "0", "--gamma", "0.9", "--max-delta", "1e-6")
	require.NoError(t, err)
	assert.Contains(t, out, "demonstrations\t2")
	assert.Contains(t, out, "steps\t3")
	assert.Contains(t, out, "WARN: step cap reached")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.GreaterOrEqual(t, len(lines), 4)
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dp.yaml")
	require.NoError(t, os.WriteFile(path, []byte("gamma: 0.5\nmax_delta: 0.000000001\n"), 0600))

	out, err := run(t, "solve", "--config", path, "--width", "2", "--height", "1", "--json")
	require.NoError(t, err)
	var got solveOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.InDelta(t, -1.0, got.Values[0][0], 1e-9)
}

func TestInvalidGamma(t *testing.T) {
	_, err := run(t, "solve", "--gamma", "1.5")
	assert.Error(t, err)
}
