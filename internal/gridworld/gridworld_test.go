// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package gridworld

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/oomdp/pkg/model"
	"github.com/AleutianAI/oomdp/pkg/state"
)

func TestStateTransitions_Deterministic(t *testing.T) {
	g := New(3, 3)
	s := State(0, 0, 2, 2)

	tps, err := g.StateTransitions(s, model.SimpleAction(ActionNorth))
	require.NoError(t, err)
	require.Len(t, tps, 1)
	x, y, err := AgentPosition(tps[0].S)
	require.NoError(t, err)
	assert.Equal(t, [2]int{0, 1}, [2]int{x, y})

	tps, err = g.StateTransitions(s, model.SimpleAction(ActionWest))
	require.NoError(t, err)
	x, y, _ = AgentPosition(tps[0].S)
	assert.Equal(t, [2]int{0, 0}, [2]int{x, y}, "blocked moves stay in place")
}

func TestStateTransitions_SlipMergesBlockedCells(t *testing.T) {
	g := New(3, 3).WithSlip(0.7)
	s := State(0, 0, 2, 2)

	tps, err := g.StateTransitions(s, model.SimpleAction(ActionNorth))
	require.NoError(t, err)

	// north 0.7, east 0.1, south+west blocked -> stay 0.2.
	require.Len(t, tps, 3)
	total := 0.0
	for _, tp := range tps {
		total += tp.P
	}
	assert.InDelta(t, 1.0, total, 1e-12)
	assert.InDelta(t, 0.7, tps[0].P, 1e-12)
	assert.InDelta(t, 0.2, tps[1].P, 1e-12)
}

func TestWalls(t *testing.T) {
	g := New(3, 1).AddWall(1, 0)
	tps, err := g.StateTransitions(State(0, 0, 2, 0), model.SimpleAction(ActionEast))
	require.NoError(t, err)
	x, _, _ := AgentPosition(tps[0].S)
	assert.Equal(t, 0, x)
}

func TestModel_RewardAndTermination(t *testing.T) {
	g := New(2, 1)
	m := g.Model()

	eo, err := m.Sample(rand.New(rand.NewPCG(1, 1)), State(0, 0, 1, 0), model.SimpleAction(ActionEast))
	require.NoError(t, err)
	assert.Equal(t, StepCost, eo.R)
	assert.True(t, eo.Terminated)
	assert.True(t, m.Terminal(eo.OP))
	assert.False(t, m.Terminal(State(0, 0, 1, 0)))
}

func TestErrors(t *testing.T) {
	g := New(2, 2)
	_, err := g.StateTransitions(State(0, 0, 1, 1), model.SimpleAction("jump"))
	assert.ErrorIs(t, err, ErrUnknownAction)

	_, err = g.StateTransitions(state.NewMapState(nil), model.SimpleAction(ActionNorth))
	assert.ErrorIs(t, err, ErrNoAgent)
}

func TestCellFeatures(t *testing.T) {
	g := New(3, 2)
	phi := g.CellFeatures(State(2, 1, 0, 0))
	require.Len(t, phi, 6)
	assert.Equal(t, 1.0, phi[5])
	assert.Equal(t, 1.0, sum(phi))
}

func sum(xs []float64) float64 {
	t := 0.0
	for _, x := range xs {
		t += x
	}
	return t
}
