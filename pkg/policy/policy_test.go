// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package policy

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/oomdp/pkg/model"
	"github.com/AleutianAI/oomdp/pkg/state"
	"github.com/AleutianAI/oomdp/pkg/valuefunction"
)

// fixedQ returns the same action values in every state.
type fixedQ map[string]float64

func (f fixedQ) names() []string { return []string{"left", "stay", "right"} }

func (f fixedQ) Value(state.State) float64 {
	best := math.Inf(-1)
	for _, v := range f {
		best = math.Max(best, v)
	}
	return best
}

func (f fixedQ) Q(s state.State, a model.Action) (valuefunction.QValue, error) {
	return valuefunction.QValue{S: s, A: a, Q: f[a.Name()]}, nil
}

func (f fixedQ) Qs(s state.State) ([]valuefunction.QValue, error) {
	var out []valuefunction.QValue
	for _, n := range f.names() {
		if v, ok := f[n]; ok {
			out = append(out, valuefunction.QValue{S: s, A: model.SimpleAction(n), Q: v})
		}
	}
	return out, nil
}

func newRNG() *rand.Rand { return rand.New(rand.NewPCG(7, 11)) }

func sumP(dist []ActionProb) float64 {
	t := 0.0
	for _, ap := range dist {
		t += ap.P
	}
	return t
}

func TestGreedyQ(t *testing.T) {
	s := state.NewMapState(nil)
	g := NewGreedyQ(fixedQ{"left": 1, "stay": 3, "right": 3})

	dist, err := g.ActionDistribution(s)
	require.NoError(t, err)
	require.Len(t, dist, 2)
	assert.InDelta(t, 0.5, ActionProbability(dist, model.SimpleAction("stay")), 1e-12)
	assert.Zero(t, ActionProbability(dist, model.SimpleAction("left")))

	rng := newRNG()
	seen := map[string]int{}
	for i := 0; i < 200; i++ {
		a, err := g.Action(rng, s)
		require.NoError(t, err)
		seen[a.Name()]++
	}
	assert.Zero(t, seen["left"])
	assert.Positive(t, seen["stay"])
	assert.Positive(t, seen["right"], "ties are broken randomly")
}

func TestGreedyQ_NoActions(t *testing.T) {
	g := NewGreedyQ(fixedQ{})
	_, err := g.Action(newRNG(), state.NewMapState(nil))
	assert.ErrorIs(t, err, ErrNoActions)
}

func TestEpsilonGreedy(t *testing.T) {
	_, err := NewEpsilonGreedy(fixedQ{}, 1.5)
	assert.ErrorIs(t, err, ErrInvalidParameter)

	e, err := NewEpsilonGreedy(fixedQ{"left": 0, "stay": 5, "right": 1}, 0.3)
	require.NoError(t, err)

	dist, err := e.ActionDistribution(state.NewMapState(nil))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sumP(dist), 1e-12)
	assert.InDelta(t, 0.1+0.7, ActionProbability(dist, model.SimpleAction("stay")), 1e-12)
	assert.InDelta(t, 0.1, ActionProbability(dist, model.SimpleAction("left")), 1e-12)
}

func TestBoltzmann(t *testing.T) {
	_, err := NewBoltzmann(fixedQ{}, 0)
	assert.ErrorIs(t, err, ErrInvalidParameter)

	b, err := NewBoltzmann(fixedQ{"left": 0, "right": math.Log(3)}, 1)
	require.NoError(t, err)

	dist, err := b.ActionDistribution(state.NewMapState(nil))
	require.NoError(t, err)
	assert.InDelta(t, 0.25, ActionProbability(dist, model.SimpleAction("left")), 1e-12)
	assert.InDelta(t, 0.75, ActionProbability(dist, model.SimpleAction("right")), 1e-12)
}

func TestSoftmax_LargeValuesStable(t *testing.T) {
	p := Softmax([]float64{1000, 1000}, 10)
	assert.InDelta(t, 0.5, p[0], 1e-12)
	assert.False(t, math.IsNaN(p[1]))
	assert.Nil(t, Softmax(nil, 1))
}

func TestUniform(t *testing.T) {
	u := NewUniform(model.UniversalActionTypes("a", "b", "c", "d"))
	dist, err := u.ActionDistribution(state.NewMapState(nil))
	require.NoError(t, err)
	require.Len(t, dist, 4)
	assert.InDelta(t, 0.25, dist[2].P, 1e-12)

	_, err = NewUniform(nil).Action(newRNG(), state.NewMapState(nil))
	assert.ErrorIs(t, err, ErrNoActions)
}

// walkModel moves "x" by +1 for "right" and terminates at 3.
type walkModel struct{}

func (walkModel) Sample(_ *rand.Rand, s state.State, a model.Action) (model.EnvironmentOutcome, error) {
	x := s.Get("x").(int)
	if a.Name() == "right" {
		x++
	}
	sp := state.NewMapState(map[string]any{"x": x})
	return model.EnvironmentOutcome{O: s, A: a, OP: sp, R: -1, Terminated: x >= 3}, nil
}

func (walkModel) Terminal(s state.State) bool { return s.Get("x").(int) >= 3 }

func TestRollout(t *testing.T) {
	g := NewGreedyQ(fixedQ{"right": 1, "left": 0})
	ep, err := Rollout(context.Background(), newRNG(), g, walkModel{}, state.NewMapState(map[string]any{"x": 0}), 10)
	require.NoError(t, err)

	assert.True(t, ep.Terminated)
	assert.Equal(t, 3, ep.Steps())
	assert.Len(t, ep.States, 4)
	assert.InDelta(t, -1-0.5-0.25, ep.DiscountedReturn(0.5), 1e-12)
}

func TestRollout_StepCap(t *testing.T) {
	g := NewGreedyQ(fixedQ{"stay": 1})
	ep, err := Rollout(context.Background(), newRNG(), g, walkModel{}, state.NewMapState(map[string]any{"x": 0}), 5)
	require.NoError(t, err)
	assert.False(t, ep.Terminated)
	assert.Equal(t, 5, ep.Steps())
}

func TestRolloutBatch_Deterministic(t *testing.T) {
	u := NewUniform(model.UniversalActionTypes("stay", "right"))
	s0 := state.NewMapState(map[string]any{"x": 0})

	a, err := RolloutBatch(context.Background(), u, walkModel{}, s0, 8, 50, 4, 42)
	require.NoError(t, err)
	b, err := RolloutBatch(context.Background(), u, walkModel{}, s0, 8, 50, 2, 42)
	require.NoError(t, err)

	require.Len(t, a, 8)
	for i := range a {
		assert.Equal(t, a[i].Steps(), b[i].Steps(), "episode %d", i)
	}
}
