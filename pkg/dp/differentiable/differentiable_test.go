// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package differentiable

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/oomdp/internal/gridworld"
	"github.com/AleutianAI/oomdp/pkg/dp"
	"github.com/AleutianAI/oomdp/pkg/model"
	"github.com/AleutianAI/oomdp/pkg/policy"
	"github.com/AleutianAI/oomdp/pkg/state"
)

const fdEpsilon = 1e-4

func testConfig() dp.Config {
	cfg := dp.DefaultConfig()
	cfg.Gamma = 0.9
	cfg.MaxDelta = 1e-12
	cfg.MaxIterations = 100000
	cfg.SoftmaxBeta = 1
	cfg.Observability.TracingEnabled = false
	return cfg
}

func testTheta(n int) []float64 {
	theta := make([]float64, n)
	for i := range theta {
		theta[i] = -0.5 + 0.1*float64(i)
	}
	return theta
}

func newGridVI(t *testing.T, g *gridworld.GridWorld, theta []float64) *VI {
	t.Helper()
	rf := NewLinearStateRF(g.NumCells(), g.CellFeatures)
	require.NoError(t, rf.SetParameters(theta))
	m := model.NewFactoredModel(g, rf, model.TerminalFunc(gridworld.AtLocation))
	vi, err := NewVI(m, g.ActionTypes(), rf, testConfig())
	require.NoError(t, err)
	return vi
}

func plannedValue(t *testing.T, g *gridworld.GridWorld, theta []float64, s state.State) float64 {
	t.Helper()
	vi := newGridVI(t, g, theta)
	res, err := vi.PlanFromState(context.Background(), s)
	require.NoError(t, err)
	require.True(t, res.Converged)
	return vi.Value(s)
}

// -----------------------------------------------------------------------------
// Gradients
// -----------------------------------------------------------------------------

func TestVI_ValueGradientMatchesFiniteDifference(t *testing.T) {
	grids := map[string]*gridworld.GridWorld{
		"deterministic": gridworld.New(3, 3),
		"slip":          gridworld.New(3, 3).WithSlip(0.8),
	}
	for name, g := range grids {
		t.Run(name, func(t *testing.T) {
			s0 := gridworld.State(0, 0, 2, 2)
			theta := testTheta(g.NumCells())

			vi := newGridVI(t, g, theta)
			res, err := vi.PlanFromState(context.Background(), s0)
			require.NoError(t, err)
			require.True(t, res.Converged)
			analytic := vi.ValueGradient(s0)
			require.Len(t, analytic, len(theta))

			for k := range theta {
				plus := append([]float64(nil), theta...)
				minus := append([]float64(nil), theta...)
				plus[k] += fdEpsilon
				minus[k] -= fdEpsilon
				numeric := (plannedValue(t, g, plus, s0) - plannedValue(t, g, minus, s0)) / (2 * fdEpsilon)
				assert.InDelta(t, numeric, analytic[k], 1e-4, "parameter %d", k)
			}
		})
	}
}

func TestVI_QGradientMatchesFiniteDifference(t *testing.T) {
	g := gridworld.New(3, 3)
	s0 := gridworld.State(1, 1, 2, 2)
	a := model.SimpleAction(gridworld.ActionEast)
	theta := testTheta(g.NumCells())

	vi := newGridVI(t, g, theta)
	_, err := vi.PlanFromState(context.Background(), s0)
	require.NoError(t, err)
	analytic, err := vi.QGradient(s0, a)
	require.NoError(t, err)

	q := func(th []float64) float64 {
		v := newGridVI(t, g, th)
		_, err := v.PlanFromState(context.Background(), s0)
		require.NoError(t, err)
		qv, err := v.Q(s0, a)
		require.NoError(t, err)
		return qv.Q
	}
	for k := range theta {
		plus := append([]float64(nil), theta...)
		minus := append([]float64(nil), theta...)
		plus[k] += fdEpsilon
		minus[k] -= fdEpsilon
		assert.InDelta(t, (q(plus)-q(minus))/(2*fdEpsilon), analytic[k], 1e-4, "parameter %d", k)
	}
}

func TestVI_TerminalStatesHaveZeroValueAndGradient(t *testing.T) {
	g := gridworld.New(2, 2)
	vi := newGridVI(t, g, testTheta(g.NumCells()))
	_, err := vi.PlanFromState(context.Background(), gridworld.State(0, 0, 1, 1))
	require.NoError(t, err)

	goal := gridworld.State(1, 1, 1, 1)
	assert.Zero(t, vi.Value(goal))
	assert.Equal(t, make([]float64, g.NumCells()), vi.ValueGradient(goal))

	qs, err := vi.Qs(goal)
	require.NoError(t, err)
	assert.Nil(t, qs)
}

func TestVI_ParameterChangeTakesEffectOnReplan(t *testing.T) {
	g := gridworld.New(2, 1)
	vi := newGridVI(t, g, []float64{0, 0})
	s0 := gridworld.State(0, 0, 1, 0)
	_, err := vi.PlanFromState(context.Background(), s0)
	require.NoError(t, err)
	before, err := vi.Q(s0, model.SimpleAction(gridworld.ActionEast))
	require.NoError(t, err)
	assert.InDelta(t, 0.0, before.Q, 1e-12)

	require.NoError(t, vi.RewardFunction().SetParameters([]float64{0, 5}))
	_, err = vi.RunPlanning(context.Background())
	require.NoError(t, err)
	after, err := vi.Q(s0, model.SimpleAction(gridworld.ActionEast))
	require.NoError(t, err)
	assert.InDelta(t, 5.0, after.Q, 1e-12)

	grad, err := vi.QGradient(s0, model.SimpleAction(gridworld.ActionEast))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, grad)
}

func TestVI_SetOperator(t *testing.T) {
	g := gridworld.New(2, 2)
	vi := newGridVI(t, g, testTheta(g.NumCells()))

	err := vi.SetOperator(dp.MaxOperator{})
	assert.ErrorIs(t, err, ErrNotDifferentiable)

	op, err := NewSoftmaxOperator(2)
	require.NoError(t, err)
	require.NoError(t, vi.SetOperator(op))
	assert.Equal(t, op, vi.DifferentiableOperator())
}

func TestVI_ResetSolverClearsGradients(t *testing.T) {
	g := gridworld.New(2, 2)
	vi := newGridVI(t, g, testTheta(g.NumCells()))
	s0 := gridworld.State(0, 0, 1, 1)
	_, err := vi.PlanFromState(context.Background(), s0)
	require.NoError(t, err)

	vi.ResetSolver()
	assert.Zero(t, vi.NumStates())
	assert.Empty(t, vi.grads)
	assert.Equal(t, make([]float64, g.NumCells()), vi.ValueGradient(s0))
}

func TestNewVI_NilRewardFunction(t *testing.T) {
	g := gridworld.New(2, 2)
	_, err := NewVI(g.Model(), g.ActionTypes(), nil, testConfig())
	assert.ErrorIs(t, err, dp.ErrInvalidConfig)
}

// -----------------------------------------------------------------------------
// Operator and reward
// -----------------------------------------------------------------------------

func TestSoftmaxOperator_Gradient(t *testing.T) {
	op, err := NewSoftmaxOperator(1)
	require.NoError(t, err)
	g := op.Gradient([]float64{1, 1}, [][]float64{{1, 0}, {0, 1}})
	assert.InDeltaSlice(t, []float64{0.5, 0.5}, g, 1e-12)

	assert.Nil(t, op.Gradient(nil, nil))
}

func TestLinearStateRF(t *testing.T) {
	g := gridworld.New(2, 1)
	rf := NewLinearStateRF(g.NumCells(), g.CellFeatures)
	require.NoError(t, rf.SetParameters([]float64{2, 3}))

	sp := gridworld.State(1, 0, 1, 0)
	assert.Equal(t, 3.0, rf.Reward(nil, nil, sp))
	assert.Equal(t, []float64{0, 1}, rf.Gradient(nil, nil, sp))

	err := rf.SetParameters([]float64{1})
	assert.ErrorIs(t, err, ErrParameterMismatch)
	assert.Equal(t, []float64{2, 3}, rf.Parameters())
}

func TestLinearStateRF_FeatureLengthMismatch(t *testing.T) {
	g := gridworld.New(2, 1)
	rf := NewLinearStateRF(3, g.CellFeatures)
	sp := gridworld.State(1, 0, 1, 0)

	_, err := rf.Features(sp)
	assert.ErrorIs(t, err, ErrParameterMismatch)
	assert.Panics(t, func() { rf.Reward(nil, nil, sp) })
	assert.Panics(t, func() { rf.Gradient(nil, nil, sp) })
}

func TestNewSoftmaxOperator_RejectsNonPositiveBeta(t *testing.T) {
	for _, beta := range []float64{0, -1, math.NaN()} {
		_, err := NewSoftmaxOperator(beta)
		assert.ErrorIs(t, err, dp.ErrInvalidConfig, "beta %v", beta)
	}

	g := gridworld.New(2, 2)
	cfg := testConfig()
	cfg.SoftmaxBeta = 0
	rf := NewLinearStateRF(g.NumCells(), g.CellFeatures)
	_, err := NewVI(g.Model(), g.ActionTypes(), rf, cfg)
	assert.ErrorIs(t, err, dp.ErrInvalidConfig)
}

// -----------------------------------------------------------------------------
// MLIRL
// -----------------------------------------------------------------------------

func TestNewMLIRL_FeatureLengthMismatch(t *testing.T) {
	g := gridworld.New(3, 3)
	rf := NewLinearStateRF(4, g.CellFeatures)
	m := model.NewFactoredModel(g, rf, model.TerminalFunc(gridworld.AtLocation))
	vi, err := NewVI(m, g.ActionTypes(), rf, testConfig())
	require.NoError(t, err)

	_, err = NewMLIRL(vi, []*policy.Episode{expertDemo()}, DefaultMLIRLConfig())
	assert.ErrorIs(t, err, ErrParameterMismatch)
}

func expertDemo() *policy.Episode {
	path := [][2]int{{0, 0}, {1, 0}, {2, 0}, {2, 1}, {2, 2}}
	moves := []string{gridworld.ActionEast, gridworld.ActionEast, gridworld.ActionNorth, gridworld.ActionNorth}
	ep := &policy.Episode{Terminated: true}
	for _, p := range path {
		ep.States = append(ep.States, gridworld.State(p[0], p[1], 2, 2))
	}
	for _, m := range moves {
		ep.Actions = append(ep.Actions, model.SimpleAction(m))
		ep.Rewards = append(ep.Rewards, 0)
	}
	return ep
}

func TestMLIRL_LikelihoodGradientMatchesFiniteDifference(t *testing.T) {
	g := gridworld.New(3, 3)
	theta := testTheta(g.NumCells())
	demos := []*policy.Episode{expertDemo()}

	learner := func(th []float64) *MLIRL {
		vi := newGridVI(t, g, th)
		m, err := NewMLIRL(vi, demos, DefaultMLIRLConfig())
		require.NoError(t, err)
		return m
	}

	m := learner(theta)
	require.NoError(t, m.replan(context.Background()))
	_, analytic, err := m.evaluate(true)
	require.NoError(t, err)

	for k := range theta {
		plus := append([]float64(nil), theta...)
		minus := append([]float64(nil), theta...)
		plus[k] += fdEpsilon
		minus[k] -= fdEpsilon
		llPlus, err := learner(plus).LogLikelihood(context.Background())
		require.NoError(t, err)
		llMinus, err := learner(minus).LogLikelihood(context.Background())
		require.NoError(t, err)
		assert.InDelta(t, (llPlus-llMinus)/(2*fdEpsilon), analytic[k], 1e-4, "parameter %d", k)
	}
}

func TestMLIRL_RunIncreasesLikelihood(t *testing.T) {
	g := gridworld.New(3, 3)
	vi := newGridVI(t, g, make([]float64, g.NumCells()))

	cfg := DefaultMLIRLConfig()
	cfg.LearningRate = 0.05
	cfg.MaxSteps = 10
	cfg.Tolerance = 0
	m, err := NewMLIRL(vi, []*policy.Episode{expertDemo()}, cfg)
	require.NoError(t, err)

	res, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 10, res.Steps)
	assert.Greater(t, res.LogLikelihood, res.InitialLogLikelihood)
	assert.Equal(t, vi.RewardFunction().Parameters(), res.Parameters)
}

func TestNewMLIRL_Validation(t *testing.T) {
	g := gridworld.New(2, 2)
	vi := newGridVI(t, g, testTheta(g.NumCells()))

	_, err := NewMLIRL(vi, nil, DefaultMLIRLConfig())
	assert.ErrorIs(t, err, ErrNoDemonstrations)

	_, err = NewMLIRL(vi, []*policy.Episode{{States: []state.State{gridworld.State(0, 0, 1, 1)}}}, DefaultMLIRLConfig())
	assert.ErrorIs(t, err, ErrNoDemonstrations)

	bad := DefaultMLIRLConfig()
	bad.LearningRate = 0
	_, err = NewMLIRL(vi, []*policy.Episode{expertDemo()}, bad)
	assert.ErrorIs(t, err, dp.ErrInvalidConfig)
}

func TestMLIRL_CancelledContext(t *testing.T) {
	g := gridworld.New(3, 3)
	vi := newGridVI(t, g, testTheta(g.NumCells()))
	m, err := NewMLIRL(vi, []*policy.Episode{expertDemo()}, DefaultMLIRLConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
