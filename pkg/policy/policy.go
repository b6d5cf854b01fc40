// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package policy provides stochastic and deterministic policies over
// QProvider surfaces, and episode rollouts.
//
// Every policy exposes its full action distribution so fixed-policy
// evaluation can take expectations without sampling. Sampling takes an
// explicit *rand.Rand; no policy owns a random source.
package policy

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"

	"github.com/AleutianAI/oomdp/pkg/model"
	"github.com/AleutianAI/oomdp/pkg/state"
	"github.com/AleutianAI/oomdp/pkg/valuefunction"
)

var (
	// ErrNoActions is returned when a policy is queried in a state with no
	// applicable actions.
	ErrNoActions = errors.New("no applicable actions")

	// ErrInvalidParameter is returned for out-of-range policy parameters.
	ErrInvalidParameter = errors.New("invalid policy parameter")
)

// ActionProb is an action and its selection probability.
type ActionProb struct {
	A model.Action
	P float64
}

// Policy selects actions.
type Policy interface {
	// Action samples an action for s.
	Action(rng *rand.Rand, s state.State) (model.Action, error)

	// ActionDistribution returns every action with nonzero probability in s.
	ActionDistribution(s state.State) ([]ActionProb, error)
}

// ActionProbability returns the probability dist assigns to a, or 0.
func ActionProbability(dist []ActionProb, a model.Action) float64 {
	p := 0.0
	for _, ap := range dist {
		if model.SameAction(ap.A, a) {
			p += ap.P
		}
	}
	return p
}

// SampleAction draws from dist by cumulative roll.
func SampleAction(rng *rand.Rand, dist []ActionProb) (model.Action, error) {
	if len(dist) == 0 {
		return nil, ErrNoActions
	}
	roll := rng.Float64()
	sum := 0.0
	for _, ap := range dist {
		sum += ap.P
		if roll < sum {
			return ap.A, nil
		}
	}
	return dist[len(dist)-1].A, nil
}

// maxIndices returns the indices of the maximal entries of qs.
func maxIndices(qs []valuefunction.QValue) []int {
	best := math.Inf(-1)
	var idx []int
	for i, q := range qs {
		switch {
		case q.Q > best:
			best = q.Q
			idx = append(idx[:0], i)
		case q.Q == best:
			idx = append(idx, i)
		}
	}
	return idx
}

// -----------------------------------------------------------------------------
// GreedyQ
// -----------------------------------------------------------------------------

// GreedyQ picks a maximal-Q action, breaking ties uniformly at random.
type GreedyQ struct {
	Q valuefunction.QProvider
}

// NewGreedyQ creates a greedy policy over q.
func NewGreedyQ(q valuefunction.QProvider) *GreedyQ {
	return &GreedyQ{Q: q}
}

// Action samples one of the maximal actions.
func (g *GreedyQ) Action(rng *rand.Rand, s state.State) (model.Action, error) {
	qs, err := g.Q.Qs(s)
	if err != nil {
		return nil, err
	}
	best := maxIndices(qs)
	if len(best) == 0 {
		return nil, ErrNoActions
	}
	return qs[best[rng.IntN(len(best))]].A, nil
}

// ActionDistribution spreads mass uniformly over the maximal actions.
func (g *GreedyQ) ActionDistribution(s state.State) ([]ActionProb, error) {
	qs, err := g.Q.Qs(s)
	if err != nil {
		return nil, err
	}
	best := maxIndices(qs)
	if len(best) == 0 {
		return nil, ErrNoActions
	}
	p := 1 / float64(len(best))
	out := make([]ActionProb, len(best))
	for i, bi := range best {
		out[i] = ActionProb{A: qs[bi].A, P: p}
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// EpsilonGreedy
// -----------------------------------------------------------------------------

// EpsilonGreedy acts greedily with probability 1-Epsilon and uniformly at
// random otherwise.
type EpsilonGreedy struct {
	Q       valuefunction.QProvider
	Epsilon float64
}

// NewEpsilonGreedy creates an ε-greedy policy. epsilon must be in [0, 1].
func NewEpsilonGreedy(q valuefunction.QProvider, epsilon float64) (*EpsilonGreedy, error) {
	if epsilon < 0 || epsilon > 1 {
		return nil, fmt.Errorf("%w: epsilon %v not in [0, 1]", ErrInvalidParameter, epsilon)
	}
	return &EpsilonGreedy{Q: q, Epsilon: epsilon}, nil
}

// Action samples from the ε-greedy distribution.
func (e *EpsilonGreedy) Action(rng *rand.Rand, s state.State) (model.Action, error) {
	qs, err := e.Q.Qs(s)
	if err != nil {
		return nil, err
	}
	if len(qs) == 0 {
		return nil, ErrNoActions
	}
	if rng.Float64() < e.Epsilon {
		return qs[rng.IntN(len(qs))].A, nil
	}
	best := maxIndices(qs)
	return qs[best[rng.IntN(len(best))]].A, nil
}

// ActionDistribution returns ε/|A| for every action plus (1-ε)/|max| for
// each maximal action.
func (e *EpsilonGreedy) ActionDistribution(s state.State) ([]ActionProb, error) {
	qs, err := e.Q.Qs(s)
	if err != nil {
		return nil, err
	}
	if len(qs) == 0 {
		return nil, ErrNoActions
	}
	best := maxIndices(qs)
	explore := e.Epsilon / float64(len(qs))
	exploit := (1 - e.Epsilon) / float64(len(best))

	out := make([]ActionProb, len(qs))
	for i, q := range qs {
		out[i] = ActionProb{A: q.A, P: explore}
	}
	for _, bi := range best {
		out[bi].P += exploit
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Boltzmann
// -----------------------------------------------------------------------------

// Boltzmann selects actions with probability proportional to exp(Q/T).
type Boltzmann struct {
	Q           valuefunction.QProvider
	Temperature float64
}

// NewBoltzmann creates a Boltzmann policy. temperature must be positive.
func NewBoltzmann(q valuefunction.QProvider, temperature float64) (*Boltzmann, error) {
	if temperature <= 0 {
		return nil, fmt.Errorf("%w: temperature %v must be > 0", ErrInvalidParameter, temperature)
	}
	return &Boltzmann{Q: q, Temperature: temperature}, nil
}

// Action samples from the Boltzmann distribution.
func (b *Boltzmann) Action(rng *rand.Rand, s state.State) (model.Action, error) {
	dist, err := b.ActionDistribution(s)
	if err != nil {
		return nil, err
	}
	return SampleAction(rng, dist)
}

// ActionDistribution returns the softmax of Q/T.
func (b *Boltzmann) ActionDistribution(s state.State) ([]ActionProb, error) {
	qs, err := b.Q.Qs(s)
	if err != nil {
		return nil, err
	}
	if len(qs) == 0 {
		return nil, ErrNoActions
	}
	probs := Softmax(valuefunction.Values(qs), 1/b.Temperature)
	out := make([]ActionProb, len(qs))
	for i, q := range qs {
		out[i] = ActionProb{A: q.A, P: probs[i]}
	}
	return out, nil
}

// Softmax returns exp(beta*x_i) / Σ exp(beta*x_j), computed stably.
func Softmax(xs []float64, beta float64) []float64 {
	if len(xs) == 0 {
		return nil
	}
	scaled := make([]float64, len(xs))
	floats.ScaleTo(scaled, beta, xs)
	lse := floats.LogSumExp(scaled)
	for i, v := range scaled {
		scaled[i] = math.Exp(v - lse)
	}
	return scaled
}

// -----------------------------------------------------------------------------
// Uniform
// -----------------------------------------------------------------------------

// Uniform selects uniformly among the applicable actions.
type Uniform struct {
	ActionTypes []model.ActionType
}

// NewUniform creates a uniform random policy over types.
func NewUniform(types []model.ActionType) *Uniform {
	return &Uniform{ActionTypes: types}
}

// Action samples an applicable action.
func (u *Uniform) Action(rng *rand.Rand, s state.State) (model.Action, error) {
	acts := model.ApplicableActions(u.ActionTypes, s)
	if len(acts) == 0 {
		return nil, ErrNoActions
	}
	return acts[rng.IntN(len(acts))], nil
}

// ActionDistribution assigns 1/|A| to every applicable action.
func (u *Uniform) ActionDistribution(s state.State) ([]ActionProb, error) {
	acts := model.ApplicableActions(u.ActionTypes, s)
	if len(acts) == 0 {
		return nil, ErrNoActions
	}
	p := 1 / float64(len(acts))
	out := make([]ActionProb, len(acts))
	for i, a := range acts {
		out[i] = ActionProb{A: a, P: p}
	}
	return out, nil
}
