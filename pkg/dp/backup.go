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
	"fmt"

	"github.com/AleutianAI/oomdp/pkg/model"
	"github.com/AleutianAI/oomdp/pkg/policy"
	"github.com/AleutianAI/oomdp/pkg/state"
	"github.com/AleutianAI/oomdp/pkg/valuefunction"
)

// -----------------------------------------------------------------------------
// Backups
// -----------------------------------------------------------------------------

// BellmanUpdate backs up s with the engine's operator, adding s to the table
// first if needed.
//
// Outputs:
//   - float64: |V_new(s) - V_old(s)|.
//   - error: Model error.
func (e *Engine) BellmanUpdate(s state.State) (float64, error) {
	i, _ := e.insert(e.hashing.Hash(s))
	return e.BellmanUpdateAt(i)
}

// BellmanUpdateAt backs up the state at index i with the engine's operator.
func (e *Engine) BellmanUpdateAt(i int) (float64, error) {
	return e.backupAt(i, func(_ []ActionOutcomes, qs []float64) (float64, error) {
		return e.op.Apply(qs), nil
	})
}

// FixedPolicyBellmanUpdate backs up s with the expectation of Q under p,
// adding s to the table first if needed.
func (e *Engine) FixedPolicyBellmanUpdate(s state.State, p policy.Policy) (float64, error) {
	i, _ := e.insert(e.hashing.Hash(s))
	return e.FixedPolicyBellmanUpdateAt(i, p)
}

// FixedPolicyBellmanUpdateAt backs up the state at index i with the
// expectation of Q under p.
func (e *Engine) FixedPolicyBellmanUpdateAt(i int, p policy.Policy) (float64, error) {
	if p == nil {
		return 0, ErrNilPolicy
	}
	return e.backupAt(i, func(aos []ActionOutcomes, qs []float64) (float64, error) {
		dist, err := p.ActionDistribution(e.values.Key(i).State())
		if err != nil {
			return 0, fmt.Errorf("policy distribution: %w", err)
		}
		return ExpectationOperator{Probs: actionProbs(aos, dist)}.Apply(qs), nil
	})
}

// backupAt recomputes the value at index i by reducing its Q-vector with
// reduce. Terminal states and states without actions get 0.
func (e *Engine) backupAt(i int, reduce func(aos []ActionOutcomes, qs []float64) (float64, error)) (float64, error) {
	bellmanBackupsTotal.WithLabelValues(e.planner).Inc()
	old := e.values.Value(i)
	if e.terminal[i] {
		e.values.SetAt(i, 0)
		return absDelta(0, old), nil
	}

	aos, err := e.Outcomes(i)
	if err != nil {
		return 0, err
	}
	v := 0.0
	if len(aos) > 0 {
		qs := make([]float64, len(aos))
		for k, ao := range aos {
			qs[k] = e.qValue(ao)
		}
		if v, err = reduce(aos, qs); err != nil {
			return 0, err
		}
	}
	e.values.SetAt(i, v)
	return absDelta(v, old), nil
}

// actionProbs aligns a policy distribution with the outcome order.
func actionProbs(aos []ActionOutcomes, dist []policy.ActionProb) []float64 {
	probs := make([]float64, len(aos))
	for k, ao := range aos {
		probs[k] = policy.ActionProbability(dist, ao.Action)
	}
	return probs
}

// -----------------------------------------------------------------------------
// Q surface
// -----------------------------------------------------------------------------

// Q returns the action value of a in s from the current value table.
func (e *Engine) Q(s state.State, a model.Action) (valuefunction.QValue, error) {
	ao, err := e.ActionOutcomesFor(s, a)
	if err != nil {
		return valuefunction.QValue{}, err
	}
	return valuefunction.QValue{S: s, A: a, Q: e.qValue(ao)}, nil
}

// Qs returns the action value of every applicable action in s. Terminal
// states have no actions.
func (e *Engine) Qs(s state.State) ([]valuefunction.QValue, error) {
	if e.isTerminal(s) {
		return nil, nil
	}
	aos, err := e.OutcomesFor(s)
	if err != nil {
		return nil, plannerError(e.planner, "Qs", err)
	}
	out := make([]valuefunction.QValue, len(aos))
	for k, ao := range aos {
		out[k] = valuefunction.QValue{S: s, A: ao.Action, Q: e.qValue(ao)}
	}
	return out, nil
}

// ActionOutcomesFor returns the outcomes of a in s, from the transition
// cache when available.
func (e *Engine) ActionOutcomesFor(s state.State, a model.Action) (ActionOutcomes, error) {
	if i := e.IndexOf(s); i >= 0 && e.cache[i] != nil {
		for _, ao := range e.cache[i] {
			if model.SameAction(ao.Action, a) {
				return ao, nil
			}
		}
	}
	ao, err := e.enumerateAction(s, a)
	if err != nil {
		return ActionOutcomes{}, plannerError(e.planner, "Q", err)
	}
	return ao, nil
}

func (e *Engine) isTerminal(s state.State) bool {
	if i := e.IndexOf(s); i >= 0 {
		return e.terminal[i]
	}
	return e.model.Terminal(s)
}

// GreedyPolicy returns a greedy policy over the engine's Q surface.
func (e *Engine) GreedyPolicy() *policy.GreedyQ {
	return policy.NewGreedyQ(e)
}
