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
	"log/slog"
	"math"
	"math/rand/v2"

	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/oomdp/pkg/model"
	"github.com/AleutianAI/oomdp/pkg/policy"
	"github.com/AleutianAI/oomdp/pkg/state"
)

// PlannerPolicyIteration is the planner label of PolicyIteration.
const PlannerPolicyIteration = "policy_iteration"

// PolicyIteration alternates fixed-policy evaluation with greedy
// improvement.
//
// Description:
//
//	The policy is tabular: one action per table index, chosen as the first
//	maximal Q under the current values. Each round evaluates that policy
//	with fixed-policy sweeps, then recomputes the greedy actions. Rounds
//	stop when the values moved by at most policy_iteration.max_delta over
//	a whole evaluation, when no greedy action changed, or after
//	policy_iteration.max_policy_iterations rounds.
type PolicyIteration struct {
	*Engine
	maxRounds int
	maxDelta  float64
	actions   []model.Action
}

// NewPolicyIteration creates a policy iteration planner.
func NewPolicyIteration(m model.SampleModel, actionTypes []model.ActionType, cfg Config, opts ...Option) (*PolicyIteration, error) {
	e, err := NewEngine(PlannerPolicyIteration, m, actionTypes, cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &PolicyIteration{
		Engine:    e,
		maxRounds: cfg.PolicyIteration.MaxPolicyIterations,
		maxDelta:  cfg.PolicyIteration.MaxDelta,
	}, nil
}

// PlanFromState runs reachability from s, then policy iteration. Follows
// the same no-op rule as ValueIteration.PlanFromState.
func (pi *PolicyIteration) PlanFromState(ctx context.Context, s state.State) (*Result, error) {
	added, err := pi.PerformReachabilityFrom(ctx, s)
	if err != nil {
		return nil, err
	}
	if added == 0 && pi.HasSwept() {
		return pi.noopResult(), nil
	}
	res, err := pi.RunPolicyIteration(ctx)
	if res != nil {
		res.NewStates = added
	}
	return res, err
}

// RunPolicyIteration runs evaluation/improvement rounds over the current
// table.
func (pi *PolicyIteration) RunPolicyIteration(ctx context.Context) (*Result, error) {
	if pi.NumStates() == 0 {
		return &Result{Planner: pi.planner, Status: pi.status},
			plannerError(pi.planner, "RunPolicyIteration", ErrNoReachableStates)
	}

	ctx, span := pi.tracer.Start(ctx, SpanPolicyIteration,
		attribute.String("dp.planner", pi.planner),
		attribute.Int("dp.num_states", pi.NumStates()))

	if _, err := pi.improve(); err != nil {
		err = plannerError(pi.planner, "RunPolicyIteration", err)
		pi.tracer.End(span, nil, err)
		return nil, err
	}

	var (
		res    *Result
		err    error
		rounds int
		stable bool
	)
	tabular := policy.Policy(&tabularPolicy{pi: pi})
	for rounds < pi.maxRounds {
		before := pi.valueVector()
		res, err = pi.RunSweeps(ctx, SpanPolicyEvaluation, func(i int) (float64, error) {
			return pi.FixedPolicyBellmanUpdateAt(i, tabular)
		})
		if err != nil {
			break
		}
		rounds++
		evalDelta := maxAbsDiff(before, pi.valueVector())

		changed, ierr := pi.improve()
		if ierr != nil {
			err = plannerError(pi.planner, "RunPolicyIteration", ierr)
			break
		}
		pi.logger.Debug("policy iteration round",
			slog.Int("round", rounds),
			slog.Float64("eval_delta", evalDelta),
			slog.Int("changed_actions", changed))

		if evalDelta <= pi.maxDelta || changed == 0 {
			stable = true
			break
		}
	}

	if res == nil {
		res = &Result{Planner: pi.planner}
	}
	res.PolicyIterations = rounds
	if err == nil {
		res.Converged = stable
		if stable {
			pi.status = StatusConverged
		} else {
			pi.status = StatusIterationCapReached
			pi.logger.Warn("policy iteration cap reached", slog.Int("rounds", rounds))
		}
		res.Status = pi.status
	}
	span.SetAttributes(attribute.Int("dp.policy_iterations", rounds))
	pi.tracer.End(span, res, err)
	return res, err
}

// Policy returns the current greedy policy.
func (pi *PolicyIteration) Policy() policy.Policy {
	return pi.GreedyPolicy()
}

// improve recomputes the greedy action of every state and returns how many
// changed.
func (pi *PolicyIteration) improve() (int, error) {
	changed := 0
	for i := 0; i < pi.NumStates(); i++ {
		var best model.Action
		if !pi.terminal[i] {
			aos, err := pi.Outcomes(i)
			if err != nil {
				return 0, err
			}
			qs := make([]float64, len(aos))
			for k, ao := range aos {
				qs[k] = pi.qValue(ao)
			}
			if k := Argmax(qs); k >= 0 {
				best = aos[k].Action
			}
		}
		if i >= len(pi.actions) {
			pi.actions = append(pi.actions, best)
			changed++
			continue
		}
		if !model.SameAction(pi.actions[i], best) {
			pi.actions[i] = best
			changed++
		}
	}
	return changed, nil
}

// ResetSolver discards values and the tabular policy.
func (pi *PolicyIteration) ResetSolver() {
	pi.Engine.ResetSolver()
	pi.actions = nil
}

func (pi *PolicyIteration) valueVector() []float64 {
	out := make([]float64, pi.NumStates())
	for i := range out {
		out[i] = pi.ValueAt(i)
	}
	return out
}

func maxAbsDiff(a, b []float64) float64 {
	d := 0.0
	for i := range min(len(a), len(b)) {
		d = math.Max(d, math.Abs(a[i]-b[i]))
	}
	return d
}

// tabularPolicy follows the stored greedy action of each table state.
type tabularPolicy struct {
	pi *PolicyIteration
}

func (t *tabularPolicy) Action(rng *rand.Rand, s state.State) (model.Action, error) {
	dist, err := t.ActionDistribution(s)
	if err != nil {
		return nil, err
	}
	return policy.SampleAction(rng, dist)
}

func (t *tabularPolicy) ActionDistribution(s state.State) ([]policy.ActionProb, error) {
	i := t.pi.IndexOf(s)
	if i < 0 || i >= len(t.pi.actions) {
		return t.pi.GreedyPolicy().ActionDistribution(s)
	}
	if a := t.pi.actions[i]; a != nil {
		return []policy.ActionProb{{A: a, P: 1}}, nil
	}
	return nil, policy.ErrNoActions
}
