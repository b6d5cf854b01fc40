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

	"github.com/AleutianAI/oomdp/pkg/model"
	"github.com/AleutianAI/oomdp/pkg/policy"
	"github.com/AleutianAI/oomdp/pkg/state"
)

// PlannerPolicyEvaluation is the planner label of PolicyEvaluation.
const PlannerPolicyEvaluation = "policy_evaluation"

// PolicyEvaluation computes the value function of a fixed policy.
//
// The configured operator is ignored; every backup takes the expectation of
// Q under the policy's action distribution.
type PolicyEvaluation struct {
	*Engine
	policy policy.Policy
}

// NewPolicyEvaluation creates an evaluator for p.
func NewPolicyEvaluation(m model.SampleModel, actionTypes []model.ActionType, p policy.Policy, cfg Config, opts ...Option) (*PolicyEvaluation, error) {
	if p == nil {
		return nil, plannerError(PlannerPolicyEvaluation, "New", ErrNilPolicy)
	}
	e, err := NewEngine(PlannerPolicyEvaluation, m, actionTypes, cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &PolicyEvaluation{Engine: e, policy: p}, nil
}

// Policy returns the evaluated policy.
func (pe *PolicyEvaluation) Policy() policy.Policy { return pe.policy }

// SetPolicy replaces the evaluated policy. Existing values are kept as the
// starting point of the next evaluation.
func (pe *PolicyEvaluation) SetPolicy(p policy.Policy) { pe.policy = p }

// EvaluatePolicyFrom runs reachability from s and evaluates the policy over
// the whole table.
//
// Unlike value iteration, sweeps always run because the policy may have
// changed since the last call.
func (pe *PolicyEvaluation) EvaluatePolicyFrom(ctx context.Context, s state.State) (*Result, error) {
	added, err := pe.PerformReachabilityFrom(ctx, s)
	if err != nil {
		return nil, err
	}
	res, err := pe.RunPolicyEvaluation(ctx)
	if res != nil {
		res.NewStates = added
	}
	return res, err
}

// RunPolicyEvaluation sweeps the current table with fixed-policy backups.
func (pe *PolicyEvaluation) RunPolicyEvaluation(ctx context.Context) (*Result, error) {
	if pe.policy == nil {
		return nil, plannerError(pe.planner, "RunPolicyEvaluation", ErrNilPolicy)
	}
	p := pe.policy
	return pe.RunSweeps(ctx, SpanPolicyEvaluation, func(i int) (float64, error) {
		return pe.FixedPolicyBellmanUpdateAt(i, p)
	})
}
