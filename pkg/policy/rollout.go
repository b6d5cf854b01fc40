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
	"fmt"
	"math/rand/v2"

	"github.com/AleutianAI/oomdp/pkg/model"
	"github.com/AleutianAI/oomdp/pkg/parallel"
	"github.com/AleutianAI/oomdp/pkg/state"
)

// Episode is the trace of one rollout. States has one more entry than
// Actions and Rewards.
type Episode struct {
	States     []state.State
	Actions    []model.Action
	Rewards    []float64
	Terminated bool
}

// Steps returns the number of transitions taken.
func (e *Episode) Steps() int { return len(e.Actions) }

// DiscountedReturn returns Σ γ^t r_t.
func (e *Episode) DiscountedReturn(gamma float64) float64 {
	ret, disc := 0.0, 1.0
	for _, r := range e.Rewards {
		ret += disc * r
		disc *= gamma
	}
	return ret
}

// Rollout runs p in m from s0 until a terminal state or maxSteps
// transitions. maxSteps <= 0 runs until termination.
//
// Inputs:
//   - ctx: Checked between steps.
//   - rng: Random source for action and outcome sampling.
//   - p: Policy being followed.
//   - m: Environment model.
//   - s0: Initial state.
//   - maxSteps: Step cap.
//
// Outputs:
//   - *Episode: The trace so far, also returned alongside errors.
//   - error: Policy, model, or context error.
func Rollout(ctx context.Context, rng *rand.Rand, p Policy, m model.SampleModel, s0 state.State, maxSteps int) (*Episode, error) {
	ep := &Episode{States: []state.State{s0}}
	s := s0
	if m.Terminal(s) {
		ep.Terminated = true
		return ep, nil
	}

	for step := 0; maxSteps <= 0 || step < maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return ep, err
		}
		a, err := p.Action(rng, s)
		if err != nil {
			return ep, fmt.Errorf("step %d: select action: %w", step, err)
		}
		eo, err := m.Sample(rng, s, a)
		if err != nil {
			return ep, fmt.Errorf("step %d: sample %s: %w", step, a.Name(), err)
		}
		ep.Actions = append(ep.Actions, a)
		ep.Rewards = append(ep.Rewards, eo.R)
		ep.States = append(ep.States, eo.OP)
		s = eo.OP
		if eo.Terminated {
			ep.Terminated = true
			break
		}
	}
	return ep, nil
}

// RolloutBatch runs n independent rollouts on a fixed-size worker pool.
//
// Episode i samples from its own generator seeded with (seed, i), so results
// do not depend on scheduling.
//
// Thread Safety: p and m must be safe for concurrent reads. A DP planner used
// as the policy's QProvider must not be planning during the batch.
func RolloutBatch(ctx context.Context, p Policy, m model.SampleModel, s0 state.State, n, maxSteps, workers int, seed uint64) ([]*Episode, error) {
	idx := make([]uint64, n)
	for i := range idx {
		idx[i] = uint64(i)
	}
	return parallel.Map(ctx, idx, workers, func(ctx context.Context, _ int, i uint64) (*Episode, error) {
		rng := rand.New(rand.NewPCG(seed, i))
		ep, err := Rollout(ctx, rng, p, m, s0, maxSteps)
		if err != nil {
			return nil, fmt.Errorf("episode %d: %w", i, err)
		}
		return ep, nil
	})
}
