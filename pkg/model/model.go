// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package model defines the transition model contracts consumed by planners.
//
// Description:
//
//	Models come in two capability levels:
//
//	  SampleModel  draws one outcome per call; usable when the distribution is
//	               unknown or infinite.
//	  FullModel    enumerates every nonzero-probability outcome.
//
//	Planners that need enumeration call AsFull once at construction and keep
//	the returned FullModel; they never re-check capability per call.
//
// Randomness:
//
//	No package-level random source is used. Every sampling call takes an
//	explicit *rand.Rand owned by the caller.
package model

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/AleutianAI/oomdp/pkg/state"
)

var (
	// ErrNotFullModel is returned when a model cannot enumerate transitions.
	ErrNotFullModel = errors.New("model does not support full transition enumeration")

	// ErrDistributionSum is returned when transition probabilities do not sum
	// to one. It indicates a malformed model and is not recoverable.
	ErrDistributionSum = errors.New("transition probabilities do not sum to 1")
)

// DistributionTolerance is the allowed absolute deviation of a transition
// distribution's total mass from 1.
const DistributionTolerance = 1e-10

// EnvironmentOutcome records one transition (s, a, s', r, terminal).
type EnvironmentOutcome struct {
	O          state.State
	A          Action
	OP         state.State
	R          float64
	Terminated bool
}

// TransitionProb is one outcome of a transition distribution and its mass.
type TransitionProb struct {
	P  float64
	EO EnvironmentOutcome
}

// SampleModel samples outcomes of executing an action.
type SampleModel interface {
	// Sample draws an outcome of executing a in s.
	Sample(rng *rand.Rand, s state.State, a Action) (EnvironmentOutcome, error)

	// Terminal reports whether s ends an episode.
	Terminal(s state.State) bool
}

// FullModel additionally enumerates the outcome distribution.
type FullModel interface {
	SampleModel

	// Transitions returns every nonzero-probability outcome of executing a
	// in s. Probabilities sum to 1.
	Transitions(s state.State, a Action) ([]TransitionProb, error)
}

// CapabilityReporter lets a model that satisfies FullModel nominally declare
// whether enumeration is actually available.
type CapabilityReporter interface {
	SupportsFullModel() bool
}

// AsFull returns m as a FullModel, or ErrNotFullModel when m cannot enumerate
// its transitions.
func AsFull(m SampleModel) (FullModel, error) {
	fm, ok := m.(FullModel)
	if !ok {
		return nil, fmt.Errorf("%T: %w", m, ErrNotFullModel)
	}
	if cr, ok := m.(CapabilityReporter); ok && !cr.SupportsFullModel() {
		return nil, fmt.Errorf("%T: %w", m, ErrNotFullModel)
	}
	return fm, nil
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

// deterministicModel lifts a deterministic SampleModel to a FullModel.
type deterministicModel struct {
	SampleModel
}

// Deterministic wraps a sample-only model whose transitions are
// deterministic. Transitions returns the single sampled outcome with
// probability 1.
//
// Inputs:
//   - m: A model whose Sample ignores its random source.
//
// Outputs:
//   - FullModel: Enumerating wrapper around m.
//
// Limitations:
//   - If m is actually stochastic, Transitions reports one arbitrary outcome.
func Deterministic(m SampleModel) FullModel {
	return &deterministicModel{SampleModel: m}
}

// Transitions returns the single outcome with probability 1.
func (d *deterministicModel) Transitions(s state.State, a Action) ([]TransitionProb, error) {
	eo, err := d.Sample(rand.New(rand.NewPCG(0, 0)), s, a)
	if err != nil {
		return nil, err
	}
	return []TransitionProb{{P: 1, EO: eo}}, nil
}

// SampleFromDistribution draws one outcome from tps by cumulative roll.
//
// Outputs:
//   - EnvironmentOutcome: The selected outcome.
//   - error: ErrDistributionSum if the masses differ from 1 by more than
//     DistributionTolerance.
func SampleFromDistribution(rng *rand.Rand, tps []TransitionProb) (EnvironmentOutcome, error) {
	total := 0.0
	for _, tp := range tps {
		total += tp.P
	}
	if total < 1-DistributionTolerance || total > 1+DistributionTolerance {
		return EnvironmentOutcome{}, fmt.Errorf("%w: got %v", ErrDistributionSum, total)
	}

	roll := rng.Float64()
	sum := 0.0
	for _, tp := range tps {
		sum += tp.P
		if roll < sum {
			return tp.EO, nil
		}
	}
	// Rounding left the roll above the final cumulative mass.
	return tps[len(tps)-1].EO, nil
}

// SampleByEnumeration samples a FullModel by enumerating its distribution and
// rolling against it.
func SampleByEnumeration(rng *rand.Rand, m FullModel, s state.State, a Action) (EnvironmentOutcome, error) {
	tps, err := m.Transitions(s, a)
	if err != nil {
		return EnvironmentOutcome{}, err
	}
	return SampleFromDistribution(rng, tps)
}
