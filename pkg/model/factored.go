// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package model

import (
	"fmt"
	"math/rand/v2"

	"github.com/AleutianAI/oomdp/pkg/state"
)

// StateTransitionProb is a next state and its probability.
type StateTransitionProb struct {
	P float64
	S state.State
}

// StateModel samples next states without rewards or terminality.
type StateModel interface {
	SampleState(rng *rand.Rand, s state.State, a Action) (state.State, error)
}

// FullStateModel enumerates next-state distributions.
type FullStateModel interface {
	StateModel
	StateTransitions(s state.State, a Action) ([]StateTransitionProb, error)
}

// RewardFunction scores a transition.
type RewardFunction interface {
	Reward(s state.State, a Action, sp state.State) float64
}

// TerminalFunction identifies episode-ending states.
type TerminalFunction interface {
	Terminal(s state.State) bool
}

// RewardFunc adapts a function to RewardFunction.
type RewardFunc func(s state.State, a Action, sp state.State) float64

// Reward calls f.
func (f RewardFunc) Reward(s state.State, a Action, sp state.State) float64 { return f(s, a, sp) }

// TerminalFunc adapts a function to TerminalFunction.
type TerminalFunc func(s state.State) bool

// Terminal calls f.
func (f TerminalFunc) Terminal(s state.State) bool { return f(s) }

// NullTermination never terminates.
var NullTermination TerminalFunction = TerminalFunc(func(state.State) bool { return false })

// FactoredModel composes a state model with reward and terminal functions.
//
// Enumeration is available only when StateModel is a FullStateModel; AsFull
// reports ErrNotFullModel otherwise.
//
// Thread Safety: Safe for concurrent use if its parts are.
type FactoredModel struct {
	StateModel StateModel
	RF         RewardFunction
	TF         TerminalFunction
}

// NewFactoredModel creates a FactoredModel. A nil tf never terminates.
func NewFactoredModel(sm StateModel, rf RewardFunction, tf TerminalFunction) *FactoredModel {
	if tf == nil {
		tf = NullTermination
	}
	return &FactoredModel{StateModel: sm, RF: rf, TF: tf}
}

// SupportsFullModel reports whether the state model enumerates transitions.
func (m *FactoredModel) SupportsFullModel() bool {
	_, ok := m.StateModel.(FullStateModel)
	return ok
}

// Sample draws a next state and scores it.
func (m *FactoredModel) Sample(rng *rand.Rand, s state.State, a Action) (EnvironmentOutcome, error) {
	sp, err := m.StateModel.SampleState(rng, s, a)
	if err != nil {
		return EnvironmentOutcome{}, fmt.Errorf("sample %s: %w", a.Name(), err)
	}
	return m.outcome(s, a, sp), nil
}

// Terminal delegates to the terminal function.
func (m *FactoredModel) Terminal(s state.State) bool {
	return m.TF.Terminal(s)
}

// Transitions enumerates next states and scores each.
func (m *FactoredModel) Transitions(s state.State, a Action) ([]TransitionProb, error) {
	fsm, ok := m.StateModel.(FullStateModel)
	if !ok {
		return nil, fmt.Errorf("%T: %w", m.StateModel, ErrNotFullModel)
	}
	stps, err := fsm.StateTransitions(s, a)
	if err != nil {
		return nil, fmt.Errorf("transitions %s: %w", a.Name(), err)
	}
	out := make([]TransitionProb, 0, len(stps))
	for _, stp := range stps {
		if stp.P == 0 {
			continue
		}
		out = append(out, TransitionProb{P: stp.P, EO: m.outcome(s, a, stp.S)})
	}
	return out, nil
}

func (m *FactoredModel) outcome(s state.State, a Action, sp state.State) EnvironmentOutcome {
	return EnvironmentOutcome{
		O:          s,
		A:          a,
		OP:         sp,
		R:          m.RF.Reward(s, a, sp),
		Terminated: m.TF.Terminal(sp),
	}
}
