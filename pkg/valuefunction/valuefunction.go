// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package valuefunction defines state-value and action-value surfaces shared
// by planners and policies.
package valuefunction

import (
	"github.com/AleutianAI/oomdp/pkg/model"
	"github.com/AleutianAI/oomdp/pkg/state"
)

// ValueFunction maps states to values.
type ValueFunction interface {
	Value(s state.State) float64
}

// QValue is one (state, action, value) triple.
type QValue struct {
	S state.State
	A model.Action
	Q float64
}

// QProvider exposes action values.
type QProvider interface {
	ValueFunction

	// Q returns the value of taking a in s.
	Q(s state.State, a model.Action) (QValue, error)

	// Qs returns the value of every applicable action in s.
	Qs(s state.State) ([]QValue, error)
}

// Func adapts a function to ValueFunction.
type Func func(s state.State) float64

// Value calls f.
func (f Func) Value(s state.State) float64 { return f(s) }

// Constant assigns the same value to every state.
type Constant float64

// Value returns c.
func (c Constant) Value(state.State) float64 { return float64(c) }

// Values extracts the Q field of each entry.
func Values(qs []QValue) []float64 {
	out := make([]float64, len(qs))
	for i, q := range qs {
		out[i] = q.Q
	}
	return out
}
