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
	"fmt"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/AleutianAI/oomdp/pkg/model"
	"github.com/AleutianAI/oomdp/pkg/state"
	"github.com/AleutianAI/oomdp/pkg/valuefunction"
)

// DifferentiableRF is a reward function parameterized by a real vector θ.
type DifferentiableRF interface {
	model.RewardFunction

	// Gradient returns ∂r(s,a,s')/∂θ.
	Gradient(s state.State, a model.Action, sp state.State) []float64

	// NumParameters returns len(θ).
	NumParameters() int

	// Parameters returns a copy of θ.
	Parameters() []float64

	// SetParameters replaces θ. Returns ErrParameterMismatch on a length
	// mismatch.
	SetParameters(theta []float64) error
}

// FeatureFunc maps a state to a fixed-length feature vector.
type FeatureFunc func(s state.State) []float64

// LinearStateRF is r(s,a,s') = θ·φ(s').
//
// Thread Safety: Safe for concurrent use; SetParameters is serialized with
// readers.
type LinearStateRF struct {
	features FeatureFunc
	mu       sync.RWMutex
	theta    []float64
}

// NewLinearStateRF creates a linear reward over dim features with θ = 0.
func NewLinearStateRF(dim int, features FeatureFunc) *LinearStateRF {
	return &LinearStateRF{features: features, theta: make([]float64, dim)}
}

// Features returns φ(s). Returns ErrParameterMismatch when φ(s) and θ
// differ in length.
func (r *LinearStateRF) Features(s state.State) ([]float64, error) {
	phi := r.features(s)
	if len(phi) != len(r.theta) {
		return nil, fmt.Errorf("%w: feature function returned %d features, want %d", ErrParameterMismatch, len(phi), len(r.theta))
	}
	return phi, nil
}

// mustFeatures is Features for callers without an error return. It panics
// on a length mismatch.
func (r *LinearStateRF) mustFeatures(s state.State) []float64 {
	phi, err := r.Features(s)
	if err != nil {
		panic(err)
	}
	return phi
}

// Reward returns θ·φ(s'). Panics if φ(s') has the wrong length.
func (r *LinearStateRF) Reward(_ state.State, _ model.Action, sp state.State) float64 {
	phi := r.mustFeatures(sp)
	r.mu.RLock()
	defer r.mu.RUnlock()
	return floats.Dot(r.theta, phi)
}

// Gradient returns a copy of φ(s'). Panics if φ(s') has the wrong length.
func (r *LinearStateRF) Gradient(_ state.State, _ model.Action, sp state.State) []float64 {
	return append([]float64(nil), r.mustFeatures(sp)...)
}

// NumParameters returns the feature dimension.
func (r *LinearStateRF) NumParameters() int { return len(r.theta) }

// Parameters returns a copy of θ.
func (r *LinearStateRF) Parameters() []float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]float64(nil), r.theta...)
}

// SetParameters replaces θ.
func (r *LinearStateRF) SetParameters(theta []float64) error {
	if len(theta) != len(r.theta) {
		return fmt.Errorf("%w: got %d parameters, want %d", ErrParameterMismatch, len(theta), len(r.theta))
	}
	r.mu.Lock()
	copy(r.theta, theta)
	r.mu.Unlock()
	return nil
}

// ValueInitializer supplies an initial value and its θ-gradient for newly
// discovered states.
type ValueInitializer interface {
	valuefunction.ValueFunction
	Gradient(s state.State) []float64
}

// ConstantInitializer gives every state value V and a zero gradient of
// length Dim.
type ConstantInitializer struct {
	V   float64
	Dim int
}

// Value returns V.
func (c ConstantInitializer) Value(state.State) float64 { return c.V }

// Gradient returns a zero vector.
func (c ConstantInitializer) Gradient(state.State) []float64 { return make([]float64, c.Dim) }
