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

	"gonum.org/v1/gonum/floats"

	"github.com/AleutianAI/oomdp/pkg/dp"
)

// DifferentiableOperator is a backup operator that also propagates θ-gradients.
type DifferentiableOperator interface {
	dp.Operator

	// Gradient returns ∂V/∂θ given the action values and their gradients.
	// qGrads[i] is the gradient of qs[i].
	Gradient(qs []float64, qGrads [][]float64) []float64
}

// SoftmaxOperator is the Boltzmann backup with its gradient
//
//	∂V/∂θ = Σ_a softmax(β·Q)_a · ∂Q_a/∂θ
type SoftmaxOperator struct {
	dp.SoftmaxOperator
}

// NewSoftmaxOperator creates a softmax operator with inverse temperature
// beta. Returns a wrapped dp.ErrInvalidConfig unless beta > 0.
func NewSoftmaxOperator(beta float64) (SoftmaxOperator, error) {
	if !(beta > 0) {
		return SoftmaxOperator{}, fmt.Errorf("%w: softmax beta %v must be > 0", dp.ErrInvalidConfig, beta)
	}
	return SoftmaxOperator{SoftmaxOperator: dp.SoftmaxOperator{Beta: beta}}, nil
}

// Gradient returns the softmax-weighted sum of qGrads. An empty input
// yields nil.
func (o SoftmaxOperator) Gradient(qs []float64, qGrads [][]float64) []float64 {
	if len(qs) == 0 {
		return nil
	}
	w := o.Weights(qs)
	out := make([]float64, len(qGrads[0]))
	for i, g := range qGrads {
		floats.AddScaled(out, w[i], g)
	}
	return out
}
