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
	"math"

	"gonum.org/v1/gonum/floats"
)

// Operator reduces the action values of one state to a state value.
//
// Operators are stateless and safe to share across planners and goroutines.
// Applying an operator to an empty slice yields 0.
type Operator interface {
	Apply(qs []float64) float64
}

// MaxOperator is the optimality backup V(s) = max_a Q(s,a).
type MaxOperator struct{}

// Apply returns the largest value.
func (MaxOperator) Apply(qs []float64) float64 {
	i := Argmax(qs)
	if i < 0 {
		return 0
	}
	return qs[i]
}

// Argmax returns the first index holding the maximum of qs, or -1 when qs is
// empty.
func Argmax(qs []float64) int {
	best := -1
	for i, q := range qs {
		if best < 0 || q > qs[best] {
			best = i
		}
	}
	return best
}

// ExpectationOperator is the fixed-policy backup V(s) = Σ_a π(a|s) Q(s,a).
// Probs[i] is the probability of the action whose value is qs[i]; missing
// entries count as zero.
type ExpectationOperator struct {
	Probs []float64
}

// Apply returns the probability-weighted sum.
func (o ExpectationOperator) Apply(qs []float64) float64 {
	n := min(len(qs), len(o.Probs))
	if n == 0 {
		return 0
	}
	return floats.Dot(o.Probs[:n], qs[:n])
}

// SoftmaxOperator is the Boltzmann backup
//
//	V(s) = (1/β) log Σ_a exp(β Q(s,a))
//
// evaluated with a max shift so large β·Q does not overflow.
type SoftmaxOperator struct {
	Beta float64
}

// Apply returns the scaled log-sum-exp.
func (o SoftmaxOperator) Apply(qs []float64) float64 {
	if len(qs) == 0 {
		return 0
	}
	scaled := make([]float64, len(qs))
	floats.ScaleTo(scaled, o.Beta, qs)
	return floats.LogSumExp(scaled) / o.Beta
}

// Weights returns softmax(β·qs), the probabilities the gradient of Apply
// assigns to each action.
func (o SoftmaxOperator) Weights(qs []float64) []float64 {
	if len(qs) == 0 {
		return nil
	}
	w := make([]float64, len(qs))
	floats.ScaleTo(w, o.Beta, qs)
	lse := floats.LogSumExp(w)
	for i := range w {
		w[i] = math.Exp(w[i] - lse)
	}
	return w
}
