// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package differentiable implements value iteration that tracks the gradient
// of every state value with respect to the parameters of a reward function,
// and maximum-likelihood inverse reinforcement learning on top of it.
//
// Values are backed up with a softmax (Boltzmann) operator so that V is a
// smooth function of the reward parameters θ. Alongside each V(s) the planner
// stores ∂V(s)/∂θ and updates both in the same sweep:
//
//	Q(s,a)     = Σ_s' p(s'|s,a) · (r(s,a,s') + γ·V(s'))
//	∂Q(s,a)/∂θ = Σ_s' p(s'|s,a) · (∂r(s,a,s')/∂θ + γ·∂V(s')/∂θ)
//	V(s)       = softmax backup of Q(s,·)
//	∂V(s)/∂θ   = Σ_a softmax(β·Q(s,·))_a · ∂Q(s,a)/∂θ
//
// Terminal states have value 0 and a zero gradient.
package differentiable

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/AleutianAI/oomdp/pkg/dp"
	"github.com/AleutianAI/oomdp/pkg/model"
	"github.com/AleutianAI/oomdp/pkg/policy"
	"github.com/AleutianAI/oomdp/pkg/state"
	"github.com/AleutianAI/oomdp/pkg/valuefunction"
)

// PlannerDifferentiableVI is the planner label for metrics and logs.
const PlannerDifferentiableVI = "differentiable_vi"

// Span names.
const (
	SpanDifferentiableVI = "dp.differentiable_vi"
	SpanMLIRL            = "dp.mlirl"
)

var (
	// ErrNotDifferentiable is returned when a backup operator without a
	// gradient is installed.
	ErrNotDifferentiable = errors.New("operator is not differentiable")

	// ErrParameterMismatch is returned when a parameter or gradient vector
	// has the wrong length.
	ErrParameterMismatch = errors.New("parameter dimension mismatch")

	// ErrNoDemonstrations is returned when MLIRL is given no usable
	// demonstration steps.
	ErrNoDemonstrations = errors.New("no demonstrations")
)

// VI is value iteration with reward-parameter gradients.
//
// Description:
//
//	VI reuses dp.Engine for the state table, reachability, and sweep loop.
//	Rewards always come from the parameterized reward function rather than
//	from the model's outcomes, so changing θ and re-running RunPlanning
//	takes effect even when transitions are cached.
//
// Thread Safety: Not safe for concurrent use.
type VI struct {
	*dp.Engine

	rf         DifferentiableRF
	op         DifferentiableOperator
	dinit      ValueInitializer
	grads      [][]float64
	engineOpts []dp.Option
}

// Option configures a VI.
type Option func(*VI)

// WithOperator overrides the softmax operator built from the config.
func WithOperator(op DifferentiableOperator) Option {
	return func(vi *VI) { vi.op = op }
}

// WithValueInitializer sets the initial value and gradient of new states.
func WithValueInitializer(v ValueInitializer) Option {
	return func(vi *VI) { vi.dinit = v }
}

// WithEngineOptions forwards options to the underlying dp.Engine. Operator
// and value initializer options are overridden by the differentiable ones.
func WithEngineOptions(opts ...dp.Option) Option {
	return func(vi *VI) { vi.engineOpts = append(vi.engineOpts, opts...) }
}

// NewVI creates a differentiable value iteration planner.
//
// Description:
//
//	The backup operator is a softmax with cfg.SoftmaxBeta regardless of
//	cfg.Operator unless WithOperator supplies another.
//
// Inputs:
//   - m: Model with full transition enumeration.
//   - actionTypes: Action types to plan over.
//   - rf: Parameterized reward used for every backup.
//   - cfg: Planner configuration.
//
// Outputs:
//   - *VI: The planner.
//   - error: Non-nil if the engine cannot be built or rf is nil.
func NewVI(m model.SampleModel, actionTypes []model.ActionType, rf DifferentiableRF, cfg dp.Config, opts ...Option) (*VI, error) {
	if rf == nil {
		return nil, fmt.Errorf("%w: nil reward function", dp.ErrInvalidConfig)
	}
	vi := &VI{
		rf:    rf,
		dinit: ConstantInitializer{V: cfg.InitialValue, Dim: rf.NumParameters()},
	}
	for _, opt := range opts {
		opt(vi)
	}
	if vi.op == nil {
		op, err := NewSoftmaxOperator(cfg.SoftmaxBeta)
		if err != nil {
			return nil, err
		}
		vi.op = op
	}

	engineOpts := append(vi.engineOpts, dp.WithOperator(vi.op), dp.WithValueInitializer(vi.dinit))
	e, err := dp.NewEngine(PlannerDifferentiableVI, m, actionTypes, cfg, engineOpts...)
	if err != nil {
		return nil, err
	}
	vi.Engine = e
	return vi, nil
}

// RewardFunction returns the parameterized reward.
func (vi *VI) RewardFunction() DifferentiableRF { return vi.rf }

// DifferentiableOperator returns the differentiable backup operator.
func (vi *VI) DifferentiableOperator() DifferentiableOperator { return vi.op }

// SetOperator installs op if it implements DifferentiableOperator.
func (vi *VI) SetOperator(op dp.Operator) error {
	d, ok := op.(DifferentiableOperator)
	if !ok {
		return fmt.Errorf("%T: %w", op, ErrNotDifferentiable)
	}
	vi.op = d
	vi.Engine.SetOperator(d)
	return nil
}

// PlanFromState expands the reachable space from s and runs sweeps when new
// states were found or no sweep has run since the last reset.
func (vi *VI) PlanFromState(ctx context.Context, s state.State) (*dp.Result, error) {
	added, err := vi.PerformReachabilityFrom(ctx, s)
	if err != nil {
		return nil, err
	}
	if added == 0 && vi.HasSwept() {
		return &dp.Result{
			Planner:   vi.Planner(),
			NumStates: vi.NumStates(),
			Converged: vi.Status() == dp.StatusConverged,
			Status:    vi.Status(),
		}, nil
	}
	res, err := vi.RunPlanning(ctx)
	if res != nil {
		res.NewStates = added
	}
	return res, err
}

// RunPlanning sweeps the known states until both values and gradients
// change by less than the configured max delta.
func (vi *VI) RunPlanning(ctx context.Context) (*dp.Result, error) {
	vi.syncGradients()
	return vi.RunSweeps(ctx, SpanDifferentiableVI, vi.backupAt)
}

// ResetSolver discards values and gradients.
func (vi *VI) ResetSolver() {
	vi.Engine.ResetSolver()
	vi.grads = vi.grads[:0]
}

// ValueGradient returns ∂V(s)/∂θ. Terminal states and states outside the
// table fall back to zero and the initializer respectively.
func (vi *VI) ValueGradient(s state.State) []float64 {
	vi.syncGradients()
	if i := vi.IndexOf(s); i >= 0 {
		return append([]float64(nil), vi.grads[i]...)
	}
	if vi.Model().Terminal(s) {
		return make([]float64, vi.rf.NumParameters())
	}
	return vi.dinit.Gradient(s)
}

// Q returns Q(s,a) under the current reward parameters.
func (vi *VI) Q(s state.State, a model.Action) (valuefunction.QValue, error) {
	ao, err := vi.actionOutcomes(s, a)
	if err != nil {
		return valuefunction.QValue{}, err
	}
	q, _ := vi.qAndGradient(s, ao, false)
	return valuefunction.QValue{S: s, A: a, Q: q}, nil
}

// Qs returns Q(s,·) for every applicable action; nil for terminal states.
func (vi *VI) Qs(s state.State) ([]valuefunction.QValue, error) {
	if vi.Model().Terminal(s) {
		return nil, nil
	}
	aos, err := vi.OutcomesFor(s)
	if err != nil {
		return nil, err
	}
	out := make([]valuefunction.QValue, len(aos))
	for k, ao := range aos {
		q, _ := vi.qAndGradient(s, ao, false)
		out[k] = valuefunction.QValue{S: s, A: ao.Action, Q: q}
	}
	return out, nil
}

// QGradient returns ∂Q(s,a)/∂θ.
func (vi *VI) QGradient(s state.State, a model.Action) ([]float64, error) {
	vi.syncGradients()
	ao, err := vi.actionOutcomes(s, a)
	if err != nil {
		return nil, err
	}
	_, g := vi.qAndGradient(s, ao, true)
	return g, nil
}

// QsWithGradients returns Q(s,·) and ∂Q(s,·)/∂θ in applicable-action
// order. Terminal states yield nil slices.
func (vi *VI) QsWithGradients(s state.State) ([]valuefunction.QValue, [][]float64, error) {
	if vi.Model().Terminal(s) {
		return nil, nil, nil
	}
	vi.syncGradients()
	aos, err := vi.OutcomesFor(s)
	if err != nil {
		return nil, nil, err
	}
	qs := make([]valuefunction.QValue, len(aos))
	grads := make([][]float64, len(aos))
	for k, ao := range aos {
		q, g := vi.qAndGradient(s, ao, true)
		qs[k] = valuefunction.QValue{S: s, A: ao.Action, Q: q}
		grads[k] = g
	}
	return qs, grads, nil
}

// GreedyPolicy returns a greedy policy over the reward-parameterized Q.
func (vi *VI) GreedyPolicy() *policy.GreedyQ {
	return policy.NewGreedyQ(vi)
}

// BoltzmannPolicy returns a Boltzmann policy over Q with inverse
// temperature beta.
func (vi *VI) BoltzmannPolicy(beta float64) (*policy.Boltzmann, error) {
	if beta <= 0 {
		return nil, fmt.Errorf("%w: beta %v must be > 0", policy.ErrInvalidParameter, beta)
	}
	return policy.NewBoltzmann(vi, 1/beta)
}

func (vi *VI) actionOutcomes(s state.State, a model.Action) (dp.ActionOutcomes, error) {
	if vi.Model().Terminal(s) {
		return dp.ActionOutcomes{Action: a}, nil
	}
	return vi.ActionOutcomesFor(s, a)
}

// syncGradients grows the gradient table to match the value table.
func (vi *VI) syncGradients() {
	for i := len(vi.grads); i < vi.NumStates(); i++ {
		if vi.TerminalAt(i) {
			vi.grads = append(vi.grads, make([]float64, vi.rf.NumParameters()))
			continue
		}
		vi.grads = append(vi.grads, vi.dinit.Gradient(vi.StateAt(i)))
	}
}

// nextGradient returns ∂V(s')/∂θ for an outcome.
func (vi *VI) nextGradient(o dp.Outcome) []float64 {
	switch {
	case o.Terminal:
		return nil
	case o.Next >= 0 && o.Next < len(vi.grads):
		return vi.grads[o.Next]
	default:
		return vi.dinit.Gradient(o.NextState)
	}
}

// qAndGradient evaluates one action's Q and optionally its gradient.
func (vi *VI) qAndGradient(s state.State, ao dp.ActionOutcomes, withGrad bool) (float64, []float64) {
	gamma := vi.Gamma()
	var g []float64
	if withGrad {
		g = make([]float64, vi.rf.NumParameters())
	}
	q := 0.0
	for _, o := range ao.Outcomes {
		r := vi.rf.Reward(s, ao.Action, o.NextState)
		q += o.P * (r + gamma*vi.NextValue(o))
		if !withGrad {
			continue
		}
		floats.AddScaled(g, o.P, vi.rf.Gradient(s, ao.Action, o.NextState))
		if ng := vi.nextGradient(o); ng != nil {
			floats.AddScaled(g, o.P*gamma, ng)
		}
	}
	return q, g
}

// backupAt updates V and ∂V/∂θ for state i and returns the largest change
// across both.
func (vi *VI) backupAt(i int) (float64, error) {
	vi.syncGradients()
	oldV := vi.ValueAt(i)
	oldG := vi.grads[i]
	dim := vi.rf.NumParameters()

	if vi.TerminalAt(i) {
		vi.SetValueAt(i, 0)
		vi.grads[i] = make([]float64, dim)
		return max(math.Abs(oldV), maxAbs(oldG)), nil
	}

	aos, err := vi.Outcomes(i)
	if err != nil {
		return 0, err
	}
	if len(aos) == 0 {
		vi.SetValueAt(i, 0)
		vi.grads[i] = make([]float64, dim)
		return max(math.Abs(oldV), maxAbs(oldG)), nil
	}

	s := vi.StateAt(i)
	qs := make([]float64, len(aos))
	qGrads := make([][]float64, len(aos))
	for k, ao := range aos {
		qs[k], qGrads[k] = vi.qAndGradient(s, ao, true)
	}
	v := vi.op.Apply(qs)
	g := vi.op.Gradient(qs, qGrads)
	if len(g) != dim {
		return 0, fmt.Errorf("%w: operator gradient has %d entries, want %d", ErrParameterMismatch, len(g), dim)
	}

	vi.SetValueAt(i, v)
	vi.grads[i] = g
	return max(math.Abs(v-oldV), maxAbsDiff(g, oldG)), nil
}

func maxAbs(xs []float64) float64 {
	m := 0.0
	for _, x := range xs {
		m = max(m, math.Abs(x))
	}
	return m
}

func maxAbsDiff(a, b []float64) float64 {
	m := 0.0
	for i := range a {
		var bi float64
		if i < len(b) {
			bi = b[i]
		}
		m = max(m, math.Abs(a[i]-bi))
	}
	return m
}
