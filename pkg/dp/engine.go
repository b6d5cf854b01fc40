// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dp implements tabular dynamic programming over OO-MDP states.
//
// Description:
//
//	An Engine owns a value table keyed by hashable states. Reachability
//	analysis discovers states breadth-first from a seed; backups update one
//	state's value from its successors; the Q surface derives action values
//	from the table on demand. Solvers (ValueIteration, PolicyEvaluation,
//	PolicyIteration) repeat backups over the whole table until the largest
//	change in a sweep drops below maxDelta or the sweep cap is reached.
//
// Conventions:
//
//	Terminal states have value 0 and are never expanded.
//	A state with no applicable actions has value 0.
//	Q(s,a) = Σ_{s'} P(s'|s,a) (r + γ V(s')).
//
// Thread Safety:
//
//	An Engine is NOT safe for concurrent planning. Read-only calls (Value,
//	Q, Qs) may run concurrently with each other while no planning call is in
//	progress. Operators and hashing factories are stateless and can be
//	shared across engines.
package dp

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/time/rate"

	"github.com/AleutianAI/oomdp/pkg/model"
	"github.com/AleutianAI/oomdp/pkg/state"
	"github.com/AleutianAI/oomdp/pkg/statehash"
	"github.com/AleutianAI/oomdp/pkg/valuefunction"
)

// Outcome is one enumerated transition of an action, resolved against the
// value table.
type Outcome struct {
	P         float64
	R         float64
	NextState state.State

	// Next is the value table index of NextState, or -1 when it is not in
	// the table.
	Next int

	// Terminal is true when NextState ends the episode.
	Terminal bool
}

// ActionOutcomes is the enumerated distribution of one applicable action.
type ActionOutcomes struct {
	Action   model.Action
	Outcomes []Outcome
}

// StateValue pairs a state with its current value.
type StateValue struct {
	State state.State
	Value float64
}

// Engine is the shared tabular DP core.
type Engine struct {
	planner string

	model       model.FullModel
	actionTypes []model.ActionType

	gamma         float64
	maxDelta      float64
	maxIterations int
	cacheTrans    bool

	hashing *statehash.Factory
	op      Operator
	vinit   valuefunction.ValueFunction

	// values and the slices below are addressed by table index.
	values   *statehash.Table[float64]
	expanded []bool
	terminal []bool
	cache    [][]ActionOutcomes

	status Status
	swept  bool

	logger   *slog.Logger
	tracer   *Tracer
	progress *rate.Sometimes
}

// NewEngine creates an engine for planner.
//
// Inputs:
//   - planner: Label used for logs, metrics, and error wrapping.
//   - m: Environment model; must support full enumeration.
//   - actionTypes: Action types enumerating applicable actions.
//   - cfg: Planner configuration; validated here.
//   - opts: Logger, value initializer, operator, and hashing overrides.
//
// Outputs:
//   - *Engine: Ready for reachability.
//   - error: ErrNilModel, model.ErrNotFullModel, or ErrInvalidConfig.
func NewEngine(planner string, m model.SampleModel, actionTypes []model.ActionType, cfg Config, opts ...Option) (*Engine, error) {
	if m == nil {
		return nil, plannerError(planner, "New", ErrNilModel)
	}
	fm, err := model.AsFull(m)
	if err != nil {
		return nil, plannerError(planner, "New", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, plannerError(planner, "New", err)
	}

	o := buildOptions(cfg, opts)
	e := &Engine{
		planner:       planner,
		model:         fm,
		actionTypes:   actionTypes,
		gamma:         cfg.Gamma,
		maxDelta:      cfg.MaxDelta,
		maxIterations: cfg.MaxIterations,
		cacheTrans:    cfg.CacheTransitions,
		hashing:       o.hashing,
		op:            o.op,
		vinit:         o.vinit,
		values:        statehash.NewTable[float64](64),
		logger:        o.logger.With(slog.String("component", planner)),
		tracer:        NewTracer(cfg.Observability.TracingEnabled),
		progress:      &rate.Sometimes{Interval: time.Second},
	}
	return e, nil
}

// -----------------------------------------------------------------------------
// Accessors
// -----------------------------------------------------------------------------

// Planner returns the planner label.
func (e *Engine) Planner() string { return e.planner }

// Model returns the enumerating model.
func (e *Engine) Model() model.FullModel { return e.model }

// ActionTypes returns the action types.
func (e *Engine) ActionTypes() []model.ActionType { return e.actionTypes }

// Gamma returns the discount factor.
func (e *Engine) Gamma() float64 { return e.gamma }

// HashingFactory returns the factory used for table keys.
func (e *Engine) HashingFactory() *statehash.Factory { return e.hashing }

// Operator returns the backup operator.
func (e *Engine) Operator() Operator { return e.op }

// SetOperator replaces the backup operator used by BellmanUpdate.
func (e *Engine) SetOperator(op Operator) { e.op = op }

// ValueInitializer returns the initializer for newly added states.
func (e *Engine) ValueInitializer() valuefunction.ValueFunction { return e.vinit }

// SetValueInitializer replaces the initializer for states added from now on.
func (e *Engine) SetValueInitializer(v valuefunction.ValueFunction) { e.vinit = v }

// Logger returns the planner's component logger.
func (e *Engine) Logger() *slog.Logger { return e.logger }

// Tracer returns the planner's tracer.
func (e *Engine) Tracer() *Tracer { return e.tracer }

// Status returns the lifecycle state.
func (e *Engine) Status() Status { return e.status }

// HasSwept reports whether at least one sweep ran since the last reset.
func (e *Engine) HasSwept() bool { return e.swept }

// -----------------------------------------------------------------------------
// Value table
// -----------------------------------------------------------------------------

// NumStates returns the number of states in the value table.
func (e *Engine) NumStates() int { return e.values.Len() }

// States returns every state in the value table in discovery order.
func (e *Engine) States() []state.State {
	out := make([]state.State, e.values.Len())
	for i := range out {
		out[i] = e.values.Key(i).State()
	}
	return out
}

// HasComputedValueFor reports whether s is in the value table.
func (e *Engine) HasComputedValueFor(s state.State) bool {
	return e.values.Contains(e.hashing.Hash(s))
}

// ValueTableSnapshot copies the value table in discovery order.
func (e *Engine) ValueTableSnapshot() []StateValue {
	out := make([]StateValue, 0, e.values.Len())
	for h, v := range e.values.All() {
		out = append(out, StateValue{State: h.State(), Value: v})
	}
	return out
}

// IndexOf returns the table index of s, or -1.
func (e *Engine) IndexOf(s state.State) int {
	return e.values.Index(e.hashing.Hash(s))
}

// StateAt returns the state stored at index i.
func (e *Engine) StateAt(i int) state.State { return e.values.Key(i).State() }

// ValueAt returns the value stored at index i.
func (e *Engine) ValueAt(i int) float64 { return e.values.Value(i) }

// SetValueAt overwrites the value stored at index i.
func (e *Engine) SetValueAt(i int, v float64) { e.values.SetAt(i, v) }

// TerminalAt reports whether the state at index i is terminal.
func (e *Engine) TerminalAt(i int) bool { return e.terminal[i] }

// Value returns V(s). Terminal states are 0; states outside the table get
// the initializer's value. Value never modifies the table.
func (e *Engine) Value(s state.State) float64 {
	if i := e.IndexOf(s); i >= 0 {
		if e.terminal[i] {
			return 0
		}
		return e.values.Value(i)
	}
	if e.model.Terminal(s) {
		return 0
	}
	return e.vinit.Value(s)
}

// NextValue returns V(s') for an outcome.
func (e *Engine) NextValue(o Outcome) float64 {
	if o.Terminal {
		return 0
	}
	if o.Next >= 0 {
		return e.values.Value(o.Next)
	}
	return e.Value(o.NextState)
}

// AddStatesToStateSpace adds states to the value table without expanding
// them. States already present are left untouched.
//
// Outputs:
//   - int: Number of states actually added.
func (e *Engine) AddStatesToStateSpace(states ...state.State) int {
	added := 0
	for _, s := range states {
		if _, inserted := e.insert(e.hashing.Hash(s)); inserted {
			added++
		}
	}
	if added > 0 {
		e.markReady()
		reachableStates.WithLabelValues(e.planner).Set(float64(e.values.Len()))
	}
	return added
}

// ResetSolver discards the value table, forcing full replanning.
func (e *Engine) ResetSolver() {
	e.values.Clear()
	e.expanded = e.expanded[:0]
	e.terminal = e.terminal[:0]
	e.cache = e.cache[:0]
	e.status = StatusUninitialized
	e.swept = false
	reachableStates.WithLabelValues(e.planner).Set(0)
}

// insert adds h with its initial value unless present.
func (e *Engine) insert(h statehash.HashableState) (int, bool) {
	if i := e.values.Index(h); i >= 0 {
		return i, false
	}
	s := h.State()
	term := e.model.Terminal(s)
	v := 0.0
	if !term {
		v = e.vinit.Value(s)
	}
	i, _ := e.values.Put(h, v)
	e.expanded = append(e.expanded, false)
	e.terminal = append(e.terminal, term)
	e.cache = append(e.cache, nil)
	return i, true
}

// markReady records that the table has states not yet covered by a sweep.
func (e *Engine) markReady() {
	e.status = StatusReady
}

// -----------------------------------------------------------------------------
// Transitions
// -----------------------------------------------------------------------------

// ApplicableActions enumerates the actions applicable in s.
func (e *Engine) ApplicableActions(s state.State) []model.Action {
	return model.ApplicableActions(e.actionTypes, s)
}

// Outcomes returns the enumerated transitions of every applicable action of
// the state at index i, using the transition cache when available.
func (e *Engine) Outcomes(i int) ([]ActionOutcomes, error) {
	if c := e.cache[i]; c != nil {
		return c, nil
	}
	return e.enumerate(e.values.Key(i).State())
}

// OutcomesFor enumerates the transitions of every applicable action in s.
func (e *Engine) OutcomesFor(s state.State) ([]ActionOutcomes, error) {
	if i := e.IndexOf(s); i >= 0 {
		return e.Outcomes(i)
	}
	return e.enumerate(s)
}

func (e *Engine) enumerate(s state.State) ([]ActionOutcomes, error) {
	actions := e.ApplicableActions(s)
	out := make([]ActionOutcomes, 0, len(actions))
	for _, a := range actions {
		ao, err := e.enumerateAction(s, a)
		if err != nil {
			return nil, err
		}
		out = append(out, ao)
	}
	return out, nil
}

func (e *Engine) enumerateAction(s state.State, a model.Action) (ActionOutcomes, error) {
	tps, err := e.model.Transitions(s, a)
	if err != nil {
		return ActionOutcomes{}, fmt.Errorf("transitions of %s: %w", a.Name(), err)
	}
	ao := ActionOutcomes{Action: a, Outcomes: make([]Outcome, len(tps))}
	for k, tp := range tps {
		sp := tp.EO.OP
		ao.Outcomes[k] = Outcome{
			P:         tp.P,
			R:         tp.EO.R,
			NextState: sp,
			Next:      e.IndexOf(sp),
			Terminal:  tp.EO.Terminated || e.model.Terminal(sp),
		}
	}
	return ao, nil
}

// qValue computes Σ p (r + γ V(s')) for one action.
func (e *Engine) qValue(ao ActionOutcomes) float64 {
	q := 0.0
	for _, o := range ao.Outcomes {
		q += o.P * (o.R + e.gamma*e.NextValue(o))
	}
	return q
}

func absDelta(a, b float64) float64 {
	return math.Abs(a - b)
}
