// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package gridworld is a bounded N×M OO grid world used as a planning
// fixture.
//
// States hold one "agent" object and one or more "location" objects, each
// with integer x and y. The agent moves north, south, east, or west; moves
// into walls or off the grid leave it in place. With slip enabled the
// intended direction succeeds with SuccessProb and each other direction
// shares the remainder equally. Every step costs 1 and the episode ends when
// the agent stands on a location.
package gridworld

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/AleutianAI/oomdp/pkg/model"
	"github.com/AleutianAI/oomdp/pkg/state"
)

// Class and attribute names.
const (
	ClassAgent    = "agent"
	ClassLocation = "location"
	AttX          = "x"
	AttY          = "y"
)

// Action names.
const (
	ActionNorth = "north"
	ActionSouth = "south"
	ActionEast  = "east"
	ActionWest  = "west"
)

var (
	// ErrNoAgent is returned for states without an agent object.
	ErrNoAgent = errors.New("state has no agent object")

	// ErrUnknownAction is returned for actions outside the four moves.
	ErrUnknownAction = errors.New("unknown grid world action")
)

var directions = []string{ActionNorth, ActionSouth, ActionEast, ActionWest}

var deltas = map[string][2]int{
	ActionNorth: {0, 1},
	ActionSouth: {0, -1},
	ActionEast:  {1, 0},
	ActionWest:  {-1, 0},
}

// GridWorld is the dynamics of the grid.
//
// Thread Safety: Safe for concurrent reads after configuration.
type GridWorld struct {
	Width       int
	Height      int
	SuccessProb float64
	walls       map[[2]int]struct{}
}

// New creates a deterministic width×height grid with no walls.
func New(width, height int) *GridWorld {
	return &GridWorld{Width: width, Height: height, SuccessProb: 1, walls: map[[2]int]struct{}{}}
}

// WithSlip sets the probability that the intended move is executed.
func (g *GridWorld) WithSlip(successProb float64) *GridWorld {
	g.SuccessProb = successProb
	return g
}

// AddWall blocks cell (x, y).
func (g *GridWorld) AddWall(x, y int) *GridWorld {
	g.walls[[2]int{x, y}] = struct{}{}
	return g
}

// Blocked reports whether (x, y) is outside the grid or a wall.
func (g *GridWorld) Blocked(x, y int) bool {
	if x < 0 || y < 0 || x >= g.Width || y >= g.Height {
		return true
	}
	_, wall := g.walls[[2]int{x, y}]
	return wall
}

// NumCells returns Width*Height.
func (g *GridWorld) NumCells() int { return g.Width * g.Height }

// ActionTypes returns the four move action types.
func (g *GridWorld) ActionTypes() []model.ActionType {
	return model.UniversalActionTypes(directions...)
}

// State creates a state with the agent at (ax, ay) and one goal location at
// (gx, gy).
func State(ax, ay, gx, gy int) *state.OOMapState {
	return state.NewOOMapState(
		state.NewObject("agent0", ClassAgent, map[string]any{AttX: ax, AttY: ay}),
		state.NewObject("location0", ClassLocation, map[string]any{AttX: gx, AttY: gy}),
	)
}

// AgentPosition returns the agent's coordinates.
func AgentPosition(s state.State) (int, int, error) {
	oo, ok := s.(state.OOState)
	if !ok {
		return 0, 0, fmt.Errorf("%T: %w", s, ErrNoAgent)
	}
	agents := oo.ObjectsOfClass(ClassAgent)
	if len(agents) == 0 {
		return 0, 0, ErrNoAgent
	}
	a := agents[0]
	x, xok := a.Get(AttX).(int)
	y, yok := a.Get(AttY).(int)
	if !xok || !yok {
		return 0, 0, fmt.Errorf("agent coordinates are not ints: %w", ErrNoAgent)
	}
	return x, y, nil
}

// AtLocation reports whether the agent stands on any location object.
func AtLocation(s state.State) bool {
	x, y, err := AgentPosition(s)
	if err != nil {
		return false
	}
	for _, l := range s.(state.OOState).ObjectsOfClass(ClassLocation) {
		if l.Get(AttX) == x && l.Get(AttY) == y {
			return true
		}
	}
	return false
}

// moveAgent returns a copy of s with the agent at (x, y).
func moveAgent(s state.State, x, y int) state.State {
	oo, ok := s.(*state.OOMapState)
	if !ok {
		oo = state.NewOOMapState(s.(state.OOState).Objects()...)
	}
	agent := oo.ObjectsOfClass(ClassAgent)[0]
	moved := state.NewObject(agent.Name(), ClassAgent, map[string]any{AttX: x, AttY: y})
	return oo.WithObject(moved)
}

// outcomeDistribution maps each direction actually executed to its
// probability when a is intended.
func (g *GridWorld) outcomeDistribution(a model.Action) (map[string]float64, error) {
	if _, ok := deltas[a.Name()]; !ok {
		return nil, fmt.Errorf("%q: %w", a.Name(), ErrUnknownAction)
	}
	dist := map[string]float64{a.Name(): g.SuccessProb}
	if g.SuccessProb < 1 {
		slip := (1 - g.SuccessProb) / float64(len(directions)-1)
		for _, d := range directions {
			if d != a.Name() {
				dist[d] = slip
			}
		}
	}
	return dist, nil
}

func (g *GridWorld) destination(x, y int, dir string) (int, int) {
	d := deltas[dir]
	nx, ny := x+d[0], y+d[1]
	if g.Blocked(nx, ny) {
		return x, y
	}
	return nx, ny
}

// StateTransitions enumerates next states, merging directions that end in
// the same cell.
func (g *GridWorld) StateTransitions(s state.State, a model.Action) ([]model.StateTransitionProb, error) {
	x, y, err := AgentPosition(s)
	if err != nil {
		return nil, err
	}
	dist, err := g.outcomeDistribution(a)
	if err != nil {
		return nil, err
	}

	var order [][2]int
	mass := map[[2]int]float64{}
	for _, dir := range directions {
		p, ok := dist[dir]
		if !ok || p == 0 {
			continue
		}
		nx, ny := g.destination(x, y, dir)
		cell := [2]int{nx, ny}
		if _, seen := mass[cell]; !seen {
			order = append(order, cell)
		}
		mass[cell] += p
	}

	out := make([]model.StateTransitionProb, 0, len(order))
	for _, c := range order {
		out = append(out, model.StateTransitionProb{P: mass[c], S: moveAgent(s, c[0], c[1])})
	}
	return out, nil
}

// SampleState draws a next state.
func (g *GridWorld) SampleState(rng *rand.Rand, s state.State, a model.Action) (state.State, error) {
	x, y, err := AgentPosition(s)
	if err != nil {
		return nil, err
	}
	dist, err := g.outcomeDistribution(a)
	if err != nil {
		return nil, err
	}
	roll := rng.Float64()
	sum := 0.0
	chosen := a.Name()
	for _, dir := range directions {
		sum += dist[dir]
		if roll < sum {
			chosen = dir
			break
		}
	}
	nx, ny := g.destination(x, y, chosen)
	return moveAgent(s, nx, ny), nil
}

// StepCost is the reward of every transition.
const StepCost = -1.0

// Model composes the dynamics with a -1 step reward and termination on any
// location.
func (g *GridWorld) Model() *model.FactoredModel {
	return model.NewFactoredModel(g,
		model.RewardFunc(func(state.State, model.Action, state.State) float64 { return StepCost }),
		model.TerminalFunc(AtLocation))
}

// Domain bundles the action types and model.
func (g *GridWorld) Domain() *model.Domain {
	return &model.Domain{ActionTypes: g.ActionTypes(), Model: g.Model()}
}

// CellFeatures returns a one-hot vector over grid cells marking the agent's
// cell. It returns a zero vector for states without an agent.
func (g *GridWorld) CellFeatures(s state.State) []float64 {
	phi := make([]float64, g.NumCells())
	x, y, err := AgentPosition(s)
	if err != nil || g.Blocked(x, y) {
		return phi
	}
	phi[y*g.Width+x] = 1
	return phi
}
