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
	"github.com/AleutianAI/oomdp/pkg/state"
)

// Action is a ground action. Two actions are the same action when their
// names are equal.
type Action interface {
	Name() string
}

// SimpleAction is an Action identified only by its name.
type SimpleAction string

// Name returns the action name.
func (a SimpleAction) Name() string { return string(a) }

// String returns the action name.
func (a SimpleAction) String() string { return string(a) }

// SameAction reports whether a and b name the same action.
func SameAction(a, b Action) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Name() == b.Name()
}

// ActionType produces the ground actions applicable in a state.
type ActionType interface {
	// TypeName identifies the action type.
	TypeName() string

	// AllApplicableActions returns the ground actions of this type that can
	// be executed in s. An empty result means the type does not apply.
	AllApplicableActions(s state.State) []Action
}

// UniversalActionType is an unparameterized action type applicable in every
// state.
type UniversalActionType struct {
	action Action
}

// NewUniversalActionType creates an action type whose single action is named
// name.
func NewUniversalActionType(name string) *UniversalActionType {
	return &UniversalActionType{action: SimpleAction(name)}
}

// TypeName returns the action name.
func (u *UniversalActionType) TypeName() string { return u.action.Name() }

// AllApplicableActions returns the single action.
func (u *UniversalActionType) AllApplicableActions(state.State) []Action {
	return []Action{u.action}
}

// Action returns the action this type produces.
func (u *UniversalActionType) Action() Action { return u.action }

// UniversalActionTypes builds one UniversalActionType per name.
func UniversalActionTypes(names ...string) []ActionType {
	out := make([]ActionType, len(names))
	for i, n := range names {
		out[i] = NewUniversalActionType(n)
	}
	return out
}

// ApplicableActions enumerates every ground action applicable in s, in the
// order of types.
func ApplicableActions(types []ActionType, s state.State) []Action {
	var out []Action
	for _, t := range types {
		out = append(out, t.AllApplicableActions(s)...)
	}
	return out
}

// Domain bundles the action types and model of a planning problem.
type Domain struct {
	ActionTypes []ActionType
	Model       SampleModel
}

// ApplicableActions enumerates the domain's actions applicable in s.
func (d *Domain) ApplicableActions(s state.State) []Action {
	return ApplicableActions(d.ActionTypes, s)
}
