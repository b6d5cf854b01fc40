// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package state defines the state contracts consumed by the planning core.
//
// A State is an opaque bag of named variables. An OOState is a State made of
// named, classed objects, each of which is itself a variable bag. The planning
// core only reads and copies states; it never mutates a state it receives.
//
// Two generic implementations are provided for callers and fixtures:
//
//	MapState    - flat variable bag
//	OOMapState  - object-oriented state built from Object values
//
// Both are copy-on-write: the With* methods return modified copies.
package state

import (
	"sort"
)

// State is a bag of named variables.
//
// VariableKeys must return the same keys for equal states. Implementations
// are expected to return keys in a deterministic order.
type State interface {
	// VariableKeys returns the keys of every variable in the state.
	VariableKeys() []string

	// Get returns the value stored under key, or nil if absent.
	Get(key string) any

	// Copy returns a copy that shares no mutable storage with the receiver.
	Copy() State
}

// ObjectInstance is a named, classed sub-object of an OOState.
type ObjectInstance interface {
	State

	// Name is the object's identifier inside its state.
	Name() string

	// ClassName is the object's class.
	ClassName() string

	// CopyWithName returns a copy of the object under a new name.
	CopyWithName(name string) ObjectInstance
}

// OOState is a state decomposed into named, classed objects.
type OOState interface {
	State

	// NumObjects returns the number of objects in the state.
	NumObjects() int

	// Object returns the object with the given name.
	Object(name string) (ObjectInstance, bool)

	// Objects returns every object in the state.
	Objects() []ObjectInstance

	// ObjectsOfClass returns the objects belonging to class.
	ObjectsOfClass(class string) []ObjectInstance
}

// ObjectsByClass groups the objects of s by class name.
func ObjectsByClass(s OOState) map[string][]ObjectInstance {
	out := make(map[string][]ObjectInstance)
	for _, o := range s.Objects() {
		out[o.ClassName()] = append(out[o.ClassName()], o)
	}
	return out
}

// ClassNames returns the sorted, de-duplicated class names present in s.
func ClassNames(s OOState) []string {
	seen := make(map[string]struct{})
	names := make([]string, 0)
	for _, o := range s.Objects() {
		if _, ok := seen[o.ClassName()]; ok {
			continue
		}
		seen[o.ClassName()] = struct{}{}
		names = append(names, o.ClassName())
	}
	sort.Strings(names)
	return names
}

// sortedKeys returns the keys of m in ascending order.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// copyVars makes a shallow copy of a variable map, cloning slice values so
// copies never alias each other.
func copyVars(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case []int:
		return append([]int(nil), t...)
	case []float64:
		return append([]float64(nil), t...)
	case []string:
		return append([]string(nil), t...)
	case []bool:
		return append([]bool(nil), t...)
	default:
		return v
	}
}
