// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package state

import (
	"fmt"
	"strings"
)

// MapState is a flat variable bag backed by a map.
//
// Thread Safety: Immutable after construction; safe for concurrent reads.
type MapState struct {
	vars map[string]any
	keys []string
}

// NewMapState creates a flat state holding a copy of vars.
func NewMapState(vars map[string]any) *MapState {
	cp := copyVars(vars)
	return &MapState{vars: cp, keys: sortedKeys(cp)}
}

// VariableKeys returns the variable keys in ascending order.
func (m *MapState) VariableKeys() []string {
	return append([]string(nil), m.keys...)
}

// Get returns the value stored under key.
func (m *MapState) Get(key string) any {
	return m.vars[key]
}

// Copy returns a deep copy of the state.
func (m *MapState) Copy() State {
	return NewMapState(m.vars)
}

// With returns a copy of the state with key set to value.
func (m *MapState) With(key string, value any) *MapState {
	cp := copyVars(m.vars)
	cp[key] = cloneValue(value)
	return &MapState{vars: cp, keys: sortedKeys(cp)}
}

// String renders the state as {k=v, ...}.
func (m *MapState) String() string {
	return renderVars(m.keys, m.vars)
}

func renderVars(keys []string, vars map[string]any) string {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%v", k, vars[k])
	}
	b.WriteByte('}')
	return b.String()
}
