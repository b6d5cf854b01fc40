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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapState_CopyOnWrite(t *testing.T) {
	s := NewMapState(map[string]any{"x": 1, "y": 2, "path": []int{1, 2}})

	next := s.With("x", 5)

	assert.Equal(t, 1, s.Get("x"))
	assert.Equal(t, 5, next.Get("x"))
	assert.Equal(t, []string{"path", "x", "y"}, s.VariableKeys())

	cp := s.Copy().(*MapState)
	cp.vars["path"].([]int)[0] = 99
	assert.Equal(t, []int{1, 2}, s.Get("path"), "copy must not alias slices")
}

func TestOOMapState_Lookup(t *testing.T) {
	agent := NewObject("agent0", "agent", map[string]any{"x": 0, "y": 1})
	goal := NewObject("goal0", "location", map[string]any{"x": 3, "y": 3})
	s := NewOOMapState(agent, goal)

	require.Equal(t, 2, s.NumObjects())

	o, ok := s.Object("goal0")
	require.True(t, ok)
	assert.Equal(t, "location", o.ClassName())

	assert.Equal(t, 1, s.Get("agent0:y"))
	assert.Nil(t, s.Get("missing:y"))
	assert.Nil(t, s.Get("noseparator"))

	assert.Len(t, s.ObjectsOfClass("agent"), 1)
	assert.Equal(t, []string{"agent", "location"}, ClassNames(s))
	assert.Equal(t, []string{"agent0:x", "agent0:y", "goal0:x", "goal0:y"}, s.VariableKeys())
}

func TestOOMapState_DuplicateNameReplaces(t *testing.T) {
	a := NewObject("a", "c", map[string]any{"v": 1})
	b := NewObject("a", "c", map[string]any{"v": 2})

	s := NewOOMapState(a, b)

	assert.Equal(t, 1, s.NumObjects())
	assert.Equal(t, 2, s.Get("a:v"))
}

func TestOOMapState_Renamed(t *testing.T) {
	s := NewOOMapState(
		NewObject("b0", "block", map[string]any{"h": 1}),
		NewObject("b1", "block", map[string]any{"h": 2}),
	)

	r := s.Renamed("b0", "zz")

	_, ok := r.Object("b0")
	assert.False(t, ok)
	z, ok := r.Object("zz")
	require.True(t, ok)
	assert.Equal(t, 1, z.Get("h"))
	assert.Equal(t, "zz", r.Objects()[0].Name(), "renamed object keeps its position")

	_, ok = s.Object("b0")
	assert.True(t, ok, "original state is untouched")
}

func TestOOMapState_WithAndWithoutObject(t *testing.T) {
	s := NewOOMapState(NewObject("a", "c", map[string]any{"v": 1}))

	added := s.WithObject(NewObject("b", "c", map[string]any{"v": 2}))
	assert.Equal(t, 1, s.NumObjects())
	assert.Equal(t, 2, added.NumObjects())

	removed := added.WithoutObject("a")
	assert.Equal(t, 1, removed.NumObjects())
	_, ok := removed.Object("a")
	assert.False(t, ok)

	groups := ObjectsByClass(added)
	assert.Len(t, groups["c"], 2)
}
