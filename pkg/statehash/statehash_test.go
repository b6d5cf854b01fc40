// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package statehash

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/oomdp/pkg/state"
)

func blocks(names ...string) *state.OOMapState {
	objs := make([]state.ObjectInstance, 0, len(names))
	for i, n := range names {
		objs = append(objs, state.NewObject(n, "block", map[string]any{"height": i}))
	}
	return state.NewOOMapState(objs...)
}

// swapped returns a state with the same contents as blocks("a", "b") but
// with the object names exchanged.
func swapped() *state.OOMapState {
	return state.NewOOMapState(
		state.NewObject("b", "block", map[string]any{"height": 0}),
		state.NewObject("a", "block", map[string]any{"height": 1}),
	)
}

func TestFactory_IdentifierIndependentIgnoresNames(t *testing.T) {
	f := NewSimpleFactory(true)

	a := f.Hash(blocks("a", "b"))
	b := f.Hash(swapped())
	c := f.Hash(blocks("x", "y"))

	assert.Equal(t, a.Hash(), b.Hash())
	assert.True(t, a.Equal(b))
	assert.True(t, a.Equal(c))
	assert.True(t, c.Equal(a))
}

func TestFactory_IdentifierIndependentIgnoresOrder(t *testing.T) {
	f := NewSimpleFactory(true)

	s1 := state.NewOOMapState(
		state.NewObject("agent", "agent", map[string]any{"x": 1}),
		state.NewObject("goal", "location", map[string]any{"x": 4}),
	)
	s2 := state.NewOOMapState(
		state.NewObject("goal", "location", map[string]any{"x": 4}),
		state.NewObject("agent", "agent", map[string]any{"x": 1}),
	)

	assert.True(t, f.Hash(s1).Equal(f.Hash(s2)))
}

func TestFactory_IdentifierDependentUsesNames(t *testing.T) {
	f := NewSimpleFactory(false)

	a := f.Hash(blocks("a", "b"))
	b := f.Hash(swapped())
	same := f.Hash(blocks("a", "b"))

	assert.False(t, a.Equal(b))
	assert.True(t, a.Equal(same))
	assert.Equal(t, a.Hash(), same.Hash())
}

func TestFactory_ClassMatters(t *testing.T) {
	f := NewSimpleFactory(true)

	s1 := state.NewOOMapState(state.NewObject("o", "block", map[string]any{"x": 1}))
	s2 := state.NewOOMapState(state.NewObject("o", "ball", map[string]any{"x": 1}))

	assert.False(t, f.Hash(s1).Equal(f.Hash(s2)))
}

func TestFactory_DifferentValuesNotEqual(t *testing.T) {
	for _, ii := range []bool{true, false} {
		f := NewSimpleFactory(ii)
		s1 := state.NewMapState(map[string]any{"x": 1, "y": 2})
		s2 := state.NewMapState(map[string]any{"x": 1, "y": 3})
		assert.False(t, f.Hash(s1).Equal(f.Hash(s2)), "ii=%v", ii)
	}
}

func TestFactory_FlatStateEquality(t *testing.T) {
	f := NewSimpleFactory(false)

	s1 := state.NewMapState(map[string]any{"x": 1, "path": []int{1, 2}, "w": -0.0})
	s2 := state.NewMapState(map[string]any{"x": 1, "path": []int{1, 2}, "w": 0.0})

	h1, h2 := f.Hash(s1), f.Hash(s2)
	assert.Equal(t, h1.Hash(), h2.Hash())
	assert.True(t, h1.Equal(h2))

	s3 := state.NewMapState(map[string]any{"x": 1, "path": []int{2, 1}, "w": 0.0})
	assert.False(t, h1.Equal(f.Hash(s3)))
}

func TestFactory_TypedValuesDistinct(t *testing.T) {
	f := NewSimpleFactory(false)

	s1 := state.NewMapState(map[string]any{"x": 1})
	s2 := state.NewMapState(map[string]any{"x": "1"})

	assert.False(t, f.Hash(s1).Equal(f.Hash(s2)))
}

func TestMaskedFactory_IgnoresMaskedVariables(t *testing.T) {
	f := NewMaskedFactory(false, []string{"visits"}, nil)

	s1 := state.NewMapState(map[string]any{"x": 1, "visits": 3})
	s2 := state.NewMapState(map[string]any{"x": 1, "visits": 99})
	s3 := state.NewMapState(map[string]any{"x": 2, "visits": 3})

	h1, h2 := f.Hash(s1), f.Hash(s2)
	assert.Equal(t, h1.Hash(), h2.Hash())
	assert.True(t, h1.Equal(h2))
	assert.False(t, h1.Equal(f.Hash(s3)))
}

func TestMaskedFactory_IgnoresMaskedObjectVariables(t *testing.T) {
	f := NewMaskedFactory(true, []string{"color"}, nil)

	s1 := state.NewOOMapState(state.NewObject("a", "block", map[string]any{"h": 1, "color": "red"}))
	s2 := state.NewOOMapState(state.NewObject("z", "block", map[string]any{"h": 1, "color": "blue"}))

	assert.True(t, f.Hash(s1).Equal(f.Hash(s2)))
}

func TestMaskedFactory_IgnoresMaskedClasses(t *testing.T) {
	for _, ii := range []bool{true, false} {
		f := NewMaskedFactory(ii, nil, []string{"decoration"})

		base := state.NewOOMapState(
			state.NewObject("agent", "agent", map[string]any{"x": 0}),
			state.NewObject("d0", "decoration", map[string]any{"x": 5}),
		)
		moved := state.NewOOMapState(
			state.NewObject("agent", "agent", map[string]any{"x": 0}),
			state.NewObject("d0", "decoration", map[string]any{"x": 9}),
			state.NewObject("d1", "decoration", map[string]any{"x": 1}),
		)
		agentMoved := state.NewOOMapState(
			state.NewObject("agent", "agent", map[string]any{"x": 1}),
			state.NewObject("d0", "decoration", map[string]any{"x": 5}),
		)

		hb := f.Hash(base)
		assert.Equal(t, hb.Hash(), f.Hash(moved).Hash(), "ii=%v", ii)
		assert.True(t, hb.Equal(f.Hash(moved)), "ii=%v", ii)
		assert.False(t, hb.Equal(f.Hash(agentMoved)), "ii=%v", ii)
	}
}

func TestFactory_NaNValuesEqual(t *testing.T) {
	f := NewSimpleFactory(false)

	s := state.NewMapState(map[string]any{"x": math.NaN(), "v": []float64{1, math.NaN()}})
	h := f.Hash(s)
	assert.True(t, h.Equal(h))

	other := f.Hash(state.NewMapState(map[string]any{"x": math.NaN(), "v": []float64{1, math.NaN()}}))
	assert.Equal(t, h.Hash(), other.Hash())
	assert.True(t, h.Equal(other))

	assert.False(t, h.Equal(f.Hash(state.NewMapState(map[string]any{"x": 0.0, "v": []float64{1, math.NaN()}}))))

	tbl := NewTable[float64](2)
	_, inserted := tbl.Put(h, 1)
	require.True(t, inserted)
	_, inserted = tbl.Put(h, 2)
	assert.False(t, inserted)
	_, inserted = tbl.Put(other, 3)
	assert.False(t, inserted)
	assert.Equal(t, 1, tbl.Len())
}

func TestDiscretizingFactory_FloorsToDefaultMultiple(t *testing.T) {
	f := NewDiscretizingFactory(false, 0.5, nil)

	s1 := state.NewMapState(map[string]any{"x": 9.73, "n": 3})
	s2 := state.NewMapState(map[string]any{"x": 9.51, "n": 3})
	s3 := state.NewMapState(map[string]any{"x": 10.01, "n": 3})
	s4 := state.NewMapState(map[string]any{"x": 9.6, "n": 4})

	h1, h2 := f.Hash(s1), f.Hash(s2)
	assert.Equal(t, h1.Hash(), h2.Hash())
	assert.True(t, h1.Equal(h2))
	assert.False(t, h1.Equal(f.Hash(s3)))
	assert.False(t, h1.Equal(f.Hash(s4)), "integers are not discretized")

	neg1 := f.Hash(state.NewMapState(map[string]any{"x": -0.2, "n": 0}))
	neg2 := f.Hash(state.NewMapState(map[string]any{"x": -0.4, "n": 0}))
	zero := f.Hash(state.NewMapState(map[string]any{"x": 0.2, "n": 0}))
	assert.True(t, neg1.Equal(neg2))
	assert.False(t, neg1.Equal(zero), "flooring rounds negatives down")
}

func TestDiscretizingFactory_PerKeyMultiples(t *testing.T) {
	f := NewDiscretizingFactory(true, 1, map[string]float64{"x": 10, "exact": 0})

	obj := func(name string, x, y, exact float64, v []float64) *state.OOMapState {
		return state.NewOOMapState(state.NewObject(name, "agent",
			map[string]any{"x": x, "y": y, "exact": exact, "v": v}))
	}
	a := f.Hash(obj("a", 12, 3.2, 0.25, []float64{1.1, 2.9}))
	b := f.Hash(obj("b", 19.9, 3.9, 0.25, []float64{1.8, 2.0}))

	assert.Equal(t, a.Hash(), b.Hash())
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(f.Hash(obj("a", 20, 3.2, 0.25, []float64{1.1, 2.9}))))
	assert.False(t, a.Equal(f.Hash(obj("a", 12, 3.2, 0.26, []float64{1.1, 2.9}))), "a zero multiple disables flooring")
	assert.False(t, a.Equal(f.Hash(obj("a", 12, 3.2, 0.25, []float64{1.1, 3.0}))))
}

func TestDiscretizingFactory_WithMasks(t *testing.T) {
	f := NewFactory(Config{
		MaskedVariables: []string{"t"},
		Discretize:      DiscretizeConfig{DefaultMultiple: 0.1},
	})
	s1 := state.NewMapState(map[string]any{"x": 0.51, "t": 1})
	s2 := state.NewMapState(map[string]any{"x": 0.55, "t": 2})
	assert.True(t, f.Hash(s1).Equal(f.Hash(s2)))
}

func TestFactory_IdentifierIndependentGreedyMatching(t *testing.T) {
	f := NewSimpleFactory(true)

	// Two identical blocks must each find a distinct partner.
	s1 := state.NewOOMapState(
		state.NewObject("a", "block", map[string]any{"h": 1}),
		state.NewObject("b", "block", map[string]any{"h": 1}),
	)
	s2 := state.NewOOMapState(
		state.NewObject("c", "block", map[string]any{"h": 1}),
		state.NewObject("d", "block", map[string]any{"h": 2}),
	)

	assert.False(t, f.Equal(s1, s2))
	assert.False(t, f.Equal(s2, s1))
}

func TestFactory_MixedOOAndFlatPanicsWhenIdentifierIndependent(t *testing.T) {
	f := NewSimpleFactory(true)

	oo := blocks("a")
	flat := state.NewMapState(map[string]any{"a:height": 0})

	assert.Panics(t, func() { f.Equal(oo, flat) })
}

func TestHashableState_Zero(t *testing.T) {
	var z HashableState
	f := NewSimpleFactory(false)

	assert.True(t, z.IsZero())
	assert.True(t, z.Equal(HashableState{}))
	assert.False(t, z.Equal(f.Hash(state.NewMapState(nil))))
	assert.Equal(t, "<nil>", z.String())
}

func TestTable_PutGet(t *testing.T) {
	f := NewSimpleFactory(true)
	tbl := NewTable[float64](4)

	idx, inserted := tbl.Put(f.Hash(blocks("a", "b")), 1.5)
	require.True(t, inserted)
	assert.Equal(t, 0, idx)

	// Renamed state collapses onto the same entry.
	idx, inserted = tbl.Put(f.Hash(swapped()), 2.5)
	assert.False(t, inserted)
	assert.Equal(t, 0, idx)
	assert.Equal(t, 1, tbl.Len())

	v, ok := tbl.Get(f.Hash(blocks("p", "q")))
	require.True(t, ok)
	assert.Equal(t, 2.5, v)

	_, ok = tbl.Get(f.Hash(blocks("a")))
	assert.False(t, ok)
	assert.Equal(t, -1, tbl.Index(f.Hash(blocks("a"))))

	idx, inserted = tbl.Put(f.Hash(blocks("a")), 7)
	assert.True(t, inserted)
	assert.Equal(t, 1, idx)
	assert.Equal(t, 7.0, tbl.Value(1))

	tbl.SetAt(1, 8)
	assert.Equal(t, 8.0, tbl.Value(1))
	assert.True(t, tbl.Key(1).Equal(f.Hash(blocks("z"))))
}

func TestTable_AllAndClear(t *testing.T) {
	f := NewSimpleFactory(false)
	tbl := NewTable[int](0)

	for i := 0; i < 5; i++ {
		tbl.Put(f.Hash(state.NewMapState(map[string]any{"i": i})), i*10)
	}

	var got []int
	for _, v := range tbl.All() {
		got = append(got, v)
	}
	assert.Equal(t, []int{0, 10, 20, 30, 40}, got)

	for range tbl.All() {
		break
	}

	tbl.Clear()
	assert.Equal(t, 0, tbl.Len())
	assert.False(t, tbl.Contains(f.Hash(state.NewMapState(map[string]any{"i": 0}))))
}
