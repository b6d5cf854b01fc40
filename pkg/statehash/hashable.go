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
	"fmt"
	"math"
	"reflect"
	"slices"

	"github.com/AleutianAI/oomdp/pkg/state"
)

// HashableState is a state paired with its precomputed hash.
//
// The zero value wraps no state; IsZero reports that case.
type HashableState struct {
	s    state.State
	code uint64
	f    *Factory
}

// State returns the wrapped state.
func (h HashableState) State() state.State { return h.s }

// Hash returns the precomputed hash.
func (h HashableState) Hash() uint64 { return h.code }

// IsZero reports whether h wraps no state.
func (h HashableState) IsZero() bool { return h.s == nil }

// String renders the wrapped state.
func (h HashableState) String() string {
	if h.s == nil {
		return "<nil>"
	}
	return fmt.Sprint(h.s)
}

// Equal reports whether h and o describe the same state under h's factory.
//
// Panics when the factory is identifier-independent and exactly one of the
// two states is an OO state.
func (h HashableState) Equal(o HashableState) bool {
	if h.s == nil || o.s == nil {
		return h.s == nil && o.s == nil
	}
	if h.code != o.code {
		return false
	}
	f := h.f
	if f == nil {
		f = o.f
	}
	return f.statesEqual(h.s, o.s)
}

// Equal compares two raw states without requiring them to be wrapped first.
func (f *Factory) Equal(a, b state.State) bool {
	return f.statesEqual(a, b)
}

func (f *Factory) statesEqual(a, b state.State) bool {
	if sameState(a, b) {
		return true
	}
	aoo, aIsOO := a.(state.OOState)
	boo, bIsOO := b.(state.OOState)

	switch {
	case aIsOO && bIsOO:
		if f.identifierIndependent {
			return f.ooEqualII(aoo, boo)
		}
		return f.ooEqualID(aoo, boo)
	case aIsOO != bIsOO:
		if f.identifierIndependent {
			panic(fmt.Sprintf("statehash: cannot compare OO state %T with non-OO state %T identifier-independently", a, b))
		}
		return f.varsEqual(a, b)
	default:
		return f.varsEqual(a, b)
	}
}

// ooEqualID matches objects by name.
func (f *Factory) ooEqualID(a, b state.OOState) bool {
	aObjs := f.unmaskedObjects(a)
	bObjs := f.unmaskedObjects(b)
	if len(aObjs) != len(bObjs) {
		return false
	}
	for _, ao := range aObjs {
		bo, ok := b.Object(ao.Name())
		if !ok || bo.ClassName() != ao.ClassName() {
			return false
		}
		if !f.varsEqual(ao, bo) {
			return false
		}
	}
	return true
}

// ooEqualII greedily pairs objects class by class, ignoring names.
func (f *Factory) ooEqualII(a, b state.OOState) bool {
	aObjs := f.unmaskedObjects(a)
	bObjs := f.unmaskedObjects(b)
	if len(aObjs) != len(bObjs) {
		return false
	}

	aByClass := groupByClass(aObjs)
	bByClass := groupByClass(bObjs)
	if len(aByClass) != len(bByClass) {
		return false
	}

	for class, as := range aByClass {
		bs := bByClass[class]
		if len(as) != len(bs) {
			return false
		}
		matched := make([]bool, len(bs))
		for _, ao := range as {
			found := false
			for j, bo := range bs {
				if matched[j] {
					continue
				}
				if f.varsEqual(ao, bo) {
					matched[j] = true
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}

// sameState reports whether a and b are the same comparable value, such as
// two references to one *state.MapState.
func sameState(a, b state.State) bool {
	ta := reflect.TypeOf(a)
	return ta == reflect.TypeOf(b) && ta.Comparable() && a == b
}

func groupByClass(objs []state.ObjectInstance) map[string][]state.ObjectInstance {
	out := make(map[string][]state.ObjectInstance)
	for _, o := range objs {
		out[o.ClassName()] = append(out[o.ClassName()], o)
	}
	return out
}

// varsEqual compares the unmasked variables of two states.
func (f *Factory) varsEqual(a, b state.State) bool {
	ak := f.unmaskedKeys(a)
	bk := f.unmaskedKeys(b)
	if !slices.Equal(ak, bk) {
		return false
	}
	for _, k := range ak {
		if !valuesEqual(a.Get(k), b.Get(k), f.multipleFor(k)) {
			return false
		}
	}
	return true
}

func (f *Factory) unmaskedKeys(s state.State) []string {
	keys := s.VariableKeys()
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if !f.variableMasked(k) {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out
}

// valuesEqual compares two variable values consistently with writeValue:
// NaN equals NaN, and real values are floored to mult when mult > 0.
func valuesEqual(a, b any, mult float64) bool {
	switch av := a.(type) {
	case float64:
		bv, ok := b.(float64)
		return ok && floatsEqual(av, bv, mult)
	case float32:
		bv, ok := b.(float32)
		return ok && floatsEqual(float64(av), float64(bv), mult)
	case []int:
		bv, ok := b.([]int)
		return ok && slices.Equal(av, bv)
	case []float64:
		bv, ok := b.([]float64)
		return ok && slices.EqualFunc(av, bv, func(x, y float64) bool { return floatsEqual(x, y, mult) })
	case []string:
		bv, ok := b.([]string)
		return ok && slices.Equal(av, bv)
	case []bool:
		bv, ok := b.([]bool)
		return ok && slices.Equal(av, bv)
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

func floatsEqual(x, y, mult float64) bool {
	x, y = discretize(x, mult), discretize(y, mult)
	return x == y || (math.IsNaN(x) && math.IsNaN(y))
}
