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
	"strings"
)

// ObjectKeySeparator joins an object name and one of its variable keys in the
// flattened key space of an OOMapState ("agent0:x").
const ObjectKeySeparator = ":"

// -----------------------------------------------------------------------------
// Object
// -----------------------------------------------------------------------------

// Object is a generic ObjectInstance backed by a variable map.
//
// Thread Safety: Immutable after construction; safe for concurrent reads.
type Object struct {
	name  string
	class string
	vars  map[string]any
	keys  []string
}

// NewObject creates an object holding a copy of vars.
func NewObject(name, class string, vars map[string]any) *Object {
	cp := copyVars(vars)
	return &Object{name: name, class: class, vars: cp, keys: sortedKeys(cp)}
}

// Name returns the object's identifier.
func (o *Object) Name() string { return o.name }

// ClassName returns the object's class.
func (o *Object) ClassName() string { return o.class }

// VariableKeys returns the object's variable keys in ascending order.
func (o *Object) VariableKeys() []string { return append([]string(nil), o.keys...) }

// Get returns the value of an object variable.
func (o *Object) Get(key string) any { return o.vars[key] }

// Copy returns a deep copy of the object.
func (o *Object) Copy() State { return NewObject(o.name, o.class, o.vars) }

// CopyWithName returns a copy of the object under a new name.
func (o *Object) CopyWithName(name string) ObjectInstance {
	return NewObject(name, o.class, o.vars)
}

// With returns a copy of the object with key set to value.
func (o *Object) With(key string, value any) *Object {
	cp := copyVars(o.vars)
	cp[key] = cloneValue(value)
	return &Object{name: o.name, class: o.class, vars: cp, keys: sortedKeys(cp)}
}

// String renders the object as name(class){k=v, ...}.
func (o *Object) String() string {
	return o.name + "(" + o.class + ")" + renderVars(o.keys, o.vars)
}

// -----------------------------------------------------------------------------
// OOMapState
// -----------------------------------------------------------------------------

// OOMapState is a generic OOState holding an ordered list of objects.
//
// Object order is preserved from construction. When two objects share a name
// the later one wins.
//
// Thread Safety: Immutable after construction; safe for concurrent reads.
type OOMapState struct {
	objects []ObjectInstance
	byName  map[string]int
}

// NewOOMapState creates an OO state from objects.
func NewOOMapState(objects ...ObjectInstance) *OOMapState {
	s := &OOMapState{
		objects: make([]ObjectInstance, 0, len(objects)),
		byName:  make(map[string]int, len(objects)),
	}
	for _, o := range objects {
		s.put(o)
	}
	return s
}

func (s *OOMapState) put(o ObjectInstance) {
	if i, ok := s.byName[o.Name()]; ok {
		s.objects[i] = o
		return
	}
	s.byName[o.Name()] = len(s.objects)
	s.objects = append(s.objects, o)
}

// NumObjects returns the number of objects.
func (s *OOMapState) NumObjects() int { return len(s.objects) }

// Object returns the object named name.
func (s *OOMapState) Object(name string) (ObjectInstance, bool) {
	i, ok := s.byName[name]
	if !ok {
		return nil, false
	}
	return s.objects[i], true
}

// Objects returns the objects in construction order.
func (s *OOMapState) Objects() []ObjectInstance {
	return append([]ObjectInstance(nil), s.objects...)
}

// ObjectsOfClass returns the objects of the given class in construction order.
func (s *OOMapState) ObjectsOfClass(class string) []ObjectInstance {
	var out []ObjectInstance
	for _, o := range s.objects {
		if o.ClassName() == class {
			out = append(out, o)
		}
	}
	return out
}

// VariableKeys returns flattened "object:variable" keys for every object.
func (s *OOMapState) VariableKeys() []string {
	var keys []string
	for _, o := range s.objects {
		for _, k := range o.VariableKeys() {
			keys = append(keys, o.Name()+ObjectKeySeparator+k)
		}
	}
	return keys
}

// Get resolves a flattened "object:variable" key.
func (s *OOMapState) Get(key string) any {
	name, varKey, ok := strings.Cut(key, ObjectKeySeparator)
	if !ok {
		return nil
	}
	o, found := s.Object(name)
	if !found {
		return nil
	}
	return o.Get(varKey)
}

// Copy returns a deep copy of the state.
func (s *OOMapState) Copy() State {
	cp := make([]ObjectInstance, len(s.objects))
	for i, o := range s.objects {
		cp[i] = o.CopyWithName(o.Name())
	}
	return NewOOMapState(cp...)
}

// WithObject returns a copy of the state with o added, or replacing the
// object of the same name.
func (s *OOMapState) WithObject(o ObjectInstance) *OOMapState {
	next := NewOOMapState(s.objects...)
	next.put(o)
	return next
}

// WithoutObject returns a copy of the state without the named object.
func (s *OOMapState) WithoutObject(name string) *OOMapState {
	kept := make([]ObjectInstance, 0, len(s.objects))
	for _, o := range s.objects {
		if o.Name() != name {
			kept = append(kept, o)
		}
	}
	return NewOOMapState(kept...)
}

// Renamed returns a copy of the state where object oldName is called newName.
// The object keeps its position.
func (s *OOMapState) Renamed(oldName, newName string) *OOMapState {
	objs := make([]ObjectInstance, len(s.objects))
	for i, o := range s.objects {
		if o.Name() == oldName {
			objs[i] = o.CopyWithName(newName)
			continue
		}
		objs[i] = o
	}
	return NewOOMapState(objs...)
}

// String renders the objects in construction order.
func (s *OOMapState) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, o := range s.objects {
		if i > 0 {
			b.WriteString(" ")
		}
		if str, ok := o.(interface{ String() string }); ok {
			b.WriteString(str.String())
		} else {
			b.WriteString(o.Name())
		}
	}
	b.WriteByte(']')
	return b.String()
}
