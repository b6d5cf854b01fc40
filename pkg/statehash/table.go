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
	"iter"
)

// Table maps HashableState keys to values, resolving hash collisions with
// HashableState.Equal.
//
// Entries keep their insertion index for the life of the table, so callers
// can keep parallel slices addressed by Index.
//
// Thread Safety: NOT safe for concurrent mutation. Concurrent reads with no
// writer are safe.
type Table[V any] struct {
	buckets map[uint64][]int
	keys    []HashableState
	values  []V
}

// NewTable creates an empty table with room for sizeHint entries.
func NewTable[V any](sizeHint int) *Table[V] {
	return &Table[V]{
		buckets: make(map[uint64][]int, sizeHint),
		keys:    make([]HashableState, 0, sizeHint),
		values:  make([]V, 0, sizeHint),
	}
}

// Len returns the number of entries.
func (t *Table[V]) Len() int { return len(t.keys) }

// Index returns the insertion index of k, or -1.
func (t *Table[V]) Index(k HashableState) int {
	for _, i := range t.buckets[k.Hash()] {
		if t.keys[i].Equal(k) {
			return i
		}
	}
	return -1
}

// Contains reports whether k has an entry.
func (t *Table[V]) Contains(k HashableState) bool { return t.Index(k) >= 0 }

// Get returns the value for k.
func (t *Table[V]) Get(k HashableState) (V, bool) {
	if i := t.Index(k); i >= 0 {
		return t.values[i], true
	}
	var zero V
	return zero, false
}

// Put stores v under k and returns the entry index. inserted is false when an
// equal key already existed; that entry's value is overwritten and its
// original key is retained.
func (t *Table[V]) Put(k HashableState, v V) (idx int, inserted bool) {
	if i := t.Index(k); i >= 0 {
		t.values[i] = v
		return i, false
	}
	idx = len(t.keys)
	t.keys = append(t.keys, k)
	t.values = append(t.values, v)
	t.buckets[k.Hash()] = append(t.buckets[k.Hash()], idx)
	return idx, true
}

// Key returns the key stored at index i.
func (t *Table[V]) Key(i int) HashableState { return t.keys[i] }

// Value returns the value stored at index i.
func (t *Table[V]) Value(i int) V { return t.values[i] }

// SetAt overwrites the value at index i.
func (t *Table[V]) SetAt(i int, v V) { t.values[i] = v }

// All iterates entries in insertion order.
func (t *Table[V]) All() iter.Seq2[HashableState, V] {
	return func(yield func(HashableState, V) bool) {
		for i, k := range t.keys {
			if !yield(k, t.values[i]) {
				return
			}
		}
	}
}

// Clear removes every entry.
func (t *Table[V]) Clear() {
	clear(t.buckets)
	t.keys = t.keys[:0]
	t.values = t.values[:0]
}
