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
	"encoding/binary"
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/AleutianAI/oomdp/pkg/state"
)

// Type tags written before each hashed value so different kinds with the
// same byte image do not collide trivially.
const (
	tagNil byte = iota
	tagInt
	tagUint
	tagFloat
	tagString
	tagBool
	tagInts
	tagFloats
	tagStrings
	tagBools
	tagOther
)

func (f *Factory) computeHash(s state.State) uint64 {
	if oo, ok := s.(state.OOState); ok {
		return f.ooHash(oo)
	}
	return f.flatHash(s, "", "")
}

// ooHash combines per-object hashes in an order-invariant way.
func (f *Factory) ooHash(s state.OOState) uint64 {
	objs := f.unmaskedObjects(s)
	codes := make([]uint64, len(objs))
	for i, o := range objs {
		name := ""
		if !f.identifierIndependent {
			name = o.Name()
		}
		codes[i] = f.flatHash(o, o.ClassName(), name)
	}
	slices.Sort(codes)

	d := xxhash.New()
	var buf [8]byte
	for _, c := range codes {
		binary.LittleEndian.PutUint64(buf[:], c)
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}

// flatHash hashes the unmasked variables of s in key order, salted with the
// class and name when given.
func (f *Factory) flatHash(s state.State, class, name string) uint64 {
	d := xxhash.New()
	if class != "" {
		_, _ = d.WriteString(class)
		_, _ = d.Write([]byte{0})
	}
	if name != "" {
		_, _ = d.WriteString(name)
		_, _ = d.Write([]byte{0})
	}

	keys := s.VariableKeys()
	if !sort.StringsAreSorted(keys) {
		keys = append([]string(nil), keys...)
		sort.Strings(keys)
	}
	for _, k := range keys {
		if f.variableMasked(k) {
			continue
		}
		_, _ = d.WriteString(k)
		_, _ = d.Write([]byte{0})
		writeValue(d, s.Get(k), f.multipleFor(k))
	}
	return d.Sum64()
}

// writeValue appends a canonical byte image of v to d. Real values are
// floored to mult first when mult > 0.
func writeValue(d *xxhash.Digest, v any, mult float64) {
	var buf [9]byte
	putU64 := func(tag byte, u uint64) {
		buf[0] = tag
		binary.LittleEndian.PutUint64(buf[1:], u)
		_, _ = d.Write(buf[:])
	}
	putFloat := func(tag byte, x float64) {
		x = discretize(x, mult)
		switch {
		case math.IsNaN(x):
			x = math.NaN() // one bit pattern for every NaN
		case x == 0:
			x = 0 // fold -0 into +0 so hash agrees with ==
		}
		putU64(tag, math.Float64bits(x))
	}

	switch t := v.(type) {
	case nil:
		_, _ = d.Write([]byte{tagNil})
	case int:
		putU64(tagInt, uint64(t))
	case int8:
		putU64(tagInt, uint64(t))
	case int16:
		putU64(tagInt, uint64(t))
	case int32:
		putU64(tagInt, uint64(t))
	case int64:
		putU64(tagInt, uint64(t))
	case uint:
		putU64(tagUint, uint64(t))
	case uint8:
		putU64(tagUint, uint64(t))
	case uint16:
		putU64(tagUint, uint64(t))
	case uint32:
		putU64(tagUint, uint64(t))
	case uint64:
		putU64(tagUint, t)
	case float32:
		putFloat(tagFloat, float64(t))
	case float64:
		putFloat(tagFloat, t)
	case string:
		_, _ = d.Write([]byte{tagString})
		_, _ = d.WriteString(t)
		_, _ = d.Write([]byte{0})
	case bool:
		b := uint64(0)
		if t {
			b = 1
		}
		putU64(tagBool, b)
	case []int:
		putU64(tagInts, uint64(len(t)))
		for _, x := range t {
			putU64(tagInt, uint64(x))
		}
	case []float64:
		putU64(tagFloats, uint64(len(t)))
		for _, x := range t {
			putFloat(tagFloat, x)
		}
	case []string:
		putU64(tagStrings, uint64(len(t)))
		for _, x := range t {
			_, _ = d.WriteString(x)
			_, _ = d.Write([]byte{0})
		}
	case []bool:
		putU64(tagBools, uint64(len(t)))
		for _, x := range t {
			b := uint64(0)
			if x {
				b = 1
			}
			putU64(tagBool, b)
		}
	case fmt.Stringer:
		_, _ = d.Write([]byte{tagOther})
		_, _ = fmt.Fprintf(d, "%T:%s", t, t.String())
	default:
		_, _ = d.Write([]byte{tagOther})
		_, _ = fmt.Fprintf(d, "%T:%v", t, t)
	}
}
