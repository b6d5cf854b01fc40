// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package statehash gives states a stable identity usable as a table key.
//
// Description:
//
//	A Factory wraps raw states into HashableState values carrying a
//	precomputed 64-bit hash and an equality test. Two modes exist:
//
//	  Identifier-dependent    variable keys and object names are used literally.
//	  Identifier-independent  OO states compare equal under any renaming of
//	                          their objects.
//
//	Either mode can mask variable keys or whole object classes; masked data
//	never influences hash or equality. Either mode can also floor real
//	values to a step (see DiscretizeConfig) so nearby continuous states
//	share one table entry. NaN values compare equal to each other.
//
// Identifier-independent hashing:
//
//	object hash  = xxhash(class, sorted unmasked (key, value) pairs)
//	state hash   = xxhash(sorted object hashes)
//
//	Sorting the per-object hashes makes the aggregate invariant to object
//	order and names.
//
// Identifier-independent equality:
//
//	For each object class, every object of state A is greedily paired with
//	the first not-yet-matched object of the same class in state B whose
//	unmasked variables are equal. Any unmatched object makes the states
//	unequal.
//
// Invariant: a.Equal(b) implies a.Hash() == b.Hash() for states hashed by the
// same Factory.
//
// Thread Safety: Factory is immutable after construction and safe to share
// across goroutines and planners.
package statehash

import (
	"math"

	"github.com/AleutianAI/oomdp/pkg/state"
)

// Config selects the hashing mode and masks.
type Config struct {
	// IdentifierIndependent makes OO states equal under object renaming.
	IdentifierIndependent bool `json:"identifier_independent" yaml:"identifier_independent"`

	// MaskedVariables are variable keys excluded from hash and equality.
	// For OO states they match object variable keys.
	MaskedVariables []string `json:"masked_variables" yaml:"masked_variables"`

	// MaskedClasses are object classes excluded from hash and equality.
	MaskedClasses []string `json:"masked_classes" yaml:"masked_classes"`

	// Discretize floors real values before hashing and equality.
	Discretize DiscretizeConfig `json:"discretize" yaml:"discretize"`
}

// DiscretizeConfig floors float32 and float64 values, including the
// elements of []float64 values, to the greatest multiple of a step that is
// not above them. With a step of 0.5, 9.73 becomes 9.5 and -0.2 becomes -0.5.
//
// A step of 0 leaves values untouched. Integers, NaN, and infinities are
// never changed.
type DiscretizeConfig struct {
	// DefaultMultiple applies to every variable without its own entry.
	DefaultMultiple float64 `json:"default_multiple" yaml:"default_multiple" validate:"gte=0"`

	// Multiples sets the step per variable key. An entry of 0 disables
	// discretization for that key.
	Multiples map[string]float64 `json:"multiples" yaml:"multiples" validate:"dive,gte=0"`
}

// Factory hashes states according to a fixed Config.
type Factory struct {
	identifierIndependent bool
	maskedVariables       map[string]struct{}
	maskedClasses         map[string]struct{}
	defaultMultiple       float64
	multiples             map[string]float64
}

// NewFactory creates a factory from cfg.
func NewFactory(cfg Config) *Factory {
	f := &Factory{
		identifierIndependent: cfg.IdentifierIndependent,
		defaultMultiple:       max(cfg.Discretize.DefaultMultiple, 0),
	}
	if len(cfg.Discretize.Multiples) > 0 {
		f.multiples = make(map[string]float64, len(cfg.Discretize.Multiples))
		for k, m := range cfg.Discretize.Multiples {
			f.multiples[k] = max(m, 0)
		}
	}
	if len(cfg.MaskedVariables) > 0 {
		f.maskedVariables = make(map[string]struct{}, len(cfg.MaskedVariables))
		for _, k := range cfg.MaskedVariables {
			f.maskedVariables[k] = struct{}{}
		}
	}
	if len(cfg.MaskedClasses) > 0 {
		f.maskedClasses = make(map[string]struct{}, len(cfg.MaskedClasses))
		for _, c := range cfg.MaskedClasses {
			f.maskedClasses[c] = struct{}{}
		}
	}
	return f
}

// NewSimpleFactory creates an unmasked factory.
func NewSimpleFactory(identifierIndependent bool) *Factory {
	return NewFactory(Config{IdentifierIndependent: identifierIndependent})
}

// NewMaskedFactory creates a factory that ignores the given variables and
// object classes.
func NewMaskedFactory(identifierIndependent bool, maskedVariables, maskedClasses []string) *Factory {
	return NewFactory(Config{
		IdentifierIndependent: identifierIndependent,
		MaskedVariables:       maskedVariables,
		MaskedClasses:         maskedClasses,
	})
}

// NewDiscretizingFactory creates an unmasked factory that floors real values
// to defaultMultiple, or to the per-key entry of multiples when present.
func NewDiscretizingFactory(identifierIndependent bool, defaultMultiple float64, multiples map[string]float64) *Factory {
	return NewFactory(Config{
		IdentifierIndependent: identifierIndependent,
		Discretize:            DiscretizeConfig{DefaultMultiple: defaultMultiple, Multiples: multiples},
	})
}

// IdentifierIndependent reports whether OO equality ignores object names.
func (f *Factory) IdentifierIndependent() bool {
	return f.identifierIndependent
}

// Hash wraps s into a HashableState.
//
// Hash never fails and has no side effects. The state is not copied; callers
// must not mutate it afterwards.
func (f *Factory) Hash(s state.State) HashableState {
	return HashableState{s: s, code: f.computeHash(s), f: f}
}

func (f *Factory) variableMasked(key string) bool {
	if f.maskedVariables == nil {
		return false
	}
	_, ok := f.maskedVariables[key]
	return ok
}

// multipleFor returns the discretization step for key; 0 means none.
func (f *Factory) multipleFor(key string) float64 {
	if m, ok := f.multiples[key]; ok {
		return m
	}
	return f.defaultMultiple
}

// discretize floors x to a multiple of mult. The result is the multiple
// itself so hash and equality see the same value.
func discretize(x, mult float64) float64 {
	if mult <= 0 || math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	return math.Floor(x/mult) * mult
}

func (f *Factory) classMasked(class string) bool {
	if f.maskedClasses == nil {
		return false
	}
	_, ok := f.maskedClasses[class]
	return ok
}

// unmaskedObjects returns the objects of s whose class is not masked.
func (f *Factory) unmaskedObjects(s state.OOState) []state.ObjectInstance {
	objs := s.Objects()
	if f.maskedClasses == nil {
		return objs
	}
	kept := objs[:0:0]
	for _, o := range objs {
		if !f.classMasked(o.ClassName()) {
			kept = append(kept, o)
		}
	}
	return kept
}
