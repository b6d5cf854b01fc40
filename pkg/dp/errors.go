// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dp

import (
	"errors"
)

var (
	// ErrNoReachableStates is returned when a solver runs before any state
	// was added by reachability analysis.
	ErrNoReachableStates = errors.New("no reachable states: perform reachability before planning")

	// ErrNilModel is returned when a planner is built without a model.
	ErrNilModel = errors.New("model must not be nil")

	// ErrNilPolicy is returned when policy evaluation has no policy.
	ErrNilPolicy = errors.New("policy must not be nil")

	// ErrInvalidConfig is returned when a Config fails validation.
	ErrInvalidConfig = errors.New("invalid dp config")
)

// PlannerError wraps planner-specific errors.
type PlannerError struct {
	Planner   string
	Operation string
	Err       error
}

func (e *PlannerError) Error() string {
	return e.Planner + "." + e.Operation + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *PlannerError) Unwrap() error {
	return e.Err
}

func plannerError(planner, op string, err error) error {
	return &PlannerError{Planner: planner, Operation: op, Err: err}
}
