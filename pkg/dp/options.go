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
	"log/slog"

	"github.com/AleutianAI/oomdp/pkg/statehash"
	"github.com/AleutianAI/oomdp/pkg/valuefunction"
)

// Option configures the non-serializable parts of a planner.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	vinit   valuefunction.ValueFunction
	op      Operator
	hashing *statehash.Factory
}

// WithLogger sets the planner's logger. The component attribute is added on
// top of it.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithValueInitializer sets the value given to newly discovered states.
// Overrides Config.InitialValue.
func WithValueInitializer(v valuefunction.ValueFunction) Option {
	return func(o *options) { o.vinit = v }
}

// WithOperator sets the backup operator. Overrides Config.Operator.
func WithOperator(op Operator) Option {
	return func(o *options) { o.op = op }
}

// WithHashingFactory sets the state hashing factory. Overrides
// Config.Hashing. Share one factory between planners that exchange states.
func WithHashingFactory(f *statehash.Factory) Option {
	return func(o *options) { o.hashing = f }
}

func buildOptions(cfg Config, opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.vinit == nil {
		o.vinit = valuefunction.Constant(cfg.InitialValue)
	}
	if o.op == nil {
		o.op = cfg.BuildOperator()
	}
	if o.hashing == nil {
		o.hashing = cfg.HashingFactory()
	}
	return o
}
