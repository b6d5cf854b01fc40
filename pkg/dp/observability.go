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
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const dpTracerName = "oomdp.dp"

// Span names.
const (
	SpanReachability     = "dp.reachability"
	SpanValueIteration   = "dp.value_iteration"
	SpanPolicyEvaluation = "dp.policy_evaluation"
	SpanPolicyIteration  = "dp.policy_iteration"
)

// Tracer provides OpenTelemetry spans for planner runs.
//
// Thread Safety: Safe for concurrent use.
type Tracer struct {
	tracer  trace.Tracer
	enabled bool
}

// NewTracer creates a tracer. When enabled is false every span is a no-op.
func NewTracer(enabled bool) *Tracer {
	return &Tracer{
		tracer:  otel.Tracer(dpTracerName),
		enabled: enabled,
	}
}

// Start opens a span named name.
//
// Outputs:
//   - context.Context: Context with span.
//   - trace.Span: The created span; noop.Span{} when tracing is disabled.
func (t *Tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if t == nil || !t.enabled {
		return ctx, noop.Span{}
	}
	return t.tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// End records err (if any) and the result attributes, then ends span.
func (t *Tracer) End(span trace.Span, res *Result, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	if res != nil {
		span.SetAttributes(
			attribute.String("dp.run_id", res.RunID),
			attribute.Int("dp.result.iterations", res.Iterations),
			attribute.Float64("dp.result.max_delta", res.MaxDelta),
			attribute.Bool("dp.result.converged", res.Converged),
			attribute.Int("dp.result.num_states", res.NumStates),
			attribute.String("dp.result.status", res.Status.String()),
		)
	}
	span.End()
}
