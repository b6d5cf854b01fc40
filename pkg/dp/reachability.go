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
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/oomdp/pkg/state"
)

// PerformReachabilityFrom discovers every state reachable from seed and adds
// it to the value table.
//
// Description:
//
//	Breadth-first expansion through the full model. Every discovered state
//	is initialized with the value initializer (terminal states with 0).
//	Terminal states are added but not expanded. States already expanded are
//	skipped, so a seed that was already expanded returns immediately.
//
//	With CacheTransitions enabled, each expanded state's enumerated
//	transitions are kept for later backups.
//
// Inputs:
//   - ctx: Checked once per expanded state.
//   - seed: Initial state.
//
// Outputs:
//   - int: Number of states added to the table.
//   - error: Model or context error. States discovered before the error stay
//     in the table.
//
// Limitations:
//   - Does not terminate on infinite state spaces.
func (e *Engine) PerformReachabilityFrom(ctx context.Context, seed state.State) (int, error) {
	h := e.hashing.Hash(seed)
	root, inserted := e.insert(h)
	if !inserted && e.expanded[root] {
		return 0, nil
	}

	ctx, span := e.tracer.Start(ctx, SpanReachability,
		attribute.String("dp.planner", e.planner),
		attribute.Int("dp.states_before", e.values.Len()),
	)
	start := time.Now()
	added := 0
	if inserted {
		added++
	}

	err := e.expandFrom(ctx, root, &added)

	reachabilityDuration.Observe(time.Since(start).Seconds())
	reachableStates.WithLabelValues(e.planner).Set(float64(e.values.Len()))
	if added > 0 {
		e.markReady()
	}
	e.logger.Debug("reachability complete",
		slog.Int("new_states", added),
		slog.Int("states", e.values.Len()),
		slog.Duration("elapsed", time.Since(start)))

	span.SetAttributes(attribute.Int("dp.new_states", added))
	e.tracer.End(span, nil, err)
	if err != nil {
		return added, plannerError(e.planner, "PerformReachabilityFrom", err)
	}
	return added, nil
}

func (e *Engine) expandFrom(ctx context.Context, root int, added *int) error {
	queue := []int{root}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		i := queue[0]
		queue = queue[1:]
		if e.expanded[i] {
			continue
		}
		e.expanded[i] = true
		if e.terminal[i] {
			continue
		}

		s := e.values.Key(i).State()
		actions := e.ApplicableActions(s)
		cached := make([]ActionOutcomes, 0, len(actions))
		for _, a := range actions {
			ao, err := e.enumerateAction(s, a)
			if err != nil {
				e.expanded[i] = false
				return err
			}
			for k := range ao.Outcomes {
				o := &ao.Outcomes[k]
				if o.Next < 0 {
					j, isNew := e.insert(e.hashing.Hash(o.NextState))
					o.Next = j
					if isNew {
						*added++
					}
				}
				if !e.expanded[o.Next] {
					queue = append(queue, o.Next)
				}
			}
			cached = append(cached, ao)
		}
		if e.cacheTrans {
			e.cache[i] = cached
		}

		e.progress.Do(func() {
			e.logger.Info("reachability progress",
				slog.Int("states", e.values.Len()),
				slog.Int("frontier", len(queue)))
		})
	}
	return nil
}
