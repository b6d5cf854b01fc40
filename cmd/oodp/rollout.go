// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"

	"github.com/AleutianAI/oomdp/pkg/dp"
	"github.com/AleutianAI/oomdp/pkg/parallel"
	"github.com/AleutianAI/oomdp/pkg/policy"
)

func newRolloutCmd(a *app) *cobra.Command {
	var (
		episodes    int
		maxSteps    int
		workers     int
		seed        uint64
		epsilon     float64
		temperature float64
	)
	cmd := &cobra.Command{
		Use:   "rollout",
		Short: "Plan with value iteration, then roll out the resulting policy",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if episodes < 1 {
				return fmt.Errorf("--episodes must be at least 1, got %d", episodes)
			}
			gw, s0, err := a.grid.build()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			vi, err := dp.NewValueIteration(gw.Model(), gw.ActionTypes(), a.cfg, a.engineOptions()...)
			if err != nil {
				return err
			}
			if _, err := vi.PlanFromState(ctx, s0); err != nil {
				return err
			}

			var p policy.Policy = vi.GreedyPolicy()
			switch {
			case temperature > 0:
				p, err = policy.NewBoltzmann(vi, temperature)
			case epsilon > 0:
				p, err = policy.NewEpsilonGreedy(vi, epsilon)
			}
			if err != nil {
				return err
			}

			eps, err := policy.RolloutBatch(ctx, p, gw.Model(), s0, episodes, maxSteps, workers, seed)
			if err != nil {
				return err
			}

			returns := make([]float64, len(eps))
			steps := make([]float64, len(eps))
			reached := 0
			for i, ep := range eps {
				returns[i] = ep.DiscountedReturn(a.cfg.Gamma)
				steps[i] = float64(ep.Steps())
				if ep.Terminated {
					reached++
				}
			}
			mean, std := stat.MeanStdDev(returns, nil)
			a.out.KeyValues([][2]string{
				{"episodes", strconv.Itoa(len(eps))},
				{"mean_return", formatValue(mean)},
				{"std_return", formatValue(std)},
				{"mean_steps", formatValue(stat.Mean(steps, nil))},
				{"value_estimate", formatValue(vi.Value(s0))},
				{"goal_rate", fmt.Sprintf("%.2f", float64(reached)/float64(len(eps)))},
			})
			return nil
		},
	}
	cmd.Flags().IntVar(&episodes, "episodes", 100, "number of episodes")
	cmd.Flags().IntVar(&maxSteps, "max-steps", 200, "step cap per episode")
	cmd.Flags().IntVar(&workers, "workers", parallel.DefaultWorkers(), "concurrent rollouts")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "random seed")
	cmd.Flags().Float64Var(&epsilon, "epsilon", 0, "epsilon-greedy exploration rate")
	cmd.Flags().Float64Var(&temperature, "temperature", 0, "Boltzmann temperature (overrides --epsilon)")
	return cmd
}
