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
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/oomdp/internal/gridworld"
	"github.com/AleutianAI/oomdp/pkg/dp"
	"github.com/AleutianAI/oomdp/pkg/dp/differentiable"
	"github.com/AleutianAI/oomdp/pkg/model"
	"github.com/AleutianAI/oomdp/pkg/parallel"
	"github.com/AleutianAI/oomdp/pkg/policy"
	"github.com/AleutianAI/oomdp/pkg/state"
)

func newIRLCmd(a *app) *cobra.Command {
	var (
		demos    int
		maxSteps int
		seed     uint64
		irlCfg   = differentiable.DefaultMLIRLConfig()
	)
	cmd := &cobra.Command{
		Use:   "irl",
		Short: "Recover a per-cell reward from value-iteration demonstrations with MLIRL",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if demos < 1 {
				return fmt.Errorf("--demos must be at least 1, got %d", demos)
			}
			gw, s0, err := a.grid.build()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			// Demonstrations come from the optimal step-cost policy.
			expert, err := dp.NewValueIteration(gw.Model(), gw.ActionTypes(), a.cfg, a.engineOptions()...)
			if err != nil {
				return err
			}
			if _, err := expert.PlanFromState(ctx, s0); err != nil {
				return err
			}
			episodes, err := policy.RolloutBatch(ctx, expert.GreedyPolicy(), gw.Model(), s0, demos, maxSteps, parallel.DefaultWorkers(), seed)
			if err != nil {
				return err
			}

			rf := differentiable.NewLinearStateRF(gw.NumCells(), gw.CellFeatures)
			m := model.NewFactoredModel(gw, rf, model.TerminalFunc(gridworld.AtLocation))
			vi, err := differentiable.NewVI(m, gw.ActionTypes(), rf, a.cfg,
				differentiable.WithEngineOptions(a.engineOptions()...))
			if err != nil {
				return err
			}
			learner, err := differentiable.NewMLIRL(vi, episodes, irlCfg)
			if err != nil {
				return err
			}

			start := time.Now()
			res, err := learner.Run(ctx)
			a.record(ctx, differentiable.PlannerDifferentiableVI, start, vi.NumStates(), err)
			if err != nil {
				return err
			}

			if res.Converged {
				a.out.Success("log likelihood converged")
			} else {
				a.out.Warning("step cap reached")
			}
			a.out.KeyValues([][2]string{
				{"demonstrations", strconv.Itoa(len(episodes))},
				{"steps", strconv.Itoa(res.Steps)},
				{"initial_log_likelihood", formatValue(res.InitialLogLikelihood)},
				{"log_likelihood", formatValue(res.LogLikelihood)},
			})

			gx, gy := a.grid.goal()
			theta := res.Parameters
			headers, rows := gridRows(gw, gx, gy, func(s state.State) string {
				x, y, err := gridworld.AgentPosition(s)
				if err != nil {
					return "?"
				}
				return formatValue(theta[y*gw.Width+x])
			})
			a.out.Title("learned reward per cell")
			a.out.Table(headers, rows)
			return nil
		},
	}
	cmd.Flags().IntVar(&demos, "demos", 5, "number of demonstrations")
	cmd.Flags().IntVar(&maxSteps, "max-steps", 100, "step cap per demonstration")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "random seed")
	cmd.Flags().Float64Var(&irlCfg.LearningRate, "learning-rate", irlCfg.LearningRate, "gradient ascent step size")
	cmd.Flags().IntVar(&irlCfg.MaxSteps, "steps", irlCfg.MaxSteps, "maximum gradient steps")
	cmd.Flags().Float64Var(&irlCfg.Tolerance, "tolerance", irlCfg.Tolerance, "stop when the log likelihood changes by less")
	cmd.Flags().Float64Var(&irlCfg.Beta, "beta", irlCfg.Beta, "demonstrator inverse temperature")
	return cmd
}
