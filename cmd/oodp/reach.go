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
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/oomdp/pkg/dp"
)

const plannerReachability = "reachability"

func newReachCmd(a *app) *cobra.Command {
	var identifierIndependent bool
	cmd := &cobra.Command{
		Use:   "reach",
		Short: "Count the states reachable from the start state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			gw, s0, err := a.grid.build()
			if err != nil {
				return err
			}
			cfg := a.cfg
			if cmd.Flags().Changed("identifier-independent") {
				cfg.Hashing.IdentifierIndependent = identifierIndependent
			}
			e, err := dp.NewEngine(plannerReachability, gw.Model(), gw.ActionTypes(), cfg, a.engineOptions()...)
			if err != nil {
				return err
			}

			start := time.Now()
			_, err = e.PerformReachabilityFrom(cmd.Context(), s0)
			a.record(cmd.Context(), plannerReachability, start, e.NumStates(), err)
			if err != nil {
				return err
			}

			terminal := 0
			for i := 0; i < e.NumStates(); i++ {
				if e.TerminalAt(i) {
					terminal++
				}
			}
			a.out.KeyValues([][2]string{
				{"states", strconv.Itoa(e.NumStates())},
				{"terminal", strconv.Itoa(terminal)},
				{"identifier_independent", strconv.FormatBool(cfg.Hashing.IdentifierIndependent)},
			})
			return nil
		},
	}
	cmd.Flags().BoolVar(&identifierIndependent, "identifier-independent", false,
		"treat states that differ only in object names as equal")
	return cmd
}
