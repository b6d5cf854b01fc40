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
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/oomdp/internal/gridworld"
	"github.com/AleutianAI/oomdp/pkg/state"
)

var errBadGrid = errors.New("invalid grid")

// gridFlags describes the grid world a command plans over.
type gridFlags struct {
	width, height  int
	startX, startY int
	goalX, goalY   int
	slip           float64
	walls          []string
}

func (g *gridFlags) register(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.IntVar(&g.width, "width", 5, "grid width")
	pf.IntVar(&g.height, "height", 5, "grid height")
	pf.IntVar(&g.startX, "start-x", 0, "agent start x")
	pf.IntVar(&g.startY, "start-y", 0, "agent start y")
	pf.IntVar(&g.goalX, "goal-x", -1, "goal x (default: width-1)")
	pf.IntVar(&g.goalY, "goal-y", -1, "goal y (default: height-1)")
	pf.Float64Var(&g.slip, "success-prob", 1, "probability the intended move is executed")
	pf.StringArrayVar(&g.walls, "wall", nil, "wall cell as x,y (repeatable)")
}

// build returns the grid world and the start state.
func (g *gridFlags) build() (*gridworld.GridWorld, *state.OOMapState, error) {
	if g.width < 1 || g.height < 1 {
		return nil, nil, fmt.Errorf("%w: size %dx%d", errBadGrid, g.width, g.height)
	}
	if g.slip <= 0 || g.slip > 1 {
		return nil, nil, fmt.Errorf("%w: success probability %v not in (0,1]", errBadGrid, g.slip)
	}
	gx, gy := g.goal()

	gw := gridworld.New(g.width, g.height).WithSlip(g.slip)
	for _, w := range g.walls {
		x, y, err := parseCell(w)
		if err != nil {
			return nil, nil, err
		}
		gw.AddWall(x, y)
	}
	if gw.Blocked(g.startX, g.startY) {
		return nil, nil, fmt.Errorf("%w: start (%d,%d) is blocked", errBadGrid, g.startX, g.startY)
	}
	if gw.Blocked(gx, gy) {
		return nil, nil, fmt.Errorf("%w: goal (%d,%d) is blocked", errBadGrid, gx, gy)
	}
	return gw, gridworld.State(g.startX, g.startY, gx, gy), nil
}

// goal returns the resolved goal cell.
func (g *gridFlags) goal() (int, int) {
	gx, gy := g.goalX, g.goalY
	if gx < 0 {
		gx = g.width - 1
	}
	if gy < 0 {
		gy = g.height - 1
	}
	return gx, gy
}

func parseCell(s string) (int, int, error) {
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("%w: wall %q is not x,y", errBadGrid, s)
	}
	x, err := strconv.Atoi(strings.TrimSpace(xs))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: wall %q: %v", errBadGrid, s, err)
	}
	y, err := strconv.Atoi(strings.TrimSpace(ys))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: wall %q: %v", errBadGrid, s, err)
	}
	return x, y, nil
}
