/*
Copyright 2025 The stochkit Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// interscenario-sim runs a small progressive-hedging loop over an analytic
// three-scenario box problem and drives the coordination engine between outer
// iterations. It exists to exercise the full cycle end to end; it is not an
// optimization tool.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"github.com/stochkit/interscenario/internal/boxmodel"
	"github.com/stochkit/interscenario/internal/coordinator"
	"github.com/stochkit/interscenario/internal/logging"
	"github.com/stochkit/interscenario/internal/metrics"
	"github.com/stochkit/interscenario/pkg/config"
	"github.com/stochkit/interscenario/pkg/core"
)

func main() {
	var (
		configPath string
		iterations int
		verbosity  int
	)
	pflag.StringVar(&configPath, "config", "", "path to a YAML engine configuration (defaults apply when empty)")
	pflag.IntVar(&iterations, "iterations", 20, "number of outer iterations to simulate")
	pflag.IntVarP(&verbosity, "verbosity", "v", 0, "log verbosity (1 adds per-pair evaluation detail)")
	pflag.Parse()

	if err := run(configPath, iterations, verbosity); err != nil {
		fmt.Fprintf(os.Stderr, "interscenario-sim: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, iterations, verbosity int) error {
	log := logging.NewLogger(verbosity)
	ctx := logging.IntoContext(context.Background(), log)

	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
	}
	// The demo problem is tiny; run the engine every iteration so cuts and
	// prices show up immediately.
	cfg.IterationInterval = 1

	if doc, err := cfg.YAML(); err == nil {
		log.V(1).Info("effective configuration", "config", doc)
	}

	problem := demoProblem()
	if cfg.AllowVariableSlack {
		problem.SeparationSlack = cfg.Epsilon
	}
	m := metrics.New(prometheus.NewRegistry())

	sched, err := coordinator.New(coordinator.Options{
		Config:  cfg,
		Source:  problem,
		Primary: boxmodel.NewSolver("analytic"),
		Sense:   core.Minimize,
		Log:     log.WithName("coordinator"),
		Metrics: m,
	})
	if err != nil {
		return err
	}

	var rho core.RhoMap
	decisions := make(map[core.ScenarioID]core.DecisionVector, len(problem.Scenarios))
	costs := make(map[core.ScenarioID]float64, len(problem.Scenarios))

	for iter := 0; iter < iterations; iter++ {
		xbar := averageDecision(problem, decisions)
		for _, sc := range problem.Scenarios {
			x, cost, err := problem.LocalSolve(sc.ID, rho, xbar)
			if err != nil {
				return err
			}
			decisions[sc.ID] = x
			costs[sc.ID] = cost
		}

		if !sched.ShouldRun(iter, spread(costs)) {
			continue
		}

		snap := coordinator.Snapshot{Iteration: iter, Variables: problem.Variables}
		for _, sc := range problem.Scenarios {
			snap.Scenarios = append(snap.Scenarios, coordinator.ScenarioState{
				ID:          sc.ID,
				Probability: sc.Probability,
				Decision:    decisions[sc.ID],
				Cost:        costs[sc.ID],
			})
		}

		result, err := sched.RunCycle(ctx, snap)
		if err != nil {
			return err
		}
		sched.ObserveConvergence(spread(costs))

		for sid, cuts := range result.Cuts {
			for _, lc := range cuts.Feasibility {
				if err := problem.AddLinearCut(sid, lc); err != nil {
					return err
				}
			}
			for _, dc := range cuts.Optimality {
				if err := problem.AddDisjunctiveCut(sid, dc); err != nil {
					return err
				}
			}
		}
		if result.Rho != nil {
			rho = result.Rho
		}
	}

	if inc := sched.Incumbent(); inc != nil {
		log.Info("simulation finished",
			"incumbentObjective", inc.Objective,
			"incumbentDecision", inc.Decision.String(),
			"owners", inc.Owners)
	} else {
		log.Info("simulation finished without a feasible incumbent")
	}
	return nil
}

// demoProblem is a three-scenario problem over two binary variables. Two
// scenarios prefer x = (1, 0), one scenario cannot accept x1 = 1, so the
// first cycle produces a feasibility cut against the majority candidate and
// later cycles converge on x = (0, 1).
func demoProblem() *boxmodel.Problem {
	free := boxmodel.Interval{Lo: 0, Hi: 1}
	return &boxmodel.Problem{
		Variables: []core.VariableInfo{
			{ID: "x1", Domain: core.Binary, Upper: 1},
			{ID: "x2", Domain: core.Binary, Upper: 1},
		},
		Scenarios: []boxmodel.Scenario{
			{
				ID:          "s1",
				Probability: 0.5,
				Bounds:      map[core.VarID]boxmodel.Interval{"x1": free, "x2": free},
				CostCoeffs:  map[core.VarID]float64{"x1": -3, "x2": 1},
				CostBase:    5,
			},
			{
				ID:          "s2",
				Probability: 0.3,
				Bounds:      map[core.VarID]boxmodel.Interval{"x1": free, "x2": free},
				CostCoeffs:  map[core.VarID]float64{"x1": -2, "x2": 2},
				CostBase:    4,
			},
			{
				ID:          "s3",
				Probability: 0.2,
				Bounds: map[core.VarID]boxmodel.Interval{
					"x1": {Lo: 0, Hi: 0},
					"x2": free,
				},
				CostCoeffs: map[core.VarID]float64{"x1": 1, "x2": -1},
				CostBase:   6,
			},
		},
	}
}

func averageDecision(p *boxmodel.Problem, decisions map[core.ScenarioID]core.DecisionVector) core.DecisionVector {
	if len(decisions) == 0 {
		return nil
	}
	xbar := make(core.DecisionVector, len(p.Variables))
	for _, sc := range p.Scenarios {
		x := decisions[sc.ID]
		for _, v := range p.Variables {
			xbar[v.ID] += sc.Probability * x[v.ID]
		}
	}
	return xbar
}

func spread(costs map[core.ScenarioID]float64) float64 {
	var lo, hi float64
	first := true
	for _, c := range costs {
		if first {
			lo, hi = c, c
			first = false
			continue
		}
		if c < lo {
			lo = c
		}
		if c > hi {
			hi = c
		}
	}
	return hi - lo
}
