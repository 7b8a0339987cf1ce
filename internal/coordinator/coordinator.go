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

package coordinator

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/stochkit/interscenario/internal/cutlib"
	"github.com/stochkit/interscenario/internal/dispatch"
	"github.com/stochkit/interscenario/internal/evaluator"
	"github.com/stochkit/interscenario/internal/incumbent"
	"github.com/stochkit/interscenario/internal/instancecache"
	"github.com/stochkit/interscenario/internal/metrics"
	"github.com/stochkit/interscenario/internal/registry"
	"github.com/stochkit/interscenario/internal/rho"
	"github.com/stochkit/interscenario/internal/separation"
	"github.com/stochkit/interscenario/pkg/config"
	"github.com/stochkit/interscenario/pkg/core"
	"github.com/stochkit/interscenario/pkg/solver"
)

// Phase is a step of the coordination cycle state machine.
type Phase string

const (
	PhaseInit       Phase = "init"
	PhaseCollect    Phase = "collect"
	PhaseEvaluate   Phase = "evaluate"
	PhaseAggregate  Phase = "aggregate"
	PhaseRecut      Phase = "recut"
	PhaseDistribute Phase = "distribute"
	PhaseDone       Phase = "done"
)

// ScenarioState is one scenario's contribution to a cycle snapshot: its
// probability weight, the first-stage decision its local solve converged to,
// and the local objective of that solve.
type ScenarioState struct {
	ID          core.ScenarioID
	Probability float64
	Decision    core.DecisionVector
	Cost        float64
}

// Snapshot is the outer driver's view of the scenario tree at one iteration.
// The objective sense is fixed at scheduler construction, not per snapshot.
type Snapshot struct {
	Iteration int
	Scenarios []ScenarioState
	Variables []core.VariableInfo

	// Stages is the number of decision stages; zero means two. The engine
	// only supports two-stage problems.
	Stages int
}

// CandidateDiagnostics summarizes one candidate's cycle.
type CandidateDiagnostics struct {
	// Owners is the number of scenarios that reported the candidate.
	Owners int

	// CutBy is the number of scenarios whose evaluation of this candidate
	// produced a feasibility cut.
	CutBy int

	// Expected is the probability-weighted objective, nil when any
	// scenario contribution was missing.
	Expected *float64
}

// Diagnostics is the per-cycle summary returned to the driver.
type Diagnostics struct {
	Candidates     int
	PairsEvaluated int
	CutsGenerated  int
	UnknownPairs   int
	PerCandidate   []CandidateDiagnostics

	// AverageCost is the probability-weighted average of the
	// scenario-reported local objectives.
	AverageCost float64

	// AverageCostDelta is the relative change versus the previous cycle,
	// nil on the first cycle.
	AverageCostDelta *float64

	// CostSpread is max - min of the scenario-reported local objectives.
	CostSpread float64

	// IncumbentDelta is the sense-adjusted improvement of the incumbent
	// this cycle, zero when unchanged.
	IncumbentDelta float64
}

// CycleResult is what one coordination cycle hands back to the driver.
type CycleResult struct {
	// Cuts maps each scenario to the cuts to inject into its native model
	// before the next outer solve.
	Cuts map[core.ScenarioID]*cutlib.ScenarioCuts

	// Incumbent is the best globally-feasible candidate so far, nil when
	// none has been proven feasible.
	Incumbent *core.Incumbent

	// Rho is the coordination price map to install for the next outer
	// iteration, nil when the cycle bypassed the price update.
	Rho core.RhoMap

	// RecutRequested asks the driver to invoke the engine again on the
	// next iteration, bypassing the normal interval.
	RecutRequested bool

	Diagnostics Diagnostics
}

// Scheduler sequences a full coordination cycle:
//
//	INIT -> COLLECT -> EVALUATE -> AGGREGATE -> {RECUT | DISTRIBUTE} -> DONE
//
// It owns all per-cycle state; nothing is kept in package globals. Between
// cycles it retains only the incumbent, the rho estimate, the running average
// objective, and the last-run iteration used by ShouldRun.
type Scheduler struct {
	cfg     *config.Config
	log     logr.Logger
	metrics *metrics.Metrics
	sense   core.ObjectiveSense

	registry   *registry.SolutionRegistry
	cache      *instancecache.Cache
	evaluator  *evaluator.Evaluator
	dispatcher dispatch.Coordinator
	cuts       *cutlib.Library
	tracker    *incumbent.Tracker
	estimator  *rho.Estimator

	phase           Phase
	lastRun         int
	lastConvergence *float64
	averageCost     *float64
}

// Options bundles the scheduler's dependencies.
type Options struct {
	Config   *config.Config
	Source   solver.ModelSource
	Primary  solver.Solver
	Fallback solver.Solver
	Sense    core.ObjectiveSense
	Log      logr.Logger
	Metrics  *metrics.Metrics
}

// New wires up a scheduler and its component graph. Configuration problems
// are fatal here, never discovered mid-cycle.
func New(opts Options) (*Scheduler, error) {
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if opts.Primary == nil {
		return nil, fmt.Errorf("primary solver cannot be nil")
	}
	if opts.Sense == 0 {
		opts.Sense = core.Minimize
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New(nil)
	}

	cache, err := instancecache.New(opts.Source)
	if err != nil {
		return nil, err
	}
	sep, err := separation.New(opts.Config)
	if err != nil {
		return nil, err
	}
	eval, err := evaluator.New(cache, sep, opts.Primary, opts.Fallback)
	if err != nil {
		return nil, err
	}
	dispatcher, err := dispatch.New(opts.Config)
	if err != nil {
		return nil, err
	}
	cuts, err := cutlib.New(opts.Config)
	if err != nil {
		return nil, err
	}
	estimator, err := rho.New(opts.Config, opts.Log.WithName("rho"))
	if err != nil {
		return nil, err
	}

	return &Scheduler{
		cfg:        opts.Config,
		log:        opts.Log,
		metrics:    opts.Metrics,
		sense:      opts.Sense,
		registry:   registry.New(),
		cache:      cache,
		evaluator:  eval,
		dispatcher: dispatcher,
		cuts:       cuts,
		tracker:    incumbent.New(opts.Sense, opts.Log.WithName("incumbent")),
		estimator:  estimator,
		phase:      PhaseDone,
		// A fresh scheduler is due immediately.
		lastRun: -opts.Config.IterationInterval,
	}, nil
}

// Phase returns the scheduler's current phase.
func (s *Scheduler) Phase() Phase {
	return s.phase
}

// Incumbent returns the current incumbent, nil when none exists.
func (s *Scheduler) Incumbent() *core.Incumbent {
	return s.tracker.Incumbent()
}

// ShouldRun decides whether the engine should run at this outer iteration:
// either the iteration interval has expired since the last run, or the
// convergence metric degraded beyond both the relative and absolute margins.
func (s *Scheduler) ShouldRun(iteration int, convergenceMetric float64) bool {
	if iteration-s.lastRun >= s.cfg.IterationInterval {
		return true
	}
	if s.lastConvergence == nil {
		return false
	}
	delta := convergenceMetric - *s.lastConvergence
	return delta > *s.lastConvergence*s.cfg.ConvergenceRelativeDegradation &&
		delta > s.cfg.ConvergenceAbsoluteDegradation
}

// ObserveConvergence records the outer convergence metric for ShouldRun.
func (s *Scheduler) ObserveConvergence(metric float64) {
	s.lastConvergence = &metric
}

// RunCycle executes one full coordination cycle over the snapshot.
func (s *Scheduler) RunCycle(ctx context.Context, snap Snapshot) (*CycleResult, error) {
	if snap.Stages > 2 {
		return nil, fmt.Errorf("engine only works with 2-stage problems, snapshot has %d stages", snap.Stages)
	}
	if len(snap.Scenarios) == 0 {
		return nil, fmt.Errorf("snapshot contains no scenarios")
	}

	s.metrics.Cycles.Inc()
	s.lastRun = snap.Iteration

	// INIT: fixed-value parameters change between candidates within a
	// cycle, so stale cached models from the previous cycle must never be
	// reused.
	s.phase = PhaseInit
	s.cache.InvalidateAll()
	s.registry.Reset()

	// COLLECT
	s.phase = PhaseCollect
	for _, sc := range snap.Scenarios {
		s.registry.Register(sc.ID, sc.Decision)
	}
	candidates := s.registry.Candidates()
	s.metrics.Candidates.Set(float64(len(candidates)))

	// EVALUATE
	s.phase = PhaseEvaluate
	tasks, taskScenarios := buildTasks(snap.Scenarios, candidates)
	results := s.dispatcher.Run(ctx, tasks, s.evaluator)
	pairs := pairCount(tasks)

	objectives, duals, cutMatrix, unknown := s.assemble(snap, candidates, tasks, taskScenarios, results)

	// AGGREGATE
	s.phase = PhaseAggregate
	cutCount := s.cuts.CountAboveThreshold(cutMatrix)

	event, err := s.tracker.Update(objectives, scenarioProbabilities(snap), candidates, snap.Variables)
	if err != nil {
		return nil, err
	}
	if inc := s.tracker.Incumbent(); inc != nil {
		s.metrics.IncumbentObj.Set(inc.Objective)
	}

	diag := s.diagnostics(snap, candidates, cutMatrix, event, pairs, cutCount, unknown)

	recut := s.recutDecision(pairs, cutCount, diag.AverageCostDelta)

	result := &CycleResult{
		Incumbent:      s.tracker.Incumbent(),
		RecutRequested: recut,
		Diagnostics:    diag,
	}

	// Cuts are handed to the driver on both exit paths: candidate indices
	// are only valid within the producing cycle, so cuts cannot ride
	// across a registry rebuild.
	result.Cuts = s.cuts.SelectAndDistribute(
		cutMatrix,
		scenarioIDs(snap),
		candidates,
		event.FeasibleObjectives,
		event.OptimalityCuts,
		variableIndex(snap.Variables),
	)
	countPlan(s.metrics, result.Cuts)

	if recut {
		// RECUT: bypass the price update and rewind the interval so the
		// next driver invocation runs the engine again.
		s.phase = PhaseRecut
		s.metrics.RecutCycles.Inc()
		s.lastRun = snap.Iteration - s.cfg.IterationInterval
		result.Rho = s.estimator.Rho()
	} else {
		s.phase = PhaseDistribute
		result.Rho = s.estimator.Update(
			duals, scenarioIDs(snap), scenarioProbabilities(snap), candidates, snap.Variables)
	}

	s.phase = PhaseDone
	s.logCycle(snap, diag, recut)
	return result, nil
}
