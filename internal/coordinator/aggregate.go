package coordinator

import (
	"math"

	"github.com/stochkit/interscenario/internal/cutlib"
	"github.com/stochkit/interscenario/internal/dispatch"
	"github.com/stochkit/interscenario/internal/incumbent"
	"github.com/stochkit/interscenario/internal/metrics"
	"github.com/stochkit/interscenario/pkg/core"
)

// buildTasks groups the cross-scenario work into one task per scenario: all
// candidates the scenario does not own, evaluated sequentially against the
// scenario's cached model. A scenario appears in at most one task, so no two
// dispatched jobs ever share an evaluation model. taskScenarios[i] is the
// snapshot index of tasks[i]'s scenario.
func buildTasks(scenarios []ScenarioState, candidates []*core.CandidateSolution) ([]dispatch.Task, []int) {
	var tasks []dispatch.Task
	var taskScenarios []int
	for si, sc := range scenarios {
		var cands []dispatch.Candidate
		for ci, cand := range candidates {
			if cand.OwnedBy(sc.ID) {
				continue
			}
			cands = append(cands, dispatch.Candidate{Index: ci, Decision: cand.Decision})
		}
		if len(cands) == 0 {
			continue
		}
		tasks = append(tasks, dispatch.Task{Scenario: sc.ID, Candidates: cands})
		taskScenarios = append(taskScenarios, si)
	}
	return tasks, taskScenarios
}

// pairCount totals the (scenario, candidate) evaluations across a task batch.
func pairCount(tasks []dispatch.Task) int {
	n := 0
	for _, t := range tasks {
		n += len(t.Candidates)
	}
	return n
}

// assemble turns the per-task dispatch results into the [scenario][candidate]
// matrices the aggregation components consume. Owner slots are filled from
// the scenario-reported local objective: the owning scenario already solved
// this exact decision, so re-evaluating it would only repeat work.
func (s *Scheduler) assemble(
	snap Snapshot,
	candidates []*core.CandidateSolution,
	tasks []dispatch.Task,
	taskScenarios []int,
	results [][]core.EvaluationResult,
) (objectives [][]*float64, duals [][]map[core.VarID]float64, cuts [][]*core.FeasibilityCut, unknown int) {
	nScen, nCand := len(snap.Scenarios), len(candidates)
	objectives = make([][]*float64, nScen)
	duals = make([][]map[core.VarID]float64, nScen)
	cuts = make([][]*core.FeasibilityCut, nScen)
	for si := range snap.Scenarios {
		objectives[si] = make([]*float64, nCand)
		duals[si] = make([]map[core.VarID]float64, nCand)
		cuts[si] = make([]*core.FeasibilityCut, nCand)
	}

	for si, sc := range snap.Scenarios {
		for ci, cand := range candidates {
			if cand.OwnedBy(sc.ID) {
				cost := sc.Cost
				objectives[si][ci] = &cost
			}
		}
	}

	for i, row := range results {
		si := taskScenarios[i]
		for j, res := range row {
			ci := tasks[i].Candidates[j].Index
			s.metrics.Evaluations.WithLabelValues(res.Outcome.String()).Inc()
			switch res.Outcome {
			case core.OutcomeFeasible:
				obj := res.Objective
				objectives[si][ci] = &obj
				duals[si][ci] = res.Duals
			case core.OutcomeInfeasible:
				cuts[si][ci] = res.Cut
			default:
				unknown++
				s.log.V(1).Info("evaluation pair unknown",
					"scenario", res.Scenario, "candidate", ci, "reason", res.Reason)
			}
		}
	}
	return objectives, duals, cuts, unknown
}

// recutDecision applies the re-run test: enough cross-scenario evaluations
// produced cuts, and the running average objective is still improving (or no
// previous average exists yet).
func (s *Scheduler) recutDecision(pairs, cutCount int, avgDelta *float64) bool {
	if pairs == 0 {
		return false
	}
	if float64(cutCount) <= s.cfg.RecutThreshold*float64(pairs) {
		return false
	}
	return avgDelta == nil || *avgDelta >= s.cfg.RecutBoundImprovement
}

// diagnostics builds the per-cycle summary and advances the running average
// objective.
func (s *Scheduler) diagnostics(
	snap Snapshot,
	candidates []*core.CandidateSolution,
	cuts [][]*core.FeasibilityCut,
	event incumbent.ChangeEvent,
	pairs, cutCount, unknown int,
) Diagnostics {
	diag := Diagnostics{
		Candidates:     len(candidates),
		PairsEvaluated: pairs,
		CutsGenerated:  cutCount,
		UnknownPairs:   unknown,
		IncumbentDelta: event.Delta,
	}

	diag.PerCandidate = make([]CandidateDiagnostics, len(candidates))
	for ci := range candidates {
		cd := CandidateDiagnostics{
			Owners:   len(candidates[ci].Owners),
			Expected: event.FeasibleObjectives[ci],
		}
		for si := range cuts {
			if cuts[si][ci] != nil {
				cd.CutBy++
			}
		}
		diag.PerCandidate[ci] = cd
	}

	avg, lo, hi := 0.0, math.Inf(1), math.Inf(-1)
	for _, sc := range snap.Scenarios {
		avg += sc.Probability * sc.Cost
		lo = math.Min(lo, sc.Cost)
		hi = math.Max(hi, sc.Cost)
	}
	diag.AverageCost = avg
	diag.CostSpread = hi - lo

	if s.averageCost != nil {
		prev := *s.averageCost
		denom := math.Max(math.Abs(avg), math.Abs(prev))
		if denom > 0 {
			// Positive delta means the sense-adjusted average moved down.
			delta := (prev - avg) / denom * s.sense.ToMin()
			diag.AverageCostDelta = &delta
		}
	}
	s.averageCost = &avg
	return diag
}

func scenarioIDs(snap Snapshot) []core.ScenarioID {
	ids := make([]core.ScenarioID, len(snap.Scenarios))
	for i, sc := range snap.Scenarios {
		ids[i] = sc.ID
	}
	return ids
}

func scenarioProbabilities(snap Snapshot) []float64 {
	probs := make([]float64, len(snap.Scenarios))
	for i, sc := range snap.Scenarios {
		probs[i] = sc.Probability
	}
	return probs
}

func variableIndex(vars []core.VariableInfo) map[core.VarID]core.VariableInfo {
	out := make(map[core.VarID]core.VariableInfo, len(vars))
	for _, v := range vars {
		out[v.ID] = v
	}
	return out
}

func countPlan(m *metrics.Metrics, plan map[core.ScenarioID]*cutlib.ScenarioCuts) {
	for _, sc := range plan {
		m.CutsSelected.WithLabelValues("feasibility").Add(float64(len(sc.Feasibility)))
		m.CutsSelected.WithLabelValues("optimality").Add(float64(len(sc.Optimality)))
	}
}

// logCycle emits the end-of-cycle report.
func (s *Scheduler) logCycle(snap Snapshot, diag Diagnostics, recut bool) {
	kv := []any{
		"iteration", snap.Iteration,
		"candidates", diag.Candidates,
		"pairs", diag.PairsEvaluated,
		"cuts", diag.CutsGenerated,
		"unknown", diag.UnknownPairs,
		"averageCost", diag.AverageCost,
		"costSpread", diag.CostSpread,
		"recut", recut,
	}
	if diag.AverageCostDelta != nil {
		kv = append(kv, "averageCostDelta", *diag.AverageCostDelta)
	}
	if inc := s.tracker.Incumbent(); inc != nil {
		kv = append(kv, "incumbent", inc.Objective)
	}
	s.log.Info("coordination cycle complete", kv...)
}
