package incumbent

import (
	"fmt"

	"github.com/go-logr/logr"

	"github.com/stochkit/interscenario/pkg/core"
)

// Tracker maintains the best known globally-feasible candidate. The incumbent
// objective, sense-adjusted to minimization internally, is non-increasing
// across updates.
type Tracker struct {
	sense     core.ObjectiveSense
	incumbent *core.Incumbent
	log       logr.Logger
}

// ChangeEvent summarizes one update call.
type ChangeEvent struct {
	// Improved reports whether the incumbent was replaced.
	Improved bool

	// Delta is the sense-adjusted improvement over the previous incumbent;
	// zero on the first acceptance or when nothing improved.
	Delta float64

	// FeasibleObjectives holds the expected objective per candidate, nil
	// where any scenario contribution was missing.
	FeasibleObjectives []*float64

	// OptimalityCuts are the no-good cuts excluding dominated feasible
	// candidates. Empty unless every free first-stage variable is discrete.
	OptimalityCuts []core.OptimalityCut
}

// New creates a tracker for the given objective sense.
func New(sense core.ObjectiveSense, log logr.Logger) *Tracker {
	return &Tracker{sense: sense, log: log}
}

// Incumbent returns the current incumbent, or nil when no candidate has been
// proven globally feasible yet.
func (t *Tracker) Incumbent() *core.Incumbent {
	return t.incumbent
}

// Update computes each candidate's expected objective from the per-scenario
// objective matrix (indexed [scenario][candidate], nil where the pair was not
// feasible), selects the best, and replaces the incumbent only on strict
// improvement. Candidates with any missing contribution are excluded.
//
// When more than one candidate is feasible and every free first-stage
// variable has a discrete domain, each non-best feasible candidate is
// excluded by an optimality cut; a single continuous free variable disables
// optimality cuts entirely.
func (t *Tracker) Update(
	objectives [][]*float64,
	probabilities []float64,
	candidates []*core.CandidateSolution,
	variables []core.VariableInfo,
) (ChangeEvent, error) {
	if len(objectives) != len(probabilities) {
		return ChangeEvent{}, fmt.Errorf(
			"objective matrix has %d scenario rows, want %d", len(objectives), len(probabilities))
	}

	ev := ChangeEvent{
		FeasibleObjectives: expectedObjectives(objectives, probabilities, len(candidates)),
	}

	bestID := -1
	bestObj := 0.0
	toMin := t.sense.ToMin()
	for id, obj := range ev.FeasibleObjectives {
		if obj == nil {
			continue
		}
		adj := *obj * toMin
		if bestID < 0 || adj < bestObj {
			bestID, bestObj = id, adj
		}
	}
	if bestID < 0 {
		t.log.Info("no scenario solutions are globally feasible")
		return ev, nil
	}

	if t.incumbent == nil || t.incumbent.Objective*toMin > bestObj {
		if t.incumbent != nil {
			ev.Delta = t.incumbent.Objective*toMin - bestObj
		}
		cand := candidates[bestID]
		t.incumbent = &core.Incumbent{
			Objective: bestObj * toMin,
			Decision:  cand.Decision.Clone(),
			Owners:    append([]core.ScenarioID(nil), cand.Owners...),
			Index:     bestID,
		}
		ev.Improved = true
		t.log.Info("new incumbent",
			"objective", t.incumbent.Objective, "candidate", bestID, "owners", cand.Owners)
	}

	feasibleCount := 0
	for _, obj := range ev.FeasibleObjectives {
		if obj != nil {
			feasibleCount++
		}
	}
	if feasibleCount <= 1 {
		return ev, nil
	}

	binary, integer, ok := discreteFreeVars(variables)
	if !ok {
		// Continuous domains cannot be excluded by a no-good cut.
		return ev, nil
	}

	for id, obj := range ev.FeasibleObjectives {
		if obj == nil || id == bestID {
			continue
		}
		cut := core.OptimalityCut{
			Binary:    make(map[core.VarID]float64, len(binary)),
			Integer:   make(map[core.VarID]float64, len(integer)),
			Candidate: id,
		}
		for _, v := range binary {
			cut.Binary[v] = candidates[id].Decision[v]
		}
		for _, v := range integer {
			cut.Integer[v] = candidates[id].Decision[v]
		}
		ev.OptimalityCuts = append(ev.OptimalityCuts, cut)
	}
	return ev, nil
}

// expectedObjectives probability-weights the per-scenario objectives of each
// candidate. A candidate missing any scenario contribution yields nil.
func expectedObjectives(objectives [][]*float64, probabilities []float64, candidates int) []*float64 {
	out := make([]*float64, candidates)
	for cand := 0; cand < candidates; cand++ {
		total := 0.0
		complete := true
		for scen, p := range probabilities {
			v := objectives[scen][cand]
			if v == nil {
				complete = false
				break
			}
			total += p * *v
		}
		if complete {
			obj := total
			out[cand] = &obj
		}
	}
	return out
}

// discreteFreeVars partitions the free first-stage variables into binary and
// integer lists. ok is false when any free variable is continuous.
func discreteFreeVars(variables []core.VariableInfo) (binary, integer []core.VarID, ok bool) {
	for _, v := range variables {
		if v.Fixed {
			continue
		}
		switch v.Domain {
		case core.Binary:
			binary = append(binary, v.ID)
		case core.Integer:
			integer = append(integer, v.ID)
		default:
			return nil, nil, false
		}
	}
	return binary, integer, true
}
