package boxmodel

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/stochkit/interscenario/pkg/core"
	"github.com/stochkit/interscenario/pkg/solver"
)

// Interval is a closed feasible range for one first-stage variable.
type Interval struct {
	Lo float64
	Hi float64
}

// Contains reports whether x lies in the interval within tolerance.
func (iv Interval) Contains(x, tol float64) bool {
	return x >= iv.Lo-tol && x <= iv.Hi+tol
}

// Clamp projects x onto the interval.
func (iv Interval) Clamp(x float64) float64 {
	return math.Max(iv.Lo, math.Min(iv.Hi, x))
}

// Scenario is one scenario of a box-constrained two-stage problem: each
// first-stage variable must land in a scenario-specific interval, and the
// scenario cost is affine in the first-stage decision.
type Scenario struct {
	ID          core.ScenarioID
	Probability float64
	Bounds      map[core.VarID]Interval
	CostBase    float64
	CostCoeffs  map[core.VarID]float64
}

// Cost evaluates the scenario cost at a decision.
func (s Scenario) Cost(x core.DecisionVector) float64 {
	total := s.CostBase
	for id, c := range s.CostCoeffs {
		total += c * x[id]
	}
	return total
}

// Problem is a full box-constrained stochastic program. It doubles as the
// engine's model source and as the driver-side cut receiver: cuts handed back
// by a coordination cycle are stored per scenario and honored by later local
// solves and evaluation models.
type Problem struct {
	Variables []core.VariableInfo
	Scenarios []Scenario

	// SeparationSlack, when positive, builds evaluation models with their
	// separation variables bounded to [-SeparationSlack, SeparationSlack]
	// instead of fixed at zero, so native evaluations tolerate that much
	// constraint slack. Matches the engine's variable-slack mode; keep it
	// equal to the configured epsilon.
	SeparationSlack float64

	mu          sync.Mutex
	linear      map[core.ScenarioID][]core.LinearCut
	disjunctive map[core.ScenarioID][]core.DisjunctiveCut
}

var _ solver.ModelSource = (*Problem)(nil)
var _ solver.CutReceiver = (*Problem)(nil)

// Scenario returns the scenario with the given id.
func (p *Problem) Scenario(id core.ScenarioID) (Scenario, bool) {
	for _, s := range p.Scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return Scenario{}, false
}

// BuildEvaluationModel clones the scenario into a fresh evaluation model,
// carrying the cuts accumulated so far.
func (p *Problem) BuildEvaluationModel(_ context.Context, id core.ScenarioID) (solver.EvaluationModel, error) {
	sc, ok := p.Scenario(id)
	if !ok {
		return nil, fmt.Errorf("unknown scenario %q", id)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	m := newModel(sc, p.Variables)
	if p.SeparationSlack > 0 {
		m.BoundSeparation(p.SeparationSlack)
	}
	m.linear = append(m.linear, p.linear[id]...)
	m.disjunctive = append(m.disjunctive, p.disjunctive[id]...)
	return m, nil
}

// AddLinearCut records a feasibility cut against the scenario's native model.
func (p *Problem) AddLinearCut(id core.ScenarioID, cut core.LinearCut) error {
	if _, ok := p.Scenario(id); !ok {
		return fmt.Errorf("unknown scenario %q", id)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.linear == nil {
		p.linear = make(map[core.ScenarioID][]core.LinearCut)
	}
	p.linear[id] = append(p.linear[id], cut)
	return nil
}

// AddDisjunctiveCut records an encoded optimality cut against the scenario's
// native model.
func (p *Problem) AddDisjunctiveCut(id core.ScenarioID, cut core.DisjunctiveCut) error {
	if _, ok := p.Scenario(id); !ok {
		return fmt.Errorf("unknown scenario %q", id)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.disjunctive == nil {
		p.disjunctive = make(map[core.ScenarioID][]core.DisjunctiveCut)
	}
	p.disjunctive[id] = append(p.disjunctive[id], cut)
	return nil
}

// CutCounts returns the number of stored cuts for a scenario.
func (p *Problem) CutCounts(id core.ScenarioID) (linear, disjunctive int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.linear[id]), len(p.disjunctive[id])
}

// LocalSolve computes the scenario's locally optimal first-stage decision
// under the augmented objective
//
//	cost(x) + sum_v rho_v/2 * (x_v - xbar_v)^2
//
// restricted to the scenario's box. With rho_v = 0 the variable goes to the
// box corner favored by its cost coefficient. Discrete variables are rounded
// to the nearest in-box integer afterwards. Cuts are not enforced here; the
// penalty term is what steers repeat offenders away from cut regions in this
// model family.
func (p *Problem) LocalSolve(id core.ScenarioID, rho core.RhoMap, xbar core.DecisionVector) (core.DecisionVector, float64, error) {
	sc, ok := p.Scenario(id)
	if !ok {
		return nil, 0, fmt.Errorf("unknown scenario %q", id)
	}
	x := make(core.DecisionVector, len(p.Variables))
	for _, v := range p.Variables {
		iv := sc.Bounds[v.ID]
		coeff := sc.CostCoeffs[v.ID]
		r := rho[v.ID]
		var best float64
		if r > 0 && xbar != nil {
			best = iv.Clamp(xbar[v.ID] - coeff/r)
		} else if coeff >= 0 {
			best = iv.Lo
		} else {
			best = iv.Hi
		}
		if v.Domain.Discrete() {
			best = iv.Clamp(math.Round(best))
		}
		x[v.ID] = best
	}
	return x, sc.Cost(x), nil
}
