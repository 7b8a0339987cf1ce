package boxmodel

import (
	"math"

	"github.com/stochkit/interscenario/pkg/core"
	"github.com/stochkit/interscenario/pkg/solver"
)

type sepState int

const (
	sepFixed sepState = iota
	sepFree
	sepBounded
)

// Model is the box problem's evaluation model: the scenario's interval
// constraints and affine cost, instrumented with a fixed-value parameter and a
// separation variable per first-stage variable. All solves are analytic, so
// the model also carries the objective values of the last solve.
type Model struct {
	scenario Scenario
	vars     []core.VariableInfo

	fixed map[core.VarID]float64
	sep   map[core.VarID]float64

	sepState  sepState
	sepEps    float64
	sepObjOn  bool
	relaxed   bool

	linear      []core.LinearCut
	disjunctive []core.DisjunctiveCut

	nativeObj float64
	sepObj    float64
}

var _ solver.EvaluationModel = (*Model)(nil)

func newModel(sc Scenario, vars []core.VariableInfo) *Model {
	m := &Model{
		scenario: sc,
		vars:     vars,
		fixed:    make(map[core.VarID]float64, len(vars)),
		sep:      make(map[core.VarID]float64, len(vars)),
	}
	for _, v := range vars {
		m.fixed[v.ID] = v.Xbar
	}
	return m
}

func (m *Model) Scenario() core.ScenarioID { return m.scenario.ID }

func (m *Model) FirstStageVars() []core.VarID {
	ids := make([]core.VarID, len(m.vars))
	for i, v := range m.vars {
		ids[i] = v.ID
	}
	return ids
}

func (m *Model) SetFixedValue(id core.VarID, value float64) { m.fixed[id] = value }
func (m *Model) FixedValue(id core.VarID) float64           { return m.fixed[id] }
func (m *Model) SeparationValue(id core.VarID) float64      { return m.sep[id] }

func (m *Model) FixSeparation() {
	m.sepState = sepFixed
	for id := range m.sep {
		m.sep[id] = 0
	}
}

func (m *Model) FreeSeparation() { m.sepState = sepFree }

func (m *Model) BoundSeparation(epsilon float64) {
	m.sepState = sepBounded
	m.sepEps = epsilon
}

func (m *Model) ActivateNativeObjective()     { m.sepObjOn = false }
func (m *Model) ActivateSeparationObjective() { m.sepObjOn = true }

func (m *Model) NativeObjectiveValue() float64     { return m.nativeObj }
func (m *Model) SeparationObjectiveValue() float64 { return m.sepObj }

func (m *Model) HasActiveDiscrete() bool {
	if m.relaxed {
		return false
	}
	for _, v := range m.vars {
		if v.Domain.Discrete() {
			return true
		}
	}
	return false
}

func (m *Model) RelaxDiscrete() error {
	m.relaxed = true
	return nil
}

func (m *Model) UndoRelaxDiscrete() error {
	m.relaxed = false
	return nil
}

// Dual returns the fixing-constraint dual: with the decision pinned, the
// marginal cost of moving the fixed value is the cost coefficient. Only
// available while no discrete variable is active.
func (m *Model) Dual(id core.VarID) (float64, bool) {
	if m.HasActiveDiscrete() {
		return 0, false
	}
	return m.scenario.CostCoeffs[id], true
}

func (m *Model) AddLinearCut(cut core.LinearCut) error {
	m.linear = append(m.linear, cut)
	return nil
}

func (m *Model) AddDisjunctiveCut(cut core.DisjunctiveCut) error {
	m.disjunctive = append(m.disjunctive, cut)
	return nil
}

// allowedSlack is the per-variable slack budget implied by the separation
// variable state.
func (m *Model) allowedSlack() float64 {
	if m.sepState == sepBounded {
		return m.sepEps
	}
	return 0
}

// effectivePoint returns the decision the native constraints see: the fixed
// values nudged toward the box by at most the allowed slack.
func (m *Model) effectivePoint() core.DecisionVector {
	x := make(core.DecisionVector, len(m.vars))
	slack := m.allowedSlack()
	for _, v := range m.vars {
		f := m.fixed[v.ID]
		target := m.scenario.Bounds[v.ID].Clamp(f)
		shift := target - f
		if math.Abs(shift) > slack {
			shift = math.Copysign(slack, shift)
		}
		x[v.ID] = f + shift
	}
	return x
}

const feasTol = 1e-9

// feasibleAt checks the box, the linear cuts, and the disjunctive cuts at a
// point.
func (m *Model) feasibleAt(x core.DecisionVector) bool {
	for _, v := range m.vars {
		if !m.scenario.Bounds[v.ID].Contains(x[v.ID], feasTol) {
			return false
		}
	}
	for _, cut := range m.linear {
		lhs := 0.0
		for id, c := range cut.Coeffs {
			lhs += c * x[id]
		}
		if lhs < cut.RHS-feasTol {
			return false
		}
	}
	for _, cut := range m.disjunctive {
		if !satisfiesDisjunctive(cut, x) {
			return false
		}
	}
	return true
}

// satisfiesDisjunctive checks the no-good semantics of an encoded optimality
// cut directly: the point must differ from the excluded assignment on at
// least one discrete variable. The excluded integer values are recovered from
// the linking equality rows, the excluded binary values from the sign of the
// aggregate row's model-variable terms.
func satisfiesDisjunctive(cut core.DisjunctiveCut, x core.DecisionVector) bool {
	for _, row := range cut.Rows {
		if row.Sense == core.RowEQ {
			for _, t := range row.Terms {
				if t.Aux < 0 && math.Abs(x[t.Var]-row.RHS) >= 1-feasTol {
					return true
				}
			}
			continue
		}
		if row.Sense != core.RowGE {
			continue
		}
		for _, t := range row.Terms {
			if t.Aux >= 0 {
				continue
			}
			excluded := 0.0
			if t.Coeff < 0 {
				excluded = 1
			}
			if math.Abs(x[t.Var]-excluded) >= 0.5 {
				return true
			}
		}
	}
	return false
}

// separate solves min sum s^2 subject to fixed + s landing in the feasible
// region. The box projection is exact; when the projected point still
// violates a linear cut, the point is additionally projected onto the most
// violated cut's hyperplane.
func (m *Model) separate() {
	x := make(core.DecisionVector, len(m.vars))
	for _, v := range m.vars {
		x[v.ID] = m.scenario.Bounds[v.ID].Clamp(m.fixed[v.ID])
	}

	var worst *core.LinearCut
	worstGap := feasTol
	for i := range m.linear {
		cut := &m.linear[i]
		lhs := 0.0
		for id, c := range cut.Coeffs {
			lhs += c * x[id]
		}
		if gap := cut.RHS - lhs; gap > worstGap {
			worst, worstGap = cut, gap
		}
	}
	if worst != nil {
		norm2 := 0.0
		for _, c := range worst.Coeffs {
			norm2 += c * c
		}
		if norm2 > 0 {
			for id, c := range worst.Coeffs {
				x[id] += c * worstGap / norm2
			}
		}
	}

	m.sepObj = 0
	for _, v := range m.vars {
		s := x[v.ID] - m.fixed[v.ID]
		m.sep[v.ID] = s
		m.sepObj += s * s
	}
}
