package cutlib

import (
	"fmt"
	"math"
	"sort"

	"github.com/stochkit/interscenario/pkg/config"
	"github.com/stochkit/interscenario/pkg/core"
)

// Library filters, thresholds, and distributes the cuts produced by one
// evaluation phase. Feasibility cuts are indexed [scenario][candidate],
// mirroring the evaluation result matrix; nil entries mean the pair produced
// no cut.
type Library struct {
	cfg *config.Config
}

// New creates a cut library.
func New(cfg *config.Config) (*Library, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	return &Library{cfg: cfg}, nil
}

// ScenarioCuts is the per-scenario slice of a distribution plan.
type ScenarioCuts struct {
	Feasibility []core.LinearCut
	Optimality  []core.DisjunctiveCut
}

// CountAboveThreshold returns the number of cuts whose magnitude exceeds the
// minimum-difference threshold. Used by the scheduler's recut decision.
func (l *Library) CountAboveThreshold(cuts [][]*core.FeasibilityCut) int {
	n := 0
	for _, row := range cuts {
		for _, c := range row {
			if c != nil && c.Distance > l.cfg.CutMinDiffThreshold {
				n++
			}
		}
	}
	return n
}

// crossCutoff computes the magnitude above which a cut qualifies for
// all-to-all distribution. The cutoff is a percentile of the ascending sorted
// magnitude list: index min(int((1-fraction)*len), len-1). Fraction 1 selects
// the weakest qualifying cut, distributing everything above the minimum
// threshold. Ties at the boundary are distributed: the comparison against
// the cutoff is inclusive.
func (l *Library) crossCutoff(cuts [][]*core.FeasibilityCut) float64 {
	var magnitudes []float64
	for _, row := range cuts {
		for _, c := range row {
			if c != nil && c.Distance > l.cfg.CutMinDiffThreshold {
				magnitudes = append(magnitudes, c.Distance)
			}
		}
	}
	if len(magnitudes) == 0 {
		return 1
	}
	sort.Float64s(magnitudes)
	idx := int((1 - l.cfg.CrossCutFraction) * float64(len(magnitudes)))
	if idx > len(magnitudes)-1 {
		idx = len(magnitudes) - 1
	}
	return magnitudes[idx]
}

// SelectAndDistribute builds the distribution plan for one cycle.
//
// For each scenario and candidate:
//   - the scenario owns the candidate: every cut generated against that
//     candidate above the minimum threshold is applied (the cuts repair the
//     scenario's own solution)
//   - the candidate is not globally feasible: only cuts above the
//     cross-distribution cutoff are applied; feasibility cuts should not
//     impact candidates already proven feasible everywhere
//
// Optimality cuts are distributed to every scenario indiscriminately.
func (l *Library) SelectAndDistribute(
	cuts [][]*core.FeasibilityCut,
	scenarios []core.ScenarioID,
	candidates []*core.CandidateSolution,
	feasibleObjectives []*float64,
	optimality []core.OptimalityCut,
	vars map[core.VarID]core.VariableInfo,
) map[core.ScenarioID]*ScenarioCuts {
	cutoff := l.crossCutoff(cuts)

	encoded := make([]core.DisjunctiveCut, 0, len(optimality))
	for _, oc := range optimality {
		encoded = append(encoded, EncodeOptimalityCut(oc, vars))
	}

	plan := make(map[core.ScenarioID]*ScenarioCuts, len(scenarios))
	for _, sid := range scenarios {
		sc := &ScenarioCuts{}
		for candID, cand := range candidates {
			owned := cand.OwnedBy(sid)
			if !owned && feasibleObjectives[candID] != nil {
				continue
			}
			for _, row := range cuts {
				c := row[candID]
				if c == nil || c.Distance <= l.cfg.CutMinDiffThreshold {
					continue
				}
				// Cross-distributed cuts must additionally clear the
				// percentile cutoff; the comparison is inclusive so the
				// cut defining the cutoff is itself distributed.
				if !owned && c.Distance < cutoff {
					continue
				}
				if lc, ok := l.BuildLinearCut(c); ok {
					sc.Feasibility = append(sc.Feasibility, lc)
				}
			}
		}
		sc.Optimality = append(sc.Optimality, encoded...)
		plan[sid] = sc
	}
	return plan
}

// BuildLinearCut converts a feasibility cut into its linear inequality
//
//	sum_i 2*s'_i * (x_i - (p_i + s'_i)) >= 0   with s'_i = s_i*(1-epsilon)
//
// over the variables whose separation exceeds epsilon. Returns false when no
// term survives the epsilon filter.
func (l *Library) BuildLinearCut(cut *core.FeasibilityCut) (core.LinearCut, bool) {
	eps := l.cfg.Epsilon
	lc := core.LinearCut{Coeffs: make(map[core.VarID]float64)}
	for id, term := range cut.Terms {
		if math.Abs(term.Separation) <= eps {
			continue
		}
		s := term.Separation * (1 - eps)
		lc.Coeffs[id] = 2 * s
		lc.RHS += 2 * s * (term.FixedValue + s)
	}
	if len(lc.Coeffs) == 0 {
		return core.LinearCut{}, false
	}
	return lc, true
}

// EncodeOptimalityCut builds the big-M disjunctive encoding of a no-good cut.
// For each excluded integer assignment x = v with upper bound U, auxiliary
// non-negative integers b, c and binaries z, y are introduced with
//
//	b + c >= z
//	b <= U*y
//	c <= U*(1-y)
//	x - v = c - b
//
// so z = 1 forces |x - v| >= 1. One aggregate row requires at least one
// integer variable to differ or one binary variable to flip:
//
//	sum(z) + sum(x : v < 0.5) + sum(1-x : v >= 0.5) >= 1
func EncodeOptimalityCut(cut core.OptimalityCut, vars map[core.VarID]core.VariableInfo) core.DisjunctiveCut {
	dc := core.DisjunctiveCut{Candidate: cut.Candidate}

	addAux := func(kind core.AuxKind) int {
		id := len(dc.Aux)
		dc.Aux = append(dc.Aux, core.AuxVar{ID: id, Kind: kind})
		return id
	}

	intIDs := sortedIDs(cut.Integer)
	var disjunction []core.RowTerm
	for _, vid := range intIDs {
		val := cut.Integer[vid]
		upper := vars[vid].Upper

		b := addAux(core.AuxNonNegInt)
		c := addAux(core.AuxNonNegInt)
		z := addAux(core.AuxBinary)
		y := addAux(core.AuxBinary)

		dc.Rows = append(dc.Rows,
			core.CutRow{ // b + c >= z
				Terms: []core.RowTerm{core.AuxTerm(b, 1), core.AuxTerm(c, 1), core.AuxTerm(z, -1)},
				Sense: core.RowGE,
			},
			core.CutRow{ // b <= U*y
				Terms: []core.RowTerm{core.AuxTerm(b, 1), core.AuxTerm(y, -upper)},
				Sense: core.RowLE,
			},
			core.CutRow{ // c <= U*(1-y)
				Terms: []core.RowTerm{core.AuxTerm(c, 1), core.AuxTerm(y, upper)},
				Sense: core.RowLE,
				RHS:   upper,
			},
			core.CutRow{ // x - v = c - b
				Terms: []core.RowTerm{core.VarTerm(vid, 1), core.AuxTerm(c, -1), core.AuxTerm(b, 1)},
				Sense: core.RowEQ,
				RHS:   val,
			},
		)
		disjunction = append(disjunction, core.AuxTerm(z, 1))
	}

	// Binaries near 0 must rise, binaries near 1 must drop.
	rhs := 1.0
	for _, vid := range sortedIDs(cut.Binary) {
		if cut.Binary[vid] < 0.5 {
			disjunction = append(disjunction, core.VarTerm(vid, 1))
		} else {
			disjunction = append(disjunction, core.VarTerm(vid, -1))
			rhs--
		}
	}
	dc.Rows = append(dc.Rows, core.CutRow{Terms: disjunction, Sense: core.RowGE, RHS: rhs})
	return dc
}

func sortedIDs(m map[core.VarID]float64) []core.VarID {
	ids := make([]core.VarID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
