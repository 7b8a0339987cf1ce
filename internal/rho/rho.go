package rho

import (
	"fmt"
	"math"

	"github.com/go-logr/logr"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/stochkit/interscenario/pkg/config"
	"github.com/stochkit/interscenario/pkg/core"
)

// Estimator computes updated per-variable coordination prices from the dual
// information collected during evaluation. Prices steer the next outer
// iteration's penalty terms.
//
// For each first-stage variable the estimate is a probability-weighted
// average dual across all (scenario, candidate) pairs that returned one,
// weighted further by each candidate's aggregate ownership probability and
// normalized by the inverse of the observed value spread across candidates
// plus one. The first successful update initializes rho at scale * estimate;
// later updates damp exponentially toward the new estimate.
type Estimator struct {
	cfg *config.Config
	log logr.Logger

	rho        core.RhoMap
	xDeviation map[core.VarID]float64
}

// New creates an estimator.
func New(cfg *config.Config, log logr.Logger) (*Estimator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	return &Estimator{cfg: cfg, log: log}, nil
}

// Rho returns the current price map, nil before the first update.
func (e *Estimator) Rho() core.RhoMap {
	return e.rho
}

// Reset drops all estimator state, including the damping history and the
// frozen value-spread normalization.
func (e *Estimator) Reset() {
	e.rho = nil
	e.xDeviation = nil
}

// Update ingests one cycle's dual matrix (indexed [scenario][candidate], nil
// where no dual was returned) and returns the new price map. Pairs with
// missing duals are excluded from the weighted average, not treated as zero.
// Scenario row order must match the scenarios slice.
func (e *Estimator) Update(
	duals [][]map[core.VarID]float64,
	scenarios []core.ScenarioID,
	probabilities []float64,
	candidates []*core.CandidateSolution,
	variables []core.VariableInfo,
) core.RhoMap {
	probOf := make(map[core.ScenarioID]float64, len(scenarios))
	for i, sid := range scenarios {
		probOf[sid] = probabilities[i]
	}

	// Aggregate ownership probability per candidate: the total probability
	// of all scenarios that reported this candidate as locally optimal.
	solnProb := make([]float64, len(candidates))
	for candID, cand := range candidates {
		for _, owner := range cand.Owners {
			solnProb[candID] += probOf[owner]
		}
	}

	// The value spread is frozen at the first update so the normalization
	// scale stays comparable across cycles.
	if e.xDeviation == nil {
		e.xDeviation = make(map[core.VarID]float64, len(variables))
		for _, v := range variables {
			values := make([]float64, len(candidates))
			for i, cand := range candidates {
				values[i] = cand.Decision[v.ID]
			}
			if len(values) == 0 {
				e.xDeviation[v.ID] = 0
				continue
			}
			e.xDeviation[v.ID] = floats.Max(values) - floats.Min(values)
		}
	}

	weighted := make(core.RhoMap, len(variables))
	for candID := range candidates {
		avgDual := make(map[core.VarID]float64, len(variables))
		pTotal := 0.0
		for scenID, p := range probabilities {
			d := duals[scenID][candID]
			if d == nil {
				continue
			}
			for v, dual := range d {
				avgDual[v] += dual * p
			}
			pTotal += p
		}
		if pTotal > 0 {
			for v := range avgDual {
				avgDual[v] /= pTotal
			}
		}
		for _, v := range variables {
			weighted[v.ID] += solnProb[candID] * avgDual[v.ID] / (e.xDeviation[v.ID] + 1)
		}
	}
	for _, v := range variables {
		weighted[v.ID] = math.Abs(weighted[v.ID])
	}

	e.logDualSummary(duals, variables)

	if e.rho == nil {
		e.log.Info("initializing rho", "variables", len(weighted))
		e.rho = make(core.RhoMap, len(weighted))
		for v, r := range weighted {
			e.rho[v] = e.cfg.RhoScale * r
		}
	} else {
		for v, r := range weighted {
			e.rho[v] += e.cfg.RhoDamping * (e.cfg.RhoScale*r - e.rho[v])
		}
	}
	return e.rho.Clone()
}

// logDualSummary reports per-variable dual statistics at verbosity 1. This is
// diagnostic output only; nothing downstream consumes it.
func (e *Estimator) logDualSummary(duals [][]map[core.VarID]float64, variables []core.VariableInfo) {
	log := e.log.V(1)
	if !log.Enabled() {
		return
	}
	for _, v := range variables {
		var samples []float64
		for _, row := range duals {
			for _, d := range row {
				if d == nil {
					continue
				}
				if dual, ok := d[v.ID]; ok {
					samples = append(samples, dual)
				}
			}
		}
		if len(samples) == 0 {
			continue
		}
		mean, std := stat.MeanStdDev(samples, nil)
		log.Info("dual summary",
			"variable", v.ID, "samples", len(samples),
			"mean", mean, "stddev", std,
			"min", floats.Min(samples), "max", floats.Max(samples))
	}
}
