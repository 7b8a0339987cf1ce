package evaluator

import (
	"context"
	"fmt"

	"github.com/stochkit/interscenario/internal/instancecache"
	"github.com/stochkit/interscenario/internal/logging"
	"github.com/stochkit/interscenario/internal/separation"
	"github.com/stochkit/interscenario/pkg/core"
	"github.com/stochkit/interscenario/pkg/solver"
)

// Evaluator evaluates one candidate decision against one scenario: it fixes
// the scenario's evaluation model to the candidate's decision vector, solves,
// and classifies the outcome.
//
//   - acceptable solve: Feasible with the native objective and the duals of
//     the fixing constraints
//   - proven infeasible: the separation problem is solved for a feasibility
//     cut, yielding Infeasible
//   - anything else (limits, errors, failed separation): Unknown, excluded
//     from aggregation
type Evaluator struct {
	cache      *instancecache.Cache
	separation *separation.Solver
	primary    solver.Solver
	fallback   solver.Solver
}

// New creates an evaluator. The fallback solver may be nil, disabling the
// separation retry path.
func New(
	cache *instancecache.Cache,
	sep *separation.Solver,
	primary, fallback solver.Solver,
) (*Evaluator, error) {
	if cache == nil {
		return nil, fmt.Errorf("instance cache cannot be nil")
	}
	if sep == nil {
		return nil, fmt.Errorf("separation solver cannot be nil")
	}
	if primary == nil {
		return nil, fmt.Errorf("primary solver cannot be nil")
	}
	return &Evaluator{
		cache:      cache,
		separation: sep,
		primary:    primary,
		fallback:   fallback,
	}, nil
}

// Evaluate produces the tagged result for one (scenario, candidate) pair.
// Failures degrade to OutcomeUnknown; Evaluate itself returns an error only
// when the evaluation model cannot be obtained.
func (e *Evaluator) Evaluate(
	ctx context.Context,
	scenario core.ScenarioID,
	candidate int,
	decision core.DecisionVector,
) (core.EvaluationResult, error) {
	log := logging.FromContext(ctx)

	model, err := e.cache.Get(ctx, scenario)
	if err != nil {
		return core.EvaluationResult{}, err
	}

	for id, value := range decision {
		model.SetFixedValue(id, value)
	}

	result := core.EvaluationResult{Scenario: scenario, Candidate: candidate}

	res, err := e.primary.Solve(ctx, model, solver.Options{})
	if err != nil {
		log.Error(err, "exception raised solving the evaluation subproblem",
			"scenario", scenario, "candidate", candidate, "solverLog", res.Log)
		result.Outcome = core.OutcomeUnknown
		result.Reason = fmt.Sprintf("evaluation solve: %v", err)
		return result, nil
	}

	if res.Acceptable() {
		result.Outcome = core.OutcomeFeasible
		result.Objective = model.NativeObjectiveValue()
		duals, derr := e.dualValues(ctx, model)
		if derr != nil {
			log.Info("dual values not available",
				"scenario", scenario, "candidate", candidate, "reason", derr.Error())
		} else {
			result.Duals = duals
		}
		return result, nil
	}

	if !res.Termination.ProvenInfeasible() {
		// Ambiguous terminations (iteration limits, unbounded, unknown)
		// carry no feasibility information, so there is nothing to
		// separate from.
		result.Outcome = core.OutcomeUnknown
		result.Reason = fmt.Sprintf("evaluation terminated %s", res.Termination.String())
		return result, nil
	}

	// Proven infeasible: derive a feasibility cut.
	log.V(1).Info("evaluation solve infeasible, separating",
		"scenario", scenario, "candidate", candidate,
		"termination", res.Termination.String())
	cut, serr := e.separation.Separate(ctx, model, e.primary, e.fallback)
	if serr != nil {
		result.Outcome = core.OutcomeUnknown
		result.Reason = fmt.Sprintf("separation: %v", serr)
		return result, nil
	}
	if cut == nil {
		result.Outcome = core.OutcomeUnknown
		result.Reason = fmt.Sprintf("separation failed after evaluation termination %s",
			res.Termination.String())
		return result, nil
	}
	cut.Candidate = candidate
	result.Outcome = core.OutcomeInfeasible
	result.Cut = cut
	return result, nil
}

// dualValues extracts the duals of the fixing constraints. Solvers do not
// report duals while discrete variables are active, so when any remain the
// model is relaxed, re-solved from the incumbent basis, read, and restored.
func (e *Evaluator) dualValues(
	ctx context.Context,
	model solver.EvaluationModel,
) (duals map[core.VarID]float64, err error) {
	if model.HasActiveDiscrete() {
		if err := model.RelaxDiscrete(); err != nil {
			return nil, fmt.Errorf("relaxing discrete domains: %w", err)
		}
		defer func() {
			if uerr := model.UndoRelaxDiscrete(); uerr != nil && err == nil {
				err = fmt.Errorf("restoring discrete domains: %w", uerr)
			}
		}()

		res, serr := e.primary.Solve(ctx, model, solver.Options{WarmStart: true})
		if serr != nil {
			return nil, fmt.Errorf("re-solving with relaxed discrete variables: %w", serr)
		}
		if !res.Acceptable() {
			return nil, fmt.Errorf("re-solve with relaxed discrete variables terminated %s",
				res.Termination.String())
		}
	}

	duals = make(map[core.VarID]float64)
	for _, id := range model.FirstStageVars() {
		d, ok := model.Dual(id)
		if !ok {
			return nil, fmt.Errorf("dual missing for variable %s", id)
		}
		duals[id] = d
	}
	return duals, nil
}
