package separation

import (
	"context"
	"fmt"
	"math"

	"github.com/stochkit/interscenario/internal/logging"
	"github.com/stochkit/interscenario/pkg/config"
	"github.com/stochkit/interscenario/pkg/core"
	"github.com/stochkit/interscenario/pkg/solver"
)

// Solver solves the infeasibility separation problem: given an evaluation
// model whose feasibility-fixed solve failed, minimize the total squared
// violation of the fixing constraints to obtain a feasibility cut.
//
// The model is always restored to its pre-call state on every exit path:
// discrete relaxation undone, the native objective reactivated, and the
// separation variables re-fixed (or re-bounded when variable slack is
// allowed). This holds for solver errors as well.
type Solver struct {
	cfg *config.Config
}

// New creates a separation solver.
func New(cfg *config.Config) (*Solver, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	return &Solver{cfg: cfg}, nil
}

// Separate runs the separation minimization with the primary solver, retrying
// once with the fallback on a non-acceptable result. It returns the cut, or
// nil when both attempts fail without error. Solve errors are returned only
// when no fallback path remains.
func (s *Solver) Separate(
	ctx context.Context,
	model solver.EvaluationModel,
	primary, fallback solver.Solver,
) (cut *core.FeasibilityCut, err error) {
	log := logging.FromContext(ctx)

	if err := model.RelaxDiscrete(); err != nil {
		return nil, fmt.Errorf("relaxing discrete domains: %w", err)
	}
	defer func() {
		if uerr := model.UndoRelaxDiscrete(); uerr != nil && err == nil {
			err = fmt.Errorf("restoring discrete domains: %w", uerr)
		}
	}()

	model.ActivateSeparationObjective()
	defer model.ActivateNativeObjective()

	model.FreeSeparation()
	defer func() {
		if s.cfg.AllowVariableSlack {
			model.BoundSeparation(s.cfg.Epsilon)
		} else {
			model.FixSeparation()
		}
	}()

	cut, err = s.attempt(ctx, model, primary, fallback != nil)
	if cut != nil || err != nil {
		return cut, err
	}
	if fallback == nil {
		return nil, nil
	}

	log.V(1).Info("retrying separation with fallback solver",
		"scenario", model.Scenario(), "solver", fallback.Name())
	return s.attempt(ctx, model, fallback, false)
}

// attempt runs one separation solve. A nil cut with nil error means the
// solver reported a non-acceptable status; the caller decides whether a
// fallback remains.
func (s *Solver) attempt(
	ctx context.Context,
	model solver.EvaluationModel,
	sv solver.Solver,
	haveFallback bool,
) (*core.FeasibilityCut, error) {
	log := logging.FromContext(ctx)

	res, err := sv.Solve(ctx, model, solver.Options{})
	if err != nil {
		log.Error(err, "exception raised solving the separation subproblem",
			"scenario", model.Scenario(), "solver", sv.Name(), "solverLog", res.Log)
		if haveFallback {
			return nil, nil
		}
		return nil, fmt.Errorf("separation solve with %s: %w", sv.Name(), err)
	}

	if !res.Acceptable() {
		if !haveFallback {
			log.Info("solving the cut separation subproblem failed",
				"scenario", model.Scenario(), "solver", sv.Name(),
				"termination", res.Termination.String(), "solverLog", res.Log)
		}
		return nil, nil
	}

	cut := &core.FeasibilityCut{
		Distance: math.Sqrt(model.SeparationObjectiveValue()),
		Terms:    make(map[core.VarID]core.SeparationTerm),
		Scenario: model.Scenario(),
	}
	for _, id := range model.FirstStageVars() {
		cut.Terms[id] = core.SeparationTerm{
			Separation: model.SeparationValue(id),
			FixedValue: model.FixedValue(id),
		}
	}
	return cut, nil
}
