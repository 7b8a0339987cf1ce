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

package solver

import (
	"context"

	"github.com/stochkit/interscenario/pkg/core"
)

// Status is the solver-reported status of a solve call.
type Status int

const (
	StatusOK Status = iota
	StatusWarning
	StatusError
	StatusAborted
)

// TerminationCondition classifies how a solve terminated.
type TerminationCondition int

const (
	TerminationUnknown TerminationCondition = iota
	TerminationOptimal
	TerminationGloballyOptimal
	TerminationLocallyOptimal
	TerminationInfeasible
	TerminationInvalidProblem
	TerminationUnbounded
	TerminationMaxIterations
)

// String returns the termination condition name.
func (t TerminationCondition) String() string {
	switch t {
	case TerminationOptimal:
		return "optimal"
	case TerminationGloballyOptimal:
		return "globallyOptimal"
	case TerminationLocallyOptimal:
		return "locallyOptimal"
	case TerminationInfeasible:
		return "infeasible"
	case TerminationInvalidProblem:
		return "invalidProblem"
	case TerminationUnbounded:
		return "unbounded"
	case TerminationMaxIterations:
		return "maxIterations"
	default:
		return "unknown"
	}
}

// Acceptable reports whether the termination condition counts as a successful
// solve: optimal, globally optimal, or locally optimal.
func (t TerminationCondition) Acceptable() bool {
	switch t {
	case TerminationOptimal, TerminationGloballyOptimal, TerminationLocallyOptimal:
		return true
	default:
		return false
	}
}

// ProvenInfeasible reports whether the termination condition proves the
// problem has no feasible point.
func (t TerminationCondition) ProvenInfeasible() bool {
	return t == TerminationInfeasible || t == TerminationInvalidProblem
}

// Result is the outcome of one solve call.
type Result struct {
	Status      Status
	Termination TerminationCondition

	// Log holds the solver's captured output. Retained so that failure
	// paths can include the solver log in diagnostics.
	Log string
}

// Acceptable reports whether the solve succeeded with an acceptable
// termination condition.
func (r Result) Acceptable() bool {
	return r.Status == StatusOK && r.Termination.Acceptable()
}

// Options controls a single solve call.
type Options struct {
	// WarmStart requests that the solver start from the model's current
	// variable values.
	WarmStart bool
}

// Solver solves an evaluation model. Implementations may run in-process or
// behind an RPC boundary; a call either returns a Result or an error when the
// solve itself could not be carried out (crash, I/O failure).
type Solver interface {
	// Name identifies the solver for logging.
	Name() string

	// Solve runs the solver against the model's currently active objective
	// and constraint state.
	Solve(ctx context.Context, model EvaluationModel, opts Options) (Result, error)
}

// EvaluationModel is the engine's handle on a per-scenario evaluation model:
// a clone of the scenario's native subproblem instrumented with one
// fixed-value parameter and one separation variable per first-stage variable,
// linked by the soft equality
//
//	fixed_value + separation - native_variable = 0
//
// The native objective is set aside and a deactivated separation objective
// (sum of squared separation terms) is installed next to it. The model
// representation and expression system live outside this engine; the engine
// only drives the model through this interface.
type EvaluationModel interface {
	// Scenario returns the owning scenario or bundle id.
	Scenario() core.ScenarioID

	// FirstStageVars returns the ids of all first-stage variables.
	FirstStageVars() []core.VarID

	// SetFixedValue sets the fixed-value parameter for one variable.
	SetFixedValue(id core.VarID, value float64)

	// FixedValue returns the current fixed-value parameter.
	FixedValue(id core.VarID) float64

	// SeparationValue returns the value of the separation variable after a
	// separation solve.
	SeparationValue(id core.VarID) float64

	// FixSeparation pins every separation variable to zero (the normal,
	// feasibility-fixed evaluation state).
	FixSeparation()

	// FreeSeparation removes all bounds from the separation variables so a
	// separation solve can measure violation.
	FreeSeparation()

	// BoundSeparation bounds every separation variable to [-epsilon, epsilon].
	// Used instead of FixSeparation when variable slack is allowed.
	BoundSeparation(epsilon float64)

	// ActivateNativeObjective activates the scenario's original objective
	// and deactivates the separation objective.
	ActivateNativeObjective()

	// ActivateSeparationObjective activates the separation objective and
	// deactivates the native objective.
	ActivateSeparationObjective()

	// NativeObjectiveValue returns the native objective value at the
	// current solution.
	NativeObjectiveValue() float64

	// SeparationObjectiveValue returns the separation objective value (the
	// total squared violation) at the current solution.
	SeparationObjectiveValue() float64

	// HasActiveDiscrete reports whether any discrete variable is still
	// active (not relaxed). Duals are unavailable while discrete variables
	// are active.
	HasActiveDiscrete() bool

	// RelaxDiscrete relaxes all discrete domains to their continuous hulls.
	RelaxDiscrete() error

	// UndoRelaxDiscrete restores the discrete domains.
	UndoRelaxDiscrete() error

	// Dual returns the dual multiplier of the fixing constraint for the
	// given variable, and whether it is available.
	Dual(id core.VarID) (float64, bool)

	// AddLinearCut appends a linear feasibility cut to the model's cut list.
	AddLinearCut(cut core.LinearCut) error

	// AddDisjunctiveCut appends an encoded optimality cut, allocating its
	// auxiliary variables on the model.
	AddDisjunctiveCut(cut core.DisjunctiveCut) error
}

// ModelSource builds evaluation models. The outer driver supplies an
// implementation that clones the scenario's native subproblem and installs
// the fixing apparatus described on EvaluationModel.
type ModelSource interface {
	BuildEvaluationModel(ctx context.Context, id core.ScenarioID) (EvaluationModel, error)
}

// CutReceiver accepts cuts for injection into a scenario's native subproblem
// before its next outer solve. The driver implements this on its scenario
// models.
type CutReceiver interface {
	AddLinearCut(id core.ScenarioID, cut core.LinearCut) error
	AddDisjunctiveCut(id core.ScenarioID, cut core.DisjunctiveCut) error
}
