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

package core

// EvaluationOutcome tags the result of evaluating one (scenario, candidate)
// pair.
type EvaluationOutcome int

const (
	// OutcomeUnknown marks pairs whose evaluation failed and whose
	// separation fallback also failed. Unknown pairs are excluded from
	// objective and dual aggregation.
	OutcomeUnknown EvaluationOutcome = iota

	// OutcomeFeasible marks pairs where the fixed-decision solve succeeded.
	OutcomeFeasible

	// OutcomeInfeasible marks pairs where the fixed-decision solve failed
	// and the separation problem produced a feasibility cut.
	OutcomeInfeasible
)

// String returns the outcome name.
func (o EvaluationOutcome) String() string {
	switch o {
	case OutcomeFeasible:
		return "feasible"
	case OutcomeInfeasible:
		return "infeasible"
	default:
		return "unknown"
	}
}

// SeparationTerm is the per-variable component of a feasibility cut: the
// separation (slack) value found by the separation solve and the fixed value
// the variable was held at.
type SeparationTerm struct {
	Separation float64
	FixedValue float64
}

// FeasibilityCut quantifies and localizes the infeasibility of sharing one
// candidate decision with one scenario. Distance is the Euclidean norm of the
// separation values (sqrt of the separation objective); a cut is only
// distributed when Distance exceeds the configured minimum threshold.
type FeasibilityCut struct {
	Distance  float64
	Terms     map[VarID]SeparationTerm
	Scenario  ScenarioID
	Candidate int
}

// EvaluationResult is the tagged outcome for a (scenario, candidate) pair.
// Exactly one result exists per pair per invocation. Objective and Duals are
// meaningful only for OutcomeFeasible; Cut only for OutcomeInfeasible; Reason
// only for OutcomeUnknown.
type EvaluationResult struct {
	Scenario  ScenarioID
	Candidate int

	Outcome   EvaluationOutcome
	Objective float64

	// Duals maps each first-stage variable to the dual multiplier of its
	// fixing constraint. Nil when duals could not be obtained; a feasible
	// result with nil duals is still feasible.
	Duals map[VarID]float64

	Cut    *FeasibilityCut
	Reason string
}

// Incumbent is the best candidate solution proven globally feasible so far.
// The objective is stored in the user's sense; monotonicity is enforced on
// the sense-adjusted value.
type Incumbent struct {
	Objective float64
	Decision  DecisionVector
	Owners    []ScenarioID

	// Index is the candidate's position in the registry at the cycle that
	// produced this incumbent.
	Index int
}

// RhoMap maps first-stage variable ids to non-negative coordination prices
// installed as penalty weights for the next outer iteration.
type RhoMap map[VarID]float64

// Clone returns a copy of the map.
func (r RhoMap) Clone() RhoMap {
	out := make(RhoMap, len(r))
	for id, v := range r {
		out[id] = v
	}
	return out
}
