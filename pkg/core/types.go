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

import (
	"fmt"
	"sort"
	"strings"
)

// VarID identifies a first-stage decision variable. First-stage variables are
// non-anticipative: their values must agree across all scenarios at convergence.
type VarID string

// ScenarioID identifies a scenario or a bundle of scenarios solved jointly.
type ScenarioID string

// Domain is the kind of a variable's domain.
type Domain int

const (
	// Continuous variables take any real value within their bounds.
	Continuous Domain = iota

	// Binary variables take values in {0, 1}.
	Binary

	// Integer variables take integer values within their bounds.
	Integer
)

// String returns the domain kind name.
func (d Domain) String() string {
	switch d {
	case Continuous:
		return "continuous"
	case Binary:
		return "binary"
	case Integer:
		return "integer"
	default:
		return fmt.Sprintf("domain(%d)", int(d))
	}
}

// Discrete reports whether the domain is binary or integer.
func (d Domain) Discrete() bool {
	return d == Binary || d == Integer
}

// ObjectiveSense is the optimization direction of the outer problem.
type ObjectiveSense int

const (
	Minimize ObjectiveSense = 1
	Maximize ObjectiveSense = -1
)

// ToMin returns the multiplier that converts an objective value in the
// user's sense into an internal minimization value.
func (s ObjectiveSense) ToMin() float64 {
	if s == Maximize {
		return -1
	}
	return 1
}

// VariableInfo describes one first-stage variable as reported by the outer
// driver: its domain kind, the current running average across scenarios
// ("xbar"), an upper bound for big-M encodings, and whether the variable has
// been fixed by the outer loop.
type VariableInfo struct {
	ID     VarID
	Domain Domain

	// Xbar is the probability-weighted running average of this variable
	// across scenarios, maintained by the outer driver.
	Xbar float64

	// Upper is the variable's upper bound. Required for the big-M encoding
	// of optimality cuts on integer variables.
	Upper float64

	// Fixed marks variables the outer loop has pinned; fixed variables are
	// skipped when building no-good cuts.
	Fixed bool
}

// DecisionVector maps first-stage variable ids to values. Vectors reported by
// scenario solves are treated as immutable once registered.
type DecisionVector map[VarID]float64

// Equal reports component-wise exact equality with other. Decision vectors
// originate from solver output, not from noisy measurement, so no tolerance
// is applied.
func (v DecisionVector) Equal(other DecisionVector) bool {
	if len(v) != len(other) {
		return false
	}
	for id, val := range v {
		o, ok := other[id]
		if !ok || o != val {
			return false
		}
	}
	return true
}

// Clone returns a copy of the vector.
func (v DecisionVector) Clone() DecisionVector {
	out := make(DecisionVector, len(v))
	for id, val := range v {
		out[id] = val
	}
	return out
}

// SortedIDs returns the variable ids in lexicographic order, for
// deterministic iteration and reporting.
func (v DecisionVector) SortedIDs() []VarID {
	ids := make([]VarID, 0, len(v))
	for id := range v {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// String renders the vector with sorted keys.
func (v DecisionVector) String() string {
	parts := make([]string, 0, len(v))
	for _, id := range v.SortedIDs() {
		parts = append(parts, fmt.Sprintf("%s=%g", id, v[id]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// CandidateSolution is a distinct first-stage decision vector observed from at
// least one scenario's local solve, together with the scenarios that reported
// it. The owner list preserves registration order.
type CandidateSolution struct {
	// Decision is the candidate's decision vector. Immutable after creation.
	Decision DecisionVector

	// Owners lists the scenarios whose local solve produced this vector,
	// in registration order.
	Owners []ScenarioID
}

// OwnedBy reports whether the given scenario reported this candidate.
func (c *CandidateSolution) OwnedBy(id ScenarioID) bool {
	for _, o := range c.Owners {
		if o == id {
			return true
		}
	}
	return false
}
