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

// LinearCut is a linear inequality over first-stage variables:
//
//	sum_i Coeffs[i] * x_i >= RHS
//
// Feasibility cuts are delivered to scenario models in this form.
type LinearCut struct {
	Coeffs map[VarID]float64
	RHS    float64
}

// OptimalityCut is a discrete-domain assignment excluding one specific
// candidate. It is valid only when every free first-stage variable has a
// discrete domain; continuous domains cannot be excluded by a no-good cut.
type OptimalityCut struct {
	// Binary holds the excluded values of binary variables.
	Binary map[VarID]float64

	// Integer holds the excluded values of general integer variables.
	Integer map[VarID]float64

	// Candidate is the registry index of the excluded candidate.
	Candidate int
}

// AuxKind is the domain of an auxiliary variable introduced by the big-M
// encoding of an optimality cut.
type AuxKind int

const (
	AuxNonNegInt AuxKind = iota
	AuxBinary
)

// AuxVar declares one auxiliary variable of an encoded cut. IDs are local to
// the enclosing DisjunctiveCut.
type AuxVar struct {
	ID   int
	Kind AuxKind
}

// RowTerm is one linear term of an encoded cut row. Exactly one of Var or Aux
// is used: Aux < 0 means the term references the model variable Var, otherwise
// it references the auxiliary variable with that local id.
type RowTerm struct {
	Var   VarID
	Aux   int
	Coeff float64
}

// VarTerm builds a term over a model variable.
func VarTerm(v VarID, coeff float64) RowTerm {
	return RowTerm{Var: v, Aux: -1, Coeff: coeff}
}

// AuxTerm builds a term over an auxiliary variable.
func AuxTerm(id int, coeff float64) RowTerm {
	return RowTerm{Aux: id, Coeff: coeff}
}

// RowSense is the comparison sense of an encoded cut row.
type RowSense int

const (
	RowGE RowSense = iota
	RowLE
	RowEQ
)

// CutRow is one linear constraint of an encoded optimality cut:
//
//	sum(Terms) Sense RHS
type CutRow struct {
	Terms []RowTerm
	Sense RowSense
	RHS   float64
}

// DisjunctiveCut is the big-M mixed-integer encoding of one optimality cut:
// auxiliary variable declarations plus the constraint rows that force at
// least one variable to differ from the excluded assignment.
type DisjunctiveCut struct {
	Aux  []AuxVar
	Rows []CutRow

	// Candidate is the registry index of the excluded candidate.
	Candidate int
}
