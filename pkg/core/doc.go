// Package core provides the fundamental data structures for the inter-scenario
// coordination engine.
//
// This package contains the domain models that represent the entities and
// relationships exchanged between the engine and the outer progressive-hedging
// driver:
//
//   - DecisionVector / CandidateSolution: first-stage decisions and their owners
//   - VariableInfo: domain kind, running average, and bounds per variable
//   - EvaluationResult: the tagged outcome of one (scenario, candidate) solve
//   - FeasibilityCut / LinearCut: violation certificates and their linear form
//   - OptimalityCut / DisjunctiveCut: no-good assignments and their big-M encoding
//   - Incumbent: the best globally-feasible candidate found so far
//   - RhoMap: per-variable coordination prices
//
// These types form the foundation for the engine packages under internal/ and
// are the vocabulary of the driver-facing API.
//
// The core package is designed to be:
//   - Immutable where possible (decision vectors are never mutated after registration)
//   - Type-safe with strong domain boundaries
//   - Independent of any model representation or solver (pure domain data)
package core
