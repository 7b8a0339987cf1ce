// Package solver defines the narrow contracts through which the coordination
// engine consumes external optimization machinery.
//
// The engine never implements LP/MIP/NLP algorithms itself. It drives models
// supplied by the outer driver through two interfaces:
//
//   - Solver: run a solve against a model's active objective and report a
//     Status / TerminationCondition pair
//   - EvaluationModel: a per-scenario clone of the native subproblem,
//     instrumented with fixed-value parameters and separation variables
//
// Termination conditions mirror the conventional solver taxonomy: the
// acceptable set is {optimal, globallyOptimal, locallyOptimal}, the proven
// infeasible set is {infeasible, invalidProblem}. Everything else is treated
// as non-optimal and routed through the separation fallback.
//
// Example usage:
//
//	model, err := source.BuildEvaluationModel(ctx, scenarioID)
//	if err != nil {
//	    return err
//	}
//	model.SetFixedValue("x1", 1)
//	res, err := primary.Solve(ctx, model, solver.Options{})
//	if err == nil && res.Acceptable() {
//	    obj := model.NativeObjectiveValue()
//	    ...
//	}
//
// Implementations may be in-process or sit behind a remote task queue; the
// dispatch package handles either placement.
package solver
