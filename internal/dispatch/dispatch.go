package dispatch

import (
	"context"
	"fmt"

	"github.com/stochkit/interscenario/pkg/config"
	"github.com/stochkit/interscenario/pkg/core"
)

// Candidate is one candidate decision to evaluate against a task's scenario.
type Candidate struct {
	Index    int
	Decision core.DecisionVector
}

// Task is one scenario's evaluation unit: every candidate decision the
// scenario does not own, evaluated sequentially against the scenario's cached
// model. Tasks are independent of each other, but the candidates inside one
// task are not: they share the scenario's evaluation model, whose fixed-value
// parameters change between candidates. Grouping by scenario keeps that model
// single-writer under parallel dispatch.
type Task struct {
	Scenario   core.ScenarioID
	Candidates []Candidate
}

// Evaluator runs one (scenario, candidate) pair. A failure degrades to an
// OutcomeUnknown result; the returned error is reserved for infrastructure
// faults (e.g. the evaluation model cannot be built), which are likewise
// downgraded rather than aborting the batch.
type Evaluator interface {
	Evaluate(ctx context.Context, scenario core.ScenarioID, candidate int, decision core.DecisionVector) (core.EvaluationResult, error)
}

// Coordinator executes a batch of evaluation tasks. results[i][j] always
// holds the result of tasks[i].Candidates[j], written exactly once,
// regardless of completion order. A single pair's failure never aborts
// collection of the remaining work.
type Coordinator interface {
	Run(ctx context.Context, tasks []Task, ev Evaluator) [][]core.EvaluationResult
}

// New is a factory that creates a Coordinator for the configured dispatch
// mode.
func New(cfg *config.Config) (Coordinator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	switch cfg.Dispatch {
	case config.DispatchSynchronous:
		return &Synchronous{}, nil
	case config.DispatchWorkerPool:
		return NewWorkerPool(cfg.Workers)
	default:
		return nil, fmt.Errorf("unsupported dispatch mode: %q", cfg.Dispatch)
	}
}

// Synchronous runs tasks in submission order in the calling goroutine.
type Synchronous struct{}

// Run implements Coordinator.
func (s *Synchronous) Run(ctx context.Context, tasks []Task, ev Evaluator) [][]core.EvaluationResult {
	results := make([][]core.EvaluationResult, len(tasks))
	for i, t := range tasks {
		results[i] = runTask(ctx, t, ev)
	}
	return results
}

// runTask evaluates one scenario's candidates in order, converting
// infrastructure errors into OutcomeUnknown results so the batch always
// completes.
func runTask(ctx context.Context, t Task, ev Evaluator) []core.EvaluationResult {
	out := make([]core.EvaluationResult, len(t.Candidates))
	for j, c := range t.Candidates {
		res, err := ev.Evaluate(ctx, t.Scenario, c.Index, c.Decision)
		if err != nil {
			res = core.EvaluationResult{
				Scenario:  t.Scenario,
				Candidate: c.Index,
				Outcome:   core.OutcomeUnknown,
				Reason:    err.Error(),
			}
		}
		out[j] = res
	}
	return out
}

// unknownResults fills a task's result row when its evaluations never ran.
func unknownResults(t Task, reason string) []core.EvaluationResult {
	out := make([]core.EvaluationResult, len(t.Candidates))
	for j, c := range t.Candidates {
		out[j] = core.EvaluationResult{
			Scenario:  t.Scenario,
			Candidate: c.Index,
			Outcome:   core.OutcomeUnknown,
			Reason:    reason,
		}
	}
	return out
}
