package dispatch

import (
	"context"
	"fmt"

	"github.com/stochkit/interscenario/pkg/core"
)

// Handle identifies a submitted task within a Queue.
type Handle int

// Completion pairs a finished task's handle with its results, one per
// candidate in the task.
type Completion struct {
	Handle  Handle
	Results []core.EvaluationResult
}

// Queue is the task-queue abstraction over which parallel evaluation runs.
// An in-process pool implements it directly; a remote solver manager can be
// adapted to the same three operations.
type Queue interface {
	// Submit enqueues a task and returns its handle.
	Submit(ctx context.Context, t Task) Handle

	// WaitAny blocks until any outstanding task completes and returns it.
	// It fails only when the context is done or nothing is outstanding.
	WaitAny(ctx context.Context) (Completion, error)

	// Outstanding returns the number of submitted but uncollected tasks.
	Outstanding() int
}

// workerQueue is an in-process Queue backed by a fixed set of worker
// goroutines started per batch. A task never splits across workers, so each
// scenario's candidate sequence runs on exactly one goroutine.
type workerQueue struct {
	ev      Evaluator
	workers int

	pending     chan submission
	completions chan Completion
	outstanding int
	next        Handle
}

type submission struct {
	handle Handle
	task   Task
}

// newWorkerQueue starts the workers. The queue is valid for one batch; the
// workers exit when pending is closed and drained.
func newWorkerQueue(ctx context.Context, ev Evaluator, workers, capacity int) *workerQueue {
	q := &workerQueue{
		ev:          ev,
		workers:     workers,
		pending:     make(chan submission, capacity),
		completions: make(chan Completion, capacity),
	}
	for w := 0; w < workers; w++ {
		go func() {
			for s := range q.pending {
				q.completions <- Completion{
					Handle:  s.handle,
					Results: runTask(ctx, s.task, q.ev),
				}
			}
		}()
	}
	return q
}

// Submit implements Queue.
func (q *workerQueue) Submit(_ context.Context, t Task) Handle {
	h := q.next
	q.next++
	q.outstanding++
	q.pending <- submission{handle: h, task: t}
	return h
}

// WaitAny implements Queue.
func (q *workerQueue) WaitAny(ctx context.Context) (Completion, error) {
	if q.outstanding == 0 {
		return Completion{}, fmt.Errorf("no outstanding tasks")
	}
	select {
	case c := <-q.completions:
		q.outstanding--
		return c, nil
	case <-ctx.Done():
		return Completion{}, ctx.Err()
	}
}

// Outstanding implements Queue.
func (q *workerQueue) Outstanding() int {
	return q.outstanding
}

// close releases the workers.
func (q *workerQueue) close() {
	close(q.pending)
}

// WorkerPool executes tasks on a pool of independent workers, collecting
// completions through a wait-for-any loop. The result array ordering is
// deterministic (indexed by task identity) even though completion order is
// not.
type WorkerPool struct {
	workers int
}

// NewWorkerPool creates a pool coordinator.
func NewWorkerPool(workers int) (*WorkerPool, error) {
	if workers < 1 {
		return nil, fmt.Errorf("worker pool requires at least 1 worker, got %d", workers)
	}
	return &WorkerPool{workers: workers}, nil
}

// Run implements Coordinator.
func (p *WorkerPool) Run(ctx context.Context, tasks []Task, ev Evaluator) [][]core.EvaluationResult {
	results := make([][]core.EvaluationResult, len(tasks))
	if len(tasks) == 0 {
		return results
	}

	workers := p.workers
	if workers > len(tasks) {
		workers = len(tasks)
	}
	q := newWorkerQueue(ctx, ev, workers, len(tasks))
	defer q.close()

	handles := make(map[Handle]int, len(tasks))
	for i, t := range tasks {
		handles[q.Submit(ctx, t)] = i
	}

	collected := make([]bool, len(tasks))
	for q.Outstanding() > 0 {
		c, err := q.WaitAny(ctx)
		if err != nil {
			// Cancellation mid-batch: mark every uncollected row Unknown so
			// the result array stays complete.
			for i := range tasks {
				if !collected[i] {
					results[i] = unknownResults(tasks[i], err.Error())
				}
			}
			return results
		}
		slot := handles[c.Handle]
		results[slot] = c.Results
		collected[slot] = true
	}
	return results
}
