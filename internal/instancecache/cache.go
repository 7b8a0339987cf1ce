package instancecache

import (
	"context"
	"fmt"
	"sync"

	"github.com/stochkit/interscenario/pkg/core"
	"github.com/stochkit/interscenario/pkg/solver"
)

// Cache holds one evaluation model per scenario or bundle id. Entries are
// built lazily on first use within a cycle and must be invalidated at the
// start of the next cycle: the fixed-value parameters change between
// candidates within a cycle, so a stale entry would evaluate against the
// wrong decision.
//
// The cache is safe for concurrent Get calls from evaluation workers. Only
// the scenario's own task ever mutates its entry after retrieval.
type Cache struct {
	source solver.ModelSource

	mu      sync.Mutex
	entries map[core.ScenarioID]solver.EvaluationModel
}

// New creates a cache backed by the given model source.
func New(source solver.ModelSource) (*Cache, error) {
	if source == nil {
		return nil, fmt.Errorf("model source cannot be nil")
	}
	return &Cache{
		source:  source,
		entries: make(map[core.ScenarioID]solver.EvaluationModel),
	}, nil
}

// Get returns the cached evaluation model for the scenario, building it on
// first use.
func (c *Cache) Get(ctx context.Context, id core.ScenarioID) (solver.EvaluationModel, error) {
	c.mu.Lock()
	if m, ok := c.entries[id]; ok {
		c.mu.Unlock()
		return m, nil
	}
	c.mu.Unlock()

	// Build outside the lock; model construction may be expensive.
	m, err := c.source.BuildEvaluationModel(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("building evaluation model for %q: %w", id, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[id]; ok {
		return existing, nil
	}
	c.entries[id] = m
	return m, nil
}

// InvalidateAll clears every entry. Called once per cycle by the scheduler
// before any evaluation runs.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[core.ScenarioID]solver.EvaluationModel)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
