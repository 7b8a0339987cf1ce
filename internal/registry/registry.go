package registry

import (
	"github.com/stochkit/interscenario/pkg/core"
)

// SolutionRegistry deduplicates first-stage decision vectors reported by
// scenarios into candidate solutions with ownership lists. Candidate order is
// insertion order and serves as the positional index for all per-candidate
// result arrays built later in the cycle.
//
// The registry has no removal operation; it is rebuilt from scratch at the
// start of every coordination cycle.
type SolutionRegistry struct {
	candidates []*core.CandidateSolution
}

// New returns an empty registry.
func New() *SolutionRegistry {
	return &SolutionRegistry{}
}

// Register records the decision vector reported by one scenario. Vectors are
// compared component-wise with exact equality: a match extends the existing
// candidate's ownership list, otherwise a new candidate is appended.
func (r *SolutionRegistry) Register(id core.ScenarioID, decision core.DecisionVector) {
	for _, c := range r.candidates {
		if c.Decision.Equal(decision) {
			c.Owners = append(c.Owners, id)
			return
		}
	}
	r.candidates = append(r.candidates, &core.CandidateSolution{
		Decision: decision.Clone(),
		Owners:   []core.ScenarioID{id},
	})
}

// Candidates returns the candidate list in insertion order. The slice is the
// registry's own; callers must not mutate it.
func (r *SolutionRegistry) Candidates() []*core.CandidateSolution {
	return r.candidates
}

// Len returns the number of distinct candidates.
func (r *SolutionRegistry) Len() int {
	return len(r.candidates)
}

// Reset drops all candidates.
func (r *SolutionRegistry) Reset() {
	r.candidates = nil
}
