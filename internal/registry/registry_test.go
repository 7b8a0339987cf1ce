package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stochkit/interscenario/pkg/core"
)

func TestRegisterDeduplicates(t *testing.T) {
	r := New()
	r.Register("s1", core.DecisionVector{"x1": 1, "x2": 0})
	r.Register("s2", core.DecisionVector{"x1": 1, "x2": 0})
	r.Register("s3", core.DecisionVector{"x1": 0, "x2": 1})

	require.Equal(t, 2, r.Len())
	cands := r.Candidates()

	assert.Equal(t, []core.ScenarioID{"s1", "s2"}, cands[0].Owners)
	assert.Equal(t, []core.ScenarioID{"s3"}, cands[1].Owners)
	assert.True(t, cands[0].Decision.Equal(core.DecisionVector{"x1": 1, "x2": 0}))
	assert.True(t, cands[1].Decision.Equal(core.DecisionVector{"x1": 0, "x2": 1}))
}

func TestRegisterExactEquality(t *testing.T) {
	// Nearly-equal vectors stay distinct candidates; dedup applies no
	// tolerance.
	r := New()
	r.Register("s1", core.DecisionVector{"x1": 1})
	r.Register("s2", core.DecisionVector{"x1": 1 + 1e-12})

	assert.Equal(t, 2, r.Len())
}

func TestRegisterClonesDecision(t *testing.T) {
	r := New()
	reported := core.DecisionVector{"x1": 1}
	r.Register("s1", reported)

	reported["x1"] = 7
	assert.Equal(t, 1.0, r.Candidates()[0].Decision["x1"],
		"registry must hold its own copy of the reported vector")
}

func TestReset(t *testing.T) {
	r := New()
	r.Register("s1", core.DecisionVector{"x1": 1})
	r.Reset()

	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.Candidates())
}
