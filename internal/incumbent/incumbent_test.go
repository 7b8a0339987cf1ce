package incumbent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stochkit/interscenario/internal/logging"
	"github.com/stochkit/interscenario/pkg/core"
)

func ptr(v float64) *float64 { return &v }

var binaryVars = []core.VariableInfo{
	{ID: "x1", Domain: core.Binary, Upper: 1},
	{ID: "x2", Domain: core.Binary, Upper: 1},
}

func candidates() []*core.CandidateSolution {
	return []*core.CandidateSolution{
		{Decision: core.DecisionVector{"x1": 1, "x2": 0}, Owners: []core.ScenarioID{"s1", "s2"}},
		{Decision: core.DecisionVector{"x1": 0, "x2": 1}, Owners: []core.ScenarioID{"s3"}},
	}
}

func TestUpdateSelectsBestFeasible(t *testing.T) {
	tr := New(core.Minimize, logging.NewTestLogger())

	// Candidate 0: 0.6*4 + 0.4*6 = 4.8; candidate 1: 0.6*7 + 0.4*3 = 5.4.
	objectives := [][]*float64{
		{ptr(4.0), ptr(7.0)},
		{ptr(6.0), ptr(3.0)},
	}
	ev, err := tr.Update(objectives, []float64{0.6, 0.4}, candidates(), binaryVars)
	require.NoError(t, err)

	assert.True(t, ev.Improved)
	require.NotNil(t, tr.Incumbent())
	assert.InDelta(t, 4.8, tr.Incumbent().Objective, 1e-9)
	assert.Equal(t, 0, tr.Incumbent().Index)
	assert.Equal(t, []core.ScenarioID{"s1", "s2"}, tr.Incumbent().Owners)

	require.Len(t, ev.FeasibleObjectives, 2)
	assert.InDelta(t, 4.8, *ev.FeasibleObjectives[0], 1e-9)
	assert.InDelta(t, 5.4, *ev.FeasibleObjectives[1], 1e-9)
}

func TestUpdateMissingContributionExcludes(t *testing.T) {
	tr := New(core.Minimize, logging.NewTestLogger())

	// Candidate 0 is missing scenario s2's contribution: excluded even
	// though its known part looks better.
	objectives := [][]*float64{
		{ptr(1.0), ptr(7.0)},
		{nil, ptr(3.0)},
	}
	ev, err := tr.Update(objectives, []float64{0.5, 0.5}, candidates(), binaryVars)
	require.NoError(t, err)

	assert.Nil(t, ev.FeasibleObjectives[0])
	require.NotNil(t, tr.Incumbent())
	assert.Equal(t, 1, tr.Incumbent().Index)
}

func TestUpdateStrictImprovementOnly(t *testing.T) {
	tr := New(core.Minimize, logging.NewTestLogger())

	first := [][]*float64{{ptr(4.0), nil}}
	_, err := tr.Update(first, []float64{1}, candidates(), binaryVars)
	require.NoError(t, err)
	require.NotNil(t, tr.Incumbent())

	// An equal objective must not replace the incumbent.
	ev, err := tr.Update([][]*float64{{nil, ptr(4.0)}}, []float64{1}, candidates(), binaryVars)
	require.NoError(t, err)
	assert.False(t, ev.Improved)
	assert.Equal(t, 0, tr.Incumbent().Index)

	// A strictly better one does, and reports the delta.
	ev, err = tr.Update([][]*float64{{nil, ptr(2.5)}}, []float64{1}, candidates(), binaryVars)
	require.NoError(t, err)
	assert.True(t, ev.Improved)
	assert.InDelta(t, 1.5, ev.Delta, 1e-9)
	assert.Equal(t, 1, tr.Incumbent().Index)
}

func TestUpdateMaximize(t *testing.T) {
	tr := New(core.Maximize, logging.NewTestLogger())

	objectives := [][]*float64{{ptr(4.0), ptr(9.0)}}
	_, err := tr.Update(objectives, []float64{1}, candidates(), binaryVars)
	require.NoError(t, err)

	require.NotNil(t, tr.Incumbent())
	assert.InDelta(t, 9.0, tr.Incumbent().Objective, 1e-9)
	assert.Equal(t, 1, tr.Incumbent().Index)
}

func TestUpdateNoFeasibleCandidate(t *testing.T) {
	tr := New(core.Minimize, logging.NewTestLogger())

	ev, err := tr.Update([][]*float64{{nil, nil}}, []float64{1}, candidates(), binaryVars)
	require.NoError(t, err)

	assert.False(t, ev.Improved)
	assert.Nil(t, tr.Incumbent())
	assert.Empty(t, ev.OptimalityCuts)
}

func TestUpdateOptimalityCuts(t *testing.T) {
	tr := New(core.Minimize, logging.NewTestLogger())

	objectives := [][]*float64{
		{ptr(4.0), ptr(7.0)},
		{ptr(6.0), ptr(3.0)},
	}
	ev, err := tr.Update(objectives, []float64{0.6, 0.4}, candidates(), binaryVars)
	require.NoError(t, err)

	// Both candidates feasible, all free variables binary: the dominated
	// candidate is excluded.
	require.Len(t, ev.OptimalityCuts, 1)
	cut := ev.OptimalityCuts[0]
	assert.Equal(t, 1, cut.Candidate)
	assert.Equal(t, 0.0, cut.Binary["x1"])
	assert.Equal(t, 1.0, cut.Binary["x2"])
	assert.Empty(t, cut.Integer)
}

func TestUpdateContinuousVariableDisablesOptimalityCuts(t *testing.T) {
	tr := New(core.Minimize, logging.NewTestLogger())

	vars := []core.VariableInfo{
		{ID: "x1", Domain: core.Binary, Upper: 1},
		{ID: "x2", Domain: core.Continuous, Upper: 1},
	}
	objectives := [][]*float64{
		{ptr(4.0), ptr(7.0)},
		{ptr(6.0), ptr(3.0)},
	}
	ev, err := tr.Update(objectives, []float64{0.6, 0.4}, candidates(), vars)
	require.NoError(t, err)
	assert.Empty(t, ev.OptimalityCuts)
}

func TestUpdateFixedContinuousVariableIsIgnored(t *testing.T) {
	tr := New(core.Minimize, logging.NewTestLogger())

	vars := []core.VariableInfo{
		{ID: "x1", Domain: core.Binary, Upper: 1},
		{ID: "x2", Domain: core.Continuous, Upper: 1, Fixed: true},
	}
	objectives := [][]*float64{
		{ptr(4.0), ptr(7.0)},
		{ptr(6.0), ptr(3.0)},
	}
	ev, err := tr.Update(objectives, []float64{0.6, 0.4}, candidates(), vars)
	require.NoError(t, err)
	require.Len(t, ev.OptimalityCuts, 1, "fixed variables do not block no-good cuts")
	assert.NotContains(t, ev.OptimalityCuts[0].Binary, core.VarID("x2"))
}

func TestUpdateDimensionMismatch(t *testing.T) {
	tr := New(core.Minimize, logging.NewTestLogger())

	_, err := tr.Update([][]*float64{{ptr(1.0)}}, []float64{0.5, 0.5}, candidates(), binaryVars)
	require.Error(t, err)
}
