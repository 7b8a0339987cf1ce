package boxmodel

import (
	"context"
	"fmt"
	"time"

	"github.com/stochkit/interscenario/pkg/solver"
)

// Solver solves box evaluation models analytically. It only understands
// models produced by this package.
type Solver struct {
	name string

	// Fail, when non-nil, makes every Solve call return this error. Test
	// hook for the unknown-outcome paths.
	Fail error

	// Reject, when true, makes every Solve report a non-acceptable
	// termination regardless of the model state. RejectTermination picks
	// the condition; zero means infeasible.
	Reject            bool
	RejectTermination solver.TerminationCondition

	// Delay stretches every Solve call. Test hook for exercising parallel
	// dispatch.
	Delay time.Duration
}

var _ solver.Solver = (*Solver)(nil)

// NewSolver creates a named analytic solver.
func NewSolver(name string) *Solver {
	return &Solver{name: name}
}

func (s *Solver) Name() string { return s.name }

// Solve evaluates the model's active objective. With the native objective
// active the fixed decision is checked against the scenario's constraints;
// with the separation objective active the squared-violation minimization is
// solved in closed form.
func (s *Solver) Solve(_ context.Context, model solver.EvaluationModel, _ solver.Options) (solver.Result, error) {
	if s.Delay > 0 {
		time.Sleep(s.Delay)
	}
	if s.Fail != nil {
		return solver.Result{Status: solver.StatusError}, s.Fail
	}
	m, ok := model.(*Model)
	if !ok {
		return solver.Result{}, fmt.Errorf("solver %s cannot handle model type %T", s.name, model)
	}
	if s.Reject {
		tc := s.RejectTermination
		if tc == solver.TerminationUnknown {
			tc = solver.TerminationInfeasible
		}
		return solver.Result{Status: solver.StatusOK, Termination: tc}, nil
	}

	if m.sepObjOn {
		m.separate()
		return solver.Result{Status: solver.StatusOK, Termination: solver.TerminationOptimal}, nil
	}

	x := m.effectivePoint()
	if !m.feasibleAt(x) {
		return solver.Result{
			Status:      solver.StatusOK,
			Termination: solver.TerminationInfeasible,
			Log:         fmt.Sprintf("fixed decision outside feasible region of scenario %s", m.scenario.ID),
		}, nil
	}
	m.nativeObj = m.scenario.Cost(x)
	return solver.Result{Status: solver.StatusOK, Termination: solver.TerminationOptimal}, nil
}
