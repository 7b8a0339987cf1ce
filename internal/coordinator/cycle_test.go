package coordinator

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/stochkit/interscenario/internal/boxmodel"
	"github.com/stochkit/interscenario/internal/logging"
	"github.com/stochkit/interscenario/pkg/config"
	"github.com/stochkit/interscenario/pkg/core"
)

// splitProblem builds a three-scenario problem where two scenarios prefer the
// decision (1, 0) and the third cannot accept x1 = 1.
func splitProblem() *boxmodel.Problem {
	free := boxmodel.Interval{Lo: 0, Hi: 1}
	return &boxmodel.Problem{
		Variables: []core.VariableInfo{
			{ID: "x1", Domain: core.Binary, Upper: 1},
			{ID: "x2", Domain: core.Binary, Upper: 1},
		},
		Scenarios: []boxmodel.Scenario{
			{
				ID:          "s1",
				Probability: 0.5,
				Bounds:      map[core.VarID]boxmodel.Interval{"x1": free, "x2": free},
				CostCoeffs:  map[core.VarID]float64{"x1": -3, "x2": 1},
				CostBase:    5,
			},
			{
				ID:          "s2",
				Probability: 0.3,
				Bounds:      map[core.VarID]boxmodel.Interval{"x1": free, "x2": free},
				CostCoeffs:  map[core.VarID]float64{"x1": -2, "x2": 2},
				CostBase:    4,
			},
			{
				ID:          "s3",
				Probability: 0.2,
				Bounds: map[core.VarID]boxmodel.Interval{
					"x1": {Lo: 0, Hi: 0},
					"x2": free,
				},
				CostCoeffs: map[core.VarID]float64{"x1": 1, "x2": -1},
				CostBase:   6,
			},
		},
	}
}

// splitSnapshot reports each scenario's locally optimal decision and cost.
func splitSnapshot(p *boxmodel.Problem, iteration int) Snapshot {
	snap := Snapshot{Iteration: iteration, Variables: p.Variables}
	for _, sc := range p.Scenarios {
		x, cost, err := p.LocalSolve(sc.ID, nil, nil)
		Expect(err).NotTo(HaveOccurred())
		snap.Scenarios = append(snap.Scenarios, ScenarioState{
			ID:          sc.ID,
			Probability: sc.Probability,
			Decision:    x,
			Cost:        cost,
		})
	}
	return snap
}

func newScheduler(p *boxmodel.Problem, mutate func(*config.Config)) *Scheduler {
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	s, err := New(Options{
		Config:  cfg,
		Source:  p,
		Primary: boxmodel.NewSolver("analytic"),
		Sense:   core.Minimize,
		Log:     logging.NewTestLogger(),
	})
	Expect(err).NotTo(HaveOccurred())
	return s
}

var _ = Describe("New", func() {
	It("rejects a nil primary solver", func() {
		_, err := New(Options{Source: splitProblem(), Log: logging.NewTestLogger()})
		Expect(err).To(MatchError(ContainSubstring("primary solver")))
	})

	It("rejects an invalid configuration", func() {
		cfg := config.Default()
		cfg.RhoScale = -1
		_, err := New(Options{
			Config:  cfg,
			Source:  splitProblem(),
			Primary: boxmodel.NewSolver("analytic"),
			Log:     logging.NewTestLogger(),
		})
		Expect(err).To(MatchError(ContainSubstring("rhoScale")))
	})

	It("applies defaults for a nil configuration", func() {
		s, err := New(Options{
			Source:  splitProblem(),
			Primary: boxmodel.NewSolver("analytic"),
			Log:     logging.NewTestLogger(),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Phase()).To(Equal(PhaseDone))
	})
})

var _ = Describe("ShouldRun", func() {
	var (
		s       *Scheduler
		problem *boxmodel.Problem
	)

	BeforeEach(func() {
		problem = splitProblem()
		// RecutThreshold 0.5 keeps the cycle run in BeforeEach from
		// rewinding the interval.
		s = newScheduler(problem, func(c *config.Config) {
			c.IterationInterval = 5
			c.RecutThreshold = 0.5
		})
	})

	It("is due immediately on a fresh scheduler", func() {
		Expect(s.ShouldRun(0, 0)).To(BeTrue())
	})

	Context("after a cycle has run", func() {
		BeforeEach(func() {
			ctx := logging.IntoContext(context.Background(), logging.NewTestLogger())
			_, err := s.RunCycle(ctx, splitSnapshot(problem, 0))
			Expect(err).NotTo(HaveOccurred())
		})

		It("runs again when the interval expires", func() {
			Expect(s.ShouldRun(4, 0)).To(BeFalse())
			Expect(s.ShouldRun(5, 0)).To(BeTrue())
		})

		It("runs early on convergence degradation", func() {
			s.ObserveConvergence(1.0)
			Expect(s.ShouldRun(1, 1.0)).To(BeFalse(), "flat metric is not degradation")
			Expect(s.ShouldRun(1, 1.2)).To(BeFalse(), "below the relative margin")
			Expect(s.ShouldRun(1, 1.5)).To(BeTrue(), "beyond both margins")
		})

		It("never triggers on degradation before the first observation", func() {
			Expect(s.ShouldRun(1, 1e9)).To(BeFalse())
		})
	})
})

var _ = Describe("RunCycle", func() {
	var (
		ctx     context.Context
		problem *boxmodel.Problem
	)

	BeforeEach(func() {
		ctx = logging.IntoContext(context.Background(), logging.NewTestLogger())
		problem = splitProblem()
	})

	It("rejects snapshots with more than two stages", func() {
		s := newScheduler(problem, nil)
		snap := splitSnapshot(problem, 0)
		snap.Stages = 3
		_, err := s.RunCycle(ctx, snap)
		Expect(err).To(MatchError(ContainSubstring("2-stage")))
	})

	It("rejects empty snapshots", func() {
		s := newScheduler(problem, nil)
		_, err := s.RunCycle(ctx, Snapshot{Iteration: 0})
		Expect(err).To(MatchError(ContainSubstring("no scenarios")))
	})

	Context("with a split scenario set", func() {
		// RecutThreshold 0.5 keeps the single cut below the recut bar so
		// the cycle takes the distribute path.
		var (
			s      *Scheduler
			result *CycleResult
		)

		BeforeEach(func() {
			s = newScheduler(problem, func(c *config.Config) { c.RecutThreshold = 0.5 })
			var err error
			result, err = s.RunCycle(ctx, splitSnapshot(problem, 0))
			Expect(err).NotTo(HaveOccurred())
		})

		It("registers two candidates and evaluates three cross pairs", func() {
			Expect(result.Diagnostics.Candidates).To(Equal(2))
			Expect(result.Diagnostics.PairsEvaluated).To(Equal(3))
			Expect(result.Diagnostics.UnknownPairs).To(BeZero())
		})

		It("counts the cut from the excluded scenario", func() {
			Expect(result.Diagnostics.CutsGenerated).To(Equal(1))
			Expect(result.Diagnostics.PerCandidate[0].CutBy).To(Equal(1))
			Expect(result.Diagnostics.PerCandidate[1].CutBy).To(BeZero())
		})

		It("accepts the globally feasible candidate as incumbent", func() {
			Expect(result.Incumbent).NotTo(BeNil())
			Expect(result.Incumbent.Decision.Equal(core.DecisionVector{"x1": 0, "x2": 1})).To(BeTrue())
			Expect(result.Incumbent.Objective).To(BeNumerically("~", 5.8, 1e-9))
			Expect(result.Diagnostics.PerCandidate[0].Expected).To(BeNil())
			Expect(*result.Diagnostics.PerCandidate[1].Expected).To(BeNumerically("~", 5.8, 1e-9))
		})

		It("distributes the feasibility cut to every scenario", func() {
			Expect(result.Cuts).To(HaveLen(3))
			for _, sid := range []core.ScenarioID{"s1", "s2", "s3"} {
				Expect(result.Cuts[sid].Feasibility).To(HaveLen(1), string(sid))
				Expect(result.Cuts[sid].Optimality).To(BeEmpty())
			}
			// The cut excludes x1 = 1 up to the epsilon margin.
			lc := result.Cuts["s1"].Feasibility[0]
			Expect(lc.Coeffs["x1"]*1).To(BeNumerically("<", lc.RHS))
			Expect(lc.Coeffs["x1"]*0).To(BeNumerically(">=", lc.RHS))
		})

		It("updates the coordination prices from the collected duals", func() {
			Expect(result.RecutRequested).To(BeFalse())
			Expect(result.Rho).NotTo(BeNil())
			Expect(result.Rho["x1"]).To(BeNumerically("~", 0.75*0.2*2.625/2, 1e-9))
			Expect(result.Rho["x2"]).To(BeNumerically("~", 0.75*0.2*1.375/2, 1e-9))
		})

		It("reports the probability-weighted average cost", func() {
			Expect(result.Diagnostics.AverageCost).To(BeNumerically("~", 2.6, 1e-9))
			Expect(result.Diagnostics.CostSpread).To(BeNumerically("~", 3.0, 1e-9))
			Expect(result.Diagnostics.AverageCostDelta).To(BeNil(), "no previous cycle to compare against")
		})

		It("finishes in the done phase", func() {
			Expect(s.Phase()).To(Equal(PhaseDone))
		})
	})

	Context("when enough pairs produce cuts", func() {
		It("requests a recut and bypasses the price update", func() {
			// Default threshold 0.33: one cut out of three pairs clears it,
			// and the first cycle has no average-cost history to veto.
			s := newScheduler(problem, nil)
			result, err := s.RunCycle(ctx, splitSnapshot(problem, 10))
			Expect(err).NotTo(HaveOccurred())

			Expect(result.RecutRequested).To(BeTrue())
			Expect(result.Rho).To(BeNil(), "no price estimate exists before the first update")
			Expect(result.Cuts["s3"].Feasibility).NotTo(BeEmpty(),
				"cuts are handed out even on the recut path")
			Expect(s.ShouldRun(11, 0)).To(BeTrue(), "the interval is rewound for the next iteration")
		})
	})

	Context("when every scenario agrees", func() {
		It("produces one candidate and no evaluations", func() {
			for i := range problem.Scenarios {
				problem.Scenarios[i].Bounds["x1"] = boxmodel.Interval{Lo: 0, Hi: 1}
				problem.Scenarios[i].CostCoeffs = map[core.VarID]float64{"x1": -1, "x2": 1}
			}
			s := newScheduler(problem, nil)
			result, err := s.RunCycle(ctx, splitSnapshot(problem, 0))
			Expect(err).NotTo(HaveOccurred())

			Expect(result.Diagnostics.Candidates).To(Equal(1))
			Expect(result.Diagnostics.PairsEvaluated).To(BeZero())
			Expect(result.RecutRequested).To(BeFalse())
			Expect(result.Incumbent).NotTo(BeNil(),
				"a unanimous candidate is feasible by its owners' own reports")
		})
	})

	Context("with worker-pool dispatch", func() {
		// Candidates of one scenario share that scenario's cached model, so
		// the task plan must hand each scenario to exactly one job.
		It("dispatches at most one task per scenario and skips owners", func() {
			snap := splitSnapshot(problem, 0)
			cands := []*core.CandidateSolution{
				{Decision: core.DecisionVector{"x1": 1, "x2": 0}, Owners: []core.ScenarioID{"s1", "s2"}},
				{Decision: core.DecisionVector{"x1": 0, "x2": 1}, Owners: []core.ScenarioID{"s3"}},
			}

			tasks, taskScenarios := buildTasks(snap.Scenarios, cands)

			Expect(tasks).To(HaveLen(3))
			Expect(taskScenarios).To(Equal([]int{0, 1, 2}))
			seen := map[core.ScenarioID]bool{}
			for _, task := range tasks {
				Expect(seen[task.Scenario]).To(BeFalse(), string(task.Scenario))
				seen[task.Scenario] = true
				Expect(task.Candidates).To(HaveLen(1))
			}
			Expect(tasks[0].Candidates[0].Index).To(Equal(1), "s1 owns candidate 0")
			Expect(tasks[2].Candidates[0].Index).To(Equal(0), "s3 owns candidate 1")
		})

		It("classifies every pair correctly while scenarios solve in parallel", func() {
			// Three distinct candidates, so every scenario evaluates two
			// foreign decisions in one job; the slow solver widens the
			// window in which overlapping jobs would corrupt shared state.
			problem.Scenarios[1].CostCoeffs = map[core.VarID]float64{"x1": 2, "x2": 2}

			cfg := config.Default()
			cfg.Dispatch = config.DispatchWorkerPool
			cfg.Workers = 4
			primary := boxmodel.NewSolver("analytic")
			primary.Delay = 5 * time.Millisecond
			s, err := New(Options{
				Config:  cfg,
				Source:  problem,
				Primary: primary,
				Sense:   core.Minimize,
				Log:     logging.NewTestLogger(),
			})
			Expect(err).NotTo(HaveOccurred())

			result, err := s.RunCycle(ctx, splitSnapshot(problem, 0))
			Expect(err).NotTo(HaveOccurred())

			Expect(result.Diagnostics.Candidates).To(Equal(3))
			Expect(result.Diagnostics.PairsEvaluated).To(Equal(6))
			Expect(result.Diagnostics.UnknownPairs).To(BeZero())
			Expect(result.Diagnostics.CutsGenerated).To(Equal(1))
			Expect(result.Diagnostics.PerCandidate[0].CutBy).To(Equal(1),
				"only the excluded scenario cuts the majority decision")
			Expect(result.Diagnostics.PerCandidate[0].Expected).To(BeNil())
			Expect(*result.Diagnostics.PerCandidate[1].Expected).To(BeNumerically("~", 4.9, 1e-9))
			Expect(*result.Diagnostics.PerCandidate[2].Expected).To(BeNumerically("~", 5.8, 1e-9))
			Expect(result.Incumbent).NotTo(BeNil())
			Expect(result.Incumbent.Decision.Equal(core.DecisionVector{"x1": 0, "x2": 0})).To(BeTrue())
		})
	})

	Context("across consecutive cycles", func() {
		It("tracks the average-cost trend", func() {
			s := newScheduler(problem, func(c *config.Config) { c.RecutThreshold = 0.5 })

			first, err := s.RunCycle(ctx, splitSnapshot(problem, 0))
			Expect(err).NotTo(HaveOccurred())
			Expect(first.Diagnostics.AverageCostDelta).To(BeNil())

			second, err := s.RunCycle(ctx, splitSnapshot(problem, 10))
			Expect(err).NotTo(HaveOccurred())
			Expect(second.Diagnostics.AverageCostDelta).NotTo(BeNil())
			Expect(*second.Diagnostics.AverageCostDelta).To(BeNumerically("~", 0, 1e-9),
				"identical snapshots show no improvement")
		})
	})
})
