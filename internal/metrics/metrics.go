/*
Copyright 2025 The stochkit Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package metrics exposes prometheus instrumentation for the engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's prometheus collectors. All engine packages
// report through this struct; nothing registers against a global registry.
type Metrics struct {
	Cycles       prometheus.Counter
	Evaluations  *prometheus.CounterVec
	CutsSelected *prometheus.CounterVec
	Candidates   prometheus.Gauge
	IncumbentObj prometheus.Gauge
	RecutCycles  prometheus.Counter
}

// New creates the engine collectors and registers them with reg. A nil
// registerer yields collectors that are still usable but unexported.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "interscenario_cycles_total",
			Help: "Coordination cycles executed.",
		}),
		Evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "interscenario_evaluations_total",
			Help: "Cross-scenario evaluations by outcome.",
		}, []string{"outcome"}),
		CutsSelected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "interscenario_cuts_selected_total",
			Help: "Cuts selected for distribution by kind.",
		}, []string{"kind"}),
		Candidates: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "interscenario_candidate_solutions",
			Help: "Distinct candidate solutions in the last cycle.",
		}),
		IncumbentObj: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "interscenario_incumbent_objective",
			Help: "Objective of the current incumbent (user sense).",
		}),
		RecutCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "interscenario_recut_cycles_total",
			Help: "Cycles that requested an immediate re-run.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.Cycles, m.Evaluations, m.CutsSelected,
			m.Candidates, m.IncumbentObj, m.RecutCycles,
		)
	}
	return m
}
