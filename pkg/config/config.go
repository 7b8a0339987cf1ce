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

package config

import (
	"fmt"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DispatchMode selects how evaluation tasks are executed.
type DispatchMode string

const (
	// DispatchSynchronous runs evaluations in submission order in the
	// calling goroutine. Deterministic, suitable for local execution.
	DispatchSynchronous DispatchMode = "synchronous"

	// DispatchWorkerPool submits evaluations to a pool of workers and
	// collects completions in arrival order.
	DispatchWorkerPool DispatchMode = "workerpool"
)

// Config holds all tunables of the coordination engine. Every knob the
// engine reads lives here; nothing is read from ambient globals.
type Config struct {
	// Epsilon is the tolerance below which a separation term is dropped
	// from a feasibility cut.
	Epsilon float64 `yaml:"epsilon" mapstructure:"epsilon"`

	// AllowVariableSlack bounds separation variables to [-epsilon, epsilon]
	// during normal evaluation instead of fixing them to zero.
	AllowVariableSlack bool `yaml:"allowVariableSlack" mapstructure:"allowVariableSlack"`

	// RhoScale multiplies the computed rho estimate before installation.
	RhoScale float64 `yaml:"rhoScale" mapstructure:"rhoScale"`

	// RhoDamping controls how quickly rho moves to new estimates:
	// 0 never moves, 1 adopts each new estimate instantly.
	RhoDamping float64 `yaml:"rhoDamping" mapstructure:"rhoDamping"`

	// CutMinDiffThreshold is the minimum feasibility-cut magnitude for the
	// cut to enter the library; below it the cut is discarded.
	CutMinDiffThreshold float64 `yaml:"cutMinDiffThreshold" mapstructure:"cutMinDiffThreshold"`

	// CrossCutFraction controls how deep into the sorted cut-magnitude
	// list the all-to-all distribution cutoff falls. 1 takes the weakest
	// qualifying cut as the cutoff, distributing everything above the
	// minimum threshold.
	CrossCutFraction float64 `yaml:"crossCutFraction" mapstructure:"crossCutFraction"`

	// RecutThreshold is the fraction of cross-scenario evaluations that
	// must yield cuts before the engine requests an immediate re-run.
	RecutThreshold float64 `yaml:"recutThreshold" mapstructure:"recutThreshold"`

	// RecutBoundImprovement is the minimum relative improvement of the
	// running average objective for a re-run to be worthwhile.
	RecutBoundImprovement float64 `yaml:"recutBoundImprovement" mapstructure:"recutBoundImprovement"`

	// IterationInterval forces the engine to run every N outer iterations
	// regardless of convergence behavior.
	IterationInterval int `yaml:"iterationInterval" mapstructure:"iterationInterval"`

	// ConvergenceRelativeDegradation and ConvergenceAbsoluteDegradation
	// trigger an off-interval run when the outer convergence metric
	// degrades by more than both margins.
	ConvergenceRelativeDegradation float64 `yaml:"convergenceRelativeDegradation" mapstructure:"convergenceRelativeDegradation"`
	ConvergenceAbsoluteDegradation float64 `yaml:"convergenceAbsoluteDegradation" mapstructure:"convergenceAbsoluteDegradation"`

	// Dispatch selects the execution strategy for evaluation tasks.
	Dispatch DispatchMode `yaml:"dispatch" mapstructure:"dispatch"`

	// Workers is the worker-pool size; ignored for synchronous dispatch.
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// Default returns the engine defaults. Values follow the tuning the original
// two-stage coordination scheme shipped with.
func Default() *Config {
	return &Config{
		Epsilon:                        1e-4,
		AllowVariableSlack:             false,
		RhoScale:                       0.75,
		RhoDamping:                     0.2,
		CutMinDiffThreshold:            0.10,
		CrossCutFraction:               1,
		RecutThreshold:                 0.33,
		RecutBoundImprovement:          0.005,
		IterationInterval:              10,
		ConvergenceRelativeDegradation: 0.33,
		ConvergenceAbsoluteDegradation: 0.001,
		Dispatch:                       DispatchSynchronous,
		Workers:                        4,
	}
}

// Load reads a YAML config file and merges it over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config %q: %w", path, err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %q: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// YAML renders the effective configuration as a YAML document, for logging
// and for seeding a config file.
func (c *Config) YAML() (string, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("rendering config: %w", err)
	}
	return string(out), nil
}

// Validate checks for invalid configuration values.
func (c *Config) Validate() error {
	if c.Epsilon < 0 {
		return fmt.Errorf("epsilon must be non-negative, got %g", c.Epsilon)
	}
	if c.RhoScale <= 0 {
		return fmt.Errorf("rhoScale must be positive, got %g", c.RhoScale)
	}
	if c.RhoDamping < 0 || c.RhoDamping > 1 {
		return fmt.Errorf("rhoDamping must be in [0,1], got %g", c.RhoDamping)
	}
	if c.CutMinDiffThreshold < 0 {
		return fmt.Errorf("cutMinDiffThreshold must be non-negative, got %g", c.CutMinDiffThreshold)
	}
	if c.CrossCutFraction < 0 || c.CrossCutFraction > 1 {
		return fmt.Errorf("crossCutFraction must be in [0,1], got %g", c.CrossCutFraction)
	}
	if c.RecutThreshold < 0 || c.RecutThreshold > 1 {
		return fmt.Errorf("recutThreshold must be in [0,1], got %g", c.RecutThreshold)
	}
	if c.IterationInterval < 1 {
		return fmt.Errorf("iterationInterval must be at least 1, got %d", c.IterationInterval)
	}
	switch c.Dispatch {
	case DispatchSynchronous, DispatchWorkerPool:
	default:
		return fmt.Errorf("unsupported dispatch mode: %q", c.Dispatch)
	}
	if c.Dispatch == DispatchWorkerPool && c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1 for workerpool dispatch, got %d", c.Workers)
	}
	return nil
}
