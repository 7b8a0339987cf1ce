// Package config provides configuration management for the coordination engine.
//
// Configuration Sources:
//
//  1. Command-line flags (highest priority, wired in cmd/)
//  2. YAML files loaded through viper
//  3. Default values (lowest priority)
//
// All configuration values are validated on load:
//   - Numeric ranges (e.g., 0 <= rhoDamping <= 1)
//   - Cross-field constraints (e.g., workers >= 1 for workerpool dispatch)
//
// Example usage:
//
//	cfg, err := config.Load("engine.yaml")
//	if err != nil {
//	    log.Error(err, "failed to load configuration")
//	    return err
//	}
package config
