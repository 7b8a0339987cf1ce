// Package coordinator sequences the cross-scenario coordination cycle: it
// collects candidate decisions from a scenario snapshot, fans their
// evaluations out across scenarios, aggregates outcomes into cuts, incumbent
// updates, and price estimates, and decides when the next cycle should run.
package coordinator
