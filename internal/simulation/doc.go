// Package simulation is the entry point for running a network: it builds the
// weight matrix and initial state from network parameters and seeds, runs the
// event scheduler to a given time, and leaves a self-describing run directory
// behind.
//
// A run directory contains:
//
//	parameters.yaml     the parameter record, written before the first step
//	phases<n>.arrow     phase tables, one per flush cycle, numbered from 0
//	spikes<n>.arrow     spike tables, sharing the cycle number of their phase table
//	manifest.json       artifact list with SHA-256 checksums, written last
//	trace.jsonl         per-step trace, only at debug or trace log level
//
// Usage:
//
//	sim, err := simulation.New(params, simulation.WithSeed(7))
//	if err != nil {
//	    return err
//	}
//	summary, err := sim.Run(ctx, 8, "out")
package simulation
