// Package cmd implements the command-line interface of dCRAQ. It provides a
// hierarchical command structure for running nodes and talking to them as a
// client.
//
// The package is organized into several subpackages:
//
//   - serve: Start one node of a cluster
//   - cluster: Run all nodes of a cluster in one process, optionally driven by
//     a linearizability check
//   - kv: Client commands (set, get) and the perf benchmark
//   - check: Check a recorded history for linearizability
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// All flags can also be set as environment variables with the prefix DCRAQ_
// (e.g. DCRAQ_LOG_LEVEL=debug), .env and .env.local files are loaded as well.
//
// See dcraq -help for a list of all commands.
package cmd
