// Package workload drives a cluster with concurrent clients. It is used by
// the perf and cluster commands.
//
// Every client runs in its own goroutine of a bounded pool and picks keys and
// the set/get mix from a seeded generator. Latencies end up in go-metrics
// timers; with a history.Recorder the run can also be checked for
// linearizability afterwards.
package workload
