// Package history records what concurrent clients observed and checks
// whether it is linearizable.
//
// A Recorder timestamps every completed set and get; the history can be
// kept in memory or streamed as JSON lines to a file and read back with
// ReadLog. Check runs the porcupine linearizability checker with a
// register-per-key model (an unknown key reads as "not found") and
// Visualize renders the result as HTML.
//
// Every node marks a key dirty before the authority can commit a newer
// version, and stays dirty until it committed that version itself, so reads
// at any node of either topology are expected to pass the check.
package history
