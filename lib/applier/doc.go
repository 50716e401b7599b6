// Package applier implements the apply loop of a node: the one place where
// commits become visible.
//
// Handlers never commit directly. They enqueue an Event and return; a
// single goroutine takes events from a lock-free MPSC queue in FIFO order
// and applies them to the node's store:
//
//   - EventTAck: the pending write identified by the event's request id is
//     resolved and its value committed with the authority's sequence number.
//     An ack without matching pending write is ignored.
//   - EventTGetFallback: a value a read fetched from the authority is
//     committed directly.
//
// Both paths commit "only if newer", so stale events are discarded and a
// key's version never moves backwards. The loop performs no I/O and never
// produces responses. Sync provides a barrier for callers (and tests) that
// need to observe the effect of events they enqueued.
package applier
