// Package util holds small building blocks shared by the node internals.
//
//   - LockFreeMPSC: an unbounded lock-free multi-producer single-consumer
//     queue. Request handlers push, a single goroutine consumes via Recv().
//     Values pushed by one producer are delivered in push order; values of
//     concurrent producers are delivered in the order their CAS succeeded.
//
//   - HashString / GenerateSeed: FNV-1a hashing with a seed, used to derive
//     reproducible per-node random streams.
package util
