// Package store defines the replica state every node of a chain keeps,
// together with the error type shared by all layers.
//
// Key Components:
//
//   - Data Model: VersionTag (request id plus authority assigned sequence
//     number), KeyEntry (committed value, tag and Clean/Dirty state) and
//     PendingWrite (a write seen on its way down the chain but not yet
//     confirmed by the authority).
//
//   - IStore Interface: committed values and pending writes of one node.
//     Commits are monotonic per key ("only if newer"), so replaying or
//     reordering commit events can never move a key backwards. Every commit
//     also prunes pending writes it supersedes.
//
//   - Error System: a typed error (Error) carrying a RetCode. The code
//     travels over the wire unchanged, so clients can tell protocol
//     violations from transport failures.
//
// Implementations:
//
//	The in-memory implementation lives in the lstore package. There is no
//	persistent store: a node that restarts starts empty.
package store
