// Package lstore implements store.IStore in memory.
//
// Every key has its own record guarded by its own mutex, and the records
// live in a concurrent map (xsync.MapOf). Operations on different keys
// therefore never contend, while all operations on the same key are
// serialized. This is what makes CommitPending atomic: a reader either
// sees the pending write (and falls back to the authority) or the newly
// committed value, never the old value without the pending write.
//
// Records are created on the first write or buffered write of a key and
// are never removed; the store has no delete operation.
//
// Usage Example:
//
//	s := lstore.NewLocalStore()
//	s.BufferPending("x", "client1-1", store.VersionTag{}, "42")
//	_, _, err := s.CommitPending("x", "client1-1", 1)
//	entry, found := s.Get("x") // "42", clean, found
package lstore
