// Package lockmgr provides per-key mutual exclusion inside one node.
//
// The authority of a chain must assign version numbers and commit values
// for one key strictly one after the other, while writes to other keys
// proceed in parallel. The lock manager hands out one mutex per key.
//
// Implementation Approach:
//
//	Locks live in a concurrent map (xsync.MapOf). Each entry carries a
//	reference count of holders and waiters that is only changed inside
//	MapOf.Compute, so creating, sharing and removing an entry is atomic.
//	Once the last holder releases, the entry is deleted and the map only
//	ever contains keys that are in use.
//
// Usage Example:
//
//	locks := lockmgr.NewLockManager()
//
//	unlock := locks.Lock("user:1")
//	defer unlock()
//	// ... exclusive access to user:1 ...
package lockmgr
