package lockmgr

// ILockManager defines the interface for a keyed lock provider.
type ILockManager interface {
	// Lock blocks until the lock for key is held and returns the function
	// releasing it. The release function must be called exactly once.
	Lock(key string) (unlock func())

	// Held returns the number of keys currently locked or waited for
	Held() int
}
