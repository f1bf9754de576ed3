package store

// Locker guards the publish critical section (spec.md §4.D steps 3-5)
// against concurrent publishers. The documented contract is single-writer;
// Locker exists only to give the Non-goal's "wrap in an advisory lock"
// escape hatch a concrete, testable implementation.
type Locker interface {
	Lock() error
	Unlock() error
}

// noopLocker is the default: no locking, matching spec.md §5's documented
// single-writer contract.
type noopLocker struct{}

func (noopLocker) Lock() error   { return nil }
func (noopLocker) Unlock() error { return nil }
