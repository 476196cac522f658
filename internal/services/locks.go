package services

import "sync"

// ConventionLocks serializes tranche mutations per convention. The ceiling
// check is a read-validate-write sequence; without this lock two concurrent
// adds, each individually valid, could together exceed 100%.
type ConventionLocks struct {
	mu sync.Map // conventionID -> *sync.Mutex
}

func NewConventionLocks() *ConventionLocks { return &ConventionLocks{} }

// Lock acquires the mutex for a convention and returns its unlock func.
func (l *ConventionLocks) Lock(conventionID uint) func() {
	v, _ := l.mu.LoadOrStore(conventionID, &sync.Mutex{})
	m := v.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}
