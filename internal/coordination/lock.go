// Package coordination arbitrates access between the two heavyweight
// AutoML runtimes sharing one process. PyCaret training is the sole
// writer-equivalent; AutoGluon calls act as readers that may overlap
// each other but never the writer.
package coordination

import "sync"

// EngineLock is the reader/writer lock shared by all training calls in
// the process. It never fails and never reports contention itself;
// strategies that want to surface contention to a session's status
// document probe with TryAcquireRead first.
//
// Invariants: at most one write holder; a write holder excludes all
// readers. Fairness beyond the underlying RWMutex's writer-pending
// behavior is not guaranteed.
type EngineLock struct {
	mu sync.RWMutex
}

// NewEngineLock creates an engine coordination lock.
func NewEngineLock() *EngineLock {
	return &EngineLock{}
}

// AcquireRead blocks until no writer holds the lock, then takes shared
// access.
func (l *EngineLock) AcquireRead() {
	l.mu.RLock()
}

// TryAcquireRead takes shared access without blocking. Returns false
// when a writer holds or is waiting for the lock; the caller is then
// expected to fall back to AcquireRead.
func (l *EngineLock) TryAcquireRead() bool {
	return l.mu.TryRLock()
}

// ReleaseRead releases shared access.
func (l *EngineLock) ReleaseRead() {
	l.mu.RUnlock()
}

// AcquireWrite blocks until every reader has drained and no other
// writer holds the lock, then takes exclusive access.
func (l *EngineLock) AcquireWrite() {
	l.mu.Lock()
}

// ReleaseWrite releases exclusive access and wakes all waiters.
func (l *EngineLock) ReleaseWrite() {
	l.mu.Unlock()
}
