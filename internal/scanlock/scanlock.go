// Package scanlock implements the single scan lock of spec §4.3/§5: a
// binary mutex serializing all scan issuance (connect-scan, user-scan,
// hidden follow-up, pscan-for-DTIM, roaming scan), released exactly once
// by the control task. Grounded on golang.org/x/sync/semaphore, used
// elsewhere in this codebase (cl-obs) for the same "acquire one of N,
// possibly under a context deadline" shape.
package scanlock

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Lock is the scan lock.
type Lock struct {
	sem *semaphore.Weighted
}

// New allocates an unheld Lock.
func New() *Lock {
	return &Lock{sem: semaphore.NewWeighted(1)}
}

// TryAcquire attempts to take the lock without blocking, returning false if
// a scan is already in flight. This is what connect()/scan() APIs call
// before enqueueing (spec §6: "require taking the scan lock before
// enqueue").
func (l *Lock) TryAcquire() bool {
	return l.sem.TryAcquire(1)
}

// Acquire blocks until the lock is free or ctx is done.
func (l *Lock) Acquire(ctx context.Context) error {
	return l.sem.Acquire(ctx, 1)
}

// Release releases the lock. Callers must ensure it is called at most once
// per successful Acquire/TryAcquire, per the "released exactly once"
// protocol in spec §4.3.
func (l *Lock) Release() {
	l.sem.Release(1)
}
