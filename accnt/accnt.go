// Package accnt tracks per-task CPU accounting, adapted from the
// teacher's accnt.Accnt_t. The rusage-byte-serialization half of the
// teacher's package (To_rusage/Fetch) is dropped: there is no userspace
// ABI to marshal into here, per spec.md's single-address-space design —
// accounting is consumed directly by the shell's `ps` command instead.
package accnt

import (
	"sync/atomic"
)

// Accnt accumulates a task's user and system time, both in nanoseconds.
// Every field is only ever touched through atomic ops, so Accnt has no
// lock of its own and is safe to share via pointer across the scheduler
// and whatever reads it (ps, kprof.Snapshot).
type Accnt struct {
	Userns int64
	Sysns  int64
}

// Utadd adds delta nanoseconds of user time.
func (a *Accnt) Utadd(delta int64) {
	atomic.AddInt64(&a.Userns, delta)
}

// Systadd adds delta nanoseconds of system time.
func (a *Accnt) Systadd(delta int64) {
	atomic.AddInt64(&a.Sysns, delta)
}

// Add merges another task's accounting record into this one.
func (a *Accnt) Add(n *Accnt) {
	atomic.AddInt64(&a.Userns, atomic.LoadInt64(&n.Userns))
	atomic.AddInt64(&a.Sysns, atomic.LoadInt64(&n.Sysns))
}

// Snapshot returns a consistent (user, sys) pair in nanoseconds.
func (a *Accnt) Snapshot() (user, sys int64) {
	return atomic.LoadInt64(&a.Userns), atomic.LoadInt64(&a.Sysns)
}

// TotalMillis returns combined user+sys time in milliseconds, for the
// shell's ps output.
func (a *Accnt) TotalMillis() int64 {
	u, s := a.Snapshot()
	return (u + s) / 1e6
}
