// Package tinfo tracks per-task note state the scheduler needs
// independently of a task's own stack/registers: liveness, whether it has
// been asked to exit, and the channel a killer waits on for
// acknowledgement. Adapted from the teacher's Tnote_t/Threadinfo_t.
//
// The teacher's Current/SetCurrent/ClearCurrent trio reads the running
// task's note through a pointer stashed in a runtime-internal per-g slot
// (runtime.Gptr/Setgptr) — a hook into biscuit's own modified Go runtime.
// This kernel runs on an unmodified Go runtime, so sched tracks the
// current task explicitly (an index into its task ring, guarded by the
// scheduler's lock) instead of reaching into the runtime; tinfo here only owns the
// note's fields and transitions.
package tinfo

import "sync"

// Tnote holds a single task's liveness and kill-signaling state.
type Tnote struct {
	mu       sync.Mutex
	alive    bool
	killed   bool
	killCh   chan bool
}

// NewTnote creates a live, not-killed note.
func NewTnote() *Tnote {
	return &Tnote{alive: true, killCh: make(chan bool, 1)}
}

// Alive reports whether the task has not yet terminated.
func (t *Tnote) Alive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.alive
}

// MarkDead records that the task has terminated (reaped by the
// scheduler's dead-task sweep).
func (t *Tnote) MarkDead() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.alive = false
}

// Kill marks the task for termination by setting the flag Killed reports.
// It does not interrupt or stop the task; the scheduler does not consult
// the flag.
func (t *Tnote) Kill() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.killed = true
}

// Killed reports whether Kill has been called.
func (t *Tnote) Killed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.killed
}

// AckKill signals a pending Kill's caller (if any) that the task has
// observed it and is unwinding.
func (t *Tnote) AckKill() {
	select {
	case t.killCh <- true:
	default:
	}
}

// WaitKillAck blocks until AckKill is called.
func (t *Tnote) WaitKillAck() {
	<-t.killCh
}

// Threadinfo is the scheduler-wide registry of task notes, keyed by pid.
type Threadinfo struct {
	mu    sync.Mutex
	notes map[int]*Tnote
}

// NewThreadinfo allocates an empty registry.
func NewThreadinfo() *Threadinfo {
	return &Threadinfo{notes: make(map[int]*Tnote)}
}

// Add registers a new task's note.
func (ti *Threadinfo) Add(pid int, n *Tnote) {
	ti.mu.Lock()
	defer ti.mu.Unlock()
	ti.notes[pid] = n
}

// Get returns the note for pid, if registered.
func (ti *Threadinfo) Get(pid int) (*Tnote, bool) {
	ti.mu.Lock()
	defer ti.mu.Unlock()
	n, ok := ti.notes[pid]
	return n, ok
}

// Remove drops pid's note once it has been fully reaped.
func (ti *Threadinfo) Remove(pid int) {
	ti.mu.Lock()
	defer ti.mu.Unlock()
	delete(ti.notes, pid)
}

// Len returns the number of registered notes.
func (ti *Threadinfo) Len() int {
	ti.mu.Lock()
	defer ti.mu.Unlock()
	return len(ti.notes)
}
