// Package ctxswitch implements component H: the cooperative context
// switch primitive the scheduler uses to move the CPU from one task to
// another.
//
// spec.md's contract is stated in terms of saving four callee-saved
// registers and a stack pointer and resuming at a synthesized return
// address — the literal shape of a hand-written x86 switch stub, which
// the teacher achieves via a modified Go runtime and raw assembly
// (biscuit's own scheduler entry points reach into runtime.Gptr-style
// hooks unavailable to an unmodified `go build`). This kernel is a hosted
// Go program with no assembly stub and no patched runtime, so the switch
// is expressed with the nearest idiomatic Go equivalent that preserves
// every observable property the contract demands: exactly one task's
// goroutine runs at a time, a switch transfers control synchronously
// (the old task is suspended until switched back in), and a freshly
// spawned task's first switch-in resumes it at its entry point. A pair of
// unbuffered, rendezvous channels per task reproduces this precisely: the
// switch is a single send (wake the new task) followed by a single
// receive (block until this task is switched back in), which is exactly
// "save old, load new" with the registers replaced by a goroutine's own
// stack, which Go already parks for us.
package ctxswitch

// Context is one task's switch handle: the channel it blocks on between
// being switched out and switched back in.
type Context struct {
	resume chan struct{}
}

// NewContext allocates a switch handle for a new task. The task's
// goroutine must receive on WaitFirstResume before running its entry
// point, mirroring the synthesized stack frame that makes a freshly
// spawned task resume at `entry` on its first switch-in.
func NewContext() *Context {
	return &Context{resume: make(chan struct{})}
}

// WaitFirstResume blocks the calling (newly spawned) task's goroutine
// until the scheduler's first Switch into it.
func (c *Context) WaitFirstResume() {
	<-c.resume
}

// Switch hands the CPU from old to new: new's goroutine is woken, and the
// caller (running as old) blocks until a later Switch hands control back
// to old. Not reentrant; must be called from the task being switched out,
// never from interrupt/timer context (the timer only sets a flag — see
// sched.Tick).
func Switch(old, nxt *Context) {
	nxt.resume <- struct{}{}
	<-old.resume
}
