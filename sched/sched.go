// Package sched implements component G: a single circular ring of tasks
// dispatched round-robin by priority and time slice, with a 100 Hz timer
// tick marking a reschedule flag rather than switching from interrupt
// context. Grounded on spec.md §4.G's dispatch algorithm and on the
// teacher's own cooperative-yield convention (biscuit's scheduler, like
// this one, never preempts synchronously — it only ever switches at a
// task's own suspension points).
package sched

import (
	"log"
	"sync"

	"nanos/accnt"
	"nanos/ctxswitch"
	"nanos/ipc"
	"nanos/kerr"
	"nanos/limits"
	"nanos/stats"
	"nanos/tinfo"
)

// State is a task's scheduling state.
type State int

const (
	Ready State = iota
	Running
	Blocked
	Terminated
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Blocked:
		return "blocked"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Task is one schedulable unit: an entry function run on its own
// goroutine, switched in and out cooperatively via ctxswitch.
type Task struct {
	Pid      int
	Priority int
	State    State
	TimeSlice int
	WakeTick  uint64

	entry func()
	ctx   *ctxswitch.Context
	note  *tinfo.Tnote
	Mbox  *ipc.Mailbox
	Acct  *accnt.Accnt
}

// tickNanos is the wall-clock duration one scheduler tick represents,
// used to accrue a dispatched task's Acct by a tick's worth of system
// time each time step hands it the CPU.
const tickNanos = int64(1e9) / int64(limits.TimerHz)

// Scheduler owns the task ring and dispatches among its members.
type Scheduler struct {
	mu    sync.Mutex
	tasks []*Task // ring order; index 0 is not privileged
	cur   int     // index of current in tasks
	tick  uint64
	needResched bool
	nextPid int

	mbRegistry *ipc.Registry
	threads    *tinfo.Threadinfo

	// bootCtx represents the CPU's idle/boot context: the thing that is
	// "current" before any task has ever run, and what dispatch switches
	// back to whenever no task in the ring is Ready to run (there is no
	// separate idle Task), which is also how Start returns to its caller.
	bootCtx *ctxswitch.Context

	Stats SchedStats
}

// SchedStats are the dispatch counters, in the form stats.Stats2String
// renders; the shell does not display them.
type SchedStats struct {
	Ticks       stats.Counter_t
	Switches    stats.Counter_t
	RingExhaust stats.Counter_t
}

// New creates an empty scheduler with no task yet current. Call Spawn at
// least once, then Start, before any task can run.
func New() *Scheduler {
	return &Scheduler{
		mbRegistry: ipc.NewRegistry(),
		threads:    tinfo.NewThreadinfo(),
		bootCtx:    ctxswitch.NewContext(),
		nextPid:    1,
		cur:        -1,
	}
}

// Start performs the first switch out of the boot/idle context (the
// caller's own goroutine) into whichever spawned task dispatch selects
// first. It blocks until that task (and everything it transitively
// switches to) eventually yields all the way back to bootCtx — which
// only happens once every task has exited or the ring has no task left
// to run. Callers that want the boot goroutine to keep driving other
// work (timer ticks, shell I/O) instead of blocking here should run Start
// on its own goroutine.
func (s *Scheduler) Start() {
	s.step()
}

// Spawn allocates a pid, a mailbox, and a switch context for entry, and
// inserts it into the ring in Ready state with priority 1 and a full
// time slice, per §4.G's Creation rule.
func (s *Scheduler) Spawn(entry func()) *Task {
	s.mu.Lock()
	pid := s.nextPid
	s.nextPid++
	t := &Task{
		Pid:       pid,
		Priority:  1,
		State:     Ready,
		TimeSlice: limits.Quantum,
		entry:     entry,
		ctx:       ctxswitch.NewContext(),
		note:      tinfo.NewTnote(),
		Mbox:      ipc.NewMailbox(),
		Acct:      &accnt.Accnt{},
	}
	s.tasks = append(s.tasks, t)
	s.mbRegistry.Register(pid, t.Mbox)
	s.threads.Add(pid, t.note)
	s.mu.Unlock()

	tt := t
	tt.Mbox.SetOnArrival(func() { s.wake(tt) })

	go func() {
		tt.ctx.WaitFirstResume()
		tt.entry()
		s.Exit()
	}()
	return t
}

// wake transitions a Blocked task to Ready — the only unblock path
// besides a sleeper's deadline elapsing, per §4.I.
func (s *Scheduler) wake(t *Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.State == Blocked {
		t.State = Ready
	}
}

// Tick is called from the (simulated) 100 Hz timer IRQ. It only sets the
// reschedule flag — no switch happens here, per §4.G: "IRQ context
// performs no switch".
func (s *Scheduler) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick++
	s.needResched = true
	s.Stats.Ticks.Inc()
}

// Now returns the current tick count.
func (s *Scheduler) Now() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tick
}

// MaybeResched consults the reschedule flag and, if set, clears it and
// runs one scheduler step. Safe to call from idle or from any task at a
// cooperative point.
func (s *Scheduler) MaybeResched() {
	s.mu.Lock()
	if !s.needResched {
		s.mu.Unlock()
		return
	}
	s.needResched = false
	s.mu.Unlock()
	s.step()
}

// Yield voluntarily gives up the remainder of the current time slice; it
// always runs a scheduler step regardless of the reschedule flag.
func (s *Scheduler) Yield() {
	s.step()
}

// Sleep blocks the current task until at least n ticks have elapsed.
func (s *Scheduler) Sleep(n uint64) {
	s.mu.Lock()
	t := s.tasks[s.cur]
	t.State = Blocked
	t.WakeTick = s.tick + n
	s.mu.Unlock()
	s.step()
}

// Exit marks the current task Terminated; it never resumes after this
// call returns control via the context switch inside step.
func (s *Scheduler) Exit() {
	s.mu.Lock()
	t := s.tasks[s.cur]
	t.State = Terminated
	s.mu.Unlock()
	s.step()
}

// Receive blocks the current task until a message arrives in its own
// mailbox, resolving §9's open question in favor of blocking receive. It
// loops TryReceive/Block/Yield since a wake can race with another
// receiver (not possible here — each task owns exactly one mailbox — but
// the loop is the correct idiom regardless and costs nothing extra).
func (s *Scheduler) Receive(t *Task, out []byte) (n int, senderPid int, err kerr.Err_t) {
	for {
		n, senderPid, err = t.Mbox.TryReceive(out)
		if err != kerr.Empty {
			return n, senderPid, err
		}
		s.mu.Lock()
		t.State = Blocked
		s.mu.Unlock()
		s.step()
	}
}

// Send routes a message to destPid via the mailbox registry, per §4.I.
func (s *Scheduler) Send(destPid int, senderPid int, data []byte) kerr.Err_t {
	return s.mbRegistry.Send(destPid, senderPid, data)
}

// CurrentPid returns the pid of the task currently executing this call —
// only meaningful when called from within a task's own goroutine.
func (s *Scheduler) CurrentPid() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tasks[s.cur].Pid
}

// Tasks returns a snapshot of every task's (pid, state, priority, slice),
// for the shell's `ps` command.
func (s *Scheduler) Tasks() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Task, len(s.tasks))
	for i, t := range s.tasks {
		out[i] = *t
	}
	return out
}

// step implements the four-part dispatch algorithm of §4.G. It is always
// called from the goroutine that is logically "current" on the CPU (a
// task at one of its suspension points, or the boot goroutine on the
// very first call via Start) — that goroutine's switch context is
// callerCtx below, and it is used as the "old" side of the eventual
// ctxswitch.Switch regardless of whether the caller's Task has just been
// reaped: a terminated task's own goroutine must still be the one that
// physically blocks on its own resume channel, never to be woken again.
func (s *Scheduler) step() {
	s.mu.Lock()

	var callerTask *Task
	if s.cur >= 0 && s.cur < len(s.tasks) {
		callerTask = s.tasks[s.cur]
	}
	callerCtx := s.bootCtx
	if callerTask != nil {
		callerCtx = callerTask.ctx
	}

	// 1. Reap Terminated tasks.
	live := s.tasks[:0:0]
	for _, t := range s.tasks {
		if t.State == Terminated {
			t.note.MarkDead()
			s.mbRegistry.Unregister(t.Pid)
			s.threads.Remove(t.Pid)
			log.Printf("sched: reaped pid %d", t.Pid)
			continue
		}
		live = append(live, t)
	}
	s.tasks = live

	// Recompute cur's ring index relative to callerTask, if it is still
	// live (not just reaped above). If it was reaped, -1 makes
	// pickLocked's "start just after current" scan begin at ring index 0.
	s.cur = -1
	for i, t := range s.tasks {
		if t == callerTask {
			s.cur = i
			break
		}
	}

	// The caller relinquishes Running back to Ready before the scan, so
	// it remains a candidate if the ring has nothing better to offer —
	// pickLocked's full sweep wraps back to the caller's own index last.
	// Sleep/blocking-Receive/Exit already transitioned callerTask's state
	// to Blocked/Terminated before calling step, so this is a no-op then.
	if callerTask != nil && callerTask.State == Running {
		callerTask.State = Ready
	}

	// 2. Wake sleepers whose deadline has passed.
	for _, t := range s.tasks {
		if t.State == Blocked && t.WakeTick != 0 && t.WakeTick <= s.tick {
			t.State = Ready
			t.WakeTick = 0
		}
	}

	// 3. Pick the highest-priority Ready task with remaining time slice,
	// starting just after current in ring order. Ties favor ring order.
	n := len(s.tasks)
	next := s.pickLocked(n)
	if next == -1 {
		// All exhausted: refresh every Ready task's slice and retry once.
		s.Stats.RingExhaust.Inc()
		for _, t := range s.tasks {
			if t.State == Ready {
				t.TimeSlice = limits.Quantum
			}
		}
		next = s.pickLocked(n)
	}

	if next == -1 {
		// No task is schedulable (ring empty or every task
		// Blocked/Terminated): park on bootCtx, the idle anchor. If the
		// caller already *is* bootCtx (Start called with nothing to
		// run), there is nothing to switch to or from — just return.
		s.mu.Unlock()
		if callerTask != nil {
			ctxswitch.Switch(callerCtx, s.bootCtx)
		}
		return
	}

	// 4. Dispatch: step only the synthesized registers/context if the
	// winner differs from who is already running.
	nextTask := s.tasks[next]
	nextTask.State = Running
	nextTask.TimeSlice--
	nextTask.Acct.Systadd(tickNanos)
	s.cur = next

	if nextTask == callerTask {
		s.mu.Unlock()
		return
	}
	s.Stats.Switches.Inc()
	s.mu.Unlock()
	ctxswitch.Switch(callerCtx, nextTask.ctx)
}

// pickLocked scans the ring starting at cur+1 for the highest-priority
// Ready task with remaining time slice, breaking priority ties by ring
// order. Caller holds s.mu. Returns -1 if none qualifies.
func (s *Scheduler) pickLocked(n int) int {
	if n == 0 {
		return -1
	}
	best := -1
	bestPrio := -1
	for i := 1; i <= n; i++ {
		idx := (s.cur + i) % n
		t := s.tasks[idx]
		if t.State != Ready || t.TimeSlice <= 0 {
			continue
		}
		if t.Priority > bestPrio {
			bestPrio = t.Priority
			best = idx
		}
	}
	return best
}
