// Package ipc implements component I: fixed-capacity per-task mailboxes.
// Every task owns a Mailbox; sched wires Mailbox.SetOnArrival to wake a
// blocked receiver, since "is the destination currently Blocked" is
// scheduler state ipc itself does not own.
//
// Grounded on the teacher's Tnote_t-adjacent wake idiom (a state
// transition triggered by another task's action rather than a timer) and
// on spec.md §4.I's exact ring/FIFO contract.
package ipc

import (
	"sync"

	"nanos/kerr"
	"nanos/limits"
	"nanos/stats"
)

// Message is one mailbox entry: up to PayloadMax bytes from SenderPid.
type Message struct {
	SenderPid int
	Payload   [limits.PayloadMax]byte
	Len       int
}

// Mailbox is a fixed-capacity FIFO ring of Message, QueueCap deep.
type Mailbox struct {
	mu        sync.Mutex
	ring      [limits.QueueCap]Message
	head      int
	tail      int
	count     int
	onArrival func()

	Stats MailboxStats
}

// MailboxStats are the per-mailbox counters, in the form
// stats.Stats2String renders; the shell does not display them.
type MailboxStats struct {
	Sent       stats.Counter_t
	Received   stats.Counter_t
	QueueFull  stats.Counter_t
}

// NewMailbox allocates an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{}
}

// SetOnArrival installs a callback invoked after a successful Send. The
// scheduler uses this to transition a Blocked receiver to Ready — the
// only wake path besides sleep's deadline, per §4.G/§4.I.
func (m *Mailbox) SetOnArrival(f func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onArrival = f
}

// Send copies up to PayloadMax bytes of data into the mailbox, stamped
// with senderPid. Returns QueueFull without touching the ring if it is
// already at capacity — integrity requires a send either fully completes
// or leaves the ring untouched.
func (m *Mailbox) Send(senderPid int, data []byte) kerr.Err_t {
	m.mu.Lock()
	if m.count == limits.QueueCap {
		m.mu.Unlock()
		m.Stats.QueueFull.Inc()
		return kerr.QueueFull
	}

	n := len(data)
	if n > limits.PayloadMax {
		n = limits.PayloadMax
	}
	msg := Message{SenderPid: senderPid, Len: n}
	copy(msg.Payload[:n], data[:n])

	m.ring[m.head] = msg
	m.head = (m.head + 1) % limits.QueueCap
	m.count++
	m.Stats.Sent.Inc()
	cb := m.onArrival
	m.mu.Unlock()

	if cb != nil {
		cb()
	}
	return kerr.OK
}

// TryReceive is the non-blocking core receive operation: it returns
// kerr.Empty immediately if the ring holds no message, rather than
// waiting. sched.Receive builds the blocking `receive` spec.md describes
// on top of this (see §9's resolved open question).
func (m *Mailbox) TryReceive(out []byte) (n int, senderPid int, err kerr.Err_t) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.count == 0 {
		return 0, 0, kerr.Empty
	}
	msg := m.ring[m.tail]
	m.tail = (m.tail + 1) % limits.QueueCap
	m.count--
	m.Stats.Received.Inc()

	n = msg.Len
	if n > len(out) {
		n = len(out)
	}
	copy(out, msg.Payload[:n])
	return n, msg.SenderPid, kerr.OK
}

// Empty reports whether the mailbox currently holds no messages.
func (m *Mailbox) Empty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count == 0
}

// Registry maps pids to mailboxes so Send can look up a destination by
// pid, per §4.I's "look up dest; if absent -> NoSuchPid".
type Registry struct {
	mu    sync.Mutex
	boxes map[int]*Mailbox
}

// NewRegistry allocates an empty pid->mailbox registry.
func NewRegistry() *Registry {
	return &Registry{boxes: make(map[int]*Mailbox)}
}

// Register associates pid with mb, called when a task is spawned.
func (r *Registry) Register(pid int, mb *Mailbox) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.boxes[pid] = mb
}

// Unregister drops pid's mailbox, called when a task is reaped.
func (r *Registry) Unregister(pid int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.boxes, pid)
}

// Send resolves destPid to a mailbox and sends through it, returning
// NoSuchPid if no task with that pid is registered.
func (r *Registry) Send(destPid, senderPid int, data []byte) kerr.Err_t {
	r.mu.Lock()
	mb, ok := r.boxes[destPid]
	r.mu.Unlock()
	if !ok {
		return kerr.NoSuchPid
	}
	return mb.Send(senderPid, data)
}
