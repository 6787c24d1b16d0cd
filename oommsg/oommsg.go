// Package oommsg carries low-memory notifications from the kernel heap to
// any task that has registered interest, so a reclaim task can react
// before an allocation fails outright. Kept from the teacher's oommsg
// package essentially unchanged: the notification shape (how much is
// needed, and a channel to signal "go ahead and retry") is exactly what a
// cooperative, single-address-space kernel needs and nothing the ext2/VFS
// expansion changes about it.
package oommsg

// Oommsg_t is sent on a low-memory channel when an allocation could not be
// satisfied immediately.
type Oommsg_t struct {
	// Need is the number of bytes the failed request wanted.
	Need int
	// Resume is signaled by the reclaimer once it believes retrying the
	// allocation is worthwhile.
	Resume chan bool
}

// Chan is the kernel-wide low-memory notification channel. The kernel heap
// sends on it (non-blocking: a full channel just means nobody is listening)
// when Alloc fails; it is otherwise idle.
var Chan = make(chan Oommsg_t, 1)

// Notify attempts a non-blocking send of a low-memory notification.
func Notify(need int) {
	select {
	case Chan <- Oommsg_t{Need: need}:
	default:
	}
}
