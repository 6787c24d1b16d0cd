// Package limits centralizes the fixed numeric constants that the memory,
// scheduling, and IPC components are built against, grounded on the
// teacher's Syslimit_t convention of keeping system-wide tunables in one
// place rather than scattered as magic numbers across packages.
package limits

const (
	// PhysPage is the physical/virtual page size used throughout the
	// kernel (frame allocator granularity, paging granularity).
	PhysPage = 4096

	// PhysStart is the fixed physical base of the managed range; the
	// first megabyte is reserved for the boot loader, real-mode IVT and
	// BIOS data area and is never handed out by the frame allocator.
	PhysStart = 1 << 20

	// MaxPhys bounds the amount of physical memory the frame allocator
	// will ever manage, regardless of what the boot memory map reports.
	MaxPhys = 512 << 20

	// DynamicBase is the virtual address at and above which pages are
	// mapped lazily by the page-fault handler instead of identity-mapped
	// at boot.
	DynamicBase = 0xC0000000

	// HeapAlign is the minimum alignment of every kernel heap payload.
	HeapAlign = 8

	// Quantum is the number of ticks a task may run before being forced
	// to yield the CPU to the next ready task of equal-or-lower priority.
	Quantum = 5

	// TimerHz is the frequency of the preemption timer.
	TimerHz = 100

	// PayloadMax is the largest payload, in bytes, a single IPC message
	// may carry.
	PayloadMax = 32

	// QueueCap is the number of messages a task's mailbox can hold before
	// send returns QueueFull.
	QueueCap = 8

	// MaxSymlinkDepth bounds symlink-following chains; exceeding it is
	// reported as SymlinkLoop.
	MaxSymlinkDepth = 8

	// MaxNameLen is the longest permitted directory entry name.
	MaxNameLen = 255

	// SectorSize is the fixed block-device sector size.
	SectorSize = 512
)
