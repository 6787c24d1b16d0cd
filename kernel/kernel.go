// Package kernel wires every component together in the dependency order
// spec.md §2 mandates: frame (A) before paging (B) before the heap (C)
// before the block device/scheduler/context-switch/IPC group (D, G, H,
// I) before the filesystem (E) before the VFS facade (F) before the
// shell (J). There is no separate boot assembly stub in this kernel (no
// real Multiboot/ELF entry — an out-of-scope external collaborator per
// spec.md §1), so Boot plays the role a real kernel's `main()` plays
// once control reaches Go: initialize singletons in order, then hand
// back a running system.
package kernel

import (
	"log"

	"nanos/blockdev"
	"nanos/ext2"
	"nanos/frame"
	"nanos/kerr"
	"nanos/kheap"
	"nanos/limits"
	"nanos/paging"
	"nanos/sched"
	"nanos/shell"
	"nanos/vfs"
)

// Config bounds the resources Boot hands to each component. Production
// use supplies DefaultConfig; tests shrink every field to keep fixtures
// small and fast.
type Config struct {
	PhysMemBytes int
	KernelStart  frame.Addr
	KernelEnd    frame.Addr
	IdentityEnd  uintptr
	AppHeapBytes int
	DiskSectors  int
	FsBlocks     int
	FsInodes     int
}

// DefaultConfig sizes a boot the way a small virtual machine would be
// sized: 64 MiB of physical memory, a kernel image ending at 2 MiB that
// is identity-mapped (with a 1 MiB growth buffer) up to the next 4 MiB
// boundary, a 1 MiB application heap backing the shell and its transient
// buffers, and a 512-block/128-inode root filesystem formatted fresh on
// the in-memory disk.
func DefaultConfig() Config {
	const kernelEnd = frame.Addr(2 << 20)
	return Config{
		PhysMemBytes: 64 << 20,
		KernelStart:  frame.Addr(limits.PhysStart),
		KernelEnd:    kernelEnd,
		IdentityEnd:  (uintptr(kernelEnd) + 1<<20 + 4<<20 - 1) &^ (4<<20 - 1),
		AppHeapBytes: 1 << 20,
		DiskSectors:  2048,
		FsBlocks:     512,
		FsInodes:     128,
	}
}

// Kernel holds every booted singleton a driver loop or test needs a
// handle to.
type Kernel struct {
	Disk      blockdev.Disk
	Scheduler *sched.Scheduler
	Heap      *kheap.Heap
	Fs        *ext2.Fs
	Vfs       *vfs.Vfs
	Shell     *shell.Shell
}

// Boot initializes every component in §2's dependency order and returns
// the assembled kernel, ready for a driver loop to call Shell.Run and,
// separately, tick Scheduler.Tick at limits.TimerHz. It panics on a
// formatting failure: an undersized disk or inode table for the
// requested FsBlocks/FsInodes is a configuration bug, not a runtime
// condition a caller can recover from.
func Boot(cfg Config) *Kernel {
	frame.Global.Init(cfg.PhysMemBytes, cfg.KernelStart, cfg.KernelEnd)
	paging.Global.Init(cfg.IdentityEnd)
	heap := kheap.New(cfg.AppHeapBytes)

	disk := blockdev.NewRAMDisk(cfg.DiskSectors)
	blockdev.Global.Register("ramdisk0", disk)
	scheduler := sched.New()

	fs, err := ext2.Format(disk, cfg.FsBlocks, cfg.FsInodes)
	if err != kerr.OK {
		log.Panicf("kernel: format root filesystem: %v", err)
	}

	v := vfs.New(fs, func() uint32 { return uint32(scheduler.Now() / limits.TimerHz) })
	sh := shell.New(v, scheduler, heap)

	log.Printf("kernel: booted, %d-block/%d-inode root filesystem mounted", cfg.FsBlocks, cfg.FsInodes)
	return &Kernel{
		Disk:      disk,
		Scheduler: scheduler,
		Heap:      heap,
		Fs:        fs,
		Vfs:       v,
		Shell:     sh,
	}
}
