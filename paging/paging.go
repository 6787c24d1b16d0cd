// Package paging implements the two-level page map: component B. It
// identity-maps a static range at init time and lazily maps frames into the
// dynamic region (addresses >= limits.DynamicBase) from its page-fault
// handler.
//
// Grounded on the teacher's page-table-entry idioms (mem.Pa_t address
// type, PTE_P/PTE_W/PTE_U flag bits) and on the enrichment pack's
// gopheros vmm package for the entry/flag/walk shape of a real two-level
// x86 map (pageTableEntry.SetFlags/HasFlags/Frame, and Map's
// allocate-table-on-demand walk).
package paging

import (
	"errors"
	"log"
	"sync"
	"unsafe"

	"nanos/frame"
	"nanos/kheap"
	"nanos/limits"
)

var (
	errOutOfHeap  = errors.New("paging: out of heap backing leaf tables")
	errFatalFault = errors.New("paging: fatal page fault")
)

// tableHeap backs leaf table allocations. Leaf tables are carved from the
// kernel heap rather than statically reserved, per §4.B's map_page
// description ("allocating a leaf table via the heap if absent") —
// preallocating all 1024 possible leaf tables up front would reserve 4 MiB
// of arena no boot ever uses in full.
var tableHeap = kheap.New(4 << 20)

const tableBytes = int(unsafe.Sizeof(table{}))

func tableFromBytes(b []byte) *table {
	return (*table)(unsafe.Pointer(&b[0]))
}

// Flag is a page table entry flag bit.
type Flag uint32

const (
	FlagPresent  Flag = 1 << 0
	FlagWritable Flag = 1 << 1
	FlagUser     Flag = 1 << 2
)

const entriesPerTable = 1024

// entry is a single page table entry: a frame address plus flag bits
// packed into its low 12 bits, matching a real x86 PTE/PDE layout.
type entry uint32

func (e entry) hasFlags(f Flag) bool { return uint32(e)&uint32(f) == uint32(f) }
func (e *entry) setFlags(f Flag)     { *e = entry(uint32(*e) | uint32(f)) }
func (e entry) frame() frame.Addr    { return frame.Addr(uint32(e) &^ 0xFFF) }
func mkEntry(fr frame.Addr, f Flag) entry {
	return entry(uint32(fr)&^0xFFF | uint32(f))
}

// table is one level of the two-level map: 1024 entries, 4 KiB total —
// exactly a hardware page directory/page table's shape.
type table [entriesPerTable]entry

// Map is the two-level page map for the kernel's single address space.
// There is no per-task address space in this kernel (no user/kernel
// split, no process isolation — per spec.md's Non-goals); Map is a
// process-wide singleton.
type Map struct {
	mu    sync.Mutex
	root  *table
	leafs map[uint32]*table // indexed by root entry index
}

// Global is the kernel's single page map.
var Global = &Map{}

// invalidateFn flushes one virtual page's TLB entry. Overridable by tests,
// since there is no real MMU to invalidate in a hosted test binary.
var invalidateFn = func(va uintptr) {}

// haltFn is invoked on a fatal (non-dynamic-region) page fault. Tests
// override it to observe the fatal path without actually halting.
var haltFn = func(format string, args ...interface{}) {
	log.Printf("PAGE FAULT (fatal): "+format, args...)
	select {} // halt: no task ever runs again
}

func split(va uintptr) (rootIdx, leafIdx uint32, offset uint32) {
	page := uint32(va) >> 12
	return page >> 10, page & 0x3FF, uint32(va) & 0xFFF
}

// Init identity-maps [0, identityEnd) with {present, writable} and
// installs the root table. identityEnd should already be rounded up to
// the 4 MiB boundary computed from the kernel image, heap arena, stack,
// and growth buffer, per §4.B step 1.
func (m *Map) Init(identityEnd uintptr) {
	m.mu.Lock()
	m.root = &table{}
	m.leafs = make(map[uint32]*table)
	m.mu.Unlock()

	for va := uintptr(0); va < identityEnd; va += limits.PhysPage {
		if err := m.MapPage(va, frame.Addr(va), FlagPresent|FlagWritable); err != nil {
			// Identity mapping the kernel's own image must never fail:
			// the frames in this range are always backed by RAM.
			panic(err)
		}
	}
}

// MapPage installs or overwrites a single page mapping, allocating a leaf
// table from the kernel heap if one is not yet present for this range of
// the address space.
func (m *Map) MapPage(va uintptr, fr frame.Addr, flags Flag) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rootIdx, leafIdx, _ := split(va)
	leaf, ok := m.leafs[rootIdx]
	if !ok {
		buf := tableHeap.Alloc(tableBytes)
		if buf == nil {
			return errOutOfHeap
		}
		leaf = tableFromBytes(buf)
		m.leafs[rootIdx] = leaf
		m.root[rootIdx] = mkEntry(0, FlagPresent|FlagWritable)
	}
	leaf[leafIdx] = mkEntry(fr, flags)
	invalidateFn(va)
	return nil
}

// Unmap clears a single page's present flag.
func (m *Map) Unmap(va uintptr) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rootIdx, leafIdx, _ := split(va)
	leaf, ok := m.leafs[rootIdx]
	if !ok {
		return
	}
	leaf[leafIdx] = 0
	invalidateFn(va)
}

// Translate returns the physical frame currently mapped at va, and whether
// a mapping is present.
func (m *Map) Translate(va uintptr) (frame.Addr, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rootIdx, leafIdx, _ := split(va)
	leaf, ok := m.leafs[rootIdx]
	if !ok {
		return 0, false
	}
	e := leaf[leafIdx]
	if !e.hasFlags(FlagPresent) {
		return 0, false
	}
	return e.frame(), true
}

// HandleFault is the page-fault handler installed over the boot
// collaborator's IDT. If the faulting address lies in the dynamic region
// (>= DynamicBase), a frame is allocated and mapped present+writable and
// the faulting instruction may be resumed. Any other fault is fatal: it is
// logged with the address and error code and the kernel halts, per §4.B.
func (m *Map) HandleFault(faultAddr uintptr, errorCode uint32) error {
	if faultAddr < limits.DynamicBase {
		haltFn("addr=%#x code=%#x", faultAddr, errorCode)
		return errFatalFault
	}

	fr := frame.Global.AllocPage()
	if fr == 0 {
		// Out of physical memory while servicing a dynamic-region fault
		// is itself fatal: there is nothing left to hand the faulting
		// task to make forward progress.
		haltFn("out of physical memory servicing fault at %#x", faultAddr)
		return errFatalFault
	}
	page := uintptr(faultAddr) &^ (limits.PhysPage - 1)
	return m.MapPage(page, fr, FlagPresent|FlagWritable)
}
