// Package frame implements the physical page frame allocator: component A
// of the kernel. It owns a single bit per page over a contiguous physical
// range and hands out/reclaims PhysPage-sized frames with a first-fit scan.
//
// Grounded on the teacher's mem.Physmem_t (Pa_t address type, PGSHIFT/PGSIZE
// naming, a package-level singleton) combined with the bitmap-scan design
// from the enrichment pack's pmm.BitmapAllocator (first-fit scan over
// uint64 words, reserve-by-range at boot).
package frame

import (
	"log"
	"sync"

	"nanos/kdiag"
	"nanos/limits"
	"nanos/stats"
)

// Addr is a physical address. Kept as its own type, mirroring the
// teacher's mem.Pa_t, so frame addresses are never accidentally mixed with
// virtual addresses at a call site.
type Addr uintptr

// Allocator is a bitmap-backed physical frame allocator over
// [start, end), one bitmap bit per PhysPage.
type Allocator struct {
	mu        sync.Mutex
	start     Addr
	end       Addr
	bitmap    []uint64 // one bit per page; 1 == used
	freeCount int

	Stats      AllocatorStats
	badFreeLog kdiag.Distinct_t
}

// AllocatorStats are the allocator's event counters, in the form
// stats.Stats2String renders; the shell does not display them.
type AllocatorStats struct {
	Allocs      stats.Counter_t
	Frees       stats.Counter_t
	DoubleFrees stats.Counter_t
}

// Global is the kernel's single physical frame allocator, initialized once
// at boot in the dependency order mandated by component A.
var Global = &Allocator{}

// Init places the allocator over [PhysStart, PhysStart+min(totalBytes,MaxPhys)),
// marks every frame in [kernelStart, kernelEnd) and the bitmap's own backing
// storage as used, and leaves the remainder free. This mirrors §4.A:
// PHYS_START is fixed at 1 MiB; the bitmap itself is placed immediately
// after kernelEnd rounded up to a page.
func (a *Allocator) Init(totalBytes int, kernelStart, kernelEnd Addr) {
	a.mu.Lock()
	defer a.mu.Unlock()

	span := totalBytes
	if span > limits.MaxPhys {
		span = limits.MaxPhys
	}
	a.start = Addr(limits.PhysStart)
	a.end = a.start + Addr(span)

	pageCount := int(a.end-a.start) / limits.PhysPage
	words := (pageCount + 63) / 64
	a.bitmap = make([]uint64, words)
	a.freeCount = pageCount

	bitmapBytes := words * 8
	bitmapStart := roundUp(kernelEnd, limits.PhysPage)
	bitmapEnd := bitmapStart + Addr(roundUp(Addr(bitmapBytes), limits.PhysPage))

	a.reserveLocked(kernelStart, kernelEnd)
	a.reserveLocked(bitmapStart, bitmapEnd)

	log.Printf("frame: managing %d pages [%#x-%#x), %d reserved for kernel+bitmap",
		pageCount, a.start, a.end, pageCount-a.freeCount)
}

func roundUp(v Addr, align int) Addr {
	a := Addr(align)
	return (v + a - 1) &^ (a - 1)
}

func (a *Allocator) indexOf(addr Addr) (idx int, ok bool) {
	if addr < a.start || addr >= a.end {
		return 0, false
	}
	if addr&(limits.PhysPage-1) != 0 {
		return 0, false
	}
	return int(addr-a.start) / limits.PhysPage, true
}

func (a *Allocator) bitLocked(idx int) bool {
	return a.bitmap[idx/64]&(1<<uint(idx%64)) != 0
}

func (a *Allocator) setBitLocked(idx int, used bool) {
	word, bit := idx/64, uint(idx%64)
	if used {
		a.bitmap[word] |= 1 << bit
	} else {
		a.bitmap[word] &^= 1 << bit
	}
}

// ReserveRegion marks every page overlapping [start, end) as used without
// affecting the free count twice for already-used pages, for callers that
// need to carve out a span after Init.
func (a *Allocator) ReserveRegion(start, end Addr) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reserveLocked(start, end)
}

func (a *Allocator) reserveLocked(start, end Addr) {
	start = Addr(rounddown(int(start), limits.PhysPage))
	end = roundUp(end, limits.PhysPage)
	for p := start; p < end; p += limits.PhysPage {
		idx, ok := a.indexOf(p)
		if !ok {
			continue
		}
		if !a.bitLocked(idx) {
			a.setBitLocked(idx, true)
			a.freeCount--
		}
	}
}

func rounddown(v, b int) int {
	return v - (v % b)
}

// AllocPage returns the physical address of a free page, or 0 on
// exhaustion. The scan is first-fit: fragmentation at page granularity
// does not matter for this kernel's purposes.
func (a *Allocator) AllocPage() Addr {
	a.mu.Lock()
	defer a.mu.Unlock()

	for word := range a.bitmap {
		if a.bitmap[word] == ^uint64(0) {
			continue
		}
		for bit := 0; bit < 64; bit++ {
			idx := word*64 + bit
			if idx >= int(a.end-a.start)/limits.PhysPage {
				break
			}
			if !a.bitLocked(idx) {
				a.setBitLocked(idx, true)
				a.freeCount--
				a.Stats.Allocs.Inc()
				return a.start + Addr(idx*limits.PhysPage)
			}
		}
	}
	return 0
}

// FreePage releases a previously allocated page. A double-free or an
// out-of-range address is logged as a warning and otherwise ignored; the
// frame allocator never panics on these per the error handling design.
func (a *Allocator) FreePage(addr Addr) {
	a.mu.Lock()
	defer a.mu.Unlock()

	idx, ok := a.indexOf(addr)
	if !ok {
		log.Printf("frame: free of out-of-range address %#x ignored", addr)
		return
	}
	if !a.bitLocked(idx) {
		a.Stats.DoubleFrees.Inc()
		if !a.badFreeLog.Seen() {
			log.Printf("frame: double free of %#x ignored", addr)
		}
		return
	}
	a.setBitLocked(idx, false)
	a.freeCount++
	a.Stats.Frees.Inc()
}

// FreeCount returns the number of currently free pages. Exposed for the
// quantified invariant in the testable properties: free count must always
// equal the number of clear bits in the bitmap.
func (a *Allocator) FreeCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.freeCount
}

// TotalPages returns the total number of pages the allocator manages.
func (a *Allocator) TotalPages() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return int(a.end-a.start) / limits.PhysPage
}
