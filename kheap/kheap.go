// Package kheap implements the kernel heap: component C. It is a single
// free list over a fixed-size byte arena, splitting and coalescing blocks
// on alloc/free, grounded on the index-linked free list the teacher's
// mem.Physmem_t uses for its own page free lists (a "next" index/offset
// chaining scheme instead of an owning pointer graph, per the pointer
// graph design note).
package kheap

import (
	"sync"
	"unsafe"

	"nanos/limits"
	"nanos/oommsg"
	"nanos/stats"
)

// headerSize is the on-arena encoding of a blockHeader: an 8-byte size, a
// 1-byte free flag, 7 bytes of padding to keep the next field aligned, and
// an 8-byte next offset. Blocks are encoded by hand into the arena (a
// plain []byte) rather than overlaid as a Go struct, so the arena's size
// and layout never depend on blockHeader's in-memory representation.
const headerSize = 24

// Heap is a free-list allocator over a fixed-size arena.
type Heap struct {
	mu    sync.Mutex
	arena []byte
	// head is the byte offset of the first block header in the arena.
	// -1 once the arena is exhausted of blocks (never happens: the whole
	// arena is always covered by exactly one chain of blocks).
	head int

	Counters HeapCounters
}

// HeapCounters are the allocation counters the shell's meminfo command
// renders via stats.Stats2String.
type HeapCounters struct {
	Allocs    stats.Counter_t
	Frees     stats.Counter_t
	Exhausted stats.Counter_t
}

// blockHeader is the logical view of the fixed-size header every block in
// the arena begins with. size is the payload size in bytes (not including
// the header); next is the byte offset of the next block's header, or -1
// for the last block.
type blockHeader struct {
	size int
	free bool
	next int
}

// New creates a heap over a fresh arena of the given size. The whole arena
// starts as a single free block.
func New(size int) *Heap {
	size = roundUp(size, limits.HeapAlign)
	h := &Heap{arena: make([]byte, size), head: 0}
	h.writeHeader(0, blockHeader{size: size - headerSize, free: true, next: -1})
	return h
}

func roundUp(v, align int) int {
	return (v + align - 1) &^ (align - 1)
}

func (h *Heap) readHeader(off int) blockHeader {
	b := h.arena[off : off+headerSize]
	return blockHeader{
		size: int(le64(b[0:8])),
		free: b[8] != 0,
		next: int(le64(b[16:24])),
	}
}

func (h *Heap) writeHeader(off int, hdr blockHeader) {
	b := h.arena[off : off+headerSize]
	putLe64(b[0:8], uint64(hdr.size))
	if hdr.free {
		b[8] = 1
	} else {
		b[8] = 0
	}
	putLe64(b[16:24], uint64(hdr.next))
}

func le64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func putLe64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v)
		v >>= 8
	}
}

// Alloc returns a slice of n payload bytes, or nil on exhaustion. n is
// rounded up to HeapAlign. The first free block with enough room is used;
// if it has at least n + header + HeapAlign bytes to spare, it is split and
// the remainder is reinserted as a new free block immediately after it.
func (h *Heap) Alloc(n int) []byte {
	if n <= 0 {
		return nil
	}
	n = roundUp(n, limits.HeapAlign)

	h.mu.Lock()
	defer h.mu.Unlock()

	off := h.head
	for off != -1 {
		hdr := h.readHeader(off)
		if hdr.free && hdr.size >= n {
			if hdr.size >= n+headerSize+limits.HeapAlign {
				newOff := off + headerSize + n
				newSize := hdr.size - n - headerSize
				h.writeHeader(newOff, blockHeader{size: newSize, free: true, next: hdr.next})
				hdr.size = n
				hdr.next = newOff
			}
			hdr.free = false
			h.writeHeader(off, hdr)
			h.Counters.Allocs.Inc()
			return h.arena[off+headerSize : off+headerSize+hdr.size]
		}
		off = hdr.next
	}
	h.Counters.Exhausted.Inc()
	oommsg.Notify(n)
	return nil
}

// Free releases a block previously returned by Alloc, then sweeps the list
// once coalescing any now-adjacent free blocks. p must be a slice returned
// by Alloc on this heap (passing anything else is a programming error, not
// a recoverable condition).
func (h *Heap) Free(p []byte) {
	if p == nil {
		return
	}
	off := h.offsetOf(p) - headerSize

	h.mu.Lock()
	defer h.mu.Unlock()

	hdr := h.readHeader(off)
	hdr.free = true
	h.writeHeader(off, hdr)
	h.coalesceLocked()
	h.Counters.Frees.Inc()
}

func (h *Heap) offsetOf(p []byte) int {
	return int(uintptr(unsafe.Pointer(&p[0])) - uintptr(unsafe.Pointer(&h.arena[0])))
}

// coalesceLocked walks the list once, merging any run of adjacent free
// blocks into a single block. The list is ordered by address (a new
// invariant held since blocks are only ever created by splitting in
// address order), so adjacency in the list is adjacency in memory.
func (h *Heap) coalesceLocked() {
	off := h.head
	for off != -1 {
		hdr := h.readHeader(off)
		for hdr.free && hdr.next == off+headerSize+hdr.size {
			next := h.readHeader(hdr.next)
			if !next.free {
				break
			}
			hdr.size += headerSize + next.size
			hdr.next = next.next
			h.writeHeader(off, hdr)
		}
		off = hdr.next
	}
}

// Stats reports total, used, and free bytes across the whole arena
// (payload bytes only; headers are accounting overhead, not "used" space
// from a caller's perspective).
func (h *Heap) Stats() (total, used, free int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	off := h.head
	for off != -1 {
		hdr := h.readHeader(off)
		total += hdr.size
		if hdr.free {
			free += hdr.size
		} else {
			used += hdr.size
		}
		off = hdr.next
	}
	return total, used, free
}
