package kheap

import "testing"

func TestAllocWriteRoundTrip(t *testing.T) {
	h := New(4096)
	p := h.Alloc(64)
	if p == nil {
		t.Fatal("alloc failed")
	}
	if len(p) < 64 {
		t.Fatalf("payload too small: %d", len(p))
	}
	for i := range p[:64] {
		p[i] = byte(i)
	}
	for i := 0; i < 64; i++ {
		if p[i] != byte(i) {
			t.Fatalf("byte %d corrupted", i)
		}
	}
}

func TestFreeCoalescesAdjacentBlocks(t *testing.T) {
	h := New(4096)
	a := h.Alloc(64)
	b := h.Alloc(64)
	c := h.Alloc(64)
	if a == nil || b == nil || c == nil {
		t.Fatal("alloc failed")
	}

	h.Free(a)
	h.Free(c)
	h.Free(b) // freeing the middle block should merge all three into one run

	// A single allocation spanning (roughly) all three original blocks'
	// payload lands at a's address only if the three free blocks were
	// actually merged into one contiguous run rather than left as three
	// small holes (the tail past c could satisfy it on its own otherwise).
	big := h.Alloc(64*3 - 8)
	if big == nil {
		t.Fatal("expected coalesced free run to satisfy a larger allocation")
	}
	if &big[0] != &a[0] {
		t.Fatal("expected the larger allocation to start at the coalesced run's first block")
	}
}

func TestOutOfMemoryReturnsNil(t *testing.T) {
	h := New(256)
	first := h.Alloc(1024)
	if first != nil {
		t.Fatal("expected nil for oversized allocation")
	}
}

func TestStatsAccounting(t *testing.T) {
	h := New(4096)
	total, used, free := h.Stats()
	if used != 0 {
		t.Fatalf("fresh heap used = %d, want 0", used)
	}
	if total != free {
		t.Fatalf("fresh heap total %d != free %d", total, free)
	}

	p := h.Alloc(128)
	_, used2, free2 := h.Stats()
	if used2 == 0 {
		t.Fatal("used should be nonzero after alloc")
	}
	if free2 >= free {
		t.Fatal("free should shrink after alloc")
	}
	h.Free(p)
}
