package frame

import (
	"testing"

	"nanos/limits"
)

func freshAllocator(t *testing.T, totalBytes int) *Allocator {
	t.Helper()
	a := &Allocator{}
	kernelStart := Addr(limits.PhysStart)
	kernelEnd := kernelStart + 4096*8
	a.Init(totalBytes, kernelStart, kernelEnd)
	return a
}

func TestInitReservesKernelAndBitmap(t *testing.T) {
	a := freshAllocator(t, 16<<20)
	total := a.TotalPages()
	free := a.FreeCount()
	if free >= total {
		t.Fatalf("expected some pages reserved for kernel+bitmap, got free=%d total=%d", free, total)
	}
}

func TestAllocFreeRoundTrip(t *testing.T) {
	a := freshAllocator(t, 4<<20)
	before := a.FreeCount()

	p := a.AllocPage()
	if p == 0 {
		t.Fatal("alloc failed unexpectedly")
	}
	if a.FreeCount() != before-1 {
		t.Fatalf("free count = %d, want %d", a.FreeCount(), before-1)
	}

	a.FreePage(p)
	if a.FreeCount() != before {
		t.Fatalf("free count after free = %d, want %d", a.FreeCount(), before)
	}
}

func TestDoubleFreeIsIgnored(t *testing.T) {
	a := freshAllocator(t, 4<<20)
	p := a.AllocPage()
	a.FreePage(p)
	before := a.FreeCount()
	a.FreePage(p) // double free: must not panic or change free count
	if a.FreeCount() != before {
		t.Fatalf("double free changed free count: got %d want %d", a.FreeCount(), before)
	}
}

func TestFreeOutOfRangeIsIgnored(t *testing.T) {
	a := freshAllocator(t, 4<<20)
	before := a.FreeCount()
	a.FreePage(Addr(0xDEADB000))
	if a.FreeCount() != before {
		t.Fatalf("out-of-range free changed free count: got %d want %d", a.FreeCount(), before)
	}
}

func TestAllocExhaustion(t *testing.T) {
	a := freshAllocator(t, 64*limits.PhysPage) // small pool
	var got []Addr
	for {
		p := a.AllocPage()
		if p == 0 {
			break
		}
		got = append(got, p)
	}
	if a.AllocPage() != 0 {
		t.Fatal("expected exhaustion to persist")
	}
	for _, p := range got {
		a.FreePage(p)
	}
	if a.AllocPage() == 0 {
		t.Fatal("expected allocation to succeed again after freeing")
	}
}

func TestFreeCountMatchesClearBits(t *testing.T) {
	a := freshAllocator(t, 8<<20)
	var allocated []Addr
	for i := 0; i < 100; i++ {
		p := a.AllocPage()
		if p == 0 {
			t.Fatal("unexpected exhaustion")
		}
		allocated = append(allocated, p)
	}

	clear := 0
	for word := range a.bitmap {
		for bit := 0; bit < 64; bit++ {
			idx := word*64 + bit
			if idx >= int(a.end-a.start)/limits.PhysPage {
				break
			}
			if !a.bitLocked(idx) {
				clear++
			}
		}
	}
	if clear != a.FreeCount() {
		t.Fatalf("clear bit count %d != FreeCount %d", clear, a.FreeCount())
	}

	for _, p := range allocated {
		a.FreePage(p)
	}
}
