package paging

import (
	"testing"

	"nanos/frame"
	"nanos/limits"
)

func freshMap(t *testing.T) *Map {
	t.Helper()
	frame.Global = &frame.Allocator{}
	frame.Global.Init(16<<20, frame.Addr(limits.PhysStart), frame.Addr(limits.PhysStart+4096*8))
	return &Map{}
}

func TestInitIdentityMapsRange(t *testing.T) {
	m := freshMap(t)
	m.Init(4 * limits.PhysPage)

	for va := uintptr(0); va < 4*limits.PhysPage; va += limits.PhysPage {
		fr, ok := m.Translate(va)
		if !ok {
			t.Fatalf("va %#x not mapped after Init", va)
		}
		if fr != frame.Addr(va) {
			t.Fatalf("va %#x mapped to %#x, want identity %#x", va, fr, va)
		}
	}
}

func TestMapPageAllocatesLeafOnDemand(t *testing.T) {
	m := freshMap(t)
	m.root = &table{}
	m.leafs = make(map[uint32]*table)

	va := uintptr(0x00500000)
	if err := m.MapPage(va, frame.Addr(0x1000), FlagPresent|FlagWritable); err != nil {
		t.Fatalf("MapPage: %v", err)
	}
	fr, ok := m.Translate(va)
	if !ok || fr != 0x1000 {
		t.Fatalf("translate after map: fr=%#x ok=%v", fr, ok)
	}
}

func TestUnmapClearsTranslation(t *testing.T) {
	m := freshMap(t)
	m.root = &table{}
	m.leafs = make(map[uint32]*table)

	va := uintptr(0x00600000)
	m.MapPage(va, frame.Addr(0x2000), FlagPresent)
	m.Unmap(va)

	if _, ok := m.Translate(va); ok {
		t.Fatal("expected no mapping after Unmap")
	}
}

func TestHandleFaultMapsDynamicRegion(t *testing.T) {
	m := freshMap(t)
	m.root = &table{}
	m.leafs = make(map[uint32]*table)

	fault := limits.DynamicBase + 0x1000
	if err := m.HandleFault(fault, 0); err != nil {
		t.Fatalf("HandleFault: %v", err)
	}
	page := fault &^ (limits.PhysPage - 1)
	if _, ok := m.Translate(page); !ok {
		t.Fatal("expected dynamic-region fault to install a mapping")
	}
}

func TestHandleFaultOutsideDynamicRegionIsFatal(t *testing.T) {
	m := freshMap(t)
	m.root = &table{}
	m.leafs = make(map[uint32]*table)

	called := false
	old := haltFn
	haltFn = func(format string, args ...interface{}) { called = true }
	defer func() { haltFn = old }()

	err := m.HandleFault(0x1000, 0)
	if err != errFatalFault {
		t.Fatalf("expected errFatalFault, got %v", err)
	}
	if !called {
		t.Fatal("expected haltFn to be invoked for a fault outside the dynamic region")
	}
}

func TestInvalidateFnCalledOnMapAndUnmap(t *testing.T) {
	m := freshMap(t)
	m.root = &table{}
	m.leafs = make(map[uint32]*table)

	var seen []uintptr
	old := invalidateFn
	invalidateFn = func(va uintptr) { seen = append(seen, va) }
	defer func() { invalidateFn = old }()

	va := uintptr(0x00700000)
	m.MapPage(va, frame.Addr(0x3000), FlagPresent)
	m.Unmap(va)

	if len(seen) != 2 || seen[0] != va || seen[1] != va {
		t.Fatalf("expected invalidateFn called twice for %#x, got %v", va, seen)
	}
}
