package hashtable

import "testing"

func TestSetGet(t *testing.T) {
	ht := New(4)
	ht.Set(2, "inode-2")
	v, ok := ht.Get(2)
	if !ok || v != "inode-2" {
		t.Fatalf("got %v %v, want inode-2 true", v, ok)
	}
}

func TestSetReplacesAndReturnsOld(t *testing.T) {
	ht := New(4)
	ht.Set(5, "a")
	old, existed := ht.Set(5, "b")
	if !existed || old != "a" {
		t.Fatalf("got %v %v, want a true", old, existed)
	}
	v, _ := ht.Get(5)
	if v != "b" {
		t.Fatalf("got %v, want b", v)
	}
}

func TestDel(t *testing.T) {
	ht := New(4)
	ht.Set(7, "x")
	ht.Del(7)
	if _, ok := ht.Get(7); ok {
		t.Fatal("expected key gone after Del")
	}
	ht.Del(999) // no-op on missing key
}

func TestElemsCountsAllInsertions(t *testing.T) {
	ht := New(4)
	for i := 0; i < 20; i++ {
		ht.Set(i, i*i)
	}
	if len(ht.Elems()) != 20 {
		t.Fatalf("got %d elems, want 20", len(ht.Elems()))
	}
}
