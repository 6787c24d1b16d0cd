package accnt

import "testing"

func TestUtaddSystadd(t *testing.T) {
	a := &Accnt{}
	a.Utadd(100)
	a.Systadd(50)
	u, s := a.Snapshot()
	if u != 100 || s != 50 {
		t.Fatalf("got user=%d sys=%d, want 100/50", u, s)
	}
}

func TestAddMergesAnotherRecord(t *testing.T) {
	a := &Accnt{}
	b := &Accnt{}
	a.Utadd(10)
	b.Utadd(20)
	b.Systadd(5)
	a.Add(b)
	u, s := a.Snapshot()
	if u != 30 || s != 5 {
		t.Fatalf("got user=%d sys=%d, want 30/5", u, s)
	}
}

func TestTotalMillis(t *testing.T) {
	a := &Accnt{}
	a.Utadd(2_000_000)
	a.Systadd(3_000_000)
	if a.TotalMillis() != 5 {
		t.Fatalf("got %d, want 5", a.TotalMillis())
	}
}
