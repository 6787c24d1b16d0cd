package tinfo

import "testing"

func TestNewTnoteStartsAliveNotKilled(t *testing.T) {
	n := NewTnote()
	if !n.Alive() || n.Killed() {
		t.Fatal("expected fresh note alive and not killed")
	}
}

func TestMarkDead(t *testing.T) {
	n := NewTnote()
	n.MarkDead()
	if n.Alive() {
		t.Fatal("expected dead after MarkDead")
	}
}

func TestKillAndAck(t *testing.T) {
	n := NewTnote()
	n.Kill()
	if !n.Killed() {
		t.Fatal("expected killed")
	}
	done := make(chan struct{})
	go func() {
		n.WaitKillAck()
		close(done)
	}()
	n.AckKill()
	<-done
}

func TestThreadinfoRegistry(t *testing.T) {
	ti := NewThreadinfo()
	n := NewTnote()
	ti.Add(1, n)
	got, ok := ti.Get(1)
	if !ok || got != n {
		t.Fatal("expected registered note to be retrievable")
	}
	if ti.Len() != 1 {
		t.Fatalf("len = %d, want 1", ti.Len())
	}
	ti.Remove(1)
	if ti.Len() != 0 {
		t.Fatalf("len after remove = %d, want 0", ti.Len())
	}
}
