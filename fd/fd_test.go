package fd

import (
	"testing"

	"nanos/ustr"
)

func TestSeekClampsToSize(t *testing.T) {
	f := New(5, 100, Read)
	if got := f.Seek(50, SeekSet); got != 50 {
		t.Fatalf("seek set = %d, want 50", got)
	}
	if got := f.Seek(1000, SeekSet); got != 100 {
		t.Fatalf("seek past end = %d, want clamp to 100", got)
	}
	if got := f.Seek(-1000, SeekSet); got != 0 {
		t.Fatalf("seek before start = %d, want clamp to 0", got)
	}
}

func TestSeekCurAndEnd(t *testing.T) {
	f := New(5, 100, Read)
	f.Seek(10, SeekSet)
	if got := f.Seek(5, SeekCur); got != 15 {
		t.Fatalf("seek cur = %d, want 15", got)
	}
	if got := f.Seek(0, SeekEnd); got != 100 {
		t.Fatalf("seek end = %d, want 100", got)
	}
}

func TestAdvanceGrowsSizeAndPosition(t *testing.T) {
	f := New(5, 10, Write)
	f.Advance(20, 30)
	if f.Position() != 20 {
		t.Fatalf("pos = %d, want 20", f.Position())
	}
	if f.Size != 30 {
		t.Fatalf("size = %d, want 30", f.Size)
	}
}

func TestMarkClosedTogglesIsOpen(t *testing.T) {
	f := New(5, 0, Read)
	if !f.IsOpen() {
		t.Fatal("expected freshly created handle to be open")
	}
	f.MarkClosed()
	if f.IsOpen() {
		t.Fatal("expected handle to be closed")
	}
}

func TestCwdFullpathJoinsRelativePaths(t *testing.T) {
	cwd := MkRootCwd(2)
	cwd.SetCwd(5, ustr.Ustr("/a/b"))
	if got := cwd.Fullpath(ustr.Ustr("c")); got.String() != "/a/b/c" {
		t.Fatalf("relative path = %q, want /a/b/c", got)
	}
	if got := cwd.Fullpath(ustr.Ustr("/x")); got.String() != "/x" {
		t.Fatalf("absolute path should pass through unchanged, got %q", got)
	}
}
