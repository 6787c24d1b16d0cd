// Package fd implements the open-file-descriptor and working-directory
// types the VFS facade (component F) hands back to callers, grounded on
// the teacher's fd/fd.go Fd_t/Cwd_t split: an open handle is just enough
// state to resume an ext2 operation (which inode, how far into it, with
// what permissions), and Cwd_t centralizes "what does a relative path
// mean right now".
package fd

import (
	"sync"

	"nanos/ustr"
)

// Open-mode permission bits, mirrored from the teacher's FD_READ/FD_WRITE
// convention.
const (
	Read  = 0x1
	Write = 0x2
)

// Fd_t is the File Handle of §3: an inode number, a cached size, a
// position cursor, and an open flag. Lifecycle: created by vfs.Open,
// destroyed by vfs.Close; Pos is clamped to [0, Size] on Seek.
type Fd_t struct {
	mu sync.Mutex

	Ino   int
	Size  int
	Pos   int
	Perms int
	open  bool
}

// New wraps ino as a freshly opened handle at position 0.
func New(ino int, size int, perms int) *Fd_t {
	return &Fd_t{Ino: ino, Size: size, Perms: perms, open: true}
}

// IsOpen reports whether Close has not yet been called on this handle.
func (f *Fd_t) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

// MarkClosed flips the handle to closed; further operations on it are a
// caller error.
func (f *Fd_t) MarkClosed() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = false
}

// Seek updates Pos per lseek whence semantics, clamping the result to
// [0, Size] per §3's File Handle invariant. whence is one of SeekSet,
// SeekCur, SeekEnd.
func (f *Fd_t) Seek(offset int, whence int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	var base int
	switch whence {
	case SeekCur:
		base = f.Pos
	case SeekEnd:
		base = f.Size
	default:
		base = 0
	}
	np := base + offset
	if np < 0 {
		np = 0
	}
	if np > f.Size {
		np = f.Size
	}
	f.Pos = np
	return f.Pos
}

// Whence values for Seek.
const (
	SeekSet = 0
	SeekCur = 1
	SeekEnd = 2
)

// Position returns the handle's current cursor.
func (f *Fd_t) Position() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Pos
}

// Advance moves Pos forward by n bytes (used after a successful read or
// write), and raises the cached Size to newSize if the file has grown.
func (f *Fd_t) Advance(n int, newSize int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Pos += n
	if newSize > f.Size {
		f.Size = newSize
	}
}

// Cwd_t tracks a task's current working directory: the directory's inode
// number plus its canonical path, grounded on the teacher's
// Cwd_t.Fullpath/Canonicalpath convention for resolving relative paths.
type Cwd_t struct {
	mu   sync.Mutex
	Ino  int
	Path ustr.Ustr
}

// MkRootCwd returns a Cwd_t rooted at "/".
func MkRootCwd(rootIno int) *Cwd_t {
	return &Cwd_t{Ino: rootIno, Path: ustr.MkUstrRoot()}
}

// Fullpath joins cwd with p if p is not already absolute.
func (cwd *Cwd_t) Fullpath(p ustr.Ustr) ustr.Ustr {
	cwd.mu.Lock()
	defer cwd.mu.Unlock()
	if p.IsAbsolute() {
		return p
	}
	return cwd.Path.Extend(p)
}

// SetCwd updates the working directory to (ino, path) after a successful
// chdir-equivalent resolution.
func (cwd *Cwd_t) SetCwd(ino int, path ustr.Ustr) {
	cwd.mu.Lock()
	defer cwd.mu.Unlock()
	cwd.Ino = ino
	cwd.Path = path
}
