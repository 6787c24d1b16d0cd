// Package vfs implements component F: the facade spec.md §4.F describes
// over the ext2 driver — open/close/read/write/seek/truncate/create/
// unlink/create_symlink/chmod/chown/stat/exists/list_directory, symlink
// following, and atime/mtime/ctime maintenance. Grounded on the
// teacher's ufs/ufs.go (the layer that turns raw fs.Fs_t operations into
// the handful of named verbs a shell actually calls).
package vfs

import (
	"nanos/ext2"
	"nanos/fd"
	"nanos/kerr"
	"nanos/stat"
	"nanos/ustr"
)

// Open flags, mirrored from the teacher's defs.O_* convention.
const (
	ORdonly = 0x0
	OWronly = 0x1
	ORdwr   = 0x2
	OCreat  = 0x40
	OTrunc  = 0x200
)

// NowFunc returns the current "uptime second" timestamps are stamped
// with; spec.md has no wall clock, only a tick counter, so kernel.Boot
// wires this to the scheduler's tick count divided by the timer frequency.
type NowFunc func() uint32

// Vfs is the singleton VFS handle wrapping one mounted ext2.Fs, per §9's
// global-state convention. It holds no mutable state of its own beyond
// fs and now: every mutation is serialized inside ext2.Fs itself.
type Vfs struct {
	fs  *ext2.Fs
	now NowFunc
}

// New wraps an already-mounted ext2 filesystem as a VFS facade.
func New(fs *ext2.Fs, now NowFunc) *Vfs {
	return &Vfs{fs: fs, now: now}
}

// resolveFollow resolves path to a terminal inode, following symlinks up
// to MAX_SYMLINK_DEPTH, per §4.F's "Path resolution with symlinks": uses
// 4.E's path walk to the terminal inode; if its mode is a symlink, reads
// the target and re-resolves against it.
func (v *Vfs) resolveFollow(cwd *fd.Cwd_t, path ustr.Ustr) (int, kerr.Err_t) {
	full := cwd.Fullpath(path)
	depth := 0
	for {
		if depth > maxSymlinkDepth {
			return 0, kerr.SymlinkLoop
		}
		ino, err := v.fs.PathLookup(full)
		if err != kerr.OK {
			return 0, err
		}
		in, err := v.fs.ReadInode(ino)
		if err != kerr.OK {
			return 0, err
		}
		if in.Mode&stat.IFMT != stat.IFLNK {
			return ino, kerr.OK
		}
		target, err := v.fs.ReadSymlink(ino)
		if err != kerr.OK {
			return 0, err
		}
		if ustr.Ustr(target).IsAbsolute() {
			full = ustr.Ustr(target)
		} else {
			full = full.Dir().Extend(ustr.Ustr(target))
		}
		depth++
	}
}

const maxSymlinkDepth = 8

func statFromInode(ino int, in ext2.Inode) *stat.Stat_t {
	return &stat.Stat_t{
		Ino:   uint(ino),
		Mode:  uint(in.Mode),
		Size:  uint(in.Size),
		Uid:   uint(in.Uid),
		Gid:   uint(in.Gid),
		Links: uint(in.LinksCount),
		Atime: uint(in.Atime),
		Mtime: uint(in.Mtime),
		Ctime: uint(in.Ctime),
	}
}

// Open resolves path (following symlinks), refusing to open a directory
// for regular I/O, and returns a freshly positioned file handle, per
// §4.F's open contract. OCreat creates the file first if it does not
// exist.
func (v *Vfs) Open(cwd *fd.Cwd_t, path ustr.Ustr, flags int, mode uint16) (*fd.Fd_t, kerr.Err_t) {
	ino, err := v.resolveFollow(cwd, path)
	if err == kerr.NotFound && flags&OCreat != 0 {
		ino, err = v.Create(cwd, path, stat.IFREG|uint(mode))
	}
	if err != kerr.OK {
		return nil, err
	}

	in, err := v.fs.ReadInode(ino)
	if err != kerr.OK {
		return nil, err
	}
	if in.Mode&stat.IFMT == stat.IFDIR {
		return nil, kerr.IsDirectory
	}

	if flags&OTrunc != 0 {
		if err := v.fs.Truncate(ino, 0); err == kerr.OK {
			in.Size = 0
		} else if err != kerr.InvalidArgument {
			// InvalidArgument from Truncate just means "already empty".
			return nil, err
		}
	}

	perms := fd.Read
	switch flags & 0x3 {
	case OWronly:
		perms = fd.Write
	case ORdwr:
		perms = fd.Read | fd.Write
	}
	return fd.New(ino, int(in.Size), perms), kerr.OK
}

// Close marks a handle closed; further operations on it are a caller
// error, matching §3's File Handle lifecycle.
func (v *Vfs) Close(f *fd.Fd_t) kerr.Err_t {
	f.MarkClosed()
	return kerr.OK
}

// Read reads into buf at the handle's current position, advancing it and
// updating atime on success, per §4.F's "updates atime on successful
// reads".
func (v *Vfs) Read(f *fd.Fd_t, buf []byte) (int, kerr.Err_t) {
	if f.Perms&fd.Read == 0 {
		return 0, kerr.InvalidArgument
	}
	n, err := v.fs.ReadFile(f.Ino, f.Position(), buf)
	if err != kerr.OK {
		return 0, err
	}
	f.Advance(n, 0)
	if n > 0 {
		v.touchAtime(f.Ino)
	}
	return n, kerr.OK
}

// Write writes buf at the handle's current position, advancing it and
// updating mtime, per §4.F's "write uses 4.E's file-write and updates
// mtime".
func (v *Vfs) Write(f *fd.Fd_t, buf []byte) (int, kerr.Err_t) {
	if f.Perms&fd.Write == 0 {
		return 0, kerr.InvalidArgument
	}
	n, err := v.fs.WriteFile(f.Ino, f.Position(), buf, v.now())
	if err != kerr.OK && n == 0 {
		return 0, err
	}
	in, rerr := v.fs.ReadInode(f.Ino)
	newSize := f.Size
	if rerr == kerr.OK {
		newSize = int(in.Size)
	}
	f.Advance(n, newSize)
	return n, err
}

// Seek repositions f's cursor, clamped to [0, size].
func (v *Vfs) Seek(f *fd.Fd_t, offset int, whence int) int {
	return f.Seek(offset, whence)
}

func (v *Vfs) touchAtime(ino int) {
	in, err := v.fs.ReadInode(ino)
	if err != kerr.OK {
		return
	}
	in.Atime = v.now()
	v.fs.WriteInode(ino, in)
}

// Truncate shrinks the file at path to newSize, per §4.E's truncate (only
// shrinking is supported).
func (v *Vfs) Truncate(cwd *fd.Cwd_t, path ustr.Ustr, newSize int) kerr.Err_t {
	ino, err := v.resolveFollow(cwd, path)
	if err != kerr.OK {
		return err
	}
	return v.fs.Truncate(ino, newSize)
}

// Create allocates an inode with mode, initializes the three timestamps
// to the current uptime second, writes it, and inserts the directory
// entry in path's parent. Directories get link count 2 with "." and ".."
// entries inserted and the parent's link count incremented, per §4.F.
func (v *Vfs) Create(cwd *fd.Cwd_t, path ustr.Ustr, mode uint) (int, kerr.Err_t) {
	full := cwd.Fullpath(path)
	parentIno, err := v.fs.PathLookup(full.Dir())
	if err != kerr.OK {
		return 0, err
	}
	name := full.Base()
	if existing, err := v.fs.Lookup(parentIno, name); err == kerr.OK && existing != 0 {
		return 0, kerr.Exists
	}

	ino, err := v.fs.AllocInode()
	if err != kerr.OK {
		return 0, err
	}
	now := v.now()
	isDir := mode&stat.IFMT == stat.IFDIR
	links := uint16(1)
	if isDir {
		links = 2
	}
	in := ext2.Inode{Mode: uint16(mode), LinksCount: links, Atime: now, Ctime: now, Mtime: now}
	if err := v.fs.WriteInode(ino, in); err != kerr.OK {
		return 0, err
	}

	ftype := ext2.FtRegFile
	if isDir {
		ftype = ext2.FtDir
	}
	if err := v.fs.InsertEntry(parentIno, name, ino, ftype); err != kerr.OK {
		return 0, err
	}

	if isDir {
		if err := v.fs.InsertEntry(ino, ustr.Dot, ino, ext2.FtDir); err != kerr.OK {
			return 0, err
		}
		if err := v.fs.InsertEntry(ino, ustr.DotDot, parentIno, ext2.FtDir); err != kerr.OK {
			return 0, err
		}
		parent, err := v.fs.ReadInode(parentIno)
		if err != kerr.OK {
			return 0, err
		}
		parent.LinksCount++
		if err := v.fs.WriteInode(parentIno, parent); err != kerr.OK {
			return 0, err
		}
	}
	return ino, kerr.OK
}

// Unlink refuses non-empty directories. On a directory target it
// decrements the parent's link count; it always decrements the target's
// link count, freeing its direct and indirect blocks and the inode
// itself once that count reaches zero, per §4.F.
func (v *Vfs) Unlink(cwd *fd.Cwd_t, path ustr.Ustr) kerr.Err_t {
	full := cwd.Fullpath(path)
	parentIno, err := v.fs.PathLookup(full.Dir())
	if err != kerr.OK {
		return err
	}
	name := full.Base()
	ino, err := v.fs.Lookup(parentIno, name)
	if err != kerr.OK {
		return err
	}

	in, err := v.fs.ReadInode(ino)
	if err != kerr.OK {
		return err
	}
	isDir := in.Mode&stat.IFMT == stat.IFDIR
	if isDir {
		empty, err := v.fs.IsEmptyDir(ino)
		if err != kerr.OK {
			return err
		}
		if !empty {
			return kerr.NotEmpty
		}
	}

	if err := v.fs.RemoveEntry(parentIno, name); err != kerr.OK {
		return err
	}

	if isDir {
		parent, err := v.fs.ReadInode(parentIno)
		if err == kerr.OK {
			parent.LinksCount--
			v.fs.WriteInode(parentIno, parent)
		}
	}

	in.LinksCount--
	if in.LinksCount == 0 {
		if err := v.fs.FreeInodeBlocks(&in); err != kerr.OK {
			return err
		}
		return v.fs.FreeInode(ino)
	}
	return v.fs.WriteInode(ino, in)
}

// CreateSymlink creates target as a symlink named by path's final
// component, in path's parent directory.
func (v *Vfs) CreateSymlink(cwd *fd.Cwd_t, path ustr.Ustr, target ustr.Ustr) kerr.Err_t {
	full := cwd.Fullpath(path)
	parentIno, err := v.fs.PathLookup(full.Dir())
	if err != kerr.OK {
		return err
	}
	_, err = v.fs.CreateSymlink(parentIno, full.Base(), target, v.now())
	return err
}

// Chmod preserves the top four mode bits (file type) and replaces the
// low 9 permission bits; updates ctime, per §4.F.
func (v *Vfs) Chmod(cwd *fd.Cwd_t, path ustr.Ustr, perm uint) kerr.Err_t {
	ino, err := v.resolveFollow(cwd, path)
	if err != kerr.OK {
		return err
	}
	in, err := v.fs.ReadInode(ino)
	if err != kerr.OK {
		return err
	}
	in.Mode = (in.Mode & stat.IFMT) | uint16(perm&stat.IPerm)
	in.Ctime = v.now()
	return v.fs.WriteInode(ino, in)
}

// Chown updates uid/gid and ctime, per §4.F.
func (v *Vfs) Chown(cwd *fd.Cwd_t, path ustr.Ustr, uid, gid uint) kerr.Err_t {
	ino, err := v.resolveFollow(cwd, path)
	if err != kerr.OK {
		return err
	}
	in, err := v.fs.ReadInode(ino)
	if err != kerr.OK {
		return err
	}
	in.Uid = uint16(uid)
	in.Gid = uint16(gid)
	in.Ctime = v.now()
	return v.fs.WriteInode(ino, in)
}

// Stat resolves path (following symlinks) and reports its Stat_t.
func (v *Vfs) Stat(cwd *fd.Cwd_t, path ustr.Ustr) (*stat.Stat_t, kerr.Err_t) {
	ino, err := v.resolveFollow(cwd, path)
	if err != kerr.OK {
		return nil, err
	}
	in, err := v.fs.ReadInode(ino)
	if err != kerr.OK {
		return nil, err
	}
	return statFromInode(ino, in), kerr.OK
}

// Exists reports whether path resolves to a live inode.
func (v *Vfs) Exists(cwd *fd.Cwd_t, path ustr.Ustr) bool {
	_, err := v.resolveFollow(cwd, path)
	return err == kerr.OK
}

// DirEntry is one named, typed entry returned by ListDirectory.
type DirEntry struct {
	Name string
	Stat *stat.Stat_t
}

// ListDirectory returns every live entry of the directory at path along
// with its stat information, for the shell's ls.
func (v *Vfs) ListDirectory(cwd *fd.Cwd_t, path ustr.Ustr) ([]DirEntry, kerr.Err_t) {
	ino, err := v.resolveFollow(cwd, path)
	if err != kerr.OK {
		return nil, err
	}
	in, err := v.fs.ReadInode(ino)
	if err != kerr.OK {
		return nil, err
	}
	if in.Mode&stat.IFMT != stat.IFDIR {
		return nil, kerr.NotDirectory
	}
	ents, err := v.fs.ReadDir(ino)
	if err != kerr.OK {
		return nil, err
	}
	out := make([]DirEntry, 0, len(ents))
	for _, d := range ents {
		ci, err := v.fs.ReadInode(d.Ino)
		if err != kerr.OK {
			continue
		}
		out = append(out, DirEntry{Name: d.Name.String(), Stat: statFromInode(d.Ino, ci)})
	}
	return out, kerr.OK
}

// Rename moves the directory entry at oldPath to newPath, grounded on
// the teacher's ufs.Ufs_t.Rename: insert the entry under its new
// parent/name, then remove it from the old one. When the moved entry is
// itself a directory, its parent link count moves too (old parent loses
// one, new parent gains one) so ".." continues to resolve correctly.
func (v *Vfs) Rename(cwd *fd.Cwd_t, oldPath, newPath ustr.Ustr) kerr.Err_t {
	oldFull := cwd.Fullpath(oldPath)
	oldParentIno, err := v.fs.PathLookup(oldFull.Dir())
	if err != kerr.OK {
		return err
	}
	oldName := oldFull.Base()
	ino, err := v.fs.Lookup(oldParentIno, oldName)
	if err != kerr.OK {
		return err
	}

	newFull := cwd.Fullpath(newPath)
	newParentIno, err := v.fs.PathLookup(newFull.Dir())
	if err != kerr.OK {
		return err
	}
	newName := newFull.Base()
	if existing, err := v.fs.Lookup(newParentIno, newName); err == kerr.OK && existing != 0 {
		return kerr.Exists
	}

	in, err := v.fs.ReadInode(ino)
	if err != kerr.OK {
		return err
	}
	isDir := in.Mode&stat.IFMT == stat.IFDIR
	ftype := ext2.FtRegFile
	if isDir {
		ftype = ext2.FtDir
	}

	if err := v.fs.InsertEntry(newParentIno, newName, ino, ftype); err != kerr.OK {
		return err
	}
	if err := v.fs.RemoveEntry(oldParentIno, oldName); err != kerr.OK {
		return err
	}

	if isDir && oldParentIno != newParentIno {
		if err := v.fs.RemoveEntry(ino, ustr.DotDot); err == kerr.OK {
			v.fs.InsertEntry(ino, ustr.DotDot, newParentIno, ext2.FtDir)
		}
		if oldParent, err := v.fs.ReadInode(oldParentIno); err == kerr.OK {
			oldParent.LinksCount--
			v.fs.WriteInode(oldParentIno, oldParent)
		}
		if newParent, err := v.fs.ReadInode(newParentIno); err == kerr.OK {
			newParent.LinksCount++
			v.fs.WriteInode(newParentIno, newParent)
		}
	}
	return kerr.OK
}

// Statfs reports the mounted filesystem's free-space/inode-count summary,
// for the shell's meminfo command.
func (v *Vfs) Statfs() ext2.StatfsInfo {
	return v.fs.Statfs()
}

// ReadSymlink returns the raw target of the symlink at path, without
// following it.
func (v *Vfs) ReadSymlink(cwd *fd.Cwd_t, path ustr.Ustr) ([]byte, kerr.Err_t) {
	full := cwd.Fullpath(path)
	ino, err := v.fs.PathLookup(full)
	if err != kerr.OK {
		return nil, err
	}
	return v.fs.ReadSymlink(ino)
}
