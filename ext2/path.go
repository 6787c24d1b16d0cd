package ext2

import (
	"nanos/kerr"
	"nanos/ustr"
)

// ifdir is ext2's directory mode bit, duplicated here (rather than
// imported from stat) to keep ext2 free of a dependency on the VFS-level
// stat package; the two are kept numerically identical by convention.
const ifdir = 0x4000

// PathLookup begins at the root inode (2) and resolves path component by
// component, requiring each intermediate component be a directory, per
// §4.E's path resolution: "Return the terminal inode number, or 0 on any
// failure. Symlink following is performed by the VFS layer" — this
// function never dereferences a symlink it encounters along the way.
func (fs *Fs) PathLookup(path ustr.Ustr) (int, kerr.Err_t) {
	comps, ok := path.Split()
	if !ok {
		return 0, kerr.InvalidPath
	}

	cur := RootIno
	for _, c := range comps {
		in, err := fs.ReadInode(cur)
		if err != kerr.OK {
			return 0, err
		}
		if in.Mode&ifdir == 0 {
			return 0, kerr.NotDirectory
		}
		next, err := fs.Lookup(cur, c)
		if err != kerr.OK {
			return 0, err
		}
		cur = next
	}
	return cur, kerr.OK
}
