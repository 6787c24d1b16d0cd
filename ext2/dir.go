package ext2

import (
	"nanos/kerr"
	"nanos/ustr"
	"nanos/util"
)

// File type bytes stored in a directory entry, per the standard ext2
// dirent layout.
const (
	FtUnknown = 0
	FtRegFile = 1
	FtDir     = 2
	FtSymlink = 7
)

const direntHeaderLen = 8 // ino(4) + rec_len(2) + name_len(1) + file_type(1)

// Dirent is one in-memory directory entry, per §3's Directory Entry
// type: inode number, record length, name length, file type byte, and
// name (no trailing NUL).
type Dirent struct {
	Ino      int
	RecLen   int
	FileType int
	Name     ustr.Ustr
}

func decodeDirent(buf []byte, off int) Dirent {
	ino := util.Readn(buf, 4, off)
	recLen := util.Readn(buf, 2, off+4)
	nameLen := util.Readn(buf, 1, off+6)
	ftype := util.Readn(buf, 1, off+7)
	name := make(ustr.Ustr, nameLen)
	copy(name, buf[off+direntHeaderLen:off+direntHeaderLen+nameLen])
	return Dirent{Ino: ino, RecLen: recLen, FileType: ftype, Name: name}
}

func encodeDirent(buf []byte, off int, d Dirent) {
	util.Writen(buf, 4, off, d.Ino)
	util.Writen(buf, 2, off+4, d.RecLen)
	util.Writen(buf, 1, off+6, len(d.Name))
	util.Writen(buf, 1, off+7, d.FileType)
	copy(buf[off+direntHeaderLen:off+direntHeaderLen+len(d.Name)], d.Name)
}

// direntSpace is the minimum rec_len a dirent with the given name length
// needs, rounded to 4-byte alignment as ext2 requires.
func direntSpace(nameLen int) int {
	return int(util.Roundup(direntHeaderLen+nameLen, 4))
}

// forEachDirBlock calls f with each allocated block's contents belonging
// to directory inode ino, in file-offset order. f returns (modified,
// stop); a modified block is written back immediately.
func (fs *Fs) forEachDirBlock(ino int, in *Inode, f func(buf []byte) (bool, bool)) kerr.Err_t {
	nblocks := (int(in.Size) + fs.blockSize - 1) / fs.blockSize
	for index := 0; index < nblocks; index++ {
		blkno, err := fs.blockForIndex(in, index)
		if err != kerr.OK {
			return err
		}
		if blkno == 0 {
			continue
		}
		buf := make([]byte, fs.blockSize)
		if err := fs.readBlock(blkno, buf); err != kerr.OK {
			return err
		}
		modified, stop := f(buf)
		if modified {
			if err := fs.writeBlock(blkno, buf); err != kerr.OK {
				return err
			}
		}
		if stop {
			return kerr.OK
		}
	}
	return kerr.OK
}

// Lookup finds name within directory inode dirIno, per §4.E's path
// resolution step "read the parent inode ... find the entry". Returns
// kerr.NotFound if no live entry matches.
func (fs *Fs) Lookup(dirIno int, name ustr.Ustr) (int, kerr.Err_t) {
	in, err := fs.ReadInode(dirIno)
	if err != kerr.OK {
		return 0, err
	}
	found := 0
	err = fs.forEachDirBlock(dirIno, &in, func(buf []byte) (bool, bool) {
		off := 0
		for off < fs.blockSize {
			d := decodeDirent(buf, off)
			if d.RecLen <= 0 {
				break
			}
			if d.Ino != 0 && d.Name.Eq(name) {
				found = d.Ino
				return false, true
			}
			off += d.RecLen
		}
		return false, false
	})
	if err != kerr.OK {
		return 0, err
	}
	if found == 0 {
		return 0, kerr.NotFound
	}
	return found, kerr.OK
}

// ReadDir returns every live (nonzero-inode) entry in directory dirIno,
// for the VFS's list_directory and the shell's ls.
func (fs *Fs) ReadDir(dirIno int) ([]Dirent, kerr.Err_t) {
	in, err := fs.ReadInode(dirIno)
	if err != kerr.OK {
		return nil, err
	}
	var out []Dirent
	err = fs.forEachDirBlock(dirIno, &in, func(buf []byte) (bool, bool) {
		off := 0
		for off < fs.blockSize {
			d := decodeDirent(buf, off)
			if d.RecLen <= 0 {
				break
			}
			if d.Ino != 0 {
				out = append(out, d)
			}
			off += d.RecLen
		}
		return false, false
	})
	if err != kerr.OK {
		return nil, err
	}
	return out, kerr.OK
}

// IsEmptyDir counts entries with nonzero inode whose name is neither "."
// nor "..", per §4.E's empty-directory test: empty iff that count is 0.
func (fs *Fs) IsEmptyDir(dirIno int) (bool, kerr.Err_t) {
	ents, err := fs.ReadDir(dirIno)
	if err != kerr.OK {
		return false, err
	}
	for _, d := range ents {
		if !d.Name.Isdot() && !d.Name.Isdotdot() {
			return false, kerr.OK
		}
	}
	return true, kerr.OK
}

// InsertEntry adds a directory entry (ino, name, ftype) into directory
// dirIno, splitting an existing entry's slack rec_len when there is
// enough room, or appending a freshly allocated block otherwise. Returns
// kerr.Exists if name is already present.
func (fs *Fs) InsertEntry(dirIno int, name ustr.Ustr, ino int, ftype int) kerr.Err_t {
	if len(name) > 255 {
		return kerr.InvalidArgument
	}
	if existing, err := fs.Lookup(dirIno, name); err == kerr.OK && existing != 0 {
		return kerr.Exists
	}

	in, err := fs.ReadInode(dirIno)
	if err != kerr.OK {
		return err
	}
	need := direntSpace(len(name))

	inserted := false
	err = fs.forEachDirBlock(dirIno, &in, func(buf []byte) (bool, bool) {
		off := 0
		for off < fs.blockSize {
			d := decodeDirent(buf, off)
			if d.RecLen <= 0 {
				break
			}
			used := 0
			if d.Ino != 0 {
				used = direntSpace(len(d.Name))
			}
			slack := d.RecLen - used
			if slack >= need {
				if d.Ino != 0 {
					// Split: shrink the existing live entry's rec_len to
					// its tight size, and place the new entry in the
					// remaining slack.
					origRecLen := d.RecLen
					d.RecLen = used
					encodeDirent(buf, off, d)
					encodeDirent(buf, off+used, Dirent{Ino: ino, RecLen: origRecLen - used, FileType: ftype, Name: name})
				} else {
					// Victim slot (inode already 0, full rec_len free):
					// reuse as-is.
					encodeDirent(buf, off, Dirent{Ino: ino, RecLen: d.RecLen, FileType: ftype, Name: name})
				}
				inserted = true
				return true, true
			}
			off += d.RecLen
		}
		return false, false
	})
	if err != kerr.OK {
		return err
	}
	if inserted {
		return kerr.OK
	}

	// No existing block had room: allocate a fresh block, format it as
	// one entry spanning the whole block, and extend the directory.
	nb, err := fs.AllocBlock()
	if err != kerr.OK {
		return err
	}
	buf := make([]byte, fs.blockSize)
	encodeDirent(buf, 0, Dirent{Ino: ino, RecLen: fs.blockSize, FileType: ftype, Name: name})
	if err := fs.writeBlock(nb, buf); err != kerr.OK {
		return err
	}

	index := int(in.Size) / fs.blockSize
	if index < directCount {
		in.Block[index] = uint32(nb)
	} else {
		// Use installIndirectBlock's indirect-table bookkeeping so no
		// second data block is allocated: install the block we already
		// allocated at the resolved index.
		if err := fs.installIndirectBlock(&in, index, nb); err != kerr.OK {
			return err
		}
	}
	in.Size += uint32(fs.blockSize)
	return fs.WriteInode(dirIno, in)
}

// installIndirectBlock records blkno at logical index in in's
// single-indirect table, allocating the indirect table block itself if
// absent.
func (fs *Fs) installIndirectBlock(in *Inode, index int, blkno int) kerr.Err_t {
	index -= directCount
	ptrsPerBlock := fs.blockSize / 4
	if index < 0 || index >= ptrsPerBlock {
		return kerr.TooLarge
	}
	indirect := int(in.Block[indirectSlot])
	if indirect == 0 {
		nb, err := fs.AllocBlock()
		if err != kerr.OK {
			return err
		}
		indirect = nb
		in.Block[indirectSlot] = uint32(nb)
		zero := make([]byte, fs.blockSize)
		if err := fs.writeBlock(indirect, zero); err != kerr.OK {
			return err
		}
	}
	buf := make([]byte, fs.blockSize)
	if err := fs.readBlock(indirect, buf); err != kerr.OK {
		return err
	}
	util.Writen(buf, 4, index*4, blkno)
	return fs.writeBlock(indirect, buf)
}

// RemoveEntry deletes name from directory dirIno, per §4.E's removal
// rule: walk entries remembering the predecessor; on a match, extend the
// predecessor's rec_len over the victim if one exists in the same block,
// otherwise zero the victim's inode — preserving the invariant that
// rec_lens still sum to block_size.
func (fs *Fs) RemoveEntry(dirIno int, name ustr.Ustr) kerr.Err_t {
	in, err := fs.ReadInode(dirIno)
	if err != kerr.OK {
		return err
	}
	found := false
	err = fs.forEachDirBlock(dirIno, &in, func(buf []byte) (bool, bool) {
		off := 0
		predOff := -1
		for off < fs.blockSize {
			d := decodeDirent(buf, off)
			if d.RecLen <= 0 {
				break
			}
			if d.Ino != 0 && d.Name.Eq(name) {
				if predOff >= 0 {
					pred := decodeDirent(buf, predOff)
					pred.RecLen += d.RecLen
					encodeDirent(buf, predOff, pred)
				} else {
					d.Ino = 0
					encodeDirent(buf, off, d)
				}
				found = true
				return true, true
			}
			if d.Ino != 0 {
				predOff = off
			}
			off += d.RecLen
		}
		return false, false
	})
	if err != kerr.OK {
		return err
	}
	if !found {
		return kerr.NotFound
	}
	return kerr.OK
}
