package ext2

import (
	"nanos/kerr"
	"nanos/util"
)

// fastSymlinkCap is the number of bytes available in an inode's
// block-pointer region for a fast symlink target: 15 slots * 4 bytes.
const fastSymlinkCap = numBlockPtrs * 4

// fastSymlinkBytes reinterprets in's block-pointer array as a flat
// 60-byte buffer, matching the on-disk byte layout a fast symlink's
// target occupies in place of real block pointers.
func fastSymlinkBytes(in *Inode) []byte {
	buf := make([]byte, fastSymlinkCap)
	for i := 0; i < numBlockPtrs; i++ {
		util.Writen(buf, 4, 4*i, int(in.Block[i]))
	}
	return buf
}

func setFastSymlinkBytes(in *Inode, data []byte) {
	buf := make([]byte, fastSymlinkCap)
	copy(buf, data)
	for i := 0; i < numBlockPtrs; i++ {
		in.Block[i] = uint32(util.Readn(buf, 4, 4*i))
	}
}

// ReadSymlink returns the target path stored in inode ino, per §4.E: a
// fast symlink (size <= 60) lives in the block-pointer array itself; a
// slow symlink's target is the first `size` bytes of data block 0.
func (fs *Fs) ReadSymlink(ino int) ([]byte, kerr.Err_t) {
	in, err := fs.ReadInode(ino)
	if err != kerr.OK {
		return nil, err
	}
	size := int(in.Size)
	if size <= fastSymlinkCap {
		return fastSymlinkBytes(&in)[:size], kerr.OK
	}
	blkno := int(in.Block[0])
	if blkno == 0 {
		return nil, kerr.IoError
	}
	buf := make([]byte, fs.blockSize)
	if err := fs.readBlock(blkno, buf); err != kerr.OK {
		return nil, err
	}
	if size > len(buf) {
		size = len(buf)
	}
	return buf[:size], kerr.OK
}

// CreateSymlink allocates an inode with mode LNK|0777 and link count 1,
// stores target as a fast or slow symlink depending on its length, and
// adds a directory entry of type FtSymlink in parentIno, per §4.E.
func (fs *Fs) CreateSymlink(parentIno int, name []byte, target []byte, nowSec uint32) (int, kerr.Err_t) {
	ino, err := fs.AllocInode()
	if err != kerr.OK {
		return 0, err
	}

	in := Inode{
		Mode:       0xA000 | 0777, // IFLNK | 0777
		LinksCount: 1,
		Atime:      nowSec,
		Ctime:      nowSec,
		Mtime:      nowSec,
		Size:       uint32(len(target)),
	}

	if len(target) <= fastSymlinkCap {
		setFastSymlinkBytes(&in, target)
	} else {
		blkno, err := fs.AllocBlock()
		if err != kerr.OK {
			fs.FreeInode(ino)
			return 0, err
		}
		buf := make([]byte, fs.blockSize)
		copy(buf, target)
		if err := fs.writeBlock(blkno, buf); err != kerr.OK {
			return 0, err
		}
		in.Block[0] = uint32(blkno)
	}

	if err := fs.WriteInode(ino, in); err != kerr.OK {
		return 0, err
	}
	if err := fs.InsertEntry(parentIno, name, ino, FtSymlink); err != kerr.OK {
		return 0, err
	}
	return ino, kerr.OK
}
