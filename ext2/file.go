package ext2

import (
	"nanos/kerr"
	"nanos/util"
)

// blockForIndex resolves file block index -> device block number, per
// §4.E's "index < 12 -> inode.direct[index]; else single-indirect". A
// return of 0 means the slot is unallocated (a hole / not yet extended).
func (fs *Fs) blockForIndex(in *Inode, index int) (int, kerr.Err_t) {
	if index < directCount {
		return int(in.Block[index]), kerr.OK
	}
	index -= directCount
	ptrsPerBlock := fs.blockSize / 4
	if index >= ptrsPerBlock {
		return 0, kerr.TooLarge
	}
	indirect := int(in.Block[indirectSlot])
	if indirect == 0 {
		return 0, kerr.OK
	}
	buf := make([]byte, fs.blockSize)
	if err := fs.readBlock(indirect, buf); err != kerr.OK {
		return 0, err
	}
	return int(util.Readn(buf, 4, index*4)), kerr.OK
}

// ensureBlockForIndex is blockForIndex plus allocate-on-demand: if the
// slot (direct or the indirect block itself) is zero, a fresh block is
// allocated via AllocBlock and installed, per §4.E's file-write rule "if
// a direct slot is zero, allocate a new block via the bitmap and install
// it".
func (fs *Fs) ensureBlockForIndex(ino int, in *Inode, index int) (int, kerr.Err_t) {
	if index < directCount {
		if in.Block[index] != 0 {
			return int(in.Block[index]), kerr.OK
		}
		nb, err := fs.AllocBlock()
		if err != kerr.OK {
			return 0, err
		}
		in.Block[index] = uint32(nb)
		return nb, kerr.OK
	}

	index -= directCount
	ptrsPerBlock := fs.blockSize / 4
	if index >= ptrsPerBlock {
		return 0, kerr.TooLarge
	}

	indirect := int(in.Block[indirectSlot])
	if indirect == 0 {
		nb, err := fs.AllocBlock()
		if err != kerr.OK {
			return 0, err
		}
		indirect = nb
		in.Block[indirectSlot] = uint32(nb)
		zero := make([]byte, fs.blockSize)
		if err := fs.writeBlock(indirect, zero); err != kerr.OK {
			return 0, err
		}
	}

	buf := make([]byte, fs.blockSize)
	if err := fs.readBlock(indirect, buf); err != kerr.OK {
		return 0, err
	}
	existing := int(util.Readn(buf, 4, index*4))
	if existing != 0 {
		return existing, kerr.OK
	}
	nb, err := fs.AllocBlock()
	if err != kerr.OK {
		return 0, err
	}
	util.Writen(buf, 4, index*4, nb)
	if err := fs.writeBlock(indirect, buf); err != kerr.OK {
		return 0, err
	}
	return nb, kerr.OK
}

// maxFileSize is the largest offset addressable via 12 direct blocks plus
// one single-indirect block, per §4.E's "writes past the single-indirect
// boundary are truncated".
func (fs *Fs) maxFileSize() int {
	ptrsPerBlock := fs.blockSize / 4
	return (directCount + ptrsPerBlock) * fs.blockSize
}

// ReadFile reads up to len(dst) bytes starting at offset from ino's data,
// clamped to the inode's recorded size, per §4.E's "File read". Returns
// the number of bytes actually read.
func (fs *Fs) ReadFile(ino int, offset int, dst []byte) (int, kerr.Err_t) {
	in, err := fs.ReadInode(ino)
	if err != kerr.OK {
		return 0, err
	}
	if offset >= int(in.Size) {
		return 0, kerr.OK
	}
	n := len(dst)
	if offset+n > int(in.Size) {
		n = int(in.Size) - offset
	}

	read := 0
	for read < n {
		index := (offset + read) / fs.blockSize
		intra := (offset + read) % fs.blockSize
		blkno, err := fs.blockForIndex(&in, index)
		if err != kerr.OK {
			return read, err
		}
		chunk := util.Min(fs.blockSize-intra, n-read)
		if blkno == 0 {
			// Hole: reads as zero.
			for i := 0; i < chunk; i++ {
				dst[read+i] = 0
			}
		} else {
			buf := make([]byte, fs.blockSize)
			if err := fs.readBlock(blkno, buf); err != kerr.OK {
				return read, err
			}
			copy(dst[read:read+chunk], buf[intra:intra+chunk])
		}
		read += chunk
	}
	return read, kerr.OK
}

// WriteFile writes src starting at offset, allocating blocks on demand
// and read-modify-writing each touched block, per §4.E's "File write".
// Writes past the single-indirect boundary are truncated and the short
// count returned, matching the spec's accepted limitation.
func (fs *Fs) WriteFile(ino int, offset int, src []byte, nowSec uint32) (int, kerr.Err_t) {
	in, err := fs.ReadInode(ino)
	if err != kerr.OK {
		return 0, err
	}

	max := fs.maxFileSize()
	n := len(src)
	if offset >= max {
		return 0, kerr.TooLarge
	}
	if offset+n > max {
		n = max - offset
	}

	written := 0
	for written < n {
		index := (offset + written) / fs.blockSize
		intra := (offset + written) % fs.blockSize
		blkno, err := fs.ensureBlockForIndex(ino, &in, index)
		if err != kerr.OK {
			if written == 0 {
				return 0, err
			}
			break
		}
		chunk := util.Min(fs.blockSize-intra, n-written)

		buf := make([]byte, fs.blockSize)
		if intra != 0 || chunk != fs.blockSize {
			if err := fs.readBlock(blkno, buf); err != kerr.OK {
				return written, err
			}
		}
		copy(buf[intra:intra+chunk], src[written:written+chunk])
		if err := fs.writeBlock(blkno, buf); err != kerr.OK {
			return written, err
		}
		written += chunk
	}

	newSize := offset + written
	if newSize > int(in.Size) {
		in.Size = uint32(newSize)
	}
	in.Mtime = nowSec
	if err := fs.WriteInode(ino, in); err != kerr.OK {
		return written, err
	}
	return written, kerr.OK
}

// Truncate supports only shrinking, per §4.E: direct-block slots beyond
// the new last block are freed; indirect data is left alone (an accepted
// limitation carried from the spec).
func (fs *Fs) Truncate(ino int, newSize int) kerr.Err_t {
	in, err := fs.ReadInode(ino)
	if err != kerr.OK {
		return err
	}
	if newSize >= int(in.Size) {
		return kerr.InvalidArgument
	}

	newLastBlock := 0
	if newSize > 0 {
		newLastBlock = (newSize - 1) / fs.blockSize
	}
	for i := newLastBlock + 1; i < directCount; i++ {
		if in.Block[i] != 0 {
			if err := fs.FreeBlock(int(in.Block[i])); err != kerr.OK {
				return err
			}
			in.Block[i] = 0
		}
	}
	in.Size = uint32(newSize)
	return fs.WriteInode(ino, in)
}

// FreeInodeBlocks frees every direct block of in, then the single-indirect
// block's own data blocks and the indirect block itself, ahead of
// deleting the inode, per §9 Open Question #3's resolution: unlink closes
// the indirect-block leak spec.md §4.F names as an accepted limitation
// rather than carrying it forward.
func (fs *Fs) FreeInodeBlocks(in *Inode) kerr.Err_t {
	for i := 0; i < directCount; i++ {
		if in.Block[i] != 0 {
			if err := fs.FreeBlock(int(in.Block[i])); err != kerr.OK {
				return err
			}
			in.Block[i] = 0
		}
	}

	indirect := int(in.Block[indirectSlot])
	if indirect == 0 {
		return kerr.OK
	}
	buf := make([]byte, fs.blockSize)
	if err := fs.readBlock(indirect, buf); err != kerr.OK {
		return err
	}
	ptrsPerBlock := fs.blockSize / 4
	for i := 0; i < ptrsPerBlock; i++ {
		blkno := int(util.Readn(buf, 4, i*4))
		if blkno != 0 {
			if err := fs.FreeBlock(blkno); err != kerr.OK {
				return err
			}
		}
	}
	if err := fs.FreeBlock(indirect); err != kerr.OK {
		return err
	}
	in.Block[indirectSlot] = 0
	return kerr.OK
}
