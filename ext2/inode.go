package ext2

import (
	"nanos/kerr"
	"nanos/util"
)

// numBlockPtrs is the number of 4-byte block pointers in an inode's
// i_block array: 12 direct, 1 single-indirect, 2 unused (double/triple
// indirect are out of scope per §4.E — "writes past the single-indirect
// boundary are truncated").
const numBlockPtrs = 15

const (
	directCount  = 12
	indirectSlot = 12
)

// Inode is the in-memory decoding of a 128-byte on-disk ext2 inode.
type Inode struct {
	Mode       uint16
	Uid        uint16
	Size       uint32
	Atime      uint32
	Ctime      uint32
	Mtime      uint32
	Dtime      uint32
	Gid        uint16
	LinksCount uint16
	Blocks     uint32
	Flags      uint32
	Block      [numBlockPtrs]uint32
	Generation uint32
	FileAcl    uint32
	DirAcl     uint32
}

func decodeInode(buf []byte) Inode {
	var in Inode
	in.Mode = uint16(util.Readn(buf, 2, 0))
	in.Uid = uint16(util.Readn(buf, 2, 2))
	in.Size = uint32(util.Readn(buf, 4, 4))
	in.Atime = uint32(util.Readn(buf, 4, 8))
	in.Ctime = uint32(util.Readn(buf, 4, 12))
	in.Mtime = uint32(util.Readn(buf, 4, 16))
	in.Dtime = uint32(util.Readn(buf, 4, 20))
	in.Gid = uint16(util.Readn(buf, 2, 24))
	in.LinksCount = uint16(util.Readn(buf, 2, 26))
	in.Blocks = uint32(util.Readn(buf, 4, 28))
	in.Flags = uint32(util.Readn(buf, 4, 32))
	for i := 0; i < numBlockPtrs; i++ {
		in.Block[i] = uint32(util.Readn(buf, 4, 40+4*i))
	}
	in.Generation = uint32(util.Readn(buf, 4, 100))
	in.FileAcl = uint32(util.Readn(buf, 4, 104))
	in.DirAcl = uint32(util.Readn(buf, 4, 108))
	return in
}

func (in *Inode) encode(buf []byte) {
	util.Writen(buf, 2, 0, int(in.Mode))
	util.Writen(buf, 2, 2, int(in.Uid))
	util.Writen(buf, 4, 4, int(in.Size))
	util.Writen(buf, 4, 8, int(in.Atime))
	util.Writen(buf, 4, 12, int(in.Ctime))
	util.Writen(buf, 4, 16, int(in.Mtime))
	util.Writen(buf, 4, 20, int(in.Dtime))
	util.Writen(buf, 2, 24, int(in.Gid))
	util.Writen(buf, 2, 26, int(in.LinksCount))
	util.Writen(buf, 4, 28, int(in.Blocks))
	util.Writen(buf, 4, 32, int(in.Flags))
	for i := 0; i < numBlockPtrs; i++ {
		util.Writen(buf, 4, 40+4*i, int(in.Block[i]))
	}
	util.Writen(buf, 4, 100, int(in.Generation))
	util.Writen(buf, 4, 104, int(in.FileAcl))
	util.Writen(buf, 4, 108, int(in.DirAcl))
}

// inodeLocation translates an inode number into the (group, block, slot)
// triple §4.E's "read_inode/write_inode" describes: n-1 into (group,
// intra-group index), then (group.inode_table + slot_block, slot_in_block)
// using block_size/inode_size inodes per block.
func (fs *Fs) inodeLocation(ino int) (group int, blk int, slotInBlock int) {
	idx := ino - 1
	group = idx / fs.ipg
	within := idx % fs.ipg
	inodesPerBlock := fs.blockSize / inodeSize
	blk = int(fs.groups[group].InodeTable()) + within/inodesPerBlock
	slotInBlock = within % inodesPerBlock
	return
}

// ReadInode loads inode n from disk, consulting the write-through cache
// first.
func (fs *Fs) ReadInode(ino int) (Inode, kerr.Err_t) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.readInodeLocked(ino)
}

func (fs *Fs) readInodeLocked(ino int) (Inode, kerr.Err_t) {
	if ino < 1 || ino > int(fs.sb.InodesCount()) {
		return Inode{}, kerr.NotFound
	}
	if v, ok := fs.inodeCache.Get(ino); ok {
		return v.(Inode), kerr.OK
	}
	group, blk, slot := fs.inodeLocation(ino)
	if group < 0 || group >= fs.ngroups {
		return Inode{}, kerr.NotFound
	}
	buf := make([]byte, fs.blockSize)
	if err := fs.readBlock(blk, buf); err != kerr.OK {
		return Inode{}, err
	}
	in := decodeInode(buf[slot*inodeSize : (slot+1)*inodeSize])
	fs.inodeCache.Set(ino, in)
	return in, kerr.OK
}

// WriteInode persists inode n, write-through to both disk and cache.
func (fs *Fs) WriteInode(ino int, in Inode) kerr.Err_t {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.writeInodeLocked(ino, in)
}

func (fs *Fs) writeInodeLocked(ino int, in Inode) kerr.Err_t {
	group, blk, slot := fs.inodeLocation(ino)
	if group < 0 || group >= fs.ngroups {
		return kerr.NotFound
	}
	buf := make([]byte, fs.blockSize)
	if err := fs.readBlock(blk, buf); err != kerr.OK {
		return err
	}
	in.encode(buf[slot*inodeSize : (slot+1)*inodeSize])
	if err := fs.writeBlock(blk, buf); err != kerr.OK {
		return err
	}
	fs.inodeCache.Set(ino, in)
	return kerr.OK
}

// bitmapFindAndSet scans the bitmap stored in block bitmapBlk for the
// first clear bit, sets it, and writes the bitmap back. Returns the bit
// index, or -1 if the bitmap is fully set.
func (fs *Fs) bitmapFindAndSet(bitmapBlk int) (int, kerr.Err_t) {
	buf := make([]byte, fs.blockSize)
	if err := fs.readBlock(bitmapBlk, buf); err != kerr.OK {
		return -1, err
	}
	for byteIdx, b := range buf {
		if b == 0xFF {
			continue
		}
		for bit := 0; bit < 8; bit++ {
			if b&(1<<bit) == 0 {
				buf[byteIdx] = b | (1 << bit)
				if err := fs.writeBlock(bitmapBlk, buf); err != kerr.OK {
					return -1, err
				}
				return byteIdx*8 + bit, kerr.OK
			}
		}
	}
	return -1, kerr.OK
}

// bitmapClear clears the given bit index in the bitmap stored in block
// bitmapBlk.
func (fs *Fs) bitmapClear(bitmapBlk int, bit int) kerr.Err_t {
	buf := make([]byte, fs.blockSize)
	if err := fs.readBlock(bitmapBlk, buf); err != kerr.OK {
		return err
	}
	byteIdx, bitIdx := bit/8, uint(bit%8)
	buf[byteIdx] &^= 1 << bitIdx
	return fs.writeBlock(bitmapBlk, buf)
}

// AllocBlock scans groups in ascending order for a free data block, per
// §4.E's block bitmap allocator. Returns the absolute block number
// (group*blocks_per_group + index + first_data_block) and decrements the
// group's and superblock's free counters, writing both back to disk
// immediately (the resolved open question in DESIGN.md: write-through on
// every mutation rather than only at unmount).
func (fs *Fs) AllocBlock() (int, kerr.Err_t) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	for g := 0; g < fs.ngroups; g++ {
		if fs.groups[g].FreeBlocksCount() == 0 {
			continue
		}
		bit, err := fs.bitmapFindAndSet(int(fs.groups[g].BlockBitmap()))
		if err != kerr.OK {
			return 0, err
		}
		if bit == -1 {
			continue
		}
		fs.groups[g].SetFreeBlocksCount(fs.groups[g].FreeBlocksCount() - 1)
		fs.sb.SetFreeBlocksCount(fs.sb.FreeBlocksCount() - 1)
		if err := fs.writeGroupDesc(g); err != kerr.OK {
			return 0, err
		}
		if err := fs.writeSuperblock(); err != kerr.OK {
			return 0, err
		}
		blkno := g*fs.bpg + bit + int(fs.sb.FirstDataBlock())
		fs.Stats.BlockAllocs.Inc()
		return blkno, kerr.OK
	}
	fs.Stats.NoSpace.Inc()
	return 0, kerr.NoSpace
}

// FreeBlock returns a previously allocated block to its group's bitmap.
func (fs *Fs) FreeBlock(blkno int) kerr.Err_t {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	rel := blkno - int(fs.sb.FirstDataBlock())
	g := rel / fs.bpg
	bit := rel % fs.bpg
	if g < 0 || g >= fs.ngroups {
		return kerr.InvalidArgument
	}
	if err := fs.bitmapClear(int(fs.groups[g].BlockBitmap()), bit); err != kerr.OK {
		return err
	}
	fs.groups[g].SetFreeBlocksCount(fs.groups[g].FreeBlocksCount() + 1)
	fs.sb.SetFreeBlocksCount(fs.sb.FreeBlocksCount() + 1)
	if err := fs.writeGroupDesc(g); err != kerr.OK {
		return err
	}
	fs.Stats.BlockFrees.Inc()
	return fs.writeSuperblock()
}

// AllocInode mirrors AllocBlock over the inode bitmaps, returning a
// 1-based inode number per §4.E's inode bitmap allocator.
func (fs *Fs) AllocInode() (int, kerr.Err_t) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	for g := 0; g < fs.ngroups; g++ {
		if fs.groups[g].FreeInodesCount() == 0 {
			continue
		}
		bit, err := fs.bitmapFindAndSet(int(fs.groups[g].InodeBitmap()))
		if err != kerr.OK {
			return 0, err
		}
		if bit == -1 {
			continue
		}
		fs.groups[g].SetFreeInodesCount(fs.groups[g].FreeInodesCount() - 1)
		fs.sb.SetFreeInodesCount(fs.sb.FreeInodesCount() - 1)
		if err := fs.writeGroupDesc(g); err != kerr.OK {
			return 0, err
		}
		if err := fs.writeSuperblock(); err != kerr.OK {
			return 0, err
		}
		ino := g*fs.ipg + bit + 1
		fs.Stats.InodeAllocs.Inc()
		return ino, kerr.OK
	}
	fs.Stats.NoSpace.Inc()
	return 0, kerr.NoSpace
}

// FreeInode returns a previously allocated inode number to its group's
// inode bitmap.
func (fs *Fs) FreeInode(ino int) kerr.Err_t {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	idx := ino - 1
	g := idx / fs.ipg
	bit := idx % fs.ipg
	if g < 0 || g >= fs.ngroups {
		return kerr.InvalidArgument
	}
	if err := fs.bitmapClear(int(fs.groups[g].InodeBitmap()), bit); err != kerr.OK {
		return err
	}
	fs.groups[g].SetFreeInodesCount(fs.groups[g].FreeInodesCount() + 1)
	fs.sb.SetFreeInodesCount(fs.sb.FreeInodesCount() + 1)
	if err := fs.writeGroupDesc(g); err != kerr.OK {
		return err
	}
	fs.inodeCache.Del(ino)
	fs.Stats.InodeFrees.Inc()
	return fs.writeSuperblock()
}
