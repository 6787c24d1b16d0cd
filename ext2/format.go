package ext2

import (
	"nanos/blockdev"
	"nanos/kerr"
	"nanos/limits"
	"nanos/stat"
	"nanos/ustr"
)

// Format builds a fresh, single-block-group ext2 filesystem directly onto
// disk: a superblock, one group descriptor, block/inode bitmaps, an inode
// table sized for inodeCount inodes, and a root directory inode with "."
// and ".." entries already present. Grounded on the teacher's mkfs.go,
// narrowed from "assemble a bootable host image from a bootloader, kernel
// image, and a copied-in skeleton directory tree" down to "lay out the
// handful of metadata blocks this kernel's in-memory, ephemeral disk needs
// at boot" — there is no host file tree to walk and no image to persist,
// per spec.md's "no persistent storage" Non-goal: every boot formats a
// brand new, empty filesystem.
func Format(disk blockdev.Disk, blockCount, inodeCount int) (*Fs, kerr.Err_t) {
	const blockSize = 1024
	const firstDataBlock = 1

	inodesPerBlock := blockSize / inodeSize
	inodeTableBlocks := (inodeCount + inodesPerBlock - 1) / inodesPerBlock
	const blockBitmapBlk = 3
	const inodeBitmapBlk = 4
	const inodeTableBlk = 5
	rootDirBlk := inodeTableBlk + inodeTableBlocks
	reservedBlocks := rootDirBlk + 1 - firstDataBlock

	if blockCount <= reservedBlocks {
		return nil, kerr.NoSpace
	}
	if inodeCount <= FirstFreeIno {
		return nil, kerr.NoSpace
	}

	writeBlock := func(blkno int, data []byte) kerr.Err_t {
		secPerBlk := blockSize / limits.SectorSize
		base := blkno * secPerBlk
		for i := 0; i < secPerBlk; i++ {
			if err := disk.WriteSector(base+i, data[i*limits.SectorSize:(i+1)*limits.SectorSize]); err != kerr.OK {
				return err
			}
		}
		return kerr.OK
	}

	freeBlocks := blockCount - reservedBlocks
	freeInodes := inodeCount - (FirstFreeIno - 1)

	var sb Superblock
	sb.w32(0, uint32(inodeCount))
	sb.w32(4, uint32(blockCount))
	sb.w32(12, uint32(freeBlocks))
	sb.w32(16, uint32(freeInodes))
	sb.w32(20, firstDataBlock)
	sb.w32(24, 0)
	sb.w32(32, uint32(blockCount))
	sb.w32(40, uint32(inodeCount))
	sb.w16(56, magic)
	sbBuf := make([]byte, blockSize)
	copy(sbBuf, sb.raw[:])
	if err := writeBlock(1, sbBuf); err != kerr.OK {
		return nil, err
	}

	var gd GroupDesc
	gd.SetBlockBitmap(blockBitmapBlk)
	gd.SetInodeBitmap(inodeBitmapBlk)
	gd.SetInodeTable(inodeTableBlk)
	gd.SetFreeBlocksCount(uint16(freeBlocks))
	gd.SetFreeInodesCount(uint16(freeInodes))
	gd.SetUsedDirsCount(1)
	gdBuf := make([]byte, blockSize)
	copy(gdBuf, gd.raw[:])
	if err := writeBlock(2, gdBuf); err != kerr.OK {
		return nil, err
	}

	bbuf := make([]byte, blockSize)
	for i := 0; i < reservedBlocks; i++ {
		bbuf[i/8] |= 1 << uint(i%8)
	}
	if err := writeBlock(blockBitmapBlk, bbuf); err != kerr.OK {
		return nil, err
	}

	ibuf := make([]byte, blockSize)
	for i := 0; i < FirstFreeIno-1; i++ {
		ibuf[i/8] |= 1 << uint(i%8)
	}
	if err := writeBlock(inodeBitmapBlk, ibuf); err != kerr.OK {
		return nil, err
	}

	tableBuf := make([]byte, inodeTableBlocks*blockSize)
	root := Inode{
		Mode:       stat.IFDIR | 0755,
		LinksCount: 2,
		Size:       uint32(blockSize),
	}
	root.Block[0] = uint32(rootDirBlk)
	rootOffset := (RootIno - 1) * inodeSize
	root.encode(tableBuf[rootOffset : rootOffset+inodeSize])
	for i := 0; i < inodeTableBlocks; i++ {
		if err := writeBlock(inodeTableBlk+i, tableBuf[i*blockSize:(i+1)*blockSize]); err != kerr.OK {
			return nil, err
		}
	}

	rootDir := make([]byte, blockSize)
	encodeDirent(rootDir, 0, Dirent{Ino: RootIno, RecLen: 12, FileType: FtDir, Name: ustr.Dot})
	encodeDirent(rootDir, 12, Dirent{Ino: RootIno, RecLen: blockSize - 12, FileType: FtDir, Name: ustr.DotDot})
	if err := writeBlock(rootDirBlk, rootDir); err != kerr.OK {
		return nil, err
	}

	return Mount(disk)
}
