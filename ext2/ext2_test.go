package ext2

import (
	"testing"

	"nanos/blockdev"
	"nanos/kerr"
	"nanos/ustr"
)

// buildMinimalImage lays out by hand the smallest filesystem this package
// can mount: one group, 1024-byte blocks, 32 blocks total, 8 inodes.
// Layout: block 0 unused, 1 superblock, 2 group descriptor table, 3
// block bitmap, 4 inode bitmap, 5 inode table (8 inodes * 128B fits in
// one 1024B block), 6 root directory data, 7..31 free.
func buildMinimalImage(t *testing.T) *blockdev.RAMDisk {
	t.Helper()
	const blockSize = 1024
	const blocksCount = 32
	const inodesPerGroup = 8

	disk := blockdev.NewRAMDisk(blocksCount * blockSize / 512)

	var sb Superblock
	sb.w32(0, inodesPerGroup)    // s_inodes_count
	sb.w32(4, blocksCount)       // s_blocks_count
	sb.w32(12, 32-6)             // s_free_blocks_count (26 free after metadata+root)
	sb.w32(16, inodesPerGroup-2) // s_free_inodes_count (ino 1 reserved, 2 is root)
	sb.w32(20, 1)                // s_first_data_block
	sb.w32(24, 0)                // s_log_block_size -> 1024 << 0 == 1024
	sb.w32(32, blocksCount)      // s_blocks_per_group (single group)
	sb.w32(40, inodesPerGroup)   // s_inodes_per_group
	sb.w16(56, magic)

	writeBlockRaw := func(disk *blockdev.RAMDisk, blkno int, data []byte) {
		secPerBlk := blockSize / 512
		base := blkno * secPerBlk
		for i := 0; i < secPerBlk; i++ {
			if err := disk.WriteSector(base+i, data[i*512:(i+1)*512]); err != kerr.OK {
				t.Fatalf("writeBlockRaw: %v", err)
			}
		}
	}

	// Superblock occupies block 1 entirely, since byte offset 1024 ==
	// block 1 at this block size.
	writeBlockRaw(disk, 1, sb.raw[:])

	var gd GroupDesc
	util32 := func(off int, v uint32) { putLe32(gd.raw[:], off, v) }
	util16 := func(off int, v uint16) { putLe16(gd.raw[:], off, v) }
	util32(0, 3)  // bg_block_bitmap
	util32(4, 4)  // bg_inode_bitmap
	util32(8, 5)  // bg_inode_table
	util16(12, 26) // bg_free_blocks_count
	util16(14, inodesPerGroup-2)
	util16(16, 1) // bg_used_dirs_count (root)
	gdtBlock := make([]byte, blockSize)
	copy(gdtBlock, gd.raw[:])
	writeBlockRaw(disk, 2, gdtBlock)

	blockBitmap := make([]byte, blockSize)
	for i := 0; i < 6; i++ { // blocks 1..6 used (bit i = absolute block i+1)
		blockBitmap[i/8] |= 1 << uint(i%8)
	}
	writeBlockRaw(disk, 3, blockBitmap)

	inodeBitmap := make([]byte, blockSize)
	inodeBitmap[0] |= 1<<0 | 1<<1 // ino 1 (reserved) and ino 2 (root) used
	writeBlockRaw(disk, 4, inodeBitmap)

	// Inode table: only inode 2 (root) populated.
	inodeTable := make([]byte, blockSize)
	root := Inode{Mode: ifdir | 0755, LinksCount: 2, Size: blockSize, Block: [numBlockPtrs]uint32{0: 6}}
	root.encode(inodeTable[1*inodeSize : 2*inodeSize]) // slot index 1 == inode 2
	writeBlockRaw(disk, 5, inodeTable)

	// Root directory data block: "." and ".." filling the block.
	rootDirBlk := make([]byte, blockSize)
	encodeDirent(rootDirBlk, 0, Dirent{Ino: RootIno, RecLen: direntSpace(1), FileType: FtDir, Name: ustr.Dot})
	dotLen := direntSpace(1)
	encodeDirent(rootDirBlk, dotLen, Dirent{Ino: RootIno, RecLen: blockSize - dotLen, FileType: FtDir, Name: ustr.DotDot})
	writeBlockRaw(disk, 6, rootDirBlk)

	return disk
}

// putLe32/putLe16 are small test-local helpers mirroring util.Writen's
// little-endian layout, used to fill a GroupDesc's unexported raw buffer
// without reaching across the package boundary that util.Writen itself
// would require a non-empty slice origin for.
func putLe32(buf []byte, off int, v uint32) {
	buf[off] = byte(v)
	buf[off+1] = byte(v >> 8)
	buf[off+2] = byte(v >> 16)
	buf[off+3] = byte(v >> 24)
}

func putLe16(buf []byte, off int, v uint16) {
	buf[off] = byte(v)
	buf[off+1] = byte(v >> 8)
}

func TestMountValidatesMagicAndLayout(t *testing.T) {
	disk := buildMinimalImage(t)
	fs, err := Mount(disk)
	if err != kerr.OK {
		t.Fatalf("mount: %v", err)
	}
	if fs.BlockSize() != 1024 {
		t.Fatalf("block size = %d, want 1024", fs.BlockSize())
	}
	if fs.ngroups != 1 {
		t.Fatalf("ngroups = %d, want 1", fs.ngroups)
	}
}

func TestMountRejectsBadMagic(t *testing.T) {
	disk := buildMinimalImage(t)
	// The superblock occupies block 1 (sectors 2-3); s_magic lives at
	// byte offset 56 within it. Zero it to simulate a non-ext2 image.
	sbBuf := make([]byte, 1024)
	disk.ReadSector(2, sbBuf[:512])
	disk.ReadSector(3, sbBuf[512:])
	sbBuf[56] = 0
	sbBuf[57] = 0
	disk.WriteSector(2, sbBuf[:512])
	disk.WriteSector(3, sbBuf[512:])

	if _, err := Mount(disk); err != kerr.InvalidArgument {
		t.Fatalf("got %v, want InvalidArgument", err)
	}
}

func TestRootLookupDotAndDotDot(t *testing.T) {
	fs, _ := Mount(buildMinimalImage(t))
	if ino, err := fs.Lookup(RootIno, ustr.Dot); err != kerr.OK || ino != RootIno {
		t.Fatalf(". -> ino=%d err=%v, want %d OK", ino, err, RootIno)
	}
	if ino, err := fs.Lookup(RootIno, ustr.DotDot); err != kerr.OK || ino != RootIno {
		t.Fatalf(".. -> ino=%d err=%v, want %d OK", ino, err, RootIno)
	}
}

func TestAllocBlockScansAscendingAndPersists(t *testing.T) {
	fs, _ := Mount(buildMinimalImage(t))
	first, err := fs.AllocBlock()
	if err != kerr.OK {
		t.Fatalf("alloc: %v", err)
	}
	if first != 7 {
		t.Fatalf("first alloc = %d, want 7 (first free block)", first)
	}
	second, err := fs.AllocBlock()
	if err != kerr.OK || second != 8 {
		t.Fatalf("second alloc = %d err=%v, want 8 OK", second, err)
	}
	if fs.sb.FreeBlocksCount() != 24 {
		t.Fatalf("free blocks = %d, want 24", fs.sb.FreeBlocksCount())
	}
	remounted, err := Mount(fs.disk)
	if err != kerr.OK || remounted.sb.FreeBlocksCount() != 24 {
		t.Fatalf("on-disk free blocks after remount err=%v, want 24 OK", err)
	}
}

func TestAllocInodeAndFreeInodeRoundTrip(t *testing.T) {
	fs, _ := Mount(buildMinimalImage(t))
	ino, err := fs.AllocInode()
	if err != kerr.OK {
		t.Fatalf("alloc inode: %v", err)
	}
	if ino != 3 {
		t.Fatalf("got ino %d, want 3", ino)
	}
	if err := fs.FreeInode(ino); err != kerr.OK {
		t.Fatalf("free: %v", err)
	}
	ino2, err := fs.AllocInode()
	if err != kerr.OK || ino2 != 3 {
		t.Fatalf("reuse got ino=%d err=%v, want 3 OK", ino2, err)
	}
}

func TestCreateFileWriteReadRoundTrip(t *testing.T) {
	fs, _ := Mount(buildMinimalImage(t))
	ino, err := fs.AllocInode()
	if err != kerr.OK {
		t.Fatalf("alloc inode: %v", err)
	}
	in := Inode{Mode: 0x8000 | 0644, LinksCount: 1}
	if err := fs.WriteInode(ino, in); err != kerr.OK {
		t.Fatalf("write inode: %v", err)
	}
	if err := fs.InsertEntry(RootIno, ustr.Ustr("hello.txt"), ino, FtRegFile); err != kerr.OK {
		t.Fatalf("insert entry: %v", err)
	}

	data := []byte("hello, ext2")
	n, err := fs.WriteFile(ino, 0, data, 1000)
	if err != kerr.OK || n != len(data) {
		t.Fatalf("write file: n=%d err=%v", n, err)
	}

	found, err := fs.Lookup(RootIno, ustr.Ustr("hello.txt"))
	if err != kerr.OK || found != ino {
		t.Fatalf("lookup got ino=%d err=%v, want %d OK", found, err, ino)
	}

	out := make([]byte, 64)
	n, err = fs.ReadFile(ino, 0, out)
	if err != kerr.OK || string(out[:n]) != string(data) {
		t.Fatalf("read back %q, want %q (err %v)", out[:n], data, err)
	}
}

func TestWriteAcrossBlockBoundaryUsesIndirect(t *testing.T) {
	fs, _ := Mount(buildMinimalImage(t))
	ino, _ := fs.AllocInode()
	fs.WriteInode(ino, Inode{Mode: 0x8000 | 0644, LinksCount: 1})

	// 13 blocks' worth (12 direct + 1 indirect-addressed) of data.
	data := make([]byte, 13*1024)
	for i := range data {
		data[i] = byte(i % 251)
	}
	n, err := fs.WriteFile(ino, 0, data, 1)
	if err != kerr.OK || n != len(data) {
		t.Fatalf("write n=%d err=%v, want %d OK", n, err, len(data))
	}

	out := make([]byte, len(data))
	n, err = fs.ReadFile(ino, 0, out)
	if err != kerr.OK || n != len(data) {
		t.Fatalf("read n=%d err=%v", n, err)
	}
	for i := range data {
		if out[i] != data[i] {
			t.Fatalf("byte %d = %d, want %d", i, out[i], data[i])
		}
	}
}

func TestRemoveEntryExtendsPredecessorRecLen(t *testing.T) {
	fs, _ := Mount(buildMinimalImage(t))
	ino, _ := fs.AllocInode()
	fs.WriteInode(ino, Inode{Mode: 0x8000 | 0644, LinksCount: 1})
	if err := fs.InsertEntry(RootIno, ustr.Ustr("victim"), ino, FtRegFile); err != kerr.OK {
		t.Fatalf("insert: %v", err)
	}
	if err := fs.RemoveEntry(RootIno, ustr.Ustr("victim")); err != kerr.OK {
		t.Fatalf("remove: %v", err)
	}
	if _, err := fs.Lookup(RootIno, ustr.Ustr("victim")); err != kerr.NotFound {
		t.Fatalf("got %v, want NotFound after removal", err)
	}
	ents, err := fs.ReadDir(RootIno)
	if err != kerr.OK || len(ents) != 2 || ents[1].RecLen != 1024-direntSpace(1) {
		t.Fatalf("entries after removal = %+v err=%v, want \"..\" spanning the rest of the block", ents, err)
	}
	empty, err := fs.IsEmptyDir(RootIno)
	if err != kerr.OK || !empty {
		t.Fatalf("empty=%v err=%v, want true OK", empty, err)
	}
}

func TestFastAndSlowSymlinkRoundTrip(t *testing.T) {
	fs, _ := Mount(buildMinimalImage(t))

	fastIno, err := fs.CreateSymlink(RootIno, []byte("fast"), []byte("short-target"), 5)
	if err != kerr.OK {
		t.Fatalf("create fast symlink: %v", err)
	}
	got, err := fs.ReadSymlink(fastIno)
	if err != kerr.OK || string(got) != "short-target" {
		t.Fatalf("fast symlink got %q err=%v", got, err)
	}

	longTarget := make([]byte, 100)
	for i := range longTarget {
		longTarget[i] = 'a' + byte(i%26)
	}
	slowIno, err := fs.CreateSymlink(RootIno, []byte("slow"), longTarget, 5)
	if err != kerr.OK {
		t.Fatalf("create slow symlink: %v", err)
	}
	got, err = fs.ReadSymlink(slowIno)
	if err != kerr.OK || string(got) != string(longTarget) {
		t.Fatalf("slow symlink mismatch (err %v)", err)
	}
}

func TestPathLookupResolvesNestedComponents(t *testing.T) {
	fs, _ := Mount(buildMinimalImage(t))
	dirIno, _ := fs.AllocInode()
	fs.WriteInode(dirIno, Inode{Mode: ifdir | 0755, LinksCount: 2})
	if err := fs.InsertEntry(RootIno, ustr.Ustr("sub"), dirIno, FtDir); err != kerr.OK {
		t.Fatalf("insert sub: %v", err)
	}

	fileIno, _ := fs.AllocInode()
	fs.WriteInode(fileIno, Inode{Mode: 0x8000 | 0644, LinksCount: 1})
	if err := fs.InsertEntry(dirIno, ustr.Ustr("f"), fileIno, FtRegFile); err != kerr.OK {
		t.Fatalf("insert f: %v", err)
	}

	got, err := fs.PathLookup(ustr.Ustr("/sub/f"))
	if err != kerr.OK || got != fileIno {
		t.Fatalf("path lookup got ino=%d err=%v, want %d OK", got, err, fileIno)
	}
}
