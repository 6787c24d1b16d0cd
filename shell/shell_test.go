package shell

import (
	"strings"
	"testing"

	"nanos/blockdev"
	"nanos/ext2"
	"nanos/kerr"
	"nanos/kheap"
	"nanos/sched"
	"nanos/vfs"
)

// buildTestFs mounts the same minimal hand-built image ext2's and vfs's
// own tests use, via only ext2's exported Mount surface.
func buildTestFs(t *testing.T) *ext2.Fs {
	t.Helper()
	disk := blockdev.NewRAMDisk(64)
	writeRaw := func(blkno int, blockSize int, data []byte) {
		secPerBlk := blockSize / 512
		base := blkno * secPerBlk
		for i := 0; i < secPerBlk; i++ {
			disk.WriteSector(base+i, data[i*512:(i+1)*512])
		}
	}

	const blockSize = 1024
	sb := make([]byte, blockSize)
	putLe32(sb, 0, 8)
	putLe32(sb, 4, 32)
	putLe32(sb, 12, 26)
	putLe32(sb, 16, 6)
	putLe32(sb, 20, 1)
	putLe32(sb, 24, 0)
	putLe32(sb, 32, 32)
	putLe32(sb, 40, 8)
	putLe16(sb, 56, 0xEF53)
	writeRaw(1, blockSize, sb)

	gd := make([]byte, blockSize)
	putLe32(gd, 0, 3)
	putLe32(gd, 4, 4)
	putLe32(gd, 8, 5)
	putLe16(gd, 12, 26)
	putLe16(gd, 14, 6)
	putLe16(gd, 16, 1)
	writeRaw(2, blockSize, gd)

	blockBitmap := make([]byte, blockSize)
	for i := 0; i < 6; i++ {
		blockBitmap[i/8] |= 1 << uint(i%8)
	}
	writeRaw(3, blockSize, blockBitmap)

	inodeBitmap := make([]byte, blockSize)
	inodeBitmap[0] = 0x03
	writeRaw(4, blockSize, inodeBitmap)

	inodeTable := make([]byte, blockSize)
	putLe16(inodeTable, 1*128+0, 0x4000|0755)
	putLe16(inodeTable, 1*128+26, 2)
	putLe32(inodeTable, 1*128+4, uint32(blockSize))
	putLe32(inodeTable, 1*128+40, 6)
	writeRaw(5, blockSize, inodeTable)

	rootDir := make([]byte, blockSize)
	encodeTestDirent(rootDir, 0, 2, 12, 2, ".")
	encodeTestDirent(rootDir, 12, 2, blockSize-12, 2, "..")
	writeRaw(6, blockSize, rootDir)

	fs, err := ext2.Mount(disk)
	if err != kerr.OK {
		t.Fatalf("mount: %v", err)
	}
	return fs
}

func encodeTestDirent(buf []byte, off int, ino int, recLen int, ftype int, name string) {
	putLe32(buf, off, uint32(ino))
	putLe16(buf, off+4, uint16(recLen))
	buf[off+6] = byte(len(name))
	buf[off+7] = byte(ftype)
	copy(buf[off+8:off+8+len(name)], name)
}

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

func newTestShell(t *testing.T) *Shell {
	t.Helper()
	fs := buildTestFs(t)
	tick := uint32(0)
	v := vfs.New(fs, func() uint32 { tick++; return tick })
	s := sched.New()
	h := kheap.New(4096)
	return New(v, s, h)
}

func TestEchoRedirectThenCat(t *testing.T) {
	sh := newTestShell(t)
	if out := sh.Run("echo hello world > greeting"); out != "" {
		t.Fatalf("echo: %q", out)
	}
	if out := sh.Run("cat greeting"); out != "hello world" {
		t.Fatalf("cat got %q", out)
	}
}

func TestMkdirLsTouchRm(t *testing.T) {
	sh := newTestShell(t)
	if out := sh.Run("mkdir sub"); out != "" {
		t.Fatalf("mkdir: %q", out)
	}
	if out := sh.Run("touch sub/f"); out != "" {
		t.Fatalf("touch: %q", out)
	}
	out := sh.Run("ls sub")
	if !strings.Contains(out, "f") {
		t.Fatalf("ls sub = %q, want entry f", out)
	}
	if out := sh.Run("rm sub/f"); out != "" {
		t.Fatalf("rm: %q", out)
	}
	if out := sh.Run("rmdir sub"); out != "" {
		t.Fatalf("rmdir: %q", out)
	}
}

func TestStatReportsModeAndSize(t *testing.T) {
	sh := newTestShell(t)
	sh.Run("echo abc > f")
	out := sh.Run("stat f")
	if !strings.Contains(out, "size=3") {
		t.Fatalf("stat = %q, want size=3", out)
	}
	if !strings.HasPrefix(out, "-rw") {
		t.Fatalf("stat = %q, want regular-file mode prefix", out)
	}
}

func TestChmodChangesPermBits(t *testing.T) {
	sh := newTestShell(t)
	sh.Run("touch f")
	if out := sh.Run("chmod 600 f"); out != "" {
		t.Fatalf("chmod: %q", out)
	}
	out := sh.Run("stat f")
	if !strings.HasPrefix(out, "-rw-------") {
		t.Fatalf("stat after chmod = %q", out)
	}
}

func TestLnCreatesSymlinkFollowedByCat(t *testing.T) {
	sh := newTestShell(t)
	sh.Run("echo payload > target")
	if out := sh.Run("ln -s /target link"); out != "" {
		t.Fatalf("ln: %q", out)
	}
	if out := sh.Run("cat link"); out != "payload" {
		t.Fatalf("cat link = %q", out)
	}
}

func TestMvRenamesFile(t *testing.T) {
	sh := newTestShell(t)
	sh.Run("mkdir src")
	sh.Run("mkdir dst")
	sh.Run("echo data > src/f")
	if out := sh.Run("mv src/f dst/g"); out != "" {
		t.Fatalf("mv: %q", out)
	}
	if out := sh.Run("cat dst/g"); out != "data" {
		t.Fatalf("cat dst/g = %q", out)
	}
}

func TestHexdumpRendersKnownBytes(t *testing.T) {
	sh := newTestShell(t)
	sh.Run("echo AB > f")
	out := sh.Run("hexdump f")
	if !strings.Contains(out, "41 42") {
		t.Fatalf("hexdump = %q, want bytes 41 42", out)
	}
}

func TestPsListsNoTasksOnEmptyScheduler(t *testing.T) {
	sh := newTestShell(t)
	out := sh.Run("ps")
	if !strings.HasPrefix(out, "PID") {
		t.Fatalf("ps header missing: %q", out)
	}
	if strings.Count(out, "\n") != 1 {
		t.Fatalf("ps listed tasks on an empty scheduler: %q", out)
	}
}

func TestMeminfoReportsHeapAndFsTotals(t *testing.T) {
	sh := newTestShell(t)
	out := sh.Run("meminfo")
	if !strings.Contains(out, "heap:") || !strings.Contains(out, "ext2:") {
		t.Fatalf("meminfo = %q", out)
	}
}

func TestUptimeFormatsTicks(t *testing.T) {
	sh := newTestShell(t)
	out := sh.Run("uptime")
	if !strings.Contains(out, "0d ") {
		t.Fatalf("uptime = %q, want a day-prefixed duration", out)
	}
}

func TestUnknownCommand(t *testing.T) {
	sh := newTestShell(t)
	out := sh.Run("frobnicate")
	if !strings.Contains(out, "command not found") {
		t.Fatalf("unknown command = %q", out)
	}
}
