package kernel

import (
	"strings"
	"testing"

	"nanos/blockdev"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.PhysMemBytes = 4 << 20
	cfg.AppHeapBytes = 64 << 10
	cfg.DiskSectors = 256
	cfg.FsBlocks = 64
	cfg.FsInodes = 32
	return cfg
}

func TestBootProducesAWorkingShell(t *testing.T) {
	k := Boot(testConfig())

	if out := k.Shell.Run("echo hello > greeting"); out != "" {
		t.Fatalf("echo: %q", out)
	}
	if out := k.Shell.Run("cat greeting"); out != "hello" {
		t.Fatalf("cat = %q, want hello", out)
	}
	if out := k.Shell.Run("ls"); !strings.Contains(out, "greeting") {
		t.Fatalf("ls = %q, want greeting listed", out)
	}
}

func TestBootedFilesystemReportsStatfs(t *testing.T) {
	k := Boot(testConfig())
	info := k.Vfs.Statfs()
	if info.TotalBlocks == 0 || info.TotalInodes == 0 {
		t.Fatalf("statfs = %+v, want nonzero totals", info)
	}
}

func TestBootRegistersTheRootDiskByName(t *testing.T) {
	k := Boot(testConfig())
	got, ok := blockdev.Global.Lookup("ramdisk0")
	if !ok {
		t.Fatal("expected \"ramdisk0\" registered in blockdev.Global after boot")
	}
	if got != k.Disk {
		t.Fatal("registered disk does not match the kernel's own Disk handle")
	}
}
