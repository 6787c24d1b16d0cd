// Package shell implements component J: the command surface SPEC_FULL.md
// §4.J specifies over the VFS facade and scheduler, the repository's
// integration-test harness since there is no TTY driver to exercise the
// rest of the kernel from. Grounded on the teacher's ufs/ufs.go verb set
// (one named operation per shell command) combined with a line/argv
// dispatcher in the style of a conventional Unix shell's builtin table.
package shell

import (
	"fmt"
	"strconv"
	"strings"

	"nanos/ext2"
	"nanos/fd"
	"nanos/kdisplay"
	"nanos/kheap"
	"nanos/kprof"
	"nanos/kerr"
	"nanos/limits"
	"nanos/sched"
	"nanos/stat"
	"nanos/stats"
	"nanos/ustr"
	"nanos/vfs"
)

// Shell dispatches command lines against a VFS and a scheduler, per
// §4.J. It carries its own working directory, matching the teacher's
// convention of one Cwd_t per shell session rather than a single global.
type Shell struct {
	vfs  *vfs.Vfs
	sch  *sched.Scheduler
	heap *kheap.Heap
	cwd  *fd.Cwd_t
}

// New constructs a shell over an already-mounted VFS and running
// scheduler, rooted at "/".
func New(v *vfs.Vfs, s *sched.Scheduler, h *kheap.Heap) *Shell {
	return &Shell{vfs: v, sch: s, heap: h, cwd: fd.MkRootCwd(ext2.RootIno)}
}

// Run splits line into words and dispatches it, returning the command's
// textual result (or an error message, never a Go error) — §4.J leaves
// exit codes undefined, matching spec.md §6.
func (sh *Shell) Run(line string) string {
	return sh.Dispatch(strings.Fields(line))
}

// Dispatch runs one already-split command line, for programmatic/test
// callers that have their own argv already.
func (sh *Shell) Dispatch(argv []string) string {
	if len(argv) == 0 {
		return ""
	}
	cmd, args := argv[0], argv[1:]
	switch cmd {
	case "ls":
		return sh.cmdLs(args)
	case "cat":
		return sh.cmdCat(args)
	case "stat":
		return sh.cmdStat(args)
	case "touch":
		return sh.cmdTouch(args)
	case "rm", "rmdir":
		return sh.cmdRm(args)
	case "mkdir":
		return sh.cmdMkdir(args)
	case "ln":
		return sh.cmdLn(args)
	case "chmod":
		return sh.cmdChmod(args)
	case "chown":
		return sh.cmdChown(args)
	case "echo":
		return sh.cmdEcho(args)
	case "hexdump":
		return sh.cmdHexdump(args)
	case "mv":
		return sh.cmdMv(args)
	case "ps":
		return sh.cmdPs()
	case "meminfo":
		return sh.cmdMeminfo()
	case "uptime":
		return sh.cmdUptime()
	default:
		return fmt.Sprintf("%s: command not found", cmd)
	}
}

func argPath(args []string, i int) ustr.Ustr {
	if i >= len(args) {
		return ustr.MkUstrRoot()
	}
	return ustr.Ustr(args[i])
}

func (sh *Shell) cmdLs(args []string) string {
	ents, err := sh.vfs.ListDirectory(sh.cwd, argPath(args, 0))
	if err != kerr.OK {
		return err.Error()
	}
	var b strings.Builder
	for _, e := range ents {
		fmt.Fprintf(&b, "%s %8d %s\n", e.Stat.ModeString(), e.Stat.Size, e.Name)
	}
	return b.String()
}

func (sh *Shell) cmdCat(args []string) string {
	if len(args) == 0 {
		return "cat: missing path"
	}
	f, err := sh.vfs.Open(sh.cwd, ustr.Ustr(args[0]), vfs.ORdonly, 0)
	if err != kerr.OK {
		return err.Error()
	}
	defer sh.vfs.Close(f)
	var b strings.Builder
	buf := make([]byte, 512)
	for {
		n, err := sh.vfs.Read(f, buf)
		if n > 0 {
			b.Write(buf[:n])
		}
		if err != kerr.OK || n == 0 {
			break
		}
	}
	return b.String()
}

func (sh *Shell) cmdStat(args []string) string {
	if len(args) == 0 {
		return "stat: missing path"
	}
	st, err := sh.vfs.Stat(sh.cwd, ustr.Ustr(args[0]))
	if err != kerr.OK {
		return err.Error()
	}
	// Inode timestamps are already uptime seconds (see vfs.NowFunc), so
	// they are formatted at one tick per second.
	return fmt.Sprintf("%s size=%d uid=%d gid=%d atime=%s mtime=%s ctime=%s",
		st.ModeString(), st.Size, st.Uid, st.Gid,
		stat.UptimeString(uint64(st.Atime), 1),
		stat.UptimeString(uint64(st.Mtime), 1),
		stat.UptimeString(uint64(st.Ctime), 1))
}

func (sh *Shell) cmdTouch(args []string) string {
	if len(args) == 0 {
		return "touch: missing path"
	}
	p := ustr.Ustr(args[0])
	if sh.vfs.Exists(sh.cwd, p) {
		f, err := sh.vfs.Open(sh.cwd, p, vfs.OWronly, 0)
		if err != kerr.OK {
			return err.Error()
		}
		// A zero-length write stamps mtime without changing the contents.
		_, werr := sh.vfs.Write(f, nil)
		sh.vfs.Close(f)
		if werr != kerr.OK {
			return werr.Error()
		}
		return ""
	}
	if _, err := sh.vfs.Create(sh.cwd, p, stat.IFREG|0644); err != kerr.OK {
		return err.Error()
	}
	return ""
}

func (sh *Shell) cmdRm(args []string) string {
	if len(args) == 0 {
		return "rm: missing path"
	}
	if err := sh.vfs.Unlink(sh.cwd, ustr.Ustr(args[0])); err != kerr.OK {
		return err.Error()
	}
	return ""
}

func (sh *Shell) cmdMkdir(args []string) string {
	if len(args) == 0 {
		return "mkdir: missing path"
	}
	if _, err := sh.vfs.Create(sh.cwd, ustr.Ustr(args[0]), stat.IFDIR|0755); err != kerr.OK {
		return err.Error()
	}
	return ""
}

func (sh *Shell) cmdLn(args []string) string {
	if len(args) < 3 || args[0] != "-s" {
		return "ln: usage: ln -s target path"
	}
	if err := sh.vfs.CreateSymlink(sh.cwd, ustr.Ustr(args[2]), ustr.Ustr(args[1])); err != kerr.OK {
		return err.Error()
	}
	return ""
}

func (sh *Shell) cmdChmod(args []string) string {
	if len(args) < 2 {
		return "chmod: usage: chmod mode path"
	}
	mode, perr := strconv.ParseUint(args[0], 8, 32)
	if perr != nil {
		return "chmod: invalid mode"
	}
	if err := sh.vfs.Chmod(sh.cwd, ustr.Ustr(args[1]), uint(mode)); err != kerr.OK {
		return err.Error()
	}
	return ""
}

func (sh *Shell) cmdChown(args []string) string {
	if len(args) < 3 {
		return "chown: usage: chown uid gid path"
	}
	uid, err1 := strconv.Atoi(args[0])
	gid, err2 := strconv.Atoi(args[1])
	if err1 != nil || err2 != nil {
		return "chown: invalid uid/gid"
	}
	if err := sh.vfs.Chown(sh.cwd, ustr.Ustr(args[2]), uint(uid), uint(gid)); err != kerr.OK {
		return err.Error()
	}
	return ""
}

func (sh *Shell) cmdEcho(args []string) string {
	redirect := -1
	for i, a := range args {
		if a == ">" {
			redirect = i
			break
		}
	}
	if redirect == -1 {
		return strings.Join(args, " ")
	}
	text := strings.Join(args[:redirect], " ")
	if redirect+1 >= len(args) {
		return "echo: missing redirect target"
	}
	p := ustr.Ustr(args[redirect+1])
	f, err := sh.vfs.Open(sh.cwd, p, vfs.OCreat|vfs.OWronly|vfs.OTrunc, 0644)
	if err != kerr.OK {
		return err.Error()
	}
	defer sh.vfs.Close(f)
	if _, err := sh.vfs.Write(f, []byte(text)); err != kerr.OK {
		return err.Error()
	}
	return ""
}

func (sh *Shell) cmdHexdump(args []string) string {
	if len(args) == 0 {
		return "hexdump: missing path"
	}
	f, err := sh.vfs.Open(sh.cwd, ustr.Ustr(args[0]), vfs.ORdonly, 0)
	if err != kerr.OK {
		return err.Error()
	}
	defer sh.vfs.Close(f)
	var data []byte
	buf := make([]byte, 512)
	for {
		n, err := sh.vfs.Read(f, buf)
		if n > 0 {
			data = append(data, buf[:n]...)
		}
		if err != kerr.OK || n == 0 {
			break
		}
	}
	return kdisplay.Hexdump(data)
}

func (sh *Shell) cmdMv(args []string) string {
	if len(args) < 2 {
		return "mv: usage: mv old new"
	}
	if err := sh.vfs.Rename(sh.cwd, ustr.Ustr(args[0]), ustr.Ustr(args[1])); err != kerr.OK {
		return err.Error()
	}
	return ""
}

func (sh *Shell) cmdPs() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-6s %-10s %-8s %-6s %-8s\n", "PID", "STATE", "PRIO", "SLICE", "CPU_MS")
	for _, t := range sh.sch.Tasks() {
		fmt.Fprintf(&b, "%-6d %-10s %-8d %-6d %-8d\n",
			t.Pid, t.State, t.Priority, t.TimeSlice, t.Acct.TotalMillis())
	}
	return b.String()
}

func (sh *Shell) cmdMeminfo() string {
	total, used, free := sh.heap.Stats()
	fsInfo := sh.vfs.Statfs()
	var b strings.Builder
	fmt.Fprintf(&b, "heap: total=%d used=%d free=%d\n", total, used, free)
	fmt.Fprintf(&b, "ext2: total_blocks=%d free_blocks=%d total_inodes=%d free_inodes=%d block_size=%d\n",
		fsInfo.TotalBlocks, fsInfo.FreeBlocks, fsInfo.TotalInodes, fsInfo.FreeInodes, fsInfo.BlockSize)
	b.WriteString(stats.Stats2String(&sh.heap.Counters))
	snap := kprof.Snapshot(sh.sch, sh.heap)
	fmt.Fprintf(&b, "profile samples: %d\n", len(snap.Sample))
	return b.String()
}

func (sh *Shell) cmdUptime() string {
	return stat.UptimeString(sh.sch.Now(), limits.TimerHz)
}
