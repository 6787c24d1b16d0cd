// Package stat mirrors the information a VFS stat() call reports about a
// file, detached from the on-disk inode encoding it was read from.
package stat

// Mode bits. The top four bits select the file type, exactly matching the
// ext2 on-disk inode mode field, so a Stat_t's mode can be written straight
// back into an inode's mode field by callers that need to.
const (
	IFMT  = 0xF000
	IFLNK = 0xA000
	IFREG = 0x8000
	IFDIR = 0x4000

	// IPerm masks the low 9 permission bits (rwxrwxrwx).
	IPerm = 0x01FF
)

// Stat_t mirrors a file's stat information, grounded on the teacher's
// Stat_t field set and extended with the timestamps the ext2 inode format
// carries.
type Stat_t struct {
	Ino     uint
	Mode    uint
	Size    uint
	Uid     uint
	Gid     uint
	Links   uint
	Atime   uint
	Mtime   uint
	Ctime   uint
}

// Type returns just the file-type bits of Mode (IFREG, IFDIR, or IFLNK).
func (st *Stat_t) Type() uint {
	return st.Mode & IFMT
}

// Perm returns just the permission bits of Mode.
func (st *Stat_t) Perm() uint {
	return st.Mode & IPerm
}

// IsDir reports whether the stat describes a directory.
func (st *Stat_t) IsDir() bool {
	return st.Type() == IFDIR
}

// IsSymlink reports whether the stat describes a symbolic link.
func (st *Stat_t) IsSymlink() bool {
	return st.Type() == IFLNK
}

// ModeString renders the 10-character Unix permission string (e.g.
// "drwxr-xr-x") that the shell's ls/stat commands display.
func (st *Stat_t) ModeString() string {
	b := [10]byte{}
	switch st.Type() {
	case IFDIR:
		b[0] = 'd'
	case IFLNK:
		b[0] = 'l'
	default:
		b[0] = '-'
	}
	perm := st.Perm()
	flags := "rwxrwxrwx"
	for i := 0; i < 9; i++ {
		if perm&(1<<(8-i)) != 0 {
			b[i+1] = flags[i]
		} else {
			b[i+1] = '-'
		}
	}
	return string(b[:])
}

// UptimeString renders ticks (at limits.TimerHz ticks/sec) as a
// "DDDd HH:MM:SS" string, per the ext2 driver's display formatting contract.
func UptimeString(ticks uint64, hz uint64) string {
	secs := ticks / hz
	days := secs / 86400
	secs %= 86400
	hours := secs / 3600
	secs %= 3600
	mins := secs / 60
	secs %= 60
	return formatDHMS(days, hours, mins, secs)
}

func formatDHMS(d, h, m, s uint64) string {
	digit := func(v uint64) byte { return byte('0' + v%10) }
	buf := make([]byte, 0, 16)
	for w := uint64(100); w > 1 && d < w; w /= 10 {
		buf = append(buf, '0') // zero-pad days to at least three digits
	}
	buf = appendUint(buf, d)
	buf = append(buf, 'd', ' ')
	buf = append(buf, digit(h/10), digit(h), ':', digit(m/10), digit(m), ':', digit(s/10), digit(s))
	return string(buf)
}

func appendUint(buf []byte, v uint64) []byte {
	if v == 0 {
		return append(buf, '0')
	}
	start := len(buf)
	for v > 0 {
		buf = append(buf, byte('0'+v%10))
		v /= 10
	}
	// reverse the digits just appended
	for i, j := start, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return buf
}
