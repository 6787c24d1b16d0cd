// Package ustr implements the immutable path/string type used for every
// path argument that reaches the VFS and ext2 layers.
package ustr

// Ustr is an immutable path or name, represented as a byte slice so it can
// be built from on-disk directory entry bytes without an intermediate
// string allocation.
type Ustr []uint8

// Isdot reports whether the string equals ".".
func (us Ustr) Isdot() bool {
	return len(us) == 1 && us[0] == '.'
}

// Isdotdot reports whether the string equals "..".
func (us Ustr) Isdotdot() bool {
	return len(us) == 2 && us[0] == '.' && us[1] == '.'
}

// Eq compares two Ustr values byte-for-byte; names are never case-folded.
func (us Ustr) Eq(s Ustr) bool {
	if len(us) != len(s) {
		return false
	}
	for i, v := range us {
		if v != s[i] {
			return false
		}
	}
	return true
}

// MkUstr returns an empty Ustr.
func MkUstr() Ustr {
	return Ustr{}
}

// MkUstrRoot returns a Ustr for the root directory "/".
func MkUstrRoot() Ustr {
	return Ustr("/")
}

// DotDot is a reusable Ustr containing "..".
var DotDot = Ustr{'.', '.'}

// Dot is a reusable Ustr containing ".".
var Dot = Ustr{'.'}

// MkUstrSlice converts a NUL-terminated byte slice to a Ustr, truncating at
// the first NUL byte; used when reading fixed-width on-disk name fields.
func MkUstrSlice(buf []uint8) Ustr {
	for i := 0; i < len(buf); i++ {
		if buf[i] == 0 {
			return buf[:i]
		}
	}
	return buf
}

// Extend appends '/' and p to the Ustr and returns the result as a new
// value, skipping the separator when us already ends in '/' (the root
// path "/" being the common case) so joins never produce "//".
func (us Ustr) Extend(p Ustr) Ustr {
	tmp := make(Ustr, len(us))
	copy(tmp, us)
	if len(tmp) == 0 || tmp[len(tmp)-1] != '/' {
		tmp = append(tmp, '/')
	}
	return append(tmp, p...)
}

// ExtendStr is Extend for a plain Go string component.
func (us Ustr) ExtendStr(p string) Ustr {
	return us.Extend(Ustr(p))
}

// IsAbsolute reports whether the path begins with '/'.
func (us Ustr) IsAbsolute() bool {
	return len(us) > 0 && us[0] == '/'
}

// String converts the Ustr to a Go string.
func (us Ustr) String() string {
	return string(us)
}

// Split breaks an absolute path into its non-empty components, rejecting
// paths with an empty component (e.g. "a//b") as InvalidPath-worthy input;
// callers that need a *kerr.Err_t translate a false ok into InvalidPath.
// Grounded on the path-resolution rule in the ext2 driver: "split the path
// on '/', rejecting empty".
func (us Ustr) Split() (components []Ustr, ok bool) {
	if !us.IsAbsolute() {
		return nil, false
	}
	start := 1
	for i := 1; i <= len(us); i++ {
		if i == len(us) || us[i] == '/' {
			if i == start {
				if i == len(us) {
					break
				}
				return nil, false
			}
			components = append(components, us[start:i])
			start = i + 1
		}
	}
	return components, true
}

// Dir returns the path without its final component; for "/a/b" this is
// "/a", and for "/a" this is "/".
func (us Ustr) Dir() Ustr {
	comps, ok := us.Split()
	if !ok || len(comps) <= 1 {
		return MkUstrRoot()
	}
	parent := Ustr{'/'}
	for i, c := range comps[:len(comps)-1] {
		if i > 0 {
			parent = append(parent, '/')
		}
		parent = append(parent, c...)
	}
	return parent
}

// Base returns the final component of the path, or "/" if the path is root.
func (us Ustr) Base() Ustr {
	comps, ok := us.Split()
	if !ok || len(comps) == 0 {
		return MkUstrRoot()
	}
	return comps[len(comps)-1]
}
