// Package kerr defines the discriminated error values returned by every
// fallible kernel operation. No kernel primitive panics on a recoverable
// failure; callers compare against the named constants below.
package kerr

import "fmt"

// Err_t is a small integer error discriminator, modeled on the teacher's
// Err_t convention: an int-backed type that call sites compare directly
// (if err != kerr.OK) instead of allocating an error value per failure.
type Err_t int

// Error kinds surfaced by the kernel core, per the error handling design:
// every failure that crosses a VFS/ext2/scheduler/IPC API boundary is one
// of these.
const (
	OK Err_t = iota
	NotFound
	NotDirectory
	IsDirectory
	NotEmpty
	Exists
	NoSpace
	TooLarge
	SymlinkLoop
	InvalidPath
	InvalidArgument
	IoError
	QueueFull
	NoSuchPid
	Empty
)

var names = [...]string{
	OK:              "ok",
	NotFound:        "not found",
	NotDirectory:    "not a directory",
	IsDirectory:     "is a directory",
	NotEmpty:        "directory not empty",
	Exists:          "already exists",
	NoSpace:         "no space left on device",
	TooLarge:        "file offset exceeds addressable range",
	SymlinkLoop:     "too many levels of symbolic links",
	InvalidPath:     "invalid path",
	InvalidArgument: "invalid argument",
	IoError:         "i/o error",
	QueueFull:       "mailbox queue full",
	NoSuchPid:       "no such pid",
	Empty:           "mailbox empty",
}

// Error implements the error interface so an Err_t composes with fmt.Errorf
// and errors.Is without forcing every caller through integer comparisons.
func (e Err_t) Error() string {
	if int(e) < 0 || int(e) >= len(names) {
		return fmt.Sprintf("kerr: unknown error %d", int(e))
	}
	return names[e]
}

// Ok reports whether e represents success.
func (e Err_t) Ok() bool {
	return e == OK
}
