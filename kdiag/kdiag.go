// Package kdiag implements component M: fault diagnostics for a fatal
// page fault or other unrecoverable trap. It renders the Go call stack
// leading to the fault (grounded on the teacher's caller.Callerdump) and
// disassembles the faulting instruction window with
// golang.org/x/arch/x86/x86asm, the enrichment pack's x86 decoder — the
// same library DESIGN.md already commits this kernel to for its one
// genuinely x86-specific diagnostic need.
package kdiag

import (
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/arch/x86/x86asm"
)

// Mode32 is the x86asm decode mode for this kernel's 32-bit target.
const Mode32 = 32

// Fault describes a fatal page fault or trap, per §4.B's fault record:
// the faulting linear address, the architecture's error code, and the
// small instruction window around the program counter that trapped —
// supplied by the boot/IRQ collaborator, since this package has no access
// to raw memory itself.
type Fault struct {
	Addr      uintptr
	ErrorCode uint32
	PC        uintptr
	Window    []byte // bytes at PC, at least the longest possible x86 instruction
}

// Report renders a human-readable oops: the fault's address/error code,
// one disassembled instruction at PC (best-effort — a malformed or
// truncated window yields a "<bad opcode>" line rather than an error, so
// a broken disassembly never hides the rest of the report), and the Go
// call stack that led to the fault.
func Report(f Fault) string {
	inst, err := x86asm.Decode(f.Window, Mode32)
	var asm string
	if err != nil {
		asm = fmt.Sprintf("<bad opcode: %v>", err)
	} else {
		asm = inst.String()
	}

	s := fmt.Sprintf("fatal fault: addr=%#x errcode=%#x pc=%#x\n\t%s\n",
		f.Addr, f.ErrorCode, f.PC, asm)
	s += "call stack:\n" + Stackdump(2)
	return s
}

// Stackdump renders the Go call stack starting at the given depth, one
// frame per line, grounded directly on the teacher's Callerdump.
func Stackdump(start int) string {
	s := ""
	for i := start; ; i++ {
		_, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		if s == "" {
			s = fmt.Sprintf("%s:%d\n", file, line)
		} else {
			s += fmt.Sprintf("\t<-%s:%d\n", file, line)
		}
	}
	return s
}

// Distinct_t deduplicates a repeated warning by its call chain, so a
// condition that fires on every iteration of a hot loop (e.g. frame's
// double-free guard) logs once per distinct caller instead of flooding
// the serial log. Grounded directly on the teacher's
// caller.Distinct_caller_t, including its poor-man's-hash-of-PCs approach
// to identifying a call chain without allocating a string key per call.
type Distinct_t struct {
	sync.Mutex
	did map[uintptr]bool
}

func pchash(pcs []uintptr) uintptr {
	var ret uintptr
	for _, pc := range pcs {
		pc = pc*1103515245 + 12345
		ret ^= pc
	}
	return ret
}

// Seen reports whether the immediate call chain (3 frames up from Seen's
// own caller) has already been recorded, recording it if not.
func (d *Distinct_t) Seen() bool {
	d.Lock()
	defer d.Unlock()
	if d.did == nil {
		d.did = make(map[uintptr]bool)
	}
	pcs := make([]uintptr, 16)
	got := runtime.Callers(3, pcs)
	if got == 0 {
		return false
	}
	h := pchash(pcs[:got])
	if d.did[h] {
		return true
	}
	d.did[h] = true
	return false
}
