// Package trace wraps Linux's process-tracing primitives (ptrace(2) and
// process_vm_readv(2)/process_vm_writev(2)) behind a small state machine:
// a Controller owns exclusive tracing authority over exactly one target
// pid for the duration of an attached window, and every mutating method
// validates the current state before touching the kernel.
package trace

import (
	"golang.org/x/sys/unix"
)

// State is the Target Controller's state machine position.
type State int

const (
	// StateDetached is the initial and terminal state: no tracing authority held.
	StateDetached State = iota
	// StateStopPending means attach has been issued but the stop has not
	// yet been observed.
	StateStopPending
	// StateStopped means the target is halted and registers/memory may be
	// read or written.
	StateStopped
	// StateRunning means a continue or single-step has been issued and the
	// next stop has not yet been observed.
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateDetached:
		return "detached"
	case StateStopPending:
		return "stop_pending"
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	default:
		return "unknown"
	}
}

// RegisterFile is the full x86-64 general-purpose and segment register set,
// stored in the exact field order spec.md's artifact format fixes: r15,
// r14, r13, r12, rbp, rbx, r11, r10, r9, r8, rax, rcx, rdx, rsi, rdi,
// orig_rax, rip, cs, eflags, rsp, ss, fs_base, gs_base, ds, es, fs, gs.
type RegisterFile struct {
	R15      uint64
	R14      uint64
	R13      uint64
	R12      uint64
	Rbp      uint64
	Rbx      uint64
	R11      uint64
	R10      uint64
	R9       uint64
	R8       uint64
	Rax      uint64
	Rcx      uint64
	Rdx      uint64
	Rsi      uint64
	Rdi      uint64
	OrigRax  uint64
	Rip      uint64
	Cs       uint64
	Eflags   uint64
	Rsp      uint64
	Ss       uint64
	FsBase   uint64
	GsBase   uint64
	Ds       uint64
	Es       uint64
	Fs       uint64
	Gs       uint64
}

// fromPtrace converts the kernel's unix.PtraceRegs into our wire-ordered RegisterFile.
func fromPtrace(r *unix.PtraceRegs) RegisterFile {
	return RegisterFile{
		R15: r.R15, R14: r.R14, R13: r.R13, R12: r.R12,
		Rbp: r.Rbp, Rbx: r.Rbx,
		R11: r.R11, R10: r.R10, R9: r.R9, R8: r.R8,
		Rax: r.Rax, Rcx: r.Rcx, Rdx: r.Rdx, Rsi: r.Rsi, Rdi: r.Rdi,
		OrigRax: r.Orig_rax, Rip: r.Rip,
		Cs: r.Cs, Eflags: r.Eflags, Rsp: r.Rsp, Ss: r.Ss,
		FsBase: r.Fs_base, GsBase: r.Gs_base,
		Ds: r.Ds, Es: r.Es, Fs: r.Fs, Gs: r.Gs,
	}
}

// toPtrace converts RegisterFile into a unix.PtraceRegs ready for PtraceSetRegs.
func (rf RegisterFile) toPtrace() unix.PtraceRegs {
	return unix.PtraceRegs{
		R15: rf.R15, R14: rf.R14, R13: rf.R13, R12: rf.R12,
		Rbp: rf.Rbp, Rbx: rf.Rbx,
		R11: rf.R11, R10: rf.R10, R9: rf.R9, R8: rf.R8,
		Rax: rf.Rax, Rcx: rf.Rcx, Rdx: rf.Rdx, Rsi: rf.Rsi, Rdi: rf.Rdi,
		Orig_rax: rf.OrigRax, Rip: rf.Rip,
		Cs: rf.Cs, Eflags: rf.Eflags, Rsp: rf.Rsp, Ss: rf.Ss,
		Fs_base: rf.FsBase, Gs_base: rf.GsBase,
		Ds: rf.Ds, Es: rf.Es, Fs: rf.Fs, Gs: rf.Gs,
	}
}
