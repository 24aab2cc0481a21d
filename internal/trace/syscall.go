package trace

import (
	"github.com/ripwire-labs/procsnap/internal/errkind"
	"golang.org/x/sys/unix"
)

// syscallInsn is the two-byte x86-64 "syscall" opcode (0F 05).
var syscallInsn = []byte{0x0f, 0x05}

// InjectSyscall mounts a single kernel call on the target's behalf: it
// saves the current register file, patches a syscall instruction at the
// current rip (ptrace may write to a tracee's text regardless of page
// protection), installs nr and the six argument registers per the x86-64
// syscall ABI (rax, rdi, rsi, rdx, r10, r8, r9), single-steps across the
// instruction, reads back rax as the kernel's return value, and restores
// both the original two bytes at rip and the complete original register
// file. It is legal only in STOPPED.
//
// A negative return value in the range a Linux syscall return can occupy
// ([-4095, -1]) is translated to errkind.SyscallInjectionFailed carrying
// the corresponding errno; anything else is returned as the raw return
// value (e.g. a valid fd, a byte count, zero for success).
func (c *Controller) InjectSyscall(nr uint64, a1, a2, a3, a4, a5, a6 uint64) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateStopped {
		return 0, c.invalidState("injectSyscall")
	}

	var saved unix.PtraceRegs
	if err := unix.PtraceGetRegs(c.pid, &saved); err != nil {
		return 0, errkind.RegistersFailed("injectSyscall: getregs", err)
	}

	addr := uintptr(saved.Rip)
	origInsn := make([]byte, len(syscallInsn))
	if _, err := unix.PtracePeekData(c.pid, addr, origInsn); err != nil {
		return 0, errkind.SyscallInjectionFailed(int(nr), 0, err)
	}
	if _, err := unix.PtracePokeData(c.pid, addr, syscallInsn); err != nil {
		return 0, errkind.SyscallInjectionFailed(int(nr), 0, err)
	}
	// Always attempt to restore the patched instruction bytes, even on a
	// failure path below, so a failed injection never leaves the target
	// with corrupted text.
	defer unix.PtracePokeData(c.pid, addr, origInsn)

	work := saved
	work.Rax = nr
	work.Orig_rax = nr
	work.Rdi = a1
	work.Rsi = a2
	work.Rdx = a3
	work.R10 = a4
	work.R8 = a5
	work.R9 = a6
	work.Rip = uint64(addr)

	if err := unix.PtraceSetRegs(c.pid, &work); err != nil {
		return 0, errkind.SyscallInjectionFailed(int(nr), 0, err)
	}

	if err := unix.PtraceSingleStep(c.pid); err != nil {
		unix.PtraceSetRegs(c.pid, &saved)
		return 0, errkind.SyscallInjectionFailed(int(nr), 0, err)
	}
	var ws unix.WaitStatus
	if _, err := unix.Wait4(c.pid, &ws, 0, nil); err != nil {
		return 0, errkind.SyscallInjectionFailed(int(nr), 0, err)
	}
	if ws.Exited() || ws.Signaled() {
		c.state = StateDetached
		return 0, errkind.SyscallInjectionFailed(int(nr), 0, nil)
	}

	var after unix.PtraceRegs
	if err := unix.PtraceGetRegs(c.pid, &after); err != nil {
		return 0, errkind.RegistersFailed("injectSyscall: getregs after step", err)
	}
	ret := after.Rax

	if err := unix.PtraceSetRegs(c.pid, &saved); err != nil {
		return 0, errkind.RegistersFailed("injectSyscall: restore regs", err)
	}

	if errno := negativeErrno(ret); errno != 0 {
		return 0, errkind.SyscallInjectionFailed(int(nr), errno, unix.Errno(errno))
	}
	return ret, nil
}

// negativeErrno interprets ret as the signed 64-bit syscall return value
// the kernel places in rax, and returns the positive errno it encodes, or
// 0 if ret is not in the kernel's reserved error range.
func negativeErrno(ret uint64) int {
	signed := int64(ret)
	if signed >= -4095 && signed <= -1 {
		return int(-signed)
	}
	return 0
}
