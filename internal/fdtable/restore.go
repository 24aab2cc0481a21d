package fdtable

import (
	"fmt"

	"github.com/ripwire-labs/procsnap/internal/errkind"
	"github.com/ripwire-labs/procsnap/internal/gwlog"
	"golang.org/x/sys/unix"
)

// scratchGap is how far below the target's current rsp the FD Manager
// borrows a transient buffer for the path string passed to an injected
// openat. 4096 bytes clears the 128-byte x86-64 red zone with margin for
// whatever the target last pushed, and is restored before returning.
const scratchGap = 4096

// Injector is the subset of trace.Controller the FD Manager drives syscall
// injection through. Accepting an interface here lets restore logic be
// tested against a fake target, the same pattern internal/memory uses for
// ReadMemory/WriteMemory.
type Injector interface {
	InjectSyscall(nr uint64, a1, a2, a3, a4, a5, a6 uint64) (uint64, error)
	WriteMemory(addr uint64, data []byte) error
	ReadMemory(addr uint64, n int) ([]byte, error)
	StackPointer() (uint64, error)
}

// Restore reopens each restorable entry in the stopped target behind ctrl:
// openat the recorded path with the recorded flags, dup2+close to renumber
// onto the original fd number if the kernel didn't hand it back directly,
// then lseek to the recorded offset. Any failing step skips that fd with a
// warning; processing continues to the next entry regardless, matching
// spec.md 4.E.
func Restore(ctrl Injector, entries []Entry, lg *gwlog.Logger) (RestoreResult, error) {
	if lg == nil {
		lg = gwlog.NewDiscardLogger()
	}
	rsp, err := ctrl.StackPointer()
	if err != nil {
		return RestoreResult{}, errkind.FdRestoreFailed("read stack pointer for scratch buffer", err)
	}
	scratch := rsp - scratchGap

	var result RestoreResult
	for _, e := range entries {
		if !e.Restorable {
			result.Skipped++
			continue
		}
		if err := restoreOne(ctrl, scratch, e); err != nil {
			result.Failed++
			msg := fmt.Sprintf("fd %d (%s): %v", e.Fd, e.Path, err)
			result.Warnings = append(result.Warnings, msg)
			lg.Warn("fd restore failed", gwlog.KV("fd", e.Fd), gwlog.KV("path", e.Path), gwlog.KVErr(err))
			continue
		}
		result.Restored++
	}
	return result, nil
}

func restoreOne(ctrl Injector, scratch uint64, e Entry) error {
	pathBytes := append([]byte(e.Path), 0)
	saved, err := ctrl.ReadMemory(scratch, len(pathBytes))
	if err != nil {
		return errkind.FdRestoreFailed("save scratch buffer", err)
	}
	defer ctrl.WriteMemory(scratch, saved)

	if err := ctrl.WriteMemory(scratch, pathBytes); err != nil {
		return errkind.FdRestoreFailed("write path into target", err)
	}

	ret, err := ctrl.InjectSyscall(unix.SYS_OPENAT, uint64(uintptr(unix.AT_FDCWD)), scratch, uint64(e.Flags), 0, 0, 0)
	if err != nil {
		return errkind.FdRestoreFailed("openat", err)
	}
	newFd := int(ret)

	if newFd != e.Fd {
		if _, err := ctrl.InjectSyscall(unix.SYS_DUP2, uint64(newFd), uint64(e.Fd), 0, 0, 0, 0); err != nil {
			return errkind.FdRestoreFailed("dup2", err)
		}
		if _, err := ctrl.InjectSyscall(unix.SYS_CLOSE, uint64(newFd), 0, 0, 0, 0, 0); err != nil {
			return errkind.FdRestoreFailed("close temporary fd", err)
		}
	}

	if e.Offset > 0 {
		if _, err := ctrl.InjectSyscall(unix.SYS_LSEEK, uint64(e.Fd), uint64(e.Offset), uint64(unix.SEEK_SET), 0, 0, 0); err != nil {
			return errkind.FdRestoreFailed("lseek", err)
		}
	}
	return nil
}
