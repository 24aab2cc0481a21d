// Package aslr detects the kernel's address-space-layout-randomization
// policy, spawns fresh targets with randomization disabled so a future
// restore lands at the same addresses, and computes the single address
// shift needed when a capture and a restore target disagree on layout.
package aslr

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/ripwire-labs/procsnap/internal/errkind"
	"github.com/ripwire-labs/procsnap/internal/procfs"
	"golang.org/x/sys/unix"
)

// Policy mirrors procfs.AslrPolicy; re-exported here so callers that only
// need the ASLR Controller don't have to import internal/procfs directly.
type Policy = procfs.AslrPolicy

const (
	Disabled     = procfs.AslrDisabled
	Conservative = procfs.AslrConservative
	Full         = procfs.AslrFull
)

// Detect reads /proc/sys/kernel/randomize_va_space via r.
func Detect(r *procfs.Reader) (Policy, error) {
	return r.RandomizeVaSpace()
}

// reexecMarker is the sentinel argv[1] MaybeReexec watches for. personality(2)
// only affects the calling thread's own exec; there is no SysProcAttr field
// to set it in a forked child before exec, so spawning a deterministic
// target goes through a small re-exec of this same binary that calls
// unix.Personality itself and then syscall.Exec's into the real target.
const reexecMarker = "\x00procsnap-aslr-reexec\x00"

// SpawnNoRandomize starts path with argv as its arguments (the target's
// argv[0] is path itself, followed by argv) under a fresh process whose personality has ADDR_NO_RANDOMIZE set
// before exec, so its virtual memory layout is deterministic across
// repeated runs of the same binary. The child additionally requests
// PTRACE_TRACEME so it stops on the exec trap, giving the caller a window
// to attach via the Target Controller before any target instructions run.
func SpawnNoRandomize(path string, argv []string, env []string) (*os.Process, error) {
	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("aslr: resolving own executable: %w", err)
	}
	args := append([]string{reexecMarker, path}, argv...)
	cmd := exec.Command(self, args...)
	cmd.Env = env
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Ptrace: true}
	if err := cmd.Start(); err != nil {
		return nil, errkind.PermissionDenied("spawn target with disabled randomization", err)
	}
	return cmd.Process, nil
}

// MaybeReexec must be called at the very top of main(), before flag
// parsing. If the process was invoked as an ASLR re-exec helper (by
// SpawnNoRandomize) it disables its own randomization and execs into the
// real target, never returning. Otherwise it returns immediately and
// normal command-line handling proceeds.
func MaybeReexec() {
	if len(os.Args) < 3 || os.Args[1] != reexecMarker {
		return
	}
	if err := unix.Personality(unix.ADDR_NO_RANDOMIZE); err != nil {
		fmt.Fprintf(os.Stderr, "procsnap: disabling randomization: %v\n", err)
		os.Exit(1)
	}
	path := os.Args[2]
	argv := os.Args[2:]
	if err := syscall.Exec(path, argv, os.Environ()); err != nil {
		fmt.Fprintf(os.Stderr, "procsnap: exec %s: %v\n", path, err)
		os.Exit(1)
	}
}

// TextBase scans regions (as produced by procfs.Reader.Maps) for the first
// executable region whose pathname equals exePath, returning its Start.
// This is the "effective text base" spec.md's ASLR Controller anchors on.
func TextBase(regions []procfs.MemoryRegion, exePath string) (uint64, bool) {
	for _, r := range regions {
		if r.Executable && r.Pathname == exePath {
			return r.Start, true
		}
	}
	return 0, false
}

// Shift computes the address delta between a capture-time text base and a
// restore-time (live) text base. The result is added to every captured
// address before it is used against the live target.
func Shift(capturedBase, liveBase uint64) int64 {
	return int64(liveBase) - int64(capturedBase)
}

// ApplyShift adds shift to addr using wraparound-safe signed arithmetic,
// matching how the Memory Manager relocates a captured region's addresses.
func ApplyShift(addr uint64, shift int64) uint64 {
	return uint64(int64(addr) + shift)
}
