package checkpoint

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ripwire-labs/procsnap/internal/aslr"
	"github.com/ripwire-labs/procsnap/internal/errkind"
	"github.com/ripwire-labs/procsnap/internal/fdtable"
	"github.com/ripwire-labs/procsnap/internal/gwlog"
	"github.com/ripwire-labs/procsnap/internal/memory"
	"github.com/ripwire-labs/procsnap/internal/procfs"
	"github.com/ripwire-labs/procsnap/internal/trace"
	"golang.org/x/sys/unix"
)

// Checkpointer is the top-level orchestrator (spec.md 4.F). It owns no
// per-target state of its own; every Create/Restore call attaches, does its
// work, and detaches within the call.
type Checkpointer struct {
	Reader *procfs.Reader
	Log    *gwlog.Logger
}

// New returns a Checkpointer using the real /proc filesystem and lg (or a
// discard logger if lg is nil).
func New(lg *gwlog.Logger) *Checkpointer {
	if lg == nil {
		lg = gwlog.NewDiscardLogger()
	}
	return &Checkpointer{Reader: &procfs.Reader{Root: procfs.DefaultRoot, Log: lg}, Log: lg}
}

// Create attaches to pid, samples it, detaches, and returns the resulting
// Checkpoint. The target's stop duration is minimal: only reads occur
// while it is stopped (spec.md 4.F step 1-6).
func (c *Checkpointer) Create(pid int, name string, opts CheckpointOptions) (CheckpointOutcome, error) {
	ctrl := trace.New(pid, c.Log)
	if err := ctrl.Attach(opts.AttachTimeout); err != nil {
		return CheckpointOutcome{}, err
	}
	// Regardless of success below, the target must not be left stopped
	// forever just because a later step failed.
	defer func() {
		if ctrl.State() != trace.StateDetached {
			ctrl.ForceDetach()
		}
	}()

	info, err := c.Reader.Info(pid)
	if err != nil {
		return CheckpointOutcome{}, err
	}
	regions, err := c.Reader.Maps(pid)
	if err != nil {
		return CheckpointOutcome{}, err
	}
	policy, err := c.Reader.RandomizeVaSpace()
	if err != nil {
		c.Log.Warn("could not read system ASLR policy", gwlog.KVErr(err))
	}

	regs, err := ctrl.ReadRegisters()
	if err != nil {
		return CheckpointOutcome{}, err
	}

	selected := memory.Select(regions, memory.SelectionOptions{
		DumpHeap:          opts.DumpHeap,
		DumpStack:         opts.DumpStack,
		DumpAnonymous:     opts.DumpAnonymous,
		IncludeFileBacked: opts.IncludeFileBacked,
		SkipReadOnly:      opts.SkipReadOnly,
	})
	dumps, warnings := memory.Dump(ctrl, selected, opts.Progress, nil, c.Log)

	var fds []fdtable.Entry
	fdsCaptured, fdsUnrestorable := 0, 0
	if opts.CaptureFds {
		raw, err := c.Reader.Fds(pid)
		if err != nil {
			c.Log.Warn("could not capture fd table", gwlog.KVErr(err))
		} else {
			fds = fdtable.Capture(raw, fdtable.CaptureOptions{IncludeStdio: opts.IncludeStdioFds, Policy: opts.FdPolicy}, c.Log)
			for _, e := range fds {
				fdsCaptured++
				if !e.Restorable {
					fdsUnrestorable++
				}
			}
		}
	}

	if err := ctrl.Detach(); err != nil {
		return CheckpointOutcome{}, err
	}

	var total uint64
	regionsFailed := 0
	for _, d := range dumps {
		if d.Valid {
			total += d.Region.Size()
		} else {
			regionsFailed++
		}
	}

	_ = info // info.Cmdline etc. are available to callers that want richer metadata; Checkpoint itself records only what spec.md 3 names

	cp := Checkpoint{
		ID:         uuid.New(),
		Name:       name,
		CreatedAt:  timeNow(),
		Pid:        pid,
		Aslr:       policy,
		Registers:  regs,
		Regions:    regions,
		Dumps:      dumps,
		Fds:        fds,
		TotalBytes: total,
	}

	return CheckpointOutcome{
		Checkpoint:      cp,
		RegionsDumped:   len(dumps) - regionsFailed,
		RegionsFailed:   regionsFailed,
		FdsCaptured:     fdsCaptured,
		FdsUnrestorable: fdsUnrestorable,
		Warnings:        warnings,
	}, nil
}

// timeNow exists so tests can't accidentally depend on wall-clock time
// inside Checkpoint equality assertions; production code always calls
// time.Now through it.
var timeNow = time.Now

// Restore attaches to pid and replays cp into it per spec.md 4.F's ordering
// invariant: registers before memory (so the captured rip survives),
// fds last (fd restoration itself clobbers and restores registers around
// each injected syscall).
func (c *Checkpointer) Restore(pid int, cp Checkpoint, opts RestoreOptions) (RestoreOutcome, error) {
	ctrl := trace.New(pid, c.Log)
	if err := ctrl.Attach(opts.AttachTimeout); err != nil {
		return RestoreOutcome{}, err
	}
	defer func() {
		if ctrl.State() != trace.StateDetached {
			ctrl.ForceDetach()
		}
	}()

	liveRegions, err := c.Reader.Maps(pid)
	if err != nil {
		return RestoreOutcome{}, err
	}

	shift, err := computeShift(cp, liveRegions, opts.Strict)
	if err != nil {
		return RestoreOutcome{}, err
	}

	outcome := RestoreOutcome{AslrShift: shift}

	if opts.RestoreRegisters {
		regs := cp.Registers
		if shift != 0 && textContains(cp.Regions, regs.Rip) {
			regs.Rip = aslr.ApplyShift(regs.Rip, shift)
		}
		if err := ctrl.WriteRegisters(regs); err != nil {
			if opts.StopOnError {
				return outcome, err
			}
			outcome.Warnings = append(outcome.Warnings, fmt.Sprintf("registers: %v", err))
		} else {
			outcome.RegistersWritten = true
		}
	}

	if opts.RestoreMemory {
		result, err := memory.WriteBack(ctrl, cp.Dumps, shift, liveRegions, opts.IgnoreMemoryErrors, opts.Progress, nil, c.Log)
		outcome.RegionsRestored = result.Restored
		outcome.RegionsFailed = result.Failed
		outcome.RegionsSkipped = result.Skipped
		outcome.Warnings = append(outcome.Warnings, result.Warnings...)
		if err != nil {
			return outcome, err
		}
	}

	if opts.RestoreFds {
		result, err := fdtable.Restore(ctrl, cp.Fds, c.Log)
		outcome.FdsRestored = result.Restored
		outcome.FdsFailed = result.Failed
		outcome.FdsSkipped = result.Skipped
		outcome.Warnings = append(outcome.Warnings, result.Warnings...)
		if err != nil {
			return outcome, err
		}
	}

	if !opts.ContinueAfterRestore {
		// PTRACE_DETACH always resumes the tracee, so "leave stopped" is
		// achieved by putting it into an ordinary job-control stop first: a
		// SIGSTOP delivered before detach leaves the target in group-stop
		// (visible as state T) until something later sends SIGCONT, rather
		// than running loose the instant this process lets go of it.
		if err := unix.Kill(pid, unix.SIGSTOP); err != nil {
			outcome.Warnings = append(outcome.Warnings, fmt.Sprintf("sigstop before detach: %v", err))
		}
	}
	if err := ctrl.Detach(); err != nil {
		return outcome, err
	}

	outcome.Success = outcome.RegionsFailed == 0 || opts.IgnoreMemoryErrors
	return outcome, nil
}

// computeShift derives the address delta between the checkpoint's captured
// text base and the live target's, returning 0 if the checkpoint has no
// executable text region (nothing to anchor on). If the checkpoint has one
// but the live target does not, it returns AslrMismatch when strict is set
// and 0 otherwise.
func computeShift(cp Checkpoint, liveRegions []procfs.MemoryRegion, strict bool) (int64, error) {
	exePath := executablePath(cp.Regions)
	if exePath == "" {
		return 0, nil
	}
	capturedBase, ok := aslr.TextBase(cp.Regions, exePath)
	if !ok {
		return 0, nil
	}
	liveBase, ok := aslr.TextBase(liveRegions, exePath)
	if !ok {
		if strict {
			return 0, errkind.AslrMismatch(fmt.Sprintf("no live text region found for %s", exePath), nil)
		}
		return 0, nil
	}
	return aslr.Shift(capturedBase, liveBase), nil
}

// executablePath returns the pathname of the first executable, file-backed
// region, which is conventionally the main executable's text segment.
func executablePath(regions []procfs.MemoryRegion) string {
	for _, r := range regions {
		if r.Executable && r.Pathname != "" && r.Pathname[0] != '[' {
			return r.Pathname
		}
	}
	return ""
}

// textContains reports whether addr falls within some executable region in regions.
func textContains(regions []procfs.MemoryRegion, addr uint64) bool {
	for _, r := range regions {
		if r.Executable && r.Start <= addr && addr < r.End {
			return true
		}
	}
	return false
}
