package trace

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ripwire-labs/procsnap/internal/errkind"
	"github.com/ripwire-labs/procsnap/internal/gwlog"
	"github.com/ripwire-labs/procsnap/internal/procfs"
	"golang.org/x/sys/unix"
)

// DefaultAttachTimeout bounds how long Attach polls for the stop to land
// before giving up and reporting errkind.Timeout.
const DefaultAttachTimeout = 2 * time.Second

// pollInterval is how often Attach re-checks /proc/<pid>/stat while waiting
// for the tracing stop to be observed.
const pollInterval = 2 * time.Millisecond

// Controller wraps ptrace(2) tracing authority over exactly one target pid.
// All interactions with a given pid must be serialized through a single
// Controller instance; concurrent callers on the same pid are not
// supported and must coordinate externally, matching spec.md's
// single-threaded-per-target scheduling model.
type Controller struct {
	mu    sync.Mutex
	pid   int
	state State
	log   *gwlog.Logger
}

// New returns a Controller for pid in the initial (detached) state.
func New(pid int, lg *gwlog.Logger) *Controller {
	if lg == nil {
		lg = gwlog.NewDiscardLogger()
	}
	return &Controller{pid: pid, state: StateDetached, log: lg}
}

// Pid returns the target pid this controller is bound to.
func (c *Controller) Pid() int { return c.pid }

// State returns the controller's current state machine position.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) invalidState(op string) error {
	return errkind.InvalidState(fmt.Sprintf("%s: controller is %s", op, c.state), nil)
}

// Attach transitions DETACHED -> STOPPED, waiting up to timeout (or
// DefaultAttachTimeout if zero) for the kernel to deliver and this process
// to observe the stop. It fails with PermissionDenied if the kernel
// refuses the attach (ptrace_scope, capability mismatch, uid mismatch),
// NotFound if the pid does not exist, and Timeout otherwise.
func (c *Controller) Attach(timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateDetached {
		return c.invalidState("attach")
	}
	if timeout <= 0 {
		timeout = DefaultAttachTimeout
	}
	c.state = StateStopPending
	c.log.Debug("attaching to target", gwlog.KV("pid", c.pid))

	if err := unix.PtraceAttach(c.pid); err != nil {
		c.state = StateDetached
		return wrapPtraceErr("attach", c.pid, err)
	}

	deadline := time.Now().Add(timeout)
	for {
		stopped, err := c.pollTracingStop()
		if err != nil {
			c.state = StateDetached
			return err
		}
		if stopped {
			break
		}
		if time.Now().After(deadline) {
			_ = unix.PtraceDetach(c.pid)
			c.state = StateDetached
			return errkind.Timeout(fmt.Sprintf("attach: pid %d did not stop in time", c.pid), nil)
		}
		time.Sleep(pollInterval)
	}

	c.state = StateStopped
	c.log.Info("attached", gwlog.KV("pid", c.pid))
	return nil
}

// pollTracingStop checks /proc/<pid>/stat for the kernel's "t" (tracing
// stop) state letter. PTRACE_ATTACH does not hand back a reliable
// synchronous confirmation of the stop for an arbitrary (non-child) pid,
// so the controller polls procfs rather than wait4 when this process isn't
// the tracee's parent; wait4 still works for the common case of a target
// this process spawned, but polling is correct in both cases.
func (c *Controller) pollTracingStop() (bool, error) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/stat", c.pid))
	if err != nil {
		if os.IsNotExist(err) {
			return false, errkind.NotFound(fmt.Sprintf("pid %d", c.pid), err)
		}
		return false, err
	}
	defer f.Close()
	info, err := procfs.ParseStat(f)
	if err != nil {
		return false, nil // transient read mid-update; retry
	}
	return info.State == 't' || info.State == 'T', nil
}

// Detach is only legal from STOPPED; it leaves the target running and
// transitions to DETACHED.
func (c *Controller) Detach() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateStopped {
		return c.invalidState("detach")
	}
	if err := unix.PtraceDetach(c.pid); err != nil {
		return wrapPtraceErr("detach", c.pid, err)
	}
	c.state = StateDetached
	c.log.Info("detached", gwlog.KV("pid", c.pid))
	return nil
}

// ForceDetach issues a best-effort detach regardless of tracked state, used
// when a deadline elapses mid-operation and the caller must not leave the
// target permanently stopped. It always leaves the controller DETACHED.
func (c *Controller) ForceDetach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateDetached {
		return
	}
	_ = unix.PtraceDetach(c.pid)
	c.state = StateDetached
	c.log.Warn("force-detached after error/timeout", gwlog.KV("pid", c.pid))
}

// ReadRegisters is legal only in STOPPED.
func (c *Controller) ReadRegisters() (RegisterFile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateStopped {
		return RegisterFile{}, c.invalidState("readRegisters")
	}
	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(c.pid, &regs); err != nil {
		return RegisterFile{}, errkind.RegistersFailed("getregs", err)
	}
	return fromPtrace(&regs), nil
}

// WriteRegisters is legal only in STOPPED. The write is atomic from the
// caller's point of view: PTRACE_SETREGS either installs the complete
// register file or the kernel rejects the call outright, there is no
// partial-write state to recover from.
func (c *Controller) WriteRegisters(rf RegisterFile) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateStopped {
		return c.invalidState("writeRegisters")
	}
	regs := rf.toPtrace()
	if err := unix.PtraceSetRegs(c.pid, &regs); err != nil {
		return errkind.RegistersFailed("setregs", err)
	}
	return nil
}

// StackPointer returns the target's current rsp. It is legal only in
// STOPPED, and exists mainly for callers (such as the FD Manager) that need
// a scratch address below the live stack without pulling in the full
// RegisterFile type.
func (c *Controller) StackPointer() (uint64, error) {
	rf, err := c.ReadRegisters()
	if err != nil {
		return 0, err
	}
	return rf.Rsp, nil
}

// SingleStep transitions STOPPED -> RUNNING and then blocks for the next
// stop, matching the Target Controller's contract that callers never
// observe an intermediate unobserved RUNNING window.
func (c *Controller) SingleStep() error {
	return c.stepOrContinue("singleStep", func() error { return unix.PtraceSingleStep(c.pid) })
}

// Continue transitions STOPPED -> RUNNING and blocks for the next stop
// (typically the next signal-delivery-stop).
func (c *Controller) Continue() error {
	return c.stepOrContinue("continue", func() error { return unix.PtraceCont(c.pid, 0) })
}

func (c *Controller) stepOrContinue(op string, issue func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateStopped {
		return c.invalidState(op)
	}
	if err := issue(); err != nil {
		return wrapPtraceErr(op, c.pid, err)
	}
	c.state = StateRunning
	var ws unix.WaitStatus
	if _, err := unix.Wait4(c.pid, &ws, 0, nil); err != nil {
		return fmt.Errorf("trace: wait4 pid %d: %w", c.pid, err)
	}
	if ws.Exited() || ws.Signaled() {
		c.state = StateDetached
		return errkind.NotFound(fmt.Sprintf("pid %d exited during %s", c.pid, op), nil)
	}
	c.state = StateStopped
	return nil
}

func wrapPtraceErr(op string, pid int, err error) error {
	switch err {
	case unix.ESRCH:
		return errkind.NotFound(fmt.Sprintf("%s: pid %d", op, pid), err)
	case unix.EPERM:
		return errkind.PermissionDenied(fmt.Sprintf("%s: pid %d", op, pid), err)
	default:
		return fmt.Errorf("trace: %s pid %d: %w", op, pid, err)
	}
}
