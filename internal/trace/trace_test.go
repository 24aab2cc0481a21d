package trace

import (
	"errors"
	"testing"

	"github.com/ripwire-labs/procsnap/internal/errkind"
	"golang.org/x/sys/unix"
)

func TestInitialStateIsDetached(t *testing.T) {
	c := New(1, nil)
	if c.State() != StateDetached {
		t.Fatalf("expected initial state detached, got %v", c.State())
	}
}

func TestOpsRejectedBeforeAttach(t *testing.T) {
	c := New(1, nil)

	if _, err := c.ReadRegisters(); !errkind.IsInvalidState(err) {
		t.Fatalf("expected InvalidState from ReadRegisters, got %v", err)
	}
	if err := c.WriteRegisters(RegisterFile{}); !errkind.IsInvalidState(err) {
		t.Fatalf("expected InvalidState from WriteRegisters, got %v", err)
	}
	if _, err := c.ReadMemory(0x1000, 8); !errkind.IsInvalidState(err) {
		t.Fatalf("expected InvalidState from ReadMemory, got %v", err)
	}
	if err := c.WriteMemory(0x1000, []byte{1, 2}); !errkind.IsInvalidState(err) {
		t.Fatalf("expected InvalidState from WriteMemory, got %v", err)
	}
	if err := c.SingleStep(); !errkind.IsInvalidState(err) {
		t.Fatalf("expected InvalidState from SingleStep, got %v", err)
	}
	if err := c.Continue(); !errkind.IsInvalidState(err) {
		t.Fatalf("expected InvalidState from Continue, got %v", err)
	}
	if err := c.Detach(); !errkind.IsInvalidState(err) {
		t.Fatalf("expected InvalidState from Detach, got %v", err)
	}
	if _, err := c.InjectSyscall(0, 0, 0, 0, 0, 0, 0); !errkind.IsInvalidState(err) {
		t.Fatalf("expected InvalidState from InjectSyscall, got %v", err)
	}
}

func TestRegisterFileRoundTrip(t *testing.T) {
	rf := RegisterFile{
		R15: 1, R14: 2, R13: 3, R12: 4, Rbp: 5, Rbx: 6,
		R11: 7, R10: 8, R9: 9, R8: 10,
		Rax: 11, Rcx: 12, Rdx: 13, Rsi: 14, Rdi: 15,
		OrigRax: 16, Rip: 17, Cs: 18, Eflags: 19, Rsp: 20, Ss: 21,
		FsBase: 22, GsBase: 23, Ds: 24, Es: 25, Fs: 26, Gs: 27,
	}
	pt := rf.toPtrace()
	back := fromPtrace(&pt)
	if back != rf {
		t.Fatalf("register file did not round-trip: got %+v, want %+v", back, rf)
	}
}

func TestNegativeErrno(t *testing.T) {
	tests := []struct {
		name string
		ret  uint64
		want int
	}{
		{"success zero", 0, 0},
		{"positive fd", 3, 0},
		{"eperm", uint64(int64(-1)), 1},
		{"enoent", uint64(int64(-2)), 2},
		{"boundary -4095", uint64(int64(-4095)), 4095},
		{"out of range -4096", uint64(int64(-4096)), 0},
		{"large positive not mistaken for errno", 0x7ffff7ff0000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := negativeErrno(tt.ret); got != tt.want {
				t.Fatalf("negativeErrno(%d) = %d, want %d", int64(tt.ret), got, tt.want)
			}
		})
	}
}

func TestWrapPtraceErrMapsKnownErrnos(t *testing.T) {
	if err := wrapPtraceErr("attach", 1, unix.ESRCH); !errkind.IsNotFound(err) {
		t.Fatalf("expected NotFound for ESRCH, got %v", err)
	}
	if err := wrapPtraceErr("attach", 1, unix.EPERM); !errkind.IsPermissionDenied(err) {
		t.Fatalf("expected PermissionDenied for EPERM, got %v", err)
	}
	other := errors.New("boom")
	err := wrapPtraceErr("attach", 1, other)
	if errkind.IsNotFound(err) || errkind.IsPermissionDenied(err) {
		t.Fatalf("unexpected kind mapping for unrelated error: %v", err)
	}
}

func TestStateString(t *testing.T) {
	if StateDetached.String() != "detached" {
		t.Fatalf("unexpected string for StateDetached")
	}
	if StateStopped.String() != "stopped" {
		t.Fatalf("unexpected string for StateStopped")
	}
}
