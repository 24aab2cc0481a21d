package fdtable

import (
	"errors"
	"testing"

	"github.com/ripwire-labs/procsnap/internal/procfs"
	"golang.org/x/sys/unix"
)

func TestCaptureExcludesStdioByDefault(t *testing.T) {
	fds := []procfs.FileDescriptorEntry{
		{Fd: 0, Type: procfs.FdCharDevice, Path: "/dev/pts/0"},
		{Fd: 1, Type: procfs.FdCharDevice, Path: "/dev/pts/0"},
		{Fd: 3, Type: procfs.FdRegular, Path: "/tmp/data"},
	}
	entries := Capture(fds, CaptureOptions{Policy: NewPolicy(nil, nil)}, nil)
	if len(entries) != 1 || entries[0].Fd != 3 {
		t.Fatalf("expected stdio excluded, got %+v", entries)
	}
}

func TestCaptureIncludesStdioWhenRequested(t *testing.T) {
	fds := []procfs.FileDescriptorEntry{{Fd: 0, Type: procfs.FdCharDevice, Path: "/dev/pts/0"}}
	entries := Capture(fds, CaptureOptions{IncludeStdio: true, Policy: NewPolicy(nil, nil)}, nil)
	if len(entries) != 1 {
		t.Fatalf("expected stdio entry present, got %+v", entries)
	}
}

func TestClassifyNonRegularNotRestorable(t *testing.T) {
	for _, typ := range []procfs.FdType{procfs.FdSocket, procfs.FdPipe, procfs.FdCharDevice, procfs.FdBlockDevice, procfs.FdDirectory, procfs.FdUnknown} {
		fd := procfs.FileDescriptorEntry{Fd: 5, Type: typ, Path: "/whatever"}
		restorable, reason := classify(fd, NewPolicy(nil, nil))
		if restorable {
			t.Fatalf("type %v should not be restorable", typ)
		}
		if reason == "" {
			t.Fatalf("expected a reason for type %v", typ)
		}
	}
}

func TestClassifyDefaultDenyExcludesProcSysDev(t *testing.T) {
	policy := NewPolicy(nil, nil)
	for _, p := range []string{"/proc/self/status", "/sys/class/net/eth0", "/dev/null"} {
		fd := procfs.FileDescriptorEntry{Fd: 5, Type: procfs.FdRegular, Path: p}
		if restorable, _ := classify(fd, policy); restorable {
			t.Fatalf("expected %q to be denied by default", p)
		}
	}
}

func TestClassifyRegularFileOutsideDenyIsRestorable(t *testing.T) {
	fd := procfs.FileDescriptorEntry{Fd: 5, Type: procfs.FdRegular, Path: "/tmp/checkpoint-data.bin"}
	restorable, reason := classify(fd, NewPolicy(nil, nil))
	if !restorable {
		t.Fatalf("expected regular file to be restorable, reason: %s", reason)
	}
}

func TestClassifyAllowListRestrictsFurther(t *testing.T) {
	policy := NewPolicy([]string{"/data/**"}, []string{})
	allowed := procfs.FileDescriptorEntry{Fd: 5, Type: procfs.FdRegular, Path: "/data/file.txt"}
	denied := procfs.FileDescriptorEntry{Fd: 6, Type: procfs.FdRegular, Path: "/tmp/file.txt"}
	if ok, _ := classify(allowed, policy); !ok {
		t.Fatalf("expected /data/** path to be allowed")
	}
	if ok, _ := classify(denied, policy); ok {
		t.Fatalf("expected path outside allow list to be denied")
	}
}

// fakeInjector is a concrete fake standing in for a real trace.Controller,
// modeling a target's scratch memory and recording injected syscalls.
type fakeInjector struct {
	mem        map[uint64][]byte
	rsp        uint64
	nextOpenFd int
	openErr    error
	dup2Err    error
	closeErr   error
	lseekErr   error
	calls      []uint64
}

func newFakeInjector() *fakeInjector {
	return &fakeInjector{mem: map[uint64][]byte{}, rsp: 0x7ffff000, nextOpenFd: 9}
}

func (f *fakeInjector) StackPointer() (uint64, error) { return f.rsp, nil }

func (f *fakeInjector) ReadMemory(addr uint64, n int) ([]byte, error) {
	b, ok := f.mem[addr]
	if !ok {
		return make([]byte, n), nil
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

func (f *fakeInjector) WriteMemory(addr uint64, data []byte) error {
	cp := append([]byte{}, data...)
	f.mem[addr] = cp
	return nil
}

func (f *fakeInjector) InjectSyscall(nr uint64, a1, a2, a3, a4, a5, a6 uint64) (uint64, error) {
	f.calls = append(f.calls, nr)
	switch nr {
	case unix.SYS_OPENAT:
		if f.openErr != nil {
			return 0, f.openErr
		}
		fd := f.nextOpenFd
		f.nextOpenFd++
		return uint64(fd), nil
	case unix.SYS_DUP2:
		return a2, f.dup2Err
	case unix.SYS_CLOSE:
		return 0, f.closeErr
	case unix.SYS_LSEEK:
		return a2, f.lseekErr
	}
	return 0, nil
}

func TestRestoreReopensAndRenumbers(t *testing.T) {
	fake := newFakeInjector()
	entries := []Entry{
		{FileDescriptorEntry: procfs.FileDescriptorEntry{Fd: 3, Path: "/tmp/a", Flags: unix.O_RDWR, Offset: 42, Type: procfs.FdRegular}, Restorable: true},
	}
	result, err := Restore(fake, entries, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Restored != 1 || result.Failed != 0 {
		t.Fatalf("expected 1 restored, got %+v", result)
	}
	wantCalls := []uint64{unix.SYS_OPENAT, unix.SYS_DUP2, unix.SYS_CLOSE, unix.SYS_LSEEK}
	if len(fake.calls) != len(wantCalls) {
		t.Fatalf("expected calls %v, got %v", wantCalls, fake.calls)
	}
	for i, c := range wantCalls {
		if fake.calls[i] != c {
			t.Fatalf("call %d: expected %d, got %d", i, c, fake.calls[i])
		}
	}
}

func TestRestoreSkipsUnrestorableEntries(t *testing.T) {
	fake := newFakeInjector()
	entries := []Entry{
		{FileDescriptorEntry: procfs.FileDescriptorEntry{Fd: 4, Type: procfs.FdSocket}, Restorable: false, Reason: "socket"},
	}
	result, err := Restore(fake, entries, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Skipped != 1 || result.Restored != 0 {
		t.Fatalf("expected entry skipped, got %+v", result)
	}
	if len(fake.calls) != 0 {
		t.Fatalf("expected no syscalls injected for a skipped entry")
	}
}

func TestRestoreCollectsFailureAndContinues(t *testing.T) {
	fake := newFakeInjector()
	fake.openErr = errors.New("ENOENT")
	entries := []Entry{
		{FileDescriptorEntry: procfs.FileDescriptorEntry{Fd: 3, Path: "/tmp/missing", Type: procfs.FdRegular}, Restorable: true},
		{FileDescriptorEntry: procfs.FileDescriptorEntry{Fd: 4, Path: "/tmp/other", Type: procfs.FdRegular}, Restorable: true},
	}
	result, err := Restore(fake, entries, nil)
	if err != nil {
		t.Fatalf("unexpected top-level error: %v", err)
	}
	if result.Failed != 2 || result.Restored != 0 {
		t.Fatalf("expected both entries to fail independently, got %+v", result)
	}
	if len(result.Warnings) != 2 {
		t.Fatalf("expected one warning per failed fd, got %v", result.Warnings)
	}
}

func TestRestoreRestoresScratchBufferAfterUse(t *testing.T) {
	fake := newFakeInjector()
	scratch := fake.rsp - scratchGap
	fake.mem[scratch] = []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE}
	entries := []Entry{
		{FileDescriptorEntry: procfs.FileDescriptorEntry{Fd: 3, Path: "/tmp/a", Type: procfs.FdRegular}, Restorable: true},
	}
	if _, err := Restore(fake, entries, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := fake.mem[scratch]
	want := []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE}
	if len(got) < len(want) {
		t.Fatalf("scratch buffer shorter than expected: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("scratch buffer not restored at byte %d: got %x want %x", i, got[i], want[i])
		}
	}
}

func TestRestoreSkipsLseekWhenOffsetZero(t *testing.T) {
	fake := newFakeInjector()
	fake.nextOpenFd = 3 // matches recorded fd, so no dup2/close expected
	entries := []Entry{
		{FileDescriptorEntry: procfs.FileDescriptorEntry{Fd: 3, Path: "/tmp/a", Offset: 0, Type: procfs.FdRegular}, Restorable: true},
	}
	if _, err := Restore(fake, entries, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fake.calls) != 1 || fake.calls[0] != unix.SYS_OPENAT {
		t.Fatalf("expected only openat to be called, got %v", fake.calls)
	}
}
