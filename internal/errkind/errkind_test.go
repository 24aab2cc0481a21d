package errkind

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestPredicatesMatchOwnKind(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		name string
		err  error
		pred func(error) bool
	}{
		{"not found", NotFound("pid 1234", cause), IsNotFound},
		{"permission denied", PermissionDenied("ptrace scope", cause), IsPermissionDenied},
		{"timeout", Timeout("attach", cause), IsTimeout},
		{"corrupted", Corrupted("bad digest", cause), IsCorrupted},
		{"invalid state", InvalidState("not stopped", cause), IsInvalidState},
		{"aslr mismatch", AslrMismatch("no shift", cause), IsAslrMismatch},
		{"memory read failed", MemoryReadFailed(0x1000, 4096, cause), IsMemoryReadFailed},
		{"memory write failed", MemoryWriteFailed(0x2000, 4096, cause), IsMemoryWriteFailed},
		{"registers failed", RegistersFailed("setregs", cause), IsRegistersFailed},
		{"syscall injection failed", SyscallInjectionFailed(257, 13, cause), IsSyscallInjectionFailed},
		{"fd restore failed", FdRestoreFailed("openat", cause), IsFdRestoreFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.pred(tt.err) {
				t.Fatalf("predicate did not match own error: %v", tt.err)
			}
		})
	}
}

func TestPredicatesRejectOtherKinds(t *testing.T) {
	err := NotFound("pid 1", nil)
	if IsTimeout(err) || IsCorrupted(err) || IsPermissionDenied(err) {
		t.Fatalf("cross-kind predicate incorrectly matched: %v", err)
	}
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("ESRCH")
	err := NotFound("pid 9999", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("errors.Is did not find wrapped cause")
	}
	if errors.Unwrap(err) != cause {
		t.Fatalf("Unwrap did not return the original cause")
	}
}

func TestErrorsIsMatchesSameKindDifferentInstances(t *testing.T) {
	a := MemoryReadFailed(0x1000, 8, errors.New("EIO"))
	b := MemoryReadFailed(0x9999, 16, errors.New("EFAULT"))
	if !errors.Is(a, b) {
		t.Fatalf("expected same-kind *Error values to satisfy errors.Is")
	}
}

func TestAsExtractsStructuredFields(t *testing.T) {
	wrapped := fmt.Errorf("dump region: %w", MemoryWriteFailed(0x4000, 4096, errors.New("EPERM")))
	e, ok := As(wrapped)
	if !ok {
		t.Fatalf("expected As to find the wrapped *Error")
	}
	if e.Addr != 0x4000 || e.Length != 4096 {
		t.Fatalf("unexpected structured fields: %+v", e)
	}
}

func TestSyscallInjectionFailedCarriesErrno(t *testing.T) {
	err := SyscallInjectionFailed(2, 13, errors.New("EACCES"))
	e, ok := As(err)
	if !ok || e.Errno != 13 {
		t.Fatalf("expected errno 13, got %+v", e)
	}
}

func TestErrorStringIncludesCause(t *testing.T) {
	err := Timeout("attach", errors.New("deadline exceeded"))
	if got := err.Error(); !strings.Contains(got, "deadline exceeded") {
		t.Fatalf("expected error string to include cause, got %q", got)
	}
}

func TestNilErrorStringDoesNotPanic(t *testing.T) {
	var e *Error
	if e.Error() != "<nil>" {
		t.Fatalf("expected nil receiver to format safely")
	}
}
