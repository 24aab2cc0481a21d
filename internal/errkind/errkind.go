// Package errkind defines the typed error kinds returned by procsnap's core
// subsystems. Every exported operation on a target or an artifact returns
// one of these wrapped around a causal error, never a bare errors.New or a
// panic. Callers discriminate with the Is* predicates below; all of them
// are errors.Is-compatible because each kind embeds the cause via Unwrap.
package errkind

import (
	"errors"
	"fmt"
)

// Kind identifies which of the fixed error categories a failure belongs to.
type Kind int

const (
	// KindNotFound means a pid or a referenced file does not exist.
	KindNotFound Kind = iota
	// KindPermissionDenied means the kernel refused an operation (ptrace
	// scope, capability, file permission).
	KindPermissionDenied
	// KindTimeout means a deadline elapsed waiting on the kernel or target.
	KindTimeout
	// KindCorrupted means a decoded artifact failed a structural or digest check.
	KindCorrupted
	// KindInvalidState means an operation was attempted against a Target
	// Controller in the wrong state machine state.
	KindInvalidState
	// KindAslrMismatch means no consistent base-address shift could be
	// computed between a captured and a live target under strict mode.
	KindAslrMismatch
	// KindMemoryReadFailed means a region read failed partway or entirely.
	KindMemoryReadFailed
	// KindMemoryWriteFailed means a region write failed partway or entirely.
	KindMemoryWriteFailed
	// KindRegistersFailed means a register read or write was rejected by the kernel.
	KindRegistersFailed
	// KindSyscallInjectionFailed means an injected syscall returned a kernel errno.
	KindSyscallInjectionFailed
	// KindFdRestoreFailed means reopening or renumbering a file descriptor failed.
	KindFdRestoreFailed
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindPermissionDenied:
		return "permission_denied"
	case KindTimeout:
		return "timeout"
	case KindCorrupted:
		return "corrupted"
	case KindInvalidState:
		return "invalid_state"
	case KindAslrMismatch:
		return "aslr_mismatch"
	case KindMemoryReadFailed:
		return "memory_read_failed"
	case KindMemoryWriteFailed:
		return "memory_write_failed"
	case KindRegistersFailed:
		return "registers_failed"
	case KindSyscallInjectionFailed:
		return "syscall_injection_failed"
	case KindFdRestoreFailed:
		return "fd_restore_failed"
	default:
		return "unknown"
	}
}

// Error is the concrete type wrapping a Kind, a message, a causal error, and
// whatever structured detail a given kind carries (address/length for the
// memory kinds, errno for syscall injection).
type Error struct {
	Kind    Kind
	Message string
	Cause   error

	// Addr and Length are populated for KindMemoryReadFailed / KindMemoryWriteFailed.
	Addr   uint64
	Length uint64

	// Errno is populated for KindSyscallInjectionFailed.
	Errno int
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is lets errors.Is(err, errkind.NotFound(nil)) match any Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t == nil {
		return false
	}
	return e.Kind == t.Kind
}

func newErr(k Kind, msg string, cause error) *Error {
	return &Error{Kind: k, Message: msg, Cause: cause}
}

// NotFound wraps cause (which may be nil) as a KindNotFound error.
func NotFound(msg string, cause error) *Error { return newErr(KindNotFound, msg, cause) }

// PermissionDenied wraps cause as a KindPermissionDenied error.
func PermissionDenied(msg string, cause error) *Error {
	return newErr(KindPermissionDenied, msg, cause)
}

// Timeout wraps cause as a KindTimeout error.
func Timeout(msg string, cause error) *Error { return newErr(KindTimeout, msg, cause) }

// Corrupted wraps cause as a KindCorrupted error.
func Corrupted(msg string, cause error) *Error { return newErr(KindCorrupted, msg, cause) }

// InvalidState wraps cause as a KindInvalidState error.
func InvalidState(msg string, cause error) *Error { return newErr(KindInvalidState, msg, cause) }

// AslrMismatch wraps cause as a KindAslrMismatch error.
func AslrMismatch(msg string, cause error) *Error { return newErr(KindAslrMismatch, msg, cause) }

// MemoryReadFailed wraps cause as a KindMemoryReadFailed error carrying the
// failing address and the length that was requested.
func MemoryReadFailed(addr, length uint64, cause error) *Error {
	e := newErr(KindMemoryReadFailed, fmt.Sprintf("memory read failed at %#x (%d bytes)", addr, length), cause)
	e.Addr, e.Length = addr, length
	return e
}

// MemoryWriteFailed wraps cause as a KindMemoryWriteFailed error carrying the
// failing address and the length that was attempted.
func MemoryWriteFailed(addr, length uint64, cause error) *Error {
	e := newErr(KindMemoryWriteFailed, fmt.Sprintf("memory write failed at %#x (%d bytes)", addr, length), cause)
	e.Addr, e.Length = addr, length
	return e
}

// RegistersFailed wraps cause as a KindRegistersFailed error.
func RegistersFailed(msg string, cause error) *Error { return newErr(KindRegistersFailed, msg, cause) }

// SyscallInjectionFailed wraps cause as a KindSyscallInjectionFailed error
// carrying the kernel errno returned by the injected call.
func SyscallInjectionFailed(nr int, errno int, cause error) *Error {
	e := newErr(KindSyscallInjectionFailed, fmt.Sprintf("injected syscall %d failed, errno %d", nr, errno), cause)
	e.Errno = errno
	return e
}

// FdRestoreFailed wraps cause as a KindFdRestoreFailed error.
func FdRestoreFailed(msg string, cause error) *Error { return newErr(KindFdRestoreFailed, msg, cause) }

// IsNotFound reports whether err is, or wraps, a KindNotFound error.
func IsNotFound(err error) bool { return hasKind(err, KindNotFound) }

// IsPermissionDenied reports whether err is, or wraps, a KindPermissionDenied error.
func IsPermissionDenied(err error) bool { return hasKind(err, KindPermissionDenied) }

// IsTimeout reports whether err is, or wraps, a KindTimeout error.
func IsTimeout(err error) bool { return hasKind(err, KindTimeout) }

// IsCorrupted reports whether err is, or wraps, a KindCorrupted error.
func IsCorrupted(err error) bool { return hasKind(err, KindCorrupted) }

// IsInvalidState reports whether err is, or wraps, a KindInvalidState error.
func IsInvalidState(err error) bool { return hasKind(err, KindInvalidState) }

// IsAslrMismatch reports whether err is, or wraps, a KindAslrMismatch error.
func IsAslrMismatch(err error) bool { return hasKind(err, KindAslrMismatch) }

// IsMemoryReadFailed reports whether err is, or wraps, a KindMemoryReadFailed error.
func IsMemoryReadFailed(err error) bool { return hasKind(err, KindMemoryReadFailed) }

// IsMemoryWriteFailed reports whether err is, or wraps, a KindMemoryWriteFailed error.
func IsMemoryWriteFailed(err error) bool { return hasKind(err, KindMemoryWriteFailed) }

// IsRegistersFailed reports whether err is, or wraps, a KindRegistersFailed error.
func IsRegistersFailed(err error) bool { return hasKind(err, KindRegistersFailed) }

// IsSyscallInjectionFailed reports whether err is, or wraps, a KindSyscallInjectionFailed error.
func IsSyscallInjectionFailed(err error) bool { return hasKind(err, KindSyscallInjectionFailed) }

// IsFdRestoreFailed reports whether err is, or wraps, a KindFdRestoreFailed error.
func IsFdRestoreFailed(err error) bool { return hasKind(err, KindFdRestoreFailed) }

func hasKind(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}

// As extracts the *Error from err, if any, mirroring errors.As for callers
// that want the structured fields (Addr, Length, Errno) rather than a bool.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
