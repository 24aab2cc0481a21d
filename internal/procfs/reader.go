package procfs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ripwire-labs/procsnap/internal/errkind"
	"github.com/ripwire-labs/procsnap/internal/gwlog"
)

// DefaultRoot is the real kernel-exposed pseudo-filesystem root. Tests
// substitute a synthetic tree built by procfstest under Reader.Root.
const DefaultRoot = "/proc"

// Reader reads the pseudo-filesystem rooted at Root (normally "/proc") into
// the typed values in this package. Every method is read-only and may be
// called concurrently for distinct pids; a single Reader has no mutable
// state of its own.
type Reader struct {
	Root string
	Log  *gwlog.Logger
}

// NewReader returns a Reader rooted at DefaultRoot, logging to a discard
// logger unless overridden via r.Log.
func NewReader() *Reader {
	return &Reader{Root: DefaultRoot, Log: gwlog.NewDiscardLogger()}
}

func (r *Reader) root() string {
	if r.Root == "" {
		return DefaultRoot
	}
	return r.Root
}

func (r *Reader) pidDir(pid int) string {
	return filepath.Join(r.root(), strconv.Itoa(pid))
}

func (r *Reader) logger() *gwlog.Logger {
	if r.Log != nil {
		return r.Log
	}
	return gwlog.NewDiscardLogger()
}

// wrapOpenErr maps a file-open failure against a pid-scoped procfs path to
// the errkind the rest of the core expects: ENOENT means the pid is gone,
// EACCES/EPERM mean the kernel refused us (Yama ptrace_scope or a uid
// mismatch on /proc itself).
func wrapOpenErr(pid int, what string, err error) error {
	if err == nil {
		return nil
	}
	if os.IsNotExist(err) {
		return errkind.NotFound(fmt.Sprintf("pid %d: %s", pid, what), err)
	}
	if os.IsPermission(err) {
		return errkind.PermissionDenied(fmt.Sprintf("pid %d: %s", pid, what), err)
	}
	return fmt.Errorf("procfs: pid %d: %s: %w", pid, what, err)
}

// Maps reads and parses /proc/<pid>/maps.
func (r *Reader) Maps(pid int) ([]MemoryRegion, error) {
	p := filepath.Join(r.pidDir(pid), "maps")
	f, err := os.Open(p)
	if err != nil {
		return nil, wrapOpenErr(pid, "maps", err)
	}
	defer f.Close()
	return ParseMaps(f, r.logger())
}

// Info reads /proc/<pid>/stat, /proc/<pid>/status, /proc/<pid>/cmdline,
// /proc/<pid>/cwd, and /proc/<pid>/exe into a ProcessInfo. Cwd and Exe are
// opportunistic: a readlink failure (common for a zombie, or a target owned
// by another user) leaves the field empty rather than failing the whole read.
func (r *Reader) Info(pid int) (ProcessInfo, error) {
	dir := r.pidDir(pid)

	statFile, err := os.Open(filepath.Join(dir, "stat"))
	if err != nil {
		return ProcessInfo{}, wrapOpenErr(pid, "stat", err)
	}
	info, err := ParseStat(statFile)
	statFile.Close()
	if err != nil {
		return ProcessInfo{}, fmt.Errorf("procfs: pid %d: %w", pid, err)
	}

	statusFile, err := os.Open(filepath.Join(dir, "status"))
	if err != nil {
		return ProcessInfo{}, wrapOpenErr(pid, "status", err)
	}
	uid, err := ParseStatusUid(statusFile)
	statusFile.Close()
	if err != nil {
		r.logger().Warn("could not parse Uid from status", gwlog.KV("pid", pid), gwlog.KVErr(err))
	} else {
		info.Uid = uid
	}

	if cmdline, err := os.ReadFile(filepath.Join(dir, "cmdline")); err == nil {
		info.Cmdline = splitCmdline(cmdline)
	} else {
		r.logger().Warn("could not read cmdline", gwlog.KV("pid", pid), gwlog.KVErr(err))
	}

	if cwd, err := os.Readlink(filepath.Join(dir, "cwd")); err == nil {
		info.Cwd = cwd
	}
	if exe, err := os.Readlink(filepath.Join(dir, "exe")); err == nil {
		info.Exe = exe
	}

	return info, nil
}

func splitCmdline(b []byte) []string {
	parts := strings.Split(string(b), "\x00")
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Fds reads /proc/<pid>/fd and /proc/<pid>/fdinfo/<n> into a sorted list of
// FileDescriptorEntry. A descriptor that vanishes between the directory
// listing and the per-fd reads (the target closed it concurrently) is
// skipped with a warning rather than failing the whole call.
func (r *Reader) Fds(pid int) ([]FileDescriptorEntry, error) {
	dir := r.pidDir(pid)
	fdDir := filepath.Join(dir, "fd")
	entries, err := os.ReadDir(fdDir)
	if err != nil {
		return nil, wrapOpenErr(pid, "fd", err)
	}

	var out []FileDescriptorEntry
	for _, de := range entries {
		fdnum, err := strconv.Atoi(de.Name())
		if err != nil {
			continue
		}
		linkPath := filepath.Join(fdDir, de.Name())
		target, err := os.Readlink(linkPath)
		if err != nil {
			r.logger().Warn("fd vanished while reading", gwlog.KV("pid", pid), gwlog.KV("fd", fdnum))
			continue
		}
		fi, statErr := os.Stat(linkPath)
		typ := classifyFd(target, fileModeOf(fi), statErr == nil)

		flags, offset, _ := r.readFdInfo(dir, fdnum)

		out = append(out, FileDescriptorEntry{
			Fd:     fdnum,
			Path:   target,
			Flags:  flags,
			Offset: offset,
			Type:   typ,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Fd < out[j].Fd })
	return out, nil
}

func fileModeOf(fi os.FileInfo) (m os.FileMode) {
	if fi != nil {
		m = fi.Mode()
	}
	return
}

func (r *Reader) readFdInfo(pidDir string, fdnum int) (flags uint32, offset int64, err error) {
	f, err := os.Open(filepath.Join(pidDir, "fdinfo", strconv.Itoa(fdnum)))
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()
	return ParseFdInfo(f)
}

// AslrPolicy classifies /proc/sys/kernel/randomize_va_space.
type AslrPolicy int

const (
	AslrDisabled AslrPolicy = iota
	AslrConservative
	AslrFull
)

func (p AslrPolicy) String() string {
	switch p {
	case AslrDisabled:
		return "disabled"
	case AslrConservative:
		return "conservative"
	case AslrFull:
		return "full"
	default:
		return "unknown"
	}
}

// RandomizeVaSpace reads the system-wide (not per-pid) ASLR policy.
func (r *Reader) RandomizeVaSpace() (AslrPolicy, error) {
	p := filepath.Join(r.root(), "sys", "kernel", "randomize_va_space")
	b, err := os.ReadFile(p)
	if err != nil {
		return AslrDisabled, fmt.Errorf("procfs: randomize_va_space: %w", err)
	}
	v := strings.TrimSpace(string(b))
	switch v {
	case "0":
		return AslrDisabled, nil
	case "1":
		return AslrConservative, nil
	case "2":
		return AslrFull, nil
	default:
		n, convErr := strconv.Atoi(v)
		if convErr != nil {
			return AslrDisabled, fmt.Errorf("procfs: unexpected randomize_va_space value %q", v)
		}
		if n <= 0 {
			return AslrDisabled, nil
		} else if n == 1 {
			return AslrConservative, nil
		}
		return AslrFull, nil
	}
}
