// Package procfs parses the Linux /proc/<pid> pseudo-filesystem into typed
// memory maps, process status, and file-descriptor tables. Every operation
// here is read-only and side-effect-free: it is safe to call against a
// running or a ptrace-stopped target, and it never blocks on anything but
// ordinary file I/O.
package procfs

// MemoryRegion is one VMA entry from /proc/<pid>/maps. Start and End are
// half-open and page-aligned; End-Start is always a multiple of the system
// page size. Pathname may be empty (anonymous) or one of the kernel's
// synthetic names ("[heap]", "[stack]", "[vdso]", "[vvar]", "[vsyscall]").
type MemoryRegion struct {
	Start      uint64
	End        uint64
	Readable   bool
	Writable   bool
	Executable bool
	Private    bool // false means shared
	Offset     uint64
	Inode      uint64
	Pathname   string
}

// Size returns End-Start.
func (r MemoryRegion) Size() uint64 { return r.End - r.Start }

// Named reports whether Pathname equals one of the kernel's synthetic
// bracketed names, e.g. "[heap]".
func (r MemoryRegion) Named(name string) bool { return r.Pathname == name }

// ProcessInfo is the subset of /proc/<pid>/status and /proc/<pid>/stat this
// system cares about.
type ProcessInfo struct {
	Pid     int
	Ppid    int
	State   byte // the single status letter from stat, e.g. 'R', 'S', 'T', 'Z'
	Comm    string
	Uid     int
	Cmdline []string // argv, from /proc/<pid>/cmdline
	Cwd     string   // target of readlink(/proc/<pid>/cwd)
	Exe     string   // target of readlink(/proc/<pid>/exe)
}

// FdType classifies the kind of object a file descriptor refers to.
type FdType int

const (
	FdUnknown FdType = iota
	FdRegular
	FdDirectory
	FdPipe
	FdSocket
	FdCharDevice
	FdBlockDevice
)

func (t FdType) String() string {
	switch t {
	case FdRegular:
		return "regular"
	case FdDirectory:
		return "directory"
	case FdPipe:
		return "pipe"
	case FdSocket:
		return "socket"
	case FdCharDevice:
		return "char"
	case FdBlockDevice:
		return "block"
	default:
		return "unknown"
	}
}

// FileDescriptorEntry is a single open fd as reported by /proc/<pid>/fd and
// /proc/<pid>/fdinfo/<n>.
type FileDescriptorEntry struct {
	Fd     int
	Path   string // readlink target of /proc/<pid>/fd/<n>
	Flags  uint32 // open(2) flags, parsed from fdinfo's "flags:" line
	Offset int64  // current seek offset, parsed from fdinfo's "pos:" line
	Type   FdType
}
