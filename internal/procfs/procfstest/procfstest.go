// Package procfstest builds synthetic /proc/<pid>-shaped trees under a
// temporary directory so internal/procfs's parsers can be exercised with
// table-driven tests without a real kernel or a real target process.
package procfstest

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Fd describes one synthetic file descriptor to place under fd/ and fdinfo/.
type Fd struct {
	Num    int
	Target string // the readlink target, e.g. "/etc/hosts" or "socket:[123]"
	Flags  uint32 // octal open(2) flags written into fdinfo's "flags:" line
	Offset int64
}

// Tree is a synthetic /proc/<pid> directory under construction.
type Tree struct {
	Root string // the synthetic root, substitutes for "/proc"
	Pid  int
	dir  string
}

// New creates a synthetic /proc/<pid> tree rooted under dir (normally
// t.TempDir()).
func New(dir string, pid int) (*Tree, error) {
	pidDir := filepath.Join(dir, strconv.Itoa(pid))
	if err := os.MkdirAll(filepath.Join(pidDir, "fd"), 0o755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(pidDir, "fdinfo"), 0o755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(dir, "sys", "kernel"), 0o755); err != nil {
		return nil, err
	}
	return &Tree{Root: dir, Pid: pid, dir: pidDir}, nil
}

// WriteMaps writes the given raw /proc/<pid>/maps lines verbatim.
func (t *Tree) WriteMaps(lines ...string) error {
	var b []byte
	for _, l := range lines {
		b = append(b, []byte(l+"\n")...)
	}
	return os.WriteFile(filepath.Join(t.dir, "maps"), b, 0o644)
}

// WriteStat writes a /proc/<pid>/stat line from the given fields. extra is
// appended verbatim after state and ppid (the remaining ~50 stat fields
// this package does not parse).
func (t *Tree) WriteStat(comm string, state byte, ppid int, extra string) error {
	line := fmt.Sprintf("%d (%s) %c %d %s", t.Pid, comm, state, ppid, extra)
	return os.WriteFile(filepath.Join(t.dir, "stat"), []byte(line+"\n"), 0o644)
}

// WriteStatus writes a minimal /proc/<pid>/status containing just the Uid line.
func (t *Tree) WriteStatus(uid int) error {
	content := fmt.Sprintf("Name:\tfake\nUid:\t%d\t%d\t%d\t%d\n", uid, uid, uid, uid)
	return os.WriteFile(filepath.Join(t.dir, "status"), []byte(content), 0o644)
}

// WriteCmdline writes argv as NUL-separated bytes, matching the kernel format.
func (t *Tree) WriteCmdline(argv ...string) error {
	var b []byte
	for _, a := range argv {
		b = append(b, []byte(a)...)
		b = append(b, 0)
	}
	return os.WriteFile(filepath.Join(t.dir, "cmdline"), b, 0o644)
}

// WriteCwd and WriteExe create the cwd/exe symlinks procfs.Reader reads via
// os.Readlink (real /proc exposes these as magic symlinks; a plain symlink
// reproduces the same observable behavior for parsing purposes).
func (t *Tree) WriteCwd(target string) error {
	return os.Symlink(target, filepath.Join(t.dir, "cwd"))
}

func (t *Tree) WriteExe(target string) error {
	return os.Symlink(target, filepath.Join(t.dir, "exe"))
}

// WriteFd creates the fd/<n> symlink and fdinfo/<n> file for one descriptor.
func (t *Tree) WriteFd(fd Fd) error {
	if err := os.Symlink(fd.Target, filepath.Join(t.dir, "fd", strconv.Itoa(fd.Num))); err != nil {
		return err
	}
	content := fmt.Sprintf("pos:\t%d\nflags:\t%o\nmnt_id:\t1\n", fd.Offset, fd.Flags)
	return os.WriteFile(filepath.Join(t.dir, "fdinfo", strconv.Itoa(fd.Num)), []byte(content), 0o644)
}

// WriteRandomizeVaSpace writes the system-wide ASLR policy knob.
func (t *Tree) WriteRandomizeVaSpace(value int) error {
	p := filepath.Join(t.Root, "sys", "kernel", "randomize_va_space")
	return os.WriteFile(p, []byte(strconv.Itoa(value)+"\n"), 0o644)
}
