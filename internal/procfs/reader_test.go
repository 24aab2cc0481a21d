package procfs_test

import (
	"testing"

	"github.com/ripwire-labs/procsnap/internal/procfs"
	"github.com/ripwire-labs/procsnap/internal/procfs/procfstest"
)

func TestReaderMapsInfoFds(t *testing.T) {
	dir := t.TempDir()
	tree, err := procfstest.New(dir, 4242)
	if err != nil {
		t.Fatalf("procfstest.New: %v", err)
	}
	if err := tree.WriteMaps(
		"00400000-00401000 r-xp 00000000 08:01 100 /bin/target",
		"00601000-00602000 rw-p 00001000 08:01 100 /bin/target",
		"7f0000000000-7f0000021000 rw-p 00000000 00:00 0 [heap]",
	); err != nil {
		t.Fatalf("WriteMaps: %v", err)
	}
	if err := tree.WriteStat("target", 'S', 1, "0 -1 4194304"); err != nil {
		t.Fatalf("WriteStat: %v", err)
	}
	if err := tree.WriteStatus(1000); err != nil {
		t.Fatalf("WriteStatus: %v", err)
	}
	if err := tree.WriteCmdline("/bin/target", "--flag"); err != nil {
		t.Fatalf("WriteCmdline: %v", err)
	}
	if err := tree.WriteCwd("/home/user"); err != nil {
		t.Fatalf("WriteCwd: %v", err)
	}
	if err := tree.WriteExe("/bin/target"); err != nil {
		t.Fatalf("WriteExe: %v", err)
	}
	if err := tree.WriteFd(procfstest.Fd{Num: 0, Target: "/dev/null", Flags: 0}); err != nil {
		t.Fatalf("WriteFd 0: %v", err)
	}
	if err := tree.WriteFd(procfstest.Fd{Num: 3, Target: "/tmp/data.bin", Flags: 0o2, Offset: 1024}); err != nil {
		t.Fatalf("WriteFd 3: %v", err)
	}
	if err := tree.WriteFd(procfstest.Fd{Num: 4, Target: "socket:[999]"}); err != nil {
		t.Fatalf("WriteFd 4: %v", err)
	}
	if err := tree.WriteRandomizeVaSpace(2); err != nil {
		t.Fatalf("WriteRandomizeVaSpace: %v", err)
	}

	r := &procfs.Reader{Root: dir}

	regions, err := r.Maps(4242)
	if err != nil {
		t.Fatalf("Maps: %v", err)
	}
	if len(regions) != 3 {
		t.Fatalf("expected 3 regions, got %d", len(regions))
	}
	if !regions[2].Named("[heap]") {
		t.Fatalf("expected third region to be [heap], got %q", regions[2].Pathname)
	}

	info, err := r.Info(4242)
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.Pid != 4242 || info.Comm != "target" || info.Uid != 1000 {
		t.Fatalf("unexpected info: %+v", info)
	}
	if len(info.Cmdline) != 2 || info.Cmdline[0] != "/bin/target" {
		t.Fatalf("unexpected cmdline: %+v", info.Cmdline)
	}
	if info.Cwd != "/home/user" || info.Exe != "/bin/target" {
		t.Fatalf("unexpected cwd/exe: %+v", info)
	}

	fds, err := r.Fds(4242)
	if err != nil {
		t.Fatalf("Fds: %v", err)
	}
	if len(fds) != 3 {
		t.Fatalf("expected 3 fds, got %d", len(fds))
	}
	byFd := map[int]procfs.FileDescriptorEntry{}
	for _, e := range fds {
		byFd[e.Fd] = e
	}
	if byFd[3].Offset != 1024 {
		t.Fatalf("expected fd 3 offset 1024, got %d", byFd[3].Offset)
	}
	if byFd[4].Type != procfs.FdSocket {
		t.Fatalf("expected fd 4 to classify as socket, got %v", byFd[4].Type)
	}

	policy, err := r.RandomizeVaSpace()
	if err != nil {
		t.Fatalf("RandomizeVaSpace: %v", err)
	}
	if policy != procfs.AslrFull {
		t.Fatalf("expected AslrFull, got %v", policy)
	}
}

func TestReaderMapsNotFound(t *testing.T) {
	dir := t.TempDir()
	r := &procfs.Reader{Root: dir}
	if _, err := r.Maps(99999); err == nil {
		t.Fatalf("expected error reading maps for nonexistent pid")
	}
}
