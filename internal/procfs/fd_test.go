package procfs

import (
	"io/fs"
	"strings"
	"testing"
)

func TestParseFdInfo(t *testing.T) {
	input := "pos:\t1024\nflags:\t0100002\nmnt_id:\t25\n"
	flags, offset, err := ParseFdInfo(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if offset != 1024 {
		t.Fatalf("expected offset 1024, got %d", offset)
	}
	// 0100002 octal == O_RDWR (2) | O_LARGEFILE-ish high bit from the kernel;
	// we only assert the low bits we actually rely on.
	if flags&0o2 == 0 {
		t.Fatalf("expected O_RDWR bit set in flags %o", flags)
	}
}

func TestParseFdInfoMissingLines(t *testing.T) {
	flags, offset, err := ParseFdInfo(strings.NewReader("mnt_id:\t1\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if flags != 0 || offset != 0 {
		t.Fatalf("expected zero values when lines absent, got flags=%d offset=%d", flags, offset)
	}
}

func TestClassifyFd(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		mode     fs.FileMode
		haveMode bool
		want     FdType
	}{
		{"socket", "socket:[12345]", 0, false, FdSocket},
		{"pipe", "pipe:[6789]", 0, false, FdPipe},
		{"anon inode", "anon_inode:[eventfd]", 0, false, FdUnknown},
		{"regular no mode", "/etc/hosts", 0, false, FdRegular},
		{"regular with mode", "/etc/hosts", 0, true, FdRegular},
		{"directory", "/tmp", fs.ModeDir, true, FdDirectory},
		{"char device", "/dev/null", fs.ModeCharDevice, true, FdCharDevice},
		{"block device", "/dev/sda", fs.ModeDevice, true, FdBlockDevice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyFd(tt.target, tt.mode, tt.haveMode)
			if got != tt.want {
				t.Fatalf("classifyFd(%q) = %v, want %v", tt.target, got, tt.want)
			}
		})
	}
}
