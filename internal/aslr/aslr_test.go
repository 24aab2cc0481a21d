package aslr

import (
	"testing"

	"github.com/ripwire-labs/procsnap/internal/procfs"
)

func TestTextBase(t *testing.T) {
	regions := []procfs.MemoryRegion{
		{Start: 0x1000, End: 0x2000, Executable: false, Pathname: "/bin/target"},
		{Start: 0x55d1f1234000, End: 0x55d1f1235000, Executable: true, Pathname: "/bin/target"},
		{Start: 0x7f0000000000, End: 0x7f0000001000, Executable: true, Pathname: "/lib/libc.so"},
	}
	base, ok := TextBase(regions, "/bin/target")
	if !ok {
		t.Fatalf("expected to find text base")
	}
	if base != 0x55d1f1234000 {
		t.Fatalf("unexpected base: %#x", base)
	}
}

func TestTextBaseNotFound(t *testing.T) {
	regions := []procfs.MemoryRegion{
		{Start: 0x1000, End: 0x2000, Executable: true, Pathname: "/bin/other"},
	}
	if _, ok := TextBase(regions, "/bin/target"); ok {
		t.Fatalf("expected no match")
	}
}

func TestShiftAndApply(t *testing.T) {
	captured := uint64(0x55d1f1234000)
	live := uint64(0x5612ac000000)
	shift := Shift(captured, live)
	if ApplyShift(captured, shift) != live {
		t.Fatalf("ApplyShift did not round-trip to live base")
	}
}

func TestShiftZeroWhenBasesMatch(t *testing.T) {
	base := uint64(0x400000)
	if Shift(base, base) != 0 {
		t.Fatalf("expected zero shift for identical bases")
	}
}

func TestApplyShiftNegative(t *testing.T) {
	addr := uint64(0x10000)
	got := ApplyShift(addr, -0x8000)
	if got != 0x8000 {
		t.Fatalf("unexpected shifted address: %#x", got)
	}
}
