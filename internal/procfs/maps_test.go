package procfs

import (
	"strings"
	"testing"
)

func TestParseMapsValidLines(t *testing.T) {
	input := strings.Join([]string{
		"55d1f1234000-55d1f1235000 r--p 00000000 08:01 123456 /usr/bin/foo",
		"55d1f1235000-55d1f1237000 r-xp 00001000 08:01 123456 /usr/bin/foo",
		"7f0a00000000-7f0a00021000 rw-p 00000000 00:00 0 ",
		"7ffee0000000-7ffee0021000 rw-p 00000000 00:00 0 [stack]",
		"7ffee1000000-7ffee1001000 r--p 00000000 00:00 0 [vvar]",
	}, "\n")
	regions, err := ParseMaps(strings.NewReader(input), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(regions) != 5 {
		t.Fatalf("expected 5 regions, got %d", len(regions))
	}

	first := regions[0]
	if first.Start != 0x55d1f1234000 || first.End != 0x55d1f1235000 {
		t.Fatalf("unexpected bounds: %+v", first)
	}
	if !first.Readable || first.Writable || first.Executable || !first.Private {
		t.Fatalf("unexpected perms: %+v", first)
	}
	if first.Pathname != "/usr/bin/foo" {
		t.Fatalf("unexpected pathname: %q", first.Pathname)
	}

	stack := regions[3]
	if !stack.Named("[stack]") {
		t.Fatalf("expected [stack] region, got %q", stack.Pathname)
	}
	if stack.Size() != 0x21000 {
		t.Fatalf("unexpected size: %d", stack.Size())
	}
}

func TestParseMapsSkipsUnparsableLines(t *testing.T) {
	input := strings.Join([]string{
		"55d1f1234000-55d1f1235000 r--p 00000000 08:01 123456 /usr/bin/foo",
		"garbage line that is not a maps entry",
		"7f0a00000000-7f0a00021000 rw-p 00000000 00:00 0",
	}, "\n")
	regions, err := ParseMaps(strings.NewReader(input), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(regions) != 2 {
		t.Fatalf("expected 2 regions (bad line skipped), got %d", len(regions))
	}
}

func TestParseMapsEmptyInput(t *testing.T) {
	regions, err := ParseMaps(strings.NewReader(""), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(regions) != 0 {
		t.Fatalf("expected no regions, got %d", len(regions))
	}
}

func TestParseMapsSharedRegion(t *testing.T) {
	regions, err := ParseMaps(strings.NewReader("7f0000000000-7f0000001000 rw-s 00000000 08:01 1 /dev/shm/x"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if regions[0].Private {
		t.Fatalf("expected shared region to report Private=false")
	}
}
