package checkpoint

import (
	"bytes"
	"hash/crc32"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ripwire-labs/procsnap/internal/aslr"
	"github.com/ripwire-labs/procsnap/internal/fdtable"
	"github.com/ripwire-labs/procsnap/internal/memory"
	"github.com/ripwire-labs/procsnap/internal/procfs"
	"github.com/ripwire-labs/procsnap/internal/trace"
)

func sampleCheckpoint() Checkpoint {
	return Checkpoint{
		ID:        uuid.New(),
		Name:      "before-migration",
		CreatedAt: time.Unix(1700000000, 0).UTC(),
		Pid:       4242,
		Aslr:      aslr.Conservative,
		Registers: trace.RegisterFile{
			Rax: 1, Rdi: 2, Rsi: 3, Rip: 0x400000, Rsp: 0x7ffeeffff000,
		},
		Regions: []procfs.MemoryRegion{
			{Start: 0x400000, End: 0x401000, Readable: true, Executable: true, Private: true, Pathname: "/bin/target"},
			{Start: 0x600000, End: 0x602000, Readable: true, Writable: true, Private: true, Pathname: "[heap]"},
		},
		// Deliberately in the opposite order from Regions (heap dump first,
		// text dump second) and with the text region filtered out of Dumps
		// in between in real usage — memory.Select skips read-only regions,
		// so a dump's position in Dumps routinely diverges from its
		// region's position in Regions.
		Dumps: []memory.MemoryDump{
			{Region: procfs.MemoryRegion{Start: 0x600000, End: 0x602000, Readable: true, Writable: true, Private: true, Pathname: "[heap]"}, Bytes: bytes.Repeat([]byte{0x42}, 0x2000), Valid: true},
			{Region: procfs.MemoryRegion{Start: 0x400000, End: 0x401000, Readable: true, Executable: true, Private: true, Pathname: "/bin/target"}, Valid: false},
		},
		Fds: []fdtable.Entry{
			{FileDescriptorEntry: procfs.FileDescriptorEntry{Fd: 3, Path: "/tmp/data", Flags: 2, Offset: 128, Type: procfs.FdRegular}, Restorable: true},
			{FileDescriptorEntry: procfs.FileDescriptorEntry{Fd: 4, Path: "socket:[12345]", Type: procfs.FdSocket}, Restorable: false, Reason: "socket"},
		},
		TotalBytes: 0x2000,
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cp := sampleCheckpoint()
	var buf bytes.Buffer
	if err := Encode(&buf, cp); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if got.Name != cp.Name {
		t.Errorf("Name: got %q want %q", got.Name, cp.Name)
	}
	if !got.CreatedAt.Equal(cp.CreatedAt) {
		t.Errorf("CreatedAt: got %v want %v", got.CreatedAt, cp.CreatedAt)
	}
	if got.Pid != cp.Pid {
		t.Errorf("Pid: got %d want %d", got.Pid, cp.Pid)
	}
	if got.Aslr != cp.Aslr {
		t.Errorf("Aslr: got %v want %v", got.Aslr, cp.Aslr)
	}
	if got.Registers != cp.Registers {
		t.Errorf("Registers: got %+v want %+v", got.Registers, cp.Registers)
	}
	if len(got.Regions) != len(cp.Regions) {
		t.Fatalf("Regions length: got %d want %d", len(got.Regions), len(cp.Regions))
	}
	for i := range cp.Regions {
		if got.Regions[i] != cp.Regions[i] {
			t.Errorf("Region %d: got %+v want %+v", i, got.Regions[i], cp.Regions[i])
		}
	}
	if got.ID != cp.ID {
		t.Errorf("ID: got %v want %v", got.ID, cp.ID)
	}
	if len(got.Dumps) != len(cp.Dumps) {
		t.Fatalf("Dumps length: got %d want %d", len(got.Dumps), len(cp.Dumps))
	}
	if !got.Dumps[0].Valid || !bytes.Equal(got.Dumps[0].Bytes, cp.Dumps[0].Bytes) {
		t.Errorf("Dump 0 bytes not round-tripped correctly")
	}
	if got.Dumps[1].Valid {
		t.Errorf("Dump 1 expected invalid")
	}
	// sampleCheckpoint's Dumps are in the opposite order from Regions
	// ([heap] dump first, text dump second) specifically so a codec that
	// reused the Dumps loop counter as regionIndex would attach each dump to
	// the wrong MemoryRegion without this check catching it.
	for i := range cp.Dumps {
		if got.Dumps[i].Region != cp.Dumps[i].Region {
			t.Errorf("Dump %d region: got %+v want %+v", i, got.Dumps[i].Region, cp.Dumps[i].Region)
		}
	}
	if len(got.Fds) != len(cp.Fds) {
		t.Fatalf("Fds length: got %d want %d", len(got.Fds), len(cp.Fds))
	}
	if got.Fds[0].Path != cp.Fds[0].Path || got.Fds[0].Offset != cp.Fds[0].Offset || !got.Fds[0].Restorable {
		t.Errorf("Fd 0 not round-tripped correctly: %+v", got.Fds[0])
	}
	if got.Fds[1].Restorable {
		t.Errorf("Fd 1 should remain not restorable")
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	var buf bytes.Buffer
	_ = Encode(&buf, sampleCheckpoint())
	raw := buf.Bytes()
	raw[0] = 'X'
	if _, err := Decode(bytes.NewReader(raw)); err == nil {
		t.Fatalf("expected magic mismatch to fail decode")
	}
}

func TestDecodeRejectsDigestMismatch(t *testing.T) {
	var buf bytes.Buffer
	_ = Encode(&buf, sampleCheckpoint())
	raw := buf.Bytes()
	raw[len(raw)-1] ^= 0xFF
	if _, err := Decode(bytes.NewReader(raw)); err == nil {
		t.Fatalf("expected digest mismatch to fail decode")
	}
}

func TestDecodeRejectsTruncatedArtifact(t *testing.T) {
	var buf bytes.Buffer
	_ = Encode(&buf, sampleCheckpoint())
	raw := buf.Bytes()
	if _, err := Decode(bytes.NewReader(raw[:len(raw)/2])); err == nil {
		t.Fatalf("expected truncated artifact to fail decode")
	}
}

func TestDecodeRejectsNewerMajorVersion(t *testing.T) {
	var buf bytes.Buffer
	_ = Encode(&buf, sampleCheckpoint())
	raw := buf.Bytes()
	// version major is the two bytes immediately after the 8-byte magic.
	raw[8] = 0xFF
	raw[9] = 0xFF
	// Recompute the digest so the version bump is the only thing that fails.
	fixDigest(raw)
	if _, err := Decode(bytes.NewReader(raw)); err == nil {
		t.Fatalf("expected newer major version to fail decode")
	}
}

func TestPermBitsRoundTrip(t *testing.T) {
	cases := []procfs.MemoryRegion{
		{Readable: true},
		{Writable: true},
		{Executable: true},
		{Private: true},
		{Readable: true, Writable: true, Executable: true, Private: true},
		{},
	}
	for _, r := range cases {
		b := permBits(r)
		gotR, gotW, gotX, gotP := permsFromBits(b)
		if gotR != r.Readable || gotW != r.Writable || gotX != r.Executable || gotP != r.Private {
			t.Errorf("perm bits round trip failed for %+v: got r=%v w=%v x=%v p=%v", r, gotR, gotW, gotX, gotP)
		}
	}
}

func TestEncodeFileDecodeFileRoundTrip(t *testing.T) {
	cp := sampleCheckpoint()
	path := filepath.Join(t.TempDir(), "checkpoint.bin")
	if err := EncodeFile(path, cp); err != nil {
		t.Fatalf("EncodeFile: %v", err)
	}
	got, err := DecodeFile(path)
	if err != nil {
		t.Fatalf("DecodeFile: %v", err)
	}
	if got.Name != cp.Name || got.Pid != cp.Pid {
		t.Fatalf("got %+v want name=%q pid=%d", got, cp.Name, cp.Pid)
	}
}

func fixDigest(raw []byte) {
	body := raw[:len(raw)-4]
	digest := crc32.ChecksumIEEE(body)
	raw[len(raw)-4] = byte(digest)
	raw[len(raw)-3] = byte(digest >> 8)
	raw[len(raw)-2] = byte(digest >> 16)
	raw[len(raw)-1] = byte(digest >> 24)
}
