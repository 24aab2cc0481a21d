package checkpoint

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/google/renameio"
	"github.com/klauspost/compress/zstd"
	"github.com/ripwire-labs/procsnap/internal/errkind"
	"github.com/ripwire-labs/procsnap/internal/fdtable"
	"github.com/ripwire-labs/procsnap/internal/memory"
	"github.com/ripwire-labs/procsnap/internal/procfs"
	"github.com/ripwire-labs/procsnap/internal/trace"
)

// zstdEncoder/zstdDecoder compress the per-dump byte buffers beneath the
// fixed-width framing below; most dumped pages are zero or near-zero BSS,
// which zstd shrinks dramatically. EncodeAll/DecodeAll are safe for
// concurrent use by multiple goroutines sharing one encoder/decoder.
var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	zstdDecoder, _ = zstd.NewReader(nil)
)

// magic identifies the artifact format; the trailing two bytes double as
// the initial major.minor version spec.md 6 shows inline in the literal.
var magic = [8]byte{'C', 'H', 'K', 'P', 'T', 0, 0, 1}

// versionMajor/versionMinor are the format version this codec writes.
// Encode bumps versionMinor for additive changes and versionMajor for
// breaking ones; Decode accepts any minor at the current major and rejects
// a higher major outright.
const (
	versionMajor uint16 = 0
	versionMinor uint16 = 1
)

// permBits packs MemoryRegion's four booleans into the single perms byte
// spec.md 6 specifies: bit0=r, bit1=w, bit2=x, bit3=private.
func permBits(r procfs.MemoryRegion) uint8 {
	var b uint8
	if r.Readable {
		b |= 1 << 0
	}
	if r.Writable {
		b |= 1 << 1
	}
	if r.Executable {
		b |= 1 << 2
	}
	if r.Private {
		b |= 1 << 3
	}
	return b
}

func permsFromBits(b uint8) (readable, writable, executable, private bool) {
	return b&(1<<0) != 0, b&(1<<1) != 0, b&(1<<2) != 0, b&(1<<3) != 0
}

// Encode writes cp to w in the binary format spec.md 6 defines, computing
// and appending the trailing CRC-32 digest over everything written before it.
// One field is added ahead of createdAt beyond spec.md 6's literal layout:
// the 16-byte checkpointId, so that decode(encode(c)) == c holds for ID too
// (spec.md 3 names checkpointId as a Checkpoint field; §6's listing omitted
// it). Carried as a minor-version addition, so older readers that predate it
// would need to reject this major/minor rather than silently misparse.
func Encode(w io.Writer, cp Checkpoint) error {
	var buf bytes.Buffer
	buf.Write(magic[:])
	writeU16(&buf, versionMajor)
	writeU16(&buf, versionMinor)
	buf.Write(cp.ID[:])
	writeI64(&buf, cp.CreatedAt.Unix())
	writeI32(&buf, int32(cp.Pid))

	name := []byte(cp.Name)
	writeU32(&buf, uint32(len(name)))
	buf.Write(name)

	buf.WriteByte(byte(cp.Aslr))

	for _, v := range registerOrder(cp.Registers) {
		writeU64(&buf, v)
	}

	writeU32(&buf, uint32(len(cp.Regions)))
	for _, r := range cp.Regions {
		writeU64(&buf, r.Start)
		writeU64(&buf, r.End)
		buf.WriteByte(permBits(r))
		writeU64(&buf, r.Offset)
		writeU64(&buf, r.Inode)
		path := []byte(r.Pathname)
		writeU32(&buf, uint32(len(path)))
		buf.Write(path)
	}

	// cp.Dumps is memory.Select's filtered subset of cp.Regions, so a dump's
	// position in Dumps is not its region's position in Regions once any
	// region has been filtered out (the normal case). Resolve the true index
	// by Start, which spec.md 3 guarantees is unique and sorted across a
	// process's regions.
	regionIndexByStart := make(map[uint64]uint32, len(cp.Regions))
	for i, r := range cp.Regions {
		regionIndexByStart[r.Start] = uint32(i)
	}

	writeU32(&buf, uint32(len(cp.Dumps)))
	for _, d := range cp.Dumps {
		regionIndex, ok := regionIndexByStart[d.Region.Start]
		if !ok {
			return fmt.Errorf("checkpoint: dump region %#x has no matching entry in cp.Regions", d.Region.Start)
		}
		writeU32(&buf, regionIndex)
		if d.Valid {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
		writeU32(&buf, uint32(len(d.Bytes)))
		compressed := zstdEncoder.EncodeAll(d.Bytes, nil)
		writeU32(&buf, uint32(len(compressed)))
		buf.Write(compressed)
	}

	writeU32(&buf, uint32(len(cp.Fds)))
	for _, e := range cp.Fds {
		writeI32(&buf, int32(e.Fd))
		writeU32(&buf, e.Flags)
		writeI64(&buf, e.Offset)
		buf.WriteByte(byte(e.Type))
		path := []byte(e.Path)
		writeU32(&buf, uint32(len(path)))
		buf.Write(path)
		if e.Restorable {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	}

	digest := crc32.ChecksumIEEE(buf.Bytes())
	writeU32(&buf, digest)

	_, err := w.Write(buf.Bytes())
	return err
}

// EncodeFile atomically writes cp to path using renameio, so a reader never
// observes a partially-written artifact even if the process is killed
// mid-write.
func EncodeFile(path string, cp Checkpoint) error {
	t, err := renameio.TempFile("", path)
	if err != nil {
		return fmt.Errorf("checkpoint: create temp file for %s: %w", path, err)
	}
	defer t.Cleanup()
	if err := Encode(t, cp); err != nil {
		return err
	}
	return t.CloseAtomicallyReplace()
}

// Decode reads a Checkpoint previously written by Encode. It is strict: an
// unrecognized magic, a version major newer than this codec understands, or
// a digest mismatch all fail with errkind.Corrupted.
func Decode(r io.Reader) (Checkpoint, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("checkpoint: read artifact: %w", err)
	}
	if len(raw) < len(magic)+4+16 {
		return Checkpoint{}, errkind.Corrupted("artifact shorter than the fixed header", nil)
	}
	if !bytes.Equal(raw[:len(magic)], magic[:]) {
		return Checkpoint{}, errkind.Corrupted("unrecognized magic", nil)
	}

	body := raw[:len(raw)-4]
	wantDigest := binary.LittleEndian.Uint32(raw[len(raw)-4:])
	if gotDigest := crc32.ChecksumIEEE(body); gotDigest != wantDigest {
		return Checkpoint{}, errkind.Corrupted(fmt.Sprintf("digest mismatch: got %#x want %#x", gotDigest, wantDigest), nil)
	}

	br := bytes.NewReader(raw[len(magic):])

	major := readU16(br)
	_ = readU16(br) // minor: accepted at any value, unknown trailing fields ignored
	if major > versionMajor {
		return Checkpoint{}, errkind.Corrupted(fmt.Sprintf("artifact version major %d newer than this reader (%d)", major, versionMajor), nil)
	}

	var id uuid.UUID
	if _, err := io.ReadFull(br, id[:]); err != nil {
		return Checkpoint{}, errkind.Corrupted("truncated checkpoint id", err)
	}

	createdAt := time.Unix(readI64(br), 0).UTC()
	pid := int(readI32(br))

	nameLen := readU32(br)
	nameBytes := make([]byte, nameLen)
	if _, err := io.ReadFull(br, nameBytes); err != nil {
		return Checkpoint{}, errkind.Corrupted("truncated name field", err)
	}
	name := string(nameBytes)

	aslrByte, err := br.ReadByte()
	if err != nil {
		return Checkpoint{}, errkind.Corrupted("truncated aslr field", err)
	}

	var regs trace.RegisterFile
	values := make([]uint64, registerFieldCount)
	for i := range values {
		values[i] = readU64(br)
	}
	regs = registersFromOrder(values)

	mapCount := readU32(br)
	regions := make([]procfs.MemoryRegion, 0, mapCount)
	for i := uint32(0); i < mapCount; i++ {
		start := readU64(br)
		end := readU64(br)
		permByte, err := br.ReadByte()
		if err != nil {
			return Checkpoint{}, errkind.Corrupted("truncated region perms", err)
		}
		offset := readU64(br)
		inode := readU64(br)
		pathLen := readU32(br)
		pathBytes := make([]byte, pathLen)
		if _, err := io.ReadFull(br, pathBytes); err != nil {
			return Checkpoint{}, errkind.Corrupted("truncated region path", err)
		}
		readable, writable, executable, private := permsFromBits(permByte)
		regions = append(regions, procfs.MemoryRegion{
			Start: start, End: end,
			Readable: readable, Writable: writable, Executable: executable, Private: private,
			Offset: offset, Inode: inode, Pathname: string(pathBytes),
		})
	}

	dumpCount := readU32(br)
	dumps := make([]memory.MemoryDump, 0, dumpCount)
	for i := uint32(0); i < dumpCount; i++ {
		regionIndex := readU32(br)
		validByte, err := br.ReadByte()
		if err != nil {
			return Checkpoint{}, errkind.Corrupted("truncated dump valid flag", err)
		}
		length := readU32(br)
		compressedLen := readU32(br)
		compressed := make([]byte, compressedLen)
		if _, err := io.ReadFull(br, compressed); err != nil {
			return Checkpoint{}, errkind.Corrupted("truncated dump bytes", err)
		}
		if int(regionIndex) >= len(regions) {
			return Checkpoint{}, errkind.Corrupted(fmt.Sprintf("dump region index %d out of range", regionIndex), nil)
		}
		data, err := zstdDecoder.DecodeAll(compressed, make([]byte, 0, length))
		if err != nil {
			return Checkpoint{}, errkind.Corrupted("could not decompress dump bytes", err)
		}
		if uint32(len(data)) != length {
			return Checkpoint{}, errkind.Corrupted(fmt.Sprintf("dump %d decompressed to %d bytes, want %d", regionIndex, len(data), length), nil)
		}
		dumps = append(dumps, memory.MemoryDump{
			Region: regions[regionIndex],
			Bytes:  data,
			Valid:  validByte != 0,
		})
	}

	fdCount := readU32(br)
	fds := make([]fdtable.Entry, 0, fdCount)
	for i := uint32(0); i < fdCount; i++ {
		fdnum := readI32(br)
		flags := readU32(br)
		offset := readI64(br)
		typByte, err := br.ReadByte()
		if err != nil {
			return Checkpoint{}, errkind.Corrupted("truncated fd type", err)
		}
		pathLen := readU32(br)
		pathBytes := make([]byte, pathLen)
		if _, err := io.ReadFull(br, pathBytes); err != nil {
			return Checkpoint{}, errkind.Corrupted("truncated fd path", err)
		}
		restorableByte, err := br.ReadByte()
		if err != nil {
			return Checkpoint{}, errkind.Corrupted("truncated fd restorable flag", err)
		}
		fds = append(fds, fdtable.Entry{
			FileDescriptorEntry: procfs.FileDescriptorEntry{
				Fd: int(fdnum), Path: string(pathBytes), Flags: flags, Offset: offset,
				Type: procfs.FdType(typByte),
			},
			Restorable: restorableByte != 0,
		})
	}

	var total uint64
	for _, d := range dumps {
		if d.Valid {
			total += d.Region.Size()
		}
	}

	return Checkpoint{
		ID:         id,
		Name:       name,
		CreatedAt:  createdAt,
		Pid:        pid,
		Aslr:       procfs.AslrPolicy(aslrByte),
		Registers:  regs,
		Regions:    regions,
		Dumps:      dumps,
		Fds:        fds,
		TotalBytes: total,
	}, nil
}

// DecodeFile is a convenience wrapper reading path through Decode.
func DecodeFile(path string) (Checkpoint, error) {
	f, err := openForDecode(path)
	if err != nil {
		return Checkpoint{}, err
	}
	defer f.Close()
	return Decode(f)
}
