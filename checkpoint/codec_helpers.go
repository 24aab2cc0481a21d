package checkpoint

import (
	"bytes"
	"encoding/binary"
	"os"

	"github.com/ripwire-labs/procsnap/internal/trace"
)

func writeU16(buf *bytes.Buffer, v uint16) { _ = binary.Write(buf, binary.LittleEndian, v) }
func writeU32(buf *bytes.Buffer, v uint32) { _ = binary.Write(buf, binary.LittleEndian, v) }
func writeU64(buf *bytes.Buffer, v uint64) { _ = binary.Write(buf, binary.LittleEndian, v) }
func writeI32(buf *bytes.Buffer, v int32)  { _ = binary.Write(buf, binary.LittleEndian, v) }
func writeI64(buf *bytes.Buffer, v int64)  { _ = binary.Write(buf, binary.LittleEndian, v) }

// readU16/readU32/readU64/readI32/readI64 read a little-endian fixed-width
// value from br, returning the zero value if br is exhausted; callers that
// need to distinguish truncation from a legitimate zero use br.ReadByte
// directly (see the *Byte fields in Decode) rather than these helpers.
func readU16(br *bytes.Reader) uint16 {
	var v uint16
	_ = binary.Read(br, binary.LittleEndian, &v)
	return v
}
func readU32(br *bytes.Reader) uint32 {
	var v uint32
	_ = binary.Read(br, binary.LittleEndian, &v)
	return v
}
func readU64(br *bytes.Reader) uint64 {
	var v uint64
	_ = binary.Read(br, binary.LittleEndian, &v)
	return v
}
func readI32(br *bytes.Reader) int32 {
	var v int32
	_ = binary.Read(br, binary.LittleEndian, &v)
	return v
}
func readI64(br *bytes.Reader) int64 {
	var v int64
	_ = binary.Read(br, binary.LittleEndian, &v)
	return v
}

// registerFieldCount is the fixed register count spec.md 6 specifies.
const registerFieldCount = 27

// registerOrder returns rf's fields in the exact wire order spec.md 6
// fixes: r15, r14, r13, r12, rbp, rbx, r11, r10, r9, r8, rax, rcx, rdx, rsi,
// rdi, orig_rax, rip, cs, eflags, rsp, ss, fs_base, gs_base, ds, es, fs, gs.
func registerOrder(rf trace.RegisterFile) [registerFieldCount]uint64 {
	return [registerFieldCount]uint64{
		rf.R15, rf.R14, rf.R13, rf.R12, rf.Rbp, rf.Rbx,
		rf.R11, rf.R10, rf.R9, rf.R8, rf.Rax, rf.Rcx, rf.Rdx, rf.Rsi, rf.Rdi,
		rf.OrigRax, rf.Rip, rf.Cs, rf.Eflags, rf.Rsp, rf.Ss,
		rf.FsBase, rf.GsBase, rf.Ds, rf.Es, rf.Fs, rf.Gs,
	}
}

// registersFromOrder is registerOrder's inverse, used by Decode.
func registersFromOrder(v []uint64) trace.RegisterFile {
	return trace.RegisterFile{
		R15: v[0], R14: v[1], R13: v[2], R12: v[3], Rbp: v[4], Rbx: v[5],
		R11: v[6], R10: v[7], R9: v[8], R8: v[9], Rax: v[10], Rcx: v[11], Rdx: v[12], Rsi: v[13], Rdi: v[14],
		OrigRax: v[15], Rip: v[16], Cs: v[17], Eflags: v[18], Rsp: v[19], Ss: v[20],
		FsBase: v[21], GsBase: v[22], Ds: v[23], Es: v[24], Fs: v[25], Gs: v[26],
	}
}

func openForDecode(path string) (*os.File, error) {
	return os.Open(path)
}
