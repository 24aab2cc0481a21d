package procfs

import (
	"bufio"
	"io"
	"io/fs"
	"strconv"
	"strings"
)

// ParseFdInfo parses the /proc/<pid>/fdinfo/<n> format, returning the open
// flags (decoded from the octal "flags:" field, matching open(2)'s O_*
// bitmask) and the current seek offset from the "pos:" field. Either line
// may be absent on older kernels; zero values are returned in that case.
func ParseFdInfo(r io.Reader) (flags uint32, offset int64, err error) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "pos:"):
			v := strings.TrimSpace(strings.TrimPrefix(line, "pos:"))
			n, perr := strconv.ParseInt(v, 10, 64)
			if perr == nil {
				offset = n
			}
		case strings.HasPrefix(line, "flags:"):
			v := strings.TrimSpace(strings.TrimPrefix(line, "flags:"))
			n, perr := strconv.ParseUint(v, 8, 32)
			if perr == nil {
				flags = uint32(n)
			}
		}
	}
	err = sc.Err()
	return
}

// classifyFd infers the FdType of an open descriptor from the readlink
// target of /proc/<pid>/fd/<n> (sockets and pipes present as "socket:[ino]"
// and "pipe:[ino]" rather than real paths) and, when available, the stat
// mode of the resolved target for everything else.
func classifyFd(target string, mode fs.FileMode, haveMode bool) FdType {
	switch {
	case strings.HasPrefix(target, "socket:"):
		return FdSocket
	case strings.HasPrefix(target, "pipe:"):
		return FdPipe
	case strings.HasPrefix(target, "anon_inode:"):
		return FdUnknown
	}
	if !haveMode {
		return FdRegular
	}
	switch {
	case mode&fs.ModeDir != 0:
		return FdDirectory
	case mode&fs.ModeCharDevice != 0:
		return FdCharDevice
	case mode&fs.ModeDevice != 0:
		return FdBlockDevice
	case mode&fs.ModeNamedPipe != 0:
		return FdPipe
	case mode&fs.ModeSocket != 0:
		return FdSocket
	default:
		return FdRegular
	}
}
