package procfs

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/ripwire-labs/procsnap/internal/gwlog"
)

// ParseMaps reads the /proc/<pid>/maps format from r, one line at a time.
// A line that fails to parse is skipped rather than treated as fatal (the
// kernel occasionally emits lines this parser doesn't need to understand,
// e.g. future region annotations); skipped lines are logged at WARN via lg
// if lg is non-nil. The returned slice is sorted by Start because the
// kernel already emits /proc/<pid>/maps in ascending address order.
func ParseMaps(r io.Reader, lg *gwlog.Logger) ([]MemoryRegion, error) {
	var regions []MemoryRegion
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		region, ok := parseMapsLine(line)
		if !ok {
			if lg != nil {
				lg.Warn("skipping unparsable maps line", gwlog.KV("line", line))
			}
			continue
		}
		regions = append(regions, region)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return regions, nil
}

func parseMapsLine(line string) (MemoryRegion, bool) {
	fields := strings.Fields(line)
	if len(fields) < 5 {
		return MemoryRegion{}, false
	}
	addrs := strings.SplitN(fields[0], "-", 2)
	if len(addrs) != 2 {
		return MemoryRegion{}, false
	}
	start, err := strconv.ParseUint(addrs[0], 16, 64)
	if err != nil {
		return MemoryRegion{}, false
	}
	end, err := strconv.ParseUint(addrs[1], 16, 64)
	if err != nil {
		return MemoryRegion{}, false
	}
	if end < start {
		return MemoryRegion{}, false
	}
	perms := fields[1]
	if len(perms) != 4 {
		return MemoryRegion{}, false
	}
	offset, err := strconv.ParseUint(fields[2], 16, 64)
	if err != nil {
		return MemoryRegion{}, false
	}
	inode, err := strconv.ParseUint(fields[4], 10, 64)
	if err != nil {
		return MemoryRegion{}, false
	}
	var pathname string
	if len(fields) > 5 {
		pathname = strings.Join(fields[5:], " ")
	}
	return MemoryRegion{
		Start:      start,
		End:        end,
		Readable:   perms[0] == 'r',
		Writable:   perms[1] == 'w',
		Executable: perms[2] == 'x',
		Private:    perms[3] == 'p',
		Offset:     offset,
		Inode:      inode,
		Pathname:   pathname,
	}, true
}
