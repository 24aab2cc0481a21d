package procfs

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParseStat parses the /proc/<pid>/stat format into the pid, comm, state,
// and ppid fields of a ProcessInfo. comm is parenthesized and may itself
// contain spaces or parentheses, so it is extracted from between the first
// '(' and the last ')' rather than by whitespace splitting.
func ParseStat(r io.Reader) (ProcessInfo, error) {
	var info ProcessInfo
	b, err := io.ReadAll(r)
	if err != nil {
		return info, err
	}
	line := strings.TrimRight(string(b), "\n")
	open := strings.IndexByte(line, '(')
	close := strings.LastIndexByte(line, ')')
	if open < 0 || close < 0 || close < open {
		return info, fmt.Errorf("procfs: malformed stat line")
	}
	pidStr := strings.TrimSpace(line[:open])
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return info, fmt.Errorf("procfs: malformed stat pid: %w", err)
	}
	info.Pid = pid
	info.Comm = line[open+1 : close]

	rest := strings.Fields(line[close+1:])
	if len(rest) < 2 {
		return info, fmt.Errorf("procfs: malformed stat tail")
	}
	if len(rest[0]) != 1 {
		return info, fmt.Errorf("procfs: malformed stat state")
	}
	info.State = rest[0][0]
	ppid, err := strconv.Atoi(rest[1])
	if err != nil {
		return info, fmt.Errorf("procfs: malformed stat ppid: %w", err)
	}
	info.Ppid = ppid
	return info, nil
}

// ParseStatusUid scans /proc/<pid>/status for the "Uid:" line and returns
// the first (real) uid column.
func ParseStatusUid(r io.Reader) (int, error) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "Uid:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0, fmt.Errorf("procfs: malformed Uid line")
		}
		return strconv.Atoi(fields[1])
	}
	if err := sc.Err(); err != nil {
		return 0, err
	}
	return 0, fmt.Errorf("procfs: no Uid line in status")
}
