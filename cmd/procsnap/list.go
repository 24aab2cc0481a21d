package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/shirou/gopsutil/v4/process"
)

// runList is CLI-only process discovery to help an operator pick a target
// pid; the core checkpoint/restore path never uses gopsutil and always
// parses /proc itself (internal/procfs).
func runList(fs *flag.FlagSet, args []string) {
	if err := fs.Parse(args); err != nil {
		os.Exit(2)
	}

	procs, err := process.Processes()
	if err != nil {
		fmt.Fprintln(os.Stderr, "procsnap: list processes:", err)
		os.Exit(1)
	}

	type row struct {
		pid     int32
		user    string
		cmdline string
	}
	rows := make([]row, 0, len(procs))
	for _, p := range procs {
		cmdline, _ := p.Cmdline()
		if cmdline == `` {
			name, _ := p.Name()
			cmdline = name
		}
		user, _ := p.Username()
		rows = append(rows, row{pid: p.Pid, user: user, cmdline: cmdline})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].pid < rows[j].pid })

	fmt.Printf("%-8s %-16s %s\n", "PID", "USER", "CMDLINE")
	for _, r := range rows {
		fmt.Printf("%-8d %-16s %s\n", r.pid, r.user, r.cmdline)
	}
}
