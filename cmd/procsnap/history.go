package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ripwire-labs/procsnap/checkpoint"
)

// runHistory implements the chain-of-checkpoints view described in
// SPEC_FULL.md's supplemented "partial rollback" feature: every checkpoint
// ever recorded for a pid, newest first, so an operator can pick one other
// than the latest to restore via `restore -checkpoint <id>`.
func runHistory(fs *flag.FlagSet, args []string) {
	if err := fs.Parse(args); err != nil {
		os.Exit(2)
	}
	pid, err := requirePid(fs)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := openConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "procsnap: config:", err)
		os.Exit(1)
	}
	store, err := checkpoint.OpenStore(cfg.Checkpoint.Store_Dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "procsnap: store:", err)
		os.Exit(1)
	}

	metas, err := store.List(pid)
	if err != nil {
		fmt.Fprintln(os.Stderr, "procsnap: history:", err)
		os.Exit(1)
	}
	if len(metas) == 0 {
		fmt.Printf("no checkpoints recorded for pid %d\n", pid)
		return
	}
	fmt.Printf("%-36s %-24s %-20s %s\n", "ID", "CREATED", "NAME", "BYTES")
	for _, m := range metas {
		fmt.Printf("%-36s %-24s %-20s %d\n", m.ID, m.CreatedAt.Format("2006-01-02T15:04:05Z07:00"), m.Name, m.TotalBytes)
	}
}
