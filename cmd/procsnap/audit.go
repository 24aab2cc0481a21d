package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ripwire-labs/procsnap/checkpoint"
)

// runAudit prints the append-only operation log kept separate from
// application logging (SPEC_FULL.md's supplemented operation-logger
// feature): every create/restore this pid has ever seen, with its outcome.
func runAudit(fs *flag.FlagSet, args []string) {
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

	recs, err := store.AuditTrail(pid)
	if err != nil {
		fmt.Fprintln(os.Stderr, "procsnap: audit:", err)
		os.Exit(1)
	}
	if len(recs) == 0 {
		fmt.Printf("no audit records for pid %d\n", pid)
		return
	}
	fmt.Printf("%-24s %-10s %-10s %s\n", "AT", "OP", "RESULT", "DETAIL")
	for _, r := range recs {
		fmt.Printf("%-24s %-10s %-10s %s\n", r.At.Format("2006-01-02T15:04:05Z07:00"), r.Operation, r.Result, r.Detail)
	}
}
