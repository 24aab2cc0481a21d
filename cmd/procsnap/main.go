// Command procsnap is the CLI front end for capturing and restoring
// checkpoints of a live Linux process: attach, sample registers/memory/fds,
// and persist the result as a binary artifact that a later invocation can
// replay back into the same (or an equivalent) target.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ripwire-labs/procsnap/internal/aslr"
)

var (
	cfgFlag = flag.String("config-override", "", "Override config file path")
	cfgFile string
)

func init() {
	cfgFile = defaultConfigLoc
}

func main() {
	// Must run before any flag parsing or subcommand dispatch: MaybeReexec
	// never returns if this invocation is itself the ASLR re-exec helper.
	aslr.MaybeReexec()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	sub := os.Args[1]
	args := os.Args[2:]

	fs := flag.NewFlagSet(sub, flag.ExitOnError)
	fs.StringVar(cfgFlag, "config-override", "", "Override config file path")
	// subcommands parse their own remaining flags via fs, below.

	switch sub {
	case "create":
		runCreate(fs, args)
	case "restore":
		runRestore(fs, args)
	case "list":
		runList(fs, args)
	case "history":
		runHistory(fs, args)
	case "inspect":
		runInspect(fs, args)
	case "audit":
		runAudit(fs, args)
	case "watch":
		runWatch(fs, args)
	case "all":
		runAll(fs, args)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "procsnap: unknown subcommand %q\n", sub)
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: procsnap <subcommand> [flags]

subcommands:
  create <pid>             capture a checkpoint of a running process
  restore <pid>             replay a checkpoint into a running process
  list                      list candidate processes (gopsutil)
  history <pid>             list checkpoints recorded for a pid, newest first
  inspect <checkpoint-id>   print a checkpoint artifact's summary
  audit <pid>               print the audit trail recorded for a pid
  watch <pid>               periodically checkpoint a pid, pruning old ones
  all <pid,pid,...>         checkpoint several distinct pids concurrently`)
}

// openConfig loads the effective config for a subcommand invocation,
// honoring -config-override before falling back to cfgFile's default.
func openConfig() (cfgType, error) {
	path := cfgFile
	if *cfgFlag != `` {
		path = *cfgFlag
	}
	return GetConfig(path)
}
