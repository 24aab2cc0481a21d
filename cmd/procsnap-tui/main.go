// Command procsnap-tui is an optional terminal UI over the same core the
// procsnap CLI drives: a process picker on the left, and a live region/fd
// browser for whichever pid is selected on the right.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ripwire-labs/procsnap/internal/aslr"
	"github.com/ripwire-labs/procsnap/internal/gwlog"
	"github.com/ripwire-labs/procsnap/internal/procfs"
)

func main() {
	aslr.MaybeReexec()

	cfgFlag := flag.String("config-override", "", "Override config file path")
	flag.Parse()

	path := defaultConfigLoc
	if *cfgFlag != `` {
		path = *cfgFlag
	}
	cfg, err := GetConfig(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "procsnap-tui: config:", err)
		os.Exit(1)
	}
	lg, err := cfg.GetLogger()
	if err != nil {
		fmt.Fprintln(os.Stderr, "procsnap-tui: logger:", err)
		os.Exit(1)
	}

	t := newTUI(cfg, lg, &procfs.Reader{Root: procfs.DefaultRoot, Log: lg})
	if err := t.run(); err != nil {
		lg.Error("tui exited with error", gwlog.KVErr(err))
		fmt.Fprintln(os.Stderr, "procsnap-tui:", err)
		os.Exit(1)
	}
}
